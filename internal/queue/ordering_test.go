package queue

import "testing"

func TestOrderingBijection(t *testing.T) {
	for _, total := range []int{1, 2, 7, 50} {
		for _, reversed := range []bool{false, true} {
			seen := map[int]bool{}
			for i := 0; i < total; i++ {
				off := VisualToOffset(i, reversed, total)
				if off < 0 || off >= total {
					t.Fatalf("total=%d reversed=%v: offset %d out of range", total, reversed, off)
				}
				if seen[off] {
					t.Fatalf("total=%d reversed=%v: offset %d mapped twice", total, reversed, off)
				}
				seen[off] = true
				if back := OffsetToVisual(off, reversed, total); back != i {
					t.Fatalf("total=%d reversed=%v: %d -> %d -> %d", total, reversed, i, off, back)
				}
			}
		}
	}
}

func TestVisualRange(t *testing.T) {
	cases := []struct {
		name             string
		start, end       int
		reversed         bool
		total            int
		wantFrom, wantTo int
		wantOK           bool
	}{
		{"forward", 0, 20, false, 50, 0, 20, true},
		{"reversed head", 0, 20, true, 50, 30, 50, true},
		{"reversed tail", 30, 50, true, 50, 0, 20, true},
		{"clamped end", 40, 80, false, 50, 40, 50, true},
		{"negative start", -5, 3, false, 50, 0, 3, true},
		{"empty", 10, 10, false, 50, 0, 0, false},
		{"beyond total", 60, 70, false, 50, 0, 0, false},
		{"empty log", 0, 20, false, 0, 0, 0, false},
	}
	for _, tc := range cases {
		from, to, ok := VisualRange(tc.start, tc.end, tc.reversed, tc.total)
		if ok != tc.wantOK || (ok && (from != tc.wantFrom || to != tc.wantTo)) {
			t.Errorf("%s: got [%d,%d) ok=%v, want [%d,%d) ok=%v", tc.name, from, to, ok, tc.wantFrom, tc.wantTo, tc.wantOK)
		}
	}
}

func TestCenterWindow(t *testing.T) {
	cases := []struct{ offset, size, total, from, to int }{
		{40, 20, 50, 30, 50},
		{5, 20, 50, 0, 20},
		{25, 20, 50, 15, 35},
		{3, 20, 10, 0, 10},
	}
	for _, tc := range cases {
		from, to := centerWindow(tc.offset, tc.size, tc.total)
		if from != tc.from || to != tc.to {
			t.Errorf("centerWindow(%d,%d,%d) = [%d,%d), want [%d,%d)", tc.offset, tc.size, tc.total, from, to, tc.from, tc.to)
		}
		if tc.offset < from || tc.offset >= to {
			t.Errorf("window [%d,%d) does not cover %d", from, to, tc.offset)
		}
	}
}
