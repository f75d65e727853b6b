package queue

// The viewer addresses rows by visual index (what the user sees, possibly
// newest-first); everything below the UI addresses them by absolute offset.
// Both mappings are their own inverse.

func VisualToOffset(i int, reversed bool, total int) int {
	if reversed {
		return total - 1 - i
	}
	return i
}

func OffsetToVisual(offset int, reversed bool, total int) int {
	if reversed {
		return total - 1 - offset
	}
	return offset
}

// VisualRange converts the visual half-open range [start, end) into the
// absolute half-open range it covers, clamped to [0, total). ok is false when
// nothing remains after clamping.
func VisualRange(start, end int, reversed bool, total int) (from, to int, ok bool) {
	if start < 0 {
		start = 0
	}
	if end > total {
		end = total
	}
	if start >= end {
		return 0, 0, false
	}
	if !reversed {
		return start, end, true
	}
	return total - end, total - start, true
}

// centerWindow returns a window of up to size offsets around offset.
func centerWindow(offset, size, total int) (from, to int) {
	if size <= 0 {
		size = 1
	}
	from = offset - size/2
	if from < 0 {
		from = 0
	}
	to = from + size
	if to > total {
		to = total
		from = to - size
		if from < 0 {
			from = 0
		}
	}
	return from, to
}
