package ui

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"proxylog/internal/model"
)

// colorizeEntry renders the index metadata of a record as colored JSON.
func colorizeEntry(e model.IndexEntry, st Styles) string {
	b, err := json.Marshal(e)
	if err != nil {
		return fmt.Sprint(e)
	}
	var v map[string]any
	if err := json.Unmarshal(b, &v); err != nil {
		return string(b)
	}
	delete(v, "summaryText")
	delete(v, "extraSummaryLines")
	return colorizeJSONRoot(v, st)
}

func colorizeJSONRoot(v any, st Styles) string {
	var b strings.Builder
	renderJSON(&b, v, st, 0)
	return b.String()
}

func renderJSON(b *strings.Builder, v any, st Styles, indent int) {
	ind := strings.Repeat("  ", indent)
	switch t := v.(type) {
	case map[string]any:
		keys := make([]string, 0, len(t))
		for k := range t {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		b.WriteString(st.JSONPunct.Render("{"))
		if len(keys) > 0 {
			b.WriteString("\n")
		}
		for i, k := range keys {
			b.WriteString(ind)
			b.WriteString("  ")
			b.WriteString(st.JSONKey.Render("\"" + escapeString(k) + "\""))
			b.WriteString(st.JSONPunct.Render(": "))
			renderJSON(b, t[k], st, indent+1)
			if i < len(keys)-1 {
				b.WriteString(st.JSONPunct.Render(","))
			}
			b.WriteString("\n")
		}
		b.WriteString(ind)
		b.WriteString(st.JSONPunct.Render("}"))
	case []any:
		b.WriteString(st.JSONPunct.Render("["))
		if len(t) > 0 {
			b.WriteString("\n")
		}
		for i, it := range t {
			b.WriteString(ind)
			b.WriteString("  ")
			renderJSON(b, it, st, indent+1)
			if i < len(t)-1 {
				b.WriteString(st.JSONPunct.Render(","))
			}
			b.WriteString("\n")
		}
		b.WriteString(ind)
		b.WriteString(st.JSONPunct.Render("]"))
	case string:
		b.WriteString(st.JSONString.Render("\"" + escapeString(t) + "\""))
	case float64:
		b.WriteString(st.JSONNumber.Render(fmt.Sprint(t)))
	case bool:
		b.WriteString(st.JSONBool.Render(fmt.Sprint(t)))
	case nil:
		b.WriteString(st.JSONNull.Render("null"))
	default:
		b.WriteString(st.JSONString.Render(fmt.Sprint(t)))
	}
}

func escapeString(s string) string {
	s = strings.ReplaceAll(s, "\\", "\\\\")
	s = strings.ReplaceAll(s, "\"", "\\\"")
	return s
}
