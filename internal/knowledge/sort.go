package knowledge

import (
	"sort"
	"strings"
	"time"
)

var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// parseTime reads the timestamp formats found in stored records.
func parseTime(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// sortTime maps unreadable timestamps to the zero time so they sort as oldest.
func sortTime(s string) time.Time {
	t, _ := parseTime(s)
	return t
}

// SortNodes orders folders before files and, within each group, newest first.
// The sort is stable, so nodes with equal or unreadable dates keep their input order.
func SortNodes(nodes []Node) {
	sort.SliceStable(nodes, func(i, j int) bool {
		a, b := nodes[i], nodes[j]
		if a.IsFolder() != b.IsFolder() {
			return a.IsFolder()
		}
		return sortTime(a.CreatedAt).After(sortTime(b.CreatedAt))
	})
}
