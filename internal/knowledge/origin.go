package knowledge

import (
	"sort"
	"strings"

	"hermes/internal/domain"
)

// Categories returns the distinct non-blank categories of items, sorted.
func Categories(items []domain.StorageItem) []string {
	seen := map[string]bool{}
	var out []string
	for _, item := range items {
		c := strings.TrimSpace(item.Category)
		if c == "" || seen[c] {
			continue
		}
		seen[c] = true
		out = append(out, c)
	}
	sort.Strings(out)
	return out
}

// OriginInfo describes where an item came from.
type OriginInfo struct {
	Label string `json:"label"`
	Title string `json:"title"`
}

// DescribeOrigin labels an item's back-reference, resolving task titles from tasks.
func DescribeOrigin(origin *domain.Origin, tasks []domain.Task) OriginInfo {
	if origin == nil {
		return OriginInfo{Label: "Upload Direto", Title: "Manual"}
	}
	switch fold(origin.Module) {
	case "tarefas", "acoes":
		for _, t := range tasks {
			if t.ID == origin.SourceID && t.Title != "" {
				return OriginInfo{Label: "Ação / Tarefa", Title: t.Title}
			}
		}
		return OriginInfo{Label: "Ação / Tarefa", Title: "Tarefa #" + origin.SourceID}
	case "sistemas":
		return OriginInfo{Label: "Log de Sistema", Title: "Log #" + origin.SourceID}
	default:
		return OriginInfo{Label: origin.Module, Title: origin.SourceID}
	}
}
