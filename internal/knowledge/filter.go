package knowledge

import (
	"fmt"
	"strings"
	"time"

	"hermes/internal/domain"
)

// SearchMode restricts what a search may return.
type SearchMode string

const (
	SearchAll     SearchMode = "all"
	SearchFolders SearchMode = "folders"
	SearchFiles   SearchMode = "files"
)

// ParseSearchMode accepts "", all, folders or files.
func ParseSearchMode(s string) (SearchMode, error) {
	switch m := SearchMode(strings.ToLower(strings.TrimSpace(s))); m {
	case "":
		return SearchAll, nil
	case SearchAll, SearchFolders, SearchFiles:
		return m, nil
	default:
		return "", fmt.Errorf("invalid search mode %q (want all, folders or files)", s)
	}
}

// Query describes one read of the namespace. With a non-blank SearchTerm the
// search is global and Current is ignored; otherwise Current selects the
// folder to list, nil meaning the top level.
type Query struct {
	Items      []domain.StorageItem
	Tasks      []domain.Task
	Folders    []Node
	Current    *Key
	SearchTerm string
	SearchMode SearchMode
	// Location renders diary timestamps; nil means UTC.
	Location *time.Location
}

// Filter returns the nodes visible for q, sorted folders first then newest first
// (top level excepted, which keeps the fixed root order).
func Filter(q Query) []Node {
	diaries := DiaryDocuments(q.Items, q.Tasks, q.Location)
	if term := strings.TrimSpace(q.SearchTerm); term != "" {
		return search(q, diaries, term)
	}
	return browse(q, diaries)
}

func search(q Query, diaries []Node, term string) []Node {
	needle := strings.ToLower(term)
	var matches []Node
	if q.SearchMode != SearchFiles {
		for _, folder := range q.Folders {
			if folder.IsFolder() && containsFold(folder.Title, needle) {
				matches = append(matches, folder)
			}
		}
	}
	if q.SearchMode != SearchFolders {
		candidates := append(fromItems(q.Items), diaries...)
		for _, n := range candidates {
			if !n.IsFolder() && fileMatches(n, needle) {
				matches = append(matches, n)
			}
		}
	}
	out := dedupe(matches)
	SortNodes(out)
	return out
}

func fileMatches(n Node, needle string) bool {
	if containsFold(n.Title, needle) || containsFold(n.Text, needle) {
		return true
	}
	for _, tag := range n.Tags {
		if containsFold(tag, needle) {
			return true
		}
	}
	return false
}

func containsFold(s, lowerNeedle string) bool {
	return s != "" && strings.Contains(strings.ToLower(s), lowerNeedle)
}

func browse(q Query, diaries []Node) []Node {
	if q.Current == nil {
		return Roots()
	}
	current := *q.Current
	var out []Node
	switch {
	case current == RootKey(DomainActions):
		for _, folder := range q.Folders {
			if (folder.Kind == KindActionFolder || folder.Kind == KindOrphanActionFolder) && folder.parentIs(current) {
				out = append(out, folder)
			}
		}
	case current == RootKey(DomainHealth) || current == RootKey(DomainProjects):
		want := Domain(current.Value)
		for _, item := range q.Items {
			if !hasParent(item) && Classify(item) == want {
				out = append(out, FromItem(item))
			}
		}
	case current.Kind == KeyAction:
		taskID := current.Value
		for _, item := range q.Items {
			if referencedTask(item) == taskID && Classify(item) == DomainActions {
				out = append(out, FromItem(item))
			}
		}
		for _, doc := range diaries {
			if doc.TaskID == taskID {
				out = append(out, doc)
				break
			}
		}
	default:
		id := current.String()
		for _, item := range q.Items {
			if item.ParentID != nil && *item.ParentID == id {
				out = append(out, FromItem(item))
			}
		}
	}
	out = dedupe(out)
	SortNodes(out)
	return out
}

func hasParent(item domain.StorageItem) bool {
	return item.ParentID != nil && *item.ParentID != ""
}

// dedupe keeps the first node seen for each key.
func dedupe(nodes []Node) []Node {
	seen := make(map[Key]bool, len(nodes))
	out := make([]Node, 0, len(nodes))
	for _, n := range nodes {
		if seen[n.Key] {
			continue
		}
		seen[n.Key] = true
		out = append(out, n)
	}
	return out
}
