package knowledge

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"hermes/internal/domain"
)

const orphanIDPrefixLen = 8

// referencedTask returns the task id an item points at, or "".
func referencedTask(item domain.StorageItem) string {
	if item.Origin == nil {
		return ""
	}
	return strings.TrimSpace(item.Origin.SourceID)
}

// actionRefs groups the actions-domain items by the task id they reference.
func actionRefs(items []domain.StorageItem) map[string][]domain.StorageItem {
	refs := map[string][]domain.StorageItem{}
	for _, item := range items {
		taskID := referencedTask(item)
		if taskID == "" || Classify(item) != DomainActions {
			continue
		}
		refs[taskID] = append(refs[taskID], item)
	}
	return refs
}

// Synthesize returns the complete folder set: the three roots, one folder per
// referenced task, one orphan folder per referenced task that no longer exists,
// then the stored folders in input order. now stamps the orphan folders.
func Synthesize(items []domain.StorageItem, tasks []domain.Task, now time.Time) []Node {
	refs := actionRefs(items)

	known := make(map[string]bool, len(tasks))
	var taskFolders []Node
	for _, task := range tasks {
		if known[task.ID] {
			continue
		}
		known[task.ID] = true
		if _, ok := refs[task.ID]; !ok {
			continue
		}
		taskFolders = append(taskFolders, actionFolder(task))
	}

	orphanIDs := make([]string, 0, len(refs))
	for taskID := range refs {
		if !known[taskID] {
			orphanIDs = append(orphanIDs, taskID)
		}
	}
	sort.Strings(orphanIDs)
	orphans := make([]Node, 0, len(orphanIDs))
	stamp := now.UTC().Format(time.RFC3339)
	for _, taskID := range orphanIDs {
		orphans = append(orphans, orphanFolder(taskID, refs[taskID], stamp))
	}

	SortNodes(taskFolders)
	SortNodes(orphans)

	out := Roots()
	out = append(out, taskFolders...)
	out = append(out, orphans...)
	for _, item := range items {
		if item.IsFolder {
			out = append(out, FromItem(item))
		}
	}
	return out
}

func actionFolder(task domain.Task) Node {
	parent := RootKey(DomainActions)
	return Node{
		Kind:      KindActionFolder,
		Key:       ActionKey(task.ID),
		Title:     task.Title,
		ParentKey: &parent,
		CreatedAt: task.CreatedAt,
		FileType:  virtualFolderFileType,
		Domain:    DomainActions,
		TaskID:    task.ID,
	}
}

func orphanFolder(taskID string, refs []domain.StorageItem, createdAt string) Node {
	parent := RootKey(DomainActions)
	return Node{
		Kind:      KindOrphanActionFolder,
		Key:       ActionKey(taskID),
		Title:     OrphanTitle(taskID, refs),
		ParentKey: &parent,
		CreatedAt: createdAt,
		FileType:  virtualFolderFileType,
		Domain:    DomainActions,
		TaskID:    taskID,
	}
}

// OrphanTitle names the folder of a missing task. Among the referencing
// items, taken in ascending id order, the first non-blank
// orphan_action_title wins; otherwise a placeholder shows the id prefix.
func OrphanTitle(taskID string, refs []domain.StorageItem) string {
	sorted := append([]domain.StorageItem(nil), refs...)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].ID < sorted[j].ID })
	for _, item := range sorted {
		if title := strings.TrimSpace(item.OrphanActionTitle); title != "" {
			return title
		}
	}
	short := []rune(taskID)
	if len(short) > orphanIDPrefixLen {
		short = short[:orphanIDPrefixLen]
	}
	return fmt.Sprintf("Ação sem cadastro (%s)", string(short))
}
