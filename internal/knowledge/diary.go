package knowledge

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"hermes/internal/domain"
	"hermes/internal/richnote"
)

const (
	DiaryFileType     = "txt"
	diaryDateLayout   = "02/01/2006, 15:04:05"
	diaryEmptyLine    = "Nenhum registro de acompanhamento."
	diaryOriginModule = "tarefas"
)

// BuildDiaryText renders a task's diary as plain text, oldest entry first.
// Timestamps are shown in loc; a nil loc means UTC.
func BuildDiaryText(task domain.Task, loc *time.Location) string {
	if loc == nil {
		loc = time.UTC
	}
	var b strings.Builder
	fmt.Fprintf(&b, "Ação: %s\n", task.Title)
	fmt.Fprintf(&b, "ID: %s\n\n", task.ID)

	if len(task.Diary) == 0 {
		b.WriteString(diaryEmptyLine + "\n")
		return b.String()
	}

	entries := append([]domain.DiaryEntry(nil), task.Diary...)
	sort.SliceStable(entries, func(i, j int) bool {
		return sortTime(entries[i].Date).Before(sortTime(entries[j].Date))
	})
	for i, entry := range entries {
		fmt.Fprintf(&b, "%d. [%s] %s\n", i+1, diaryDate(entry.Date, loc), renderNote(entry.Note))
	}
	return b.String()
}

func diaryDate(raw string, loc *time.Location) string {
	t, ok := parseTime(raw)
	if !ok {
		return raw
	}
	return t.In(loc).Format(diaryDateLayout)
}

func renderNote(note string) string {
	if payload, ok := richnote.Decode(note); ok {
		return richnote.Render(payload)
	}
	return strings.TrimSpace(note)
}

// NewDiaryDocument builds the read-only text document that stands for a
// task's diary inside its action folder. It is rebuilt on every read.
func NewDiaryDocument(task domain.Task, loc *time.Location) Node {
	text := BuildDiaryText(task, loc)
	parent := ActionKey(task.ID)
	return Node{
		Kind:      KindDiaryDocument,
		Key:       DiaryKey(task.ID),
		Title:     task.Title + "." + DiaryFileType,
		ParentKey: &parent,
		CreatedAt: task.CreatedAt,
		FileType:  DiaryFileType,
		Size:      int64(len(text)),
		Domain:    DomainActions,
		TaskID:    task.ID,
		Origin:    &domain.Origin{Module: diaryOriginModule, SourceID: task.ID},
		Text:      text,
	}
}

// DiaryDocuments returns one diary document per existing task referenced by
// an actions-domain item, in task order.
func DiaryDocuments(items []domain.StorageItem, tasks []domain.Task, loc *time.Location) []Node {
	refs := actionRefs(items)
	seen := map[string]bool{}
	var docs []Node
	for _, task := range tasks {
		if seen[task.ID] {
			continue
		}
		seen[task.ID] = true
		if _, ok := refs[task.ID]; ok {
			docs = append(docs, NewDiaryDocument(task, loc))
		}
	}
	return docs
}
