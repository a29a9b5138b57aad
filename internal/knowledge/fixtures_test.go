package knowledge_test

import (
	"time"

	"hermes/internal/domain"
	"hermes/internal/knowledge"
)

var fixedNow = time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

func strPtr(s string) *string { return &s }

func keyPtr(k knowledge.Key) *knowledge.Key { return &k }

func sampleTasks() []domain.Task {
	return []domain.Task{
		{
			ID:        "task_with_docs",
			Title:     "Ação Com Docs",
			CreatedAt: "2023-01-01",
			Diary:     []domain.DiaryEntry{{Date: "2023-01-01T10:00:00.000Z", Note: "Primeiro registro"}},
		},
		{
			ID:        "task_empty",
			Title:     "Ação Sem Docs",
			CreatedAt: "2023-01-01",
		},
	}
}

func sampleItems() []domain.StorageItem {
	return []domain.StorageItem{
		{
			ID:        "doc_1",
			Title:     "Doc da ação.pdf",
			FileType:  "pdf",
			Size:      100,
			CreatedAt: "2023-01-01",
			Origin:    &domain.Origin{Module: "tarefas", SourceID: "task_with_docs"},
		},
		{
			ID:        "health_1",
			Title:     "Exame sangue.pdf",
			FileType:  "pdf",
			Size:      120,
			CreatedAt: "2023-01-01",
			Origin:    &domain.Origin{Module: "saude", SourceID: "exam-1"},
		},
	}
}

func keys(nodes []knowledge.Node) []knowledge.Key {
	out := make([]knowledge.Key, 0, len(nodes))
	for _, n := range nodes {
		out = append(out, n.Key)
	}
	return out
}

func find(nodes []knowledge.Node, k knowledge.Key) (knowledge.Node, bool) {
	for _, n := range nodes {
		if n.Key == k {
			return n, true
		}
	}
	return knowledge.Node{}, false
}

var rootKeys = []knowledge.Key{
	knowledge.RootKey(knowledge.DomainActions),
	knowledge.RootKey(knowledge.DomainHealth),
	knowledge.RootKey(knowledge.DomainProjects),
}
