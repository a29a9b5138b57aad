package engine_test

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hermes/internal/config"
	"hermes/internal/db"
	"hermes/internal/domain"
	"hermes/internal/engine"
	"hermes/internal/knowledge"
	"hermes/internal/migrate"
	"hermes/internal/repo"
	"hermes/internal/richnote"
)

type testEnv struct {
	Engine engine.Engine
	Ctx    context.Context
}

func newTestEnv(t *testing.T) testEnv {
	t.Helper()
	dir := t.TempDir()
	conn, err := db.Open(db.Config{Workspace: dir})
	require.NoError(t, err, "open db")
	t.Cleanup(func() { conn.Close() })
	require.NoError(t, migrate.Migrate(conn), "migrate")
	cfg := config.Default()
	cfg.Diary.Timezone = "UTC"
	eng := engine.New(conn, cfg, zerolog.Nop())
	eng.Now = func() time.Time { return time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC) }
	return testEnv{Engine: eng, Ctx: context.Background()}
}

func sampleSnapshot() domain.Snapshot {
	return domain.Snapshot{
		Tasks: []domain.Task{
			{ID: "task_with_docs", Title: "Ação Com Docs", CreatedAt: "2023-01-01",
				Diary: []domain.DiaryEntry{{Date: "2023-01-01T10:00:00.000Z", Note: "Primeiro registro"}}},
			{ID: "task_empty", Title: "Ação Sem Docs", CreatedAt: "2023-01-01"},
		},
		Items: []domain.StorageItem{
			{ID: "doc_1", Title: "Doc da ação.pdf", FileType: "pdf", Size: 100, CreatedAt: "2023-01-01",
				Origin: &domain.Origin{Module: "tarefas", SourceID: "task_with_docs"}},
			{ID: "health_1", Title: "Exame sangue.pdf", FileType: "pdf", Size: 120, CreatedAt: "2023-01-01",
				Origin: &domain.Origin{Module: "saude", SourceID: "exam-1"}, Tags: []string{"sangue"}},
		},
	}
}

func importSample(t *testing.T, env testEnv) {
	t.Helper()
	res, err := env.Engine.Import(env.Ctx, sampleSnapshot(), engine.ImportOptions{}, "tester")
	require.NoError(t, err)
	assert.Equal(t, engine.ImportResult{Items: 2, Tasks: 2}, res)
}

func nodeKeys(nodes []knowledge.Node) []knowledge.Key {
	out := make([]knowledge.Key, 0, len(nodes))
	for _, n := range nodes {
		out = append(out, n.Key)
	}
	return out
}

func keyPtr(k knowledge.Key) *knowledge.Key { return &k }

func TestImportRoundTrip(t *testing.T) {
	env := newTestEnv(t)
	importSample(t, env)

	snap, err := env.Engine.Snapshot(env.Ctx)
	require.NoError(t, err)
	assert.Equal(t, sampleSnapshot(), snap)
}

func TestImportMintsIDsAndReplaces(t *testing.T) {
	env := newTestEnv(t)
	importSample(t, env)

	_, err := env.Engine.Import(env.Ctx, domain.Snapshot{Items: []domain.StorageItem{{Title: "new.pdf"}}}, engine.ImportOptions{Replace: true}, "tester")
	require.NoError(t, err)
	snap, err := env.Engine.Snapshot(env.Ctx)
	require.NoError(t, err)
	require.Len(t, snap.Items, 1)
	assert.NotEmpty(t, snap.Items[0].ID)
	assert.Empty(t, snap.Tasks)

	_, err = env.Engine.Import(env.Ctx, domain.Snapshot{Items: []domain.StorageItem{{ID: "acao::x"}}}, engine.ImportOptions{}, "tester")
	assert.ErrorIs(t, err, engine.ErrInvalid)
}

func TestBrowse(t *testing.T) {
	env := newTestEnv(t)
	importSample(t, env)

	top, err := env.Engine.Browse(env.Ctx, nil)
	require.NoError(t, err)
	assert.Len(t, top, 3)

	actions, err := env.Engine.Browse(env.Ctx, keyPtr(knowledge.RootKey(knowledge.DomainActions)))
	require.NoError(t, err)
	assert.Equal(t, []knowledge.Key{knowledge.ActionKey("task_with_docs")}, nodeKeys(actions))

	inside, err := env.Engine.Browse(env.Ctx, keyPtr(knowledge.ActionKey("task_with_docs")))
	require.NoError(t, err)
	assert.ElementsMatch(t, []knowledge.Key{knowledge.ItemKey("doc_1"), knowledge.DiaryKey("task_with_docs")}, nodeKeys(inside))
}

func TestDeleteTaskLeavesOrphanFolder(t *testing.T) {
	env := newTestEnv(t)
	importSample(t, env)

	require.NoError(t, env.Engine.DeleteTask(env.Ctx, "task_with_docs", "tester"))
	assert.ErrorIs(t, env.Engine.DeleteTask(env.Ctx, "task_with_docs", "tester"), repo.ErrNotFound)

	folder, err := env.Engine.Node(env.Ctx, knowledge.ActionKey("task_with_docs"))
	require.NoError(t, err)
	assert.Equal(t, knowledge.KindOrphanActionFolder, folder.Kind)
	assert.Equal(t, "Ação sem cadastro (task_wit)", folder.Title)

	n, err := env.Engine.SetOrphanTitle(env.Ctx, "task_with_docs", "Reforma antiga", "tester")
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
	folder, err = env.Engine.Node(env.Ctx, knowledge.ActionKey("task_with_docs"))
	require.NoError(t, err)
	assert.Equal(t, "Reforma antiga", folder.Title)

	inside, err := env.Engine.Browse(env.Ctx, keyPtr(folder.Key))
	require.NoError(t, err)
	assert.Equal(t, []knowledge.Key{knowledge.ItemKey("doc_1")}, nodeKeys(inside), "no diary for a deleted task")

	_, err = env.Engine.SetOrphanTitle(env.Ctx, "task_empty", "x", "tester")
	assert.ErrorIs(t, err, engine.ErrInvalid)
	_, err = env.Engine.SetOrphanTitle(env.Ctx, "never", "x", "tester")
	assert.ErrorIs(t, err, repo.ErrNotFound)
}

func TestAppendNotes(t *testing.T) {
	env := newTestEnv(t)
	importSample(t, env)

	_, err := env.Engine.AppendNote(env.Ctx, "task_with_docs", "Visita técnica", "tester")
	require.NoError(t, err)
	entry, err := env.Engine.AppendRichNote(env.Ctx, "task_with_docs", richnote.Kind("link"), "Drive", "drive.example.com/x", "tester")
	require.NoError(t, err)
	assert.Equal(t, `LINK::JSON::{"n":"Drive","v":"https://drive.example.com/x"}`, entry.Note)

	_, err = env.Engine.AppendNote(env.Ctx, "task_with_docs", "  ", "tester")
	assert.ErrorIs(t, err, engine.ErrInvalid)
	_, err = env.Engine.AppendRichNote(env.Ctx, "task_with_docs", "PHONE", "", "1", "tester")
	assert.ErrorIs(t, err, engine.ErrInvalid)
	_, err = env.Engine.AppendNote(env.Ctx, "missing", "x", "tester")
	assert.ErrorIs(t, err, repo.ErrNotFound)

	diary, err := env.Engine.Diary(env.Ctx, "task_with_docs")
	require.NoError(t, err)
	assert.Equal(t, "Ação: Ação Com Docs\nID: task_with_docs\n\n"+
		"1. [01/01/2023, 10:00:00] Primeiro registro\n"+
		"2. [01/01/2024, 00:00:00] Visita técnica\n"+
		"3. [01/01/2024, 00:00:00] Link: Drive (https://drive.example.com/x)\n", diary.Text)
	assert.Equal(t, int64(len(diary.Text)), diary.Size)
}

func TestSaveItemValidation(t *testing.T) {
	env := newTestEnv(t)
	importSample(t, env)

	cases := map[string]domain.StorageItem{
		"blank title":      {Title: " "},
		"reserved id":      {ID: "root::saude", Title: "x"},
		"missing parent":   {Title: "x", ParentID: strPtr("nope")},
		"file parent":      {Title: "x", ParentID: strPtr("doc_1")},
		"diary parent":     {Title: "x", ParentID: strPtr("diario::task_with_docs")},
		"unknown root":     {Title: "x", ParentID: strPtr("root::financas")},
		"self parent":      {ID: "f", Title: "x", IsFolder: true, ParentID: strPtr("f")},
		"actions root":     {Title: "x", ParentID: strPtr("root::acoes")},
		"unknown action":   {Title: "x", ParentID: strPtr("acao::nope")},
		"wrong domain":     {Title: "x", Category: "Projetos", ParentID: strPtr("root::saude")},
		"folder in action": {Title: "x", IsFolder: true, ParentID: strPtr("acao::task_empty")},
		"other reference":  {Title: "x", ParentID: strPtr("acao::task_empty"), Origin: &domain.Origin{Module: "tarefas", SourceID: "task_with_docs"}},
	}
	for name, item := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := env.Engine.SaveItem(env.Ctx, item, "tester")
			assert.ErrorIs(t, err, engine.ErrInvalid)
		})
	}
}

// browseAll walks every folder reachable from the top level and maps each
// listed key to the folder it was listed in.
func browseAll(t *testing.T, env testEnv) map[knowledge.Key]knowledge.Key {
	t.Helper()
	listedIn := map[knowledge.Key]knowledge.Key{}
	top, err := env.Engine.Browse(env.Ctx, nil)
	require.NoError(t, err)
	queue := top
	for len(queue) > 0 {
		n := queue[0]
		queue = queue[1:]
		if !n.IsFolder() {
			continue
		}
		children, err := env.Engine.Browse(env.Ctx, keyPtr(n.Key))
		require.NoError(t, err)
		for _, c := range children {
			if _, seen := listedIn[c.Key]; seen {
				continue
			}
			listedIn[c.Key] = n.Key
			queue = append(queue, c)
		}
	}
	return listedIn
}

func TestSaveItemUnderVirtualFolder(t *testing.T) {
	env := newTestEnv(t)
	importSample(t, env)

	cases := []struct {
		name   string
		item   domain.StorageItem
		folder knowledge.Key
	}{
		{"health root", domain.StorageItem{Title: "Exame.pdf", Category: "saude", ParentID: strPtr("root::saude")},
			knowledge.RootKey(knowledge.DomainHealth)},
		{"health root without category", domain.StorageItem{Title: "Laudo.pdf", ParentID: strPtr("root::saude")},
			knowledge.RootKey(knowledge.DomainHealth)},
		{"projects root", domain.StorageItem{Title: "Planta.pdf", ParentID: strPtr("root::projetos")},
			knowledge.RootKey(knowledge.DomainProjects)},
		{"action folder", domain.StorageItem{Title: "Recibo.pdf", ParentID: strPtr("acao::task_x")},
			knowledge.ActionKey("task_x")},
		{"empty action folder", domain.StorageItem{Title: "Nota.pdf", ParentID: strPtr("acao::task_empty")},
			knowledge.ActionKey("task_empty")},
	}
	_, err := env.Engine.SaveTask(env.Ctx, domain.Task{ID: "task_x", Title: "Tarefa X"}, "tester")
	require.NoError(t, err)

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			saved, err := env.Engine.SaveItem(env.Ctx, tc.item, "tester")
			require.NoError(t, err)
			assert.Nil(t, saved.ParentID)

			listedIn := browseAll(t, env)
			assert.Equal(t, tc.folder, listedIn[knowledge.ItemKey(saved.ID)])

			path, err := env.Engine.Breadcrumb(env.Ctx, knowledge.ItemKey(saved.ID))
			require.NoError(t, err)
			require.GreaterOrEqual(t, len(path), 2)
			assert.Equal(t, tc.folder, path[len(path)-2].Key)
		})
	}

	link, err := env.Engine.AddLink(env.Ctx, "Planta", "example.com/planta", strPtr("acao::task_with_docs"), "tester")
	require.NoError(t, err)
	assert.Equal(t, &domain.Origin{Module: "tarefas", SourceID: "task_with_docs"}, link.Origin)
	assert.Equal(t, knowledge.ActionKey("task_with_docs"), browseAll(t, env)[knowledge.ItemKey(link.ID)])
}

func TestSaveItemIntoOrphanFolder(t *testing.T) {
	env := newTestEnv(t)
	importSample(t, env)
	require.NoError(t, env.Engine.DeleteTask(env.Ctx, "task_with_docs", "tester"))

	saved, err := env.Engine.SaveItem(env.Ctx, domain.StorageItem{Title: "Extra.pdf", ParentID: strPtr("acao::task_with_docs")}, "tester")
	require.NoError(t, err)
	assert.Equal(t, knowledge.ActionKey("task_with_docs"), browseAll(t, env)[knowledge.ItemKey(saved.ID)])
}

func TestItemLifecycle(t *testing.T) {
	env := newTestEnv(t)
	folder, err := env.Engine.SaveItem(env.Ctx, domain.StorageItem{Title: "Obra", IsFolder: true}, "tester")
	require.NoError(t, err)
	assert.Equal(t, "folder", folder.FileType)
	assert.Equal(t, "2024-01-01T00:00:00Z", folder.CreatedAt)

	file, err := env.Engine.SaveItem(env.Ctx, domain.StorageItem{Title: "planta.pdf", FileType: "pdf", ParentID: &folder.ID}, "tester")
	require.NoError(t, err)
	link, err := env.Engine.AddLink(env.Ctx, "", "example.com", &folder.ID, "tester")
	require.NoError(t, err)
	assert.Equal(t, "https://example.com", link.URL)
	assert.Equal(t, "https://example.com", link.Title)
	assert.Equal(t, engine.LinkFileType, link.FileType)

	renamed, err := env.Engine.RenameItem(env.Ctx, file.ID, "planta baixa/final", "tester")
	require.NoError(t, err)
	assert.Equal(t, "planta baixa-final.pdf", renamed.Title)

	children, err := env.Engine.Browse(env.Ctx, keyPtr(knowledge.ItemKey(folder.ID)))
	require.NoError(t, err)
	assert.Len(t, children, 2)

	assert.ErrorIs(t, env.Engine.DeleteItem(env.Ctx, folder.ID, "tester"), engine.ErrInvalid)
	require.NoError(t, env.Engine.DeleteItem(env.Ctx, file.ID, "tester"))
	require.NoError(t, env.Engine.DeleteItem(env.Ctx, link.ID, "tester"))
	require.NoError(t, env.Engine.DeleteItem(env.Ctx, folder.ID, "tester"))
	assert.ErrorIs(t, env.Engine.DeleteItem(env.Ctx, folder.ID, "tester"), repo.ErrNotFound)

	detail, err := env.Engine.Item(env.Ctx, folder.ID)
	assert.ErrorIs(t, err, repo.ErrNotFound)
	assert.Empty(t, detail.Item.ID)
}

func TestSaveTaskKeepsDiaryOnRename(t *testing.T) {
	env := newTestEnv(t)
	importSample(t, env)

	task, err := env.Engine.SaveTask(env.Ctx, domain.Task{ID: "task_with_docs", Title: "Novo título"}, "tester")
	require.NoError(t, err)
	assert.Equal(t, "Novo título", task.Title)
	assert.Equal(t, "2023-01-01", task.CreatedAt)
	assert.Len(t, task.Diary, 1)

	created, err := env.Engine.SaveTask(env.Ctx, domain.Task{Title: "Outra"}, "tester")
	require.NoError(t, err)
	assert.NotEmpty(t, created.ID)
	assert.Equal(t, "2024-01-01T00:00:00Z", created.CreatedAt)
}

func TestSearchAndBreadcrumb(t *testing.T) {
	env := newTestEnv(t)
	importSample(t, env)

	res, err := env.Engine.Search(env.Ctx, "doc", knowledge.SearchFiles)
	require.NoError(t, err)
	assert.ElementsMatch(t, []knowledge.Key{knowledge.ItemKey("doc_1"), knowledge.DiaryKey("task_with_docs")}, nodeKeys(res.Nodes))
	assert.Equal(t, []knowledge.Key{knowledge.ActionKey("task_with_docs"), knowledge.RootKey(knowledge.DomainActions)}, res.Expand)

	_, err = env.Engine.Search(env.Ctx, " ", knowledge.SearchAll)
	assert.ErrorIs(t, err, engine.ErrInvalid)

	path, err := env.Engine.Breadcrumb(env.Ctx, knowledge.ItemKey("health_1"))
	require.NoError(t, err)
	assert.Equal(t, []knowledge.Key{knowledge.RootKey(knowledge.DomainHealth), knowledge.ItemKey("health_1")}, nodeKeys(path))
	_, err = env.Engine.Breadcrumb(env.Ctx, knowledge.ItemKey("missing"))
	assert.ErrorIs(t, err, repo.ErrNotFound)
}

func TestItemDetailAndCategories(t *testing.T) {
	env := newTestEnv(t)
	importSample(t, env)
	_, err := env.Engine.SaveItem(env.Ctx, domain.StorageItem{Title: "a", Category: "Saúde"}, "tester")
	require.NoError(t, err)

	detail, err := env.Engine.Item(env.Ctx, "doc_1")
	require.NoError(t, err)
	assert.Equal(t, knowledge.DomainActions, detail.Domain)
	assert.Equal(t, knowledge.OriginInfo{Label: "Ação / Tarefa", Title: "Ação Com Docs"}, detail.Origin)

	cats, err := env.Engine.Categories(env.Ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"Saúde"}, cats)
}

func TestItemDetailReportsStoreErrors(t *testing.T) {
	env := newTestEnv(t)
	importSample(t, env)

	// unknown origin tasks are a label, not an error
	detail, err := env.Engine.Item(env.Ctx, "health_1")
	require.NoError(t, err)
	assert.Equal(t, knowledge.DomainHealth, detail.Domain)

	_, err = env.Engine.DB.ExecContext(env.Ctx, `DROP TABLE task_diary_entries`)
	require.NoError(t, err)
	_, err = env.Engine.Item(env.Ctx, "doc_1")
	require.Error(t, err)
	assert.NotErrorIs(t, err, repo.ErrNotFound)
}

func TestMutationsAreLogged(t *testing.T) {
	env := newTestEnv(t)
	importSample(t, env)
	_, err := env.Engine.AppendNote(env.Ctx, "task_empty", "ok", "ana")
	require.NoError(t, err)

	evts, err := env.Engine.ListEvents(env.Ctx, 10, "", "")
	require.NoError(t, err)
	require.Len(t, evts, 2)
	assert.Equal(t, "diary.appended", evts[0].Type)
	assert.Equal(t, "ana", evts[0].ActorID)
	assert.Equal(t, "task_empty", evts[0].EntityID)
	assert.Equal(t, "2024-01-01T00:00:00Z", evts[0].TS)
	assert.Equal(t, "snapshot.imported", evts[1].Type)

	evts, err = env.Engine.ListEvents(env.Ctx, 10, "task", "task_empty")
	require.NoError(t, err)
	assert.Len(t, evts, 1)
}

func strPtr(s string) *string { return &s }
