package repo_test

import (
	"context"
	"database/sql"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hermes/internal/db"
	"hermes/internal/domain"
	"hermes/internal/events"
	"hermes/internal/migrate"
	"hermes/internal/repo"
)

func newRepo(t *testing.T) repo.Repo {
	t.Helper()
	conn, err := db.Open(db.Config{Workspace: t.TempDir()})
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	require.NoError(t, migrate.Migrate(conn))
	return repo.Repo{DB: conn}
}

func inTx(t *testing.T, r repo.Repo, fn func(tx *sql.Tx) error) {
	t.Helper()
	tx, err := r.DB.Begin()
	require.NoError(t, err)
	defer tx.Rollback()
	require.NoError(t, fn(tx))
	require.NoError(t, tx.Commit())
}

func strPtr(s string) *string { return &s }

func TestItemRoundTrip(t *testing.T) {
	r := newRepo(t)
	ctx := context.Background()
	full := domain.StorageItem{
		ID: "i1", Title: "Laudo.pdf", FileType: "pdf", Size: 42, CreatedAt: "2024-01-01T00:00:00Z",
		Category: "Saúde", Origin: &domain.Origin{Module: "saude", SourceID: "exam-1"},
		RawText: "hemograma", Tags: []string{"sangue", "2024"}, URL: "https://drive/x",
	}
	bare := domain.StorageItem{ID: "f1", Title: "Pasta", IsFolder: true, ParentID: strPtr("acao::t1")}
	inTx(t, r, func(tx *sql.Tx) error {
		if err := r.UpsertItem(ctx, tx, full); err != nil {
			return err
		}
		return r.UpsertItem(ctx, tx, bare)
	})

	got, err := r.GetItem(ctx, "i1")
	require.NoError(t, err)
	assert.Equal(t, full, got)
	got, err = r.GetItem(ctx, "f1")
	require.NoError(t, err)
	assert.Nil(t, got.Origin)
	assert.Nil(t, got.Tags)
	assert.Equal(t, "acao::t1", *got.ParentID)

	items, err := r.ListItems(ctx)
	require.NoError(t, err)
	assert.Len(t, items, 2)

	_, err = r.GetItem(ctx, "missing")
	assert.ErrorIs(t, err, repo.ErrNotFound)
}

func TestRenameDeleteAndChildren(t *testing.T) {
	r := newRepo(t)
	ctx := context.Background()
	inTx(t, r, func(tx *sql.Tx) error {
		for _, it := range []domain.StorageItem{
			{ID: "f", Title: "Pasta", IsFolder: true},
			{ID: "c", Title: "a.pdf", ParentID: strPtr("f")},
		} {
			if err := r.UpsertItem(ctx, tx, it); err != nil {
				return err
			}
		}
		return nil
	})
	inTx(t, r, func(tx *sql.Tx) error {
		n, err := r.CountChildren(ctx, tx, "f")
		require.NoError(t, err)
		assert.Equal(t, 1, n)
		require.NoError(t, r.RenameItem(ctx, tx, "c", "b.pdf"))
		assert.ErrorIs(t, r.RenameItem(ctx, tx, "nope", "x"), repo.ErrNotFound)
		require.NoError(t, r.DeleteItem(ctx, tx, "c"))
		assert.ErrorIs(t, r.DeleteItem(ctx, tx, "c"), repo.ErrNotFound)
		return nil
	})
	items, err := r.ListItems(ctx)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "f", items[0].ID)
}

func TestTasksKeepDiaryOrder(t *testing.T) {
	r := newRepo(t)
	ctx := context.Background()
	task := domain.Task{ID: "t1", Title: "Reforma", CreatedAt: "2024-01-01", Diary: []domain.DiaryEntry{
		{Date: "2024-02-01T00:00:00Z", Note: "second by date, first inserted"},
		{Date: "2024-01-01T00:00:00Z", Note: "first by date"},
	}}
	inTx(t, r, func(tx *sql.Tx) error {
		if err := r.UpsertTask(ctx, tx, task); err != nil {
			return err
		}
		return r.AppendDiaryEntry(ctx, tx, "t1", domain.DiaryEntry{Date: "2024-03-01T00:00:00Z", Note: "third"})
	})
	got, err := r.GetTask(ctx, "t1")
	require.NoError(t, err)
	require.Len(t, got.Diary, 3)
	assert.Equal(t, "second by date, first inserted", got.Diary[0].Note)
	assert.Equal(t, "third", got.Diary[2].Note)

	inTx(t, r, func(tx *sql.Tx) error {
		require.NoError(t, r.RenameTask(ctx, tx, "t1", "Obra"))
		return r.DeleteTask(ctx, tx, "t1")
	})
	tasks, err := r.ListTasks(ctx)
	require.NoError(t, err)
	assert.Empty(t, tasks)
	_, err = r.GetTask(ctx, "t1")
	assert.ErrorIs(t, err, repo.ErrNotFound)
}

func TestSetOrphanTitleMatchesTrimmedSource(t *testing.T) {
	r := newRepo(t)
	ctx := context.Background()
	inTx(t, r, func(tx *sql.Tx) error {
		for _, it := range []domain.StorageItem{
			{ID: "a", Origin: &domain.Origin{Module: "tarefas", SourceID: "gone"}},
			{ID: "b", Origin: &domain.Origin{Module: "acoes", SourceID: " gone "}},
			{ID: "c", Origin: &domain.Origin{Module: "tarefas", SourceID: "other"}},
		} {
			if err := r.UpsertItem(ctx, tx, it); err != nil {
				return err
			}
		}
		n, err := r.SetOrphanTitle(ctx, tx, "gone", "Reforma antiga")
		require.NoError(t, err)
		assert.Equal(t, int64(2), n)
		return nil
	})
	got, err := r.GetItem(ctx, "b")
	require.NoError(t, err)
	assert.Equal(t, "Reforma antiga", got.OrphanActionTitle)
	got, err = r.GetItem(ctx, "c")
	require.NoError(t, err)
	assert.Empty(t, got.OrphanActionTitle)
}

func TestLatestEventsFilters(t *testing.T) {
	r := newRepo(t)
	ctx := context.Background()
	w := events.Writer{DB: r.DB}
	inTx(t, r, func(tx *sql.Tx) error {
		require.NoError(t, w.Append(ctx, tx, events.TaskSaved, "task", "t1", "ana", events.EventPayload{"title": "x"}))
		require.NoError(t, w.Append(ctx, tx, events.ItemCreated, "item", "i1", "ana", nil))
		return w.Append(ctx, tx, events.TaskDeleted, "task", "t1", "bob", nil)
	})

	all, err := r.LatestEvents(ctx, 10, "", "", "")
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, events.TaskDeleted, all[0].Type, "newest first")

	tasks, err := r.LatestEvents(ctx, 10, "", "task", "t1")
	require.NoError(t, err)
	assert.Len(t, tasks, 2)

	saved, err := r.LatestEvents(ctx, 1, events.TaskSaved, "", "")
	require.NoError(t, err)
	require.Len(t, saved, 1)
	assert.JSONEq(t, `{"title":"x"}`, saved[0].Payload)
}
