package repo

import (
	"context"
	"database/sql"

	"hermes/internal/domain"
)

func (r Repo) ListTasks(ctx context.Context) ([]domain.Task, error) {
	return listTasks(ctx, r.DB)
}

func (r Repo) ListTasksTx(ctx context.Context, tx *sql.Tx) ([]domain.Task, error) {
	return listTasks(ctx, tx)
}

func listTasks(ctx context.Context, q querier) ([]domain.Task, error) {
	rows, err := q.QueryContext(ctx, `SELECT id,title,created_at FROM tasks ORDER BY rowid`)
	if err != nil {
		return nil, err
	}
	var res []domain.Task
	index := map[string]int{}
	for rows.Next() {
		var t domain.Task
		if err := rows.Scan(&t.ID, &t.Title, &t.CreatedAt); err != nil {
			rows.Close()
			return nil, err
		}
		index[t.ID] = len(res)
		res = append(res, t)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	entries, err := q.QueryContext(ctx, `SELECT task_id,ts,note FROM task_diary_entries ORDER BY task_id, id`)
	if err != nil {
		return nil, err
	}
	defer entries.Close()
	for entries.Next() {
		var taskID string
		var e domain.DiaryEntry
		if err := entries.Scan(&taskID, &e.Date, &e.Note); err != nil {
			return nil, err
		}
		if i, ok := index[taskID]; ok {
			res[i].Diary = append(res[i].Diary, e)
		}
	}
	return res, entries.Err()
}

func (r Repo) GetTask(ctx context.Context, id string) (domain.Task, error) {
	return getTask(ctx, r.DB, id)
}

func (r Repo) GetTaskTx(ctx context.Context, tx *sql.Tx, id string) (domain.Task, error) {
	return getTask(ctx, tx, id)
}

func getTask(ctx context.Context, q querier, id string) (domain.Task, error) {
	var t domain.Task
	err := q.QueryRowContext(ctx, `SELECT id,title,created_at FROM tasks WHERE id=?`, id).Scan(&t.ID, &t.Title, &t.CreatedAt)
	if err == sql.ErrNoRows {
		return t, ErrNotFound
	}
	if err != nil {
		return t, err
	}
	rows, err := q.QueryContext(ctx, `SELECT ts,note FROM task_diary_entries WHERE task_id=? ORDER BY id`, id)
	if err != nil {
		return t, err
	}
	defer rows.Close()
	for rows.Next() {
		var e domain.DiaryEntry
		if err := rows.Scan(&e.Date, &e.Note); err != nil {
			return t, err
		}
		t.Diary = append(t.Diary, e)
	}
	return t, rows.Err()
}

// UpsertTask inserts or updates the task and replaces its diary.
func (r Repo) UpsertTask(ctx context.Context, tx *sql.Tx, t domain.Task) error {
	if _, err := tx.ExecContext(ctx, `INSERT INTO tasks(id,title,created_at) VALUES (?,?,?)
ON CONFLICT(id) DO UPDATE SET title=excluded.title, created_at=excluded.created_at`, t.ID, t.Title, t.CreatedAt); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM task_diary_entries WHERE task_id=?`, t.ID); err != nil {
		return err
	}
	for _, e := range t.Diary {
		if err := r.AppendDiaryEntry(ctx, tx, t.ID, e); err != nil {
			return err
		}
	}
	return nil
}

func (r Repo) RenameTask(ctx context.Context, tx *sql.Tx, id, title string) error {
	res, err := tx.ExecContext(ctx, `UPDATE tasks SET title=? WHERE id=?`, title, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// DeleteTask removes the task and its diary. Items referencing it are kept
// and show up under an orphan folder afterwards.
func (r Repo) DeleteTask(ctx context.Context, tx *sql.Tx, id string) error {
	if _, err := tx.ExecContext(ctx, `DELETE FROM task_diary_entries WHERE task_id=?`, id); err != nil {
		return err
	}
	res, err := tx.ExecContext(ctx, `DELETE FROM tasks WHERE id=?`, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (r Repo) AppendDiaryEntry(ctx context.Context, tx *sql.Tx, taskID string, e domain.DiaryEntry) error {
	_, err := tx.ExecContext(ctx, `INSERT INTO task_diary_entries(task_id,ts,note) VALUES (?,?,?)`, taskID, e.Date, e.Note)
	return err
}
