package repo

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"hermes/internal/domain"
)

type Repo struct {
	DB *sql.DB
}

var ErrNotFound = errors.New("not found")

// querier is satisfied by both *sql.DB and *sql.Tx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

const itemColumns = `id,title,file_type,is_folder,parent_id,size,created_at,category,origin_module,origin_source_id,raw_text,tags_json,orphan_action_title,url`

type scanner interface {
	Scan(dest ...any) error
}

func scanItem(row scanner) (domain.StorageItem, error) {
	var it domain.StorageItem
	var parentID, originModule, originSourceID sql.NullString
	var tagsJSON string
	err := row.Scan(&it.ID, &it.Title, &it.FileType, &it.IsFolder, &parentID, &it.Size, &it.CreatedAt, &it.Category,
		&originModule, &originSourceID, &it.RawText, &tagsJSON, &it.OrphanActionTitle, &it.URL)
	if err == sql.ErrNoRows {
		return it, ErrNotFound
	}
	if err != nil {
		return it, err
	}
	if parentID.Valid {
		it.ParentID = &parentID.String
	}
	if originModule.Valid || originSourceID.Valid {
		it.Origin = &domain.Origin{Module: originModule.String, SourceID: originSourceID.String}
	}
	if tagsJSON != "" && tagsJSON != "[]" {
		if err := json.Unmarshal([]byte(tagsJSON), &it.Tags); err != nil {
			return it, fmt.Errorf("decode tags of item %s: %w", it.ID, err)
		}
	}
	return it, nil
}

func itemArgs(it domain.StorageItem) ([]any, error) {
	tags := it.Tags
	if tags == nil {
		tags = []string{}
	}
	tagsJSON, err := json.Marshal(tags)
	if err != nil {
		return nil, fmt.Errorf("encode tags: %w", err)
	}
	var module, sourceID any
	if it.Origin != nil {
		module, sourceID = nullable(it.Origin.Module), nullable(it.Origin.SourceID)
	}
	return []any{it.ID, it.Title, it.FileType, it.IsFolder, nullableStringPtr(it.ParentID), it.Size, it.CreatedAt, it.Category,
		module, sourceID, it.RawText, string(tagsJSON), it.OrphanActionTitle, it.URL}, nil
}

func (r Repo) ListItems(ctx context.Context) ([]domain.StorageItem, error) {
	return listItems(ctx, r.DB)
}

func (r Repo) ListItemsTx(ctx context.Context, tx *sql.Tx) ([]domain.StorageItem, error) {
	return listItems(ctx, tx)
}

// listItems keeps insertion order, which is the order stored folders are listed in.
func listItems(ctx context.Context, q querier) ([]domain.StorageItem, error) {
	rows, err := q.QueryContext(ctx, `SELECT `+itemColumns+` FROM storage_items ORDER BY rowid`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.StorageItem
	for rows.Next() {
		it, err := scanItem(rows)
		if err != nil {
			return nil, err
		}
		res = append(res, it)
	}
	return res, rows.Err()
}

func (r Repo) GetItem(ctx context.Context, id string) (domain.StorageItem, error) {
	return scanItem(r.DB.QueryRowContext(ctx, `SELECT `+itemColumns+` FROM storage_items WHERE id=?`, id))
}

func (r Repo) GetItemTx(ctx context.Context, tx *sql.Tx, id string) (domain.StorageItem, error) {
	return scanItem(tx.QueryRowContext(ctx, `SELECT `+itemColumns+` FROM storage_items WHERE id=?`, id))
}

// UpsertItem inserts or fully replaces the item with the same id.
func (r Repo) UpsertItem(ctx context.Context, tx *sql.Tx, it domain.StorageItem) error {
	args, err := itemArgs(it)
	if err != nil {
		return err
	}
	_, err = tx.ExecContext(ctx, `INSERT INTO storage_items(`+itemColumns+`) VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?,?)
ON CONFLICT(id) DO UPDATE SET title=excluded.title, file_type=excluded.file_type, is_folder=excluded.is_folder,
parent_id=excluded.parent_id, size=excluded.size, created_at=excluded.created_at, category=excluded.category,
origin_module=excluded.origin_module, origin_source_id=excluded.origin_source_id, raw_text=excluded.raw_text,
tags_json=excluded.tags_json, orphan_action_title=excluded.orphan_action_title, url=excluded.url`, args...)
	return err
}

func (r Repo) RenameItem(ctx context.Context, tx *sql.Tx, id, title string) error {
	res, err := tx.ExecContext(ctx, `UPDATE storage_items SET title=? WHERE id=?`, title, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (r Repo) DeleteItem(ctx context.Context, tx *sql.Tx, id string) error {
	res, err := tx.ExecContext(ctx, `DELETE FROM storage_items WHERE id=?`, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// CountChildren counts items whose parent_id is exactly parentID.
func (r Repo) CountChildren(ctx context.Context, tx *sql.Tx, parentID string) (int, error) {
	var n int
	err := tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM storage_items WHERE parent_id=?`, parentID).Scan(&n)
	return n, err
}

// SetOrphanTitle stores title on every item whose origin references taskID
// and returns how many items were updated.
func (r Repo) SetOrphanTitle(ctx context.Context, tx *sql.Tx, taskID, title string) (int64, error) {
	res, err := tx.ExecContext(ctx, `UPDATE storage_items SET orphan_action_title=? WHERE TRIM(origin_source_id)=?`, title, taskID)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// ClearAll removes every item and task, keeping the event log.
func (r Repo) ClearAll(ctx context.Context, tx *sql.Tx) error {
	for _, stmt := range []string{`DELETE FROM task_diary_entries`, `DELETE FROM tasks`, `DELETE FROM storage_items`} {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}

func nullable(v string) any {
	if v == "" {
		return nil
	}
	return v
}

func nullableStringPtr(v *string) any {
	if v == nil {
		return nil
	}
	if *v == "" {
		return nil
	}
	return *v
}
