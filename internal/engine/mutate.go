package engine

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"hermes/internal/domain"
	"hermes/internal/events"
	"hermes/internal/knowledge"
	"hermes/internal/repo"
	"hermes/internal/richnote"
)

const (
	LinkFileType = "link"

	entityItem = "item"
	entityTask = "task"
)

// withTx runs fn in a transaction and commits when it returns nil.
func (e Engine) withTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	if err := fn(tx); err != nil {
		return err
	}
	return tx.Commit()
}

// placeItem resolves the parent of item. A stored folder stays in parent_id.
// Virtual folders are not stored: a health or projects root becomes an item
// without parent in that domain, and an action folder becomes an origin
// reference to its task.
func (e Engine) placeItem(ctx context.Context, tx *sql.Tx, item domain.StorageItem) (domain.StorageItem, error) {
	if item.ParentID == nil || strings.TrimSpace(*item.ParentID) == "" {
		item.ParentID = nil
		return item, nil
	}
	key := knowledge.ParseKey(strings.TrimSpace(*item.ParentID))
	switch key.Kind {
	case knowledge.KeyRoot:
		return placeInRoot(item, knowledge.Domain(key.Value))
	case knowledge.KeyAction:
		return e.placeInAction(ctx, tx, item, key.Value)
	case knowledge.KeyDiary:
		return item, invalid("a diary cannot hold items")
	}
	if key.Value == item.ID {
		return item, invalid("item %s cannot be its own parent", item.ID)
	}
	parent, err := e.Repo.GetItemTx(ctx, tx, key.Value)
	if errors.Is(err, repo.ErrNotFound) {
		return item, invalid("parent %s does not exist", key.Value)
	}
	if err != nil {
		return item, err
	}
	if !parent.IsFolder {
		return item, invalid("parent %s is not a folder", key.Value)
	}
	return item, nil
}

func placeInRoot(item domain.StorageItem, d knowledge.Domain) (domain.StorageItem, error) {
	switch d {
	case knowledge.DomainActions:
		return item, invalid("the actions root only holds action folders; use %s as parent", knowledge.ActionKey("<task id>"))
	case knowledge.DomainHealth, knowledge.DomainProjects:
	default:
		return item, invalid("unknown root %q", string(d))
	}
	item.ParentID = nil
	if strings.TrimSpace(item.Category) == "" && knowledge.Classify(item) != d {
		item.Category = knowledge.RootTitle(d)
	}
	if got := knowledge.Classify(item); got != d {
		return item, invalid("item belongs to %s, not %s", got, d)
	}
	return item, nil
}

func (e Engine) placeInAction(ctx context.Context, tx *sql.Tx, item domain.StorageItem, taskID string) (domain.StorageItem, error) {
	if item.IsFolder {
		return item, invalid("action folders hold files only")
	}
	if _, err := e.Repo.GetTaskTx(ctx, tx, taskID); err != nil {
		if !errors.Is(err, repo.ErrNotFound) {
			return item, err
		}
		if ok, err := e.hasReferences(ctx, tx, taskID); err != nil {
			return item, err
		} else if !ok {
			return item, invalid("action folder %s does not exist", taskID)
		}
	}
	if item.Origin == nil {
		item.Origin = &domain.Origin{Module: "tarefas", SourceID: taskID}
	} else if src := strings.TrimSpace(item.Origin.SourceID); src != taskID {
		return item, invalid("item references %q, not task %s", src, taskID)
	}
	item.ParentID = nil
	if got := knowledge.Classify(item); got != knowledge.DomainActions {
		return item, invalid("item belongs to %s, not to an action folder", got)
	}
	return item, nil
}

// hasReferences reports whether an actions item references taskID, which
// keeps an orphan action folder alive after its task is gone.
func (e Engine) hasReferences(ctx context.Context, tx *sql.Tx, taskID string) (bool, error) {
	items, err := e.Repo.ListItemsTx(ctx, tx)
	if err != nil {
		return false, err
	}
	for _, it := range items {
		if it.Origin != nil && strings.TrimSpace(it.Origin.SourceID) == taskID && knowledge.Classify(it) == knowledge.DomainActions {
			return true, nil
		}
	}
	return false, nil
}

// SaveItem creates or replaces a stored item. A missing id is minted and a
// missing creation date is set to now.
func (e Engine) SaveItem(ctx context.Context, item domain.StorageItem, actorID string) (domain.StorageItem, error) {
	item.Title = strings.TrimSpace(item.Title)
	if item.Title == "" {
		return domain.StorageItem{}, invalid("title is required")
	}
	if item.ID == "" {
		item.ID = uuid.NewString()
	}
	if err := checkID(entityItem, item.ID); err != nil {
		return domain.StorageItem{}, err
	}
	if item.CreatedAt == "" {
		item.CreatedAt = e.stamp()
	}
	if item.IsFolder && item.FileType == "" {
		item.FileType = "folder"
	}
	err := e.withTx(ctx, func(tx *sql.Tx) error {
		placed, err := e.placeItem(ctx, tx, item)
		if err != nil {
			return err
		}
		item = placed
		if err := e.Repo.UpsertItem(ctx, tx, item); err != nil {
			return fmt.Errorf("save item: %w", err)
		}
		return e.eventWriter().Append(ctx, tx, events.ItemCreated, entityItem, item.ID, actorOrDefault(actorID),
			events.EventPayload{"title": item.Title, "folder": item.IsFolder})
	})
	if err != nil {
		return domain.StorageItem{}, err
	}
	e.Log.Info().Str("item_id", item.ID).Str("title", item.Title).Msg("item saved")
	return item, nil
}

// AddLink stores a link item; the URL gets an https:// scheme when it has none.
func (e Engine) AddLink(ctx context.Context, title, url string, parentID *string, actorID string) (domain.StorageItem, error) {
	url = strings.TrimSpace(url)
	if url == "" {
		return domain.StorageItem{}, invalid("url is required")
	}
	url = richnote.EnsureHTTPURL(url)
	if strings.TrimSpace(title) == "" {
		title = url
	}
	return e.SaveItem(ctx, domain.StorageItem{
		Title:    title,
		FileType: LinkFileType,
		ParentID: parentID,
		URL:      url,
	}, actorID)
}

// RenameItem renames an item. Files keep their extension when the new name has none.
func (e Engine) RenameItem(ctx context.Context, id, desired, actorID string) (domain.StorageItem, error) {
	if strings.TrimSpace(desired) == "" {
		return domain.StorageItem{}, invalid("new name is required")
	}
	var item domain.StorageItem
	err := e.withTx(ctx, func(tx *sql.Tx) error {
		var err error
		item, err = e.Repo.GetItemTx(ctx, tx, id)
		if err != nil {
			return fmt.Errorf("item %s: %w", id, err)
		}
		old := item.Title
		if item.IsFolder || item.FileType == LinkFileType {
			item.Title = strings.TrimSpace(desired)
		} else {
			item.Title = richnote.RenameKeepingExtension(old, desired)
		}
		if err := e.Repo.RenameItem(ctx, tx, id, item.Title); err != nil {
			return err
		}
		return e.eventWriter().Append(ctx, tx, events.ItemRenamed, entityItem, id, actorOrDefault(actorID),
			events.EventPayload{"from": old, "to": item.Title})
	})
	if err != nil {
		return domain.StorageItem{}, err
	}
	e.Log.Info().Str("item_id", id).Str("title", item.Title).Msg("item renamed")
	return item, nil
}

// DeleteItem removes an item. Folders must be empty.
func (e Engine) DeleteItem(ctx context.Context, id, actorID string) error {
	err := e.withTx(ctx, func(tx *sql.Tx) error {
		item, err := e.Repo.GetItemTx(ctx, tx, id)
		if err != nil {
			return fmt.Errorf("item %s: %w", id, err)
		}
		if item.IsFolder {
			n, err := e.Repo.CountChildren(ctx, tx, id)
			if err != nil {
				return err
			}
			if n > 0 {
				return invalid("folder %s is not empty (%d items)", id, n)
			}
		}
		if err := e.Repo.DeleteItem(ctx, tx, id); err != nil {
			return err
		}
		return e.eventWriter().Append(ctx, tx, events.ItemDeleted, entityItem, id, actorOrDefault(actorID),
			events.EventPayload{"title": item.Title})
	})
	if err != nil {
		return err
	}
	e.Log.Info().Str("item_id", id).Msg("item deleted")
	return nil
}

// SaveTask creates a task with its diary, or renames an existing one keeping its diary.
func (e Engine) SaveTask(ctx context.Context, task domain.Task, actorID string) (domain.Task, error) {
	task.Title = strings.TrimSpace(task.Title)
	if task.Title == "" {
		return domain.Task{}, invalid("title is required")
	}
	if task.ID == "" {
		task.ID = uuid.NewString()
	}
	if err := checkID(entityTask, task.ID); err != nil {
		return domain.Task{}, err
	}
	err := e.withTx(ctx, func(tx *sql.Tx) error {
		existing, err := e.Repo.GetTaskTx(ctx, tx, task.ID)
		switch {
		case errors.Is(err, repo.ErrNotFound):
			if task.CreatedAt == "" {
				task.CreatedAt = e.stamp()
			}
			if err := e.Repo.UpsertTask(ctx, tx, task); err != nil {
				return fmt.Errorf("insert task: %w", err)
			}
		case err != nil:
			return err
		default:
			if err := e.Repo.RenameTask(ctx, tx, task.ID, task.Title); err != nil {
				return err
			}
			existing.Title = task.Title
			task = existing
		}
		return e.eventWriter().Append(ctx, tx, events.TaskSaved, entityTask, task.ID, actorOrDefault(actorID),
			events.EventPayload{"title": task.Title})
	})
	if err != nil {
		return domain.Task{}, err
	}
	e.Log.Info().Str("task_id", task.ID).Str("title", task.Title).Msg("task saved")
	return task, nil
}

// DeleteTask removes a task. Items that referenced it move to an orphan folder.
func (e Engine) DeleteTask(ctx context.Context, id, actorID string) error {
	err := e.withTx(ctx, func(tx *sql.Tx) error {
		if err := e.Repo.DeleteTask(ctx, tx, id); err != nil {
			return fmt.Errorf("task %s: %w", id, err)
		}
		return e.eventWriter().Append(ctx, tx, events.TaskDeleted, entityTask, id, actorOrDefault(actorID), nil)
	})
	if err != nil {
		return err
	}
	e.Log.Info().Str("task_id", id).Msg("task deleted")
	return nil
}

// AppendNote adds a plain diary entry stamped with the current time.
func (e Engine) AppendNote(ctx context.Context, taskID, note, actorID string) (domain.DiaryEntry, error) {
	if strings.TrimSpace(note) == "" {
		return domain.DiaryEntry{}, invalid("note is required")
	}
	return e.appendEntry(ctx, taskID, note, actorID)
}

// AppendRichNote adds a LINK, CONTACT or FILE entry encoded in the current format.
func (e Engine) AppendRichNote(ctx context.Context, taskID string, kind richnote.Kind, name, value, actorID string) (domain.DiaryEntry, error) {
	kind, err := richnote.ParseKind(string(kind))
	if err != nil {
		return domain.DiaryEntry{}, invalid("%v", err)
	}
	value = strings.TrimSpace(value)
	if value == "" {
		return domain.DiaryEntry{}, invalid("value is required")
	}
	if kind == richnote.KindLink {
		value = richnote.EnsureHTTPURL(value)
	}
	return e.appendEntry(ctx, taskID, richnote.Encode(kind, strings.TrimSpace(name), value), actorID)
}

func (e Engine) appendEntry(ctx context.Context, taskID, note, actorID string) (domain.DiaryEntry, error) {
	entry := domain.DiaryEntry{Date: e.stamp(), Note: note}
	err := e.withTx(ctx, func(tx *sql.Tx) error {
		if _, err := e.Repo.GetTaskTx(ctx, tx, taskID); err != nil {
			return fmt.Errorf("task %s: %w", taskID, err)
		}
		if err := e.Repo.AppendDiaryEntry(ctx, tx, taskID, entry); err != nil {
			return err
		}
		return e.eventWriter().Append(ctx, tx, events.DiaryAppended, entityTask, taskID, actorOrDefault(actorID),
			events.EventPayload{"date": entry.Date})
	})
	if err != nil {
		return domain.DiaryEntry{}, err
	}
	e.Log.Info().Str("task_id", taskID).Msg("diary entry appended")
	return entry, nil
}

// SetOrphanTitle labels the orphan folder of a deleted task by storing title
// on every item that references it. A blank title restores the placeholder.
func (e Engine) SetOrphanTitle(ctx context.Context, taskID, title, actorID string) (int64, error) {
	taskID = strings.TrimSpace(taskID)
	title = strings.TrimSpace(title)
	var n int64
	err := e.withTx(ctx, func(tx *sql.Tx) error {
		_, err := e.Repo.GetTaskTx(ctx, tx, taskID)
		if err == nil {
			return invalid("task %s exists; rename the task instead", taskID)
		}
		if !errors.Is(err, repo.ErrNotFound) {
			return err
		}
		n, err = e.Repo.SetOrphanTitle(ctx, tx, taskID, title)
		if err != nil {
			return err
		}
		if n == 0 {
			return fmt.Errorf("no items reference task %s: %w", taskID, repo.ErrNotFound)
		}
		return e.eventWriter().Append(ctx, tx, events.OrphanRetitled, entityTask, taskID, actorOrDefault(actorID),
			events.EventPayload{"title": title, "items": n})
	})
	if err != nil {
		return 0, err
	}
	e.Log.Info().Str("task_id", taskID).Int64("items", n).Msg("orphan folder retitled")
	return n, nil
}

// ImportOptions controls Import.
type ImportOptions struct {
	// Replace clears the store before loading.
	Replace bool
}

type ImportResult struct {
	Items int `json:"items"`
	Tasks int `json:"tasks"`
}

// Import loads a snapshot in one transaction. Records without an id get a
// fresh one; records with a known id are overwritten.
func (e Engine) Import(ctx context.Context, snap domain.Snapshot, opts ImportOptions, actorID string) (ImportResult, error) {
	for i := range snap.Tasks {
		if snap.Tasks[i].ID == "" {
			snap.Tasks[i].ID = uuid.NewString()
		}
		if err := checkID(entityTask, snap.Tasks[i].ID); err != nil {
			return ImportResult{}, err
		}
	}
	for i := range snap.Items {
		if snap.Items[i].ID == "" {
			snap.Items[i].ID = uuid.NewString()
		}
		if err := checkID(entityItem, snap.Items[i].ID); err != nil {
			return ImportResult{}, err
		}
	}
	res := ImportResult{Items: len(snap.Items), Tasks: len(snap.Tasks)}
	err := e.withTx(ctx, func(tx *sql.Tx) error {
		if opts.Replace {
			if err := e.Repo.ClearAll(ctx, tx); err != nil {
				return fmt.Errorf("clear store: %w", err)
			}
		}
		for _, t := range snap.Tasks {
			if err := e.Repo.UpsertTask(ctx, tx, t); err != nil {
				return fmt.Errorf("import task %s: %w", t.ID, err)
			}
		}
		for _, it := range snap.Items {
			if err := e.Repo.UpsertItem(ctx, tx, it); err != nil {
				return fmt.Errorf("import item %s: %w", it.ID, err)
			}
		}
		return e.eventWriter().Append(ctx, tx, events.SnapshotImported, "snapshot", "", actorOrDefault(actorID),
			events.EventPayload{"items": res.Items, "tasks": res.Tasks, "replace": opts.Replace})
	})
	if err != nil {
		return ImportResult{}, err
	}
	e.Log.Info().Int("items", res.Items).Int("tasks", res.Tasks).Bool("replace", opts.Replace).Msg("snapshot imported")
	return res, nil
}

// ListEvents returns the most recent change log entries.
func (e Engine) ListEvents(ctx context.Context, limit int, entityKind, entityID string) ([]domain.Event, error) {
	return e.Repo.LatestEvents(ctx, limit, "", entityKind, entityID)
}
