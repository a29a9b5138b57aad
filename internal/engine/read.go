package engine

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"hermes/internal/domain"
	"hermes/internal/knowledge"
	"hermes/internal/repo"
)

// View is one consistent read of the store together with the folders derived from it.
type View struct {
	Snapshot domain.Snapshot
	Folders  []knowledge.Node
	Location *time.Location
}

// Snapshot loads every item and task inside a single transaction.
func (e Engine) Snapshot(ctx context.Context) (domain.Snapshot, error) {
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.Snapshot{}, err
	}
	defer tx.Rollback()
	items, err := e.Repo.ListItemsTx(ctx, tx)
	if err != nil {
		return domain.Snapshot{}, fmt.Errorf("list items: %w", err)
	}
	tasks, err := e.Repo.ListTasksTx(ctx, tx)
	if err != nil {
		return domain.Snapshot{}, fmt.Errorf("list tasks: %w", err)
	}
	e.Log.Debug().Int("items", len(items)).Int("tasks", len(tasks)).Msg("snapshot loaded")
	return domain.Snapshot{Items: items, Tasks: tasks}, nil
}

func (e Engine) View(ctx context.Context) (View, error) {
	snap, err := e.Snapshot(ctx)
	if err != nil {
		return View{}, err
	}
	return View{
		Snapshot: snap,
		Folders:  knowledge.Synthesize(snap.Items, snap.Tasks, e.now()),
		Location: e.location(),
	}, nil
}

func (v View) query(current *knowledge.Key, term string, mode knowledge.SearchMode) knowledge.Query {
	return knowledge.Query{
		Items:      v.Snapshot.Items,
		Tasks:      v.Snapshot.Tasks,
		Folders:    v.Folders,
		Current:    current,
		SearchTerm: term,
		SearchMode: mode,
		Location:   v.Location,
	}
}

// Index covers every node a read can return: folders, stored items and diaries.
func (v View) Index() knowledge.Index {
	items := make([]knowledge.Node, 0, len(v.Snapshot.Items))
	for _, it := range v.Snapshot.Items {
		items = append(items, knowledge.FromItem(it))
	}
	return knowledge.NewIndex(v.Folders, items, knowledge.DiaryDocuments(v.Snapshot.Items, v.Snapshot.Tasks, v.Location))
}

// Folders returns the complete synthesized folder set.
func (e Engine) Folders(ctx context.Context) ([]knowledge.Node, error) {
	v, err := e.View(ctx)
	if err != nil {
		return nil, err
	}
	return v.Folders, nil
}

// Browse lists the children of current; nil lists the top level.
func (e Engine) Browse(ctx context.Context, current *knowledge.Key) ([]knowledge.Node, error) {
	v, err := e.View(ctx)
	if err != nil {
		return nil, err
	}
	return knowledge.Filter(v.query(current, "", knowledge.SearchAll)), nil
}

// SearchResult holds the matches and the folders to expand to reveal them.
type SearchResult struct {
	Nodes  []knowledge.Node
	Expand []knowledge.Key
}

func (e Engine) Search(ctx context.Context, term string, mode knowledge.SearchMode) (SearchResult, error) {
	if strings.TrimSpace(term) == "" {
		return SearchResult{}, invalid("search term is required")
	}
	v, err := e.View(ctx)
	if err != nil {
		return SearchResult{}, err
	}
	nodes := knowledge.Filter(v.query(nil, term, mode))
	visible := v.Index().VisibleAncestors(nodes)
	expand := make([]knowledge.Key, 0, len(visible))
	for k := range visible {
		expand = append(expand, k)
	}
	sort.Slice(expand, func(i, j int) bool { return expand[i].String() < expand[j].String() })
	return SearchResult{Nodes: nodes, Expand: expand}, nil
}

// Node resolves a single key.
func (e Engine) Node(ctx context.Context, key knowledge.Key) (knowledge.Node, error) {
	v, err := e.View(ctx)
	if err != nil {
		return knowledge.Node{}, err
	}
	n, ok := v.Index()[key]
	if !ok {
		return knowledge.Node{}, fmt.Errorf("node %s: %w", key, repo.ErrNotFound)
	}
	return n, nil
}

// Breadcrumb returns the path from the top-level root down to key.
func (e Engine) Breadcrumb(ctx context.Context, key knowledge.Key) ([]knowledge.Node, error) {
	v, err := e.View(ctx)
	if err != nil {
		return nil, err
	}
	path := v.Index().Breadcrumb(key)
	if path == nil {
		return nil, fmt.Errorf("node %s: %w", key, repo.ErrNotFound)
	}
	return path, nil
}

// Diary composes the diary document of a task, whether or not any item references it.
func (e Engine) Diary(ctx context.Context, taskID string) (knowledge.Node, error) {
	task, err := e.Repo.GetTask(ctx, taskID)
	if err != nil {
		return knowledge.Node{}, fmt.Errorf("task %s: %w", taskID, err)
	}
	return knowledge.NewDiaryDocument(task, e.location()), nil
}

func (e Engine) Categories(ctx context.Context) ([]string, error) {
	items, err := e.Repo.ListItems(ctx)
	if err != nil {
		return nil, err
	}
	return knowledge.Categories(items), nil
}

// ItemDetail is a stored item with its classification and origin label.
type ItemDetail struct {
	Item   domain.StorageItem   `json:"item"`
	Domain knowledge.Domain     `json:"dominio"`
	Origin knowledge.OriginInfo `json:"origin"`
}

func (e Engine) Item(ctx context.Context, id string) (ItemDetail, error) {
	item, err := e.Repo.GetItem(ctx, id)
	if err != nil {
		return ItemDetail{}, fmt.Errorf("item %s: %w", id, err)
	}
	var tasks []domain.Task
	if item.Origin != nil {
		t, err := e.Repo.GetTask(ctx, strings.TrimSpace(item.Origin.SourceID))
		switch {
		case err == nil:
			tasks = append(tasks, t)
		case !errors.Is(err, repo.ErrNotFound):
			return ItemDetail{}, fmt.Errorf("origin task of item %s: %w", id, err)
		}
	}
	return ItemDetail{
		Item:   item,
		Domain: knowledge.Classify(item),
		Origin: knowledge.DescribeOrigin(item.Origin, tasks),
	}, nil
}
