package server

import (
	"encoding/json"

	"hermes/internal/domain"
	"hermes/internal/engine"
	"hermes/internal/knowledge"
)

// Request payloads

type OriginRequest struct {
	Module   string `json:"modulo"`
	SourceID string `json:"id_origem"`
}

type CreateItemRequest struct {
	ID        string         `json:"id,omitempty"`
	Title     string         `json:"titulo"`
	FileType  string         `json:"tipo_arquivo,omitempty"`
	IsFolder  bool           `json:"is_folder,omitempty"`
	ParentID  *string        `json:"parent_id,omitempty" doc:"Stored folder id, root::saude, root::projetos or acao::<task id>"`
	Size      int64          `json:"tamanho,omitempty"`
	CreatedAt string         `json:"data_criacao,omitempty"`
	Category  string         `json:"categoria,omitempty"`
	Origin    *OriginRequest `json:"origem,omitempty"`
	RawText   string         `json:"texto_bruto,omitempty"`
	Tags      []string       `json:"tags,omitempty"`
	URL       string         `json:"url_drive,omitempty"`
}

type CreateLinkRequest struct {
	Title    string  `json:"titulo,omitempty"`
	URL      string  `json:"url"`
	ParentID *string `json:"parent_id,omitempty" doc:"Stored folder id, root::saude, root::projetos or acao::<task id>"`
}

type RenameRequest struct {
	Title string `json:"titulo"`
}

type DiaryEntryRequest struct {
	Date string `json:"data"`
	Note string `json:"nota"`
}

type SaveTaskRequest struct {
	ID        string              `json:"id,omitempty"`
	Title     string              `json:"titulo"`
	CreatedAt string              `json:"data_criacao,omitempty"`
	Diary     []DiaryEntryRequest `json:"acompanhamento,omitempty"`
}

// AppendNoteRequest carries either a plain note or a rich note (kind + value).
type AppendNoteRequest struct {
	Note  string `json:"nota,omitempty"`
	Kind  string `json:"kind,omitempty" enum:"LINK,CONTACT,FILE,link,contact,file"`
	Name  string `json:"name,omitempty"`
	Value string `json:"value,omitempty"`
}

type ImportRequest struct {
	Items []CreateItemRequest `json:"items,omitempty"`
	Tasks []SaveTaskRequest   `json:"tasks,omitempty"`
}

type DevLoginRequest struct {
	ActorID string `json:"actor_id"`
}

// Responses

type NodeResponse struct {
	ID        string         `json:"id"`
	Kind      string         `json:"kind" enum:"root,action_folder,orphan_action_folder,folder,file,diary"`
	Title     string         `json:"titulo"`
	ParentID  *string        `json:"parent_id"`
	IsFolder  bool           `json:"is_folder"`
	Virtual   bool           `json:"virtual"`
	CreatedAt string         `json:"data_criacao"`
	FileType  string         `json:"tipo_arquivo"`
	Size      int64          `json:"tamanho"`
	Domain    string         `json:"dominio,omitempty"`
	TaskID    string         `json:"task_id,omitempty"`
	Category  string         `json:"categoria,omitempty"`
	Origin    *domain.Origin `json:"origem,omitempty"`
	Text      string         `json:"texto_bruto,omitempty"`
	Tags      []string       `json:"tags,omitempty"`
	URL       string         `json:"url_drive,omitempty"`
}

type NodesResponse struct {
	Items []NodeResponse `json:"items"`
	// Expand lists the folders to open so that search results are visible.
	Expand []string `json:"expand,omitempty"`
}

type ItemResponse struct {
	Item        domain.StorageItem `json:"item"`
	Domain      string             `json:"dominio"`
	OriginLabel string             `json:"origin_label"`
	OriginTitle string             `json:"origin_title"`
}

type DiaryEntryResponse struct {
	Date string `json:"data"`
	Note string `json:"nota"`
}

type TaskResponse struct {
	ID        string               `json:"id"`
	Title     string               `json:"titulo"`
	CreatedAt string               `json:"data_criacao"`
	Diary     []DiaryEntryResponse `json:"acompanhamento"`
}

type OrphanTitleResponse struct {
	TaskID string `json:"task_id"`
	Title  string `json:"titulo"`
	Items  int64  `json:"items"`
}

type EventResponse struct {
	ID         int64          `json:"id"`
	TS         string         `json:"ts" format:"date-time"`
	Type       string         `json:"type"`
	EntityKind string         `json:"entity_kind"`
	EntityID   string         `json:"entity_id,omitempty"`
	ActorID    string         `json:"actor_id"`
	Payload    map[string]any `json:"payload"`
}

type DevLoginResponse struct {
	Token string `json:"token"`
}

func nodeResponse(n knowledge.Node) NodeResponse {
	var parent *string
	if n.ParentKey != nil {
		parent = strPtr(n.ParentKey.String())
	}
	return NodeResponse{
		ID:        n.ID(),
		Kind:      n.Kind.String(),
		Title:     n.Title,
		ParentID:  parent,
		IsFolder:  n.IsFolder(),
		Virtual:   n.IsVirtual(),
		CreatedAt: n.CreatedAt,
		FileType:  n.FileType,
		Size:      n.Size,
		Domain:    string(n.Domain),
		TaskID:    n.TaskID,
		Category:  n.Category,
		Origin:    n.Origin,
		Text:      n.Text,
		Tags:      n.Tags,
		URL:       n.URL,
	}
}

func mapNodes(nodes []knowledge.Node) []NodeResponse {
	out := make([]NodeResponse, 0, len(nodes))
	for _, n := range nodes {
		out = append(out, nodeResponse(n))
	}
	return out
}

func itemResponse(d engine.ItemDetail) ItemResponse {
	return ItemResponse{
		Item:        d.Item,
		Domain:      string(d.Domain),
		OriginLabel: d.Origin.Label,
		OriginTitle: d.Origin.Title,
	}
}

func taskResponse(t domain.Task) TaskResponse {
	res := TaskResponse{ID: t.ID, Title: t.Title, CreatedAt: t.CreatedAt, Diary: []DiaryEntryResponse{}}
	for _, e := range t.Diary {
		res.Diary = append(res.Diary, DiaryEntryResponse{Date: e.Date, Note: e.Note})
	}
	return res
}

func eventResponse(e domain.Event) EventResponse {
	return EventResponse{
		ID:         e.ID,
		TS:         e.TS,
		Type:       e.Type,
		EntityKind: e.EntityKind,
		EntityID:   e.EntityID,
		ActorID:    e.ActorID,
		Payload:    decodeJSONMap(e.Payload),
	}
}

func (r CreateItemRequest) toDomain() domain.StorageItem {
	item := domain.StorageItem{
		ID:        r.ID,
		Title:     r.Title,
		FileType:  r.FileType,
		IsFolder:  r.IsFolder,
		ParentID:  r.ParentID,
		Size:      r.Size,
		CreatedAt: r.CreatedAt,
		Category:  r.Category,
		RawText:   r.RawText,
		Tags:      r.Tags,
		URL:       r.URL,
	}
	if r.Origin != nil {
		item.Origin = &domain.Origin{Module: r.Origin.Module, SourceID: r.Origin.SourceID}
	}
	return item
}

func (r SaveTaskRequest) toDomain() domain.Task {
	t := domain.Task{ID: r.ID, Title: r.Title, CreatedAt: r.CreatedAt}
	for _, e := range r.Diary {
		t.Diary = append(t.Diary, domain.DiaryEntry{Date: e.Date, Note: e.Note})
	}
	return t
}

// JSON helpers

func decodeJSONMap(raw string) map[string]any {
	if raw == "" {
		return nil
	}
	var obj map[string]any
	if err := json.Unmarshal([]byte(raw), &obj); err != nil {
		return nil
	}
	return obj
}

func nonNilSlice[T any](in []T) []T {
	if in == nil {
		return []T{}
	}
	return in
}

func strPtr(in string) *string {
	return &in
}
