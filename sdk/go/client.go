package hermessdk

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Client is a minimal Hermes HTTP API client.
type Client struct {
	BaseURL     string
	BasePath    string
	BearerToken string
	ActorID     string
	HTTPClient  *http.Client
	Timeout     time.Duration
}

// New creates a client with sane defaults.
func New(baseURL string) *Client {
	return &Client{
		BaseURL:  baseURL,
		BasePath: "/v0",
		Timeout:  10 * time.Second,
	}
}

type Origin struct {
	Module   string `json:"modulo"`
	SourceID string `json:"id_origem"`
}

// Node is one entry of the browsable namespace, stored or virtual.
type Node struct {
	ID        string   `json:"id"`
	Kind      string   `json:"kind"`
	Title     string   `json:"titulo"`
	ParentID  *string  `json:"parent_id"`
	IsFolder  bool     `json:"is_folder"`
	Virtual   bool     `json:"virtual"`
	CreatedAt string   `json:"data_criacao"`
	FileType  string   `json:"tipo_arquivo"`
	Size      int64    `json:"tamanho"`
	Domain    string   `json:"dominio,omitempty"`
	TaskID    string   `json:"task_id,omitempty"`
	Category  string   `json:"categoria,omitempty"`
	Origin    *Origin  `json:"origem,omitempty"`
	Text      string   `json:"texto_bruto,omitempty"`
	Tags      []string `json:"tags,omitempty"`
	URL       string   `json:"url_drive,omitempty"`
}

// Nodes is a listing; Expand is only set for searches.
type Nodes struct {
	Items  []Node   `json:"items"`
	Expand []string `json:"expand,omitempty"`
}

// Item is a stored document, folder or link.
type Item struct {
	ID        string   `json:"id,omitempty"`
	Title     string   `json:"titulo"`
	FileType  string   `json:"tipo_arquivo,omitempty"`
	IsFolder  bool     `json:"is_folder,omitempty"`
	ParentID  *string  `json:"parent_id,omitempty"`
	Size      int64    `json:"tamanho,omitempty"`
	CreatedAt string   `json:"data_criacao,omitempty"`
	Category  string   `json:"categoria,omitempty"`
	Origin    *Origin  `json:"origem,omitempty"`
	RawText   string   `json:"texto_bruto,omitempty"`
	Tags      []string `json:"tags,omitempty"`
	URL       string   `json:"url_drive,omitempty"`
}

type ItemDetail struct {
	Item        Item   `json:"item"`
	Domain      string `json:"dominio"`
	OriginLabel string `json:"origin_label"`
	OriginTitle string `json:"origin_title"`
}

type DiaryEntry struct {
	Date string `json:"data"`
	Note string `json:"nota"`
}

type Task struct {
	ID        string       `json:"id,omitempty"`
	Title     string       `json:"titulo"`
	CreatedAt string       `json:"data_criacao,omitempty"`
	Diary     []DiaryEntry `json:"acompanhamento,omitempty"`
}

// Snapshot is the payload of Import.
type Snapshot struct {
	Items []Item `json:"items,omitempty"`
	Tasks []Task `json:"tasks,omitempty"`
}

type ImportResult struct {
	Items int `json:"items"`
	Tasks int `json:"tasks"`
}

// Event represents a log entry.
type Event struct {
	ID         int64          `json:"id"`
	TS         string         `json:"ts"`
	Type       string         `json:"type"`
	EntityKind string         `json:"entity_kind"`
	EntityID   string         `json:"entity_id"`
	ActorID    string         `json:"actor_id"`
	Payload    map[string]any `json:"payload"`
}

// APIError wraps non-2xx responses.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api error: status=%d body=%s", e.StatusCode, e.Body)
}

// Folders lists every folder: roots, action folders and stored folders.
func (c *Client) Folders(ctx context.Context) ([]Node, error) {
	var resp []Node
	err := c.do(ctx, http.MethodGet, "folders", nil, &resp)
	return resp, err
}

// Browse lists the children of parent; an empty parent lists the top level.
func (c *Client) Browse(ctx context.Context, parent string) ([]Node, error) {
	endpoint := "nodes"
	if parent != "" {
		endpoint += "?parent=" + url.QueryEscape(parent)
	}
	var resp Nodes
	err := c.do(ctx, http.MethodGet, endpoint, nil, &resp)
	return resp.Items, err
}

// Search matches term against every node. mode is all, folders or files.
func (c *Client) Search(ctx context.Context, term, mode string) (Nodes, error) {
	q := url.Values{"q": {term}}
	if mode != "" {
		q.Set("mode", mode)
	}
	var resp Nodes
	err := c.do(ctx, http.MethodGet, "nodes?"+q.Encode(), nil, &resp)
	return resp, err
}

func (c *Client) Node(ctx context.Context, id string) (Node, error) {
	var resp Node
	err := c.do(ctx, http.MethodGet, "nodes/"+url.PathEscape(id), nil, &resp)
	return resp, err
}

func (c *Client) Breadcrumb(ctx context.Context, id string) ([]Node, error) {
	var resp []Node
	err := c.do(ctx, http.MethodGet, "nodes/"+url.PathEscape(id)+"/breadcrumb", nil, &resp)
	return resp, err
}

// Diary returns the composed diary document of a task.
func (c *Client) Diary(ctx context.Context, taskID string) (Node, error) {
	var resp Node
	err := c.do(ctx, http.MethodGet, "tasks/"+url.PathEscape(taskID)+"/diary", nil, &resp)
	return resp, err
}

func (c *Client) Categories(ctx context.Context) ([]string, error) {
	var resp []string
	err := c.do(ctx, http.MethodGet, "categories", nil, &resp)
	return resp, err
}

func (c *Client) Item(ctx context.Context, id string) (ItemDetail, error) {
	var resp ItemDetail
	err := c.do(ctx, http.MethodGet, "items/"+url.PathEscape(id), nil, &resp)
	return resp, err
}

// SaveItem creates an item, or replaces it when item.ID is known.
func (c *Client) SaveItem(ctx context.Context, item Item) (ItemDetail, error) {
	var resp ItemDetail
	err := c.do(ctx, http.MethodPost, "items", item, &resp)
	return resp, err
}

func (c *Client) AddLink(ctx context.Context, title, link string, parentID *string) (ItemDetail, error) {
	body := map[string]any{"titulo": title, "url": link}
	if parentID != nil {
		body["parent_id"] = *parentID
	}
	var resp ItemDetail
	err := c.do(ctx, http.MethodPost, "links", body, &resp)
	return resp, err
}

func (c *Client) RenameItem(ctx context.Context, id, title string) (ItemDetail, error) {
	var resp ItemDetail
	err := c.do(ctx, http.MethodPatch, "items/"+url.PathEscape(id), map[string]any{"titulo": title}, &resp)
	return resp, err
}

func (c *Client) DeleteItem(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, "items/"+url.PathEscape(id), nil, nil)
}

// SetOrphanTitle names the folder left behind by a deleted task and returns
// how many items were updated.
func (c *Client) SetOrphanTitle(ctx context.Context, taskID, title string) (int64, error) {
	var resp struct {
		Items int64 `json:"items"`
	}
	endpoint := fmt.Sprintf("orphans/%s/title", url.PathEscape(taskID))
	err := c.do(ctx, http.MethodPut, endpoint, map[string]any{"titulo": title}, &resp)
	return resp.Items, err
}

func (c *Client) SaveTask(ctx context.Context, task Task) (Task, error) {
	var resp Task
	err := c.do(ctx, http.MethodPost, "tasks", task, &resp)
	return resp, err
}

func (c *Client) DeleteTask(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, "tasks/"+url.PathEscape(id), nil, nil)
}

// AppendNote adds a plain diary entry.
func (c *Client) AppendNote(ctx context.Context, taskID, note string) (DiaryEntry, error) {
	var resp DiaryEntry
	err := c.do(ctx, http.MethodPost, "tasks/"+url.PathEscape(taskID)+"/notes", map[string]any{"nota": note}, &resp)
	return resp, err
}

// AppendRichNote adds a LINK, CONTACT or FILE entry.
func (c *Client) AppendRichNote(ctx context.Context, taskID, kind, name, value string) (DiaryEntry, error) {
	body := map[string]any{"kind": kind, "name": name, "value": value}
	var resp DiaryEntry
	err := c.do(ctx, http.MethodPost, "tasks/"+url.PathEscape(taskID)+"/notes", body, &resp)
	return resp, err
}

// Import loads a snapshot; replace clears the store first.
func (c *Client) Import(ctx context.Context, snap Snapshot, replace bool) (ImportResult, error) {
	endpoint := "import"
	if replace {
		endpoint += "?replace=true"
	}
	var resp ImportResult
	err := c.do(ctx, http.MethodPost, endpoint, snap, &resp)
	return resp, err
}

// Events returns recent events, optionally for one entity.
func (c *Client) Events(ctx context.Context, limit int, entityKind, entityID string) ([]Event, error) {
	q := url.Values{}
	if limit > 0 {
		q.Set("limit", fmt.Sprint(limit))
	}
	if entityKind != "" {
		q.Set("entity_kind", entityKind)
	}
	if entityID != "" {
		q.Set("entity_id", entityID)
	}
	endpoint := "events"
	if len(q) > 0 {
		endpoint += "?" + q.Encode()
	}
	var resp []Event
	err := c.do(ctx, http.MethodGet, endpoint, nil, &resp)
	return resp, err
}

// DevLogin fetches a development token and keeps it for later calls.
func (c *Client) DevLogin(ctx context.Context, actorID string) (string, error) {
	var resp struct {
		Token string `json:"token"`
	}
	if err := c.do(ctx, http.MethodPost, "auth/dev/login", map[string]any{"actor_id": actorID}, &resp); err != nil {
		return "", err
	}
	c.BearerToken = resp.Token
	return resp.Token, nil
}

func (c *Client) do(ctx context.Context, method, endpoint string, body any, out any) error {
	if c.HTTPClient == nil {
		c.HTTPClient = &http.Client{Timeout: c.Timeout}
	}
	url := c.base() + "/" + strings.TrimLeft(endpoint, "/")
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			return err
		}
	}
	req, err := http.NewRequestWithContext(ctx, method, url, &buf)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	switch {
	case c.BearerToken != "":
		req.Header.Set("Authorization", "Bearer "+c.BearerToken)
	case c.ActorID != "":
		req.Header.Set("X-Actor-Id", c.ActorID)
	}
	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		b, _ := io.ReadAll(resp.Body)
		return &APIError{StatusCode: resp.StatusCode, Body: string(b)}
	}
	if out != nil {
		return json.NewDecoder(resp.Body).Decode(out)
	}
	return nil
}

func (c *Client) base() string {
	return strings.TrimRight(c.BaseURL, "/") + "/" + strings.Trim(c.BasePath, "/")
}
