package domain

// Origin is a back-reference from a stored item to a record owned by another module.
type Origin struct {
	Module   string `json:"modulo"`
	SourceID string `json:"id_origem"`
}

// StorageItem is a persisted document or folder of the knowledge base.
type StorageItem struct {
	ID                string   `json:"id"`
	Title             string   `json:"titulo"`
	FileType          string   `json:"tipo_arquivo"`
	IsFolder          bool     `json:"is_folder"`
	ParentID          *string  `json:"parent_id,omitempty"`
	Size              int64    `json:"tamanho"`
	CreatedAt         string   `json:"data_criacao" format:"date-time"`
	Category          string   `json:"categoria,omitempty"`
	Origin            *Origin  `json:"origem,omitempty"`
	RawText           string   `json:"texto_bruto,omitempty"`
	Tags              []string `json:"tags,omitempty"`
	OrphanActionTitle string   `json:"orphan_action_title,omitempty"`
	URL               string   `json:"url_drive,omitempty"`
}

type DiaryEntry struct {
	Date string `json:"data" format:"date-time"`
	Note string `json:"nota"`
}

// Task is the subset of a task record the knowledge base reads. Diary keeps insertion order.
type Task struct {
	ID        string       `json:"id"`
	Title     string       `json:"titulo"`
	CreatedAt string       `json:"data_criacao" format:"date-time"`
	Diary     []DiaryEntry `json:"acompanhamento,omitempty"`
}

type Event struct {
	ID         int64  `json:"id"`
	TS         string `json:"ts" format:"date-time"`
	Type       string `json:"type"`
	EntityKind string `json:"entity_kind"`
	EntityID   string `json:"entity_id,omitempty"`
	ActorID    string `json:"actor_id"`
	Payload    string `json:"payload_json"`
}

// Snapshot is the materialized content of the store at one point in time.
type Snapshot struct {
	Items []StorageItem `json:"items"`
	Tasks []Task        `json:"tasks"`
}
