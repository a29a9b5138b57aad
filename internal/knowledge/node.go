package knowledge

import (
	"fmt"
	"strings"

	"hermes/internal/domain"
)

// NodeKind tells what a node of the namespace is backed by.
type NodeKind int

const (
	KindRoot NodeKind = iota + 1
	KindActionFolder
	KindOrphanActionFolder
	KindRealFolder
	KindRealFile
	KindDiaryDocument
)

var kindNames = map[NodeKind]string{
	KindRoot:               "root",
	KindActionFolder:       "action_folder",
	KindOrphanActionFolder: "orphan_action_folder",
	KindRealFolder:         "folder",
	KindRealFile:           "file",
	KindDiaryDocument:      "diary",
}

func (k NodeKind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("NodeKind(%d)", int(k))
}

func (k NodeKind) MarshalText() ([]byte, error) { return []byte(k.String()), nil }

func (k *NodeKind) UnmarshalText(b []byte) error {
	for kind, name := range kindNames {
		if name == string(b) {
			*k = kind
			return nil
		}
	}
	return fmt.Errorf("unknown node kind %q", string(b))
}

// IsFolder reports whether nodes of this kind can be browsed into.
func (k NodeKind) IsFolder() bool {
	switch k {
	case KindRoot, KindActionFolder, KindOrphanActionFolder, KindRealFolder:
		return true
	}
	return false
}

// IsVirtual reports whether nodes of this kind have no persisted record.
func (k NodeKind) IsVirtual() bool {
	return k != KindRealFolder && k != KindRealFile
}

// KeyKind selects the namespace a Key's value lives in.
type KeyKind int

const (
	KeyItem KeyKind = iota
	KeyRoot
	KeyAction
	KeyDiary
)

// Reserved prefixes of the string form of virtual keys. Store ids never contain "::".
const (
	rootPrefix   = "root::"
	actionPrefix = "acao::"
	diaryPrefix  = "diario::"
)

// Key is the natural key of a node. Keys of different kinds never compare
// equal, even when their values do.
type Key struct {
	Kind  KeyKind
	Value string
}

func ItemKey(id string) Key       { return Key{Kind: KeyItem, Value: id} }
func RootKey(d Domain) Key        { return Key{Kind: KeyRoot, Value: string(d)} }
func ActionKey(taskID string) Key { return Key{Kind: KeyAction, Value: taskID} }
func DiaryKey(taskID string) Key  { return Key{Kind: KeyDiary, Value: taskID} }

// String is the form stored in parent_id fields and used on the wire.
func (k Key) String() string {
	switch k.Kind {
	case KeyRoot:
		return rootPrefix + k.Value
	case KeyAction:
		return actionPrefix + k.Value
	case KeyDiary:
		return diaryPrefix + k.Value
	default:
		return k.Value
	}
}

func (k Key) MarshalText() ([]byte, error) { return []byte(k.String()), nil }

func (k *Key) UnmarshalText(b []byte) error {
	*k = ParseKey(string(b))
	return nil
}

// ParseKey is the inverse of Key.String. Anything without a reserved prefix is an item id.
func ParseKey(s string) Key {
	for _, p := range []struct {
		prefix string
		kind   KeyKind
	}{
		{rootPrefix, KeyRoot},
		{actionPrefix, KeyAction},
		{diaryPrefix, KeyDiary},
	} {
		if rest, ok := strings.CutPrefix(s, p.prefix); ok && rest != "" {
			return Key{Kind: p.kind, Value: rest}
		}
	}
	return ItemKey(s)
}

// Node is one entry of the namespace: a root, a virtual folder, a stored
// item or a generated diary document.
type Node struct {
	Kind      NodeKind       `json:"kind"`
	Key       Key            `json:"id"`
	Title     string         `json:"titulo"`
	ParentKey *Key           `json:"parent_id"`
	CreatedAt string         `json:"data_criacao"`
	FileType  string         `json:"tipo_arquivo"`
	Size      int64          `json:"tamanho"`
	Domain    Domain         `json:"dominio,omitempty"`
	TaskID    string         `json:"task_id,omitempty"`
	Category  string         `json:"categoria,omitempty"`
	Origin    *domain.Origin `json:"origem,omitempty"`
	Text      string         `json:"texto_bruto,omitempty"`
	Tags      []string       `json:"tags,omitempty"`
	URL       string         `json:"url_drive,omitempty"`

	item *domain.StorageItem
}

func (n Node) ID() string      { return n.Key.String() }
func (n Node) IsFolder() bool  { return n.Kind.IsFolder() }
func (n Node) IsVirtual() bool { return n.Kind.IsVirtual() }

// Item returns the stored record behind a real node.
func (n Node) Item() (domain.StorageItem, bool) {
	if n.item == nil {
		return domain.StorageItem{}, false
	}
	return *n.item, true
}

// parentIs reports whether the node's stored parent is k.
func (n Node) parentIs(k Key) bool {
	return n.ParentKey != nil && *n.ParentKey == k
}

const (
	folderFileType        = "folder"
	virtualFolderFileType = "virtual_folder"
)

var rootTitles = map[Domain]string{
	DomainActions:  "Ações",
	DomainHealth:   "Saúde",
	DomainProjects: "Projetos",
}

// RootTitle is the display title of the root folder of d.
func RootTitle(d Domain) string { return rootTitles[d] }

// Roots returns the three fixed top-level folders in display order.
func Roots() []Node {
	roots := make([]Node, 0, len(Domains))
	for _, d := range Domains {
		roots = append(roots, Node{
			Kind:     KindRoot,
			Key:      RootKey(d),
			Title:    rootTitles[d],
			FileType: virtualFolderFileType,
			Domain:   d,
		})
	}
	return roots
}

// FromItem wraps a stored item.
func FromItem(item domain.StorageItem) Node {
	kind := KindRealFile
	if item.IsFolder {
		kind = KindRealFolder
	}
	var parent *Key
	if item.ParentID != nil && *item.ParentID != "" {
		k := ParseKey(*item.ParentID)
		parent = &k
	}
	stored := item
	n := Node{
		Kind:      kind,
		Key:       ItemKey(item.ID),
		Title:     item.Title,
		ParentKey: parent,
		CreatedAt: item.CreatedAt,
		FileType:  item.FileType,
		Size:      item.Size,
		Domain:    Classify(item),
		Category:  item.Category,
		Origin:    item.Origin,
		Text:      item.RawText,
		Tags:      item.Tags,
		URL:       item.URL,
		item:      &stored,
	}
	if n.Domain == DomainActions {
		n.TaskID = referencedTask(item)
	}
	return n
}

func fromItems(items []domain.StorageItem) []Node {
	nodes := make([]Node, 0, len(items))
	for _, item := range items {
		nodes = append(nodes, FromItem(item))
	}
	return nodes
}
