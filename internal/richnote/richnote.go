// Package richnote encodes typed payloads (links, contacts, file references)
// inside the free-text notes of a task diary.
//
// Two wire generations exist and both must stay readable:
//
//	LINK::JSON::{"n":"title","v":"https://example.com"}   current
//	LINK::title::https://example.com                       legacy
//	LINK::https://example.com                              legacy, no name
package richnote

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
)

type Kind string

const (
	KindLink    Kind = "LINK"
	KindContact Kind = "CONTACT"
	KindFile    Kind = "FILE"
)

// Kinds lists the kinds in decode order.
var Kinds = []Kind{KindLink, KindContact, KindFile}

const (
	kindSeparator = "::"
	jsonMarker    = "JSON::"
)

// Label is the human name used when a note is rendered as text.
func (k Kind) Label() string {
	switch k {
	case KindLink:
		return "Link"
	case KindContact:
		return "Contato"
	case KindFile:
		return "Arquivo"
	default:
		return string(k)
	}
}

// ParseKind accepts a kind name in any case.
func ParseKind(s string) (Kind, error) {
	k := Kind(strings.ToUpper(strings.TrimSpace(s)))
	for _, known := range Kinds {
		if k == known {
			return k, nil
		}
	}
	return "", fmt.Errorf("invalid rich note kind %q (want link, contact or file)", s)
}

// Payload is a decoded rich note.
type Payload struct {
	Kind  Kind   `json:"kind"`
	Name  string `json:"name"`
	Value string `json:"value"`
}

type wirePayload struct {
	N string `json:"n"`
	V string `json:"v"`
}

// Encode renders a note in the current JSON generation.
func Encode(kind Kind, name, value string) string {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	// Encoding two strings cannot fail.
	_ = enc.Encode(wirePayload{N: name, V: value})
	return string(kind) + kindSeparator + jsonMarker + strings.TrimSuffix(buf.String(), "\n")
}

// parser reads the part of a note that follows "KIND::".
type parser func(raw string) (name, value string, ok bool)

var parsers = []parser{parseJSON, parseLegacy}

// Decode reports whether text is a rich note and returns its payload.
// Malformed JSON is not an error: it falls through to the legacy reading.
func Decode(text string) (Payload, bool) {
	for _, kind := range Kinds {
		prefix := string(kind) + kindSeparator
		if !strings.HasPrefix(text, prefix) {
			continue
		}
		raw := strings.TrimPrefix(text, prefix)
		for _, parse := range parsers {
			if name, value, ok := parse(raw); ok {
				return Payload{Kind: kind, Name: name, Value: value}, true
			}
		}
	}
	return Payload{}, false
}

func parseJSON(raw string) (string, string, bool) {
	if !strings.HasPrefix(raw, jsonMarker) {
		return "", "", false
	}
	var fields map[string]any
	if err := json.Unmarshal([]byte(strings.TrimPrefix(raw, jsonMarker)), &fields); err != nil {
		return "", "", false
	}
	value, ok := fields["v"].(string)
	if !ok {
		return "", "", false
	}
	name, _ := fields["n"].(string)
	return name, value, true
}

func parseLegacy(raw string) (string, string, bool) {
	name, value, found := strings.Cut(raw, kindSeparator)
	if !found {
		return "", raw, true
	}
	return name, value, true
}

// Render formats a payload as a single diary line body.
func Render(p Payload) string {
	shown := p.Name
	if shown == "" {
		shown = p.Value
	}
	return fmt.Sprintf("%s: %s (%s)", p.Kind.Label(), shown, p.Value)
}
