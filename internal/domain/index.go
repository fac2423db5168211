package domain

import (
	"bytes"
	"fmt"

	"github.com/buger/jsonparser"
)

// IndexSchema is an index definition owned by the remote service.
// The pipeline treats Raw as opaque apart from locating the key field.
type IndexSchema struct {
	Name string
	Raw  []byte
}

// KeyField returns the name of the field flagged "key": true.
func (s IndexSchema) KeyField() (string, error) {
	var key string
	_, err := jsonparser.ArrayEach(s.Raw, func(value []byte, _ jsonparser.ValueType, _ int, _ error) {
		if key != "" {
			return
		}
		if isKey, err := jsonparser.GetBoolean(value, "key"); err == nil && isKey {
			key, _ = jsonparser.GetString(value, "name")
		}
	}, "fields")
	if err != nil {
		return "", fmt.Errorf("index %s: read fields: %w", s.Name, ErrInvalidSchema)
	}
	if key == "" {
		return "", fmt.Errorf("index %s: no key field: %w", s.Name, ErrInvalidSchema)
	}
	return key, nil
}

// SynonymMap is a named synonym rule set, copied wholesale.
type SynonymMap struct {
	Name string
	Raw  []byte
}

// StripAnnotations removes top-level members whose name starts with prefix
// (e.g. "@odata." on definitions, "@search." on query hits).
func StripAnnotations(raw []byte, prefix string) []byte {
	p := []byte(prefix)
	var drop []string
	_ = jsonparser.ObjectEach(raw, func(key []byte, _ []byte, _ jsonparser.ValueType, _ int) error {
		if bytes.HasPrefix(key, p) {
			drop = append(drop, string(key))
		}
		return nil
	})
	if len(drop) == 0 {
		return raw
	}
	out := append([]byte(nil), raw...)
	for _, k := range drop {
		out = jsonparser.Delete(out, k)
	}
	return out
}
