// Package batch defines the staged batch file: its name and its wire shape.
package batch

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/buger/jsonparser"
	"github.com/rs/xid"
)

// Ext is the staged batch file extension.
const Ext = ".json"

// SchemaExt is the extension of a persisted index definition.
const SchemaExt = ".schema"

// FileName returns a new unique batch name for an index: <index>-<xid>.json.
// xid tokens are unique across goroutines, so concurrently staged pages never collide.
func FileName(index string) string {
	return index + "-" + xid.New().String() + Ext
}

// SchemaName returns the name under which an index definition is persisted.
func SchemaName(index string) string {
	return index + SchemaExt
}

// BelongsTo reports whether name is a batch file of index.
func BelongsTo(name, index string) bool {
	rest, ok := strings.CutPrefix(name, index+"-")
	if !ok || !strings.HasSuffix(rest, Ext) {
		return false
	}
	_, err := xid.FromString(strings.TrimSuffix(rest, Ext))
	return err == nil
}

// Encode serializes documents as the upload payload {"value":[doc,...]}.
func Encode(docs []json.RawMessage) []byte {
	size := len(`{"value":[]}`) + len(docs)
	for _, d := range docs {
		size += len(d)
	}
	var buf bytes.Buffer
	buf.Grow(size)
	buf.WriteString(`{"value":[`)
	for i, d := range docs {
		if i > 0 {
			buf.WriteByte(',')
		}
		buf.Write(d)
	}
	buf.WriteString(`]}`)
	return buf.Bytes()
}

// Count returns the number of documents in an encoded batch.
func Count(content []byte) (int, error) {
	n := 0
	_, err := jsonparser.ArrayEach(content, func(_ []byte, _ jsonparser.ValueType, _ int, _ error) {
		n++
	}, "value")
	if err != nil {
		return 0, fmt.Errorf("read batch: %w", err)
	}
	return n, nil
}
