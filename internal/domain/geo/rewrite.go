package geo

import (
	"bytes"
	"errors"
	"fmt"
	"strconv"

	"github.com/buger/jsonparser"
)

// ErrUnsupportedShape marks a geography value that cannot be expressed as a
// GeoJSON point: non-WGS84 coordinate systems, 3D/measured points, non-numeric
// or out-of-range coordinates, and non-point shapes carrying a CoordinateSystem.
var ErrUnsupportedShape = errors.New("unsupported geospatial shape")

// Report counts what Rewrite changed in one document.
type Report struct {
	Points int // rewritten to GeoJSON
	Empty  int // IsEmpty:true points replaced with null
}

// Add accumulates another report.
func (r *Report) Add(o Report) {
	r.Points += o.Points
	r.Empty += o.Empty
}

// Rewrite returns doc with every SDK-encoded point replaced by a GeoJSON point.
// Subtrees without a CoordinateSystem member are copied byte for byte, so a
// document without points (including one already in GeoJSON) is returned as is.
func Rewrite(doc []byte) ([]byte, Report, error) {
	var rep Report
	if !bytes.Contains(doc, marker) {
		return doc, rep, nil
	}

	value, typ, _, err := jsonparser.Get(doc)
	if err != nil {
		return nil, rep, fmt.Errorf("parse document: %w", err)
	}

	w := walker{buf: bytes.NewBuffer(make([]byte, 0, len(doc)))}
	if err := w.value(value, typ, ""); err != nil {
		return nil, rep, err
	}
	return w.buf.Bytes(), w.rep, nil
}

type walker struct {
	buf *bytes.Buffer
	rep Report
}

func (w *walker) value(v []byte, typ jsonparser.ValueType, path string) error {
	switch typ {
	case jsonparser.Object:
		if !bytes.Contains(v, marker) {
			w.buf.Write(v)
			return nil
		}
		if _, _, _, err := jsonparser.Get(v, keyCoordinateSystem); err == nil {
			return w.point(v, path)
		}
		return w.object(v, path)
	case jsonparser.Array:
		if !bytes.Contains(v, marker) {
			w.buf.Write(v)
			return nil
		}
		return w.array(v, path)
	case jsonparser.String:
		// jsonparser hands strings back unquoted but still escaped.
		w.buf.WriteByte('"')
		w.buf.Write(v)
		w.buf.WriteByte('"')
	default:
		w.buf.Write(v)
	}
	return nil
}

func (w *walker) object(v []byte, path string) error {
	w.buf.WriteByte('{')
	first := true
	err := jsonparser.ObjectEach(v, func(key, val []byte, typ jsonparser.ValueType, _ int) error {
		if !first {
			w.buf.WriteByte(',')
		}
		first = false
		writeKey(w.buf, key)
		w.buf.WriteByte(':')
		return w.value(val, typ, join(path, string(key)))
	})
	if err != nil {
		return err
	}
	w.buf.WriteByte('}')
	return nil
}

func (w *walker) array(v []byte, path string) error {
	w.buf.WriteByte('[')
	i := 0
	var walkErr error
	_, err := jsonparser.ArrayEach(v, func(val []byte, typ jsonparser.ValueType, _ int, err error) {
		if walkErr != nil {
			return
		}
		if err != nil {
			walkErr = err
			return
		}
		if i > 0 {
			w.buf.WriteByte(',')
		}
		walkErr = w.value(val, typ, path+"["+strconv.Itoa(i)+"]")
		i++
	})
	if walkErr != nil {
		return walkErr
	}
	if err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}
	w.buf.WriteByte(']')
	return nil
}

// point rewrites an object that carries a CoordinateSystem member.
func (w *walker) point(v []byte, path string) error {
	fail := func(format string, args ...any) error {
		return fmt.Errorf("%s: %s: %w", displayPath(path), fmt.Sprintf(format, args...), ErrUnsupportedShape)
	}

	if empty, err := jsonparser.GetBoolean(v, keyIsEmpty); err == nil && empty {
		w.buf.WriteString("null")
		w.rep.Empty++
		return nil
	}

	lat, latType, _, latErr := jsonparser.Get(v, keyLatitude)
	lon, lonType, _, lonErr := jsonparser.Get(v, keyLongitude)
	if latErr != nil || lonErr != nil {
		return fail("CoordinateSystem without Latitude/Longitude")
	}
	if latType != jsonparser.Number || lonType != jsonparser.Number {
		return fail("non-numeric coordinates")
	}
	latF, okLat := parseCoordinate(lat)
	lonF, okLon := parseCoordinate(lon)
	if !okLat || !okLon || !ValidateCoordinates(latF, lonF) {
		return fail("coordinates out of range (lat=%s lon=%s)", lat, lon)
	}

	for _, k := range []string{keyZ, keyM} {
		if _, typ, _, err := jsonparser.Get(v, k); err == nil && typ != jsonparser.Null {
			return fail("%s dimension is not supported", k)
		}
	}

	epsg, err := jsonparser.GetInt(v, keyCoordinateSystem, keyEpsgID)
	if err != nil {
		return fail("missing CoordinateSystem.EpsgId")
	}
	if epsg != WGS84 {
		return fail("EPSG:%d is not WGS84", epsg)
	}

	writePoint(w.buf, lon, lat)
	w.rep.Points++
	return nil
}

// writeKey writes an object member name. jsonparser unescapes keys, so any
// character that needs escaping is escaped again.
func writeKey(buf *bytes.Buffer, key []byte) {
	buf.WriteByte('"')
	for _, c := range key {
		switch {
		case c == '"' || c == '\\':
			buf.WriteByte('\\')
			buf.WriteByte(c)
		case c < 0x20:
			fmt.Fprintf(buf, `\u%04x`, c)
		default:
			buf.WriteByte(c)
		}
	}
	buf.WriteByte('"')
}

func join(path, key string) string {
	if path == "" {
		return key
	}
	return path + "." + key
}

func displayPath(path string) string {
	if path == "" {
		return "document"
	}
	return path
}
