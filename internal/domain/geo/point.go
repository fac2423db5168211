// Package geo converts the SDK-style geography point encoding into GeoJSON.
//
// Source documents may carry points as
//
//	{"Latitude":38.3399,"Longitude":-86.0887,"IsEmpty":false,"Z":null,"M":null,
//	 "CoordinateSystem":{"EpsgId":4326,"Id":"4326","Name":"WGS84"}}
//
// while the upload endpoint only accepts
//
//	{"type":"Point","coordinates":[-86.0887, 38.3399]}
//
// (longitude first).
package geo

import (
	"bytes"
	"strconv"
)

// WGS84 is the only coordinate system the upload endpoint accepts.
const WGS84 = 4326

// Member names of the SDK point encoding.
const (
	keyLatitude         = "Latitude"
	keyLongitude        = "Longitude"
	keyIsEmpty          = "IsEmpty"
	keyZ                = "Z"
	keyM                = "M"
	keyCoordinateSystem = "CoordinateSystem"
	keyEpsgID           = "EpsgId"
)

// marker is the literal whose presence means a subtree may hold a point.
var marker = []byte(`"` + keyCoordinateSystem + `"`)

// ValidateCoordinates checks that latitude is in [-90,90] and longitude in [-180,180].
func ValidateCoordinates(lat, lon float64) bool {
	return lat >= -90 && lat <= 90 && lon >= -180 && lon <= 180
}

// writePoint renders a GeoJSON point. lon and lat are copied as the source's
// number text so that no precision is lost or added.
func writePoint(buf *bytes.Buffer, lon, lat []byte) {
	buf.WriteString(`{"type":"Point","coordinates":[`)
	buf.Write(lon)
	buf.WriteString(", ")
	buf.Write(lat)
	buf.WriteString(`]}`)
}

func parseCoordinate(raw []byte) (float64, bool) {
	f, err := strconv.ParseFloat(string(raw), 64)
	return f, err == nil
}
