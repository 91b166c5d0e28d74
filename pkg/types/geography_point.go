package types

import (
	"bytes"
	"database/sql/driver"
	"encoding/binary"
	"encoding/hex"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
)

const (
	wkbPoint     uint32 = 1
	ewkbSRIDFlag uint32 = 0x20000000
	wgs84SRID           = 4326
)

var errShortWKB = errors.New("geography: wkb too short")

// GeographyPoint is a WGS84 lat/lng stored in a geography(Point,4326) column.
type GeographyPoint struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

func (g GeographyPoint) Validate() error {
	if !(g.Lat >= -90 && g.Lat <= 90) {
		return fmt.Errorf("latitude %v out of range [-90, 90]", g.Lat)
	}
	if !(g.Lng >= -180 && g.Lng <= 180) {
		return fmt.Errorf("longitude %v out of range [-180, 180]", g.Lng)
	}
	return nil
}

// Value writes EWKT, which PostGIS casts on insert.
func (g GeographyPoint) Value() (driver.Value, error) {
	return "SRID=" + strconv.Itoa(wgs84SRID) + ";POINT(" +
		strconv.FormatFloat(g.Lng, 'f', -1, 64) + " " +
		strconv.FormatFloat(g.Lat, 'f', -1, 64) + ")", nil
}

// Scan reads EWKT, hex EWKB as returned by Postgres, or binary WKB.
func (g *GeographyPoint) Scan(src any) error {
	var raw []byte
	switch v := src.(type) {
	case nil:
		*g = GeographyPoint{}
		return nil
	case string:
		raw = []byte(v)
	case []byte:
		raw = v
	default:
		return fmt.Errorf("geography: cannot scan %T", src)
	}

	trimmed := bytes.TrimSpace(raw)
	if decoded, err := hex.DecodeString(string(trimmed)); err == nil && len(decoded) > 0 {
		return g.decodeWKB(decoded)
	}
	upper := strings.ToUpper(string(trimmed))
	if strings.HasPrefix(upper, "SRID=") || strings.HasPrefix(upper, "POINT") {
		return g.decodeText(string(trimmed))
	}
	return g.decodeWKB(raw)
}

func (g *GeographyPoint) decodeText(s string) error {
	if _, rest, ok := strings.Cut(s, ";"); ok {
		s = rest
	}
	body, ok := strings.CutPrefix(strings.ToUpper(strings.TrimSpace(s)), "POINT(")
	if !ok || !strings.HasSuffix(body, ")") {
		return fmt.Errorf("geography: unsupported text %q", s)
	}
	coords := strings.Fields(strings.TrimSuffix(body, ")"))
	if len(coords) != 2 {
		return fmt.Errorf("geography: point needs two coordinates, got %q", s)
	}
	lng, err := strconv.ParseFloat(coords[0], 64)
	if err != nil {
		return fmt.Errorf("geography: longitude: %w", err)
	}
	lat, err := strconv.ParseFloat(coords[1], 64)
	if err != nil {
		return fmt.Errorf("geography: latitude: %w", err)
	}
	g.Lat, g.Lng = lat, lng
	return nil
}

func (g *GeographyPoint) decodeWKB(b []byte) error {
	if len(b) < 5 {
		return errShortWKB
	}
	var order binary.ByteOrder = binary.LittleEndian
	switch b[0] {
	case 0:
		order = binary.BigEndian
	case 1:
	default:
		return fmt.Errorf("geography: byte order marker %d", b[0])
	}

	kind := order.Uint32(b[1:5])
	b = b[5:]
	if kind&ewkbSRIDFlag != 0 {
		if len(b) < 4 {
			return errShortWKB
		}
		kind &^= ewkbSRIDFlag
		b = b[4:]
	}
	if kind != wkbPoint {
		return fmt.Errorf("geography: geometry type %d is not a point", kind)
	}
	if len(b) < 16 {
		return errShortWKB
	}
	g.Lng = math.Float64frombits(order.Uint64(b[:8]))
	g.Lat = math.Float64frombits(order.Uint64(b[8:16]))
	return nil
}
