package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
)

// Polygon represents a closed boundary stored as a GeoJSON Polygon.
// Coordinates follow the GeoJSON structure: [rings][points][lon,lat].
// The value is persisted as GeoJSON text so it works on both the
// postgres and sqlite drivers.
type Polygon struct {
	Coordinates [][][2]float64
}

// IsZero reports whether the polygon has no rings.
func (p Polygon) IsZero() bool {
	return len(p.Coordinates) == 0
}

// Scan implements sql.Scanner for reading polygon geometry from the database.
func (p *Polygon) Scan(value interface{}) error {
	if value == nil {
		return nil
	}

	var raw []byte
	switch v := value.(type) {
	case []byte:
		raw = v
	case string:
		raw = []byte(v)
	default:
		return fmt.Errorf("failed to scan Polygon: expected []byte or string, got %T", value)
	}

	if len(raw) == 0 {
		return nil
	}

	var geom struct {
		Type        string         `json:"type"`
		Coordinates [][][2]float64 `json:"coordinates"`
	}
	if err := json.Unmarshal(raw, &geom); err != nil {
		return fmt.Errorf("failed to unmarshal polygon geometry: %w", err)
	}
	if geom.Type != "Polygon" {
		return fmt.Errorf("expected Polygon type, got %s", geom.Type)
	}

	p.Coordinates = geom.Coordinates
	return nil
}

// Value implements driver.Valuer for writing polygon geometry to the database.
func (p Polygon) Value() (driver.Value, error) {
	if p.IsZero() {
		return nil, nil
	}

	geoJSON, err := json.Marshal(map[string]interface{}{
		"type":        "Polygon",
		"coordinates": p.Coordinates,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal polygon to GeoJSON: %w", err)
	}

	return string(geoJSON), nil
}

// MarshalJSON implements json.Marshaler for API responses.
func (p Polygon) MarshalJSON() ([]byte, error) {
	if p.IsZero() {
		return []byte("null"), nil
	}

	geom := struct {
		Type        string         `json:"type"`
		Coordinates [][][2]float64 `json:"coordinates"`
	}{
		Type:        "Polygon",
		Coordinates: p.Coordinates,
	}
	return json.Marshal(geom)
}

// UnmarshalJSON implements json.Unmarshaler so polygons can be accepted
// directly in request bodies.
func (p *Polygon) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		p.Coordinates = nil
		return nil
	}

	var geom struct {
		Type        string         `json:"type"`
		Coordinates [][][2]float64 `json:"coordinates"`
	}
	if err := json.Unmarshal(data, &geom); err != nil {
		return err
	}
	if geom.Type != "" && geom.Type != "Polygon" {
		return fmt.Errorf("expected Polygon type, got %s", geom.Type)
	}

	p.Coordinates = geom.Coordinates
	return nil
}

// Close appends the first point as the last point if the ring is open.
// GeoJSON requires linear rings to be explicitly closed.
func (p *Polygon) Close() {
	for i, ring := range p.Coordinates {
		if len(ring) >= 3 && ring[0] != ring[len(ring)-1] {
			p.Coordinates[i] = append(ring, ring[0])
		}
	}
}
