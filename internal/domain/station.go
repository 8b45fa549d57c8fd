package domain

import (
	"encoding/json"
	"fmt"
	"strconv"
)

// Coordinates is a WGS-84 latitude/longitude pair. It is the natural key of a
// station in every downstream request.
type Coordinates struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// Key renders the coordinates the way the backend identifies a location, e.g. "-23.55,-46.63".
func (c Coordinates) Key() string {
	return strconv.FormatFloat(c.Lat, 'f', -1, 64) + "," + strconv.FormatFloat(c.Lon, 'f', -1, 64)
}

// Station is a monitoring point from the backend inventory. Either coordinate
// may be absent; such stations are kept in the inventory but never drawn.
type Station struct {
	Name string   `json:"name"`
	Lat  *float64 `json:"lat"`
	Lon  *float64 `json:"lon"`
}

// Coordinates returns the station position and whether both coordinates are present.
func (s Station) Coordinates() (Coordinates, bool) {
	if s.Lat == nil || s.Lon == nil {
		return Coordinates{}, false
	}
	return Coordinates{Lat: *s.Lat, Lon: *s.Lon}, true
}

// UnmarshalJSON accepts the display name under either "name" or the
// backend's Portuguese "nome" field. A field of the wrong type decodes as
// absent, so a bad coordinate leaves the station in place but undrawable.
// Only a payload that is not an object is an error.
func (s *Station) UnmarshalJSON(data []byte) error {
	var raw struct {
		Name json.RawMessage `json:"name"`
		Nome json.RawMessage `json:"nome"`
		Lat  json.RawMessage `json:"lat"`
		Lon  json.RawMessage `json:"lon"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("decode station: %w", err)
	}
	s.Name = stringField(raw.Name)
	if s.Name == "" {
		s.Name = stringField(raw.Nome)
	}
	s.Lat = numberField(raw.Lat)
	s.Lon = numberField(raw.Lon)
	return nil
}

func stringField(raw json.RawMessage) string {
	var v string
	if len(raw) == 0 || json.Unmarshal(raw, &v) != nil {
		return ""
	}
	return v
}

// numberField yields nil for an absent, null or non-numeric value.
func numberField(raw json.RawMessage) *float64 {
	var v *float64
	if len(raw) == 0 || json.Unmarshal(raw, &v) != nil {
		return nil
	}
	return v
}

// Marker is a drawable station: its index in the inventory, position and icon.
type Marker struct {
	Index    int         `json:"index"`
	Name     string      `json:"name"`
	Position Coordinates `json:"position"`
	Tier     Tier        `json:"tier"`
	Icon     MarkerIcon  `json:"icon"`
}

// Markers returns a neutral marker for every station that has both
// coordinates, in inventory order.
func Markers(stations []Station) []Marker {
	markers := make([]Marker, 0, len(stations))
	for i, s := range stations {
		pos, ok := s.Coordinates()
		if !ok {
			continue
		}
		markers = append(markers, Marker{
			Index:    i,
			Name:     s.Name,
			Position: pos,
			Tier:     TierNeutral,
			Icon:     IconFor(TierNeutral),
		})
	}
	return markers
}

// Viewport is the initial map framing.
type Viewport struct {
	Center Coordinates `json:"center"`
	Zoom   int         `json:"zoom"`
}

// DefaultViewport frames the whole of Brazil.
var DefaultViewport = Viewport{
	Center: Coordinates{Lat: -15.7797, Lon: -47.9297},
	Zoom:   4,
}
