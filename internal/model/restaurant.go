package model

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
)

// Restaurant is a restaurant as served by the remote API and cached locally.
type Restaurant struct {
	// id INTEGER PRIMARY KEY
	ID int64 `json:"id"`

	Name         string `json:"name"`
	CuisineType  string `json:"cuisine_type"`
	Neighborhood string `json:"neighborhood"`
	Address      string `json:"address"`
	LatLng       LatLng `json:"latlng"`
	Photograph   string `json:"photograph,omitempty"`

	// day of week -> opening hours, e.g. "Monday": "5:30 pm - 11:00 pm"
	OperatingHours map[string]string `json:"operating_hours,omitempty"`

	// the only field mutated locally
	IsFavorite FlexBool `json:"is_favorite"`

	CreatedAt string `json:"createdAt,omitempty"`
	UpdatedAt string `json:"updatedAt,omitempty"`
}

// LatLng is a geographic coordinate.
type LatLng struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// PageURL returns the relative URL of the restaurant's detail page.
func (r Restaurant) PageURL() string {
	return fmt.Sprintf("./restaurant.html?id=%d", r.ID)
}

// ImageURL returns the restaurant's photograph URL, or "" for a restaurant
// without an id.
func (r Restaurant) ImageURL() string {
	if r.ID == 0 {
		return ""
	}
	return fmt.Sprintf("/img/%d.jpg", r.ID)
}

// FlexBool decodes from a JSON boolean or from the strings "true"/"false".
// The remote API flips between both forms after a favorite update.
type FlexBool bool

func (b *FlexBool) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*b = false
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		if s == "" {
			*b = false
			return nil
		}
		v, err := strconv.ParseBool(s)
		if err != nil {
			return fmt.Errorf("invalid boolean %q: %w", s, err)
		}
		*b = FlexBool(v)
		return nil
	}
	var v bool
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	*b = FlexBool(v)
	return nil
}
