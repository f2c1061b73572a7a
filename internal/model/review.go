package model

import "time"

// Review is a restaurant review.
type Review struct {
	// id INTEGER PRIMARY KEY
	ID int64 `json:"id"`

	// restaurant_id INTEGER NOT NULL, indexed
	RestaurantID int64 `json:"restaurant_id"`

	Name     string `json:"name"`
	Rating   int    `json:"rating"` // 1-5, not validated
	Comments string `json:"comments"`

	// milliseconds since epoch, as sent by the remote API
	CreatedAt int64 `json:"createdAt,omitempty"`
	UpdatedAt int64 `json:"updatedAt,omitempty"`
}

// Created returns CreatedAt as time.Time.
func (r Review) Created() time.Time {
	return time.UnixMilli(r.CreatedAt)
}
