package model

import (
	"time"
)

// PendingWriteKind names the mutation held by a PendingWrite.
type PendingWriteKind string

const (
	PendingAddReview PendingWriteKind = "add_review"
)

// PendingWrite is a mutation attempted while offline, waiting to be replayed
// against the remote API. Only one is retained at a time.
type PendingWrite struct {
	ID   string           `json:"id"`
	Kind PendingWriteKind `json:"kind"`

	// review awaiting a server-assigned id
	Payload ReviewPayload `json:"payload"`

	EnqueuedAt time.Time `json:"enqueued_at"`
}

// ReviewPayload is the body of POST /reviews/.
type ReviewPayload struct {
	RestaurantID int64  `json:"restaurant_id"`
	Name         string `json:"name"`
	Rating       int    `json:"rating"`
	Comments     string `json:"comments"`
}
