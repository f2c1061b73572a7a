// Package outbox holds the single pending write made while offline. The slot
// lives outside the structured store, like a browser's localStorage entry.
package outbox

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/ziyanfeng/mws-restaurant-stage-3/internal/model"
)

// DefaultKey names the slot in backends that have a key space.
const DefaultKey = "pending-review"

// Slot is a durable single-value outbox. Put overwrites whatever is there.
type Slot interface {
	Put(ctx context.Context, w model.PendingWrite) error
	// Get returns nil, nil when the slot is empty.
	Get(ctx context.Context) (*model.PendingWrite, error)
	Clear(ctx context.Context) error
	// ClearIf empties the slot only while it still holds the write with the
	// given id, and reports whether it did.
	ClearIf(ctx context.Context, id string) (bool, error)
}

// NewReviewWrite wraps a review payload into a PendingWrite.
func NewReviewWrite(p model.ReviewPayload) model.PendingWrite {
	return model.PendingWrite{
		ID:         uuid.NewString(),
		Kind:       model.PendingAddReview,
		Payload:    p,
		EnqueuedAt: time.Now().UTC(),
	}
}

func encode(w model.PendingWrite) ([]byte, error) {
	data, err := json.Marshal(w)
	if err != nil {
		return nil, fmt.Errorf("failed to encode pending write: %w", err)
	}
	return data, nil
}

func decode(data []byte) (*model.PendingWrite, error) {
	var w model.PendingWrite
	if err := json.Unmarshal(data, &w); err != nil {
		return nil, fmt.Errorf("failed to decode pending write: %w", err)
	}
	return &w, nil
}
