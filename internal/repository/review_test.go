package repository_test

import (
	"context"
	"testing"

	"github.com/ziyanfeng/mws-restaurant-stage-3/internal/model"
	"github.com/ziyanfeng/mws-restaurant-stage-3/internal/repository"
)

func TestReviewsByRestaurantIndex(t *testing.T) {
	store := setupTestStore(t)
	repo := repository.NewReviewRepository(store)
	ctx := context.Background()

	reviews := []model.Review{
		{ID: 1, RestaurantID: 1, Name: "Steve", Rating: 4, Comments: "Mission Chinese Food has grown up."},
		{ID: 2, RestaurantID: 1, Name: "Morgan", Rating: 4, Comments: "This place is a blast."},
		{ID: 3, RestaurantID: 2, Name: "Jason", Rating: 3, Comments: "I was VERY excited."},
	}
	if err := repo.PutAll(ctx, reviews); err != nil {
		t.Fatalf("PutAll failed: %v", err)
	}

	got, err := repo.FindByRestaurant(ctx, 1)
	if err != nil {
		t.Fatalf("FindByRestaurant failed: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("Expected 2 reviews for restaurant 1, got %d", len(got))
	}
	if got[0].ID != 1 || got[1].ID != 2 {
		t.Errorf("Expected reviews 1 and 2, got %d and %d", got[0].ID, got[1].ID)
	}

	none, err := repo.FindByRestaurant(ctx, 9)
	if err != nil {
		t.Fatalf("FindByRestaurant failed: %v", err)
	}
	if len(none) != 0 {
		t.Errorf("Expected no reviews, got %d", len(none))
	}
}

func TestReviewMovedBetweenRestaurants(t *testing.T) {
	store := setupTestStore(t)
	repo := repository.NewReviewRepository(store)
	ctx := context.Background()

	if err := repo.PutAll(ctx, []model.Review{{ID: 1, RestaurantID: 1, Name: "Steve"}}); err != nil {
		t.Fatalf("PutAll failed: %v", err)
	}
	// the index column follows the upsert
	if err := repo.PutAll(ctx, []model.Review{{ID: 1, RestaurantID: 2, Name: "Steve"}}); err != nil {
		t.Fatalf("PutAll failed: %v", err)
	}

	old, _ := repo.FindByRestaurant(ctx, 1)
	moved, _ := repo.FindByRestaurant(ctx, 2)
	if len(old) != 0 || len(moved) != 1 {
		t.Errorf("Expected review under restaurant 2 only, got %d/%d", len(old), len(moved))
	}

	r, err := repo.FindByID(ctx, 1)
	if err != nil || r == nil {
		t.Fatalf("FindByID failed: %v, %v", r, err)
	}
	if r.RestaurantID != 2 {
		t.Errorf("Expected restaurant_id 2, got %d", r.RestaurantID)
	}
}
