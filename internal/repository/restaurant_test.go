package repository_test

import (
	"context"
	"testing"

	"github.com/ziyanfeng/mws-restaurant-stage-3/internal/model"
	"github.com/ziyanfeng/mws-restaurant-stage-3/internal/repository"
)

func TestRestaurantPutAllUpsert(t *testing.T) {
	store := setupTestStore(t)
	repo := repository.NewRestaurantRepository(store)
	ctx := context.Background()

	// Given: three restaurants
	initial := []model.Restaurant{
		{ID: 3, Name: "Kang Ho Dong Baekjeong", CuisineType: "Asian", Neighborhood: "Manhattan"},
		{ID: 1, Name: "Mission Chinese Food", CuisineType: "Asian", Neighborhood: "Manhattan"},
		{ID: 2, Name: "Emily", CuisineType: "Pizza", Neighborhood: "Brooklyn"},
	}
	if err := repo.PutAll(ctx, initial); err != nil {
		t.Fatalf("PutAll failed: %v", err)
	}

	// When: one of them is written again
	if err := repo.PutAll(ctx, []model.Restaurant{{ID: 2, Name: "Emily Pizza", CuisineType: "Pizza", Neighborhood: "Brooklyn"}}); err != nil {
		t.Fatalf("second PutAll failed: %v", err)
	}

	// Then: still three, in id order, with the overwrite applied
	all, err := repo.GetAll(ctx)
	if err != nil {
		t.Fatalf("GetAll failed: %v", err)
	}
	if len(all) != 3 {
		t.Fatalf("Expected 3 restaurants, got %d", len(all))
	}
	for i, want := range []int64{1, 2, 3} {
		if all[i].ID != want {
			t.Errorf("Expected restaurant %d at position %d, got %d", want, i, all[i].ID)
		}
	}
	if all[1].Name != "Emily Pizza" {
		t.Errorf("Expected overwritten name, got %q", all[1].Name)
	}
}

func TestRestaurantRoundTripKeepsDocument(t *testing.T) {
	store := setupTestStore(t)
	repo := repository.NewRestaurantRepository(store)
	ctx := context.Background()

	in := model.Restaurant{
		ID:             5,
		Name:           "Hometown BBQ",
		CuisineType:    "American",
		Neighborhood:   "Brooklyn",
		Address:        "454 Van Brunt St, Brooklyn, NY 11231",
		LatLng:         model.LatLng{Lat: 40.675026, Lng: -74.016039},
		Photograph:     "5",
		OperatingHours: map[string]string{"Monday": "Closed"},
		IsFavorite:     true,
	}
	if err := repo.PutAll(ctx, []model.Restaurant{in}); err != nil {
		t.Fatalf("PutAll failed: %v", err)
	}

	got, err := repo.FindByID(ctx, 5)
	if err != nil {
		t.Fatalf("FindByID failed: %v", err)
	}
	if got == nil {
		t.Fatalf("Expected restaurant to be found")
	}
	if got.LatLng != in.LatLng || got.Address != in.Address || !bool(got.IsFavorite) {
		t.Errorf("Expected %+v, got %+v", in, *got)
	}
	if got.OperatingHours["Monday"] != "Closed" {
		t.Errorf("Expected operating hours to be kept, got %v", got.OperatingHours)
	}
}

func TestRestaurantFindByIDNotFound(t *testing.T) {
	store := setupTestStore(t)
	repo := repository.NewRestaurantRepository(store)

	r, err := repo.FindByID(context.Background(), 99999)
	if err != nil {
		t.Fatalf("FindByID should not return error for not found, got: %v", err)
	}
	if r != nil {
		t.Errorf("Expected restaurant to be nil when not found, got: %+v", r)
	}
}

func TestRestaurantSetFavorite(t *testing.T) {
	store := setupTestStore(t)
	repo := repository.NewRestaurantRepository(store)
	ctx := context.Background()

	if err := repo.PutAll(ctx, []model.Restaurant{{ID: 1, Name: "Mission Chinese Food"}}); err != nil {
		t.Fatalf("PutAll failed: %v", err)
	}

	found, err := repo.SetFavorite(ctx, 1, true)
	if err != nil {
		t.Fatalf("SetFavorite failed: %v", err)
	}
	if !found {
		t.Fatalf("Expected restaurant 1 to be found")
	}

	r, err := repo.FindByID(ctx, 1)
	if err != nil {
		t.Fatalf("FindByID failed: %v", err)
	}
	if !bool(r.IsFavorite) {
		t.Errorf("Expected favorite flag to be set")
	}
	if r.Name != "Mission Chinese Food" {
		t.Errorf("Expected other fields untouched, got name %q", r.Name)
	}

	found, err = repo.SetFavorite(ctx, 42, true)
	if err != nil {
		t.Fatalf("SetFavorite on missing restaurant failed: %v", err)
	}
	if found {
		t.Errorf("Expected missing restaurant to be reported as not found")
	}
}
