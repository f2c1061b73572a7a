package repository

import (
	"context"

	"github.com/ziyanfeng/mws-restaurant-stage-3/internal/model"
)

// RestaurantRepository: cached restaurants.
type RestaurantRepository interface {
	// every cached restaurant, in id order
	GetAll(ctx context.Context) ([]model.Restaurant, error)
	// nil, nil when the restaurant is not cached
	FindByID(ctx context.Context, restaurantID int64) (*model.Restaurant, error)
	// upsert keyed by id
	PutAll(ctx context.Context, restaurants []model.Restaurant) error
	// reports false when the restaurant is not cached
	SetFavorite(ctx context.Context, restaurantID int64, isFavorite bool) (bool, error)
}

type RestaurantRepoImpl struct {
	restaurants *Collection[model.Restaurant]
}

func NewRestaurantRepository(s *Store) RestaurantRepository {
	return &RestaurantRepoImpl{
		restaurants: NewCollection(s, Schema[model.Restaurant]{
			Kind: KindRestaurants,
			Key:  func(r model.Restaurant) int64 { return r.ID },
		}),
	}
}

func (r *RestaurantRepoImpl) GetAll(ctx context.Context) ([]model.Restaurant, error) {
	return r.restaurants.GetAll(ctx)
}

func (r *RestaurantRepoImpl) FindByID(ctx context.Context, restaurantID int64) (*model.Restaurant, error) {
	return r.restaurants.GetByID(ctx, restaurantID)
}

func (r *RestaurantRepoImpl) PutAll(ctx context.Context, restaurants []model.Restaurant) error {
	return r.restaurants.PutAll(ctx, restaurants)
}

func (r *RestaurantRepoImpl) SetFavorite(ctx context.Context, restaurantID int64, isFavorite bool) (bool, error) {
	return r.restaurants.Update(ctx, restaurantID, func(rest *model.Restaurant) {
		rest.IsFavorite = model.FlexBool(isFavorite)
	})
}
