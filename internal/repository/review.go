package repository

import (
	"context"

	"github.com/ziyanfeng/mws-restaurant-stage-3/internal/model"
)

type ReviewRepository interface {
	GetAll(ctx context.Context) ([]model.Review, error)
	FindByID(ctx context.Context, reviewID int64) (*model.Review, error)
	// lookup through the restaurant_id index
	FindByRestaurant(ctx context.Context, restaurantID int64) ([]model.Review, error)
	PutAll(ctx context.Context, reviews []model.Review) error
}

type ReviewRepoImpl struct {
	reviews *Collection[model.Review]
}

func NewReviewRepository(s *Store) ReviewRepository {
	return &ReviewRepoImpl{
		reviews: NewCollection(s, Schema[model.Review]{
			Kind: KindReviews,
			Key:  func(r model.Review) int64 { return r.ID },
			Indexes: map[string]func(model.Review) int64{
				IndexRestaurantID: func(r model.Review) int64 { return r.RestaurantID },
			},
		}),
	}
}

func (r *ReviewRepoImpl) GetAll(ctx context.Context) ([]model.Review, error) {
	return r.reviews.GetAll(ctx)
}

func (r *ReviewRepoImpl) FindByID(ctx context.Context, reviewID int64) (*model.Review, error) {
	return r.reviews.GetByID(ctx, reviewID)
}

func (r *ReviewRepoImpl) FindByRestaurant(ctx context.Context, restaurantID int64) ([]model.Review, error) {
	return r.reviews.GetByIndex(ctx, IndexRestaurantID, restaurantID)
}

func (r *ReviewRepoImpl) PutAll(ctx context.Context, reviews []model.Review) error {
	return r.reviews.PutAll(ctx, reviews)
}
