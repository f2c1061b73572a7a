package service

import (
	"context"

	"github.com/ziyanfeng/mws-restaurant-stage-3/internal/model"
)

// FilterAll disables filtering on one dimension of ByCuisineAndNeighborhood.
const FilterAll = "all"

// ByCuisine returns the restaurants serving exactly this cuisine.
func (s *SyncClient) ByCuisine(ctx context.Context, cuisine string) ([]model.Restaurant, error) {
	restaurants, err := s.FetchRestaurants(ctx)
	if err != nil {
		return nil, err
	}
	return filter(restaurants, func(r model.Restaurant) bool { return r.CuisineType == cuisine }), nil
}

// ByNeighborhood returns the restaurants in exactly this neighborhood.
func (s *SyncClient) ByNeighborhood(ctx context.Context, neighborhood string) ([]model.Restaurant, error) {
	restaurants, err := s.FetchRestaurants(ctx)
	if err != nil {
		return nil, err
	}
	return filter(restaurants, func(r model.Restaurant) bool { return r.Neighborhood == neighborhood }), nil
}

// ByCuisineAndNeighborhood filters on both dimensions; FilterAll on either
// side leaves that side unfiltered.
func (s *SyncClient) ByCuisineAndNeighborhood(ctx context.Context, cuisine, neighborhood string) ([]model.Restaurant, error) {
	restaurants, err := s.FetchRestaurants(ctx)
	if err != nil {
		return nil, err
	}
	return FilterRestaurants(restaurants, cuisine, neighborhood), nil
}

// Neighborhoods lists each neighborhood once, in first-seen order.
func (s *SyncClient) Neighborhoods(ctx context.Context) ([]string, error) {
	restaurants, err := s.FetchRestaurants(ctx)
	if err != nil {
		return nil, err
	}
	return distinct(restaurants, func(r model.Restaurant) string { return r.Neighborhood }), nil
}

// Cuisines lists each cuisine once, in first-seen order.
func (s *SyncClient) Cuisines(ctx context.Context) ([]string, error) {
	restaurants, err := s.FetchRestaurants(ctx)
	if err != nil {
		return nil, err
	}
	return distinct(restaurants, func(r model.Restaurant) string { return r.CuisineType }), nil
}

// FilterRestaurants keeps the input order.
func FilterRestaurants(restaurants []model.Restaurant, cuisine, neighborhood string) []model.Restaurant {
	results := restaurants
	if cuisine != FilterAll {
		results = filter(results, func(r model.Restaurant) bool { return r.CuisineType == cuisine })
	}
	if neighborhood != FilterAll {
		results = filter(results, func(r model.Restaurant) bool { return r.Neighborhood == neighborhood })
	}
	return results
}

func filter(restaurants []model.Restaurant, keep func(model.Restaurant) bool) []model.Restaurant {
	results := []model.Restaurant{}
	for _, r := range restaurants {
		if keep(r) {
			results = append(results, r)
		}
	}
	return results
}

func distinct(restaurants []model.Restaurant, field func(model.Restaurant) string) []string {
	seen := make(map[string]struct{}, len(restaurants))
	values := []string{}
	for _, r := range restaurants {
		v := field(r)
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		values = append(values, v)
	}
	return values
}
