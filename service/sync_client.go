package service

import (
	"context"
	"log/slog"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"

	"golang.org/x/sync/errgroup"

	"github.com/ziyanfeng/mws-restaurant-stage-3/internal/connectivity"
	"github.com/ziyanfeng/mws-restaurant-stage-3/internal/model"
	"github.com/ziyanfeng/mws-restaurant-stage-3/internal/outbox"
	"github.com/ziyanfeng/mws-restaurant-stage-3/internal/repository"
)

// Remote is the part of the REST API the client talks to.
type Remote interface {
	ListRestaurants(ctx context.Context) ([]model.Restaurant, error)
	GetRestaurant(ctx context.Context, restaurantID int64) (*model.Restaurant, error)
	ListReviews(ctx context.Context, restaurantID int64) ([]model.Review, error)
	CreateReview(ctx context.Context, p model.ReviewPayload) (*model.Review, error)
	SetFavorite(ctx context.Context, restaurantID int64, isFavorite bool) error
}

// SyncClient serves restaurant data from the local store, falling back to the
// remote API, and sends review writes directly or through the outbox.
//
// There is no single-flight: concurrent callers that all miss the local store
// each fetch and upsert on their own.
type SyncClient struct {
	RestaurantRepo repository.RestaurantRepository
	ReviewRepo     repository.ReviewRepository
	Remote         Remote
	Outbox         outbox.Slot
	Monitor        *connectivity.Monitor

	Logger  *slog.Logger
	Metrics *Metrics

	armed    atomic.Bool
	inflight sync.WaitGroup
	// one replay at a time
	flushMu sync.Mutex
}

func NewSyncClient(
	restaurantRepo repository.RestaurantRepository,
	reviewRepo repository.ReviewRepository,
	remote Remote,
	slot outbox.Slot,
	monitor *connectivity.Monitor,
	logger *slog.Logger,
) *SyncClient {
	if logger == nil {
		logger = slog.Default()
	}
	return &SyncClient{
		RestaurantRepo: restaurantRepo,
		ReviewRepo:     reviewRepo,
		Remote:         remote,
		Outbox:         slot,
		Monitor:        monitor,
		Logger:         logger,
		Metrics:        NewMetrics(),
	}
}

// Start picks up a pending write left by a previous run: it is sent now when
// online, or armed for the next transition to online.
func (s *SyncClient) Start(ctx context.Context) error {
	w, err := s.Outbox.Get(ctx)
	if err != nil {
		return storeError(err)
	}
	if w == nil {
		return nil
	}

	s.Logger.Info("found pending write from previous run", "id", w.ID, "kind", w.Kind)
	s.armReplay()
	return nil
}

// Wait blocks until background cache refreshes have finished.
func (s *SyncClient) Wait() {
	s.inflight.Wait()
}

// Stats returns a snapshot of the client's counters.
func (s *SyncClient) Stats() MetricsSnapshot {
	return s.Metrics.GetSnapshot()
}

// FetchRestaurants returns the cached restaurants when there are any. Otherwise
// it fetches them, caches them, and returns them; a failure to cache does not
// fail the call.
func (s *SyncClient) FetchRestaurants(ctx context.Context) ([]model.Restaurant, error) {
	cached, err := s.RestaurantRepo.GetAll(ctx)
	if err != nil {
		s.Metrics.RecordStoreError()
		s.Logger.Error("failed to read cached restaurants", "error", err)
	}
	if len(cached) > 0 {
		s.Metrics.RecordLocalHit()
		return cached, nil
	}
	s.Metrics.RecordLocalMiss()

	s.Metrics.RecordNetworkFetch()
	restaurants, err := s.Remote.ListRestaurants(ctx)
	if err != nil {
		s.Metrics.RecordNetworkError()
		return nil, networkError(err)
	}

	if err := s.RestaurantRepo.PutAll(ctx, restaurants); err != nil {
		s.Metrics.RecordStoreError()
		s.Logger.Error("failed to cache restaurants", "error", err)
	} else {
		s.Logger.Debug("restaurants added to local store", "count", len(restaurants))
	}
	return restaurants, nil
}

// FetchRestaurantByID returns the cached restaurant, or fetches it. A fetched
// restaurant is not cached: the list path treats a non-empty store as the
// complete list, so a lone record would hide the rest.
func (s *SyncClient) FetchRestaurantByID(ctx context.Context, restaurantID int64) (*model.Restaurant, error) {
	cached, err := s.RestaurantRepo.FindByID(ctx, restaurantID)
	if err != nil {
		s.Metrics.RecordStoreError()
		s.Logger.Error("failed to read cached restaurant", "id", restaurantID, "error", err)
	}
	if cached != nil {
		s.Metrics.RecordLocalHit()
		return cached, nil
	}
	s.Metrics.RecordLocalMiss()

	s.Metrics.RecordNetworkFetch()
	restaurant, err := s.Remote.GetRestaurant(ctx, restaurantID)
	if err != nil {
		s.Metrics.RecordNetworkError()
		return nil, networkError(err)
	}
	return restaurant, nil
}

// FetchReviewsForRestaurant always asks the remote API first and refreshes
// the cache in the background. When the API cannot be reached, cached reviews
// are returned if there are any.
func (s *SyncClient) FetchReviewsForRestaurant(ctx context.Context, restaurantID int64) ([]model.Review, error) {
	s.Metrics.RecordNetworkFetch()
	reviews, err := s.Remote.ListReviews(ctx, restaurantID)
	if err != nil {
		s.Metrics.RecordNetworkError()
		cached, cacheErr := s.ReviewRepo.FindByRestaurant(ctx, restaurantID)
		if cacheErr != nil {
			s.Metrics.RecordStoreError()
			s.Logger.Error("failed to read cached reviews", "restaurant_id", restaurantID, "error", cacheErr)
		}
		if len(cached) > 0 {
			s.Metrics.RecordLocalHit()
			s.Logger.Warn("serving cached reviews", "restaurant_id", restaurantID, "error", err)
			return cached, nil
		}
		return nil, networkError(err)
	}

	s.inflight.Add(1)
	go func() {
		defer s.inflight.Done()
		// detached: the caller may be gone by the time this runs
		if err := s.ReviewRepo.PutAll(context.Background(), reviews); err != nil {
			s.Metrics.RecordStoreError()
			s.Logger.Debug("background review refresh failed", "restaurant_id", restaurantID, "error", err)
		}
	}()

	return reviews, nil
}

// ReviewForm is a review as submitted by the page. Nothing is validated;
// RestaurantID and Rating are coerced to integers, 0 when unparsable.
type ReviewForm struct {
	RestaurantID string
	Name         string
	Rating       string
	Comments     string
}

// SubmitResult tells the caller what happened to a submitted review.
type SubmitResult struct {
	// Queued is set when the review went to the outbox.
	Queued bool
	// Review is the created review, when the API answered with JSON.
	Review *model.Review
}

// SubmitReview posts the review when online. Offline, the review replaces
// whatever is in the outbox and is sent once when connectivity returns, or
// right away if it returned while the review was being queued.
// A failed post is not retried.
func (s *SyncClient) SubmitReview(ctx context.Context, form ReviewForm) (SubmitResult, error) {
	payload := model.ReviewPayload{
		RestaurantID: int64(toInt(form.RestaurantID)),
		Name:         form.Name,
		Rating:       toInt(form.Rating),
		Comments:     form.Comments,
	}

	if !s.Monitor.Online() {
		w := outbox.NewReviewWrite(payload)
		if err := s.Outbox.Put(ctx, w); err != nil {
			s.Metrics.RecordStoreError()
			return SubmitResult{}, storeError(err)
		}
		s.Metrics.RecordQueuedWrite()
		s.Logger.Info("offline, review queued", "id", w.ID, "restaurant_id", payload.RestaurantID)
		s.armReplay()
		return SubmitResult{Queued: true}, nil
	}

	s.Metrics.RecordNetworkFetch()
	review, err := s.Remote.CreateReview(ctx, payload)
	if err != nil {
		s.Metrics.RecordNetworkError()
		return SubmitResult{}, networkError(err)
	}
	return SubmitResult{Review: review}, nil
}

// UpdateFavorite sets the favorite flag remotely and in the local store at the
// same time. The two are independent: either may fail without the other
// being undone. Only the remote failure is returned.
func (s *SyncClient) UpdateFavorite(ctx context.Context, restaurantID int64, isFavorite bool) error {
	var g errgroup.Group

	g.Go(func() error {
		s.Metrics.RecordNetworkFetch()
		if err := s.Remote.SetFavorite(ctx, restaurantID, isFavorite); err != nil {
			s.Metrics.RecordNetworkError()
			return networkError(err)
		}
		return nil
	})

	g.Go(func() error {
		found, err := s.RestaurantRepo.SetFavorite(ctx, restaurantID, isFavorite)
		if err != nil {
			s.Metrics.RecordStoreError()
			s.Logger.Error("failed to update cached favorite", "id", restaurantID, "error", err)
			return nil
		}
		if !found {
			s.Logger.Debug("favorite not cached locally", "id", restaurantID)
		}
		return nil
	})

	return g.Wait()
}

// armReplay arms at most one online listener, however many reviews are
// queued before it fires. When the monitor is already online the replay runs
// now instead.
func (s *SyncClient) armReplay() {
	if !s.armed.CompareAndSwap(false, true) {
		return
	}
	s.Monitor.WhenOnline(func() {
		s.armed.Store(false)
		s.flushPending(context.Background())
	})
}

// flushPending sends the pending write, if any, and clears the slot once the
// API accepted it, unless a newer write replaced it meanwhile. A failed send
// leaves it in place for the next start.
func (s *SyncClient) flushPending(ctx context.Context) {
	s.flushMu.Lock()
	defer s.flushMu.Unlock()

	w, err := s.Outbox.Get(ctx)
	if err != nil {
		s.Metrics.RecordStoreError()
		s.Logger.Error("failed to read pending write", "error", err)
		return
	}
	if w == nil {
		return
	}

	switch w.Kind {
	case model.PendingAddReview:
		if _, err := s.Remote.CreateReview(ctx, w.Payload); err != nil {
			s.Metrics.RecordFailedReplay()
			s.Logger.Error("failed to replay pending review", "id", w.ID, "error", err)
			return
		}
	default:
		s.Logger.Warn("dropping pending write of unknown kind", "id", w.ID, "kind", w.Kind)
	}

	cleared, err := s.Outbox.ClearIf(ctx, w.ID)
	if err != nil {
		s.Metrics.RecordStoreError()
		s.Logger.Error("failed to clear pending write", "id", w.ID, "error", err)
		return
	}
	if !cleared {
		s.Logger.Debug("pending write replaced during replay, keeping the newer one", "id", w.ID)
	}
	if w.Kind == model.PendingAddReview {
		s.Metrics.RecordReplay()
		s.Logger.Info("pending review sent", "id", w.ID, "restaurant_id", w.Payload.RestaurantID)
	}
}

// toInt reads the leading integer of s the way a form field is coerced in
// the browser: "4.5" is 4, "3abc" is 3, and anything without leading digits
// is 0.
func toInt(s string) int {
	s = strings.TrimSpace(s)
	end := 0
	if end < len(s) && (s[end] == '-' || s[end] == '+') {
		end++
	}
	digits := end
	for end < len(s) && s[end] >= '0' && s[end] <= '9' {
		end++
	}
	if end == digits {
		return 0
	}
	n, err := strconv.Atoi(s[:end])
	if err != nil {
		return 0
	}
	return n
}
