// Package httpapi exposes the sync client to the page over JSON.
package httpapi

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/ziyanfeng/mws-restaurant-stage-3/internal/model"
	"github.com/ziyanfeng/mws-restaurant-stage-3/service"
)

// RestaurantView is a restaurant as rendered by the page, with its links.
type RestaurantView struct {
	model.Restaurant
	URL      string `json:"url"`
	ImageURL string `json:"image_url,omitempty"`
}

func newRestaurantView(r model.Restaurant) RestaurantView {
	return RestaurantView{Restaurant: r, URL: r.PageURL(), ImageURL: r.ImageURL()}
}

type Handler struct {
	Client *service.SyncClient
	Logger *slog.Logger
}

func New(client *service.SyncClient, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{Client: client, Logger: logger}
}

// Register mounts the routes under /api.
func (h *Handler) Register(e *echo.Echo) {
	g := e.Group("/api")
	g.GET("/restaurants", h.listRestaurants)
	g.GET("/restaurants/:id", h.getRestaurant)
	g.GET("/restaurants/:id/reviews", h.listReviews)
	g.PUT("/restaurants/:id/favorite", h.setFavorite)
	g.GET("/neighborhoods", h.listNeighborhoods)
	g.GET("/cuisines", h.listCuisines)
	g.POST("/reviews", h.submitReview)
	g.GET("/stats", h.stats)
}

// GET /api/restaurants?cuisine=&neighborhood=
func (h *Handler) listRestaurants(c echo.Context) error {
	cuisine := c.QueryParam("cuisine")
	if cuisine == "" {
		cuisine = service.FilterAll
	}
	neighborhood := c.QueryParam("neighborhood")
	if neighborhood == "" {
		neighborhood = service.FilterAll
	}

	restaurants, err := h.Client.ByCuisineAndNeighborhood(c.Request().Context(), cuisine, neighborhood)
	if err != nil {
		return h.fail(c, err)
	}

	views := make([]RestaurantView, 0, len(restaurants))
	for _, r := range restaurants {
		views = append(views, newRestaurantView(r))
	}
	return c.JSON(http.StatusOK, views)
}

// GET /api/restaurants/:id
func (h *Handler) getRestaurant(c echo.Context) error {
	id, err := restaurantID(c)
	if err != nil {
		return err
	}
	restaurant, err := h.Client.FetchRestaurantByID(c.Request().Context(), id)
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(http.StatusOK, newRestaurantView(*restaurant))
}

// GET /api/restaurants/:id/reviews. The list comes from the remote API; when
// it cannot be reached, the reviews cached by earlier calls are served
// instead, possibly stale.
func (h *Handler) listReviews(c echo.Context) error {
	id, err := restaurantID(c)
	if err != nil {
		return err
	}
	reviews, err := h.Client.FetchReviewsForRestaurant(c.Request().Context(), id)
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(http.StatusOK, reviews)
}

// PUT /api/restaurants/:id/favorite?is_favorite=
func (h *Handler) setFavorite(c echo.Context) error {
	id, err := restaurantID(c)
	if err != nil {
		return err
	}
	isFavorite, err := strconv.ParseBool(c.QueryParam("is_favorite"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "is_favorite must be true or false")
	}

	if err := h.Client.UpdateFavorite(c.Request().Context(), id, isFavorite); err != nil {
		return h.fail(c, err)
	}
	return c.JSON(http.StatusOK, map[string]interface{}{"id": id, "is_favorite": isFavorite})
}

func (h *Handler) listNeighborhoods(c echo.Context) error {
	neighborhoods, err := h.Client.Neighborhoods(c.Request().Context())
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(http.StatusOK, neighborhoods)
}

func (h *Handler) listCuisines(c echo.Context) error {
	cuisines, err := h.Client.Cuisines(c.Request().Context())
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(http.StatusOK, cuisines)
}

// POST /api/reviews, from a form post or a JSON body. The values are passed
// on as given; 201 when posted, 202 when queued for later.
func (h *Handler) submitReview(c echo.Context) error {
	form, err := readReviewForm(c)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	res, err := h.Client.SubmitReview(c.Request().Context(), form)
	if err != nil {
		return h.fail(c, err)
	}
	if res.Queued {
		return c.JSON(http.StatusAccepted, map[string]interface{}{"queued": true})
	}
	return c.JSON(http.StatusCreated, map[string]interface{}{"queued": false, "review": res.Review})
}

func (h *Handler) stats(c echo.Context) error {
	return c.JSON(http.StatusOK, h.Client.Stats())
}

// fail maps client errors onto HTTP statuses.
func (h *Handler) fail(c echo.Context, err error) error {
	switch {
	case service.IsNotFound(err):
		return echo.NewHTTPError(http.StatusNotFound, "restaurant not found")
	case service.IsNetwork(err):
		h.Logger.Warn("upstream request failed", "path", c.Path(), "error", err)
		return echo.NewHTTPError(http.StatusBadGateway, "restaurant service unavailable")
	default:
		h.Logger.Error("request failed", "path", c.Path(), "error", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "internal error")
	}
}

func restaurantID(c echo.Context) (int64, error) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		return 0, echo.NewHTTPError(http.StatusBadRequest, "invalid restaurant id")
	}
	return id, nil
}

func readReviewForm(c echo.Context) (service.ReviewForm, error) {
	req := c.Request()
	if strings.HasPrefix(req.Header.Get(echo.HeaderContentType), echo.MIMEApplicationJSON) {
		var body map[string]interface{}
		dec := json.NewDecoder(req.Body)
		// numbers stay in their written form: 1000000, not 1e+06
		dec.UseNumber()
		if err := dec.Decode(&body); err != nil {
			return service.ReviewForm{}, fmt.Errorf("invalid review body: %w", err)
		}
		return service.ReviewForm{
			RestaurantID: field(body, "restaurant_id"),
			Name:         field(body, "name"),
			Rating:       field(body, "rating"),
			Comments:     field(body, "comments"),
		}, nil
	}

	return service.ReviewForm{
		RestaurantID: c.FormValue("restaurant_id"),
		Name:         c.FormValue("name"),
		Rating:       c.FormValue("rating"),
		Comments:     c.FormValue("comments"),
	}, nil
}

func field(body map[string]interface{}, key string) string {
	switch v := body[key].(type) {
	case nil:
		return ""
	case string:
		return v
	case json.Number:
		return v.String()
	default:
		return fmt.Sprint(v)
	}
}
