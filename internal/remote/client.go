// Package remote is the client for the restaurant reviews REST API.
package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/ziyanfeng/mws-restaurant-stage-3/internal/model"
)

// DefaultBaseURL is where the development API server listens.
const DefaultBaseURL = "http://localhost:1337"

// ErrNotFound matches a StatusError carrying 404.
var ErrNotFound = errors.New("remote resource not found")

// StatusError is returned for any non-2xx response.
type StatusError struct {
	Method     string
	URL        string
	StatusCode int
	Status     string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s %s: request failed. Returned status of %s", e.Method, e.URL, e.Status)
}

func (e *StatusError) Is(target error) bool {
	return target == ErrNotFound && e.StatusCode == http.StatusNotFound
}

type Client struct {
	BaseURL string
	HTTP    *http.Client
}

func NewClient(baseURL string, timeout time.Duration) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Client{
		BaseURL: strings.TrimRight(baseURL, "/"),
		HTTP:    &http.Client{Timeout: timeout},
	}
}

// ListRestaurants: GET /restaurants
func (c *Client) ListRestaurants(ctx context.Context) ([]model.Restaurant, error) {
	var restaurants []model.Restaurant
	if err := c.getJSON(ctx, "/restaurants", &restaurants); err != nil {
		return nil, err
	}
	return restaurants, nil
}

// GetRestaurant: GET /restaurants/{id}
func (c *Client) GetRestaurant(ctx context.Context, restaurantID int64) (*model.Restaurant, error) {
	var restaurant model.Restaurant
	if err := c.getJSON(ctx, "/restaurants/"+strconv.FormatInt(restaurantID, 10), &restaurant); err != nil {
		return nil, err
	}
	return &restaurant, nil
}

// ListReviews: GET /reviews/?restaurant_id={id}
func (c *Client) ListReviews(ctx context.Context, restaurantID int64) ([]model.Review, error) {
	var reviews []model.Review
	path := "/reviews/?restaurant_id=" + strconv.FormatInt(restaurantID, 10)
	if err := c.getJSON(ctx, path, &reviews); err != nil {
		return nil, err
	}
	return reviews, nil
}

// CreateReview: POST /reviews/. The created review is decoded only when the
// server answers with JSON; otherwise it returns nil, nil.
func (c *Client) CreateReview(ctx context.Context, p model.ReviewPayload) (*model.Review, error) {
	body, err := json.Marshal(p)
	if err != nil {
		return nil, fmt.Errorf("failed to encode review: %w", err)
	}

	resp, err := c.do(ctx, http.MethodPost, "/reviews/", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if !isJSON(resp.Header.Get("Content-Type")) {
		io.Copy(io.Discard, resp.Body)
		return nil, nil
	}

	var review model.Review
	if err := json.NewDecoder(resp.Body).Decode(&review); err != nil {
		return nil, fmt.Errorf("failed to decode created review: %w", err)
	}
	return &review, nil
}

// SetFavorite: PUT /restaurants/{id}/?is_favorite={bool}
func (c *Client) SetFavorite(ctx context.Context, restaurantID int64, isFavorite bool) error {
	path := fmt.Sprintf("/restaurants/%d/?is_favorite=%t", restaurantID, isFavorite)
	resp, err := c.do(ctx, http.MethodPut, path, nil)
	if err != nil {
		return err
	}
	io.Copy(io.Discard, resp.Body)
	return resp.Body.Close()
}

// Ping reports whether the API answers at all. Any HTTP response, whatever
// its status, counts as reachable.
func (c *Client) Ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.BaseURL+"/", nil)
	if err != nil {
		return err
	}
	resp, err := c.HTTP.Do(req)
	if err != nil {
		return err
	}
	io.Copy(io.Discard, resp.Body)
	return resp.Body.Close()
}

func (c *Client) getJSON(ctx context.Context, path string, target interface{}) error {
	resp, err := c.do(ctx, http.MethodGet, path, nil)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if err := json.NewDecoder(resp.Body).Decode(target); err != nil {
		return fmt.Errorf("failed to decode %s: %w", path, err)
	}
	return nil
}

// do sends the request and turns non-2xx answers into *StatusError.
func (c *Client) do(ctx context.Context, method, path string, body io.Reader) (*http.Response, error) {
	u := c.BaseURL + path
	req, err := http.NewRequestWithContext(ctx, method, u, body)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		io.Copy(io.Discard, resp.Body)
		resp.Body.Close()
		return nil, &StatusError{Method: method, URL: redact(u), StatusCode: resp.StatusCode, Status: resp.Status}
	}
	return resp, nil
}

func isJSON(contentType string) bool {
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return false
	}
	return mediaType == "application/json" || strings.HasSuffix(mediaType, "+json")
}

// redact drops userinfo from URLs that end up in errors and logs.
func redact(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return raw
	}
	return u.Redacted()
}
