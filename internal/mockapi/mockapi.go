// Package mockapi is a stand-in for the restaurant reviews REST API, for
// development and tests. It keeps its data in SQLite through gorm.
package mockapi

import (
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/ziyanfeng/mws-restaurant-stage-3/internal/model"
)

//go:embed seed.json
var seedJSON []byte

type restaurantRow struct {
	ID             int64 `gorm:"primaryKey"`
	Name           string
	CuisineType    string `gorm:"index"`
	Neighborhood   string `gorm:"index"`
	Address        string
	Lat            float64
	Lng            float64
	Photograph     string
	OperatingHours map[string]string `gorm:"serializer:json;type:text"`
	IsFavorite     bool
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

func (restaurantRow) TableName() string { return "restaurants" }

type reviewRow struct {
	ID           int64 `gorm:"primaryKey;autoIncrement"`
	RestaurantID int64 `gorm:"not null;index"`
	Name         string
	Rating       int
	Comments     string `gorm:"type:text"`
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

func (reviewRow) TableName() string { return "reviews" }

// Open opens the mock database at path (":memory:" works) and migrates it.
func Open(path string) (*gorm.DB, error) {
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open mock database: %w", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}
	// an in-memory database exists per connection
	sqlDB.SetMaxOpenConns(1)

	if err := db.AutoMigrate(&restaurantRow{}, &reviewRow{}); err != nil {
		return nil, fmt.Errorf("failed to migrate mock database: %w", err)
	}
	return db, nil
}

type Server struct {
	db     *gorm.DB
	echo   *echo.Echo
	logger *slog.Logger
}

func New(db *gorm.DB, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{db: db, echo: echo.New(), logger: logger}
	s.echo.HideBanner = true
	s.echo.HidePort = true

	s.echo.GET("/restaurants", s.listRestaurants)
	s.echo.GET("/restaurants/", s.listRestaurants)
	s.echo.GET("/restaurants/:id", s.getRestaurant)
	s.echo.PUT("/restaurants/:id", s.setFavorite)
	s.echo.PUT("/restaurants/:id/", s.setFavorite)
	s.echo.GET("/reviews", s.listReviews)
	s.echo.GET("/reviews/", s.listReviews)
	s.echo.POST("/reviews", s.createReview)
	s.echo.POST("/reviews/", s.createReview)

	return s
}

func (s *Server) Handler() http.Handler {
	return s.echo
}

// Start serves on addr until ctx is done.
func (s *Server) Start(ctx context.Context, addr string) error {
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		s.echo.Shutdown(shutdownCtx)
	}()

	s.logger.Info("mock API server starting", "addr", addr)
	if err := s.echo.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Seed loads the bundled restaurants and reviews into an empty database.
func (s *Server) Seed(ctx context.Context) error {
	var count int64
	if err := s.db.WithContext(ctx).Model(&restaurantRow{}).Count(&count).Error; err != nil {
		return fmt.Errorf("failed to count restaurants: %w", err)
	}
	if count > 0 {
		return nil
	}

	var seed struct {
		Restaurants []model.Restaurant `json:"restaurants"`
		Reviews     []model.Review     `json:"reviews"`
	}
	if err := json.Unmarshal(seedJSON, &seed); err != nil {
		return fmt.Errorf("failed to decode seed: %w", err)
	}

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, r := range seed.Restaurants {
			row := fromRestaurant(r)
			if err := tx.Create(&row).Error; err != nil {
				return fmt.Errorf("failed to seed restaurant %d: %w", r.ID, err)
			}
		}
		for _, r := range seed.Reviews {
			row := reviewRow{
				ID:           r.ID,
				RestaurantID: r.RestaurantID,
				Name:         r.Name,
				Rating:       r.Rating,
				Comments:     r.Comments,
				CreatedAt:    time.UnixMilli(r.CreatedAt),
			}
			if err := tx.Create(&row).Error; err != nil {
				return fmt.Errorf("failed to seed review %d: %w", r.ID, err)
			}
		}
		return nil
	})
}

func (s *Server) listRestaurants(c echo.Context) error {
	var rows []restaurantRow
	if err := s.db.WithContext(c.Request().Context()).Order("id").Find(&rows).Error; err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	restaurants := make([]model.Restaurant, 0, len(rows))
	for _, row := range rows {
		restaurants = append(restaurants, row.toModel())
	}
	return c.JSON(http.StatusOK, restaurants)
}

func (s *Server) getRestaurant(c echo.Context) error {
	row, err := s.findRestaurant(c)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, row.toModel())
}

func (s *Server) setFavorite(c echo.Context) error {
	isFavorite, err := strconv.ParseBool(c.QueryParam("is_favorite"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid is_favorite")
	}
	row, err := s.findRestaurant(c)
	if err != nil {
		return err
	}

	row.IsFavorite = isFavorite
	if err := s.db.WithContext(c.Request().Context()).Model(&row).Update("is_favorite", isFavorite).Error; err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, row.toModel())
}

func (s *Server) listReviews(c echo.Context) error {
	q := s.db.WithContext(c.Request().Context()).Order("id")
	if raw := c.QueryParam("restaurant_id"); raw != "" {
		restaurantID, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid restaurant_id")
		}
		q = q.Where("restaurant_id = ?", restaurantID)
	}

	var rows []reviewRow
	if err := q.Find(&rows).Error; err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	reviews := make([]model.Review, 0, len(rows))
	for _, row := range rows {
		reviews = append(reviews, row.toModel())
	}
	return c.JSON(http.StatusOK, reviews)
}

func (s *Server) createReview(c echo.Context) error {
	var p model.ReviewPayload
	if err := c.Bind(&p); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid review")
	}

	row := reviewRow{
		RestaurantID: p.RestaurantID,
		Name:         p.Name,
		Rating:       p.Rating,
		Comments:     p.Comments,
	}
	if err := s.db.WithContext(c.Request().Context()).Create(&row).Error; err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusCreated, row.toModel())
}

func (s *Server) findRestaurant(c echo.Context) (restaurantRow, error) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		return restaurantRow{}, echo.NewHTTPError(http.StatusBadRequest, "invalid restaurant id")
	}

	var row restaurantRow
	err = s.db.WithContext(c.Request().Context()).First(&row, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return restaurantRow{}, echo.NewHTTPError(http.StatusNotFound, "restaurant does not exist")
	}
	if err != nil {
		return restaurantRow{}, echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return row, nil
}

func fromRestaurant(r model.Restaurant) restaurantRow {
	return restaurantRow{
		ID:             r.ID,
		Name:           r.Name,
		CuisineType:    r.CuisineType,
		Neighborhood:   r.Neighborhood,
		Address:        r.Address,
		Lat:            r.LatLng.Lat,
		Lng:            r.LatLng.Lng,
		Photograph:     r.Photograph,
		OperatingHours: r.OperatingHours,
		IsFavorite:     bool(r.IsFavorite),
	}
}

func (row restaurantRow) toModel() model.Restaurant {
	return model.Restaurant{
		ID:             row.ID,
		Name:           row.Name,
		CuisineType:    row.CuisineType,
		Neighborhood:   row.Neighborhood,
		Address:        row.Address,
		LatLng:         model.LatLng{Lat: row.Lat, Lng: row.Lng},
		Photograph:     row.Photograph,
		OperatingHours: row.OperatingHours,
		IsFavorite:     model.FlexBool(row.IsFavorite),
		CreatedAt:      row.CreatedAt.UTC().Format(time.RFC3339),
		UpdatedAt:      row.UpdatedAt.UTC().Format(time.RFC3339),
	}
}

func (row reviewRow) toModel() model.Review {
	return model.Review{
		ID:           row.ID,
		RestaurantID: row.RestaurantID,
		Name:         row.Name,
		Rating:       row.Rating,
		Comments:     row.Comments,
		CreatedAt:    row.CreatedAt.UnixMilli(),
		UpdatedAt:    row.UpdatedAt.UnixMilli(),
	}
}
