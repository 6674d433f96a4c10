package controllers

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"bus_tracker/internal/models"

	"github.com/twpayne/go-geom"
	gjson "github.com/twpayne/go-geom/encoding/geojson"
	"github.com/twpayne/go-geom/encoding/wkb"
)

// RouteRegistry is the administrative route persistence the admin endpoints need.
type RouteRegistry interface {
	CreateRoute(ctx context.Context, route *models.Route) error
	GetRoute(ctx context.Context, id uint) (*models.Route, error)
	ReplaceStops(ctx context.Context, routeID uint, stops []models.Stop) (*models.Route, error)
}

// RouteInvalidator drops cached copies of an edited route.
type RouteInvalidator interface {
	Invalidate(ctx context.Context, id uint)
}

type RouteController struct {
	routes RouteRegistry
	cache  RouteInvalidator // may be nil
}

func NewRouteController(routes RouteRegistry, cache RouteInvalidator) *RouteController {
	return &RouteController{routes: routes, cache: cache}
}

// RouteResponse mirrors models.Route with Geometry as a GeoJSON string.
type RouteResponse struct {
	ID         uint          `json:"id"`
	CreatedAt  time.Time     `json:"created_at"`
	UpdatedAt  time.Time     `json:"updated_at"`
	Name       string        `json:"name"`
	StartPoint string        `json:"start_point"`
	EndPoint   string        `json:"end_point"`
	Geometry   string        `json:"geometry,omitempty"`
	Stops      []models.Stop `json:"stops"`
}

func toRouteResponse(route models.Route) RouteResponse {
	jsonGeom, err := convertWKBToGeoJSON(route.Geometry)
	if err != nil {
		logrus.WithError(err).WithField("route_id", route.ID).Warn("Stored route geometry is not valid WKB.")
	}
	return RouteResponse{
		ID:         route.ID,
		CreatedAt:  route.CreatedAt,
		UpdatedAt:  route.UpdatedAt,
		Name:       route.Name,
		StartPoint: route.StartPoint,
		EndPoint:   route.EndPoint,
		Geometry:   jsonGeom,
		Stops:      route.Stops,
	}
}

// parseAndConvertGeometry parses a GeoJSON LineString into WKB bytes
func parseAndConvertGeometry(raw string) ([]byte, error) {
	if raw == "" {
		return nil, nil
	}
	var g geom.T
	if err := gjson.Unmarshal([]byte(raw), &g); err != nil {
		return nil, err
	}
	if _, ok := g.(*geom.LineString); !ok {
		return nil, fmt.Errorf("expected a LineString, got %T", g)
	}
	return wkb.Marshal(g, binary.LittleEndian)
}

// convertWKBToGeoJSON converts WKB bytes into a GeoJSON string
func convertWKBToGeoJSON(wkbBytes []byte) (string, error) {
	if len(wkbBytes) == 0 {
		return "", nil
	}
	g, err := wkb.Unmarshal(wkbBytes)
	if err != nil {
		return "", err
	}
	b, err := gjson.Marshal(g)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

type stopInput struct {
	Name     string `json:"name" binding:"required"`
	Sequence int    `json:"sequence"`
	Students int    `json:"students" binding:"gte=0"`
}

func toStops(in []stopInput) []models.Stop {
	stops := make([]models.Stop, 0, len(in))
	for _, s := range in {
		stops = append(stops, models.Stop{Name: strings.TrimSpace(s.Name), Sequence: s.Sequence, Students: s.Students})
	}
	return stops
}

// validateTopology rejects routes whose stop order or names would be
// ambiguous for name-based location matching.
func validateTopology(start, end string, stops []models.Stop) error {
	if start == "" || end == "" {
		return errors.New("start_point and end_point are required")
	}
	seen := map[string]bool{start: true}
	if seen[end] {
		return fmt.Errorf("end_point %q repeats start_point", end)
	}
	seen[end] = true

	sequences := make(map[int]bool, len(stops))
	for _, s := range stops {
		if s.Name == "" {
			return errors.New("stop name is required")
		}
		if s.Students < 0 {
			return fmt.Errorf("stop %q: students must not be negative", s.Name)
		}
		if sequences[s.Sequence] {
			return fmt.Errorf("duplicate stop sequence %d", s.Sequence)
		}
		sequences[s.Sequence] = true
		if seen[s.Name] {
			return fmt.Errorf("duplicate waypoint name %q", s.Name)
		}
		seen[s.Name] = true
	}
	return nil
}

// CreateRoute registers a route with its stops and optional GeoJSON geometry.
func (rc *RouteController) CreateRoute(c *gin.Context) {
	var input struct {
		Name       string      `json:"name" binding:"required"`
		StartPoint string      `json:"start_point" binding:"required"`
		EndPoint   string      `json:"end_point" binding:"required"`
		Geometry   string      `json:"geometry"`
		Stops      []stopInput `json:"stops" binding:"dive"`
	}
	if err := c.ShouldBindJSON(&input); err != nil {
		respondBindError(c, "CreateRoute", err)
		return
	}

	route := models.Route{
		Name:       strings.TrimSpace(input.Name),
		StartPoint: strings.TrimSpace(input.StartPoint),
		EndPoint:   strings.TrimSpace(input.EndPoint),
		Stops:      toStops(input.Stops),
	}
	if err := validateTopology(route.StartPoint, route.EndPoint, route.Stops); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid route: " + err.Error()})
		return
	}

	wkbGeom, err := parseAndConvertGeometry(input.Geometry)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid geometry: " + err.Error()})
		return
	}
	route.Geometry = wkbGeom

	if err := rc.routes.CreateRoute(c.Request.Context(), &route); err != nil {
		respondError(c, "CreateRoute", err)
		return
	}
	logrus.WithFields(logrus.Fields{"route_id": route.ID, "stops": len(route.Stops)}).Info("Route registered.")
	c.JSON(http.StatusCreated, gin.H{"route": toRouteResponse(route)})
}

// GetRoute returns a single route with stops and geometry.
func (rc *RouteController) GetRoute(c *gin.Context) {
	routeID, ok := parseID(c, "id", "route")
	if !ok {
		return
	}
	route, err := rc.routes.GetRoute(c.Request.Context(), routeID)
	if err != nil {
		respondError(c, "GetRoute", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"route": toRouteResponse(*route)})
}

// ReplaceStops swaps the full stop list of an existing route.
func (rc *RouteController) ReplaceStops(c *gin.Context) {
	routeID, ok := parseID(c, "id", "route")
	if !ok {
		return
	}
	var input struct {
		Stops []stopInput `json:"stops" binding:"required,dive"`
	}
	if err := c.ShouldBindJSON(&input); err != nil {
		respondBindError(c, "ReplaceStops", err)
		return
	}

	ctx := c.Request.Context()
	existing, err := rc.routes.GetRoute(ctx, routeID)
	if err != nil {
		respondError(c, "ReplaceStops", err)
		return
	}
	stops := toStops(input.Stops)
	if err := validateTopology(existing.StartPoint, existing.EndPoint, stops); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid route: " + err.Error()})
		return
	}

	route, err := rc.routes.ReplaceStops(ctx, routeID, stops)
	if err != nil {
		respondError(c, "ReplaceStops", err)
		return
	}
	if rc.cache != nil {
		rc.cache.Invalidate(ctx, routeID)
	}
	c.JSON(http.StatusOK, gin.H{"route": toRouteResponse(*route)})
}
