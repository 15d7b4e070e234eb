package osrm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"taxirn/internal/mapview/application/ports/out"
	"taxirn/internal/mapview/domain"
	"taxirn/internal/shared/logger"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
)

// DefaultBaseURL — публичный demo-сервер OSRM
const DefaultBaseURL = "https://router.project-osrm.org"

// maxBody — ответ с полной геометрией длинного маршрута умещается с запасом
const maxBody = 8 << 20

// Client обращается к OSRM route service (профиль driving)
type Client struct {
	baseURL string
	http    *http.Client
	log     *logger.Logger
}

var _ out.RoutingClient = (*Client)(nil)

func NewClient(baseURL string, timeout time.Duration, log *logger.Logger) *Client {
	if strings.TrimSpace(baseURL) == "" {
		baseURL = DefaultBaseURL
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: timeout},
		log:     log,
	}
}

type routeResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Routes  []struct {
		Geometry json.RawMessage `json:"geometry"`
		Distance float64         `json:"distance"`
		Duration float64         `json:"duration"`
	} `json:"routes"`
}

// routeURL: /route/v1/driving/{lng},{lat};{lng},{lat}?overview=full&geometries=geojson
func (c *Client) routeURL(start, end domain.Point) string {
	coords := fmt.Sprintf("%s,%s;%s,%s",
		formatCoord(start.Lng), formatCoord(start.Lat),
		formatCoord(end.Lng), formatCoord(end.Lat),
	)
	q := url.Values{}
	q.Set("overview", "full")
	q.Set("geometries", "geojson")
	return c.baseURL + "/route/v1/driving/" + coords + "?" + q.Encode()
}

// FetchRoute возвращает геометрию первого маршрута в порядке (lat, lng)
func (c *Client) FetchRoute(ctx context.Context, start, end domain.Point) (*domain.RouteGeometry, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.routeURL(start, end), nil)
	if err != nil {
		return nil, fmt.Errorf("build osrm request: %w: %w", domain.ErrServiceError, err)
	}
	req.Header.Set("Accept", "application/json")

	started := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("osrm request: %w: %w", domain.ErrServiceError, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBody))
	if err != nil {
		return nil, fmt.Errorf("read osrm response: %w: %w", domain.ErrServiceError, err)
	}

	var parsed routeResponse
	decodeErr := json.Unmarshal(body, &parsed)

	// OSRM отвечает 400 с code=NoRoute/NoSegment, когда точки не связаны дорогой
	if isNoRoute(parsed.Code) {
		return nil, fmt.Errorf("osrm %s: %w", parsed.Code, domain.ErrRouteNotFound)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("osrm status %d %s: %w", resp.StatusCode, parsed.Message, domain.ErrServiceError)
	}
	if decodeErr != nil {
		return nil, fmt.Errorf("decode osrm response: %w: %w", domain.ErrServiceError, decodeErr)
	}
	if parsed.Code != "" && parsed.Code != "Ok" {
		return nil, fmt.Errorf("osrm code %s %s: %w", parsed.Code, parsed.Message, domain.ErrServiceError)
	}
	if len(parsed.Routes) == 0 {
		return nil, fmt.Errorf("osrm returned no routes: %w", domain.ErrRouteNotFound)
	}

	first := parsed.Routes[0]
	path, err := decodeLine(first.Geometry)
	if err != nil {
		return nil, fmt.Errorf("osrm geometry: %w: %w", domain.ErrRouteNotFound, err)
	}

	c.log.Debug(logger.Entry{
		Action: "osrm_route_fetched",
		Additional: map[string]any{
			"points":      len(path),
			"distance":    first.Distance,
			"duration":    first.Duration,
			"duration_ms": time.Since(started).Milliseconds(),
		},
	})

	return &domain.RouteGeometry{
		Path:     path,
		Distance: first.Distance,
		Duration: first.Duration,
	}, nil
}

func isNoRoute(code string) bool {
	return code == "NoRoute" || code == "NoSegment"
}

// decodeLine переводит GeoJSON LineString [lng, lat] в путь (lat, lng).
// Любая ошибка здесь означает, что пригодной геометрии нет.
func decodeLine(raw json.RawMessage) ([]domain.Point, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return nil, errors.New("empty geometry")
	}
	g, err := geojson.UnmarshalGeometry(raw)
	if err != nil {
		return nil, err
	}
	ls, ok := g.Coordinates.(orb.LineString)
	if !ok {
		return nil, fmt.Errorf("unexpected geometry %s", g.Type)
	}
	if len(ls) < 2 {
		return nil, errors.New("line has fewer than 2 points")
	}

	path := make([]domain.Point, 0, len(ls))
	for _, c := range ls {
		p := domain.PointFromOrb(c)
		if err := p.Validate(); err != nil {
			return nil, err
		}
		path = append(path, p)
	}
	return path, nil
}

func formatCoord(v float64) string {
	return fmt.Sprintf("%.6f", v)
}
