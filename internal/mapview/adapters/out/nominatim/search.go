package nominatim

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"taxirn/internal/mapview/application/ports/out"
	"taxirn/internal/mapview/domain"
	"taxirn/internal/shared/logger"

	"github.com/muesli/gominatim"
)

const (
	DefaultServer = "https://nominatim.openstreetmap.org"

	// политика публичного Nominatim: не чаще ~1 запроса в секунду
	minInterval      = 1 * time.Second
	transientRetries = 1
	retryDelay       = 150 * time.Millisecond
)

// gominatim держит адрес сервера в глобальной переменной
var serverOnce sync.Once

type queryFunc func(q string, limit int) ([]gominatim.SearchResult, error)

func gominatimQuery(q string, limit int) ([]gominatim.SearchResult, error) {
	sq := gominatim.SearchQuery{Q: q, Limit: limit}
	return sq.Get()
}

// Searcher — геокодирование через Nominatim с кешем удачных ответов
type Searcher struct {
	query queryFunc
	cache out.KeyValueStore // может быть nil
	log   *logger.Logger

	throttleMu sync.Mutex
	last       time.Time
	interval   time.Duration
}

var _ out.PlaceSearcher = (*Searcher)(nil)

func NewSearcher(server string, cache out.KeyValueStore, log *logger.Logger) *Searcher {
	if strings.TrimSpace(server) == "" {
		server = DefaultServer
	}
	serverOnce.Do(func() { gominatim.SetServer(server) })

	return &Searcher{
		query:    gominatimQuery,
		cache:    cache,
		log:      log,
		interval: minInterval,
	}
}

func cacheKey(q string, limit int) string {
	return fmt.Sprintf("geocode:%d:%s", limit, strings.ToLower(q))
}

// Search возвращает до limit мест; результаты с некорректными координатами отбрасываются
func (s *Searcher) Search(ctx context.Context, query string, limit int) ([]domain.Place, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, domain.ErrEmptyQuery
	}
	key := cacheKey(query, limit)

	if s.cache != nil {
		if raw, found, err := s.cache.Get(ctx, key); err == nil && found {
			var places []domain.Place
			if json.Unmarshal(raw, &places) == nil {
				return places, nil
			}
		}
	}

	results, err := s.fetch(ctx, query, limit)
	if err != nil {
		return nil, err
	}

	places := make([]domain.Place, 0, len(results))
	for _, r := range results {
		lat, errLat := strconv.ParseFloat(r.Lat, 64)
		lng, errLng := strconv.ParseFloat(r.Lon, 64)
		if errLat != nil || errLng != nil {
			continue
		}
		p, err := domain.NewPoint(lat, lng)
		if err != nil {
			continue
		}
		category := r.Class
		if r.Type != "" {
			category = strings.Trim(category+"/"+r.Type, "/")
		}
		places = append(places, domain.Place{Name: r.DisplayName, Category: category, Point: p})
		if limit > 0 && len(places) == limit {
			break
		}
	}

	if s.cache != nil {
		if raw, err := json.Marshal(places); err == nil {
			_ = s.cache.Set(ctx, key, raw)
		}
	}
	return places, nil
}

func (s *Searcher) fetch(ctx context.Context, query string, limit int) ([]gominatim.SearchResult, error) {
	var lastErr error
	for attempt := 1; attempt <= transientRetries+1; attempt++ {
		if err := s.wait(ctx); err != nil {
			return nil, err
		}
		res, err := s.queryWithContext(ctx, query, limit)
		if err == nil {
			return res, nil
		}
		lastErr = err
		if ctx.Err() != nil || !isTransient(err) {
			break
		}
		s.log.Warn(logger.Entry{
			Action:     "nominatim_transient_error",
			Message:    err.Error(),
			Additional: map[string]any{"attempt": attempt, "query": query},
		})
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(retryDelay):
		}
	}
	return nil, fmt.Errorf("nominatim search: %w", lastErr)
}

// queryWithContext — gominatim не принимает context, ждем результат в горутине
func (s *Searcher) queryWithContext(ctx context.Context, query string, limit int) ([]gominatim.SearchResult, error) {
	type result struct {
		res []gominatim.SearchResult
		err error
	}
	done := make(chan result, 1)
	go func() {
		res, err := s.query(query, limit)
		done <- result{res, err}
	}()

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case r := <-done:
		return r.res, r.err
	}
}

func (s *Searcher) wait(ctx context.Context) error {
	s.throttleMu.Lock()
	defer s.throttleMu.Unlock()

	if delta := time.Since(s.last); delta < s.interval {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(s.interval - delta):
		}
	}
	s.last = time.Now()
	return nil
}

func isTransient(err error) bool {
	msg := err.Error()
	return strings.Contains(msg, "unexpected end of JSON") || strings.Contains(msg, "EOF")
}
