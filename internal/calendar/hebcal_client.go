// Package calendar reads Shabbat times, the weekly parsha and daily zmanim
// from the Hebcal REST API.
package calendar

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/sony/gobreaker"
	"go.uber.org/zap"

	"synagogue/internal/cache"
	apperrors "synagogue/internal/errors"
	"synagogue/internal/metrics"
)

// ErrUnavailable is returned when Hebcal cannot be reached or the breaker is open.
var ErrUnavailable = apperrors.Unavailable("CALENDAR_UNAVAILABLE", "calendar service is temporarily unavailable")

// Shabbat is the upcoming Shabbat for a location.
type Shabbat struct {
	Location       string     `json:"location"`
	Parsha         string     `json:"parsha"`
	ParshaHebrew   string     `json:"parshaHebrew,omitempty"`
	ParshaDate     string     `json:"parshaDate,omitempty"`
	CandleLighting *time.Time `json:"candleLighting,omitempty"`
	Havdalah       *time.Time `json:"havdalah,omitempty"`
}

// Zmanim are the halachic times of one day for a location.
type Zmanim struct {
	Date     string               `json:"date"`
	Location string               `json:"location"`
	Times    map[string]time.Time `json:"times"`
}

// Config configures the Hebcal client.
type Config struct {
	BaseURL  string
	Timeout  time.Duration
	CacheTTL time.Duration
}

// HebcalClient calls Hebcal through a circuit breaker and caches responses.
type HebcalClient struct {
	baseURL    string
	httpClient *http.Client
	breaker    *gobreaker.CircuitBreaker
	cache      *cache.Client
	ttl        time.Duration
	log        *zap.Logger
}

// NewHebcalClient creates a new Hebcal client.
func NewHebcalClient(cfg Config, cache *cache.Client, log *zap.Logger) *HebcalClient {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://www.hebcal.com"
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 10 * time.Second
	}
	if cfg.CacheTTL == 0 {
		cfg.CacheTTL = 6 * time.Hour
	}

	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "hebcal",
		MaxRequests: 3,
		Interval:    time.Minute,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return counts.Requests >= 3 && failureRatio >= 0.6
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			log.Warn("circuit breaker state changed",
				zap.String("breaker", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()),
			)
		},
	})

	return &HebcalClient{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		httpClient: &http.Client{Timeout: cfg.Timeout},
		breaker:    breaker,
		cache:      cache,
		ttl:        cfg.CacheTTL,
		log:        log,
	}
}

type hebcalLocation struct {
	Title string `json:"title"`
	City  string `json:"city"`
}

func (l hebcalLocation) name() string {
	if l.City != "" {
		return l.City
	}
	return l.Title
}

type shabbatResponse struct {
	Location hebcalLocation `json:"location"`
	Items    []struct {
		Title    string `json:"title"`
		Date     string `json:"date"`
		Category string `json:"category"`
		Hebrew   string `json:"hebrew"`
	} `json:"items"`
}

type zmanimResponse struct {
	Date     string               `json:"date"`
	Location hebcalLocation       `json:"location"`
	Times    map[string]time.Time `json:"times"`
}

// Shabbat returns candle lighting, havdalah and the parsha of the coming
// Shabbat for a GeoNames location.
func (c *HebcalClient) Shabbat(ctx context.Context, geonameID int) (*Shabbat, error) {
	query := url.Values{}
	query.Set("cfg", "json")
	query.Set("geonameid", strconv.Itoa(geonameID))
	query.Set("M", "on")

	var resp shabbatResponse
	if err := c.getJSON(ctx, "shabbat", query, &resp); err != nil {
		return nil, err
	}

	shabbat := &Shabbat{Location: resp.Location.name()}
	for _, item := range resp.Items {
		switch item.Category {
		case "parashat":
			shabbat.Parsha = strings.TrimPrefix(item.Title, "Parashat ")
			shabbat.ParshaHebrew = item.Hebrew
			shabbat.ParshaDate = item.Date
		case "candles":
			if t, err := time.Parse(time.RFC3339, item.Date); err == nil && shabbat.CandleLighting == nil {
				shabbat.CandleLighting = &t
			}
		case "havdalah":
			if t, err := time.Parse(time.RFC3339, item.Date); err == nil {
				shabbat.Havdalah = &t
			}
		}
	}
	return shabbat, nil
}

// Zmanim returns the halachic times of date for a GeoNames location.
func (c *HebcalClient) Zmanim(ctx context.Context, geonameID int, date time.Time) (*Zmanim, error) {
	query := url.Values{}
	query.Set("cfg", "json")
	query.Set("geonameid", strconv.Itoa(geonameID))
	query.Set("date", date.Format("2006-01-02"))

	var resp zmanimResponse
	if err := c.getJSON(ctx, "zmanim", query, &resp); err != nil {
		return nil, err
	}
	if resp.Times == nil {
		resp.Times = map[string]time.Time{}
	}
	return &Zmanim{Date: resp.Date, Location: resp.Location.name(), Times: resp.Times}, nil
}

// getJSON serves endpoint from cache when possible and otherwise fetches it
// through the breaker and caches the raw body.
func (c *HebcalClient) getJSON(ctx context.Context, endpoint string, query url.Values, dst interface{}) error {
	key := fmt.Sprintf("hebcal:%s?%s", endpoint, query.Encode())
	if data, _ := c.cache.Get(ctx, key); data != nil {
		if err := json.Unmarshal(data, dst); err == nil {
			metrics.CalendarRequestsTotal.WithLabelValues(endpoint, "cache").Inc()
			return nil
		}
	}

	result, err := c.breaker.Execute(func() (interface{}, error) {
		return c.fetch(ctx, endpoint, query)
	})
	if err != nil {
		metrics.CalendarRequestsTotal.WithLabelValues(endpoint, "error").Inc()
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			c.log.Warn("hebcal circuit open", zap.String("endpoint", endpoint))
		} else {
			c.log.Error("hebcal request failed", zap.String("endpoint", endpoint), zap.Error(err))
		}
		return ErrUnavailable
	}
	metrics.CalendarRequestsTotal.WithLabelValues(endpoint, "remote").Inc()

	body := result.([]byte)
	if err := json.Unmarshal(body, dst); err != nil {
		c.log.Error("decode hebcal response", zap.String("endpoint", endpoint), zap.Error(err))
		return ErrUnavailable
	}
	_ = c.cache.Set(ctx, key, body, c.ttl)
	return nil
}

func (c *HebcalClient) fetch(ctx context.Context, endpoint string, query url.Values) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/"+endpoint+"?"+query.Encode(), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("hebcal %s: unexpected status %d", endpoint, resp.StatusCode)
	}

	var raw json.RawMessage
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		return nil, fmt.Errorf("hebcal %s: %w", endpoint, err)
	}
	return raw, nil
}
