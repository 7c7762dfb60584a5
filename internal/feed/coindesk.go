package feed

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	gocache "github.com/patrickmn/go-cache"
)

// CoinDeskConfig configures the CoinDesk news connector.
type CoinDeskConfig struct {
	BaseURL           string
	APIKey            string // optional bearer token
	Timeout           time.Duration
	CacheTTL          time.Duration // 0 disables response caching
	Lang              string
	Limit             int
	Categories        []string
	ExcludeCategories []string
	SourceIDs         []string
	Logger            *slog.Logger
}

// CoinDeskSource fetches news articles from the CoinDesk API and
// normalizes them into Events. Responses are cached in-process with a
// time-based TTL so repeated runs within the window reuse one fetch.
type CoinDeskSource struct {
	cfg    CoinDeskConfig
	client *http.Client
	cache  *gocache.Cache
	logger *slog.Logger
}

// NewCoinDeskSource validates the config and builds the connector.
// A missing base URL is a construction-time error.
func NewCoinDeskSource(cfg CoinDeskConfig) (*CoinDeskSource, error) {
	if strings.TrimSpace(cfg.BaseURL) == "" {
		return nil, fmt.Errorf("coindesk base_url must be set")
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 20 * time.Second
	}
	if cfg.Lang == "" {
		cfg.Lang = "EN"
	}
	if cfg.Limit <= 0 {
		cfg.Limit = 10
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	s := &CoinDeskSource{cfg: cfg, logger: cfg.Logger}
	if cfg.CacheTTL > 0 {
		s.cache = gocache.New(cfg.CacheTTL, cfg.CacheTTL)
	}
	return s, nil
}

// Connect prepares the HTTP client.
func (s *CoinDeskSource) Connect(ctx context.Context) error {
	s.client = &http.Client{Timeout: s.cfg.Timeout}
	s.logger.Info("connected to CoinDesk API", "timeout", s.cfg.Timeout)
	return nil
}

// Close releases the HTTP client.
func (s *CoinDeskSource) Close() error {
	s.client = nil
	s.logger.Info("CoinDesk session closed")
	return nil
}

// Fetch downloads and normalizes articles for the period. Cached
// results are reused within the configured TTL.
func (s *CoinDeskSource) Fetch(ctx context.Context, start, end time.Time) ([]Event, error) {
	if s.client == nil {
		return nil, fmt.Errorf("call Connect before Fetch")
	}

	params := s.buildParams(start, end)
	cacheKey := params.Encode()
	if s.cache != nil {
		if cached, ok := s.cache.Get(cacheKey); ok {
			events := cached.([]Event)
			s.logger.Debug("using cached CoinDesk result", "events", len(events))
			return events, nil
		}
	}

	reqURL := s.cfg.BaseURL + "?" + cacheKey
	req, err := http.NewRequestWithContext(ctx, "GET", reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	if s.cfg.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+s.cfg.APIKey)
	}

	s.logger.Debug("fetching", "url", s.cfg.BaseURL, "params", cacheKey)
	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetching coindesk: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("coindesk API error (status %d): %s", resp.StatusCode, truncate(string(body), 400))
	}

	events, err := s.normalize(body)
	if err != nil {
		return nil, err
	}

	if s.cache != nil {
		s.cache.Set(cacheKey, events, gocache.DefaultExpiration)
	}
	s.logger.Debug("normalized CoinDesk events", "count", len(events))
	return events, nil
}

func (s *CoinDeskSource) buildParams(start, end time.Time) url.Values {
	params := url.Values{}
	params.Set("lang", s.cfg.Lang)
	params.Set("limit", strconv.Itoa(s.cfg.Limit))
	if len(s.cfg.Categories) > 0 {
		params.Set("categories", strings.Join(s.cfg.Categories, ","))
	}
	if len(s.cfg.ExcludeCategories) > 0 {
		params.Set("exclude_categories", strings.Join(s.cfg.ExcludeCategories, ","))
	}
	if len(s.cfg.SourceIDs) > 0 {
		params.Set("source_ids", strings.Join(s.cfg.SourceIDs, ","))
	}
	if !start.IsZero() {
		params.Set("from_ts", strconv.FormatInt(start.Unix(), 10))
	}
	if !end.IsZero() {
		params.Set("to_ts", strconv.FormatInt(end.Unix(), 10))
	}
	return params
}

// coindeskItem tolerates both upper- and lowercase field spellings the
// API has used across versions.
type coindeskItem struct {
	ID         json.Number `json:"ID"`
	IDLower    json.Number `json:"id"`
	Title      string      `json:"TITLE"`
	TitleLower string      `json:"title"`
	Body       string      `json:"BODY"`
	Summary    string      `json:"summary"`
	Content    string      `json:"content"`
	URL        string      `json:"URL"`
	URLLower   string      `json:"url"`
}

type coindeskResponse struct {
	Data      []coindeskItem `json:"Data"`
	DataLower []coindeskItem `json:"data"`
}

func (s *CoinDeskSource) normalize(body []byte) ([]Event, error) {
	var payload coindeskResponse
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, fmt.Errorf("decoding coindesk response: %w", err)
	}

	items := payload.Data
	if len(items) == 0 {
		items = payload.DataLower
	}

	now := time.Now()
	events := make([]Event, 0, len(items))
	for _, item := range items {
		title := firstNonEmpty(item.Title, item.TitleLower, "No title")
		content := firstNonEmpty(item.Body, item.Summary, item.Content, "No content")
		events = append(events, Event{
			Timestamp: now,
			Source:    "CoinDesk",
			Title:     title,
			Content:   content,
			Meta: map[string]string{
				"id":  firstNonEmpty(item.ID.String(), item.IDLower.String()),
				"url": firstNonEmpty(item.URL, item.URLLower),
			},
		})
	}
	return events, nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
