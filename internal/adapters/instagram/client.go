package instagram

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/TAMAKQR/telegram-marketplace-sub001/internal/domain"
	"github.com/TAMAKQR/telegram-marketplace-sub001/internal/ports"
)

const (
	defaultBaseURL  = "https://graph.instagram.com/v21.0"
	defaultPageSize = 50
	defaultMaxPages = 4
	maxBodyBytes    = 1 << 20
)

// insightAttempts is tried in order; the first set the platform accepts wins.
// Media types reject metrics they do not support, hence several shapes.
var insightAttempts = [][]string{
	{"views", "reach", "saved", "shares", "total_interactions"},
	{"impressions", "reach", "saved", "shares", "total_interactions"},
	{"impressions", "reach", "engagement", "saved"},
	{"impressions", "reach", "taps_forward", "taps_back", "exits", "replies"},
}

type Config struct {
	BaseURL  string
	PageSize int
	MaxPages int
}

// Client reads post counters from the Instagram Graph API. It never writes.
type Client struct {
	baseURL    string
	pageSize   int
	maxPages   int
	httpClient *http.Client
	nowFn      func() time.Time
}

func NewClient(cfg Config, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 15 * time.Second}
	}
	base := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if base == "" {
		base = defaultBaseURL
	}
	if cfg.PageSize <= 0 {
		cfg.PageSize = defaultPageSize
	}
	if cfg.MaxPages <= 0 {
		cfg.MaxPages = defaultMaxPages
	}
	return &Client{
		baseURL:    base,
		pageSize:   cfg.PageSize,
		maxPages:   cfg.MaxPages,
		httpClient: httpClient,
		nowFn:      func() time.Time { return time.Now().UTC() },
	}
}

var _ ports.MetricsFetcher = (*Client)(nil)

type profileResponse struct {
	ID       string `json:"id"`
	UserID   string `json:"user_id"`
	Username string `json:"username"`
}

func (c *Client) ResolveAccountID(ctx context.Context, accessToken string) (ports.AccountProfile, error) {
	var out profileResponse
	q := url.Values{"fields": {"user_id,username"}, "access_token": {accessToken}}
	if err := c.get(ctx, "/me", q, &out); err != nil {
		return ports.AccountProfile{}, err
	}
	id := out.UserID
	if id == "" {
		id = out.ID
	}
	if id == "" {
		return ports.AccountProfile{}, fmt.Errorf("%w: profile has no account id", domain.ErrMetricsFetchFailure)
	}
	return ports.AccountProfile{AccountID: id, Username: out.Username}, nil
}

type mediaItem struct {
	ID            string `json:"id"`
	Shortcode     string `json:"shortcode"`
	Permalink     string `json:"permalink"`
	MediaType     string `json:"media_type"`
	LikeCount     int64  `json:"like_count"`
	CommentsCount int64  `json:"comments_count"`
}

type mediaPage struct {
	Data   []mediaItem `json:"data"`
	Paging struct {
		Cursors struct {
			After string `json:"after"`
		} `json:"cursors"`
		Next string `json:"next"`
	} `json:"paging"`
}

const mediaFields = "id,shortcode,permalink,media_type,like_count,comments_count"

// FetchPostMetrics finds the post among the account's recent media and reads
// its counters. The media id is returned so later reads can skip the lookup.
func (c *Client) FetchPostMetrics(ctx context.Context, creds domain.Credentials, ref domain.PostReference) (ports.PostMetrics, error) {
	if !creds.Valid() {
		return ports.PostMetrics{}, domain.ErrCredentialsMissing
	}
	if ref.Shortcode == "" {
		return ports.PostMetrics{}, domain.ErrMalformedReference
	}
	item, err := c.findMedia(ctx, creds, ref.Shortcode)
	if err != nil {
		return ports.PostMetrics{}, err
	}
	snap, err := c.snapshot(ctx, creds, item)
	if err != nil {
		return ports.PostMetrics{}, err
	}
	return ports.PostMetrics{MediaID: item.ID, Snapshot: snap}, nil
}

func (c *Client) FetchMetricsByID(ctx context.Context, creds domain.Credentials, mediaID string) (domain.Snapshot, error) {
	if !creds.Valid() {
		return domain.Snapshot{}, domain.ErrCredentialsMissing
	}
	var item mediaItem
	q := url.Values{"fields": {mediaFields}, "access_token": {creds.AccessToken}}
	if err := c.get(ctx, "/"+url.PathEscape(mediaID), q, &item); err != nil {
		return domain.Snapshot{}, err
	}
	if item.ID == "" {
		item.ID = mediaID
	}
	return c.snapshot(ctx, creds, item)
}

func (c *Client) findMedia(ctx context.Context, creds domain.Credentials, shortcode string) (mediaItem, error) {
	after := ""
	for page := 0; page < c.maxPages; page++ {
		q := url.Values{
			"fields":       {mediaFields},
			"limit":        {strconv.Itoa(c.pageSize)},
			"access_token": {creds.AccessToken},
		}
		if after != "" {
			q.Set("after", after)
		}
		var resp mediaPage
		if err := c.get(ctx, "/"+url.PathEscape(creds.AccountID)+"/media", q, &resp); err != nil {
			return mediaItem{}, err
		}
		for _, item := range resp.Data {
			if matchesShortcode(item, shortcode) {
				return item, nil
			}
		}
		after = resp.Paging.Cursors.After
		if resp.Paging.Next == "" || after == "" {
			break
		}
	}
	return mediaItem{}, fmt.Errorf("%w: media %s not found in recent posts", domain.ErrMetricsFetchFailure, shortcode)
}

func matchesShortcode(item mediaItem, shortcode string) bool {
	if item.Shortcode != "" {
		return item.Shortcode == shortcode
	}
	if item.Permalink == "" {
		return false
	}
	ref, err := domain.ParsePostReference(item.Permalink)
	return err == nil && ref.Shortcode == shortcode
}

// snapshot combines base counters with the first insight set that succeeds.
// When none does, the snapshot is degraded: extended fields stay zero and
// engagement falls back to likes plus comments. A context that ends midway
// fails the fetch instead of degrading it.
func (c *Client) snapshot(ctx context.Context, creds domain.Credentials, item mediaItem) (domain.Snapshot, error) {
	snap := domain.Snapshot{
		Likes:      item.LikeCount,
		Comments:   item.CommentsCount,
		CapturedAt: c.nowFn(),
		Quality:    domain.SnapshotQualityDegraded,
	}
	for _, metrics := range insightAttempts {
		values, err := c.insights(ctx, creds, item.ID, metrics)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return domain.Snapshot{}, fmt.Errorf("%w: %w", domain.ErrMetricsFetchFailure, ctxErr)
			}
			continue
		}
		applyInsights(&snap, values)
		snap.Quality = domain.SnapshotQualityFull
		return snap, nil
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return domain.Snapshot{}, fmt.Errorf("%w: %w", domain.ErrMetricsFetchFailure, ctxErr)
	}
	snap.Engagement = snap.Likes + snap.Comments
	return snap, nil
}

func applyInsights(snap *domain.Snapshot, v map[string]int64) {
	snap.Reach = v["reach"]
	snap.Impressions = v["impressions"]
	snap.Saves = v["saved"]
	snap.Shares = v["shares"]
	snap.TapsForward = v["taps_forward"]
	snap.TapsBack = v["taps_back"]
	snap.Exits = v["exits"]
	snap.Replies = v["replies"]
	switch {
	case v["views"] > 0:
		snap.Views = v["views"]
	case v["plays"] > 0:
		snap.Views = v["plays"]
	default:
		snap.Views = v["impressions"]
	}
	switch {
	case v["total_interactions"] > 0:
		snap.Engagement = v["total_interactions"]
	case v["engagement"] > 0:
		snap.Engagement = v["engagement"]
	default:
		snap.Engagement = snap.Likes + snap.Comments
	}
}

type insightsResponse struct {
	Data []struct {
		Name   string `json:"name"`
		Values []struct {
			Value json.Number `json:"value"`
		} `json:"values"`
		TotalValue *struct {
			Value json.Number `json:"value"`
		} `json:"total_value"`
	} `json:"data"`
}

func (c *Client) insights(ctx context.Context, creds domain.Credentials, mediaID string, metrics []string) (map[string]int64, error) {
	q := url.Values{"metric": {strings.Join(metrics, ",")}, "access_token": {creds.AccessToken}}
	var resp insightsResponse
	if err := c.get(ctx, "/"+url.PathEscape(mediaID)+"/insights", q, &resp); err != nil {
		return nil, err
	}
	out := make(map[string]int64, len(resp.Data))
	for _, row := range resp.Data {
		var raw json.Number
		switch {
		case row.TotalValue != nil:
			raw = row.TotalValue.Value
		case len(row.Values) > 0:
			raw = row.Values[len(row.Values)-1].Value
		}
		if n, err := raw.Int64(); err == nil {
			out[row.Name] = n
		}
	}
	return out, nil
}

type apiErrorBody struct {
	Error struct {
		Message string `json:"message"`
		Type    string `json:"type"`
		Code    int    `json:"code"`
	} `json:"error"`
}

// APIError is a non-2xx answer from the Graph API.
type APIError struct {
	Status  int
	Code    int
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("instagram api status %d code %d: %s", e.Status, e.Code, e.Message)
}

// rejectedToken covers expired or revoked tokens (OAuthException 190).
func (e *APIError) rejectedToken() bool {
	return e.Status == http.StatusUnauthorized || e.Code == 190
}

func (c *Client) get(ctx context.Context, path string, q url.Values, out any) error {
	endpoint := c.baseURL + path + "?" + q.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return fmt.Errorf("%w: %w", domain.ErrMetricsFetchFailure, err)
	}
	req.Header.Set("Accept", "application/json")
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %w", domain.ErrMetricsFetchFailure, err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return fmt.Errorf("%w: read body: %w", domain.ErrMetricsFetchFailure, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		apiErr := &APIError{Status: resp.StatusCode}
		var parsed apiErrorBody
		if json.Unmarshal(body, &parsed) == nil {
			apiErr.Code = parsed.Error.Code
			apiErr.Message = parsed.Error.Message
		}
		if apiErr.rejectedToken() {
			return fmt.Errorf("%w: %w: %w", domain.ErrMetricsFetchFailure, domain.ErrCredentialsMissing, apiErr)
		}
		return fmt.Errorf("%w: %w", domain.ErrMetricsFetchFailure, apiErr)
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("%w: decode response: %w", domain.ErrMetricsFetchFailure, err)
	}
	return nil
}
