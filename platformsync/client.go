package platformsync

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"
)

type metricsClient struct {
	platform string
	baseURL  string
	path     string
	http     *http.Client
	limiter  <-chan time.Time
}

// newMetricsClient reads {PLATFORM}_API_BASE_URL plus an optional
// {PLATFORM}_METRICS_PATH. The path may contain {id}, replaced with the
// platform post id at request time.
func newMetricsClient(platform string) (*metricsClient, error) {
	upper := strings.ToUpper(strings.TrimSpace(platform))
	if upper == "" {
		return nil, errors.New("platform is empty")
	}
	baseURL := strings.TrimSpace(os.Getenv(upper + "_API_BASE_URL"))
	if baseURL == "" {
		return nil, fmt.Errorf("%s_API_BASE_URL is required", upper)
	}
	path := strings.TrimSpace(os.Getenv(upper + "_METRICS_PATH"))
	if path == "" {
		path = "/v1/posts/{id}/metrics"
	}

	rateLimitPerMin := int64(30)
	if v := strings.TrimSpace(os.Getenv("ANALYTICS_RATE_LIMIT_PER_MIN")); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil && n > 0 {
			rateLimitPerMin = n
		}
	}
	interval := time.Minute / time.Duration(rateLimitPerMin)

	return &metricsClient{
		platform: strings.ToLower(strings.TrimSpace(platform)),
		baseURL:  strings.TrimRight(baseURL, "/"),
		path:     path,
		http:     &http.Client{Timeout: 30 * time.Second},
		limiter:  time.Tick(interval),
	}, nil
}

type postMetrics struct {
	Likes       int `json:"likes"`
	Comments    int `json:"comments"`
	Shares      int `json:"shares"`
	Impressions int `json:"impressions"`
}

func (c *metricsClient) getMetrics(ctx context.Context, platformPostId string, accessToken string) (postMetrics, error) {
	<-c.limiter
	endpoint := c.baseURL + strings.ReplaceAll(c.path, "{id}", platformPostId)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return postMetrics{}, err
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return postMetrics{}, err
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return postMetrics{}, fmt.Errorf("%s metrics api error %d: %s", c.platform, resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var parsed postMetrics
	if err := json.Unmarshal(body, &parsed); err != nil {
		return postMetrics{}, err
	}
	return parsed, nil
}
