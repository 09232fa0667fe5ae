package evaluation

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"
)

// Client calls the external evaluation service over HTTP. It implements both
// ConfidenceEvaluator and SafetyEvaluator; the two checks are separate
// endpoints on the same service.
type Client struct {
	baseURL   string
	apiKey    string
	apiKeyHdr string
	http      *http.Client
}

func NewClient() (*Client, error) {
	baseURL := strings.TrimSpace(os.Getenv("EVALUATION_API_BASE_URL"))
	if baseURL == "" {
		return nil, errors.New("EVALUATION_API_BASE_URL is required")
	}
	apiKey := strings.TrimSpace(os.Getenv("EVALUATION_API_KEY"))
	if apiKey == "" {
		return nil, errors.New("EVALUATION_API_KEY is required")
	}
	apiKeyHeader := strings.TrimSpace(os.Getenv("EVALUATION_API_KEY_HEADER"))
	if apiKeyHeader == "" {
		apiKeyHeader = "X-API-Key"
	}

	return &Client{
		baseURL:   strings.TrimRight(baseURL, "/"),
		apiKey:    apiKey,
		apiKeyHdr: apiKeyHeader,
		http:      &http.Client{Timeout: 30 * time.Second},
	}, nil
}

type evaluateRequest struct {
	Caption         string   `json:"caption"`
	Hashtags        []string `json:"hashtags,omitempty"`
	Platform        string   `json:"platform"`
	ImageURL        string   `json:"image_url,omitempty"`
	IsProductLaunch bool     `json:"is_product_launch"`
}

func (c *Client) post(ctx context.Context, path string, content Content, out interface{}) error {
	payload, err := json.Marshal(evaluateRequest{
		Caption:         content.Caption,
		Hashtags:        content.Hashtags,
		Platform:        content.Platform,
		ImageURL:        content.ImageURL,
		IsProductLaunch: content.IsProductLaunch,
	})
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set(c.apiKeyHdr, c.apiKey)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("evaluation api error %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	return json.Unmarshal(body, out)
}

func (c *Client) Evaluate(ctx context.Context, content Content) (*ConfidenceResult, error) {
	var result ConfidenceResult
	if err := c.post(ctx, "/v1/confidence", content, &result); err != nil {
		return nil, err
	}
	if result.Score < 0 || result.Score > 100 {
		return nil, fmt.Errorf("evaluation api returned score out of range: %d", result.Score)
	}
	return &result, nil
}

// Safety wraps the client so one struct can serve both evaluator interfaces
// without a method name clash.
func (c *Client) Safety() SafetyEvaluator {
	return safetyClient{c}
}

type safetyClient struct {
	c *Client
}

func (s safetyClient) Evaluate(ctx context.Context, content Content) (*SafetyResult, error) {
	var result SafetyResult
	if err := s.c.post(ctx, "/v1/safety", content, &result); err != nil {
		return nil, err
	}
	return &result, nil
}
