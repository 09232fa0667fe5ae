package publisher

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

// HTTPPublisher delivers posts to one platform's publish API. Each platform
// gets its own instance with its own base URL; the access token rides on the
// request, never on the adapter.
type HTTPPublisher struct {
	platform string
	baseURL  string
	path     string
	http     *http.Client
}

// NewHTTPPublisher reads {PLATFORM}_API_BASE_URL (for example
// INSTAGRAM_API_BASE_URL) and an optional {PLATFORM}_PUBLISH_PATH.
func NewHTTPPublisher(platform string) (*HTTPPublisher, error) {
	upper := strings.ToUpper(strings.TrimSpace(platform))
	if upper == "" {
		return nil, errors.New("platform is empty")
	}
	baseURL := strings.TrimSpace(os.Getenv(upper + "_API_BASE_URL"))
	if baseURL == "" {
		return nil, fmt.Errorf("%s_API_BASE_URL is required", upper)
	}
	path := strings.TrimSpace(os.Getenv(upper + "_PUBLISH_PATH"))
	if path == "" {
		path = "/v1/posts"
	}

	return &HTTPPublisher{
		platform: strings.ToLower(strings.TrimSpace(platform)),
		baseURL:  strings.TrimRight(baseURL, "/"),
		path:     path,
		http:     &http.Client{Timeout: 60 * time.Second},
	}, nil
}

type publishRequest struct {
	Caption  string   `json:"caption"`
	Hashtags []string `json:"hashtags,omitempty"`
	ImageURL string   `json:"image_url,omitempty"`
}

type publishResponse struct {
	ID        string `json:"id"`
	PostId    string `json:"post_id"`
	Permalink string `json:"permalink"`
	URL       string `json:"url"`
	Error     struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func (p *HTTPPublisher) Publish(ctx context.Context, req Request) (*Result, error) {
	payload, err := json.Marshal(publishRequest{
		Caption:  req.Caption,
		Hashtags: req.Hashtags,
		ImageURL: req.ImageURL,
	})
	if err != nil {
		return nil, NewError(ErrorCodeUnknown, err.Error())
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+p.path, bytes.NewReader(payload))
	if err != nil {
		return nil, NewError(ErrorCodeUnknown, err.Error())
	}
	httpReq.Header.Set("Authorization", "Bearer "+req.AccessToken)
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")

	resp, err := p.http.Do(httpReq)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || os.IsTimeout(err) {
			return nil, NewError(ErrorCodeTimeout, err.Error())
		}
		return nil, NewError(ErrorCodePlatformError, err.Error())
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	var parsed publishResponse
	_ = json.Unmarshal(body, &parsed)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, translateStatus(resp.StatusCode, parsed, body)
	}

	postId := parsed.ID
	if postId == "" {
		postId = parsed.PostId
	}
	if postId == "" {
		return nil, NewError(ErrorCodePlatformError, "publish response missing post id")
	}
	url := parsed.Permalink
	if url == "" {
		url = parsed.URL
	}
	return &Result{PlatformPostId: postId, PlatformPostUrl: url}, nil
}

// translateStatus maps an HTTP failure to the closed error code set. A code
// supplied in the response body wins over the status heuristic.
func translateStatus(status int, parsed publishResponse, body []byte) *Error {
	message := strings.TrimSpace(parsed.Error.Message)
	if message == "" {
		message = strings.TrimSpace(string(body))
	}

	if bodyCode := ErrorCode(strings.TrimSpace(parsed.Error.Code)); bodyCode != "" {
		switch bodyCode {
		case ErrorCodeRateLimited, ErrorCodePlatformError, ErrorCodeContentPolicyViolation,
			ErrorCodeAccountDisconnected, ErrorCodeInvalidCredentials,
			ErrorCodeInsufficientPermissions, ErrorCodeTokenExpired, ErrorCodeTimeout:
			return NewError(bodyCode, message)
		}
	}

	switch {
	case status == http.StatusUnauthorized:
		return NewError(ErrorCodeTokenExpired, message)
	case status == http.StatusForbidden:
		return NewError(ErrorCodeInsufficientPermissions, message)
	case status == http.StatusUnprocessableEntity:
		return NewError(ErrorCodeContentPolicyViolation, message)
	case status == http.StatusTooManyRequests:
		return NewError(ErrorCodeRateLimited, message)
	case status == http.StatusGatewayTimeout:
		return NewError(ErrorCodeTimeout, message)
	case status >= 500:
		return NewError(ErrorCodePlatformError, message)
	default:
		return NewError(ErrorCodeUnknown, fmt.Sprintf("http %d: %s", status, message))
	}
}
