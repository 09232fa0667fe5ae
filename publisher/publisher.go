package publisher

import (
	"context"
	"fmt"
	"sync"
)

// ErrorCode is the closed set of failure codes a platform adapter may return.
// Codes outside this set are treated as unknown by the orchestrator and retried.
type ErrorCode string

const (
	ErrorCodeRateLimited             ErrorCode = "rate_limited"
	ErrorCodePlatformError           ErrorCode = "platform_error"
	ErrorCodeContentPolicyViolation  ErrorCode = "content_policy_violation"
	ErrorCodeAccountDisconnected     ErrorCode = "account_disconnected"
	ErrorCodeInvalidCredentials      ErrorCode = "invalid_credentials"
	ErrorCodeInsufficientPermissions ErrorCode = "insufficient_permissions"
	ErrorCodeTokenExpired            ErrorCode = "token_expired"
	ErrorCodeTimeout                 ErrorCode = "timeout"
	ErrorCodeUnknown                 ErrorCode = "unknown"
)

// Error is the single error shape crossing the publisher boundary.
// Adapters translate raw platform responses into it exactly once; nothing
// downstream inspects message text.
type Error struct {
	Code    ErrorCode
	Message string
}

func (e *Error) Error() string {
	if e.Message == "" {
		return string(e.Code)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func NewError(code ErrorCode, message string) *Error {
	return &Error{Code: code, Message: message}
}

type Request struct {
	Caption     string
	Hashtags    []string
	ImageURL    string
	AccessToken string
}

type Result struct {
	PlatformPostId  string
	PlatformPostUrl string
}

// PlatformPublisher performs the actual outbound delivery call for one platform.
type PlatformPublisher interface {
	Publish(ctx context.Context, req Request) (*Result, error)
}

// Registry routes publish requests to the adapter registered for a platform.
type Registry struct {
	mu         sync.RWMutex
	byPlatform map[string]PlatformPublisher
}

func NewRegistry() *Registry {
	return &Registry{byPlatform: map[string]PlatformPublisher{}}
}

func (r *Registry) Register(platform string, p PlatformPublisher) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.byPlatform[platform] = p
}

// Get returns nil when no adapter is registered for the platform.
func (r *Registry) Get(platform string) PlatformPublisher {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.byPlatform[platform]
}

func (r *Registry) Platforms() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.byPlatform))
	for k := range r.byPlatform {
		out = append(out, k)
	}
	return out
}
