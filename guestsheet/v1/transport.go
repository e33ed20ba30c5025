package v1

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sync"
	"time"

	"wristband.events/wristband/core/fault"
	"wristband.events/wristband/security"
)

type Response struct {
	Data []byte
}

// TokenSource mints a fresh bearer token. The transport calls it once up
// front and again whenever the current token is close to expiry, so callers
// never see token machinery.
type TokenSource func() (string, error)

// StationTokenSource builds a TokenSource from a station identity and the
// shared signing secret.
func StationTokenSource(identity *security.StationIdentity, base64Secret string) TokenSource {
	return func() (string, error) {
		return security.CreateStationToken(identity, base64Secret, 3600)
	}
}

// Transport handles low-level HTTP and authentication against the Guestsheet
// service.
type Transport struct {
	BaseURL    string
	HTTPClient *http.Client

	tokens TokenSource

	mu      sync.Mutex
	token   string
	renewAt time.Time
}

// NewTransport creates a transport with base URL and a token source.
func NewTransport(baseURL string, tokens TokenSource) *Transport {
	return &Transport{
		BaseURL:    baseURL,
		HTTPClient: &http.Client{},
		tokens:     tokens,
	}
}

func (t *Transport) bearer() (string, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.token != "" && time.Now().Before(t.renewAt) {
		return t.token, nil
	}

	token, err := t.tokens()
	if err != nil {
		return "", fmt.Errorf("refresh token: %w", err)
	}

	t.token = token
	// Renew well before the 1h expiry so an in-flight call never straddles it.
	t.renewAt = time.Now().Add(50 * time.Minute)
	return t.token, nil
}

// helper: build full URL with query params
func (t *Transport) buildURL(path string, query map[string]string) string {
	u, _ := url.Parse(t.BaseURL + path)
	q := u.Query()
	for k, v := range query {
		q.Set(k, v)
	}
	u.RawQuery = q.Encode()
	return u.String()
}

// classify maps low-level HTTP client failures onto the engine's fault
// taxonomy: deadline expiry is a timeout, anything else at the transport
// level means the service could not be reached.
func classify(err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %v", fault.ErrTimeout, err)
	}
	return fmt.Errorf("%w: %v", fault.ErrUnreachable, err)
}

func (t *Transport) do(req *http.Request) (*Response, error) {
	token, err := t.bearer()
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", fmt.Sprintf("Bearer %s", token))

	resp, err := t.HTTPClient.Do(req)
	if err != nil {
		return nil, classify(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, fault.ErrNotFound
	}

	if resp.StatusCode >= 300 {
		b, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("%s %s failed with status code %d: %s", req.Method, req.URL.Path, resp.StatusCode, string(b))
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, classify(err)
	}

	return &Response{Data: data}, nil
}

// Post sends a POST request with JSON body
func (t *Transport) Post(ctx context.Context, path string, data any, query map[string]string) (*Response, error) {
	body, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.buildURL(path, query), bytes.NewBuffer(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	return t.do(req)
}

// Get sends a GET request
func (t *Transport) Get(ctx context.Context, path string, query map[string]string) (*Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, t.buildURL(path, query), nil)
	if err != nil {
		return nil, err
	}

	return t.do(req)
}
