// Package elastic implements db.Store against an Elasticsearch-compatible
// REST API over plain HTTP.
package elastic

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/treedex/treedex/internal/db"
)

// Compile-time check: Store implements db.Store.
var _ db.Store = (*Store)(nil)

// Config holds connection parameters for an Elasticsearch-compatible store.
type Config struct {
	Addrs    []string
	Username string
	Password string
	// Timeout bounds a single request. Zero means no client-side timeout
	// beyond the caller's context.
	Timeout time.Duration
}

// Store implements db.Store via the Elasticsearch REST API.
type Store struct {
	base     string
	username string
	password string
	client   *http.Client
}

// NewStore creates an Elasticsearch store client.
func NewStore(cfg Config) (*Store, error) {
	if len(cfg.Addrs) == 0 {
		return nil, fmt.Errorf("addrs is required")
	}
	base := strings.TrimRight(cfg.Addrs[0], "/")
	if !strings.Contains(base, "://") {
		base = "http://" + base
	}
	return &Store{
		base:     base,
		username: cfg.Username,
		password: cfg.Password,
		client:   &http.Client{Timeout: cfg.Timeout},
	}, nil
}

// Ping checks store connectivity.
func (s *Store) Ping(ctx context.Context) error {
	resp, err := s.do(ctx, http.MethodGet, "/", nil, "")
	if err != nil {
		return &db.Error{Op: db.OpPing, Err: err}
	}
	defer drain(resp)
	if resp.StatusCode >= 300 {
		return &db.Error{Op: db.OpPing, Err: statusError(resp)}
	}
	return nil
}

// Close releases idle connections.
func (s *Store) Close() {
	s.client.CloseIdleConnections()
}

// WaitForReady polls Ping until the store responds or the timeout expires.
func (s *Store) WaitForReady(ctx context.Context, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return fmt.Errorf("timeout waiting for store: %w", ctx.Err())
		case <-ticker.C:
			if err := s.Ping(ctx); err == nil {
				return nil
			}
		}
	}
}

func (s *Store) do(ctx context.Context, method, path string, body []byte, contentType string) (*http.Response, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, s.base+path, reader)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if s.username != "" {
		req.SetBasicAuth(s.username, s.password)
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", method, path, err)
	}
	return resp, nil
}

// doJSON marshals the payload, performs the request and decodes the response
// into out (when non-nil). Non-2xx statuses become errors, except statuses
// listed in okStatuses.
func (s *Store) doJSON(ctx context.Context, method, path string, payload any, out any, okStatuses ...int) (int, error) {
	var body []byte
	contentType := ""
	if payload != nil {
		var err error
		body, err = json.Marshal(payload)
		if err != nil {
			return 0, fmt.Errorf("marshal payload: %w", err)
		}
		contentType = "application/json"
	}

	resp, err := s.do(ctx, method, path, body, contentType)
	if err != nil {
		return 0, err
	}
	defer drain(resp)

	if resp.StatusCode >= 300 {
		if contains(okStatuses, resp.StatusCode) {
			return resp.StatusCode, nil
		}
		return resp.StatusCode, statusError(resp)
	}
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return resp.StatusCode, fmt.Errorf("decode response: %w", err)
		}
	}
	return resp.StatusCode, nil
}

func contains(statuses []int, status int) bool {
	for _, s := range statuses {
		if s == status {
			return true
		}
	}
	return false
}

// statusError extracts a short error message from an error response body.
func statusError(resp *http.Response) error {
	snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
	msg := strings.TrimSpace(string(snippet))
	if msg == "" {
		return fmt.Errorf("status %d", resp.StatusCode)
	}
	return fmt.Errorf("status %d: %s", resp.StatusCode, msg)
}

func drain(resp *http.Response) {
	_, _ = io.Copy(io.Discard, resp.Body)
	_ = resp.Body.Close()
}
