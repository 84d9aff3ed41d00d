// Package orderapi reads and writes orders on the upstream bookstore API.
package orderapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/example/bookadmin/pkg/auth"
	"github.com/example/bookadmin/pkg/discovery"
	"github.com/example/bookadmin/pkg/models"
	"go.uber.org/zap"
)

const (
	defaultTimeout = 15 * time.Second
	maxBodyBytes   = 4 << 20
)

var (
	ErrOrderNotFound = errors.New("order not found")
	// ErrUpstreamWriteFailed means the upstream did not accept a write. Local
	// state must be left unchanged when it is returned.
	ErrUpstreamWriteFailed = errors.New("upstream write failed")
	// ErrUpstreamReadFailed means an order could not be read from the upstream.
	ErrUpstreamReadFailed = errors.New("upstream read failed")
)

// ReadError carries the upstream response of a failed read. A 401 or 403
// response also unwraps to auth.ErrAuthenticationRequired.
type ReadError struct {
	OrderID    string
	StatusCode int
	Message    string
	Err        error
}

func (e *ReadError) Error() string {
	switch {
	case e.StatusCode != 0 && e.Message != "":
		return fmt.Sprintf("failed to fetch order %s: upstream returned %d: %s", e.OrderID, e.StatusCode, e.Message)
	case e.StatusCode != 0:
		return fmt.Sprintf("failed to fetch order %s: upstream returned %d", e.OrderID, e.StatusCode)
	case e.Err != nil:
		return fmt.Sprintf("failed to fetch order %s: %v", e.OrderID, e.Err)
	}
	return ErrUpstreamReadFailed.Error()
}

func (e *ReadError) Unwrap() []error {
	errs := []error{ErrUpstreamReadFailed}
	if e.StatusCode == http.StatusUnauthorized || e.StatusCode == http.StatusForbidden {
		errs = append(errs, auth.ErrAuthenticationRequired)
	}
	if e.Err != nil {
		errs = append(errs, e.Err)
	}
	return errs
}

// UpstreamError carries the upstream response of a failed write.
type UpstreamError struct {
	StatusCode int
	Message    string
	Err        error
}

func (e *UpstreamError) Error() string {
	switch {
	case e.StatusCode != 0 && e.Message != "":
		return fmt.Sprintf("upstream returned %d: %s", e.StatusCode, e.Message)
	case e.StatusCode != 0:
		return fmt.Sprintf("upstream returned %d", e.StatusCode)
	case e.Err != nil:
		return fmt.Sprintf("upstream unreachable: %v", e.Err)
	}
	return ErrUpstreamWriteFailed.Error()
}

func (e *UpstreamError) Unwrap() []error {
	if e.Err == nil {
		return []error{ErrUpstreamWriteFailed}
	}
	return []error{ErrUpstreamWriteFailed, e.Err}
}

type Client struct {
	endpoint    discovery.EndpointResolver
	credentials auth.CredentialProvider
	httpClient  *http.Client
	logger      *zap.Logger
}

// NewClient creates an orders client. A zero timeout uses 15s.
func NewClient(endpoint discovery.EndpointResolver, credentials auth.CredentialProvider, timeout time.Duration, logger *zap.Logger) *Client {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		endpoint:    endpoint,
		credentials: credentials,
		httpClient:  &http.Client{Timeout: timeout},
		logger:      logger,
	}
}

// GetOrder fetches the raw order record.
func (c *Client) GetOrder(ctx context.Context, id string) (models.RawOrder, error) {
	token, err := auth.Require(ctx, c.credentials)
	if err != nil {
		return nil, err
	}

	req, err := c.newRequest(ctx, http.MethodGet, id, token, nil)
	if err != nil {
		return nil, err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &ReadError{OrderID: id, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, fmt.Errorf("%w: %s", ErrOrderNotFound, id)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &ReadError{OrderID: id, StatusCode: resp.StatusCode, Message: readMessage(resp.Body)}
	}

	order, err := decodeOrder(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to decode order %s: %w", id, err)
	}
	return order, nil
}

// UpdateStatus writes a new status. The returned record is the upstream's
// echo of the order, or nil when it sent no body.
func (c *Client) UpdateStatus(ctx context.Context, id, status string) (models.RawOrder, error) {
	token, err := auth.Require(ctx, c.credentials)
	if err != nil {
		return nil, err
	}

	body, err := json.Marshal(map[string]string{"status": status})
	if err != nil {
		return nil, err
	}

	req, err := c.newRequest(ctx, http.MethodPut, id, token, body)
	if err != nil {
		return nil, &UpstreamError{Err: err}
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Error("Order status write failed", zap.String("order_id", id), zap.Error(err))
		return nil, &UpstreamError{Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		uerr := &UpstreamError{StatusCode: resp.StatusCode, Message: readMessage(resp.Body)}
		c.logger.Warn("Upstream rejected status write",
			zap.String("order_id", id),
			zap.String("status", status),
			zap.Int("status_code", resp.StatusCode),
			zap.String("message", uerr.Message))
		return nil, uerr
	}

	order, err := decodeOrder(resp.Body)
	if err != nil {
		// the write was accepted; an unreadable echo is not a failure
		return nil, nil
	}
	return order, nil
}

func (c *Client) newRequest(ctx context.Context, method, id, token string, body []byte) (*http.Request, error) {
	if strings.TrimSpace(id) == "" {
		return nil, fmt.Errorf("%w: empty id", ErrOrderNotFound)
	}
	target := c.endpoint.Resolve(ctx) + "/orders/" + url.PathEscape(id)

	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, target, reader)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return req, nil
}

// decodeOrder accepts the order itself or one wrapped under "order" or "data".
func decodeOrder(r io.Reader) (models.RawOrder, error) {
	var payload map[string]any
	if err := json.NewDecoder(io.LimitReader(r, maxBodyBytes)).Decode(&payload); err != nil {
		return nil, err
	}
	for _, key := range []string{"order", "data"} {
		if inner, ok := payload[key].(map[string]any); ok {
			return models.RawOrder(inner), nil
		}
	}
	return models.RawOrder(payload), nil
}

// readMessage extracts "message" or "error" from an error body, or the
// trimmed text when it is not JSON.
func readMessage(r io.Reader) string {
	data, err := io.ReadAll(io.LimitReader(r, 64<<10))
	if err != nil {
		return ""
	}
	var body map[string]any
	if json.Unmarshal(data, &body) == nil {
		for _, key := range []string{"message", "error"} {
			if s, ok := body[key].(string); ok && s != "" {
				return s
			}
		}
	}
	return strings.TrimSpace(string(data))
}
