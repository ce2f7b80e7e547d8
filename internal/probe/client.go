package probe

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/hamed0406/checkboard/internal/domain"
)

const (
	maxBodyBytes       = 4 << 20
	invalidSecretToken = "Invalid refresh secret"
)

var datetimeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999Z07:00",
}

type Client struct {
	BaseURL string
	HTTP    *http.Client
}

func NewClient(baseURL string, timeout time.Duration) *Client {
	return &Client{
		BaseURL: strings.TrimRight(baseURL, "/"),
		HTTP:    &http.Client{Timeout: timeout},
	}
}

// wireResult mirrors the upstream JSON; pointers mark required fields.
type wireResult struct {
	Success  *bool           `json:"success"`
	Data     json.RawMessage `json:"data"`
	Duration *float64        `json:"duration"`
	Datetime string          `json:"datetime"`
}

func (c *Client) Fetch(ctx context.Context, check domain.Check, secret string) (domain.Result, error) {
	target, err := c.resultURL(check, secret)
	if err != nil {
		return domain.Result{}, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return domain.Result{}, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return domain.Result{}, fmt.Errorf("fetch %s: %w", check.Key(), err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return domain.Result{}, fmt.Errorf("read %s: %w", check.Key(), err)
	}
	if secretRejected(resp, body) {
		return domain.Result{}, fmt.Errorf("%w (%s)", ErrInvalidSecret, resp.Status)
	}
	return decodeResult(resp.Status, body)
}

func (c *Client) resultURL(check domain.Check, secret string) (string, error) {
	raw := check.URL
	if !strings.Contains(raw, "://") {
		raw = c.BaseURL + "/" + strings.TrimLeft(raw, "/")
	}
	u, err := url.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("check url %q: %w", check.URL, err)
	}
	if secret != "" {
		q := u.Query()
		q.Set("refresh", secret)
		u.RawQuery = q.Encode()
	}
	return u.String(), nil
}

func secretRejected(resp *http.Response, body []byte) bool {
	if strings.Contains(resp.Status, invalidSecretToken) {
		return true
	}
	if resp.StatusCode != http.StatusUnauthorized && resp.StatusCode != http.StatusForbidden {
		return false
	}
	return resp.Request != nil && resp.Request.URL.Query().Has("refresh") ||
		bytes.Contains(body, []byte(invalidSecretToken))
}

func decodeResult(status string, body []byte) (domain.Result, error) {
	var w wireResult
	if err := json.Unmarshal(body, &w); err != nil {
		return domain.Result{}, fmt.Errorf("%w: %s: %v", ErrMalformedResult, status, err)
	}
	if w.Success == nil {
		return domain.Result{}, fmt.Errorf("%w: %s: missing success", ErrMalformedResult, status)
	}
	if w.Duration == nil {
		return domain.Result{}, fmt.Errorf("%w: %s: missing duration", ErrMalformedResult, status)
	}

	r := domain.Result{Success: *w.Success, Duration: *w.Duration}
	if len(w.Data) > 0 {
		if err := json.Unmarshal(w.Data, &r.Data); err != nil {
			return domain.Result{}, fmt.Errorf("%w: data: %v", ErrMalformedResult, err)
		}
	}
	if w.Datetime != "" {
		for _, layout := range datetimeLayouts {
			if ts, err := time.Parse(layout, w.Datetime); err == nil {
				ts = ts.UTC()
				r.Datetime = &ts
				break
			}
		}
	}
	return r, nil
}
