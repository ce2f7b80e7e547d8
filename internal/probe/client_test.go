package probe

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hamed0406/checkboard/internal/domain"
)

var ping = domain.Check{Project: "A", Name: "ping", URL: "/ping", TTL: 30}

func TestClient_ScheduledFetchParsesResult(t *testing.T) {
	var gotQuery string
	s := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.RawQuery
		assert.Equal(t, "/ping", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"success":true,"data":{"ok":true},"duration":0.12,"datetime":"2024-01-01T00:00:00Z"}`))
	}))
	defer s.Close()

	c := NewClient(s.URL, 2*time.Second)
	res, err := c.Fetch(context.Background(), ping, "")
	require.NoError(t, err)

	assert.Empty(t, gotQuery)
	assert.True(t, res.Success)
	assert.Equal(t, map[string]any{"ok": true}, res.Data)
	assert.InDelta(t, 0.12, res.Duration, 1e-9)
	require.NotNil(t, res.Datetime)
	assert.True(t, res.Datetime.Equal(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)))
}

func TestClient_FailingCheckIsStillAResult(t *testing.T) {
	s := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte(`{"success":false,"data":"lag too high","duration":1.5,"datetime":"2024-01-01T00:00:00.123456+00:00"}`))
	}))
	defer s.Close()

	res, err := NewClient(s.URL, 2*time.Second).Fetch(context.Background(), ping, "")
	require.NoError(t, err)
	assert.False(t, res.Success)
	assert.Equal(t, "lag too high", res.Data)
	assert.NotNil(t, res.Datetime)
}

func TestClient_ManualFetchAppendsSecret(t *testing.T) {
	var got string
	s := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = r.URL.Query().Get("refresh")
		_, _ = w.Write([]byte(`{"success":true,"data":null,"duration":0.1}`))
	}))
	defer s.Close()

	_, err := NewClient(s.URL, 2*time.Second).Fetch(context.Background(), ping, "abc 123&x")
	require.NoError(t, err)
	assert.Equal(t, "abc 123&x", got)
}

func TestClient_InvalidSecretIsRecognizable(t *testing.T) {
	s := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"detail":"Invalid refresh secret"}`, http.StatusUnauthorized)
	}))
	defer s.Close()

	_, err := NewClient(s.URL, 2*time.Second).Fetch(context.Background(), ping, "abc123")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrInvalidSecret))
}

func TestClient_MalformedBody(t *testing.T) {
	cases := map[string]string{
		"not json":         `<html>502 Bad Gateway</html>`,
		"missing success":  `{"data":1,"duration":0.1}`,
		"missing duration": `{"success":true}`,
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			s := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				_, _ = w.Write([]byte(body))
			}))
			defer s.Close()

			_, err := NewClient(s.URL, 2*time.Second).Fetch(context.Background(), ping, "")
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrMalformedResult)
			assert.NotErrorIs(t, err, ErrInvalidSecret)
		})
	}
}

func TestClient_TransportError(t *testing.T) {
	// Server sleeps longer than client timeout
	s := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
	}))
	defer s.Close()

	_, err := NewClient(s.URL, 50*time.Millisecond).Fetch(context.Background(), ping, "")
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrInvalidSecret)
	assert.NotEmpty(t, err.Error())
}

func TestClient_AbsoluteCheckURL(t *testing.T) {
	s := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/elsewhere", r.URL.Path)
		_, _ = w.Write([]byte(`{"success":true,"duration":0}`))
	}))
	defer s.Close()

	chk := ping
	chk.URL = s.URL + "/elsewhere"
	_, err := NewClient("http://unused.invalid", 2*time.Second).Fetch(context.Background(), chk, "")
	require.NoError(t, err)
}
