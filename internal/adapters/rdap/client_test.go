package rdap

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/mikey/phishing-analyzer/internal/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const domainObject = `{
  "objectClassName": "domain",
  "ldhName": "fake-bank.test",
  "events": [
    {"eventAction": "last changed", "eventDate": "2024-04-30T00:00:00Z"},
    {"eventAction": "registration", "eventDate": "2024-04-21T08:30:00Z"}
  ]
}`

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	c, err := NewClient(server.URL, time.Second, zap.NewNop())
	require.NoError(t, err)
	c.now = func() time.Time { return time.Date(2024, 5, 1, 8, 30, 0, 0, time.UTC) }
	return c
}

func TestLookupAge(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/domain/fake-bank.test", r.URL.Path)
		w.Header().Set("Content-Type", "application/rdap+json")
		_, _ = w.Write([]byte(domainObject))
	})

	age, err := c.LookupAge(context.Background(), "fake-bank.test")
	require.NoError(t, err)
	assert.Equal(t, core.AgeResult{Days: 10, Known: true}, age)
}

func TestLookupAgeWithoutRegistrationEvent(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/rdap+json")
		_, _ = w.Write([]byte(`{"objectClassName":"domain","ldhName":"odd.test","events":[]}`))
	})

	age, err := c.LookupAge(context.Background(), "odd.test")
	require.NoError(t, err)
	assert.False(t, age.Known)
}

func TestLookupAgeNotFound(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})

	_, err := c.LookupAge(context.Background(), "nope.test")
	assert.True(t, errors.Is(err, core.ErrNotFound))
}

func TestLookupAgeTimeout(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(500 * time.Millisecond):
		}
	})

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()

	_, err := c.LookupAge(ctx, "slow.test")
	assert.True(t, errors.Is(err, core.ErrTimeout))
}

func TestNewClientRejectsBadServer(t *testing.T) {
	_, err := NewClient("://bad", time.Second, nil)
	assert.Error(t, err)
}
