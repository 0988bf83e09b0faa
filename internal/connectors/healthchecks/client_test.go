package healthchecks

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xela07ax/mmonit-hub/internal/connectors"
)

func TestListChecks_SendsKeyAndTags(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v3/checks/", r.URL.Path)
		assert.Equal(t, "read-key", r.Header.Get("X-Api-Key"))
		assert.Equal(t, []string{"prod", "web"}, r.URL.Query()["tag"])
		_, _ = w.Write([]byte(`{"checks":[
			{"name":"backup","slug":"backup","status":"up","tags":"prod web","unique_key":"u1"},
			{"id":"c2","name":"","slug":"cron-2","status":"down","tags":""}
		]}`))
	}))
	defer srv.Close()

	c := NewClient(time.Second)
	checks, err := c.ListChecks(context.Background(), Query{
		APIBase:   srv.URL + "/",
		APIKey:    "read-key",
		Tags:      []string{"prod", " ", "web"},
		VerifySSL: true,
	})
	require.NoError(t, err)
	require.Len(t, checks, 2)
	assert.Equal(t, "backup", checks[0].Name)
	assert.Equal(t, "u1", checks[0].UniqueKey)
	assert.Equal(t, CheckID("c2"), checks[1].ID)
	assert.Equal(t, "down", checks[1].Status)
}

func TestListChecks_NumericID(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"checks":[
			{"id":42,"name":"numeric","status":"up"},
			{"id":null,"name":"missing","status":"up","unique_key":"u3"}
		]}`))
	}))
	defer srv.Close()

	checks, err := NewClient(time.Second).ListChecks(context.Background(), Query{APIBase: srv.URL, APIKey: "k"})
	require.NoError(t, err)
	require.Len(t, checks, 2)
	assert.Equal(t, CheckID("42"), checks[0].ID)
	assert.Empty(t, checks[1].ID)
	assert.Equal(t, "u3", checks[1].UniqueKey)
}

func TestListChecks_NoTagsNoQuery(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Empty(t, r.URL.RawQuery)
		_, _ = w.Write([]byte(`{"checks":[]}`))
	}))
	defer srv.Close()

	checks, err := NewClient(0).ListChecks(context.Background(), Query{APIBase: srv.URL, APIKey: "k"})
	require.NoError(t, err)
	assert.Empty(t, checks)
}

func TestListChecks_Errors(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		check  func(t *testing.T, err error)
	}{
		{
			name:   "unauthorized key",
			status: http.StatusUnauthorized,
			body:   `{"error":"wrong api key"}`,
			check: func(t *testing.T, err error) {
				var apiErr *connectors.APIError
				require.True(t, errors.As(err, &apiErr))
				assert.Equal(t, http.StatusUnauthorized, apiErr.StatusCode)
			},
		},
		{
			name:   "malformed payload",
			status: http.StatusOK,
			body:   `{"checks": "nope"`,
			check: func(t *testing.T, err error) {
				var parseErr *connectors.ParseError
				require.True(t, errors.As(err, &parseErr))
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			_, err := NewClient(time.Second).ListChecks(context.Background(), Query{APIBase: srv.URL, APIKey: "k"})
			require.Error(t, err)
			tt.check(t, err)
		})
	}
}
