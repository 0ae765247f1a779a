package notion

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wekeepgrowing/stripe-notion-sync/internal/domain/entity"
	domainErrors "github.com/wekeepgrowing/stripe-notion-sync/internal/domain/errors"
	"github.com/wekeepgrowing/stripe-notion-sync/internal/domain/provider"
	"go.uber.org/zap"
)

func sampleProperties() entity.Properties {
	customer := "pg_A"
	return entity.Properties{
		"ID":             entity.Title("ch_1"),
		"Amount":         entity.Number(19.99),
		"Paid":           entity.Checkbox(true),
		"Created":        entity.Date(time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)),
		"Status":         entity.Select("succeeded"),
		"Receipt URL":    entity.URL("https://pay.stripe.com/receipts/r_1"),
		"Customer":       entity.Relation(&customer),
		"Payment Intent": entity.Relation(nil),
		"Description":    entity.Text(""),
		"Email":          entity.EmailAddress("jane@example.com"),
	}
}

func TestEncodeProperties_Golden(t *testing.T) {
	g := goldie.New(t,
		goldie.WithFixtureDir("testdata"),
		goldie.WithNameSuffix(".golden.json"),
	)

	for name, mode := range map[string]provider.WriteMode{
		"properties_merge":   provider.WriteMerge,
		"properties_replace": provider.WriteReplace,
	} {
		out, err := json.MarshalIndent(EncodeProperties(sampleProperties(), mode), "", "  ")
		require.NoError(t, err)
		g.Assert(t, name, append(out, '\n'))
	}
}

func newTestClient(t *testing.T, handler http.HandlerFunc, cfg Config) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	cfg.BaseURL = srv.URL
	cfg.Token = "secret_token"
	cfg.Version = "2022-06-28"
	if cfg.InitialBackoff == 0 {
		cfg.InitialBackoff = time.Millisecond
	}
	return NewClient(cfg, zap.NewNop())
}

func writeJSON(w http.ResponseWriter, status int, body string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	io.WriteString(w, body)
}

func TestClient_Create(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/pages", r.URL.Path)
		assert.Equal(t, "Bearer secret_token", r.Header.Get("Authorization"))
		assert.Equal(t, "2022-06-28", r.Header.Get("Notion-Version"))

		var body map[string]interface{}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, map[string]interface{}{"database_id": "db-charges"}, body["parent"])
		props := body["properties"].(map[string]interface{})
		assert.NotContains(t, props, "Payment Intent")
		assert.Contains(t, props, "ID")

		writeJSON(w, http.StatusOK, `{"object": "page", "id": "pg_B", "url": "https://notion.so/pg_B"}`)
	}, Config{MaxRetries: 2})

	rec, err := client.Create(context.Background(), "db-charges", sampleProperties())
	require.NoError(t, err)
	assert.Equal(t, "pg_B", rec.ID)
	assert.Equal(t, "https://notion.so/pg_B", rec.URL)
}

func TestClient_FindByNaturalKey(t *testing.T) {
	var calls int32
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		n := atomic.AddInt32(&calls, 1)
		assert.Equal(t, "/databases/db-charges/query", r.URL.Path)

		var body struct {
			Filter struct {
				Property string `json:"property"`
				Title    struct {
					Equals string `json:"equals"`
				} `json:"title"`
			} `json:"filter"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "ID", body.Filter.Property)

		if n == 1 {
			writeJSON(w, http.StatusOK, `{"object": "list", "results": [{"id": "pg_B"}], "has_more": false}`)
			return
		}
		writeJSON(w, http.StatusOK, `{"object": "list", "results": [], "has_more": false}`)
	}, Config{})

	rec, err := client.FindByNaturalKey(context.Background(), "db-charges", "ID", "ch_1")
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.Equal(t, "pg_B", rec.ID)

	rec, err = client.FindByNaturalKey(context.Background(), "db-charges", "ID", "ch_2")
	require.NoError(t, err)
	assert.Nil(t, rec)
}

func TestClient_RetriesRateLimitAndServerErrors(t *testing.T) {
	var calls int32
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		switch atomic.AddInt32(&calls, 1) {
		case 1:
			writeJSON(w, http.StatusTooManyRequests, `{"object": "error", "status": 429, "code": "rate_limited", "message": "slow down"}`)
		case 2:
			writeJSON(w, http.StatusBadGateway, `bad gateway`)
		default:
			writeJSON(w, http.StatusOK, `{"object": "page", "id": "pg_1"}`)
		}
	}, Config{MaxRetries: 3})

	rec, err := client.Update(context.Background(), "pg_1", sampleProperties(), provider.WriteMerge)
	require.NoError(t, err)
	assert.Equal(t, "pg_1", rec.ID)
	assert.EqualValues(t, 3, atomic.LoadInt32(&calls))
}

func TestClient_ClientErrorsAreNotRetried(t *testing.T) {
	tests := []struct {
		name     string
		status   int
		body     string
		wantAuth bool
	}{
		{"validation", http.StatusBadRequest, `{"object": "error", "status": 400, "code": "validation_error", "message": "Amount is not a property"}`, false},
		{"unauthorized", http.StatusUnauthorized, `{"object": "error", "status": 401, "code": "unauthorized", "message": "API token is invalid."}`, true},
		{"restricted", http.StatusForbidden, `{"object": "error", "status": 403, "code": "restricted_resource", "message": "no access"}`, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var calls int32
			client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				atomic.AddInt32(&calls, 1)
				writeJSON(w, tt.status, tt.body)
			}, Config{MaxRetries: 5})

			_, err := client.Create(context.Background(), "db", sampleProperties())
			require.Error(t, err)
			assert.EqualValues(t, 1, atomic.LoadInt32(&calls))

			var destErr *domainErrors.DestinationError
			require.ErrorAs(t, err, &destErr)
			assert.Equal(t, tt.status, destErr.StatusCode)
			assert.Equal(t, tt.wantAuth, domainErrors.IsAuthError(err))
		})
	}
}

func TestClient_RetriesAreBounded(t *testing.T) {
	var calls int32
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		writeJSON(w, http.StatusServiceUnavailable, `{"object": "error", "status": 503, "code": "service_unavailable", "message": "down"}`)
	}, Config{MaxRetries: 2})

	_, err := client.Create(context.Background(), "db", sampleProperties())
	require.Error(t, err)
	assert.EqualValues(t, 3, atomic.LoadInt32(&calls))
	assert.Equal(t, entity.SyncErrorDestinationWrite, domainErrors.Classify(err))
}

func TestClient_NetworkFailureIsTransient(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	baseURL := srv.URL
	srv.Close()

	client := NewClient(Config{BaseURL: baseURL, MaxRetries: 1, InitialBackoff: time.Millisecond}, zap.NewNop())
	_, err := client.Create(context.Background(), "db", sampleProperties())

	var transient *domainErrors.TransientError
	require.True(t, errors.As(err, &transient))
	assert.Equal(t, entity.SyncErrorTransient, domainErrors.Classify(err))
}

func TestClient_MinimumRequestSpacing(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, `{"object": "list", "results": []}`)
	}, Config{MinInterval: 40 * time.Millisecond})

	start := time.Now()
	for i := 0; i < 3; i++ {
		_, err := client.FindByNaturalKey(context.Background(), "db", "ID", "x")
		require.NoError(t, err)
	}
	assert.GreaterOrEqual(t, time.Since(start), 80*time.Millisecond)
}

func TestRichText_TruncatesOnCharacters(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want int
	}{
		{"ascii at limit", strings.Repeat("a", maxTextLength), maxTextLength},
		{"multi-byte over limit", strings.Repeat("é", maxTextLength+1), maxTextLength},
		{"multi-byte under byte limit", strings.Repeat("한", maxTextLength-1), maxTextLength - 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			block := richText(tt.in)[0].(map[string]interface{})
			content := block["text"].(map[string]interface{})["content"].(string)
			assert.True(t, utf8.ValidString(content))
			assert.Equal(t, tt.want, utf8.RuneCountInString(content))
			assert.True(t, strings.HasPrefix(tt.in, content))
		})
	}
}
