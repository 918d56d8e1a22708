package mesh

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bioforge/trialdossier/internal/infrastructure/monitoring/logging"
	"github.com/bioforge/trialdossier/pkg/errors"
)

func newTestClient(t *testing.T, handler http.Handler) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	client, err := NewClient(srv.URL, "test-key", 5*time.Second, logging.NewNopLogger())
	require.NoError(t, err)
	return client
}

func TestClient_CanonicalDiseaseName(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/esearch.fcgi", func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		assert.Equal(t, "mesh", q.Get("db"))
		assert.Equal(t, "test-key", q.Get("api_key"))
		if q.Get("term") == "bronchial asthma" {
			fmt.Fprint(w, `{"esearchresult":{"idlist":["68001249"]}}`)
			return
		}
		fmt.Fprint(w, `{"esearchresult":{"idlist":[]}}`)
	})
	mux.HandleFunc("/esummary.fcgi", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "68001249", r.URL.Query().Get("id"))
		fmt.Fprint(w, `{"result":{"uids":["68001249"],"68001249":{"ds_meshterms":["Asthma","Asthma, Bronchial"]}}}`)
	})
	client := newTestClient(t, mux)

	heading, err := client.CanonicalDiseaseName(context.Background(), "bronchial asthma")
	require.NoError(t, err)
	assert.Equal(t, "Asthma", heading)
}

func TestClient_CanonicalDiseaseName_NoMatch(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/esearch.fcgi", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"esearchresult":{"idlist":[]}}`)
	})
	client := newTestClient(t, mux)

	_, err := client.CanonicalDiseaseName(context.Background(), "not a disease")
	require.Error(t, err)
	assert.True(t, errors.IsNotFound(err))
}

func TestClient_CanonicalDiseaseName_EmptyInput(t *testing.T) {
	client := newTestClient(t, http.NewServeMux())

	_, err := client.CanonicalDiseaseName(context.Background(), "  ")
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrCodeInvalidParam))
}

func TestClient_EndpointErrors(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/esearch.fcgi", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	})
	client := newTestClient(t, mux)

	_, err := client.CanonicalDiseaseName(context.Background(), "asthma")
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrCodeSourceRateLimited))
}
