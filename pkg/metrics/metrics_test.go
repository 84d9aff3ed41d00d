package metrics

import (
	"io"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistryHandler(t *testing.T) {
	r := NewRegistry()
	r.EnrichRequests.WithLabelValues("book", OutcomeOK).Inc()
	r.StatusUpdates.WithLabelValues(OutcomeRejected).Inc()
	r.ViewCacheHits.Inc()

	srv := httptest.NewServer(r.Handler())
	defer srv.Close()

	resp, err := srv.Client().Get(srv.URL)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	assert.Contains(t, string(body), `orderdesk_enrich_requests_total{category="book",outcome="ok"} 1`)
	assert.Contains(t, string(body), `orderdesk_status_updates_total{outcome="rejected"} 1`)
	assert.Contains(t, string(body), "orderdesk_view_cache_hits_total 1")
	assert.Contains(t, string(body), "go_goroutines")
}
