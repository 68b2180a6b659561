package fetcher

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/geoauditlabs/geo-audit-core/pkg/errs"
	"github.com/geoauditlabs/geo-audit-core/pkg/ssrf"
)

func TestFetchSuccessCapturesFinalURLAndHeaders(t *testing.T) {
	mobileSeen := ""
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mobileSeen = r.Header.Get("User-Agent")
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Write([]byte("<html></html>"))
	}))
	defer srv.Close()

	f := New(ssrf.New(true))
	res, err := f.Fetch(context.Background(), srv.URL, 5*time.Second, true, "en")
	require.NoError(t, err)
	assert.Equal(t, 200, res.Status)
	assert.Contains(t, res.ContentType, "text/html")
	assert.Contains(t, mobileSeen, "Android")
	assert.False(t, res.Truncated)
}

func TestFetchClassifiesServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	f := New(ssrf.New(true))
	_, err := f.Fetch(context.Background(), srv.URL, 5*time.Second, false, "en")
	require.Error(t, err)
	assert.True(t, errs.IsKind(err, errs.KindHTTP5xx))
}

func TestFetchBlocksSSRFBeforeConnect(t *testing.T) {
	f := New(ssrf.New(false))
	_, err := f.Fetch(context.Background(), "http://127.0.0.1:9/admin", 2*time.Second, false, "en")
	require.Error(t, err)
	assert.True(t, errs.IsKind(err, errs.KindSSRFBlocked))
}

func TestFetchTruncatesOversizedBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		chunk := make([]byte, 1024*1024)
		for i := 0; i < 9; i++ {
			w.Write(chunk)
		}
	}))
	defer srv.Close()

	f := New(ssrf.New(true))
	res, err := f.Fetch(context.Background(), srv.URL, 10*time.Second, false, "en")
	require.NoError(t, err)
	assert.True(t, res.Truncated)
	assert.Equal(t, MaxBodyBytes, len(res.Body))
}
