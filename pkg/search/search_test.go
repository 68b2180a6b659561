package search

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestQueryParsesHits(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "best running shoes", r.URL.Query().Get("q"))
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"items": [
			{"link": "https://rival-a.example.com/shoes", "title": "A", "snippet": "shoes"},
			{"link": "https://rival-b.example.com/shoes", "title": "B", "snippet": "shoes"}
		]}`))
	}))
	defer srv.Close()

	c := New(srv.URL, "key", "engine-1", 5*time.Second)
	results := c.Query(context.Background(), "best running shoes")

	assert.Len(t, results, 2)
	assert.Equal(t, "https://rival-a.example.com/shoes", results[0].Link)
}

func TestQueryWithNoOracleURLReturnsEmpty(t *testing.T) {
	c := New("", "", "", time.Second)
	results := c.Query(context.Background(), "anything")
	assert.Empty(t, results)
}

func TestQueryOnServerErrorReturnsEmpty(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := New(srv.URL, "", "", 5*time.Second)
	results := c.Query(context.Background(), "anything")
	assert.Empty(t, results)
}

func TestQueryOnUnreachableHostReturnsEmpty(t *testing.T) {
	c := New("http://this-host-does-not-exist.invalid/search", "", "", time.Second)
	results := c.Query(context.Background(), "anything")
	assert.Empty(t, results)
}
