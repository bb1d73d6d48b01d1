package ics

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const feedETag = `"v1"`

var feedBody = strings.Repeat("BEGIN:VCALENDAR\r\nEND:VCALENDAR\r\n", 64)

func TestFetcher_ConditionalAndFallback(t *testing.T) {
	t.Parallel()

	var failing atomic.Bool
	var conditional atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if failing.Load() {
			http.Error(w, "down", http.StatusBadGateway)
			return
		}
		if r.Header.Get("If-None-Match") == feedETag {
			conditional.Add(1)
			w.WriteHeader(http.StatusNotModified)
			return
		}
		w.Header().Set("ETag", feedETag)
		_, _ = w.Write([]byte(feedBody))
	}))
	t.Cleanup(srv.Close)

	f := NewFetcher(t.TempDir(), FetcherOptions{})
	src := Source{ID: "team", URL: srv.URL + "/team.ics?token=secret"}
	ctx := context.Background()

	first, err := f.FetchOne(ctx, src)
	require.NoError(t, err)
	assert.False(t, first.FromCache)
	assert.Equal(t, feedBody, string(first.Body))

	second, err := f.FetchOne(ctx, src)
	require.NoError(t, err)
	assert.True(t, second.FromCache)
	assert.Equal(t, feedBody, string(second.Body))
	assert.Equal(t, int32(1), conditional.Load())

	failing.Store(true)
	third, err := f.FetchOne(ctx, src)
	require.NoError(t, err)
	assert.True(t, third.FromCache)
	assert.Equal(t, feedBody, string(third.Body))
}

func TestFetcher_CacheIsCompressed(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	require.NoError(t, saveCache(dir, cacheEntry{URL: "u", ETag: feedETag}, []byte(feedBody)))

	meta, err := loadCacheMeta(dir)
	require.NoError(t, err)
	assert.True(t, meta.Compressed)
	assert.Equal(t, len(feedBody), meta.RawSize)

	body, err := loadCacheBody(dir, meta)
	require.NoError(t, err)
	assert.Equal(t, feedBody, string(body))
}

func TestFetcher_BodyLimit(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(feedBody))
	}))
	t.Cleanup(srv.Close)

	f := NewFetcher(t.TempDir(), FetcherOptions{MaxBodySize: 16})
	_, err := f.FetchOne(context.Background(), Source{ID: "big", URL: srv.URL})
	require.ErrorIs(t, err, ErrBodyTooLarge)
}

func TestFetchAll_CollectsErrors(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(feedBody))
	}))
	t.Cleanup(srv.Close)

	f := NewFetcher(t.TempDir(), FetcherOptions{})
	results, errs := f.FetchAll(context.Background(), []Source{
		{ID: "ok", URL: srv.URL},
		{ID: "empty"},
	})
	require.Len(t, results, 1)
	assert.Equal(t, "ok", results[0].Source.ID)
	require.Len(t, errs, 1)
	assert.ErrorIs(t, errs[0], ErrEmptyURL)
}

func TestRedactURL(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "https://example.com/...(redacted)", redactURL("https://example.com/private/a.ics?token=x"))
	assert.Equal(t, "ics://...(redacted)", redactURL("not a url"))
}
