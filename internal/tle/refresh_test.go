package tle

import (
	"context"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"
)

func TestRefresher_LoadCache(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "tle")
	cache := NewCache(dir, 2)
	ts := time.Unix(1_700_000_000, 0)
	if err := cache.Write([]byte(issTLE+starlinkTLE), ts); err != nil {
		t.Fatal(err)
	}

	r := &Refresher{Store: NewStore(), Cache: cache, Logger: testLogger}
	if err := r.LoadCache(); err != nil {
		t.Fatalf("LoadCache: %v", err)
	}
	ds := r.Store.Get()
	if ds == nil || ds.Source != "cache" || len(ds.Satellites) != 2 || !ds.FetchedAt.Equal(ts) {
		t.Fatalf("dataset = %+v", ds)
	}

	empty := &Refresher{Store: NewStore(), Cache: NewCache(filepath.Join(dir, "none"), 1), Logger: testLogger}
	if err := empty.LoadCache(); err == nil {
		t.Error("expected error from empty cache")
	}
}

func TestRefresher_Refresh(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(issTLE))
	}))
	defer server.Close()

	dir := filepath.Join(t.TempDir(), "tle")
	r := &Refresher{
		Store:   NewStore(),
		Cache:   NewCache(dir, 2),
		Fetcher: NewFetcher(server.URL, testLogger),
		MaxAge:  time.Hour,
		Logger:  testLogger,
	}
	if err := r.Refresh(context.Background()); err != nil {
		t.Fatalf("Refresh: %v", err)
	}
	ds := r.Store.Get()
	if ds == nil || ds.Source != server.URL {
		t.Fatalf("dataset = %+v", ds)
	}
	if _, ok := ds.Find(25544); !ok {
		t.Error("ISS missing from refreshed dataset")
	}

	data, _, err := r.Cache.LoadLatest()
	if err != nil || string(data) != issTLE {
		t.Errorf("cache = %q, %v", data, err)
	}
}

func TestRefresher_RefreshErrors(t *testing.T) {
	r := &Refresher{Store: NewStore(), Cache: NewCache(t.TempDir(), 1), Logger: testLogger}
	if err := r.Refresh(context.Background()); err == nil {
		t.Error("expected error with no fetcher")
	}

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("not a TLE\n"))
	}))
	defer server.Close()
	r.Fetcher = NewFetcher(server.URL, testLogger)
	if err := r.Refresh(context.Background()); err == nil {
		t.Error("expected error for a body with no entries")
	}
	if r.Store.Get() != nil {
		t.Error("store should stay empty after a failed refresh")
	}
}

func TestRefresher_RunSkipsFreshData(t *testing.T) {
	var hits atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.Write([]byte(issTLE))
	}))
	defer server.Close()

	store := NewStore()
	store.Set(NewDataset("cache", time.Now(), nil))
	r := &Refresher{
		Store:   store,
		Cache:   NewCache(t.TempDir(), 1),
		Fetcher: NewFetcher(server.URL, testLogger),
		MaxAge:  time.Hour,
		Logger:  testLogger,
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		r.Run(ctx)
		close(done)
	}()
	cancel()
	<-done

	if n := hits.Load(); n != 0 {
		t.Errorf("fetched %d times for fresh data, want 0", n)
	}
}
