package snapshot

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"venueboard/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeValidArray(t *testing.T) {
	body := []byte(`[
		{"location_id":"loc_atrium","date":"2025-03-01","slot":"10-12","club":"Robotics","event":"Demo Day","status":"CONFIRMED"},
		{"location_id":"loc_lawn","date":"2025-03-02","slot":"14-16"}
	]`)

	records, dropped, err := Decode(body)
	require.NoError(t, err)
	assert.Zero(t, dropped)
	require.Len(t, records, 2)
	assert.Equal(t, "loc_atrium", records[0].LocationID)
	assert.Equal(t, "CONFIRMED", records[0].Status)
}

func TestDecodeRejectsNonArray(t *testing.T) {
	for _, body := range []string{`{"error":"rate limited"}`, `"oops"`, `42`} {
		_, _, err := Decode([]byte(body))
		assert.ErrorIs(t, err, ErrNotArray, "body: %s", body)
	}
}

func TestDecodeRejectsInvalidJSON(t *testing.T) {
	_, _, err := Decode([]byte(`[{"date":`))
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrNotArray)
}

func TestDecodeDropsIncompleteRecords(t *testing.T) {
	body := []byte(`[
		{"location_id":"loc_atrium","date":"2025-03-01","slot":"10-12"},
		{"location_id":"loc_lawn","date":"2025-03-01"},
		{"date":"2025-03-01","slot":"10-12"}
	]`)

	records, dropped, err := Decode(body)
	require.NoError(t, err)
	assert.Equal(t, 2, dropped)
	require.Len(t, records, 1)
}

func TestStoreRejectsStaleSequence(t *testing.T) {
	store := NewStore()
	now := time.Now()

	require.True(t, store.Apply(2, []models.BookingRecord{{LocationID: "new"}}, now))
	assert.False(t, store.Apply(1, []models.BookingRecord{{LocationID: "old"}}, now))

	records, loaded := store.Records()
	require.True(t, loaded)
	require.Len(t, records, 1)
	assert.Equal(t, "new", records[0].LocationID)
	assert.EqualValues(t, 2, store.Seq())
}

func TestStoreRecordsReturnsCopy(t *testing.T) {
	store := NewStore()
	store.Apply(1, []models.BookingRecord{{LocationID: "loc_atrium"}}, time.Now())

	records, _ := store.Records()
	records[0].LocationID = "mutated"

	fresh, _ := store.Records()
	assert.Equal(t, "loc_atrium", fresh[0].LocationID)
}

func TestFetchOnceAppliesSnapshot(t *testing.T) {
	var mu sync.Mutex
	var gotBust string

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		gotBust = r.URL.Query().Get("t")
		mu.Unlock()
		w.Write([]byte(`[{"location_id":"loc_atrium","date":"2025-03-01","slot":"10-12"}]`))
	}))
	defer server.Close()

	store := NewStore()
	fetcher := NewFetcher(server.URL, store, nil, nil, time.Second)
	fetcher.FetchOnce(context.Background())

	records, loaded := store.Records()
	require.True(t, loaded)
	require.Len(t, records, 1)

	mu.Lock()
	defer mu.Unlock()
	assert.NotEmpty(t, gotBust, "cache-defeating query parameter must be present")
}

func TestFetchFailureKeepsPreviousSnapshot(t *testing.T) {
	fail := false
	var mu sync.Mutex

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		defer mu.Unlock()
		if fail {
			http.Error(w, "gone", http.StatusBadGateway)
			return
		}
		w.Write([]byte(`[{"location_id":"loc_atrium","date":"2025-03-01","slot":"10-12"}]`))
	}))
	defer server.Close()

	store := NewStore()
	fetcher := NewFetcher(server.URL, store, nil, nil, time.Second)

	fetcher.FetchOnce(context.Background())
	mu.Lock()
	fail = true
	mu.Unlock()
	fetcher.FetchOnce(context.Background())

	records, loaded := store.Records()
	require.True(t, loaded)
	assert.Len(t, records, 1, "previous snapshot must survive a failed fetch")
}

func TestMalformedBodyKeepsPreviousSnapshot(t *testing.T) {
	bad := false
	var mu sync.Mutex

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		defer mu.Unlock()
		if bad {
			w.Write([]byte(`{"message":"API rate limit exceeded"}`))
			return
		}
		w.Write([]byte(`[{"location_id":"loc_atrium","date":"2025-03-01","slot":"10-12"}]`))
	}))
	defer server.Close()

	store := NewStore()
	fetcher := NewFetcher(server.URL, store, nil, nil, time.Second)

	fetcher.FetchOnce(context.Background())
	mu.Lock()
	bad = true
	mu.Unlock()
	fetcher.FetchOnce(context.Background())

	records, _ := store.Records()
	assert.Len(t, records, 1)
}

func TestFirstLoadFailureLeavesStoreEmpty(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "not yet", http.StatusNotFound)
	}))
	defer server.Close()

	store := NewStore()
	fetcher := NewFetcher(server.URL, store, nil, nil, time.Second)
	fetcher.FetchOnce(context.Background())

	_, loaded := store.Records()
	assert.False(t, loaded, "no snapshot means an explicit no-data state")
}
