package snapshot

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"sync/atomic"
	"time"

	"venueboard/internal/events"
	"venueboard/internal/metrics"

	"github.com/rs/zerolog"
)

// Fetch outcomes reported to metrics.
const (
	FetchApplied = "applied"
	FetchStale   = "stale"
	FetchError   = "error"
)

// Fetcher polls the published snapshot document. Each fetch carries a
// monotonic sequence number; a slow response that resolves after a
// newer one has been applied is discarded instead of clobbering it.
type Fetcher struct {
	url        string
	store      *Store
	bus        *events.EventBus
	logger     *zerolog.Logger
	httpClient *http.Client
	seq        atomic.Uint64
	now        func() time.Time
}

func NewFetcher(rawURL string, store *Store, bus *events.EventBus, logger *zerolog.Logger, timeout time.Duration) *Fetcher {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	return &Fetcher{
		url:        rawURL,
		store:      store,
		bus:        bus,
		logger:     logger,
		httpClient: &http.Client{Timeout: timeout},
		now:        time.Now,
	}
}

// Run fetches once immediately, then on every tick until ctx is done.
// Ticks do not wait for in-flight fetches; ordering is enforced by the
// store's sequence guard.
func (f *Fetcher) Run(ctx context.Context, interval time.Duration) {
	f.logger.Info().Dur("interval", interval).Msg("snapshot poller started")
	defer f.logger.Info().Msg("snapshot poller stopped")

	f.FetchOnce(ctx)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			go f.FetchOnce(ctx)
		}
	}
}

// FetchOnce performs one fetch-decode-apply pass. Failures keep the
// previous snapshot; only the very first load can leave the store
// empty, which the API surfaces as an explicit no-data state.
func (f *Fetcher) FetchOnce(ctx context.Context) {
	seq := f.seq.Add(1)

	body, err := f.fetch(ctx)
	if err != nil {
		metrics.IncSnapshotFetch(FetchError)
		f.logger.Warn().Err(err).Msg("snapshot fetch failed, keeping previous data")
		return
	}

	records, dropped, err := Decode(body)
	if err != nil {
		metrics.IncSnapshotFetch(FetchError)
		f.logger.Warn().Err(err).Msg("snapshot rejected, keeping previous data")
		return
	}
	if dropped > 0 {
		f.logger.Warn().Int("dropped", dropped).Msg("snapshot records failed schema validation")
	}

	if !f.store.Apply(seq, records, f.now()) {
		metrics.IncSnapshotFetch(FetchStale)
		f.publish(events.EventSnapshotStale, events.SnapshotEventPayload{Sequence: seq, Records: len(records)})
		return
	}

	metrics.IncSnapshotFetch(FetchApplied)
	metrics.SetSnapshotRecords(len(records))
	f.publish(events.EventSnapshotApplied, events.SnapshotEventPayload{Sequence: seq, Records: len(records)})
}

func (f *Fetcher) fetch(ctx context.Context) ([]byte, error) {
	// Cache-defeating query parameter; raw-content CDNs otherwise
	// serve stale documents.
	u, err := url.Parse(f.url)
	if err != nil {
		return nil, fmt.Errorf("parse snapshot url: %w", err)
	}
	q := u.Query()
	q.Set("t", strconv.FormatInt(f.now().UnixMilli(), 10))
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, err
	}

	resp, err := f.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("snapshot endpoint returned %d", resp.StatusCode)
	}

	return io.ReadAll(io.LimitReader(resp.Body, 8<<20))
}

func (f *Fetcher) publish(eventType string, payload interface{}) {
	if f.bus == nil {
		return
	}
	_ = f.bus.PublishJSON(eventType, payload)
}
