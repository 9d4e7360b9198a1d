package pipeline_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/neo-risk-service/internal/adapter/neows"
	"github.com/couchcryptid/neo-risk-service/internal/broadcast"
	"github.com/couchcryptid/neo-risk-service/internal/domain"
)

// loadFeedFixture decodes testdata/feed.json: four objects over two days, in
// feed order (2026 TA1), 453309 (2019 HZ4) [hazardous], (2026 TB2)
// [hazardous], (2026 TC).
func loadFeedFixture(t *testing.T) []domain.RawObject {
	t.Helper()
	f, err := os.Open("testdata/feed.json")
	require.NoError(t, err)
	defer f.Close()

	objects, err := neows.DecodeFeed(f)
	require.NoError(t, err)
	require.Len(t, objects, 4)
	return objects
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type window struct {
	start, end time.Time
}

type fakeFeed struct {
	mu      sync.Mutex
	objects []domain.RawObject
	err     error
	windows []window
	called  chan struct{}
}

func newFakeFeed(objects []domain.RawObject, err error) *fakeFeed {
	return &fakeFeed{objects: objects, err: err, called: make(chan struct{}, 16)}
}

func (f *fakeFeed) FetchWindow(_ context.Context, start, end time.Time) ([]domain.RawObject, error) {
	f.mu.Lock()
	f.windows = append(f.windows, window{start: start, end: end})
	f.mu.Unlock()

	select {
	case f.called <- struct{}{}:
	default:
	}
	if f.err != nil {
		return nil, f.err
	}
	return f.objects, nil
}

func (f *fakeFeed) calls() []window {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]window(nil), f.windows...)
}

type recordingBus struct {
	mu        sync.Mutex
	envelopes []broadcast.Envelope
}

func (b *recordingBus) Publish(env broadcast.Envelope) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.envelopes = append(b.envelopes, env)
	return 1
}

func (b *recordingBus) published() []broadcast.Envelope {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]broadcast.Envelope(nil), b.envelopes...)
}

type fakeAlertStore struct {
	mu       sync.Mutex
	owner    *domain.User
	ownerErr error
	writeErr error
	alerts   []domain.Alert
}

func (s *fakeAlertStore) DefaultOwner(_ context.Context) (domain.User, error) {
	if s.ownerErr != nil {
		return domain.User{}, s.ownerErr
	}
	if s.owner == nil {
		return domain.User{}, domain.ErrNotFound
	}
	return *s.owner, nil
}

func (s *fakeAlertStore) CreateAlert(_ context.Context, a domain.Alert) (domain.Alert, error) {
	if s.writeErr != nil {
		return domain.Alert{}, s.writeErr
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	a.ID = int64(len(s.alerts) + 1)
	s.alerts = append(s.alerts, a)
	return a, nil
}

func (s *fakeAlertStore) written() []domain.Alert {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]domain.Alert(nil), s.alerts...)
}

var errUpstream = errors.New("upstream 503")

func feedDown() error {
	return errors.Join(domain.ErrFeedUnavailable, errUpstream)
}
