package ratelimit_test

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/serroba/formguard/internal/ratelimit"
	"github.com/serroba/formguard/internal/store"
)

var errStorageDown = errors.New("storage down")

// fakeClock is a manually advanced time source.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.UnixMilli(1_700_000_000_000)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.now = c.now.Add(d)
}

// failingStorage returns configured errors and counts calls.
type failingStorage struct {
	mu        sync.Mutex
	values    map[string]string
	getErr    error
	setErr    error
	removeErr error
	calls     int
}

func newFailingStorage() *failingStorage {
	return &failingStorage{values: make(map[string]string)}
}

func (f *failingStorage) Get(_ context.Context, key string) (string, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.calls++

	if f.getErr != nil {
		return "", false, f.getErr
	}

	v, ok := f.values[key]

	return v, ok, nil
}

func (f *failingStorage) Set(_ context.Context, key, value string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.calls++

	if f.setErr != nil {
		return f.setErr
	}

	f.values[key] = value

	return nil
}

func (f *failingStorage) Remove(_ context.Context, key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.calls++

	if f.removeErr != nil {
		return f.removeErr
	}

	delete(f.values, key)

	return nil
}

func (f *failingStorage) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()

	return f.calls
}

// recordingObserver captures Observer callbacks.
type recordingObserver struct {
	mu          sync.Mutex
	allowed     int
	denied      int
	exceeded    int
	diagnostics []error
}

func (o *recordingObserver) AttemptRecorded(_ string, allowed bool) {
	o.mu.Lock()
	defer o.mu.Unlock()

	if allowed {
		o.allowed++
	} else {
		o.denied++
	}
}

func (o *recordingObserver) LimitExceeded(_ string) {
	o.mu.Lock()
	defer o.mu.Unlock()

	o.exceeded++
}

func (o *recordingObserver) Diagnostic(_ string, err error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	o.diagnostics = append(o.diagnostics, err)
}

// blockingStorage holds Get calls for one key until release is closed.
type blockingStorage struct {
	ratelimit.Storage

	key     string
	started chan struct{}
	release chan struct{}
	once    sync.Once
}

func newBlockingStorage(key string) *blockingStorage {
	return &blockingStorage{
		Storage: store.NewMemoryStorage(),
		key:     key,
		started: make(chan struct{}),
		release: make(chan struct{}),
	}
}

func (b *blockingStorage) Get(ctx context.Context, key string) (string, bool, error) {
	if key == b.key {
		b.once.Do(func() { close(b.started) })
		<-b.release
	}

	return b.Storage.Get(ctx, key)
}
