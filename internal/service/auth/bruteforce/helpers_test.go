package bruteforce

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/nkiryanov/authgate/internal/logger"
	"github.com/nkiryanov/authgate/internal/testutil"
)

func newTestRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	return testutil.StartRedis(t)
}

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func newTestClock() *testClock {
	return &testClock{now: time.Date(2024, 1, 1, 19, 0, 0, 0, time.UTC)}
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

var errStoreDown = errors.New("store is down")

// Store that fails every call
type brokenStore struct{}

func (brokenStore) Ping(context.Context) error { return errStoreDown }
func (brokenStore) IsLocked(context.Context, string) (bool, error) {
	return false, errStoreDown
}
func (brokenStore) RecordFailure(context.Context, string, int64, time.Duration) (Attempt, error) {
	return Attempt{}, errStoreDown
}
func (brokenStore) Clear(context.Context, string) error { return errStoreDown }

// Primary that answers ping but fails operations
type flakyStore struct{ brokenStore }

func (flakyStore) Ping(context.Context) error { return nil }

// Primary whose ping never answers until ctx is done
type hangingStore struct{ brokenStore }

func (hangingStore) Ping(ctx context.Context) error {
	<-ctx.Done()
	return ctx.Err()
}

// Primary that applies the failure but loses the reply
type lostReplyStore struct {
	*MemoryStore
}

func (lostReplyStore) Ping(context.Context) error { return nil }

func (s *lostReplyStore) RecordFailure(ctx context.Context, id string, maxAttempts int64, lockout time.Duration) (Attempt, error) {
	if _, err := s.MemoryStore.RecordFailure(ctx, id, maxAttempts, lockout); err != nil {
		return Attempt{}, err
	}
	return Attempt{}, context.DeadlineExceeded
}

type logRecord struct {
	level string
	msg   string
	args  []any
}

// Logger that keeps records for assertions
type recordingLogger struct {
	mu      *sync.Mutex
	records *[]logRecord
	with    []any
}

func newRecordingLogger() *recordingLogger {
	return &recordingLogger{mu: &sync.Mutex{}, records: &[]logRecord{}}
}

func (l *recordingLogger) add(level, msg string, args ...any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	*l.records = append(*l.records, logRecord{level: level, msg: msg, args: append(append([]any{}, l.with...), args...)})
}

func (l *recordingLogger) Debug(msg string, args ...any) { l.add("DEBUG", msg, args...) }
func (l *recordingLogger) Info(msg string, args ...any)  { l.add("INFO", msg, args...) }
func (l *recordingLogger) Warn(msg string, args ...any)  { l.add("WARN", msg, args...) }
func (l *recordingLogger) Error(msg string, args ...any) { l.add("ERROR", msg, args...) }

func (l *recordingLogger) With(args ...any) logger.Logger {
	return &recordingLogger{mu: l.mu, records: l.records, with: append(append([]any{}, l.with...), args...)}
}

func (l *recordingLogger) WithGroup(string) logger.Logger { return l }

func (l *recordingLogger) byLevel(level string) []logRecord {
	l.mu.Lock()
	defer l.mu.Unlock()

	var out []logRecord
	for _, r := range *l.records {
		if r.level == level {
			out = append(out, r)
		}
	}
	return out
}

func (r logRecord) String() string {
	return fmt.Sprintf("%s %s %v", r.level, r.msg, r.args)
}
