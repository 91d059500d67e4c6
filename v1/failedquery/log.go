package failedquery

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sync"
	"time"
)

// ErrQueueFull is returned by Add when the queue is at capacity and no
// fallback file is configured.
var ErrQueueFull = errors.New("failed query queue is full")

// Logger is the logging surface of the package.
//
//go:generate mockgen -source=log.go -destination=mock_logger.go -package=failedquery
type Logger interface {
	Info(msg string, err error, fields ...map[string]interface{})
	Warn(msg string, err error, fields ...map[string]interface{})
	Error(msg string, err error, fields ...map[string]interface{})
}

// Entry is one write that failed after exhausting retries.
type Entry struct {
	Query      string          `json:"query"`
	Params     json.RawMessage `json:"params"`
	FailedAt   time.Time       `json:"timestamp"`
	RetryCount int             `json:"retry_count"`
}

// Args decodes Params back into positional arguments. Byte slices and
// times come back with their Go types; JSON numbers decode as float64.
func (e Entry) Args() ([]any, error) {
	if len(e.Params) == 0 || string(e.Params) == "null" {
		return nil, nil
	}
	var args []any
	if err := json.Unmarshal(e.Params, &args); err != nil {
		return nil, fmt.Errorf("decode params: %w", err)
	}
	for i, a := range args {
		args[i] = decodeParam(a)
	}
	return args, nil
}

// ReplayStats summarizes one Replay pass.
type ReplayStats struct {
	Succeeded int
	Requeued  int
	Dropped   int
}

// ExecFunc re-executes a logged statement.
type ExecFunc func(ctx context.Context, query string, params []any) error

// Log is a bounded in-memory queue of failed writes with an optional file
// fallback. It is owned by a single client and is safe for concurrent use.
type Log struct {
	cfg    Config
	logger Logger
	now    func() time.Time

	mu      sync.Mutex
	entries []Entry
	fileMu  sync.Mutex
}

// Option configures a Log.
type Option func(*Log)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(l *Log) { l.now = now }
}

// New builds a Log. Zero config fields take their defaults.
func New(cfg Config, logger Logger, opts ...Option) *Log {
	l := &Log{
		cfg:    cfg.withDefaults(),
		logger: logger,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Add queues a failed statement with retry count zero.
func (l *Log) Add(query string, params []any) error {
	return l.add(query, params, 0)
}

func (l *Log) add(query string, params []any, retryCount int) error {
	raw, err := json.Marshal(encodeParams(params))
	if err != nil {
		// unserializable params still get recorded, as text
		raw, _ = json.Marshal(fmt.Sprint(params))
	}
	entry := Entry{Query: query, Params: raw, FailedAt: l.now(), RetryCount: retryCount}

	l.mu.Lock()
	if len(l.entries) < l.cfg.Capacity {
		l.entries = append(l.entries, entry)
		l.mu.Unlock()
		l.info("Logged failed query for retry", map[string]interface{}{"retry_count": retryCount})
		return nil
	}
	l.mu.Unlock()

	if l.cfg.FallbackPath == "" {
		l.warn("Failed query queue is full, dropping entry", ErrQueueFull, map[string]interface{}{"query": query})
		return ErrQueueFull
	}
	if err := l.appendToFile(entry); err != nil {
		l.error("Could not write failed query to fallback file", err, map[string]interface{}{"path": l.cfg.FallbackPath})
		return fmt.Errorf("write fallback: %w", err)
	}
	return nil
}

func (l *Log) requeue(e Entry) {
	l.mu.Lock()
	if len(l.entries) < l.cfg.Capacity {
		l.entries = append(l.entries, e)
		l.mu.Unlock()
		return
	}
	l.mu.Unlock()

	if l.cfg.FallbackPath != "" && l.appendToFile(e) == nil {
		return
	}
	l.warn("Failed query queue is full, dropping entry", ErrQueueFull, map[string]interface{}{"query": e.Query})
}

func (l *Log) appendToFile(e Entry) error {
	l.fileMu.Lock()
	defer l.fileMu.Unlock()

	f, err := os.OpenFile(l.cfg.FallbackPath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o600)
	if err != nil {
		return err
	}
	defer f.Close()

	line, err := json.Marshal(e)
	if err != nil {
		return err
	}
	_, err = f.Write(append(line, '\n'))
	return err
}

// Replay runs one pass over the queued entries. Entries that succeed are
// discarded, failures are re-queued with an incremented retry count, and
// entries that already reached MaxRetries are dropped without running.
func (l *Log) Replay(ctx context.Context, exec ExecFunc) ReplayStats {
	l.mu.Lock()
	pending := l.entries
	l.entries = nil
	l.mu.Unlock()

	var stats ReplayStats
	for i, e := range pending {
		if ctx.Err() != nil {
			// put back what was not attempted
			for _, rest := range pending[i:] {
				l.requeue(rest)
			}
			break
		}

		if e.RetryCount >= l.cfg.MaxRetries {
			stats.Dropped++
			l.warn("Max retries reached for failed query, not retrying", nil, map[string]interface{}{
				"query":       e.Query,
				"retry_count": e.RetryCount,
			})
			continue
		}

		args, err := e.Args()
		if err == nil {
			err = exec(ctx, e.Query, args)
		}
		if err == nil {
			stats.Succeeded++
			continue
		}

		e.RetryCount++
		l.requeue(e)
		stats.Requeued++
		l.info("Re-added failed query to queue", map[string]interface{}{"retry_count": e.RetryCount})
	}
	return stats
}

// Cleanup evicts entries older than the retention window or whose retry count
// reached EvictRetries. It returns the number removed.
func (l *Log) Cleanup() int {
	cutoff := l.now().Add(-l.cfg.Retention)

	l.mu.Lock()
	defer l.mu.Unlock()

	kept := l.entries[:0]
	removed := 0
	for _, e := range l.entries {
		if e.FailedAt.Before(cutoff) || e.RetryCount >= l.cfg.EvictRetries {
			removed++
			continue
		}
		kept = append(kept, e)
	}
	l.entries = kept
	return removed
}

// Len returns the number of queued entries.
func (l *Log) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.entries)
}

// Entries returns a copy of the queue.
func (l *Log) Entries() []Entry {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]Entry, len(l.entries))
	copy(out, l.entries)
	return out
}

func (l *Log) info(msg string, fields map[string]interface{}) {
	if l.logger != nil {
		l.logger.Info(msg, nil, fields)
	}
}

func (l *Log) warn(msg string, err error, fields map[string]interface{}) {
	if l.logger != nil {
		l.logger.Warn(msg, err, fields)
	}
}

func (l *Log) error(msg string, err error, fields map[string]interface{}) {
	if l.logger != nil {
		l.logger.Error(msg, err, fields)
	}
}
