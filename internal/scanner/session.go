// Package scanner drives a scan session over a frame source (a camera
// decoder or any stand-in). The source is acquired lazily when scanning
// starts and released exactly once on every exit path: successful decode,
// explicit stop, source failure, session close.
package scanner

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"farmdeck/internal/share"
)

// Status is the session's user-visible state.
type Status string

const (
	StatusIdle     Status = "idle"
	StatusScanning Status = "scanning"
	StatusFound    Status = "found"
	StatusError    Status = "error"
)

// Source produces candidate payload text decoded from scanned frames.
// Frames that are not valid share payloads are expected while the source
// searches for a code; the session ignores them.
type Source interface {
	// Start acquires the underlying device and begins emitting frames.
	// The returned channel is closed when the source stops.
	Start(ctx context.Context) (<-chan string, error)

	// Stop releases the underlying device. The session guarantees at most
	// one Stop call per successful Start.
	Stop() error
}

// PayloadHandler consumes a successfully decoded payload, typically by
// merging it into the local store.
type PayloadHandler func(ctx context.Context, p share.Payload) (share.Result, error)

// Session owns one scan lifecycle: idle -> scanning -> found -> idle, with
// error reachable from acquisition, decoding, and the import step.
type Session struct {
	source  Source
	handler PayloadHandler

	mu       sync.Mutex
	status   Status
	acquired bool
	lastErr  error
	stopCh   chan struct{}
	doneCh   chan struct{}
}

func NewSession(source Source, handler PayloadHandler) *Session {
	return &Session{
		source:  source,
		handler: handler,
		status:  StatusIdle,
	}
}

// Status returns the current session state.
func (s *Session) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status
}

// Err returns the error that put the session into StatusError, if any.
func (s *Session) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastErr
}

// Scan acquires the source and begins scanning. Returns an error if a scan
// is already in progress. A session in StatusError may be retried by
// calling Scan again.
func (s *Session) Scan(ctx context.Context) error {
	// Reserve the scanning state before touching the source so overlapping
	// Scan calls cannot both acquire it. StatusFound still owns the run
	// goroutine, so it blocks a new scan too.
	s.mu.Lock()
	if s.status == StatusScanning || s.status == StatusFound || s.acquired {
		s.mu.Unlock()
		return fmt.Errorf("scan already in progress")
	}
	s.status = StatusScanning
	s.lastErr = nil
	s.stopCh = nil
	s.doneCh = nil
	s.mu.Unlock()

	frames, err := s.source.Start(ctx)
	if err != nil {
		s.fail(fmt.Errorf("acquire scan source: %w", err))
		return s.Err()
	}

	s.mu.Lock()
	s.acquired = true
	s.stopCh = make(chan struct{})
	s.doneCh = make(chan struct{})
	s.mu.Unlock()

	go s.run(ctx, frames)

	slog.InfoContext(ctx, "Scan session started")
	return nil
}

// Close stops an in-flight scan and releases the source. Safe to call on
// any state and on every exit path; the source is stopped at most once per
// acquisition.
func (s *Session) Close(ctx context.Context) error {
	s.mu.Lock()
	// Nil channels mean the scan reserved the state but never got a running
	// goroutine (still acquiring, or acquisition failed).
	if s.status != StatusScanning || s.stopCh == nil {
		s.release()
		s.status = StatusIdle
		s.mu.Unlock()
		return nil
	}
	stopCh, doneCh := s.stopCh, s.doneCh
	s.mu.Unlock()

	select {
	case <-stopCh:
	default:
		close(stopCh)
	}

	select {
	case <-doneCh:
	case <-ctx.Done():
		return ctx.Err()
	}
	return nil
}

// run consumes frames until one decodes into a payload, the session is
// stopped, or the source closes its channel.
func (s *Session) run(ctx context.Context, frames <-chan string) {
	defer close(s.doneCh)

	for {
		select {
		case <-s.stopCh:
			s.finish(StatusIdle, nil)
			return
		case <-ctx.Done():
			s.finish(StatusIdle, nil)
			return
		case frame, ok := <-frames:
			if !ok {
				s.finish(StatusError, fmt.Errorf("scan source closed before a payload was found"))
				return
			}
			payload, err := share.Decode([]byte(frame))
			if err != nil {
				// Decoder noise while the source searches for a code.
				continue
			}

			s.setStatus(StatusFound)
			// Release before the import: the device is no longer needed
			// and the import may be slow.
			s.mu.Lock()
			s.release()
			s.mu.Unlock()

			if _, err := s.handler(ctx, payload); err != nil {
				s.finish(StatusError, fmt.Errorf("import scanned payload: %w", err))
				return
			}
			s.finish(StatusIdle, nil)
			return
		}
	}
}

// release stops the source if this acquisition still holds it. Callers must
// hold s.mu.
func (s *Session) release() {
	if !s.acquired {
		return
	}
	s.acquired = false
	if err := s.source.Stop(); err != nil {
		slog.Warn("Failed to stop scan source", "error", err)
	}
}

func (s *Session) setStatus(st Status) {
	s.mu.Lock()
	s.status = st
	s.mu.Unlock()
}

func (s *Session) finish(st Status, err error) {
	s.mu.Lock()
	s.release()
	s.status = st
	s.lastErr = err
	s.mu.Unlock()
}

func (s *Session) fail(err error) {
	s.mu.Lock()
	s.status = StatusError
	s.lastErr = err
	s.mu.Unlock()
}
