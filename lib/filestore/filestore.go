// Package filestore persists a whole JSON document per store, with an
// exclusive inter-process lock held for every read-modify-write cycle.
// The batch job and the subscription handlers run as separate processes
// against the same files, so in-process mutexes are not enough.
package filestore

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/gofrs/flock"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
)

var tracer = otel.Tracer("fuelalert.lib.filestore")

const lockRetryDelay = time.Millisecond * 50

type Store[T any] struct {
	path string
	// mu serializes goroutines sharing this instance; the flock only
	// guards against other processes and is a no-op for a holder that
	// already has it.
	mu   sync.Mutex
	lock *flock.Flock
}

func New[T any](path string) *Store[T] {
	return &Store[T]{
		path: path,
		lock: flock.New(path + ".lock"),
	}
}

func (s *Store[T]) Path() string {
	return s.path
}

func (s *Store[T]) read() (T, error) {
	var doc T
	raw, err := os.ReadFile(s.path)
	if os.IsNotExist(err) {
		// a store that does not exist yet reads as the zero document
		return doc, nil
	}
	if err != nil {
		return doc, err
	}
	err = json.Unmarshal(raw, &doc)
	if err != nil {
		return doc, fmt.Errorf("decode %s: %w", s.path, err)
	}
	return doc, nil
}

func (s *Store[T]) write(doc T) error {
	raw, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return err
	}
	raw = append(raw, '\n')

	err = os.MkdirAll(filepath.Dir(s.path), 0o755)
	if err != nil {
		return err
	}
	tmp, err := os.CreateTemp(filepath.Dir(s.path), ".store-*")
	if err != nil {
		return err
	}
	_, err = tmp.Write(raw)
	if err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return err
	}
	err = tmp.Close()
	if err != nil {
		os.Remove(tmp.Name())
		return err
	}
	return os.Rename(tmp.Name(), s.path)
}

func (s *Store[T]) acquire(ctx context.Context) error {
	if _, deadline := ctx.Deadline(); !deadline {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, time.Second*10)
		defer cancel()
	}
	_, err := s.lock.TryLockContext(ctx, lockRetryDelay)
	if err != nil {
		return fmt.Errorf("lock %s: %w", s.lock.Path(), err)
	}
	return nil
}

// View reads the whole document under the store lock.
func (s *Store[T]) View(ctx context.Context, fn func(doc T) error) error {
	ctx, span := tracer.Start(ctx, "View")
	defer span.End()

	s.mu.Lock()
	defer s.mu.Unlock()

	err := s.acquire(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to acquire store lock")
		return err
	}
	defer s.lock.Unlock()

	doc, err := s.read()
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to read store")
		return err
	}
	return fn(doc)
}

// Update runs a full read-modify-write cycle under the store lock. The
// document is rewritten even when fn leaves it unchanged, which keeps
// the write path idempotent.
func (s *Store[T]) Update(ctx context.Context, fn func(doc *T) error) error {
	ctx, span := tracer.Start(ctx, "Update")
	defer span.End()

	s.mu.Lock()
	defer s.mu.Unlock()

	err := s.acquire(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to acquire store lock")
		return err
	}
	defer s.lock.Unlock()

	doc, err := s.read()
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to read store")
		return err
	}
	err = fn(&doc)
	if err != nil {
		return err
	}
	err = s.write(doc)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to write store")
		return err
	}
	return nil
}
