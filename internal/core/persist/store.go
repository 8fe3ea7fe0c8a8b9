// Package persist keeps typed values in a key-value backend. Reads fall back
// to a default and writes never fail from the caller's point of view: the
// caller's in-memory value stays authoritative when the backend misbehaves.
package persist

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/rl1809/storefront/internal/port"
)

type Store[T any] struct {
	kv     port.KeyValueStore
	logger logrus.FieldLogger

	mu          sync.Mutex
	nextID      int
	subscribers map[string]map[int]func(T)
}

func New[T any](kv port.KeyValueStore, logger logrus.FieldLogger) *Store[T] {
	if kv == nil {
		panic("persist: nil key-value store")
	}
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Store[T]{
		kv:          kv,
		logger:      logger,
		subscribers: make(map[string]map[int]func(T)),
	}
}

// Read returns the value stored under key, or def when the key is absent,
// the backend fails, or the payload cannot be decoded.
func (s *Store[T]) Read(ctx context.Context, key string, def T) T {
	raw, err := s.kv.Get(ctx, key)
	if err != nil {
		if !errors.Is(err, port.ErrKeyNotFound) {
			s.logger.WithError(err).WithField("key", key).Warn("read failed, using default")
		}
		return def
	}

	var value T
	if err := json.Unmarshal(raw, &value); err != nil {
		s.logger.WithError(err).WithField("key", key).Warn("corrupt payload, using default")
		return def
	}
	return value
}

// Write stores value under key and notifies subscribers. A backend failure is
// logged and otherwise ignored.
func (s *Store[T]) Write(ctx context.Context, key string, value T) {
	raw, err := json.Marshal(value)
	if err != nil {
		s.logger.WithError(err).WithField("key", key).Error("encode failed, keeping value in memory only")
	} else if err := s.kv.Set(ctx, key, raw); err != nil {
		s.logger.WithError(err).WithField("key", key).Warn("write failed, keeping value in memory only")
	}

	s.notify(key, value)
}

// Delete removes key from the backend. Like Write it never fails from the
// caller's point of view. Subscribers are not notified.
func (s *Store[T]) Delete(ctx context.Context, key string) {
	if err := s.kv.Delete(ctx, key); err != nil {
		s.logger.WithError(err).WithField("key", key).Warn("delete failed")
	}
}

// Subscribe registers fn to be called after every Write to key. The returned
// function removes the subscription.
func (s *Store[T]) Subscribe(key string, fn func(T)) func() {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := s.nextID
	s.nextID++
	if s.subscribers[key] == nil {
		s.subscribers[key] = make(map[int]func(T))
	}
	s.subscribers[key][id] = fn

	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.subscribers[key], id)
		if len(s.subscribers[key]) == 0 {
			delete(s.subscribers, key)
		}
	}
}

func (s *Store[T]) notify(key string, value T) {
	s.mu.Lock()
	fns := make([]func(T), 0, len(s.subscribers[key]))
	for _, fn := range s.subscribers[key] {
		fns = append(fns, fn)
	}
	s.mu.Unlock()

	for _, fn := range fns {
		fn(value)
	}
}
