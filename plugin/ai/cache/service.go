package cache

import (
	"context"
	"sync"
	"time"
)

// ServiceConfig sizes the byte cache that fronts the dialog store.
type ServiceConfig struct {
	Capacity        int
	DefaultTTL      time.Duration
	CleanupInterval time.Duration
}

// DefaultServiceConfig keeps up to 10k dialogs for half an hour.
func DefaultServiceConfig() ServiceConfig {
	return ServiceConfig{
		Capacity:        10000,
		DefaultTTL:      30 * time.Minute,
		CleanupInterval: time.Minute,
	}
}

// Service is a CacheService over an LRUCache of byte slices. Expired entries
// are swept in the background until Close.
type Service struct {
	lru *LRUCache[[]byte]

	stop      chan struct{}
	stopped   sync.WaitGroup
	closeOnce sync.Once
}

func NewService(cfg ServiceConfig) *Service {
	if cfg.CleanupInterval <= 0 {
		cfg.CleanupInterval = time.Minute
	}

	s := &Service{
		lru:  NewLRUCache[[]byte](cfg.Capacity, cfg.DefaultTTL),
		stop: make(chan struct{}),
	}
	s.stopped.Add(1)
	go s.sweep(cfg.CleanupInterval)
	return s
}

// Close stops the sweeper. It is safe to call more than once.
func (s *Service) Close() {
	s.closeOnce.Do(func() { close(s.stop) })
	s.stopped.Wait()
}

func (s *Service) Get(_ context.Context, key string) ([]byte, bool) {
	return s.lru.Get(key)
}

func (s *Service) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	s.lru.Set(key, value, ttl)
	return nil
}

func (s *Service) Invalidate(_ context.Context, pattern string) error {
	s.lru.Invalidate(pattern)
	return nil
}

// Size counts live and not yet swept entries.
func (s *Service) Size() int {
	return s.lru.Size()
}

func (s *Service) sweep(interval time.Duration) {
	defer s.stopped.Done()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-s.stop:
			return
		case <-ticker.C:
			s.lru.CleanupExpired()
		}
	}
}

var _ CacheService = (*Service)(nil)
