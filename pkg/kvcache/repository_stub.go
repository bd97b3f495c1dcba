package kvcache

import (
	"context"
	"sync"
)

type kvKey struct {
	userId int64
	key    string
}

type RepositoryStub struct {
	mu    sync.RWMutex
	items map[kvKey]string
}

func NewRepositoryStub() *RepositoryStub {
	return &RepositoryStub{items: make(map[kvKey]string)}
}

func (r *RepositoryStub) Put(ctx context.Context, userId int64, key string, value string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.items[kvKey{userId, key}] = value
	return nil
}

func (r *RepositoryStub) Get(ctx context.Context, userId int64, key string) (string, bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	value, ok := r.items[kvKey{userId, key}]
	return value, ok, nil
}

func (r *RepositoryStub) Delete(ctx context.Context, userId int64, key string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.items, kvKey{userId, key})
	return nil
}

func (r *RepositoryStub) Clear(ctx context.Context, userId int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for k := range r.items {
		if k.userId == userId {
			delete(r.items, k)
		}
	}
	return nil
}
