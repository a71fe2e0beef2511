package repository

import (
	"context"
	"fmt"
	"sync"
)

type (
	// KeyValue is an ordered, string-keyed durable store.
	KeyValue interface {
		Get(ctx context.Context, key string) (string, bool, error)
		Set(ctx context.Context, key, value string) error
	}

	InMemoryDB struct {
		mu    sync.RWMutex
		table map[string]string
	}
)

func NewInMemoryDB() *InMemoryDB {
	return &InMemoryDB{table: make(map[string]string)}
}

func (i *InMemoryDB) Get(_ context.Context, key string) (string, bool, error) {
	i.mu.RLock()
	defer i.mu.RUnlock()
	if i.table == nil {
		return "", false, fmt.Errorf("can not read %s, connection is off", key)
	}
	value, ok := i.table[key]
	return value, ok, nil
}

func (i *InMemoryDB) Set(_ context.Context, key, value string) error {
	i.mu.Lock()
	defer i.mu.Unlock()
	if i.table == nil {
		return fmt.Errorf("can not write %s, connection is off", key)
	}
	i.table[key] = value
	return nil
}
