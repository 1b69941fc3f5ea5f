package repository

import (
	"context"
	"errors"
	"fmt"

	"TradeGate/internal/domain/models"
	"TradeGate/internal/domain/repository"
	"TradeGate/pkg/cache"
)

const snapshotKeyPrefix = "snapshot"

// CacheSnapshotStore keeps policy snapshots in a cache.Service
// (in-process memory or Redis behind a memory layer). Keys never expire.
type CacheSnapshotStore struct {
	c cache.Service
}

func NewCacheSnapshotStore(c cache.Service) repository.SnapshotStore {
	return &CacheSnapshotStore{c: c}
}

func (s *CacheSnapshotStore) Save(ctx context.Context, snap *models.PolicySnapshot) error {
	if snap == nil || snap.ID == "" {
		return fmt.Errorf("save snapshot: missing id")
	}
	if err := s.c.Set(ctx, cache.GenerateKey(snapshotKeyPrefix, snap.ID), snap, 0); err != nil {
		return fmt.Errorf("save snapshot %s: %w", snap.ID, err)
	}
	return nil
}

func (s *CacheSnapshotStore) Load(ctx context.Context, id string) (*models.PolicySnapshot, error) {
	var snap models.PolicySnapshot
	if err := s.c.Get(ctx, cache.GenerateKey(snapshotKeyPrefix, id), &snap); err != nil {
		if errors.Is(err, cache.ErrCacheMiss) {
			return nil, fmt.Errorf("load snapshot %s: %w", id, models.ErrSnapshotNotFound)
		}
		return nil, fmt.Errorf("load snapshot %s: %w", id, err)
	}
	return &snap, nil
}

func (s *CacheSnapshotStore) Delete(ctx context.Context, id string) error {
	if err := s.c.Delete(ctx, cache.GenerateKey(snapshotKeyPrefix, id)); err != nil {
		return fmt.Errorf("delete snapshot %s: %w", id, err)
	}
	return nil
}
