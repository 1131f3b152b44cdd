package session

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/hrygo/servicefunnel/plugin/ai/cache"
	"github.com/hrygo/servicefunnel/store"
)

const (
	cachePrefix = "dialog:"
	cacheTTL    = 30 * time.Minute
)

// dialogStore implements DialogStore over the dialog_memory table with a cache in front.
type dialogStore struct {
	store *store.Store
	cache cache.CacheService
}

// NewDialogStore creates a store-backed dialog store. cache may be nil.
func NewDialogStore(s *store.Store, cache cache.CacheService) DialogStore {
	return &dialogStore{
		store: s,
		cache: cache,
	}
}

// Load loads the dialog.
func (s *dialogStore) Load(ctx context.Context, dialogID string) (*Dialog, error) {
	if cached := s.loadFromCache(ctx, dialogID); cached != nil {
		return cached, nil
	}

	row, err := s.store.GetDialogMemory(ctx, dialogID)
	if err != nil {
		return nil, fmt.Errorf("failed to load dialog: %w", err)
	}
	if row == nil {
		return NewDialog(dialogID), nil
	}

	var dialog Dialog
	if err := json.Unmarshal([]byte(row.Payload), &dialog); err != nil {
		// A broken payload restarts the dialog rather than blocking it forever.
		slog.Warn("failed to unmarshal dialog payload", "dialog_id", dialogID, "error", err)
		return NewDialog(dialogID), nil
	}
	dialog.ID = dialogID
	dialog.CreatedAt = row.CreatedTs
	dialog.UpdatedAt = row.UpdatedTs

	s.updateCache(ctx, &dialog)
	return &dialog, nil
}

// Save upserts the dialog.
func (s *dialogStore) Save(ctx context.Context, dialog *Dialog) error {
	now := time.Now().Unix()
	if dialog.CreatedAt == 0 {
		dialog.CreatedAt = now
	}
	dialog.UpdatedAt = now

	data, err := json.Marshal(dialog)
	if err != nil {
		return fmt.Errorf("failed to marshal dialog: %w", err)
	}

	if _, err := s.store.UpsertDialogMemory(ctx, &store.DialogMemory{
		DialogID:  dialog.ID,
		Payload:   string(data),
		CreatedTs: dialog.CreatedAt,
		UpdatedTs: dialog.UpdatedAt,
	}); err != nil {
		s.invalidateCache(ctx, dialog.ID)
		return fmt.Errorf("failed to save dialog: %w", err)
	}

	s.updateCache(ctx, dialog)
	return nil
}

// Delete deletes a dialog.
func (s *dialogStore) Delete(ctx context.Context, dialogID string) error {
	// Clear cache first so a failed delete never serves the old state.
	s.invalidateCache(ctx, dialogID)

	if _, err := s.store.DeleteDialogMemory(ctx, &store.DeleteDialogMemory{DialogID: &dialogID}); err != nil {
		return fmt.Errorf("failed to delete dialog: %w", err)
	}
	return nil
}

// CleanupExpired removes dialogs idle for longer than retention.
func (s *dialogStore) CleanupExpired(ctx context.Context, retention time.Duration) (int64, error) {
	cutoff := time.Now().Add(-retention).Unix()

	deleted, err := s.store.DeleteDialogMemory(ctx, &store.DeleteDialogMemory{UpdatedBefore: &cutoff})
	if err != nil {
		return 0, fmt.Errorf("failed to cleanup expired dialogs: %w", err)
	}
	if deleted > 0 && s.cache != nil {
		if err := s.cache.Invalidate(ctx, cachePrefix+"*"); err != nil {
			slog.Warn("failed to invalidate dialog cache", "error", err)
		}
	}
	return deleted, nil
}

// updateCache stores the dialog in cache.
func (s *dialogStore) updateCache(ctx context.Context, dialog *Dialog) {
	if s.cache == nil {
		return
	}

	data, err := json.Marshal(dialog)
	if err != nil {
		slog.Warn("failed to marshal dialog for cache", "error", err)
		return
	}

	key := cachePrefix + dialog.ID
	if err := s.cache.Set(ctx, key, data, cacheTTL); err != nil {
		slog.Warn("failed to update cache", "key", key, "error", err)
	}
}

// loadFromCache retrieves the dialog from cache.
func (s *dialogStore) loadFromCache(ctx context.Context, dialogID string) *Dialog {
	if s.cache == nil {
		return nil
	}

	key := cachePrefix + dialogID
	data, ok := s.cache.Get(ctx, key)
	if !ok {
		return nil
	}

	var dialog Dialog
	if err := json.Unmarshal(data, &dialog); err != nil {
		slog.Warn("failed to unmarshal cached dialog", "key", key, "error", err)
		return nil
	}
	return &dialog
}

// invalidateCache removes the dialog from cache.
func (s *dialogStore) invalidateCache(ctx context.Context, dialogID string) {
	if s.cache == nil {
		return
	}

	key := cachePrefix + dialogID
	if err := s.cache.Invalidate(ctx, key); err != nil {
		slog.Warn("failed to invalidate cache", "key", key, "error", err)
	}
}

var _ DialogStore = (*dialogStore)(nil)
