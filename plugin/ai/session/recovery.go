package session

import (
	"context"
	"log/slog"

	"github.com/hrygo/servicefunnel/plugin/ai/memory"
	"github.com/hrygo/servicefunnel/plugin/ai/timeout"
)

// Recover loads the dialog for a turn. When the caller tracks history itself,
// its history replaces the stored one. A store failure is not fatal: the turn
// proceeds on a fresh dialog seeded with the caller's history.
func Recover(ctx context.Context, store DialogStore, dialogID string, callerHistory memory.History) (*Dialog, bool) {
	ctx, cancel := context.WithTimeout(ctx, timeout.StoreTimeout)
	defer cancel()

	dialog, err := store.Load(ctx, dialogID)
	if err != nil {
		slog.Warn("dialog load failed, continuing with caller history",
			"dialog_id", dialogID, "error", err)
		dialog = NewDialog(dialogID)
		dialog.History = trim(callerHistory)
		return dialog, false
	}

	if len(callerHistory) > 0 {
		dialog.History = trim(callerHistory)
	}
	return dialog, true
}

// Commit saves the dialog within the store timeout. Failures are logged and returned.
func Commit(ctx context.Context, store DialogStore, dialog *Dialog) error {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), timeout.StoreTimeout)
	defer cancel()

	if err := store.Save(ctx, dialog); err != nil {
		slog.Error("dialog save failed", "dialog_id", dialog.ID, "error", err)
		return err
	}
	return nil
}

func trim(h memory.History) memory.History {
	if len(h) > MaxHistoryEntries {
		h = h[len(h)-MaxHistoryEntries:]
	}
	out := make(memory.History, len(h))
	copy(out, h)
	return out
}
