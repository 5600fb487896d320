package engine

import (
	"context"
	"fmt"
	"strconv"
	"time"
)

// Records that the app enforced against a user (banned them) at the given time. This drives
// the re-ban policy on later evaluations.
func (e *Engine) RecordEnforcement(ctx context.Context, user string, at time.Time) error {
	return e.Store.Set(ctx, e.Keys.PrevBanned(user), strconv.FormatInt(at.UnixMilli(), 10), 0)
}

// Returns the zero time if the user was never enforced against.
func (e *Engine) PreviousEnforcement(ctx context.Context, user string) (time.Time, error) {
	raw, ok, err := e.Store.Get(ctx, e.Keys.PrevBanned(user))
	if err != nil || !ok {
		return time.Time{}, err
	}
	ms, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return time.Time{}, fmt.Errorf("corrupt enforcement record for %s: %w", user, err)
	}
	return time.UnixMilli(ms).UTC(), nil
}

func (e *Engine) ClearEnforcement(ctx context.Context, user string) error {
	return e.Store.Del(ctx, e.Keys.PrevBanned(user))
}
