package page

import (
	"context"

	"chatpilot/internal/domain"
)

// GuardStore is session-scoped storage that survives reloads of the tab but
// not the tab itself. The browser adapter backs it with sessionStorage.
type GuardStore interface {
	GetCount(ctx context.Context, key string) (int, error)
	SetCount(ctx context.Context, key string, n int) error
	Clear(ctx context.Context, key string) error
}

// ReloadGuard bounds consecutive recovery reloads of an error page. Each
// strike either permits one more reload or, once MaxReloads reloads have
// happened, clears the guard and asks for the offline view instead.
type ReloadGuard struct {
	Store      GuardStore
	Key        string
	MaxReloads int
}

// Strike records an error-page observation. It returns true when the caller
// should reload and false when it should navigate offline.
func (g ReloadGuard) Strike(ctx context.Context) (reload bool, err error) {
	n, err := g.Store.GetCount(ctx, g.Key)
	if err != nil {
		return false, domain.WrapOp("ReloadGuard.Strike", err)
	}
	if n < g.MaxReloads {
		if err := g.Store.SetCount(ctx, g.Key, n+1); err != nil {
			return false, domain.WrapOp("ReloadGuard.Strike", err)
		}
		return true, nil
	}
	if err := g.Store.Clear(ctx, g.Key); err != nil {
		return false, domain.WrapOp("ReloadGuard.Strike", err)
	}
	return false, nil
}

// Reset clears the guard after a healthy observation.
func (g ReloadGuard) Reset(ctx context.Context) error {
	return domain.WrapOp("ReloadGuard.Reset", g.Store.Clear(ctx, g.Key))
}
