// Package stores holds the resource stores: observable caches of the
// user collection and of backend health, kept in sync with the server by
// applying each write's canonical response locally.
package stores

import (
	"context"
	"sync"
)

// lifecycle is the teardown and staleness bookkeeping shared by the stores.
type lifecycle struct {
	ctx    context.Context
	cancel context.CancelFunc
	epoch  uint64
}

func newLifecycle() lifecycle {
	ctx, cancel := context.WithCancel(context.Background())
	return lifecycle{ctx: ctx, cancel: cancel}
}

// opContext derives a request context that also ends when the store closes.
func (l *lifecycle) opContext(ctx context.Context) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(ctx)
	stop := context.AfterFunc(l.ctx, cancel)
	return ctx, func() {
		stop()
		cancel()
	}
}

// currentLocked reports whether a result from epoch may be applied. The
// caller holds the store's lock.
func (l *lifecycle) currentLocked(epoch uint64) bool {
	return l.epoch == epoch && l.ctx.Err() == nil
}

// guarded pairs a mutex with a lifecycle.
type guarded struct {
	mu sync.Mutex
	lifecycle
}
