package http

import (
	"context"

	"golang.org/x/sync/singleflight"
)

// buildGroup collapses concurrent builds of the same report.
type buildGroup struct {
	group singleflight.Group
}

// do runs fn once per key among concurrent callers. A caller whose context
// ends stops waiting; the shared build keeps running for the others.
func (g *buildGroup) do(ctx context.Context, key string, fn func(context.Context) (any, error)) (any, error, bool) {
	resultChan := g.group.DoChan(key, func() (any, error) {
		return fn(context.WithoutCancel(ctx))
	})
	select {
	case <-ctx.Done():
		return nil, ctx.Err(), false
	case res := <-resultChan:
		return res.Val, res.Err, res.Shared
	}
}
