package experiment

import (
	"context"
	"runtime"

	"golang.org/x/sync/errgroup"

	"github.com/san-kum/batsim/internal/config"
)

// Sweep runs each config as its own experiment, at most GOMAXPROCS at a
// time. Results keep the order of cfgs. Options are applied to every
// experiment, so observers passed here must be safe for concurrent use.
// The first failing run cancels the rest.
func Sweep(ctx context.Context, cfgs []*config.Config, opts ...Option) ([]*Result, error) {
	results := make([]*Result, len(cfgs))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(runtime.GOMAXPROCS(0))

	for i, cfg := range cfgs {
		i, cfg := i, cfg
		g.Go(func() error {
			exp, err := New(cfg, opts...)
			if err != nil {
				return err
			}
			res, err := exp.Run(gctx)
			results[i] = res
			return err
		})
	}

	if err := g.Wait(); err != nil {
		return results, err
	}
	return results, nil
}
