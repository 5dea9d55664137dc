package inversion

import (
	"context"
	"github.com/kpaschen/crosswell/lib/datatypes"
	"github.com/kpaschen/crosswell/lib/svd"
	"golang.org/x/sync/errgroup"
	"log"
)

// Run inverts every rank in ranks and returns the results in the same
// order. By default the first failing rank fails the run and no results
// are returned. With SkipInvalidRanks, ranks that fail with an input or
// numerical error are logged and left out.
//
// With Parallelism > 1 ranks are inverted concurrently. The results and
// their order are the same as for a sequential run.
func (inv *Inverter) Run(ctx context.Context, ranks []int) ([]datatypes.RankResult, error) {
	results := make([]*datatypes.RankResult, len(ranks))
	errs := make([]error, len(ranks))

	if inv.settings.Parallelism <= 1 {
		for i, k := range ranks {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			results[i], errs[i] = inv.InvertRank(k)
			if errs[i] != nil && !inv.settings.SkipInvalidRanks {
				return nil, errs[i]
			}
		}
	} else {
		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(inv.settings.Parallelism)
		for i, k := range ranks {
			i, k := i, k
			g.Go(func() error {
				if err := gctx.Err(); err != nil {
					errs[i] = err
					return nil
				}
				results[i], errs[i] = inv.InvertRank(k)
				if errs[i] != nil && !inv.settings.SkipInvalidRanks {
					return errs[i]
				}
				return nil
			})
		}
		_ = g.Wait()
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if !inv.settings.SkipInvalidRanks {
			// Report the first failure in rank order, not the first to finish.
			// Cancelled siblings carry context errors, so skip those.
			for _, err := range errs {
				if err != nil && svd.IsInputError(err) {
					return nil, err
				}
			}
			for _, err := range errs {
				if err != nil {
					return nil, err
				}
			}
		}
	}

	ret := make([]datatypes.RankResult, 0, len(ranks))
	for i, r := range results {
		if errs[i] != nil {
			if !svd.IsInputError(errs[i]) {
				return nil, errs[i]
			}
			log.Printf("warning: skipping rank %d: %v\n", ranks[i], errs[i])
			continue
		}
		ret = append(ret, *r)
	}
	log.Printf("inverted %d of %d ranks\n", len(ret), len(ranks))
	return ret, nil
}
