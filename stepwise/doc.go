// Package stepwise implements greedy forward/backward selection of the lags
// of a model equation.
//
// An Optimizer owns one lag set, bounded by a maximum lag, and delegates all
// fitting to a Fitter. Extend grows the set by the single lag that gives the
// lowest criterion alongside the current members. Refine rotates the existing
// members: it repeatedly drops the oldest lag and searches for the best
// replacement, which can also shrink the set.
//
// # Basic Usage
//
//	fitter := har.LagFitter{Series: returns, Params: params}
//	opt, err := stepwise.New(ctx, fitter, params.HoldBack, nil)
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	rounds, err := opt.Converge(ctx)
//	fmt.Printf("lags %v, BIC %.4f after %d rounds\n",
//	    opt.Lags(), opt.Score().Value(), rounds)
//
// Extend and Refine can also be driven by hand:
//
//	for opt.Score().Improved() {
//	    opt.Extend(ctx)
//	    opt.Refine(ctx)
//	}
//
// # Ties
//
// A candidate lag is adopted when its score is lower than or equal to the
// running best, so among equal scores the larger lag wins. Refine always
// removes the oldest lag first; for non-convex criteria the fixed point
// reached depends on that order.
//
// The search is local. It returns a fixed point of Extend and Refine, not the
// globally best lag set.
package stepwise
