// Package bestof selects the best of several independently fittable models.
//
// Every candidate is fitted on its own goroutine from a bounded pool and the
// one with the lowest criterion wins. Candidates are identified by name.
//
// # Basic Usage
//
//	sel := bestof.New(bestof.WithLeverage(true))
//	best, err := sel.Select(ctx, harModel, harchModel, harchLeveraged)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Println("selected", best.Name())
//
// # Leverage
//
// With WithLeverage(true), candidates implementing Leverager get AddLeverage
// called before they are fitted and the winner gets it called a second time
// before it is returned. The capability is detected when the candidate is
// registered.
//
// # Failures
//
// By default a candidate whose fit fails is excluded from the minimum and the
// failure shows up in the Report. Race returns ErrAllFailed if nothing is
// left. WithFailFast(true) cancels the remaining fits on the first failure
// and returns it as a *CandidateError. Cancelling the context aborts the race
// in either mode: Race returns ctx.Err() rather than a winner picked from the
// fits that happened to finish.
//
// # Ties
//
// Equal minimal criteria go to the candidate registered first. Completion
// order never influences the winner.
package bestof
