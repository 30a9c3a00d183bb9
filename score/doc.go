// Package score provides Tracker, a lower-is-better criterion value that can
// tell whether its last change was an improvement.
//
// A fresh tracker always reports an improvement, which lets search loops run
// at least once:
//
//	bic := score.New(first)
//	for bic.Improved() {
//	    bic.ChangesTo(nextPass(bic.Value()))
//	}
package score
