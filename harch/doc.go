/*
Package harch implements HARCH volatility models on top of a fitted HAR mean
model.

The conditional variance is a sum of average squared residuals over several
horizons, optionally with a leverage term for negative shocks:

	σ²[t] = ω + Σ α_i · mean(e²[t-ℓ_i..t-1]) + γ · e²[t-1]·1[e[t-1] < 0]

The mean parameters are held fixed and ω, α, γ are estimated by maximum
likelihood with Nelder-Mead on log-transformed parameters. The error
distribution follows the mean model's Params.Nu. The likelihood covers the
same observations as the mean model, so a HARCH model and its mean model can
be compared by criterion.

# Basic Usage

	mean := har.New(series, har.Params{HoldBack: 22}, 1, 5, 22)
	vol, err := harch.New(mean, 1, 5, 22)
	if err != nil {
	    log.Fatal(err)
	}
	vol.AddLeverage()
	if err := vol.Fit(ctx); err != nil {
	    log.Fatal(err)
	}
	fmt.Printf("%s BIC=%.4f\n", vol.Name(), vol.BIC)

Models satisfy bestof.Model and bestof.Leverager, so a HAR model and HARCH
variants can be raced against each other.
*/
package harch
