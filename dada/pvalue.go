package dada

import "math"

// logPoisson returns log P(X = k) for X ~ Poisson(e).
func logPoisson(k int, e float64) float64 {
	lg, _ := math.Lgamma(float64(k + 1))
	return -e + float64(k)*math.Log(e) - lg
}

// logPValue returns the log of P(X >= a) for X ~ Poisson(e). If conditional
// is set, the probability is conditioned on X >= 1, since a unique that was
// observed at all has abundance at least one.
func logPValue(a int, e float64, conditional bool) float64 {
	if a <= 0 {
		return 0
	}
	if e <= 0 {
		return math.Inf(-1)
	}
	var logUpper float64
	if float64(a) <= e {
		// The upper tail is large; sum the lower tail instead.
		lower := 0.0
		for k := 0; k < a; k++ {
			lower += math.Exp(logPoisson(k, e))
		}
		if lower >= 1 {
			return math.Inf(-1)
		}
		logUpper = math.Log1p(-lower)
	} else {
		// Terms decrease from k = a onwards. Sum them relative to the first.
		sum, term := 0.0, 1.0
		for k := a; k < a+100000; k++ {
			sum += term
			term *= e / float64(k+1)
			if term < 1e-16*sum {
				break
			}
		}
		logUpper = logPoisson(a, e) + math.Log(sum)
	}
	if conditional {
		logUpper -= math.Log(-math.Expm1(-e))
	}
	if logUpper > 0 {
		logUpper = 0
	}
	return logUpper
}
