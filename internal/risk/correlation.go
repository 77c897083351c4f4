package risk

import (
	"math"
	"sort"
)

// MinCorrelationSamples is the smallest overlapping window a pair needs
// before its correlation is reported at all.
const MinCorrelationSamples = 2

// CorrelationPair is the Pearson correlation between two wallets' return
// series over their overlapping trailing window.
type CorrelationPair struct {
	WalletA     string  `json:"walletA"`
	WalletB     string  `json:"walletB"`
	Correlation float64 `json:"correlation"`
	Samples     int     `json:"samples"`
}

// CorrelationMatrix computes pairwise Pearson correlation between each
// wallet's return series. Only the overlapping trailing window common to
// both series is compared; pairs with fewer than MinCorrelationSamples
// overlapping points are omitted rather than reported as 0.
func CorrelationMatrix(walletReturns map[string][]float64) []CorrelationPair {
	addrs := make([]string, 0, len(walletReturns))
	for addr := range walletReturns {
		addrs = append(addrs, addr)
	}
	sort.Strings(addrs)

	var pairs []CorrelationPair
	for i := 0; i < len(addrs); i++ {
		for j := i + 1; j < len(addrs); j++ {
			a, b := walletReturns[addrs[i]], walletReturns[addrs[j]]
			n := len(a)
			if len(b) < n {
				n = len(b)
			}
			if n < MinCorrelationSamples {
				continue
			}
			r, ok := pearson(a[len(a)-n:], b[len(b)-n:])
			if !ok {
				continue
			}
			pairs = append(pairs, CorrelationPair{
				WalletA:     addrs[i],
				WalletB:     addrs[j],
				Correlation: r,
				Samples:     n,
			})
		}
	}
	return pairs
}

// HighCorrelationPairs filters the matrix down to pairs whose correlation
// magnitude exceeds threshold, sorted by descending magnitude.
func HighCorrelationPairs(pairs []CorrelationPair, threshold float64) []CorrelationPair {
	var out []CorrelationPair
	for _, p := range pairs {
		if math.Abs(p.Correlation) > threshold {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return math.Abs(out[i].Correlation) > math.Abs(out[j].Correlation)
	})
	return out
}

// pearson returns false when either series has zero variance, since the
// coefficient is undefined there.
func pearson(a, b []float64) (float64, bool) {
	n := float64(len(a))
	meanA, meanB := meanOf(a), meanOf(b)

	var cov, varA, varB float64
	for i := range a {
		da, db := a[i]-meanA, b[i]-meanB
		cov += da * db
		varA += da * da
		varB += db * db
	}
	if varA == 0 || varB == 0 || n < MinCorrelationSamples {
		return 0, false
	}
	return cov / math.Sqrt(varA*varB), true
}
