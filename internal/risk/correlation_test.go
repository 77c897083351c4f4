package risk

import (
	"math"
	"testing"
)

func TestCorrelationMatrix_PerfectPositive(t *testing.T) {
	pairs := CorrelationMatrix(map[string][]float64{
		"a": {0.1, 0.2, 0.3, 0.4},
		"b": {0.2, 0.4, 0.6, 0.8},
	})
	if len(pairs) != 1 {
		t.Fatalf("pairs=%d want 1", len(pairs))
	}
	if math.Abs(pairs[0].Correlation-1) > 1e-9 {
		t.Fatalf("r=%v want 1", pairs[0].Correlation)
	}
	if pairs[0].Samples != 4 {
		t.Fatalf("samples=%d want 4", pairs[0].Samples)
	}
}

func TestCorrelationMatrix_TrailingWindowOverlap(t *testing.T) {
	// Series of different lengths compare only the trailing overlap.
	pairs := CorrelationMatrix(map[string][]float64{
		"a": {9.0, -9.0, 0.1, 0.2, 0.3},
		"b": {0.1, 0.2, 0.3},
	})
	if len(pairs) != 1 {
		t.Fatalf("pairs=%d want 1", len(pairs))
	}
	if pairs[0].Samples != 3 {
		t.Fatalf("samples=%d want 3", pairs[0].Samples)
	}
	if math.Abs(pairs[0].Correlation-1) > 1e-9 {
		t.Fatalf("r=%v want 1 over trailing window", pairs[0].Correlation)
	}
}

func TestCorrelationMatrix_InsufficientSamplesOmitted(t *testing.T) {
	pairs := CorrelationMatrix(map[string][]float64{
		"a": {0.1},
		"b": {0.2, 0.3},
	})
	if len(pairs) != 0 {
		t.Fatalf("pairs=%d want 0 (below minimum samples)", len(pairs))
	}
}

func TestCorrelationMatrix_ZeroVarianceOmitted(t *testing.T) {
	pairs := CorrelationMatrix(map[string][]float64{
		"a": {0.1, 0.1, 0.1},
		"b": {0.2, 0.3, 0.4},
	})
	if len(pairs) != 0 {
		t.Fatalf("pairs=%d want 0 (undefined coefficient)", len(pairs))
	}
}

func TestHighCorrelationPairs_SortedByMagnitude(t *testing.T) {
	matrix := []CorrelationPair{
		{WalletA: "a", WalletB: "b", Correlation: 0.75},
		{WalletA: "a", WalletB: "c", Correlation: -0.95},
		{WalletA: "b", WalletB: "c", Correlation: 0.5},
	}
	out := HighCorrelationPairs(matrix, 0.7)
	if len(out) != 2 {
		t.Fatalf("pairs=%d want 2", len(out))
	}
	if out[0].Correlation != -0.95 {
		t.Fatalf("first=%v want -0.95 (largest magnitude)", out[0].Correlation)
	}
	if out[1].Correlation != 0.75 {
		t.Fatalf("second=%v want 0.75", out[1].Correlation)
	}
}
