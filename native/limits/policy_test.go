package limits

import (
	"math/big"
	"testing"
)

func TestReplenishAccruesLinearly(t *testing.T) {
	stored := big.NewInt(1_000)
	cap := big.NewInt(10_000)
	rate := big.NewInt(100)

	got := Replenish(stored, cap, rate, 10)
	if got.Cmp(big.NewInt(2_000)) != 0 {
		t.Fatalf("expected 2000, got %s", got)
	}
	if stored.Cmp(big.NewInt(1_000)) != 0 {
		t.Fatalf("input buffer mutated: %s", stored)
	}
}

func TestReplenishSaturatesAtCap(t *testing.T) {
	got := Replenish(big.NewInt(9_500), big.NewInt(10_000), big.NewInt(100), 3_600)
	if got.Cmp(big.NewInt(10_000)) != 0 {
		t.Fatalf("expected saturation at cap, got %s", got)
	}
}

func TestReplenishIgnoresNegativeElapsed(t *testing.T) {
	got := Replenish(big.NewInt(5_000), big.NewInt(10_000), big.NewInt(100), -30)
	if got.Cmp(big.NewInt(5_000)) != 0 {
		t.Fatalf("clock skew must not accrue, got %s", got)
	}
}

func TestReplenishZeroRate(t *testing.T) {
	got := Replenish(big.NewInt(5_000), big.NewInt(10_000), big.NewInt(0), 1_000)
	if got.Cmp(big.NewInt(5_000)) != 0 {
		t.Fatalf("zero rate must not accrue, got %s", got)
	}
}

func TestReplenishNilInputs(t *testing.T) {
	got := Replenish(nil, nil, nil, 100)
	if got.Sign() != 0 {
		t.Fatalf("expected zero, got %s", got)
	}
}

func TestClampToCap(t *testing.T) {
	cases := []struct {
		name   string
		buffer *big.Int
		cap    *big.Int
		want   *big.Int
	}{
		{"within", big.NewInt(500), big.NewInt(1_000), big.NewInt(500)},
		{"above", big.NewInt(1_500), big.NewInt(1_000), big.NewInt(1_000)},
		{"negative", big.NewInt(-10), big.NewInt(1_000), big.NewInt(0)},
		{"nil", nil, big.NewInt(1_000), big.NewInt(0)},
		{"exact", big.NewInt(1_000), big.NewInt(1_000), big.NewInt(1_000)},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := ClampToCap(tc.buffer, tc.cap)
			if got.Cmp(tc.want) != 0 {
				t.Fatalf("expected %s, got %s", tc.want, got)
			}
		})
	}
}
