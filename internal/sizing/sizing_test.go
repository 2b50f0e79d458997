package sizing

import (
	"errors"
	"testing"
)

func TestSizeTrade_FixedFraction(t *testing.T) {
	a := NewAllocator(0.1, 6)

	got, err := a.SizeTrade(1000)
	if err != nil {
		t.Fatal(err)
	}
	if got != 100 {
		t.Fatalf("expected 100, got %.6f", got)
	}
}

func TestSizeTrade_FloorsToSmallestUnit(t *testing.T) {
	a := NewAllocator(0.1, 2)

	// 123.4567 * 0.1 = 12.34567, floored to cents.
	got, err := a.SizeTrade(123.4567)
	if err != nil {
		t.Fatal(err)
	}
	if got != 12.34 {
		t.Fatalf("expected 12.34, got %.6f", got)
	}
}

func TestSizeTrade_ZeroBalance(t *testing.T) {
	a := NewAllocator(0.1, 6)
	if _, err := a.SizeTrade(0); !errors.Is(err, ErrInsufficientBalance) {
		t.Fatalf("expected ErrInsufficientBalance, got %v", err)
	}
}

func TestSizeTrade_DustBalance(t *testing.T) {
	a := NewAllocator(0.1, 2)
	// 0.05 * 0.1 = 0.005, below one cent.
	if _, err := a.SizeTrade(0.05); !errors.Is(err, ErrInsufficientBalance) {
		t.Fatalf("expected ErrInsufficientBalance for dust, got %v", err)
	}
}

func TestMinAcceptable(t *testing.T) {
	g := NewGuard(0.002, 6)

	got, err := g.MinAcceptable(100)
	if err != nil {
		t.Fatal(err)
	}
	// 100 * (1 - 0.002) = 99.8 exactly, despite float representation.
	if got != 99.8 {
		t.Fatalf("expected 99.8, got %.10f", got)
	}
}

func TestMinAcceptable_AlwaysBelowExpected(t *testing.T) {
	g := NewGuard(0.002, 6)
	for _, expected := range []float64{0.002, 1, 99.999999, 1234.56, 1e6} {
		got, err := g.MinAcceptable(expected)
		if err != nil {
			t.Fatal(err)
		}
		if got > expected {
			t.Fatalf("min %.8f exceeds expected %.8f", got, expected)
		}
	}
}

func TestMinAcceptable_InvalidAmount(t *testing.T) {
	g := NewGuard(0.002, 6)
	if _, err := g.MinAcceptable(0); !errors.Is(err, ErrInvalidAmount) {
		t.Fatalf("expected ErrInvalidAmount, got %v", err)
	}
	if _, err := g.MinAcceptable(-5); !errors.Is(err, ErrInvalidAmount) {
		t.Fatalf("expected ErrInvalidAmount, got %v", err)
	}
}

func TestFloorToUnit_AbsorbsRepresentationError(t *testing.T) {
	// 100 * 0.998 lands a few ulps below 99.8; flooring must not drop a unit.
	if got := floorToUnit(100*0.998, 1); got != 99.8 {
		t.Fatalf("expected 99.8, got %.12f", got)
	}
	// A genuinely lower value still floors down.
	if got := floorToUnit(99.74, 1); got != 99.7 {
		t.Fatalf("expected 99.7, got %.12f", got)
	}
}
