package core

import (
	"errors"
	"testing"
)

func TestNormalizeSplitsRemainderGoesToOwner(t *testing.T) {
	total := Money{Cents: 10000}
	in := []Split{
		{Name: "Alice", Amount: Money{Cents: 4000}},
		{Name: "Bob", Amount: Money{Cents: 3000}},
	}
	out, err := NormalizeSplits(total, in)
	if err != nil {
		t.Fatalf("normalize: %v", err)
	}
	if len(out) != 3 {
		t.Fatalf("expected 3 splits, got %d", len(out))
	}
	owner := out[2]
	if owner.Name != OwnerSplitName || owner.Amount.Cents != 3000 || !owner.Paid {
		t.Fatalf("owner split = %+v, want {You 3000 paid}", owner)
	}
	if SumSplits(out) != total.Cents {
		t.Fatalf("splits sum %d != total %d", SumSplits(out), total.Cents)
	}
}

func TestNormalizeSplitsExactSum(t *testing.T) {
	total := Money{Cents: 5000}
	in := []Split{
		{Name: "Alice", Amount: Money{Cents: 2500}},
		{Name: "Bob", Amount: Money{Cents: 2500}},
	}
	out, err := NormalizeSplits(total, in)
	if err != nil {
		t.Fatalf("normalize: %v", err)
	}
	if len(out) != 2 {
		t.Fatalf("expected no implicit split, got %d entries", len(out))
	}
}

func TestNormalizeSplitsWithinTolerance(t *testing.T) {
	// One cent under the total: treated as covering it, no owner split.
	total := Money{Cents: 5000}
	in := []Split{{Name: "Alice", Amount: Money{Cents: 4999}}}
	out, err := NormalizeSplits(total, in)
	if err != nil {
		t.Fatalf("normalize: %v", err)
	}
	if len(out) != 1 {
		t.Fatalf("expected 1 split, got %d", len(out))
	}
}

func TestNormalizeSplitsExceedTotal(t *testing.T) {
	total := Money{Cents: 5000}
	in := []Split{
		{Name: "Alice", Amount: Money{Cents: 3000}},
		{Name: "Bob", Amount: Money{Cents: 2500}},
	}
	if _, err := NormalizeSplits(total, in); !errors.Is(err, ErrSplitsExceed) {
		t.Fatalf("expected ErrSplitsExceed, got %v", err)
	}
}

func TestNormalizeSplitsDropsBlanksAndRejectsNonPositive(t *testing.T) {
	total := Money{Cents: 1000}
	out, err := NormalizeSplits(total, []Split{
		{Name: "   ", Amount: Money{Cents: 400}},
		{Name: "", Amount: Money{Cents: 100}},
	})
	if err != nil || out != nil {
		t.Fatalf("blank-only input should yield nil, got %v (err=%v)", out, err)
	}

	_, err = NormalizeSplits(total, []Split{{Name: "Alice", Amount: Money{Cents: 0}}})
	if !errors.Is(err, ErrValidation) {
		t.Fatalf("expected validation error for zero amount, got %v", err)
	}
}

func TestNormalizeSplitsEmptyInput(t *testing.T) {
	out, err := NormalizeSplits(Money{Cents: 1000}, nil)
	if err != nil || out != nil {
		t.Fatalf("empty input should yield nil, got %v (err=%v)", out, err)
	}
}
