package core

import "strings"

// SplitTolerance is how far (in cents) the sum of provided splits may
// deviate from the transaction total and still be taken as covering
// it. One cent absorbs decimal rounding from clients.
const SplitTolerance = 1

// OwnerSplitName labels the implicit split that covers whatever part
// of a transaction is not claimed by named participants.
const OwnerSplitName = "You"

// NormalizeSplits prepares the split set persisted for a transaction
// of the given total amount:
//
//   - entries with a blank name are dropped;
//   - every remaining amount must be strictly positive;
//   - if the sum exceeds the total by more than SplitTolerance the
//     input is rejected;
//   - if the sum falls short of the total by more than SplitTolerance
//     the remainder is appended as an already-paid split named
//     OwnerSplitName, so the sum always reconciles with the total.
//
// An empty input yields an empty result: transactions without splits
// store none.
func NormalizeSplits(total Money, inputs []Split) ([]Split, error) {
	splits := make([]Split, 0, len(inputs))
	var sum int64
	for _, in := range inputs {
		in.Name = strings.TrimSpace(in.Name)
		if in.Name == "" {
			continue
		}
		if err := in.Amount.Validate(); err != nil {
			return nil, Validationf("split %q: amount must be greater than 0", in.Name)
		}
		sum += in.Amount.Cents
		splits = append(splits, in)
	}
	if len(splits) == 0 {
		return nil, nil
	}
	if sum > total.Cents+SplitTolerance {
		return nil, ErrSplitsExceed
	}
	if remainder := total.Cents - sum; remainder > SplitTolerance {
		splits = append(splits, Split{
			Name:   OwnerSplitName,
			Amount: Money{Cents: remainder},
			Paid:   true,
		})
	}
	return splits, nil
}

// SumSplits returns the total cents claimed by the given splits.
func SumSplits(splits []Split) int64 {
	var sum int64
	for _, s := range splits {
		sum += s.Amount.Cents
	}
	return sum
}
