package domain

import "errors"

const (
	// SecondsPerYear is the length of one membership period. It is a fixed
	// leap-year-inclusive approximation (366 days), not calendar exact.
	SecondsPerYear uint64 = 31_622_400

	// MaxYears bounds a single prepayment to this many periods.
	MaxYears uint64 = 100

	// MemberAdditionFee is charged to the owner when a member is added.
	MemberAdditionFee uint64 = 1
)

var (
	// ErrTooManyTokens is returned when a payment exceeds AnnualExpenses * MaxYears.
	ErrTooManyTokens = errors.New("payment exceeds maximum prepayment")

	// ErrZeroRate is returned when a duration is requested for a club whose rate is zero.
	ErrZeroRate = errors.New("annual expenses rate is zero")

	// ErrZeroAmount is returned for a payment of nothing.
	ErrZeroAmount = errors.New("payment amount is zero")
)

// MaxPayment is the largest amount accepted in a single payment at the given rate.
func MaxPayment(rate uint32) uint64 {
	return uint64(rate) * MaxYears
}

// CheckPayment validates a payment amount against the club's rate.
func CheckPayment(rate uint32, amount uint32) error {
	if amount == 0 {
		return ErrZeroAmount
	}
	// A zero rate bounds every non-zero amount, so CheckPayment never admits rate 0.
	if uint64(amount) > MaxPayment(rate) {
		return ErrTooManyTokens
	}
	return nil
}

// AddedSeconds is the membership duration bought by amount at rate:
// floor(amount / rate) whole periods.
func AddedSeconds(rate uint32, amount uint32) (uint64, error) {
	if rate == 0 {
		return 0, ErrZeroRate
	}
	periods := uint64(amount) / uint64(rate)
	// periods <= 2^32 and SecondsPerYear < 2^25, so the product fits in uint64.
	return periods * SecondsPerYear, nil
}

// ExtendPaidThrough validates the payment and returns the new paid-through moment.
func ExtendPaidThrough(current Moment, rate uint32, amount uint32) (Moment, error) {
	if err := CheckPayment(rate, amount); err != nil {
		return current, err
	}
	added, err := AddedSeconds(rate, amount)
	if err != nil {
		return current, err
	}
	return current.Add(added)
}
