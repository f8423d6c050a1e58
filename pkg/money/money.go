package money

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/angelmondragon/orderdesk/pkg/enums"
	pkgerrors "github.com/angelmondragon/orderdesk/pkg/errors"
)

// Amount is a non-negative number of minor currency units (cents). All totals
// arithmetic happens on integers; floating point never touches money.
type Amount int64

// Cents returns the raw minor-unit value.
func (a Amount) Cents() int64 {
	return int64(a)
}

// IsNegative reports whether the amount violates the non-negativity invariant.
func (a Amount) IsNegative() bool {
	return a < 0
}

// Add returns a + b.
func (a Amount) Add(b Amount) Amount {
	return a + b
}

// MulQty returns the line total for a unit price applied qty times.
func (a Amount) MulQty(qty int64) Amount {
	return Amount(int64(a) * qty)
}

// Decimal returns the major-unit representation (e.g. 1050 -> 10.50). Used
// for display and reporting only, never for totals arithmetic.
func (a Amount) Decimal() decimal.Decimal {
	return decimal.New(int64(a), -2)
}

// String formats the amount in major units.
func (a Amount) String() string {
	return a.Decimal().StringFixed(2)
}

// FromDecimalString parses a major-unit string ("10.50") into minor units,
// rejecting values with sub-cent precision or a negative sign.
func FromDecimalString(value string) (Amount, error) {
	dec, err := decimal.NewFromString(value)
	if err != nil {
		return 0, pkgerrors.Wrap(pkgerrors.CodeValidation, err, fmt.Sprintf("invalid amount %q", value))
	}
	if dec.IsNegative() {
		return 0, pkgerrors.New(pkgerrors.CodeValidation, "amount must not be negative")
	}
	cents := dec.Shift(2)
	if !cents.IsInteger() {
		return 0, pkgerrors.New(pkgerrors.CodeValidation, "amount has sub-cent precision")
	}
	return Amount(cents.IntPart()), nil
}

// Totals bundles the monetary breakdown of an order.
type Totals struct {
	Subtotal Amount
	Tax      Amount
	Shipping Amount
	Total    Amount
	Currency enums.Currency
}

// Check validates the money invariant total = subtotal + tax + shipping and
// non-negativity of each component.
func (t Totals) Check() error {
	for name, amount := range map[string]Amount{
		"subtotal": t.Subtotal,
		"tax":      t.Tax,
		"shipping": t.Shipping,
		"total":    t.Total,
	} {
		if amount.IsNegative() {
			return pkgerrors.New(pkgerrors.CodeConstraintViolation, fmt.Sprintf("%s must not be negative", name))
		}
	}
	if t.Total != t.Subtotal.Add(t.Tax).Add(t.Shipping) {
		return pkgerrors.New(pkgerrors.CodeConstraintViolation,
			fmt.Sprintf("total %d does not equal subtotal %d + tax %d + shipping %d",
				t.Total, t.Subtotal, t.Tax, t.Shipping))
	}
	if !t.Currency.IsValid() {
		return pkgerrors.New(pkgerrors.CodeConstraintViolation, fmt.Sprintf("invalid currency %q", t.Currency))
	}
	return nil
}
