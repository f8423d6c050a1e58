package money

import (
	"testing"

	"github.com/angelmondragon/orderdesk/pkg/enums"
	pkgerrors "github.com/angelmondragon/orderdesk/pkg/errors"
)

func TestTotalsCheck(t *testing.T) {
	t.Parallel()

	valid := Totals{Subtotal: 2000, Tax: 160, Shipping: 500, Total: 2660, Currency: enums.CurrencyUSD}
	if err := valid.Check(); err != nil {
		t.Fatalf("expected valid totals, got %v", err)
	}

	broken := Totals{Subtotal: 2000, Tax: 160, Shipping: 500, Total: 2650, Currency: enums.CurrencyUSD}
	err := broken.Check()
	if err == nil {
		t.Fatal("expected constraint violation")
	}
	if !pkgerrors.IsCode(err, pkgerrors.CodeConstraintViolation) {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestTotalsCheckRejectsNegativeComponents(t *testing.T) {
	t.Parallel()

	totals := Totals{Subtotal: -100, Tax: 0, Shipping: 0, Total: -100, Currency: enums.CurrencyUSD}
	if err := totals.Check(); !pkgerrors.IsCode(err, pkgerrors.CodeConstraintViolation) {
		t.Fatalf("expected constraint violation, got %v", err)
	}
}

func TestTotalsCheckRejectsUnknownCurrency(t *testing.T) {
	t.Parallel()

	totals := Totals{Subtotal: 0, Tax: 0, Shipping: 0, Total: 0, Currency: enums.Currency("XXX")}
	if err := totals.Check(); !pkgerrors.IsCode(err, pkgerrors.CodeConstraintViolation) {
		t.Fatalf("expected constraint violation, got %v", err)
	}
}

func TestMulQty(t *testing.T) {
	t.Parallel()

	if got := Amount(1000).MulQty(3); got != 3000 {
		t.Fatalf("MulQty = %d, want 3000", got)
	}
}

func TestFromDecimalString(t *testing.T) {
	t.Parallel()

	cases := []struct {
		in      string
		want    Amount
		wantErr bool
	}{
		{"10.50", 1050, false},
		{"0", 0, false},
		{"19.99", 1999, false},
		{"10.505", 0, true},
		{"-1.00", 0, true},
		{"abc", 0, true},
	}
	for _, tc := range cases {
		got, err := FromDecimalString(tc.in)
		if tc.wantErr {
			if err == nil {
				t.Fatalf("FromDecimalString(%q): expected error", tc.in)
			}
			continue
		}
		if err != nil {
			t.Fatalf("FromDecimalString(%q): %v", tc.in, err)
		}
		if got != tc.want {
			t.Fatalf("FromDecimalString(%q) = %d, want %d", tc.in, got, tc.want)
		}
	}
}

func TestStringFormatsMajorUnits(t *testing.T) {
	t.Parallel()

	if got := Amount(2660).String(); got != "26.60" {
		t.Fatalf("String() = %q", got)
	}
	if got := Amount(5).String(); got != "0.05" {
		t.Fatalf("String() = %q", got)
	}
}
