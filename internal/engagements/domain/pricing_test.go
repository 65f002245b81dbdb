package domain

import (
	"testing"

	"github.com/shopspring/decimal"
)

func TestOrderTotal(t *testing.T) {
	cases := []struct {
		unit     string
		quantity int
		want     string
	}{
		{"10.00", 1, "10"},
		{"10.00", 3, "30"},
		{"2.49", 2, "4.98"},
		{"0.10", 7, "0.7"},
	}

	for _, tc := range cases {
		unit, err := decimal.NewFromString(tc.unit)
		if err != nil {
			t.Fatalf("bad unit %q: %v", tc.unit, err)
		}
		got := OrderTotal(unit, tc.quantity)
		if got.String() != tc.want {
			t.Errorf("OrderTotal(%s, %d) = %s, want %s", tc.unit, tc.quantity, got, tc.want)
		}
	}
}

func TestBookingTotal(t *testing.T) {
	cases := []struct {
		unit    string
		minutes int
		want    string
	}{
		{"60.00", 60, "60"},
		{"60.00", 120, "120"},
		{"60.00", 90, "90"},
		{"60.00", 45, "45"},
		// Sub-cent fractions round half-up to two decimals.
		{"50.00", 45, "37.5"},
		{"10.00", 50, "8.33"},
		{"10.01", 45, "7.51"},
	}

	for _, tc := range cases {
		unit, err := decimal.NewFromString(tc.unit)
		if err != nil {
			t.Fatalf("bad unit %q: %v", tc.unit, err)
		}
		got := BookingTotal(unit, tc.minutes)
		if got.String() != tc.want {
			t.Errorf("BookingTotal(%s, %d) = %s, want %s", tc.unit, tc.minutes, got, tc.want)
		}
	}
}
