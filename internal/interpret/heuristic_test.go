package interpret

import (
	"reflect"
	"testing"
)

func TestParseHeuristic_PriceBounds(t *testing.T) {
	tests := []struct {
		name     string
		query    string
		wantMin  int64
		wantMax  int64
		wantDisc float64
	}{
		{"under", "headphones under $50", 0, 5000, 0},
		{"below decimal", "laptop below 899.99", 0, 89999, 0},
		{"over", "espresso machine over $200", 20000, 0, 0},
		{"at least", "monitor at least 150", 15000, 0, 0},
		{"between", "tablet between 100 and 300", 10000, 30000, 0},
		{"discount", "shoes 30% off", 0, 0, 30},
		{"combined", "jacket under $80 20% off", 0, 8000, 20},
		{"none", "wireless keyboard", 0, 0, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := ParseHeuristic(tt.query)
			if res.PriceMinCents != tt.wantMin {
				t.Errorf("min = %d, want %d", res.PriceMinCents, tt.wantMin)
			}
			if res.PriceMaxCents != tt.wantMax {
				t.Errorf("max = %d, want %d", res.PriceMaxCents, tt.wantMax)
			}
			if res.MinDiscountPct != tt.wantDisc {
				t.Errorf("discount = %v, want %v", res.MinDiscountPct, tt.wantDisc)
			}
		})
	}
}

func TestParseHeuristic_SwapsInvertedBounds(t *testing.T) {
	res := ParseHeuristic("gadget from 80 and under 20")
	if res.PriceMinCents != 2000 || res.PriceMaxCents != 8000 {
		t.Errorf("inverted bounds should be swapped, got min=%d max=%d",
			res.PriceMinCents, res.PriceMaxCents)
	}
}

func TestParseHeuristic_Terms(t *testing.T) {
	res := ParseHeuristic("find me the best cheap wireless headphones deal under $50")
	want := []string{"wireless", "headphones"}
	if !reflect.DeepEqual(res.Terms, want) {
		t.Errorf("terms = %v, want %v (stop words and price tokens dropped)", res.Terms, want)
	}
}

func TestToCents(t *testing.T) {
	tests := []struct {
		in   string
		want int64
	}{
		{"50", 5000},
		{"19.99", 1999},
		{"19,99", 1999},
		{"0", 0},
	}
	for _, tt := range tests {
		if got := toCents(tt.in); got != tt.want {
			t.Errorf("toCents(%q) = %d, want %d", tt.in, got, tt.want)
		}
	}
}
