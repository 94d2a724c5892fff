package availability

import "testing"

func TestNaturalLess(t *testing.T) {
	cases := []struct {
		a, b string
		want bool
	}{
		{"Field 2", "Field 10", true},
		{"Field 10", "Field 2", false},
		{"Field 2", "Field 2", false},
		{"Field 02", "Field 2", false}, // equal value, equal length tail
		{"East", "North", true},
		{"Field 2", "Field 2b", true},
		{"Field", "Field 1", true},
	}
	for _, tc := range cases {
		if got := naturalLess(tc.a, tc.b); got != tc.want {
			t.Errorf("naturalLess(%q, %q) = %v, want %v", tc.a, tc.b, got, tc.want)
		}
	}
}
