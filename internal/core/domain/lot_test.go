package domain

import "testing"

func TestNormalizeLot(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"LOT-0091a", "91"},
		{"", ""},
		{"000", ""},
		{"0091", "91"},
		{"12300", "12300"},
		{"abc-def", ""},
		{"  00 12-34 ", "1234"},
		{"91", "91"},
	}

	for _, c := range cases {
		if got := NormalizeLot(c.in); got != c.want {
			t.Errorf("NormalizeLot(%q) = %q, want %q", c.in, got, c.want)
		}
	}
}

func TestNormalizeLot_Idempotent(t *testing.T) {
	inputs := []string{"LOT-0091a", "", "000", "12300", "TUN-55"}
	for _, in := range inputs {
		once := NormalizeLot(in)
		if twice := NormalizeLot(once); twice != once {
			t.Errorf("NormalizeLot not idempotent for %q: %q != %q", in, twice, once)
		}
	}
}
