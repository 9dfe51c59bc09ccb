package core

import "testing"

func TestEvalAmount(t *testing.T) {
	cases := []struct {
		in  string
		out float64
		ok  bool
	}{
		{"1", 1, true},
		{"1.5", 1.5, true},
		{"1,25", 1.25, true},
		{" 250 ", 250, true},
		{"1 000", 1000, true},
		{"1 000,50", 1000.5, true},
		{"12 345 678", 12345678, true},
		{"1 000 + 250", 1250, true},
		{"100 200", 100200, true},
		{"100 20", 0, false},
		{"1 2", 0, false},
		{"1234 567", 0, false},
		{"1 000 00", 0, false},
		{"0,5 000", 0, false},
		{"100+50", 150, true},
		{"100+20*2", 140, true},
		{"(10+5)/2", 7.5, true},
		{"-30", -30, true},
		{"0", 0, true},
		{"", 0, false},
		{"abc", 0, false},
		{"1.2.3", 0, false},
		{"1/0", 0, false},
		{"10+", 0, false},
		{"len(\"x\")", 0, false},
	}
	for _, tc := range cases {
		got, err := EvalAmount(tc.in)
		if tc.ok {
			if err != nil || got != tc.out {
				t.Fatalf("%q expected %v, got %v (err=%v)", tc.in, tc.out, got, err)
			}
		} else if err == nil {
			t.Fatalf("%q expected error, got %v", tc.in, got)
		}
	}
}
