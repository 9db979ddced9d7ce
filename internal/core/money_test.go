package core

import (
	"encoding/json"
	"errors"
	"testing"
)

func TestParseDecimalToCents(t *testing.T) {
	cases := []struct {
		in  string
		out int64
		ok  bool
	}{
		{"1", 100, true},
		{"1.0", 100, true},
		{"1.23", 123, true},
		{"1,23", 123, true},
		{"0.01", 1, true},
		{"1.005", 101, true}, // half-up rounding
		{" 2.50 ", 250, true},
		{"-1", 0, false},
		{"0", 0, false},
		{"abc", 0, false},
		{"1.2.3", 0, false},
		{"", 0, false},
	}
	for _, tc := range cases {
		got, err := ParseDecimalToCents(tc.in)
		if tc.ok {
			if err != nil || got != tc.out {
				t.Fatalf("%q expected %d, got %d (err=%v)", tc.in, tc.out, got, err)
			}
		} else {
			if err == nil {
				t.Fatalf("%q expected error", tc.in)
			}
		}
	}
}

func TestMoneyUnmarshalJSON(t *testing.T) {
	cases := []struct {
		in      string
		cents   int64
		wantErr bool
	}{
		{`12.5`, 1250, false},
		{`"12.34"`, 1234, false},
		{`0.1`, 10, false},
		{`19.99`, 1999, false},
		{`-3`, -300, false},
		{`1e2`, 10000, false},
		{`null`, 0, false},
		{`"abc"`, 0, true},
	}
	for _, tc := range cases {
		var m Money
		err := json.Unmarshal([]byte(tc.in), &m)
		if tc.wantErr {
			if !errors.Is(err, ErrInvalidAmount) {
				t.Errorf("%s: expected ErrInvalidAmount, got %v", tc.in, err)
			}
			continue
		}
		if err != nil || m.Cents != tc.cents {
			t.Errorf("%s: expected %d cents, got %d (err=%v)", tc.in, tc.cents, m.Cents, err)
		}
	}
}

func TestMoneyString(t *testing.T) {
	cases := map[int64]string{0: "0.00", 5: "0.05", 1250: "12.50", -705: "-7.05"}
	for cents, want := range cases {
		if got := (Money{Cents: cents}).String(); got != want {
			t.Errorf("Money{%d}.String() = %q, want %q", cents, got, want)
		}
	}
	b, _ := json.Marshal(struct {
		A Money `json:"a"`
	}{Money{Cents: 3050}})
	if string(b) != `{"a":30.50}` {
		t.Errorf("unexpected JSON %s", b)
	}
}

func TestMoneyFromFloat(t *testing.T) {
	if got := MoneyFromFloat(0.1 + 0.2); got.Cents != 30 {
		t.Errorf("MoneyFromFloat(0.3) = %d", got.Cents)
	}
	if got := MoneyFromFloat(85.715).Float(); got < 85.71 || got > 85.72 {
		t.Errorf("unexpected rounding %v", got)
	}
}
