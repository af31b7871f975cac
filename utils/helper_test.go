package utils

import (
	"testing"
	"time"
)

func TestCeilDiv(t *testing.T) {
	tests := []struct {
		a, b, want int
	}{
		{10, 5, 2},
		{11, 5, 3},
		{0, 5, 0},
		{7, 0, 0},
	}
	for _, tt := range tests {
		if got := CeilDiv(tt.a, tt.b); got != tt.want {
			t.Fatalf("CeilDiv(%d, %d) = %d, want %d", tt.a, tt.b, got, tt.want)
		}
	}
}

func TestCeilFloat(t *testing.T) {
	if got := CeilFloat(4.1); got != 5 {
		t.Fatalf("CeilFloat(4.1) = %d", got)
	}
	if got := CeilFloat(-3.2); got != 0 {
		t.Fatalf("CeilFloat(-3.2) = %d", got)
	}
	if got := CeilFloat(0); got != 0 {
		t.Fatalf("CeilFloat(0) = %d", got)
	}
}

func TestRoundFloat(t *testing.T) {
	if got := RoundFloat(2.5); got != 3 {
		t.Fatalf("RoundFloat(2.5) = %d", got)
	}
	if got := RoundFloat(2.4); got != 2 {
		t.Fatalf("RoundFloat(2.4) = %d", got)
	}
}

func TestTargetWeekOf(t *testing.T) {
	tests := []struct {
		date string
		want string
	}{
		{"2026-01-01", "2026-W01"},
		{"2026-08-28", "2026-W35"},
		// Dec 29 2025 falls in ISO week 1 of 2026.
		{"2025-12-29", "2026-W01"},
	}
	for _, tt := range tests {
		day, err := time.Parse("2006-01-02", tt.date)
		if err != nil {
			t.Fatal(err)
		}
		if got := TargetWeekOf(day); got != tt.want {
			t.Fatalf("TargetWeekOf(%s) = %s, want %s", tt.date, got, tt.want)
		}
	}
}

func TestParseDecimal(t *testing.T) {
	dec, err := ParseDecimal(" 12.50 ")
	if err != nil {
		t.Fatal(err)
	}
	if dec.String() != "12.5" {
		t.Fatalf("ParseDecimal: got %s", dec.String())
	}
	if _, err := ParseDecimal(""); err == nil {
		t.Fatal("expected error for empty string")
	}
	if _, err := ParseDecimal("abc"); err == nil {
		t.Fatal("expected error for junk input")
	}
}
