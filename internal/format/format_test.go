package format

import (
	"testing"
	"time"
)

func TestNumber(t *testing.T) {
	tests := []struct {
		in   int64
		want string
	}{
		{0, "0"},
		{999, "999"},
		{1000, "1,000"},
		{840000, "840,000"},
		{1234567, "1,234,567"},
		{-1234, "-1,234"},
	}
	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			if got := Number(tt.in); got != tt.want {
				t.Errorf("Number(%d) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestBytes(t *testing.T) {
	tests := []struct {
		in   int64
		want string
	}{
		{512, "512 B"},
		{2048, "2 KB"},
		{5 * 1024 * 1024, "5.0 MB"},
		{650 * 1024 * 1024 * 1024, "650.00 GB"},
	}
	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			if got := Bytes(tt.in); got != tt.want {
				t.Errorf("Bytes(%d) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestScaledUnits(t *testing.T) {
	tests := []struct {
		name string
		got  string
		want string
	}{
		{"difficulty tera", Difficulty(83.15e12), "83.15 T"},
		{"difficulty small", Difficulty(1), "1.00"},
		{"hashrate exa", Hashrate(610e18), "610.0 EH/s"},
		{"hashrate small", Hashrate(12), "12 H/s"},
		{"weight mega", Weight(3_993_000), "4.0 MWU"},
		{"weight kilo", Weight(1_500), "2 KWU"},
		{"weight units", Weight(400), "400 WU"},
		{"fee rate", SatPerVB(0.00001), "1.00 sat/vB"},
		{"btc", BTC(0.5), "0.50000000 BTC"},
		{"percent", Percent(0.5), "50.00%"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.got != tt.want {
				t.Errorf("got %q, want %q", tt.got, tt.want)
			}
		})
	}
}

func TestDurationAndRelativeTime(t *testing.T) {
	tests := []struct {
		secs int64
		want string
	}{
		{-5, "0s"},
		{42, "42s"},
		{125, "2m 5s"},
		{3725, "1h 2m"},
	}
	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			if got := Duration(tt.secs); got != tt.want {
				t.Errorf("Duration(%d) = %q, want %q", tt.secs, got, tt.want)
			}
		})
	}

	now := time.Unix(1_700_000_000, 0)
	if got := RelativeTime(now.Unix()-90, now); got != "1m 30s ago" {
		t.Errorf("RelativeTime() = %q", got)
	}
	if got := RelativeTime(now.Unix()+10, now); got != "just now" {
		t.Errorf("RelativeTime(future) = %q", got)
	}
}

func TestElapsed(t *testing.T) {
	if got := Elapsed(850 * time.Millisecond); got != "850ms" {
		t.Errorf("Elapsed() = %q", got)
	}
	if got := Elapsed(1250 * time.Millisecond); got != "1.25s" {
		t.Errorf("Elapsed() = %q", got)
	}
}
