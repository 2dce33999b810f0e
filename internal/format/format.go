// Package format renders node figures for display.
package format

import (
	"fmt"
	"strconv"
	"time"
)

// Number inserts thousands separators: 1234567 -> "1,234,567".
func Number(n int64) string {
	s := strconv.FormatInt(n, 10)
	neg := n < 0
	if neg {
		s = s[1:]
	}

	out := make([]byte, 0, len(s)+len(s)/3+1)
	if neg {
		out = append(out, '-')
	}
	for i := 0; i < len(s); i++ {
		if i > 0 && (len(s)-i)%3 == 0 {
			out = append(out, ',')
		}
		out = append(out, s[i])
	}
	return string(out)
}

// Bytes formats a byte count with binary units.
func Bytes(n int64) string {
	const (
		KB = 1024
		MB = KB * 1024
		GB = MB * 1024
	)

	switch {
	case n >= GB:
		return fmt.Sprintf("%.2f GB", float64(n)/GB)
	case n >= MB:
		return fmt.Sprintf("%.1f MB", float64(n)/MB)
	case n >= KB:
		return fmt.Sprintf("%.0f KB", float64(n)/KB)
	default:
		return fmt.Sprintf("%d B", n)
	}
}

// Weight formats block weight units.
func Weight(n int64) string {
	switch {
	case n >= 1_000_000:
		return fmt.Sprintf("%.1f MWU", float64(n)/1e6)
	case n >= 1_000:
		return fmt.Sprintf("%.0f KWU", float64(n)/1e3)
	default:
		return fmt.Sprintf("%d WU", n)
	}
}

func scaled(v float64, suffix string, prec int) string {
	units := []struct {
		div  float64
		name string
	}{
		{1e18, "E"}, {1e15, "P"}, {1e12, "T"}, {1e9, "G"}, {1e6, "M"},
	}
	for _, u := range units {
		if v >= u.div {
			return fmt.Sprintf("%.*f %s%s", prec, v/u.div, u.name, suffix)
		}
	}
	return ""
}

// Difficulty formats network difficulty: 8.3e13 -> "83.15 T".
func Difficulty(d float64) string {
	if s := scaled(d, "", 2); s != "" {
		return s
	}
	return fmt.Sprintf("%.2f", d)
}

// Hashrate formats hashes per second: 6.1e20 -> "610.0 EH/s".
func Hashrate(h float64) string {
	if s := scaled(h, "H/s", 1); s != "" {
		return s
	}
	return fmt.Sprintf("%.0f H/s", h)
}

// SatPerVB converts a BTC/kvB rate into sat/vB.
func SatPerVB(btcPerKvB float64) string {
	return fmt.Sprintf("%.2f sat/vB", btcPerKvB*100_000)
}

// BTC formats an amount with 8 decimals.
func BTC(btc float64) string {
	return fmt.Sprintf("%.8f BTC", btc)
}

// Duration formats whole seconds as "1h 2m", "3m 4s" or "5s".
func Duration(secs int64) string {
	if secs < 0 {
		secs = 0
	}
	switch {
	case secs >= 3600:
		return fmt.Sprintf("%dh %dm", secs/3600, (secs%3600)/60)
	case secs >= 60:
		return fmt.Sprintf("%dm %ds", secs/60, secs%60)
	default:
		return fmt.Sprintf("%ds", secs)
	}
}

// RelativeTime formats a unix timestamp relative to now.
func RelativeTime(unix int64, now time.Time) string {
	if d := now.Unix() - unix; d > 0 {
		return Duration(d) + " ago"
	}
	return "just now"
}

// Elapsed formats a call duration: "850ms" or "1.25s".
func Elapsed(d time.Duration) string {
	ms := d.Milliseconds()
	if ms < 1000 {
		return fmt.Sprintf("%dms", ms)
	}
	return fmt.Sprintf("%.2fs", d.Seconds())
}

// Percent formats a 0..1 fraction.
func Percent(f float64) string {
	return fmt.Sprintf("%.2f%%", f*100)
}
