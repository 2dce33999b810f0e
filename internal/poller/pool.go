package poller

import (
	"encoding/hex"
	"strings"
)

// ExtractPoolName decodes a coinbase scriptSig and returns the miner tag:
// the last printable /Name/ run, else the longest printable run of at
// least four characters. "" when neither exists.
func ExtractPoolName(coinbaseHex string) string {
	b, err := hex.DecodeString(coinbaseHex)
	if err != nil {
		// Keep whatever full bytes decoded before the bad digit.
		b, _ = hex.DecodeString(coinbaseHex[:len(coinbaseHex)&^1])
	}

	last := ""
	for i := 0; i < len(b); {
		if b[i] != '/' {
			i++
			continue
		}
		end := -1
		for j := i + 1; j < len(b); j++ {
			if b[j] == '/' {
				end = j
				break
			}
		}
		if end < 0 {
			break
		}
		name := b[i+1 : end]
		if len(name) > 0 && allTagBytes(name) {
			last = string(name)
		}
		i = end + 1
	}
	if last != "" {
		return last
	}

	best := ""
	start := -1
	for i := 0; i <= len(b); i++ {
		if i < len(b) && printable(b[i]) {
			if start < 0 {
				start = i
			}
			continue
		}
		if start >= 0 && i-start > len(best) {
			best = string(b[start:i])
		}
		start = -1
	}
	best = strings.TrimSpace(best)
	if len(best) < 4 {
		return ""
	}
	return best
}

func printable(c byte) bool { return c >= 0x20 && c <= 0x7e }

func allTagBytes(name []byte) bool {
	for _, c := range name {
		if !(c > 0x20 && c <= 0x7e) && c != ' ' {
			return false
		}
	}
	return true
}
