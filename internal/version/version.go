// Package version formats and compares Bitcoin Core release numbers.
package version

import (
	"fmt"
	"strconv"
	"strings"
)

// MinSupported is the oldest node whose getpeerinfo carries the network and
// connection_type fields the peers tab relies on.
const MinSupported = "0.21.0"

// FromNode converts getnetworkinfo's integer version (270100) to a release
// string (27.1.0). Releases before 22.0 used a leading zero: 210100 is 0.21.1.
func FromNode(n int64) string {
	if n <= 0 {
		return ""
	}
	major := n / 10000
	minor := (n / 100) % 100
	patch := n % 100
	if major < 22 {
		return fmt.Sprintf("0.%d.%d", major, minor)
	}
	return fmt.Sprintf("%d.%d.%d", major, minor, patch)
}

// Supported reports whether the node release is at least MinSupported.
func Supported(n int64) bool {
	v := FromNode(n)
	return v != "" && !isNewerVersion(MinSupported, v)
}

// isNewerVersion compares two semantic versions and returns true if latest > current
// Supports versions like "0.21.0", "27.1", "28.0-rc1", etc.
func isNewerVersion(latest, current string) bool {
	latestParts := parseVersion(latest)
	currentParts := parseVersion(current)

	// Pad shorter version with zeros
	maxLen := max(len(latestParts), len(currentParts))
	for len(latestParts) < maxLen {
		latestParts = append(latestParts, 0)
	}
	for len(currentParts) < maxLen {
		currentParts = append(currentParts, 0)
	}

	for i := 0; i < maxLen; i++ {
		if latestParts[i] > currentParts[i] {
			return true
		}
		if latestParts[i] < currentParts[i] {
			return false
		}
	}

	return false
}

// parseVersion parses a version string into integer parts
// Handles pre-release versions by stripping everything after "-" or "+"
func parseVersion(version string) []int {
	version = strings.TrimPrefix(version, "v")
	if idx := strings.IndexAny(version, "-+"); idx != -1 {
		version = version[:idx]
	}

	parts := strings.Split(version, ".")
	result := make([]int, 0, len(parts))
	for _, part := range parts {
		num, err := strconv.Atoi(part)
		if err != nil {
			continue
		}
		result = append(result, num)
	}
	return result
}
