package util

import "github.com/dustin/go-humanize"

// FormatBytes formats a byte count into a human-readable string.
func FormatBytes(b int64) string {
	if b < 0 {
		return "?"
	}
	return humanize.IBytes(uint64(b))
}

// TruncatePath truncates a path from the left, keeping the rightmost part visible.
func TruncatePath(path string, maxLen int) string {
	if len(path) <= maxLen || maxLen <= 3 {
		return path
	}
	return "..." + path[len(path)-maxLen+3:]
}
