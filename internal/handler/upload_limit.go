package handler

import "strconv"

// formatUploadLimit renders a byte limit for error messages, rounding down to
// the largest whole unit.
func formatUploadLimit(n int64) string {
	switch {
	case n >= 1<<20:
		return strconv.FormatInt(n>>20, 10) + "MB"
	case n >= 1<<10:
		return strconv.FormatInt(n>>10, 10) + "KB"
	case n > 0:
		return strconv.FormatInt(n, 10) + "B"
	}
	return "unlimited"
}
