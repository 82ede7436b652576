// Package safeconv provides checked integer conversions for sizes that cross
// between humanized config values, slot counts and metric values.
package safeconv

// MaxInt is the maximum value for int type (platform-dependent).
const MaxInt = int(^uint(0) >> 1)

// Uint64ToInt converts v to int, reporting false when v does not fit.
func Uint64ToInt(v uint64) (int, bool) {
	if v > uint64(MaxInt) {
		return 0, false
	}

	return int(v), true
}

// MustIntToUint64 converts int to uint64, panics if negative.
// Use only when negative values are logically impossible.
func MustIntToUint64(v int) uint64 {
	if v < 0 {
		panic("safeconv: negative int to uint64 conversion")
	}

	return uint64(v)
}

// IntToInt64 widens int to int64.
// int is at most 64 bits wide on every supported platform, so this never fails.
func IntToInt64(v int) int64 {
	return int64(v)
}
