// Package wordscan finds zero and non-zero machine words in a slice.
//
// The slot array stores one pointer per slot, so "find the first empty slot"
// reduces to "find the leftmost zero word" and "find the highest occupied
// slot" to "find the rightmost non-zero word". Both searches test a block of
// words per iteration: a block of non-zero words is skipped with a single
// branch on the product of per-word flags, and only a block known to contain
// a match is inspected word by word.
package wordscan

const (
	// blockWords is the number of words tested per block.
	blockWords = 8

	// notFound is returned when no word matches.
	notFound = -1
)

// IndexZero returns the index of the leftmost zero word in words,
// or -1 if every word is non-zero.
func IndexZero(words []uintptr) int {
	i := 0

	for ; i+blockWords <= len(words); i += blockWords {
		blk := words[i : i+blockWords : i+blockWords]

		if blk[0] != 0 && blk[1] != 0 && blk[2] != 0 && blk[3] != 0 &&
			blk[4] != 0 && blk[5] != 0 && blk[6] != 0 && blk[7] != 0 {
			continue
		}

		return i + indexZeroTail(blk)
	}

	if tail := indexZeroTail(words[i:]); tail != notFound {
		return i + tail
	}

	return notFound
}

// LastIndexNonZero returns the index of the rightmost non-zero word in words,
// or -1 if every word is zero.
func LastIndexNonZero(words []uintptr) int {
	end := len(words)

	for ; end >= blockWords; end -= blockWords {
		blk := words[end-blockWords : end : end]

		if blk[0]|blk[1]|blk[2]|blk[3]|blk[4]|blk[5]|blk[6]|blk[7] == 0 {
			continue
		}

		return end - blockWords + lastNonZeroTail(blk)
	}

	return lastNonZeroTail(words[:end])
}

func indexZeroTail(words []uintptr) int {
	for i, w := range words {
		if w == 0 {
			return i
		}
	}

	return notFound
}

func lastNonZeroTail(words []uintptr) int {
	for i := len(words) - 1; i >= 0; i-- {
		if words[i] != 0 {
			return i
		}
	}

	return notFound
}
