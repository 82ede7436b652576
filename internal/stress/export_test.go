package stress

// OwnedHint exposes ownedHint for tests.
func OwnedHint(opts Options) int { return ownedHint(opts) }
