package storage

// FixedSizeRollingStrategy rolls the active segment once it reaches
// MaxBytes. It is the default strategy, grounded on the teacher's
// shouldRollSegment size check (storage/segment.go) minus the age
// check half of that function — age-based rolling is not part of the
// spec's rolling contract, only retention's age-based cleanup is.
type FixedSizeRollingStrategy struct {
	MaxBytes int64
}

func (s FixedSizeRollingStrategy) ShouldRoll(activeSizeBytes int64, _ int64) bool {
	return activeSizeBytes >= s.MaxBytes
}
