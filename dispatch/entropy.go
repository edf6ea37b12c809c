package dispatch

import (
	"math/rand"
	"time"
)

// newSeededReader returns a non-cryptographic entropy source for opId
// generation, seeded from wall-clock time. opIds only need to be distinct
// and roughly ordered within a process lifetime, not unpredictable.
func newSeededReader() entropySource {
	return rand.New(rand.NewSource(time.Now().UnixNano()))
}
