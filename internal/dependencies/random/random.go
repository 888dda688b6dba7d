package random

import (
	crand "crypto/rand"
	"math/rand/v2"
	"sync"
)

// Random draws game codes, fallback codenames and ring shuffles
type Random interface {
	// Intn returns a uniform int in [0, n), or 0 when n <= 0
	Intn(n int) int

	// String returns length characters drawn uniformly from alphabet
	String(length int, alphabet string) string
}

// ChaChaRandom is a ChaCha8 stream seeded from crypto/rand.
// Safe for concurrent use.
type ChaChaRandom struct {
	mu  sync.Mutex
	rng *rand.Rand
}

// New seeds a ChaChaRandom from the operating system
func New() *ChaChaRandom {
	var seed [32]byte
	// crypto/rand.Read does not return errors on supported platforms
	_, _ = crand.Read(seed[:])
	return &ChaChaRandom{rng: rand.New(rand.NewChaCha8(seed))}
}

func (r *ChaChaRandom) Intn(n int) int {
	if n <= 0 {
		return 0
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.rng.IntN(n)
}

func (r *ChaChaRandom) String(length int, alphabet string) string {
	if length <= 0 || alphabet == "" {
		return ""
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]byte, length)
	for i := range out {
		out[i] = alphabet[r.rng.IntN(len(alphabet))]
	}
	return string(out)
}
