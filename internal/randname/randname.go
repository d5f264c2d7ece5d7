// Package randname generates short synthetic path names for demo and
// load-generation code, so cmd/karcfsdemo doesn't need a fixture file on
// disk to exercise the cache and notification bus with varied keys.
package randname

import (
	"fmt"
	"math/rand"
)

var words = []string{
	"alpha", "bravo", "charlie", "delta", "echo", "foxtrot",
	"golf", "hotel", "india", "juliet", "kilo", "lima",
}

// Path returns a synthetic "/dir/word-n" path using rng for its choices.
// Passing the same *rand.Rand across calls yields a reproducible sequence.
func Path(rng *rand.Rand, dir string) string {
	w := words[rng.Intn(len(words))]
	return fmt.Sprintf("%s/%s-%d", dir, w, rng.Intn(1000))
}
