package rfl

import (
	log "github.com/sirupsen/logrus"
	"golang.org/x/exp/rand"
)

//HandleError panics on a non-nil error. It is meant for code paths where a failure
//leaves nothing sensible to continue with.
func HandleError(err error) {
	if err != nil {
		log.Panic(err)
	}
}

//withSeed runs draw with a generator seeded from *seed and advances *seed afterwards,
//so consecutive calls differ while the whole run stays reproducible from one initial seed.
func withSeed(seed *uint64, draw func(src rand.Source)) {
	src := &rand.PCGSource{}
	src.Seed(*seed)
	draw(src)
	*seed = src.Uint64()
}

//nextSeed derives a fresh seed for an independent consumer, for example one tree of a forest.
func nextSeed(seed *uint64) (derived uint64) {
	withSeed(seed, func(src rand.Source) {
		derived = src.Uint64()
	})
	return
}
