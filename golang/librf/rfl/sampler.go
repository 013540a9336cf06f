package rfl

import (
	"sort"

	log "github.com/sirupsen/logrus"
	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/stat/sampleuv"
)

//RandomSample draws k distinct attribute ids out of [0, total) in ascending order.
//The draw depends only on *seed, which is advanced.
func RandomSample(total, k int, seed *uint64) []int {
	if k < 0 || k > total {
		log.Panicf("cannot sample %d attributes out of %d", k, total)
	}
	attrs := make([]int, k)
	if k == 0 {
		return attrs
	}
	withSeed(seed, func(src rand.Source) {
		sampleuv.WithoutReplacement(attrs, total, src)
	})
	sort.Ints(attrs)
	return attrs
}
