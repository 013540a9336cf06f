package rfl

import (
	"golang.org/x/exp/rand"
)

//WeightList holds per-instance bootstrap counts. Zero means the instance is out-of-bag.
type WeightList struct {
	weights []int
	total   int
}

//NewWeightList creates a list of n zero weights.
func NewWeightList(n int) *WeightList {
	return &WeightList{weights: make([]int, n)}
}

//Bootstrap draws n instances out of n with replacement.
func Bootstrap(n int, seed *uint64) *WeightList {
	wl := NewWeightList(n)
	withSeed(seed, func(src rand.Source) {
		rnd := rand.New(src)
		for ind := 0; ind < n; ind++ {
			wl.Add(rnd.Intn(n))
		}
	})
	return wl
}

//Add increments the count of instance i.
func (wl *WeightList) Add(i int) {
	wl.weights[i]++
	wl.total++
}

//Get returns the count of instance i.
func (wl *WeightList) Get(i int) int {
	return wl.weights[i]
}

//Size returns the number of instances covered.
func (wl *WeightList) Size() int {
	return len(wl.weights)
}

//Total returns the sum of all counts.
func (wl *WeightList) Total() int {
	return wl.total
}

//IsOutOfBag reports whether instance i was never drawn.
func (wl *WeightList) IsOutOfBag(i int) bool {
	return wl.weights[i] == 0
}

//OutOfBagCount returns how many instances have a zero count.
func (wl *WeightList) OutOfBagCount() int {
	count := 0
	for _, w := range wl.weights {
		if w == 0 {
			count++
		}
	}
	return count
}
