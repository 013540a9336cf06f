package rfl

import (
	"testing"

	"github.com/stretchr/testify/require"
	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/mat"
)

//createSeparableSet returns 8 instances separated by attribute 0 at 4.5; attribute 1 is noise.
func createSeparableSet(t *testing.T) *InstanceSet {
	t.Helper()
	features := mat.NewDense(8, 2, []float64{
		1, 3,
		2, 1,
		3, 4,
		4, 1,
		5, 5,
		6, 9,
		7, 2,
		8, 6,
	})
	set, err := NewInstanceSet(features, []int{0, 0, 0, 0, 1, 1, 1, 1})
	require.NoError(t, err)
	return set
}

//createRandomSet draws integer valued features, so ties are frequent, and labels that
//mostly follow the first two attributes.
func createRandomSet(t *testing.T, rows, cols, classes int, seed uint64) *InstanceSet {
	t.Helper()
	src := &rand.PCGSource{}
	src.Seed(seed)
	rnd := rand.New(src)

	features := mat.NewDense(rows, cols, nil)
	labels := make([]int, rows)
	for p := 0; p < rows; p++ {
		for q := 0; q < cols; q++ {
			features.Set(p, q, float64(rnd.Intn(20)))
		}
		labels[p] = int(features.At(p, 0)+features.At(p, 1)) % classes
		if rnd.Float64() < 0.1 {
			labels[p] = rnd.Intn(classes)
		}
	}
	set, err := NewInstanceSet(features, labels)
	require.NoError(t, err)
	return set
}

func allInBag(n int) *WeightList {
	wl := NewWeightList(n)
	for i := 0; i < n; i++ {
		wl.Add(i)
	}
	return wl
}

func growTree(set *InstanceSet, weights *WeightList, options Options, seed uint64) *Tree {
	tree := NewTree(set, weights, options, seed)
	tree.Grow()
	return tree
}
