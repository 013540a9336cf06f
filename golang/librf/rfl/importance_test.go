package rfl

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
)

//withConstantAttribute appends an attribute holding the same value for every instance.
func withConstantAttribute(t *testing.T, set *InstanceSet) *InstanceSet {
	t.Helper()
	h, w := set.Features.Dims()
	features := mat.NewDense(h, w+1, nil)
	for p := 0; p < h; p++ {
		for q := 0; q < w; q++ {
			features.Set(p, q, set.Attribute(p, q))
		}
		features.Set(p, w, 7)
	}
	extended, err := NewInstanceSet(features, set.Labels)
	require.NoError(t, err)
	return extended
}

func TestVariableImportance(t *testing.T) {
	set := withConstantAttribute(t, createRandomSet(t, 200, 4, 3, 5))
	before := mat.DenseCopyOf(set.Features)

	seed := uint64(3)
	weights := Bootstrap(set.Size(), &seed)
	tree := growTree(set, weights, Options{MaxDepth: 6, K: 5}, seed)
	require.NotZero(t, weights.OutOfBagCount())

	permutationSeed := uint64(11)
	importance := tree.VariableImportance(&permutationSeed)

	assert.NotContains(t, importance, 4)
	assert.NotContains(t, tree.VarsUsed(), 4)
	assert.Len(t, importance, len(tree.VarsUsed()))
	for _, attr := range tree.VarsUsed() {
		score, ok := importance[attr]
		require.True(t, ok, "attribute %d", attr)
		assert.GreaterOrEqual(t, score, -1.0)
		assert.LessOrEqual(t, score, 1.0)
	}
	assert.True(t, mat.Equal(before, set.Features))

	again := uint64(11)
	assert.Equal(t, importance, tree.VariableImportance(&again))
	assert.NotEqual(t, uint64(11), permutationSeed)
}

func TestVariableImportanceOfDecisiveAttribute(t *testing.T) {
	set := createSeparableSet(t)
	weights := NewWeightList(8)
	for _, i := range []int{0, 1, 3, 4, 6, 7} {
		weights.Add(i)
	}
	tree := growTree(set, weights, Options{MaxDepth: 3, K: 2}, 1)
	require.Equal(t, []int{0}, tree.VarsUsed())

	seed := uint64(1)
	importance := tree.VariableImportance(&seed)
	require.Contains(t, importance, 0)
	assert.GreaterOrEqual(t, importance[0], 0.0)
}

func TestVariableImportanceWithoutOutOfBag(t *testing.T) {
	set := createSeparableSet(t)
	tree := growTree(set, allInBag(8), Options{MaxDepth: 3, K: 2}, 1)

	seed := uint64(1)
	importance := tree.VariableImportance(&seed)
	require.Len(t, importance, 1)
	assert.True(t, math.IsNaN(importance[0]))
}
