package rfl

import (
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/pkg/errors"
	"github.com/sbinet/npyio"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/multierr"
	"gonum.org/v1/gonum/mat"
)

func TestInstanceSetSortedIndices(t *testing.T) {
	set := createSeparableSet(t)
	assert.Equal(t, 8, set.Size())
	assert.Equal(t, 2, set.NumAttributes())
	assert.Equal(t, 2, set.NumClasses())
	assert.Equal(t, []int{0, 1, 2, 3, 4, 5, 6, 7}, set.SortedIndices(0))
	// ties keep instance id order
	assert.Equal(t, []int{1, 3, 6, 0, 2, 4, 7, 5}, set.SortedIndices(1))
}

func TestInstanceSetValidation(t *testing.T) {
	features := mat.NewDense(3, 2, []float64{1, 2, 3, math.NaN(), 5, 6})
	_, err := NewInstanceSet(features, []int{0, -1})
	require.Error(t, err)
	assert.Len(t, multierr.Errors(errors.Cause(err)), 3)
	assert.Contains(t, err.Error(), "3 feature rows but 2 labels")
	assert.Contains(t, err.Error(), "negative label")
	assert.Contains(t, err.Error(), "missing value for attribute 1")
}

func TestInstanceSetSubset(t *testing.T) {
	set := createSeparableSet(t)
	weights := NewWeightList(8)
	for _, i := range []int{0, 0, 2, 3, 5, 6} {
		weights.Add(i)
	}
	require.Equal(t, 3, weights.OutOfBagCount())

	oob := set.OutOfBagSubset(weights)
	require.Equal(t, 3, oob.Size())
	assert.Equal(t, []int{0, 1, 1}, oob.Labels)
	assert.Equal(t, []float64{2, 5, 8}, oob.SaveVar(0))
	assert.Equal(t, []int{0, 1, 2}, oob.SortedIndices(1))
	assert.Equal(t, set.NumClasses(), oob.NumClasses())

	oob.Features.Set(0, 0, 100)
	assert.Equal(t, 2.0, set.Attribute(1, 0))

	empty := set.Subset(func(int) bool { return false })
	assert.Equal(t, 0, empty.Size())
	assert.Equal(t, 0, empty.NumAttributes())
}

func TestInstanceSetPermuteAndRestore(t *testing.T) {
	set := createRandomSet(t, 50, 3, 2, 4)
	backup := set.SaveVar(1)
	sortedBefore := append([]int(nil), set.SortedIndices(1)...)

	seed := uint64(8)
	set.Permute(1, &seed)
	permuted := set.SaveVar(1)
	assert.ElementsMatch(t, backup, permuted)
	assert.NotEqual(t, backup, permuted)
	assert.Equal(t, sortedBefore, set.SortedIndices(1))

	set.LoadVar(1, backup)
	assert.Equal(t, backup, set.SaveVar(1))
	assert.Panics(t, func() { set.LoadVar(1, backup[1:]) })
}

func TestReadCSVInstanceSet(t *testing.T) {
	f, err := os.Open("testdata/separable.csv")
	require.NoError(t, err)
	defer f.Close()

	set, err := ReadCSVInstanceSet(f, "class")
	require.NoError(t, err)
	assert.Equal(t, []string{"x", "y"}, set.AttributeNames)
	assert.True(t, mat.Equal(createSeparableSet(t).Features, set.Features))
	assert.Equal(t, []int{0, 0, 0, 0, 1, 1, 1, 1}, set.Labels)

	reordered, err := ReadCSVInstanceSet(strings.NewReader("label,a\n1,0.5\n0,1.5\n"), "label")
	require.NoError(t, err)
	assert.Equal(t, []string{"a"}, reordered.AttributeNames)
	assert.Equal(t, []float64{0.5, 1.5}, reordered.SaveVar(0))
	assert.Equal(t, []int{1, 0}, reordered.Labels)

	_, err = ReadCSVInstanceSet(strings.NewReader("a,b\n1,2\n"), "label")
	assert.Error(t, err)
}

func TestReadNpyInstanceSet(t *testing.T) {
	dir := t.TempDir()
	write := func(name string, m *mat.Dense) string {
		filename := filepath.Join(dir, name)
		dst, err := os.Create(filename)
		require.NoError(t, err)
		require.NoError(t, npyio.Write(dst, m))
		require.NoError(t, dst.Close())
		return filename
	}

	expected := createSeparableSet(t)
	labels := mat.NewDense(8, 1, []float64{0, 0, 0, 0, 1, 1, 1, 1})
	set, err := ReadNpyInstanceSet(write("features.npy", expected.Features), write("labels.npy", labels))
	require.NoError(t, err)
	assert.True(t, mat.Equal(expected.Features, set.Features))
	assert.Equal(t, expected.Labels, set.Labels)

	fractional := mat.NewDense(8, 1, []float64{0, 0.5, 0, 0, 1, 1, 1, 1})
	_, err = ReadNpyInstanceSet(write("features.npy", expected.Features), write("fractional.npy", fractional))
	assert.Error(t, err)

	_, err = ReadNpyInstanceSet(filepath.Join(dir, "absent.npy"), write("labels.npy", labels))
	assert.Error(t, err)
}
