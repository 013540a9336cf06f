package rfl

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func trainForest(t *testing.T) (*InstanceSet, *RandomForest) {
	t.Helper()
	set := createRandomSet(t, 200, 5, 3, 13)
	forest := NewRandomForest(set, ForestOptions{NumTrees: 6, Tree: Options{MaxDepth: 6}, Seed: 3})
	return set, forest
}

func TestRandomForestTraining(t *testing.T) {
	set, forest := trainForest(t)
	require.Len(t, forest.Trees, 6)

	oob := forest.OOBAccuracy()
	assert.GreaterOrEqual(t, oob, 0.0)
	assert.LessOrEqual(t, oob, 1.0)

	training := forest.TestingAccuracy(set)
	assert.GreaterOrEqual(t, training, oob)

	for i := 0; i < 20; i++ {
		sum := 0.0
		for label := 0; label < set.NumClasses(); label++ {
			sum += forest.PredictProb(set, i, label)
		}
		assert.InDelta(t, 1.0, sum, 1e-12)
		predicted := forest.Predict(set, i)
		for label := 0; label < set.NumClasses(); label++ {
			assert.GreaterOrEqual(t, forest.PredictProb(set, i, predicted), forest.PredictProb(set, i, label))
		}
	}
}

func TestRandomForestIsDeterministic(t *testing.T) {
	_, first := trainForest(t)
	_, second := trainForest(t)

	var a, b bytes.Buffer
	require.NoError(t, first.Write(&a))
	require.NoError(t, second.Write(&b))
	assert.Equal(t, a.String(), b.String())
}

func TestRandomForestTreesDiffer(t *testing.T) {
	_, forest := trainForest(t)
	var a, b bytes.Buffer
	require.NoError(t, forest.Trees[0].Write(&a))
	require.NoError(t, forest.Trees[1].Write(&b))
	assert.NotEqual(t, a.String(), b.String())
}

func TestRandomForestSeparableSet(t *testing.T) {
	set := createSeparableSet(t)
	forest := NewRandomForest(set, ForestOptions{NumTrees: 15, Tree: Options{MaxDepth: 3, K: 2}})
	assert.Len(t, forest.Trees, 15)
	assert.GreaterOrEqual(t, forest.TestingAccuracy(set), 0.875)
}

func TestRandomForestWriteRead(t *testing.T) {
	set, forest := trainForest(t)

	var buf bytes.Buffer
	require.NoError(t, forest.Write(&buf))
	written := buf.String()
	assert.True(t, strings.HasPrefix(written, "RF: 6\nTree: "))

	loaded, err := ReadRandomForest(strings.NewReader(written))
	require.NoError(t, err)
	require.Len(t, loaded.Trees, 6)
	for i := 0; i < set.Size(); i++ {
		assert.Equal(t, forest.Predict(set, i), loaded.Predict(set, i))
	}
	assert.Equal(t, forest.TestingAccuracy(set), loaded.TestingAccuracy(set))
	assert.Panics(t, func() { loaded.OOBAccuracy() })

	var again bytes.Buffer
	require.NoError(t, loaded.Write(&again))
	assert.Equal(t, written, again.String())

	filename := filepath.Join(t.TempDir(), "model.rf")
	require.NoError(t, forest.Save(filename))
	fromFile, err := LoadModel(filename)
	require.NoError(t, err)
	assert.Len(t, fromFile.Trees, 6)

	_, err = LoadModel(filepath.Join(t.TempDir(), "absent.rf"))
	assert.Error(t, err)
}

func TestReadRandomForestRejectsMalformedInput(t *testing.T) {
	for _, input := range []string{
		"",
		"Forest: 1\n",
		"RF: -1\n",
		"RF: 2\nTree: 1 2\n0 2 0 0 0\n",
	} {
		_, err := ReadRandomForest(strings.NewReader(input))
		assert.Error(t, err, "input %q", input)
	}

	forest, err := ReadRandomForest(strings.NewReader("RF: 0\n"))
	require.NoError(t, err)
	assert.Empty(t, forest.Trees)
}

func TestRandomForestVariableImportance(t *testing.T) {
	set, forest := trainForest(t)
	before := set.SaveVar(0)

	seed := uint64(5)
	importance := forest.VariableImportance(&seed)
	assert.NotEmpty(t, importance)
	for attr, score := range importance {
		assert.GreaterOrEqual(t, attr, 0)
		assert.Less(t, attr, set.NumAttributes())
		assert.GreaterOrEqual(t, score, -1.0)
		assert.LessOrEqual(t, score, 1.0)
	}
	assert.Equal(t, before, set.SaveVar(0))
}

func TestRandomForestRenderTrees(t *testing.T) {
	set := createSeparableSet(t)
	forest := NewRandomForest(set, ForestOptions{NumTrees: 2, Tree: Options{MaxDepth: 3, K: 2}})

	dir := t.TempDir()
	require.NoError(t, forest.RenderTrees("tree", "dot", dir))
	for ind := range forest.Trees {
		content, err := os.ReadFile(filepath.Join(dir, fmt.Sprintf("tree_%05d.dot", ind)))
		require.NoError(t, err)
		assert.Contains(t, string(content), "digraph")
	}

	assert.Error(t, forest.RenderTrees("tree", "bmp", dir))
}

func TestRandomForestCheckAttributes(t *testing.T) {
	set := createSeparableSet(t)
	forest, err := ReadRandomForest(strings.NewReader(
		"RF: 2\nTree: 1 2\n0 2 0 0 0\nTree: 3 2\n0 3 0 0 1 5 4.5\n1 2 1 0 0\n2 2 1 1 0\n"))
	require.NoError(t, err)

	assert.Equal(t, 0, forest.Trees[0].NumAttributesRequired())
	assert.Equal(t, 6, forest.Trees[1].NumAttributesRequired())
	assert.Error(t, forest.CheckAttributes(set))
	assert.Panics(t, func() { forest.Predict(set, 0) })

	_, trained := trainForest(t)
	assert.NoError(t, trained.CheckAttributes(createRandomSet(t, 10, 5, 3, 1)))
	assert.Error(t, trained.CheckAttributes(set))
}
