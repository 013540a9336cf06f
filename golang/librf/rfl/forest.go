package rfl

import (
	"bufio"
	"fmt"
	"io"
	"math"
	"os"
	"path"

	"github.com/goccy/go-graphviz"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

const (
	defaultNumTrees = 10
	defaultSeed     = 1
	forestHeader    = "RF:"
)

//ForestOptions collect arguments required to construct a forest.
type ForestOptions struct {
	// The number of trees to grow
	NumTrees int `json:"numTrees" mapstructure:"num_trees"`

	// Options shared by every tree
	Tree Options `json:"tree" mapstructure:"tree"`

	// The seed every bootstrap sample and every tree seed derive from
	Seed uint64 `json:"seed" mapstructure:"seed"`
}

//SetDefaultValues applies default settings to unspecified fields
func (o *ForestOptions) SetDefaultValues() {
	if o.NumTrees == 0 {
		o.NumTrees = defaultNumTrees
	}

	if o.Seed == 0 {
		o.Seed = defaultSeed
	}
}

//RandomForest is a bag of trees grown one after another on bootstrap samples of one instance set.
type RandomForest struct {
	Trees []*Tree
	set   *InstanceSet
}

//NewRandomForest grows the forest. Every tree gets its own weight list and seed.
func NewRandomForest(set *InstanceSet, options ForestOptions) *RandomForest {
	options.SetDefaultValues()
	forest := &RandomForest{Trees: make([]*Tree, 0, options.NumTrees), set: set}
	seed := options.Seed

	for stage := 0; stage < options.NumTrees; stage++ {
		weights := Bootstrap(set.Size(), &seed)
		tree := NewTree(set, weights, options.Tree, nextSeed(&seed))
		tree.Grow()
		forest.Trees = append(forest.Trees, tree)
		log.Infof("tree number %d: %d nodes, oob accuracy %.4f", stage+1, len(tree.ActiveNodes), tree.OOBAccuracy())
	}
	return forest
}

//votes counts the predictions of the trees accepted by use.
func (forest *RandomForest) votes(set *InstanceSet, instance int, use func(*Tree) bool) *ClassHistogram {
	var hist ClassHistogram
	for _, tree := range forest.Trees {
		if use(tree) {
			hist.Add(tree.Predict(set, instance), 1)
		}
	}
	return &hist
}

func allTrees(*Tree) bool { return true }

//CheckAttributes reports an error when a tree splits on an attribute set does not have.
func (forest *RandomForest) CheckAttributes(set *InstanceSet) error {
	for ind, tree := range forest.Trees {
		if required := tree.NumAttributesRequired(); required > set.NumAttributes() {
			return errors.Errorf("tree %d needs %d attributes, the set has %d", ind, required, set.NumAttributes())
		}
	}
	return nil
}

//Predict returns the majority vote, the smallest label on ties.
func (forest *RandomForest) Predict(set *InstanceSet, instance int) int {
	return forest.votes(set, instance, allTrees).Mode()
}

//PredictProb returns the share of trees voting for label.
func (forest *RandomForest) PredictProb(set *InstanceSet, instance, label int) float64 {
	if len(forest.Trees) == 0 {
		return math.NaN()
	}
	hits := 0
	for _, tree := range forest.Trees {
		if tree.Predict(set, instance) == label {
			hits++
		}
	}
	return float64(hits) / float64(len(forest.Trees))
}

//OOBAccuracy scores every training instance with the trees it was out-of-bag for. Instances that
//were in every bag are skipped; NaN if no instance remains.
func (forest *RandomForest) OOBAccuracy() float64 {
	if forest.set == nil {
		log.Panic("forest has no training data attached")
	}
	correct, total := 0, 0
	for i := 0; i < forest.set.Size(); i++ {
		hist := forest.votes(forest.set, i, func(tree *Tree) bool { return tree.weights.IsOutOfBag(i) })
		if hist.Total() == 0 {
			continue
		}
		if hist.Mode() == forest.set.Label(i) {
			correct++
		}
		total++
	}
	if total == 0 {
		return math.NaN()
	}
	return float64(correct) / float64(total)
}

//TestingAccuracy returns the accuracy of the majority vote over set.
func (forest *RandomForest) TestingAccuracy(set *InstanceSet) float64 {
	if set.Size() == 0 {
		return math.NaN()
	}
	correct := 0
	for i := 0; i < set.Size(); i++ {
		if forest.Predict(set, i) == set.Label(i) {
			correct++
		}
	}
	return float64(correct) / float64(set.Size())
}

//VariableImportance averages the per-tree importance over the trees with out-of-bag instances.
//A tree that does not split on an attribute contributes zero to it.
func (forest *RandomForest) VariableImportance(seed *uint64) map[int]float64 {
	if forest.set == nil {
		log.Panic("forest has no training data attached")
	}
	sum := make(map[int]float64)
	counted := 0
	for _, tree := range forest.Trees {
		if tree.weights.OutOfBagCount() == 0 {
			continue
		}
		for attr, score := range tree.VariableImportance(seed) {
			sum[attr] += score
		}
		counted++
	}
	for attr := range sum {
		sum[attr] /= float64(counted)
	}
	return sum
}

//Write saves the forest as a header line followed by every tree.
func (forest *RandomForest) Write(w io.Writer) error {
	if _, err := fmt.Fprintf(w, "%s %d\n", forestHeader, len(forest.Trees)); err != nil {
		return errors.Wrap(err, "writing forest header")
	}
	for ind, tree := range forest.Trees {
		if err := tree.Write(w); err != nil {
			return errors.Wrapf(err, "writing tree %d", ind)
		}
	}
	return nil
}

//Save writes the forest into a file.
func (forest *RandomForest) Save(filename string) error {
	dest, err := os.Create(filename)
	if err != nil {
		return errors.Wrapf(err, "can't open file %s to write", filename)
	}
	if err := forest.Write(dest); err != nil {
		_ = dest.Close()
		return err
	}
	return dest.Close()
}

//ReadRandomForest loads a forest written by Write. It can predict but carries no training data.
func ReadRandomForest(r io.Reader) (*RandomForest, error) {
	br := bufio.NewReader(r)
	var header string
	var numTrees int
	if _, err := fmt.Fscan(br, &header, &numTrees); err != nil {
		return nil, errors.Wrap(err, "reading forest header")
	}
	if header != forestHeader || numTrees < 0 {
		return nil, errors.Errorf("malformed forest header %q %d", header, numTrees)
	}
	forest := &RandomForest{Trees: make([]*Tree, 0, numTrees)}
	for ind := 0; ind < numTrees; ind++ {
		tree, err := ReadTree(br)
		if err != nil {
			return nil, errors.Wrapf(err, "reading tree %d", ind)
		}
		forest.Trees = append(forest.Trees, tree)
	}
	return forest, nil
}

//LoadModel reads a forest from a file.
func LoadModel(filename string) (*RandomForest, error) {
	source, err := os.Open(filename)
	if err != nil {
		return nil, errors.Wrapf(err, "opening model %s", filename)
	}
	defer func() { _ = source.Close() }()
	return ReadRandomForest(source)
}

//RenderTrees renders every tree into picturesDirectory as <dumpPrefix>_<index>.<figureType>.
func (forest *RandomForest) RenderTrees(dumpPrefix, figureType, picturesDirectory string) error {
	graphvizType, ok := map[string]graphviz.Format{
		"dot": graphviz.XDOT,
		"png": graphviz.PNG,
		"svg": graphviz.SVG,
		"jpg": graphviz.JPG,
	}[figureType]
	if !ok {
		return errors.Errorf("unsupported figure type %q", figureType)
	}

	for graphInd, currentTree := range forest.Trees {
		filename := fmt.Sprintf("%s_%05d.%s", dumpPrefix, graphInd, figureType)
		graphViz, graph, err := currentTree.DrawGraph()
		if err != nil {
			return err
		}
		err = graphViz.RenderFilename(graph, graphvizType, path.Join(picturesDirectory, filename))
		_ = graph.Close()
		graphViz.Close()
		if err != nil {
			return errors.Wrapf(err, "rendering %s", filename)
		}
	}
	return nil
}
