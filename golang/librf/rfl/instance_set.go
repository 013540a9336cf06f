package rfl

import (
	"io"
	"math"
	"os"
	"sort"

	"github.com/go-gota/gota/dataframe"
	"github.com/pkg/errors"
	"github.com/sbinet/npyio"
	log "github.com/sirupsen/logrus"
	"go.uber.org/multierr"
	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/mat"
)

//InstanceSet stores labeled instances with numeric features: one row per instance,
//one column per attribute. For every attribute it keeps the instance ids sorted by
//that attribute's value.
type InstanceSet struct {
	Features       *mat.Dense
	Labels         []int
	AttributeNames []string
	sortedIndices  [][]int
	numClasses     int
}

//NewInstanceSet validates features and labels and precomputes the per-attribute orderings.
//The feature matrix is not copied.
func NewInstanceSet(features *mat.Dense, labels []int) (*InstanceSet, error) {
	h, w := features.Dims()
	var err error
	if h != len(labels) {
		err = multierr.Append(err, errors.Errorf("%d feature rows but %d labels", h, len(labels)))
	}
	numClasses := 0
	for p, label := range labels {
		if label < 0 {
			err = multierr.Append(err, errors.Errorf("instance %d has negative label %d", p, label))
		}
		if label+1 > numClasses {
			numClasses = label + 1
		}
	}
	for p := 0; p < h; p++ {
		for q := 0; q < w; q++ {
			if math.IsNaN(features.At(p, q)) {
				err = multierr.Append(err, errors.Errorf("instance %d has a missing value for attribute %d", p, q))
			}
		}
	}
	if err != nil {
		return nil, errors.Wrap(err, "invalid instance set")
	}

	set := &InstanceSet{Features: features, Labels: labels, numClasses: numClasses}
	set.sortIndices()
	return set, nil
}

//sortIndices performs a stable argsort of every column. Equal values keep instance id order.
func (set *InstanceSet) sortIndices() {
	h, w := set.Features.Dims()
	set.sortedIndices = make([][]int, w)
	for q := 0; q < w; q++ {
		indices := make([]int, h)
		for p := range indices {
			indices[p] = p
		}
		sort.SliceStable(indices, func(i, j int) bool {
			return set.Features.At(indices[i], q) < set.Features.At(indices[j], q)
		})
		set.sortedIndices[q] = indices
	}
}

//Size returns the number of instances.
func (set *InstanceSet) Size() int {
	if set.Features == nil {
		return 0
	}
	h, _ := set.Features.Dims()
	return h
}

//NumAttributes returns the number of attributes.
func (set *InstanceSet) NumAttributes() int {
	if set.Features == nil {
		return 0
	}
	_, w := set.Features.Dims()
	return w
}

//NumClasses returns one past the largest label.
func (set *InstanceSet) NumClasses() int {
	return set.numClasses
}

//Label returns the class of instance i.
func (set *InstanceSet) Label(i int) int {
	return set.Labels[i]
}

//Attribute returns the value of attribute attr for instance i.
func (set *InstanceSet) Attribute(i, attr int) float64 {
	return set.Features.At(i, attr)
}

//SortedIndices returns the instance ids ordered by the value of attr. The slice must not be modified.
func (set *InstanceSet) SortedIndices(attr int) []int {
	return set.sortedIndices[attr]
}

//SaveVar returns a copy of the values of attr.
func (set *InstanceSet) SaveVar(attr int) []float64 {
	return mat.Col(nil, attr, set.Features)
}

//LoadVar overwrites the values of attr.
func (set *InstanceSet) LoadVar(attr int, values []float64) {
	if len(values) != set.Size() {
		log.Panicf("loading %d values into an attribute of %d instances", len(values), set.Size())
	}
	set.Features.SetCol(attr, values)
}

//Permute shuffles the values of attr among the instances. The sorted orderings are
//left untouched, they only serve tree growth.
func (set *InstanceSet) Permute(attr int, seed *uint64) {
	values := set.SaveVar(attr)
	withSeed(seed, func(src rand.Source) {
		rand.New(src).Shuffle(len(values), func(i, j int) {
			values[i], values[j] = values[j], values[i]
		})
	})
	set.LoadVar(attr, values)
}

//Subset copies the instances for which keep returns true into a new set.
func (set *InstanceSet) Subset(keep func(i int) bool) *InstanceSet {
	h, w := set.Features.Dims()
	rows := make([]int, 0, h)
	for p := 0; p < h; p++ {
		if keep(p) {
			rows = append(rows, p)
		}
	}

	subset := &InstanceSet{AttributeNames: set.AttributeNames, numClasses: set.numClasses}
	subset.Labels = make([]int, len(rows))
	if len(rows) == 0 {
		subset.sortedIndices = make([][]int, w)
		return subset
	}
	subset.Features = mat.NewDense(len(rows), w, nil)
	for ind, p := range rows {
		subset.Features.SetRow(ind, mat.Row(nil, p, set.Features))
		subset.Labels[ind] = set.Labels[p]
	}
	subset.sortIndices()
	return subset
}

//OutOfBagSubset copies the instances whose weight is zero.
func (set *InstanceSet) OutOfBagSubset(weights *WeightList) *InstanceSet {
	return set.Subset(weights.IsOutOfBag)
}

//ReadNpyInstanceSet reads a 2d feature matrix and a label vector from two npy files.
//Labels are stored as float64 and must hold non-negative integers.
func ReadNpyInstanceSet(fileNameFeatures, fileNameLabels string) (*InstanceSet, error) {
	log.Print("\ttry to load features <", fileNameFeatures, ">")
	features, err := ReadNpy(fileNameFeatures)
	if err != nil {
		return nil, err
	}
	log.Print("\ttry to load labels <", fileNameLabels, ">")
	rawLabels, err := ReadNpy(fileNameLabels)
	if err != nil {
		return nil, err
	}
	r, c := rawLabels.Dims()
	if c != 1 {
		return nil, errors.Errorf("labels in %s should be a single column, got %d", fileNameLabels, c)
	}
	labels := make([]int, r)
	for p := 0; p < r; p++ {
		v := rawLabels.At(p, 0)
		if v != math.Trunc(v) {
			return nil, errors.Errorf("label %g of instance %d is not an integer", v, p)
		}
		labels[p] = int(v)
	}
	return NewInstanceSet(features, labels)
}

//ReadNpy reads the content of npy file
func ReadNpy(fileName string) (*mat.Dense, error) {
	f, err := os.Open(fileName)
	if err != nil {
		return nil, errors.Wrapf(err, "opening %s", fileName)
	}
	defer func() { _ = f.Close() }()

	r, err := npyio.NewReader(f)
	if err != nil {
		return nil, errors.Wrapf(err, "reading npy header of %s", fileName)
	}

	denseMat := &mat.Dense{}
	if err := r.Read(denseMat); err != nil {
		return nil, errors.Wrapf(err, "reading npy data of %s", fileName)
	}
	return denseMat, nil
}

//ReadCSVInstanceSet reads a CSV stream with a header. The column named labelColumn
//holds the labels, every other column is a numeric attribute.
func ReadCSVInstanceSet(reader io.Reader, labelColumn string) (*InstanceSet, error) {
	df := dataframe.ReadCSV(reader)
	if df.Err != nil {
		return nil, errors.Wrap(df.Err, "parsing csv")
	}

	var names []string
	for _, name := range df.Names() {
		if name != labelColumn {
			names = append(names, name)
		}
	}
	if len(names) == len(df.Names()) {
		return nil, errors.Errorf("label column %q not found", labelColumn)
	}
	labels, err := df.Col(labelColumn).Int()
	if err != nil {
		return nil, errors.Wrapf(err, "reading label column %q", labelColumn)
	}

	h := df.Nrow()
	if h == 0 || len(names) == 0 {
		return nil, errors.New("csv holds no instances or no attributes")
	}
	features := mat.NewDense(h, len(names), nil)
	for q, name := range names {
		features.SetCol(q, df.Col(name).Float())
	}

	set, err := NewInstanceSet(features, labels)
	if err != nil {
		return nil, err
	}
	set.AttributeNames = names
	return set, nil
}
