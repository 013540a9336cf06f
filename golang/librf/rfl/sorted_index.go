package rfl

import (
	log "github.com/sirupsen/logrus"
	"gorgonia.org/tensor"
)

//SortedIndexTable holds, for every attribute, the training instance ids ordered by that
//attribute. Tree nodes own contiguous ranges [start, start+size) of every row, and within
//such a range all rows hold the same set of instance ids.
type SortedIndexTable struct {
	storage  *tensor.Dense
	moveLeft []bool
	temp     []int
}

//NewSortedIndexTable copies the global orderings of the instance set into an
//attributes x instances tensor.
func NewSortedIndexTable(set *InstanceSet) *SortedIndexTable {
	numAttributes, numInstances := set.NumAttributes(), set.Size()
	storage := tensor.New(tensor.WithShape(numAttributes, numInstances), tensor.Of(tensor.Int))
	for attr := 0; attr < numAttributes; attr++ {
		for pos, instance := range set.SortedIndices(attr) {
			HandleError(storage.SetAt(instance, attr, pos))
		}
	}
	return &SortedIndexTable{
		storage:  storage,
		moveLeft: make([]bool, numInstances),
		temp:     make([]int, numInstances),
	}
}

//NumAttributes returns the number of rows of the table.
func (t *SortedIndexTable) NumAttributes() int {
	return t.storage.Shape()[0]
}

//NumInstances returns the length of every row.
func (t *SortedIndexTable) NumInstances() int {
	return t.storage.Shape()[1]
}

func (t *SortedIndexTable) at(attr, pos int) int {
	element, err := t.storage.At(attr, pos)
	HandleError(err)
	return element.(int)
}

//Range returns a copy of the instance ids of attr within [start, start+size).
func (t *SortedIndexTable) Range(attr, start, size int) []int {
	row := make([]int, size)
	for p := range row {
		row[p] = t.at(attr, start+p)
	}
	return row
}

//PartitionRange stably moves, in every row, the instances within [start, start+size) for which
//isLeft holds to the front of the range. It returns the number of such instances, which does
//not depend on the row since isLeft only looks at the instance id.
func (t *SortedIndexTable) PartitionRange(start, size int, isLeft func(instance int) bool) int {
	boundary := 0
	for _, instance := range t.Range(0, start, size) {
		if isLeft(instance) {
			boundary++
		}
	}

	for attr := 0; attr < t.NumAttributes(); attr++ {
		row := t.Range(attr, start, size)
		left, right := 0, boundary
		for _, instance := range row {
			if isLeft(instance) {
				t.temp[left] = instance
				left++
			} else {
				t.temp[right] = instance
				right++
			}
		}
		if left != boundary {
			log.Panicf("attribute %d holds %d left instances in [%d, %d), expected %d", attr, left, start, start+size, boundary)
		}
		for p := 0; p < size; p++ {
			HandleError(t.storage.SetAt(t.temp[p], attr, start+p))
		}
	}
	return boundary
}

//SplitAt partitions the range so that the first leftSize instances of attr's ordering form
//the left part in every row.
func (t *SortedIndexTable) SplitAt(attr, start, size, leftSize int) {
	for _, instance := range t.Range(attr, start, size) {
		t.moveLeft[instance] = false
	}
	for _, instance := range t.Range(attr, start, leftSize) {
		t.moveLeft[instance] = true
	}
	marks := t.moveLeft
	boundary := t.PartitionRange(start, size, func(instance int) bool { return marks[instance] })
	if boundary != leftSize {
		log.Panicf("partition of attribute %d produced %d left instances, expected %d", attr, boundary, leftSize)
	}
}
