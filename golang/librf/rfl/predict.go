package rfl

import (
	"math"

	log "github.com/sirupsen/logrus"
)

//Predict walks from the root to a terminal node: values strictly below the threshold go left.
func (t *Tree) Predict(set *InstanceSet, instance int) int {
	ind := 0
	for {
		n := &t.Nodes[ind]
		switch n.Status {
		case NodeTerminal:
			return n.Label
		case NodeSplit:
			if n.Attribute >= set.NumAttributes() {
				log.Panicf("node %d splits on attribute %d, the set has %d", ind, n.Attribute, set.NumAttributes())
			}
			if set.Attribute(instance, n.Attribute) < n.Threshold {
				ind = leftChild(ind)
			} else {
				ind = rightChild(ind)
			}
		default:
			log.Panicf("prediction reached node %d with status %v", ind, n.Status)
		}
	}
}

func (t *Tree) requireTrainingData() {
	if t.set == nil || t.weights == nil {
		log.Panic("tree has no training data attached")
	}
}

//OOBAccuracy returns the accuracy over the training instances with zero weight.
//It is NaN when every instance is in the bag.
func (t *Tree) OOBAccuracy() float64 {
	t.requireTrainingData()
	correct, total := 0, 0
	for i := 0; i < t.set.Size(); i++ {
		if t.weights.IsOutOfBag(i) {
			if t.Predict(t.set, i) == t.set.Label(i) {
				correct++
			}
			total++
		}
	}
	if total == 0 {
		return math.NaN()
	}
	return float64(correct) / float64(total)
}

//OOBCases marks every out-of-bag instance in either correct or incorrect.
func (t *Tree) OOBCases() (correct, incorrect *WeightList) {
	t.requireTrainingData()
	correct, incorrect = NewWeightList(t.set.Size()), NewWeightList(t.set.Size())
	for i := 0; i < t.set.Size(); i++ {
		if !t.weights.IsOutOfBag(i) {
			continue
		}
		if t.Predict(t.set, i) == t.set.Label(i) {
			correct.Add(i)
		} else {
			incorrect.Add(i)
		}
	}
	return
}

//TrainingAccuracy returns the accuracy over every training instance.
func (t *Tree) TrainingAccuracy() float64 {
	t.requireTrainingData()
	return t.TestingAccuracy(t.set)
}

//TestingAccuracy returns the accuracy over an arbitrary set sharing the attribute indexing.
//It is NaN for an empty set.
func (t *Tree) TestingAccuracy(set *InstanceSet) float64 {
	if set.Size() == 0 {
		return math.NaN()
	}
	correct := 0
	for i := 0; i < set.Size(); i++ {
		if t.Predict(set, i) == set.Label(i) {
			correct++
		}
	}
	return float64(correct) / float64(set.Size())
}
