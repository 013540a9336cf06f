package rfl

import (
	"math"
)

//BestSplit contains results of the split selection algorithm. splitIndex is the position,
//inside the attribute's sorted row, of the last instance that goes to the left child.
type BestSplit struct {
	attribute  int
	splitIndex int
	threshold  float64
	gain       float64
}

//noSplit is reported when no threshold exists.
func noSplit(attribute int) BestSplit {
	return BestSplit{attribute: attribute, splitIndex: -1, gain: math.Inf(-1)}
}

func (split BestSplit) valid() bool {
	return !math.IsInf(split.gain, -1)
}

//evaluate scans the node's range in the order of attr, moving one instance at a time
//from the right histogram to the left one. Thresholds are only considered between two
//strictly increasing consecutive values. The first maximum wins.
func (t *Tree) evaluate(n *Node, attr int, priorEntropy float64) BestSplit {
	best := noSplit(attr)
	if n.Size < 2 {
		return best
	}
	row := t.table.Range(attr, n.Start, n.Size)

	var left, right ClassHistogram
	for _, instance := range row {
		right.Add(t.set.Label(instance), float64(t.weights.Get(instance)))
	}

	nextValue := t.set.Attribute(row[0], attr)
	for ind := 0; ind < len(row)-1; ind++ {
		current := row[ind]
		label, weight := t.set.Label(current), float64(t.weights.Get(current))
		right.Remove(label, weight)
		left.Add(label, weight)

		currentValue := nextValue
		nextValue = t.set.Attribute(row[ind+1], attr)
		if currentValue < nextValue {
			gain := priorEntropy - ConditionalEntropy(&left, &right)
			if gain > best.gain {
				best.gain = gain
				best.splitIndex = n.Start + ind
				best.threshold = (currentValue + nextValue) / 2
			}
		}
	}
	return best
}

//findBestSplit evaluates every candidate attribute and keeps the first best one.
func (t *Tree) findBestSplit(n *Node, attrs []int) BestSplit {
	best := noSplit(-1)
	for _, attr := range attrs {
		current := t.evaluate(n, attr, n.Entropy)
		if current.gain > best.gain {
			best = current
		}
	}
	return best
}
