package rfl

import (
	"math"

	log "github.com/sirupsen/logrus"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

//ClassHistogram keeps weighted counts of class labels.
type ClassHistogram struct {
	counts []float64
	total  float64
}

//Add increases the count of label by weight.
func (h *ClassHistogram) Add(label int, weight float64) {
	for len(h.counts) <= label {
		h.counts = append(h.counts, 0)
	}
	h.counts[label] += weight
	h.total += weight
}

//Remove is the inverse of Add. Removing more than was added is a contract violation.
func (h *ClassHistogram) Remove(label int, weight float64) {
	if weight < 0 {
		log.Panicf("negative weight %g removed from label %d", weight, label)
	}
	if label >= len(h.counts) || h.counts[label] < weight {
		log.Panicf("histogram underflow: removing %g from label %d", weight, label)
	}
	h.counts[label] -= weight
	h.total -= weight
}

//Total returns the sum of all weights.
func (h *ClassHistogram) Total() float64 {
	return h.total
}

//Entropy returns the Shannon entropy in bits of the class proportions. An empty
//histogram and a histogram with a single class present have exactly zero entropy.
func (h *ClassHistogram) Entropy() float64 {
	total := floats.Sum(h.counts)
	present := 0
	for _, c := range h.counts {
		if c > 0 {
			present++
		}
	}
	if total <= 0 || present <= 1 {
		return 0
	}
	proportions := make([]float64, len(h.counts))
	for label, c := range h.counts {
		proportions[label] = c / total
	}
	e := stat.Entropy(proportions) / math.Ln2
	if e <= 0 {
		return 0
	}
	return e
}

//Mode returns the label with the largest weight, the smallest label on ties.
func (h *ClassHistogram) Mode() int {
	best := 0
	for label, count := range h.counts {
		if count > h.counts[best] {
			best = label
		}
	}
	return best
}

//ConditionalEntropy returns the weighted average of the entropies of both sides of
//a two-way partition.
func ConditionalEntropy(left, right *ClassHistogram) float64 {
	total := left.Total() + right.Total()
	if total <= 0 {
		return 0
	}
	return (left.Total()*left.Entropy() + right.Total()*right.Entropy()) / total
}
