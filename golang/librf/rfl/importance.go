package rfl

//VariableImportance permutes, one at a time, every attribute used by a split node inside a
//copy of the out-of-bag instances and records the drop of accuracy. Scores may be negative.
//Attributes never used for splitting are absent from the result. Without out-of-bag
//instances every score is NaN.
func (t *Tree) VariableImportance(seed *uint64) map[int]float64 {
	t.requireTrainingData()
	subset := t.set.OutOfBagSubset(t.weights)
	baseline := t.OOBAccuracy()

	score := make(map[int]float64)
	for _, attr := range t.VarsUsed() {
		if subset.Size() == 0 {
			score[attr] = baseline
			continue
		}
		backup := subset.SaveVar(attr)
		subset.Permute(attr, seed)
		score[attr] = baseline - t.TestingAccuracy(subset)
		subset.LoadVar(attr, backup)
	}
	return score
}
