package rfl

import (
	"math"

	"github.com/emirpasic/gods/sets/treeset"
	log "github.com/sirupsen/logrus"
)

//MaxSupportedDepth bounds MaxDepth, the node array holds 2^MaxDepth slots.
const MaxSupportedDepth = 24

const (
	defaultMinNodeSize = 1
)

//NodeStatus is the state of a node slot.
type NodeStatus int

const (
	NodeAbsent NodeStatus = iota
	NodePending
	NodeTerminal
	NodeSplit
)

func (s NodeStatus) String() string {
	switch s {
	case NodePending:
		return "pending"
	case NodeTerminal:
		return "terminal"
	case NodeSplit:
		return "split"
	default:
		return "absent"
	}
}

//Node is a node of a tree. Tree is stored in an array: the children of node i live at 2i+1 and 2i+2.
//Start and Size address the node's instances inside every row of the sorted index table
//and are only meaningful while the tree grows.
type Node struct {
	Status    NodeStatus
	Depth     int
	Start     int
	Size      int
	Entropy   float64
	Label     int
	Attribute int     // valid for split nodes only
	Threshold float64 // valid for split nodes only
}

func leftChild(node int) int {
	return 2*node + 1
}

func rightChild(node int) int {
	return 2*node + 2
}

//Options collect the hyperparameters of one tree.
type Options struct {
	// The number of levels of the tree, nodes at depth MaxDepth-1 are always terminal
	MaxDepth int `json:"maxDepth" mapstructure:"max_depth"`

	// Nodes with at most this many instances are not split
	MinNodeSize int `json:"minNodeSize" mapstructure:"min_node_size"`

	// A split must gain strictly more information than this
	MinGain float64 `json:"minGain" mapstructure:"min_gain"`

	// The number of attributes sampled for every split
	K int `json:"k" mapstructure:"k"`
}

//SetDefaultValues applies default settings to unspecified fields
func (o *Options) SetDefaultValues(numAttributes int) {
	if o.MinNodeSize == 0 {
		o.MinNodeSize = defaultMinNodeSize
	}

	if o.K == 0 {
		o.K = int(math.Sqrt(float64(numAttributes)))
		if o.K < 1 {
			o.K = 1
		}
	}
}

//Tree is a single classification tree of a random forest. A tree built for training borrows the
//instance set and owns the weight list; a tree read from storage has neither.
type Tree struct {
	Nodes       []Node
	ActiveNodes []int
	MaxDepth    int

	options       Options
	splitNodes    int
	terminalNodes int
	varsUsed      *treeset.Set
	seed          uint64

	set     *InstanceSet
	weights *WeightList
	table   *SortedIndexTable
}

//TreeStats summarizes the shape of a tree.
type TreeStats struct {
	ActiveNodes   int
	SplitNodes    int
	TerminalNodes int
}

func newNodeArray(maxDepth int) []Node {
	if maxDepth < 1 || maxDepth > MaxSupportedDepth {
		log.Panicf("max depth %d is outside of [1, %d]", maxDepth, MaxSupportedDepth)
	}
	return make([]Node, 1<<maxDepth)
}

//NewTree prepares a tree to be grown on set with the given bootstrap weights. The tree takes
//ownership of weights. Call Grow to build it.
func NewTree(set *InstanceSet, weights *WeightList, options Options, seed uint64) *Tree {
	numAttributes := set.NumAttributes()
	options.SetDefaultValues(numAttributes)
	if numAttributes == 0 {
		log.Panic("cannot grow a tree on an instance set without attributes")
	}
	if options.K > numAttributes {
		log.Panicf("cannot sample %d attributes out of %d", options.K, numAttributes)
	}
	if weights.Size() != set.Size() {
		log.Panicf("%d weights for %d instances", weights.Size(), set.Size())
	}
	return &Tree{
		Nodes:    newNodeArray(options.MaxDepth),
		MaxDepth: options.MaxDepth,
		options:  options,
		varsUsed: treeset.NewWithIntComparator(),
		seed:     seed,
		set:      set,
		weights:  weights,
	}
}

//Grow builds the tree breadth first. The sorted index table lives only for the duration of the call.
func (t *Tree) Grow() {
	if t.set == nil {
		log.Panic("cannot grow a tree without training data")
	}
	if len(t.ActiveNodes) != 0 {
		log.Panic("tree is already grown")
	}
	t.table = NewSortedIndexTable(t.set)
	defer func() { t.table = nil }()

	t.buildTree()
	log.Debugf("grown tree: %d active, %d split, %d terminal nodes", len(t.ActiveNodes), t.splitNodes, t.terminalNodes)
}

func (t *Tree) buildTree() {
	t.markPending(0, 0, t.set.Size(), 0)
	t.ActiveNodes = append(t.ActiveNodes, 0)

	// ActiveNodes doubles as the FIFO queue: entries before front are resolved.
	for front := 0; front < len(t.ActiveNodes); front++ {
		current := t.ActiveNodes[front]
		if t.Nodes[current].Status != NodePending {
			log.Panicf("node %d is %v in the growth queue", current, t.Nodes[current].Status)
		}
		if t.buildNode(current) {
			t.ActiveNodes = append(t.ActiveNodes, leftChild(current), rightChild(current))
		}
	}
}

//buildNode resolves a pending node and reports whether it was split.
func (t *Tree) buildNode(nodeNum int) bool {
	n := &t.Nodes[nodeNum]

	var hist ClassHistogram
	for _, instance := range t.table.Range(0, n.Start, n.Size) {
		hist.Add(t.set.Label(instance), float64(t.weights.Get(instance)))
	}
	n.Entropy = hist.Entropy()
	n.Label = hist.Mode()

	if n.Size <= t.options.MinNodeSize || n.Entropy == 0 || n.Depth >= t.MaxDepth-1 {
		t.markTerminal(n)
		return false
	}

	attrs := RandomSample(t.set.NumAttributes(), t.options.K, &t.seed)
	best := t.findBestSplit(n, attrs)
	if !(best.gain > t.options.MinGain) {
		t.markTerminal(n)
		return false
	}

	if rightChild(nodeNum) >= len(t.Nodes) {
		log.Panicf("children of node %d exceed the node array of %d slots", nodeNum, len(t.Nodes))
	}
	leftSize := best.splitIndex - n.Start + 1
	rightSize := n.Size - leftSize
	t.table.SplitAt(best.attribute, n.Start, n.Size, leftSize)
	t.markSplit(n, best.attribute, best.threshold)
	t.markPending(leftChild(nodeNum), n.Start, leftSize, n.Depth+1)
	t.markPending(rightChild(nodeNum), n.Start+leftSize, rightSize, n.Depth+1)
	return true
}

func (t *Tree) markPending(nodeNum, start, size, depth int) {
	t.Nodes[nodeNum] = Node{Status: NodePending, Start: start, Size: size, Depth: depth}
}

func (t *Tree) markTerminal(n *Node) {
	n.Status = NodeTerminal
	t.terminalNodes++
}

func (t *Tree) markSplit(n *Node, attr int, threshold float64) {
	n.Status = NodeSplit
	n.Attribute = attr
	n.Threshold = threshold
	t.splitNodes++
	t.varsUsed.Add(attr)
}

//Stats returns the node counts of the tree.
func (t *Tree) Stats() TreeStats {
	return TreeStats{ActiveNodes: len(t.ActiveNodes), SplitNodes: t.splitNodes, TerminalNodes: t.terminalNodes}
}

//VarsUsed returns the attributes used by split nodes in ascending order.
func (t *Tree) VarsUsed() []int {
	values := t.varsUsed.Values()
	attrs := make([]int, len(values))
	for ind, v := range values {
		attrs[ind] = v.(int)
	}
	return attrs
}

//NumAttributesRequired returns one past the largest attribute a split node uses.
func (t *Tree) NumAttributesRequired() int {
	if t.varsUsed.Empty() {
		return 0
	}
	largest, _ := t.varsUsed.Values()[t.varsUsed.Size()-1].(int)
	return largest + 1
}
