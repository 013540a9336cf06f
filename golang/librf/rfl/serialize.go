package rfl

import (
	"bufio"
	"fmt"
	"io"
	"math/bits"
	"strconv"

	"github.com/emirpasic/gods/sets/treeset"
	"github.com/pkg/errors"
)

const treeHeader = "Tree:"

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}

//Write saves the active nodes in growth order:
//
//	Tree: <active node count> <max depth>
//	<node index> <status> <depth> <label> <entropy> [<attribute> <threshold>]
//
//attribute and threshold are present for split nodes only.
func (t *Tree) Write(w io.Writer) error {
	bw := bufio.NewWriter(w)
	if _, err := fmt.Fprintf(bw, "%s %d %d\n", treeHeader, len(t.ActiveNodes), t.MaxDepth); err != nil {
		return errors.Wrap(err, "writing tree header")
	}
	for _, ind := range t.ActiveNodes {
		n := t.Nodes[ind]
		line := fmt.Sprintf("%d %d %d %d %s", ind, int(n.Status), n.Depth, n.Label, formatFloat(n.Entropy))
		if n.Status == NodeSplit {
			line += fmt.Sprintf(" %d %s", n.Attribute, formatFloat(n.Threshold))
		}
		if _, err := fmt.Fprintln(bw, line); err != nil {
			return errors.Wrapf(err, "writing node %d", ind)
		}
	}
	return errors.Wrap(bw.Flush(), "flushing tree")
}

//readAheadLimit bounds the allocation made on the word of a header alone.
const readAheadLimit = 1024

type listedNode struct {
	ind  int
	node Node
}

//ReadTree loads a tree written by Write. Only the listed node slots are populated. The node
//array is sized by the deepest listed node, not by the header, and the returned tree can
//predict but carries no training data.
func ReadTree(r io.Reader) (*Tree, error) {
	br, ok := r.(*bufio.Reader)
	if !ok {
		br = bufio.NewReader(r)
	}

	var header string
	var numActive, maxDepth int
	if _, err := fmt.Fscan(br, &header, &numActive, &maxDepth); err != nil {
		return nil, errors.Wrap(err, "reading tree header")
	}
	if header != treeHeader {
		return nil, errors.Errorf("unexpected tree header %q", header)
	}
	if maxDepth < 1 || maxDepth > MaxSupportedDepth {
		return nil, errors.Errorf("max depth %d is outside of [1, %d]", maxDepth, MaxSupportedDepth)
	}
	capacity := 1 << maxDepth
	if numActive < 1 || numActive > capacity {
		return nil, errors.Errorf("%d active nodes do not fit a tree of %d slots", numActive, capacity)
	}

	listed := make([]listedNode, 0, min(numActive, readAheadLimit))
	deepest := 0
	for p := 0; p < numActive; p++ {
		ind, n, err := readNode(br, capacity)
		if err != nil {
			return nil, errors.Wrapf(err, "reading node %d of %d", p+1, numActive)
		}
		if n.Depth > deepest {
			deepest = n.Depth
		}
		listed = append(listed, listedNode{ind: ind, node: n})
	}

	t := &Tree{
		Nodes:       make([]Node, 1<<(deepest+1)),
		ActiveNodes: make([]int, 0, len(listed)),
		MaxDepth:    maxDepth,
		options:     Options{MaxDepth: maxDepth},
		varsUsed:    treeset.NewWithIntComparator(),
	}
	for _, entry := range listed {
		if t.Nodes[entry.ind].Status != NodeAbsent {
			return nil, errors.Errorf("node %d listed twice", entry.ind)
		}
		t.Nodes[entry.ind] = entry.node
		t.ActiveNodes = append(t.ActiveNodes, entry.ind)
		if entry.node.Status == NodeSplit {
			t.splitNodes++
			t.varsUsed.Add(entry.node.Attribute)
		} else {
			t.terminalNodes++
		}
	}
	if err := t.validateStructure(); err != nil {
		return nil, err
	}
	return t, nil
}

//readNode reads one node line. The depth must match the position of the index in the
//implicit layout, which bounds the index by the depth.
func readNode(br *bufio.Reader, capacity int) (int, Node, error) {
	var ind, status int
	var n Node
	if _, err := fmt.Fscan(br, &ind, &status); err != nil {
		return 0, n, err
	}
	if ind < 0 || ind >= capacity {
		return 0, n, errors.Errorf("node index %d out of range [0, %d)", ind, capacity)
	}

	if _, err := fmt.Fscan(br, &n.Depth, &n.Label, &n.Entropy); err != nil {
		return 0, n, errors.Wrapf(err, "node %d", ind)
	}
	if n.Depth != bits.Len(uint(ind+1))-1 {
		return 0, n, errors.Errorf("node %d cannot lie at depth %d", ind, n.Depth)
	}
	if n.Label < 0 {
		return 0, n, errors.Errorf("node %d has label %d", ind, n.Label)
	}
	switch NodeStatus(status) {
	case NodeTerminal:
		n.Status = NodeTerminal
	case NodeSplit:
		n.Status = NodeSplit
		if _, err := fmt.Fscan(br, &n.Attribute, &n.Threshold); err != nil {
			return 0, n, errors.Wrapf(err, "split fields of node %d", ind)
		}
		if n.Attribute < 0 {
			return 0, n, errors.Errorf("node %d splits on attribute %d", ind, n.Attribute)
		}
	default:
		return 0, n, errors.Errorf("node %d has unknown status %d", ind, status)
	}
	return ind, n, nil
}

//validateStructure checks that every walk from the root ends in a terminal node.
func (t *Tree) validateStructure() error {
	if t.Nodes[0].Status == NodeAbsent {
		return errors.New("tree has no root node")
	}
	for _, ind := range t.ActiveNodes {
		if t.Nodes[ind].Status != NodeSplit {
			continue
		}
		left, right := leftChild(ind), rightChild(ind)
		if right >= len(t.Nodes) || t.Nodes[left].Status == NodeAbsent || t.Nodes[right].Status == NodeAbsent {
			return errors.Errorf("split node %d lacks children", ind)
		}
	}
	return nil
}
