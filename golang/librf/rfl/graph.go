package rfl

import (
	"fmt"
	"io"
	"strings"

	"github.com/goccy/go-graphviz"
	"github.com/goccy/go-graphviz/cgraph"
)

//GraphDescription returns the description of a node for tree rendering as a graph
func (node Node) GraphDescription(ind int) string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintln("id: ", ind))
	sb.WriteString(fmt.Sprintf("entropy: %6.4f\n", node.Entropy))
	if node.Status == NodeSplit {
		sb.WriteString(fmt.Sprintf("f_%d < %6.5f", node.Attribute, node.Threshold))
	} else {
		sb.WriteString(fmt.Sprint("label: ", node.Label))
	}
	return sb.String()
}

//DrawGraph builds a graphviz graph of the active nodes. Growth order lists parents before
//children, so one pass over ActiveNodes suffices.
func (t *Tree) DrawGraph() (*graphviz.Graphviz, *cgraph.Graph, error) {
	graphViz := graphviz.New()
	graph, err := graphViz.Graph()
	if err != nil {
		return nil, nil, err
	}

	drawn := make(map[int]*cgraph.Node, len(t.ActiveNodes))
	for _, ind := range t.ActiveNodes {
		node := t.Nodes[ind]
		currentNode, err := graph.CreateNode(fmt.Sprint(ind))
		if err != nil {
			return nil, nil, err
		}
		currentNode.Set("label", node.GraphDescription(ind))
		if node.Status == NodeTerminal {
			currentNode.Set("shape", "box")
		}
		drawn[ind] = currentNode

		if ind == 0 {
			continue
		}
		if parentNode, ok := drawn[(ind-1)/2]; ok {
			if _, err := graph.CreateEdge("", parentNode, currentNode); err != nil {
				return nil, nil, err
			}
		}
	}
	return graphViz, graph, nil
}

//RenderTo writes the tree picture in the given format ("dot", "svg", "png" or "jpg").
func (t *Tree) RenderTo(w io.Writer, format graphviz.Format) error {
	graphViz, graph, err := t.DrawGraph()
	if err != nil {
		return err
	}
	defer func() {
		_ = graph.Close()
		graphViz.Close()
	}()
	return graphViz.Render(graph, format, w)
}
