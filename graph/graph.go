// Package graph provides a small execution-flow graph with conditional
// branching, loop protection, and per-node observation hooks.
package graph

import (
	"context"
	"fmt"
)

// NodeType represents the type of a node in the graph
type NodeType string

const (
	NodeTypeStart     NodeType = "start"
	NodeTypeEnd       NodeType = "end"
	NodeTypeCondition NodeType = "condition"
	NodeTypeCustom    NodeType = "custom"
)

// State represents the execution state passed between nodes
type State map[string]any

// NodeFunc is the function executed by a node
type NodeFunc func(context.Context, State) (State, error)

// ConditionFunc evaluates a condition and returns the next node name
type ConditionFunc func(context.Context, State) (string, error)

// Observer is invoked after a node's Execute completes successfully, with
// the node name and the state it produced. Condition nodes do not fire the
// observer: they route, they don't produce.
type Observer func(ctx context.Context, node string, state State)

// Node represents a node in the execution graph
type Node struct {
	Name           string
	Type           NodeType
	Execute        NodeFunc
	Condition      ConditionFunc     // Only for condition nodes
	NextNodes      []string          // Outgoing edges (order defines default)
	NextMap        map[string]string // For condition nodes: condition result -> next node
	WaitAllParents bool              // Whether execution waits for all parents to finish
}

// Graph represents an execution flow graph
type Graph struct {
	nodes     map[string]*Node
	startNode string
	endNode   string
	maxVisits int
	observer  Observer
}

// NewGraph creates a new graph
func NewGraph() *Graph {
	return &Graph{
		nodes:     make(map[string]*Node),
		maxVisits: 10,
	}
}

func (g *Graph) validateNode(node *Node) {
	if node.Name == "" {
		panic("node name cannot be empty")
	}

	switch node.Type {
	case NodeTypeCondition:
		if node.Condition == nil {
			panic(fmt.Sprintf("condition node %s must have non-nil Condition function", node.Name))
		}
	default:
		if node.Execute == nil {
			panic(fmt.Sprintf("node %s of type %s must have non-nil Execute function", node.Name, node.Type))
		}
	}
}

// AddNode adds a node to the graph
func (g *Graph) AddNode(node *Node) {
	if _, exists := g.nodes[node.Name]; exists {
		panic(fmt.Sprintf("node %s already exists", node.Name))
	}

	g.validateNode(node)

	g.nodes[node.Name] = node

	// Auto-set start and end nodes
	if node.Type == NodeTypeStart {
		g.startNode = node.Name
	}
	if node.Type == NodeTypeEnd {
		g.endNode = node.Name
	}
}

func (n *Node) addNext(name string) {
	n.NextNodes = append(n.NextNodes, name)
}

func (n *Node) nextList() []string {
	if n == nil {
		return nil
	}

	seen := make(map[string]struct{})
	var result []string

	for _, child := range n.NextNodes {
		if _, ok := seen[child]; ok {
			continue
		}
		seen[child] = struct{}{}
		result = append(result, child)
	}

	return result
}

// SetStartNode sets the start node
func (g *Graph) SetStartNode(name string) {
	if _, exists := g.nodes[name]; !exists {
		panic(fmt.Sprintf("node %s not found", name))
	}
	g.startNode = name
}

// SetEndNode sets the end node
func (g *Graph) SetEndNode(name string) {
	if _, exists := g.nodes[name]; !exists {
		panic(fmt.Sprintf("node %s not found", name))
	}
	g.endNode = name
}

// SetObserver registers the per-node observer.
func (g *Graph) SetObserver(observer Observer) {
	g.observer = observer
}

func (g *Graph) notify(ctx context.Context, node string, state State) {
	if g.observer != nil {
		g.observer(ctx, node, state)
	}
}

// Execute runs the graph starting from the configured start node. Nodes are
// scheduled breadth-first from a queue. A child that waits for all parents is
// enqueued only once every parent has reported, and only if at least one
// parent actually triggered it, which keeps conditional branches from losing
// or duplicating executions.
func (g *Graph) Execute(ctx context.Context, initialState State) (State, error) {
	if g.startNode == "" {
		return nil, fmt.Errorf("start node not set")
	}

	state := initialState
	if state == nil {
		state = make(State)
	}

	expectedParents := g.buildParentCounts()
	completedParents := make(map[string]int)
	parentHits := make(map[string]int)
	awaiting := make(map[string]bool)
	queue := []string{g.startNode}
	awaiting[g.startNode] = true
	visited := make(map[string]int)

	for len(queue) > 0 {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		currentNode := queue[0]
		queue = queue[1:]
		awaiting[currentNode] = false

		node, exists := g.nodes[currentNode]
		if !exists {
			return nil, fmt.Errorf("node %s not found", currentNode)
		}

		visited[currentNode]++
		if visited[currentNode] > g.maxVisits {
			return nil, fmt.Errorf("infinite loop detected at node %s", currentNode)
		}

		// End nodes terminate execution immediately and return the final state.
		if node.Type == NodeTypeEnd {
			final, err := node.Execute(ctx, state)
			if err != nil {
				return nil, fmt.Errorf("error executing node %s: %w", node.Name, err)
			}
			g.notify(ctx, node.Name, final)
			return final, nil
		}

		nextNodes, err := g.resolveNextNodes(ctx, node, state)
		if err != nil {
			return nil, err
		}

		allChildren := g.staticChildren(node)
		triggered := make(map[string]struct{}, len(nextNodes))

		for _, child := range nextNodes {
			triggered[child] = struct{}{}
			if err := g.handleChildSignal(child, true, parentHits, completedParents, expectedParents, awaiting, &queue); err != nil {
				return nil, err
			}
		}

		// Tell the remaining children this parent finished without them.
		for _, child := range allChildren {
			if _, ok := triggered[child]; ok {
				continue
			}
			if err := g.handleChildSignal(child, false, parentHits, completedParents, expectedParents, awaiting, &queue); err != nil {
				return nil, err
			}
		}

		parentHits[currentNode] = 0
		completedParents[currentNode] = 0
	}

	return state, nil
}

func (g *Graph) resolveNextNodes(ctx context.Context, node *Node, state State) ([]string, error) {
	switch node.Type {
	case NodeTypeCondition:
		result, err := node.Condition(ctx, state)
		if err != nil {
			return nil, fmt.Errorf("error evaluating condition at node %s: %w", node.Name, err)
		}
		nextNode := node.NextMap[result]
		if nextNode == "" {
			return nil, fmt.Errorf("no next node specified for node %s", node.Name)
		}
		return []string{nextNode}, nil
	default:
		var err error
		state, err = node.Execute(ctx, state)
		if err != nil {
			return nil, fmt.Errorf("error executing node %s: %w", node.Name, err)
		}
		g.notify(ctx, node.Name, state)
		nextNodes := node.nextList()
		if len(nextNodes) == 0 {
			return nil, fmt.Errorf("no next node specified for node %s", node.Name)
		}
		return nextNodes, nil
	}
}

func (g *Graph) handleChildSignal(child string, participated bool, parentHits map[string]int, completedParents map[string]int, expectedParents map[string]int, awaiting map[string]bool, queue *[]string) error {
	target, exists := g.nodes[child]
	if !exists {
		return fmt.Errorf("node %s not found", child)
	}

	if target.WaitAllParents {
		if participated {
			parentHits[child]++
		}
		completedParents[child]++
		required := expectedParents[child]
		if required <= 0 {
			required = 1
		}
		if completedParents[child] < required || parentHits[child] == 0 || awaiting[child] {
			return nil
		}
		awaiting[child] = true
		*queue = append(*queue, child)
		return nil
	}

	if !participated {
		return nil
	}

	parentHits[child]++

	if awaiting[child] {
		return nil
	}

	awaiting[child] = true
	*queue = append(*queue, child)
	return nil
}

func (g *Graph) buildParentCounts() map[string]int {
	counts := make(map[string]int)
	for _, node := range g.nodes {
		for _, child := range g.staticChildren(node) {
			counts[child]++
		}
	}
	return counts
}

func (g *Graph) staticChildren(node *Node) []string {
	if node == nil {
		return nil
	}

	seen := make(map[string]struct{})
	add := func(out *[]string, name string) {
		if _, ok := seen[name]; ok {
			return
		}
		seen[name] = struct{}{}
		*out = append(*out, name)
	}

	var result []string
	if node.Type == NodeTypeCondition {
		for _, child := range node.NextMap {
			add(&result, child)
		}
	}

	for _, child := range node.NextNodes {
		add(&result, child)
	}
	return result
}

// GetNode returns a node by name
func (g *Graph) GetNode(name string) (*Node, error) {
	node, exists := g.nodes[name]
	if !exists {
		return nil, fmt.Errorf("node %s not found", name)
	}
	return node, nil
}

// SetMaxVisits sets the maximum number of visits to a node
func (g *Graph) SetMaxVisits(maxVisits int) {
	g.maxVisits = maxVisits
}

// Builder helps build graphs fluently
type Builder struct {
	graph *Graph
}

// NewBuilder creates a new graph builder
func NewBuilder() *Builder {
	return &Builder{
		graph: NewGraph(),
	}
}

// AddNode adds a node to the graph
func (b *Builder) AddNode(name string, nodeType NodeType, execute NodeFunc) *Builder {
	b.graph.AddNode(&Node{
		Name:    name,
		Type:    nodeType,
		Execute: execute,
	})
	return b
}

// AddConditionNode adds a condition node
func (b *Builder) AddConditionNode(name string, condition ConditionFunc, nextMap map[string]string) *Builder {
	b.graph.AddNode(&Node{
		Name:      name,
		Type:      NodeTypeCondition,
		Condition: condition,
		NextMap:   nextMap,
	})
	return b
}

// AddEdge connects two nodes
func (b *Builder) AddEdge(from, to string) *Builder {
	if node, exists := b.graph.nodes[from]; exists {
		node.addNext(to)
	}
	return b
}

// RequireAllParents marks a node to wait for all of its parents before executing.
func (b *Builder) RequireAllParents(name string) *Builder {
	node, exists := b.graph.nodes[name]
	if !exists {
		panic(fmt.Sprintf("node %s not found", name))
	}
	node.WaitAllParents = true
	return b
}

// SetStart sets the start node
func (b *Builder) SetStart(name string) *Builder {
	b.graph.SetStartNode(name)
	return b
}

// SetEnd sets the end node
func (b *Builder) SetEnd(name string) *Builder {
	b.graph.SetEndNode(name)
	return b
}

// SetObserver registers the per-node observer.
func (b *Builder) SetObserver(observer Observer) *Builder {
	b.graph.SetObserver(observer)
	return b
}

// SetMaxVisits sets the maximum number of visits to a node
func (b *Builder) SetMaxVisits(maxVisits int) *Builder {
	b.graph.SetMaxVisits(maxVisits)
	return b
}

// Build returns the constructed graph
func (b *Builder) Build() *Graph {
	return b.graph
}
