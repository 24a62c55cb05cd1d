package graph

import (
	"context"
	"fmt"
	"strings"
	"testing"
)

func appendTrace(name string) NodeFunc {
	return func(ctx context.Context, state State) (State, error) {
		trace, _ := state["trace"].(string)
		if trace != "" {
			trace += ","
		}
		state["trace"] = trace + name
		return state, nil
	}
}

func TestLinearExecution(t *testing.T) {
	g := NewBuilder().
		AddNode("start", NodeTypeStart, appendTrace("start")).
		AddNode("work", NodeTypeCustom, appendTrace("work")).
		AddNode("end", NodeTypeEnd, appendTrace("end")).
		AddEdge("start", "work").
		AddEdge("work", "end").
		Build()

	state, err := g.Execute(context.Background(), State{})
	if err != nil {
		t.Fatalf("Execute error: %v", err)
	}
	if state["trace"] != "start,work,end" {
		t.Fatalf("unexpected trace: %v", state["trace"])
	}
}

func TestConditionBranching(t *testing.T) {
	build := func(decision string) *Graph {
		return NewBuilder().
			AddNode("start", NodeTypeStart, func(ctx context.Context, s State) (State, error) {
				s["decision"] = decision
				return s, nil
			}).
			AddConditionNode("route", func(ctx context.Context, s State) (string, error) {
				return s["decision"].(string), nil
			}, map[string]string{
				"left":  "left",
				"right": "right",
			}).
			AddNode("left", NodeTypeCustom, appendTrace("left")).
			AddNode("right", NodeTypeCustom, appendTrace("right")).
			AddNode("end", NodeTypeEnd, func(ctx context.Context, s State) (State, error) { return s, nil }).
			AddEdge("start", "route").
			AddEdge("left", "end").
			AddEdge("right", "end").
			Build()
	}

	state, err := build("left").Execute(context.Background(), State{})
	if err != nil {
		t.Fatalf("Execute error: %v", err)
	}
	if state["trace"] != "left" {
		t.Fatalf("expected only left branch, got %v", state["trace"])
	}

	state, err = build("right").Execute(context.Background(), State{})
	if err != nil {
		t.Fatalf("Execute error: %v", err)
	}
	if state["trace"] != "right" {
		t.Fatalf("expected only right branch, got %v", state["trace"])
	}
}

func TestLoopDetection(t *testing.T) {
	g := NewBuilder().
		AddNode("start", NodeTypeStart, appendTrace("start")).
		AddNode("loop", NodeTypeCustom, appendTrace("loop")).
		AddNode("end", NodeTypeEnd, func(ctx context.Context, s State) (State, error) { return s, nil }).
		AddEdge("start", "loop").
		AddEdge("loop", "loop").
		SetMaxVisits(3).
		Build()

	_, err := g.Execute(context.Background(), State{})
	if err == nil || !strings.Contains(err.Error(), "infinite loop") {
		t.Fatalf("expected loop detection error, got %v", err)
	}
}

func TestObserverSeesCompletedNodes(t *testing.T) {
	var observed []string
	g := NewBuilder().
		AddNode("start", NodeTypeStart, appendTrace("start")).
		AddConditionNode("route", func(ctx context.Context, s State) (string, error) {
			return "go", nil
		}, map[string]string{"go": "work"}).
		AddNode("work", NodeTypeCustom, appendTrace("work")).
		AddNode("end", NodeTypeEnd, appendTrace("end")).
		AddEdge("start", "route").
		AddEdge("work", "end").
		SetObserver(func(ctx context.Context, node string, state State) {
			observed = append(observed, node)
		}).
		Build()

	if _, err := g.Execute(context.Background(), State{}); err != nil {
		t.Fatalf("Execute error: %v", err)
	}

	want := "start,work,end"
	if got := strings.Join(observed, ","); got != want {
		t.Fatalf("observer saw %q, want %q (condition nodes must not fire)", got, want)
	}
}

func TestNodeErrorStopsExecution(t *testing.T) {
	g := NewBuilder().
		AddNode("start", NodeTypeStart, appendTrace("start")).
		AddNode("boom", NodeTypeCustom, func(ctx context.Context, s State) (State, error) {
			return nil, fmt.Errorf("boom")
		}).
		AddNode("end", NodeTypeEnd, func(ctx context.Context, s State) (State, error) { return s, nil }).
		AddEdge("start", "boom").
		AddEdge("boom", "end").
		Build()

	_, err := g.Execute(context.Background(), State{})
	if err == nil || !strings.Contains(err.Error(), "boom") {
		t.Fatalf("expected node error, got %v", err)
	}
}
