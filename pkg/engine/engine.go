// Package engine drives one conversation turn through the workflow
// graph: a closed set of nodes joined by a routing table that dispatches
// on the next_action each node sets.
package engine

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/sasya-arogya/engine/pkg/engine/nodes"
	"github.com/sasya-arogya/engine/pkg/observability"
	"github.com/sasya-arogya/engine/pkg/state"
	"github.com/sasya-arogya/engine/pkg/stream"
)

// maxSteps bounds a single turn. The graph has no legitimate path this
// long; hitting the bound means a routing loop.
const maxSteps = 15

// Engine executes workflow turns. It owns no session storage; callers
// load the state, run the turn, and persist the result.
type Engine struct {
	nodes  map[string]nodes.Node
	routes map[string]routeFunc
	obs    *observability.Provider
	logger *slog.Logger
}

// New builds an engine over the standard node set.
func New(deps *nodes.Deps) *Engine {
	return &Engine{
		nodes:  nodes.All(deps),
		routes: routingTable(),
		obs:    deps.Obs,
		logger: slog.With("component", "engine"),
	}
}

// RunTurn executes one turn, streaming events through turn after every
// node. It always starts at the entry node; the state's own routing
// fields decide how far the turn travels. Cancellation aborts between
// nodes and surfaces as the context error so callers skip persistence.
func (e *Engine) RunTurn(ctx context.Context, s *state.WorkflowState, turn *stream.Turn) error {
	current := nodes.NameInitial

	for step := 0; ; step++ {
		if err := ctx.Err(); err != nil {
			e.logger.Warn("turn cancelled", "session_id", s.SessionID, "node", current)
			return err
		}
		if step >= maxSteps {
			err := fmt.Errorf("turn exceeded %d steps at node %s", maxSteps, current)
			e.logger.Error("routing loop detected", "session_id", s.SessionID, "node", current)
			return err
		}

		node, ok := e.nodes[current]
		if !ok {
			return fmt.Errorf("no handler registered for node %s", current)
		}

		e.executeNode(ctx, node, s)
		turn.Process(s)

		route, ok := e.routes[current]
		if !ok {
			return fmt.Errorf("no route defined for node %s", current)
		}
		next := route(s)
		if next == End {
			e.logger.Info("turn finished",
				"session_id", s.SessionID, "terminal_node", current, "steps", step+1)
			return nil
		}
		current = next
	}
}
