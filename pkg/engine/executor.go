package engine

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/sasya-arogya/engine/pkg/engine/nodes"
	"github.com/sasya-arogya/engine/pkg/observability"
	"github.com/sasya-arogya/engine/pkg/state"
)

// executeNode runs one node inside a span with the standard attributes
// and duration metric. A panic or returned error is converted into the
// workflow error path so a broken handler cannot kill the turn.
func (e *Engine) executeNode(ctx context.Context, node nodes.Node, s *state.WorkflowState) {
	name := node.Name()

	var span trace.Span
	if e.obs != nil {
		attrs := append(observability.NodeAttrs(name, s.SessionID),
			attribute.Bool("input.has_image", s.UserImage != ""),
			attribute.Int("input.message_length", len(s.UserMessage)),
			attribute.Int("input.context_keys", len(s.UserContext)),
		)
		ctx, span = e.obs.Tracer.Start(ctx, "workflow.node."+name, trace.WithAttributes(attrs...))
		defer span.End()
	}

	start := time.Now()
	messagesBefore := len(s.Messages)

	defer func() {
		if r := recover(); r != nil {
			e.logger.Error("node panicked", "node", name, "session_id", s.SessionID, "panic", r)
			s.SetError(fmt.Sprintf("internal failure in %s node: %v", name, r))
			s.NextAction = nodes.ActionError
			if span != nil {
				span.SetStatus(codes.Error, fmt.Sprint(r))
			}
			e.recordNode(ctx, name, s, start, true)
		}
	}()

	err := node.Execute(ctx, s)
	if err != nil {
		e.logger.Error("node failed", "node", name, "session_id", s.SessionID, "error", err)
		s.SetError(err.Error())
		s.NextAction = nodes.ActionError
		if span != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
	}

	if span != nil {
		span.SetAttributes(
			attribute.String("output.next_action", s.NextAction),
			attribute.Int("output.messages_added", len(s.Messages)-messagesBefore),
			attribute.Bool("output.has_error", s.ErrorMessage != ""),
		)
	}
	e.recordNode(ctx, name, s, start, err != nil)
}

func (e *Engine) recordNode(ctx context.Context, name string, s *state.WorkflowState, start time.Time, failed bool) {
	if e.obs == nil {
		return
	}
	attrs := metric.WithAttributes(observability.NodeAttrs(name, s.SessionID)...)
	e.obs.NodeExecutions.Add(ctx, 1, attrs)
	e.obs.NodeDuration.Record(ctx, time.Since(start).Seconds(), attrs)
	if failed {
		e.obs.NodeErrors.Add(ctx, 1, attrs)
	}
}
