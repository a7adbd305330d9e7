// Package nodes implements the per-state handlers of the workflow graph.
// Every node mutates the session state it is given and sets next_action
// for the routing layer; nodes never pick their successor directly.
package nodes

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/sasya-arogya/engine/pkg/intent"
	"github.com/sasya-arogya/engine/pkg/llm"
	"github.com/sasya-arogya/engine/pkg/observability"
	"github.com/sasya-arogya/engine/pkg/state"
	"github.com/sasya-arogya/engine/pkg/tools"
)

// Node names. The routing table dispatches on these.
const (
	NameInitial      = "initial"
	NameClassifying  = "classifying"
	NamePrescribing  = "prescribing"
	NameInsurance    = "insurance"
	NameFollowup     = "followup"
	NameVendorQuery  = "vendor_query"
	NameShowVendors  = "show_vendors"
	NameOrderBooking = "order_booking"
	NameCompleted    = "completed"
	NameSessionEnd   = "session_end"
	NameError        = "error"
)

// Routing labels shared across nodes.
const (
	ActionClassify      = "classify"
	ActionPrescribe     = "prescribe"
	ActionInsurance     = "insurance"
	ActionFollowup      = "followup"
	ActionGeneralHelp   = "general_help"
	ActionRequestImage  = "request_image"
	ActionRetry         = "retry"
	ActionError         = "error"
	ActionComplete      = "complete"
	ActionCompleted     = "completed"
	ActionRestart       = "restart"
	ActionSessionEnd    = "session_end"
	ActionVendorQuery   = "vendor_query"
	ActionShowVendors   = "show_vendors"
	ActionOrder         = "order"
	ActionAwaitVendor   = "await_vendor_selection"
	ActionAwaitFinal    = "await_final_input"
)

// Node is one state handler. Execute returns an error only for internal
// failures the handler could not translate itself; the executor converts
// those into the error path.
type Node interface {
	Name() string
	Execute(ctx context.Context, s *state.WorkflowState) error
}

// Deps carries the shared collaborators nodes draw on. All fields are
// process-wide and safe for concurrent use.
type Deps struct {
	Intent       *intent.Analyzer
	LLM          *llm.Client
	Classifier   *tools.ClassificationTool
	Prescription *tools.PrescriptionTool
	Insurance    *tools.InsuranceTool
	Extractor    *tools.ContextExtractor
	Overlay      *tools.AttentionOverlayTool
	Vendors      *tools.VendorTool
	Obs          *observability.Provider
}

// recordTool counts one external tool invocation, and its failure when
// terr is set.
func (d *Deps) recordTool(ctx context.Context, tool string, terr *tools.ToolError) {
	if d.Obs == nil {
		return
	}
	attrs := metric.WithAttributes(attribute.String("tool.name", tool))
	d.Obs.ToolCalls.Add(ctx, 1, attrs)
	if terr != nil {
		d.Obs.ToolErrors.Add(ctx, 1, attrs)
	}
}

// All returns every node wired with deps, keyed by name.
func All(deps *Deps) map[string]Node {
	list := []Node{
		NewInitial(deps),
		NewClassifying(deps),
		NewPrescribing(deps),
		NewInsurance(deps),
		NewFollowup(deps),
		NewVendorQuery(deps),
		NewShowVendors(deps),
		NewOrderBooking(deps),
		NewCompleted(deps),
		NewSessionEnd(deps),
		NewError(deps),
	}
	out := make(map[string]Node, len(list))
	for _, n := range list {
		out[n.Name()] = n
	}
	return out
}
