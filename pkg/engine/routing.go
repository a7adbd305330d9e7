package engine

import (
	"github.com/sasya-arogya/engine/pkg/engine/nodes"
	"github.com/sasya-arogya/engine/pkg/state"
)

// End is the sentinel successor that terminates a turn.
const End = "__end__"

// routeFunc maps a node's outcome to its successor.
type routeFunc func(s *state.WorkflowState) string

// routingTable is the closed dispatch table of the workflow graph. Every
// node routes on next_action; unknown labels fall to the node's default
// edge rather than failing the turn.
func routingTable() map[string]routeFunc {
	return map[string]routeFunc{
		nodes.NameInitial: func(s *state.WorkflowState) string {
			switch s.NextAction {
			case nodes.ActionClassify:
				return nodes.NameClassifying
			case nodes.ActionInsurance:
				return nodes.NameInsurance
			case nodes.ActionSessionEnd:
				return nodes.NameSessionEnd
			case nodes.ActionCompleted, nodes.ActionComplete:
				return nodes.NameCompleted
			case nodes.ActionError:
				return nodes.NameError
			default:
				return nodes.NameFollowup
			}
		},
		nodes.NameClassifying: func(s *state.WorkflowState) string {
			switch s.NextAction {
			case nodes.ActionPrescribe:
				return nodes.NamePrescribing
			case nodes.ActionCompleted, nodes.ActionComplete:
				return nodes.NameCompleted
			case nodes.ActionRetry:
				return nodes.NameClassifying
			case nodes.ActionError:
				return nodes.NameError
			default:
				return nodes.NameFollowup
			}
		},
		nodes.NamePrescribing: func(s *state.WorkflowState) string {
			switch s.NextAction {
			case nodes.ActionVendorQuery:
				return nodes.NameVendorQuery
			case nodes.ActionComplete, nodes.ActionCompleted:
				return nodes.NameCompleted
			case nodes.ActionRetry:
				return nodes.NamePrescribing
			case nodes.ActionClassify:
				return nodes.NameClassifying
			case nodes.ActionError:
				return nodes.NameError
			default:
				return nodes.NameFollowup
			}
		},
		nodes.NameInsurance: func(s *state.WorkflowState) string {
			switch s.NextAction {
			case nodes.ActionPrescribe:
				return nodes.NamePrescribing
			case nodes.ActionVendorQuery:
				return nodes.NameVendorQuery
			case nodes.ActionCompleted, nodes.ActionComplete:
				return nodes.NameCompleted
			case nodes.ActionError:
				return nodes.NameError
			default:
				return nodes.NameFollowup
			}
		},
		nodes.NameFollowup: func(s *state.WorkflowState) string {
			switch s.NextAction {
			case nodes.ActionRestart:
				return nodes.NameInitial
			case nodes.ActionClassify:
				return nodes.NameClassifying
			case nodes.ActionPrescribe:
				return nodes.NamePrescribing
			case nodes.ActionShowVendors:
				return nodes.NameShowVendors
			case nodes.ActionOrder:
				return nodes.NameOrderBooking
			case nodes.ActionInsurance:
				return nodes.NameInsurance
			case nodes.ActionSessionEnd:
				return nodes.NameSessionEnd
			case nodes.ActionError:
				return nodes.NameError
			default:
				return nodes.NameCompleted
			}
		},
		nodes.NameVendorQuery:  routeVendorQuery,
		nodes.NameShowVendors: func(s *state.WorkflowState) string {
			switch s.NextAction {
			case nodes.ActionAwaitVendor:
				return nodes.NameFollowup
			case nodes.ActionOrder:
				if s.SelectedVendor != nil {
					return nodes.NameOrderBooking
				}
				return nodes.NameCompleted
			case nodes.ActionError:
				return nodes.NameError
			default:
				return nodes.NameCompleted
			}
		},
		nodes.NameOrderBooking: func(s *state.WorkflowState) string {
			switch s.NextAction {
			case nodes.ActionAwaitFinal:
				return nodes.NameFollowup
			case nodes.ActionError:
				return nodes.NameError
			default:
				return nodes.NameCompleted
			}
		},
		nodes.NameCompleted:  func(*state.WorkflowState) string { return End },
		nodes.NameSessionEnd: func(*state.WorkflowState) string { return End },
		nodes.NameError:      func(*state.WorkflowState) string { return End },
	}
}

// routeVendorQuery scans the user's answer to the vendor question.
func routeVendorQuery(s *state.WorkflowState) string {
	switch {
	case nodes.NegativeReply(s.UserMessage):
		return nodes.NameCompleted
	case nodes.AffirmativeReply(s.UserMessage):
		return nodes.NameShowVendors
	default:
		return nodes.NameFollowup
	}
}
