package nodes

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/sasya-arogya/engine/pkg/state"
)

// vendorQuestion is the confirmation prompt the vendor flow hangs on.
// Followup scans the message log for it to recognise a pending
// yes/no answer on a later turn.
const vendorQuestion = "Would you like to see local suppliers where you can buy these treatments?"

var (
	affirmativeTokens = []string{"yes", "yeah", "yep", "sure", "ok", "okay", "please", "show", "definitely"}
	negativeTokens    = []string{"no", "nope", "not now", "later", "skip", "don't", "dont"}
)

// AffirmativeReply reports whether the message reads as a yes.
func AffirmativeReply(message string) bool {
	return containsReplyToken(strings.ToLower(message), affirmativeTokens)
}

// NegativeReply reports whether the message reads as a no.
func NegativeReply(message string) bool {
	return containsReplyToken(strings.ToLower(message), negativeTokens)
}

func containsReplyToken(lower string, tokens []string) bool {
	for _, token := range tokens {
		if strings.Contains(token, " ") {
			if strings.Contains(lower, token) {
				return true
			}
			continue
		}
		// Whole words only, so "no" does not fire inside "now".
		for _, f := range strings.Fields(lower) {
			if strings.Trim(f, ".,!?") == token {
				return true
			}
		}
	}
	return false
}

// VendorQuery asks whether the farmer wants to see suppliers for the
// prescribed treatments. The answer arrives in the next message and is
// routed by keyword.
type VendorQuery struct {
	deps   *Deps
	logger *slog.Logger
}

// NewVendorQuery builds the node.
func NewVendorQuery(deps *Deps) *VendorQuery {
	return &VendorQuery{deps: deps, logger: slog.With("node", NameVendorQuery)}
}

func (n *VendorQuery) Name() string { return NameVendorQuery }

func (n *VendorQuery) Execute(ctx context.Context, s *state.WorkflowState) error {
	s.EnterNode(NameVendorQuery)

	s.AddMessage(state.RoleAssistant, vendorQuestion)
	s.SetResponse(vendorQuestion, state.ResponseStatusFinal, true)
	s.RequiresUserInput = true
	return nil
}

// ShowVendors lists suppliers matching the prescribed treatment type and
// waits for a selection.
type ShowVendors struct {
	deps   *Deps
	logger *slog.Logger
}

// NewShowVendors builds the node.
func NewShowVendors(deps *Deps) *ShowVendors {
	return &ShowVendors{deps: deps, logger: slog.With("node", NameShowVendors)}
}

func (n *ShowVendors) Name() string { return NameShowVendors }

func (n *ShowVendors) Execute(ctx context.Context, s *state.WorkflowState) error {
	s.EnterNode(NameShowVendors)

	if v := matchVendorSelection(s.UserMessage, s.VendorOptions); v != nil {
		s.SelectedVendor = v
		s.NextAction = ActionOrder
		return nil
	}

	treatmentType := ""
	if s.PrescriptionData != nil && len(s.PrescriptionData.Treatments) > 0 {
		treatmentType = s.PrescriptionData.Treatments[0].Type
	}
	vendors := n.deps.Vendors.Lookup(treatmentType)
	if len(vendors) == 0 {
		msg := "I couldn't find suppliers for these treatments right now. Your local agricultural supply store should stock them."
		s.AddMessage(state.RoleAssistant, msg)
		s.SetResponse(msg, state.ResponseStatusFinal, true)
		s.NextAction = ActionComplete
		return nil
	}
	s.VendorOptions = vendors

	var b strings.Builder
	b.WriteString("Here are suppliers that stock what you need:\n")
	for i, v := range vendors {
		fmt.Fprintf(&b, "\n%d. %s (%s) - %s, rated %.1f", i+1, v.Name, v.Location, v.Price, v.Rating)
	}
	b.WriteString("\n\nReply with a number or name to place an order.")
	msg := b.String()

	s.AddMessage(state.RoleAssistant, msg)
	s.SetResponse(msg, state.ResponseStatusFinal, true)
	s.RequiresUserInput = true
	s.NextAction = ActionAwaitVendor
	return nil
}

// OrderBooking confirms an order with the selected vendor.
type OrderBooking struct {
	deps   *Deps
	logger *slog.Logger
}

// NewOrderBooking builds the node.
func NewOrderBooking(deps *Deps) *OrderBooking {
	return &OrderBooking{deps: deps, logger: slog.With("node", NameOrderBooking)}
}

func (n *OrderBooking) Name() string { return NameOrderBooking }

func (n *OrderBooking) Execute(ctx context.Context, s *state.WorkflowState) error {
	s.EnterNode(NameOrderBooking)

	if s.SelectedVendor == nil {
		s.SetError("order booking reached without a vendor selection")
		s.NextAction = ActionError
		return nil
	}

	v := s.SelectedVendor
	s.OrderDetails = fmt.Sprintf("Order placed with %s (%s), contact %s", v.Name, v.Location, v.Contact)
	n.logger.Info("order booked", "session_id", s.SessionID, "vendor", v.Name)

	msg := fmt.Sprintf(
		"Done! I've placed your order with %s in %s. They'll reach you at the contact you shared; you can also call them on %s. Price range: %s.",
		v.Name, v.Location, v.Contact, v.Price)
	s.AddMessage(state.RoleAssistant, msg)
	s.SetResponse(msg, state.ResponseStatusFinal, true)
	s.NextAction = ActionComplete
	return nil
}
