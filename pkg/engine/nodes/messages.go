package nodes

import (
	"fmt"
	"math/rand"
	"strings"

	"github.com/sasya-arogya/engine/pkg/state"
)

// Out-of-scope reply templates. One is picked at random, followed by up
// to three supported topics.
var outOfScopeTemplates = []string{
	"I'm focused on helping farmers with their crops, so I can't help with that. Here's what I can do:",
	"That's outside what I know about. My expertise is farming and crop care. I can help you with:",
	"I specialize in agricultural advice and can't answer that one. Things I'm good at:",
}

var supportedTopics = []string{
	"Diagnosing plant diseases from photos",
	"Recommending treatments and dosages",
	"Crop insurance premiums, companies, and certificates",
}

// OutOfScopeReply builds the canned redirect for non-agricultural asks.
func OutOfScopeReply() string {
	var b strings.Builder
	b.WriteString(outOfScopeTemplates[rand.Intn(len(outOfScopeTemplates))])
	for _, topic := range supportedTopics {
		b.WriteString("\n- ")
		b.WriteString(topic)
	}
	return b.String()
}

// friendlyDiseaseName turns a classifier label like "tomato_early_blight"
// into text a farmer reads.
func friendlyDiseaseName(label string) string {
	name := strings.ReplaceAll(label, "_", " ")
	name = strings.ReplaceAll(name, "-", " ")
	words := strings.Fields(name)
	for i, w := range words {
		if len(w) > 0 {
			words[i] = strings.ToUpper(w[:1]) + w[1:]
		}
	}
	return strings.Join(words, " ")
}

func confidenceWording(confidence float64) string {
	switch {
	case confidence >= 0.85:
		return "very confident"
	case confidence >= 0.6:
		return "fairly confident"
	default:
		return "not fully certain"
	}
}

var severityWording = map[string]string{
	"high":     "serious and needs quick attention",
	"severe":   "serious and needs quick attention",
	"medium":   "moderate, treatable if you act soon",
	"moderate": "moderate, treatable if you act soon",
	"low":      "mild at this stage",
	"mild":     "mild at this stage",
}

// ClassificationReport renders the user-facing summary of a
// classification result.
func ClassificationReport(cr *state.ClassificationResult) string {
	if cr.IsHealthy() {
		msg := "Good news! Your plant looks healthy. I didn't find signs of disease in the photo."
		if cr.Description != "" {
			msg += "\n\n" + cr.Description
		}
		msg += "\n\nKeep up your current care routine. I can share preventive tips or help with crop insurance if you'd like."
		return msg
	}

	var b strings.Builder
	fmt.Fprintf(&b, "I've analyzed your plant photo. It looks like %s (I'm %s, %.0f%%).",
		friendlyDiseaseName(cr.DiseaseName), confidenceWording(cr.Confidence), cr.Confidence*100)
	if w, ok := severityWording[strings.ToLower(cr.Severity)]; ok {
		fmt.Fprintf(&b, " The condition appears %s.", w)
	}
	if cr.Description != "" {
		b.WriteString("\n\n")
		b.WriteString(cr.Description)
	}
	b.WriteString("\n\nWould you like treatment recommendations for this?")
	return b.String()
}

// TreatmentPlanMessage renders a prescription into the chat reply.
func TreatmentPlanMessage(p *state.Prescription) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Here's a treatment plan for %s:\n", friendlyDiseaseName(p.DiseaseName))
	for i, t := range p.Treatments {
		fmt.Fprintf(&b, "\n%d. %s (%s)", i+1, t.Name, t.Type)
		if t.Dosage != "" {
			fmt.Fprintf(&b, "\n   Dosage: %s", t.Dosage)
		}
		if t.Frequency != "" {
			fmt.Fprintf(&b, "\n   Frequency: %s", t.Frequency)
		}
		if t.Application != "" {
			fmt.Fprintf(&b, "\n   How to apply: %s", t.Application)
		}
		if t.Precautions != "" {
			fmt.Fprintf(&b, "\n   Take care: %s", t.Precautions)
		}
	}
	if len(p.PreventiveMeasures) > 0 {
		b.WriteString("\n\nTo prevent this coming back:")
		for _, m := range p.PreventiveMeasures {
			b.WriteString("\n- ")
			b.WriteString(m)
		}
	}
	if p.Notes != "" {
		b.WriteString("\n\n")
		b.WriteString(p.Notes)
	}
	if p.Fallback {
		b.WriteString("\n\nNote: these are general recommendations. For a plan specific to your farm, consult your local agricultural officer.")
	}
	return b.String()
}

// TreatmentSummaries renders one line per treatment for the
// treatment_recommendations state field.
func TreatmentSummaries(p *state.Prescription) []string {
	out := make([]string, 0, len(p.Treatments))
	for _, t := range p.Treatments {
		line := t.Name
		if t.Dosage != "" {
			line += " - " + t.Dosage
		}
		if t.Frequency != "" {
			line += " (" + t.Frequency + ")"
		}
		out = append(out, line)
	}
	return out
}

// servicesUsed lists the services that produced results this session.
func servicesUsed(s *state.WorkflowState) []string {
	var used []string
	if s.ClassificationResults != nil {
		used = append(used, "disease diagnosis")
	}
	if s.PrescriptionData != nil {
		used = append(used, "treatment planning")
	}
	if s.InsurancePremiumDetails != nil || s.InsuranceRecommendations != nil ||
		s.InsuranceCompanies != nil || s.InsuranceCertificate != nil {
		used = append(used, "crop insurance")
	}
	if s.OrderDetails != "" {
		used = append(used, "supply ordering")
	}
	return used
}
