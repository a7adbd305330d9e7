package state

import "strings"

// Classification sources.
const (
	SourceCNN = "cnn"
	SourceSME = "sme"
)

// ClassificationResult is the normalised output of the classification
// tool. RawPredictions, PlantContext, and AttentionOverlay are verbose
// sub-fields pruned from state_update events.
type ClassificationResult struct {
	DiseaseName       string             `json:"disease_name"`
	Confidence        float64            `json:"confidence"`
	Severity          string             `json:"severity,omitempty"`
	Description       string             `json:"description,omitempty"`
	Source            string             `json:"source"`
	AttentionOverlay  string             `json:"attention_overlay,omitempty"`
	EvaluationDetails *EvaluationDetails `json:"evaluation_details,omitempty"`
	RawPredictions    map[string]float64 `json:"raw_predictions,omitempty"`
	PlantContext      map[string]string  `json:"plant_context,omitempty"`
}

// EvaluationDetails records how the primary and secondary evaluations
// compared.
type EvaluationDetails struct {
	PrimaryDisease     string  `json:"primary_disease,omitempty"`
	SecondaryDisease   string  `json:"secondary_disease,omitempty"`
	SecondaryAvailable bool    `json:"secondary_available"`
	Similarity         float64 `json:"similarity,omitempty"`
	Agreement          bool    `json:"agreement"`
}

// IsHealthy reports whether the classified condition is a healthy plant.
func (c *ClassificationResult) IsHealthy() bool {
	if c == nil {
		return false
	}
	return containsFold(c.DiseaseName, "healthy")
}

func (c *ClassificationResult) clone() *ClassificationResult {
	if c == nil {
		return nil
	}
	out := *c
	if c.EvaluationDetails != nil {
		ed := *c.EvaluationDetails
		out.EvaluationDetails = &ed
	}
	if c.RawPredictions != nil {
		out.RawPredictions = make(map[string]float64, len(c.RawPredictions))
		for k, v := range c.RawPredictions {
			out.RawPredictions[k] = v
		}
	}
	if c.PlantContext != nil {
		out.PlantContext = make(map[string]string, len(c.PlantContext))
		for k, v := range c.PlantContext {
			out.PlantContext[k] = v
		}
	}
	return &out
}

// Treatment is one recommended intervention.
type Treatment struct {
	Name        string `json:"name"`
	Type        string `json:"type,omitempty"`
	Application string `json:"application,omitempty"`
	Dosage      string `json:"dosage,omitempty"`
	Frequency   string `json:"frequency,omitempty"`
	Duration    string `json:"duration,omitempty"`
	Precautions string `json:"precautions,omitempty"`
}

// Prescription is the structured treatment plan returned by the
// prescription engine, or synthesised by the rule-based fallback.
type Prescription struct {
	Treatments         []Treatment `json:"treatments"`
	PreventiveMeasures []string    `json:"preventive_measures,omitempty"`
	Notes              string      `json:"notes,omitempty"`
	Diagnosis          string      `json:"diagnosis,omitempty"`
	ImmediateTreatment string      `json:"immediate_treatment,omitempty"`
	WeeklyTreatmentPlan []string   `json:"weekly_treatment_plan,omitempty"`
	DiseaseName        string      `json:"disease_name,omitempty"`
	PlantType          string      `json:"plant_type,omitempty"`
	Severity           string      `json:"severity,omitempty"`
	Fallback           bool        `json:"fallback,omitempty"`
}

func (p *Prescription) clone() *Prescription {
	if p == nil {
		return nil
	}
	out := *p
	out.Treatments = append([]Treatment(nil), p.Treatments...)
	out.PreventiveMeasures = append([]string(nil), p.PreventiveMeasures...)
	out.WeeklyTreatmentPlan = append([]string(nil), p.WeeklyTreatmentPlan...)
	return &out
}

// PDFResource is a document reference returned by the insurance service
// (certificate generation). The engine passes it through unrendered.
type PDFResource struct {
	URI      string `json:"uri"`
	Name     string `json:"name,omitempty"`
	MimeType string `json:"mime_type"`
}

// InsuranceResult stores the outcome of one insurance operation under its
// action-specific state field.
type InsuranceResult struct {
	Action string       `json:"action"`
	Text   string       `json:"text,omitempty"`
	PDF    *PDFResource `json:"pdf,omitempty"`
}

func (r *InsuranceResult) clone() *InsuranceResult {
	if r == nil {
		return nil
	}
	out := *r
	if r.PDF != nil {
		p := *r.PDF
		out.PDF = &p
	}
	return &out
}

// Vendor is a local catalogue entry for the optional vendor flow.
type Vendor struct {
	Name     string `json:"name"`
	Location string `json:"location,omitempty"`
	Price    string `json:"price,omitempty"`
	Rating   float64 `json:"rating,omitempty"`
	Contact  string `json:"contact,omitempty"`
}

func containsFold(s, sub string) bool {
	return strings.Contains(strings.ToLower(s), strings.ToLower(sub))
}
