package tools

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/sasya-arogya/engine/pkg/config"
	"github.com/sasya-arogya/engine/pkg/state"
)

// PrescriptionRequest is the input to one prescription lookup.
type PrescriptionRequest struct {
	DiseaseName string
	PlantType   string
	Location    string
	Season      string
	Severity    string
	SessionID   string
}

// PrescriptionTool queries the RAG prescription engine and normalises
// its response into a structured treatment plan. When the engine is
// unreachable or returns garbage, FallbackPrescription supplies defaults.
type PrescriptionTool struct {
	url        string
	timeout    time.Duration
	httpClient *http.Client
}

// NewPrescriptionTool builds the adapter.
func NewPrescriptionTool(cfg config.PrescriptionConfig) *PrescriptionTool {
	return &PrescriptionTool{
		url:        strings.TrimRight(cfg.URL, "/"),
		timeout:    cfg.Timeout,
		httpClient: &http.Client{},
	}
}

type prescriptionQuery struct {
	Query     string `json:"query"`
	PlantType string `json:"plant_type,omitempty"`
	Season    string `json:"season,omitempty"`
	Location  string `json:"location,omitempty"`
	Disease   string `json:"disease"`
	SessionID string `json:"session_id"`
}

type prescriptionEngineResponse struct {
	Success   bool `json:"success"`
	Treatment struct {
		Diagnosis               string `json:"diagnosis"`
		MedicineRecommendations struct {
			PrimaryTreatment    string   `json:"primary_treatment"`
			SecondaryTreatment  string   `json:"secondary_treatment"`
			OrganicAlternatives []string `json:"organic_alternatives"`
		} `json:"medicine_recommendations"`
		Prevention struct {
			CulturalPractices     []string `json:"cultural_practices"`
			CropManagement        []string `json:"crop_management"`
			EnvironmentalControls []string `json:"environmental_controls"`
		} `json:"prevention"`
		AdditionalNotes map[string]string `json:"additional_notes"`
	} `json:"treatment"`
	RawResponse    string  `json:"raw_response"`
	CollectionUsed string  `json:"collection_used"`
	QueryTime      float64 `json:"query_time"`
	ParsingSuccess bool    `json:"parsing_success"`
	Error          string  `json:"error"`
}

// Available probes the engine's health endpoint.
func (t *PrescriptionTool) Available(ctx context.Context) bool {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, t.url+"/health", nil)
	if err != nil {
		return false
	}
	resp, err := t.httpClient.Do(req)
	if err != nil {
		return false
	}
	defer func() { _ = resp.Body.Close() }()
	return resp.StatusCode == http.StatusOK
}

// Prescribe queries the engine and maps the response into a
// state.Prescription.
func (t *PrescriptionTool) Prescribe(ctx context.Context, req PrescriptionRequest) (*state.Prescription, *ToolError) {
	if req.DiseaseName == "" {
		return nil, NewToolError(KindValidation, "no disease name provided for prescription")
	}

	ctx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()

	query := fmt.Sprintf("Treatment and prevention for %s", req.DiseaseName)
	if req.PlantType != "" {
		query += fmt.Sprintf(" on %s", req.PlantType)
	}

	body, err := json.Marshal(prescriptionQuery{
		Query:     query,
		PlantType: req.PlantType,
		Season:    req.Season,
		Location:  req.Location,
		Disease:   req.DiseaseName,
		SessionID: req.SessionID,
	})
	if err != nil {
		return nil, NewToolError(KindInternal, "failed to encode prescription query: %v", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, t.url+"/query/metrics", bytes.NewReader(body))
	if err != nil {
		return nil, NewToolError(KindInternal, "failed to build prescription request: %v", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := t.httpClient.Do(httpReq)
	if err != nil {
		return nil, classifyTransportError(err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, NewToolError(KindUpstreamUnavailable, "prescription engine returned status %d", resp.StatusCode)
	}

	var out prescriptionEngineResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, NewToolError(KindParseError, "failed to decode prescription response: %v", err)
	}
	if !out.Success {
		msg := out.Error
		if msg == "" {
			msg = "prescription engine reported failure"
		}
		return nil, NewToolError(KindToolError, "%s", msg)
	}

	return mapEngineResponse(&out, req), nil
}

func mapEngineResponse(out *prescriptionEngineResponse, req PrescriptionRequest) *state.Prescription {
	p := &state.Prescription{
		Diagnosis:   out.Treatment.Diagnosis,
		DiseaseName: req.DiseaseName,
		PlantType:   req.PlantType,
		Severity:    req.Severity,
	}

	med := out.Treatment.MedicineRecommendations
	if med.PrimaryTreatment != "" {
		p.Treatments = append(p.Treatments, state.Treatment{
			Name:        med.PrimaryTreatment,
			Type:        "Chemical",
			Application: "Foliar spray",
			Dosage:      "As per label instructions",
			Frequency:   "Weekly until recovery",
		})
		p.ImmediateTreatment = med.PrimaryTreatment
	}
	if med.SecondaryTreatment != "" {
		p.Treatments = append(p.Treatments, state.Treatment{
			Name:        med.SecondaryTreatment,
			Type:        "Chemical",
			Application: "Foliar spray",
			Dosage:      "As per label instructions",
			Frequency:   "Weekly until recovery",
		})
	}
	for _, alt := range med.OrganicAlternatives {
		p.Treatments = append(p.Treatments, state.Treatment{
			Name:        alt,
			Type:        "Organic",
			Application: "Spray on leaves and stems",
			Dosage:      "As per label instructions",
			Frequency:   "Twice weekly",
		})
	}

	prev := out.Treatment.Prevention
	p.PreventiveMeasures = append(p.PreventiveMeasures, prev.CulturalPractices...)
	p.PreventiveMeasures = append(p.PreventiveMeasures, prev.CropManagement...)
	p.PreventiveMeasures = append(p.PreventiveMeasures, prev.EnvironmentalControls...)

	var notes []string
	for _, v := range out.Treatment.AdditionalNotes {
		notes = append(notes, v)
	}
	p.Notes = strings.Join(notes, " ")

	// A successful engine call with no usable treatments still gets the
	// rule-based defaults so farmers never receive an empty plan.
	if len(p.Treatments) == 0 {
		p.Treatments = defaultTreatments(req.DiseaseName)
	}
	if len(p.PreventiveMeasures) == 0 {
		p.PreventiveMeasures = defaultPreventiveMeasures()
	}
	return p
}

// FallbackPrescription synthesises a rule-based treatment plan keyed on
// disease-name keywords, for when the engine is down.
func FallbackPrescription(req PrescriptionRequest) *state.Prescription {
	disease := req.DiseaseName
	if disease == "" {
		disease = "Unknown Disease"
	}
	severity := req.Severity
	if severity == "" {
		severity = "Medium"
	}
	return &state.Prescription{
		Treatments:         defaultTreatments(disease),
		PreventiveMeasures: defaultPreventiveMeasures(),
		Notes: fmt.Sprintf("These are general recommendations for %s. Consult with a local agricultural expert for specific guidance based on your location and conditions.",
			disease),
		DiseaseName: disease,
		PlantType:   req.PlantType,
		Severity:    severity,
		Fallback:    true,
	}
}

func defaultTreatments(diseaseName string) []state.Treatment {
	lower := strings.ToLower(diseaseName)
	switch {
	case strings.Contains(lower, "bacterial"):
		return []state.Treatment{
			{
				Name:        "Copper-based Bactericide",
				Type:        "Chemical",
				Application: "Foliar spray",
				Dosage:      "2-3 ml per liter of water",
				Frequency:   "Every 7-10 days until symptoms reduce",
			},
			{
				Name:        "Streptomycin Solution",
				Type:        "Antibiotic",
				Application: "Spray on affected areas",
				Dosage:      "1g per liter of water",
				Frequency:   "Weekly for 3-4 weeks",
			},
		}
	case strings.Contains(lower, "fungal"), strings.Contains(lower, "blight"):
		return []state.Treatment{
			{
				Name:        "Copper Sulfate Fungicide",
				Type:        "Chemical",
				Application: "Foliar spray",
				Dosage:      "3-5 ml per liter of water",
				Frequency:   "Every 5-7 days until recovery",
			},
			{
				Name:        "Neem Oil Solution",
				Type:        "Organic",
				Application: "Spray on leaves and stems",
				Dosage:      "5-10 ml per liter of water",
				Frequency:   "Twice weekly",
			},
		}
	case strings.Contains(lower, "viral"):
		return []state.Treatment{
			{
				Name:        "Remove Infected Parts",
				Type:        "Cultural",
				Application: "Manual removal and disposal",
				Dosage:      "Remove all affected leaves and stems",
				Frequency:   "Immediately and monitor regularly",
			},
			{
				Name:        "Imidacloprid Insecticide",
				Type:        "Chemical",
				Application: "Soil drench or spray",
				Dosage:      "1-2 ml per liter of water",
				Frequency:   "Monthly to control vectors",
			},
		}
	default:
		return []state.Treatment{
			{
				Name:        "Broad Spectrum Fungicide",
				Type:        "Chemical",
				Application: "Foliar spray",
				Dosage:      "As per manufacturer instructions",
				Frequency:   "Weekly until improvement",
			},
			{
				Name:        "Organic Compost Tea",
				Type:        "Organic",
				Application: "Soil application and foliar spray",
				Dosage:      "Dilute 1:10 with water",
				Frequency:   "Bi-weekly",
			},
		}
	}
}

func defaultPreventiveMeasures() []string {
	return []string{
		"Ensure proper drainage to avoid waterlogging",
		"Maintain adequate spacing between plants for air circulation",
		"Remove and dispose of infected plant debris properly",
		"Avoid overhead watering; water at the base of plants",
		"Apply balanced fertilizer to maintain plant health",
		"Inspect plants regularly for early detection of diseases",
		"Use disease-resistant plant varieties when available",
		"Practice crop rotation to break disease cycles",
	}
}
