package state

// IntentRecord is the structured outcome of intent analysis for one user
// message. Closure rules: prescription implies classification, full
// workflow implies both, and out-of-scope clears every other flag.
type IntentRecord struct {
	WantsClassification          bool `json:"wants_classification"`
	WantsPrescription            bool `json:"wants_prescription"`
	WantsFullWorkflow            bool `json:"wants_full_workflow"`
	WantsInsurance               bool `json:"wants_insurance"`
	WantsInsurancePremium        bool `json:"wants_insurance_premium"`
	WantsInsuranceCompanies      bool `json:"wants_insurance_companies"`
	WantsInsuranceRecommendation bool `json:"wants_insurance_recommendation"`
	WantsInsurancePurchase       bool `json:"wants_insurance_purchase"`
	WantsInsuranceCoverage       bool `json:"wants_insurance_coverage"`
	IsGeneralQuestion            bool `json:"is_general_question"`
	IsAgricultureRelated         bool `json:"is_agriculture_related"`
	OutOfScope                   bool `json:"out_of_scope"`

	ScopeConfidence float64 `json:"scope_confidence"`
	GeneralAnswer   string  `json:"general_answer,omitempty"`
}

// Normalize enforces the dependency closure in place and returns the
// record for chaining.
func (r *IntentRecord) Normalize() *IntentRecord {
	if r.WantsFullWorkflow {
		r.WantsClassification = true
		r.WantsPrescription = true
	}
	if r.WantsPrescription {
		r.WantsClassification = true
	}
	if r.WantsInsurancePremium || r.WantsInsuranceCompanies ||
		r.WantsInsuranceRecommendation || r.WantsInsurancePurchase ||
		r.WantsInsuranceCoverage {
		r.WantsInsurance = true
	}
	if r.OutOfScope {
		r.WantsClassification = false
		r.WantsPrescription = false
		r.WantsFullWorkflow = false
		r.WantsInsurance = false
		r.WantsInsurancePremium = false
		r.WantsInsuranceCompanies = false
		r.WantsInsuranceRecommendation = false
		r.WantsInsurancePurchase = false
		r.WantsInsuranceCoverage = false
		r.IsGeneralQuestion = false
		r.GeneralAnswer = ""
	}
	return r
}

// WantsAnyInsurance reports whether any insurance-specific flag is set.
func (r *IntentRecord) WantsAnyInsurance() bool {
	if r == nil {
		return false
	}
	return r.WantsInsurance || r.WantsInsurancePremium || r.WantsInsuranceCompanies ||
		r.WantsInsuranceRecommendation || r.WantsInsurancePurchase || r.WantsInsuranceCoverage
}
