package intent

import (
	"sort"
	"strings"

	"github.com/sasya-arogya/engine/pkg/state"
)

// Rule scores one service intent against a message. Keywords add
// confidence, exclusions subtract, and when context words are required
// their absence halves the score. Higher-priority rules are evaluated
// first and win ties.
type Rule struct {
	Service    string
	Keywords   []string
	Exclusions []string
	Context    []string
	Priority   int
}

// Services a rule can vote for.
const (
	serviceInsurance         = "insurance"
	serviceInsurancePremium  = "insurance_premium"
	serviceInsuranceCompany  = "insurance_companies"
	serviceInsurancePurchase = "insurance_purchase"
	serviceTreatment         = "treatment"
	serviceClassification    = "classification"
	serviceVendor            = "vendor"
)

func defaultRules() []Rule {
	return []Rule{
		{
			Service:  serviceInsurance,
			Keywords: []string{"insurance", "premium", "coverage", "policy", "crop insurance"},
			Priority: 10,
		},
		{
			Service:  serviceInsurancePremium,
			Keywords: []string{"premium", "cost of insurance", "how much is insurance", "insurance cost"},
			Priority: 10,
		},
		{
			Service:  serviceInsuranceCompany,
			Keywords: []string{"companies", "insurer", "provider", "who offers"},
			Context:  []string{"insurance", "policy", "coverage"},
			Priority: 9,
		},
		{
			Service:    serviceInsurancePurchase,
			Keywords:   []string{"buy", "purchase", "apply for"},
			Exclusions: []string{"pesticide", "fungicide", "fertilizer", "equipment", "supplies"},
			Context:    []string{"insurance", "policy", "coverage", "crop"},
			Priority:   8,
		},
		{
			Service:    serviceTreatment,
			Keywords:   []string{"treatment", "treat", "cure", "medicine", "prescription", "remedy"},
			Exclusions: []string{"buy", "purchase", "vendor"},
			Priority:   9,
		},
		{
			Service:  serviceClassification,
			Keywords: []string{"diagnose", "identify", "disease", "classify", "analyze", "what is wrong"},
			Priority: 9,
		},
		{
			Service:    serviceVendor,
			Keywords:   []string{"buy", "purchase", "shop", "vendor"},
			Exclusions: []string{"insurance", "policy", "coverage"},
			Context:    []string{"pesticide", "fungicide", "fertilizer", "equipment", "supplies", "chemical"},
			Priority:   7,
		},
	}
}

var agricultureMarkers = []string{
	"plant", "crop", "farm", "leaf", "leaves", "disease", "pest", "soil",
	"seed", "harvest", "fertilizer", "pesticide", "irrigation", "insurance",
	"tomato", "potato", "rice", "wheat", "cotton", "agriculture", "grow",
}

// analyzeKeywords is the deterministic fallback path.
func (a *Analyzer) analyzeKeywords(message string, hasImage bool) *state.IntentRecord {
	lower := strings.ToLower(message)

	scores := map[string]float64{}
	rules := append([]Rule(nil), a.rules...)
	sort.SliceStable(rules, func(i, j int) bool { return rules[i].Priority > rules[j].Priority })
	for _, rule := range rules {
		if c := rule.score(lower); c > scores[rule.Service] {
			scores[rule.Service] = c
		}
	}

	record := &state.IntentRecord{}
	record.WantsInsurance = scores[serviceInsurance] > 0
	record.WantsInsurancePremium = scores[serviceInsurancePremium] > 0
	record.WantsInsuranceCompanies = scores[serviceInsuranceCompany] > 0
	record.WantsInsurancePurchase = scores[serviceInsurancePurchase] > 0.3
	record.WantsPrescription = scores[serviceTreatment] > 0
	record.WantsClassification = scores[serviceClassification] > 0 || hasImage
	record.WantsFullWorkflow = record.WantsClassification && record.WantsPrescription

	agri := hasImage
	for _, marker := range agricultureMarkers {
		if strings.Contains(lower, marker) {
			agri = true
			break
		}
	}
	record.IsAgricultureRelated = agri
	if agri {
		record.ScopeConfidence = 0.8
		if !record.WantsClassification && !record.WantsPrescription && !record.WantsAnyInsurance() {
			record.IsGeneralQuestion = true
		}
	} else {
		record.OutOfScope = true
		record.ScopeConfidence = 0.2
	}
	return record
}

func (r Rule) score(lower string) float64 {
	matches := 0
	for _, k := range r.Keywords {
		if strings.Contains(lower, k) {
			matches++
		}
	}
	if matches == 0 {
		return 0
	}
	confidence := float64(matches) * 0.3

	for _, e := range r.Exclusions {
		if strings.Contains(lower, e) {
			confidence -= 0.2
		}
	}

	if len(r.Context) > 0 {
		contextMatches := 0
		for _, c := range r.Context {
			if strings.Contains(lower, c) {
				contextMatches++
			}
		}
		if contextMatches > 0 {
			confidence += float64(contextMatches) * 0.2
		} else {
			confidence *= 0.5
		}
	}

	if confidence < 0 {
		return 0
	}
	if confidence > 1 {
		return 1
	}
	return confidence
}
