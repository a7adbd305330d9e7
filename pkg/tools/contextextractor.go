package tools

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/sasya-arogya/engine/pkg/state"
)

// acreToHectare converts acres to hectares.
const acreToHectare = 0.4047

// ExtractedContext holds everything the extractor could read out of one
// user message. Empty fields mean nothing was found; callers merge with
// existing state and API context (API wins).
type ExtractedContext struct {
	PlantType   string
	Location    string
	Season      string
	GrowthStage string
	FarmerName  string
	Crop        string
	State       string
	AreaHectare float64
}

// ContextExtractor derives structured agricultural context from free
// text using keyword and regex tables. It is deterministic and needs no
// external calls, so nodes can run it on every message.
type ContextExtractor struct{}

// NewContextExtractor returns a ready extractor.
func NewContextExtractor() *ContextExtractor {
	return &ContextExtractor{}
}

var indianStates = []string{
	"andhra pradesh", "arunachal pradesh", "assam", "bihar", "chhattisgarh",
	"goa", "gujarat", "haryana", "himachal pradesh", "jharkhand", "karnataka",
	"kerala", "madhya pradesh", "maharashtra", "manipur", "meghalaya",
	"mizoram", "nagaland", "odisha", "punjab", "rajasthan", "sikkim",
	"tamil nadu", "telangana", "tripura", "uttar pradesh", "uttarakhand",
	"west bengal",
}

var indianCities = []string{
	"mumbai", "delhi", "bangalore", "bengaluru", "hyderabad", "chennai",
	"kolkata", "pune", "ahmedabad", "surat", "jaipur", "lucknow", "kanpur",
	"nagpur", "indore", "thane", "bhopal", "visakhapatnam", "patna",
	"vadodara", "coimbatore", "madurai", "salem", "tiruchirappalli",
	"vellore", "mysore",
}

var seasonKeywords = map[string][]string{
	"monsoon":      {"monsoon", "rainy", "rain", "wet", "july", "august", "september"},
	"winter":       {"winter", "cold", "december", "january", "february", "cool"},
	"summer":       {"summer", "hot", "march", "april", "may", "june", "dry", "heat"},
	"post_monsoon": {"post-monsoon", "october", "november", "retreat"},
}

var plantKeywords = []string{
	"tomato", "potato", "onion", "garlic", "carrot", "beans", "peas",
	"cabbage", "cauliflower", "spinach", "lettuce", "cucumber",
	"bottle gourd", "bitter gourd", "pumpkin", "chili", "pepper", "capsicum",
	"radish", "beetroot", "turnip", "coriander", "mint",
	"rice", "wheat", "corn", "maize", "barley", "jowar", "bajra",
	"cotton", "sugarcane", "tobacco", "tea", "coffee", "rubber",
	"groundnut", "peanut", "sunflower", "mustard", "sesame", "soybean",
	"chickpea", "chana", "lentil", "masoor", "black gram", "urad",
	"green gram", "moong", "pigeon pea", "arhar", "kidney beans", "rajma",
	"mango", "banana", "apple", "grape", "orange", "papaya", "guava",
}

var growthStageKeywords = map[string][]string{
	"seedling":  {"seedling", "sprout", "germinating", "just planted", "newly planted"},
	"vegetative": {"vegetative", "growing", "leafy", "young plant"},
	"flowering": {"flowering", "blooming", "buds", "flowers"},
	"fruiting":  {"fruiting", "fruit", "bearing", "pods forming"},
	"mature":    {"mature", "ready to harvest", "harvest", "ripe"},
}

var commonInsuranceCrops = []string{
	"rice", "wheat", "corn", "maize", "cotton", "sugarcane", "soybean",
	"tomato", "potato", "onion", "garlic", "chili", "pepper", "cabbage",
	"carrot", "mustard", "barley", "groundnut", "sesame", "sunflower",
	"jowar", "bajra",
}

var (
	farmerNamePatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?i)(?:my name is|i am|i'm)\s+([a-zA-Z]+(?:\s+[a-zA-Z]+)?)`),
		regexp.MustCompile(`(?i)farmer\s+([a-zA-Z]+(?:\s+[a-zA-Z]+)?)`),
		regexp.MustCompile(`(?i)name:\s*([a-zA-Z]+(?:\s+[a-zA-Z]+)?)`),
	}

	hectarePattern  = regexp.MustCompile(`(?i)(\d+(?:\.\d+)?)\s*(?:hectares?|ha\b)`)
	acrePattern     = regexp.MustCompile(`(?i)(\d+(?:\.\d+)?)\s*acres?`)
	bareAreaPattern = regexp.MustCompile(`(?i)area\D*?(\d+(?:\.\d+)?)`)

	cropPhrasePatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?i)(?:crop|plant|growing)\s+([a-zA-Z]+)`),
		regexp.MustCompile(`(?i)([a-zA-Z]+)\s+(?:crop|cultivation)`),
		regexp.MustCompile(`(?i)cultivating\s+([a-zA-Z]+)`),
	}
)

// Extract runs every pattern table over the message. Matched values are
// title-cased; downstream services receive them verbatim.
func (e *ContextExtractor) Extract(message string) ExtractedContext {
	lower := strings.ToLower(message)
	out := ExtractedContext{
		PlantType:   titleCase(matchFirst(lower, plantKeywords)),
		Season:      titleCase(strings.ReplaceAll(matchGrouped(lower, seasonKeywords), "_", " ")),
		GrowthStage: titleCase(matchGrouped(lower, growthStageKeywords)),
		State:       titleCase(matchFirst(lower, indianStates)),
		FarmerName:  extractFarmerName(message),
		AreaHectare: extractArea(message),
	}

	if out.State != "" {
		out.Location = out.State
	} else if city := matchFirst(lower, indianCities); city != "" {
		out.Location = titleCase(city)
	}

	out.Crop = titleCase(extractCrop(lower))
	return out
}

// MergeIntoState copies extracted values into state fields that are still
// empty. Existing values, including API-provided context, always win.
func (e *ContextExtractor) MergeIntoState(s *state.WorkflowState, ec ExtractedContext) {
	if s.PlantType == "" {
		s.PlantType = firstNonEmpty(s.ContextValue("plant_type"), ec.PlantType)
	}
	if s.Location == "" {
		s.Location = firstNonEmpty(s.ContextValue("location"), ec.Location)
	}
	if s.Season == "" {
		s.Season = firstNonEmpty(s.ContextValue("season"), ec.Season)
	}
	if s.GrowthStage == "" {
		s.GrowthStage = firstNonEmpty(s.ContextValue("growth_stage"), ec.GrowthStage)
	}
	if s.FarmerName == "" {
		s.FarmerName = firstNonEmpty(s.ContextValue("farmer_name"), ec.FarmerName)
	}
	if s.Crop == "" {
		s.Crop = firstNonEmpty(s.ContextValue("crop"), ec.Crop, ec.PlantType)
	}
	if s.State == "" {
		s.State = firstNonEmpty(s.ContextValue("state"), ec.State)
	}
	if s.AreaHectare == 0 {
		if v := s.ContextValue("area_hectare"); v != "" {
			if f, err := strconv.ParseFloat(v, 64); err == nil {
				s.AreaHectare = f
			}
		}
		if s.AreaHectare == 0 {
			s.AreaHectare = ec.AreaHectare
		}
	}
}

func extractFarmerName(message string) string {
	for _, p := range farmerNamePatterns {
		if m := p.FindStringSubmatch(message); len(m) > 1 {
			name := strings.TrimSpace(m[1])
			// Drop trailing filler the loose patterns tend to swallow.
			for _, stop := range []string{" and", " from", " with", " in"} {
				if idx := strings.Index(strings.ToLower(name), stop); idx > 0 {
					name = name[:idx]
				}
			}
			if name != "" {
				return titleCase(name)
			}
		}
	}
	return ""
}

func extractArea(message string) float64 {
	if m := hectarePattern.FindStringSubmatch(message); len(m) > 1 {
		if v, err := strconv.ParseFloat(m[1], 64); err == nil {
			return v
		}
	}
	if m := acrePattern.FindStringSubmatch(message); len(m) > 1 {
		if v, err := strconv.ParseFloat(m[1], 64); err == nil {
			return v * acreToHectare
		}
	}
	if m := bareAreaPattern.FindStringSubmatch(message); len(m) > 1 {
		if v, err := strconv.ParseFloat(m[1], 64); err == nil {
			return v
		}
	}
	return 0
}

func extractCrop(lower string) string {
	for _, crop := range commonInsuranceCrops {
		if strings.Contains(lower, crop) {
			return crop
		}
	}
	for _, p := range cropPhrasePatterns {
		if m := p.FindStringSubmatch(lower); len(m) > 1 {
			candidate := strings.TrimSpace(m[1])
			switch candidate {
			case "my", "the", "a", "an", "some", "insurance":
				continue
			}
			return candidate
		}
	}
	return ""
}

func matchFirst(lower string, keywords []string) string {
	for _, k := range keywords {
		if strings.Contains(lower, k) {
			return k
		}
	}
	return ""
}

func matchGrouped(lower string, groups map[string][]string) string {
	// Deterministic iteration keeps results stable across runs.
	best := ""
	for name, words := range groups {
		for _, w := range words {
			if strings.Contains(lower, w) {
				if best == "" || name < best {
					best = name
				}
				break
			}
		}
	}
	return best
}

func titleCase(s string) string {
	words := strings.Fields(strings.ToLower(s))
	for i, w := range words {
		words[i] = strings.ToUpper(w[:1]) + w[1:]
	}
	return strings.Join(words, " ")
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
