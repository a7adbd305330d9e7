package state

// Flatten renders the state as a flat key/value map keyed by wire field
// names. The streaming layer diffs consecutive flattened snapshots to
// produce state_update deltas; nested results are carried as their typed
// values and compared structurally.
//
// Transient and bulk fields (user_image, attention_overlay, messages,
// last_update_time) are included here so the overlay emitter can see them;
// the delta exclusion set removes them before any state_update event.
func (s *WorkflowState) Flatten() map[string]any {
	m := map[string]any{}
	put := func(k string, v any, include bool) {
		if include {
			m[k] = v
		}
	}

	m["session_id"] = s.SessionID
	m["last_update_time"] = s.LastUpdateTime

	put("user_message", s.UserMessage, s.UserMessage != "")
	put("user_image", s.UserImage, s.UserImage != "")
	put("user_context", s.UserContext, len(s.UserContext) > 0)

	put("plant_type", s.PlantType, s.PlantType != "")
	put("location", s.Location, s.Location != "")
	put("season", s.Season, s.Season != "")
	put("growth_stage", s.GrowthStage, s.GrowthStage != "")
	put("farmer_name", s.FarmerName, s.FarmerName != "")
	put("crop", s.Crop, s.Crop != "")
	put("state", s.State, s.State != "")
	put("area_hectare", s.AreaHectare, s.AreaHectare != 0)

	put("messages", s.Messages, len(s.Messages) > 0)

	put("current_node", s.CurrentNode, s.CurrentNode != "")
	put("previous_node", s.PreviousNode, s.PreviousNode != "")
	put("next_action", s.NextAction, s.NextAction != "")
	m["requires_user_input"] = s.RequiresUserInput
	m["is_complete"] = s.IsComplete
	m["session_ended"] = s.SessionEnded

	put("user_intent", s.UserIntent, s.UserIntent != nil)

	put("classification_results", s.ClassificationResults, s.ClassificationResults != nil)
	put("disease_name", s.DiseaseName, s.DiseaseName != "")
	put("confidence", s.Confidence, s.Confidence != 0)

	put("prescription_data", s.PrescriptionData, s.PrescriptionData != nil)
	put("treatment_recommendations", s.TreatmentRecommendations, len(s.TreatmentRecommendations) > 0)

	put("insurance_context", s.InsuranceContext, len(s.InsuranceContext) > 0)
	put("insurance_premium_details", s.InsurancePremiumDetails, s.InsurancePremiumDetails != nil)
	put("insurance_recommendations", s.InsuranceRecommendations, s.InsuranceRecommendations != nil)
	put("insurance_companies", s.InsuranceCompanies, s.InsuranceCompanies != nil)
	put("insurance_certificate", s.InsuranceCertificate, s.InsuranceCertificate != nil)
	put("insurance_operation_completed", s.InsuranceOperationCompleted, s.InsuranceOperationCompleted)

	put("vendor_options", s.VendorOptions, len(s.VendorOptions) > 0)
	put("selected_vendor", s.SelectedVendor, s.SelectedVendor != nil)
	put("order_details", s.OrderDetails, s.OrderDetails != "")

	put("assistant_response", s.AssistantResponse, s.AssistantResponse != "")
	put("response_status", s.ResponseStatus, s.ResponseStatus != "")
	m["stream_immediately"] = s.StreamImmediately
	m["stream_in_state_update"] = s.StreamInStateUpdate

	put("error_message", s.ErrorMessage, s.ErrorMessage != "")
	put("retry_count", s.RetryCount, s.RetryCount != 0)

	put("last_insurance_message", s.LastInsuranceMessage, s.LastInsuranceMessage != "")
	put("insurance_action_count", s.InsuranceActionCount, s.InsuranceActionCount != 0)

	put("attention_overlay", s.AttentionOverlay, s.AttentionOverlay != "")

	return m
}
