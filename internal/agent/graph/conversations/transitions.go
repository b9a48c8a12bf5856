package conversations

import "github.com/hr-benefits-assistant/server/internal/agent/model"

// AdvanceStage computes the session's next stage and resume stage after a
// turn. state must already carry any employee established by the turn.
//
//	identification   -> benefits_inquiry  identity established
//	any identified   -> update_flow       benefits_update intent
//	any              -> clarification     clarification_needed, or ambiguous identity before identification
//	clarification    -> resumed stage     a clear intent arrives
//
// A degraded turn never moves the stage; the next clean turn catches up.
// update_flow is left only through clarification.
func AdvanceStage(state *model.SessionState, t *model.Turn) (stage, resume model.Stage) {
	stage, resume = state.Stage, state.ResumeStage
	if stage == "" {
		stage = model.StageIdentification
	}
	if t.Degraded {
		return stage, resume
	}

	intent := t.Classification.Intent
	ambiguous := t.Resolution.Outcome == model.ResolutionAmbiguous && !state.Identified()

	switch {
	case intent == model.IntentClarificationNeeded || ambiguous:
		if stage != model.StageClarification {
			resume = stage
		}
		stage = model.StageClarification
	default:
		if stage == model.StageClarification {
			stage, resume = resume, ""
			if stage == "" {
				stage = model.StageIdentification
			}
		}
		if state.Identified() && stage == model.StageIdentification {
			stage = model.StageBenefitsInquiry
		}
		if intent == model.IntentBenefitsUpdate && state.Identified() {
			stage = model.StageUpdateFlow
		}
	}

	if stage.RequiresIdentity() && !state.Identified() {
		stage = model.StageIdentification
	}
	if resume.RequiresIdentity() && !state.Identified() {
		resume = model.StageIdentification
	}
	return stage, resume
}
