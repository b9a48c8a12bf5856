package nodes

import (
	"context"
	"fmt"
	"maps"
	"slices"
	"strings"

	"github.com/hr-benefits-assistant/server/internal/agent/eligibility"
	"github.com/hr-benefits-assistant/server/internal/agent/model"
	logx "github.com/hr-benefits-assistant/server/pkg/logger"
)

const (
	dataConfidence          = 0.9
	clarificationConfidence = 0.3
	gateConfidence          = 0.5
)

// Records is the part of the record store the handlers use.
type Records interface {
	LookupBenefits(employeeID string) (model.BenefitsRecord, bool)
	Update(ctx context.Context, employeeID, benefitType string, updates map[string]any) (model.UpdateResult, error)
}

// Dispatcher routes a classified turn to exactly one intent handler.
type Dispatcher struct {
	records Records
	engine  *eligibility.Engine
}

func NewDispatcher(records Records, engine *eligibility.Engine) *Dispatcher {
	return &Dispatcher{records: records, engine: engine}
}

// Dispatch handles every intent label. Handlers that need identity answer
// with an identification request when the turn has no employee.
func (d *Dispatcher) Dispatch(ctx context.Context, t *model.Turn) model.HandlerResult {
	intent := t.Classification.Intent
	if intent.RequiresIdentity() && t.Employee == nil {
		return identityGate(t)
	}

	switch intent {
	case model.IntentEmployeeIdentification:
		return d.handleIdentification(t)
	case model.IntentBenefitsQuery:
		return d.handleBenefitsQuery(t, *t.Employee)
	case model.IntentEligibilityCheck:
		return d.handleEligibility(t, *t.Employee)
	case model.IntentBenefitsUpdate:
		return d.handleUpdate(ctx, t, *t.Employee)
	case model.IntentGeneralQuestion:
		return d.handleGeneral(t)
	case model.IntentClarificationNeeded:
		return d.handleClarification(t)
	}
	logx.Error().Str("intent", intent.String()).Str("session_id", t.SessionID).Msg("no handler for intent")
	return d.handleClarification(t)
}

func (d *Dispatcher) handleIdentification(t *model.Turn) model.HandlerResult {
	conf := t.Extracted.Confidence
	res := t.Resolution

	switch res.Outcome {
	case model.ResolutionMatched:
		if t.Session.Identified {
			if t.Employee.ID != res.Employee.ID {
				return model.HandlerResult{
					Text:       fmt.Sprintf("This conversation is already verified for %s. Please start a new conversation to look up a different employee.", t.Employee.Name),
					Confidence: conf,
					Action:     model.ActionIdentityConfirmed,
					Data:       map[string]any{"employee_id": t.Employee.ID},
				}
			}
			return model.HandlerResult{
				Text:       fmt.Sprintf("You're already verified as %s. What would you like to know about your benefits?", t.Employee.Name),
				Confidence: conf,
				Action:     model.ActionIdentityConfirmed,
				Data:       map[string]any{"employee_id": t.Employee.ID},
			}
		}
		return model.HandlerResult{
			Text:       fmt.Sprintf("Thanks, %s. You're verified. I can show your current benefits, check your eligibility, or help you make a change.", t.Employee.Name),
			Confidence: conf,
			Action:     model.ActionIdentityVerified,
			Data:       map[string]any{"employee_id": t.Employee.ID},
		}
	case model.ResolutionAmbiguous:
		return ambiguousResult(conf)
	case model.ResolutionNotFound:
		return notFoundResult(conf)
	}

	if t.Employee != nil {
		return model.HandlerResult{
			Text:       fmt.Sprintf("You're verified as %s. What would you like to know about your benefits?", t.Employee.Name),
			Confidence: clarificationConfidence,
			Action:     model.ActionIdentityConfirmed,
		}
	}
	return model.HandlerResult{
		Text:       "To look up your benefits I need to verify who you are. Please share your employee ID, or your full name with your date of birth or the last four digits of your SSN.",
		Confidence: gateConfidence,
		Action:     model.ActionRequestIdentification,
	}
}

// identityGate answers an identity-requiring intent in an unidentified turn.
// The wording reflects what resolution found this turn.
func identityGate(t *model.Turn) model.HandlerResult {
	switch t.Resolution.Outcome {
	case model.ResolutionAmbiguous:
		return ambiguousResult(t.Extracted.Confidence)
	case model.ResolutionNotFound:
		return notFoundResult(t.Extracted.Confidence)
	}
	return model.HandlerResult{
		Text:       "Before I can help with that, I need to verify who you are. Please share your employee ID, or your full name with your date of birth or the last four digits of your SSN.",
		Confidence: gateConfidence,
		Action:     model.ActionRequestIdentification,
	}
}

func ambiguousResult(conf float64) model.HandlerResult {
	return model.HandlerResult{
		Text:       "I found more than one employee matching those details. Please share your employee ID or the last four digits of your SSN so I can find the right record.",
		Confidence: conf,
		Action:     model.ActionIdentityAmbiguous,
	}
}

func notFoundResult(conf float64) model.HandlerResult {
	return model.HandlerResult{
		Text:       "I couldn't find an employee matching those details. Please check your employee ID, or share your full name with your date of birth or the last four digits of your SSN.",
		Confidence: conf,
		Action:     model.ActionEmployeeNotFound,
	}
}

func (d *Dispatcher) handleBenefitsQuery(t *model.Turn, emp model.EmployeeRecord) model.HandlerResult {
	rec, ok := d.records.LookupBenefits(emp.ID)
	if !ok || len(rec.Benefits) == 0 {
		logx.Info().Str("session_id", t.SessionID).Str("employee_id", emp.ID).Msg("no benefits record on file")
		return noBenefitsResult(emp)
	}

	benefitType := DetectBenefitType(t.Message, d.knownTypes(rec))
	if benefitType == "" {
		return model.HandlerResult{
			Text:       fmt.Sprintf("Here are your current benefits, %s:\n%s", emp.Name, describeAll(rec.Benefits)),
			Confidence: dataConfidence,
			Action:     model.ActionBenefitsDisplayed,
			Data:       map[string]any{"benefits": rec.Benefits},
		}
	}

	attrs, enrolled := rec.Benefits[benefitType]
	if !enrolled {
		return model.HandlerResult{
			Text:       fmt.Sprintf("You are not currently enrolled in %s. You can ask me whether you're eligible.", benefitType),
			Confidence: dataConfidence,
			Action:     model.ActionBenefitsDisplayed,
			Data:       map[string]any{"benefit_type": benefitType, "enrolled": false},
		}
	}
	return model.HandlerResult{
		Text:       fmt.Sprintf("Your %s details: %s.", benefitType, describeAttributes(attrs)),
		Confidence: dataConfidence,
		Action:     model.ActionBenefitsDisplayed,
		Data:       map[string]any{"benefit_type": benefitType, "details": attrs},
	}
}

func noBenefitsResult(emp model.EmployeeRecord) model.HandlerResult {
	return model.HandlerResult{
		Text:       fmt.Sprintf("I don't have any benefits on file for %s yet. If you recently joined, your enrollment may still be processing; HR can confirm.", emp.Name),
		Confidence: dataConfidence,
		Action:     model.ActionNoBenefitsOnFile,
	}
}

func (d *Dispatcher) handleEligibility(t *model.Turn, emp model.EmployeeRecord) model.HandlerResult {
	rec, _ := d.records.LookupBenefits(emp.ID)
	known := d.knownTypes(rec)
	benefitType := DetectBenefitType(t.Message, known)
	if benefitType == "" {
		return clarifyBenefitType("Which benefit would you like me to check your eligibility for?", known)
	}

	v := d.engine.Evaluate(emp, benefitType)
	text := fmt.Sprintf("Good news: you are eligible for %s. %s", benefitType, v.Reason)
	if !v.Eligible {
		text = fmt.Sprintf("You are not currently eligible for %s. %s", benefitType, v.Reason)
	}
	return model.HandlerResult{
		Text:       text,
		Confidence: dataConfidence,
		Action:     model.ActionEligibilityChecked,
		Data:       v,
	}
}

func (d *Dispatcher) handleUpdate(ctx context.Context, t *model.Turn, emp model.EmployeeRecord) model.HandlerResult {
	rec, _ := d.records.LookupBenefits(emp.ID)
	known := d.knownTypes(rec)
	benefitType := DetectBenefitType(t.Message, known)
	if benefitType == "" {
		return clarifyBenefitType("Which benefit would you like to change?", known)
	}

	v := d.engine.Evaluate(emp, benefitType)
	if !v.Eligible {
		logx.Info().
			Str("session_id", t.SessionID).
			Str("employee_id", emp.ID).
			Str("benefit_type", benefitType).
			Msg("update denied by eligibility")
		return model.HandlerResult{
			Text:       fmt.Sprintf("I can't submit that change because you are not eligible for %s. %s", benefitType, v.Reason),
			Confidence: dataConfidence,
			Action:     model.ActionUpdateDenied,
			Data:       v,
		}
	}

	updates := ParseUpdateRequest(t.Message)
	res, err := d.records.Update(ctx, emp.ID, benefitType, updates)
	if err != nil {
		logx.Error().Err(err).Str("session_id", t.SessionID).Str("employee_id", emp.ID).Msg("benefits update failed")
		return model.HandlerResult{
			Text:       "I wasn't able to save that change right now. Nothing was modified; please try again later.",
			Confidence: dataConfidence,
			Action:     model.ActionUpdateFailed,
		}
	}
	if !res.Success {
		if res.Reason == model.ReasonNoBenefitsOnFile {
			return noBenefitsResult(emp)
		}
		return model.HandlerResult{
			Text:       fmt.Sprintf("I couldn't submit that change: %s.", res.Reason),
			Confidence: dataConfidence,
			Action:     model.ActionUpdateFailed,
			Data:       res,
		}
	}
	return model.HandlerResult{
		Text:       fmt.Sprintf("Your %s change (%s) has been submitted and takes effect on %s.", benefitType, describeAttributes(updates), res.EffectiveDate),
		Confidence: dataConfidence,
		Action:     model.ActionUpdateSubmitted,
		Data: map[string]any{
			"benefit_type":   benefitType,
			"changes":        updates,
			"effective_date": res.EffectiveDate,
		},
	}
}

func (d *Dispatcher) handleGeneral(t *model.Turn) model.HandlerResult {
	types := d.engine.BenefitTypes()
	slices.Sort(types)
	text := fmt.Sprintf("I can help with questions about our benefit programs (%s), show your current benefits, check your eligibility, and submit changes.", strings.Join(types, ", "))
	if t.Employee == nil {
		text += " For anything about your own records, I'll first need your employee ID."
	}
	return model.HandlerResult{
		Text:       text,
		Confidence: dataConfidence,
		Action:     model.ActionGeneralAnswer,
		Data:       map[string]any{"benefit_programs": types},
	}
}

func (d *Dispatcher) handleClarification(t *model.Turn) model.HandlerResult {
	text := "I'm not sure I understood. I can show your current benefits, check whether you're eligible for a benefit, or help you update one. What would you like to do?"
	if t.Employee == nil {
		text = "I'm not sure I understood. To get started, please share your employee ID, or your full name with your date of birth or the last four digits of your SSN."
	}
	return model.HandlerResult{
		Text:       text,
		Confidence: clarificationConfidence,
		Action:     model.ActionClarificationRequested,
	}
}

func clarifyBenefitType(question string, known []string) model.HandlerResult {
	return model.HandlerResult{
		Text:       fmt.Sprintf("%s Options: %s.", question, strings.Join(known, ", ")),
		Confidence: clarificationConfidence,
		Action:     model.ActionClarifyBenefitType,
		Data:       map[string]any{"options": known},
	}
}

// knownTypes is the sorted union of rule benefit types and the employee's benefits.
func (d *Dispatcher) knownTypes(rec model.BenefitsRecord) []string {
	set := map[string]bool{}
	for _, bt := range d.engine.BenefitTypes() {
		set[bt] = true
	}
	for bt := range rec.Benefits {
		set[strings.ToLower(bt)] = true
	}
	return slices.Sorted(maps.Keys(set))
}
