package model

// Intent is the classified purpose of a user message.
type Intent string

const (
	IntentEmployeeIdentification Intent = "employee_identification"
	IntentBenefitsQuery          Intent = "benefits_query"
	IntentBenefitsUpdate         Intent = "benefits_update"
	IntentEligibilityCheck       Intent = "eligibility_check"
	IntentGeneralQuestion        Intent = "general_question"
	IntentClarificationNeeded    Intent = "clarification_needed"
)

// Intents lists every intent in a stable order.
var Intents = []Intent{
	IntentEmployeeIdentification,
	IntentBenefitsQuery,
	IntentBenefitsUpdate,
	IntentEligibilityCheck,
	IntentGeneralQuestion,
	IntentClarificationNeeded,
}

// ParseIntent matches s against the known labels verbatim.
func ParseIntent(s string) (Intent, bool) {
	for _, it := range Intents {
		if string(it) == s {
			return it, true
		}
	}
	return "", false
}

// RequiresIdentity reports whether handling the intent needs a resolved employee.
func (i Intent) RequiresIdentity() bool {
	switch i {
	case IntentBenefitsQuery, IntentEligibilityCheck, IntentBenefitsUpdate:
		return true
	default:
		return false
	}
}

func (i Intent) String() string {
	return string(i)
}
