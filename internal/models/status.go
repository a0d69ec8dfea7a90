package models

// StatusSteps are shown in the chat while an answer is being produced.
var StatusSteps = []string{
	"Zoeken naar relevante informatie",
	"Extracteren van relevante informatie",
	"Formuleren van reactie",
}

// StatusPageSteps are the stages of a submitted request shown on the status page.
var StatusPageSteps = []string{
	"Verzoek ontvangen",
	"Contactpersoon toewijzen",
	"Zoeken naar relevante informatie",
	"Extracteren van relevante informatie",
	"Formuleren van reactie",
	"Reactie verzonden",
}

// StepState is the rendering state of one status step.
type StepState string

const (
	StepCompleted StepState = "completed"
	StepCurrent   StepState = "current"
	StepPending   StepState = "pending"
)

// Step is a labelled status step.
type Step struct {
	Label string
	State StepState
}

// StatusProgress marks every step before current as completed and current itself as current.
// current is clamped to the available steps.
func StatusProgress(steps []string, current int) []Step {
	if len(steps) == 0 {
		return nil
	}
	current = max(0, min(current, len(steps)-1))

	res := make([]Step, len(steps))
	for i, label := range steps {
		state := StepPending
		switch {
		case i < current:
			state = StepCompleted
		case i == current:
			state = StepCurrent
		}
		res[i] = Step{Label: label, State: state}
	}
	return res
}
