// Package classifier implements the consent and safety checks that run on
// every inbound message before anything is forwarded to the generation
// service.
package classifier

import "strings"

// Decision is the classifier's verdict on a message.
type Decision int

const (
	// DecisionForward clears the message for generation.
	DecisionForward Decision = iota
	// DecisionOptOut is an exact opt-out command.
	DecisionOptOut
	// DecisionOptIn is an exact re-subscribe command.
	DecisionOptIn
	// DecisionEmergency is a request touching emergency services.
	DecisionEmergency
)

// Fixed response texts. Short-circuited messages get these verbatim, never a
// generated reply.
const (
	OptOutConfirmation = "You have been unsubscribed. You will no longer receive messages. To opt back in, reply START."
	OptInConfirmation  = "You are re-subscribed and will receive messages again."
	EmergencyDeflect   = "I cannot contact emergency services. Please dial 911 or 112 directly if you are in danger."
	// SystemModel labels compliance short-circuit responses in place of a
	// generation model name.
	SystemModel = "system-compliance"
)

// Opt-out and opt-in commands match the whole message exactly,
// case-insensitively. Emergency terms match as substrings.
var (
	optOutCommands = map[string]bool{"STOP": true, "UNSUBSCRIBE": true}
	optInCommands  = map[string]bool{"START": true}

	emergencyTerms = []string{"911", "112", "SUICIDE", "FIRE", "POLICE", "AMBULANCE", "EMERGENCY"}
)

// Classify runs the fixed-order checks: opt-out commands first, then
// re-subscribe commands, then emergency terms. "STOP" wins even when the
// message would also match an emergency term, and a longer message merely
// containing "stop" is not an opt-out.
func Classify(text string) Decision {
	upper := strings.ToUpper(strings.TrimSpace(text))

	if optOutCommands[upper] {
		return DecisionOptOut
	}
	if optInCommands[upper] {
		return DecisionOptIn
	}
	for _, term := range emergencyTerms {
		if strings.Contains(upper, term) {
			return DecisionEmergency
		}
	}
	return DecisionForward
}
