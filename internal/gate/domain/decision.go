package domain

// Decision is the gate's verdict for a (user, source IP) pair.
type Decision string

const (
	// DecisionAllow lets the request through without a code. The source IP is
	// allow-listed, whatever the enrollment state.
	DecisionAllow Decision = "allow"
	// DecisionChallenge demands a current code; the user has a confirmed enrollment.
	DecisionChallenge Decision = "challenge"
	// DecisionBlockWithRequest blocks and offers an approval request; the user
	// has no confirmed enrollment and the IP is unknown.
	DecisionBlockWithRequest Decision = "block_with_request"
)

// Evaluation is the full gate verdict with the facts it was derived from.
type Evaluation struct {
	Decision        Decision
	IPAllowlisted   bool
	EnrollmentState string
}
