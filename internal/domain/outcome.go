package domain

// OutcomeKind classifies how the handling of one delivery ended.
type OutcomeKind string

const (
	// OutcomeArchived: the payload was archived but could not be decoded.
	OutcomeArchived OutcomeKind = "archived"
	// OutcomeDecoded: the request decoded but produced no content to send.
	OutcomeDecoded OutcomeKind = "decoded"
	// OutcomeDispatched: content was resolved and fanned out to destinations.
	OutcomeDispatched OutcomeKind = "dispatched"
	// OutcomeFailed: a store write failed and the request was not handled.
	OutcomeFailed OutcomeKind = "failed"
)

// SendStatus is the result of one destination entry.
type SendStatus string

const (
	SendSent         SendStatus = "sent"
	SendFailed       SendStatus = "failed"
	SendSkipped      SendStatus = "skipped"
	SendUnrecognized SendStatus = "unrecognized"
)

// DestinationResult records what happened to a single destinations entry.
type DestinationResult struct {
	Channel     string     `json:"channel"`
	Destination string     `json:"destination,omitempty"`
	Status      SendStatus `json:"status"`
	Error       string     `json:"error,omitempty"`
}

// Report aggregates per-destination results, in destinations order.
type Report struct {
	Results []DestinationResult `json:"results"`
}

// Count returns how many results have status s.
func (r Report) Count(s SendStatus) int {
	n := 0
	for _, res := range r.Results {
		if res.Status == s {
			n++
		}
	}
	return n
}

// Outcome is produced exactly once per delivery.
type Outcome struct {
	Kind    OutcomeKind
	Reason  string
	Request *NotificationRequest
	Report  Report
}

func Failed(reason string) Outcome {
	return Outcome{Kind: OutcomeFailed, Reason: reason}
}

// Action is the settlement the consumer applies to a delivery.
type Action int

const (
	ActionAck Action = iota
	ActionDeadLetter
)

func (a Action) String() string {
	if a == ActionDeadLetter {
		return "dead_letter"
	}
	return "ack"
}

// Decide maps an outcome to its settlement. Only failed outcomes are
// dead-lettered; decode failures and channel send failures are acked.
func Decide(o Outcome) Action {
	if o.Kind == OutcomeFailed {
		return ActionDeadLetter
	}
	return ActionAck
}

// Settlement is what the consumer actually did with a delivery. It can differ
// from the decided Action: a dead-letter publish may fail, or no dead-letter
// queue may be configured.
type Settlement string

const (
	SettledAck        Settlement = "ack"
	SettledDeadLetter Settlement = "dead_letter"
	SettledRequeue    Settlement = "requeue"
	SettledDropped    Settlement = "dropped"
)
