package access

// Reason explains an access decision. Values are stable API codes.
type Reason string

const (
	ReasonOpen           Reason = "open"
	ReasonException      Reason = "exception"
	ReasonOK             Reason = "ok"
	ReasonPlanMismatch   Reason = "plan_mismatch"
	ReasonNoSubscription Reason = "no_subscription"
)

// Decision is the outcome of resolving a user's access to a deal.
type Decision struct {
	HasAccess bool   `json:"has_access"`
	Reason    Reason `json:"reason"`
}

func allow(r Reason) Decision { return Decision{HasAccess: true, Reason: r} }

func deny(r Reason) Decision { return Decision{HasAccess: false, Reason: r} }
