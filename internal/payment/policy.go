package payment

type Decision int

const (
	Approve Decision = iota
	Decline
)

// DecisionPolicy decides the outcome of a valid card. attempt is 1-based and
// counts every policy evaluation made by one Authorizer.
type DecisionPolicy interface {
	Decide(attempt uint64) Decision
}

type PolicyFunc func(attempt uint64) Decision

func (f PolicyFunc) Decide(attempt uint64) Decision { return f(attempt) }

// EveryNth declines every nth attempt. Zero never declines.
func EveryNth(n uint64) DecisionPolicy {
	return PolicyFunc(func(attempt uint64) Decision {
		if n == 0 || attempt%n != 0 {
			return Approve
		}
		return Decline
	})
}

func AlwaysApprove() DecisionPolicy {
	return PolicyFunc(func(uint64) Decision { return Approve })
}

func AlwaysDecline() DecisionPolicy {
	return PolicyFunc(func(uint64) Decision { return Decline })
}
