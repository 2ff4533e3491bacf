package orders

import "fmt"

type Status string

const (
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
	StatusShipped    Status = "shipped"
	StatusDelivered  Status = "delivered"
	StatusCancelled  Status = "cancelled"
)

type PaymentStatus string

const (
	PaymentPending  PaymentStatus = "pending"
	PaymentPaid     PaymentStatus = "paid"
	PaymentFailed   PaymentStatus = "failed"
	PaymentRefunded PaymentStatus = "refunded"
)

// StatusTransitions lists the lifecycle moves an order may make.
// delivered and cancelled have no entry: they are terminal.
var StatusTransitions = map[Status][]Status{
	StatusPending:    {StatusProcessing, StatusCancelled},
	StatusProcessing: {StatusShipped, StatusCancelled},
	StatusShipped:    {StatusDelivered, StatusCancelled},
	StatusDelivered:  {},
	StatusCancelled:  {},
}

// PaymentTransitions lists the financial moves. failed -> pending is the retry edge.
var PaymentTransitions = map[PaymentStatus][]PaymentStatus{
	PaymentPending:  {PaymentPaid, PaymentFailed},
	PaymentPaid:     {PaymentRefunded},
	PaymentFailed:   {PaymentPending},
	PaymentRefunded: {},
}

// CanTransition reports whether table allows current -> target. Unknown states never transition.
func CanTransition[S ~string](current, target S, table map[S][]S) bool {
	for _, to := range table[current] {
		if to == target {
			return true
		}
	}
	return false
}

func IsTerminalStatus(s Status) bool {
	return s == StatusDelivered || s == StatusCancelled
}

func (s Status) Valid() bool {
	_, ok := StatusTransitions[s]
	return ok
}

func (p PaymentStatus) Valid() bool {
	_, ok := PaymentTransitions[p]
	return ok
}

// CanReachPaid reports whether a confirmed payment may move p to paid, either directly
// or through the failed -> pending retry edge.
func CanReachPaid(p PaymentStatus) bool {
	if CanTransition(p, PaymentPaid, PaymentTransitions) {
		return true
	}
	return CanTransition(p, PaymentPending, PaymentTransitions) &&
		CanTransition(PaymentPending, PaymentPaid, PaymentTransitions)
}

// PayableFrom returns the payment states from which a confirmed charge may be committed.
func PayableFrom() []PaymentStatus {
	out := make([]PaymentStatus, 0, 2)
	for _, p := range []PaymentStatus{PaymentPending, PaymentFailed, PaymentPaid, PaymentRefunded} {
		if CanReachPaid(p) {
			out = append(out, p)
		}
	}
	return out
}

// InvalidTransitionError is returned when a requested move is not in the table.
type InvalidTransitionError struct {
	From string
	To   string
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("invalid transition %s -> %s", e.From, e.To)
}

func (e *InvalidTransitionError) Is(target error) bool { return target == ErrInvalidTransition }
