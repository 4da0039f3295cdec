package order

import (
	"fmt"
	"strings"
)

type Status string

const (
	StatusPending    Status = "en_attente"
	StatusAccepted   Status = "acceptee"
	StatusPreparing  Status = "en_preparation"
	StatusReady      Status = "pret_a_livrer"
	StatusInDelivery Status = "en_livraison"
	StatusDelivered  Status = "livree"
	StatusRejected   Status = "refusee"
	StatusCancelled  Status = "annulee"
)

var allStatuses = []Status{
	StatusPending,
	StatusAccepted,
	StatusPreparing,
	StatusReady,
	StatusInDelivery,
	StatusDelivered,
	StatusRejected,
	StatusCancelled,
}

// English spellings still written by older clients.
var statusAliases = map[string]Status{
	"pending":     StatusPending,
	"accepted":    StatusAccepted,
	"preparing":   StatusPreparing,
	"ready":       StatusReady,
	"in_delivery": StatusInDelivery,
	"delivered":   StatusDelivered,
	"rejected":    StatusRejected,
	"cancelled":   StatusCancelled,
	"canceled":    StatusCancelled,
}

// ParseStatus accepts canonical values and their aliases.
func ParseStatus(raw string) (Status, error) {
	s := strings.ToLower(strings.TrimSpace(raw))
	for _, st := range allStatuses {
		if string(st) == s {
			return st, nil
		}
	}
	if st, ok := statusAliases[s]; ok {
		return st, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownStatus, raw)
}

func (s Status) IsTerminal() bool {
	switch s {
	case StatusDelivered, StatusRejected, StatusCancelled:
		return true
	}
	return false
}

// Dispatched reports whether a driver is carrying or has delivered the order.
func (s Status) Dispatched() bool {
	return s == StatusInDelivery || s == StatusDelivered
}

// predecessors lists every status from which to may be entered.
func predecessors(to Status) []Status {
	switch to {
	case StatusPending:
		return nil
	case StatusAccepted:
		return []Status{StatusPending}
	case StatusPreparing:
		return []Status{StatusAccepted}
	case StatusReady:
		return []Status{StatusPreparing}
	case StatusInDelivery:
		return []Status{StatusReady}
	case StatusDelivered:
		return []Status{StatusInDelivery}
	case StatusRejected, StatusCancelled:
		return []Status{StatusPending, StatusAccepted, StatusPreparing, StatusReady, StatusInDelivery}
	}
	return nil
}

// IllegalTransitionError is returned for a status change the lifecycle forbids.
type IllegalTransitionError struct {
	From Status
	To   Status
}

func (e *IllegalTransitionError) Error() string {
	if e.From.IsTerminal() {
		return fmt.Sprintf("order is %s and can no longer change status", e.From)
	}
	return fmt.Sprintf("illegal status transition %s -> %s", e.From, e.To)
}

func CanTransition(from, to Status) bool {
	for _, p := range predecessors(to) {
		if p == from {
			return true
		}
	}
	return false
}

// Transition validates from -> to.
func Transition(from, to Status) error {
	if !CanTransition(from, to) {
		return &IllegalTransitionError{From: from, To: to}
	}
	return nil
}
