// Package lifecycle holds the order status rules shared by the backend and the storefront.
package lifecycle

import (
	"github.com/mamadbah2/vaccine-orders/internal/domain/models"
)

// Sequence is the forward order of statuses. Cancelled is not part of it.
var Sequence = []models.OrderStatus{
	models.StatusRequested,
	models.StatusConfirmed,
	models.StatusPrepared,
	models.StatusDispatched,
	models.StatusDelivered,
}

// Index returns the position of s in Sequence, or -1 for cancelled and unknown values.
func Index(s models.OrderStatus) int {
	for i, v := range Sequence {
		if v == s {
			return i
		}
	}
	return -1
}

// IsTerminal reports whether no further transition is possible from s.
func IsTerminal(s models.OrderStatus) bool {
	return s == models.StatusDelivered || s == models.StatusCancelled
}

// Next returns the single forward step after s. ok is false for terminal or unknown statuses.
func Next(s models.OrderStatus) (models.OrderStatus, bool) {
	i := Index(s)
	if i < 0 || i+1 >= len(Sequence) {
		return "", false
	}
	return Sequence[i+1], true
}

// CanTransition reports whether moving from one status to another is legal:
// exactly one step forward, or cancellation from any non-terminal status.
func CanTransition(from, to models.OrderStatus) bool {
	if IsTerminal(from) || Index(from) < 0 {
		return false
	}
	if to == models.StatusCancelled {
		return true
	}
	next, ok := Next(from)
	return ok && next == to
}

// StepState is how a timeline step renders.
type StepState string

const (
	StepCompleted StepState = "completed"
	StepPending   StepState = "pending"
)

// Step is one rendered entry of the order timeline.
type Step struct {
	Status  models.OrderStatus `json:"status"`
	Label   string             `json:"label"`
	State   StepState          `json:"state"`
	Current bool               `json:"current"`
	By      string             `json:"by,omitempty"`
}

// Timeline is the shopper-facing progress of an order.
type Timeline struct {
	Steps     []Step `json:"steps"`
	Cancelled bool   `json:"cancelled"`
}

var labels = map[models.OrderStatus]string{
	models.StatusRequested:  "Order Requested",
	models.StatusConfirmed:  "Confirmed",
	models.StatusPrepared:   "Prepared",
	models.StatusDispatched: "Dispatched",
	models.StatusDelivered:  "Delivered",
	models.StatusCancelled:  "Cancelled",
}

// Label returns the display label of a status.
func Label(s models.OrderStatus) string {
	if l, ok := labels[s]; ok {
		return l
	}
	return string(s)
}

// BuildTimeline renders every sequence step relative to the order status. Steps at or
// before the current index are completed, later ones pending. A cancelled order has no
// index, so every step renders pending and Cancelled is set.
func BuildTimeline(o models.Order) Timeline {
	current := Index(o.Status)
	tl := Timeline{
		Steps:     make([]Step, 0, len(Sequence)),
		Cancelled: o.Status == models.StatusCancelled,
	}
	for i, s := range Sequence {
		st := Step{
			Status:  s,
			Label:   Label(s),
			State:   StepPending,
			Current: s == o.Status,
			By:      Attribution(o, s),
		}
		if current >= 0 && i <= current {
			st.State = StepCompleted
		}
		tl.Steps = append(tl.Steps, st)
	}
	return tl
}

// ChangedBy returns the username on the first history entry with the given status.
// ok is false when the history holds no such entry.
func ChangedBy(history []models.StatusHistoryEntry, s models.OrderStatus) (string, bool) {
	for _, h := range history {
		if h.Status == s {
			return h.ChangedByUsername, true
		}
	}
	return "", false
}

// Attribution names who performed the transition into s. The requested step is always
// credited to the ordering user.
func Attribution(o models.Order, s models.OrderStatus) string {
	if s == models.StatusRequested {
		if o.UserUsername != "" {
			return o.UserUsername
		}
		if o.User != nil && o.User.Username != "" {
			return o.User.Username
		}
		return "Client"
	}
	name, _ := ChangedBy(o.StatusHistory, s)
	return name
}

// IsPending reports whether an order counts as still in progress on the tracking page.
func IsPending(s models.OrderStatus) bool {
	return s == models.StatusRequested || s == models.StatusConfirmed || s == models.StatusPrepared
}
