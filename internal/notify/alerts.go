package notify

import (
	"fmt"

	"github.com/alanyoungcy/bondledger/internal/domain"
)

// EventPenaltyCollected names alerts for withdrawals that paid a penalty.
const EventPenaltyCollected = "penalty_collected"

// ReserveLow builds the alert raised when a pool's reserve falls under the
// configured low-water mark.
func ReserveLow(vault string, reserve, threshold, ratePerTick uint64) Alert {
	msg := fmt.Sprintf("vault %s reserve %d is below %d", vault, reserve, threshold)
	if ratePerTick > 0 {
		msg += fmt.Sprintf(" (about %d ticks left at %d/tick)", reserve/ratePerTick, ratePerTick)
	}
	return Alert{
		Event:   domain.OpReserveLow,
		Title:   "Reward reserve low",
		Message: msg,
	}
}

// PenaltyCollected builds the alert for an early withdrawal. ok is false when
// the event carried no penalty.
func PenaltyCollected(ev domain.LedgerEvent) (Alert, bool) {
	if ev.Op != domain.OpWithdraw || ev.Penalty == 0 {
		return Alert{}, false
	}
	return Alert{
		Event: EventPenaltyCollected,
		Title: "Early withdrawal penalty",
		Message: fmt.Sprintf("vault %s owner %s bond %d withdrew %d, penalty %d, paid %d",
			ev.Vault, ev.Owner, ev.PositionID, ev.Amount, ev.Penalty, ev.Paid),
	}, true
}
