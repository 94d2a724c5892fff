package email

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/tfrey42/pitchside/internal/store"
)

const sendTimeout = 5 * time.Second

// Notifier turns reservation lifecycle events into plain-text emails. All
// sends are asynchronous and best-effort; a delivery failure is logged, never
// surfaced to the request that triggered it.
type Notifier struct {
	queries       *store.Queries
	sender        Sender
	subjectPrefix string
}

func NewNotifier(queries *store.Queries, sender Sender, subjectPrefix string) *Notifier {
	return &Notifier{queries: queries, sender: sender, subjectPrefix: subjectPrefix}
}

// Enabled reports whether a sender is configured.
func (n *Notifier) Enabled() bool {
	return n != nil && n.sender != nil
}

// ReservationCreated tells every superuser a reservation awaits approval.
func (n *Notifier) ReservationCreated(ctx context.Context, resv store.ReservationDetail) {
	subject := fmt.Sprintf("New reservation by %s on %s", resv.TeamFullName(), resv.Date)
	body := fmt.Sprintf(
		"%s reserved %s on %s from %s to %s (game %d vs %s).\n\nThe reservation is awaiting approval.",
		resv.TeamFullName(), resv.FieldName, resv.Date, resv.StartTime, resv.EndTime,
		resv.GameNumber, resv.GameOpponent)
	n.sendToSuperusers(ctx, subject, body)
}

// ReservationChanged tells every superuser a reservation was modified and
// needs re-approval.
func (n *Notifier) ReservationChanged(ctx context.Context, resv store.ReservationDetail) {
	subject := fmt.Sprintf("Reservation changed by %s on %s", resv.TeamFullName(), resv.Date)
	body := fmt.Sprintf(
		"%s changed their reservation: now %s on %s from %s to %s (game %d vs %s).\n\nThe reservation is awaiting approval.",
		resv.TeamFullName(), resv.FieldName, resv.Date, resv.StartTime, resv.EndTime,
		resv.GameNumber, resv.GameOpponent)
	n.sendToSuperusers(ctx, subject, body)
}

// ReservationApproved tells the owning team its reservation was approved.
func (n *Notifier) ReservationApproved(ctx context.Context, resv store.ReservationDetail) {
	if !n.Enabled() {
		return
	}
	team, err := n.queries.GetTeam(ctx, resv.TeamID)
	if err != nil {
		log.Error().Err(err).Int64("team_id", resv.TeamID).Msg("Failed to load team for approval email")
		return
	}
	subject := fmt.Sprintf("Reservation approved for %s", resv.Date)
	body := fmt.Sprintf(
		"Your reservation for %s on %s from %s to %s has been approved.",
		resv.FieldName, resv.Date, resv.StartTime, resv.EndTime)
	n.deliver(team.Email, subject, body)
}

// ReservationDeleted tells the owning team its reservation was removed by
// someone else (a manager or superuser).
func (n *Notifier) ReservationDeleted(ctx context.Context, resv store.ReservationDetail, actor store.Team) {
	if !n.Enabled() || actor.ID == resv.TeamID {
		return
	}
	team, err := n.queries.GetTeam(ctx, resv.TeamID)
	if err != nil {
		log.Error().Err(err).Int64("team_id", resv.TeamID).Msg("Failed to load team for deletion email")
		return
	}
	subject := fmt.Sprintf("Reservation removed for %s", resv.Date)
	body := fmt.Sprintf(
		"Your reservation for %s on %s from %s to %s was removed by %s.",
		resv.FieldName, resv.Date, resv.StartTime, resv.EndTime, actor.FullName())
	n.deliver(team.Email, subject, body)
}

// ReservationMoved tells the owning team a superuser moved its reservation
// to a different slot.
func (n *Notifier) ReservationMoved(ctx context.Context, before store.ReservationDetail, newDate string) {
	if !n.Enabled() {
		return
	}
	team, err := n.queries.GetTeam(ctx, before.TeamID)
	if err != nil {
		log.Error().Err(err).Int64("team_id", before.TeamID).Msg("Failed to load team for swap email")
		return
	}
	subject := fmt.Sprintf("Reservation rescheduled to %s", newDate)
	body := fmt.Sprintf(
		"Your reservation for game %d vs %s, previously on %s at %s, has been rescheduled to %s.",
		before.GameNumber, before.GameOpponent, before.Date, before.FieldName, newDate)
	n.deliver(team.Email, subject, body)
}

func (n *Notifier) sendToSuperusers(ctx context.Context, subject, body string) {
	if !n.Enabled() {
		return
	}
	recipients, err := n.queries.ListSuperuserEmails(ctx)
	if err != nil {
		log.Error().Err(err).Msg("Failed to list superuser emails")
		return
	}
	for _, recipient := range recipients {
		n.deliver(recipient, subject, body)
	}
}

func (n *Notifier) deliver(recipient, subject, body string) {
	recipient = strings.TrimSpace(recipient)
	if recipient == "" {
		return
	}
	if n.subjectPrefix != "" {
		subject = n.subjectPrefix + " " + subject
	}
	go func() {
		sendCtx, cancel := context.WithTimeout(context.Background(), sendTimeout)
		defer cancel()
		if err := n.sender.Send(sendCtx, recipient, subject, body); err != nil {
			log.Error().Err(err).Str("recipient", recipient).Msg("Failed to send notification email")
		}
	}()
}
