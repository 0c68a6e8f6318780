package service

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/spec-kit/field-service/internal/domain"
	"github.com/spec-kit/field-service/internal/persistence"
	"github.com/spec-kit/field-service/internal/repository"
	"github.com/spec-kit/field-service/pkg/util"
)

// MessageScheduler is what event handlers use to queue outbound messages.
type MessageScheduler interface {
	Schedule(ctx context.Context, in domain.MessageSchedule) (*domain.ScheduledMessage, error)
	CancelPendingForTicket(ctx context.Context, ticketID uuid.UUID, reason string) (int, error)
}

// Delivery is one message handed to a Sender.
type Delivery struct {
	Message domain.ScheduledMessage
	Contact domain.Contact
}

// Sender transmits a message. It is called outside any session.
type Sender interface {
	Send(ctx context.Context, d Delivery) error
}

// Delivery outcomes.
const (
	OutcomeSent      = "sent"
	OutcomeRetrying  = "retrying"
	OutcomeFailed    = "failed"
	OutcomeCancelled = "cancelled"
	OutcomeSkipped   = "skipped"
)

// MessageService queues and delivers outbound customer messages.
type MessageService struct {
	base
	admin    persistence.AdminSessions
	contacts repository.ContactRepository
	messages repository.MessageRepository
}

func NewMessageService(deps Dependencies) *MessageService {
	return &MessageService{
		base:     newBase(deps),
		admin:    deps.Admin,
		contacts: deps.Contacts,
		messages: deps.Messages,
	}
}

// Schedule queues a pending message for a contact.
func (s *MessageService) Schedule(ctx context.Context, in domain.MessageSchedule) (*domain.ScheduledMessage, error) {
	if err := domain.Validate(in); err != nil {
		return nil, err
	}
	msg := &domain.ScheduledMessage{
		ContactID:    in.ContactID,
		TicketID:     in.TicketID,
		MessageType:  in.MessageType,
		TemplateName: in.TemplateName,
		Subject:      in.Subject,
		Body:         in.Body,
		ScheduledFor: in.ScheduledFor.UTC(),
		Status:       domain.MessageStatusPending,
	}
	err := s.tx(ctx, func(ctx context.Context, sess *persistence.Session) error {
		if _, err := s.contacts.Get(ctx, sess, in.ContactID); err != nil {
			return err
		}
		if err := s.messages.Create(ctx, sess, msg); err != nil {
			return err
		}
		return s.audit.Created(ctx, sess, domain.EntityScheduledMessage, msg.ID, msg)
	})
	if err != nil {
		return nil, err
	}
	return msg, nil
}

func (s *MessageService) Get(ctx context.Context, id uuid.UUID) (*domain.ScheduledMessage, error) {
	var out *domain.ScheduledMessage
	err := s.tx(ctx, func(ctx context.Context, sess *persistence.Session) error {
		var err error
		out, err = s.messages.Get(ctx, sess, id)
		return err
	})
	return out, err
}

func (s *MessageService) List(ctx context.Context, filter repository.MessageFilter) ([]domain.ScheduledMessage, error) {
	var out []domain.ScheduledMessage
	err := s.tx(ctx, func(ctx context.Context, sess *persistence.Session) error {
		var err error
		out, err = s.messages.List(ctx, sess, filter)
		return err
	})
	return out, err
}

// Cancel stops a pending message.
func (s *MessageService) Cancel(ctx context.Context, id uuid.UUID, reason string) (*domain.ScheduledMessage, error) {
	var out *domain.ScheduledMessage
	err := s.tx(ctx, func(ctx context.Context, sess *persistence.Session) error {
		var err error
		out, err = s.cancel(ctx, sess, id, reason)
		return err
	})
	return out, err
}

// CancelPendingForTicket cancels every pending message tied to the ticket and returns how
// many were cancelled.
func (s *MessageService) CancelPendingForTicket(ctx context.Context, ticketID uuid.UUID, reason string) (int, error) {
	count := 0
	err := s.tx(ctx, func(ctx context.Context, sess *persistence.Session) error {
		pending, err := s.messages.List(ctx, sess, repository.MessageFilter{
			TicketID: &ticketID,
			Statuses: []domain.MessageStatus{domain.MessageStatusPending},
			Limit:    repository.MaxLimit,
		})
		if err != nil {
			return err
		}
		for _, m := range pending {
			if _, err := s.cancel(ctx, sess, m.ID, reason); err != nil {
				return err
			}
			count++
		}
		return nil
	})
	return count, err
}

// MarkSent records a successful delivery.
func (s *MessageService) MarkSent(ctx context.Context, id uuid.UUID) (*domain.ScheduledMessage, error) {
	return s.transition(ctx, id, func(m *domain.ScheduledMessage) error {
		if err := domain.MessageLifecycle.Validate(m.Status, domain.MessageStatusSent); err != nil {
			return err
		}
		now := s.clock()
		m.Status = domain.MessageStatusSent
		m.Attempts++
		m.SentAt = &now
		m.LastError = nil
		return nil
	})
}

// MarkFailed records a failed attempt.
func (s *MessageService) MarkFailed(ctx context.Context, id uuid.UUID, reason string) (*domain.ScheduledMessage, error) {
	return s.transition(ctx, id, func(m *domain.ScheduledMessage) error {
		return s.fail(m, reason)
	})
}

// Retry returns a failed message to pending, rescheduled after the backoff for its
// attempt count. It is rejected once the attempt limit is reached.
func (s *MessageService) Retry(ctx context.Context, id uuid.UUID) (*domain.ScheduledMessage, error) {
	return s.transition(ctx, id, s.retry)
}

// ListDue returns pending messages of every tenant scheduled at or before now.
func (s *MessageService) ListDue(ctx context.Context, now time.Time, limit int) ([]domain.ScheduledMessage, error) {
	if s.admin == nil {
		return nil, util.NewInternalError(errNoAdminSessions)
	}
	var out []domain.ScheduledMessage
	err := s.admin.WithAdminSession(ctx, func(ctx context.Context, sess *persistence.Session) error {
		var err error
		out, err = s.messages.List(ctx, sess, repository.MessageFilter{
			Statuses:  []domain.MessageStatus{domain.MessageStatusPending},
			DueBefore: &now,
			Limit:     limit,
		})
		return err
	})
	return out, err
}

// Deliver sends one due message with sender. ctx must carry the message's tenant. A
// contact without an email address cancels the message with the reason recorded.
func (s *MessageService) Deliver(ctx context.Context, id uuid.UUID, sender Sender) (string, error) {
	var delivery *Delivery
	outcome := OutcomeSkipped
	err := s.tx(ctx, func(ctx context.Context, sess *persistence.Session) error {
		msg, err := s.messages.Get(ctx, sess, id)
		if err != nil {
			return err
		}
		if msg.Status != domain.MessageStatusPending || msg.ScheduledFor.After(s.clock()) {
			return nil
		}
		contact, err := s.contacts.Get(ctx, sess, msg.ContactID)
		if err != nil {
			if util.CodeOf(err) == util.CodeNotFound {
				_, err = s.cancel(ctx, sess, id, "contact no longer exists")
				outcome = OutcomeCancelled
			}
			return err
		}
		if contact.Email == nil || strings.TrimSpace(*contact.Email) == "" {
			outcome = OutcomeCancelled
			_, err = s.cancel(ctx, sess, id, "contact has no email address")
			return err
		}
		delivery = &Delivery{Message: *msg, Contact: *contact}
		return nil
	})
	if err != nil || delivery == nil {
		return outcome, err
	}

	sendErr := sender.Send(ctx, *delivery)

	err = s.tx(ctx, func(ctx context.Context, sess *persistence.Session) error {
		msg, err := s.messages.Get(ctx, sess, id)
		if err != nil {
			return err
		}
		if msg.Status != domain.MessageStatusPending {
			outcome = OutcomeSkipped
			return nil
		}
		before := *msg
		if sendErr == nil {
			outcome = OutcomeSent
			now := s.clock()
			msg.Status, msg.SentAt, msg.LastError = domain.MessageStatusSent, &now, nil
			msg.Attempts++
			return s.save(ctx, sess, before, msg)
		}

		// a retried failure is stored and audited as one pending to pending update
		outcome = OutcomeFailed
		if err := s.fail(msg, sendErr.Error()); err != nil {
			return err
		}
		if msg.CanRetry() {
			outcome = OutcomeRetrying
			if err := s.retry(msg); err != nil {
				return err
			}
		}
		return s.save(ctx, sess, before, msg)
	})
	if err != nil {
		return outcome, err
	}
	if sendErr != nil {
		s.logger.Warn("message delivery failed",
			zap.String("message_id", id.String()),
			zap.String("outcome", outcome),
			zap.Error(sendErr))
	}
	return outcome, nil
}

func (s *MessageService) fail(m *domain.ScheduledMessage, reason string) error {
	if err := domain.MessageLifecycle.Validate(m.Status, domain.MessageStatusFailed); err != nil {
		return err
	}
	m.Status = domain.MessageStatusFailed
	m.Attempts++
	m.LastError = ptrTo(reason)
	return nil
}

func (s *MessageService) retry(m *domain.ScheduledMessage) error {
	if err := domain.MessageLifecycle.Validate(m.Status, domain.MessageStatusPending); err != nil {
		return err
	}
	if !m.CanRetry() {
		return util.NewInvalidTransition(domain.MessageLifecycle.Entity(), string(m.Status), string(domain.MessageStatusPending), "retry limit reached")
	}
	m.Status = domain.MessageStatusPending
	m.ScheduledFor = s.clock().Add(domain.RetryBackoff(m.Attempts))
	return nil
}

func (s *MessageService) cancel(ctx context.Context, sess *persistence.Session, id uuid.UUID, reason string) (*domain.ScheduledMessage, error) {
	msg, err := s.messages.Get(ctx, sess, id)
	if err != nil {
		return nil, err
	}
	if err := domain.MessageLifecycle.Validate(msg.Status, domain.MessageStatusCancelled); err != nil {
		return nil, err
	}
	before := *msg
	msg.Status = domain.MessageStatusCancelled
	if reason = strings.TrimSpace(reason); reason != "" {
		msg.LastError = &reason
	}
	return msg, s.save(ctx, sess, before, msg)
}

func (s *MessageService) transition(ctx context.Context, id uuid.UUID, fn func(*domain.ScheduledMessage) error) (*domain.ScheduledMessage, error) {
	var out *domain.ScheduledMessage
	err := s.tx(ctx, func(ctx context.Context, sess *persistence.Session) error {
		msg, err := s.messages.Get(ctx, sess, id)
		if err != nil {
			return err
		}
		before := *msg
		if err := fn(msg); err != nil {
			return err
		}
		out = msg
		return s.save(ctx, sess, before, msg)
	})
	return out, err
}

func (s *MessageService) save(ctx context.Context, sess *persistence.Session, before domain.ScheduledMessage, msg *domain.ScheduledMessage) error {
	msg.UpdatedAt = s.clock()
	if err := s.messages.Update(ctx, sess, msg); err != nil {
		return err
	}
	return s.audit.Updated(ctx, sess, domain.EntityScheduledMessage, msg.ID, before, msg)
}
