package devices

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"dental-clinic/internal/domain/notifications"

	"github.com/google/uuid"
)

var (
	ErrInvalidInput   = errors.New("invalid input")
	ErrNotFound       = errors.New("device not found")
	ErrBadState       = errors.New("invalid state")
	ErrDevicePending  = errors.New("device pending approval")
	ErrDeviceRejected = errors.New("device rejected")
)

// AdminTopic es el topic FCM al que están suscritos los equipos de administración.
const AdminTopic = "topic:clinic-admins"

// AdminDirectory entrega los emails de admins activos (lo implementa users).
type AdminDirectory interface {
	AdminEmails(ctx context.Context) ([]string, error)
}

type Service struct {
	repo     Repository
	notifier *notifications.Dispatcher
	admins   AdminDirectory
	now      func() time.Time
}

func NewService(repo Repository) *Service {
	return &Service{
		repo: repo,
		now:  time.Now,
	}
}

// WithNotices activa el aviso a administración cuando aparece un dispositivo pendiente.
func (s *Service) WithNotices(d *notifications.Dispatcher, admins AdminDirectory) *Service {
	s.notifier = d
	s.admins = admins
	return s
}

// Check valida el dispositivo en el login de staff.
// Un dispositivo desconocido queda registrado como pendiente.
func (s *Service) Check(ctx context.Context, userID string, meta Meta, ip string) (Device, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return Device{}, ErrInvalidInput
	}

	fp := Fingerprint(meta)
	now := s.now()

	d, err := s.repo.GetByFingerprint(ctx, userID, fp)
	if err != nil {
		d = Device{
			ID:          uuid.NewString(),
			UserID:      userID,
			Fingerprint: fp,
			UserAgent:   strings.TrimSpace(meta.UserAgent),
			Platform:    strings.TrimSpace(meta.Platform),
			IP:          strings.TrimSpace(ip),
			Status:      StatusPending,
			CreatedAt:   now,
			UpdatedAt:   now,
		}
		if err := s.repo.Create(ctx, d); err != nil {
			return Device{}, err
		}
		s.noticePending(ctx, d)
		return d, ErrDevicePending
	}

	switch d.Status {
	case StatusApproved:
		d.LastSeenAt = &now
		d.IP = strings.TrimSpace(ip)
		d.UpdatedAt = now
		if err := s.repo.Update(ctx, d); err != nil {
			return Device{}, err
		}
		return d, nil
	case StatusPending:
		return d, ErrDevicePending
	default:
		return d, ErrDeviceRejected
	}
}

func (s *Service) Approve(ctx context.Context, adminID, deviceID, label string) (Device, error) {
	d, err := s.load(ctx, adminID, deviceID)
	if err != nil {
		return Device{}, err
	}

	// Idempotente
	if d.Status == StatusApproved {
		return d, nil
	}
	if d.Status != StatusPending {
		return Device{}, ErrBadState
	}

	now := s.now()
	d.Status = StatusApproved
	d.ApprovedBy = strings.TrimSpace(adminID)
	d.ApprovedAt = &now
	if l := strings.TrimSpace(label); l != "" {
		d.Label = l
	}
	d.UpdatedAt = now

	if err := s.repo.Update(ctx, d); err != nil {
		return Device{}, err
	}
	return d, nil
}

func (s *Service) Reject(ctx context.Context, adminID, deviceID string) (Device, error) {
	return s.transition(ctx, adminID, deviceID, StatusPending, StatusRejected)
}

func (s *Service) Revoke(ctx context.Context, adminID, deviceID string) (Device, error) {
	return s.transition(ctx, adminID, deviceID, StatusApproved, StatusRevoked)
}

func (s *Service) transition(ctx context.Context, adminID, deviceID string, from, to Status) (Device, error) {
	d, err := s.load(ctx, adminID, deviceID)
	if err != nil {
		return Device{}, err
	}
	if d.Status == to {
		return d, nil
	}
	if d.Status != from {
		return Device{}, ErrBadState
	}
	d.Status = to
	d.UpdatedAt = s.now()
	if err := s.repo.Update(ctx, d); err != nil {
		return Device{}, err
	}
	return d, nil
}

func (s *Service) load(ctx context.Context, adminID, deviceID string) (Device, error) {
	if strings.TrimSpace(adminID) == "" || strings.TrimSpace(deviceID) == "" {
		return Device{}, ErrInvalidInput
	}
	d, err := s.repo.GetByID(ctx, strings.TrimSpace(deviceID))
	if err != nil {
		return Device{}, ErrNotFound
	}
	return d, nil
}

// IsApproved lo usa el middleware en cada request de staff.
func (s *Service) IsApproved(ctx context.Context, deviceID, userID string) bool {
	d, err := s.repo.GetByID(ctx, deviceID)
	if err != nil {
		return false
	}
	return d.UserID == userID && d.Status == StatusApproved
}

func (s *Service) List(ctx context.Context, status Status) ([]Device, error) {
	switch status {
	case "", StatusPending, StatusApproved, StatusRejected, StatusRevoked:
	default:
		return nil, ErrInvalidInput
	}
	return s.repo.List(ctx, status)
}

func (s *Service) ListPending(ctx context.Context) ([]Device, error) {
	return s.repo.List(ctx, StatusPending)
}

func (s *Service) ListByUser(ctx context.Context, userID string) ([]Device, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return nil, ErrInvalidInput
	}
	return s.repo.ListByUser(ctx, userID)
}

func (s *Service) noticePending(ctx context.Context, d Device) {
	if s.notifier == nil {
		return
	}
	subject := "New staff device awaiting approval"
	body := fmt.Sprintf("User %s tried to sign in from an unapproved device (%s, ip %s). Review it under Admin > Devices.",
		d.UserID, d.UserAgent, d.IP)

	msgs := []notifications.Message{{
		Kind:      notifications.KindDevicePending,
		Channel:   notifications.ChannelPush,
		Recipient: AdminTopic,
		Subject:   subject,
		Body:      body,
		RelatedID: d.ID,
	}}
	if s.admins != nil {
		if emails, err := s.admins.AdminEmails(ctx); err == nil {
			for _, e := range emails {
				msgs = append(msgs, notifications.Message{
					Kind:      notifications.KindDevicePending,
					Channel:   notifications.ChannelEmail,
					Recipient: e,
					Subject:   subject,
					Body:      body,
					RelatedID: d.ID,
				})
			}
		}
	}
	s.notifier.Notify(ctx, msgs...)
}
