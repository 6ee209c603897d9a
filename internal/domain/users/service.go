package users

import (
	"context"
	"errors"
	"net/mail"
	"strings"
	"time"

	"dental-clinic/internal/domain/devices"
	"dental-clinic/internal/domain/patients"
	"dental-clinic/internal/ports/auth"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

var (
	ErrInvalidInput       = errors.New("invalid input")
	ErrNotFound           = errors.New("user not found")
	ErrForbidden          = errors.New("forbidden")
	ErrEmailTaken         = errors.New("email already registered")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrAccountDisabled    = errors.New("account disabled")
	ErrDevicePending      = errors.New("device pending approval")
	ErrDeviceRejected     = errors.New("device rejected")
)

const minPasswordLen = 8

// PatientLinker crea o enlaza la ficha del paciente al registrarse.
type PatientLinker interface {
	LinkUser(ctx context.Context, userID, email, fullName, phone string) (patients.Patient, error)
}

// DeviceGate valida el equipo del staff en el login.
type DeviceGate interface {
	Check(ctx context.Context, userID string, meta devices.Meta, ip string) (devices.Device, error)
}

type Service struct {
	repo     Repository
	linker   PatientLinker
	gate     DeviceGate
	issuer   auth.TokenIssuer
	now      func() time.Time
	hashCost int
}

func NewService(repo Repository, linker PatientLinker, gate DeviceGate, issuer auth.TokenIssuer) *Service {
	return &Service{
		repo:     repo,
		linker:   linker,
		gate:     gate,
		issuer:   issuer,
		now:      time.Now,
		hashCost: bcrypt.DefaultCost,
	}
}

type RegisterInput struct {
	Email    string
	Password string
	Name     string
	Phone    string
}

// RegisterPatient crea la cuenta de un paciente y su ficha clínica.
func (s *Service) RegisterPatient(ctx context.Context, in RegisterInput) (User, patients.Patient, error) {
	u, err := s.create(ctx, in.Email, in.Password, in.Name, in.Phone, auth.RolePatient)
	if err != nil {
		return User{}, patients.Patient{}, err
	}
	p, err := s.linker.LinkUser(ctx, u.ID, u.Email, u.Name, u.Phone)
	if err != nil {
		return User{}, patients.Patient{}, err
	}
	return u, p, nil
}

// CreateStaff: solo admin. role debe ser staff o admin.
func (s *Service) CreateStaff(ctx context.Context, actor auth.Claims, in RegisterInput, role auth.Role) (User, error) {
	if actor.Role != auth.RoleAdmin {
		return User{}, ErrForbidden
	}
	if !role.IsStaffLevel() {
		return User{}, ErrInvalidInput
	}
	return s.create(ctx, in.Email, in.Password, in.Name, in.Phone, role)
}

// EnsureAdmin crea el admin inicial si no existe (arranque).
func (s *Service) EnsureAdmin(ctx context.Context, email, password string) (User, bool, error) {
	norm, err := normalizeEmail(email)
	if err != nil {
		return User{}, false, err
	}
	if u, err := s.repo.GetByEmail(ctx, norm); err == nil {
		return u, false, nil
	}
	u, err := s.create(ctx, norm, password, "Administrator", "", auth.RoleAdmin)
	if err != nil {
		return User{}, false, err
	}
	return u, true, nil
}

func (s *Service) create(ctx context.Context, email, password, name, phone string, role auth.Role) (User, error) {
	norm, err := normalizeEmail(email)
	if err != nil {
		return User{}, err
	}
	if len(password) < minPasswordLen {
		return User{}, ErrInvalidInput
	}
	if _, err := s.repo.GetByEmail(ctx, norm); err == nil {
		return User{}, ErrEmailTaken
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.hashCost)
	if err != nil {
		return User{}, err
	}

	now := s.now()
	u := User{
		ID:           uuid.NewString(),
		Email:        norm,
		PasswordHash: string(hash),
		Role:         role,
		Status:       StatusActive,
		Name:         strings.TrimSpace(name),
		Phone:        strings.TrimSpace(phone),
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.repo.Create(ctx, u); err != nil {
		return User{}, err
	}
	return u, nil
}

type LoginInput struct {
	Email    string
	Password string
	Device   devices.Meta
	IP       string
}

type LoginResult struct {
	Token    string
	User     User
	DeviceID string
}

// Login valida credenciales y, para staff, el dispositivo.
// Con ErrDevicePending el resultado trae DeviceID para que el cliente lo muestre.
func (s *Service) Login(ctx context.Context, in LoginInput) (LoginResult, error) {
	email, err := normalizeEmail(in.Email)
	if err != nil || email == "" || in.Password == "" {
		return LoginResult{}, ErrInvalidCredentials
	}

	u, err := s.repo.GetByEmail(ctx, email)
	if err != nil {
		return LoginResult{}, ErrInvalidCredentials
	}
	if bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(in.Password)) != nil {
		return LoginResult{}, ErrInvalidCredentials
	}
	if u.Status != StatusActive {
		return LoginResult{}, ErrAccountDisabled
	}

	claims := auth.Claims{UserID: u.ID, Email: u.Email, Role: u.Role}

	// El gate aplica solo a staff; admin y paciente entran directo.
	if u.Role == auth.RoleStaff {
		d, err := s.gate.Check(ctx, u.ID, in.Device, in.IP)
		switch {
		case errors.Is(err, devices.ErrDevicePending):
			return LoginResult{User: u, DeviceID: d.ID}, ErrDevicePending
		case errors.Is(err, devices.ErrDeviceRejected):
			return LoginResult{User: u, DeviceID: d.ID}, ErrDeviceRejected
		case err != nil:
			return LoginResult{}, err
		}
		claims.DeviceID = d.ID
	}

	token, err := s.issuer.Issue(claims)
	if err != nil {
		return LoginResult{}, err
	}

	now := s.now()
	u.LastLoginAt = &now
	u.UpdatedAt = now
	if err := s.repo.Update(ctx, u); err != nil {
		return LoginResult{}, err
	}

	return LoginResult{Token: token, User: u, DeviceID: claims.DeviceID}, nil
}

func (s *Service) SetStatus(ctx context.Context, actor auth.Claims, userID string, status Status) (User, error) {
	if actor.Role != auth.RoleAdmin {
		return User{}, ErrForbidden
	}
	if status != StatusActive && status != StatusDeactivated {
		return User{}, ErrInvalidInput
	}
	u, err := s.Me(ctx, userID)
	if err != nil {
		return User{}, err
	}
	if u.ID == actor.UserID && status == StatusDeactivated {
		return User{}, ErrForbidden
	}
	if u.Status == status {
		return u, nil
	}
	u.Status = status
	u.UpdatedAt = s.now()
	if err := s.repo.Update(ctx, u); err != nil {
		return User{}, err
	}
	return u, nil
}

func (s *Service) ChangePassword(ctx context.Context, userID, oldPassword, newPassword string) error {
	u, err := s.Me(ctx, userID)
	if err != nil {
		return err
	}
	if bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(oldPassword)) != nil {
		return ErrInvalidCredentials
	}
	if len(newPassword) < minPasswordLen || newPassword == oldPassword {
		return ErrInvalidInput
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(newPassword), s.hashCost)
	if err != nil {
		return err
	}
	u.PasswordHash = string(hash)
	u.UpdatedAt = s.now()
	return s.repo.Update(ctx, u)
}

func (s *Service) Me(ctx context.Context, userID string) (User, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return User{}, ErrInvalidInput
	}
	u, err := s.repo.GetByID(ctx, userID)
	if err != nil {
		return User{}, ErrNotFound
	}
	return u, nil
}

// IsDeactivated dice si la cuenta existe y fue desactivada. Lo consulta el gate
// de cada request para que un token vigente no sobreviva a la baja.
func (s *Service) IsDeactivated(ctx context.Context, userID string) bool {
	u, err := s.Me(ctx, userID)
	return err == nil && u.Status == StatusDeactivated
}

func (s *Service) List(ctx context.Context, role auth.Role) ([]User, error) {
	if role != "" && !role.Valid() {
		return nil, ErrInvalidInput
	}
	return s.repo.List(ctx, role)
}

// AdminEmails implementa devices.AdminDirectory.
func (s *Service) AdminEmails(ctx context.Context) ([]string, error) {
	admins, err := s.repo.List(ctx, auth.RoleAdmin)
	if err != nil {
		return nil, err
	}
	out := make([]string, 0, len(admins))
	for _, a := range admins {
		if a.Status == StatusActive {
			out = append(out, a.Email)
		}
	}
	return out, nil
}

func normalizeEmail(raw string) (string, error) {
	e := strings.ToLower(strings.TrimSpace(raw))
	if e == "" {
		return "", ErrInvalidInput
	}
	addr, err := mail.ParseAddress(e)
	if err != nil || addr.Address != e || !strings.Contains(e[strings.LastIndex(e, "@"):], ".") {
		return "", ErrInvalidInput
	}
	return e, nil
}
