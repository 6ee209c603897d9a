package users

import (
	"context"
	"errors"
	"strings"
	"testing"

	"dental-clinic/internal/domain/devices"
	"dental-clinic/internal/domain/patients"
	"dental-clinic/internal/ports/auth"

	"golang.org/x/crypto/bcrypt"
)

type testRepo struct {
	byID map[string]User
}

func newTestRepo() *testRepo { return &testRepo{byID: map[string]User{}} }

func (r *testRepo) Create(_ context.Context, u User) error { r.byID[u.ID] = u; return nil }
func (r *testRepo) Update(_ context.Context, u User) error { r.byID[u.ID] = u; return nil }

func (r *testRepo) GetByID(_ context.Context, id string) (User, error) {
	u, ok := r.byID[id]
	if !ok {
		return User{}, errors.New("repo: not found")
	}
	return u, nil
}

func (r *testRepo) GetByEmail(_ context.Context, email string) (User, error) {
	for _, u := range r.byID {
		if strings.EqualFold(u.Email, email) {
			return u, nil
		}
	}
	return User{}, errors.New("repo: not found")
}

func (r *testRepo) List(_ context.Context, role auth.Role) ([]User, error) {
	out := make([]User, 0)
	for _, u := range r.byID {
		if role == "" || u.Role == role {
			out = append(out, u)
		}
	}
	return out, nil
}

type fakeLinker struct{ calls int }

func (f *fakeLinker) LinkUser(_ context.Context, userID, email, _, _ string) (patients.Patient, error) {
	f.calls++
	return patients.Patient{ID: "pat-" + userID, UserID: userID, Email: email}, nil
}

type fakeGate struct {
	status map[string]devices.Status // userID -> estado del equipo
}

func (g *fakeGate) Check(_ context.Context, userID string, _ devices.Meta, _ string) (devices.Device, error) {
	d := devices.Device{ID: "dev-" + userID, UserID: userID, Status: g.status[userID]}
	switch d.Status {
	case devices.StatusApproved:
		return d, nil
	case devices.StatusRejected, devices.StatusRevoked:
		return d, devices.ErrDeviceRejected
	default:
		return d, devices.ErrDevicePending
	}
}

type fakeIssuer struct{ last auth.Claims }

func (f *fakeIssuer) Issue(c auth.Claims) (string, error) {
	f.last = c
	return "token-" + c.UserID, nil
}

func newTestService() (*Service, *fakeLinker, *fakeGate, *fakeIssuer) {
	linker := &fakeLinker{}
	gate := &fakeGate{status: map[string]devices.Status{}}
	issuer := &fakeIssuer{}
	svc := NewService(newTestRepo(), linker, gate, issuer)
	svc.hashCost = bcrypt.MinCost
	return svc, linker, gate, issuer
}

var admin = auth.Claims{UserID: "admin-0", Role: auth.RoleAdmin}

func TestService_RegisterPatient(t *testing.T) {
	svc, linker, _, _ := newTestService()
	ctx := context.Background()

	u, p, err := svc.RegisterPatient(ctx, RegisterInput{Email: " Ana@Example.com ", Password: "s3cretpass", Name: "Ana Reyes"})
	if err != nil {
		t.Fatalf("RegisterPatient: %v", err)
	}
	if u.Email != "ana@example.com" || u.Role != auth.RolePatient || p.UserID != u.ID || linker.calls != 1 {
		t.Fatalf("unexpected result: %#v %#v", u, p)
	}
	if u.PasswordHash == "s3cretpass" {
		t.Fatal("password stored in clear")
	}

	if _, _, err := svc.RegisterPatient(ctx, RegisterInput{Email: "ANA@example.com", Password: "another-pass"}); !errors.Is(err, ErrEmailTaken) {
		t.Fatalf("expected ErrEmailTaken, got %v", err)
	}

	cases := []RegisterInput{
		{Email: "not-an-email", Password: "longenough"},
		{Email: "x@nodot", Password: "longenough"},
		{Email: "b@example.com", Password: "short"},
	}
	for _, in := range cases {
		if _, _, err := svc.RegisterPatient(ctx, in); !errors.Is(err, ErrInvalidInput) {
			t.Fatalf("%+v: expected ErrInvalidInput, got %v", in, err)
		}
	}
}

func TestService_Login_PatientAndAdminSkipDeviceGate(t *testing.T) {
	svc, _, _, issuer := newTestService()
	ctx := context.Background()

	if _, _, err := svc.RegisterPatient(ctx, RegisterInput{Email: "p@example.com", Password: "patientpass"}); err != nil {
		t.Fatalf("register: %v", err)
	}
	res, err := svc.Login(ctx, LoginInput{Email: "P@example.com", Password: "patientpass"})
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	if res.Token == "" || res.User.LastLoginAt == nil || issuer.last.Role != auth.RolePatient || issuer.last.DeviceID != "" {
		t.Fatalf("unexpected login: %#v claims=%#v", res, issuer.last)
	}

	if _, err := svc.Login(ctx, LoginInput{Email: "p@example.com", Password: "wrongpass"}); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials, got %v", err)
	}
	if _, err := svc.Login(ctx, LoginInput{Email: "ghost@example.com", Password: "whatever1"}); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials, got %v", err)
	}

	if _, err := svc.CreateStaff(ctx, admin, RegisterInput{Email: "boss@example.com", Password: "adminpass"}, auth.RoleAdmin); err != nil {
		t.Fatalf("CreateStaff admin: %v", err)
	}
	if _, err := svc.Login(ctx, LoginInput{Email: "boss@example.com", Password: "adminpass"}); err != nil {
		t.Fatalf("admin login must skip device gate: %v", err)
	}
}

func TestService_Login_StaffDeviceGate(t *testing.T) {
	svc, _, gate, issuer := newTestService()
	ctx := context.Background()

	staff, err := svc.CreateStaff(ctx, admin, RegisterInput{Email: "nurse@example.com", Password: "staffpass"}, auth.RoleStaff)
	if err != nil {
		t.Fatalf("CreateStaff: %v", err)
	}

	res, err := svc.Login(ctx, LoginInput{Email: "nurse@example.com", Password: "staffpass"})
	if !errors.Is(err, ErrDevicePending) || res.DeviceID == "" || res.Token != "" {
		t.Fatalf("expected pending device, got %v %#v", err, res)
	}

	gate.status[staff.ID] = devices.StatusRejected
	if _, err := svc.Login(ctx, LoginInput{Email: "nurse@example.com", Password: "staffpass"}); !errors.Is(err, ErrDeviceRejected) {
		t.Fatalf("expected ErrDeviceRejected, got %v", err)
	}

	gate.status[staff.ID] = devices.StatusApproved
	res, err = svc.Login(ctx, LoginInput{Email: "nurse@example.com", Password: "staffpass"})
	if err != nil {
		t.Fatalf("approved login: %v", err)
	}
	if issuer.last.DeviceID != "dev-"+staff.ID || res.DeviceID != issuer.last.DeviceID {
		t.Fatalf("device id not in claims: %#v", issuer.last)
	}
}

func TestService_SetStatus(t *testing.T) {
	svc, _, _, _ := newTestService()
	ctx := context.Background()

	u, _, _ := svc.RegisterPatient(ctx, RegisterInput{Email: "p2@example.com", Password: "patientpass"})

	if svc.IsDeactivated(ctx, u.ID) {
		t.Fatal("fresh account reported deactivated")
	}
	if _, err := svc.SetStatus(ctx, auth.Claims{UserID: "s", Role: auth.RoleStaff}, u.ID, StatusDeactivated); !errors.Is(err, ErrForbidden) {
		t.Fatalf("staff: expected ErrForbidden, got %v", err)
	}
	if _, err := svc.SetStatus(ctx, admin, u.ID, StatusDeactivated); err != nil {
		t.Fatalf("SetStatus: %v", err)
	}
	if !svc.IsDeactivated(ctx, u.ID) || svc.IsDeactivated(ctx, "unknown") {
		t.Fatal("IsDeactivated mismatch")
	}
	if _, err := svc.Login(ctx, LoginInput{Email: "p2@example.com", Password: "patientpass"}); !errors.Is(err, ErrAccountDisabled) {
		t.Fatalf("expected ErrAccountDisabled, got %v", err)
	}

	self, _ := svc.CreateStaff(ctx, admin, RegisterInput{Email: "a2@example.com", Password: "adminpass"}, auth.RoleAdmin)
	if _, err := svc.SetStatus(ctx, auth.Claims{UserID: self.ID, Role: auth.RoleAdmin}, self.ID, StatusDeactivated); !errors.Is(err, ErrForbidden) {
		t.Fatalf("self deactivate: expected ErrForbidden, got %v", err)
	}
}

func TestService_ChangePassword(t *testing.T) {
	svc, _, _, _ := newTestService()
	ctx := context.Background()
	u, _, _ := svc.RegisterPatient(ctx, RegisterInput{Email: "cp@example.com", Password: "oldpassword"})

	if err := svc.ChangePassword(ctx, u.ID, "bad-old-pass", "newpassword"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials, got %v", err)
	}
	if err := svc.ChangePassword(ctx, u.ID, "oldpassword", "short"); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
	if err := svc.ChangePassword(ctx, u.ID, "oldpassword", "newpassword"); err != nil {
		t.Fatalf("ChangePassword: %v", err)
	}
	if _, err := svc.Login(ctx, LoginInput{Email: "cp@example.com", Password: "newpassword"}); err != nil {
		t.Fatalf("login with new password: %v", err)
	}
}

func TestService_EnsureAdminAndDirectory(t *testing.T) {
	svc, _, _, _ := newTestService()
	ctx := context.Background()

	_, created, err := svc.EnsureAdmin(ctx, "root@example.com", "rootpassword")
	if err != nil || !created {
		t.Fatalf("EnsureAdmin: created=%v err=%v", created, err)
	}
	_, created, err = svc.EnsureAdmin(ctx, "ROOT@example.com", "rootpassword")
	if err != nil || created {
		t.Fatalf("EnsureAdmin second call: created=%v err=%v", created, err)
	}

	emails, err := svc.AdminEmails(ctx)
	if err != nil || len(emails) != 1 || emails[0] != "root@example.com" {
		t.Fatalf("AdminEmails=%v err=%v", emails, err)
	}
}
