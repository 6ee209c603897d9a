package router_test

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"dental-clinic/internal/platform/config"
	"dental-clinic/internal/router"
)

func testConfig() config.App {
	return config.App{
		AppName:             "dental-clinic-test",
		JWTSecret:           "test-secret",
		JWTTTLMin:           60,
		DevAuth:             true,
		ClinicTZ:            "UTC",
		BookingMaxDaysAhead: 30,
		SlotMinutes:         30,
		Currency:            "php",
	}
}

type caller struct {
	userID string
	role   string
	token  string
}

var (
	admin     = caller{userID: "admin-1", role: "admin"}
	staff     = caller{userID: "staff-1", role: "staff"}
	anonymous = caller{}
)

func TestHTTP_EndToEnd_BookingFlow(t *testing.T) {
	ts := httptest.NewServer(router.NewRouter(router.Options{Config: testConfig()}))
	defer ts.Close()

	// 0) health
	if st, _ := doReq(t, ts.URL, "GET", "/health", anonymous, nil); st != http.StatusOK {
		t.Fatalf("health: %d", st)
	}

	// 1) admin arma catálogo y agenda
	var svc struct {
		ID string `json:"id"`
	}
	mustJSON(t, ts.URL, "POST", "/admin/services", admin, map[string]any{
		"name": "Cleaning", "price_cents": 150000, "duration_minutes": 30,
	}, http.StatusCreated, &svc)

	var dentist struct {
		ID string `json:"id"`
	}
	mustJSON(t, ts.URL, "POST", "/admin/dentists", admin, map[string]any{
		"code": "dr-01", "name": "Dr. Reyes",
	}, http.StatusCreated, &dentist)

	entries := make([]map[string]any, 0, 7)
	for wd := 0; wd < 7; wd++ {
		entries = append(entries, map[string]any{"weekday": wd, "start": "08:00", "end": "18:00"})
	}
	mustJSON(t, ts.URL, "PUT", "/admin/dentists/"+dentist.ID+"/schedule", admin, map[string]any{
		"entries": entries,
	}, http.StatusOK, nil)

	// 2) paciente se registra y hace login (JWT real)
	mustJSON(t, ts.URL, "POST", "/auth/register", anonymous, map[string]any{
		"email": "ana@example.com", "password": "secret123", "name": "Ana Cruz", "phone": "+639171234567",
	}, http.StatusCreated, nil)

	var login struct {
		Token string `json:"token"`
	}
	mustJSON(t, ts.URL, "POST", "/auth/login", anonymous, map[string]any{
		"email": "ana@example.com", "password": "secret123",
	}, http.StatusOK, &login)
	if login.Token == "" {
		t.Fatalf("expected token")
	}
	patient := caller{token: login.Token}

	// 3) disponibilidad pública
	day := time.Now().UTC().AddDate(0, 0, 2)
	date := day.Format(time.DateOnly)
	if st, body := doReq(t, ts.URL, "GET", "/availability?date="+date+"&service_id="+svc.ID, anonymous, nil); st != http.StatusOK {
		t.Fatalf("availability: %d body=%s", st, body)
	}

	// 4) reserva
	startsAt := time.Date(day.Year(), day.Month(), day.Day(), 10, 0, 0, 0, time.UTC)
	var appt struct {
		ID     string `json:"id"`
		Status string `json:"status"`
	}
	mustJSON(t, ts.URL, "POST", "/appointments", patient, map[string]any{
		"service_id": svc.ID, "starts_at": startsAt.Format(time.RFC3339),
	}, http.StatusCreated, &appt)
	if appt.Status != "pending" {
		t.Fatalf("expected pending, got %s", appt.Status)
	}

	// segunda cita el mismo día
	if st, body := doReq(t, ts.URL, "POST", "/appointments", patient, map[string]any{
		"service_id": svc.ID, "starts_at": startsAt.Add(2 * time.Hour).Format(time.RFC3339),
	}); st != http.StatusConflict {
		t.Fatalf("expected 409 on second booking same day, got %d body=%s", st, body)
	}

	// 5) sin auth no se listan citas
	if st, _ := doReq(t, ts.URL, "GET", "/appointments", anonymous, nil); st != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", st)
	}

	// 6) staff desde un dispositivo no aprobado
	if st, _ := doReq(t, ts.URL, "GET", "/appointments", staff, nil); st != http.StatusForbidden {
		t.Fatalf("expected 403 for unapproved staff device, got %d", st)
	}

	// 7) el paciente no puede aprobar
	if st, _ := doReq(t, ts.URL, "POST", "/appointments/"+appt.ID+"/approve", patient, nil); st != http.StatusForbidden {
		t.Fatalf("expected 403 for patient approve, got %d", st)
	}

	// 8) admin aprueba
	mustJSON(t, ts.URL, "POST", "/appointments/"+appt.ID+"/approve", admin, map[string]any{
		"dentist_id": dentist.ID,
	}, http.StatusOK, &appt)
	if appt.Status != "approved" {
		t.Fatalf("expected approved, got %s", appt.Status)
	}

	// 9) el paciente ve su cita
	var mine []struct {
		ID string `json:"id"`
	}
	mustJSON(t, ts.URL, "GET", "/appointments", patient, nil, http.StatusOK, &mine)
	if len(mine) != 1 || mine[0].ID != appt.ID {
		t.Fatalf("expected own appointment, got %+v", mine)
	}

	// 10) log de notificaciones y reporte
	if st, body := doReq(t, ts.URL, "GET", "/admin/notifications", admin, nil); st != http.StatusOK {
		t.Fatalf("notifications: %d body=%s", st, body)
	}
	if st, _ := doReq(t, ts.URL, "GET", "/admin/notifications", patient, nil); st != http.StatusForbidden {
		t.Fatalf("expected 403 for patient on admin route, got %d", st)
	}
	if st, body := doReq(t, ts.URL, "GET", "/admin/reports/summary", admin, nil); st != http.StatusOK {
		t.Fatalf("report: %d body=%s", st, body)
	}
}

func TestHTTP_CardPaymentsDisabledWithoutGateway(t *testing.T) {
	ts := httptest.NewServer(router.NewRouter(router.Options{Config: testConfig()}))
	defer ts.Close()

	// webhook sin gateway configurado
	st, _ := doReq(t, ts.URL, "POST", "/payments/webhooks/omise", anonymous, map[string]any{"id": "evnt_1", "key": "charge.complete"})
	if st != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", st)
	}
}

func TestHTTP_BlockedIPCannotSpoofForwardedFor(t *testing.T) {
	ts := httptest.NewServer(router.NewRouter(router.Options{Config: testConfig()}))
	defer ts.Close()

	serviceID, patient, _ := setupClinic(t, ts.URL)

	// httptest conecta desde loopback
	mustJSON(t, ts.URL, "POST", "/admin/blocks", admin, map[string]any{
		"type": "ip", "ip": "127.0.0.1", "reason": "abuse",
	}, http.StatusCreated, nil)

	day := time.Now().UTC().AddDate(0, 0, 2)
	startsAt := time.Date(day.Year(), day.Month(), day.Day(), 10, 0, 0, 0, time.UTC)
	body := map[string]any{"service_id": serviceID, "starts_at": startsAt.Format(time.RFC3339)}

	spoofed := map[string]string{"X-Forwarded-For": "198.51.100.9", "X-Real-IP": "198.51.100.9"}
	if st, raw := doReqWithHeaders(t, ts.URL, "POST", "/appointments", patient, body, spoofed); st != http.StatusForbidden {
		t.Fatalf("spoofed header: expected 403, got %d body=%s", st, raw)
	}
	if st, raw := doReq(t, ts.URL, "POST", "/appointments", patient, body); st != http.StatusForbidden {
		t.Fatalf("expected 403, got %d body=%s", st, raw)
	}
}

func TestHTTP_TrustedProxyForwardsClientIP(t *testing.T) {
	cfg := testConfig()
	cfg.TrustedProxies = []string{"127.0.0.1", "::1"}
	ts := httptest.NewServer(router.NewRouter(router.Options{Config: cfg}))
	defer ts.Close()

	serviceID, patient, _ := setupClinic(t, ts.URL)

	mustJSON(t, ts.URL, "POST", "/admin/blocks", admin, map[string]any{
		"type": "ip", "ip": "198.51.100.0/24", "reason": "abuse",
	}, http.StatusCreated, nil)

	day := time.Now().UTC().AddDate(0, 0, 2)
	startsAt := time.Date(day.Year(), day.Month(), day.Day(), 10, 0, 0, 0, time.UTC)
	body := map[string]any{"service_id": serviceID, "starts_at": startsAt.Format(time.RFC3339)}

	forwarded := map[string]string{"X-Real-IP": "198.51.100.9"}
	if st, raw := doReqWithHeaders(t, ts.URL, "POST", "/appointments", patient, body, forwarded); st != http.StatusForbidden {
		t.Fatalf("blocked client behind proxy: expected 403, got %d body=%s", st, raw)
	}
}

func TestHTTP_DeactivatedAccountLosesAccessWithLiveToken(t *testing.T) {
	ts := httptest.NewServer(router.NewRouter(router.Options{Config: testConfig()}))
	defer ts.Close()

	_, patient, userID := setupClinic(t, ts.URL)

	if st, raw := doReq(t, ts.URL, "GET", "/me/patient", patient, nil); st != http.StatusOK {
		t.Fatalf("before: %d body=%s", st, raw)
	}
	mustJSON(t, ts.URL, "POST", "/admin/users/"+userID+"/status", admin, map[string]any{
		"status": "deactivated",
	}, http.StatusOK, nil)
	if st, raw := doReq(t, ts.URL, "GET", "/me/patient", patient, nil); st != http.StatusForbidden {
		t.Fatalf("after deactivation: expected 403, got %d body=%s", st, raw)
	}
}

// ---------------- helpers ----------------

// setupClinic crea un servicio, un dentista con agenda completa y un paciente logueado.
func setupClinic(t *testing.T, baseURL string) (serviceID string, patient caller, userID string) {
	t.Helper()

	var svc struct {
		ID string `json:"id"`
	}
	mustJSON(t, baseURL, "POST", "/admin/services", admin, map[string]any{
		"name": "Cleaning", "price_cents": 150000, "duration_minutes": 30,
	}, http.StatusCreated, &svc)

	var dentist struct {
		ID string `json:"id"`
	}
	mustJSON(t, baseURL, "POST", "/admin/dentists", admin, map[string]any{
		"code": "dr-01", "name": "Dr. Reyes",
	}, http.StatusCreated, &dentist)

	entries := make([]map[string]any, 0, 7)
	for wd := 0; wd < 7; wd++ {
		entries = append(entries, map[string]any{"weekday": wd, "start": "08:00", "end": "18:00"})
	}
	mustJSON(t, baseURL, "PUT", "/admin/dentists/"+dentist.ID+"/schedule", admin, map[string]any{
		"entries": entries,
	}, http.StatusOK, nil)

	mustJSON(t, baseURL, "POST", "/auth/register", anonymous, map[string]any{
		"email": "ben@example.com", "password": "secret123", "name": "Ben Lim", "phone": "+639171234568",
	}, http.StatusCreated, nil)

	var login struct {
		Token string `json:"token"`
		User  struct {
			ID string `json:"id"`
		} `json:"user"`
	}
	mustJSON(t, baseURL, "POST", "/auth/login", anonymous, map[string]any{
		"email": "ben@example.com", "password": "secret123",
	}, http.StatusOK, &login)

	return svc.ID, caller{token: login.Token}, login.User.ID
}

func mustJSON(t *testing.T, baseURL, method, path string, c caller, body any, want int, out any) {
	t.Helper()
	st, raw := doReq(t, baseURL, method, path, c, body)
	if st != want {
		t.Fatalf("%s %s: expected %d, got %d body=%s", method, path, want, st, string(raw))
	}
	if out != nil {
		if err := json.Unmarshal(raw, out); err != nil {
			t.Fatalf("%s %s: decode: %v body=%s", method, path, err, string(raw))
		}
	}
}

func doReq(t *testing.T, baseURL, method, path string, c caller, body any) (int, []byte) {
	t.Helper()
	return doReqWithHeaders(t, baseURL, method, path, c, body, nil)
}

func doReqWithHeaders(t *testing.T, baseURL, method, path string, c caller, body any, headers map[string]string) (int, []byte) {
	t.Helper()

	var r io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal: %v", err)
		}
		r = bytes.NewReader(b)
	}

	req, err := http.NewRequest(method, baseURL+path, r)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	switch {
	case c.token != "":
		req.Header.Set("Authorization", "Bearer "+c.token)
	case c.userID != "":
		req.Header.Set("X-Debug-User-ID", c.userID)
		req.Header.Set("X-Debug-Role", c.role)
	}

	res, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("do request: %v", err)
	}
	defer res.Body.Close()

	b, _ := io.ReadAll(res.Body)
	return res.StatusCode, b
}
