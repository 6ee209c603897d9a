// Package reports arma los indicadores del panel de administración y su exportación a Excel.
package reports

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"time"

	"dental-clinic/internal/domain/appointments"
	"dental-clinic/internal/domain/catalog"
	"dental-clinic/internal/domain/payments"
	"dental-clinic/internal/domain/refunds"
	"dental-clinic/internal/domain/visits"

	"github.com/360EntSecGroup-Skylar/excelize"
)

var ErrInvalidInput = errors.New("invalid input")

// Las fuentes son los repositorios: Limit 0 = sin límite.
type (
	AppointmentSource interface {
		List(ctx context.Context, f appointments.Filter) ([]appointments.Appointment, error)
	}
	VisitSource interface {
		List(ctx context.Context, f visits.Filter) ([]visits.Visit, error)
	}
	PaymentSource interface {
		List(ctx context.Context, f payments.Filter) ([]payments.Payment, error)
	}
	RefundSource interface {
		List(ctx context.Context, status refunds.Status, patientID string) ([]refunds.Request, error)
	}
	ServiceSource interface {
		List(ctx context.Context, onlyActive bool) ([]catalog.Service, error)
	}
	StockSource interface {
		LowStockCount(ctx context.Context) (int, error)
	}
)

type Sources struct {
	Appointments AppointmentSource
	Visits       VisitSource
	Payments     PaymentSource
	Refunds      RefundSource
	Services     ServiceSource
	Stock        StockSource
}

type ServiceCount struct {
	ServiceID string `json:"service_id"`
	Name      string `json:"name"`
	Visits    int    `json:"visits"`
}

type Summary struct {
	From time.Time `json:"from"`
	To   time.Time `json:"to"`

	AppointmentsTotal    int            `json:"appointments_total"`
	AppointmentsByStatus map[string]int `json:"appointments_by_status"`

	VisitsCompleted int     `json:"visits_completed"`
	NoShows         int     `json:"no_shows"`
	NoShowRate      float64 `json:"no_show_rate"`

	RevenueCents     int64  `json:"revenue_cents"`
	RefundedCents    int64  `json:"refunded_cents"`
	RefundsProcessed int    `json:"refunds_processed"`
	Currency         string `json:"currency"`

	TopServices   []ServiceCount `json:"top_services"`
	LowStockItems int            `json:"low_stock_items"`
}

const topServices = 5

type Service struct {
	src      Sources
	loc      *time.Location
	currency string
	now      func() time.Time
}

func NewService(src Sources, loc *time.Location, currency string) *Service {
	if loc == nil {
		loc = time.UTC
	}
	return &Service{src: src, loc: loc, currency: currency, now: time.Now}
}

// Range interpreta fechas YYYY-MM-DD en la zona de la clínica; to es inclusivo.
// Sin fechas, devuelve los últimos 30 días.
func (s *Service) Range(from, to string) (time.Time, time.Time, error) {
	today := truncateDay(s.now().In(s.loc))
	start, end := today.AddDate(0, 0, -29), today.AddDate(0, 0, 1)

	if from != "" {
		d, err := time.ParseInLocation(time.DateOnly, from, s.loc)
		if err != nil {
			return time.Time{}, time.Time{}, ErrInvalidInput
		}
		start = d
	}
	if to != "" {
		d, err := time.ParseInLocation(time.DateOnly, to, s.loc)
		if err != nil {
			return time.Time{}, time.Time{}, ErrInvalidInput
		}
		end = d.AddDate(0, 0, 1)
	}
	if !start.Before(end) || end.Sub(start) > 366*24*time.Hour+time.Hour {
		return time.Time{}, time.Time{}, ErrInvalidInput
	}
	return start, end, nil
}

// Summary calcula los indicadores de [from, to).
func (s *Service) Summary(ctx context.Context, from, to time.Time) (Summary, error) {
	if !from.Before(to) {
		return Summary{}, ErrInvalidInput
	}
	out := Summary{
		From:                 from,
		To:                   to,
		AppointmentsByStatus: map[string]int{},
		Currency:             s.currency,
		TopServices:          []ServiceCount{},
	}

	appts, err := s.src.Appointments.List(ctx, appointments.Filter{From: &from, To: &to})
	if err != nil {
		return Summary{}, fmt.Errorf("reports: appointments: %w", err)
	}
	for _, a := range appts {
		out.AppointmentsByStatus[string(a.Status)]++
	}
	out.AppointmentsTotal = len(appts)
	out.NoShows = out.AppointmentsByStatus[string(appointments.StatusNoShow)]
	completedAppts := out.AppointmentsByStatus[string(appointments.StatusCompleted)]
	if d := completedAppts + out.NoShows; d > 0 {
		out.NoShowRate = float64(out.NoShows) / float64(d)
	}

	vs, err := s.src.Visits.List(ctx, visits.Filter{Status: visits.StatusCompleted, From: &from, To: &to})
	if err != nil {
		return Summary{}, fmt.Errorf("reports: visits: %w", err)
	}
	out.VisitsCompleted = len(vs)
	out.TopServices, err = s.topServices(ctx, vs)
	if err != nil {
		return Summary{}, err
	}

	pays, err := s.src.Payments.List(ctx, payments.Filter{From: &from, To: &to})
	if err != nil {
		return Summary{}, fmt.Errorf("reports: payments: %w", err)
	}
	for _, p := range pays {
		if p.Status == payments.StatusPaid || p.Status == payments.StatusRefunded {
			out.RevenueCents += p.AmountCents - p.RefundedCents
		}
	}

	rs, err := s.src.Refunds.List(ctx, refunds.StatusProcessed, "")
	if err != nil {
		return Summary{}, fmt.Errorf("reports: refunds: %w", err)
	}
	for _, r := range rs {
		if r.ProcessedAt != nil && !r.ProcessedAt.Before(from) && r.ProcessedAt.Before(to) {
			out.RefundsProcessed++
			out.RefundedCents += r.AmountCents
		}
	}

	if out.LowStockItems, err = s.src.Stock.LowStockCount(ctx); err != nil {
		return Summary{}, fmt.Errorf("reports: stock: %w", err)
	}
	return out, nil
}

func (s *Service) topServices(ctx context.Context, vs []visits.Visit) ([]ServiceCount, error) {
	counts := map[string]int{}
	for _, v := range vs {
		counts[v.ServiceID]++
	}
	if len(counts) == 0 {
		return []ServiceCount{}, nil
	}
	svcs, err := s.src.Services.List(ctx, false)
	if err != nil {
		return nil, fmt.Errorf("reports: services: %w", err)
	}
	names := make(map[string]string, len(svcs))
	for _, sv := range svcs {
		names[sv.ID] = sv.Name
	}

	out := make([]ServiceCount, 0, len(counts))
	for id, n := range counts {
		out = append(out, ServiceCount{ServiceID: id, Name: names[id], Visits: n})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Visits != out[j].Visits {
			return out[i].Visits > out[j].Visits
		}
		return out[i].Name < out[j].Name
	})
	if len(out) > topServices {
		out = out[:topServices]
	}
	return out, nil
}

// ExportXLSX escribe un libro con las hojas Summary, Appointments y Payments.
func (s *Service) ExportXLSX(ctx context.Context, from, to time.Time, w io.Writer) error {
	sum, err := s.Summary(ctx, from, to)
	if err != nil {
		return err
	}
	appts, err := s.src.Appointments.List(ctx, appointments.Filter{From: &from, To: &to})
	if err != nil {
		return err
	}
	pays, err := s.src.Payments.List(ctx, payments.Filter{From: &from, To: &to})
	if err != nil {
		return err
	}
	sort.Slice(appts, func(i, j int) bool { return appts[i].StartsAt.Before(appts[j].StartsAt) })
	sort.Slice(pays, func(i, j int) bool { return pays[i].CreatedAt.Before(pays[j].CreatedAt) })

	file := excelize.NewFile()
	summaryIdx := file.NewSheet(sheetSummary)
	file.NewSheet(sheetAppointments)
	file.NewSheet(sheetPayments)
	file.DeleteSheet("Sheet1")
	file.SetActiveSheet(summaryIdx)

	s.writeSummary(file, sum)

	setRow(file, sheetAppointments, 1, "Reference", "Starts at", "Status", "Patient", "Service", "Dentist", "Channel")
	for i, a := range appts {
		setRow(file, sheetAppointments, i+2,
			a.Reference, a.StartsAt.In(s.loc).Format("2006-01-02 15:04"), string(a.Status),
			a.PatientID, a.ServiceID, a.DentistID, string(a.Channel))
	}

	setRow(file, sheetPayments, 1, "Payment", "Created", "Patient", "Description", "Amount", "Refunded", "Currency", "Method", "Status")
	for i, p := range pays {
		setRow(file, sheetPayments, i+2,
			p.ID, p.CreatedAt.In(s.loc).Format("2006-01-02 15:04"), p.PatientID, p.Description,
			cents(p.AmountCents), cents(p.RefundedCents), p.Currency, string(p.Method), string(p.Status))
	}

	return file.Write(w)
}

const (
	sheetSummary      = "Summary"
	sheetAppointments = "Appointments"
	sheetPayments     = "Payments"
)

func (s *Service) writeSummary(file *excelize.File, sum Summary) {
	rows := [][]any{
		{"From", sum.From.In(s.loc).Format(time.DateOnly)},
		{"To", sum.To.Add(-time.Second).In(s.loc).Format(time.DateOnly)},
		{"Appointments", sum.AppointmentsTotal},
	}
	statuses := make([]string, 0, len(sum.AppointmentsByStatus))
	for st := range sum.AppointmentsByStatus {
		statuses = append(statuses, st)
	}
	sort.Strings(statuses)
	for _, st := range statuses {
		rows = append(rows, []any{"Appointments " + st, sum.AppointmentsByStatus[st]})
	}
	rows = append(rows,
		[]any{"Visits completed", sum.VisitsCompleted},
		[]any{"No-show rate", sum.NoShowRate},
		[]any{"Revenue", cents(sum.RevenueCents)},
		[]any{"Refunds processed", sum.RefundsProcessed},
		[]any{"Refunded", cents(sum.RefundedCents)},
		[]any{"Low stock items", sum.LowStockItems},
	)
	for _, ts := range sum.TopServices {
		rows = append(rows, []any{"Top service: " + ts.Name, ts.Visits})
	}
	for i, r := range rows {
		setRow(file, sheetSummary, i+1, r...)
	}
}

func setRow(file *excelize.File, sheet string, row int, values ...any) {
	for i, v := range values {
		file.SetCellValue(sheet, fmt.Sprintf("%c%d", 'A'+i, row), v)
	}
}

func cents(v int64) float64 { return float64(v) / 100 }

func truncateDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}
