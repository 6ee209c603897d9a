package router

import (
	"context"
	"database/sql"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	httpSwagger "github.com/swaggo/http-swagger"

	_ "dental-clinic/docs"
	"dental-clinic/internal/adapters/auth/jwt"
	"dental-clinic/internal/adapters/queue/memqueue"
	mem "dental-clinic/internal/adapters/storage/memory"
	pg "dental-clinic/internal/adapters/storage/postgres"
	"dental-clinic/internal/domain/appointments"
	"dental-clinic/internal/domain/blocks"
	"dental-clinic/internal/domain/catalog"
	"dental-clinic/internal/domain/devices"
	"dental-clinic/internal/domain/inventory"
	"dental-clinic/internal/domain/notifications"
	"dental-clinic/internal/domain/patients"
	"dental-clinic/internal/domain/payments"
	"dental-clinic/internal/domain/refunds"
	"dental-clinic/internal/domain/reports"
	"dental-clinic/internal/domain/schedules"
	"dental-clinic/internal/domain/users"
	"dental-clinic/internal/domain/visits"
	"dental-clinic/internal/middleware"
	"dental-clinic/internal/platform/config"
	"dental-clinic/internal/platform/logger"
)

type Options struct {
	Config config.App
	Logger logger.Logger

	// Opcional: si viene, usa Postgres. Si no, in-memory.
	DB *sql.DB
	// Opcional: cola de notificaciones (RabbitMQ). nil => cola en proceso.
	Queue notifications.Queue
	// Opcional: sin gateway los pagos con tarjeta responden 503.
	Gateway payments.Gateway
}

// App expone lo que main necesita además del handler HTTP
// (worker de notificaciones, recordatorios, bootstrap del admin).
type App struct {
	Handler http.Handler

	Users         *users.Service
	Appointments  *appointments.Service
	Dispatcher    *notifications.Dispatcher
	Notifications notifications.Repository
	Queue         notifications.Queue
}

type repos struct {
	users         users.Repository
	devices       devices.Repository
	blocks        blocks.Repository
	patients      patients.Repository
	catalog       catalog.Repository
	schedules     schedules.Repository
	inventory     inventory.Repository
	appointments  appointments.Repository
	visits        visits.Repository
	payments      payments.Repository
	refunds       refunds.Repository
	notifications notifications.Repository
}

func memoryRepos() repos {
	return repos{
		users:         mem.NewUsersRepo(),
		devices:       mem.NewDevicesRepo(),
		blocks:        mem.NewBlocksRepo(),
		patients:      mem.NewPatientsRepo(),
		catalog:       mem.NewCatalogRepo(),
		schedules:     mem.NewSchedulesRepo(),
		inventory:     mem.NewInventoryRepo(),
		appointments:  mem.NewAppointmentsRepo(),
		visits:        mem.NewVisitsRepo(),
		payments:      mem.NewPaymentsRepo(),
		refunds:       mem.NewRefundsRepo(),
		notifications: mem.NewNotificationsRepo(),
	}
}

func postgresRepos(db *sql.DB) repos {
	return repos{
		users:         pg.NewUsersRepo(db),
		devices:       pg.NewDevicesRepo(db),
		blocks:        pg.NewBlocksRepo(db),
		patients:      pg.NewPatientsRepo(db),
		catalog:       pg.NewCatalogRepo(db),
		schedules:     pg.NewSchedulesRepo(db),
		inventory:     pg.NewInventoryRepo(db),
		appointments:  pg.NewAppointmentsRepo(db),
		visits:        pg.NewVisitsRepo(db),
		payments:      pg.NewPaymentsRepo(db),
		refunds:       pg.NewRefundsRepo(db),
		notifications: pg.NewNotificationsRepo(db),
	}
}

// Build arma repos, services y rutas.
func Build(opts Options) *App {
	cfg := opts.Config
	log := opts.Logger
	if log == nil {
		log = logger.Nop()
	}

	rp := memoryRepos()
	if opts.DB != nil {
		rp = postgresRepos(opts.DB)
	}

	queue := opts.Queue
	if queue == nil {
		queue = memqueue.New(512)
	}

	tokens := jwt.NewManager(cfg.JWTSecret, cfg.JWTTTL())
	loc := cfg.Location()

	// Services por módulo
	dispatcher := notifications.NewDispatcher(rp.notifications, queue, log)
	patientsSvc := patients.NewService(rp.patients)
	blocksSvc := blocks.NewService(rp.blocks)
	catalogSvc := catalog.NewService(rp.catalog)
	schedulesSvc := schedules.NewService(rp.schedules, loc, cfg.SlotMinutes)
	inventorySvc := inventory.NewService(rp.inventory)
	devicesSvc := devices.NewService(rp.devices)
	usersSvc := users.NewService(rp.users, patientsSvc, devicesSvc, tokens)
	devicesSvc.WithNotices(dispatcher, usersSvc)

	appointmentsSvc := appointments.NewService(rp.appointments, appointments.Deps{
		Blocks:   blocksSvc,
		Catalog:  catalogSvc,
		Agenda:   schedulesSvc,
		Patients: patientsSvc,
		Notifier: dispatcher,
	}, cfg.BookingMaxDaysAhead)

	paymentsSvc := payments.NewService(rp.payments, opts.Gateway, patientsSvc, cfg.Currency).WithNotifier(dispatcher)
	refundsSvc := refunds.NewService(rp.refunds, paymentsSvc, patientsSvc, dispatcher)

	visitsSvc := visits.NewService(rp.visits, visits.Deps{
		Appointments: appointmentsSvc,
		Catalog:      catalogSvc,
		Inventory:    inventorySvc,
		Payments:     paymentsSvc,
		Patients:     patientsSvc,
	})

	reportsSvc := reports.NewService(reports.Sources{
		Appointments: rp.appointments,
		Visits:       rp.visits,
		Payments:     rp.payments,
		Refunds:      rp.refunds,
		Services:     rp.catalog,
		Stock:        inventorySvc,
	}, loc, cfg.Currency)

	r := chi.NewRouter()

	r.Use(chimw.RequestID)
	r.Use(middleware.TrustedRealIP(cfg.TrustedProxyPrefixes()))
	r.Use(chimw.Recoverer)
	r.Use(middleware.AccessLog(log))

	r.Use(middleware.AuthContext(tokens, cfg.DevAuth))
	r.Use(middleware.RequireActiveUser(usersSvc))
	r.Use(middleware.RequireApprovedDevice(devicesSvc))

	r.Get("/health", healthHandler(opts.DB))
	r.Get("/swagger/*", httpSwagger.WrapHandler)

	// Rutas por módulo
	users.RegisterRoutes(r, usersSvc)
	devices.RegisterRoutes(r, devicesSvc)
	blocks.RegisterRoutes(r, blocksSvc)
	patients.RegisterRoutes(r, patientsSvc, visits.PatientRoutes(visitsSvc))
	catalog.RegisterRoutes(r, catalogSvc)
	schedules.RegisterRoutes(r, schedulesSvc)
	inventory.RegisterRoutes(r, inventorySvc)
	appointments.RegisterRoutes(r, appointmentsSvc)
	visits.RegisterRoutes(r, visitsSvc)
	payments.RegisterRoutes(r, paymentsSvc)
	refunds.RegisterRoutes(r, refundsSvc)
	reports.RegisterRoutes(r, reportsSvc)
	notifications.RegisterRoutes(r, dispatcher)

	return &App{
		Handler:       r,
		Users:         usersSvc,
		Appointments:  appointmentsSvc,
		Dispatcher:    dispatcher,
		Notifications: rp.notifications,
		Queue:         queue,
	}
}

// NewRouter es Build sin las piezas de fondo.
func NewRouter(opts Options) http.Handler {
	return Build(opts).Handler
}

func healthHandler(db *sql.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if db != nil {
			ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
			defer cancel()
			if err := db.PingContext(ctx); err != nil {
				http.Error(w, "db unavailable", http.StatusServiceUnavailable)
				return
			}
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	}
}
