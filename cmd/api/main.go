package main

import (
	"context"
	"database/sql"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"
	_ "time/tzdata"

	"github.com/joho/godotenv"

	"dental-clinic/internal/adapters/notify"
	"dental-clinic/internal/adapters/payments/omisegw"
	"dental-clinic/internal/adapters/queue/rabbitmq"
	pg "dental-clinic/internal/adapters/storage/postgres"
	"dental-clinic/internal/domain/notifications"
	"dental-clinic/internal/jobs/reminders"
	"dental-clinic/internal/platform/config"
	"dental-clinic/internal/platform/httpclient"
	"dental-clinic/internal/platform/logger"
	"dental-clinic/internal/platform/obs"
	"dental-clinic/internal/router"
)

func main() {
	// .env es opcional; en prod todo viene del entorno
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	lg := logger.New(logger.Options{
		Level:  logger.ParseLevel(cfg.LogLevel),
		Format: logger.ParseFormat(cfg.LogFormat),
		App:    cfg.AppName,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTracer, err := obs.InitTracer(ctx, obs.Options{
		ServiceName: cfg.AppName,
		Env:         cfg.Env,
		Endpoint:    cfg.OTelEndpoint,
	})
	if err != nil {
		lg.Error("tracer init failed", map[string]any{"error": err})
		os.Exit(1)
	}

	var db *sql.DB
	if cfg.DBDSN != "" {
		db, err = pg.Open(cfg.DBDSN)
		if err != nil {
			lg.Error("postgres open failed", map[string]any{"error": err})
			os.Exit(1)
		}
		defer db.Close()
		lg.Info("storage: postgres", nil)
	} else {
		lg.Warn("storage: in-memory (DB_DSN not set)", nil)
	}

	opts := router.Options{Config: cfg, Logger: lg, DB: db}

	if cfg.RabbitURL != "" {
		q, err := rabbitmq.Dial(cfg.RabbitURL, cfg.NotifyExchange, cfg.NotifyQueue, lg)
		if err != nil {
			lg.Error("rabbitmq dial failed", map[string]any{"error": err})
			os.Exit(1)
		}
		defer q.Close()
		opts.Queue = q
	}

	if cfg.OmisePublicKey != "" && cfg.OmiseSecretKey != "" {
		gw, err := omisegw.New(cfg.OmisePublicKey, cfg.OmiseSecretKey)
		if err != nil {
			lg.Error("omise init failed", map[string]any{"error": err})
			os.Exit(1)
		}
		opts.Gateway = gw
	} else {
		lg.Warn("card payments disabled (OMISE keys not set)", nil)
	}

	app := router.Build(opts)

	if cfg.BootstrapAdminEmail != "" && cfg.BootstrapAdminPassword != "" {
		u, created, err := app.Users.EnsureAdmin(ctx, cfg.BootstrapAdminEmail, cfg.BootstrapAdminPassword)
		if err != nil {
			lg.Error("bootstrap admin failed", map[string]any{"error": err})
			os.Exit(1)
		}
		if created {
			lg.Info("bootstrap admin created", map[string]any{"user_id": u.ID, "email": u.Email})
		}
	}

	worker := notifications.NewWorker(app.Notifications, app.Queue, buildSenders(ctx, cfg, lg), notifications.WorkerOptions{
		MaxAttempts: cfg.NotifyMaxAttempts,
		Backoff:     cfg.NotifyBackoff,
		Logger:      lg,
	})
	go func() {
		if err := worker.Run(ctx); err != nil {
			lg.Error("notification worker stopped", map[string]any{"error": err})
		}
	}()

	stopReminders, err := reminders.New(app.Appointments, reminders.Options{
		Every:    time.Duration(cfg.ReminderEveryMin) * time.Minute,
		LeadTime: time.Duration(cfg.ReminderLeadHours) * time.Hour,
		Location: cfg.Location(),
		Logger:   lg,
	}).Start(ctx)
	if err != nil {
		lg.Error("reminders start failed", map[string]any{"error": err})
		os.Exit(1)
	}

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           app.Handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      30 * time.Second,
	}

	go func() {
		lg.Info("starting server", map[string]any{"addr": srv.Addr, "env": cfg.Env})
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			lg.Error("server error", map[string]any{"error": err})
			stop()
		}
	}()

	<-ctx.Done()
	lg.Info("shutting down", nil)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	stopReminders()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		lg.Error("http shutdown", map[string]any{"error": err})
	}
	if err := shutdownTracer(shutdownCtx); err != nil {
		lg.Warn("tracer shutdown", map[string]any{"error": err})
	}
}

// buildSenders usa el proveedor real de cada canal si está configurado;
// si no, el canal cae al ConsoleSender.
func buildSenders(ctx context.Context, cfg config.App, lg logger.Logger) map[notifications.Channel]notifications.Sender {
	console := notify.NewConsoleSender(lg)
	senders := map[notifications.Channel]notifications.Sender{
		notifications.ChannelEmail: console,
		notifications.ChannelSMS:   console,
		notifications.ChannelPush:  console,
	}

	if cfg.MailtrapToken != "" {
		c, err := httpclient.New(cfg.MailtrapBaseURL, cfg.MailtrapToken, 10*time.Second, nil)
		if err != nil {
			lg.Warn("mailtrap disabled", map[string]any{"error": err})
		} else {
			senders[notifications.ChannelEmail] = notify.NewMailtrapSender(c, cfg.MailFrom, cfg.MailFromName)
		}
	}

	if cfg.SNSRegion != "" {
		s, err := notify.NewSNSSender(ctx, cfg.SNSRegion, cfg.SNSSenderID)
		if err != nil {
			lg.Warn("sns disabled", map[string]any{"error": err})
		} else {
			senders[notifications.ChannelSMS] = s
		}
	}

	if cfg.FirebaseCredentialsFile != "" {
		s, err := notify.NewFCMSender(ctx, cfg.FirebaseCredentialsFile)
		if err != nil {
			lg.Warn("fcm disabled", map[string]any{"error": err})
		} else {
			senders[notifications.ChannelPush] = s
		}
	}

	return senders
}
