package config

import (
	"fmt"
	"net/netip"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// App agrupa toda la configuración del servicio. Se carga desde env vars.
type App struct {
	Port    string `envconfig:"PORT" default:"8080"`
	AppName string `envconfig:"APP_NAME" default:"dental-clinic"`
	Env     string `envconfig:"ENV" default:"dev"`

	LogLevel  string `envconfig:"LOG_LEVEL" default:"info"`
	LogFormat string `envconfig:"LOG_FORMAT" default:"text"`

	// Vacío => storage in-memory.
	DBDSN string `envconfig:"DB_DSN"`

	JWTSecret string `envconfig:"JWT_SECRET" default:"change-me"`
	JWTTTLMin int    `envconfig:"JWT_TTL_MIN" default:"60"`
	DevAuth   bool   `envconfig:"DEV_AUTH" default:"false"`

	// Si ambos vienen, al arrancar se asegura un admin con esas credenciales.
	BootstrapAdminEmail    string `envconfig:"BOOTSTRAP_ADMIN_EMAIL"`
	BootstrapAdminPassword string `envconfig:"BOOTSTRAP_ADMIN_PASSWORD"`

	ClinicTZ            string `envconfig:"CLINIC_TZ" default:"Asia/Manila"`
	BookingMaxDaysAhead int    `envconfig:"BOOKING_MAX_DAYS_AHEAD" default:"30"`
	SlotMinutes         int    `envconfig:"SLOT_MINUTES" default:"30"`
	Currency            string `envconfig:"CURRENCY" default:"php"`

	RabbitURL         string        `envconfig:"RABBIT_URL"`
	NotifyExchange    string        `envconfig:"NOTIFY_EXCHANGE" default:"clinic.notifications"`
	NotifyQueue       string        `envconfig:"NOTIFY_QUEUE" default:"clinic.notifications.q"`
	NotifyMaxAttempts int           `envconfig:"NOTIFY_MAX_ATTEMPTS" default:"3"`
	NotifyBackoff     time.Duration `envconfig:"NOTIFY_BACKOFF" default:"10s"`

	ReminderEveryMin  int `envconfig:"REMINDER_EVERY_MIN" default:"15"`
	ReminderLeadHours int `envconfig:"REMINDER_LEAD_HOURS" default:"24"`

	MailtrapBaseURL string `envconfig:"MAILTRAP_BASE_URL" default:"https://send.api.mailtrap.io"`
	MailtrapToken   string `envconfig:"MAILTRAP_TOKEN"`
	MailFrom        string `envconfig:"MAIL_FROM" default:"no-reply@clinic.local"`
	MailFromName    string `envconfig:"MAIL_FROM_NAME" default:"Dental Clinic"`

	SNSRegion   string `envconfig:"SNS_REGION"`
	SNSSenderID string `envconfig:"SNS_SENDER_ID"`

	FirebaseCredentialsFile string `envconfig:"FIREBASE_CREDENTIALS_FILE"`

	OmisePublicKey string `envconfig:"OMISE_PUBLIC_KEY"`
	OmiseSecretKey string `envconfig:"OMISE_SECRET_KEY"`

	OTelEndpoint string `envconfig:"OTEL_EXPORTER_OTLP_ENDPOINT"`

	// IPs o CIDRs de los proxies cuyo X-Real-IP/X-Forwarded-For se respeta.
	// Vacío => se usa siempre la IP de la conexión.
	TrustedProxies []string `envconfig:"TRUSTED_PROXIES"`
}

func Load() (App, error) {
	var c App
	if err := envconfig.Process("", &c); err != nil {
		return App{}, err
	}
	if err := c.validate(); err != nil {
		return App{}, err
	}
	return c, nil
}

func (c App) validate() error {
	if c.JWTTTLMin <= 0 {
		return fmt.Errorf("config: JWT_TTL_MIN must be > 0")
	}
	if c.BookingMaxDaysAhead <= 0 {
		return fmt.Errorf("config: BOOKING_MAX_DAYS_AHEAD must be > 0")
	}
	if c.SlotMinutes < 5 || c.SlotMinutes > 240 {
		return fmt.Errorf("config: SLOT_MINUTES must be between 5 and 240")
	}
	if c.NotifyMaxAttempts <= 0 {
		return fmt.Errorf("config: NOTIFY_MAX_ATTEMPTS must be > 0")
	}
	if c.ReminderEveryMin <= 0 || c.ReminderLeadHours <= 0 {
		return fmt.Errorf("config: reminder settings must be > 0")
	}
	if _, err := time.LoadLocation(c.ClinicTZ); err != nil {
		return fmt.Errorf("config: CLINIC_TZ: %w", err)
	}
	for _, raw := range c.TrustedProxies {
		if _, err := parsePrefix(raw); err != nil {
			return fmt.Errorf("config: TRUSTED_PROXIES: %w", err)
		}
	}
	if strings.EqualFold(c.Env, "prod") && (c.JWTSecret == "change-me" || c.DevAuth) {
		return fmt.Errorf("config: prod requires JWT_SECRET and DEV_AUTH=false")
	}
	return nil
}

// Location devuelve la zona horaria de la clínica (validada en Load).
func (c App) Location() *time.Location {
	loc, err := time.LoadLocation(c.ClinicTZ)
	if err != nil {
		return time.UTC
	}
	return loc
}

func (c App) JWTTTL() time.Duration {
	return time.Duration(c.JWTTTLMin) * time.Minute
}

// TrustedProxyPrefixes devuelve TRUSTED_PROXIES como prefijos; ignora entradas inválidas.
func (c App) TrustedProxyPrefixes() []netip.Prefix {
	out := make([]netip.Prefix, 0, len(c.TrustedProxies))
	for _, raw := range c.TrustedProxies {
		if p, err := parsePrefix(raw); err == nil {
			out = append(out, p)
		}
	}
	return out
}

func parsePrefix(raw string) (netip.Prefix, error) {
	raw = strings.TrimSpace(raw)
	if strings.Contains(raw, "/") {
		p, err := netip.ParsePrefix(raw)
		if err != nil {
			return netip.Prefix{}, err
		}
		return p.Masked(), nil
	}
	a, err := netip.ParseAddr(raw)
	if err != nil {
		return netip.Prefix{}, err
	}
	a = a.Unmap()
	return netip.PrefixFrom(a, a.BitLen()), nil
}
