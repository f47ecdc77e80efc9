package buildCFG

import (
	"errors"
	"fmt"
	"io/fs"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/wb-go/wbf/dbpg"

	"filmclub/internal/mailer"
	"filmclub/internal/model"
)

// Getter is the subset of *config.Config the builders read.
type Getter interface {
	GetString(key string) string
	GetInt(key string) int
	GetBool(key string) bool
	GetDuration(key string) time.Duration
	GetStringSlice(key string) []string
}

type ServerConfig struct {
	Port            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
}

type RabbitConfig struct {
	Enabled  bool
	Url      string
	Exchange string
	Queue    string
}

type AppConfig struct {
	DefaultCapacity int
	AllowAnonymous  bool
	ReminderBefore  time.Duration
	FollowupAfter   time.Duration
	SiteURL         string
	AllowedOrigins  []string
	MigrationsDir   string
	JWTAudience     string
}

// Secrets are read from the environment, optionally seeded from a .env file.
type Secrets struct {
	AdminToken   string `env:"ADMIN_TOKEN"`
	JWTSecret    string `env:"SUPABASE_JWT_SECRET"`
	SMTPPassword string `env:"SMTP_PASSWORD"`
	DatabaseURL  string `env:"DATABASE_URL"`
	RabbitURL    string `env:"RABBITMQ_URL"`
	SiteURL      string `env:"SITE_URL"`
}

func LoadSecrets(envFile string, log *zerolog.Logger) (Secrets, error) {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil {
			if !errors.Is(err, fs.ErrNotExist) {
				return Secrets{}, fmt.Errorf("failed to load %s: %w", envFile, err)
			}
			log.Debug().Str("file", envFile).Msg("env file not found, using process environment")
		}
	}

	var s Secrets
	if err := env.Parse(&s); err != nil {
		return Secrets{}, fmt.Errorf("failed to parse environment: %w", err)
	}
	return s, nil
}

// Presence reports which secrets are set, keyed by variable name.
func (s Secrets) Presence() map[string]bool {
	return map[string]bool{
		"ADMIN_TOKEN":         s.AdminToken != "",
		"SUPABASE_JWT_SECRET": s.JWTSecret != "",
		"SMTP_PASSWORD":       s.SMTPPassword != "",
		"DATABASE_URL":        s.DatabaseURL != "",
		"SITE_URL":            s.SiteURL != "",
	}
}

func BuildServerConfig(cfg Getter, log *zerolog.Logger) ServerConfig {
	sc := ServerConfig{
		Port:            cfg.GetString("server.port"),
		ReadTimeout:     cfg.GetDuration("server.read_timeout"),
		WriteTimeout:    cfg.GetDuration("server.write_timeout"),
		ShutdownTimeout: cfg.GetDuration("server.shutdown_timeout"),
	}
	if sc.Port == "" {
		sc.Port = "8080"
		log.Warn().Msg("server.port not set, using 8080")
	}
	if sc.ReadTimeout <= 0 {
		sc.ReadTimeout = 10 * time.Second
	}
	if sc.WriteTimeout <= 0 {
		sc.WriteTimeout = 10 * time.Second
	}
	if sc.ShutdownTimeout <= 0 {
		sc.ShutdownTimeout = 10 * time.Second
	}
	return sc
}

// BuildDBConfig returns the master DSN, replica DSNs and pool options.
// DATABASE_URL, when set, replaces database.master_dsn.
func BuildDBConfig(cfg Getter, secrets Secrets, log *zerolog.Logger) (string, []string, *dbpg.Options, error) {
	master := cfg.GetString("database.master_dsn")
	if secrets.DatabaseURL != "" {
		master = secrets.DatabaseURL
	}
	if master == "" {
		return "", nil, nil, errors.New("database DSN is not configured (database.master_dsn or DATABASE_URL)")
	}

	opts := &dbpg.Options{
		MaxOpenConns:    cfg.GetInt("database.max_open_conns"),
		MaxIdleConns:    cfg.GetInt("database.max_idle_conns"),
		ConnMaxLifetime: cfg.GetDuration("database.conn_max_lifetime"),
	}
	if opts.MaxOpenConns <= 0 {
		opts.MaxOpenConns = 10
	}
	if opts.MaxIdleConns <= 0 {
		opts.MaxIdleConns = 5
	}
	if opts.ConnMaxLifetime <= 0 {
		opts.ConnMaxLifetime = 30 * time.Minute
	}

	slaves := cfg.GetStringSlice("database.slave_dsns")
	log.Info().Int("replicas", len(slaves)).Int("max_open_conns", opts.MaxOpenConns).Msg("database config built")
	return master, slaves, opts, nil
}

func BuildRabbitConfig(cfg Getter, secrets Secrets, log *zerolog.Logger) (RabbitConfig, error) {
	rc := RabbitConfig{
		Enabled:  cfg.GetBool("rabbitmq.enabled"),
		Url:      cfg.GetString("rabbitmq.url"),
		Exchange: cfg.GetString("rabbitmq.exchange"),
		Queue:    cfg.GetString("rabbitmq.queue"),
	}
	if secrets.RabbitURL != "" {
		rc.Url = secrets.RabbitURL
	}
	if !rc.Enabled {
		log.Warn().Msg("RabbitMQ disabled: scheduled notifications will not be sent")
		return rc, nil
	}
	if rc.Url == "" || rc.Exchange == "" || rc.Queue == "" {
		return rc, errors.New("rabbitmq.url, rabbitmq.exchange and rabbitmq.queue are required when rabbitmq is enabled")
	}
	return rc, nil
}

func BuildAppConfig(cfg Getter, secrets Secrets) AppConfig {
	ac := AppConfig{
		DefaultCapacity: cfg.GetInt("rsvp.default_capacity"),
		AllowAnonymous:  cfg.GetBool("rsvp.allow_anonymous"),
		ReminderBefore:  cfg.GetDuration("notifications.reminder_before"),
		FollowupAfter:   cfg.GetDuration("notifications.followup_after"),
		SiteURL:         cfg.GetString("site.url"),
		AllowedOrigins:  cfg.GetStringSlice("cors.allowed_origins"),
		MigrationsDir:   cfg.GetString("database.migrations_dir"),
		JWTAudience:     cfg.GetString("auth.jwt_audience"),
	}
	if ac.DefaultCapacity <= 0 {
		ac.DefaultCapacity = model.DefaultCapacity
	}
	if secrets.SiteURL != "" {
		ac.SiteURL = secrets.SiteURL
	}
	if ac.MigrationsDir == "" {
		ac.MigrationsDir = "migrations/postgres"
	}
	return ac
}

func BuildSMTPConfig(cfg Getter, secrets Secrets) mailer.Config {
	port := cfg.GetInt("smtp.port")
	if port == 0 {
		port = 587
	}
	return mailer.Config{
		Host:     cfg.GetString("smtp.host"),
		Port:     port,
		Username: cfg.GetString("smtp.username"),
		Password: secrets.SMTPPassword,
		From:     cfg.GetString("smtp.from"),
	}
}
