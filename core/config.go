package core

import (
	"log"
	"net"
	"net/mail"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	EngineSqlite   = "sqlite"
	EnginePostgres = "postgres"
)

type Config struct {
	Env                       string
	Build                     string
	Debug                     bool
	TestMode                  bool
	AppName                   string
	SecretKey                 string
	FrontendBaseURL           string
	DefaultFromEmail          mail.Address
	SendgridAPIKey            string
	RollbarToken              string
	Location                  *time.Location
	PasswordResetTimeoutDelta time.Duration

	Register struct {
		EmailDomain string
	}

	Server struct {
		Host                      string
		DebugHost                 string
		ReadTimeout               time.Duration
		WriteTimeout              time.Duration
		ShutdownTimeout           time.Duration
		JWTExpirationDelta        time.Duration
		JWTRefreshExpirationDelta time.Duration
		DisableRequestLogs        bool
	}

	Database struct {
		Engine        string
		Host          string
		Port          string
		Name          string
		User          string
		Password      string
		AdminUser     string
		AdminPassword string
		DisableTLS    bool
		Path          string // sqlite only
	}
}

// DatabaseAddress returns the database "host:port".
func (c *Config) DatabaseAddress() string {
	return net.JoinHostPort(c.Database.Host, c.Database.Port)
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("build", "develop")
	v.SetDefault("debug", true)
	v.SetDefault("test_mode", false)
	v.SetDefault("app_name", "ChemLab")
	v.SetDefault("secret_key", "hx#0t2y*c@4l=o(k3u5u8b!^0q_l^rp6x$ew1v9i%n_7ud&zsa")
	v.SetDefault("frontend_base_url", "http://localhost:3000")
	v.SetDefault("default_from_email", "ChemLab <noreply@localhost>")
	v.SetDefault("sendgrid_api_key", "")
	v.SetDefault("rollbar_token", "")
	v.SetDefault("time_zone", "UTC")
	v.SetDefault("password_reset_timeout_delta", 3*24*time.Hour)

	v.SetDefault("register.email_domain", "wallawalla.edu")

	v.SetDefault("server.host", "0.0.0.0:8000")
	v.SetDefault("server.debug_host", "0.0.0.0:4000")
	v.SetDefault("server.read_timeout", 5*time.Second)
	v.SetDefault("server.write_timeout", 5*time.Second)
	v.SetDefault("server.shutdown_timeout", 5*time.Second)
	v.SetDefault("server.jwt_expiration_delta", 24*time.Hour)
	v.SetDefault("server.jwt_refresh_expiration_delta", 7*24*time.Hour)
	v.SetDefault("server.disable_request_logs", false)

	v.SetDefault("database.engine", EnginePostgres)
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", "5432")
	v.SetDefault("database.name", "chemlab")
	v.SetDefault("database.user", "chemlab")
	v.SetDefault("database.password", "chemlab")
	v.SetDefault("database.admin_user", "postgres")
	v.SetDefault("database.admin_password", "postgres")
	v.SetDefault("database.disable_tls", true)
	v.SetDefault("database.path", "chemlab.db")
}

// loadDotEnv loads config/.env.<env> if it exists.
// The config dir defaults to the working directory and may be overridden with CHEMLAB_CONFIG_DIR.
func loadDotEnv(env string) {
	dir := os.Getenv("CHEMLAB_CONFIG_DIR")
	if dir == "" {
		wd, err := os.Getwd()
		if err != nil {
			log.Fatalf("config.os.Getwd(): %v", err)
		}
		dir = filepath.Join(wd, "config")
	}

	dotEnvPath := filepath.Join(dir, ".env."+strings.ToLower(env))
	if _, err := os.Stat(dotEnvPath); err == nil {
		if err := godotenv.Load(dotEnvPath); err != nil {
			log.Fatalf("config.godotenv(%s): %v", dotEnvPath, err)
		}
	} else if !os.IsNotExist(err) {
		log.Fatalf("config.os.Stat(%s): %v", dotEnvPath, err)
	}
}

// NewConfig builds the application Config from defaults, the env's dotenv file and CHEMLAB_* env vars.
func NewConfig() *Config {
	v := viper.New()
	v.SetTypeByDefaultValue(true)
	setDefaults(v)

	env := strings.ToUpper(os.Getenv("ENV")) // DEV (local; default), TEST, QA, PROD
	switch env {
	case "":
		env = "DEV"
	case "TEST":
		v.SetDefault("test_mode", true)
	}

	loadDotEnv(env)
	v.SetEnvPrefix("chemlab")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	conf := &Config{
		Env:                       env,
		Build:                     v.GetString("build"),
		Debug:                     v.GetBool("debug"),
		TestMode:                  v.GetBool("test_mode"),
		AppName:                   v.GetString("app_name"),
		SecretKey:                 v.GetString("secret_key"),
		FrontendBaseURL:           v.GetString("frontend_base_url"),
		SendgridAPIKey:            v.GetString("sendgrid_api_key"),
		RollbarToken:              v.GetString("rollbar_token"),
		PasswordResetTimeoutDelta: v.GetDuration("password_reset_timeout_delta"),
	}

	from, err := mail.ParseAddress(v.GetString("default_from_email"))
	if err != nil {
		log.Fatalf("config.default_from_email: %v", err)
	}
	conf.DefaultFromEmail = *from

	loc, err := time.LoadLocation(v.GetString("time_zone"))
	if err != nil {
		log.Fatalf("config.time_zone: %v", err)
	}
	conf.Location = loc

	conf.Register.EmailDomain = strings.ToLower(v.GetString("register.email_domain"))

	conf.Server.Host = v.GetString("server.host")
	conf.Server.DebugHost = v.GetString("server.debug_host")
	conf.Server.ReadTimeout = v.GetDuration("server.read_timeout")
	conf.Server.WriteTimeout = v.GetDuration("server.write_timeout")
	conf.Server.ShutdownTimeout = v.GetDuration("server.shutdown_timeout")
	conf.Server.JWTExpirationDelta = v.GetDuration("server.jwt_expiration_delta")
	conf.Server.JWTRefreshExpirationDelta = v.GetDuration("server.jwt_refresh_expiration_delta")
	conf.Server.DisableRequestLogs = v.GetBool("server.disable_request_logs")

	conf.Database.Engine = v.GetString("database.engine")
	conf.Database.Host = v.GetString("database.host")
	conf.Database.Port = v.GetString("database.port")
	conf.Database.Name = v.GetString("database.name")
	conf.Database.User = v.GetString("database.user")
	conf.Database.Password = v.GetString("database.password")
	conf.Database.AdminUser = v.GetString("database.admin_user")
	conf.Database.AdminPassword = v.GetString("database.admin_password")
	conf.Database.DisableTLS = v.GetBool("database.disable_tls")
	conf.Database.Path = v.GetString("database.path")

	return conf
}
