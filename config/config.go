package config

import (
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	Server    Server
	Database  Database
	JWT       JWT
	Storage   Storage
	Twilio    Twilio
	Reminders Reminders
	Log       Log
}

type Server struct {
	Port           string
	Environment    string
	AllowedOrigins []string
}

type Database struct {
	Driver string // postgres or mysql
	DSN    string
}

type JWT struct {
	Secret      string
	ExpiryHours int
}

func (j JWT) Expiry() time.Duration {
	return time.Duration(j.ExpiryHours) * time.Hour
}

type Storage struct {
	Dir      string
	BaseURL  string
	MaxBytes int64
}

type Twilio struct {
	AccountSID     string
	AuthToken      string
	PhoneNumber    string
	WhatsAppNumber string
}

type Reminders struct {
	Enabled  bool
	Schedule string
	Channel  string // sms or whatsapp
}

type Log struct {
	Level  string
	Format string // json or text
}

var defaults = map[string]any{
	"server.port":           "8080",
	"server.environment":    "development",
	"server.allowedorigins": []string{"http://localhost:5173", "http://localhost:3000"},
	"database.driver":       "postgres",
	"database.dsn":          "",
	"jwt.secret":            "",
	"jwt.expiryhours":       24,
	"storage.dir":           "./uploads",
	"storage.baseurl":       "http://localhost:8080/media",
	"storage.maxbytes":      10 << 20,
	"twilio.accountsid":     "",
	"twilio.authtoken":      "",
	"twilio.phonenumber":    "",
	"twilio.whatsappnumber": "",
	"reminders.enabled":     false,
	"reminders.schedule":    "0 9 * * *",
	"reminders.channel":     "sms",
	"log.level":             "info",
	"log.format":            "",
}

// env names kept from the .env files used in deployment
var envAliases = map[string]string{
	"server.port":           "PORT",
	"server.environment":    "APP_ENV",
	"database.driver":       "DB_DRIVER",
	"database.dsn":          "DB_URL",
	"jwt.secret":            "JWT_SECRET",
	"jwt.expiryhours":       "JWT_EXPIRY_HOURS",
	"twilio.accountsid":     "TWILIO_ACCOUNT_SID",
	"twilio.authtoken":      "TWILIO_AUTH_TOKEN",
	"twilio.phonenumber":    "TWILIO_PHONE_NUMBER",
	"twilio.whatsappnumber": "TWILIO_WHATSAPP_NUMBER",
	"reminders.channel":     "REMINDER_CHANNEL",
}

// Load reads .env (if present), an optional config.yaml under ./config, then environment
// variables. Environment wins.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		slog.Debug("No .env file found")
	}

	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath("config")
	v.AddConfigPath(".")
	for key, value := range defaults {
		v.SetDefault(key, value)
	}
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for key, env := range envAliases {
		if err := v.BindEnv(key, strings.ToUpper(strings.ReplaceAll(key, ".", "_")), env); err != nil {
			return nil, err
		}
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, err
		}
	}
	return ParseConfig(v)
}

func ParseConfig(v *viper.Viper) (*Config, error) {
	var c Config
	if err := v.Unmarshal(&c); err != nil {
		slog.Error("Unable to unmarshal config", "err", err)
		return nil, err
	}
	if c.Log.Format == "" {
		c.Log.Format = "text"
		if c.IsProduction() {
			c.Log.Format = "json"
		}
	}
	return &c, c.Validate()
}

func (c *Config) IsProduction() bool {
	return strings.EqualFold(c.Server.Environment, "production")
}

func (c *Config) Validate() error {
	if c.Database.DSN == "" {
		return errors.New("DB_URL is required")
	}
	if c.JWT.Secret == "" {
		return errors.New("JWT_SECRET is required")
	}
	switch c.Database.Driver {
	case "postgres", "mysql":
	default:
		return errors.New("DB_DRIVER must be postgres or mysql")
	}
	switch c.Reminders.Channel {
	case "sms", "whatsapp":
	default:
		return errors.New("REMINDER_CHANNEL must be sms or whatsapp")
	}
	return nil
}
