package config

import (
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/linesmerrill/event-checkin-api/models"
)

// Config holds the project config values
type Config struct {
	URL               string        `env:"DB_URI" envDefault:"mongodb://127.0.0.1:27017/?replicaSet=rs0"`
	DatabaseName      string        `env:"DB_NAME" envDefault:"event-checkin"`
	DBTimeout         time.Duration `env:"DB_TIMEOUT" envDefault:"10s"`
	RequestTimeout    time.Duration `env:"REQUEST_TIMEOUT" envDefault:"30s"`
	BaseURL           string        `env:"BASE_URL"`
	Port              string        `env:"PORT" envDefault:"8080"`
	Env               string        `env:"ENV" envDefault:"local"`
	JWTSecret         string        `env:"JWT_SECRET"`
	JWTIssuer         string        `env:"JWT_ISSUER"`
	CloudinaryURL     string        `env:"CLOUDINARY_URL"`
	SendGridAPIKey    string        `env:"SENDGRID_API_KEY"`
	MailFrom          string        `env:"MAIL_FROM" envDefault:"no-reply@event-checkin.app"`
	ReconcileCron     string        `env:"RECONCILE_SCHEDULE" envDefault:"@every 15m"`
	CheckInRatePerMin int           `env:"CHECKIN_RATE_PER_MIN" envDefault:"120"`
	JoinRatePerMin    int           `env:"JOIN_RATE_PER_MIN" envDefault:"10"`
}

// New sets up all config related services. A .env file is honored outside production.
func New() (*Config, error) {
	if os.Getenv("ENV") != "production" {
		// a missing .env is fine, the environment may already be populated
		_ = godotenv.Load()
	}

	conf := &Config{}
	if err := env.Parse(conf); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}

	//setup zap logger and replace default logger
	logger, err := setLogger(conf.Env)
	if err != nil {
		return nil, err
	}
	_ = zap.ReplaceGlobals(logger)

	return conf, nil
}

// setLogger picks a zap configuration for the environment: production logs at info
// level as JSON, development logs at debug level, anything else uses the example logger
func setLogger(environment string) (*zap.Logger, error) {
	switch environment {
	case "production":
		return zap.NewProduction()
	case "development":
		return zap.NewDevelopment()
	default:
		return zap.NewExample(), nil
	}
}

// ErrorStatus is a useful function that will log, write http headers and body for a
// give message, status code and err
func ErrorStatus(message string, httpStatusCode int, w http.ResponseWriter, err error) {
	ErrorStatusCode(message, "", httpStatusCode, w, err)
}

// ErrorStatusCode is ErrorStatus with a machine readable code clients can branch on
func ErrorStatusCode(message, code string, httpStatusCode int, w http.ResponseWriter, err error) {
	if httpStatusCode >= http.StatusInternalServerError {
		zap.S().Errorw(message, "error", err)
	} else {
		zap.S().Debugw(message, "error", err)
	}
	resp := models.ErrorMessageResponse{Response: models.MessageError{Message: message, Code: code}}
	if err != nil {
		resp.Response.Error = err.Error()
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(httpStatusCode)
	_ = json.NewEncoder(w).Encode(resp)
}
