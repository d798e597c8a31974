package main

import (
	"log/slog"
	"os"
	"time"

	"github.com/go-chi/jwtauth/v5"
	"github.com/ilyakaznacheev/cleanenv"
	"github.com/tendant/chi-demo/app"

	"github.com/fleetdesk/loginverify/pkg/challenge"
	"github.com/fleetdesk/loginverify/pkg/challenge/api"
	"github.com/fleetdesk/loginverify/pkg/notification"
	"github.com/fleetdesk/loginverify/pkg/tokens"
)

type JwtConfig struct {
	JwtSecret string `env:"JWT_SECRET" env-default:"very-secure-jwt-secret"`
	Issuer    string `env:"JWT_ISSUER" env-default:"loginverify"`
	Audience  string `env:"JWT_AUDIENCE" env-default:"fleetdesk"`
}

type SmtpConfig struct {
	Host     string `env:"SMTP_HOST" env-default:"localhost"`
	Port     int    `env:"SMTP_PORT" env-default:"1025"`
	TLS      bool   `env:"SMTP_TLS" env-default:"false"`
	Username string `env:"SMTP_USERNAME" env-default:""`
	Password string `env:"SMTP_PASSWORD" env-default:""`
	From     string `env:"SMTP_FROM" env-default:"noreply@fleetdesk.example"`
}

type ChallengeConfig struct {
	CodeLifetimeSeconds   int  `env:"CODE_LIFETIME_SECONDS" env-default:"120"`
	ResendCooldownSeconds int  `env:"RESEND_COOLDOWN_SECONDS" env-default:"30"`
	MaxAttempts           int  `env:"MAX_ATTEMPTS" env-default:"5"`
	DebugCodes            bool `env:"DEBUG_CODES" env-default:"false"`
	SeedDemoUsers         bool `env:"SEED_DEMO_USERS" env-default:"true"`
}

type Config struct {
	AppConfig       app.AppConfig
	JwtConfig       JwtConfig
	SmtpConfig      SmtpConfig
	ChallengeConfig ChallengeConfig
}

func main() {

	config := Config{}
	cleanenv.ReadEnv(&config)

	server := app.DefaultWithoutRoutes()

	app.RoutesHealthz(server.R)
	app.RoutesHealthzReady(server.R)

	emailNotifier, err := notification.NewEmailNotifier(notification.SMTPConfig{
		Host:     config.SmtpConfig.Host,
		Port:     config.SmtpConfig.Port,
		TLS:      config.SmtpConfig.TLS,
		Username: config.SmtpConfig.Username,
		Password: config.SmtpConfig.Password,
		From:     config.SmtpConfig.From,
	})
	if err != nil {
		slog.Error("Failed creating email notifier", "host", config.SmtpConfig.Host, "err", err)
		os.Exit(-1)
	}

	notifications := notification.NewManager(emailNotifier)
	for noticeType, template := range notification.DefaultTemplates() {
		if err := notifications.RegisterTemplate(noticeType, template); err != nil {
			slog.Error("Failed registering notice template", "type", noticeType, "err", err)
			os.Exit(-1)
		}
	}

	tokenService := tokens.NewService(config.JwtConfig.JwtSecret,
		tokens.WithIssuer(config.JwtConfig.Issuer),
		tokens.WithAudience(config.JwtConfig.Audience),
	)

	repo := challenge.NewInMemRepository()
	directory := challenge.NewInMemDirectory()
	if config.ChallengeConfig.SeedDemoUsers {
		challenge.SeedDemoDirectory(directory)
	}

	service := challenge.NewService(repo, directory, tokenService, notifications,
		challenge.WithCodeLifetime(time.Duration(config.ChallengeConfig.CodeLifetimeSeconds)*time.Second),
		challenge.WithResendCooldown(time.Duration(config.ChallengeConfig.ResendCooldownSeconds)*time.Second),
		challenge.WithMaxAttempts(config.ChallengeConfig.MaxAttempts),
		challenge.WithDebugCodes(config.ChallengeConfig.DebugCodes),
	)

	jwtAuth := jwtauth.New("HS256", []byte(config.JwtConfig.JwtSecret), nil)
	handle := api.NewHandle(service, directory, jwtAuth)

	server.R.Mount("/", handle.Routes())

	server.Run()
}
