package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/ilyakaznacheev/cleanenv"

	"github.com/fleetdesk/loginverify/pkg/authinit"
	"github.com/fleetdesk/loginverify/pkg/countdown"
	"github.com/fleetdesk/loginverify/pkg/geo"
	"github.com/fleetdesk/loginverify/pkg/pending"
	"github.com/fleetdesk/loginverify/pkg/session"
	"github.com/fleetdesk/loginverify/pkg/telemetry"
	"github.com/fleetdesk/loginverify/pkg/verifyapi"
	"github.com/fleetdesk/loginverify/pkg/verifyflow"
)

type Config struct {
	ApiBaseUrl string  `env:"VERIFY_API_BASE_URL" env-default:"http://localhost:4000"`
	DataDir    string  `env:"VERIFY_DATA_DIR" env-default:".loginverify"`
	DeviceInfo string  `env:"VERIFY_DEVICE_INFO" env-default:"verify-login-cli"`
	DeviceLat  float64 `env:"VERIFY_DEVICE_LAT" env-default:"0"`
	DeviceLng  float64 `env:"VERIFY_DEVICE_LNG" env-default:"0"`
	HasDevice  bool    `env:"VERIFY_DEVICE_LOCATION" env-default:"false"`
}

func main() {
	email := flag.String("email", "", "Account email to verify")
	code := flag.String("code", "", "Verification code from a sign-in link")
	flag.Parse()

	config := Config{}
	cleanenv.ReadEnv(&config)

	pendingStore, err := pending.NewFileStore(config.DataDir)
	if err != nil {
		slog.Error("Failed creating pending store", "dataDir", config.DataDir, "err", err)
		os.Exit(-1)
	}
	sessionStore, err := session.NewFileStore(config.DataDir)
	if err != nil {
		slog.Error("Failed creating session store", "dataDir", config.DataDir, "err", err)
		os.Exit(-1)
	}

	client := verifyapi.NewClient(config.ApiBaseUrl)
	initializer := authinit.NewInitializer(sessionStore, client)

	var locator geo.Locator = geo.NewNoopLocator()
	if config.HasDevice {
		locator = geo.NewCachedLocator(geo.NewStaticLocator(geo.Coordinates{
			Latitude:  config.DeviceLat,
			Longitude: config.DeviceLng,
		}), geo.DefaultMaxCacheAge)
	}

	telemetryManager := telemetry.NewManager(
		telemetry.NewHTTPEmitter(client),
		telemetry.NewLogEmitter(),
	)

	controller := verifyflow.NewController(client, initializer, pendingStore, sessionStore,
		verifyflow.WithTelemetry(telemetryManager),
		verifyflow.WithLocator(locator),
		verifyflow.WithDeviceInfo(config.DeviceInfo),
	)

	ctx := context.Background()
	reader := bufio.NewReader(os.Stdin)

	params := verifyflow.EntryParams{Email: *email, Code: *code}

	// No deep link and no stored attempt: ask for the email and start a
	// fresh login, which issues the first code
	if *email != "" && *code == "" {
		record, ok := startLogin(ctx, client, locator, config.DeviceInfo, *email)
		if !ok {
			os.Exit(1)
		}
		params.Pending = record
	} else if *email == "" {
		stored, err := pendingStore.Load(ctx)
		if err != nil || stored == nil {
			fmt.Print("Email: ")
			line, _ := reader.ReadString('\n')
			entered := strings.TrimSpace(line)
			if entered == "" {
				fmt.Fprintln(os.Stderr, "An email is required.")
				os.Exit(1)
			}
			record, ok := startLogin(ctx, client, locator, config.DeviceInfo, entered)
			if !ok {
				os.Exit(1)
			}
			params.Email = entered
			params.Pending = record
		}
	}

	outcome := controller.Start(ctx, params)
	if done := report(controller, outcome); done {
		return
	}

	engine := countdown.NewEngine()
	defer engine.Stop()

	showChallenge(controller)
	watchExpiry(engine, controller)

	for {
		fmt.Print("Code (or 'resend', 'quit'): ")
		line, err := reader.ReadString('\n')
		if err != nil {
			return
		}

		switch input := strings.TrimSpace(line); input {
		case "":
			continue
		case "quit", "q":
			return
		case "resend", "r":
			if !controller.ResendAvailable() {
				if deadline := controller.ResendDeadline(); deadline != nil {
					fmt.Printf("Resend available in %s.\n", countdown.FormatClock(countdown.Remaining(time.Now(), *deadline)))
				}
				continue
			}
			outcome := controller.Resend(ctx)
			if done := report(controller, outcome); done {
				return
			}
			showChallenge(controller)
			watchExpiry(engine, controller)
		default:
			controller.SetCode(input)
			outcome := controller.Verify(ctx)
			if done := report(controller, outcome); done {
				return
			}
		}
	}
}

// startLogin issues the first challenge and converts the response into the
// pending record the controller rehydrates from.
func startLogin(ctx context.Context, client *verifyapi.Client, locator geo.Locator, deviceInfo, email string) (*pending.Record, bool) {
	req := verifyapi.ResendRequest{Email: email, DeviceInfo: deviceInfo}
	if coords, err := locator.Locate(ctx); err == nil && coords != nil {
		req.Lat = &coords.Latitude
		req.Lng = &coords.Longitude
	}

	resp, err := client.Login(ctx, req)
	if err != nil {
		slog.Error("Failed to start login", "email", email, "err", err)
		fmt.Fprintf(os.Stderr, "Could not start login: %v\n", err)
		return nil, false
	}

	record := &pending.Record{
		Email:                 email,
		Message:               resp.Message,
		ActiveSessionsCount:   resp.ActiveSessionsCount,
		VerificationExpiresAt: resp.VerificationExpiresAt,
		ResendAvailableAt:     resp.ResendAvailableAt,
		Lat:                   resp.Lat,
		Lng:                   resp.Lng,
	}
	if resp.Debug != nil {
		record.DebugCode = resp.Debug.VerificationCode
	}
	if resp.Message != "" {
		fmt.Println(resp.Message)
	}
	return record, true
}

// report prints the outcome. It returns true when the flow is finished.
func report(controller *verifyflow.Controller, outcome verifyflow.Outcome) bool {
	if outcome.Authenticated {
		fmt.Println("Verification successful.")
		perms, err := controller.SessionPermissions(context.Background())
		if err != nil {
			slog.Warn("Failed to load session permissions", "err", err)
		}
		fmt.Printf("Landing page: %s\n", verifyflow.FirstAllowedRoute(perms, verifyflow.DefaultRoutes))
		return true
	}
	if outcome.RedirectLogin {
		fmt.Println(outcome.Message)
		fmt.Println("Please sign in again.")
		return true
	}
	if outcome.Message != "" {
		fmt.Println(outcome.Message)
	}
	return false
}

// watchExpiry restarts the countdown on the current expiry deadline and
// announces when the code runs out.
func watchExpiry(engine *countdown.Engine, controller *verifyflow.Controller) {
	deadline := controller.ExpiryDeadline()
	if deadline == nil {
		return
	}
	ch := engine.Start(*deadline)
	go func() {
		for remaining := range ch {
			if remaining == 0 {
				fmt.Println("\nThe verification code has expired. Type 'resend' for a new one.")
			}
		}
	}()
}

// showChallenge prints the state of the current challenge, including the
// expiry countdown.
func showChallenge(controller *verifyflow.Controller) {
	if controller.LocationMismatch() {
		fmt.Println("Note: this sign-in is far from the account's usual location.")
	}
	record := controller.Pending()
	if record == nil {
		return
	}
	if record.ActiveSessionsCount != nil && *record.ActiveSessionsCount > 0 {
		fmt.Printf("Active sessions on this account: %d\n", *record.ActiveSessionsCount)
	}
	if deadline := controller.ExpiryDeadline(); deadline != nil {
		fmt.Printf("Code expires in %s.\n", countdown.FormatClock(countdown.Remaining(time.Now(), *deadline)))
	}
}
