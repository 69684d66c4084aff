package main

import (
	"fmt"
	"io"
	"net/http"
	"os"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/schoolhealth/nurse-console/internal/config"
	"github.com/schoolhealth/nurse-console/internal/console"
	"github.com/schoolhealth/nurse-console/internal/domain/inventory"
	"github.com/schoolhealth/nurse-console/internal/domain/medrequest"
	"github.com/schoolhealth/nurse-console/internal/domain/vaccination"
	"github.com/schoolhealth/nurse-console/internal/platform/gateway"
)

func main() {
	if err := newRootCmd(os.Stdin, os.Stdout, os.Stderr).Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

// app carries the state shared by every subcommand once the root has
// loaded configuration.
type app struct {
	in     io.Reader
	out    io.Writer
	errOut io.Writer

	cfg    *config.Config
	logger zerolog.Logger

	gatewayURL string
	token      string
	jsonOut    bool
	verbose    bool
}

func newRootCmd(in io.Reader, out, errOut io.Writer) *cobra.Command {
	a := &app{in: in, out: &syncWriter{w: out}, errOut: errOut}

	root := &cobra.Command{
		Use:           "nurse-console",
		Short:         "School medical office console",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.setup()
		},
	}
	root.SetIn(in)
	root.SetOut(out)
	root.SetErr(errOut)

	flags := root.PersistentFlags()
	flags.StringVar(&a.gatewayURL, "gateway-url", "", "backend base URL (overrides GATEWAY_URL)")
	flags.StringVar(&a.token, "token", "", "bearer token (overrides API_TOKEN)")
	flags.BoolVar(&a.jsonOut, "json", false, "print records as JSON")
	flags.BoolVarP(&a.verbose, "verbose", "v", false, "log at debug level")

	root.AddCommand(sandboxCmd(a))
	root.AddCommand(resourceCmd(a, inventoryResource()))
	root.AddCommand(resourceCmd(a, requestResource()))
	root.AddCommand(resourceCmd(a, sessionResource()))
	return root
}

func (a *app) setup() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if a.gatewayURL != "" {
		cfg.GatewayURL = a.gatewayURL
	}
	if a.token != "" {
		cfg.APIToken = a.token
	}

	logger := zerolog.New(a.errOut).With().Timestamp().Logger()
	if cfg.IsDev() {
		logger = zerolog.New(zerolog.ConsoleWriter{Out: a.errOut}).With().Timestamp().Logger()
	}
	level := zerolog.WarnLevel
	if a.verbose {
		level = zerolog.DebugLevel
	}
	a.logger = logger.Level(level)

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	a.cfg = cfg
	return nil
}

// alerter prints alerts to the terminal and mirrors them to the log.
// Errors reach the terminal as the command's returned error instead.
func (a *app) alerter() console.Alerter {
	return console.MultiAlerter(
		console.AlerterFunc(func(kind console.AlertKind, title, message string) {
			if kind != console.AlertError {
				fmt.Fprintln(a.out, message)
			}
		}),
		console.LogAlerter(a.logger),
	)
}

func (a *app) gatewayOptions() []gateway.Option {
	opts := []gateway.Option{
		gateway.WithHTTPClient(&http.Client{Timeout: a.cfg.RequestTimeout}),
		gateway.WithLogger(a.logger),
	}
	if a.cfg.APIToken != "" {
		opts = append(opts, gateway.WithToken(a.cfg.APIToken))
	}
	if a.cfg.GatewayRPS > 0 {
		opts = append(opts, gateway.WithRateLimit(a.cfg.GatewayRPS, int(a.cfg.GatewayRPS)+1))
	}
	return opts
}

func (a *app) thresholds() inventory.Thresholds {
	return inventory.Thresholds{LowStock: a.cfg.LowStockThreshold, ExpiryWarning: a.cfg.ExpiryWarning()}
}

var (
	_ console.Record[inventory.Item]      = inventory.Item{}
	_ console.Record[medrequest.Request]  = medrequest.Request{}
	_ console.Record[vaccination.Session] = vaccination.Session{}
)
