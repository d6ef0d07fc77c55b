package command

import (
	"context"
	"net/http"
	"os"
	"time"

	"github.com/kashguard/go-horde-sdk/internal/app"
	"github.com/kashguard/go-horde-sdk/internal/config"
	"github.com/kashguard/go-horde-sdk/internal/util"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

// VerboseFlag is the persistent root flag that forces debug logging.
const VerboseFlag = "verbose"

// NewSubcommandGroup returns a command that only groups subcommands and prints its help when run.
func NewSubcommandGroup(use string, subcommands ...*cobra.Command) *cobra.Command {
	cmd := &cobra.Command{
		Use:   use,
		Short: use + " related subcommands",
		Run: func(cmd *cobra.Command, _ []string) {
			if err := cmd.Help(); err != nil {
				log.Error().Err(err).Msg("Failed to print help")
			}
		},
	}

	cmd.AddCommand(subcommands...)

	return cmd
}

// SetupLogger applies the logger config to the global zerolog logger.
func SetupLogger(cfg config.Logger, verbose bool) {
	level := cfg.Level
	if verbose {
		level = zerolog.DebugLevel
	}
	zerolog.SetGlobalLevel(level)

	if cfg.PrettyPrintConsole {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	} else {
		log.Logger = zerolog.New(os.Stderr).With().Timestamp().Logger()
	}
}

// WithApp initializes an App from cfg, runs f and releases the App afterwards.
func WithApp(ctx context.Context, cfg config.Client, f func(ctx context.Context, a *app.App) error) error {
	a, cleanup, err := app.InitNewApp(cfg)
	if err != nil {
		log.Error().Err(err).Msg("Failed to initialize app")
		return err
	}
	defer cleanup()

	ctx = util.WithLogger(ctx, log.Logger.With().Str("signatory", a.Signer.Signatory()).Logger())

	return f(ctx, a)
}

// LoadConfig reads the client config from the environment and sets up logging for cmd.
func LoadConfig(cmd *cobra.Command) (config.Client, error) {
	cfg, err := config.DefaultClientConfigFromEnv()
	if err != nil {
		return config.Client{}, err
	}

	verbose, err := cmd.Flags().GetBool(VerboseFlag)
	if err != nil {
		verbose = false
	}
	SetupLogger(cfg.Logger, verbose)

	return cfg, nil
}

// ServeMetrics exposes reg on addr under /metrics until ctx is done.
func ServeMetrics(ctx context.Context, addr string, reg prometheus.Gatherer) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))

	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Warn().Err(err).Msg("Failed to shut down metrics server")
		}
	}()

	log.Info().Str("addr", addr).Msg("Serving metrics")
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return errors.Wrap(err, "metrics server failed")
	}
	return nil
}
