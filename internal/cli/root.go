// Package cli implements the crudy command line tool.
package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/mattn/go-isatty"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	client "github.com/peteraglen/crudy-go-client"
	"github.com/peteraglen/crudy-go-client/internal/config"
)

type app struct {
	cfgPath  string
	baseURL  string
	logLevel string
	noRetry  bool

	cfg      *config.Config
	log      zerolog.Logger
	client   *client.Client
	resource *client.Resource[json.RawMessage]
}

// NewRootCommand returns the crudy command tree.
func NewRootCommand(version string) *cobra.Command {
	a := &app{}

	root := &cobra.Command{
		Use:   "crudy",
		Short: "Talk to a crudy envelope backend",
		Long: `crudy calls the CRUD endpoints of a backend that wraps every response in a
{c, m, d} envelope and prints the unwrapped data as JSON.`,
		SilenceUsage:      true,
		SilenceErrors:     true,
		PersistentPreRunE: a.setup,
	}

	root.PersistentFlags().StringVar(&a.cfgPath, "config", "", "YAML config file")
	root.PersistentFlags().StringVar(&a.baseURL, "base-url", "", "resource base URL (overrides CRUDY_BASE_URL)")
	root.PersistentFlags().StringVar(&a.logLevel, "log-level", "", "debug, info, warn or error")
	root.PersistentFlags().BoolVar(&a.noRetry, "no-retry", false, "fail immediately instead of asking to retry")

	root.AddCommand(
		a.getCommand(),
		a.allCommand(),
		a.pageCommand(),
		a.oneCommand(),
		a.countCommand(),
		a.saveCommand(),
		a.deleteCommand(),
		a.uploadCommand(),
		versionCommand(version),
	)

	return root
}

func (a *app) setup(cmd *cobra.Command, _ []string) error {
	_ = godotenv.Load()

	cfg, err := config.Load(a.cfgPath)
	if err != nil {
		return err
	}

	if a.baseURL != "" {
		cfg.BaseURL = a.baseURL
	}
	if a.logLevel != "" {
		cfg.LogLevel = a.logLevel
	}
	if a.noRetry {
		cfg.Retry = false
	}

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid flags: %w", err)
	}

	a.cfg = cfg
	a.log = newLogger(cmd.ErrOrStderr(), cfg)

	opts := []client.Option{
		client.WithTimeout(cfg.Timeout),
		client.WithRequestLogger(client.NewZerologLogger(a.log)),
		client.WithRecovery(recoveryFor(cmd, cfg)),
		client.WithAuthScheme(cfg.AuthScheme),
		client.WithAuthToken(cfg.AuthToken),
	}
	for name, value := range cfg.Headers {
		opts = append(opts, client.WithRequestHeader(name, value))
	}

	c, err := client.New(opts...)
	if err != nil {
		return err
	}

	a.client = c
	a.resource = client.NewResource[json.RawMessage](cfg.BaseURL, c)

	a.log.Debug().Str("base_url", cfg.BaseURL).Bool("retry", cfg.Retry).Msg("client ready")

	return nil
}

func newLogger(w io.Writer, cfg *config.Config) zerolog.Logger {
	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = zerolog.InfoLevel
	}

	w = zerolog.SyncWriter(w)
	if cfg.LogFormat == config.LogFormatConsole {
		w = zerolog.ConsoleWriter{Out: w, TimeFormat: time.RFC3339}
	}

	return zerolog.New(w).Level(level).With().Timestamp().Logger()
}

// recoveryFor asks on the terminal only when someone can answer.
func recoveryFor(cmd *cobra.Command, cfg *config.Config) client.RecoveryStrategy {
	if !cfg.Retry {
		return client.NoRecovery{}
	}

	f, ok := cmd.InOrStdin().(*os.File)
	if !ok || !(isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())) {
		return client.NoRecovery{}
	}

	return &client.PromptRecovery{Prompter: client.NewTerminalPrompter(f, cmd.ErrOrStderr())}
}

// resolve turns a path relative to the base URL into a URL. Absolute URLs are
// returned unchanged.
func (a *app) resolve(path string) (string, error) {
	if strings.HasPrefix(path, "http://") || strings.HasPrefix(path, "https://") {
		return path, nil
	}
	if a.cfg.BaseURL == "" {
		return "", client.ErrBaseURLRequired
	}
	return strings.TrimRight(a.cfg.BaseURL, "/") + "/" + strings.TrimLeft(path, "/"), nil
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
