// Package cli implements the everytriv command line client.
package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/IsraelRub/EveryTriv-sub000"
	"github.com/IsraelRub/EveryTriv-sub000/internal/config"
	"github.com/IsraelRub/EveryTriv-sub000/tokenstore"
)

// app holds state shared by every command of one invocation.
type app struct {
	configFile string
	tokenFile  string
	baseURL    string
	verbose    bool

	cfg       *config.Config
	log       zerolog.Logger
	logCloser io.Closer
	store     everytriv.TokenStore
	client    *everytriv.Client
	closers   []io.Closer
}

// NewRootCmd returns the root command with every subcommand attached.
func NewRootCmd() *cobra.Command {
	a := &app{}

	root := &cobra.Command{
		Use:   "everytriv [command] [flags]",
		Short: "EveryTriv API client",
		Long: `everytriv sends requests to the EveryTriv API through the resilient
request pipeline: retries with backoff, deduplication, timeouts and
transparent access token refresh.

Examples:
  # Fetch the global leaderboard
  everytriv get /leaderboard/global -q limit=10

  # Submit an answer
  everytriv post /game/answer '{"questionId":"q1","answer":2}'

  # Store tokens obtained from the web app
  everytriv tokens set --access eyJ... --refresh r1`,
		SilenceErrors:      true,
		SilenceUsage:       true,
		PersistentPreRunE:  a.setup,
		PersistentPostRunE: a.teardown,
	}

	flags := root.PersistentFlags()
	flags.StringVar(&a.configFile, "config", "", "Path to configuration file")
	flags.StringVar(&a.tokenFile, "token-file", "", "Token file (overrides auth.token_file)")
	flags.StringVar(&a.baseURL, "base-url", "", "API base URL (overrides base_url)")
	flags.BoolVarP(&a.verbose, "verbose", "v", false, "Enable pipeline debug logging")

	for _, method := range []string{"GET", "POST", "PUT", "PATCH", "DELETE"} {
		root.AddCommand(a.newRequestCmd(method))
	}
	root.AddCommand(a.newTokensCmd())
	root.AddCommand(newVersionCmd())
	return root
}

// Execute runs the CLI and exits non-zero on failure.
func Execute() {
	root := NewRootCmd()
	if err := root.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		if apiErr, ok := everytriv.AsAPIError(err); ok && apiErr.Kind == everytriv.KindSessionExpired {
			fmt.Fprintln(os.Stderr, "Session expired; store new tokens with \"everytriv tokens set\".")
		}
		os.Exit(1)
	}
}

func (a *app) setup(cmd *cobra.Command, _ []string) error {
	if cmd.Name() == "version" {
		return nil
	}

	cfg, err := config.Load(a.configFile)
	if err != nil {
		return err
	}
	if a.baseURL != "" {
		cfg.BaseURL = a.baseURL
	}
	if a.tokenFile != "" {
		cfg.Auth.TokenFile = a.tokenFile
	}
	if cfg.Auth.TokenFile == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return errors.Wrap(err, "cannot locate token file; set auth.token_file")
		}
		cfg.Auth.TokenFile = filepath.Join(home, ".config", "everytriv", "tokens.yaml")
	}
	if a.verbose {
		cfg.Log.Debug = true
	}
	a.cfg = cfg

	a.log, a.logCloser, err = newLogger(cfg.Log, cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	a.store = tokenstore.NewFileStore(cfg.Auth.TokenFile)

	opts := append(cfg.Options(),
		everytriv.WithTokenStore(a.store),
		everytriv.WithLogger(everytriv.NewZerologLogger(a.log)),
	)
	if cfg.Log.Debug {
		opts = append(opts, everytriv.WithDebug())
	}
	if cfg.Transport == "resty" {
		transport := everytriv.NewRestyTransport()
		a.closers = append(a.closers, transport)
		opts = append(opts, everytriv.WithTransport(transport))
	}

	a.client = everytriv.New(opts...)
	if err := a.client.ValidationError(); err != nil {
		return errors.Wrap(err, "invalid client configuration")
	}
	a.log.Debug().Str("baseURL", cfg.BaseURL).Str("tokenFile", cfg.Auth.TokenFile).Msg("Client ready")
	return nil
}

func (a *app) teardown(*cobra.Command, []string) error {
	for _, c := range a.closers {
		_ = c.Close()
	}
	if a.logCloser != nil {
		return a.logCloser.Close()
	}
	return nil
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the client version",
		Run: func(cmd *cobra.Command, _ []string) {
			cmd.Println(everytriv.GetVersion())
		},
	}
}
