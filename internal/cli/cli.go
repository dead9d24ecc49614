// Package cli implements the myimpact command tree.
package cli

import (
	"context"
	"fmt"
	"net/http"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/goliatone/go-myimpact/internal/config"
	"github.com/goliatone/go-myimpact/internal/logging"
	"github.com/goliatone/go-myimpact/pkg/form"
	"github.com/goliatone/go-myimpact/pkg/metadata"
	"github.com/goliatone/go-myimpact/pkg/orchestrator"
	"github.com/goliatone/go-myimpact/pkg/prompt"
)

// MetadataFailedMessage is printed when the reference metadata cannot be
// loaded. Nothing else can proceed in that case.
const MetadataFailedMessage = "Failed to load configuration. Please check the API and run the command again."

// Option customises the command tree.
type Option func(*app)

// WithEnvLookup replaces os.LookupEnv when resolving configuration.
func WithEnvLookup(lookup func(string) (string, bool)) Option {
	return func(a *app) {
		if lookup != nil {
			a.lookup = lookup
		}
	}
}

// WithDriver replaces the survey prompt driver used by interactive mode.
func WithDriver(driver prompt.Driver) Option {
	return func(a *app) {
		if driver != nil {
			a.driver = driver
		}
	}
}

// WithHTTPClient sets the HTTP client used by every session.
func WithHTTPClient(client *http.Client) Option {
	return func(a *app) {
		if client != nil {
			a.httpClient = client
		}
	}
}

type app struct {
	lookup     func(string) (string, bool)
	driver     prompt.Driver
	httpClient *http.Client

	configPath string
	envFile    string
	flagEnv    map[string]*string

	cfg    config.Config
	logger *zap.Logger
}

// NewRootCommand builds the myimpact command tree.
func NewRootCommand(opts ...Option) *cobra.Command {
	a := &app{
		lookup:  os.LookupEnv,
		flagEnv: map[string]*string{},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(a)
		}
	}

	root := &cobra.Command{
		Use:   "myimpact",
		Short: "Generate personalised goal prompts from the myimpact API",
		Long: `myimpact talks to the goal generation API.

Pick a scale, a level, a growth intensity, an organization and a goal style,
then receive the goal framework and your customization prompts ready to paste
into an assistant.`,
		SilenceUsage:      true,
		PersistentPreRunE: a.setup,
		PersistentPostRun: func(*cobra.Command, []string) {
			if a.logger != nil {
				_ = a.logger.Sync()
			}
		},
	}

	flags := root.PersistentFlags()
	flags.StringVar(&a.configPath, "config", "", "path to a YAML config file")
	flags.StringVar(&a.envFile, "env-file", config.DefaultEnvFile, "dotenv file read before the environment")
	a.bindEnvFlag(root, "api-url", config.KeyAPIBaseURL, "API base URL")
	a.bindEnvFlag(root, "env", config.KeyEnv, "runtime environment (development, production)")
	a.bindEnvFlag(root, "timeout", config.KeyTimeout, "generate request timeout (duration or milliseconds)")
	a.bindEnvFlag(root, "log-level", config.KeyLogLevel, "log level (debug, info, warn, error)")
	a.bindEnvFlag(root, "log-format", config.KeyLogFormat, "log format (console, json)")

	root.AddCommand(
		a.newGenerateCommand(),
		a.newMetadataCommand(),
		a.newFocusCommand(),
		a.newHealthCommand(),
	)
	return root
}

// Execute runs the command tree with the process arguments.
func Execute(ctx context.Context, opts ...Option) error {
	return NewRootCommand(opts...).ExecuteContext(ctx)
}

// bindEnvFlag registers a flag that, when set, overrides the environment key.
func (a *app) bindEnvFlag(cmd *cobra.Command, name, key, usage string) {
	value := new(string)
	cmd.PersistentFlags().StringVar(value, name, "", usage+" (env "+key+")")
	a.flagEnv[key] = value
}

func (a *app) setup(cmd *cobra.Command, _ []string) error {
	overrides := map[string]string{}
	for key, value := range a.flagEnv {
		if *value != "" {
			overrides[key] = *value
		}
	}
	lookup := func(key string) (string, bool) {
		if v, ok := overrides[key]; ok {
			return v, true
		}
		return a.lookup(key)
	}

	cfg, err := config.Load(config.LoadOptions{
		Path:    a.configPath,
		EnvFile: a.envFile,
		Lookup:  lookup,
	})
	if err != nil {
		return err
	}
	logger, err := logging.New(cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		return err
	}
	a.cfg = cfg
	a.logger = logger.Named("myimpact")
	a.logger.Debug("configuration resolved",
		zap.String("env", cfg.Env),
		zap.String("api_base_url", cfg.APIBaseURL),
		zap.Duration("timeout", cfg.Timeout),
	)
	return nil
}

func (a *app) newSession() *orchestrator.Orchestrator {
	opts := []orchestrator.Option{
		orchestrator.WithBaseURL(a.cfg.APIBaseURL),
		orchestrator.WithLogger(a.logger),
		orchestrator.WithGenerateTimeout(a.cfg.Timeout),
		orchestrator.WithHealthTimeout(a.cfg.HealthTimeout),
		orchestrator.WithMetadataOptions(
			metadata.WithTimeout(a.cfg.MetadataTimeout),
			metadata.WithRetries(a.cfg.MetadataRetries),
		),
		orchestrator.WithFormOptions(
			form.WithDefaults(a.cfg.Defaults.GrowthIntensity, a.cfg.Defaults.GoalStyle),
		),
	}
	if a.httpClient != nil {
		opts = append(opts, orchestrator.WithHTTPClient(a.httpClient))
	}
	return orchestrator.New(opts...)
}

func (a *app) promptDriver() prompt.Driver {
	if a.driver == nil {
		a.driver = prompt.NewSurveyDriver()
	}
	return a.driver
}

// metadataFailure prints the blocking banner for a metadata load error.
func metadataFailure(cmd *cobra.Command, st styles, err error) error {
	fmt.Fprintln(cmd.ErrOrStderr(), st.failure.Render(MetadataFailedMessage))
	return err
}
