// Command ablechat runs the conversational record intake service: it wires
// the store, GenAI client, escalation stack and conversation engine together
// and serves the HTTP API.
package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/wrightalexc-sweepeace/able-ai-sub000/internal/api"
	"github.com/wrightalexc-sweepeace/able-ai-sub000/internal/escalation"
	"github.com/wrightalexc-sweepeace/able-ai-sub000/internal/flow"
	"github.com/wrightalexc-sweepeace/able-ai-sub000/internal/genai"
	"github.com/wrightalexc-sweepeace/able-ai-sub000/internal/store"
	"github.com/wrightalexc-sweepeace/able-ai-sub000/internal/taxonomy"
	"github.com/wrightalexc-sweepeace/able-ai-sub000/internal/templates"
	"github.com/wrightalexc-sweepeace/able-ai-sub000/internal/util"
	"github.com/wrightalexc-sweepeace/able-ai-sub000/internal/validate"
)

// Default configuration constants
const (
	// DefaultStateDir is the default directory for service state data
	DefaultStateDir = "/var/lib/ablechat"
	// DefaultDBFileName is the default SQLite database filename
	DefaultDBFileName = "ablechat.db"
)

func main() {
	initializeLogger()

	config := loadEnvironmentConfig()
	flags := parseCommandLineFlags(config)

	if err := ensureDirectoriesExist(flags); err != nil {
		slog.Error("Failed to create required directories", "error", err)
		os.Exit(1)
	}

	st, err := buildStore(flags)
	if err != nil {
		slog.Error("Failed to initialize store", "error", err)
		os.Exit(1)
	}
	defer st.Close()

	reg, err := templates.Load()
	if err != nil {
		slog.Error("Failed to load interview templates", "error", err)
		os.Exit(1)
	}

	genaiClient := buildGenAIClient(flags)
	var validatorClient genai.ClientInterface
	if genaiClient != nil {
		validatorClient = genaiClient
	}

	validator := validate.NewValidator(validatorClient)
	resolver := taxonomy.NewResolver(validatorClient)
	monitor := escalation.NewMonitor()
	opener := escalation.NewCaseOpener(st, buildNotifier())

	engine := flow.NewEngine(st, reg, validator, resolver, monitor, opener)
	server := api.NewServer(engine, buildAPIOptions(flags)...)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	slog.Info("Bootstrapping intake service", "addr", *flags.apiAddr, "genai_enabled", genaiClient != nil)
	if err := server.Run(ctx); err != nil {
		slog.Error("Intake service failed to run", "error", err)
		os.Exit(1)
	}
	slog.Info("Intake service exited successfully")
}

// Config holds environment configuration
type Config struct {
	DatabaseURL string
	StateDir    string
	OpenAIKey   string
	GenAIModel  string
	APIAddr     string
}

// Flags holds command line flag values
type Flags struct {
	stateDir   *string
	dbDSN      *string
	openaiKey  *string
	genaiModel *string
	apiAddr    *string
}

// initializeLogger sets up structured logging.
func initializeLogger() {
	level := slog.LevelInfo
	if util.ParseBoolEnv("DEBUG", false) {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)
}

// loadEnvironmentConfig loads configuration from environment variables and .env file
func loadEnvironmentConfig() Config {
	if err := godotenv.Load(); err != nil {
		slog.Debug("failed to load .env file", "error", err)
	} else {
		slog.Debug("successfully loaded .env file")
	}

	config := Config{
		DatabaseURL: os.Getenv("DATABASE_URL"),
		StateDir:    os.Getenv("ABLECHAT_STATE_DIR"),
		OpenAIKey:   os.Getenv("OPENAI_API_KEY"),
		GenAIModel:  os.Getenv("GENAI_MODEL"),
		APIAddr:     os.Getenv("API_ADDR"),
	}

	if config.StateDir == "" {
		config.StateDir = DefaultStateDir
		slog.Debug("No ABLECHAT_STATE_DIR set, using default", "default_state_dir", config.StateDir)
	}

	// If no database URL is provided, default to SQLite in the state directory
	if config.DatabaseURL == "" {
		config.DatabaseURL = filepath.Join(config.StateDir, DefaultDBFileName)
		slog.Debug("No database DSN provided, defaulting to SQLite", "sqlite_path", config.DatabaseURL)
	}

	slog.Debug("environment variables loaded",
		"DATABASE_URL_SET", config.DatabaseURL != "",
		"ABLECHAT_STATE_DIR", config.StateDir,
		"OPENAI_API_KEY_SET", config.OpenAIKey != "",
		"GENAI_MODEL", config.GenAIModel,
		"API_ADDR", config.APIAddr)

	return config
}

// parseCommandLineFlags parses command line arguments with environment defaults
func parseCommandLineFlags(config Config) Flags {
	flags := Flags{
		stateDir:   flag.String("state-dir", config.StateDir, "state directory for service data (overrides $ABLECHAT_STATE_DIR)"),
		dbDSN:      flag.String("db-dsn", config.DatabaseURL, "database DSN: SQLite file path or Postgres URL (overrides $DATABASE_URL)"),
		openaiKey:  flag.String("openai-api-key", config.OpenAIKey, "OpenAI API key (overrides $OPENAI_API_KEY)"),
		genaiModel: flag.String("genai-model", config.GenAIModel, "chat model for validation and title fallback (overrides $GENAI_MODEL)"),
		apiAddr:    flag.String("api-addr", config.APIAddr, "API server address (overrides $API_ADDR)"),
	}
	flag.Parse()

	// Follow the state directory when the DSN was only ever defaulted.
	if *flags.dbDSN == filepath.Join(config.StateDir, DefaultDBFileName) && *flags.stateDir != config.StateDir {
		*flags.dbDSN = filepath.Join(*flags.stateDir, DefaultDBFileName)
		slog.Debug("Updated dbDSN based on state directory", "new_state_dir", *flags.stateDir)
	}

	return flags
}

// isPostgresDSN reports whether the DSN targets Postgres rather than a
// SQLite file path.
func isPostgresDSN(dsn string) bool {
	return strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://") || strings.Contains(dsn, "host=")
}

// ensureDirectoriesExist creates necessary directories for file-based storage
func ensureDirectoriesExist(flags Flags) error {
	if !isPostgresDSN(*flags.dbDSN) {
		stateDir := filepath.Dir(*flags.dbDSN)
		slog.Debug("Creating state directory for file-based database", "state_dir", stateDir)
		if err := os.MkdirAll(stateDir, 0755); err != nil {
			return err
		}
	}
	return nil
}

// buildStore selects the storage backend from the DSN.
func buildStore(flags Flags) (store.Store, error) {
	dsn := *flags.dbDSN
	if isPostgresDSN(dsn) {
		slog.Debug("Detected PostgreSQL DSN, configuring PostgreSQL store")
		return store.NewPostgresStore(store.WithDSN(dsn))
	}
	slog.Debug("Detected SQLite DSN, configuring SQLite store", "db_path", dsn)
	return store.NewSQLiteStore(store.WithDSN(dsn))
}

// buildGenAIClient constructs the GenAI client, or nil when no API key is
// configured; the validator and resolver degrade gracefully without it.
func buildGenAIClient(flags Flags) *genai.Client {
	var genaiOpts []genai.Option
	if *flags.openaiKey != "" {
		genaiOpts = append(genaiOpts, genai.WithAPIKey(*flags.openaiKey))
	}
	if *flags.genaiModel != "" {
		genaiOpts = append(genaiOpts, genai.WithModel(*flags.genaiModel))
	}
	genaiOpts = append(genaiOpts, genai.WithTimeout(util.ParseDurationEnv("GENAI_TIMEOUT", genai.DefaultTimeout)))

	client, err := genai.NewClient(genaiOpts...)
	if err != nil {
		slog.Warn("GenAI client unavailable, running with local validation only", "error", err)
		return nil
	}
	return client
}

// buildNotifier constructs the SMS notifier, or nil when Twilio credentials
// are absent; escalations are then recorded without an alert.
func buildNotifier() escalation.Notifier {
	notifier, err := escalation.NewSMSNotifier()
	if err != nil {
		slog.Info("SMS notifications disabled", "reason", err)
		return nil
	}
	return notifier
}

// buildAPIOptions constructs API server configuration options
func buildAPIOptions(flags Flags) []api.Option {
	var apiOpts []api.Option
	if *flags.apiAddr != "" {
		apiOpts = append(apiOpts, api.WithAddr(*flags.apiAddr))
	}
	return apiOpts
}
