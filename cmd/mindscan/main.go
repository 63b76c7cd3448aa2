package main

import (
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"
	"github.com/mdp/qrterminal/v3"
	"github.com/mindscan-ai/mindscan/internal/api"
	"github.com/mindscan-ai/mindscan/internal/flow"
	"github.com/mindscan-ai/mindscan/internal/genai"
	"github.com/mindscan-ai/mindscan/internal/lockfile"
	"github.com/mindscan-ai/mindscan/internal/share"
	"github.com/mindscan-ai/mindscan/internal/store"
	"github.com/mindscan-ai/mindscan/internal/util"
)

// Default configuration constants
const (
	// DefaultStateDir is the default directory for Mind Scan state data
	DefaultStateDir = "/var/lib/mindscan"
	// DefaultDBFileName is the SQLite database filename used when a DSN
	// points at the state directory
	DefaultDBFileName = "mindscan.db"
)

func main() {
	initializeLogger()

	config := loadEnvironmentConfig()
	flags := parseCommandLineFlags(config)

	if err := ensureDirectoriesExist(flags); err != nil {
		slog.Error("Failed to create required directories", "error", err)
		os.Exit(1)
	}

	// A file-backed store means a state directory that only one process may
	// own at a time.
	if *flags.dbDSN != "" && store.DetectDSNType(*flags.dbDSN) == "sqlite" {
		lock, err := lockfile.AcquireLock(filepath.Dir(*flags.dbDSN))
		if err != nil {
			slog.Error("Failed to lock state directory", "error", err)
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
		defer lock.Release()
	}

	st, err := buildStore(flags)
	if err != nil {
		slog.Error("Failed to initialize session store", "error", err)
		os.Exit(1)
	}
	defer st.Close()

	gateway := genai.Default(buildGenAIOptions(flags)...)
	if gateway.Disabled() {
		slog.Warn("No Gemini API key configured; generation endpoints will report the gateway as unavailable")
	}

	renderer := share.NewCardRenderer(buildShareOptions(flags)...)
	f := flow.NewFlow(st, flow.NewGatewayGenerator(gateway))
	server := api.NewServer(f, renderer, buildAPIOptions(flags)...)

	if *flags.qrOutput != "" {
		if err := writeServiceQR(*flags.qrOutput, *flags.serviceURL); err != nil {
			slog.Error("Failed to write service QR code", "error", err)
			os.Exit(1)
		}
	}

	slog.Info("Bootstrapping Mind Scan with configured modules")
	slog.Debug("Final configuration", "api_addr", *flags.apiAddr, "dsn_set", *flags.dbDSN != "", "service_url", *flags.serviceURL)
	if err := server.Run(); err != nil {
		slog.Error("Mind Scan failed to run", "error", err)
		os.Exit(1)
	}
	slog.Info("Mind Scan exited successfully")
}

// Config holds environment configuration
type Config struct {
	GeminiKey   string
	BaseURL     string
	ModelPrefs  []string
	ServiceURL  string
	DatabaseDSN string
	StateDir    string
	APIAddr     string
	FontPath    string
}

// Flags holds command line flag values
type Flags struct {
	qrOutput   *string
	stateDir   *string
	dbDSN      *string
	geminiKey  *string
	baseURL    *string
	serviceURL *string
	apiAddr    *string
	fontPath   *string
	modelPrefs []string
}

// initializeLogger sets up structured logging; debug level is opt-in via
// MINDSCAN_DEBUG.
func initializeLogger() {
	level := slog.LevelInfo
	if util.ParseBoolEnv("MINDSCAN_DEBUG", false) {
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
		GeminiKey:   os.Getenv("GEMINI_API_KEY"),
		BaseURL:     os.Getenv("GEMINI_BASE_URL"),
		ModelPrefs:  util.ParseListEnv("MODEL_PREFERENCES", nil),
		ServiceURL:  os.Getenv("SERVICE_URL"),
		DatabaseDSN: os.Getenv("MINDSCAN_DB_DSN"),
		StateDir:    os.Getenv("MINDSCAN_STATE_DIR"),
		APIAddr:     os.Getenv("API_ADDR"),
		FontPath:    os.Getenv("SHARECARD_FONT"),
	}

	if config.StateDir == "" {
		config.StateDir = DefaultStateDir
		slog.Debug("No MINDSCAN_STATE_DIR set, using default", "default_state_dir", config.StateDir)
	}
	if config.ServiceURL == "" {
		config.ServiceURL = api.DefaultServiceURL
	}

	slog.Debug("environment variables loaded",
		"GEMINI_API_KEY_SET", config.GeminiKey != "",
		"GEMINI_BASE_URL", config.BaseURL,
		"MODEL_PREFERENCES", config.ModelPrefs,
		"SERVICE_URL", config.ServiceURL,
		"MINDSCAN_DB_DSN_SET", config.DatabaseDSN != "",
		"MINDSCAN_STATE_DIR", config.StateDir,
		"API_ADDR", config.APIAddr,
		"SHARECARD_FONT", config.FontPath)

	return config
}

// parseCommandLineFlags parses command line arguments with environment defaults
func parseCommandLineFlags(config Config) Flags {
	flags := Flags{
		qrOutput:   flag.String("qr-output", "", "write the service-URL QR code to this path ('-' for stdout)"),
		stateDir:   flag.String("state-dir", config.StateDir, "state directory for Mind Scan data (overrides $MINDSCAN_STATE_DIR)"),
		dbDSN:      flag.String("db-dsn", config.DatabaseDSN, "session database DSN; empty keeps sessions in memory (overrides $MINDSCAN_DB_DSN)"),
		geminiKey:  flag.String("gemini-api-key", config.GeminiKey, "Gemini API key (overrides $GEMINI_API_KEY)"),
		baseURL:    flag.String("gemini-base-url", config.BaseURL, "generative-language API base URL (overrides $GEMINI_BASE_URL)"),
		serviceURL: flag.String("service-url", config.ServiceURL, "public service URL for share QR codes (overrides $SERVICE_URL)"),
		apiAddr:    flag.String("api-addr", config.APIAddr, "API server address (overrides $API_ADDR)"),
		fontPath:   flag.String("sharecard-font", config.FontPath, "TTF font for share cards (overrides $SHARECARD_FONT)"),
		modelPrefs: config.ModelPrefs,
	}

	flag.Parse()

	slog.Debug("flags parsed",
		"qrOutput", *flags.qrOutput,
		"stateDir", *flags.stateDir,
		"dbDSN_set", *flags.dbDSN != "",
		"geminiKeySet", *flags.geminiKey != "",
		"baseURL", *flags.baseURL,
		"serviceURL", *flags.serviceURL,
		"apiAddr", *flags.apiAddr,
		"fontPath", *flags.fontPath)

	return flags
}

// ensureDirectoriesExist creates the state directory when a file-based DSN
// needs it.
func ensureDirectoriesExist(flags Flags) error {
	if *flags.dbDSN == "" || store.DetectDSNType(*flags.dbDSN) != "sqlite" {
		return nil
	}
	stateDir := filepath.Dir(*flags.dbDSN)
	slog.Debug("Creating state directory for file-based database", "state_dir", stateDir)
	if err := os.MkdirAll(stateDir, 0755); err != nil {
		slog.Error("Failed to create state directory", "error", err, "state_dir", stateDir)
		return err
	}
	return nil
}

// buildStore selects the session store backend from the DSN shape; no DSN
// means in-memory.
func buildStore(flags Flags) (store.Store, error) {
	if *flags.dbDSN == "" {
		slog.Debug("No database DSN provided, using in-memory session store")
		return store.NewInMemoryStore(), nil
	}
	if store.DetectDSNType(*flags.dbDSN) == "postgres" {
		slog.Debug("Detected PostgreSQL DSN, configuring PostgreSQL store", "dsn_set", true)
		return store.NewPostgresStore(store.WithPostgresDSN(*flags.dbDSN))
	}
	slog.Debug("Detected SQLite DSN, configuring SQLite store", "db_path", *flags.dbDSN)
	return store.NewSQLiteStore(store.WithSQLiteDSN(*flags.dbDSN))
}

// buildGenAIOptions constructs gateway configuration options
func buildGenAIOptions(flags Flags) []genai.Option {
	var opts []genai.Option
	if *flags.geminiKey != "" {
		opts = append(opts, genai.WithAPIKey(*flags.geminiKey))
	}
	if *flags.baseURL != "" {
		opts = append(opts, genai.WithBaseURL(*flags.baseURL))
	}
	if len(flags.modelPrefs) > 0 {
		opts = append(opts, genai.WithModelPreferences(flags.modelPrefs))
	}
	return opts
}

// buildShareOptions constructs card renderer configuration options
func buildShareOptions(flags Flags) []share.Option {
	var opts []share.Option
	if *flags.fontPath != "" {
		opts = append(opts, share.WithFontPath(*flags.fontPath))
	}
	return opts
}

// buildAPIOptions constructs API server configuration options
func buildAPIOptions(flags Flags) []api.Option {
	var opts []api.Option
	if *flags.apiAddr != "" {
		opts = append(opts, api.WithAddr(*flags.apiAddr))
	}
	if *flags.serviceURL != "" {
		opts = append(opts, api.WithServiceURL(*flags.serviceURL))
	}
	return opts
}

// writeServiceQR renders the service URL as terminal QR art, to stdout or a
// file.
func writeServiceQR(path, serviceURL string) error {
	writer := io.Writer(os.Stdout)
	if path != "-" {
		f, err := os.Create(path)
		if err != nil {
			return fmt.Errorf("failed to create QR file: %w", err)
		}
		defer f.Close()
		writer = f
	}
	qrterminal.GenerateHalfBlock(serviceURL, qrterminal.L, writer)
	slog.Info("Service QR code written", "url", serviceURL, "output", path)
	return nil
}
