package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/canokcuer/wellspring/internal/agents"
	"github.com/canokcuer/wellspring/internal/api"
	"github.com/canokcuer/wellspring/internal/embedding"
	"github.com/canokcuer/wellspring/internal/flow"
	"github.com/canokcuer/wellspring/internal/genai"
	"github.com/canokcuer/wellspring/internal/knowledge"
	"github.com/canokcuer/wellspring/internal/messaging"
	"github.com/canokcuer/wellspring/internal/retrieval"
	"github.com/canokcuer/wellspring/internal/store"
	"github.com/canokcuer/wellspring/internal/util"
)

// Default configuration constants
const (
	// DefaultStateDir is the default directory for Wellspring state data
	DefaultStateDir = "/var/lib/wellspring"
	// DefaultStateDBFileName is the default SQLite database filename for flow state
	DefaultStateDBFileName = "wellspring.db"
	// DefaultKnowledgeDBFileName is the default SQLite database filename for the knowledge corpus
	DefaultKnowledgeDBFileName = "knowledge.db"
)

func main() {
	initializeLogger()

	config := loadEnvironmentConfig()
	flags := parseCommandLineFlags(config)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, flags); err != nil {
		slog.Error("Wellspring failed to run", "error", err)
		os.Exit(1)
	}
	slog.Info("Wellspring exited successfully")
}

// Config holds environment configuration
type Config struct {
	DatabaseURL   string
	StateDir      string
	OpenAIKey     string
	APIAddr       string
	KnowledgeDir  string
	TwilioSID     string
	TwilioToken   string
	TwilioFrom    string
	ChunkSize     int
	ChunkOverlap  int
	ChatTimeout   time.Duration
	EmbedTimeout  time.Duration
	LearningRate  float64
	IngestOnStart bool
}

// Flags holds command line flag values
type Flags struct {
	stateDir     *string
	dbDSN        *string
	openaiKey    *string
	apiAddr      *string
	knowledgeDir *string
	chunkSize    *int
	chunkOverlap *int
	config       Config
}

// initializeLogger sets up structured logging with debug level
func initializeLogger() {
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}))
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
		DatabaseURL:   os.Getenv("DATABASE_URL"),
		StateDir:      os.Getenv("WELLSPRING_STATE_DIR"),
		OpenAIKey:     os.Getenv("OPENAI_API_KEY"),
		APIAddr:       os.Getenv("API_ADDR"),
		KnowledgeDir:  os.Getenv("KNOWLEDGE_DIR"),
		TwilioSID:     os.Getenv("TWILIO_ACCOUNT_SID"),
		TwilioToken:   os.Getenv("TWILIO_AUTH_TOKEN"),
		TwilioFrom:    os.Getenv("TWILIO_FROM_NUMBER"),
		ChunkSize:     util.ParseIntEnv("CHUNK_TARGET_SIZE", knowledge.DefaultChunkTargetSize),
		ChunkOverlap:  util.ParseIntEnv("CHUNK_OVERLAP", knowledge.DefaultChunkOverlap),
		ChatTimeout:   util.ParseDurationEnv("OPENAI_CHAT_TIMEOUT", genai.DefaultChatTimeout),
		EmbedTimeout:  util.ParseDurationEnv("EMBEDDING_TIMEOUT", embedding.DefaultEmbeddingTimeout),
		LearningRate:  util.ParseFloatEnv("SIGNAL_LEARNING_RATE", knowledge.DefaultSignalConfig().LearningRate),
		IngestOnStart: util.ParseBoolEnv("INGEST_ON_START", true),
	}

	if config.StateDir == "" {
		config.StateDir = DefaultStateDir
		slog.Debug("No WELLSPRING_STATE_DIR set, using default", "default_state_dir", config.StateDir)
	}

	slog.Debug("environment variables loaded",
		"DATABASE_URL_SET", config.DatabaseURL != "",
		"WELLSPRING_STATE_DIR", config.StateDir,
		"OPENAI_API_KEY_SET", config.OpenAIKey != "",
		"API_ADDR", config.APIAddr,
		"KNOWLEDGE_DIR", config.KnowledgeDir,
		"TWILIO_SET", config.TwilioSID != "")

	return config
}

// parseCommandLineFlags parses command line arguments with environment defaults
func parseCommandLineFlags(config Config) Flags {
	flags := Flags{
		stateDir:     flag.String("state-dir", config.StateDir, "state directory for Wellspring data (overrides $WELLSPRING_STATE_DIR)"),
		dbDSN:        flag.String("db-dsn", config.DatabaseURL, "database DSN for flow state and knowledge corpus (overrides $DATABASE_URL)"),
		openaiKey:    flag.String("openai-api-key", config.OpenAIKey, "OpenAI API key (overrides $OPENAI_API_KEY)"),
		apiAddr:      flag.String("api-addr", config.APIAddr, "API server address (overrides $API_ADDR)"),
		knowledgeDir: flag.String("knowledge-dir", config.KnowledgeDir, "directory of corpus documents to ingest at startup (overrides $KNOWLEDGE_DIR)"),
		chunkSize:    flag.Int("chunk-size", config.ChunkSize, "chunk target size in characters (overrides $CHUNK_TARGET_SIZE)"),
		chunkOverlap: flag.Int("chunk-overlap", config.ChunkOverlap, "chunk overlap in characters (overrides $CHUNK_OVERLAP)"),
		config:       config,
	}

	flag.Parse()

	slog.Debug("flags parsed",
		"stateDir", *flags.stateDir,
		"dbDSN_set", *flags.dbDSN != "",
		"openaiKeySet", *flags.openaiKey != "",
		"apiAddr", *flags.apiAddr,
		"knowledgeDir", *flags.knowledgeDir,
		"chunkSize", *flags.chunkSize,
		"chunkOverlap", *flags.chunkOverlap)

	return flags
}

// run wires the modules together and serves the API until the context ends.
func run(ctx context.Context, flags Flags) error {
	// Flow state store. A Postgres DSN uses one database for everything;
	// otherwise SQLite files under the state directory.
	flowStore, knowledgeStore, err := openStores(flags)
	if err != nil {
		return err
	}
	defer flowStore.Close()
	defer knowledgeStore.Close()

	genaiClient, err := genai.NewClient(
		genai.WithAPIKey(*flags.openaiKey),
		genai.WithTimeout(flags.config.ChatTimeout),
	)
	if err != nil {
		return err
	}
	embedder, err := embedding.NewOpenAIEmbedder(
		embedding.WithAPIKey(*flags.openaiKey),
		embedding.WithTimeout(flags.config.EmbedTimeout),
	)
	if err != nil {
		return err
	}

	engine := retrieval.NewEngine(knowledgeStore, embedder)
	ingestor := knowledge.NewIngestor(knowledgeStore, embedder, *flags.chunkSize, *flags.chunkOverlap)
	signalConfig := knowledge.DefaultSignalConfig()
	signalConfig.LearningRate = flags.config.LearningRate
	signals := knowledge.NewUpdater(knowledgeStore, signalConfig)

	if *flags.knowledgeDir != "" && flags.config.IngestOnStart {
		count, err := ingestor.IngestDirectory(ctx, *flags.knowledgeDir)
		if err != nil {
			// A partial corpus still serves; retrieval degrades, it doesn't block.
			slog.Warn("Startup corpus ingestion incomplete", "error", err, "ingested", count)
		} else {
			slog.Info("Startup corpus ingested", "chunks", count)
		}
	}

	stateManager := flow.NewStoreBasedStateManager(flowStore)
	orchestrator := flow.NewOrchestrator(
		stateManager,
		genaiClient,
		agents.NewWellnessAdvisor(genaiClient, engine),
		agents.NewStoryteller(genaiClient),
		agents.NewFeedbackAnalyzer(genaiClient),
		signals,
	)

	var twilioService *messaging.TwilioService
	if flags.config.TwilioSID != "" && flags.config.TwilioToken != "" && flags.config.TwilioFrom != "" {
		twilioClient, err := messaging.NewClient(
			messaging.WithAccountSID(flags.config.TwilioSID),
			messaging.WithAuthToken(flags.config.TwilioToken),
			messaging.WithFromWhats(flags.config.TwilioFrom),
		)
		if err != nil {
			return err
		}
		twilioService = messaging.NewTwilioService(twilioClient)
		slog.Info("Twilio WhatsApp channel enabled")
	} else {
		slog.Info("Twilio not configured, WhatsApp channel disabled")
	}

	var apiOpts []api.Option
	if *flags.apiAddr != "" {
		apiOpts = append(apiOpts, api.WithAddr(*flags.apiAddr))
	}
	server := api.NewServer(orchestrator, ingestor, engine, twilioService, apiOpts...)

	slog.Info("Bootstrapping Wellspring with configured modules")
	return server.Run(ctx)
}

// openStores creates the flow state and knowledge stores for the configured
// DSN, defaulting to SQLite files under the state directory.
func openStores(flags Flags) (store.Store, knowledge.Store, error) {
	dsn := *flags.dbDSN
	if dsn != "" && store.IsPostgresDSN(dsn) {
		slog.Debug("Detected PostgreSQL DSN, configuring PostgreSQL stores")
		flowStore, err := store.NewPostgresStore(store.WithDSN(dsn))
		if err != nil {
			return nil, nil, err
		}
		knowledgeStore, err := knowledge.NewPostgresStore(knowledge.WithDSN(dsn))
		if err != nil {
			flowStore.Close()
			return nil, nil, err
		}
		return flowStore, knowledgeStore, nil
	}

	stateDSN := dsn
	if stateDSN == "" {
		stateDSN = filepath.Join(*flags.stateDir, DefaultStateDBFileName)
		slog.Debug("No database DSN provided, defaulting to SQLite", "sqlite_path", stateDSN)
	}
	flowStore, err := store.NewSQLiteStore(store.WithDSN(stateDSN))
	if err != nil {
		return nil, nil, err
	}
	knowledgeStore, err := knowledge.NewSQLiteStore(knowledge.WithDSN(filepath.Join(filepath.Dir(stateDSN), DefaultKnowledgeDBFileName)))
	if err != nil {
		flowStore.Close()
		return nil, nil, err
	}
	return flowStore, knowledgeStore, nil
}
