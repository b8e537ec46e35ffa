package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"spec-extractor/internal/config"
	"spec-extractor/internal/db"
	"spec-extractor/internal/embedding"
	"spec-extractor/internal/extractor"
	"spec-extractor/internal/helper"
	"spec-extractor/internal/llmservice"
	"spec-extractor/internal/models"
	"spec-extractor/internal/rag"
)

const (
	configFilePath = "./configs/config.yaml"
	stdinName      = "stdin.pdf"
)

func main() {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	zerolog.SetGlobalLevel(zerolog.DebugLevel)
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}).With().Caller().Logger()

	configPath := flag.String("config", configFilePath, "Path to the YAML config file")
	filePath := flag.String("file", "", "Path to the service manual PDF (- reads stdin)")
	query := flag.String("query", "", "Specification query, e.g. \"Torque for brake caliper bolts\"")
	topK := flag.Int("k", 0, "Number of chunks to retrieve (1-20)")
	provider := flag.String("provider", "", "Embedding provider: local or remote")
	retrievalOnly := flag.Bool("retrieval-only", false, "Return retrieved chunks without LLM extraction")
	exportPath := flag.String("export", "", "Save the knowledge base to this file")
	importPath := flag.String("import", "", "Load a knowledge base saved with -export")
	save := flag.Bool("save", false, "Archive extracted records in the configured database")
	history := flag.Bool("history", false, "Print archived records and exit")
	resetHistory := flag.Bool("history-reset", false, "Delete all archived records and exit")
	flag.Parse()

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		log.Fatal().Err(err).Msg("Error loading config")
	}
	cfg.SetEmbeddingProvider(*provider)
	if *retrievalOnly {
		cfg.Retrieval.RetrievalOnly = true
	}
	if err := cfg.Validate(); err != nil {
		log.Fatal().Err(err).Msg("Invalid config")
	}
	if level, err := zerolog.ParseLevel(cfg.Log.Level); err == nil {
		zerolog.SetGlobalLevel(level)
	}

	ctx := context.Background()

	switch {
	case *resetHistory:
		if err := resetArchive(ctx, cfg); err != nil {
			log.Fatal().Err(err).Msg("Error resetting archived records")
		}
		return
	case *history:
		if err := printHistory(ctx, cfg, *filePath); err != nil {
			log.Fatal().Err(err).Msg("Error reading archived records")
		}
		return
	}

	if *filePath == "" && *importPath == "" {
		flag.Usage()
		log.Fatal().Msg("Please provide a document with -file or a saved knowledge base with -import")
	}

	session, err := newSession(cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("Error creating session")
	}

	response, err := run(ctx, session, options{
		filePath:   *filePath,
		importPath: *importPath,
		exportPath: *exportPath,
		query:      *query,
		topK:       *topK,
		stdin:      os.Stdin,
		out:        os.Stdout,
	})
	if closeErr := session.Close(); closeErr != nil {
		log.Warn().Err(closeErr).Msg("Error closing session")
	}
	if err != nil {
		log.Fatal().Err(err).Msg("Error running query")
	}
	if *save && response != nil && !response.RetrievalOnly {
		archive(ctx, cfg, session.ID, response)
	}
}

// newSession wires the embedder and, when a key is available, the extractor.
func newSession(cfg *config.Config) (*rag.Session, error) {
	embedder, err := embedding.New(cfg.Embedding)
	if err != nil {
		return nil, err
	}

	var ext *extractor.Extractor
	if !cfg.Retrieval.RetrievalOnly {
		llm, err := llmservice.NewChatModel(cfg.Extraction)
		var cfgErr *models.ConfigError
		switch {
		case errors.As(err, &cfgErr):
			log.Warn().Err(err).Msg("No extraction credentials, falling back to retrieval only")
		case err != nil:
			return nil, err
		default:
			ext = extractor.New(llm)
		}
	}
	return rag.NewSession(cfg, embedder, ext)
}

type options struct {
	filePath   string
	importPath string
	exportPath string
	query      string
	topK       int

	stdin io.Reader
	out   io.Writer
}

// run loads or builds the knowledge base, optionally exports it and answers
// the query. The response is nil when no query was given.
func run(ctx context.Context, session *rag.Session, opts options) (*models.QueryResponse, error) {
	if opts.importPath != "" {
		if err := session.Import(ctx, opts.importPath); err != nil {
			return nil, fmt.Errorf("import knowledge base: %w", err)
		}
	}

	if opts.filePath != "" {
		var stats models.BuildStats
		var err error
		if opts.filePath == "-" {
			stats, err = session.BuildFromReader(ctx, stdinName, opts.stdin)
		} else {
			stats, err = session.BuildKnowledgeBase(ctx, opts.filePath)
		}
		if err != nil {
			return nil, fmt.Errorf("process file: %w", err)
		}
		log.Info().Interface("stats", stats).Msg("Knowledge base built")
	}

	if opts.exportPath != "" {
		if err := session.Export(opts.exportPath); err != nil {
			return nil, fmt.Errorf("export knowledge base: %w", err)
		}
		log.Info().Str("file", opts.exportPath).Msg("Knowledge base exported")
	}

	if opts.query == "" {
		return nil, nil
	}

	response, err := session.Query(ctx, opts.query, opts.topK)
	if err != nil {
		return nil, err
	}
	printResponse(opts.out, response)
	return response, nil
}

func printResponse(w io.Writer, response *models.QueryResponse) {
	log.Info().Msg("Query: ~~~~~~~~~~~~~~~~~~~~~~~~~>>>>>")
	fmt.Fprintf(w, "%s\n\n", response.Query)

	log.Info().Msg("Source: ~~~~~~~~~~~~~~~~~~~~~~~~~>>>>>")
	fmt.Fprintf(w, "%s\n\n", response.Source)

	if response.RetrievalOnly {
		log.Info().Msgf("Top %d Retrieved Chunks: ~~~~~~~~~~~~~~~~~~~~~~~~~>>>>>", len(response.Chunks))
		for i, c := range response.Chunks {
			fmt.Fprintf(w, "Chunk %d (Page %d, similarity %.3f)\n%s\nSource: %s\n\n",
				i+1, c.Metadata.PageNumber, c.Similarity, c.Text, c.Metadata.Source)
		}
		return
	}

	for i, c := range response.Chunks {
		log.Debug().Int("chunk", i+1).Int("page", c.Metadata.PageNumber).Float32("similarity", c.Similarity).Msg(c.Text)
	}

	log.Info().Msg("Extraction Results: ~~~~~~~~~~~~~~~~~~~~~~~~~>>>>>")
	if len(response.Records) == 0 {
		log.Info().Msg("No specifications found.")
	}
	helper.PrettyPrint(w, response.Records)
}

func archive(ctx context.Context, cfg *config.Config, sessionID string, response *models.QueryResponse) {
	sqldb, err := db.ConnectDB(&cfg.Database)
	if err != nil {
		log.Error().Err(err).Msg("Error connecting to database")
		return
	}
	dbInstance := db.NewDB(sqldb, cfg.Database.Debug)
	defer dbInstance.Close()

	if err := db.InitDB(ctx, dbInstance); err != nil {
		log.Error().Err(err).Msg("Error initializing database")
		return
	}
	n, err := db.StoreRecords(ctx, dbInstance, sessionID, response)
	if err != nil {
		log.Error().Err(err).Msg("Error storing records")
		return
	}
	log.Info().Int("records", n).Msg("Archived records")
}

func printHistory(ctx context.Context, cfg *config.Config, sourceFile string) error {
	sqldb, err := db.ConnectDB(&cfg.Database)
	if err != nil {
		return err
	}
	dbInstance := db.NewDB(sqldb, cfg.Database.Debug)
	defer dbInstance.Close()

	rows, err := db.ListRecords(ctx, dbInstance, sourceFile, 100)
	if err != nil {
		return err
	}
	helper.PrettyPrint(os.Stdout, db.ToModels(rows))
	return nil
}

func resetArchive(ctx context.Context, cfg *config.Config) error {
	sqldb, err := db.ConnectDB(&cfg.Database)
	if err != nil {
		return err
	}
	dbInstance := db.NewDB(sqldb, cfg.Database.Debug)
	defer dbInstance.Close()

	if err := db.DropRecords(ctx, dbInstance); err != nil {
		return err
	}
	log.Info().Msg("Archived records deleted")
	return nil
}
