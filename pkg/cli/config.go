package cli

import (
	"context"

	"github.com/futureready/retain/pkg/adapter"
	"github.com/futureready/retain/pkg/agent"
	"github.com/futureready/retain/pkg/index"
	"github.com/futureready/retain/pkg/store"
	"github.com/futureready/retain/pkg/usecase/ingest"
	"github.com/futureready/retain/pkg/usecase/search"
	"github.com/m-mizutani/goerr/v2"
	"github.com/urfave/cli/v3"
)

// config holds configuration values
type config struct {
	// Store
	dataDir string
	bucket  string

	// Indexes
	firestoreProject  string
	firestoreDatabase string
	neo4jURI          string
	neo4jUser         string
	neo4jPassword     string

	// Adapters
	geminiProject  string
	geminiLocation string

	// Resolver
	weightsPath string
}

// storeFlags returns flags for the document store with destination config
func storeFlags(cfg *config) []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "data-dir",
			Aliases:     []string{"d"},
			Usage:       "Directory of the local version log",
			Value:       "./retain-data",
			Sources:     cli.EnvVars("RETAIN_DATA_DIR"),
			Destination: &cfg.dataDir,
		},
		&cli.StringFlag{
			Name:        "bucket",
			Usage:       "Cloud Storage bucket for document bodies (optional)",
			Sources:     cli.EnvVars("RETAIN_BUCKET"),
			Destination: &cfg.bucket,
		},
	}
}

// indexFlags returns flags for the semantic and graph index backends
func indexFlags(cfg *config) []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "firestore-project",
			Usage:       "Google Cloud project ID of the semantic index",
			Sources:     cli.EnvVars("RETAIN_FIRESTORE_PROJECT", "GOOGLE_CLOUD_PROJECT"),
			Destination: &cfg.firestoreProject,
		},
		&cli.StringFlag{
			Name:        "firestore-database",
			Usage:       "Firestore database ID",
			Value:       "(default)",
			Sources:     cli.EnvVars("RETAIN_FIRESTORE_DATABASE"),
			Destination: &cfg.firestoreDatabase,
		},
		&cli.StringFlag{
			Name:        "neo4j-uri",
			Usage:       "Bolt URI of the graph index (optional)",
			Sources:     cli.EnvVars("RETAIN_NEO4J_URI"),
			Destination: &cfg.neo4jURI,
		},
		&cli.StringFlag{
			Name:        "neo4j-user",
			Usage:       "Graph index username",
			Value:       "neo4j",
			Sources:     cli.EnvVars("RETAIN_NEO4J_USER"),
			Destination: &cfg.neo4jUser,
		},
		&cli.StringFlag{
			Name:        "neo4j-password",
			Usage:       "Graph index password",
			Sources:     cli.EnvVars("RETAIN_NEO4J_PASSWORD"),
			Destination: &cfg.neo4jPassword,
		},
	}
}

// llmFlags returns flags for LLM-related configuration with destination config
func llmFlags(cfg *config) []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "gemini-project",
			Usage:       "Google Cloud project ID for Gemini",
			Sources:     cli.EnvVars("GEMINI_PROJECT_ID"),
			Destination: &cfg.geminiProject,
		},
		&cli.StringFlag{
			Name:        "gemini-location",
			Usage:       "Google Cloud location for Gemini",
			Value:       "us-central1",
			Sources:     cli.EnvVars("GEMINI_LOCATION"),
			Destination: &cfg.geminiLocation,
		},
	}
}

// searchFlags returns flags for query resolution
func searchFlags(cfg *config) []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "weights",
			Usage:       "Path to a YAML scoring weights file (optional)",
			Sources:     cli.EnvVars("RETAIN_WEIGHTS"),
			Destination: &cfg.weightsPath,
		},
	}
}

// newStore opens the durable document store.
func (cfg *config) newStore(ctx context.Context) (*store.Store, error) {
	if cfg.dataDir == "" {
		return nil, goerr.New("data-dir is required")
	}

	log, err := store.OpenBadgerLog(cfg.dataDir)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to open version log")
	}

	opts := []store.Option{store.WithLog(log)}
	if cfg.bucket != "" {
		blobs, err := adapter.NewCloudStorage(ctx, cfg.bucket)
		if err != nil {
			return nil, err
		}
		opts = append(opts, store.WithBlobs(blobs))
	}

	s, err := store.New(ctx, opts...)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to open document store")
	}
	return s, nil
}

// newGemini creates the Gemini adapter. Returns nil when no project is
// configured; callers that require generation must check.
func (cfg *config) newGemini(ctx context.Context) (*adapter.GeminiClient, error) {
	if cfg.geminiProject == "" {
		return nil, nil
	}
	return adapter.NewGemini(ctx, cfg.geminiProject, cfg.geminiLocation)
}

// newSemantic picks the semantic index backend: Firestore when
// configured, in-process otherwise. Both need an embedder.
func (cfg *config) newSemantic(ctx context.Context, embedder index.Embedder) (index.Semantic, error) {
	if embedder == nil {
		return nil, nil
	}
	if cfg.firestoreProject != "" {
		return index.NewFirestoreSemantic(ctx, cfg.firestoreProject, cfg.firestoreDatabase, embedder)
	}
	return index.NewMemorySemantic(embedder), nil
}

// newGraph picks the graph index backend.
func (cfg *config) newGraph(ctx context.Context) (index.Graph, error) {
	if cfg.neo4jURI == "" {
		return index.NewMemoryGraph(), nil
	}
	g, err := index.NewNeo4jGraph(ctx, cfg.neo4jURI, cfg.neo4jUser, cfg.neo4jPassword)
	if err != nil {
		return nil, err
	}
	if err := g.BuildIndices(ctx); err != nil {
		return nil, err
	}
	return g, nil
}

// newWeights loads the scoring weights, falling back to defaults when
// no file is configured.
func (cfg *config) newWeights() (search.Weights, error) {
	if cfg.weightsPath == "" {
		return search.DefaultWeights(), nil
	}
	return search.LoadWeights(cfg.weightsPath)
}

// newResolver wires the query resolver over the given backends.
func (cfg *config) newResolver(s *store.Store, semantic index.Semantic, graph index.Graph) (*search.Resolver, error) {
	weights, err := cfg.newWeights()
	if err != nil {
		return nil, err
	}
	return search.New(s, semantic, graph, search.WithWeights(weights)), nil
}

// newIngest wires the ingestion use case. In-process index backends are
// rebuilt from the store on startup since they do not persist.
func (cfg *config) newIngest(ctx context.Context, s *store.Store, semantic index.Semantic, graph index.Graph) (*ingest.UseCase, error) {
	uc := ingest.New(s, semantic, graph)

	_, semMem := semantic.(*index.MemorySemantic)
	_, graphMem := graph.(*index.MemoryGraph)
	if semMem || graphMem {
		if err := uc.Reindex(ctx); err != nil {
			return nil, err
		}
		uc.Wait()
	}
	return uc, nil
}

// newRuntime registers the department agents.
func (cfg *config) newRuntime(resolver *search.Resolver, provider adapter.Provider, s *store.Store, opts ...agent.ProfileOption) *agent.Runtime {
	return agent.NewRuntime(
		agent.NewLegal(resolver, provider, s, opts...),
		agent.NewHR(resolver, provider, s, opts...),
		agent.NewPR(resolver, provider, s, opts...),
	)
}
