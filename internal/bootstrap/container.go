package bootstrap

import (
	"context"
	"fmt"
	"log"

	"github.com/pattabhia/rlvr-pdf-chat/internal/aggregator"
	"github.com/pattabhia/rlvr-pdf-chat/internal/aggregator/shard"
	"github.com/pattabhia/rlvr-pdf-chat/internal/checkpoint"
	"github.com/pattabhia/rlvr-pdf-chat/internal/config"
	"github.com/pattabhia/rlvr-pdf-chat/internal/dedup"
	"github.com/pattabhia/rlvr-pdf-chat/internal/domain"
	"github.com/pattabhia/rlvr-pdf-chat/internal/metrics"
	"github.com/pattabhia/rlvr-pdf-chat/internal/orchestrator"
	"github.com/pattabhia/rlvr-pdf-chat/internal/pkg/logger"
	"github.com/pattabhia/rlvr-pdf-chat/internal/selector"
	"github.com/pattabhia/rlvr-pdf-chat/internal/service"
	"github.com/pattabhia/rlvr-pdf-chat/internal/sink"
	"github.com/pattabhia/rlvr-pdf-chat/internal/storage/pg"
	"github.com/pattabhia/rlvr-pdf-chat/internal/verifier"
	"github.com/pattabhia/rlvr-pdf-chat/pkg/bus"
	"github.com/pattabhia/rlvr-pdf-chat/pkg/bus/memory"
	"github.com/pattabhia/rlvr-pdf-chat/pkg/bus/natsbus"
	"github.com/pattabhia/rlvr-pdf-chat/pkg/generator"
	"github.com/pattabhia/rlvr-pdf-chat/pkg/judge"
	"github.com/pattabhia/rlvr-pdf-chat/pkg/llm"
	"github.com/pattabhia/rlvr-pdf-chat/pkg/retriever"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

// Container wires every component described in §4 into one running
// pipeline: the orchestrator (ask_multi's synchronous half) and the
// pipeline service (the verifier + aggregator consumers run in the
// background).
type Container struct {
	Config       *config.Config
	Logger       logger.ILogger
	Bus          bus.Bus
	Orchestrator *orchestrator.Orchestrator
	Pipeline     service.IPipelineService
	Metrics      *metrics.Metrics
	Registry     *prometheus.Registry
	Selector     *selector.Selector
}

// NewContainer wires the pipeline's components from cfg. Every external
// collaborator from §1 (retriever store, judge backend, LLM generation
// backend) sits behind an interface; this constructor chooses the
// in-process stand-ins used when no external backend is configured, the
// same way the teacher's container chose between Gemini/Ollama/Jina by
// config flag.
func NewContainer(cfg *config.Config) (*Container, error) {
	sysLogger := logger.NewZapLogger(cfg.App.LogFilePath, cfg.App.Environment == "production")

	registry := prometheus.NewRegistry()
	m := metrics.New(registry)

	eventBus, err := newBus(cfg, sysLogger)
	if err != nil {
		return nil, fmt.Errorf("construct event bus: %w", err)
	}

	rdb := newRedisClient(cfg)

	dedupSet := newDedup(cfg, rdb)

	db := newDatabase(cfg)

	checkpointStore, err := newCheckpointStore(db)
	if err != nil {
		return nil, fmt.Errorf("construct checkpoint store: %w", err)
	}

	auditStore, err := newAuditStore(db)
	if err != nil {
		return nil, fmt.Errorf("construct audit store: %w", err)
	}

	retr := retriever.WithRetry(retriever.NewStaticCorpus(demoCorpus()))

	gen := newGenerator(cfg)

	judgeChain := judge.NewFallbackJudge(newPrimaryJudge(cfg), judge.NewHeuristicJudge())

	sftSink := sink.NewSFTSink(cfg.Sink.TrainingDir, sink.SyncPolicy(cfg.Sink.Sync))
	dpoSink := sink.NewDPOSink(cfg.Sink.DPODir, sink.SyncPolicy(cfg.Sink.Sync))

	sel := selector.New(cfg.Gates)

	v := verifier.New(eventBus, judgeChain, cfg.Judge.Concurrency, cfg.Judge.MaxRetries, cfg.Judge.Timeout, sysLogger)

	shardDir := shard.New(rdb, cfg.Pipeline.ShardCount, cfg.Pipeline.ShardID)

	agg := aggregator.New(eventBus, sftSink, dpoSink, sel, dedupSet, checkpointStore, auditStore, shardDir, m, sysLogger, cfg.Pipeline)

	if open, err := checkpointStore.ListOpen(context.Background()); err != nil {
		sysLogger.Warn("bootstrap", "checkpoint replay failed, starting with no restored batches", logger.Fields{
			Details: map[string]interface{}{"error": err.Error()},
		})
	} else if len(open) > 0 {
		agg.Restore(context.Background(), open)
	}

	orch := orchestrator.New(retr, gen, generator.DefaultSchedule, eventBus, sysLogger, cfg.Pipeline, m)

	pipeline := service.NewPipelineService(v, agg, sysLogger)

	return &Container{
		Config:       cfg,
		Logger:       sysLogger,
		Bus:          eventBus,
		Orchestrator: orch,
		Pipeline:     pipeline,
		Metrics:      m,
		Registry:     registry,
		Selector:     sel,
	}, nil
}

func newBus(cfg *config.Config, log logger.ILogger) (bus.Bus, error) {
	switch cfg.App.BusBackend {
	case "nats":
		return natsbus.New(cfg.App.NatsURL, log)
	default:
		return memory.New(log), nil
	}
}

func newRedisClient(cfg *config.Config) *redis.Client {
	opt, err := redis.ParseURL(cfg.App.RedisURL)
	if err != nil {
		log.Printf("[WARN] failed to parse REDIS_URL %q, using as direct addr: %v", cfg.App.RedisURL, err)
		opt = &redis.Options{Addr: cfg.App.RedisURL}
	}
	return redis.NewClient(opt)
}

func newDedup(cfg *config.Config, rdb *redis.Client) dedup.RetiredSet {
	if cfg.Pipeline.DedupBackend == "redis" {
		return dedup.NewRedisDedup(rdb, cfg.Pipeline.DedupTTL)
	}
	return dedup.NewMemoryDedup(cfg.Pipeline.DedupTTL)
}

// newDatabase opens the one Postgres connection shared by the checkpoint
// store and the audit-mirror store, returning nil when no connection
// string is configured so both stores fall back to their no-op variants.
func newDatabase(cfg *config.Config) *gorm.DB {
	if cfg.Database.Connection == "" {
		return nil
	}
	db, err := gorm.Open(postgres.Open(cfg.Database.Connection), &gorm.Config{})
	if err != nil {
		log.Printf("[WARN] failed to connect database, falling back to in-memory/no-op stores: %v", err)
		return nil
	}
	return db
}

func newCheckpointStore(db *gorm.DB) (checkpoint.Store, error) {
	if db == nil {
		return checkpoint.NewNoopStore(), nil
	}
	return checkpoint.NewGormStore(db)
}

func newAuditStore(db *gorm.DB) (pg.Store, error) {
	if db == nil {
		return pg.NewNoopStore(), nil
	}
	return pg.NewGormStore(db)
}

func newGenerator(cfg *config.Config) generator.Generator {
	if cfg.App.GeneratorMode == "llm" {
		return generator.NewLLMGenerator(llm.NewUnavailableProvider(), "configure-a-real-provider")
	}
	return generator.NewMockGenerator()
}

func newPrimaryJudge(cfg *config.Config) judge.Judge {
	if cfg.Judge.Mode == "llm" {
		return judge.NewLLMJudge(llm.NewUnavailableProvider(), "configure-a-real-provider")
	}
	return judge.NewHeuristicJudge()
}

// demoCorpus seeds the default StaticCorpus retriever with a handful of
// passages so ask_multi has something to answer against out of the box;
// a real deployment replaces this with the vector store client (§1 Out
// of scope: vector store and its retrieval API).
func demoCorpus() []domain.Passage {
	return []domain.Passage{
		{SourceID: "networking-101#3", Text: "A load balancer distributes incoming network traffic across multiple backend servers so no single server is overwhelmed, improving availability and responsiveness."},
		{SourceID: "networking-101#4", Text: "Layer 4 load balancers route traffic based on IP address and port, while layer 7 load balancers can inspect HTTP headers and route by content."},
		{SourceID: "sre-handbook#12", Text: "Health checks let a load balancer stop sending traffic to a backend that is failing, which is essential for graceful degradation under partial outages."},
		{SourceID: "sre-handbook#13", Text: "Common load balancing algorithms include round robin, least connections, and weighted distribution based on server capacity."},
	}
}
