package config

import (
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	App      AppConfig
	Pipeline PipelineConfig
	Gates    GateConfig
	Judge    JudgeConfig
	Sink     SinkConfig
	Database DatabaseConfig
}

type AppConfig struct {
	Environment   string
	LogFilePath   string
	NatsURL       string
	RedisURL      string
	BusBackend    string // "memory" or "nats"
	MetricsAddr   string
	GeneratorMode string // "mock" or "llm"
}

// PipelineConfig controls candidate generation and batch lifecycle (§6).
type PipelineConfig struct {
	NumCandidates    int
	MaxCandidates    int
	SamplingT        []float64
	BatchTimeout     time.Duration
	MaxOpenBatches   int
	RetrievalTopK    int
	RetrievalTimeout time.Duration
	GeneratorTimeout time.Duration
	PublishTimeout   time.Duration
	FsyncTimeout     time.Duration
	DedupBackend     string // "memory" or "redis"
	DedupTTL         time.Duration
	ShardCount       int // number of aggregator processes sharing batch_id space; 1 disables sharding
	ShardID          int // this process's shard index in [0, ShardCount)
}

// GateConfig controls DPO quality gates (§4.F).
type GateConfig struct {
	MinScoreDiff       float64
	MinChosenScore     float64
	EnableVerbatimGate bool
	EnableHedgingGate  bool
}

// JudgeConfig controls verifier concurrency and retry policy (§4.D).
type JudgeConfig struct {
	Mode               string // "llm" or "heuristic"
	Concurrency        int
	Timeout            time.Duration
	MaxRetries         int
	FaithfulnessThresh float64
	RelevancyThresh    float64
}

type SinkConfig struct {
	TrainingDir string
	DPODir      string
	Sync        string // every|batch|off
}

type DatabaseConfig struct {
	Connection string
}

func Load() *Config {
	if err := godotenv.Load(); err != nil {
		log.Println("Note: .env file not found, using system environment")
	}

	return &Config{
		App: AppConfig{
			Environment:   getEnv("GO_ENV", "development"),
			LogFilePath:   getEnv("LOG_FILE_PATH", "pipeline.log"),
			NatsURL:       getEnv("NATS_URL", "nats://localhost:4222"),
			RedisURL:      getEnv("REDIS_URL", "redis://localhost:6379"),
			BusBackend:    getEnv("BUS_BACKEND", "memory"),
			MetricsAddr:   getEnv("METRICS_ADDR", ":9090"),
			GeneratorMode: getEnv("GENERATOR_MODE", "mock"),
		},
		Pipeline: PipelineConfig{
			NumCandidates:    getEnvAsInt("NUM_CANDIDATES", 3),
			MaxCandidates:    getEnvAsInt("MAX_N", 8),
			SamplingT:        getEnvAsFloatList("SAMPLING_TEMPERATURES", []float64{0.2, 0.7, 1.0}),
			BatchTimeout:     getEnvAsDuration("BATCH_TIMEOUT", 30*time.Minute),
			MaxOpenBatches:   getEnvAsInt("MAX_OPEN_BATCHES", 10000),
			RetrievalTopK:    getEnvAsInt("RETRIEVAL_TOP_K", 5),
			RetrievalTimeout: getEnvAsDuration("RETRIEVAL_TIMEOUT", 5*time.Second),
			GeneratorTimeout: getEnvAsDuration("GENERATOR_TIMEOUT", 60*time.Second),
			PublishTimeout:   getEnvAsDuration("PUBLISH_TIMEOUT", 2*time.Second),
			FsyncTimeout:     getEnvAsDuration("FSYNC_TIMEOUT", 1*time.Second),
			DedupBackend:     getEnv("DEDUP_BACKEND", "memory"),
			DedupTTL:         getEnvAsDuration("DEDUP_TTL", time.Hour),
			ShardCount:       getEnvAsInt("SHARD_COUNT", 1),
			ShardID:          getEnvAsInt("SHARD_ID", 0),
		},
		Gates: GateConfig{
			MinScoreDiff:       getEnvAsFloat("MIN_SCORE_DIFF", 0.3),
			MinChosenScore:     getEnvAsFloat("MIN_CHOSEN_SCORE", 0.7),
			EnableVerbatimGate: getEnvAsBool("ENABLE_VERBATIM_GATE", true),
			EnableHedgingGate:  getEnvAsBool("ENABLE_HEDGING_GATE", true),
		},
		Judge: JudgeConfig{
			Mode:               getEnv("JUDGE_MODE", "llm"),
			Concurrency:        getEnvAsInt("JUDGE_CONCURRENCY", 4),
			Timeout:            getEnvAsDuration("JUDGE_TIMEOUT", 60*time.Second),
			MaxRetries:         getEnvAsInt("JUDGE_MAX_RETRIES", 3),
			FaithfulnessThresh: getEnvAsFloat("FAITHFULNESS_THRESHOLD", 0.8),
			RelevancyThresh:    getEnvAsFloat("RELEVANCY_THRESHOLD", 0.8),
		},
		Sink: SinkConfig{
			TrainingDir: getEnv("TRAINING_DATA_DIR", "./data/training_data"),
			DPODir:      getEnv("DPO_DATA_DIR", "./data/dpo_data"),
			Sync:        getEnv("SINK_SYNC", "every"),
		},
		Database: DatabaseConfig{
			Connection: getEnv("DB_CONNECTION_STRING", ""),
		},
	}
}

func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	if value, err := strconv.Atoi(getEnv(key, "")); err == nil {
		return value
	}
	return fallback
}

func getEnvAsFloat(key string, fallback float64) float64 {
	if value, err := strconv.ParseFloat(getEnv(key, ""), 64); err == nil {
		return value
	}
	return fallback
}

func getEnvAsBool(key string, fallback bool) bool {
	if value, err := strconv.ParseBool(getEnv(key, "")); err == nil {
		return value
	}
	return fallback
}

func getEnvAsDuration(key string, fallback time.Duration) time.Duration {
	if value, err := time.ParseDuration(getEnv(key, "")); err == nil {
		return value
	}
	return fallback
}

func getEnvAsFloatList(key string, fallback []float64) []float64 {
	raw, exists := os.LookupEnv(key)
	if !exists || raw == "" {
		return fallback
	}
	var out []float64
	start := 0
	for i := 0; i <= len(raw); i++ {
		if i == len(raw) || raw[i] == ',' {
			if i > start {
				if v, err := strconv.ParseFloat(raw[start:i], 64); err == nil {
					out = append(out, v)
				}
			}
			start = i + 1
		}
	}
	if len(out) == 0 {
		return fallback
	}
	return out
}
