package main

import (
	"fmt"
	"os"

	"github.com/gamma-omg/docsearch/chunking"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const (
	chunkStoreSQLite   = "sqlite"
	chunkStoreChroma   = "chroma"
	chunkStorePostgres = "postgres"
)

type ChromaConfig struct {
	Addr        string `yaml:"addr"`
	Collection  string `yaml:"collection"`
	RequestSize int    `yaml:"request_size"`
}

type PostgresConfig struct {
	DSN string `yaml:"dsn"`
}

type Config struct {
	LogFile       string          `yaml:"log"`
	DocRoot       string          `yaml:"doc_root"`
	DataDir       string          `yaml:"data_dir"`
	MergeEventsMs int             `yaml:"write_debounce_ms"`
	Chunking      chunking.Config `yaml:"chunking"`
	Results       int             `yaml:"results"`
	ServerAddr    string          `yaml:"server_addr"`
	ChunkStore    string          `yaml:"chunk_store"`
	Chroma        ChromaConfig    `yaml:"chroma"`
	Postgres      PostgresConfig  `yaml:"postgres"`
}

// readConfig loads cfgPath, applies defaults and then overrides from the
// environment. A .env file in the working directory is loaded first if
// present.
func readConfig(cfgPath string) (*Config, error) {
	cfgFile, err := os.Open(cfgPath)
	if err != nil {
		return nil, fmt.Errorf("unable to open config file: %w", err)
	}
	defer cfgFile.Close()

	cfg := &Config{}
	dec := yaml.NewDecoder(cfgFile)
	err = dec.Decode(cfg)
	if err != nil {
		return nil, fmt.Errorf("unable to parse config file: %w", err)
	}

	_ = godotenv.Load()
	applyEnv(cfg)
	applyConfigDefaults(cfg)

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

func applyEnv(cfg *Config) {
	if v := os.Getenv("DOCSEARCH_POSTGRES_DSN"); v != "" {
		cfg.Postgres.DSN = v
	}
	if v := os.Getenv("DOCSEARCH_CHROMA_ADDR"); v != "" {
		cfg.Chroma.Addr = v
	}
}

func applyConfigDefaults(cfg *Config) {
	def := chunking.DefaultConfig()
	if cfg.Chunking.MinWords <= 0 {
		cfg.Chunking.MinWords = def.MinWords
	}
	if cfg.Chunking.MaxWords <= 0 {
		cfg.Chunking.MaxWords = def.MaxWords
	}
	if cfg.Chunking.OverlapWords < 0 {
		cfg.Chunking.OverlapWords = 0
	}
	if cfg.DataDir == "" {
		cfg.DataDir = "data"
	}
	if cfg.MergeEventsMs <= 0 {
		cfg.MergeEventsMs = 500
	}
	if cfg.Results <= 0 {
		cfg.Results = 5
	}
	if cfg.ServerAddr == "" {
		cfg.ServerAddr = "localhost:8080"
	}
	if cfg.ChunkStore == "" {
		cfg.ChunkStore = chunkStoreSQLite
	}
	if cfg.Chroma.Addr == "" {
		cfg.Chroma.Addr = "http://localhost:8000"
	}
	if cfg.Chroma.Collection == "" {
		cfg.Chroma.Collection = "docsearch"
	}
	if cfg.Chroma.RequestSize <= 0 {
		cfg.Chroma.RequestSize = 100
	}
}

func (cfg *Config) validate() error {
	if cfg.Chunking.MinWords > cfg.Chunking.MaxWords {
		return fmt.Errorf("chunking.min_words (%d) exceeds chunking.max_words (%d)",
			cfg.Chunking.MinWords, cfg.Chunking.MaxWords)
	}

	switch cfg.ChunkStore {
	case chunkStoreSQLite, chunkStoreChroma:
	case chunkStorePostgres:
		if cfg.Postgres.DSN == "" {
			return fmt.Errorf("postgres chunk store requires postgres.dsn or DOCSEARCH_POSTGRES_DSN")
		}
	default:
		return fmt.Errorf("unknown chunk_store %q", cfg.ChunkStore)
	}

	return nil
}
