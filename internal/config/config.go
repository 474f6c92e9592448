package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"github.com/spf13/pflag"
	"gopkg.in/yaml.v3"

	"github.com/seanblong/promptcoach/internal/ai"
)

type Specification struct {
	Provider          string        `yaml:"provider"`
	APIKey            string        `yaml:"providerApiKey" envconfig:"PROVIDER_API_KEY"`
	EmbedModel        string        `yaml:"providerEmbedModel" envconfig:"PROVIDER_EMBEDDING_MODEL"`
	ChatModel         string        `yaml:"providerChatModel" envconfig:"PROVIDER_CHAT_MODEL"`
	ProjectID         string        `yaml:"providerProjectID" envconfig:"PROVIDER_PROJECT_ID"`
	Location          string        `yaml:"providerLocation" envconfig:"PROVIDER_LOCATION"`
	Dim               int           `yaml:"providerDim" envconfig:"EMBED_DIM"`
	BaseURL           string        `yaml:"providerBaseURL" envconfig:"PROVIDER_BASE_URL"`
	OllamaHost        string        `yaml:"ollamaHost" split_words:"true"`
	RequestsPerMinute int           `yaml:"requestsPerMinute" split_words:"true"`
	ChunksPath        string        `yaml:"chunksPath" split_words:"true"`
	GuideRoot         string        `yaml:"guideRoot" split_words:"true"`
	TopK              int           `yaml:"topK" envconfig:"TOP_K"`
	Timeout           time.Duration `yaml:"timeout"`
	LogLevel          string        `yaml:"logLevel" split_words:"true"`
	Port              int           `yaml:"port" split_words:"true"`
	ChunkMaxChars     int           `yaml:"chunkMaxChars" split_words:"true"`
	ChunkOverlap      int           `yaml:"chunkOverlap" split_words:"true"`
	Workers           int           `yaml:"workers"`

	flags *pflag.FlagSet `ignored:"true"`
}

const envPrefix = "PROMPTCOACH"

func (s *Specification) Usage() {
	fmt.Fprint(os.Stderr, s.flags.FlagUsages())
}

// Load => defaults < YAML < env < flags.
// configPath may be ""; if so we auto-discover.
// A .env file in the working directory, if present, seeds the environment
// without overriding variables that are already set.
func Load(configPath string, fs *pflag.FlagSet) (Specification, error) {
	var cfg Specification

	if fileExists(".env") {
		if err := godotenv.Load(".env"); err != nil {
			return Specification{}, fmt.Errorf("load .env: %w", err)
		}
	}

	// set defaults (lowest precedence)
	setDefaults(&cfg)
	bindFlags(fs, &cfg)

	// config file
	path := configPath
	if path == "" {
		if v := os.Getenv(envPrefix + "_CONFIG"); v != "" {
			path = v
		} else {
			for _, cand := range []string{
				"config/promptcoach.yaml",
				"config/config.yaml",
				"./promptcoach.yaml",
				"./config.yaml",
			} {
				if fileExists(cand) {
					path = cand
					break
				}
			}
		}
	}

	if path != "" {
		if !fileExists(path) {
			return Specification{}, fmt.Errorf("config file not found: %s", path)
		}
		if err := loadYAML(path, &cfg); err != nil {
			return Specification{}, fmt.Errorf("load yaml %s: %w", path, err)
		}
	}

	// env overrides config file
	if err := envconfig.Process(envPrefix, &cfg); err != nil {
		return Specification{}, fmt.Errorf("env override: %w", err)
	}

	// flags override everything
	if err := fs.Parse(os.Args[1:]); err != nil {
		return Specification{}, err
	}
	applyChangedFlags(fs, &cfg)

	if err := cfg.validate(); err != nil {
		return Specification{}, err
	}
	return cfg, nil
}

func (s *Specification) validate() error {
	if strings.TrimSpace(s.ChunksPath) == "" {
		return fmt.Errorf("PROMPTCOACH_CHUNKS_PATH is required (env/file/flag)")
	}
	if strings.TrimSpace(s.LogLevel) == "" {
		s.LogLevel = "info"
	}
	if s.TopK <= 0 {
		s.TopK = 3
	}
	if s.Timeout <= 0 {
		s.Timeout = 30 * time.Second
	}
	if s.ChunkMaxChars <= 0 {
		return fmt.Errorf("chunkMaxChars must be positive, got %d", s.ChunkMaxChars)
	}
	if s.ChunkOverlap < 0 || s.ChunkOverlap >= s.ChunkMaxChars {
		return fmt.Errorf("chunkOverlap must be in [0, %d), got %d", s.ChunkMaxChars, s.ChunkOverlap)
	}
	if s.Workers <= 0 {
		s.Workers = 1
	}
	return nil
}

// ClientConfig maps the provider settings onto an ai.ClientConfig. The openai
// provider falls back to OPENAI_API_KEY when no key is configured.
func (s *Specification) ClientConfig() (*ai.ClientConfig, error) {
	cc := &ai.ClientConfig{
		APIKey:            s.APIKey,
		EmbedModel:        s.EmbedModel,
		ChatModel:         s.ChatModel,
		Dim:               s.Dim,
		ProjectID:         s.ProjectID,
		Location:          s.Location,
		BaseURL:           s.BaseURL,
		Host:              s.OllamaHost,
		RequestsPerMinute: s.RequestsPerMinute,
		Timeout:           s.Timeout,
	}
	switch strings.ToLower(s.Provider) {
	case "openai":
		cc.Provider = ai.ProviderOpenAI
	case "vertexai", "google":
		cc.Provider = ai.ProviderVertexAI
	case "ollama":
		cc.Provider = ai.ProviderOllama
	case "stub", "":
		cc.Provider = ai.ProviderStub
	default:
		return nil, fmt.Errorf("unsupported provider: %s", s.Provider)
	}
	if cc.Provider == ai.ProviderOpenAI && strings.TrimSpace(cc.APIKey) == "" {
		cc.APIKey = os.Getenv("OPENAI_API_KEY")
	}
	return cc, nil
}

// ---------- helpers ----------

func loadYAML(path string, into any) error {
	b, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return yaml.Unmarshal(b, into)
}

func fileExists(p string) bool {
	fi, err := os.Stat(p)
	return err == nil && !fi.IsDir()
}

func bindFlags(fs *pflag.FlagSet, c *Specification) {
	fs.String("config", "", "Path to config file")

	// If --config is provided on the command line, capture it now so
	// config discovery (which runs before flags.Parse) can use it.
	for i, a := range os.Args {
		if a == "--config" {
			if i+1 < len(os.Args) && !strings.HasPrefix(os.Args[i+1], "-") {
				_ = os.Setenv(envPrefix+"_CONFIG", os.Args[i+1])
			}
		} else if v, ok := strings.CutPrefix(a, "--config="); ok {
			_ = os.Setenv(envPrefix+"_CONFIG", v)
		}
	}

	fs.String("provider", c.Provider, "Provider (openai|vertexai|ollama|stub); openai without a key runs in demo mode")
	fs.String("provider-api-key", c.APIKey, "Provider API key")
	fs.String("provider-embedding-model", c.EmbedModel, "Provider embedding model")
	fs.String("provider-chat-model", c.ChatModel, "Provider chat model")
	fs.String("provider-project-id", c.ProjectID, "Provider project ID")
	fs.String("provider-location", c.Location, "Provider location/region")
	fs.String("provider-base-url", c.BaseURL, "Provider API base URL (OpenAI compatible)")
	fs.String("ollama-host", c.OllamaHost, "Ollama server address")
	fs.Int("requests-per-minute", c.RequestsPerMinute, "Provider request budget per minute (0 = unlimited)")

	fs.Int("embed-dim", c.Dim, "Embedding dimensionality")

	fs.String("chunks-path", c.ChunksPath, "Path to the chunk store JSON file")
	fs.String("guide-root", c.GuideRoot, "Directory holding the guide documents to index")
	fs.Int("top-k", c.TopK, "Number of guide sections retrieved per prompt")
	fs.Duration("timeout", c.Timeout, "Timeout for each provider call")

	fs.Int("chunk-max-chars", c.ChunkMaxChars, "Maximum characters per indexed chunk")
	fs.Int("chunk-overlap", c.ChunkOverlap, "Characters shared by consecutive chunks")
	fs.Int("workers", c.Workers, "Concurrent embedding workers for the indexer")

	fs.String("log-level", c.LogLevel, "Log level (debug|info|warn|error)")
	fs.Int("port", c.Port, "API server port")

	// Used later for usage/help
	// create a shallow copy of fs (so Usage can be called safely without mutating caller)
	copied := pflag.NewFlagSet("temp", pflag.ContinueOnError)
	*copied = *fs
	c.flags = copied
}

func applyChangedFlags(fs *pflag.FlagSet, c *Specification) {
	setStr := func(name string, dst *string) {
		if fs.Changed(name) {
			v, _ := fs.GetString(name)
			*dst = v
		}
	}
	setInt := func(name string, dst *int) {
		if fs.Changed(name) {
			v, _ := fs.GetInt(name)
			*dst = v
		}
	}
	setDur := func(name string, dst *time.Duration) {
		if fs.Changed(name) {
			v, _ := fs.GetDuration(name)
			*dst = v
		}
	}

	// (We ignore --config here; it's for discovery.)
	setStr("provider", &c.Provider)
	setStr("provider-api-key", &c.APIKey)
	setStr("provider-embedding-model", &c.EmbedModel)
	setStr("provider-chat-model", &c.ChatModel)
	setStr("provider-project-id", &c.ProjectID)
	setStr("provider-location", &c.Location)
	setStr("provider-base-url", &c.BaseURL)
	setStr("ollama-host", &c.OllamaHost)
	setInt("requests-per-minute", &c.RequestsPerMinute)

	setInt("embed-dim", &c.Dim)

	setStr("chunks-path", &c.ChunksPath)
	setStr("guide-root", &c.GuideRoot)
	setInt("top-k", &c.TopK)
	setDur("timeout", &c.Timeout)

	setInt("chunk-max-chars", &c.ChunkMaxChars)
	setInt("chunk-overlap", &c.ChunkOverlap)
	setInt("workers", &c.Workers)

	setStr("log-level", &c.LogLevel)
	setInt("port", &c.Port)
}

func setDefaults(c *Specification) {
	c.LogLevel = "info"
	c.Provider = "openai"
	c.Location = "us-central1"
	c.Dim = 0
	c.ChunksPath = "data/chunks.json"
	c.GuideRoot = "guide"
	c.TopK = 3
	c.Timeout = 30 * time.Second
	c.ChunkMaxChars = 1500
	c.ChunkOverlap = 200
	c.Workers = 4
	c.Port = 8080
}
