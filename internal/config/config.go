package config

import (
	"errors"
	"os"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

// ErrMissingCredential is returned by Validate when a required key is unset.
var ErrMissingCredential = errors.New("missing credential")

// Config holds the full application configuration.
type Config struct {
	Anthropic AnthropicConfig `yaml:"anthropic" mapstructure:"anthropic"`
	Tools     ToolsConfig     `yaml:"tools" mapstructure:"tools"`
	Jina      JinaConfig      `yaml:"jina" mapstructure:"jina"`
	Firecrawl FirecrawlConfig `yaml:"firecrawl" mapstructure:"firecrawl"`
	Store     StoreConfig     `yaml:"store" mapstructure:"store"`
	Cache     CacheConfig     `yaml:"cache" mapstructure:"cache"`
	Pipeline  PipelineConfig  `yaml:"pipeline" mapstructure:"pipeline"`
	Retry     RetryConfig     `yaml:"retry" mapstructure:"retry"`
	Breaker   BreakerConfig   `yaml:"breaker" mapstructure:"breaker"`
	Dedupe    DedupeConfig    `yaml:"dedupe" mapstructure:"dedupe"`
	Scorer    ScorerConfig    `yaml:"scorer" mapstructure:"scorer"`
	Server    ServerConfig    `yaml:"server" mapstructure:"server"`
	Log       LogConfig       `yaml:"log" mapstructure:"log"`
}

// AnthropicConfig holds Anthropic API settings.
type AnthropicConfig struct {
	Key         string  `yaml:"key" mapstructure:"key"`
	Model       string  `yaml:"model" mapstructure:"model"`
	MaxTokens   int64   `yaml:"max_tokens" mapstructure:"max_tokens"`
	Temperature float64 `yaml:"temperature" mapstructure:"temperature"`
}

// ToolsConfig selects and configures the search/scrape backend.
type ToolsConfig struct {
	// Provider is "mcp" (remote tool server) or "jina" (direct HTTP APIs).
	Provider      string  `yaml:"provider" mapstructure:"provider"`
	MCPURL        string  `yaml:"mcp_url" mapstructure:"mcp_url"`
	MCPToken      string  `yaml:"mcp_token" mapstructure:"mcp_token"`
	SearchTool    string  `yaml:"search_tool" mapstructure:"search_tool"`
	ScrapeTool    string  `yaml:"scrape_tool" mapstructure:"scrape_tool"`
	SearchEngine  string  `yaml:"search_engine" mapstructure:"search_engine"`
	SearchRPS     float64 `yaml:"search_rps" mapstructure:"search_rps"`
	ScrapeRPS     float64 `yaml:"scrape_rps" mapstructure:"scrape_rps"`
	TimeoutSecs   int     `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	LocalFallback bool    `yaml:"local_fallback" mapstructure:"local_fallback"`
}

// JinaConfig holds Jina Reader/Search settings.
type JinaConfig struct {
	Key           string `yaml:"key" mapstructure:"key"`
	BaseURL       string `yaml:"base_url" mapstructure:"base_url"`
	SearchBaseURL string `yaml:"search_base_url" mapstructure:"search_base_url"`
}

// FirecrawlConfig holds Firecrawl settings (scrape fallback only).
type FirecrawlConfig struct {
	Key     string `yaml:"key" mapstructure:"key"`
	BaseURL string `yaml:"base_url" mapstructure:"base_url"`
}

// StoreConfig configures the page cache backend.
type StoreConfig struct {
	// Driver is "sqlite", "postgres" or "none".
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
}

// CacheConfig configures page cache behavior.
type CacheConfig struct {
	Enabled  bool `yaml:"enabled" mapstructure:"enabled"`
	TTLHours int  `yaml:"ttl_hours" mapstructure:"ttl_hours"`
}

// PipelineConfig holds the fan-out knobs for every stage.
type PipelineConfig struct {
	MinQueries            int  `yaml:"min_queries" mapstructure:"min_queries"`
	MaxQueries            int  `yaml:"max_queries" mapstructure:"max_queries"`
	PagesPerQuery         int  `yaml:"pages_per_query" mapstructure:"pages_per_query"`
	MaxLeads              int  `yaml:"max_leads" mapstructure:"max_leads"`
	SearchConcurrency     int  `yaml:"search_concurrency" mapstructure:"search_concurrency"`
	EnrichConcurrency     int  `yaml:"enrich_concurrency" mapstructure:"enrich_concurrency"`
	ExtractConcurrency    int  `yaml:"extract_concurrency" mapstructure:"extract_concurrency"`
	PerCompanyConcurrency int  `yaml:"per_company_concurrency" mapstructure:"per_company_concurrency"`
	MinContentChars       int  `yaml:"min_content_chars" mapstructure:"min_content_chars"`
	Normalize             bool `yaml:"normalize" mapstructure:"normalize"`
	Narratives            bool `yaml:"narratives" mapstructure:"narratives"`
	NarrativeConcurrency  int  `yaml:"narrative_concurrency" mapstructure:"narrative_concurrency"`
}

// RetryPolicy is a plain-value retry policy.
type RetryPolicy struct {
	MaxAttempts int  `yaml:"max_attempts" mapstructure:"max_attempts"`
	BaseDelayMs int  `yaml:"base_delay_ms" mapstructure:"base_delay_ms"`
	MaxDelayMs  int  `yaml:"max_delay_ms" mapstructure:"max_delay_ms"`
	Jitter      bool `yaml:"jitter" mapstructure:"jitter"`
}

// RetryConfig holds per-call-class retry policies.
type RetryConfig struct {
	Tools   RetryPolicy `yaml:"tools" mapstructure:"tools"`
	Reflect RetryPolicy `yaml:"reflect" mapstructure:"reflect"`
	Extract RetryPolicy `yaml:"extract" mapstructure:"extract"`
}

// BreakerConfig controls the circuit breakers in front of the LLM and
// the search/scrape tools.
type BreakerConfig struct {
	Enabled          bool `yaml:"enabled" mapstructure:"enabled"`
	FailureThreshold int  `yaml:"failure_threshold" mapstructure:"failure_threshold"`
	ResetTimeoutSecs int  `yaml:"reset_timeout_secs" mapstructure:"reset_timeout_secs"`
}

// DedupeConfig selects the root-domain strategy for company dedupe.
type DedupeConfig struct {
	// RootDomain is "known_tlds" or "public_suffix".
	RootDomain string `yaml:"root_domain" mapstructure:"root_domain"`
}

// ScorerConfig holds the composite weights.
type ScorerConfig struct {
	VisionWeights    VisionWeights    `yaml:"vision_weights" mapstructure:"vision_weights"`
	ExecutionWeights ExecutionWeights `yaml:"execution_weights" mapstructure:"execution_weights"`
	SpreadThreshold  int              `yaml:"spread_threshold" mapstructure:"spread_threshold"`
}

// VisionWeights weights the vision components.
type VisionWeights struct {
	FeatureDepth float64 `yaml:"feature_depth" mapstructure:"feature_depth"`
	Innovation   float64 `yaml:"innovation" mapstructure:"innovation"`
	Positioning  float64 `yaml:"positioning" mapstructure:"positioning"`
}

// ExecutionWeights weights the execution components.
type ExecutionWeights struct {
	PricingMaturity      float64 `yaml:"pricing_maturity" mapstructure:"pricing_maturity"`
	EnterprisePresence   float64 `yaml:"enterprise_presence" mapstructure:"enterprise_presence"`
	DocumentationQuality float64 `yaml:"documentation_quality" mapstructure:"documentation_quality"`
	Viability            float64 `yaml:"viability" mapstructure:"viability"`
}

// DefaultScorerConfig returns the standard weights.
func DefaultScorerConfig() ScorerConfig {
	return ScorerConfig{
		VisionWeights: VisionWeights{
			FeatureDepth: 0.4,
			Innovation:   0.3,
			Positioning:  0.3,
		},
		ExecutionWeights: ExecutionWeights{
			PricingMaturity:      0.3,
			EnterprisePresence:   0.25,
			DocumentationQuality: 0.2,
			Viability:            0.25,
		},
		SpreadThreshold: 10,
	}
}

// ServerConfig configures the HTTP server.
type ServerConfig struct {
	Port        int      `yaml:"port" mapstructure:"port"`
	CORSOrigins []string `yaml:"cors_origins" mapstructure:"cors_origins"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level      string `yaml:"level" mapstructure:"level"`
	Format     string `yaml:"format" mapstructure:"format"`
	File       string `yaml:"file" mapstructure:"file"`
	MaxSizeMB  int    `yaml:"max_size_mb" mapstructure:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups" mapstructure:"max_backups"`
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	v.SetEnvPrefix("MARKETINTEL")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	// Fall back to the conventional vendor variable names.
	if cfg.Anthropic.Key == "" {
		cfg.Anthropic.Key = os.Getenv("ANTHROPIC_API_KEY")
	}
	if cfg.Tools.MCPToken == "" {
		cfg.Tools.MCPToken = os.Getenv("BRIGHTDATA_API_TOKEN")
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	// Empty defaults register the keys so env overrides reach Unmarshal.
	for _, key := range []string{"anthropic.key", "tools.mcp_token", "jina.key", "firecrawl.key", "log.file"} {
		v.SetDefault(key, "")
	}
	v.SetDefault("tools.search_rps", 0)
	v.SetDefault("tools.scrape_rps", 0)
	v.SetDefault("anthropic.model", "claude-sonnet-4-5-20250929")
	v.SetDefault("anthropic.max_tokens", 4096)
	v.SetDefault("anthropic.temperature", 0.2)
	v.SetDefault("tools.provider", "mcp")
	v.SetDefault("tools.mcp_url", "https://mcp.brightdata.com/mcp")
	v.SetDefault("tools.search_tool", "search_engine")
	v.SetDefault("tools.scrape_tool", "scrape_as_markdown")
	v.SetDefault("tools.search_engine", "google")
	v.SetDefault("tools.timeout_secs", 90)
	v.SetDefault("tools.local_fallback", true)
	v.SetDefault("jina.base_url", "https://r.jina.ai")
	v.SetDefault("jina.search_base_url", "https://s.jina.ai")
	v.SetDefault("firecrawl.base_url", "https://api.firecrawl.dev/v1")
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.database_url", "market-intel.db")
	v.SetDefault("cache.enabled", true)
	v.SetDefault("cache.ttl_hours", 168)
	v.SetDefault("pipeline.min_queries", 10)
	v.SetDefault("pipeline.max_queries", 12)
	v.SetDefault("pipeline.pages_per_query", 3)
	v.SetDefault("pipeline.max_leads", 30)
	v.SetDefault("pipeline.search_concurrency", 6)
	v.SetDefault("pipeline.enrich_concurrency", 10)
	v.SetDefault("pipeline.extract_concurrency", 20)
	v.SetDefault("pipeline.per_company_concurrency", 3)
	v.SetDefault("pipeline.min_content_chars", 80)
	v.SetDefault("pipeline.normalize", true)
	v.SetDefault("pipeline.narratives", true)
	v.SetDefault("pipeline.narrative_concurrency", 10)
	v.SetDefault("retry.tools.max_attempts", 3)
	v.SetDefault("retry.tools.base_delay_ms", 500)
	v.SetDefault("retry.tools.max_delay_ms", 4000)
	v.SetDefault("retry.tools.jitter", true)
	v.SetDefault("retry.reflect.max_attempts", 3)
	v.SetDefault("retry.reflect.base_delay_ms", 500)
	v.SetDefault("retry.reflect.max_delay_ms", 3000)
	v.SetDefault("retry.reflect.jitter", true)
	v.SetDefault("retry.extract.max_attempts", 3)
	v.SetDefault("retry.extract.base_delay_ms", 800)
	v.SetDefault("retry.extract.max_delay_ms", 5000)
	v.SetDefault("retry.extract.jitter", true)
	v.SetDefault("breaker.enabled", true)
	v.SetDefault("breaker.failure_threshold", 5)
	v.SetDefault("breaker.reset_timeout_secs", 30)
	v.SetDefault("dedupe.root_domain", "known_tlds")
	v.SetDefault("scorer.vision_weights.feature_depth", 0.4)
	v.SetDefault("scorer.vision_weights.innovation", 0.3)
	v.SetDefault("scorer.vision_weights.positioning", 0.3)
	v.SetDefault("scorer.execution_weights.pricing_maturity", 0.3)
	v.SetDefault("scorer.execution_weights.enterprise_presence", 0.25)
	v.SetDefault("scorer.execution_weights.documentation_quality", 0.2)
	v.SetDefault("scorer.execution_weights.viability", 0.25)
	v.SetDefault("scorer.spread_threshold", 10)
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.cors_origins", []string{"*"})
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("log.max_size_mb", 50)
	v.SetDefault("log.max_backups", 3)
}

// Validate checks that the credentials needed for a pipeline run are set.
func (c *Config) Validate() error {
	if c.Anthropic.Key == "" {
		return eris.Wrap(ErrMissingCredential, "config: anthropic.key")
	}
	switch c.Tools.Provider {
	case "mcp":
		if c.Tools.MCPURL == "" {
			return eris.Wrap(ErrMissingCredential, "config: tools.mcp_url")
		}
		if c.Tools.MCPToken == "" {
			return eris.Wrap(ErrMissingCredential, "config: tools.mcp_token")
		}
	case "jina":
		if c.Jina.Key == "" {
			return eris.Wrap(ErrMissingCredential, "config: jina.key")
		}
	default:
		return eris.Errorf("config: unknown tools.provider %q", c.Tools.Provider)
	}
	return nil
}

// InitLogger initializes the global zap logger. When cfg.File is set, log
// output is also written to a size-rotated file.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}

	if cfg.File != "" {
		rotator := &lumberjack.Logger{
			Filename:   cfg.File,
			MaxSize:    cfg.MaxSizeMB,
			MaxBackups: cfg.MaxBackups,
		}
		fileCore := zapcore.NewCore(
			zapcore.NewJSONEncoder(zap.NewProductionEncoderConfig()),
			zapcore.AddSync(rotator),
			zapCfg.Level,
		)
		logger = logger.WithOptions(zap.WrapCore(func(c zapcore.Core) zapcore.Core {
			return zapcore.NewTee(c, fileCore)
		}))
	}

	zap.ReplaceGlobals(logger)
	return nil
}
