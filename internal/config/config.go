package config

import (
	"errors"
	"fmt"
	"io/fs"
	"slices"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

var (
	ErrMissingAPIKey      = errors.New("LLM_API_KEY is required")
	ErrInvalidLLMProvider = errors.New("invalid llm provider")
	ErrInvalidProvider    = errors.New("invalid search provider")
	ErrInvalidEngine      = errors.New("invalid extract engine")
	ErrInvalidFormat      = errors.New("invalid extract format")
	ErrInvalidMaxResults  = errors.New("SEARCH_MAX_RESULTS must be positive")
	ErrInvalidExporter    = errors.New("invalid tracing exporter")
)

var (
	llmProviders    = []string{"chat", "openai"}
	searchProviders = []string{"duckduckgo", "bing", "serpapi", "tavily", "scraper", "browser"}
	extractEngines  = []string{"readability", "trafilatura", "scraper"}
	extractFormats  = []string{"text", "markdown"}
	traceExporters  = []string{"none", "stdout"}
)

type Config struct {
	HTTP      HTTPConfig
	Log       LogConfig
	LLM       LLMConfig
	Search    SearchConfig
	Extract   ExtractConfig
	Scraper   ScraperConfig
	Optimizer OptimizerConfig
	Telegram  TelegramConfig
	RateLimit RateLimitConfig
	Tracing   TracingConfig

	// пауза перед скачиванием каждой страницы
	RequestDelay time.Duration `env:"REQUEST_DELAY" envDefault:"2s"`
}

type HTTPConfig struct {
	Port           int           `env:"PORT"            envDefault:"3000"`
	RequestTimeout time.Duration `env:"REQUEST_TIMEOUT" envDefault:"120s"`
	TrustedProxies []string      `env:"TRUSTED_PROXIES"`
}

func (c HTTPConfig) Addr() string {
	return fmt.Sprintf(":%d", c.Port)
}

type LogConfig struct {
	Level string `env:"LOG_LEVEL" envDefault:"info"`
	// json | console; пусто - console для debug, json для остального
	Format string `env:"LOG_FORMAT"`
}

type LLMConfig struct {
	Provider    string        `env:"LLM_PROVIDER"     envDefault:"chat"`
	BaseURL     string        `env:"LLM_BASE_URL"     envDefault:"https://integrate.api.nvidia.com/v1"`
	APIKey      string        `env:"LLM_API_KEY"`
	Model       string        `env:"LLM_MODEL"        envDefault:"meta/llama-4-maverick-17b-128e-instruct"`
	MaxTokens   int           `env:"LLM_MAX_TOKENS"   envDefault:"512"`
	Temperature float64       `env:"LLM_TEMPERATURE"  envDefault:"0.7"`
	TopP        float64       `env:"LLM_TOP_P"        envDefault:"0.9"`
	Timeout     time.Duration `env:"LLM_TIMEOUT"      envDefault:"30s"`
	MaxAttempts int           `env:"LLM_MAX_ATTEMPTS" envDefault:"3"`
	RetryDelay  time.Duration `env:"LLM_RETRY_DELAY"  envDefault:"1s"`
}

type SearchConfig struct {
	// порядок = приоритет
	Providers       []string      `env:"SEARCH_PROVIDERS"   envDefault:"duckduckgo,bing"`
	MaxResults      int           `env:"SEARCH_MAX_RESULTS" envDefault:"5"`
	Timeout         time.Duration `env:"SEARCH_TIMEOUT"     envDefault:"10s"`
	SerpAPIKey      string        `env:"SERPAPI_KEY"`
	TavilyAPIKey    string        `env:"TAVILY_API_KEY"`
	BrowserExecPath string        `env:"BROWSER_EXEC_PATH"`
	BrowserProxyURL string        `env:"BROWSER_PROXY_URL"`
}

type ExtractConfig struct {
	Engine           string        `env:"EXTRACT_ENGINE"        envDefault:"readability"`
	Format           string        `env:"EXTRACT_FORMAT"        envDefault:"text"`
	MaxChars         int           `env:"EXTRACT_MAX_CHARS"     envDefault:"3000"`
	Timeout          time.Duration `env:"EXTRACT_TIMEOUT"       envDefault:"10s"`
	MaxRedirects     int           `env:"EXTRACT_MAX_REDIRECTS" envDefault:"3"`
	MinContentLength int           `env:"MIN_CONTENT_LENGTH"    envDefault:"100"`
}

type ScraperConfig struct {
	PythonPath string        `env:"SCRAPER_PYTHON_PATH" envDefault:"python3"`
	ScriptPath string        `env:"SCRAPER_SCRIPT_PATH" envDefault:"scraper.py"`
	Timeout    time.Duration `env:"SCRAPER_TIMEOUT"     envDefault:"60s"`
}

type OptimizerConfig struct {
	MaxAttempts int           `env:"OPTIMIZER_MAX_ATTEMPTS" envDefault:"5"`
	RetryDelay  time.Duration `env:"OPTIMIZER_RETRY_DELAY"  envDefault:"1s"`
}

type TelegramConfig struct {
	// пустой токен - бот не запускается
	Token string `env:"TELEGRAM_BOT_TOKEN"`
	Debug bool   `env:"TELEGRAM_DEBUG" envDefault:"false"`
}

type RateLimitConfig struct {
	RequestsPerMinute int `env:"RATE_LIMIT_PER_MINUTE" envDefault:"10"`
}

type TracingConfig struct {
	Exporter string `env:"TRACING_EXPORTER" envDefault:"none"`
}

// Load подгружает .env файлы (отсутствующие пропускаются), затем читает окружение.
// Переменные, уже заданные в окружении, .env не перетирает.
func Load(envFiles ...string) (*Config, error) {
	if len(envFiles) == 0 {
		envFiles = []string{".env"}
	}
	for _, f := range envFiles {
		if err := godotenv.Load(f); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return nil, fmt.Errorf("load %s: %w", f, err)
		}
	}

	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	cfg.normalize()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func (c *Config) normalize() {
	c.LLM.Provider = strings.ToLower(strings.TrimSpace(c.LLM.Provider))
	c.Extract.Engine = strings.ToLower(strings.TrimSpace(c.Extract.Engine))
	c.Extract.Format = strings.ToLower(strings.TrimSpace(c.Extract.Format))
	c.Tracing.Exporter = strings.ToLower(strings.TrimSpace(c.Tracing.Exporter))

	providers := make([]string, 0, len(c.Search.Providers))
	for _, p := range c.Search.Providers {
		p = strings.ToLower(strings.TrimSpace(p))
		if p != "" && !slices.Contains(providers, p) {
			providers = append(providers, p)
		}
	}
	c.Search.Providers = providers
}

func (c *Config) Validate() error {
	if c.LLM.APIKey == "" {
		return ErrMissingAPIKey
	}
	if !slices.Contains(llmProviders, c.LLM.Provider) {
		return fmt.Errorf("%w: %q", ErrInvalidLLMProvider, c.LLM.Provider)
	}
	if len(c.Search.Providers) == 0 {
		return fmt.Errorf("%w: empty list", ErrInvalidProvider)
	}
	for _, p := range c.Search.Providers {
		if !slices.Contains(searchProviders, p) {
			return fmt.Errorf("%w: %q", ErrInvalidProvider, p)
		}
	}
	if c.Search.MaxResults <= 0 {
		return ErrInvalidMaxResults
	}
	if !slices.Contains(extractEngines, c.Extract.Engine) {
		return fmt.Errorf("%w: %q", ErrInvalidEngine, c.Extract.Engine)
	}
	if !slices.Contains(extractFormats, c.Extract.Format) {
		return fmt.Errorf("%w: %q", ErrInvalidFormat, c.Extract.Format)
	}
	if !slices.Contains(traceExporters, c.Tracing.Exporter) {
		return fmt.Errorf("%w: %q", ErrInvalidExporter, c.Tracing.Exporter)
	}
	return nil
}
