package main

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/kitbuilder587/askweb/internal/config"
	"github.com/kitbuilder587/askweb/internal/extract"
	"github.com/kitbuilder587/askweb/internal/fetch"
	"github.com/kitbuilder587/askweb/internal/llm"
	"github.com/kitbuilder587/askweb/internal/llm/chat"
	"github.com/kitbuilder587/askweb/internal/llm/openai"
	"github.com/kitbuilder587/askweb/internal/metrics"
	"github.com/kitbuilder587/askweb/internal/scraper"
	"github.com/kitbuilder587/askweb/internal/search"
	"github.com/kitbuilder587/askweb/internal/search/bing"
	"github.com/kitbuilder587/askweb/internal/search/browser"
	"github.com/kitbuilder587/askweb/internal/search/duckduckgo"
	"github.com/kitbuilder587/askweb/internal/search/serpapi"
	"github.com/kitbuilder587/askweb/internal/search/tavily"
	"github.com/kitbuilder587/askweb/internal/service"
)

func buildAnswerService(cfg *config.Config, logger *zap.Logger, m *metrics.Metrics) (service.AnswerService, error) {
	client, err := buildLLM(cfg.LLM, logger, m)
	if err != nil {
		return nil, err
	}

	scr := scraper.New(scraper.Config{
		Interpreter: cfg.Scraper.PythonPath,
		Script:      cfg.Scraper.ScriptPath,
		Timeout:     cfg.Scraper.Timeout,
		MaxChars:    cfg.Extract.MaxChars,
	}, logger.Named("scraper"))

	providers, err := buildProviders(cfg.Search, scr, logger)
	if err != nil {
		return nil, err
	}

	orchestrator := search.NewOrchestrator(providers, cfg.Search.MaxResults, logger.Named("search"), m)
	logger.Info("search providers configured", zap.Strings("providers", orchestrator.Providers()))

	return service.NewAnswerService(service.AnswerServiceDeps{
		Optimizer: service.NewQueryOptimizer(client, service.OptimizerConfig{
			MaxAttempts: cfg.Optimizer.MaxAttempts,
			RetryDelay:  cfg.Optimizer.RetryDelay,
		}, logger.Named("optimizer"), m),
		Search:      orchestrator,
		Extractor:   buildExtractor(cfg.Extract, scr, logger, m),
		Summarizer:  service.NewPageSummarizer(client, logger.Named("summarizer")),
		Synthesizer: service.NewAnswerSynthesizer(client, logger.Named("synthesizer")),
		Pacer:       service.FixedDelay{Delay: cfg.RequestDelay},
		Logger:      logger.Named("answer"),
		Metrics:     m,
		Config: service.AnswerConfig{
			MaxResults:       cfg.Search.MaxResults,
			MinContentLength: cfg.Extract.MinContentLength,
		},
	}), nil
}

func buildLLM(cfg config.LLMConfig, logger *zap.Logger, m *metrics.Metrics) (llm.Client, error) {
	params := llm.Params{
		MaxTokens:   cfg.MaxTokens,
		Temperature: cfg.Temperature,
		TopP:        cfg.TopP,
	}

	var base llm.Client
	switch cfg.Provider {
	case "chat":
		base = chat.New(chat.Config{
			APIKey:  cfg.APIKey,
			Model:   cfg.Model,
			BaseURL: cfg.BaseURL,
			Timeout: cfg.Timeout,
			Params:  params,
		}, logger.Named("llm"))
	case "openai":
		base = openai.New(openai.Config{
			APIKey:  cfg.APIKey,
			Model:   cfg.Model,
			BaseURL: cfg.BaseURL,
			Timeout: cfg.Timeout,
			Params:  params,
		}, logger.Named("llm"))
	default:
		return nil, fmt.Errorf("%w: %q", config.ErrInvalidLLMProvider, cfg.Provider)
	}

	return llm.NewRetryClient(base, llm.RetryConfig{
		MaxAttempts: cfg.MaxAttempts,
		BaseDelay:   cfg.RetryDelay,
		Provider:    cfg.Provider,
	}, logger.Named("llm"), m), nil
}

// buildProviders собирает провайдеры в порядке SEARCH_PROVIDERS.
func buildProviders(cfg config.SearchConfig, scr *scraper.Client, logger *zap.Logger) ([]search.Provider, error) {
	fetcher := fetch.New(fetch.Config{Timeout: cfg.Timeout})

	providers := make([]search.Provider, 0, len(cfg.Providers))
	for _, name := range cfg.Providers {
		var p search.Provider
		switch name {
		case "duckduckgo":
			p = duckduckgo.New(duckduckgo.Config{}, fetcher, logger.Named("duckduckgo"))
		case "bing":
			p = bing.New(bing.Config{}, fetcher, logger.Named("bing"))
		case "serpapi":
			p = serpapi.New(serpapi.Config{APIKey: cfg.SerpAPIKey, Timeout: cfg.Timeout}, logger.Named("serpapi"))
		case "tavily":
			p = tavily.New(tavily.Config{APIKey: cfg.TavilyAPIKey, Timeout: cfg.Timeout}, logger.Named("tavily"))
		case "scraper":
			p = scr
		case "browser":
			p = browser.New(browser.Config{
				ExecPath: cfg.BrowserExecPath,
				ProxyURL: cfg.BrowserProxyURL,
				Timeout:  3 * cfg.Timeout,
				// один UA на сессию браузера
				UserAgent: fetcher.UserAgent(),
			}, logger.Named("browser"))
		default:
			return nil, fmt.Errorf("%w: %q", config.ErrInvalidProvider, name)
		}
		providers = append(providers, p)
	}
	return providers, nil
}

func buildExtractor(cfg config.ExtractConfig, scr *scraper.Client, logger *zap.Logger, m *metrics.Metrics) service.ContentExtractor {
	if cfg.Engine == "scraper" {
		return scr
	}

	fetcher := fetch.New(fetch.Config{
		Timeout:      cfg.Timeout,
		MaxRedirects: cfg.MaxRedirects,
	})
	return extract.New(extract.Config{
		Engine:   extract.Engine(cfg.Engine),
		Format:   extract.Format(cfg.Format),
		MaxChars: cfg.MaxChars,
	}, fetcher, logger.Named("extract"), m)
}
