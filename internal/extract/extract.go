package extract

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	htmltomarkdown "github.com/JohannesKaufmann/html-to-markdown/v2"
	"github.com/PuerkitoBio/goquery"
	"github.com/go-shiori/go-readability"
	"github.com/markusmobius/go-trafilatura"
	"go.uber.org/zap"
	"golang.org/x/net/html"

	"github.com/kitbuilder587/askweb/internal/fetch"
	"github.com/kitbuilder587/askweb/internal/metrics"
)

type Engine string

const (
	EngineReadability Engine = "readability"
	EngineTrafilatura Engine = "trafilatura"
)

type Format string

const (
	FormatText     Format = "text"
	FormatMarkdown Format = "markdown"
)

var ErrUnsupportedContent = errors.New("unsupported content type")

type Config struct {
	Engine   Engine
	Format   Format
	MaxChars int
	// запасной разбор по <p>
	MinParagraphLen int
	MaxParagraphs   int
}

func (c *Config) setDefaults() {
	if c.Engine == "" {
		c.Engine = EngineReadability
	}
	if c.Format == "" {
		c.Format = FormatText
	}
	if c.MaxChars <= 0 {
		c.MaxChars = 3000
	}
	if c.MinParagraphLen <= 0 {
		c.MinParagraphLen = 50
	}
	if c.MaxParagraphs <= 0 {
		c.MaxParagraphs = 10
	}
}

type Extractor struct {
	fetcher *fetch.Client
	cfg     Config
	logger  *zap.Logger
	metrics *metrics.Metrics
}

func New(cfg Config, fetcher *fetch.Client, logger *zap.Logger, m *metrics.Metrics) *Extractor {
	cfg.setDefaults()
	return &Extractor{
		fetcher: fetcher,
		cfg:     cfg,
		logger:  logger,
		metrics: m,
	}
}

// Extract скачивает страницу и возвращает её основной текст, не длиннее MaxChars.
// false - страницу не удалось получить; пустая строка с true - получили, но текста нет.
func (e *Extractor) Extract(ctx context.Context, rawURL string) (string, bool) {
	start := time.Now()

	page, err := e.fetcher.Get(ctx, rawURL, nil)
	if err == nil && !isHTML(page.ContentType) {
		err = fmt.Errorf("%w: %s", ErrUnsupportedContent, page.ContentType)
	}
	if err != nil {
		e.record("fetch_error", start)
		e.logger.Warn("content fetch failed", zap.String("url", rawURL), zap.Error(err))
		return "", false
	}

	text, method := e.FromHTML(page.Body, page.URL)
	e.record(method, start)
	e.logger.Debug("content extracted",
		zap.String("url", rawURL),
		zap.String("method", method),
		zap.Int("length", len([]rune(text))),
	)
	return text, true
}

// FromHTML - структурное извлечение, при пустом результате - абзацы.
// Второе значение: каким способом получен текст (для метрик).
func (e *Extractor) FromHTML(body []byte, pageURL *url.URL) (string, string) {
	text, err := e.structured(body, pageURL)
	if err != nil {
		e.logger.Debug("structured extraction failed",
			zap.String("engine", string(e.cfg.Engine)),
			zap.Error(err),
		)
	}
	if text = strings.TrimSpace(truncate(text, e.cfg.MaxChars)); text != "" {
		return text, "success"
	}

	text = Paragraphs(body, e.cfg.MinParagraphLen, e.cfg.MaxParagraphs)
	text = strings.TrimSpace(truncate(text, e.cfg.MaxChars))
	if text == "" {
		return "", "empty"
	}
	return text, "fallback"
}

func (e *Extractor) structured(body []byte, pageURL *url.URL) (string, error) {
	switch e.cfg.Engine {
	case EngineTrafilatura:
		return e.withTrafilatura(body, pageURL)
	default:
		return e.withReadability(body, pageURL)
	}
}

func (e *Extractor) withReadability(body []byte, pageURL *url.URL) (string, error) {
	if pageURL == nil {
		pageURL = &url.URL{}
	}
	article, err := readability.FromReader(bytes.NewReader(body), pageURL)
	if err != nil {
		return "", fmt.Errorf("readability: %w", err)
	}

	if e.cfg.Format == FormatMarkdown && article.Content != "" {
		md, err := htmltomarkdown.ConvertString(article.Content)
		if err == nil {
			return md, nil
		}
		e.logger.Debug("markdown conversion failed", zap.Error(err))
	}
	return article.TextContent, nil
}

func (e *Extractor) withTrafilatura(body []byte, pageURL *url.URL) (string, error) {
	result, err := trafilatura.Extract(bytes.NewReader(body), trafilatura.Options{OriginalURL: pageURL})
	if err != nil {
		return "", fmt.Errorf("trafilatura: %w", err)
	}
	if result == nil {
		return "", nil
	}

	if e.cfg.Format == FormatMarkdown && result.ContentNode != nil {
		rendered, err := renderNode(result.ContentNode)
		if err == nil {
			if md, err := htmltomarkdown.ConvertString(rendered); err == nil {
				return md, nil
			}
		}
	}
	return result.ContentText, nil
}

// Paragraphs - наивный запасной вариант: первые max абзацев длиннее minLen, через перевод строки.
func Paragraphs(body []byte, minLen, max int) string {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return ""
	}

	var parts []string
	doc.Find("p").EachWithBreak(func(_ int, p *goquery.Selection) bool {
		if len(parts) >= max {
			return false
		}
		text := strings.TrimSpace(p.Text())
		if len([]rune(text)) > minLen {
			parts = append(parts, text)
		}
		return true
	})
	return strings.Join(parts, "\n")
}

func renderNode(n *html.Node) (string, error) {
	var buf bytes.Buffer
	if err := html.Render(&buf, n); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// пустой Content-Type пропускаем: сервер мог его не указать
func isHTML(contentType string) bool {
	if contentType == "" {
		return true
	}
	ct := strings.ToLower(contentType)
	return strings.Contains(ct, "html") || strings.Contains(ct, "xml") || strings.HasPrefix(ct, "text/")
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}

func (e *Extractor) record(status string, start time.Time) {
	if e.metrics != nil {
		e.metrics.RecordExtraction(string(e.cfg.Engine), status, time.Since(start))
	}
}
