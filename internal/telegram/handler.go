package telegram

import (
	"context"
	"errors"
	"strconv"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"github.com/kitbuilder587/askweb/internal/domain"
	"github.com/kitbuilder587/askweb/internal/metrics"
	"github.com/kitbuilder587/askweb/internal/ratelimit"
	"github.com/kitbuilder587/askweb/internal/service"
)

// лимит телеграма на длину сообщения
const maxMessageLength = 4096

// Messenger - то, чем хендлер отвечает пользователю. В проде это *Bot.
type Messenger interface {
	Send(chatID int64, text string) error
	SendTyping(chatID int64)
}

type Handler struct {
	out     Messenger
	answers service.AnswerService
	limiter *ratelimit.Limiter
	logger  *zap.Logger
	metrics *metrics.Metrics
	// 0 - без дедлайна
	timeout time.Duration
}

func NewHandler(out Messenger, answers service.AnswerService, limiter *ratelimit.Limiter, logger *zap.Logger, m *metrics.Metrics) *Handler {
	return &Handler{
		out:     out,
		answers: answers,
		limiter: limiter,
		logger:  logger,
		metrics: m,
	}
}

// WithRequestTimeout ограничивает время одного ответа, как REQUEST_TIMEOUT у HTTP API.
func (h *Handler) WithRequestTimeout(d time.Duration) *Handler {
	h.timeout = d
	return h
}

func (h *Handler) HandleMessage(ctx context.Context, msg *tgbotapi.Message) {
	if msg == nil || msg.From == nil || msg.Chat == nil {
		return
	}

	h.logger.Info("received message",
		zap.Int64("user_id", msg.From.ID),
		zap.String("username", msg.From.UserName),
		zap.Bool("is_command", msg.IsCommand()),
	)

	question, isQuery := ParseQuestion(msg.Text)
	if isQuery {
		h.handleQuery(ctx, msg, question)
		return
	}

	switch msg.Command() {
	case "start":
		h.send(msg.Chat.ID, startText)
	case "help":
		h.send(msg.Chat.ID, helpText)
	default:
		h.send(msg.Chat.ID, "Неизвестная команда. Используйте /help для справки.")
	}
}

const startText = `Привет! Я ищу ответы в интернете.

Отправьте вопрос обычным сообщением или командой /ask, а я найду страницы, прочитаю их и соберу короткий ответ со ссылками.

Используйте /help для справки.`

const helpText = `<b>Доступные команды:</b>

/start - Приветствие
/help - Показать эту справку
/ask вопрос - Найти ответ в интернете

<b>Как использовать:</b>
Просто отправьте вопрос. Поиск занимает до пары минут: каждую страницу нужно скачать и прочитать.

<b>Примеры:</b>
• Какая столица Франции?
• /ask когда вышла Sora 2?`

func (h *Handler) handleQuery(ctx context.Context, msg *tgbotapi.Message, question string) {
	if question == "" {
		h.send(msg.Chat.ID, "Укажите вопрос: /ask какая столица Франции?")
		return
	}

	key := strconv.FormatInt(msg.From.ID, 10)
	if h.limiter != nil && !h.limiter.Allow(key) {
		h.logger.Warn("rate limit exceeded",
			zap.Int64("user_id", msg.From.ID),
			zap.Time("reset_at", h.limiter.ResetTime(key)),
		)
		if h.metrics != nil {
			h.metrics.RecordRateLimitHit("telegram")
		}
		h.send(msg.Chat.ID, "Слишком много запросов. Пожалуйста, подождите минуту.")
		return
	}

	h.out.SendTyping(msg.Chat.ID)

	if h.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, h.timeout)
		defer cancel()
	}

	resp, err := h.answers.Answer(ctx, question)
	if err != nil {
		h.logger.Error("query processing failed",
			zap.Error(err),
			zap.Int64("user_id", msg.From.ID),
		)
		h.send(msg.Chat.ID, mapErrorToMessage(err))
		return
	}

	for _, part := range SplitMessage(FormatAnswer(resp), maxMessageLength) {
		h.send(msg.Chat.ID, part)
	}
}

func (h *Handler) send(chatID int64, text string) {
	if err := h.out.Send(chatID, text); err != nil {
		h.logger.Error("failed to send message", zap.Int64("chat_id", chatID), zap.Error(err))
	}
}

func mapErrorToMessage(err error) string {
	switch {
	case errors.Is(err, domain.ErrEmptyQuery):
		return "Пустой запрос. Введите ваш вопрос."
	case errors.Is(err, context.DeadlineExceeded):
		return "Поиск занял слишком много времени. Попробуйте позже."
	default:
		return "Произошла ошибка. Попробуйте позже."
	}
}
