package telegram

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"go.uber.org/zap"

	"github.com/kitbuilder587/askweb/internal/domain"
	"github.com/kitbuilder587/askweb/internal/metrics"
	"github.com/kitbuilder587/askweb/internal/ratelimit"
)

type sentMessage struct {
	ChatID int64
	Text   string
}

type recordingMessenger struct {
	mu      sync.Mutex
	sent    []sentMessage
	typing  int
	sendErr error
}

func (m *recordingMessenger) Send(chatID int64, text string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, sentMessage{ChatID: chatID, Text: text})
	return m.sendErr
}

func (m *recordingMessenger) SendTyping(chatID int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.typing++
}

func (m *recordingMessenger) texts() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, len(m.sent))
	for i, s := range m.sent {
		out[i] = s.Text
	}
	return out
}

type TrackingAnswerService struct {
	LastQuery string
	CallCount int
	Response  *domain.AnswerResponse
	Error     error
}

func (s *TrackingAnswerService) Answer(ctx context.Context, query string) (*domain.AnswerResponse, error) {
	s.CallCount++
	s.LastQuery = query

	if s.Error != nil {
		return nil, s.Error
	}
	if s.Response != nil {
		return s.Response, nil
	}
	return &domain.AnswerResponse{
		Query:          query,
		Answer:         "Mock answer",
		Sources:        []domain.SourceRef{},
		ProcessingTime: "0.01s",
	}, nil
}

func createTestHandler(answers *TrackingAnswerService, limit int) (*Handler, *recordingMessenger, *metrics.Metrics) {
	out := &recordingMessenger{}
	m := metrics.New(prometheus.NewRegistry())
	limiter := ratelimit.New(ratelimit.Config{RequestsPerMinute: limit})
	return NewHandler(out, answers, limiter, zap.NewNop(), m), out, m
}

func createTestMessage(userID int64, text string) *tgbotapi.Message {
	msg := &tgbotapi.Message{
		From: &tgbotapi.User{
			ID:       userID,
			UserName: "testuser",
		},
		Chat: &tgbotapi.Chat{
			ID: userID,
		},
		Text: text,
	}
	if strings.HasPrefix(text, "/") {
		cmd, _, _ := strings.Cut(text, " ")
		msg.Entities = []tgbotapi.MessageEntity{{Type: "bot_command", Offset: 0, Length: len(cmd)}}
	}
	return msg
}

func TestHandler_PlainText(t *testing.T) {
	answers := &TrackingAnswerService{}
	handler, out, _ := createTestHandler(answers, 100)

	handler.HandleMessage(context.Background(), createTestMessage(123, "какая столица Франции?"))

	if answers.CallCount != 1 {
		t.Errorf("CallCount = %d, want 1", answers.CallCount)
	}
	if answers.LastQuery != "какая столица Франции?" {
		t.Errorf("LastQuery = %q", answers.LastQuery)
	}
	if out.typing != 1 {
		t.Errorf("typing = %d, want 1", out.typing)
	}
	texts := out.texts()
	if len(texts) != 1 || !strings.Contains(texts[0], "Mock answer") {
		t.Errorf("sent = %v, want one message with the answer", texts)
	}
}

func TestHandler_AskCommand(t *testing.T) {
	tests := []struct {
		name string
		text string
		want string
	}{
		{"ask", "/ask когда вышла Sora 2?", "когда вышла Sora 2?"},
		{"ask with bot name", "/ask@askweb_bot capital of France", "capital of France"},
		{"extra spaces", "/ask   capital    of France ", "capital of France"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			answers := &TrackingAnswerService{}
			handler, _, _ := createTestHandler(answers, 100)

			handler.HandleMessage(context.Background(), createTestMessage(123, tt.text))

			if answers.CallCount != 1 {
				t.Fatalf("CallCount = %d, want 1", answers.CallCount)
			}
			if answers.LastQuery != tt.want {
				t.Errorf("LastQuery = %q, want %q", answers.LastQuery, tt.want)
			}
		})
	}
}

func TestHandler_AskWithoutQuestion(t *testing.T) {
	answers := &TrackingAnswerService{}
	handler, out, _ := createTestHandler(answers, 100)

	handler.HandleMessage(context.Background(), createTestMessage(123, "/ask"))

	if answers.CallCount != 0 {
		t.Errorf("CallCount = %d, want 0", answers.CallCount)
	}
	if texts := out.texts(); len(texts) != 1 || !strings.Contains(texts[0], "Укажите вопрос") {
		t.Errorf("sent = %v", texts)
	}
}

func TestHandler_Commands(t *testing.T) {
	tests := []struct {
		text string
		want string
	}{
		{"/start", "Привет!"},
		{"/help", "Доступные команды"},
		{"/unknown", "Неизвестная команда"},
	}

	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			answers := &TrackingAnswerService{}
			handler, out, _ := createTestHandler(answers, 100)

			handler.HandleMessage(context.Background(), createTestMessage(1, tt.text))

			if answers.CallCount != 0 {
				t.Errorf("command %s should not run a search", tt.text)
			}
			texts := out.texts()
			if len(texts) != 1 || !strings.Contains(texts[0], tt.want) {
				t.Errorf("sent = %v, want message containing %q", texts, tt.want)
			}
		})
	}
}

func TestHandler_RateLimit(t *testing.T) {
	answers := &TrackingAnswerService{}
	handler, out, m := createTestHandler(answers, 2)

	for i := 0; i < 3; i++ {
		handler.HandleMessage(context.Background(), createTestMessage(42, fmt.Sprintf("вопрос %d", i)))
	}
	// другой пользователь не затронут
	handler.HandleMessage(context.Background(), createTestMessage(43, "вопрос"))

	if answers.CallCount != 3 {
		t.Errorf("CallCount = %d, want 3", answers.CallCount)
	}
	texts := out.texts()
	if !strings.Contains(texts[2], "Слишком много запросов") {
		t.Errorf("third message = %q, want rate limit notice", texts[2])
	}
	if got := testutil.ToFloat64(m.RateLimitHitsTotal.WithLabelValues("telegram")); got != 1 {
		t.Errorf("rate limit hits = %v, want 1", got)
	}
}

func TestHandler_ServiceError(t *testing.T) {
	answers := &TrackingAnswerService{Error: domain.ErrEmptyQuery}
	handler, out, _ := createTestHandler(answers, 100)

	handler.HandleMessage(context.Background(), createTestMessage(1, "вопрос"))

	texts := out.texts()
	if len(texts) != 1 || texts[0] != "Пустой запрос. Введите ваш вопрос." {
		t.Errorf("sent = %v", texts)
	}
}

func TestHandler_LongAnswerSplit(t *testing.T) {
	answers := &TrackingAnswerService{Response: &domain.AnswerResponse{
		Answer:  strings.Repeat("Париж - столица Франции. ", 400),
		Sources: []domain.SourceRef{{Title: "Paris", URL: "https://en.wikipedia.org/wiki/Paris"}},
	}}
	handler, out, _ := createTestHandler(answers, 100)

	handler.HandleMessage(context.Background(), createTestMessage(1, "вопрос"))

	texts := out.texts()
	if len(texts) < 2 {
		t.Fatalf("expected answer to be split, got %d messages", len(texts))
	}
	for i, text := range texts {
		if len(text) > maxMessageLength {
			t.Errorf("message %d has %d bytes", i, len(text))
		}
	}
	if strings.Join(texts, "") != FormatAnswer(answers.Response) {
		t.Error("parts should add up to the formatted answer")
	}
}

type blockingAnswerService struct {
	hadDeadline bool
}

func (s *blockingAnswerService) Answer(ctx context.Context, query string) (*domain.AnswerResponse, error) {
	_, s.hadDeadline = ctx.Deadline()
	<-ctx.Done()
	return nil, fmt.Errorf("answer: %w", ctx.Err())
}

func TestHandler_RequestTimeout(t *testing.T) {
	answers := &blockingAnswerService{}
	out := &recordingMessenger{}
	limiter := ratelimit.New(ratelimit.Config{RequestsPerMinute: 10})
	handler := NewHandler(out, answers, limiter, zap.NewNop(), nil).WithRequestTimeout(20 * time.Millisecond)

	done := make(chan struct{})
	go func() {
		handler.HandleMessage(context.Background(), createTestMessage(1, "вопрос"))
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("handler did not honor the request timeout")
	}

	if !answers.hadDeadline {
		t.Error("Answer should receive a context with a deadline")
	}
	texts := out.texts()
	if len(texts) != 1 || texts[0] != "Поиск занял слишком много времени. Попробуйте позже." {
		t.Errorf("sent = %v", texts)
	}
}

func TestHandler_SendErrorDoesNotPanic(t *testing.T) {
	answers := &TrackingAnswerService{}
	handler, out, _ := createTestHandler(answers, 100)
	out.sendErr = errors.New("telegram is down")

	handler.HandleMessage(context.Background(), createTestMessage(1, "вопрос"))

	if answers.CallCount != 1 {
		t.Errorf("CallCount = %d, want 1", answers.CallCount)
	}
}

func TestHandler_IgnoresIncompleteMessages(t *testing.T) {
	answers := &TrackingAnswerService{}
	handler, out, _ := createTestHandler(answers, 100)

	handler.HandleMessage(context.Background(), nil)
	handler.HandleMessage(context.Background(), &tgbotapi.Message{Text: "no sender"})

	if answers.CallCount != 0 || len(out.texts()) != 0 {
		t.Error("incomplete messages should be ignored")
	}
}

func TestMapErrorToMessage(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"empty", domain.ErrEmptyQuery, "Пустой запрос. Введите ваш вопрос."},
		{"timeout", fmt.Errorf("answer: %w", context.DeadlineExceeded), "Поиск занял слишком много времени. Попробуйте позже."},
		{"unknown", errors.New("some random error"), "Произошла ошибка. Попробуйте позже."},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := mapErrorToMessage(tt.err)
			if got != tt.want {
				t.Errorf("mapErrorToMessage() = %v, want %v", got, tt.want)
			}
		})
	}
}
