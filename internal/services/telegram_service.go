package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"html"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"
)

const telegramAPIBase = "https://api.telegram.org"

// TelegramService posts admin alerts to a Telegram chat.
type TelegramService struct {
	botToken    string
	adminChatID string
	baseURL     string
	client      *http.Client
	log         *zap.Logger
}

// NewTelegramService creates a new TelegramService.
func NewTelegramService(botToken, adminChatID string, log *zap.Logger) *TelegramService {
	if log == nil {
		log = zap.NewNop()
	}
	return &TelegramService{
		botToken:    botToken,
		adminChatID: adminChatID,
		baseURL:     telegramAPIBase,
		client:      &http.Client{Timeout: 15 * time.Second},
		log:         log,
	}
}

type telegramMessage struct {
	ChatID    string `json:"chat_id"`
	Text      string `json:"text"`
	ParseMode string `json:"parse_mode"`
}

// SendMessage posts text to chatID.
func (s *TelegramService) SendMessage(ctx context.Context, chatID, text string) error {
	if s.botToken == "" {
		s.log.Debug("telegram bot token not configured")
		return nil
	}

	body, err := json.Marshal(telegramMessage{
		ChatID:    chatID,
		Text:      text,
		ParseMode: "HTML",
	})
	if err != nil {
		return err
	}

	url := fmt.Sprintf("%s/bot%s/sendMessage", s.baseURL, s.botToken)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("telegram returned status %d", resp.StatusCode)
	}

	return nil
}

// Send implements Notifier. An empty recipient means the admin chat.
func (s *TelegramService) Send(ctx context.Context, kind NotificationKind, recipient string, payload Payload) Result {
	chatID := recipient
	if chatID == "" {
		chatID = s.adminChatID
	}
	if chatID == "" {
		s.log.Debug("telegram admin chat not configured")
		return Result{Success: true}
	}

	if err := s.SendMessage(ctx, chatID, formatAlert(kind, payload)); err != nil {
		return Result{Err: fmt.Errorf("telegram %s: %w", kind, err)}
	}
	return Result{Success: true}
}

func formatAlert(kind NotificationKind, p Payload) string {
	var b strings.Builder
	title := p["title"]
	if title == "" {
		title = strings.ToUpper(strings.ReplaceAll(string(kind), "_", " "))
	}
	fmt.Fprintf(&b, "<b>%s</b>\n", html.EscapeString(title))
	for _, key := range []string{"name", "email", "role", "company", "message"} {
		if v := p[key]; v != "" {
			fmt.Fprintf(&b, "<b>%s:</b> %s\n", key, html.EscapeString(v))
		}
	}
	b.WriteString("━━━━━━━━━━━━━━━━━━")
	return b.String()
}
