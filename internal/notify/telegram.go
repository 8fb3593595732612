package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/wolfman30/cardio-intake/pkg/logging"
)

var ErrTelegramNotConfigured = errors.New("notify: telegram not configured")

// TelegramConfig holds Bot API settings.
type TelegramConfig struct {
	BotToken string
	ChatID   string
	// BaseURL overrides https://api.telegram.org.
	BaseURL  string
	Location *time.Location
}

// TelegramNotifier posts provider notifications to a Telegram chat.
type TelegramNotifier struct {
	cfg        TelegramConfig
	httpClient *http.Client
	logger     *logging.Logger
}

func NewTelegramNotifier(cfg TelegramConfig, httpClient *http.Client, logger *logging.Logger) *TelegramNotifier {
	if logger == nil {
		logger = logging.Default()
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 10 * time.Second}
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.telegram.org"
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	return &TelegramNotifier{cfg: cfg, httpClient: httpClient, logger: logger}
}

// Configured reports whether both the token and chat ID are set.
func (t *TelegramNotifier) Configured() bool {
	return t != nil && t.cfg.BotToken != "" && t.cfg.ChatID != ""
}

type sendMessageRequest struct {
	ChatID                string `json:"chat_id"`
	Text                  string `json:"text"`
	ParseMode             string `json:"parse_mode"`
	DisableWebPagePreview bool   `json:"disable_web_page_preview"`
}

type sendMessageResponse struct {
	OK          bool   `json:"ok"`
	Description string `json:"description"`
	Result      struct {
		MessageID int64 `json:"message_id"`
	} `json:"result"`
}

func (t *TelegramNotifier) NotifyProvider(ctx context.Context, n Notice) (Receipt, error) {
	if !t.Configured() {
		t.logger.Warn("telegram not configured, skipping provider notification")
		return Receipt{}, ErrTelegramNotConfigured
	}
	id, err := t.send(ctx, FormatTelegramHTML(n, t.cfg.Location))
	if err != nil {
		return Receipt{}, err
	}
	t.logger.Info("telegram notification sent", "message_id", id, "patient_id", n.Patient.ID)
	return Receipt{Channel: "telegram", MessageID: strconv.FormatInt(id, 10)}, nil
}

func (t *TelegramNotifier) send(ctx context.Context, text string) (int64, error) {
	body, err := json.Marshal(sendMessageRequest{
		ChatID:                t.cfg.ChatID,
		Text:                  text,
		ParseMode:             "HTML",
		DisableWebPagePreview: true,
	})
	if err != nil {
		return 0, fmt.Errorf("notify: marshal telegram request: %w", err)
	}

	url := fmt.Sprintf("%s/bot%s/sendMessage", t.cfg.BaseURL, t.cfg.BotToken)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return 0, fmt.Errorf("notify: build telegram request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := t.httpClient.Do(req)
	if err != nil {
		return 0, fmt.Errorf("notify: telegram send failed: %w", err)
	}
	defer resp.Body.Close()

	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	var parsed sendMessageResponse
	_ = json.Unmarshal(raw, &parsed)
	if resp.StatusCode != http.StatusOK || !parsed.OK {
		desc := parsed.Description
		if desc == "" {
			desc = strings.TrimSpace(string(raw))
		}
		t.logger.Error("telegram api returned error", "status", resp.StatusCode, "description", desc)
		return 0, fmt.Errorf("notify: telegram returned status %d: %s", resp.StatusCode, desc)
	}
	return parsed.Result.MessageID, nil
}
