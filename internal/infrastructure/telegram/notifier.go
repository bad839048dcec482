package telegram

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"SmartphoneRanker/internal/ports"
)

const defaultAPIBase = "https://api.telegram.org"

// errEntities marks a rejection of the message markup rather than the request.
var errEntities = errors.New("telegram rejected markdown entities")

// Notifier sends ranking digests to a Telegram chat via bot API.
type Notifier struct {
	botToken string
	chatID   string
	apiBase  string
	client   *http.Client
}

var _ ports.Notifier = (*Notifier)(nil)

// NewNotifier registers bot token and chat identifier. An empty apiBase uses
// the public Bot API host.
func NewNotifier(botToken, chatID, apiBase string) *Notifier {
	if apiBase == "" {
		apiBase = defaultAPIBase
	}
	return &Notifier{
		botToken: botToken,
		chatID:   chatID,
		apiBase:  strings.TrimRight(apiBase, "/"),
		client:   &http.Client{Timeout: 5 * time.Second},
	}
}

// Enabled reports whether both credentials are present.
func (n *Notifier) Enabled() bool {
	return n != nil && n.botToken != "" && n.chatID != ""
}

type digestMessage struct {
	ChatID                string `json:"chat_id"`
	Text                  string `json:"text"`
	ParseMode             string `json:"parse_mode,omitempty"`
	DisableWebPagePreview bool   `json:"disable_web_page_preview"`
	DisableNotification   bool   `json:"disable_notification"`
}

type apiResponse struct {
	OK          bool   `json:"ok"`
	ErrorCode   int    `json:"error_code"`
	Description string `json:"description"`
}

// PublishDigest posts the digest as Markdown. Product names can break the
// markup; when Telegram refuses to parse it the digest is resent as plain text.
// Empty digests are skipped.
func (n *Notifier) PublishDigest(ctx context.Context, digest string) error {
	if !n.Enabled() || n.client == nil {
		return fmt.Errorf("telegram notifier misconfigured")
	}
	if strings.TrimSpace(digest) == "" {
		return nil
	}

	msg := digestMessage{
		ChatID:                n.chatID,
		Text:                  digest,
		ParseMode:             "Markdown",
		DisableWebPagePreview: true,
		// Scheduled digests arrive hourly; they should not ping the chat.
		DisableNotification: true,
	}
	err := n.sendMessage(ctx, msg)
	if errors.Is(err, errEntities) {
		msg.ParseMode = ""
		msg.Text = stripMarkup(digest)
		err = n.sendMessage(ctx, msg)
	}
	return err
}

func (n *Notifier) sendMessage(ctx context.Context, msg digestMessage) error {
	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal message: %w", err)
	}

	endpoint := fmt.Sprintf("%s/bot%s/sendMessage", n.apiBase, n.botToken)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	var out apiResponse
	decodeErr := json.Unmarshal(raw, &out)

	if resp.StatusCode == http.StatusOK && (decodeErr != nil || out.OK) {
		return nil
	}
	if decodeErr != nil {
		return fmt.Errorf("telegram error: %s: %s", resp.Status, strings.TrimSpace(string(raw)))
	}
	if resp.StatusCode == http.StatusBadRequest && strings.Contains(out.Description, "can't parse entities") {
		return fmt.Errorf("%w: %s", errEntities, out.Description)
	}
	return fmt.Errorf("telegram error %d: %s", out.ErrorCode, out.Description)
}

var markupReplacer = strings.NewReplacer("*", "", "_", "", "`", "")

func stripMarkup(text string) string {
	return markupReplacer.Replace(text)
}
