// Package telegram adapts the Telegram Bot API to the pipeline: a long-poll
// trigger loop on one side and a core.DeliveryChannel on the other. The
// client speaks the HTTP API directly.
package telegram

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/ragmesh/ragmesh/logging"
)

const defaultBaseURL = "https://api.telegram.org"

// ClientOptions configure the Bot API client.
type ClientOptions struct {
	// BaseURL of the Bot API. Defaults to the public endpoint; tests
	// point it at a local server.
	BaseURL string

	// HTTPClient defaults to a client with a timeout above the long-poll
	// window.
	HTTPClient *http.Client

	// Logger receives request events. Defaults to NoOpLogger.
	Logger logging.Logger
}

// Client is a minimal Telegram Bot API client covering the methods the
// pipeline needs.
type Client struct {
	token  string
	opts   ClientOptions
	client *http.Client
}

// NewClient creates a Bot API client authenticated by token.
func NewClient(token string, optFns ...func(o *ClientOptions)) *Client {
	opts := ClientOptions{BaseURL: defaultBaseURL, Logger: logging.NoOpLogger{}}
	for _, fn := range optFns {
		fn(&opts)
	}
	client := opts.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: 90 * time.Second}
	}
	return &Client{token: token, opts: opts, client: client}
}

// apiResponse is the Bot API envelope common to every method.
type apiResponse struct {
	OK          bool            `json:"ok"`
	Result      json.RawMessage `json:"result"`
	Description string          `json:"description"`
	ErrorCode   int             `json:"error_code"`
}

func (c *Client) call(ctx context.Context, method string, params, out any) error {
	data, err := json.Marshal(params)
	if err != nil {
		return fmt.Errorf("encode %s params: %w", method, err)
	}
	url := strings.TrimRight(c.opts.BaseURL, "/") + "/bot" + c.token + "/" + method
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("build %s request: %w", method, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("telegram %s: %w", method, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read %s response: %w", method, err)
	}
	var envelope apiResponse
	if err := json.Unmarshal(body, &envelope); err != nil {
		return fmt.Errorf("decode %s response: %w", method, err)
	}
	if !envelope.OK {
		return fmt.Errorf("telegram %s: api error %d: %s", method, envelope.ErrorCode, envelope.Description)
	}
	if out != nil {
		if err := json.Unmarshal(envelope.Result, out); err != nil {
			return fmt.Errorf("decode %s result: %w", method, err)
		}
	}
	return nil
}

// User is a Telegram user or bot.
type User struct {
	ID       int64  `json:"id"`
	Username string `json:"username"`
}

// Chat identifies the conversation a message belongs to.
type Chat struct {
	ID   int64  `json:"id"`
	Type string `json:"type"`
}

// Document is a generic file attached to a message.
type Document struct {
	FileName string `json:"file_name"`
	MimeType string `json:"mime_type"`
	FileSize int64  `json:"file_size"`
}

// Message is an inbound Telegram message. Only the fields the pipeline
// inspects are modeled; the full update rides along as record payload.
type Message struct {
	MessageID int64     `json:"message_id"`
	From      *User     `json:"from"`
	Chat      Chat      `json:"chat"`
	Date      int64     `json:"date"`
	Text      string    `json:"text"`
	Caption   string    `json:"caption"`
	Document  *Document `json:"document"`
}

// Update is one getUpdates element.
type Update struct {
	UpdateID int64    `json:"update_id"`
	Message  *Message `json:"message"`
}

type getUpdatesParams struct {
	Offset  int64 `json:"offset,omitempty"`
	Timeout int   `json:"timeout,omitempty"`
}

// GetUpdates long-polls for new updates starting at offset. timeout is the
// server-side poll window in seconds; zero returns immediately.
func (c *Client) GetUpdates(ctx context.Context, offset int64, timeout int) ([]Update, error) {
	var updates []Update
	err := c.call(ctx, "getUpdates", getUpdatesParams{Offset: offset, Timeout: timeout}, &updates)
	if err != nil {
		return nil, err
	}
	return updates, nil
}

type sendMessageParams struct {
	ChatID int64  `json:"chat_id"`
	Text   string `json:"text"`
}

// SendMessage sends text to the chat.
func (c *Client) SendMessage(ctx context.Context, chatID int64, text string) error {
	if err := c.call(ctx, "sendMessage", sendMessageParams{ChatID: chatID, Text: text}, nil); err != nil {
		return err
	}
	c.opts.Logger.Debug("telegram message sent", "chat_id", chatID, "length", len(text))
	return nil
}

type sendChatActionParams struct {
	ChatID int64  `json:"chat_id"`
	Action string `json:"action"`
}

// SendTyping shows the typing indicator in the chat. Failures are not
// fatal to a send; callers typically log and move on.
func (c *Client) SendTyping(ctx context.Context, chatID int64) error {
	return c.call(ctx, "sendChatAction", sendChatActionParams{ChatID: chatID, Action: "typing"}, nil)
}
