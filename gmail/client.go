// Package gmail adapts the Gmail REST API to the pipeline. The caller
// supplies an authenticated *http.Client (credential and token handling
// stay outside); this package only speaks the message endpoints.
package gmail

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/ragmesh/ragmesh/logging"
)

const defaultBaseURL = "https://gmail.googleapis.com/gmail/v1"

// ClientOptions configure the Gmail client.
type ClientOptions struct {
	// BaseURL of the Gmail API. Defaults to the public endpoint.
	BaseURL string

	// UserID is the mailbox to operate on. Defaults to "me".
	UserID string

	// Logger receives request events. Defaults to NoOpLogger.
	Logger logging.Logger
}

// Client is a minimal Gmail API client covering the message endpoints the
// pipeline needs.
type Client struct {
	httpClient *http.Client
	opts       ClientOptions
}

// NewClient wraps an authenticated HTTP client.
func NewClient(httpClient *http.Client, optFns ...func(o *ClientOptions)) *Client {
	opts := ClientOptions{BaseURL: defaultBaseURL, UserID: "me", Logger: logging.NoOpLogger{}}
	for _, fn := range optFns {
		fn(&opts)
	}
	return &Client{httpClient: httpClient, opts: opts}
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var payload io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		payload = bytes.NewReader(data)
	}
	url := strings.TrimRight(c.opts.BaseURL, "/") + "/users/" + c.opts.UserID + path
	req, err := http.NewRequestWithContext(ctx, method, url, payload)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("gmail request: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read gmail response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("gmail %s %s: status %d: %s", method, path, resp.StatusCode, strings.TrimSpace(string(data)))
	}
	if out != nil {
		if err := json.Unmarshal(data, out); err != nil {
			return fmt.Errorf("decode gmail response: %w", err)
		}
	}
	return nil
}

// Header is one RFC 822 header of a message payload.
type Header struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// MessagePart is one MIME part of a message payload.
type MessagePart struct {
	MimeType string        `json:"mimeType"`
	Filename string        `json:"filename"`
	Headers  []Header      `json:"headers"`
	Body     PartBody      `json:"body"`
	Parts    []MessagePart `json:"parts"`
}

// PartBody carries base64url-encoded part content.
type PartBody struct {
	Size int    `json:"size"`
	Data string `json:"data"`
}

// Message is a Gmail message resource.
type Message struct {
	ID       string      `json:"id"`
	ThreadID string      `json:"threadId"`
	Snippet  string      `json:"snippet"`
	Payload  MessagePart `json:"payload"`
}

// Header returns the named payload header, case-insensitively.
func (m Message) Header(name string) string {
	for _, h := range m.Payload.Headers {
		if strings.EqualFold(h.Name, name) {
			return h.Value
		}
	}
	return ""
}

type listResponse struct {
	Messages []struct {
		ID       string `json:"id"`
		ThreadID string `json:"threadId"`
	} `json:"messages"`
}

// ListMessages returns the ids of messages matching the Gmail search query.
func (c *Client) ListMessages(ctx context.Context, query string, maxResults int) ([]string, error) {
	params := url.Values{}
	if query != "" {
		params.Set("q", query)
	}
	if maxResults > 0 {
		params.Set("maxResults", strconv.Itoa(maxResults))
	}
	var resp listResponse
	if err := c.do(ctx, http.MethodGet, "/messages?"+params.Encode(), nil, &resp); err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(resp.Messages))
	for _, m := range resp.Messages {
		ids = append(ids, m.ID)
	}
	return ids, nil
}

// GetMessage fetches one message in full format.
func (c *Client) GetMessage(ctx context.Context, id string) (Message, error) {
	var msg Message
	if err := c.do(ctx, http.MethodGet, "/messages/"+id+"?format=full", nil, &msg); err != nil {
		return Message{}, err
	}
	return msg, nil
}

type sendRequest struct {
	Raw      string `json:"raw"`
	ThreadID string `json:"threadId,omitempty"`
}

type sendResponse struct {
	ID       string `json:"id"`
	ThreadID string `json:"threadId"`
}

// SendRaw sends a base64url-encoded RFC 822 message. A non-empty threadID
// attaches the message to an existing thread.
func (c *Client) SendRaw(ctx context.Context, raw, threadID string) (string, error) {
	var resp sendResponse
	err := c.do(ctx, http.MethodPost, "/messages/send", sendRequest{Raw: raw, ThreadID: threadID}, &resp)
	if err != nil {
		return "", err
	}
	c.opts.Logger.Debug("gmail message sent", "id", resp.ID, "thread_id", resp.ThreadID)
	return resp.ID, nil
}

type modifyRequest struct {
	RemoveLabelIDs []string `json:"removeLabelIds,omitempty"`
	AddLabelIDs    []string `json:"addLabelIds,omitempty"`
}

// MarkRead removes the UNREAD label so a polled message is not picked up
// again.
func (c *Client) MarkRead(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodPost, "/messages/"+id+"/modify", modifyRequest{RemoveLabelIDs: []string{"UNREAD"}}, nil)
}
