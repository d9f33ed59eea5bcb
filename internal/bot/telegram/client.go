// Package telegram is a minimal Telegram Bot API client: long-poll updates
// in, text and audio messages out.
package telegram

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/italolelis/trackbot/internal/logctx"
)

const defaultBaseURL = "https://api.telegram.org"

// MaxAudioSize is the Bot API payload ceiling for uploaded files.
const MaxAudioSize = 50 * 1024 * 1024

// Chat actions understood by sendChatAction.
const (
	ActionUploadVoice = "upload_voice"
	ActionTyping      = "typing"
)

// Update is one inbound event from getUpdates.
type Update struct {
	UpdateID int64    `json:"update_id"`
	Message  *Message `json:"message"`
}

type Message struct {
	MessageID int64  `json:"message_id"`
	From      *User  `json:"from"`
	Chat      Chat   `json:"chat"`
	Text      string `json:"text"`
}

type User struct {
	ID        int64  `json:"id"`
	Username  string `json:"username"`
	FirstName string `json:"first_name"`
}

type Chat struct {
	ID int64 `json:"id"`
}

// APIError is a Bot API rejection or transport-level failure.
type APIError struct {
	Method      string // The API method that failed
	StatusCode  int    // HTTP status code, if applicable
	Description string // Error description from the API
}

func (e *APIError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("telegram %s failed (HTTP %d): %s", e.Method, e.StatusCode, e.Description)
	}

	return fmt.Sprintf("telegram %s failed: %s", e.Method, e.Description)
}

// Timeouts are the per-call budgets for the three kinds of API traffic.
type Timeouts struct {
	// Message covers text sends, deletes and chat actions.
	Message time.Duration
	// Upload covers audio uploads, which can take minutes on slow links.
	Upload time.Duration
	// PollSlack is added on top of the long-poll window.
	PollSlack time.Duration
}

func DefaultTimeouts() Timeouts {
	return Timeouts{
		Message:   30 * time.Second,
		Upload:    300 * time.Second,
		PollSlack: 10 * time.Second,
	}
}

type Client struct {
	baseURL    string
	token      string
	timeouts   Timeouts
	httpClient *http.Client
}

type Option func(*Client)

// WithBaseURL overrides the API host, used in tests.
func WithBaseURL(u string) Option {
	return func(c *Client) { c.baseURL = u }
}

// WithTimeouts overrides the per-call timeout budgets.
func WithTimeouts(t Timeouts) Option {
	return func(c *Client) { c.timeouts = t }
}

func NewClient(token string, opts ...Option) *Client {
	c := &Client{
		baseURL:  defaultBaseURL,
		token:    token,
		timeouts: DefaultTimeouts(),
		// Per-call deadlines come from contexts; a client-level timeout
		// would cap the long poll.
		httpClient: &http.Client{},
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// GetMe verifies the token against the API. Used at startup so a bad token
// fails fast instead of silently polling nothing.
func (c *Client) GetMe(ctx context.Context) (User, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeouts.Message)
	defer cancel()

	var me User
	if err := c.postJSON(ctx, "getMe", nil, &me); err != nil {
		return User{}, err
	}

	return me, nil
}

// GetUpdates long-polls for new updates after the given offset.
func (c *Client) GetUpdates(ctx context.Context, offset int64, pollTimeout time.Duration) ([]Update, error) {
	ctx, cancel := context.WithTimeout(ctx, pollTimeout+c.timeouts.PollSlack)
	defer cancel()

	params := map[string]any{
		"offset":          offset,
		"timeout":         int(pollTimeout.Seconds()),
		"allowed_updates": []string{"message"},
	}

	var updates []Update
	if err := c.postJSON(ctx, "getUpdates", params, &updates); err != nil {
		return nil, err
	}

	return updates, nil
}

// SendMessage sends a plain-text reply and returns the sent message, so
// transient status messages can be deleted later.
func (c *Client) SendMessage(ctx context.Context, chatID int64, text string) (Message, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeouts.Message)
	defer cancel()

	params := map[string]any{
		"chat_id": chatID,
		"text":    text,
	}

	var msg Message
	if err := c.postJSON(ctx, "sendMessage", params, &msg); err != nil {
		return Message{}, err
	}

	return msg, nil
}

// DeleteMessage removes a previously sent message.
func (c *Client) DeleteMessage(ctx context.Context, chatID, messageID int64) error {
	ctx, cancel := context.WithTimeout(ctx, c.timeouts.Message)
	defer cancel()

	params := map[string]any{
		"chat_id":    chatID,
		"message_id": messageID,
	}

	return c.postJSON(ctx, "deleteMessage", params, nil)
}

// SendChatAction shows a transient "bot is busy" indicator in the chat.
func (c *Client) SendChatAction(ctx context.Context, chatID int64, action string) error {
	ctx, cancel := context.WithTimeout(ctx, c.timeouts.Message)
	defer cancel()

	params := map[string]any{
		"chat_id": chatID,
		"action":  action,
	}

	return c.postJSON(ctx, "sendChatAction", params, nil)
}

// Audio describes one audio upload.
type Audio struct {
	ChatID        int64
	FilePath      string
	Title         string
	Performer     string
	ThumbnailPath string
	// Duration in whole seconds.
	Duration int
}

// SendAudio uploads an audio file with its metadata as a multipart request.
func (c *Client) SendAudio(ctx context.Context, audio Audio) error {
	ctx, cancel := context.WithTimeout(ctx, c.timeouts.Upload)
	defer cancel()

	body := &bytes.Buffer{}
	w := multipart.NewWriter(body)

	fields := map[string]string{
		"chat_id":   strconv.FormatInt(audio.ChatID, 10),
		"title":     audio.Title,
		"performer": audio.Performer,
	}

	if audio.Duration > 0 {
		fields["duration"] = strconv.Itoa(audio.Duration)
	}

	for name, value := range fields {
		if value == "" {
			continue
		}

		if err := w.WriteField(name, value); err != nil {
			return fmt.Errorf("failed to write field %s: %w", name, err)
		}
	}

	if err := attachFile(w, "audio", audio.FilePath); err != nil {
		return err
	}

	if audio.ThumbnailPath != "" {
		if err := attachFile(w, "thumbnail", audio.ThumbnailPath); err != nil {
			return err
		}
	}

	if err := w.Close(); err != nil {
		return fmt.Errorf("failed to finalize multipart body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.methodURL("sendAudio"), body)
	if err != nil {
		return fmt.Errorf("failed to build sendAudio request: %w", err)
	}

	req.Header.Set("Content-Type", w.FormDataContentType())

	return c.do(req, "sendAudio", nil)
}

func attachFile(w *multipart.Writer, field, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open %s file: %w", field, err)
	}
	defer f.Close()

	part, err := w.CreateFormFile(field, filepath.Base(path))
	if err != nil {
		return fmt.Errorf("failed to create %s form file: %w", field, err)
	}

	if _, err := io.Copy(part, f); err != nil {
		return fmt.Errorf("failed to copy %s file: %w", field, err)
	}

	return nil
}

func (c *Client) methodURL(method string) string {
	return fmt.Sprintf("%s/bot%s/%s", c.baseURL, c.token, method)
}

func (c *Client) postJSON(ctx context.Context, method string, params map[string]any, result any) error {
	var body io.Reader

	if params != nil {
		encoded, err := json.Marshal(params)
		if err != nil {
			return fmt.Errorf("failed to marshal %s params: %w", method, err)
		}

		body = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.methodURL(method), body)
	if err != nil {
		return fmt.Errorf("failed to build %s request: %w", method, err)
	}

	req.Header.Set("Content-Type", "application/json")

	return c.do(req, method, result)
}

type apiResponse struct {
	OK          bool            `json:"ok"`
	Result      json.RawMessage `json:"result"`
	Description string          `json:"description"`
}

func (c *Client) do(req *http.Request, method string, result any) error {
	logger := logctx.LoggerFromContext(req.Context())

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return &APIError{Method: method, Description: err.Error()}
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return &APIError{Method: method, StatusCode: resp.StatusCode, Description: err.Error()}
	}

	var api apiResponse
	if err := json.Unmarshal(data, &api); err != nil {
		return &APIError{Method: method, StatusCode: resp.StatusCode, Description: "malformed API response"}
	}

	if !api.OK {
		logger.Debug("telegram API rejected call", "method", method, "description", api.Description)

		return &APIError{Method: method, StatusCode: resp.StatusCode, Description: api.Description}
	}

	if result != nil {
		if err := json.Unmarshal(api.Result, result); err != nil {
			return &APIError{Method: method, StatusCode: resp.StatusCode, Description: "malformed API result"}
		}
	}

	return nil
}
