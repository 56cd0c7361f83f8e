package telegram

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

const (
	apiBaseURL = "https://api.telegram.org/bot"
	timeout    = 10 * time.Second
)

// ErrBlocked signals that the recipient has blocked the bot. The dispatcher
// skips such subscribers instead of treating the send as a transport
// failure.
var ErrBlocked = errors.New("recipient has blocked the bot")

// Client is a Telegram Bot API client.
type Client struct {
	botToken   string
	baseURL    string
	httpClient *http.Client
}

// NewClient creates a new Telegram client.
func NewClient(botToken string) (*Client, error) {
	if botToken == "" {
		return nil, fmt.Errorf("bot token is required")
	}

	return &Client{
		botToken: botToken,
		baseURL:  apiBaseURL,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}, nil
}

// SendMessage sends a Markdown-formatted text message to a chat.
func (c *Client) SendMessage(ctx context.Context, chatID int64, text string) error {
	if text == "" {
		return fmt.Errorf("message text is required")
	}

	payload := map[string]interface{}{
		"chat_id":                  chatID,
		"text":                     text,
		"parse_mode":               "Markdown",
		"disable_web_page_preview": true,
	}

	jsonData, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshaling payload: %w", err)
	}

	return c.post(ctx, "sendMessage", "application/json", bytes.NewReader(jsonData))
}

// SendPhoto uploads the image at path to a chat.
func (c *Client) SendPhoto(ctx context.Context, chatID int64, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("opening photo: %w", err)
	}
	defer f.Close()

	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	if err := writer.WriteField("chat_id", strconv.FormatInt(chatID, 10)); err != nil {
		return fmt.Errorf("building photo request: %w", err)
	}
	part, err := writer.CreateFormFile("photo", filepath.Base(path))
	if err != nil {
		return fmt.Errorf("building photo request: %w", err)
	}
	if _, err := io.Copy(part, f); err != nil {
		return fmt.Errorf("reading photo: %w", err)
	}
	if err := writer.Close(); err != nil {
		return fmt.Errorf("building photo request: %w", err)
	}

	return c.post(ctx, "sendPhoto", writer.FormDataContentType(), &body)
}

// SetWebhook registers the public webhook URL with Telegram.
func (c *Client) SetWebhook(ctx context.Context, url string) error {
	payload := map[string]interface{}{
		"url":             url,
		"max_connections": 1,
	}

	jsonData, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshaling payload: %w", err)
	}

	return c.post(ctx, "setWebhook", "application/json", bytes.NewReader(jsonData))
}

// post sends one Bot API request and decodes the standard response
// envelope. A 403 "bot was blocked" answer maps to ErrBlocked.
func (c *Client) post(ctx context.Context, method, contentType string, body io.Reader) error {
	url := fmt.Sprintf("%s%s/%s", c.baseURL, c.botToken, method)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, body)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", contentType)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("sending request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("reading response: %w", err)
	}

	var result struct {
		OK          bool   `json:"ok"`
		ErrorCode   int    `json:"error_code"`
		Description string `json:"description"`
	}
	if err := json.Unmarshal(respBody, &result); err != nil {
		return fmt.Errorf("telegram API error (status %d): %s", resp.StatusCode, string(respBody))
	}

	if !result.OK {
		if result.ErrorCode == http.StatusForbidden && strings.Contains(result.Description, "blocked") {
			return fmt.Errorf("%s: %w", result.Description, ErrBlocked)
		}
		return fmt.Errorf("telegram API error: %s", result.Description)
	}

	return nil
}
