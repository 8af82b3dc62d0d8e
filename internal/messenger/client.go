package messenger

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Client talks to the chat platform's Graph API. All calls carry the
// client timeout; failures surface as errors and are never retried here.
type Client struct {
	http        *http.Client
	graphURL    string
	pageToken   string
	appSecret   string
	verifyToken string
}

// NewClient builds a client from viper configuration (messenger.*).
func NewClient() *Client {
	viper.SetDefault("messenger.graph_url", "https://graph.facebook.com/v17.0")
	viper.SetDefault("messenger.timeout", 10*time.Second)

	return &Client{
		http:        &http.Client{Timeout: viper.GetDuration("messenger.timeout")},
		graphURL:    strings.TrimRight(viper.GetString("messenger.graph_url"), "/"),
		pageToken:   viper.GetString("messenger.page_token"),
		appSecret:   viper.GetString("messenger.app_secret"),
		verifyToken: viper.GetString("messenger.verify_token"),
	}
}

// VerifyToken returns the webhook subscription verify token.
func (c *Client) VerifyToken() string {
	return c.verifyToken
}

// ValidSignature checks the X-Hub-Signature-256 header against the raw
// request body. When no app secret is configured verification is skipped,
// so local development works without platform credentials.
func (c *Client) ValidSignature(body []byte, header string) bool {
	if c.appSecret == "" {
		return true
	}
	const prefix = "sha256="
	if !strings.HasPrefix(header, prefix) {
		return false
	}
	mac := hmac.New(sha256.New, []byte(c.appSecret))
	mac.Write(body)
	expected := hex.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(expected), []byte(strings.TrimPrefix(header, prefix)))
}

// SendText delivers one text message to a party.
func (c *Client) SendText(ctx context.Context, partyID, text string) error {
	payload := map[string]any{
		"recipient": map[string]string{"id": partyID},
		"message":   map[string]string{"text": text},
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	endpoint := fmt.Sprintf("%s/me/messages?access_token=%s", c.graphURL, url.QueryEscape(c.pageToken))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("send failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("send failed: status %d: %s", resp.StatusCode, string(detail))
	}
	return nil
}

// GetProfile fetches a party's first name for auto-naming on first
// contact. An empty name plus nil error means the profile had no usable
// name.
func (c *Client) GetProfile(ctx context.Context, partyID string) (string, error) {
	endpoint := fmt.Sprintf("%s/%s?fields=first_name&access_token=%s",
		c.graphURL, url.PathEscape(partyID), url.QueryEscape(c.pageToken))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return "", err
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("profile lookup failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		log.Printf("[MESSENGER] Profile lookup for %s returned status %d", partyID, resp.StatusCode)
		return "", fmt.Errorf("profile lookup failed: status %d", resp.StatusCode)
	}

	var profile struct {
		FirstName string `json:"first_name"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&profile); err != nil {
		return "", err
	}
	return profile.FirstName, nil
}

// Download fetches an attachment (voice clip) with the client timeout.
func (c *Client) Download(ctx context.Context, rawURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("attachment download failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("attachment download failed: status %d", resp.StatusCode)
	}
	return io.ReadAll(io.LimitReader(resp.Body, 10*1024*1024))
}
