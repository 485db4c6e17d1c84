package discord

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"strconv"
	"time"

	json "github.com/goccy/go-json"
)

const (
	// Colors for Discord embeds
	colorRed   = 15158332 // 0xE74C3C - for failed runs
	colorGreen = 5763719  // 0x57F287 - for success

	// Default timeout for webhook requests
	defaultWebhookTimeout = 10 * time.Second

	// Max retries for rate limiting
	maxRetries = 3
)

// WebhookPayload represents a Discord webhook message
type WebhookPayload struct {
	Content string  `json:"content,omitempty"`
	Embeds  []Embed `json:"embeds,omitempty"`
}

// Embed represents a Discord embed
type Embed struct {
	Title       string       `json:"title,omitempty"`
	Description string       `json:"description,omitempty"`
	Color       int          `json:"color,omitempty"`
	Fields      []EmbedField `json:"fields,omitempty"`
	Footer      *EmbedFooter `json:"footer,omitempty"`
	Timestamp   string       `json:"timestamp,omitempty"`
}

// EmbedField represents a field in a Discord embed
type EmbedField struct {
	Name   string `json:"name"`
	Value  string `json:"value"`
	Inline bool   `json:"inline,omitempty"`
}

// EmbedFooter represents the footer of a Discord embed
type EmbedFooter struct {
	Text string `json:"text"`
}

// Summary describes one finished command run
type Summary struct {
	Command string // collect, extract or pipeline
	Region  string
	Window  string // e.g. 20210428-20210511

	Players    int
	Matches    int
	MythicRows int
	ItemRows   int
	Malformed  int
	Runtime    time.Duration

	// Err is the error that ended the run, nil on success
	Err         error
	KeyRejected bool
}

// NewRunSummaryPayload creates the payload for a finished run
func NewRunSummaryPayload(s Summary) WebhookPayload {
	embed := Embed{
		Title: fmt.Sprintf("✅ %s finished", s.Command),
		Color: colorGreen,
		Fields: []EmbedField{
			{Name: "Region", Value: s.Region, Inline: true},
			{Name: "Window", Value: s.Window, Inline: true},
			{Name: "Runtime", Value: formatDuration(s.Runtime), Inline: true},
		},
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}

	if s.Players > 0 {
		embed.Fields = append(embed.Fields, EmbedField{Name: "Players", Value: formatNumber(s.Players), Inline: true})
	}
	embed.Fields = append(embed.Fields, EmbedField{Name: "Matches", Value: formatNumber(s.Matches), Inline: true})
	if s.MythicRows > 0 || s.ItemRows > 0 {
		embed.Fields = append(embed.Fields,
			EmbedField{Name: "Mythic Rows", Value: formatNumber(s.MythicRows), Inline: true},
			EmbedField{Name: "Item Rows", Value: formatNumber(s.ItemRows), Inline: true},
		)
	}
	if s.Malformed > 0 {
		embed.Fields = append(embed.Fields, EmbedField{Name: "Malformed Timelines", Value: formatNumber(s.Malformed), Inline: true})
	}

	payload := WebhookPayload{}
	if s.Err != nil {
		embed.Title = fmt.Sprintf("❌ %s failed", s.Command)
		embed.Color = colorRed
		embed.Description = s.Err.Error()
		payload.Content = "@here Run failed!"
		if s.KeyRejected {
			embed.Title = "🔑 API Key Rejected"
			embed.Footer = &EmbedFooter{Text: "Set a new RIOT_API_KEY and rerun collect; processed players are kept"}
		}
	}

	payload.Embeds = []Embed{embed}
	return payload
}

// WebhookClient sends notifications to Discord webhooks
type WebhookClient struct {
	webhookURL string
	httpClient *http.Client
}

// NewWebhookClient creates a new WebhookClient
func NewWebhookClient(webhookURL string) *WebhookClient {
	return &WebhookClient{
		webhookURL: webhookURL,
		httpClient: &http.Client{
			Timeout: defaultWebhookTimeout,
		},
	}
}

// SendRunSummary posts the summary of a finished run
func (c *WebhookClient) SendRunSummary(ctx context.Context, s Summary) error {
	return c.sendPayload(ctx, NewRunSummaryPayload(s))
}

// sendPayload sends a webhook payload with retry on rate limiting
func (c *WebhookClient) sendPayload(ctx context.Context, payload WebhookPayload) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal payload: %w", err)
	}

	for attempt := 0; attempt < maxRetries; attempt++ {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.webhookURL, bytes.NewReader(data))
		if err != nil {
			return fmt.Errorf("failed to create request: %w", err)
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return fmt.Errorf("request failed: %w", err)
		}
		resp.Body.Close()

		// Discord returns 204 No Content
		if resp.StatusCode == http.StatusNoContent || resp.StatusCode == http.StatusOK {
			return nil
		}

		if resp.StatusCode == http.StatusTooManyRequests {
			waitDuration := time.Second
			if seconds, err := strconv.Atoi(resp.Header.Get("Retry-After")); err == nil {
				waitDuration = time.Duration(seconds) * time.Second
			}

			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(waitDuration):
				continue
			}
		}

		return fmt.Errorf("webhook request failed with status %d", resp.StatusCode)
	}

	return fmt.Errorf("webhook request failed after %d retries", maxRetries)
}

// formatNumber formats a number with commas (e.g., 47832 -> "47,832")
func formatNumber(n int) string {
	if n < 0 {
		return "-" + formatNumber(-n)
	}
	s := strconv.Itoa(n)
	if n < 1000 {
		return s
	}

	var result bytes.Buffer
	for i, c := range s {
		if i > 0 && (len(s)-i)%3 == 0 {
			result.WriteByte(',')
		}
		result.WriteRune(c)
	}
	return result.String()
}

// formatDuration formats a duration as "Xh Ym" (e.g., 18h 32m)
func formatDuration(d time.Duration) string {
	hours := int(d.Hours())
	minutes := int(d.Minutes()) % 60
	return fmt.Sprintf("%dh %dm", hours, minutes)
}
