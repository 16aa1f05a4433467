package notification

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/forest-guardian/vegetation-report/internal/report"
	"github.com/forest-guardian/vegetation-report/internal/state"
)

const (
	colorRed    = 16711680
	colorGreen  = 65280
	colorYellow = 16776960
)

type DiscordMessage struct {
	Embeds []DiscordEmbed `json:"embeds"`
}

type DiscordEmbed struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Color       int    `json:"color"`
}

// Discord posts run results to webhooks. An empty webhook URL turns that kind of message off.
type Discord struct {
	errorURL   string
	successURL string
	client     *http.Client
}

func NewDiscord(errorURL, successURL string, client *http.Client) *Discord {
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	return &Discord{errorURL: errorURL, successURL: successURL, client: client}
}

func (d *Discord) ReportGenerated(ctx context.Context, timeframe string, obs state.Observation, reportPath string) error {
	return d.send(ctx, d.successURL, DiscordEmbed{
		Title: "✅ Report generated",
		Description: fmt.Sprintf("Timeframe: %s\nImages: %s → %s\nVegetation area change: %s\n\n%s",
			timeframe, obs.FirstImageDate, obs.LatestImageDate, report.FormatArea(obs.VegetationAreaChange), reportPath),
		Color: colorGreen,
	})
}

func (d *Discord) NoNewData(ctx context.Context, timeframe string, obs state.Observation) error {
	return d.send(ctx, d.successURL, DiscordEmbed{
		Title:       "💤 No new data",
		Description: fmt.Sprintf("Timeframe: %s\nLatest image %s was already reported.", timeframe, obs.LatestImageDate),
		Color:       colorYellow,
	})
}

func (d *Discord) Error(ctx context.Context, errorMessage string) error {
	return d.send(ctx, d.errorURL, DiscordEmbed{
		Title:       "🚨 Error Notification",
		Description: fmt.Sprintf("An error occurred: %s", errorMessage),
		Color:       colorRed,
	})
}

func (d *Discord) send(ctx context.Context, url string, embed DiscordEmbed) error {
	if url == "" {
		return nil
	}

	payload, err := json.Marshal(DiscordMessage{Embeds: []DiscordEmbed{embed}})
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewBuffer(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := d.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusNoContent && resp.StatusCode != http.StatusOK {
		return fmt.Errorf("failed to send Discord notification, status code: %d", resp.StatusCode)
	}

	return nil
}
