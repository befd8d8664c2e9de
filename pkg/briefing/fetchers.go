package briefing

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// httpFetcher is the shared shape every concrete fetcher below embeds:
// an http.Client with a fixed timeout, mirroring
// tarsy/pkg/runbook.GitHubClient's own httpClient field.
type httpFetcher struct {
	client *http.Client
}

func newHTTPFetcher() httpFetcher {
	return httpFetcher{client: &http.Client{Timeout: 15 * time.Second}}
}

func (h httpFetcher) get(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	resp, err := h.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("HTTP %d from %s", resp.StatusCode, url)
	}
	return io.ReadAll(resp.Body)
}

// WeatherFetcher reports current conditions for a fixed location via the
// National Weather Service's public points/forecast endpoints (no API key
// required).
type WeatherFetcher struct {
	httpFetcher
	PointsURL string
}

// NewWeatherFetcher builds a WeatherFetcher for a given points URL, e.g.
// "https://api.weather.gov/points/39.74,-104.99".
func NewWeatherFetcher(pointsURL string) *WeatherFetcher {
	return &WeatherFetcher{httpFetcher: newHTTPFetcher(), PointsURL: pointsURL}
}

func (w *WeatherFetcher) Name() string { return "weather" }

func (w *WeatherFetcher) Fetch(ctx context.Context) (string, error) {
	pointsBody, err := w.get(ctx, w.PointsURL)
	if err != nil {
		return "", err
	}
	var points struct {
		Properties struct {
			Forecast string `json:"forecast"`
		} `json:"properties"`
	}
	if err := json.Unmarshal(pointsBody, &points); err != nil {
		return "", fmt.Errorf("decode points response: %w", err)
	}

	forecastBody, err := w.get(ctx, points.Properties.Forecast)
	if err != nil {
		return "", err
	}
	var forecast struct {
		Properties struct {
			Periods []struct {
				Name           string `json:"name"`
				ShortForecast  string `json:"shortForecast"`
				Temperature    int    `json:"temperature"`
				TemperatureUnit string `json:"temperatureUnit"`
			} `json:"periods"`
		} `json:"properties"`
	}
	if err := json.Unmarshal(forecastBody, &forecast); err != nil {
		return "", fmt.Errorf("decode forecast response: %w", err)
	}
	if len(forecast.Properties.Periods) == 0 {
		return "", fmt.Errorf("no forecast periods returned")
	}
	p := forecast.Properties.Periods[0]
	return fmt.Sprintf("%s: %s, %d%s", p.Name, p.ShortForecast, p.Temperature, p.TemperatureUnit), nil
}

// NewsFetcher summarizes the top headlines from a configured RSS/Atom-style
// JSON feed endpoint.
type NewsFetcher struct {
	httpFetcher
	FeedURL string
	Limit   int
}

func NewNewsFetcher(feedURL string, limit int) *NewsFetcher {
	return &NewsFetcher{httpFetcher: newHTTPFetcher(), FeedURL: feedURL, Limit: limit}
}

func (n *NewsFetcher) Name() string { return "news" }

func (n *NewsFetcher) Fetch(ctx context.Context) (string, error) {
	body, err := n.get(ctx, n.FeedURL)
	if err != nil {
		return "", err
	}
	var feed struct {
		Items []struct {
			Title string `json:"title"`
		} `json:"items"`
	}
	if err := json.Unmarshal(body, &feed); err != nil {
		return "", fmt.Errorf("decode news feed: %w", err)
	}

	limit := n.Limit
	if limit <= 0 || limit > len(feed.Items) {
		limit = len(feed.Items)
	}
	var lines []string
	for _, item := range feed.Items[:limit] {
		lines = append(lines, "- "+item.Title)
	}
	if len(lines) == 0 {
		return "", fmt.Errorf("news feed returned no items")
	}
	return strings.Join(lines, "\n"), nil
}

// ArxivFetcher queries the arXiv Atom API for recent papers matching a
// search term.
type ArxivFetcher struct {
	httpFetcher
	Query      string
	MaxResults int
}

func NewArxivFetcher(query string, maxResults int) *ArxivFetcher {
	return &ArxivFetcher{httpFetcher: newHTTPFetcher(), Query: query, MaxResults: maxResults}
}

func (a *ArxivFetcher) Name() string { return "arxiv" }

func (a *ArxivFetcher) Fetch(ctx context.Context) (string, error) {
	url := fmt.Sprintf("http://export.arxiv.org/api/query?search_query=%s&max_results=%d", a.Query, a.MaxResults)
	body, err := a.get(ctx, url)
	if err != nil {
		return "", err
	}

	titles := extractAtomTitles(string(body))
	if len(titles) == 0 {
		return "", fmt.Errorf("no arxiv results for query %q", a.Query)
	}
	var lines []string
	for _, t := range titles {
		lines = append(lines, "- "+t)
	}
	return strings.Join(lines, "\n"), nil
}

// extractAtomTitles pulls <title>...</title> text from an Atom feed body,
// skipping the feed's own top-level title (the first match, which always
// echoes the query).
func extractAtomTitles(atom string) []string {
	var titles []string
	rest := atom
	for {
		start := strings.Index(rest, "<title>")
		if start < 0 {
			break
		}
		rest = rest[start+len("<title>"):]
		end := strings.Index(rest, "</title>")
		if end < 0 {
			break
		}
		titles = append(titles, strings.TrimSpace(rest[:end]))
		rest = rest[end+len("</title>"):]
	}
	if len(titles) > 0 {
		titles = titles[1:] // drop the feed-level title
	}
	return titles
}

// CalendarFetcher lists today's events from an ICS feed URL. Parsing is a
// minimal VEVENT/SUMMARY scan, not a full RFC 5545 implementation — no ICS
// library is present anywhere in the pack.
type CalendarFetcher struct {
	httpFetcher
	ICSURL string
}

func NewCalendarFetcher(icsURL string) *CalendarFetcher {
	return &CalendarFetcher{httpFetcher: newHTTPFetcher(), ICSURL: icsURL}
}

func (c *CalendarFetcher) Name() string { return "calendar" }

func (c *CalendarFetcher) Fetch(ctx context.Context) (string, error) {
	body, err := c.get(ctx, c.ICSURL)
	if err != nil {
		return "", err
	}

	var summaries []string
	for _, line := range strings.Split(string(body), "\n") {
		line = strings.TrimSpace(line)
		if strings.HasPrefix(line, "SUMMARY:") {
			summaries = append(summaries, "- "+strings.TrimPrefix(line, "SUMMARY:"))
		}
	}
	if len(summaries) == 0 {
		return "No events today.", nil
	}
	return strings.Join(summaries, "\n"), nil
}
