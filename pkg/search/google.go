// Package search provides the web search collaborator used for
// time-sensitive questions the dialog model cannot answer.
package search

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	customsearch "google.golang.org/api/customsearch/v1"
	"google.golang.org/api/option"
)

// maxResults bounds how many results feed the summary prompt.
const maxResults = 3

// GoogleSearcher queries the Google Custom Search API.
type GoogleSearcher struct {
	service  *customsearch.Service
	engineID string
	logger   *slog.Logger

	// now is swappable for tests.
	now func() time.Time
}

// NewGoogle creates a searcher. The engine ID identifies a Programmable
// Search Engine configured for general web results.
func NewGoogle(ctx context.Context, apiKey, engineID string, logger *slog.Logger) (*GoogleSearcher, error) {
	if apiKey == "" || engineID == "" {
		return nil, fmt.Errorf("search: api key and engine id required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	service, err := customsearch.NewService(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("search: create service: %w", err)
	}
	return &GoogleSearcher{
		service:  service,
		engineID: engineID,
		logger:   logger.With("component", "search.google"),
		now:      time.Now,
	}, nil
}

// Search returns up to maxResults formatted results. Queries about
// "today" get the current date appended so the engine surfaces fresh
// pages.
func (g *GoogleSearcher) Search(ctx context.Context, query string) ([]string, error) {
	query = g.withDate(query)

	resp, err := g.service.Cse.List().
		Cx(g.engineID).
		Q(query).
		Num(maxResults).
		Safe("off").
		Context(ctx).
		Do()
	if err != nil {
		return nil, fmt.Errorf("search: query failed: %w", err)
	}

	if len(resp.Items) == 0 {
		g.logger.Info("no search results", "query", query)
		return nil, nil
	}

	results := make([]string, 0, len(resp.Items))
	for _, item := range resp.Items {
		results = append(results, fmt.Sprintf("%s - %s (%s)", item.Title, item.Snippet, item.Link))
	}
	g.logger.Info("search completed", "query", query, "results", len(results))
	return results, nil
}

func (g *GoogleSearcher) withDate(query string) string {
	for _, marker := range []string{"今日", "今天"} {
		if strings.Contains(query, marker) {
			return query + " " + g.now().Format("2006-01-02")
		}
	}
	return query
}
