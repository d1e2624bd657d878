package news

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/mohammed-shakir/sitrep-cache/internal/core/httpclient"
	"github.com/mohammed-shakir/sitrep-cache/internal/core/model"
	"github.com/mohammed-shakir/sitrep-cache/internal/provider"
)

type GNews struct {
	http    *http.Client
	baseURL string
	key     string
	cls     *Classifier
}

func NewGNews(c *http.Client, baseURL, key string, cls *Classifier) *GNews {
	return &GNews{http: c, baseURL: baseURL, key: key, cls: cls}
}

func (g *GNews) Name() string { return "gnews" }

type gnewsDoc struct {
	Errors   []string `json:"errors"`
	Articles []struct {
		Title       string `json:"title"`
		Description string `json:"description"`
		URL         string `json:"url"`
		PublishedAt string `json:"publishedAt"`
		Source      struct {
			Name string `json:"name"`
		} `json:"source"`
	} `json:"articles"`
}

func (g *GNews) FetchReports(ctx context.Context, query string, limit int) ([]model.ReportRecord, error) {
	if g.key == "" {
		return nil, fmt.Errorf("gnews: %w", provider.ErrNotConfigured)
	}
	u, err := url.Parse(g.baseURL)
	if err != nil {
		return nil, fmt.Errorf("gnews: parse base url: %w", err)
	}
	q := u.Query()
	q.Set("q", query)
	q.Set("lang", "en")
	q.Set("max", strconv.Itoa(clampLimit(limit, 1, 100)))
	q.Set("sortby", "publishedAt")
	q.Set("apikey", g.key)
	u.RawQuery = q.Encode()

	b, err := httpclient.Get(ctx, g.http, g.Name(), u.String(), "application/json")
	if err != nil {
		return nil, fmt.Errorf("gnews: %w", err)
	}
	var doc gnewsDoc
	if err := json.Unmarshal(b, &doc); err != nil {
		return nil, fmt.Errorf("gnews: %w: %v", provider.ErrMalformed, err)
	}
	if len(doc.Errors) > 0 {
		return nil, fmt.Errorf("gnews: upstream: %v", doc.Errors)
	}

	out := make([]model.ReportRecord, 0, len(doc.Articles))
	for _, a := range doc.Articles {
		pub, _ := time.Parse(time.RFC3339, a.PublishedAt)
		src := a.Source.Name
		if src == "" {
			src = "GNews"
		}
		if r, ok := g.cls.Build(a.Title, a.Description, src, a.URL, g.Name(), pub); ok {
			out = append(out, r)
		}
	}
	return truncate(out, limit), nil
}

func clampLimit(n, lo, hi int) int {
	return min(max(n, lo), hi)
}

func truncate(rs []model.ReportRecord, limit int) []model.ReportRecord {
	if limit > 0 && len(rs) > limit {
		return rs[:limit]
	}
	return rs
}
