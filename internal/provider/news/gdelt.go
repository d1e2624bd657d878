package news

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/mohammed-shakir/sitrep-cache/internal/core/httpclient"
	"github.com/mohammed-shakir/sitrep-cache/internal/core/model"
	"github.com/mohammed-shakir/sitrep-cache/internal/provider"
)

const gdeltDate = "20060102T150405Z"

type GDELT struct {
	http    *http.Client
	baseURL string
	cls     *Classifier
}

func NewGDELT(c *http.Client, baseURL string, cls *Classifier) *GDELT {
	return &GDELT{http: c, baseURL: baseURL, cls: cls}
}

func (g *GDELT) Name() string { return "gdelt" }

type gdeltDoc struct {
	Articles []struct {
		URL      string `json:"url"`
		Title    string `json:"title"`
		SeenDate string `json:"seendate"`
		Domain   string `json:"domain"`
	} `json:"articles"`
}

func (g *GDELT) FetchReports(ctx context.Context, query string, limit int) ([]model.ReportRecord, error) {
	u, err := url.Parse(g.baseURL)
	if err != nil {
		return nil, fmt.Errorf("gdelt: parse base url: %w", err)
	}
	q := u.Query()
	q.Set("query", gdeltQuery(query))
	q.Set("mode", "ArtList")
	q.Set("maxrecords", strconv.Itoa(clampLimit(limit, 1, 50)))
	q.Set("format", "json")
	q.Set("sort", "DateDesc")
	u.RawQuery = q.Encode()

	b, err := httpclient.Get(ctx, g.http, g.Name(), u.String(), "application/json")
	if err != nil {
		return nil, fmt.Errorf("gdelt: %w", err)
	}
	b = bytes.TrimSpace(b)
	if len(b) == 0 {
		return nil, nil
	}
	// GDELT answers query errors with a 200 and an HTML or plain text body
	if b[0] != '{' {
		return nil, fmt.Errorf("gdelt: %w: non-json body", provider.ErrMalformed)
	}
	var doc gdeltDoc
	if err := json.Unmarshal(b, &doc); err != nil {
		return nil, fmt.Errorf("gdelt: %w: %v", provider.ErrMalformed, err)
	}

	out := make([]model.ReportRecord, 0, len(doc.Articles))
	for _, a := range doc.Articles {
		seen, _ := time.Parse(gdeltDate, a.SeenDate)
		src := a.Domain
		if src == "" {
			src = "GDELT"
		}
		// ArtList carries no description
		if r, ok := g.cls.Build(a.Title, a.Title, src, a.URL, g.Name(), seen); ok {
			out = append(out, r)
		}
	}
	return truncate(out, limit), nil
}

// gdeltQuery scopes a free-text query to Nigeria; GDELT rejects some
// punctuation so it is flattened to spaces.
func gdeltQuery(q string) string {
	q = strings.NewReplacer("/", " ", "-", " ").Replace(q)
	q = strings.Join(strings.Fields(q), " ")
	if !strings.Contains(strings.ToLower(q), "nigeria") {
		q += " Nigeria"
	}
	return strings.TrimSpace(q)
}
