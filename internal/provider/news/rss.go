package news

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/mmcdole/gofeed"
	"golang.org/x/sync/errgroup"

	"github.com/mohammed-shakir/sitrep-cache/internal/core/httpclient"
	"github.com/mohammed-shakir/sitrep-cache/internal/core/model"
	"github.com/mohammed-shakir/sitrep-cache/internal/provider"
)

const (
	defaultFeedTimeout = 2500 * time.Millisecond
	perFeedLimit       = 10
)

type Feed struct {
	Name string
	URL  string
}

// ParseFeeds reads "Name=URL" entries. Entries without a name use the URL.
func ParseFeeds(entries []string) []Feed {
	var out []Feed
	for _, e := range entries {
		name, u, ok := strings.Cut(e, "=")
		if !ok {
			name, u = e, e
		}
		name, u = strings.TrimSpace(name), strings.TrimSpace(u)
		if !strings.HasPrefix(u, "http://") && !strings.HasPrefix(u, "https://") {
			continue
		}
		out = append(out, Feed{Name: name, URL: u})
	}
	return out
}

// RSS polls every feed concurrently; one slow feed cannot hold the others
// past its own timeout.
type RSS struct {
	http        *http.Client
	feeds       []Feed
	cls         *Classifier
	feedTimeout time.Duration
}

func NewRSS(c *http.Client, feeds []Feed, cls *Classifier) *RSS {
	return &RSS{http: c, feeds: feeds, cls: cls, feedTimeout: defaultFeedTimeout}
}

func (r *RSS) Name() string { return "rss" }

// FetchReports ignores query; feeds are filtered by the classifier instead.
// It fails only when every feed failed.
func (r *RSS) FetchReports(ctx context.Context, _ string, limit int) ([]model.ReportRecord, error) {
	if len(r.feeds) == 0 {
		return nil, fmt.Errorf("rss: %w", provider.ErrNotConfigured)
	}
	per := make([][]model.ReportRecord, len(r.feeds))
	errs := make([]error, len(r.feeds))

	var g errgroup.Group
	for i, f := range r.feeds {
		g.Go(func() error {
			fctx, cancel := context.WithTimeout(ctx, r.feedTimeout)
			defer cancel()
			rs, err := r.fetchFeed(fctx, f)
			per[i], errs[i] = rs, err
			return nil
		})
	}
	_ = g.Wait()

	var out []model.ReportRecord
	failed := 0
	for i := range r.feeds {
		if errs[i] != nil {
			failed++
			continue
		}
		out = append(out, per[i]...)
	}
	if failed == len(r.feeds) {
		return nil, fmt.Errorf("rss: %w", errors.Join(errs...))
	}
	return truncate(out, limit), nil
}

func (r *RSS) fetchFeed(ctx context.Context, f Feed) ([]model.ReportRecord, error) {
	b, err := httpclient.Get(ctx, r.http, "rss:"+f.Name, f.URL, "application/rss+xml, application/atom+xml, application/xml")
	if err != nil {
		return nil, fmt.Errorf("feed %s: %w", f.Name, err)
	}
	feed, err := gofeed.NewParser().Parse(bytes.NewReader(b))
	if err != nil {
		return nil, fmt.Errorf("feed %s: %w: %v", f.Name, provider.ErrMalformed, err)
	}

	var out []model.ReportRecord
	for _, it := range feed.Items {
		if len(out) >= perFeedLimit {
			break
		}
		var pub time.Time
		switch {
		case it.PublishedParsed != nil:
			pub = *it.PublishedParsed
		case it.UpdatedParsed != nil:
			pub = *it.UpdatedParsed
		}
		if rec, ok := r.cls.Build(it.Title, it.Description, f.Name, it.Link, r.Name(), pub); ok {
			out = append(out, rec)
		}
	}
	return out, nil
}
