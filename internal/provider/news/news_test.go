package news

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mohammed-shakir/sitrep-cache/internal/core/model"
	"github.com/mohammed-shakir/sitrep-cache/internal/provider"
)

var now = time.Date(2025, 2, 11, 12, 0, 0, 0, time.UTC)

func newClassifier() *Classifier {
	c := NewClassifier([]string{"argungu", "zuru", "birnin kebbi"}, 7*24*time.Hour)
	c.now = func() time.Time { return now }
	return c
}

func TestClassifier_SeverityAndCategory(t *testing.T) {
	c := newClassifier()
	assert.Equal(t, model.SeverityCritical, c.Severity("Bandits kidnap 20 in Zuru"))
	assert.Equal(t, model.SeverityHigh, c.Severity("Troops deployed to Argungu"))
	assert.Equal(t, model.SeverityMedium, c.Severity("Tension rises at the border"))
	assert.Equal(t, model.SeverityLow, c.Severity("Market day in Argungu"))

	assert.Equal(t, model.ReportMilitary, c.Category("Army repels attack"))
	assert.Equal(t, model.ReportCriminal, c.Category("Bandits rustle cattle"))
	assert.Equal(t, model.ReportTerrorism, c.Category("ISWAP fighters sighted"))
	assert.Equal(t, model.ReportEnvironmental, c.Category("Flood displaces farmers"))
	assert.Equal(t, model.ReportGeneral, c.Category("Festival opens"))
}

func TestClassifier_BuildFilters(t *testing.T) {
	c := newClassifier()

	r, ok := c.Build("Gunmen attack village in Zuru", "<p>Residents <b>fled</b></p>", "Daily Trust", "https://x/1", "rss", now.Add(-time.Hour))
	require.True(t, ok)
	assert.Equal(t, "Residents fled", r.Description)
	assert.True(t, r.RegionRelevant)
	assert.Equal(t, model.SeverityCritical, r.Severity)

	_, ok = c.Build("Gunmen attack village in Zuru", "", "s", "", "rss", now.Add(-8*24*time.Hour))
	assert.False(t, ok, "older than max age")

	_, ok = c.Build("Senator condemns attack in Sokoto", "", "s", "", "rss", now)
	assert.False(t, ok, "political noise")

	_, ok = c.Build("Attack in Lagos", "", "s", "", "rss", now)
	assert.False(t, ok, "outside monitored area")

	r, ok = c.Build("Bandits kill 3 in Sokoto", "", "s", "", "rss", time.Time{})
	require.True(t, ok, "unknown publish time is kept")
	assert.True(t, r.RegionRelevant, "border state counts as relevant")
}

func TestGNews_MapsArticles(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "KEY", r.URL.Query().Get("apikey"))
		assert.Equal(t, "Kebbi security", r.URL.Query().Get("q"))
		_, _ = fmt.Fprintf(w, `{"totalArticles":3,"articles":[
			{"title":"Bandits attack Argungu market","description":"Several dead","url":"https://a/1","publishedAt":%q,"source":{"name":"Punch"}},
			{"title":"Football results","description":"","url":"https://a/2","publishedAt":%q,"source":{"name":"Punch"}},
			{"title":"Kidnappers abduct farmers in Zuru","description":"","url":"https://a/3","publishedAt":%q,"source":{"name":""}}
		]}`, now.Add(-time.Hour).Format(time.RFC3339), now.Format(time.RFC3339), now.Add(-2*time.Hour).Format(time.RFC3339))
	}))
	defer srv.Close()

	g := NewGNews(srv.Client(), srv.URL, "KEY", newClassifier())
	rs, err := g.FetchReports(context.Background(), "Kebbi security", 10)
	require.NoError(t, err)
	require.Len(t, rs, 2)
	assert.Equal(t, "Punch", rs[0].SourceName)
	assert.Equal(t, "gnews", rs[0].FeedSource)
	assert.Equal(t, now.Add(-time.Hour), rs[0].PublishedAt)
	assert.Equal(t, "GNews", rs[1].SourceName)

	_, err = NewGNews(srv.Client(), srv.URL, "", newClassifier()).FetchReports(context.Background(), "q", 1)
	assert.ErrorIs(t, err, provider.ErrNotConfigured)
}

func TestGDELT_ParsesSeenDateAndRejectsHTML(t *testing.T) {
	body := `{"articles":[{"url":"https://g/1","title":"Gunmen raid Birnin Kebbi outskirts","seendate":"20250211T093000Z","domain":"example.ng"}]}`
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		assert.Equal(t, "ArtList", q.Get("mode"))
		assert.True(t, strings.HasSuffix(q.Get("query"), "Nigeria"))
		_, _ = w.Write([]byte(body))
	}))
	defer srv.Close()

	g := NewGDELT(srv.Client(), srv.URL, newClassifier())
	rs, err := g.FetchReports(context.Background(), "kebbi-bandit", 5)
	require.NoError(t, err)
	require.Len(t, rs, 1)
	assert.Equal(t, time.Date(2025, 2, 11, 9, 30, 0, 0, time.UTC), rs[0].PublishedAt)
	assert.Equal(t, "example.ng", rs[0].SourceName)

	body = "<html>query too short</html>"
	_, err = g.FetchReports(context.Background(), "x", 5)
	assert.ErrorIs(t, err, provider.ErrMalformed)
}

const rssDoc = `<?xml version="1.0"?>
<rss version="2.0"><channel><title>T</title>
<item><title>Bandits attack Argungu farmers</title><link>https://r/1</link>
<description>&lt;p&gt;Two dead&lt;/p&gt;</description><pubDate>Tue, 11 Feb 2025 08:00:00 +0000</pubDate></item>
<item><title>Weather today</title><link>https://r/2</link><pubDate>Tue, 11 Feb 2025 08:00:00 +0000</pubDate></item>
</channel></rss>`

func TestRSS_ParsesFeedsAndToleratesOneFailure(t *testing.T) {
	good := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(rssDoc))
	}))
	defer good.Close()
	bad := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "nope", http.StatusInternalServerError)
	}))
	defer bad.Close()

	feeds := ParseFeeds([]string{"Good=" + good.URL, "Bad=" + bad.URL, "not a url"})
	require.Len(t, feeds, 2)

	r := NewRSS(http.DefaultClient, feeds, newClassifier())
	rs, err := r.FetchReports(context.Background(), "", 10)
	require.NoError(t, err)
	require.Len(t, rs, 1)
	assert.Equal(t, "Good", rs[0].SourceName)
	assert.Equal(t, "Two dead", rs[0].Description)
	assert.Equal(t, time.Date(2025, 2, 11, 8, 0, 0, 0, time.UTC), rs[0].PublishedAt)

	_, err = NewRSS(http.DefaultClient, []Feed{{Name: "Bad", URL: bad.URL}}, newClassifier()).FetchReports(context.Background(), "", 10)
	assert.Error(t, err)
}

func TestRSS_SlowFeedBoundedByFeedTimeout(t *testing.T) {
	slow := httptest.NewServer(http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	defer slow.Close()

	r := NewRSS(http.DefaultClient, []Feed{{Name: "Slow", URL: slow.URL}}, newClassifier())
	r.feedTimeout = 50 * time.Millisecond

	start := time.Now()
	_, err := r.FetchReports(context.Background(), "", 10)
	assert.Error(t, err)
	assert.Less(t, time.Since(start), time.Second)
}
