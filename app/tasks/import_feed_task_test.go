package tasks

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lysyi3m/podcast-posts/app/feed"
	"github.com/lysyi3m/podcast-posts/app/ledger"
)

type testItem struct {
	Title   string
	GUID    string
	Link    string
	PubDate string
	Audio   string
}

func buildRSS(items ...testItem) string {
	var b strings.Builder
	b.WriteString(`<?xml version="1.0" encoding="UTF-8"?>
<rss version="2.0">
  <channel>
    <title>Test Podcast</title>
    <link>https://www.spreaker.com/show/1</link>
    <description>Test</description>
`)
	for _, item := range items {
		b.WriteString("    <item>\n")
		if item.Title != "" {
			fmt.Fprintf(&b, "      <title>%s</title>\n", item.Title)
		}
		if item.Link != "" {
			fmt.Fprintf(&b, "      <link>%s</link>\n", item.Link)
		}
		if item.GUID != "" {
			fmt.Fprintf(&b, "      <guid>%s</guid>\n", item.GUID)
		}
		if item.PubDate != "" {
			fmt.Fprintf(&b, "      <pubDate>%s</pubDate>\n", item.PubDate)
		}
		if item.Audio != "" {
			fmt.Fprintf(&b, "      <enclosure url=\"%s\" length=\"1\" type=\"audio/mpeg\"/>\n", item.Audio)
		}
		b.WriteString("      <description>Opis odcinka</description>\n")
		b.WriteString("    </item>\n")
	}
	b.WriteString("  </channel>\n</rss>\n")
	return b.String()
}

func fiveEpisodes() string {
	// Newest first, as podcast feeds usually are.
	return buildRSS(
		testItem{Title: "Odcinek 5", GUID: "guid-5", Link: "https://www.spreaker.com/episode/505", PubDate: "Fri, 05 May 2023 10:00:00 GMT"},
		testItem{Title: "Odcinek 4", GUID: "guid-4", Link: "https://www.spreaker.com/episode/404", PubDate: "Thu, 04 May 2023 10:00:00 GMT"},
		testItem{Title: "Odcinek 3", GUID: "guid-3", Link: "https://www.spreaker.com/episode/303", PubDate: "Wed, 03 May 2023 10:00:00 GMT"},
		testItem{Title: "Odcinek 2", GUID: "guid-2", Link: "https://www.spreaker.com/episode/202", PubDate: "Tue, 02 May 2023 10:00:00 GMT"},
		testItem{Title: "Odcinek 1", GUID: "guid-1", Link: "https://www.spreaker.com/episode/101", PubDate: "Mon, 01 May 2023 10:00:00 GMT"},
	)
}

func serveFeed(t *testing.T, body string) string {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/rss+xml")
		w.Write([]byte(body))
	}))
	t.Cleanup(server.Close)
	return server.URL
}

func newTestTask(t *testing.T, feedURL string, settings ImportSettings) *ImportFeedTask {
	t.Helper()

	renderer, err := feed.NewRenderer("", time.UTC)
	require.NoError(t, err)

	fetcher := feed.NewFetcher(&http.Client{}, "Podcast Posts/test", 5*time.Second)
	task := NewImportFeedTask(feedURL, settings, fetcher, feed.NewParser(), feed.NewEpisodeExtractor(), renderer)
	task.now = func() time.Time {
		return time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	}
	return task
}

func newSettings(t *testing.T) ImportSettings {
	dir := t.TempDir()
	return ImportSettings{
		OutputDir:  filepath.Join(dir, "content", "podcast"),
		LedgerPath: filepath.Join(dir, ".episodes.json"),
		Lang:       "pl",
	}
}

func listPosts(t *testing.T, dir string) []string {
	t.Helper()
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)

	var names []string
	for _, entry := range entries {
		names = append(names, entry.Name())
	}
	sort.Strings(names)
	return names
}

func TestImportWritesPostsAndLedger(t *testing.T) {
	settings := newSettings(t)
	feedURL := serveFeed(t, fiveEpisodes())

	result, err := newTestTask(t, feedURL, settings).Execute(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 5, result.Total)
	assert.Equal(t, 5, result.New)
	assert.Equal(t, 0, result.Skipped)

	assert.Equal(t, []string{
		"2023-05-01-odcinek-1.md",
		"2023-05-02-odcinek-2.md",
		"2023-05-03-odcinek-3.md",
		"2023-05-04-odcinek-4.md",
		"2023-05-05-odcinek-5.md",
	}, listPosts(t, settings.OutputDir))

	// Oldest first.
	assert.Equal(t, filepath.Join(settings.OutputDir, "2023-05-01-odcinek-1.md"), result.Files[0])

	l, err := ledger.Load(settings.LedgerPath)
	require.NoError(t, err)
	require.Len(t, l, 5)

	record := l["guid-3"]
	assert.Equal(t, filepath.Join(settings.OutputDir, "2023-05-03-odcinek-3.md"), record.Filename)
	require.NotNil(t, record.Title)
	assert.Equal(t, "Odcinek 3", *record.Title)
	assert.Equal(t, "303", record.EpisodeID)
	assert.Equal(t, "2024-01-02T03:04:05.000000", record.ImportedAt)

	post, err := os.ReadFile(record.Filename)
	require.NoError(t, err)
	assert.Contains(t, string(post), `title: "Odcinek 3"`)
	assert.Contains(t, string(post), "date: 2023-05-03T10:00:00\n")
	assert.Contains(t, string(post), `slug: "odcinek-3"`)
	assert.Contains(t, string(post), `episode_id: "303"`)
	assert.Contains(t, string(post), `lang: "pl"`)
}

func TestImportIsIdempotent(t *testing.T) {
	settings := newSettings(t)
	feedURL := serveFeed(t, fiveEpisodes())

	first, err := newTestTask(t, feedURL, settings).Execute(context.Background())
	require.NoError(t, err)
	require.Equal(t, 5, first.New)

	ledgerBefore, err := os.ReadFile(settings.LedgerPath)
	require.NoError(t, err)

	second, err := newTestTask(t, feedURL, settings).Execute(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 0, second.New)
	assert.Equal(t, 5, second.Skipped)
	assert.Empty(t, second.Files)
	assert.Len(t, listPosts(t, settings.OutputDir), 5)

	ledgerAfter, err := os.ReadFile(settings.LedgerPath)
	require.NoError(t, err)
	assert.Equal(t, string(ledgerBefore), string(ledgerAfter))
}

func TestImportRespectsMax(t *testing.T) {
	settings := newSettings(t)
	settings.MaxItems = 2
	feedURL := serveFeed(t, fiveEpisodes())

	result, err := newTestTask(t, feedURL, settings).Execute(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 2, result.New)
	assert.Equal(t, []string{
		"2023-05-01-odcinek-1.md",
		"2023-05-02-odcinek-2.md",
	}, listPosts(t, settings.OutputDir))

	l, err := ledger.Load(settings.LedgerPath)
	require.NoError(t, err)
	assert.Len(t, l, 2)
	assert.True(t, l.Contains("guid-1"))
	assert.True(t, l.Contains("guid-2"))

	// The next run continues where the limit stopped.
	result, err = newTestTask(t, feedURL, settings).Execute(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, result.New)
	assert.Len(t, listPosts(t, settings.OutputDir), 4)
}

func TestImportFilenameCollision(t *testing.T) {
	settings := newSettings(t)
	feedURL := serveFeed(t, buildRSS(
		testItem{Title: "Same Title", GUID: "guid-a", PubDate: "Mon, 01 May 2023 08:00:00 GMT"},
		testItem{Title: "Same Title", GUID: "guid-b", PubDate: "Mon, 01 May 2023 18:00:00 GMT"},
	))

	result, err := newTestTask(t, feedURL, settings).Execute(context.Background())
	require.NoError(t, err)
	require.Equal(t, 2, result.New)

	assert.Equal(t, []string{
		"2023-05-01-same-title-1.md",
		"2023-05-01-same-title.md",
	}, listPosts(t, settings.OutputDir))

	l, err := ledger.Load(settings.LedgerPath)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(settings.OutputDir, "2023-05-01-same-title.md"), l["guid-a"].Filename)
	assert.Equal(t, filepath.Join(settings.OutputDir, "2023-05-01-same-title-1.md"), l["guid-b"].Filename)
}

func TestImportDoesNotOverwriteUntrackedPost(t *testing.T) {
	settings := newSettings(t)
	require.NoError(t, os.MkdirAll(settings.OutputDir, 0755))

	existing := filepath.Join(settings.OutputDir, "2023-05-01-odcinek-1.md")
	require.NoError(t, os.WriteFile(existing, []byte("hand written"), 0644))

	feedURL := serveFeed(t, buildRSS(
		testItem{Title: "Odcinek 1", GUID: "guid-1", PubDate: "Mon, 01 May 2023 10:00:00 GMT"},
	))

	result, err := newTestTask(t, feedURL, settings).Execute(context.Background())
	require.NoError(t, err)
	require.Equal(t, 1, result.New)

	data, err := os.ReadFile(existing)
	require.NoError(t, err)
	assert.Equal(t, "hand written", string(data))
	assert.FileExists(t, filepath.Join(settings.OutputDir, "2023-05-01-odcinek-1-1.md"))
}

func TestImportSlugFallbacks(t *testing.T) {
	settings := newSettings(t)
	feedURL := serveFeed(t, buildRSS(
		testItem{GUID: "https://api.spreaker.com/episode/900", PubDate: "Mon, 01 May 2023 10:00:00 GMT"},
		testItem{Title: "???", GUID: "guid-punct", PubDate: "Tue, 02 May 2023 10:00:00 GMT"},
		testItem{Title: "Zażółć gęślą jaźń", GUID: "guid-pl", PubDate: "Wed, 03 May 2023 10:00:00 GMT"},
		testItem{Title: "Привет мир", GUID: "guid-cyr", PubDate: "Thu, 04 May 2023 10:00:00 GMT"},
	))

	_, err := newTestTask(t, feedURL, settings).Execute(context.Background())
	require.NoError(t, err)

	assert.Equal(t, []string{
		"2023-05-01-episode-900.md",
		"2023-05-02-episode-noid.md",
		"2023-05-03-zazolc-gesla-jazn.md",
		"2023-05-04-privet-mir.md",
	}, listPosts(t, settings.OutputDir))

	l, err := ledger.Load(settings.LedgerPath)
	require.NoError(t, err)
	assert.Nil(t, l["https://api.spreaker.com/episode/900"].Title)
	assert.Equal(t, "900", l["https://api.spreaker.com/episode/900"].EpisodeID)
}

func TestImportEpisodeIDFromEnclosure(t *testing.T) {
	settings := newSettings(t)
	feedURL := serveFeed(t, buildRSS(
		testItem{Title: "Ep", GUID: "guid-x", Link: "https://example.com/ep", Audio: "https://api.spreaker.com/download/episode/321/ep.mp3", PubDate: "Mon, 01 May 2023 10:00:00 GMT"},
	))

	result, err := newTestTask(t, feedURL, settings).Execute(context.Background())
	require.NoError(t, err)
	require.Len(t, result.Files, 1)

	post, err := os.ReadFile(result.Files[0])
	require.NoError(t, err)
	assert.Contains(t, string(post), `episode_id: "321"`)
	assert.Contains(t, string(post), `audio: "https://api.spreaker.com/download/episode/321/ep.mp3"`)
}

func TestImportMalformedFeedIsNotFatal(t *testing.T) {
	settings := newSettings(t)
	feedURL := serveFeed(t, "<html><body>not a feed</body></html>")

	result, err := newTestTask(t, feedURL, settings).Execute(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 0, result.New)
	assert.Empty(t, listPosts(t, settings.OutputDir))
	assert.FileExists(t, settings.LedgerPath)
}

func TestImportFetchFailureIsFatal(t *testing.T) {
	settings := newSettings(t)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer server.Close()

	_, err := newTestTask(t, server.URL, settings).Execute(context.Background())
	require.Error(t, err)

	assert.NoFileExists(t, settings.LedgerPath)
	assert.DirExists(t, settings.OutputDir)
}

func TestImportOccupiedPathIsSkipped(t *testing.T) {
	settings := newSettings(t)

	// A directory in place of the post's path counts as taken.
	require.NoError(t, os.MkdirAll(filepath.Join(settings.OutputDir, "2023-05-02-odcinek-2.md"), 0755))
	feedURL := serveFeed(t, buildRSS(
		testItem{Title: "Odcinek 2", GUID: "guid-2", PubDate: "Tue, 02 May 2023 10:00:00 GMT"},
	))

	result, err := newTestTask(t, feedURL, settings).Execute(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, result.New)
	assert.FileExists(t, filepath.Join(settings.OutputDir, "2023-05-02-odcinek-2-1.md"))
}

func TestImportFailureKeepsEarlierEntries(t *testing.T) {
	settings := newSettings(t)
	feedURL := serveFeed(t, buildRSS(
		testItem{Title: "Odcinek 1", GUID: "guid-1", PubDate: "Mon, 01 May 2023 10:00:00 GMT"},
		testItem{Title: "Odcinek 2", GUID: "guid-2", PubDate: "Tue, 02 May 2023 10:00:00 GMT"},
	))

	task := newTestTask(t, feedURL, settings)
	renderer, err := feed.NewRenderer(`{{if eq .Slug "odcinek-2"}}{{.Missing}}{{end}}{{.Title}}`, time.UTC)
	require.NoError(t, err)
	task.renderer = renderer

	_, err = task.Execute(context.Background())
	require.Error(t, err)

	l, err := ledger.Load(settings.LedgerPath)
	require.NoError(t, err)
	assert.Len(t, l, 1)
	assert.True(t, l.Contains("guid-1"))
	assert.Equal(t, []string{"2023-05-01-odcinek-1.md"}, listPosts(t, settings.OutputDir))
}

func TestImportSQLiteLedger(t *testing.T) {
	settings := newSettings(t)
	settings.LedgerPath = filepath.Join(t.TempDir(), "episodes.db")
	feedURL := serveFeed(t, fiveEpisodes())

	result, err := newTestTask(t, feedURL, settings).Execute(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 5, result.New)

	result, err = newTestTask(t, feedURL, settings).Execute(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, result.New)

	store, err := ledger.OpenSQLiteStore(settings.LedgerPath)
	require.NoError(t, err)
	defer store.Close()

	l, err := store.Ledger()
	require.NoError(t, err)
	assert.Len(t, l, 5)
}

func TestImportCanceledContext(t *testing.T) {
	settings := newSettings(t)
	feedURL := serveFeed(t, fiveEpisodes())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := newTestTask(t, feedURL, settings).Execute(ctx)
	assert.Error(t, err)
}

func TestSortOldestFirst(t *testing.T) {
	day := func(d int) *time.Time {
		ts := time.Date(2023, 5, d, 0, 0, 0, 0, time.UTC)
		return &ts
	}

	entries := []feed.Entry{
		{ID: "c", PublishedAt: day(3)},
		{ID: "none-1"},
		{ID: "a", PublishedAt: day(1)},
		{ID: "none-2"},
		{ID: "b", PublishedAt: day(2)},
	}
	sortOldestFirst(entries)

	var ids []string
	for _, entry := range entries {
		ids = append(ids, entry.ID)
	}
	assert.Equal(t, []string{"none-1", "none-2", "a", "b", "c"}, ids)
}
