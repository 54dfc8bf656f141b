package tasks

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/lysyi3m/podcast-posts/app/feed"
	"github.com/lysyi3m/podcast-posts/app/ledger"
)

type ImportSettings struct {
	OutputDir  string
	LedgerPath string
	Lang       string
	MaxItems   int // 0 imports every unseen entry
}

type Result struct {
	Total   int
	Skipped int
	New     int
	Files   []string
}

type ImportFeedTask struct {
	Task
	Settings  ImportSettings
	fetcher   *feed.Fetcher
	parser    *feed.Parser
	extractor *feed.EpisodeExtractor
	renderer  *feed.Renderer
	now       func() time.Time
}

func NewImportFeedTask(feedURL string, settings ImportSettings, fetcher *feed.Fetcher, parser *feed.Parser, extractor *feed.EpisodeExtractor, renderer *feed.Renderer) *ImportFeedTask {
	return &ImportFeedTask{
		Task:      NewTask(TaskTypeImportFeed, feedURL),
		Settings:  settings,
		fetcher:   fetcher,
		parser:    parser,
		extractor: extractor,
		renderer:  renderer,
		now:       time.Now,
	}
}

func (t *ImportFeedTask) Execute(ctx context.Context) (*Result, error) {
	t.Start()

	if err := os.MkdirAll(t.Settings.OutputDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}

	store, err := ledger.Open(t.Settings.LedgerPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open ledger: %w", err)
	}
	defer store.Close()

	data, err := t.fetcher.Run(ctx, t.FeedURL)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch feed: %w", err)
	}

	_, entries, err := t.parser.Run(data)
	if err != nil {
		slog.Warn("Problem parsing the feed, continuing with recovered entries", "feed", t.FeedURL, "error", err)
	}

	sortOldestFirst(entries)

	result := &Result{Total: len(entries)}

	for _, entry := range entries {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}

		key := entry.GUIDKey()
		if key == "" {
			slog.Warn("Entry has no id, link, title or date, skipping")
			result.Skipped++
			continue
		}

		seen, err := store.Contains(key)
		if err != nil {
			return nil, err
		}
		if seen {
			slog.Debug("Entry already imported, skipping", "guid", key)
			result.Skipped++
			continue
		}

		path, err := t.importEntry(store, key, entry)
		if err != nil {
			return nil, err
		}

		result.New++
		result.Files = append(result.Files, path)
		slog.Info("Episode written", "path", path)

		if t.Settings.MaxItems > 0 && result.New >= t.Settings.MaxItems {
			break
		}
	}

	if err := store.Flush(); err != nil {
		return nil, fmt.Errorf("failed to save ledger: %w", err)
	}

	slog.Info("Task completed",
		"type", t.GetType(),
		"feed", t.FeedURL,
		"duration", t.GetDuration(),
		"total", result.Total,
		"skipped", result.Skipped,
		"new", result.New)

	return result, nil
}

func (t *ImportFeedTask) importEntry(store ledger.Store, key string, entry feed.Entry) (string, error) {
	episodeID := t.extractor.Run(entry.Link, key, entry.FirstEnclosureURL())
	slug := t.slugFor(entry, episodeID)
	datePrefix := t.renderer.EntryTime(entry).Format("2006-01-02")

	path, err := t.uniquePath(datePrefix, slug)
	if err != nil {
		return "", err
	}

	doc, err := t.renderer.Run(entry, episodeID, slug, t.Settings.Lang)
	if err != nil {
		return "", err
	}

	if err := os.WriteFile(path, []byte(doc), 0644); err != nil {
		return "", fmt.Errorf("failed to write post: %w", err)
	}

	record := ledger.Entry{
		Filename:   path,
		EpisodeID:  episodeID,
		ImportedAt: t.now().UTC().Format(ledger.TimestampLayout),
	}
	if entry.Title != "" {
		title := entry.Title
		record.Title = &title
	}

	if err := store.Put(key, record); err != nil {
		return "", fmt.Errorf("failed to record %s in ledger: %w", path, err)
	}

	return path, nil
}

func (t *ImportFeedTask) slugFor(entry feed.Entry, episodeID string) string {
	fallback := "episode-" + episodeID
	if episodeID == "" {
		fallback = "episode-noid"
	}

	base := entry.Slug
	if base == "" {
		base = entry.Title
	}
	if base == "" {
		base = fallback
	}

	if slug := feed.Slugify(base); slug != "" {
		return slug
	}
	return feed.Slugify(fallback)
}

// uniquePath returns {date}-{slug}.md in the output directory, adding -1, -2,
// ... until the name is not taken.
func (t *ImportFeedTask) uniquePath(datePrefix, slug string) (string, error) {
	path := filepath.Join(t.Settings.OutputDir, fmt.Sprintf("%s-%s.md", datePrefix, slug))
	for i := 1; ; i++ {
		_, err := os.Stat(path)
		if errors.Is(err, fs.ErrNotExist) {
			return path, nil
		}
		if err != nil {
			return "", fmt.Errorf("failed to check %s: %w", path, err)
		}
		path = filepath.Join(t.Settings.OutputDir, fmt.Sprintf("%s-%s-%d.md", datePrefix, slug, i))
	}
}

// sortOldestFirst orders entries by published time. Entries without one sort
// first, keeping feed order among equals.
func sortOldestFirst(entries []feed.Entry) {
	sort.SliceStable(entries, func(i, j int) bool {
		a, b := entries[i].PublishedAt, entries[j].PublishedAt
		if a == nil || b == nil {
			return a == nil && b != nil
		}
		return a.Before(*b)
	})
}
