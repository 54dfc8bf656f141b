package feed

import (
	"cmp"
	"fmt"
	"strings"
	"text/template"
	"time"
)

const (
	// DateLayout is ISO-8601 without a zone designator.
	DateLayout = "2006-01-02T15:04:05"

	FallbackTitle = "No title"
	ExcerptLength = 250
	ExcerptSuffix = "..."
)

// DefaultTemplate renders a post with YAML front matter followed by a
// Spreaker player and the excerpt.
const DefaultTemplate = `---
title: "{{.Title}}"
date: {{.Date}}
slug: "{{.Slug}}"
draft: false
episode_id: "{{.EpisodeID}}"
audio: "{{.AudioURL}}"
description: |
  {{.Description}}
tags: [{{.Tags}}]
lang: "{{.Lang}}"
---

<!-- Spreaker player -->
<iframe src="https://widget.spreaker.com/player?episode_id={{.EpisodeID}}"
        width="100%" height="200" frameborder="0" scrolling="no"></iframe>

{{.Excerpt}}
`

// PostData is the value a post template is executed with.
type PostData struct {
	Title       string
	Date        string
	Slug        string
	EpisodeID   string
	AudioURL    string
	Description string
	Tags        string
	Lang        string
	Excerpt     string
}

type Renderer struct {
	tmpl *template.Template
	loc  *time.Location
	now  func() time.Time
}

func NewRenderer(templateText string, loc *time.Location) (*Renderer, error) {
	tmpl, err := template.New("post").Parse(cmp.Or(templateText, DefaultTemplate))
	if err != nil {
		return nil, fmt.Errorf("failed to parse post template: %w", err)
	}

	if loc == nil {
		loc = time.UTC
	}

	return &Renderer{
		tmpl: tmpl,
		loc:  loc,
		now:  time.Now,
	}, nil
}

func (r *Renderer) Run(entry Entry, episodeID, slug, lang string) (string, error) {
	description := strings.ReplaceAll(strings.TrimSpace(entry.Description), "\r", "")

	data := PostData{
		Title:       strings.ReplaceAll(cmp.Or(entry.Title, FallbackTitle), `"`, `\"`),
		Date:        r.EntryTime(entry).Format(DateLayout),
		Slug:        slug,
		EpisodeID:   episodeID,
		AudioURL:    entry.AudioURL(),
		Description: strings.ReplaceAll(description, "\n", "\n  "),
		Tags:        strings.Join(entry.Tags, ","),
		Lang:        lang,
		Excerpt:     Excerpt(description),
	}

	var buf strings.Builder
	if err := r.tmpl.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("failed to render post: %w", err)
	}

	return buf.String(), nil
}

// EntryTime returns the published or updated time of the entry in the
// renderer's location. Entries without either get the current UTC time, so
// the value differs between runs for such entries.
func (r *Renderer) EntryTime(entry Entry) time.Time {
	if ts := entry.Timestamp(); ts != nil && !ts.IsZero() {
		return ts.In(r.loc)
	}
	return r.now().UTC()
}

// Excerpt returns the first ExcerptLength characters of s, marking a cut
// with ExcerptSuffix.
func Excerpt(s string) string {
	runes := []rune(s)
	if len(runes) <= ExcerptLength {
		return s
	}
	return string(runes[:ExcerptLength]) + ExcerptSuffix
}
