package feed

import (
	"cmp"
	"strings"
	"time"
)

type Metadata struct {
	Title       string
	Link        string
	Description string
	Language    string
}

type Enclosure struct {
	URL    string
	Type   string // MIME type, e.g. audio/mpeg
	Length string
}

type Link struct {
	Href string
	Type string // empty when the feed does not declare one
}

// Entry is one episode of a feed with every optional field flattened to its
// zero value.
type Entry struct {
	ID          string // RSS guid or Atom id
	Title       string
	Link        string
	Slug        string
	Published   string // raw published string as found in the feed
	PublishedAt *time.Time
	UpdatedAt   *time.Time
	Description string
	Tags        []string
	Enclosures  []Enclosure
	Links       []Link
}

// GUIDKey returns the ledger key of the entry: id, then link, then title
// concatenated with the raw published string.
func (e Entry) GUIDKey() string {
	if key := cmp.Or(e.ID, e.Link); key != "" {
		return key
	}
	return strings.TrimSpace(e.Title + e.Published)
}

// Timestamp returns the published time, falling back to the updated time.
func (e Entry) Timestamp() *time.Time {
	if e.PublishedAt != nil {
		return e.PublishedAt
	}
	return e.UpdatedAt
}

func (e Entry) FirstEnclosureURL() string {
	if len(e.Enclosures) == 0 {
		return ""
	}
	return e.Enclosures[0].URL
}

// AudioURL returns the first enclosure URL or, when the entry has no
// enclosures, the first link declared with an audio MIME type.
func (e Entry) AudioURL() string {
	if len(e.Enclosures) > 0 {
		return e.Enclosures[0].URL
	}
	for _, link := range e.Links {
		if strings.HasPrefix(link.Type, "audio") {
			return link.Href
		}
	}
	return ""
}
