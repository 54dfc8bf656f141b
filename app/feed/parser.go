package feed

import (
	"bytes"
	"cmp"
	"fmt"
	"strings"

	"github.com/mmcdole/gofeed"
	"github.com/mmcdole/gofeed/atom"
)

type Parser struct {
	gofeedParser *gofeed.Parser
}

func NewParser() *Parser {
	return &Parser{
		gofeedParser: gofeed.NewParser(),
	}
}

func (p *Parser) Run(data []byte) (*Metadata, []Entry, error) {
	feed, err := p.gofeedParser.Parse(bytes.NewReader(data))
	if err != nil {
		return nil, nil, fmt.Errorf("failed to parse feed: %w", err)
	}

	metadata := &Metadata{
		Title:       feed.Title,
		Link:        feed.Link,
		Description: feed.Description,
		Language:    feed.Language,
	}

	// The universal item keeps link hrefs only, so typed Atom links are
	// read from the Atom parser's own model. Entries line up by index.
	var typedLinks [][]Link
	if gofeed.DetectFeedType(bytes.NewReader(data)) == gofeed.FeedTypeAtom {
		typedLinks = p.atomLinks(data)
	}

	entries := make([]Entry, 0, len(feed.Items))
	for i, item := range feed.Items {
		if item == nil {
			continue
		}
		entry := p.normalizeItem(item)
		if i < len(typedLinks) {
			entry.Links = typedLinks[i]
		}
		entries = append(entries, entry)
	}

	return metadata, entries, nil
}

func (p *Parser) normalizeItem(item *gofeed.Item) Entry {
	entry := Entry{
		ID:          item.GUID,
		Title:       item.Title,
		Link:        item.Link,
		Slug:        strings.TrimSpace(item.Custom["slug"]),
		Published:   item.Published,
		PublishedAt: item.PublishedParsed,
		UpdatedAt:   item.UpdatedParsed,
		Description: cmp.Or(item.Description, item.Content),
	}

	for _, category := range item.Categories {
		if strings.TrimSpace(category) != "" {
			entry.Tags = append(entry.Tags, category)
		}
	}

	for _, enclosure := range item.Enclosures {
		if enclosure == nil {
			continue
		}
		entry.Enclosures = append(entry.Enclosures, Enclosure{
			URL:    enclosure.URL,
			Type:   enclosure.Type,
			Length: enclosure.Length,
		})
	}

	for _, href := range item.Links {
		entry.Links = append(entry.Links, Link{Href: href})
	}

	return entry
}

func (p *Parser) atomLinks(data []byte) [][]Link {
	atomParser := &atom.Parser{}
	atomFeed, err := atomParser.Parse(bytes.NewReader(data))
	if err != nil {
		return nil
	}

	links := make([][]Link, len(atomFeed.Entries))
	for i, entry := range atomFeed.Entries {
		if entry == nil {
			continue
		}
		for _, link := range entry.Links {
			if link == nil || link.Href == "" {
				continue
			}
			links[i] = append(links[i], Link{Href: link.Href, Type: link.Type})
		}
	}
	return links
}
