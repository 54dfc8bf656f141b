package feed

import (
	"fmt"
	"regexp"
)

// DefaultEpisodePattern matches Spreaker style URLs such as
// https://www.spreaker.com/episode/12345 and captures the numeric id.
const DefaultEpisodePattern = `/episode/(\d+)(?:[/?#]|$)`

type EpisodeExtractor struct {
	pattern *regexp.Regexp
}

func NewEpisodeExtractor() *EpisodeExtractor {
	return &EpisodeExtractor{pattern: regexp.MustCompile(DefaultEpisodePattern)}
}

// NewEpisodeExtractorWithPattern compiles a custom pattern. The first capture
// group is used as the episode id.
func NewEpisodeExtractorWithPattern(pattern string) (*EpisodeExtractor, error) {
	if pattern == "" {
		return NewEpisodeExtractor(), nil
	}

	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, fmt.Errorf("failed to compile episode pattern: %w", err)
	}
	if re.NumSubexp() < 1 {
		return nil, fmt.Errorf("episode pattern %q has no capture group", pattern)
	}

	return &EpisodeExtractor{pattern: re}, nil
}

// Run returns the id captured from the first candidate that matches, or an
// empty string when none does. Candidates are tried in the order given.
func (e *EpisodeExtractor) Run(candidates ...string) string {
	for _, candidate := range candidates {
		if candidate == "" {
			continue
		}
		if m := e.pattern.FindStringSubmatch(candidate); m != nil {
			return m[1]
		}
	}
	return ""
}
