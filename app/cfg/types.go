package cfg

import "time"

type Cfg struct {
	// Import source and destination
	FeedURL    string
	OutputDir  string
	LedgerPath string
	MaxItems   int

	// Post rendering
	Author         string
	Lang           string
	TemplatePath   string
	EpisodePattern string
	Location       *time.Location

	// Fetching
	Timeout   time.Duration
	UserAgent string

	// Application metadata
	ConfigFile string
	Timezone   string
	Debug      bool
	Version    string
}

// fileCfg mirrors the options that may be set from a YAML config file.
type fileCfg struct {
	FeedURL        string `yaml:"rss"`
	OutputDir      string `yaml:"output"`
	LedgerPath     string `yaml:"db"`
	MaxItems       *int   `yaml:"max"`
	Author         string `yaml:"author"`
	Lang           string `yaml:"lang"`
	TemplatePath   string `yaml:"template"`
	EpisodePattern string `yaml:"episode_pattern"`
	Timeout        int    `yaml:"timeout"` // seconds
	UserAgent      string `yaml:"user_agent"`
	Timezone       string `yaml:"timezone"`
}
