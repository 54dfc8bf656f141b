package cfg

import (
	"cmp"
	"errors"
	"fmt"
	"io/fs"
	"time"

	"github.com/jessevdk/go-flags"
	"github.com/joho/godotenv"
)

// Version is set at build time via -ldflags
var Version = "dev"

func GetVersion() string {
	return cmp.Or(Version, "unknown")
}

type rawCfg struct {
	// Import configuration
	FeedURL    string `long:"rss" env:"RSS_URL" description:"RSS/Atom feed URL or local file path (required)"`
	OutputDir  string `long:"output" env:"OUTPUT_DIR" default:"content/podcast" description:"Directory the Markdown posts are written to"`
	Author     string `long:"author" env:"AUTHOR" description:"Author name (accepted, not written to posts)"`
	Lang       string `long:"lang" env:"PODCAST_LANG" default:"pl" description:"Language code written into front matter"`
	LedgerPath string `long:"db" env:"LEDGER_PATH" default:".episodes.json" description:"Ledger of imported entries (.db/.sqlite for SQLite)"`
	MaxItems   int    `long:"max" env:"MAX_ITEMS" default:"0" description:"Maximum number of episodes to import (0 = all)"`

	// Rendering configuration
	TemplatePath   string `long:"template" env:"POST_TEMPLATE" description:"Path to a text/template file replacing the built-in post template"`
	EpisodePattern string `long:"episode-pattern" env:"EPISODE_PATTERN" description:"Regexp with one capture group extracting the episode id"`

	// Fetch configuration
	Timeout   int    `long:"timeout" env:"FETCH_TIMEOUT" default:"30" description:"Feed fetch timeout in seconds"`
	UserAgent string `long:"user-agent" env:"USER_AGENT" default:"Podcast Posts/1.0" description:"User agent string for HTTP requests"`

	// Application configuration
	ConfigFile string `long:"config" env:"IMPORT_CONFIG" description:"YAML file with default option values"`
	Timezone   string `long:"timezone" env:"TZ" default:"UTC" description:"Timezone for post dates (e.g., UTC, Europe/Warsaw)"`
	Debug      bool   `long:"debug" env:"DEBUG" description:"Enable debug logging"`
}

// LoadEnvFile loads variables from a dotenv file. A missing file is not an
// error.
func LoadEnvFile(path string) error {
	if err := godotenv.Load(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("failed to load %s: %w", path, err)
	}
	return nil
}

// Load parses args and the environment. It returns nil, nil when help was
// requested.
func Load(args []string) (*Cfg, error) {
	var raw rawCfg

	parser := flags.NewParser(&raw, flags.Default)

	if _, err := parser.ParseArgs(args); err != nil {
		if flagsErr, ok := err.(*flags.Error); ok {
			if flagsErr.Type == flags.ErrHelp {
				return nil, nil
			}
		}
		return nil, fmt.Errorf("failed to parse configuration: %w", err)
	}

	if raw.ConfigFile != "" {
		file, err := loadFile(raw.ConfigFile)
		if err != nil {
			return nil, err
		}
		mergeFile(parser, &raw, file)
	}

	cfg := &Cfg{
		FeedURL:        raw.FeedURL,
		OutputDir:      raw.OutputDir,
		LedgerPath:     raw.LedgerPath,
		MaxItems:       raw.MaxItems,
		Author:         raw.Author,
		Lang:           raw.Lang,
		TemplatePath:   raw.TemplatePath,
		EpisodePattern: raw.EpisodePattern,
		Timeout:        time.Duration(raw.Timeout) * time.Second,
		UserAgent:      raw.UserAgent,
		ConfigFile:     raw.ConfigFile,
		Timezone:       raw.Timezone,
		Debug:          raw.Debug,
		Version:        GetVersion(),
	}

	if err := validate(cfg); err != nil {
		return nil, err
	}

	loc, err := loadLocation(cfg.Timezone)
	if err != nil {
		return nil, err
	}
	cfg.Location = loc

	return cfg, nil
}

func validate(cfg *Cfg) error {
	if cfg.FeedURL == "" {
		return fmt.Errorf("feed URL is required (--rss or RSS_URL)")
	}
	if cfg.OutputDir == "" {
		return fmt.Errorf("output directory must not be empty")
	}
	if cfg.LedgerPath == "" {
		return fmt.Errorf("ledger path must not be empty")
	}

	nonNegativeFields := map[string]int{
		"max":     cfg.MaxItems,
		"timeout": int(cfg.Timeout / time.Second),
	}

	for fieldName, fieldValue := range nonNegativeFields {
		if fieldValue < 0 {
			return fmt.Errorf("%s must be non-negative", fieldName)
		}
	}

	return nil
}

func loadLocation(timezone string) (*time.Location, error) {
	if timezone == "" {
		return time.UTC, nil
	}
	loc, err := time.LoadLocation(timezone)
	if err != nil {
		return nil, fmt.Errorf("invalid timezone %q: %w", timezone, err)
	}
	return loc, nil
}
