package cfg

import (
	"fmt"
	"os"

	"github.com/jessevdk/go-flags"
	"gopkg.in/yaml.v3"
)

func loadFile(path string) (*fileCfg, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var file fileCfg
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	return &file, nil
}

// mergeFile copies values from the config file into raw for every option
// that was not given on the command line. Defaults and environment values
// count as not given.
func mergeFile(parser *flags.Parser, raw *rawCfg, file *fileCfg) {
	explicit := func(name string) bool {
		opt := parser.FindOptionByLongName(name)
		return opt != nil && opt.IsSet() && !opt.IsSetDefault()
	}

	setString := func(name string, dst *string, value string) {
		if value != "" && !explicit(name) {
			*dst = value
		}
	}

	setString("rss", &raw.FeedURL, file.FeedURL)
	setString("output", &raw.OutputDir, file.OutputDir)
	setString("db", &raw.LedgerPath, file.LedgerPath)
	setString("author", &raw.Author, file.Author)
	setString("lang", &raw.Lang, file.Lang)
	setString("template", &raw.TemplatePath, file.TemplatePath)
	setString("episode-pattern", &raw.EpisodePattern, file.EpisodePattern)
	setString("user-agent", &raw.UserAgent, file.UserAgent)
	setString("timezone", &raw.Timezone, file.Timezone)

	if file.MaxItems != nil && !explicit("max") {
		raw.MaxItems = *file.MaxItems
	}
	if file.Timeout != 0 && !explicit("timeout") {
		raw.Timeout = file.Timeout
	}
}
