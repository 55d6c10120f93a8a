package config

import (
	"fmt"
	"net/url"
	"path/filepath"
	"strings"
	"time"
)

// Renderer names.
const (
	RendererChrome = "chrome"
	RendererStatic = "static"
)

// Output formats.
const (
	FormatCSV    = "csv"
	FormatJSON   = "json"
	FormatDual   = "dual"
	FormatBolt   = "bolt"
	FormatKafka  = "kafka"
	FormatStdout = "stdout"
)

// defaultOutputBase is used when no output file is configured; the
// extension comes from the format.
const defaultOutputBase = "output/receipts"

var formatExt = map[string]string{
	FormatCSV:  ".csv",
	FormatJSON: ".jsonl",
	FormatBolt: ".db",
}

// Config holds scraper configuration. It is built once at startup and not
// changed afterwards.
type Config struct {
	LookupBaseURL string
	Renderer      string // chrome or static
	ChromePath    string // empty means chromedp looks the browser up on PATH
	RenderTimeout time.Duration
	ReadySelector string
	UserAgent     string
	Timezone      string
	OutputFile    string // empty means output/receipts.<ext> per format
	OutputFormat  string // comma separated: csv, json, dual, bolt, kafka, stdout
	KafkaBrokers  []string
	KafkaTopic    string
	MetricsAddr   string
	Verbose       bool
}

// DefaultConfig returns defaults for the oofd.kz consumer site.
func DefaultConfig() *Config {
	return &Config{
		LookupBaseURL: "https://consumer.oofd.kz",
		Renderer:      RendererChrome,
		RenderTimeout: 30 * time.Second,
		ReadySelector: "app-ticket-items",
		UserAgent:     "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36",
		Timezone:      "Asia/Almaty",
		OutputFormat:  FormatCSV,
		KafkaTopic:    "receipts",
		Verbose:       false,
	}
}

// Validate ensures all configuration values are coherent.
func (c *Config) Validate() error {
	if c.LookupBaseURL == "" {
		return fmt.Errorf("lookup base URL cannot be empty")
	}
	parsedURL, err := url.Parse(c.LookupBaseURL)
	if err != nil {
		return fmt.Errorf("invalid lookup base URL: %w", err)
	}
	if parsedURL.Host == "" {
		return fmt.Errorf("lookup base URL must include a host")
	}

	if c.Renderer != RendererChrome && c.Renderer != RendererStatic {
		return fmt.Errorf("renderer must be chrome or static")
	}
	if c.RenderTimeout <= 0 {
		return fmt.Errorf("render timeout must be positive")
	}
	if strings.TrimSpace(c.ReadySelector) == "" {
		return fmt.Errorf("ready selector cannot be empty")
	}
	if c.UserAgent == "" {
		return fmt.Errorf("user agent cannot be empty")
	}
	if _, err := c.Location(); err != nil {
		return err
	}

	formats := c.Formats()
	if len(formats) == 0 {
		return fmt.Errorf("output format cannot be empty")
	}
	for _, format := range formats {
		switch format {
		case FormatCSV, FormatJSON, FormatBolt, FormatStdout:
		case FormatKafka:
			if len(c.KafkaBrokers) == 0 {
				return fmt.Errorf("kafka output needs at least one broker")
			}
			if c.KafkaTopic == "" {
				return fmt.Errorf("kafka topic cannot be empty")
			}
		default:
			return fmt.Errorf("output format %q must be csv, json, dual, bolt, kafka, or stdout", format)
		}
	}

	return nil
}

// Location resolves the timezone receipts are printed in.
func (c *Config) Location() (*time.Location, error) {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return nil, fmt.Errorf("invalid timezone %q: %w", c.Timezone, err)
	}
	return loc, nil
}

// Formats expands OutputFormat into individual sinks. "dual" stands for csv
// and json; repeated names are dropped.
func (c *Config) Formats() []string {
	return ExpandFormats(c.OutputFormat)
}

// ExpandFormats is Formats for a raw flag value.
func ExpandFormats(value string) []string {
	var out []string
	seen := make(map[string]bool)
	add := func(format string) {
		if !seen[format] {
			seen[format] = true
			out = append(out, format)
		}
	}
	for _, format := range SplitList(strings.ToLower(value)) {
		if format == FormatDual {
			add(FormatCSV)
			add(FormatJSON)
			continue
		}
		add(format)
	}
	return out
}

// HasFormat reports whether format is one of the configured sinks.
func (c *Config) HasFormat(format string) bool {
	for _, f := range c.Formats() {
		if f == format {
			return true
		}
	}
	return false
}

// OutputPath returns the file a file-backed format writes to. Without an
// output file the default base gets the format's extension. An explicit
// file is used as given when it is the only file sink; with several file
// sinks each one swaps in its own extension.
func (c *Config) OutputPath(format string) string {
	ext := formatExt[format]
	if c.OutputFile == "" {
		return defaultOutputBase + ext
	}
	fileSinks := 0
	for _, f := range c.Formats() {
		if _, ok := formatExt[f]; ok {
			fileSinks++
		}
	}
	if fileSinks <= 1 {
		return c.OutputFile
	}
	return strings.TrimSuffix(c.OutputFile, filepath.Ext(c.OutputFile)) + ext
}

// SplitList turns a comma separated flag value into its trimmed, non-empty parts.
func SplitList(value string) []string {
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
