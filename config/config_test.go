package config

import (
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{
			name: "empty base url",
			mutate: func(cfg *Config) {
				cfg.LookupBaseURL = ""
			},
			wantErr: "base URL",
		},
		{
			name: "invalid url format",
			mutate: func(cfg *Config) {
				cfg.LookupBaseURL = "https://"
			},
			wantErr: "base URL",
		},
		{
			name: "unknown renderer",
			mutate: func(cfg *Config) {
				cfg.Renderer = "firefox"
			},
			wantErr: "renderer",
		},
		{
			name: "negative timeout",
			mutate: func(cfg *Config) {
				cfg.RenderTimeout = -1 * time.Second
			},
			wantErr: "timeout",
		},
		{
			name: "blank ready selector",
			mutate: func(cfg *Config) {
				cfg.ReadySelector = "  "
			},
			wantErr: "selector",
		},
		{
			name: "bad timezone",
			mutate: func(cfg *Config) {
				cfg.Timezone = "Mars/Olympus_Mons"
			},
			wantErr: "timezone",
		},
		{
			name: "unknown format",
			mutate: func(cfg *Config) {
				cfg.OutputFormat = "xml"
			},
			wantErr: "output format",
		},
		{
			name: "empty format",
			mutate: func(cfg *Config) {
				cfg.OutputFormat = " , "
			},
			wantErr: "output format",
		},
		{
			name: "unknown format in list",
			mutate: func(cfg *Config) {
				cfg.OutputFormat = "csv,parquet"
			},
			wantErr: "parquet",
		},
		{
			name: "kafka without brokers",
			mutate: func(cfg *Config) {
				cfg.OutputFormat = FormatKafka
			},
			wantErr: "broker",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			if err := cfg.Validate(); err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Fatalf("expected error containing %q, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestDefaultConfigValid(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Timezone = "UTC"
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config should validate, got %v", err)
	}
}

func TestStdoutNeedsNoFile(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Timezone = "UTC"
	cfg.OutputFormat = FormatStdout
	cfg.OutputFile = ""
	if err := cfg.Validate(); err != nil {
		t.Fatalf("stdout config should validate, got %v", err)
	}
}

func TestSplitList(t *testing.T) {
	got := SplitList(" kafka-1:9092, ,kafka-2:9092 ")
	if diff := cmp.Diff([]string{"kafka-1:9092", "kafka-2:9092"}, got); diff != "" {
		t.Fatalf("split mismatch (-want +got):\n%s", diff)
	}
	if got := SplitList(""); len(got) != 0 {
		t.Fatalf("empty input gave %v", got)
	}
}

func TestFormats(t *testing.T) {
	tests := []struct {
		value string
		want  []string
	}{
		{value: "csv", want: []string{FormatCSV}},
		{value: "dual", want: []string{FormatCSV, FormatJSON}},
		{value: "CSV, bolt", want: []string{FormatCSV, FormatBolt}},
		{value: "dual,json,kafka", want: []string{FormatCSV, FormatJSON, FormatKafka}},
	}
	for _, tt := range tests {
		t.Run(tt.value, func(t *testing.T) {
			cfg := DefaultConfig()
			cfg.OutputFormat = tt.value
			if diff := cmp.Diff(tt.want, cfg.Formats()); diff != "" {
				t.Fatalf("formats mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestOutputPath(t *testing.T) {
	tests := []struct {
		name   string
		output string
		format string
		sink   string
		want   string
	}{
		{name: "default csv", format: "csv", sink: FormatCSV, want: "output/receipts.csv"},
		{name: "default json", format: "json", sink: FormatJSON, want: "output/receipts.jsonl"},
		{name: "default bolt", format: "bolt", sink: FormatBolt, want: "output/receipts.db"},
		{name: "explicit single sink", output: "out/archive.bin", format: "bolt", sink: FormatBolt, want: "out/archive.bin"},
		{name: "explicit with kafka", output: "out/r.json", format: "json,kafka", sink: FormatJSON, want: "out/r.json"},
		{name: "dual csv", output: "out/r.csv", format: "dual", sink: FormatCSV, want: "out/r.csv"},
		{name: "dual json", output: "out/r.csv", format: "dual", sink: FormatJSON, want: "out/r.jsonl"},
		{name: "csv and bolt", output: "out/r", format: "csv,bolt", sink: FormatBolt, want: "out/r.db"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			cfg.OutputFile = tt.output
			cfg.OutputFormat = tt.format
			if got := cfg.OutputPath(tt.sink); got != tt.want {
				t.Fatalf("OutputPath(%s) = %q, want %q", tt.sink, got, tt.want)
			}
		})
	}
}
