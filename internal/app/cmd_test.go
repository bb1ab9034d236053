package app

import (
	"io"
	"testing"
)

func TestParseCommand(t *testing.T) {
	tests := []struct {
		name string
		args []string
		want Command
	}{
		{"empty defaults to serve", []string{}, CommandServe},
		{"serve", []string{"serve"}, CommandServe},
		{"worker", []string{"worker"}, CommandWorker},
		{"migrate", []string{"migrate"}, CommandMigrate},
		{"seed", []string{"seed"}, CommandSeed},
		{"ingest", []string{"ingest"}, CommandIngest},
		{"report", []string{"report"}, CommandReport},
		{"healthcheck", []string{"healthcheck"}, CommandHealthcheck},
		{"unknown defaults to serve", []string{"unknown"}, CommandServe},
		{"extra args ignored", []string{"ingest", "-source", "abc"}, CommandIngest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ParseCommand(tt.args); got != tt.want {
				t.Errorf("ParseCommand(%v) = %q, want %q", tt.args, got, tt.want)
			}
		})
	}
}

func TestSubcommandArgs(t *testing.T) {
	if got := subcommandArgs(nil); got != nil {
		t.Errorf("subcommandArgs(nil) = %v, want nil", got)
	}
	if got := subcommandArgs([]string{"report"}); got != nil {
		t.Errorf("subcommandArgs([report]) = %v, want nil", got)
	}
	got := subcommandArgs([]string{"report", "-week", "3"})
	if len(got) != 2 || got[0] != "-week" || got[1] != "3" {
		t.Errorf("subcommandArgs = %v, want [-week 3]", got)
	}
}

func TestParseIngestOptions(t *testing.T) {
	opts, err := parseIngestOptions([]string{"-source", "550e8400-e29b-41d4-a716-446655440000"}, io.Discard)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if opts.SourceID != "550e8400-e29b-41d4-a716-446655440000" {
		t.Errorf("SourceID = %q", opts.SourceID)
	}

	opts, err = parseIngestOptions(nil, io.Discard)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if opts.SourceID != "" {
		t.Errorf("-source未指定時は空であるべき: got %q", opts.SourceID)
	}
}

func TestParseIngestOptions_UnknownFlag(t *testing.T) {
	if _, err := parseIngestOptions([]string{"-all"}, io.Discard); err == nil {
		t.Error("未知のフラグはエラーになるべき")
	}
}

func TestParseReportOptions(t *testing.T) {
	opts, err := parseReportOptions([]string{"-week", "12", "-year", "2025"}, io.Discard)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if opts.Week == nil || *opts.Week != 12 {
		t.Errorf("Week = %v, want 12", opts.Week)
	}
	if opts.Year == nil || *opts.Year != 2025 {
		t.Errorf("Year = %v, want 2025", opts.Year)
	}
}

func TestParseReportOptions_OmittedFlagsAreNil(t *testing.T) {
	opts, err := parseReportOptions([]string{"-week", "7"}, io.Discard)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if opts.Week == nil || *opts.Week != 7 {
		t.Errorf("Week = %v, want 7", opts.Week)
	}
	if opts.Year != nil {
		t.Errorf("-year未指定時はnilであるべき: got %d", *opts.Year)
	}

	opts, err = parseReportOptions(nil, io.Discard)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if opts.Week != nil || opts.Year != nil {
		t.Error("フラグなしの場合は現在週を使うため両方nilであるべき")
	}
}

func TestParseReportOptions_NonNumeric(t *testing.T) {
	if _, err := parseReportOptions([]string{"-week", "abc"}, io.Discard); err == nil {
		t.Error("数値でない週番号はエラーになるべき")
	}
}
