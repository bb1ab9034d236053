// Package seed は初期ソース一覧の読み込みと登録を提供する。
package seed

import (
	"context"
	_ "embed"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"

	"github.com/hitoshi/execdash/internal/model"
)

//go:embed sources.yaml
var defaultSources []byte

// SourceSpec はシードファイル内の1ソースの定義。
type SourceSpec struct {
	Name          string `yaml:"name"`
	Type          string `yaml:"type"`
	URL           string `yaml:"url"`
	CategoryHint  string `yaml:"categoryHint"`
	FetchInterval int    `yaml:"fetchInterval"`
	Enabled       *bool  `yaml:"enabled"`
}

type seedFile struct {
	Sources []SourceSpec `yaml:"sources"`
}

// URLValidator はソースURLの静的検証を行う。
type URLValidator interface {
	ValidateURL(rawURL string) error
}

// Store はシード登録に必要な永続化インターフェース。
type Store interface {
	FindByURL(ctx context.Context, url string) (*model.Source, error)
	Create(ctx context.Context, source *model.Source) error
}

// Result はシード登録の結果。
type Result struct {
	Created int
	Skipped int
}

// Load はpathのシードファイルを読み込む。pathが空の場合は組み込みの初期一覧を使う。
func Load(path string) ([]SourceSpec, error) {
	if path == "" {
		return Parse(defaultSources)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read seed file: %w", err)
	}
	return Parse(data)
}

// Parse はシードYAMLを解析し、各ソースの必須項目と種別を検証する。
func Parse(data []byte) ([]SourceSpec, error) {
	var f seedFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse seed YAML: %w", err)
	}
	if len(f.Sources) == 0 {
		return nil, fmt.Errorf("seed file has no sources")
	}

	seen := make(map[string]bool, len(f.Sources))
	for i, s := range f.Sources {
		if strings.TrimSpace(s.Name) == "" || strings.TrimSpace(s.URL) == "" {
			return nil, fmt.Errorf("source at index %d has no name or url", i)
		}
		if !model.SourceType(s.Type).IsValid() {
			return nil, fmt.Errorf("source %q has invalid type %q", s.Name, s.Type)
		}
		if s.FetchInterval < 0 {
			return nil, fmt.Errorf("source %q has negative fetchInterval", s.Name)
		}
		if seen[s.URL] {
			return nil, fmt.Errorf("duplicate url %q in seed file", s.URL)
		}
		seen[s.URL] = true
	}
	return f.Sources, nil
}

// Run はURLが未登録のソースだけを作成する。登録済みのURLはスキップするため、繰り返し実行できる。
func Run(ctx context.Context, store Store, validator URLValidator, specs []SourceSpec, logger *slog.Logger) (Result, error) {
	var res Result
	now := time.Now().UTC()

	for _, spec := range specs {
		if err := validator.ValidateURL(spec.URL); err != nil {
			return res, fmt.Errorf("source %q: %w", spec.Name, err)
		}

		existing, err := store.FindByURL(ctx, spec.URL)
		if err != nil {
			return res, fmt.Errorf("failed to look up source %q: %w", spec.URL, err)
		}
		if existing != nil {
			res.Skipped++
			logger.Info("登録済みのためスキップしました", slog.String("name", spec.Name), slog.String("source_url", spec.URL))
			continue
		}

		if err := store.Create(ctx, toSource(spec, now)); err != nil {
			return res, fmt.Errorf("failed to create source %q: %w", spec.URL, err)
		}
		res.Created++
		logger.Info("ソースを登録しました", slog.String("name", spec.Name), slog.String("source_url", spec.URL))
	}

	return res, nil
}

func toSource(spec SourceSpec, now time.Time) *model.Source {
	interval := spec.FetchInterval
	if interval == 0 {
		interval = model.DefaultFetchIntervalMinutes
	}
	enabled := true
	if spec.Enabled != nil {
		enabled = *spec.Enabled
	}
	return &model.Source{
		ID:            uuid.New().String(),
		Name:          strings.TrimSpace(spec.Name),
		Type:          model.SourceType(spec.Type),
		URL:           strings.TrimSpace(spec.URL),
		CategoryHint:  spec.CategoryHint,
		Enabled:       enabled,
		FetchInterval: interval,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
}
