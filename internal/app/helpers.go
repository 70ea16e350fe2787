package app

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"
	"time"
	"unicode/utf8"

	"github.com/rs/zerolog"

	"horse.fit/whatson/internal/cli"
	"horse.fit/whatson/internal/config"
	"horse.fit/whatson/internal/db"
	"horse.fit/whatson/internal/dedup"
	"horse.fit/whatson/internal/ingest"
	"horse.fit/whatson/internal/merge"
	"horse.fit/whatson/internal/normalize"
	"horse.fit/whatson/internal/profile"
	"horse.fit/whatson/internal/ranking"
	"horse.fit/whatson/internal/vector"
)

const (
	outputFormatTable = "table"
	outputFormatJSON  = "json"
)

func parseOutputFormat(raw, defaultFormat string) (string, error) {
	format := strings.TrimSpace(strings.ToLower(raw))
	if format == "" {
		format = strings.TrimSpace(strings.ToLower(defaultFormat))
	}
	switch format {
	case outputFormatTable, outputFormatJSON:
		return format, nil
	default:
		return "", fmt.Errorf("--format must be table or json")
	}
}

func truncateForTable(value string, maxLen int) string {
	trimmed := strings.TrimSpace(value)
	if maxLen <= 0 {
		return trimmed
	}
	if utf8.RuneCountInString(trimmed) <= maxLen {
		return trimmed
	}

	runes := []rune(trimmed)
	if maxLen <= 3 {
		return string(runes[:maxLen])
	}
	return string(runes[:maxLen-3]) + "..."
}

func printJSON(value any) error {
	encoder := json.NewEncoder(os.Stdout)
	encoder.SetIndent("", "  ")
	return encoder.Encode(value)
}

func writeTable(headers []string, rows [][]string) error {
	writer := tabwriter.NewWriter(os.Stdout, 0, 8, 2, ' ', 0)
	if _, err := fmt.Fprintln(writer, strings.Join(headers, "\t")); err != nil {
		return err
	}
	for _, row := range rows {
		if _, err := fmt.Fprintln(writer, strings.Join(row, "\t")); err != nil {
			return err
		}
	}
	return writer.Flush()
}

func connectPool(timeout time.Duration, envLoader *cli.EnvLoader) (context.Context, context.CancelFunc, *config.Config, *db.Pool, error) {
	if envLoader != nil {
		if _, err := envLoader.Load(); err != nil {
			fmt.Fprintf(os.Stderr, "Warning: %v\n", err)
		}
	}

	cfg, err := config.Load()
	if err != nil {
		return nil, nil, nil, nil, fmt.Errorf("failed to load config: %w", err)
	}

	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	pool, err := db.NewPool(ctx, cfg)
	if err != nil {
		cancel()
		return nil, nil, nil, nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	return ctx, cancel, cfg, pool, nil
}

// core bundles the engines every command composes the same way.
type core struct {
	catalog    *config.Catalog
	normalizer *normalize.Normalizer
	extractor  *vector.Extractor
	profiles   *profile.Builder
	ranker     *ranking.Ranker
	ingester   *ingest.Service
	resolver   *merge.Resolver
	engine     *dedup.Engine
}

func buildCore(cfg *config.Config, pool *db.Pool, logger zerolog.Logger) (*core, error) {
	catalog, err := config.LoadCatalog(cfg.CatalogPath)
	if err != nil {
		return nil, fmt.Errorf("load catalog: %w", err)
	}

	normalizer := normalize.New(cfg.NormalizeCacheCeiling)
	extractor := vector.NewExtractor(normalizer, catalog, vector.WeightsFromConfig(cfg))
	return &core{
		catalog:    catalog,
		normalizer: normalizer,
		extractor:  extractor,
		profiles:   profile.NewBuilder(pool, extractor, profile.OptionsFromConfig(cfg), logger),
		ranker:     ranking.NewRanker(extractor, ranking.OptionsFromConfig(cfg), logger),
		ingester:   ingest.NewService(pool, logger),
		resolver:   merge.NewResolver(catalog),
		engine:     dedup.NewEngine(normalizer, catalog, dedup.OptionsFromConfig(cfg), logger),
	}, nil
}

func formatUTCTimestamp(value time.Time) string {
	if value.IsZero() {
		return ""
	}
	return value.UTC().Format(time.RFC3339)
}
