/*
main.go - Command-line spreadsheet ingestion

PURPOSE:
  Loads one spreadsheet into the store without the HTTP server, using the
  same reader, normalizer and atomic batch write as POST /api/uploads.

COMMAND-LINE FLAGS:
  -config   Config file path (default: $FUND_CONFIG or config.yaml)
  -env-only Skip the config file
  -file     .xlsx or .csv file to load (required)
  -asof     As-of date, YYYY-MM-DD (required)
  -dry-run  Normalize and report without writing

EXAMPLES:
  ./ingest -file=returns_2024q2.xlsx -asof=2024-06-30
  ./ingest -env-only -file=returns.csv -asof=2024-06-30 -dry-run
*/
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"

	"go.uber.org/zap"

	"github.com/warp/fund-returns/config"
	"github.com/warp/fund-returns/fund"
	"github.com/warp/fund-returns/logging"
	"github.com/warp/fund-returns/sheet"
	"github.com/warp/fund-returns/store/sqlite"
)

func main() {
	defaultPath := os.Getenv("FUND_CONFIG")
	if defaultPath == "" {
		defaultPath = "config.yaml"
	}
	cfgPath := flag.String("config", defaultPath, "Config file path")
	envOnly := flag.Bool("env-only", false, "Ignore the config file")
	file := flag.String("file", "", "Spreadsheet to load (.xlsx or .csv)")
	asOfRaw := flag.String("asof", "", "As-of date (YYYY-MM-DD)")
	dryRun := flag.Bool("dry-run", false, "Normalize only, do not write")
	flag.Parse()

	if *file == "" || *asOfRaw == "" {
		flag.Usage()
		os.Exit(2)
	}

	cfg, err := config.Load(*cfgPath, *envOnly)
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}
	logger, err := logging.New(cfg.Log)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	if err := run(context.Background(), logger, cfg, *file, *asOfRaw, *dryRun); err != nil {
		logger.Error("ingest failed", zap.String("file", *file), zap.Error(err))
		logger.Sync()
		os.Exit(1)
	}
}

func run(ctx context.Context, logger *zap.Logger, cfg config.Config, path, asOfRaw string, dryRun bool) error {
	asOf, err := fund.ParseDate(asOfRaw)
	if err != nil {
		return fmt.Errorf("%w: asof: %v", fund.ErrInvalidQuery, err)
	}

	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	table, err := sheet.Read(path, f)
	if err != nil {
		return err
	}

	records, rowErrs, err := fund.NewNormalizer(cfg.Ingest.Columns).Prepare(table.Rows, asOf)
	for _, re := range rowErrs {
		logger.Warn("row skipped", zap.Int("row", re.Index), zap.String("column", re.Column), zap.Error(re.Err))
	}
	if err != nil {
		return err
	}

	if dryRun {
		logger.Info("dry run",
			zap.String("sheet", table.Sheet),
			zap.Int("rows", len(table.Rows)),
			zap.Int("records", len(records)),
			zap.Int("skipped", len(rowErrs)),
		)
		return nil
	}

	store, err := sqlite.New(cfg.DB)
	if err != nil {
		return err
	}
	defer store.Close()

	before, err := store.CountByDate(ctx, asOf)
	if err != nil {
		return err
	}
	written, err := store.Write(ctx, records)
	if err != nil {
		var werr *fund.WriteError
		if errors.As(err, &werr) {
			logger.Error("batch rolled back", zap.Int("count", werr.Count))
		}
		return err
	}
	after, err := store.CountByDate(ctx, asOf)
	if err != nil {
		return err
	}

	logger.Info("ingest complete",
		zap.String("sheet", table.Sheet),
		zap.Stringer("asof_date", asOf),
		zap.Int("existing_before", before),
		zap.Int("written", written),
		zap.Int("count_after", after),
		zap.Int("skipped", len(rowErrs)),
	)
	return nil
}
