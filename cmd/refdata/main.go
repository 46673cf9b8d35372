// refdata loads SLA policies and routing rules from a YAML file into
// Postgres. Existing rows with the same id are overwritten; rows missing
// from the file are left alone.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/spf13/pflag"
	"go.uber.org/zap"

	"github.com/spec-kit/ticket-engine/internal/config"
	"github.com/spec-kit/ticket-engine/internal/observability"
	"github.com/spec-kit/ticket-engine/internal/persistence"
	"github.com/spec-kit/ticket-engine/internal/refdata"
	"github.com/spec-kit/ticket-engine/internal/repository"
	"github.com/spec-kit/ticket-engine/internal/sla"
)

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	var (
		filePath string
		dsn      string
		dryRun   bool
		migrate  bool
	)
	flagSet := pflag.NewFlagSet("refdata", pflag.ContinueOnError)
	flagSet.StringVarP(&filePath, "file", "f", cfg.RefData.File, "reference data YAML file (default: $REFDATA_FILE)")
	flagSet.StringVar(&dsn, "dsn", cfg.Postgres.DSN, "postgres DSN (default: $POSTGRES_DSN)")
	flagSet.BoolVar(&dryRun, "dry-run", false, "validate the file without writing")
	flagSet.BoolVar(&migrate, "migrate", false, "apply schema migrations before loading")
	flagSet.BoolP("help", "h", false, "show help")

	if err := flagSet.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			printHelp(flagSet)
			return nil
		}
		return err
	}
	if help, _ := flagSet.GetBool("help"); help {
		printHelp(flagSet)
		return nil
	}
	if rest := flagSet.Args(); len(rest) > 0 {
		return fmt.Errorf("unexpected argument: %s", rest[0])
	}
	if filePath == "" {
		return errors.New("--file is required")
	}

	logger, err := observability.NewLogger(cfg.Logger, cfg.App)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer logger.Sync() //nolint:errcheck

	data, err := refdata.Load(filePath)
	if err != nil {
		return err
	}
	logger.Info("reference data parsed",
		zap.String("file", filePath),
		zap.Int("sla_policies", len(data.SLAPolicies)),
		zap.Int("routing_rules", len(data.RoutingRules)))
	if dryRun {
		return nil
	}
	if dsn == "" {
		return errors.New("--dsn or POSTGRES_DSN is required")
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	pgCfg := cfg.Postgres
	pgCfg.DSN = dsn
	pg, err := persistence.NewPostgres(ctx, pgCfg, logger)
	if err != nil {
		return fmt.Errorf("connect postgres: %w", err)
	}
	defer pg.Close()

	if migrate {
		if err := persistence.RunMigrations(ctx, pg.Pool, logger); err != nil {
			return err
		}
	}

	policies := repository.NewSLAPolicyRepository(pg.Pool)
	for i := range data.SLAPolicies {
		if err := policies.Upsert(ctx, &data.SLAPolicies[i]); err != nil {
			return fmt.Errorf("upsert sla policy %s: %w", data.SLAPolicies[i].ID, err)
		}
	}
	rules := repository.NewRoutingRuleRepository(pg.Pool)
	for i := range data.RoutingRules {
		if err := rules.Upsert(ctx, &data.RoutingRules[i]); err != nil {
			return fmt.Errorf("upsert routing rule %s: %w", data.RoutingRules[i].ID, err)
		}
	}

	rdb := persistence.NewRedis(ctx, cfg.Redis, logger)
	defer rdb.Close()
	if err := sla.NewCachedSource(policies, rdb.Client, cfg.Redis.SLACacheTTL(), logger).Invalidate(ctx); err != nil {
		logger.Warn("sla cache invalidation failed", zap.Error(err))
	}

	logger.Info("reference data loaded")
	return nil
}

func printHelp(flagSet *pflag.FlagSet) {
	fmt.Fprintf(os.Stderr, "Usage: refdata --file reference.yaml [--dsn postgres://...] [--dry-run] [--migrate]\n\n")
	flagSet.PrintDefaults()
}
