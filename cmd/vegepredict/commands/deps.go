package commands

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/lorwen/vegepredict/internal/catalog"
	"github.com/lorwen/vegepredict/internal/contracts"
	"github.com/lorwen/vegepredict/internal/model"
	"github.com/lorwen/vegepredict/pkg/config"
	"github.com/lorwen/vegepredict/pkg/database"
	"github.com/lorwen/vegepredict/pkg/logger"
)

// initDeps loads config, builds the logger and connects to the database.
// Every command starts here.
func initDeps() (*config.Config, *logger.Logger, *database.DB, error) {
	if dbURL != "" {
		os.Setenv("DATABASE_URL", dbURL)
	}
	if verbose {
		os.Setenv("LOG_LEVEL", "debug")
	}

	cfg, err := config.Load()
	if err != nil {
		return nil, nil, nil, fmt.Errorf("load config: %w", err)
	}

	log := logger.New(cfg)

	db, err := database.New(cfg)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("connect to database: %w", err)
	}

	return cfg, log, db, nil
}

// loadRegistries reads both pretrained model artifacts.
func loadRegistries(cfg *config.Config) (map[contracts.VolatilityClass]*model.Registry, error) {
	high, err := model.LoadRegistry(cfg.Models.HighPath, contracts.VolatilityHigh)
	if err != nil {
		return nil, fmt.Errorf("load high volatility models: %w", err)
	}
	low, err := model.LoadRegistry(cfg.Models.LowPath, contracts.VolatilityLow)
	if err != nil {
		return nil, fmt.Errorf("load low volatility models: %w", err)
	}
	return map[contracts.VolatilityClass]*model.Registry{
		contracts.VolatilityHigh: high,
		contracts.VolatilityLow:  low,
	}, nil
}

// selectItems resolves the --items flag: empty means the full catalogue,
// otherwise a comma-separated list of item IDs. Unknown IDs fail loudly
// rather than silently forecasting a smaller set.
func selectItems(itemsFlag string) ([]contracts.Item, error) {
	if itemsFlag == "" {
		return catalog.Items(), nil
	}

	var ids []int
	for _, part := range strings.Split(itemsFlag, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		id, err := strconv.Atoi(part)
		if err != nil {
			return nil, fmt.Errorf("invalid item id %q", part)
		}
		if _, ok := catalog.Lookup(id); !ok {
			return nil, fmt.Errorf("unknown item id %d", id)
		}
		ids = append(ids, id)
	}
	if len(ids) == 0 {
		return nil, fmt.Errorf("no item ids in %q", itemsFlag)
	}
	return catalog.Filter(ids), nil
}

// parseDateRange resolves the --from/--to flags. Both default to today.
func parseDateRange(fromFlag, toFlag string) (time.Time, time.Time, error) {
	now := time.Now()
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())

	from, to := today, today
	var err error
	if fromFlag != "" {
		from, err = time.Parse("2006-01-02", fromFlag)
		if err != nil {
			return time.Time{}, time.Time{}, fmt.Errorf("invalid from date: %w", err)
		}
	}
	if toFlag != "" {
		to, err = time.Parse("2006-01-02", toFlag)
		if err != nil {
			return time.Time{}, time.Time{}, fmt.Errorf("invalid to date: %w", err)
		}
	}
	if to.Before(from) {
		return time.Time{}, time.Time{}, fmt.Errorf("to date %s is before from date %s",
			to.Format("2006-01-02"), from.Format("2006-01-02"))
	}
	return from, to, nil
}
