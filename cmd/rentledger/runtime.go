package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"github.com/xraph/grove"
	"github.com/xraph/grove/drivers/mongodriver"
	"github.com/xraph/grove/drivers/pgdriver"
	"github.com/xraph/grove/drivers/sqlitedriver"

	"github.com/xraph/rentledger"
	"github.com/xraph/rentledger/extension"
	"github.com/xraph/rentledger/joblock"
	"github.com/xraph/rentledger/store"
	"github.com/xraph/rentledger/store/memory"
)

// engineKeys are the extension.Config keys readable from RENTLEDGER_* variables.
var engineKeys = []string{
	"currency",
	"late_fee",
	"due_day_offset",
	"payment_method",
	"disable_order_binding",
	"razorpay_key_id",
	"razorpay_key_secret",
	"razorpay_base_url",
	"gateway_timeout",
}

// runtime holds settings resolved from flags, config file and environment.
type runtime struct {
	v      *viper.Viper
	cfg    extension.Config
	logger *slog.Logger
}

// application is an opened store plus the engine built on it.
type application struct {
	store  store.Store
	ledger *rentledger.Ledger
	locker joblock.Locker
	close  func()
}

func (rt *runtime) load(cmd *cobra.Command) error {
	v := viper.New()
	v.SetEnvPrefix("RENTLEDGER")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_", ".", "_"))
	v.AutomaticEnv()

	flags := cmd.Flags()
	for key, flag := range map[string]string{
		"config":     "config",
		"driver":     "driver",
		"dsn":        "dsn",
		"redis_addr": "redis-addr",
		"log_json":   "log-json",
		"log_level":  "log-level",
	} {
		if f := flags.Lookup(flag); f != nil {
			if err := v.BindPFlag(key, f); err != nil {
				return err
			}
		}
	}
	for _, key := range engineKeys {
		if err := v.BindEnv(key); err != nil {
			return err
		}
	}

	if path := v.GetString("config"); path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return fmt.Errorf("read config %s: %w", path, err)
		}
	}

	var cfg extension.Config
	if err := v.Unmarshal(&cfg); err != nil {
		return fmt.Errorf("decode config: %w", err)
	}

	rt.v = v
	rt.cfg = cfg
	rt.logger = newLogger(v.GetBool("log_json"), v.GetString("log_level"))
	return nil
}

func newLogger(asJSON bool, level string) *slog.Logger {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		lvl = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: lvl}
	if asJSON {
		return slog.New(slog.NewJSONHandler(os.Stderr, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stderr, opts))
}

// open connects the configured store and builds the engine.
func (rt *runtime) open(ctx context.Context) (*application, error) {
	s, closeStore, err := openStore(ctx, rt.v.GetString("driver"), rt.v.GetString("dsn"))
	if err != nil {
		return nil, err
	}

	opts, err := rt.cfg.LedgerOptions()
	if err != nil {
		closeStore()
		return nil, err
	}
	opts = append(opts, rentledger.WithLogger(rt.logger))

	app := &application{
		store:  s,
		ledger: rentledger.New(s, rt.cfg.Gateway(), opts...),
		close:  closeStore,
	}

	if addr := rt.v.GetString("redis_addr"); addr != "" {
		client := redis.NewClient(&redis.Options{Addr: addr})
		app.locker = joblock.NewRedis(client, "")
		app.close = func() {
			_ = client.Close()
			closeStore()
		}
	}
	return app, nil
}

// runJob opens the application and runs fn under the job lock.
func (rt *runtime) runJob(cmd *cobra.Command, job string, fn func(*application) error) error {
	ctx := cmd.Context()
	app, err := rt.open(ctx)
	if err != nil {
		return err
	}
	defer app.close()

	err = joblock.Run(ctx, app.locker, job, joblock.DefaultTTL, func(context.Context) error {
		return fn(app)
	})
	if errors.Is(err, joblock.ErrHeld) {
		rt.logger.Warn("job already running elsewhere, skipping", "job", job)
		return nil
	}
	return err
}

func openStore(ctx context.Context, driver, dsn string) (store.Store, func(), error) {
	if driver == "memory" {
		s := memory.New()
		return s, func() { _ = s.Close() }, nil
	}
	if dsn == "" {
		return nil, nil, fmt.Errorf("--dsn is required for driver %q", driver)
	}

	var gd grove.GroveDriver
	switch driver {
	case "pg":
		drv := pgdriver.New()
		if err := drv.Open(ctx, dsn); err != nil {
			return nil, nil, fmt.Errorf("open postgres: %w", err)
		}
		gd = drv
	case "sqlite":
		drv := sqlitedriver.New()
		if err := drv.Open(ctx, dsn); err != nil {
			return nil, nil, fmt.Errorf("open sqlite: %w", err)
		}
		gd = drv
	case "mongo":
		drv := mongodriver.New()
		if err := drv.Open(ctx, dsn); err != nil {
			return nil, nil, fmt.Errorf("open mongo: %w", err)
		}
		gd = drv
	default:
		return nil, nil, fmt.Errorf("unknown driver %q", driver)
	}

	db, err := grove.Open(gd)
	if err != nil {
		return nil, nil, fmt.Errorf("grove open: %w", err)
	}
	s, err := extension.StoreForDB(db)
	if err != nil {
		_ = db.Close()
		return nil, nil, err
	}
	return s, func() { _ = s.Close() }, nil
}

func dateFlag(cmd *cobra.Command) (time.Time, error) {
	s, err := cmd.Flags().GetString("date")
	if err != nil || s == "" {
		return time.Time{}, err
	}
	d, err := time.Parse(time.DateOnly, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("--date: %w", err)
	}
	return d, nil
}
