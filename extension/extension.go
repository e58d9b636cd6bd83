// Package extension provides the Forge extension adapter for rentledger.
//
// It implements the forge.Extension interface to integrate the rent billing
// engine into a Forge application with automatic dependency discovery,
// DI registration, HTTP routes and lifecycle management.
//
// Configuration can be provided programmatically via Option functions
// or via YAML configuration files under "extensions.rentledger" or
// "rentledger" keys.
package extension

import (
	"context"
	"errors"
	"fmt"

	"github.com/xraph/forge"
	"github.com/xraph/grove"
	"github.com/xraph/vessel"

	"github.com/xraph/rentledger"
	"github.com/xraph/rentledger/auth"
	"github.com/xraph/rentledger/gateway"
	"github.com/xraph/rentledger/observability"
	"github.com/xraph/rentledger/store"
	"github.com/xraph/rentledger/store/memory"
	"github.com/xraph/rentledger/store/mongo"
	"github.com/xraph/rentledger/store/postgres"
	"github.com/xraph/rentledger/store/sqlite"
	"github.com/xraph/rentledger/types"
)

// ExtensionName is the name registered with Forge.
const ExtensionName = "rentledger"

// ExtensionDescription is the human-readable description.
const ExtensionDescription = "Hostel rent billing and payment reconciliation"

// ExtensionVersion is the semantic version.
const ExtensionVersion = "0.1.0"

// Ensure Extension implements forge.Extension at compile time.
var _ forge.Extension = (*Extension)(nil)

// Extension adapts rentledger as a Forge extension.
type Extension struct {
	*forge.BaseExtension

	config     Config
	engine     *rentledger.Ledger
	store      store.Store
	gateway    gateway.Gateway
	verifier   *auth.JWTVerifier
	ledgerOpts []rentledger.Option
	useGrove   bool
}

// New creates a new rentledger Forge extension with the given options.
func New(opts ...Option) *Extension {
	e := &Extension{
		BaseExtension: forge.NewBaseExtension(ExtensionName, ExtensionVersion, ExtensionDescription),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Engine returns the underlying Ledger instance.
// This is nil until Register is called.
func (e *Extension) Engine() *rentledger.Ledger { return e.engine }

// Register implements [forge.Extension]. It loads configuration,
// initializes the engine, registers it in the DI container and mounts routes.
func (e *Extension) Register(fapp forge.App) error {
	if err := e.BaseExtension.Register(fapp); err != nil {
		return err
	}

	if err := e.loadConfiguration(); err != nil {
		return err
	}

	if e.store == nil && e.useGrove {
		s, err := e.resolveGroveStore(fapp)
		if err != nil {
			return err
		}
		e.store = s
	}
	// Use memory store if no store was provided programmatically.
	if e.store == nil {
		e.store = memory.New()
	}

	if e.gateway == nil {
		e.gateway = e.config.Gateway()
	}

	opts, err := e.config.LedgerOptions()
	if err != nil {
		return err
	}
	if !e.config.DisableMetrics && fapp.Metrics() != nil {
		opts = append(opts, rentledger.WithPlugin(observability.NewMetricsExtension(fapp.Metrics())))
	}
	opts = append(opts, e.ledgerOpts...)

	e.engine = rentledger.New(e.store, e.gateway, opts...)

	if err := vessel.Provide(fapp.Container(), func() (*rentledger.Ledger, error) {
		return e.engine, nil
	}); err != nil {
		return err
	}

	if e.config.DisableRoutes {
		return nil
	}
	if e.verifier == nil {
		if e.config.JWTSecret == "" {
			return errors.New("rentledger: jwt_secret is required when routes are enabled")
		}
		var jwtOpts []auth.JWTOption
		if e.config.JWTIssuer != "" {
			jwtOpts = append(jwtOpts, auth.WithIssuer(e.config.JWTIssuer))
		}
		e.verifier = auth.NewJWTVerifier(e.config.JWTSecret, jwtOpts...)
	}
	return e.RegisterRoutes(fapp.Router().Group(e.config.BasePath))
}

// Start implements [forge.Extension].
func (e *Extension) Start(ctx context.Context) error {
	if e.engine == nil {
		return errors.New("rentledger: extension not initialized")
	}

	if !e.config.DisableMigrate {
		if err := e.engine.Start(ctx); err != nil {
			return err
		}
	}

	e.MarkStarted()
	return nil
}

// Stop implements [forge.Extension].
func (e *Extension) Stop(_ context.Context) error {
	if e.engine != nil {
		if err := e.engine.Stop(); err != nil {
			e.MarkStopped()
			return err
		}
	}
	e.MarkStopped()
	return nil
}

// Health implements [forge.Extension].
func (e *Extension) Health(ctx context.Context) error {
	if e.store == nil {
		return errors.New("rentledger: store not initialized")
	}
	return e.store.Ping(ctx)
}

// resolveGroveStore pulls a grove.DB from the container and wraps it in the
// store backend matching its driver.
func (e *Extension) resolveGroveStore(fapp forge.App) (store.Store, error) {
	var (
		db  *grove.DB
		err error
	)
	if e.config.GroveDatabase != "" {
		db, err = vessel.InjectNamed[*grove.DB](fapp.Container(), e.config.GroveDatabase)
	} else {
		db, err = vessel.Inject[*grove.DB](fapp.Container())
	}
	if err != nil {
		return nil, fmt.Errorf("rentledger: resolve grove database %q: %w", e.config.GroveDatabase, err)
	}
	return StoreForDB(db)
}

// StoreForDB wraps db in the store backend matching its driver.
func StoreForDB(db *grove.DB) (store.Store, error) {
	switch name := db.Driver().Name(); name {
	case "pg":
		return postgres.New(db), nil
	case "sqlite":
		return sqlite.New(db), nil
	case "mongo":
		return mongo.New(db), nil
	default:
		return nil, fmt.Errorf("rentledger: unsupported grove driver %q", name)
	}
}

// LedgerOptions converts the configuration into engine options.
func (c Config) LedgerOptions() ([]rentledger.Option, error) {
	c = mergeWithDefaults(c)

	fee, err := types.ParseMoney(c.LateFee, c.Currency)
	if err != nil {
		return nil, fmt.Errorf("rentledger: late_fee: %w", err)
	}
	if !fee.IsPositive() {
		return nil, fmt.Errorf("rentledger: late_fee %q: must be positive", c.LateFee)
	}

	if *c.DueDayOffset < 0 || *c.DueDayOffset > 27 {
		return nil, fmt.Errorf("rentledger: due_day_offset %d: must be between 0 and 27", *c.DueDayOffset)
	}

	return []rentledger.Option{
		rentledger.WithCurrency(c.Currency),
		rentledger.WithLateFee(fee),
		rentledger.WithDueDayOffset(*c.DueDayOffset),
		rentledger.WithPaymentMethod(c.PaymentMethod),
		rentledger.WithOrderBinding(!c.DisableOrderBinding),
	}, nil
}

// Gateway builds the Razorpay client, or returns nil when credentials are
// not configured.
func (c Config) Gateway() gateway.Gateway {
	if c.RazorpayKeyID == "" || c.RazorpayKeySecret == "" {
		return nil
	}
	c = mergeWithDefaults(c)

	opts := []gateway.RazorpayOption{gateway.WithTimeout(c.GatewayTimeout)}
	if c.RazorpayBaseURL != "" {
		opts = append(opts, gateway.WithBaseURL(c.RazorpayBaseURL))
	}
	return gateway.NewRazorpay(c.RazorpayKeyID, c.RazorpayKeySecret, opts...)
}

// --- Config Loading (mirrors grove/shield extension pattern) ---

// loadConfiguration loads config from YAML files or programmatic sources.
func (e *Extension) loadConfiguration() error {
	programmaticConfig := e.config

	// Try loading from config file.
	fileConfig, configLoaded := e.tryLoadFromConfigFile()

	if !configLoaded {
		if programmaticConfig.RequireConfig {
			return errors.New("rentledger: configuration is required but not found in config files; " +
				"ensure 'extensions.rentledger' or 'rentledger' key exists in your config")
		}

		// Use programmatic config merged with defaults.
		e.config = mergeWithDefaults(programmaticConfig)
	} else {
		// Config loaded from YAML -- merge with programmatic options.
		e.config = mergeConfigurations(fileConfig, programmaticConfig)
	}
	if e.config.GroveDatabase != "" {
		e.useGrove = true
	}

	e.Logger().Debug("rentledger: configuration loaded",
		forge.F("disable_routes", e.config.DisableRoutes),
		forge.F("disable_migrate", e.config.DisableMigrate),
		forge.F("base_path", e.config.BasePath),
		forge.F("currency", e.config.Currency),
		forge.F("late_fee", e.config.LateFee),
		forge.F("due_day_offset", *e.config.DueDayOffset),
		forge.F("gateway_configured", e.config.RazorpayKeyID != ""),
		forge.F("grove_database", e.config.GroveDatabase),
	)

	return nil
}

// tryLoadFromConfigFile attempts to load config from YAML files.
func (e *Extension) tryLoadFromConfigFile() (Config, bool) {
	cm := e.App().Config()
	var cfg Config

	for _, key := range []string{"extensions.rentledger", "rentledger"} {
		if !cm.IsSet(key) {
			continue
		}
		if err := cm.Bind(key, &cfg); err != nil {
			e.Logger().Warn("rentledger: failed to bind config",
				forge.F("key", key),
				forge.F("error", err.Error()),
			)
			continue
		}
		e.Logger().Debug("rentledger: loaded config from file",
			forge.F("key", key),
		)
		return cfg, true
	}

	return Config{}, false
}

// mergeWithDefaults fills zero-valued fields with defaults.
func mergeWithDefaults(cfg Config) Config {
	defaults := DefaultConfig()
	if cfg.BasePath == "" {
		cfg.BasePath = defaults.BasePath
	}
	if cfg.Currency == "" {
		cfg.Currency = defaults.Currency
	}
	if cfg.LateFee == "" {
		cfg.LateFee = defaults.LateFee
	}
	if cfg.DueDayOffset == nil {
		cfg.DueDayOffset = defaults.DueDayOffset
	}
	if cfg.PaymentMethod == "" {
		cfg.PaymentMethod = defaults.PaymentMethod
	}
	if cfg.GatewayTimeout == 0 {
		cfg.GatewayTimeout = defaults.GatewayTimeout
	}
	return cfg
}

// mergeConfigurations merges YAML config with programmatic options.
// YAML config takes precedence for most fields; programmatic values fill gaps.
func mergeConfigurations(yamlConfig, programmaticConfig Config) Config {
	// Programmatic bool flags override when true.
	if programmaticConfig.DisableRoutes {
		yamlConfig.DisableRoutes = true
	}
	if programmaticConfig.DisableMigrate {
		yamlConfig.DisableMigrate = true
	}
	if programmaticConfig.DisableMetrics {
		yamlConfig.DisableMetrics = true
	}
	if programmaticConfig.DisableOrderBinding {
		yamlConfig.DisableOrderBinding = true
	}

	// String fields: YAML takes precedence.
	fill := func(dst *string, src string) {
		if *dst == "" && src != "" {
			*dst = src
		}
	}
	fill(&yamlConfig.BasePath, programmaticConfig.BasePath)
	fill(&yamlConfig.Currency, programmaticConfig.Currency)
	fill(&yamlConfig.LateFee, programmaticConfig.LateFee)
	fill(&yamlConfig.PaymentMethod, programmaticConfig.PaymentMethod)
	fill(&yamlConfig.RazorpayKeyID, programmaticConfig.RazorpayKeyID)
	fill(&yamlConfig.RazorpayKeySecret, programmaticConfig.RazorpayKeySecret)
	fill(&yamlConfig.RazorpayBaseURL, programmaticConfig.RazorpayBaseURL)
	fill(&yamlConfig.JWTSecret, programmaticConfig.JWTSecret)
	fill(&yamlConfig.JWTIssuer, programmaticConfig.JWTIssuer)
	fill(&yamlConfig.GroveDatabase, programmaticConfig.GroveDatabase)

	// Duration/int fields: YAML takes precedence, programmatic fills gaps.
	if yamlConfig.DueDayOffset == nil && programmaticConfig.DueDayOffset != nil {
		yamlConfig.DueDayOffset = programmaticConfig.DueDayOffset
	}
	if yamlConfig.GatewayTimeout == 0 && programmaticConfig.GatewayTimeout != 0 {
		yamlConfig.GatewayTimeout = programmaticConfig.GatewayTimeout
	}

	// Fill remaining zeros with defaults.
	return mergeWithDefaults(yamlConfig)
}
