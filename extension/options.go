package extension

import (
	"time"

	"github.com/xraph/rentledger"
	"github.com/xraph/rentledger/auth"
	"github.com/xraph/rentledger/gateway"
	"github.com/xraph/rentledger/plugin"
	"github.com/xraph/rentledger/store"
)

// Option configures the rentledger Forge extension.
type Option func(*Extension)

// WithStore sets the store for the engine.
func WithStore(s store.Store) Option {
	return func(e *Extension) {
		e.store = s
	}
}

// WithGateway sets the payment gateway, overriding the configured
// Razorpay credentials.
func WithGateway(gw gateway.Gateway) Option {
	return func(e *Extension) {
		e.gateway = gw
	}
}

// WithVerifier sets the bearer token verifier used by the routes.
func WithVerifier(v *auth.JWTVerifier) Option {
	return func(e *Extension) {
		e.verifier = v
	}
}

// WithLedgerOption passes a rentledger.Option through to the underlying engine.
func WithLedgerOption(opt rentledger.Option) Option {
	return func(e *Extension) {
		e.ledgerOpts = append(e.ledgerOpts, opt)
	}
}

// WithPlugin registers an engine plugin.
func WithPlugin(p plugin.Plugin) Option {
	return func(e *Extension) {
		e.ledgerOpts = append(e.ledgerOpts, rentledger.WithPlugin(p))
	}
}

// WithConfig sets the Forge extension configuration.
func WithConfig(cfg Config) Option {
	return func(e *Extension) { e.config = cfg }
}

// WithDisableRoutes prevents HTTP route registration.
func WithDisableRoutes() Option {
	return func(e *Extension) { e.config.DisableRoutes = true }
}

// WithDisableMigrate prevents auto-migration on start.
func WithDisableMigrate() Option {
	return func(e *Extension) { e.config.DisableMigrate = true }
}

// WithBasePath sets the URL prefix for rent routes.
func WithBasePath(path string) Option {
	return func(e *Extension) { e.config.BasePath = path }
}

// WithRequireConfig requires config to be present in YAML files.
// If true and no config is found, Register returns an error.
func WithRequireConfig(require bool) Option {
	return func(e *Extension) { e.config.RequireConfig = require }
}

// WithLateFee sets the overdue fee in major units, e.g. "200.00".
func WithLateFee(amount string) Option {
	return func(e *Extension) { e.config.LateFee = amount }
}

// WithRazorpay sets the gateway credentials.
func WithRazorpay(keyID, keySecret string) Option {
	return func(e *Extension) {
		e.config.RazorpayKeyID = keyID
		e.config.RazorpayKeySecret = keySecret
	}
}

// WithGatewayTimeout bounds each gateway call.
func WithGatewayTimeout(d time.Duration) Option {
	return func(e *Extension) { e.config.GatewayTimeout = d }
}

// WithJWTSecret sets the HS256 secret for bearer tokens.
func WithJWTSecret(secret string) Option {
	return func(e *Extension) { e.config.JWTSecret = secret }
}

// WithGroveDatabase sets the name of the grove.DB to resolve from the DI container.
// The extension will auto-construct the appropriate store backend (postgres/sqlite/mongo)
// based on the grove driver type. Pass an empty string to use the default (unnamed) grove.DB.
func WithGroveDatabase(name string) Option {
	return func(e *Extension) {
		e.config.GroveDatabase = name
		e.useGrove = true
	}
}
