package extension

import (
	"time"

	"github.com/xraph/rentledger/rent"
)

// Config holds the rentledger extension configuration.
// Fields can be set programmatically via Option functions or loaded from
// YAML configuration files (under "extensions.rentledger" or "rentledger" keys).
type Config struct {
	// DisableRoutes prevents HTTP route registration.
	DisableRoutes bool `json:"disable_routes" mapstructure:"disable_routes" yaml:"disable_routes"`

	// DisableMigrate prevents auto-migration on start.
	DisableMigrate bool `json:"disable_migrate" mapstructure:"disable_migrate" yaml:"disable_migrate"`

	// DisableMetrics skips registering the observability plugin.
	DisableMetrics bool `json:"disable_metrics" mapstructure:"disable_metrics" yaml:"disable_metrics"`

	// BasePath is the URL prefix for rent routes (default: "/rent").
	BasePath string `json:"base_path" mapstructure:"base_path" yaml:"base_path"`

	// Currency is the billing currency (default: "inr").
	Currency string `json:"currency" mapstructure:"currency" yaml:"currency"`

	// LateFee is the one-time overdue fee in major units (default: "200.00").
	LateFee string `json:"late_fee" mapstructure:"late_fee" yaml:"late_fee"`

	// DueDayOffset is the number of days after the first of the month on
	// which rent falls due (default: 9, i.e. the 10th). Nil means unset, so
	// that 0 (due on the 1st) can be configured.
	DueDayOffset *int `json:"due_day_offset" mapstructure:"due_day_offset" yaml:"due_day_offset"`

	// PaymentMethod is recorded on captured payments (default: "razorpay").
	PaymentMethod string `json:"payment_method" mapstructure:"payment_method" yaml:"payment_method"`

	// DisableOrderBinding skips fetching the gateway order before settlement.
	DisableOrderBinding bool `json:"disable_order_binding" mapstructure:"disable_order_binding" yaml:"disable_order_binding"`

	// RazorpayKeyID and RazorpayKeySecret are the gateway credentials. When
	// either is empty the engine runs without a gateway and payment routes
	// answer 502.
	RazorpayKeyID     string `json:"razorpay_key_id" mapstructure:"razorpay_key_id" yaml:"razorpay_key_id"`
	RazorpayKeySecret string `json:"razorpay_key_secret" mapstructure:"razorpay_key_secret" yaml:"razorpay_key_secret"`

	// RazorpayBaseURL overrides the gateway API endpoint.
	RazorpayBaseURL string `json:"razorpay_base_url" mapstructure:"razorpay_base_url" yaml:"razorpay_base_url"`

	// GatewayTimeout bounds each gateway call (default: 10s).
	GatewayTimeout time.Duration `json:"gateway_timeout" mapstructure:"gateway_timeout" yaml:"gateway_timeout"`

	// JWTSecret verifies HS256 bearer tokens on request routes.
	JWTSecret string `json:"jwt_secret" mapstructure:"jwt_secret" yaml:"jwt_secret"`

	// JWTIssuer, when set, must match the token's iss claim.
	JWTIssuer string `json:"jwt_issuer" mapstructure:"jwt_issuer" yaml:"jwt_issuer"`

	// GroveDatabase is the name of a grove.DB registered in the DI container.
	// When set, the extension resolves this named database and auto-constructs
	// the appropriate store based on the driver type (pg/sqlite/mongo).
	// When empty and WithGroveDatabase was called, the default (unnamed) DB is used.
	GroveDatabase string `json:"grove_database" mapstructure:"grove_database" yaml:"grove_database"`

	// RequireConfig requires config to be present in YAML files.
	// If true and no config is found, Register returns an error.
	RequireConfig bool `json:"-" yaml:"-"`
}

// DueDay returns a DueDayOffset value for days.
func DueDay(days int) *int { return &days }

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		BasePath:       "/rent",
		Currency:       "inr",
		LateFee:        "200.00",
		DueDayOffset:   DueDay(rent.DefaultDueDayOffset),
		PaymentMethod:  "razorpay",
		GatewayTimeout: 10 * time.Second,
	}
}
