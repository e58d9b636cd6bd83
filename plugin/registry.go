package plugin

import (
	"context"
	"fmt"
	"log/slog"
	"reflect"
	"sync"
	"time"

	"github.com/xraph/rentledger/gateway"
	"github.com/xraph/rentledger/id"
	"github.com/xraph/rentledger/payment"
	"github.com/xraph/rentledger/rent"
	"github.com/xraph/rentledger/types"
)

// DefaultTimeout bounds each hook call.
const DefaultTimeout = 5 * time.Second

// Registry manages all registered plugins and provides efficient dispatch.
// It uses type-cached discovery for O(1) dispatch performance.
type Registry struct {
	mu      sync.RWMutex
	plugins []Plugin
	logger  *slog.Logger
	timeout time.Duration

	// Type-cached plugin lists for efficient dispatch
	onInit                []OnInit
	onShutdown            []OnShutdown
	onRentGenerated       []OnRentGenerated
	onLateFeeApplied      []OnLateFeeApplied
	onBatchCompleted      []OnBatchCompleted
	onPaymentOrderCreated []OnPaymentOrderCreated
	onPaymentCaptured     []OnPaymentCaptured
	onPaymentRejected     []OnPaymentRejected
	onInvoiceRendered     []OnInvoiceRendered
}

// NewRegistry creates a new plugin registry.
func NewRegistry() *Registry {
	return &Registry{
		logger:  slog.Default(),
		timeout: DefaultTimeout,
	}
}

// WithLogger sets the logger for the registry.
func (r *Registry) WithLogger(logger *slog.Logger) *Registry {
	r.logger = logger
	return r
}

// WithTimeout sets the per-hook timeout.
func (r *Registry) WithTimeout(d time.Duration) *Registry {
	r.timeout = d
	return r
}

// Register adds a plugin to the registry and caches its interfaces.
func (r *Registry) Register(p Plugin) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, existing := range r.plugins {
		if existing.Name() == p.Name() {
			return fmt.Errorf("plugin: duplicate registration: %s", p.Name())
		}
	}

	r.plugins = append(r.plugins, p)

	if v, ok := p.(OnInit); ok {
		r.onInit = append(r.onInit, v)
	}
	if v, ok := p.(OnShutdown); ok {
		r.onShutdown = append(r.onShutdown, v)
	}
	if v, ok := p.(OnRentGenerated); ok {
		r.onRentGenerated = append(r.onRentGenerated, v)
	}
	if v, ok := p.(OnLateFeeApplied); ok {
		r.onLateFeeApplied = append(r.onLateFeeApplied, v)
	}
	if v, ok := p.(OnBatchCompleted); ok {
		r.onBatchCompleted = append(r.onBatchCompleted, v)
	}
	if v, ok := p.(OnPaymentOrderCreated); ok {
		r.onPaymentOrderCreated = append(r.onPaymentOrderCreated, v)
	}
	if v, ok := p.(OnPaymentCaptured); ok {
		r.onPaymentCaptured = append(r.onPaymentCaptured, v)
	}
	if v, ok := p.(OnPaymentRejected); ok {
		r.onPaymentRejected = append(r.onPaymentRejected, v)
	}
	if v, ok := p.(OnInvoiceRendered); ok {
		r.onInvoiceRendered = append(r.onInvoiceRendered, v)
	}

	r.logger.Info("plugin registered",
		"name", p.Name(),
		"interfaces", implementedInterfaces(p),
	)

	return nil
}

var hookTypes = []struct {
	t    reflect.Type
	name string
}{
	{reflect.TypeFor[OnInit](), "OnInit"},
	{reflect.TypeFor[OnShutdown](), "OnShutdown"},
	{reflect.TypeFor[OnRentGenerated](), "OnRentGenerated"},
	{reflect.TypeFor[OnLateFeeApplied](), "OnLateFeeApplied"},
	{reflect.TypeFor[OnBatchCompleted](), "OnBatchCompleted"},
	{reflect.TypeFor[OnPaymentOrderCreated](), "OnPaymentOrderCreated"},
	{reflect.TypeFor[OnPaymentCaptured](), "OnPaymentCaptured"},
	{reflect.TypeFor[OnPaymentRejected](), "OnPaymentRejected"},
	{reflect.TypeFor[OnInvoiceRendered](), "OnInvoiceRendered"},
}

func implementedInterfaces(p Plugin) []string {
	var out []string
	v := reflect.TypeOf(p)
	for _, h := range hookTypes {
		if v.Implements(h.t) {
			out = append(out, h.name)
		}
	}
	return out
}

// Get returns a plugin by name.
func (r *Registry) Get(name string) Plugin {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, p := range r.plugins {
		if p.Name() == name {
			return p
		}
	}
	return nil
}

// List returns all registered plugins.
func (r *Registry) List() []Plugin {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]Plugin, len(r.plugins))
	copy(result, r.plugins)
	return result
}

// Count returns the number of registered plugins.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.plugins)
}

// ──────────────────────────────────────────────────
// Event emission methods
// ──────────────────────────────────────────────────

// EmitInit calls OnInit for all plugins that implement it.
func (r *Registry) EmitInit(ctx context.Context, l any) {
	r.mu.RLock()
	plugins := r.onInit
	r.mu.RUnlock()

	for _, p := range plugins {
		r.dispatch(ctx, p.Name(), "OnInit", func() error {
			return p.OnInit(ctx, l)
		})
	}
}

// EmitShutdown calls OnShutdown for all plugins that implement it.
func (r *Registry) EmitShutdown(ctx context.Context) {
	r.mu.RLock()
	plugins := r.onShutdown
	r.mu.RUnlock()

	for _, p := range plugins {
		r.dispatch(ctx, p.Name(), "OnShutdown", func() error {
			return p.OnShutdown(ctx)
		})
	}
}

// EmitRentGenerated emits a rent generated event.
func (r *Registry) EmitRentGenerated(ctx context.Context, rt *rent.Rent) {
	r.mu.RLock()
	plugins := r.onRentGenerated
	r.mu.RUnlock()

	for _, p := range plugins {
		r.dispatch(ctx, p.Name(), "OnRentGenerated", func() error {
			return p.OnRentGenerated(ctx, rt)
		})
	}
}

// EmitLateFeeApplied emits a late fee applied event.
func (r *Registry) EmitLateFeeApplied(ctx context.Context, rt *rent.Rent, fee types.Money) {
	r.mu.RLock()
	plugins := r.onLateFeeApplied
	r.mu.RUnlock()

	for _, p := range plugins {
		r.dispatch(ctx, p.Name(), "OnLateFeeApplied", func() error {
			return p.OnLateFeeApplied(ctx, rt, fee)
		})
	}
}

// EmitBatchCompleted emits a batch completed event.
func (r *Registry) EmitBatchCompleted(ctx context.Context, job string, count int, elapsed time.Duration) {
	r.mu.RLock()
	plugins := r.onBatchCompleted
	r.mu.RUnlock()

	for _, p := range plugins {
		r.dispatch(ctx, p.Name(), "OnBatchCompleted", func() error {
			return p.OnBatchCompleted(ctx, job, count, elapsed)
		})
	}
}

// EmitPaymentOrderCreated emits a payment order created event.
func (r *Registry) EmitPaymentOrderCreated(ctx context.Context, rt *rent.Rent, order *gateway.Order) {
	r.mu.RLock()
	plugins := r.onPaymentOrderCreated
	r.mu.RUnlock()

	for _, p := range plugins {
		r.dispatch(ctx, p.Name(), "OnPaymentOrderCreated", func() error {
			return p.OnPaymentOrderCreated(ctx, rt, order)
		})
	}
}

// EmitPaymentCaptured emits a payment captured event.
func (r *Registry) EmitPaymentCaptured(ctx context.Context, rt *rent.Rent, pay *payment.Payment) {
	r.mu.RLock()
	plugins := r.onPaymentCaptured
	r.mu.RUnlock()

	for _, p := range plugins {
		r.dispatch(ctx, p.Name(), "OnPaymentCaptured", func() error {
			return p.OnPaymentCaptured(ctx, rt, pay)
		})
	}
}

// EmitPaymentRejected emits a payment rejected event.
func (r *Registry) EmitPaymentRejected(ctx context.Context, rentID id.RentID, claim gateway.Claim, reason error) {
	r.mu.RLock()
	plugins := r.onPaymentRejected
	r.mu.RUnlock()

	for _, p := range plugins {
		r.dispatch(ctx, p.Name(), "OnPaymentRejected", func() error {
			return p.OnPaymentRejected(ctx, rentID, claim, reason)
		})
	}
}

// EmitInvoiceRendered emits an invoice rendered event.
func (r *Registry) EmitInvoiceRendered(ctx context.Context, rt *rent.Rent, size int) {
	r.mu.RLock()
	plugins := r.onInvoiceRendered
	r.mu.RUnlock()

	for _, p := range plugins {
		r.dispatch(ctx, p.Name(), "OnInvoiceRendered", func() error {
			return p.OnInvoiceRendered(ctx, rt, size)
		})
	}
}

func (r *Registry) dispatch(ctx context.Context, name, hook string, fn func() error) {
	if err := r.callWithTimeout(ctx, name, fn); err != nil {
		r.logger.Warn("plugin "+hook+" failed",
			"plugin", name,
			"error", err,
		)
	}
}

// callWithTimeout calls a plugin function with a timeout.
// Plugins should never block the billing pipeline.
func (r *Registry) callWithTimeout(ctx context.Context, pluginName string, fn func() error) error {
	done := make(chan error, 1)

	go func() {
		done <- fn()
	}()

	timer := time.NewTimer(r.timeout)
	defer timer.Stop()

	select {
	case err := <-done:
		return err
	case <-timer.C:
		return fmt.Errorf("plugin timeout: %s", pluginName)
	case <-ctx.Done():
		return ctx.Err()
	}
}
