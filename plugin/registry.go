package plugin

import (
	"context"
	"fmt"
	"log/slog"
	"reflect"
	"sync"
	"time"
)

// Registry manages all registered plugins and provides efficient dispatch.
// It uses type-cached discovery for O(1) dispatch performance.
type Registry struct {
	mu      sync.RWMutex
	plugins []Plugin
	logger  *slog.Logger

	// Type-cached plugin lists for efficient dispatch
	onInit                 []OnInit
	onShutdown             []OnShutdown
	onDebit                []OnDebit
	onDenied               []OnDenied
	onRefund               []OnRefund
	onGrantApplied         []OnGrantApplied
	onDuplicateGrant       []OnDuplicateGrant
	onSubscriptionGranted  []OnSubscriptionGranted
	onSubscriptionCanceled []OnSubscriptionCanceled
	onSubscriptionExpired  []OnSubscriptionExpired
	onPlanCreated          []OnPlanCreated
	onPlanArchived         []OnPlanArchived
	onAuditFlushed         []OnAuditFlushed
	onWebhookReceived      []OnWebhookReceived
	notifiers              []Notifier
}

// NewRegistry creates a new plugin registry.
func NewRegistry() *Registry {
	return &Registry{
		logger: slog.Default(),
	}
}

// WithLogger sets the logger for the registry.
func (r *Registry) WithLogger(logger *slog.Logger) *Registry {
	r.logger = logger
	return r
}

// Register adds a plugin to the registry and caches its interfaces.
func (r *Registry) Register(p Plugin) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	// Check for duplicate
	for _, existing := range r.plugins {
		if existing.Name() == p.Name() {
			return fmt.Errorf("plugin: duplicate registration: %s", p.Name())
		}
	}

	r.plugins = append(r.plugins, p)

	// Type-switch to cache interfaces
	if v, ok := p.(OnInit); ok {
		r.onInit = append(r.onInit, v)
	}
	if v, ok := p.(OnShutdown); ok {
		r.onShutdown = append(r.onShutdown, v)
	}
	if v, ok := p.(OnDebit); ok {
		r.onDebit = append(r.onDebit, v)
	}
	if v, ok := p.(OnDenied); ok {
		r.onDenied = append(r.onDenied, v)
	}
	if v, ok := p.(OnRefund); ok {
		r.onRefund = append(r.onRefund, v)
	}
	if v, ok := p.(OnGrantApplied); ok {
		r.onGrantApplied = append(r.onGrantApplied, v)
	}
	if v, ok := p.(OnDuplicateGrant); ok {
		r.onDuplicateGrant = append(r.onDuplicateGrant, v)
	}
	if v, ok := p.(OnSubscriptionGranted); ok {
		r.onSubscriptionGranted = append(r.onSubscriptionGranted, v)
	}
	if v, ok := p.(OnSubscriptionCanceled); ok {
		r.onSubscriptionCanceled = append(r.onSubscriptionCanceled, v)
	}
	if v, ok := p.(OnSubscriptionExpired); ok {
		r.onSubscriptionExpired = append(r.onSubscriptionExpired, v)
	}
	if v, ok := p.(OnPlanCreated); ok {
		r.onPlanCreated = append(r.onPlanCreated, v)
	}
	if v, ok := p.(OnPlanArchived); ok {
		r.onPlanArchived = append(r.onPlanArchived, v)
	}
	if v, ok := p.(OnAuditFlushed); ok {
		r.onAuditFlushed = append(r.onAuditFlushed, v)
	}
	if v, ok := p.(OnWebhookReceived); ok {
		r.onWebhookReceived = append(r.onWebhookReceived, v)
	}
	if v, ok := p.(Notifier); ok {
		r.notifiers = append(r.notifiers, v)
	}

	r.logger.Info("plugin registered",
		"name", p.Name(),
		"interfaces", r.getImplementedInterfaces(p),
	)

	return nil
}

// getImplementedInterfaces returns a list of interfaces implemented by the plugin.
func (r *Registry) getImplementedInterfaces(p Plugin) []string {
	var interfaces []string
	v := reflect.TypeOf(p)

	// Check each interface
	checkInterface := func(iface reflect.Type, name string) {
		if v.Implements(iface) {
			interfaces = append(interfaces, name)
		}
	}

	// List all interfaces to check
	checkInterface(reflect.TypeOf((*OnInit)(nil)).Elem(), "OnInit")
	checkInterface(reflect.TypeOf((*OnShutdown)(nil)).Elem(), "OnShutdown")
	checkInterface(reflect.TypeOf((*OnDebit)(nil)).Elem(), "OnDebit")
	checkInterface(reflect.TypeOf((*OnDenied)(nil)).Elem(), "OnDenied")
	checkInterface(reflect.TypeOf((*OnRefund)(nil)).Elem(), "OnRefund")
	checkInterface(reflect.TypeOf((*OnGrantApplied)(nil)).Elem(), "OnGrantApplied")
	checkInterface(reflect.TypeOf((*OnSubscriptionGranted)(nil)).Elem(), "OnSubscriptionGranted")
	checkInterface(reflect.TypeOf((*OnAuditFlushed)(nil)).Elem(), "OnAuditFlushed")
	checkInterface(reflect.TypeOf((*Notifier)(nil)).Elem(), "Notifier")

	return interfaces
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
func (r *Registry) EmitInit(ctx context.Context, engine interface{}) {
	r.mu.RLock()
	plugins := r.onInit
	r.mu.RUnlock()

	for _, p := range plugins {
		if err := r.callWithTimeout(ctx, p.Name(), func() error {
			return p.OnInit(ctx, engine)
		}); err != nil {
			r.logger.Warn("plugin OnInit failed",
				"plugin", p.Name(),
				"error", err,
			)
		}
	}
}

// EmitShutdown calls OnShutdown for all plugins that implement it.
func (r *Registry) EmitShutdown(ctx context.Context) {
	r.mu.RLock()
	plugins := r.onShutdown
	r.mu.RUnlock()

	for _, p := range plugins {
		if err := r.callWithTimeout(ctx, p.Name(), func() error {
			return p.OnShutdown(ctx)
		}); err != nil {
			r.logger.Warn("plugin OnShutdown failed",
				"plugin", p.Name(),
				"error", err,
			)
		}
	}
}

// EmitDebit emits a successful debit event.
func (r *Registry) EmitDebit(ctx context.Context, accountID string, amount int64, source string) {
	r.mu.RLock()
	plugins := r.onDebit
	r.mu.RUnlock()

	for _, p := range plugins {
		if err := r.callWithTimeout(ctx, p.Name(), func() error {
			return p.OnDebit(ctx, accountID, amount, source)
		}); err != nil {
			r.logger.Warn("plugin OnDebit failed",
				"plugin", p.Name(),
				"error", err,
			)
		}
	}
}

// EmitDenied emits an insufficient-funds denial event.
func (r *Registry) EmitDenied(ctx context.Context, accountID string, required, available int64) {
	r.mu.RLock()
	plugins := r.onDenied
	r.mu.RUnlock()

	for _, p := range plugins {
		if err := r.callWithTimeout(ctx, p.Name(), func() error {
			return p.OnDenied(ctx, accountID, required, available)
		}); err != nil {
			r.logger.Warn("plugin OnDenied failed",
				"plugin", p.Name(),
				"error", err,
			)
		}
	}
}

// EmitRefund emits a compensating refund event.
func (r *Registry) EmitRefund(ctx context.Context, accountID string, amount int64, source string) {
	r.mu.RLock()
	plugins := r.onRefund
	r.mu.RUnlock()

	for _, p := range plugins {
		if err := r.callWithTimeout(ctx, p.Name(), func() error {
			return p.OnRefund(ctx, accountID, amount, source)
		}); err != nil {
			r.logger.Warn("plugin OnRefund failed",
				"plugin", p.Name(),
				"error", err,
			)
		}
	}
}

// EmitGrantApplied emits a grant applied event.
func (r *Registry) EmitGrantApplied(ctx context.Context, event interface{}) {
	r.mu.RLock()
	plugins := r.onGrantApplied
	r.mu.RUnlock()

	for _, p := range plugins {
		if err := r.callWithTimeout(ctx, p.Name(), func() error {
			return p.OnGrantApplied(ctx, event)
		}); err != nil {
			r.logger.Warn("plugin OnGrantApplied failed",
				"plugin", p.Name(),
				"error", err,
			)
		}
	}
}

// EmitDuplicateGrant emits a duplicate grant event.
func (r *Registry) EmitDuplicateGrant(ctx context.Context, correlationID string) {
	r.mu.RLock()
	plugins := r.onDuplicateGrant
	r.mu.RUnlock()

	for _, p := range plugins {
		if err := r.callWithTimeout(ctx, p.Name(), func() error {
			return p.OnDuplicateGrant(ctx, correlationID)
		}); err != nil {
			r.logger.Warn("plugin OnDuplicateGrant failed",
				"plugin", p.Name(),
				"error", err,
			)
		}
	}
}

// EmitSubscriptionGranted emits a subscription granted event.
func (r *Registry) EmitSubscriptionGranted(ctx context.Context, sub interface{}) {
	r.mu.RLock()
	plugins := r.onSubscriptionGranted
	r.mu.RUnlock()

	for _, p := range plugins {
		if err := r.callWithTimeout(ctx, p.Name(), func() error {
			return p.OnSubscriptionGranted(ctx, sub)
		}); err != nil {
			r.logger.Warn("plugin OnSubscriptionGranted failed",
				"plugin", p.Name(),
				"error", err,
			)
		}
	}
}

// EmitSubscriptionCanceled emits a subscription canceled event.
func (r *Registry) EmitSubscriptionCanceled(ctx context.Context, sub interface{}) {
	r.mu.RLock()
	plugins := r.onSubscriptionCanceled
	r.mu.RUnlock()

	for _, p := range plugins {
		if err := r.callWithTimeout(ctx, p.Name(), func() error {
			return p.OnSubscriptionCanceled(ctx, sub)
		}); err != nil {
			r.logger.Warn("plugin OnSubscriptionCanceled failed",
				"plugin", p.Name(),
				"error", err,
			)
		}
	}
}

// EmitSubscriptionExpired emits a subscription expiry sweep event.
func (r *Registry) EmitSubscriptionExpired(ctx context.Context, count int64) {
	r.mu.RLock()
	plugins := r.onSubscriptionExpired
	r.mu.RUnlock()

	for _, p := range plugins {
		if err := r.callWithTimeout(ctx, p.Name(), func() error {
			return p.OnSubscriptionExpired(ctx, count)
		}); err != nil {
			r.logger.Warn("plugin OnSubscriptionExpired failed",
				"plugin", p.Name(),
				"error", err,
			)
		}
	}
}

// EmitPlanCreated emits a plan created event.
func (r *Registry) EmitPlanCreated(ctx context.Context, p interface{}) {
	r.mu.RLock()
	plugins := r.onPlanCreated
	r.mu.RUnlock()

	for _, pl := range plugins {
		if err := r.callWithTimeout(ctx, pl.Name(), func() error {
			return pl.OnPlanCreated(ctx, p)
		}); err != nil {
			r.logger.Warn("plugin OnPlanCreated failed",
				"plugin", pl.Name(),
				"error", err,
			)
		}
	}
}

// EmitPlanArchived emits a plan archived event.
func (r *Registry) EmitPlanArchived(ctx context.Context, planID string) {
	r.mu.RLock()
	plugins := r.onPlanArchived
	r.mu.RUnlock()

	for _, p := range plugins {
		if err := r.callWithTimeout(ctx, p.Name(), func() error {
			return p.OnPlanArchived(ctx, planID)
		}); err != nil {
			r.logger.Warn("plugin OnPlanArchived failed",
				"plugin", p.Name(),
				"error", err,
			)
		}
	}
}

// EmitAuditFlushed emits an audit flushed event.
func (r *Registry) EmitAuditFlushed(ctx context.Context, count int, elapsed time.Duration) {
	r.mu.RLock()
	plugins := r.onAuditFlushed
	r.mu.RUnlock()

	for _, p := range plugins {
		if err := r.callWithTimeout(ctx, p.Name(), func() error {
			return p.OnAuditFlushed(ctx, count, elapsed)
		}); err != nil {
			r.logger.Warn("plugin OnAuditFlushed failed",
				"plugin", p.Name(),
				"error", err,
			)
		}
	}
}

// EmitWebhookReceived emits a webhook received event.
func (r *Registry) EmitWebhookReceived(ctx context.Context, provider string, payload []byte) {
	r.mu.RLock()
	plugins := r.onWebhookReceived
	r.mu.RUnlock()

	for _, p := range plugins {
		if err := r.callWithTimeout(ctx, p.Name(), func() error {
			return p.OnWebhookReceived(ctx, provider, payload)
		}); err != nil {
			r.logger.Warn("plugin OnWebhookReceived failed",
				"plugin", p.Name(),
				"error", err,
			)
		}
	}
}

// Notify delivers a notification through all registered notifiers.
func (r *Registry) Notify(ctx context.Context, accountID, kind, message string) {
	r.mu.RLock()
	plugins := r.notifiers
	r.mu.RUnlock()

	for _, p := range plugins {
		if err := r.callWithTimeout(ctx, p.Name(), func() error {
			return p.Notify(ctx, accountID, kind, message)
		}); err != nil {
			r.logger.Warn("plugin Notify failed",
				"plugin", p.Name(),
				"error", err,
			)
		}
	}
}

// callWithTimeout calls a plugin function with a timeout.
// Plugins must never block the debit pipeline.
func (r *Registry) callWithTimeout(ctx context.Context, pluginName string, fn func() error) error {
	done := make(chan error, 1)

	go func() {
		done <- fn()
	}()

	select {
	case err := <-done:
		return err
	case <-time.After(5 * time.Second):
		return fmt.Errorf("plugin timeout: %s", pluginName)
	case <-ctx.Done():
		return ctx.Err()
	}
}
