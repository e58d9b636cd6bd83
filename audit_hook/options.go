package audithook

import "log/slog"

// Option configures an Extension.
type Option func(*Extension)

// WithLogger sets the logger used to report recorder failures.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Extension) {
		e.logger = logger
	}
}

// WithEnabledActions restricts auditing to the given actions.
// Without it every action is audited.
func WithEnabledActions(actions ...string) Option {
	return func(e *Extension) {
		e.enabled = make(map[string]bool, len(actions))
		for _, action := range actions {
			e.enabled[action] = true
		}
	}
}

// WithDisabledActions audits everything except the given actions.
func WithDisabledActions(actions ...string) Option {
	return func(e *Extension) {
		if e.enabled == nil {
			e.enabled = make(map[string]bool, len(allActions))
			for _, action := range allActions {
				e.enabled[action] = true
			}
		}
		for _, action := range actions {
			delete(e.enabled, action)
		}
	}
}

// WithMinSeverity drops events below severity. Batch-heavy deployments use
// SeverityWarning to keep only late fees and rejected claims.
func WithMinSeverity(severity string) Option {
	return func(e *Extension) {
		e.minSeverity = severityRank[severity]
	}
}

var allActions = []string{
	ActionRentGenerated,
	ActionLateFeeApplied,
	ActionBatchCompleted,
	ActionOrderCreated,
	ActionPaymentCaptured,
	ActionPaymentRejected,
	ActionInvoiceRendered,
}

var severityRank = map[string]int{
	SeverityInfo:     0,
	SeverityWarning:  1,
	SeverityError:    2,
	SeverityCritical: 3,
}
