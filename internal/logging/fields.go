package logging

const (
	// FieldComponent is the standardized structured logging key for component names.
	FieldComponent = "component"
	// FieldPluginKey is the standardized structured logging key for plugin identifiers.
	FieldPluginKey = "plugin_key"
	// FieldPluginKeys carries a comma-joined list of plugin identifiers.
	FieldPluginKeys = "plugin_keys"
	// FieldEventType tags log records with a machine-searchable event class.
	FieldEventType = "event_type"
	// FieldErrorHint suggests the operator's next step after a failure.
	FieldErrorHint = "error_hint"
	// FieldImpact describes the user-facing consequence of a warning.
	FieldImpact = "impact"
	// FieldCorrelationID is the standardized key for run correlation identifiers.
	FieldCorrelationID = "correlation_id"
	// FieldOutcome carries discriminated outcome names such as mount relay results.
	FieldOutcome = "outcome"
	// FieldPath carries a file-system path attached to a file event.
	FieldPath = "path"
)
