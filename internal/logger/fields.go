package logger

// Fields is an alias for map[string]interface{} for convenience.
type Fields map[string]interface{}

// Standard tracing fields, propagated through the call chain via context.
const (
	// FieldRequestID is the HTTP request ID (UUID)
	FieldRequestID = "request_id"

	// FieldCaptureID is the per-image capture workflow ID
	FieldCaptureID = "capture_id"

	// FieldComponent is the component/module name
	FieldComponent = "component"

	// FieldPageURL is the normalized page URL a session is bound to
	FieldPageURL = "page_url"
)

// Standard metric fields, attached at the log site.
const (
	// FieldDurationMs is the execution duration in milliseconds
	FieldDurationMs = "duration_ms"

	// FieldCount is a generic count field
	FieldCount = "count"

	// FieldSize is the data size in bytes
	FieldSize = "size"

	// FieldStatus is the operation status
	FieldStatus = "status"
)
