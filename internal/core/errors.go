package core

import "fmt"

// ValidationError reports a malformed identifier/URL or unsupported source.
type ValidationError struct {
	Field string
	Msg   string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Msg)
}

// ConfigError reports missing or unusable configuration, such as absent
// upstream credentials.
type ConfigError struct {
	Msg string
}

func (e *ConfigError) Error() string { return e.Msg }

// UpstreamError reports a catalog-side rejection (private, region-restricted
// or editorial playlist) with a remediation hint for the end user.
type UpstreamError struct {
	Source Source
	Code   string // e.g. "editorial_playlist", "not_found_any_market"
	Hint   string // actionable, user-facing
	Err    error
}

func (e *UpstreamError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s rejected request (%s): %v", e.Source, e.Code, e.Err)
	}
	return fmt.Sprintf("%s rejected request (%s)", e.Source, e.Code)
}

func (e *UpstreamError) Unwrap() error { return e.Err }

// ExtractionError is raised after every extraction strategy has been
// exhausted. Reason carries the most specific failure the cascade could
// determine; Diagnostics are bounded and only populated in debug mode.
type ExtractionError struct {
	Reason      string
	Strategy    string // last strategy attempted
	Diagnostics map[string]any
}

func (e *ExtractionError) Error() string {
	return fmt.Sprintf("extraction failed (%s, last strategy %s)", e.Reason, e.Strategy)
}

// LimitError reports a breached resource ceiling (file size, parse time).
type LimitError struct {
	Resource string
	Msg      string
}

func (e *LimitError) Error() string {
	return fmt.Sprintf("%s limit exceeded: %s", e.Resource, e.Msg)
}

// StructuralError reports malformed input documents, such as a Rekordbox
// XML without a COLLECTION element.
type StructuralError struct {
	Msg string
}

func (e *StructuralError) Error() string { return e.Msg }
