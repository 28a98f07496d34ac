// Package extract pulls playlist tracks out of pages that have no public
// API, escalating from plain HTTP to progressively heavier browser
// strategies.
package extract

// Strategy names one rung of the escalation ladder.
type Strategy string

const (
	StrategyHTTPFirst     Strategy = "http_first"
	StrategyBrowserFast   Strategy = "browser_fast"
	StrategyBrowserLegacy Strategy = "browser_legacy"
)

// Method records which evidence ultimately produced the tracks.
type Method string

const (
	MethodAPIJSON      Method = "api_json"
	MethodEmbeddedJSON Method = "embedded_json"
	MethodDOMRows      Method = "dom_rows"
	MethodNone         Method = "none"
)

// Diagnostic capture stays bounded no matter how pathological the page is.
const (
	maxDiagURLs      = 8
	maxDiagConsole   = 8
	maxDiagRowCounts = 48
)

// Diagnostics is the bounded evidence trail of one extraction. It is only
// populated in debug mode and attached to ExtractionError and result meta.
type Diagnostics struct {
	PageTitle     string   `json:"page_title,omitempty"`
	CandidateURLs []string `json:"candidate_urls,omitempty"`
	ConsoleErrors []string `json:"console_errors,omitempty"`
	RowCounts     []int    `json:"row_counts,omitempty"`
	Attempts      []string `json:"attempts,omitempty"`
}

func (d *Diagnostics) addURL(u string) {
	if d == nil || len(d.CandidateURLs) >= maxDiagURLs {
		return
	}
	d.CandidateURLs = append(d.CandidateURLs, u)
}

func (d *Diagnostics) addConsole(msg string) {
	if d == nil || len(d.ConsoleErrors) >= maxDiagConsole {
		return
	}
	d.ConsoleErrors = append(d.ConsoleErrors, msg)
}

func (d *Diagnostics) addRowCount(n int) {
	if d == nil || len(d.RowCounts) >= maxDiagRowCounts {
		return
	}
	d.RowCounts = append(d.RowCounts, n)
}

func (d *Diagnostics) addAttempt(s Strategy, reason string) {
	if d == nil {
		return
	}
	d.Attempts = append(d.Attempts, string(s)+":"+reason)
}

// attemptError is a failed strategy run. Retryable failures let the engine
// escalate to the next strategy; fatal ones stop the cascade.
type attemptError struct {
	Reason    string
	Retryable bool
	Err       error
}

func (e *attemptError) Error() string {
	if e.Err != nil {
		return e.Reason + ": " + e.Err.Error()
	}
	return e.Reason
}

func (e *attemptError) Unwrap() error { return e.Err }

func retryable(reason string, err error) *attemptError {
	return &attemptError{Reason: reason, Retryable: true, Err: err}
}

func fatal(reason string, err error) *attemptError {
	return &attemptError{Reason: reason, Retryable: false, Err: err}
}

// reasonRank orders failure reasons by how much they explain. When every
// strategy fails, the surfaced ExtractionError carries the highest-ranked
// reason seen across the cascade.
func reasonRank(reason string) int {
	switch {
	case reason == "blocked_variant":
		return 5
	case reason == "api_not_parseable":
		return 4
	case reason == "no_dom_rows_no_api":
		return 3
	case reason == "no_embedded_json":
		return 2
	case len(reason) > 5 && reason[:5] == "http_":
		return 1
	default: // navigation_failed and transport-level noise
		return 0
	}
}
