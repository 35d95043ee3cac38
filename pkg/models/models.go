package models

import (
	"net/url"
	"time"
)

// RunConfig describes one scraper run. It is built once by the caller and
// never mutated afterwards.
type RunConfig struct {
	PluginID     string            `json:"plugin_id"`
	TargetURL    string            `json:"target_url,omitempty"`
	Params       url.Values        `json:"params,omitempty"`
	Headers      map[string]string `json:"headers,omitempty"`
	Proxy        string            `json:"proxy,omitempty"`
	ClearBaseURL string            `json:"clear_base_url,omitempty"`
	SessionName  string            `json:"session_name,omitempty"`
	Render       bool              `json:"render,omitempty"`

	// MaxPages bounds pagination for plugins that follow "next" links.
	MaxPages int `json:"max_pages,omitempty"`
}

// Identity names the remote dataset a plugin owns. Name must be non-empty
// and stable across runs of the same plugin.
type Identity struct {
	Name string `json:"name"`
}

// Record is the opaque payload produced by a plugin's parse step.
type Record = any

// FetchAttempt is the outcome of a single GET inside a retry loop.
// Err is nil on success.
type FetchAttempt struct {
	Attempt  int
	URL      string
	HTML     string
	Err      error
	Duration time.Duration
}

// OK reports whether the attempt produced a page.
func (a FetchAttempt) OK() bool {
	return a.Err == nil
}

// State is a RunController state.
type State string

const (
	StateIdle           State = "idle"
	StateLoading        State = "loading"
	StateClearing       State = "clearing"
	StateRunning        State = "running"
	StateClosingSession State = "closing_session"
	StateDone           State = "done"
	StateAborted        State = "aborted"
	StateFailed         State = "failed"
)

// Terminal reports whether no further transitions follow s.
func (s State) Terminal() bool {
	return s == StateDone || s == StateAborted || s == StateFailed
}
