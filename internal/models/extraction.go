package models

// ClientProfile describes the client identity presented to the upstream service
type ClientProfile struct {
	PlayerClients []string          `json:"player_clients"` // e.g. android, ios, mweb
	PlayerSkip    []string          `json:"player_skip"`    // e.g. webpage, configs
	Skip          []string          `json:"skip"`           // Manifest protocols to skip, e.g. dash, hls
	UserAgent     string            `json:"user_agent"`
	Headers       map[string]string `json:"headers"`
}

// TransferTuning holds the engine's transfer parameters
type TransferTuning struct {
	FragmentConcurrency int    `json:"fragment_concurrency"`
	Retries             int    `json:"retries"`
	FragmentRetries     int    `json:"fragment_retries"`
	ChunkSize           string `json:"chunk_size"`
	BufferSize          string `json:"buffer_size"`
	SocketTimeout       int    `json:"socket_timeout"` // Seconds
}

// ExtractionAttempt is one immutable configuration in the escalation chain.
// A fresh chain is built per job; attempts are never shared between jobs.
type ExtractionAttempt struct {
	Name           string         `json:"name"`
	Client         ClientProfile  `json:"client"`
	WarmUp         bool           `json:"warm_up"`               // Run the browser warm-up first
	CookieFile     string         `json:"cookie_file,omitempty"` // Netscape cookie file for the engine
	Proxy          string         `json:"proxy,omitempty"`
	Tuning         TransferTuning `json:"tuning"`
	Format         string         `json:"format"`          // Format selector expression
	FormatSort     string         `json:"format_sort"`     // e.g. "res,ext:mp4:m4a"
	MergeFormat    string         `json:"merge_format"`    // Container for merged streams
	OutputTemplate string         `json:"output_template"` // Engine output template
}

// UsesCookies reports whether the attempt carries a credential file
func (a ExtractionAttempt) UsesCookies() bool {
	return a.CookieFile != ""
}
