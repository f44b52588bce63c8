package types

// ModelsResponse wraps the list of models returned by GET /models.
type ModelsResponse struct {
	// List of discovered models.
	Models []Model `json:"models"`
}

// ErrorResponse is a consistent JSON error payload.
type ErrorResponse struct {
	// Error message.
	// example: invalid JSON body
	Error string `json:"error" example:"invalid JSON body"`
	// HTTP status code.
	// example: 400
	Code int `json:"code" example:"400"`
}

// LifecycleStatus summarizes one managed model's state machine for /status.
type LifecycleStatus struct {
	// ID of the model this machine manages.
	// example: tinyllama-q4
	ModelID string `json:"model_id" example:"tinyllama-q4"`
	// Current lifecycle state (e.g., uninitialized, loading, ready).
	// example: ready
	State string `json:"state" example:"ready"`
	// States directly reachable from the current state.
	// example: ["executing","error"]
	Allowed []string `json:"allowed"`
	// Total successful transitions since construction.
	// example: 13
	Transitions uint64 `json:"transitions" example:"13"`
	// Total errors observed (hook failures and forced error transitions).
	// example: 0
	Errors uint64 `json:"errors" example:"0"`
	// Mean wall time of a successful transition in milliseconds.
	// example: 4
	AvgTransitionMillis int64 `json:"avg_transition_ms" example:"4"`
	// Last error message, if any.
	LastError string `json:"last_error,omitempty"`
	// Registered observer count.
	// example: 2
	Observers int `json:"observers" example:"2"`
}

// MemoryStatus is the memory subsystem's snapshot for /status and /memory.
type MemoryStatus struct {
	// Used bytes at the most recent sample.
	// example: 734003200
	UsedBytes uint64 `json:"used_bytes" example:"734003200"`
	// Available bytes at the most recent sample.
	// example: 5368709120
	AvailableBytes uint64 `json:"available_bytes" example:"5368709120"`
	// Total physical bytes.
	// example: 17179869184
	TotalBytes uint64 `json:"total_bytes" example:"17179869184"`
	// Discrete pressure level: normal, warning or critical.
	// example: normal
	Pressure string `json:"pressure" example:"normal"`
	// Number of samples currently retained in the rolling window.
	// example: 280
	Samples int `json:"samples" example:"280"`
}

// StatusResponse is returned by GET /status.
type StatusResponse struct {
	// Per-model lifecycle machines.
	Lifecycles []LifecycleStatus `json:"lifecycles"`
	// Memory snapshot shared by all machines.
	Memory MemoryStatus `json:"memory"`
	// Overall daemon state (e.g., starting, ready, error).
	// example: ready
	State string `json:"state" example:"ready"`
	// Optional top-level error message.
	Error string `json:"error,omitempty"`
	// Uptime of the daemon in seconds.
	// example: 3600
	UptimeSeconds int64 `json:"uptime_seconds" example:"3600"`
	// Server time in unix seconds.
	// example: 1700000000
	ServerTimeUnix int64 `json:"server_time_unix" example:"1700000000"`
}
