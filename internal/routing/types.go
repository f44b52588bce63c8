package routing

import (
	"runtimed/pkg/types"
)

// Target is where an inference request executes.
type Target string

const (
	TargetOnDevice Target = "on_device"
	TargetCloud    Target = "cloud"
	TargetHybrid   Target = "hybrid"
)

// Reason explains why a target was chosen.
type Reason string

const (
	ReasonPrivacySensitive      Reason = "privacy_sensitive"
	ReasonInsufficientResources Reason = "insufficient_resources"
	ReasonPolicyDriven          Reason = "policy_driven"
	ReasonUserPreference        Reason = "user_preference"
	ReasonCostOptimization      Reason = "cost_optimization"
	ReasonLatencyOptimization   Reason = "latency_optimization"
	ReasonModelNotAvailable     Reason = "model_not_available"
)

// Preference is an explicit target choice carried by policy or request.
type Preference string

const (
	PreferNone     Preference = ""
	PreferOnDevice Preference = "on_device"
	PreferCloud    Preference = "cloud"
)

// Request is the inference request being routed.
type Request struct {
	// Model is the desired model id; empty selects any candidate.
	Model string `json:"model,omitempty" example:"tinyllama-q4"`
	// Prompt is the request payload; inspected only for size, never sent
	// anywhere by the engine.
	Prompt string `json:"prompt" example:"Summarize this document."`
	// PrivacySensitive marks content that must not leave the device when
	// policy forbids cloud for sensitive content.
	PrivacySensitive bool `json:"privacy_sensitive,omitempty" example:"false"`
	// Preference is the per-request user preference, if any.
	Preference Preference `json:"preference,omitempty" example:"on_device"`
	// MaxTokens bounds the generation length.
	MaxTokens int `json:"max_tokens,omitempty" example:"128"`
}

// Policy is the active routing policy supplied by configuration.
type Policy struct {
	// AllowCloudForSensitive permits cloud execution of privacy-sensitive
	// content. Off by default.
	AllowCloudForSensitive bool `json:"allow_cloud_for_sensitive" yaml:"allow_cloud_for_sensitive" toml:"allow_cloud_for_sensitive"`
	// Preference is the policy-level target preference, if any.
	Preference Preference `json:"preference,omitempty" yaml:"preference" toml:"preference"`
	// CloudProvider names the configured cloud fallback; empty means no
	// cloud execution is available.
	CloudProvider string `json:"cloud_provider,omitempty" yaml:"cloud_provider" toml:"cloud_provider"`
	// CostWeight against LatencyWeight steers the trade-off when no other
	// rule applies. Both zero behaves as cost-driven.
	CostWeight    float64 `json:"cost_weight" yaml:"cost_weight" toml:"cost_weight"`
	LatencyWeight float64 `json:"latency_weight" yaml:"latency_weight" toml:"latency_weight"`
}

// Estimate is a predicted cost/latency pair for one execution target.
type Estimate struct {
	// Cost in arbitrary policy units (e.g., cents per request).
	Cost float64 `json:"cost" example:"0.002"`
	// LatencyMillis is the predicted end-to-end latency.
	LatencyMillis float64 `json:"latency_ms" example:"350"`
}

// CostEstimates carries optional per-target estimates. A nil map entry
// means no estimate is available for that target.
type CostEstimates struct {
	OnDevice *Estimate `json:"on_device,omitempty"`
	Cloud    *Estimate `json:"cloud,omitempty"`
	Hybrid   *Estimate `json:"hybrid,omitempty"`
}

// ResourceSnapshot is the point-in-time device resource view the engine
// decides against. Constructed per request; never refreshed mid-decision.
type ResourceSnapshot struct {
	AvailableMemoryBytes uint64 `json:"available_memory_bytes" example:"5368709120"`
	TotalMemoryBytes     uint64 `json:"total_memory_bytes" example:"17179869184"`
	PressureCritical     bool   `json:"pressure_critical" example:"false"`
}

// Context is the ephemeral per-request routing input.
type Context struct {
	Request    Request          `json:"request"`
	Candidates []types.Model    `json:"candidates"`
	Resources  ResourceSnapshot `json:"resources"`
	Policy     Policy           `json:"policy"`
	Estimates  CostEstimates    `json:"estimates"`
}

// Decision is the routing outcome. Computed fresh per request and never
// mutated after construction.
type Decision struct {
	Target Target `json:"target" example:"on_device"`
	// Framework is set for on-device and hybrid targets.
	Framework types.Framework `json:"framework,omitempty" example:"llamacpp"`
	// Provider is set for cloud and hybrid targets.
	Provider string `json:"provider,omitempty" example:"openai"`
	// DeviceFraction is the share of work kept on device for hybrid.
	DeviceFraction float64 `json:"device_fraction,omitempty" example:"0.5"`
	Reason         Reason  `json:"reason" example:"cost_optimization"`
	// Detail carries the constrained resource name or other context.
	Detail string `json:"detail,omitempty" example:"memory"`
}
