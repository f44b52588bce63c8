package routing

import (
	"github.com/rs/zerolog"

	"runtimed/pkg/types"
)

// hybridMinFraction is the smallest share of a model footprint that must
// fit on device before a hybrid split is preferred over full cloud.
const hybridMinFraction = 0.5

// Engine decides where an inference request executes. Decide is a pure
// function of its Context: it never blocks on I/O, never refreshes the
// resource snapshot, and returns identical decisions for identical inputs.
type Engine struct {
	log zerolog.Logger
}

// NewEngine constructs an engine. A nil logger disables decision logging.
func NewEngine(logger *zerolog.Logger) *Engine {
	l := zerolog.Nop()
	if logger != nil {
		l = *logger
	}
	return &Engine{log: l.With().Str("component", "routing").Logger()}
}

// Decide picks an execution target for one request. Rules apply in order;
// the first applicable wins:
//
//  1. privacy-sensitive content with cloud forbidden runs on device
//  2. insufficient device memory pushes to cloud, or hybrid when enough of
//     the model footprint still fits
//  3. an explicit request or policy preference is honored
//  4. otherwise the cost/latency trade-off decides
//
// With no candidate model at all the decision is cloud when a provider is
// configured; otherwise a routing failure is surfaced, never a silent
// default.
func (e *Engine) Decide(ctx Context) (Decision, error) {
	d, err := e.decide(ctx)
	if err != nil {
		e.log.Warn().Err(err).Str("model", ctx.Request.Model).Msg("routing failed")
		return Decision{}, err
	}
	e.log.Debug().
		Str("target", string(d.Target)).
		Str("reason", string(d.Reason)).
		Str("framework", string(d.Framework)).
		Msg("routing decision")
	return d, nil
}

func (e *Engine) decide(ctx Context) (Decision, error) {
	candidate, hasCandidate := selectCandidate(ctx.Request, ctx.Candidates)
	cloudOK := ctx.Policy.CloudProvider != ""

	// Rule 1: privacy. When cloud is forbidden for sensitive content the
	// request must run on device or not at all.
	if ctx.Request.PrivacySensitive && !ctx.Policy.AllowCloudForSensitive {
		if !hasCandidate {
			return Decision{}, ErrRoutingFailure(ReasonModelNotAvailable)
		}
		return Decision{
			Target:    TargetOnDevice,
			Framework: candidate.Framework,
			Reason:    ReasonPrivacySensitive,
		}, nil
	}

	if !hasCandidate {
		if cloudOK {
			return Decision{
				Target:   TargetCloud,
				Provider: ctx.Policy.CloudProvider,
				Reason:   ReasonModelNotAvailable,
			}, nil
		}
		return Decision{}, ErrRoutingFailure(ReasonModelNotAvailable)
	}

	// Rule 2: resource sufficiency against the snapshot.
	if insufficient(ctx.Resources, candidate) {
		if !cloudOK {
			return Decision{}, ErrRoutingFailure(ReasonInsufficientResources)
		}
		free := float64(ctx.Resources.AvailableMemoryBytes)
		need := float64(candidate.EstMemoryBytes)
		if !ctx.Resources.PressureCritical && need > 0 && free/need >= hybridMinFraction {
			return Decision{
				Target:         TargetHybrid,
				Framework:      candidate.Framework,
				Provider:       ctx.Policy.CloudProvider,
				DeviceFraction: hybridMinFraction,
				Reason:         ReasonInsufficientResources,
				Detail:         "memory",
			}, nil
		}
		return Decision{
			Target:   TargetCloud,
			Provider: ctx.Policy.CloudProvider,
			Reason:   ReasonInsufficientResources,
			Detail:   "memory",
		}, nil
	}

	// Rule 3: explicit preferences; the request outranks the policy.
	if d, ok := applyPreference(ctx.Request.Preference, ReasonUserPreference, candidate, ctx.Policy); ok {
		return d, nil
	}
	if d, ok := applyPreference(ctx.Policy.Preference, ReasonPolicyDriven, candidate, ctx.Policy); ok {
		return d, nil
	}

	// Rule 4: cost/latency trade-off.
	return e.optimize(ctx, candidate), nil
}

// selectCandidate picks the model the on-device rules evaluate against: the
// requested id when present, else the smallest-footprint candidate.
func selectCandidate(req Request, candidates []types.Model) (types.Model, bool) {
	if len(candidates) == 0 {
		return types.Model{}, false
	}
	if req.Model != "" {
		for _, c := range candidates {
			if c.ID == req.Model {
				return c, true
			}
		}
		return types.Model{}, false
	}
	best := candidates[0]
	for _, c := range candidates[1:] {
		if c.EstMemoryBytes < best.EstMemoryBytes {
			best = c
		}
	}
	return best, true
}

func insufficient(res ResourceSnapshot, candidate types.Model) bool {
	if res.PressureCritical {
		return true
	}
	return candidate.EstMemoryBytes > 0 &&
		res.AvailableMemoryBytes < uint64(candidate.EstMemoryBytes)
}

func applyPreference(pref Preference, reason Reason, candidate types.Model, policy Policy) (Decision, bool) {
	switch pref {
	case PreferOnDevice:
		return Decision{
			Target:    TargetOnDevice,
			Framework: candidate.Framework,
			Reason:    reason,
		}, true
	case PreferCloud:
		if policy.CloudProvider == "" {
			// Preference cannot be honored without a provider; fall
			// through to the remaining rules.
			return Decision{}, false
		}
		return Decision{
			Target:   TargetCloud,
			Provider: policy.CloudProvider,
			Reason:   reason,
		}, true
	default:
		return Decision{}, false
	}
}

// optimize chooses between on-device and cloud by weighted cost/latency
// score. Without comparable estimates the device wins: it carries no
// marginal cost.
func (e *Engine) optimize(ctx Context, candidate types.Model) Decision {
	onDevice := Decision{
		Target:    TargetOnDevice,
		Framework: candidate.Framework,
		Reason:    ReasonCostOptimization,
	}
	est := ctx.Estimates
	if est.OnDevice == nil || est.Cloud == nil || ctx.Policy.CloudProvider == "" {
		return onDevice
	}

	costW, latW := ctx.Policy.CostWeight, ctx.Policy.LatencyWeight
	if costW == 0 && latW == 0 {
		costW = 1
	}
	deviceScore := costW*est.OnDevice.Cost + latW*est.OnDevice.LatencyMillis
	cloudScore := costW*est.Cloud.Cost + latW*est.Cloud.LatencyMillis

	reason := ReasonCostOptimization
	if latW > costW {
		reason = ReasonLatencyOptimization
	}
	if cloudScore < deviceScore {
		return Decision{
			Target:   TargetCloud,
			Provider: ctx.Policy.CloudProvider,
			Reason:   reason,
		}
	}
	onDevice.Reason = reason
	return onDevice
}
