package manager

import (
	"time"

	"runtimed/internal/lifecycle"
	"runtimed/pkg/types"
)

// Status builds the detailed status response for /status.
func (m *Manager) Status() types.StatusResponse {
	sample := m.monitor.CurrentStats()
	resp := types.StatusResponse{
		Memory: types.MemoryStatus{
			UsedBytes:      sample.UsedBytes,
			AvailableBytes: sample.AvailableBytes,
			TotalBytes:     sample.TotalBytes,
			Pressure:       string(sample.Pressure),
			Samples:        len(m.monitor.Window()),
		},
		UptimeSeconds:  int64(time.Since(m.startTime).Seconds()),
		ServerTimeUnix: time.Now().Unix(),
	}

	resp.Lifecycles = make([]types.LifecycleStatus, 0, len(m.order))
	anyReady, anyError := false, false
	for _, id := range m.order {
		mach := m.machines[id]
		stats := mach.svc.Stats()
		switch stats.State {
		case lifecycle.StateReady, lifecycle.StateExecuting:
			anyReady = true
		case lifecycle.StateError:
			anyError = true
		}
		allowed := mach.svc.Allowed()
		allowedStr := make([]string, len(allowed))
		for i, st := range allowed {
			allowedStr[i] = string(st)
		}
		resp.Lifecycles = append(resp.Lifecycles, types.LifecycleStatus{
			ModelID:             id,
			State:               string(stats.State),
			Allowed:             allowedStr,
			Transitions:         stats.TotalTransitions,
			Errors:              stats.ErrorCount,
			AvgTransitionMillis: stats.AverageTransitionTime.Milliseconds(),
			LastError:           stats.LastError,
			Observers:           stats.ObserverCount,
		})
	}

	switch {
	case anyReady:
		resp.State = "ready"
	case anyError:
		resp.State = "error"
	default:
		resp.State = "starting"
	}
	return resp
}
