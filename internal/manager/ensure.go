package manager

import (
	"context"
	"fmt"

	"runtimed/internal/lifecycle"
)

// EnsureReady drives one model's machine along the happy path until it is
// serving. Machines parked in the error state are reset first. A machine
// currently executing counts as ready; the caller queues behind the
// in-flight operation at execution time, not here.
func (m *Manager) EnsureReady(ctx context.Context, modelID string) error {
	mach, ok := m.machines[modelID]
	if !ok {
		return ErrModelNotFound(modelID)
	}
	svc := mach.svc

	if svc.CurrentState() == lifecycle.StateError {
		if err := svc.Reset(); err != nil {
			return fmt.Errorf("reset %s: %w", modelID, err)
		}
	}

	mach.setDriveContext(ctx)
	defer mach.setDriveContext(nil)

	// One pass through the happy path touches every stage once; anything
	// longer means the machine regressed mid-drive.
	for range lifecycle.AllStates() {
		switch svc.CurrentState() {
		case lifecycle.StateReady, lifecycle.StateExecuting:
			return nil
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := m.prepareStage(ctx, mach); err != nil {
			return err
		}
		if err := svc.ProgressToNext(); err != nil {
			return fmt.Errorf("advance %s from %s: %w", modelID, svc.CurrentState(), err)
		}
	}
	return fmt.Errorf("ensure %s: machine did not settle at ready", modelID)
}

// prepareStage runs out-of-band work a stage needs before its transition
// fires. Only the download stage has a collaborator today.
func (m *Manager) prepareStage(ctx context.Context, mach *machine) error {
	if m.fetcher == nil {
		return nil
	}
	if mach.svc.CurrentState() != lifecycle.StateDownloading {
		return nil
	}
	if err := m.fetcher.Fetch(ctx, mach.model); err != nil {
		// The machine saw the failure, not just the caller.
		if herr := mach.svc.HandleError(err); herr != nil {
			m.log.Error().Err(herr).Str("model", mach.model.ID).Msg("forcing error state failed")
		}
		return fmt.Errorf("fetch %s: %w", mach.model.ID, err)
	}
	return nil
}
