package spine

import (
	"fmt"
	"slices"
	"time"
)

// ApproveArtifacts approves named artifacts pending in the given gate and
// returns the names approved. An empty names slice approves everything
// currently pending in that gate, and only that gate. Approval through a
// gate is the only path by which an artifact becomes APPROVED.
//
// Naming an artifact that is not currently pending in the gate is an error
// and nothing is mutated: re-approval is rejected, not silently accepted.
func ApproveArtifacts(w *Workflow, gateID GateID, approvedBy string, names []string, now time.Time) ([]string, error) {
	record, targets, err := gateTargets(w, gateID, approvedBy, names)
	if err != nil {
		return nil, err
	}

	for _, name := range targets {
		record.approve(name)
		art := w.Artifacts[name]
		art.ApprovalStatus = ApprovalApproved

		record.Decisions = append(record.Decisions, GateDecision{
			Artifact:  name,
			Outcome:   ApprovalApproved,
			DecidedBy: approvedBy,
			DecidedAt: now,
		})
	}

	w.markActive(now)
	return targets, nil
}

// RejectArtifacts rejects named artifacts pending in the given gate, records
// the reason, and returns the names rejected. A rejected artifact keeps its
// identity permanently but may be superseded by a resubmission under the same
// name. Unlike approval, rejection always names its targets explicitly.
func RejectArtifacts(w *Workflow, gateID GateID, rejectedBy string, names []string, reason string, now time.Time) ([]string, error) {
	if len(names) == 0 {
		return nil, fmt.Errorf("%w: rejection must name its artifacts", ErrInvalidDecision)
	}
	if reason == "" {
		return nil, fmt.Errorf("%w: rejection requires a reason", ErrInvalidDecision)
	}

	record, targets, err := gateTargets(w, gateID, rejectedBy, names)
	if err != nil {
		return nil, err
	}

	for _, name := range targets {
		record.reject(name)
		art := w.Artifacts[name]
		art.ApprovalStatus = ApprovalRejected
		art.RejectedBy = rejectedBy
		art.RejectedReason = reason
		rejectedAt := now
		art.RejectedAt = &rejectedAt

		record.Decisions = append(record.Decisions, GateDecision{
			Artifact:  name,
			Outcome:   ApprovalRejected,
			DecidedBy: rejectedBy,
			Reason:    reason,
			DecidedAt: now,
		})
	}

	w.markActive(now)
	return targets, nil
}

// gateTargets resolves and validates the artifacts a decision applies to.
// All names are checked before anything is mutated so a partially-applied
// decision can never occur.
func gateTargets(w *Workflow, gateID GateID, decidedBy string, names []string) (*GateRecord, []string, error) {
	if _, err := ParseGateID(string(gateID)); err != nil {
		return nil, nil, fmt.Errorf("%w: %q", ErrUnknownGate, gateID)
	}
	if decidedBy == "" {
		return nil, nil, fmt.Errorf("%w: reviewer identity is required", ErrInvalidDecision)
	}

	record, ok := w.GateRecord(gateID)
	if !ok || !record.HasPending() {
		if len(names) == 0 {
			return nil, nil, fmt.Errorf("%w: gate %s", ErrNoPending, gateID)
		}
	}

	if len(names) == 0 {
		targets := slices.Clone(record.Pending)
		slices.Sort(targets)
		return record, targets, nil
	}

	for _, name := range names {
		if record == nil || !record.IsPending(name) {
			return nil, nil, fmt.Errorf(
				"%w: artifact %s is not pending in gate %s",
				ErrNotPending, name, gateID,
			)
		}
	}

	return record, slices.Clone(names), nil
}
