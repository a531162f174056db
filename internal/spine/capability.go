package spine

import (
	"fmt"
	"slices"
)

// Operation identifies a governed mutation for capability checks.
type Operation string

// Governed operations.
const (
	OpCreate         Operation = "create"
	OpSubmitArtifact Operation = "submit_artifact"
	OpApproveGate    Operation = "approve_gate"
	OpRejectGate     Operation = "reject_gate"
	OpAdvance        Operation = "advance"
	OpPause          Operation = "pause"
	OpResume         Operation = "resume"
	OpRecover        Operation = "recover"
)

// Role is the caller identity class consulted against the capability table.
// Roles are ranked: a director may perform anything a reviewer may, and a
// reviewer anything an analyst may. Reads require no role at all.
type Role string

// Caller roles, in ascending rank.
const (
	RoleAnalyst  Role = "analyst"
	RoleReviewer Role = "reviewer"
	RoleDirector Role = "director"
)

var roleRank = []Role{RoleAnalyst, RoleReviewer, RoleDirector}

// capabilities is the single table mapping each governed operation to the
// minimum role it requires. The orchestration service consults it exactly
// once per operation; no other component performs authorization.
var capabilities = map[Operation]Role{
	OpCreate:         RoleAnalyst,
	OpSubmitArtifact: RoleAnalyst,
	OpApproveGate:    RoleReviewer,
	OpRejectGate:     RoleReviewer,
	OpAdvance:        RoleDirector,
	OpPause:          RoleDirector,
	OpResume:         RoleDirector,
	OpRecover:        RoleDirector,
}

// Authorize checks the capability table for the given operation and role.
// Returns ErrCapabilityDenied (wrapped with specifics) when the role is
// unknown or outranked.
func Authorize(op Operation, role Role) error {
	required, ok := capabilities[op]
	if !ok {
		return fmt.Errorf("%w: unknown operation %q", ErrCapabilityDenied, op)
	}

	rank := slices.Index(roleRank, role)
	if rank == -1 {
		return fmt.Errorf("%w: unknown role %q", ErrCapabilityDenied, role)
	}

	if rank < slices.Index(roleRank, required) {
		return fmt.Errorf(
			"%w: %s requires role %s, caller has %s",
			ErrCapabilityDenied, op, required, role,
		)
	}

	return nil
}

// RequiredRole returns the minimum role for an operation, for catalog exposure.
func RequiredRole(op Operation) (Role, bool) {
	r, ok := capabilities[op]
	return r, ok
}
