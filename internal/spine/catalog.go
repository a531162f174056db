// Package spine implements the governance core for legislative advocacy
// workflows: the stage catalog, transition validation, the artifact registry,
// and review gate bookkeeping. Everything in this package is pure; functions
// operate on a Workflow aggregate in memory and never touch storage, the
// network, or the clock beyond timestamps passed in by the caller.
package spine

import (
	"encoding/json"
	"slices"
)

// Stage identifies one step in the legislative spine. The catalog is closed:
// stages are strictly ordered and each non-terminal stage has exactly one
// successor.
type Stage string

// The legislative spine, in order.
const (
	StagePre          Stage = "PRE_EVT"
	StageIntroduction Stage = "INTRO_EVT"
	StageCommittee    Stage = "COMM_EVT"
	StageFloor        Stage = "FLOOR_EVT"
	StageFinal        Stage = "FINAL_EVT"
	StageImplemented  Stage = "IMPL_EVT"
)

var stageOrder = []Stage{
	StagePre,
	StageIntroduction,
	StageCommittee,
	StageFloor,
	StageFinal,
	StageImplemented,
}

// Stages returns the full stage order.
func Stages() []Stage {
	return stageOrder
}

// EntryStage is where newly created workflows start unless the caller
// specifies a later entry point.
const EntryStage = StagePre

// ParseStage validates a string as a cataloged stage.
// Returns ErrUnknownStage if the value is not recognized.
func ParseStage(s string) (Stage, error) {
	v := Stage(s)
	if !slices.Contains(stageOrder, v) {
		return "", ErrUnknownStage
	}
	return v, nil
}

// UnmarshalJSON validates that the decoded string is a cataloged stage.
func (s *Stage) UnmarshalJSON(data []byte) error {
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	v, err := ParseStage(raw)
	if err != nil {
		return err
	}
	*s = v
	return nil
}

// Index returns the stage's position in the spine order.
func (s Stage) Index() int {
	return slices.Index(stageOrder, s)
}

// Terminal reports whether the stage has no successor.
func (s Stage) Terminal() bool {
	return s == StageImplemented
}

// Successor returns the single legal next stage, or false for the terminal stage.
func (s Stage) Successor() (Stage, bool) {
	i := s.Index()
	if i < 0 || i >= len(stageOrder)-1 {
		return "", false
	}
	return stageOrder[i+1], true
}

// GateID identifies a human review gate. Gates are drawn from a fixed catalog,
// never invented at runtime.
type GateID string

// The review gate catalog.
const (
	GateConcept   GateID = "HR_PRE"
	GateLanguage  GateID = "HR_LANG"
	GateMessaging GateID = "HR_MSG"
	GateRelease   GateID = "HR_RELEASE"
)

var gateOrder = []GateID{
	GateConcept,
	GateLanguage,
	GateMessaging,
	GateRelease,
}

// Gates returns the full gate catalog.
func Gates() []GateID {
	return gateOrder
}

// ParseGateID validates a string as a cataloged review gate.
// Returns ErrUnknownGate if the value is not recognized.
func ParseGateID(s string) (GateID, error) {
	v := GateID(s)
	if !slices.Contains(gateOrder, v) {
		return "", ErrUnknownGate
	}
	return v, nil
}

// Transition describes the single legal exit from a stage: its target and the
// external confirmation event type the caller must supply as proof the
// real-world legislative event occurred.
type Transition struct {
	From      Stage  `json:"from"`
	To        Stage  `json:"to"`
	EventType string `json:"event_type"`
}

var transitions = map[Stage]Transition{
	StagePre:          {From: StagePre, To: StageIntroduction, EventType: "bill_introduced"},
	StageIntroduction: {From: StageIntroduction, To: StageCommittee, EventType: "committee_referral"},
	StageCommittee:    {From: StageCommittee, To: StageFloor, EventType: "floor_scheduled"},
	StageFloor:        {From: StageFloor, To: StageFinal, EventType: "vote_scheduled"},
	StageFinal:        {From: StageFinal, To: StageImplemented, EventType: "bill_enacted"},
}

// TransitionFrom returns the transition leaving the given stage,
// or false for the terminal stage.
func TransitionFrom(s Stage) (Transition, bool) {
	t, ok := transitions[s]
	return t, ok
}

// Requirement names an artifact that must exist before its stage can be
// exited. A non-empty Gate means the artifact must also be approved through
// that review gate.
type Requirement struct {
	Name string `json:"name"`
	Gate GateID `json:"gate,omitempty"`
}

var requirements = map[Stage][]Requirement{
	StagePre: {
		{Name: "signal_scan"},
		{Name: "stakeholder_map"},
		{Name: "concept_memo", Gate: GateConcept},
	},
	StageIntroduction: {
		{Name: "framing_brief"},
		{Name: "whitepaper"},
		{Name: "opposition_assessment"},
	},
	StageCommittee: {
		{Name: "draft_language", Gate: GateLanguage},
		{Name: "amendment_strategy", Gate: GateLanguage},
	},
	StageFloor: {
		{Name: "floor_messaging", Gate: GateMessaging},
		{Name: "media_narrative", Gate: GateMessaging},
	},
	StageFinal: {
		{Name: "release_package", Gate: GateRelease},
		{Name: "coalition_plan"},
	},
}

// RequiredArtifacts returns the requirements that must be satisfied to leave
// the given stage. The terminal stage has none.
func RequiredArtifacts(s Stage) []Requirement {
	return requirements[s]
}

// RequirementGate returns the gate a cataloged required artifact is bound to,
// or false if the name is not a requirement of the stage.
func RequirementGate(s Stage, name string) (GateID, bool) {
	for _, req := range requirements[s] {
		if req.Name == name {
			return req.Gate, true
		}
	}
	return "", false
}

// GateFor returns the gate the catalog binds an artifact name to at any
// stage, or false when no stage gates that name. Requirement names are
// unique across the catalog.
func GateFor(name string) (GateID, bool) {
	for _, stage := range stageOrder {
		for _, req := range requirements[stage] {
			if req.Name == name && req.Gate != "" {
				return req.Gate, true
			}
		}
	}
	return "", false
}
