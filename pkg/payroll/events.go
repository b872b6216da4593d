package payroll

// EventStage identifies a sequencer state transition
type EventStage string

const (
	StageShortfallCheck EventStage = "shortfall_check"
	StageCuring         EventStage = "curing"
	StageTransferring   EventStage = "transferring"
	StageSucceeded      EventStage = "succeeded"
	StageFailed         EventStage = "failed"
	StageSkipped        EventStage = "skipped"
	StageBlocked        EventStage = "blocked"
)

// Event is one observable state transition of a group run. The presentation
// layer subscribes to these; the core never depends on it.
type Event struct {
	Stage        EventStage
	ObligationID string
	Token        string
	Message      string
}
