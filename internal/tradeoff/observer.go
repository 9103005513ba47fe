package tradeoff

import (
	"github.com/hay-kot/tradeoff/internal/core/eventbus"
	"github.com/hay-kot/tradeoff/internal/core/workflow"
)

// BusObserver republishes workflow transitions on the event bus.
type BusObserver struct {
	bus *eventbus.EventBus
}

var _ workflow.Observer = (*BusObserver)(nil)

// NewBusObserver creates an observer that publishes to bus.
func NewBusObserver(bus *eventbus.EventBus) *BusObserver {
	return &BusObserver{bus: bus}
}

func (o *BusObserver) PhaseChanged(sessionID string, from, to workflow.Phase) {
	o.bus.PublishPhaseChanged(eventbus.PhaseChangedPayload{SessionID: sessionID, From: from, To: to})
}

func (o *BusObserver) AnalysisCompleted(c workflow.Completion) {
	o.bus.PublishAnalysisCompleted(eventbus.AnalysisCompletedPayload{Completion: c})
}

func (o *BusObserver) VerificationCompleted(c workflow.Completion) {
	o.bus.PublishVerificationCompleted(eventbus.VerificationCompletedPayload{Completion: c})
}
