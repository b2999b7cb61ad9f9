package engine

// Metrics counts the observable internal failures and throughput
// markers the error-handling design requires: every recoverable fault
// increments a typed counter here and logs one structured line, never
// surfacing past the tick. All fields are touched only from the engine
// goroutine, so plain ints suffice.
type Metrics struct {
	TicksRun                int64
	TickOverruns            int64
	InboundEventsProcessed  int64
	SubsystemPanics         int64
	SchedulerOverflow       int64
	BackpressureDisconnects int64
	AuthRejectedBusy        int64
	HandoffsStarted         int64
	HandoffsCommitted       int64
	HandoffsRolledBack      int64
	ZoneResets              int64
}

// Snapshot returns a copy for reporting outside the engine goroutine;
// callers schedule the read through the engine rather than racing it.
func (m *Metrics) Snapshot() Metrics { return *m }
