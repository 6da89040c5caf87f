package importer

// Phase is a step of the import state machine:
//
//	Idle → ReadingRaw → ReconcilingHeaders → FillingPass1 → FillingPass2 → Done
//
// Any step may move to Failed. Done and Failed are terminal.
type Phase int32

const (
	Idle Phase = iota
	ReadingRaw
	ReconcilingHeaders
	FillingPass1
	FillingPass2
	Done
	Failed
)

var phaseNames = [...]string{
	Idle:               "idle",
	ReadingRaw:         "reading raw data",
	ReconcilingHeaders: "reconciling headers",
	FillingPass1:       "filling pass 1",
	FillingPass2:       "filling pass 2",
	Done:               "done",
	Failed:             "failed",
}

func (p Phase) String() string {
	if p < 0 || int(p) >= len(phaseNames) {
		return "unknown"
	}
	return phaseNames[p]
}

// Terminal reports whether no further transition is possible.
func (p Phase) Terminal() bool {
	return p == Done || p == Failed
}
