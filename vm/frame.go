package vm

import "github.com/simondevenish/Ember/value"

// frame is one active call's bookkeeping. The VM's local/parameter slots
// (256-511) are a single flat range rather than a per-call window, so a
// call saves the slice it's about to overwrite and a return restores it —
// this is what lets a recursive call coexist with its caller's locals.
// savedParams spans paramBase..globalSlots-1, which includes thisSlot
// (the top slot of that range) — saving/restoring the param range already
// carries the receiver binding along with it.
type frame struct {
	returnIP    int
	savedParams [globalSlots - paramBase]value.Value
}
