package lifecycle

import (
	"fmt"

	"github.com/cuemby/gatewayd/pkg/types"
)

var allowedTransitions = map[types.Status]map[types.Status]bool{
	types.StatusStarting: {types.StatusStarted: true, types.StatusStopping: true},
	types.StatusStarted:  {types.StatusRunning: true, types.StatusStopping: true},
	types.StatusRunning:  {types.StatusStopping: true},
	types.StatusStopping: {types.StatusStopped: true, types.StatusFailed: true},
	types.StatusStopped:  {},
	types.StatusFailed:   {},
}

// Transition reports whether moving a Cluster or Worker's Status from from
// to to is legal:
//
//	STARTING -> STARTED -> RUNNING -> STOPPING -> {STOPPED, FAILED}
//	STARTING -> STOPPING, STARTED -> STOPPING, RUNNING -> STOPPING
//
// STOPPED and FAILED are absorbing: every transition out of them is
// illegal.
func Transition(from, to types.Status) error {
	allowed, known := allowedTransitions[from]
	if !known {
		return fmt.Errorf("lifecycle: unknown status %q", from)
	}
	if from == to {
		return fmt.Errorf("lifecycle: no-op transition %s -> %s", from, to)
	}
	if !allowed[to] {
		return fmt.Errorf("lifecycle: illegal transition %s -> %s", from, to)
	}
	return nil
}
