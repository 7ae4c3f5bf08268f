package lifecycle

import (
	"testing"

	"github.com/cuemby/gatewayd/pkg/types"
	"github.com/stretchr/testify/assert"
)

func TestTransitionExhaustive(t *testing.T) {
	states := []types.Status{
		types.StatusStarting, types.StatusStarted, types.StatusRunning,
		types.StatusStopping, types.StatusStopped, types.StatusFailed,
	}

	allowed := map[[2]types.Status]bool{
		{types.StatusStarting, types.StatusStarted}:  true,
		{types.StatusStarting, types.StatusStopping}: true,
		{types.StatusStarted, types.StatusRunning}:   true,
		{types.StatusStarted, types.StatusStopping}:  true,
		{types.StatusRunning, types.StatusStopping}:  true,
		{types.StatusStopping, types.StatusStopped}:  true,
		{types.StatusStopping, types.StatusFailed}:   true,
	}

	for _, from := range states {
		for _, to := range states {
			err := Transition(from, to)
			want := allowed[[2]types.Status{from, to}]
			if want {
				assert.NoErrorf(t, err, "%s -> %s should be legal", from, to)
			} else {
				assert.Errorf(t, err, "%s -> %s should be illegal", from, to)
			}
		}
	}
}

func TestTransitionUnknownStatus(t *testing.T) {
	err := Transition(types.Status("BOGUS"), types.StatusStarted)
	assert.Error(t, err)
}
