package sim

import "fmt"

// SimulationError reports a failed simulation: a mutation that could not be
// applied, or a bound model lacking the simulation capability. The cause is
// chained for errors.Is / errors.As.
type SimulationError struct {
	Scenario string
	Reason   string
	Err      error
}

func (e *SimulationError) Error() string {
	msg := "simulation failed"
	if e.Scenario != "" {
		msg = fmt.Sprintf("simulation of scenario %q failed", e.Scenario)
	}
	if e.Reason != "" {
		msg += ": " + e.Reason
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *SimulationError) Unwrap() error { return e.Err }
