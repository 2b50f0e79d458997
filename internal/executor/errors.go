package executor

import "errors"

var (
	// ErrBusy is returned to a Submit caller while another submission holds
	// the single-flight lock. Callers drop the intent; conditions are
	// re-evaluated on the next cycle.
	ErrBusy = errors.New("execution already in flight")

	// ErrStaleIntent is returned when the position moved between intent
	// creation and submission, e.g. a stop-loss fill landed first.
	ErrStaleIntent = errors.New("intent no longer matches position state")

	// Execution collaborator failure kinds. Implementations wrap these so
	// the coordinator and operators can classify failures with errors.Is.
	ErrInsufficientLiquidity = errors.New("insufficient pool liquidity")
	ErrReverted              = errors.New("swap reverted")
	ErrTimeout               = errors.New("execution timed out")
	ErrNetwork               = errors.New("network error")
)
