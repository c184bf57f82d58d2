package rewards

import "errors"

var (
	// ErrUnauthorized is returned when a caller invokes a privileged
	// operation without holding the admin role.
	ErrUnauthorized = errors.New("rewards: unauthorized")
	// ErrInvalidContribution is returned when a contribution payload fails
	// its per-category validation.
	ErrInvalidContribution = errors.New("rewards: invalid contribution")
	// ErrInvalidLimit is returned when a listing limit falls outside [1,100].
	ErrInvalidLimit = errors.New("rewards: limit must be between 1 and 100")
	// ErrDonorNotFound is returned when the addressed donor has no ledger
	// aggregate.
	ErrDonorNotFound = errors.New("rewards: donor not found")
	// ErrAlreadyPaid is returned when a flow is started for a donor whose
	// payout already completed.
	ErrAlreadyPaid = errors.New("rewards: payout already completed")
	// ErrNoEntitlement is returned when the donor lacks the reward kind the
	// flow requires.
	ErrNoEntitlement = errors.New("rewards: reward kind not held")
	// ErrNothingAccrued is returned when a transfer flow is started with a
	// zero accrued reward.
	ErrNothingAccrued = errors.New("rewards: no reward accrued")
	// ErrDepositRequired is returned when an operation needs an attached
	// deposit and none was supplied.
	ErrDepositRequired = errors.New("rewards: attached deposit required")
	// ErrChannelRequired is returned when an operation needs a collectible
	// channel identifier and none was supplied.
	ErrChannelRequired = errors.New("rewards: channel id required")
	// ErrInsufficientDeposit is returned when the attached deposit does not
	// cover the recipient registration cost.
	ErrInsufficientDeposit = errors.New("rewards: deposit below registration cost")
	// ErrProtocolViolation is returned when a continuation resumes with an
	// unexpected set of outstanding calls. The handler aborts without
	// mutating state.
	ErrProtocolViolation = errors.New("rewards: unexpected outstanding call")
	// ErrCallFailed is the terminal outcome of a flow whose external call
	// reported failure. The donor stays payable and the entry point may be
	// re-invoked.
	ErrCallFailed = errors.New("rewards: external call failed")
	// ErrFlowInProgress is returned when an entry point is invoked while an
	// earlier call for the same donor is still outstanding.
	ErrFlowInProgress = errors.New("rewards: flow already in progress")
	// ErrNilLedger is returned when the engine runs without a ledger backend.
	ErrNilLedger = errors.New("rewards: ledger not configured")
	// ErrNilGateway is returned when the engine runs without a gateway.
	ErrNilGateway = errors.New("rewards: gateway not configured")
	// ErrRecordNotFound is returned when a record position is out of range.
	ErrRecordNotFound = errors.New("rewards: record not found")
)
