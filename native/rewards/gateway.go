package rewards

import (
	"context"
	"math/big"
)

// CallStatus is the resolution of a submitted gateway call. The gateway never
// reports partial success and never times out from the engine's point of view;
// every submitted call resolves to exactly one of these.
type CallStatus uint8

const (
	// CallSucceeded marks a call whose payload arrived intact.
	CallSucceeded CallStatus = iota + 1
	// CallFailed marks a call the external service rejected or that could
	// not be delivered.
	CallFailed
)

// ItemIssuanceResult resolves an IssueItem call. ItemID is only meaningful on
// success.
type ItemIssuanceResult struct {
	Status CallStatus
	ItemID string
}

// RegistrationCheckResult resolves a CheckRegistration call.
type RegistrationCheckResult struct {
	Status     CallStatus
	Registered bool
}

// CallResult resolves calls that carry no payload (Register, TransferBalance).
type CallResult struct {
	Status CallStatus
}

// Gateway submits asynchronous calls to the two external services. Submission
// returns immediately; the implementation later resumes the engine exactly
// once through the continuation matching the call kind, passing back the call
// id it was handed here. A submission error means the call was never issued.
type Gateway interface {
	// IssueItem asks the collectible service to mint an item on the channel
	// for the recipient, forwarding the attached deposit.
	IssueItem(ctx context.Context, callID, recipient, channelID string, deposit *big.Int) error
	// CheckRegistration asks the balance service whether the recipient can
	// already receive the token.
	CheckRegistration(ctx context.Context, callID, recipient string) error
	// Register registers the recipient with the balance service, funding the
	// registration from the attached deposit.
	Register(ctx context.Context, callID, recipient string, deposit *big.Int) error
	// TransferBalance transfers the token amount to the recipient.
	TransferBalance(ctx context.Context, callID, recipient string, amount *big.Int) error
}

// callKind identifies which continuation a pending call must resume through.
type callKind uint8

const (
	callIssueItem callKind = iota + 1
	callCheckRegistration
	callRegister
	callTransfer
)

func (k callKind) String() string {
	switch k {
	case callIssueItem:
		return "issue_item"
	case callCheckRegistration:
		return "check_registration"
	case callRegister:
		return "register"
	case callTransfer:
		return "transfer_balance"
	default:
		return "unknown"
	}
}

// pendingCall is the engine-side context that survives the suspension between
// submitting a gateway call and its continuation. No implicit call-stack state
// exists across that boundary, so everything a continuation needs lives here.
type pendingCall struct {
	id        string
	kind      callKind
	recipient string
	channelID string
	amount    *big.Int
	deposit   *big.Int
}
