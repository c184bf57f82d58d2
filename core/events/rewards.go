package events

import "math/big"

const (
	// TypeRewardAirdropLogged is emitted when a contribution event accrues a
	// pending reward for a donor.
	TypeRewardAirdropLogged = "rewards.airdrop.logged"
	// TypeRewardEntitlementAdded is emitted when a donor gains an additional
	// reward entitlement outside the accrual path.
	TypeRewardEntitlementAdded = "rewards.entitlement.added"
	// TypeRewardIssuanceRequested is emitted when an item issuance call is
	// submitted to the external collectible service.
	TypeRewardIssuanceRequested = "rewards.issuance.requested"
	// TypeRewardItemIssued is emitted when an issuance flow settles a ledger
	// record with the minted item identifier.
	TypeRewardItemIssued = "rewards.issuance.settled"
	// TypeRewardIssuanceFailed is emitted when the collectible service reports
	// a failed issuance.
	TypeRewardIssuanceFailed = "rewards.issuance.failed"
	// TypeRewardTransferRequested is emitted when a balance transfer flow is
	// started (registration check submitted).
	TypeRewardTransferRequested = "rewards.transfer.requested"
	// TypeRewardRegistrationSubmitted is emitted when the flow submits a
	// recipient registration to the balance service.
	TypeRewardRegistrationSubmitted = "rewards.transfer.registration"
	// TypeRewardTransferSettled is emitted when a transfer flow settles a
	// ledger record.
	TypeRewardTransferSettled = "rewards.transfer.settled"
	// TypeRewardTransferFailed is emitted when any step of the transfer flow
	// reports failure.
	TypeRewardTransferFailed = "rewards.transfer.failed"
	// TypeRewardSettlementSkipped is emitted when an external call succeeded
	// but no unpaid ledger record matched the settlement criteria.
	TypeRewardSettlementSkipped = "rewards.settlement.skipped"
	// TypeRewardMarkedPaid is emitted when an operator manually reconciles a
	// donor.
	TypeRewardMarkedPaid = "rewards.marked.paid"
)

// RewardAirdropLogged captures a newly accrued reward event.
type RewardAirdropLogged struct {
	Recipient string
	Amount    *big.Int
	Position  uint64
	ChannelID string
}

// EventType implements the Event interface.
func (RewardAirdropLogged) EventType() string { return TypeRewardAirdropLogged }

// RewardEntitlementAdded captures an entitlement added via explicit selection.
type RewardEntitlementAdded struct {
	Recipient string
	ChannelID string
}

// EventType implements the Event interface.
func (RewardEntitlementAdded) EventType() string { return TypeRewardEntitlementAdded }

// RewardIssuanceRequested captures a submitted item issuance call.
type RewardIssuanceRequested struct {
	Recipient string
	ChannelID string
	CallID    string
}

// EventType implements the Event interface.
func (RewardIssuanceRequested) EventType() string { return TypeRewardIssuanceRequested }

// RewardItemIssued captures a settled issuance flow.
type RewardItemIssued struct {
	Recipient string
	ChannelID string
	ItemID    string
	Position  uint64
}

// EventType implements the Event interface.
func (RewardItemIssued) EventType() string { return TypeRewardItemIssued }

// RewardIssuanceFailed captures a failed issuance call.
type RewardIssuanceFailed struct {
	Recipient string
	CallID    string
}

// EventType implements the Event interface.
func (RewardIssuanceFailed) EventType() string { return TypeRewardIssuanceFailed }

// RewardTransferRequested captures the start of a balance transfer flow.
type RewardTransferRequested struct {
	Recipient string
	Amount    *big.Int
	CallID    string
}

// EventType implements the Event interface.
func (RewardTransferRequested) EventType() string { return TypeRewardTransferRequested }

// RewardRegistrationSubmitted captures a registration call on behalf of an
// unregistered recipient.
type RewardRegistrationSubmitted struct {
	Recipient string
	Deposit   *big.Int
	CallID    string
}

// EventType implements the Event interface.
func (RewardRegistrationSubmitted) EventType() string { return TypeRewardRegistrationSubmitted }

// RewardTransferSettled captures a settled transfer flow.
type RewardTransferSettled struct {
	Recipient string
	Amount    *big.Int
	Position  uint64
}

// EventType implements the Event interface.
func (RewardTransferSettled) EventType() string { return TypeRewardTransferSettled }

// RewardTransferFailed captures a terminal transfer flow failure.
type RewardTransferFailed struct {
	Recipient string
	Step      string
	CallID    string
}

// EventType implements the Event interface.
func (RewardTransferFailed) EventType() string { return TypeRewardTransferFailed }

// RewardSettlementSkipped captures the no-op degenerate case where a successful
// external call found no unpaid record to settle.
type RewardSettlementSkipped struct {
	Recipient string
	Flow      string
}

// EventType implements the Event interface.
func (RewardSettlementSkipped) EventType() string { return TypeRewardSettlementSkipped }

// RewardMarkedPaid captures a manual reconciliation by an operator. Position
// is only meaningful when RecordSettled is true; a donor can be reconciled
// with no unpaid record left to settle.
type RewardMarkedPaid struct {
	Recipient     string
	Caller        string
	Position      uint64
	RecordSettled bool
}

// EventType implements the Event interface.
func (RewardMarkedPaid) EventType() string { return TypeRewardMarkedPaid }
