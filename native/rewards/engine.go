package rewards

import (
	"context"
	"fmt"
	"log/slog"
	"math/big"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"donorpay/core/events"
	"donorpay/observability"
)

// defaultMinRegistrationDeposit is the base-unit cost of registering a
// recipient with the balance service before a transfer can land.
const defaultMinRegistrationDeposit = "1250000000000000000000"

// rewardUnit is the fixed reward quantity accrued per contribution event.
var rewardUnit = big.NewInt(1)

// Engine drives the reward distribution flows. Entry points validate
// preconditions, submit a gateway call and suspend; the matching continuation
// re-enters the engine with the outcome as a fresh invocation. One mutex
// serialises every state-mutating path, so a continuation always observes the
// ledger exactly as its entry point left it.
type Engine struct {
	mu                     sync.Mutex
	ledger                 *Ledger
	gateway                Gateway
	emitter                events.Emitter
	metrics                *observability.RewardsMetrics
	logger                 *slog.Logger
	admin                  string
	minRegistrationDeposit *big.Int
	nowFn                  func() int64

	// pending tracks the outstanding gateway call per donor. A continuation
	// resuming with anything other than exactly one matching entry is a
	// protocol violation and aborts without touching the ledger.
	pending map[string][]pendingCall
}

// NewEngine creates a reward engine with a no-op emitter and default clock.
// Callers wire the ledger and gateway via the setters before use.
func NewEngine() *Engine {
	min, _ := new(big.Int).SetString(defaultMinRegistrationDeposit, 10)
	return &Engine{
		emitter:                events.NoopEmitter{},
		metrics:                observability.Rewards(),
		logger:                 slog.Default(),
		minRegistrationDeposit: min,
		nowFn:                  func() int64 { return time.Now().Unix() },
		pending:                make(map[string][]pendingCall),
	}
}

// SetLedger configures the ledger backend used by the engine.
func (e *Engine) SetLedger(ledger *Ledger) { e.ledger = ledger }

// SetGateway configures the external service gateway.
func (e *Engine) SetGateway(gateway Gateway) { e.gateway = gateway }

// SetAdmin configures the wallet allowed to invoke privileged operations.
func (e *Engine) SetAdmin(walletID string) { e.admin = strings.TrimSpace(walletID) }

// SetEmitter configures the event emitter. Passing nil resets it to a no-op.
func (e *Engine) SetEmitter(emitter events.Emitter) {
	if emitter == nil {
		e.emitter = events.NoopEmitter{}
		return
	}
	e.emitter = emitter
}

// SetLogger overrides the engine logger.
func (e *Engine) SetLogger(logger *slog.Logger) {
	if logger == nil {
		logger = slog.Default()
	}
	e.logger = logger
}

// SetMinRegistrationDeposit overrides the registration cost threshold.
func (e *Engine) SetMinRegistrationDeposit(min *big.Int) {
	if min == nil || min.Sign() < 0 {
		return
	}
	e.minRegistrationDeposit = new(big.Int).Set(min)
}

// SetNowFunc overrides the time source. Primarily intended for tests.
func (e *Engine) SetNowFunc(now func() int64) {
	if now == nil {
		e.nowFn = func() int64 { return time.Now().Unix() }
		return
	}
	e.nowFn = now
}

func (e *Engine) emit(event events.Event) {
	if e == nil || e.emitter == nil || event == nil {
		return
	}
	e.emitter.Emit(event)
}

func (e *Engine) now() int64 {
	if e == nil || e.nowFn == nil {
		return time.Now().Unix()
	}
	return e.nowFn()
}

func (e *Engine) requireLedger() error {
	if e == nil || e.ledger == nil {
		return ErrNilLedger
	}
	return nil
}

func (e *Engine) requireAdmin(caller string) error {
	if e.admin == "" || caller != e.admin {
		return ErrUnauthorized
	}
	return nil
}

// RecordAirdrop records a contribution event on behalf of a recipient and
// accrues one reward unit for it. Privileged: only the configured admin may
// attribute contributions to other wallets. An empty channel accrues the
// fungible reward; a non-empty channel additionally entitles the recipient to
// a collectible on that channel.
func (e *Engine) RecordAirdrop(caller, recipient, channelID string, contribution ContributionKind, deposit *big.Int) (uint64, error) {
	if err := e.requireAdmin(caller); err != nil {
		return 0, err
	}
	if strings.TrimSpace(recipient) == "" {
		return 0, fmt.Errorf("rewards: recipient required")
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.accrue(recipient, channelID, contribution, deposit)
}

// Donate records a contribution the caller makes for themselves. The attached
// deposit is the contribution value and must be positive.
func (e *Engine) Donate(caller string, contribution ContributionKind, deposit *big.Int) (uint64, error) {
	if strings.TrimSpace(caller) == "" {
		return 0, fmt.Errorf("rewards: caller required")
	}
	if deposit == nil || deposit.Sign() <= 0 {
		return 0, ErrDepositRequired
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.accrue(caller, "", contribution, deposit)
}

// accrue validates the contribution, appends the pending record and folds the
// event into the donor aggregate. Caller holds the mutex.
func (e *Engine) accrue(recipient, channelID string, contribution ContributionKind, deposit *big.Int) (uint64, error) {
	if err := e.requireLedger(); err != nil {
		return 0, err
	}
	if err := contribution.Validate(); err != nil {
		return 0, err
	}

	reward := TokenReward()
	if channelID != "" {
		reward = NFTReward(channelID)
	}
	record := &AirdropRecord{
		Recipient:    recipient,
		Amount:       new(big.Int).Set(rewardUnit),
		Timestamp:    e.now(),
		Reward:       reward,
		Contribution: contribution,
	}
	pos, err := e.ledger.AppendRecord(record)
	if err != nil {
		return 0, err
	}

	donor, ok, err := e.ledger.GetDonor(recipient)
	if err != nil {
		return 0, err
	}
	if !ok {
		donor = NewDonor(recipient)
	}
	donor.addRewardKind(TokenReward())
	if channelID != "" {
		donor.addRewardKind(NFTReward(channelID))
	}
	donor.addContribution(contribution)
	donor.AirdropAmount = new(big.Int).Add(donor.AirdropAmount, rewardUnit)
	if deposit != nil && deposit.Sign() > 0 {
		donor.DonationAmount = new(big.Int).Add(donor.DonationAmount, deposit)
	}
	if err := e.ledger.PutDonor(donor); err != nil {
		return 0, err
	}
	if err := e.ledger.AddDistributed(rewardUnit); err != nil {
		return 0, err
	}

	e.metrics.RecordAccrual(contribution.Class.String())
	e.emit(events.RewardAirdropLogged{
		Recipient: recipient,
		Amount:    new(big.Int).Set(rewardUnit),
		Position:  pos,
		ChannelID: channelID,
	})
	e.logger.Info("logged airdrop",
		"recipient", recipient,
		"position", pos,
		"contribution", contribution.Class.String(),
		"channel", channelID)
	return pos, nil
}

// SelectRewardKind adds a collectible entitlement for the channel to an
// existing donor. The donor must already hold the fungible entitlement and
// must not be paid out. No record is appended and nothing accrues; the
// entitlement is settled against records created by subsequent contributions.
func (e *Engine) SelectRewardKind(caller, channelID string, contribution ContributionKind) error {
	if err := e.requireLedger(); err != nil {
		return err
	}
	if strings.TrimSpace(channelID) == "" {
		return ErrChannelRequired
	}
	if err := contribution.Validate(); err != nil {
		return err
	}
	e.mu.Lock()
	defer e.mu.Unlock()

	donor, ok, err := e.ledger.GetDonor(caller)
	if err != nil {
		return err
	}
	if !ok {
		return ErrDonorNotFound
	}
	if donor.Paid {
		return ErrAlreadyPaid
	}
	if !donor.HasTokenReward() {
		return ErrNoEntitlement
	}
	donor.addRewardKind(NFTReward(channelID))
	donor.addContribution(contribution)
	if err := e.ledger.PutDonor(donor); err != nil {
		return err
	}
	e.emit(events.RewardEntitlementAdded{Recipient: caller, ChannelID: channelID})
	return nil
}

// BeginItemIssuance starts the collectible issuance flow for the caller. The
// caller must hold a collectible entitlement and must not be paid out; any
// precondition failure is synchronous and issues no external call. Returns
// the gateway call id the continuation will resume with.
func (e *Engine) BeginItemIssuance(ctx context.Context, caller string, deposit *big.Int) (string, error) {
	if err := e.requireLedger(); err != nil {
		return "", err
	}
	if e.gateway == nil {
		return "", ErrNilGateway
	}
	e.mu.Lock()
	defer e.mu.Unlock()

	donor, ok, err := e.ledger.GetDonor(caller)
	if err != nil {
		return "", err
	}
	if !ok {
		return "", ErrDonorNotFound
	}
	if donor.Paid {
		return "", ErrAlreadyPaid
	}
	entitlement, ok := donor.FirstNFTReward()
	if !ok {
		return "", ErrNoEntitlement
	}
	if len(e.pending[caller]) > 0 {
		return "", ErrFlowInProgress
	}

	callID := uuid.NewString()
	e.pending[caller] = []pendingCall{{
		id:        callID,
		kind:      callIssueItem,
		recipient: caller,
		channelID: entitlement.ChannelID,
		deposit:   cloneBigInt(deposit),
	}}
	if err := e.gateway.IssueItem(ctx, callID, caller, entitlement.ChannelID, deposit); err != nil {
		delete(e.pending, caller)
		return "", fmt.Errorf("rewards: submit issue_item: %w", err)
	}
	e.metrics.FlowStarted(observability.FlowIssuance)
	e.emit(events.RewardIssuanceRequested{Recipient: caller, ChannelID: entitlement.ChannelID, CallID: callID})
	e.logger.Info("initiating item issuance", "recipient", caller, "channel", entitlement.ChannelID, "call", callID)
	return callID, nil
}

// CompleteItemIssuance resumes the issuance flow with the mint outcome. On
// success the oldest unpaid collectible record for the donor is settled with
// the item id and the donor is marked paid. A successful mint with no
// matching unpaid record is a logged no-op: the external side effect already
// happened and there is nothing left to settle.
func (e *Engine) CompleteItemIssuance(callID, recipient string, result ItemIssuanceResult) error {
	if err := e.requireLedger(); err != nil {
		return err
	}
	e.mu.Lock()
	defer e.mu.Unlock()

	call, err := e.takePending(callID, recipient, callIssueItem)
	if err != nil {
		return err
	}
	donor, ok, err := e.ledger.GetDonor(recipient)
	if err != nil {
		return err
	}
	if !ok {
		return ErrDonorNotFound
	}

	if result.Status != CallSucceeded {
		e.metrics.FlowFailed(observability.FlowIssuance, "mint")
		e.emit(events.RewardIssuanceFailed{Recipient: recipient, CallID: callID})
		e.logger.Warn("item issuance failed", "recipient", recipient, "call", callID)
		return ErrCallFailed
	}

	pos, record, found, err := e.ledger.findUnpaidRecord(func(r *AirdropRecord) bool {
		return r.Recipient == recipient && r.Reward.Class == RewardNFT
	})
	if err != nil {
		return err
	}
	if !found {
		e.metrics.SettlementSkipped(observability.FlowIssuance)
		e.emit(events.RewardSettlementSkipped{Recipient: recipient, Flow: observability.FlowIssuance})
		e.logger.Info("no matching airdrop record", "recipient", recipient, "call", callID)
		return nil
	}

	record.Reward.ItemID = result.ItemID
	record.Paid = true
	if err := e.ledger.ReplaceRecord(pos, record); err != nil {
		return err
	}
	for i, kind := range donor.RewardKinds {
		if kind.Class == RewardNFT && kind.ChannelID == call.channelID {
			donor.RewardKinds[i].ItemID = result.ItemID
			break
		}
	}
	donor.Paid = true
	if err := e.ledger.PutDonor(donor); err != nil {
		return err
	}
	e.metrics.FlowCompleted(observability.FlowIssuance)
	e.emit(events.RewardItemIssued{Recipient: recipient, ChannelID: call.channelID, ItemID: result.ItemID, Position: pos})
	e.logger.Info("settled item issuance", "recipient", recipient, "item", result.ItemID, "position", pos)
	return nil
}

// BeginBalanceTransfer starts the fungible transfer flow for the caller: a
// registration check, an optional registration funded by the attached
// deposit, then the transfer itself. Preconditions fail synchronously with no
// external call.
func (e *Engine) BeginBalanceTransfer(ctx context.Context, caller string, deposit *big.Int) (string, error) {
	if err := e.requireLedger(); err != nil {
		return "", err
	}
	if e.gateway == nil {
		return "", ErrNilGateway
	}
	e.mu.Lock()
	defer e.mu.Unlock()

	donor, ok, err := e.ledger.GetDonor(caller)
	if err != nil {
		return "", err
	}
	if !ok {
		return "", ErrDonorNotFound
	}
	if donor.Paid {
		return "", ErrAlreadyPaid
	}
	if !donor.HasTokenReward() {
		return "", ErrNoEntitlement
	}
	if donor.AirdropAmount == nil || donor.AirdropAmount.Sign() == 0 {
		return "", ErrNothingAccrued
	}
	if len(e.pending[caller]) > 0 {
		return "", ErrFlowInProgress
	}

	amount := new(big.Int).Set(donor.AirdropAmount)
	callID := uuid.NewString()
	e.pending[caller] = []pendingCall{{
		id:        callID,
		kind:      callCheckRegistration,
		recipient: caller,
		amount:    amount,
		deposit:   cloneBigInt(deposit),
	}}
	if err := e.gateway.CheckRegistration(ctx, callID, caller); err != nil {
		delete(e.pending, caller)
		return "", fmt.Errorf("rewards: submit check_registration: %w", err)
	}
	e.metrics.FlowStarted(observability.FlowTransfer)
	e.emit(events.RewardTransferRequested{Recipient: caller, Amount: new(big.Int).Set(amount), CallID: callID})
	e.logger.Info("initiating balance transfer", "recipient", caller, "amount", amount.String(), "call", callID)
	return callID, nil
}

// CompleteRegistrationCheck resumes the transfer flow with the registration
// status. Registered recipients go straight to the transfer; unregistered
// recipients are registered first, provided the attached deposit covers the
// registration cost. A failed check is terminal: registration status is a
// prerequisite and cannot be assumed.
func (e *Engine) CompleteRegistrationCheck(ctx context.Context, callID, recipient string, result RegistrationCheckResult) error {
	if err := e.requireLedger(); err != nil {
		return err
	}
	e.mu.Lock()
	defer e.mu.Unlock()

	call, err := e.takePending(callID, recipient, callCheckRegistration)
	if err != nil {
		return err
	}
	if result.Status != CallSucceeded {
		return e.failTransfer(recipient, callID, "check_registration")
	}

	if result.Registered {
		return e.submitTransfer(ctx, recipient, call.amount)
	}
	if call.deposit == nil || call.deposit.Cmp(e.minRegistrationDeposit) < 0 {
		e.metrics.FlowFailed(observability.FlowTransfer, "deposit")
		e.emit(events.RewardTransferFailed{Recipient: recipient, Step: "register", CallID: callID})
		e.logger.Warn("registration deposit insufficient", "recipient", recipient,
			"required", e.minRegistrationDeposit.String())
		return ErrInsufficientDeposit
	}

	registerID := uuid.NewString()
	e.pending[recipient] = []pendingCall{{
		id:        registerID,
		kind:      callRegister,
		recipient: recipient,
		amount:    call.amount,
		deposit:   call.deposit,
	}}
	if err := e.gateway.Register(ctx, registerID, recipient, call.deposit); err != nil {
		delete(e.pending, recipient)
		return fmt.Errorf("rewards: submit register: %w", err)
	}
	e.emit(events.RewardRegistrationSubmitted{Recipient: recipient, Deposit: new(big.Int).Set(call.deposit), CallID: registerID})
	return nil
}

// CompleteRegistration resumes the transfer flow after registering the
// recipient. Success chains into the transfer; failure is terminal.
func (e *Engine) CompleteRegistration(ctx context.Context, callID, recipient string, result CallResult) error {
	if err := e.requireLedger(); err != nil {
		return err
	}
	e.mu.Lock()
	defer e.mu.Unlock()

	call, err := e.takePending(callID, recipient, callRegister)
	if err != nil {
		return err
	}
	if result.Status != CallSucceeded {
		return e.failTransfer(recipient, callID, "register")
	}
	return e.submitTransfer(ctx, recipient, call.amount)
}

// CompleteBalanceTransfer resumes the transfer flow with the final outcome.
// On success the oldest unpaid fungible record with the transferred amount is
// settled and the donor is marked paid. Success with no matching record is a
// logged no-op. Failure is terminal with no ledger mutation.
func (e *Engine) CompleteBalanceTransfer(callID, recipient string, result CallResult) error {
	if err := e.requireLedger(); err != nil {
		return err
	}
	e.mu.Lock()
	defer e.mu.Unlock()

	call, err := e.takePending(callID, recipient, callTransfer)
	if err != nil {
		return err
	}
	if result.Status != CallSucceeded {
		return e.failTransfer(recipient, callID, "transfer_balance")
	}

	pos, record, found, err := e.ledger.findUnpaidRecord(func(r *AirdropRecord) bool {
		return r.Recipient == recipient &&
			r.Reward.Class == RewardToken &&
			r.Amount != nil && call.amount != nil &&
			r.Amount.Cmp(call.amount) == 0
	})
	if err != nil {
		return err
	}
	if !found {
		e.metrics.SettlementSkipped(observability.FlowTransfer)
		e.emit(events.RewardSettlementSkipped{Recipient: recipient, Flow: observability.FlowTransfer})
		e.logger.Info("no matching airdrop record", "recipient", recipient, "call", callID)
		return nil
	}

	donor, ok, err := e.ledger.GetDonor(recipient)
	if err != nil {
		return err
	}
	if !ok {
		return ErrDonorNotFound
	}
	record.Paid = true
	if err := e.ledger.ReplaceRecord(pos, record); err != nil {
		return err
	}
	donor.Paid = true
	if err := e.ledger.PutDonor(donor); err != nil {
		return err
	}
	e.metrics.FlowCompleted(observability.FlowTransfer)
	e.emit(events.RewardTransferSettled{Recipient: recipient, Amount: cloneBigInt(call.amount), Position: pos})
	e.logger.Info("settled balance transfer", "recipient", recipient, "position", pos)
	return nil
}

// submitTransfer issues the final transfer call. Caller holds the mutex.
func (e *Engine) submitTransfer(ctx context.Context, recipient string, amount *big.Int) error {
	transferID := uuid.NewString()
	e.pending[recipient] = []pendingCall{{
		id:        transferID,
		kind:      callTransfer,
		recipient: recipient,
		amount:    amount,
	}}
	if err := e.gateway.TransferBalance(ctx, transferID, recipient, amount); err != nil {
		delete(e.pending, recipient)
		return fmt.Errorf("rewards: submit transfer_balance: %w", err)
	}
	return nil
}

// failTransfer records a terminal transfer failure. The ledger is untouched
// and the donor stays payable; the entry point may be re-invoked. Caller
// holds the mutex.
func (e *Engine) failTransfer(recipient, callID, step string) error {
	e.metrics.FlowFailed(observability.FlowTransfer, step)
	e.emit(events.RewardTransferFailed{Recipient: recipient, Step: step, CallID: callID})
	e.logger.Warn("balance transfer failed", "recipient", recipient, "step", step, "call", callID)
	return ErrCallFailed
}

// takePending pops the outstanding call, asserting the continuation resumes
// exactly one matching call. Caller holds the mutex. On violation the pending
// table is left untouched so the mismatch stays observable.
func (e *Engine) takePending(callID, recipient string, kind callKind) (pendingCall, error) {
	calls := e.pending[recipient]
	if len(calls) != 1 || calls[0].id != callID || calls[0].kind != kind {
		e.metrics.ProtocolViolation(kind.String())
		e.logger.Error("unexpected outstanding call",
			"recipient", recipient,
			"call", callID,
			"kind", kind.String(),
			"outstanding", len(calls))
		return pendingCall{}, ErrProtocolViolation
	}
	delete(e.pending, recipient)
	return calls[0], nil
}

// MarkPaid lets the admin reconcile a donor manually when the external
// services are unreachable: the donor and their oldest unpaid record are
// marked paid without running a flow. Rejected if the donor already
// completed a payout.
func (e *Engine) MarkPaid(caller, recipient string) error {
	if err := e.requireAdmin(caller); err != nil {
		return err
	}
	if err := e.requireLedger(); err != nil {
		return err
	}
	e.mu.Lock()
	defer e.mu.Unlock()

	donor, ok, err := e.ledger.GetDonor(recipient)
	if err != nil {
		return err
	}
	if !ok {
		return ErrDonorNotFound
	}
	if donor.Paid {
		return ErrAlreadyPaid
	}

	pos, record, found, err := e.ledger.findUnpaidRecord(func(r *AirdropRecord) bool {
		return r.Recipient == recipient
	})
	if err != nil {
		return err
	}
	if found {
		record.Paid = true
		if err := e.ledger.ReplaceRecord(pos, record); err != nil {
			return err
		}
	}
	donor.Paid = true
	if err := e.ledger.PutDonor(donor); err != nil {
		return err
	}
	e.emit(events.RewardMarkedPaid{Recipient: recipient, Caller: caller, Position: pos, RecordSettled: found})
	e.logger.Info("marked donor paid", "recipient", recipient, "caller", caller)
	return nil
}

// GetDonor returns the donor aggregate, if any.
func (e *Engine) GetDonor(walletID string) (*Donor, bool, error) {
	if err := e.requireLedger(); err != nil {
		return nil, false, err
	}
	return e.ledger.GetDonor(walletID)
}

// ListRecords pages over the record sequence.
func (e *Engine) ListRecords(start, limit uint64) (*PaginatedRecords, error) {
	if err := e.requireLedger(); err != nil {
		return nil, err
	}
	return e.ledger.ListRecords(start, limit)
}

// ListRecordsByContribution pages over records filtered by category.
func (e *Engine) ListRecordsByContribution(class ContributionClass, ref string, start, limit uint64) (*PaginatedRecords, error) {
	if err := e.requireLedger(); err != nil {
		return nil, err
	}
	if !class.Valid() {
		return nil, fmt.Errorf("%w: class %d", ErrInvalidContribution, class)
	}
	return e.ledger.ListRecordsByContribution(class, ref, start, limit)
}

// ListDonors pages over donor aggregates.
func (e *Engine) ListDonors(start, limit uint64) (*PaginatedDonors, error) {
	if err := e.requireLedger(); err != nil {
		return nil, err
	}
	return e.ledger.ListDonors(start, limit)
}

// ListDonorsByContribution pages over donors filtered by category.
func (e *Engine) ListDonorsByContribution(class ContributionClass, ref string, start, limit uint64) (*PaginatedDonors, error) {
	if err := e.requireLedger(); err != nil {
		return nil, err
	}
	if !class.Valid() {
		return nil, fmt.Errorf("%w: class %d", ErrInvalidContribution, class)
	}
	return e.ledger.ListDonorsByContribution(class, ref, start, limit)
}

// ProjectTotalsFor aggregates accrual for a project contribution tag.
func (e *Engine) ProjectTotalsFor(projectID string) (*ProjectTotals, error) {
	if err := e.requireLedger(); err != nil {
		return nil, err
	}
	if !validProjectID(projectID) {
		return nil, fmt.Errorf("%w: malformed project id %q", ErrInvalidContribution, projectID)
	}
	return e.ledger.ProjectTotalsFor(projectID)
}

// TotalDistributed returns the cumulative reward quantity.
func (e *Engine) TotalDistributed() (*big.Int, error) {
	if err := e.requireLedger(); err != nil {
		return nil, err
	}
	return e.ledger.TotalDistributed()
}

// DonorCount returns the number of distinct donors.
func (e *Engine) DonorCount() (uint64, error) {
	if err := e.requireLedger(); err != nil {
		return 0, err
	}
	return e.ledger.DonorCount()
}

// RecordCount returns the length of the record sequence.
func (e *Engine) RecordCount() (uint64, error) {
	if err := e.requireLedger(); err != nil {
		return 0, err
	}
	return e.ledger.RecordCount()
}
