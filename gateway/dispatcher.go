// Package gateway adapts the external service SDK clients to the reward
// engine's submit-then-resume contract: submissions return immediately and a
// worker goroutine later re-enters the engine through the continuation
// matching the call.
package gateway

import (
	"context"
	"errors"
	"log/slog"
	"math/big"
	"sync"
	"time"

	"donorpay/native/rewards"
	"donorpay/observability"
)

// Minter is the slice of the collectible service the dispatcher needs.
type Minter interface {
	Mint(ctx context.Context, recipient, channelID string, deposit *big.Int) (string, error)
}

// BalanceAPI is the slice of the fungible-balance service the dispatcher
// needs.
type BalanceAPI interface {
	CheckRegistration(ctx context.Context, recipient string) (bool, error)
	Register(ctx context.Context, recipient string, deposit *big.Int) error
	Transfer(ctx context.Context, recipient string, amount *big.Int) error
}

// Resolver is the continuation surface of the reward engine. Each submitted
// call resumes through exactly one of these with the typed outcome.
type Resolver interface {
	CompleteItemIssuance(callID, recipient string, result rewards.ItemIssuanceResult) error
	CompleteRegistrationCheck(ctx context.Context, callID, recipient string, result rewards.RegistrationCheckResult) error
	CompleteRegistration(ctx context.Context, callID, recipient string, result rewards.CallResult) error
	CompleteBalanceTransfer(callID, recipient string, result rewards.CallResult) error
}

var errNilResolver = errors.New("gateway: resolver not configured")

// Dispatcher implements rewards.Gateway over the SDK clients.
type Dispatcher struct {
	minter   Minter
	balance  BalanceAPI
	resolver Resolver
	metrics  *observability.GatewayMetrics
	logger   *slog.Logger
	timeout  time.Duration

	wg sync.WaitGroup
}

// Config bundles the dispatcher dependencies.
type Config struct {
	Minter  Minter
	Balance BalanceAPI
	Logger  *slog.Logger
	// Timeout bounds each outbound call. Zero means 30s.
	Timeout time.Duration
}

// NewDispatcher constructs a dispatcher. The resolver is wired separately via
// SetResolver because the engine and dispatcher reference each other.
func NewDispatcher(cfg Config) *Dispatcher {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Dispatcher{
		minter:  cfg.Minter,
		balance: cfg.Balance,
		metrics: observability.Gateway(),
		logger:  logger,
		timeout: timeout,
	}
}

// SetResolver wires the engine continuations.
func (d *Dispatcher) SetResolver(resolver Resolver) { d.resolver = resolver }

// Wait blocks until every in-flight call has resolved. Used on shutdown.
func (d *Dispatcher) Wait() { d.wg.Wait() }

// IssueItem implements rewards.Gateway.
func (d *Dispatcher) IssueItem(ctx context.Context, callID, recipient, channelID string, deposit *big.Int) error {
	if d.resolver == nil {
		return errNilResolver
	}
	d.spawn(func() {
		start := time.Now()
		callCtx, cancel := context.WithTimeout(context.Background(), d.timeout)
		defer cancel()
		itemID, err := d.minter.Mint(callCtx, recipient, channelID, deposit)
		result := rewards.ItemIssuanceResult{Status: rewards.CallSucceeded, ItemID: itemID}
		if err != nil {
			result = rewards.ItemIssuanceResult{Status: rewards.CallFailed}
			d.logger.Warn("issue_item call failed", "recipient", recipient, "call", callID, "err", err)
		}
		d.observe("issue_item", err, start)
		d.resume(callID, "issue_item", d.resolver.CompleteItemIssuance(callID, recipient, result))
	})
	return nil
}

// CheckRegistration implements rewards.Gateway.
func (d *Dispatcher) CheckRegistration(ctx context.Context, callID, recipient string) error {
	if d.resolver == nil {
		return errNilResolver
	}
	d.spawn(func() {
		start := time.Now()
		callCtx, cancel := context.WithTimeout(context.Background(), d.timeout)
		defer cancel()
		registered, err := d.balance.CheckRegistration(callCtx, recipient)
		result := rewards.RegistrationCheckResult{Status: rewards.CallSucceeded, Registered: registered}
		if err != nil {
			result = rewards.RegistrationCheckResult{Status: rewards.CallFailed}
			d.logger.Warn("check_registration call failed", "recipient", recipient, "call", callID, "err", err)
		}
		d.observe("check_registration", err, start)
		d.resume(callID, "check_registration",
			d.resolver.CompleteRegistrationCheck(context.Background(), callID, recipient, result))
	})
	return nil
}

// Register implements rewards.Gateway.
func (d *Dispatcher) Register(ctx context.Context, callID, recipient string, deposit *big.Int) error {
	if d.resolver == nil {
		return errNilResolver
	}
	d.spawn(func() {
		start := time.Now()
		callCtx, cancel := context.WithTimeout(context.Background(), d.timeout)
		defer cancel()
		err := d.balance.Register(callCtx, recipient, deposit)
		result := rewards.CallResult{Status: rewards.CallSucceeded}
		if err != nil {
			result = rewards.CallResult{Status: rewards.CallFailed}
			d.logger.Warn("register call failed", "recipient", recipient, "call", callID, "err", err)
		}
		d.observe("register", err, start)
		d.resume(callID, "register",
			d.resolver.CompleteRegistration(context.Background(), callID, recipient, result))
	})
	return nil
}

// TransferBalance implements rewards.Gateway.
func (d *Dispatcher) TransferBalance(ctx context.Context, callID, recipient string, amount *big.Int) error {
	if d.resolver == nil {
		return errNilResolver
	}
	d.spawn(func() {
		start := time.Now()
		callCtx, cancel := context.WithTimeout(context.Background(), d.timeout)
		defer cancel()
		err := d.balance.Transfer(callCtx, recipient, amount)
		result := rewards.CallResult{Status: rewards.CallSucceeded}
		if err != nil {
			result = rewards.CallResult{Status: rewards.CallFailed}
			d.logger.Warn("transfer_balance call failed", "recipient", recipient, "call", callID, "err", err)
		}
		d.observe("transfer_balance", err, start)
		d.resume(callID, "transfer_balance",
			d.resolver.CompleteBalanceTransfer(callID, recipient, result))
	})
	return nil
}

func (d *Dispatcher) spawn(fn func()) {
	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		fn()
	}()
}

func (d *Dispatcher) observe(call string, err error, start time.Time) {
	outcome := "success"
	if err != nil {
		outcome = "failure"
	}
	d.metrics.ObserveCall(call, outcome, time.Since(start))
}

// resume logs continuation errors. A terminal flow failure is expected here;
// anything else indicates a bug worth surfacing loudly.
func (d *Dispatcher) resume(callID, call string, err error) {
	if err == nil {
		return
	}
	if errors.Is(err, rewards.ErrCallFailed) || errors.Is(err, rewards.ErrInsufficientDeposit) {
		d.logger.Info("flow terminated", "call", call, "id", callID, "reason", err)
		return
	}
	d.logger.Error("continuation failed", "call", call, "id", callID, "err", err)
}
