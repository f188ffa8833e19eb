// Package settlement implements the duty settlement engine: the catch-up
// algorithm that charges every elapsed billing period of a duty contract or
// shared box, and the periodic pass over all active entities.
package settlement

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/platfe/economy/internal/ledger"
	"github.com/platfe/economy/internal/metrics"
	"github.com/platfe/economy/internal/models"
	"github.com/platfe/economy/internal/storage"
)

// checkWorkers bounds the per-entity fan-out of one settlement pass.
const checkWorkers = 8

// State is the settlement state of a duty or box after a check.
type State string

const (
	// StateCurrent means the entity owes nothing right now (or has no
	// payer assigned).
	StateCurrent State = "current"

	// StateBlocked means the payer could not cover the most recently due
	// period; the entity no longer participates in settlement passes.
	StateBlocked State = "blocked"

	// StateDisabled means the payer or owner account could not be
	// resolved and the entity was retired.
	StateDisabled State = "disabled"
)

// Result describes the outcome of checking one entity.
type Result struct {
	State State

	// PeriodsSettled is how many full billing periods this check charged.
	PeriodsSettled int
}

// PassReport summarizes one CheckAll pass.
type PassReport struct {
	Checked        int
	PeriodsSettled int
	Blocked        int
	Disabled       int
	Failed         int
}

// Engine runs the settlement algorithm. Both variants — standalone duty
// contracts and shared boxes with embedded duty fields — share the same
// catch-up loop; only the persistence callbacks differ.
type Engine struct {
	store    storage.Store
	accounts *ledger.Accounts
}

// NewEngine creates a settlement engine over the given storage backend.
func NewEngine(store storage.Store, accounts *ledger.Accounts) *Engine {
	return &Engine{store: store, accounts: accounts}
}

// CreateDuty registers a standing obligation owed to an owner account.
// The payer is assigned later with SetPayer; until then the contract is
// trivially current.
func (e *Engine) CreateDuty(ctx context.Context, ownerAccountID string, period time.Duration, taxAmount int64) (*models.DutyContract, error) {
	if period <= 0 {
		return nil, fmt.Errorf("create duty: period must be positive")
	}
	if taxAmount < 0 {
		return nil, fmt.Errorf("create duty: tax amount must not be negative")
	}

	owner, err := e.store.GetAccount(ctx, ownerAccountID)
	if err != nil {
		return nil, err
	}
	if owner == nil {
		return nil, fmt.Errorf("create duty: owner account not found")
	}

	duty := &models.DutyContract{
		OwnerAccountID: ownerAccountID,
		Period:         period,
		TaxAmount:      taxAmount,
	}
	if err := e.store.CreateDuty(ctx, duty); err != nil {
		return nil, fmt.Errorf("create duty: %w", err)
	}

	slog.Info("duty created", "duty_id", duty.ID, "owner", ownerAccountID,
		"period", period, "tax", taxAmount)
	return duty, nil
}

// SetPayer assigns the paying account of a duty contract.
func (e *Engine) SetPayer(ctx context.Context, dutyID, payerAccountID string) error {
	payer, err := e.store.GetAccount(ctx, payerAccountID)
	if err != nil {
		return err
	}
	if payer == nil {
		return fmt.Errorf("set payer: account not found: %s", payerAccountID)
	}

	return e.store.SetDutyPayer(ctx, dutyID, payerAccountID)
}

// GetDuty retrieves a duty contract by ID.
func (e *Engine) GetDuty(ctx context.Context, id string) (*models.DutyContract, error) {
	return e.store.GetDuty(ctx, id)
}

// CheckDuty runs the catch-up algorithm on one duty contract.
func (e *Engine) CheckDuty(ctx context.Context, id string) (Result, error) {
	duty, err := e.store.GetDuty(ctx, id)
	if err != nil {
		return Result{}, err
	}
	if duty == nil {
		return Result{}, fmt.Errorf("duty not found: %s", id)
	}
	if duty.Disabled {
		return Result{State: StateDisabled}, nil
	}
	if duty.Blocked {
		return Result{State: StateBlocked}, nil
	}

	return e.settle(ctx, obligation{
		kind:    "duty",
		id:      duty.ID,
		payerID: duty.PayerAccountID,
		ownerID: duty.OwnerAccountID,
		last:    duty.LastSettlement,
		period:  duty.Period,
		tax:     duty.TaxAmount,
		advance: func(ctx context.Context, last int64) error { return e.store.AdvanceDutySettlement(ctx, duty.ID, last) },
		block:   func(ctx context.Context) error { return e.store.BlockDuty(ctx, duty.ID) },
		disable: func(ctx context.Context) error { return e.store.DisableDuty(ctx, duty.ID) },
	})
}

// CheckBox runs the catch-up algorithm on one shared box.
func (e *Engine) CheckBox(ctx context.Context, id string) (Result, error) {
	box, err := e.store.GetBox(ctx, id)
	if err != nil {
		return Result{}, err
	}
	if box == nil {
		return Result{}, fmt.Errorf("box not found: %s", id)
	}
	if box.Disabled {
		return Result{State: StateDisabled}, nil
	}
	if box.Blocked {
		return Result{State: StateBlocked}, nil
	}

	return e.settle(ctx, obligation{
		kind:    "box",
		id:      box.ID,
		payerID: box.PayerAccountID,
		ownerID: box.OwnerAccountID,
		last:    box.LastSettlement,
		period:  box.Period,
		tax:     box.TaxAmount,
		advance: func(ctx context.Context, last int64) error { return e.store.AdvanceBoxSettlement(ctx, box.ID, last) },
		block:   func(ctx context.Context) error { return e.store.BlockBox(ctx, box.ID) },
		disable: func(ctx context.Context) error { return e.store.DisableBox(ctx, box.ID) },
	})
}

// CheckAll runs one settlement pass: every non-blocked, non-disabled box and
// duty contract is checked concurrently, failures isolated per entity, and
// the pass completes only when every check has finished.
func (e *Engine) CheckAll(ctx context.Context) (PassReport, error) {
	start := time.Now()

	boxes, err := e.store.ListBoxesNotBlocked(ctx)
	if err != nil {
		return PassReport{}, err
	}
	duties, err := e.store.ListActiveDuties(ctx)
	if err != nil {
		return PassReport{}, err
	}

	var mu sync.Mutex
	report := PassReport{Checked: len(boxes) + len(duties)}

	record := func(res Result, err error) {
		mu.Lock()
		defer mu.Unlock()
		if err != nil {
			report.Failed++
			return
		}
		report.PeriodsSettled += res.PeriodsSettled
		switch res.State {
		case StateBlocked:
			report.Blocked++
		case StateDisabled:
			report.Disabled++
		}
	}

	g := new(errgroup.Group)
	g.SetLimit(checkWorkers)
	for _, box := range boxes {
		g.Go(func() error {
			res, err := e.CheckBox(ctx, box.ID)
			if err != nil {
				slog.Error("box check failed", "box_id", box.ID, "error", err)
			}
			record(res, err)
			return nil
		})
	}
	for _, duty := range duties {
		g.Go(func() error {
			res, err := e.CheckDuty(ctx, duty.ID)
			if err != nil {
				slog.Error("duty check failed", "duty_id", duty.ID, "error", err)
			}
			record(res, err)
			return nil
		})
	}
	g.Wait()

	metrics.SettlementPass(time.Since(start))
	slog.Info("settlement pass complete",
		"checked", report.Checked,
		"periods_settled", report.PeriodsSettled,
		"blocked", report.Blocked,
		"disabled", report.Disabled,
		"failed", report.Failed,
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return report, nil
}

// obligation is the common shape of a duty contract and a box's embedded
// duty fields.
type obligation struct {
	kind    string
	id      string
	payerID string
	ownerID string
	last    int64
	period  time.Duration
	tax     int64
	advance func(ctx context.Context, last int64) error
	block   func(ctx context.Context) error
	disable func(ctx context.Context) error
}

// settle catches up every fully elapsed, affordable billing period in order,
// one tax amount per period, never partially. An entity whose payer can
// afford some but not all owed periods settles as many as it can before
// blocking.
func (e *Engine) settle(ctx context.Context, ob obligation) (Result, error) {
	// No payer assigned: nothing owed.
	if ob.payerID == "" {
		return Result{State: StateCurrent}, nil
	}

	payer, err := e.store.GetAccount(ctx, ob.payerID)
	if err != nil {
		return Result{}, err
	}
	owner, err := e.store.GetAccount(ctx, ob.ownerID)
	if err != nil {
		return Result{}, err
	}
	if payer == nil || owner == nil {
		if err := ob.disable(ctx); err != nil {
			return Result{}, fmt.Errorf("disable %s %s: %w", ob.kind, ob.id, err)
		}
		slog.Warn("obligation disabled, account unresolvable",
			"kind", ob.kind, "id", ob.id, "payer", ob.payerID, "owner", ob.ownerID)
		return Result{State: StateDisabled}, nil
	}

	periodSec := int64(ob.period / time.Second)
	if periodSec <= 0 {
		return Result{State: StateCurrent}, nil
	}

	now := time.Now().Unix()
	last := ob.last
	balance := payer.Balance
	settled := 0

	for balance-ob.tax >= 0 && last+periodSec < now {
		if ob.tax > 0 {
			if _, err := e.accounts.SystemTransfer(ctx, payer.ID, owner.ID, ob.tax); err != nil {
				return Result{}, fmt.Errorf("settle %s %s: %w", ob.kind, ob.id, err)
			}
			balance -= ob.tax
		}
		last += periodSec
		if err := ob.advance(ctx, last); err != nil {
			return Result{}, fmt.Errorf("advance %s %s: %w", ob.kind, ob.id, err)
		}
		settled++
	}

	if settled > 0 {
		metrics.PeriodsSettled(settled)
	}

	// Still overdue and the next period is unaffordable: block.
	if balance-ob.tax < 0 && last+periodSec < now {
		if err := ob.block(ctx); err != nil {
			return Result{}, fmt.Errorf("block %s %s: %w", ob.kind, ob.id, err)
		}
		metrics.EntityBlocked(ob.kind)
		slog.Warn("obligation blocked, payer insolvent",
			"kind", ob.kind, "id", ob.id, "payer", ob.payerID, "periods_settled", settled)
		return Result{State: StateBlocked, PeriodsSettled: settled}, nil
	}

	return Result{State: StateCurrent, PeriodsSettled: settled}, nil
}
