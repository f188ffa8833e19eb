package settlement

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/platfe/economy/internal/ledger"
	"github.com/platfe/economy/internal/models"
	"github.com/platfe/economy/internal/storage"
	"github.com/platfe/economy/internal/storage/sqlite"
)

type testEnv struct {
	store    storage.Store
	accounts *ledger.Accounts
	engine   *Engine

	coin  *models.Currency
	owner *models.User
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	tempDir, err := os.MkdirTemp("", "economy-test-*")
	if err != nil {
		t.Fatalf("Failed to create temp dir: %v", err)
	}
	t.Cleanup(func() { os.RemoveAll(tempDir) })

	store, err := sqlite.New(filepath.Join(tempDir, "test.db"))
	if err != nil {
		t.Fatalf("Failed to create store: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	ctx := context.Background()
	env := &testEnv{
		store:    store,
		accounts: ledger.NewAccounts(store),
	}
	env.engine = NewEngine(store, env.accounts)

	env.coin = &models.Currency{Name: "Gold", ShortCode: "G"}
	if err := store.CreateCurrency(ctx, env.coin); err != nil {
		t.Fatalf("Failed to create currency: %v", err)
	}
	env.owner = &models.User{Name: "landlord"}
	if err := store.CreateUser(ctx, env.owner); err != nil {
		t.Fatalf("Failed to create user: %v", err)
	}

	return env
}

func (env *testEnv) account(t *testing.T, name string, balance int64) *models.Account {
	t.Helper()
	acc := &models.Account{Name: name, CurrencyID: env.coin.ID, Balance: balance}
	if err := env.store.CreateAccount(context.Background(), acc, env.owner.ID); err != nil {
		t.Fatalf("Failed to create account %q: %v", name, err)
	}
	return acc
}

// duty seeds a duty contract directly so tests can place the last settled
// boundary in the past.
func (env *testEnv) duty(t *testing.T, payerID, ownerID string, period time.Duration, tax, overdue int64) *models.DutyContract {
	t.Helper()
	duty := &models.DutyContract{
		PayerAccountID: payerID,
		OwnerAccountID: ownerID,
		Period:         period,
		TaxAmount:      tax,
		LastSettlement: time.Now().Unix() - overdue*int64(period/time.Second) - 1,
	}
	if err := env.store.CreateDuty(context.Background(), duty); err != nil {
		t.Fatalf("Failed to create duty: %v", err)
	}
	return duty
}

func (env *testEnv) balance(t *testing.T, accountID string) int64 {
	t.Helper()
	acc, err := env.store.GetAccountAny(context.Background(), accountID)
	if err != nil || acc == nil {
		t.Fatalf("Failed to load account %s: %v", accountID, err)
	}
	return acc.Balance
}

func TestEngine_CheckDuty(t *testing.T) {
	t.Run("Catches up every affordable period", func(t *testing.T) {
		env := newTestEnv(t)
		ctx := context.Background()

		payer := env.account(t, "tenant", 100)
		owner := env.account(t, "lord", 0)
		duty := env.duty(t, payer.ID, owner.ID, time.Hour, 10, 3)
		t0 := duty.LastSettlement

		res, err := env.engine.CheckDuty(ctx, duty.ID)
		if err != nil {
			t.Fatalf("CheckDuty failed: %v", err)
		}
		if res.State != StateCurrent || res.PeriodsSettled != 3 {
			t.Errorf("Expected current with 3 periods, got %+v", res)
		}

		if got := env.balance(t, payer.ID); got != 70 {
			t.Errorf("Payer balance: expected 70, got %d", got)
		}
		if got := env.balance(t, owner.ID); got != 30 {
			t.Errorf("Owner balance: expected 30, got %d", got)
		}

		fresh, _ := env.store.GetDuty(ctx, duty.ID)
		if fresh.LastSettlement != t0+3*3600 {
			t.Errorf("LastSettlement: expected %d, got %d", t0+3*3600, fresh.LastSettlement)
		}
		if fresh.Blocked {
			t.Error("Affordable duty must not be blocked")
		}

		// One system transfer per period, none attributed to a user.
		records, err := env.store.ListTransfersForRollback(ctx, storage.RollbackFilter{SourceAccountID: payer.ID})
		if err != nil {
			t.Fatalf("ListTransfersForRollback failed: %v", err)
		}
		if len(records) != 3 {
			t.Fatalf("Expected 3 transfers, got %d", len(records))
		}
		for _, rec := range records {
			if rec.ActorUserID != "" || rec.Amount != 10 {
				t.Errorf("Unexpected settlement record: %+v", rec)
			}
		}
	})

	t.Run("Settles what it can then blocks", func(t *testing.T) {
		env := newTestEnv(t)
		ctx := context.Background()

		payer := env.account(t, "tenant", 15)
		owner := env.account(t, "lord", 0)
		duty := env.duty(t, payer.ID, owner.ID, time.Hour, 10, 3)

		res, err := env.engine.CheckDuty(ctx, duty.ID)
		if err != nil {
			t.Fatalf("CheckDuty failed: %v", err)
		}
		if res.State != StateBlocked || res.PeriodsSettled != 1 {
			t.Errorf("Expected blocked after 1 period, got %+v", res)
		}

		if got := env.balance(t, payer.ID); got != 5 {
			t.Errorf("Payer balance: expected 5, got %d", got)
		}
		if got := env.balance(t, owner.ID); got != 10 {
			t.Errorf("Owner balance: expected 10, got %d", got)
		}

		fresh, _ := env.store.GetDuty(ctx, duty.ID)
		if !fresh.Blocked {
			t.Error("Expected duty to be blocked")
		}
	})

	t.Run("Exact balance for all periods stays current", func(t *testing.T) {
		env := newTestEnv(t)
		ctx := context.Background()

		payer := env.account(t, "tenant", 30)
		owner := env.account(t, "lord", 0)
		duty := env.duty(t, payer.ID, owner.ID, time.Hour, 10, 3)

		res, err := env.engine.CheckDuty(ctx, duty.ID)
		if err != nil {
			t.Fatalf("CheckDuty failed: %v", err)
		}
		if res.State != StateCurrent || res.PeriodsSettled != 3 {
			t.Errorf("Expected current with 3 periods, got %+v", res)
		}
		if got := env.balance(t, payer.ID); got != 0 {
			t.Errorf("Payer balance: expected 0, got %d", got)
		}
	})

	t.Run("Zero tax advances periods without transfers", func(t *testing.T) {
		env := newTestEnv(t)
		ctx := context.Background()

		payer := env.account(t, "tenant", 0)
		owner := env.account(t, "lord", 0)
		duty := env.duty(t, payer.ID, owner.ID, time.Hour, 0, 2)
		t0 := duty.LastSettlement

		res, err := env.engine.CheckDuty(ctx, duty.ID)
		if err != nil {
			t.Fatalf("CheckDuty failed: %v", err)
		}
		if res.State != StateCurrent || res.PeriodsSettled != 2 {
			t.Errorf("Expected current with 2 periods, got %+v", res)
		}

		fresh, _ := env.store.GetDuty(ctx, duty.ID)
		if fresh.LastSettlement != t0+2*3600 {
			t.Errorf("LastSettlement: expected %d, got %d", t0+2*3600, fresh.LastSettlement)
		}

		records, _ := env.store.ListTransfersForRollback(ctx, storage.RollbackFilter{SourceAccountID: payer.ID})
		if len(records) != 0 {
			t.Errorf("Zero tax must not move funds, got %d transfers", len(records))
		}
	})

	t.Run("No payer owes nothing", func(t *testing.T) {
		env := newTestEnv(t)
		ctx := context.Background()

		owner := env.account(t, "lord", 0)
		duty := env.duty(t, "", owner.ID, time.Hour, 10, 3)

		res, err := env.engine.CheckDuty(ctx, duty.ID)
		if err != nil {
			t.Fatalf("CheckDuty failed: %v", err)
		}
		if res.State != StateCurrent || res.PeriodsSettled != 0 {
			t.Errorf("Expected trivially current, got %+v", res)
		}
	})

	t.Run("Unresolvable payer disables the duty", func(t *testing.T) {
		env := newTestEnv(t)
		ctx := context.Background()

		payer := env.account(t, "tenant", 100)
		owner := env.account(t, "lord", 0)
		duty := env.duty(t, payer.ID, owner.ID, time.Hour, 10, 3)

		if err := env.store.DisableAccount(ctx, payer.ID); err != nil {
			t.Fatalf("DisableAccount failed: %v", err)
		}

		res, err := env.engine.CheckDuty(ctx, duty.ID)
		if err != nil {
			t.Fatalf("CheckDuty failed: %v", err)
		}
		if res.State != StateDisabled {
			t.Errorf("Expected disabled, got %+v", res)
		}

		fresh, _ := env.store.GetDuty(ctx, duty.ID)
		if !fresh.Disabled {
			t.Error("Expected duty row to be disabled")
		}
		if got := env.balance(t, payer.ID); got != 100 {
			t.Errorf("No funds should move, payer balance %d", got)
		}
	})
}

func TestEngine_CheckBox(t *testing.T) {
	t.Run("Insolvent box blocks without transfer", func(t *testing.T) {
		env := newTestEnv(t)
		ctx := context.Background()

		payer := env.account(t, "renter", 5)
		owner := env.account(t, "mall", 0)

		period := 24 * time.Hour
		box := &models.SharedBox{
			World:          "overworld",
			X:              1, Y: 2, Z: 3,
			PayerAccountID: payer.ID,
			OwnerAccountID: owner.ID,
			Period:         period,
			TaxAmount:      10,
			ItemID:         "minecraft:stone",
			LastSettlement: time.Now().Unix() - int64(period/time.Second) - 1,
		}
		if err := env.store.CreateBox(ctx, box); err != nil {
			t.Fatalf("CreateBox failed: %v", err)
		}

		res, err := env.engine.CheckBox(ctx, box.ID)
		if err != nil {
			t.Fatalf("CheckBox failed: %v", err)
		}
		if res.State != StateBlocked || res.PeriodsSettled != 0 {
			t.Errorf("Expected blocked with no periods, got %+v", res)
		}

		fresh, _ := env.store.GetBox(ctx, box.ID)
		if !fresh.Blocked {
			t.Error("Expected box to be blocked")
		}
		if got := env.balance(t, payer.ID); got != 5 {
			t.Errorf("Payer balance: expected 5, got %d", got)
		}
		if got := env.balance(t, owner.ID); got != 0 {
			t.Errorf("Owner balance: expected 0, got %d", got)
		}
	})

	t.Run("Blocked box short-circuits", func(t *testing.T) {
		env := newTestEnv(t)
		ctx := context.Background()

		payer := env.account(t, "renter", 100)
		owner := env.account(t, "mall", 0)

		box := &models.SharedBox{
			World:          "overworld",
			X:              4, Y: 5, Z: 6,
			PayerAccountID: payer.ID,
			OwnerAccountID: owner.ID,
			Period:         time.Hour,
			TaxAmount:      10,
			ItemID:         "minecraft:stone",
			LastSettlement: time.Now().Unix() - 7200,
		}
		if err := env.store.CreateBox(ctx, box); err != nil {
			t.Fatalf("CreateBox failed: %v", err)
		}
		if err := env.store.BlockBox(ctx, box.ID); err != nil {
			t.Fatalf("BlockBox failed: %v", err)
		}

		res, err := env.engine.CheckBox(ctx, box.ID)
		if err != nil {
			t.Fatalf("CheckBox failed: %v", err)
		}
		if res.State != StateBlocked || res.PeriodsSettled != 0 {
			t.Errorf("Blocked box must not settle, got %+v", res)
		}
		if got := env.balance(t, payer.ID); got != 100 {
			t.Errorf("Payer balance: expected 100, got %d", got)
		}
	})
}

func TestEngine_CheckAll(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	// One affordable overdue duty, one insolvent duty, one current duty.
	richPayer := env.account(t, "rich", 100)
	poorPayer := env.account(t, "poor", 3)
	idlePayer := env.account(t, "idle", 50)
	owner := env.account(t, "lord", 0)

	env.duty(t, richPayer.ID, owner.ID, time.Hour, 10, 2)
	env.duty(t, poorPayer.ID, owner.ID, time.Hour, 10, 1)
	env.duty(t, idlePayer.ID, owner.ID, 24*time.Hour, 10, 0)

	report, err := env.engine.CheckAll(ctx)
	if err != nil {
		t.Fatalf("CheckAll failed: %v", err)
	}

	if report.Checked != 3 {
		t.Errorf("Checked: expected 3, got %d", report.Checked)
	}
	if report.PeriodsSettled != 2 {
		t.Errorf("PeriodsSettled: expected 2, got %d", report.PeriodsSettled)
	}
	if report.Blocked != 1 {
		t.Errorf("Blocked: expected 1, got %d", report.Blocked)
	}
	if report.Failed != 0 {
		t.Errorf("Failed: expected 0, got %d", report.Failed)
	}

	if got := env.balance(t, richPayer.ID); got != 80 {
		t.Errorf("Rich payer balance: expected 80, got %d", got)
	}
	if got := env.balance(t, poorPayer.ID); got != 3 {
		t.Errorf("Poor payer balance: expected 3, got %d", got)
	}
	if got := env.balance(t, idlePayer.ID); got != 50 {
		t.Errorf("Idle payer balance: expected 50, got %d", got)
	}
	if got := env.balance(t, owner.ID); got != 20 {
		t.Errorf("Owner balance: expected 20, got %d", got)
	}

	// The blocked duty drops out of the next pass.
	duties, err := env.store.ListActiveDuties(ctx)
	if err != nil {
		t.Fatalf("ListActiveDuties failed: %v", err)
	}
	if len(duties) != 2 {
		t.Errorf("Expected 2 active duties after pass, got %d", len(duties))
	}
}

func TestEngine_CreateDuty(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	owner := env.account(t, "lord", 0)
	payer := env.account(t, "tenant", 0)

	t.Run("Valid duty starts current", func(t *testing.T) {
		duty, err := env.engine.CreateDuty(ctx, owner.ID, time.Hour, 10)
		if err != nil {
			t.Fatalf("CreateDuty failed: %v", err)
		}
		if duty.LastSettlement == 0 {
			t.Error("Expected LastSettlement to be initialized")
		}

		if err := env.engine.SetPayer(ctx, duty.ID, payer.ID); err != nil {
			t.Fatalf("SetPayer failed: %v", err)
		}

		res, err := env.engine.CheckDuty(ctx, duty.ID)
		if err != nil {
			t.Fatalf("CheckDuty failed: %v", err)
		}
		if res.State != StateCurrent || res.PeriodsSettled != 0 {
			t.Errorf("Fresh duty should be current, got %+v", res)
		}
	})

	t.Run("Non-positive period rejected", func(t *testing.T) {
		if _, err := env.engine.CreateDuty(ctx, owner.ID, 0, 10); err == nil {
			t.Error("Expected zero period to be rejected")
		}
	})

	t.Run("Negative tax rejected", func(t *testing.T) {
		if _, err := env.engine.CreateDuty(ctx, owner.ID, time.Hour, -1); err == nil {
			t.Error("Expected negative tax to be rejected")
		}
	})

	t.Run("Missing owner rejected", func(t *testing.T) {
		if _, err := env.engine.CreateDuty(ctx, "no-such-account", time.Hour, 10); err == nil {
			t.Error("Expected missing owner to be rejected")
		}
	})

	t.Run("SetPayer requires existing account", func(t *testing.T) {
		duty, err := env.engine.CreateDuty(ctx, owner.ID, time.Hour, 10)
		if err != nil {
			t.Fatalf("CreateDuty failed: %v", err)
		}
		if err := env.engine.SetPayer(ctx, duty.ID, "no-such-account"); err == nil {
			t.Error("Expected unknown payer to be rejected")
		}
	})
}
