package sqlite

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/platfe/economy/internal/models"
	"github.com/platfe/economy/internal/storage"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()

	tempDir, err := os.MkdirTemp("", "economy-test-*")
	if err != nil {
		t.Fatalf("Failed to create temp dir: %v", err)
	}
	t.Cleanup(func() { os.RemoveAll(tempDir) })

	store, err := New(filepath.Join(tempDir, "test.db"))
	if err != nil {
		t.Fatalf("Failed to create store: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	return store
}

func seedAccount(t *testing.T, store *SQLiteStore, ctx context.Context, name string, balance int64) (*models.User, *models.Account) {
	t.Helper()

	user := &models.User{Name: "owner-of-" + name}
	if err := store.CreateUser(ctx, user); err != nil {
		t.Fatalf("CreateUser failed: %v", err)
	}

	cur := &models.Currency{Name: "currency-of-" + name, ShortCode: "C"}
	if err := store.CreateCurrency(ctx, cur); err != nil {
		t.Fatalf("CreateCurrency failed: %v", err)
	}

	acc := &models.Account{Name: name, CurrencyID: cur.ID, Balance: balance}
	if err := store.CreateAccount(ctx, acc, user.ID); err != nil {
		t.Fatalf("CreateAccount failed: %v", err)
	}

	return user, acc
}

func TestSQLiteStore_Accounts(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	t.Run("CreateAccount generates ID and links owner", func(t *testing.T) {
		user, acc := seedAccount(t, store, ctx, "vault", 100)

		if acc.ID == "" {
			t.Error("Expected account ID to be generated")
		}
		if acc.CreatedAt == 0 {
			t.Error("Expected CreatedAt to be set")
		}

		owners, err := store.ListAccountOwners(ctx, acc.ID)
		if err != nil {
			t.Fatalf("ListAccountOwners failed: %v", err)
		}
		if len(owners) != 1 || owners[0].ID != user.ID {
			t.Errorf("Expected single owner %s, got %v", user.ID, owners)
		}
	})

	t.Run("CreateAccount rejects duplicate name", func(t *testing.T) {
		user, acc := seedAccount(t, store, ctx, "treasury", 0)

		dup := &models.Account{Name: acc.Name, CurrencyID: acc.CurrencyID}
		err := store.CreateAccount(ctx, dup, user.ID)
		if !errors.Is(err, storage.ErrNameTaken) {
			t.Errorf("Expected ErrNameTaken, got %v", err)
		}
	})

	t.Run("CreateAccount rolls back when owner link fails", func(t *testing.T) {
		_, acc := seedAccount(t, store, ctx, "orphan-base", 0)

		// A nonexistent owner violates the bridge's foreign key, which
		// must roll back the account insert too.
		orphan := &models.Account{Name: "orphan", CurrencyID: acc.CurrencyID}
		err := store.CreateAccount(ctx, orphan, "no-such-user")
		if !errors.Is(err, storage.ErrOwnerLink) {
			t.Fatalf("Expected ErrOwnerLink, got %v", err)
		}

		got, err := store.GetAccountByName(ctx, "orphan")
		if err != nil {
			t.Fatalf("GetAccountByName failed: %v", err)
		}
		if got != nil {
			t.Error("Expected account insert to be rolled back")
		}
	})

	t.Run("Disabled accounts hidden from normal lookups", func(t *testing.T) {
		_, acc := seedAccount(t, store, ctx, "ghost", 42)

		if err := store.DisableAccount(ctx, acc.ID); err != nil {
			t.Fatalf("DisableAccount failed: %v", err)
		}

		got, _ := store.GetAccount(ctx, acc.ID)
		if got != nil {
			t.Error("GetAccount should exclude disabled accounts")
		}

		forced, err := store.GetAccountAny(ctx, acc.ID)
		if err != nil {
			t.Fatalf("GetAccountAny failed: %v", err)
		}
		if forced == nil || forced.Balance != 42 {
			t.Errorf("GetAccountAny should include disabled accounts, got %v", forced)
		}
	})

	t.Run("MoveFunds debits and credits atomically", func(t *testing.T) {
		_, src := seedAccount(t, store, ctx, "move-src", 100)
		_, dst := seedAccount(t, store, ctx, "move-dst", 10)

		if err := store.MoveFunds(ctx, src.ID, dst.ID, 30); err != nil {
			t.Fatalf("MoveFunds failed: %v", err)
		}

		gotSrc, _ := store.GetAccount(ctx, src.ID)
		gotDst, _ := store.GetAccount(ctx, dst.ID)
		if gotSrc.Balance != 70 {
			t.Errorf("Source balance: expected 70, got %d", gotSrc.Balance)
		}
		if gotDst.Balance != 40 {
			t.Errorf("Dest balance: expected 40, got %d", gotDst.Balance)
		}
	})

	t.Run("MoveFunds fails on missing destination without debiting", func(t *testing.T) {
		_, src := seedAccount(t, store, ctx, "move-lonely", 100)

		if err := store.MoveFunds(ctx, src.ID, "no-such-account", 30); err == nil {
			t.Fatal("Expected error for missing destination")
		}

		gotSrc, _ := store.GetAccount(ctx, src.ID)
		if gotSrc.Balance != 100 {
			t.Errorf("Debit should be rolled back, balance %d", gotSrc.Balance)
		}
	})
}

func TestSQLiteStore_Transfers(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	_, src := seedAccount(t, store, ctx, "log-src", 100)
	_, dst := seedAccount(t, store, ctx, "log-dst", 0)

	rec := &models.TransferRecord{
		SourceAccountID: src.ID,
		DestAccountID:   dst.ID,
		Amount:          25,
	}
	if err := store.AppendTransfer(ctx, rec); err != nil {
		t.Fatalf("AppendTransfer failed: %v", err)
	}
	if rec.ID == "" || rec.Timestamp == 0 {
		t.Fatal("Expected ID and timestamp to be assigned")
	}

	t.Run("GetTransfer round-trips system transfer", func(t *testing.T) {
		got, err := store.GetTransfer(ctx, rec.ID)
		if err != nil {
			t.Fatalf("GetTransfer failed: %v", err)
		}
		if got.ActorUserID != "" {
			t.Errorf("Expected empty actor for system transfer, got %q", got.ActorUserID)
		}
		if got.Amount != 25 || got.IsRollback {
			t.Errorf("Unexpected record: %+v", got)
		}
	})

	t.Run("ClaimTransferRollback wins exactly once", func(t *testing.T) {
		won, err := store.ClaimTransferRollback(ctx, rec.ID)
		if err != nil {
			t.Fatalf("ClaimTransferRollback failed: %v", err)
		}
		if !won {
			t.Error("Expected first claim to win")
		}

		won, err = store.ClaimTransferRollback(ctx, rec.ID)
		if err != nil {
			t.Fatalf("Second claim failed: %v", err)
		}
		if won {
			t.Error("Expected second claim to lose")
		}
	})

	t.Run("ListTransfersForRollback honors filters", func(t *testing.T) {
		actor, actorAcc := seedAccount(t, store, ctx, "filter-src", 100)
		_, otherAcc := seedAccount(t, store, ctx, "filter-dst", 0)

		mine := &models.TransferRecord{
			ActorUserID:     actor.ID,
			SourceAccountID: actorAcc.ID,
			DestAccountID:   otherAcc.ID,
			Amount:          5,
		}
		if err := store.AppendTransfer(ctx, mine); err != nil {
			t.Fatalf("AppendTransfer failed: %v", err)
		}

		records, err := store.ListTransfersForRollback(ctx, storage.RollbackFilter{ActorUserID: actor.ID})
		if err != nil {
			t.Fatalf("ListTransfersForRollback failed: %v", err)
		}
		if len(records) != 1 || records[0].ID != mine.ID {
			t.Errorf("Actor filter: expected [%s], got %v", mine.ID, records)
		}

		records, err = store.ListTransfersForRollback(ctx, storage.RollbackFilter{SourceAccountID: actorAcc.ID})
		if err != nil {
			t.Fatalf("ListTransfersForRollback failed: %v", err)
		}
		if len(records) != 1 {
			t.Errorf("Account filter: expected 1 record, got %d", len(records))
		}

		future := time.Now().Add(time.Hour)
		records, err = store.ListTransfersForRollback(ctx, storage.RollbackFilter{Since: &future})
		if err != nil {
			t.Fatalf("ListTransfersForRollback failed: %v", err)
		}
		if len(records) != 0 {
			t.Errorf("Future cutoff: expected no records, got %d", len(records))
		}
	})
}

func TestSQLiteStore_Boxes(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	_, payer := seedAccount(t, store, ctx, "box-payer", 100)
	_, owner := seedAccount(t, store, ctx, "box-owner", 0)

	sell := int64(3)
	box := &models.SharedBox{
		World:          "overworld",
		X:              10, Y: 64, Z: -3,
		PayerAccountID: payer.ID,
		OwnerAccountID: owner.ID,
		Period:         24 * time.Hour,
		TaxAmount:      7,
		ItemID:         "minecraft:diamond",
		ItemTag:        "{}",
		Stock:          5,
		SellPrice:      &sell,
	}
	if err := store.CreateBox(ctx, box); err != nil {
		t.Fatalf("CreateBox failed: %v", err)
	}

	t.Run("GetBoxByCoordinates finds live box", func(t *testing.T) {
		got, err := store.GetBoxByCoordinates(ctx, "overworld", 10, 64, -3)
		if err != nil {
			t.Fatalf("GetBoxByCoordinates failed: %v", err)
		}
		if got == nil || got.ID != box.ID {
			t.Fatalf("Expected box %s, got %v", box.ID, got)
		}
		if got.Period != 24*time.Hour {
			t.Errorf("Period round-trip: got %v", got.Period)
		}
		if got.BuyPrice != nil || got.SellPrice == nil || *got.SellPrice != 3 {
			t.Errorf("Price round-trip: buy=%v sell=%v", got.BuyPrice, got.SellPrice)
		}
	})

	t.Run("Disabled box frees its coordinates", func(t *testing.T) {
		if err := store.DisableBox(ctx, box.ID); err != nil {
			t.Fatalf("DisableBox failed: %v", err)
		}
		got, _ := store.GetBoxByCoordinates(ctx, "overworld", 10, 64, -3)
		if got != nil {
			t.Error("Disabled box should not occupy its coordinates")
		}
		// Re-enable for the remaining subtests.
		if _, err := store.db.ExecContext(ctx, "UPDATE boxes SET disabled = 0 WHERE id = ?", box.ID); err != nil {
			t.Fatalf("failed to re-enable box: %v", err)
		}
	})

	t.Run("AdjustBoxStock refuses negative stock", func(t *testing.T) {
		if err := store.AdjustBoxStock(ctx, box.ID, -5); err != nil {
			t.Fatalf("AdjustBoxStock failed: %v", err)
		}
		if err := store.AdjustBoxStock(ctx, box.ID, -1); err == nil {
			t.Error("Expected stock underflow to be rejected")
		}
	})

	t.Run("Box log rollback join and claim", func(t *testing.T) {
		rec := &models.TransferRecord{SourceAccountID: payer.ID, DestAccountID: owner.ID, Amount: 15}
		if err := store.AppendTransfer(ctx, rec); err != nil {
			t.Fatalf("AppendTransfer failed: %v", err)
		}

		boxLog := &models.BoxLog{TransferID: rec.ID, BoxID: box.ID, Quantity: 5, UnitPrice: 3}
		if err := store.AppendBoxLog(ctx, boxLog); err != nil {
			t.Fatalf("AppendBoxLog failed: %v", err)
		}

		logs, err := store.ListBoxLogsForRollback(ctx, storage.RollbackFilter{SourceAccountID: payer.ID})
		if err != nil {
			t.Fatalf("ListBoxLogsForRollback failed: %v", err)
		}
		if len(logs) != 1 || logs[0].ID != boxLog.ID {
			t.Fatalf("Expected [%s], got %v", boxLog.ID, logs)
		}

		won, err := store.ClaimBoxLogRollback(ctx, boxLog.ID)
		if err != nil || !won {
			t.Fatalf("Expected first box log claim to win, won=%v err=%v", won, err)
		}
		won, _ = store.ClaimBoxLogRollback(ctx, boxLog.ID)
		if won {
			t.Error("Expected second box log claim to lose")
		}

		logs, _ = store.ListBoxLogsForRollback(ctx, storage.RollbackFilter{})
		if len(logs) != 0 {
			t.Errorf("Claimed log should not be listed again, got %d", len(logs))
		}
	})
}

func TestSQLiteStore_Duties(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	_, owner := seedAccount(t, store, ctx, "duty-owner", 0)
	_, payer := seedAccount(t, store, ctx, "duty-payer", 50)

	duty := &models.DutyContract{
		OwnerAccountID: owner.ID,
		Period:         time.Hour,
		TaxAmount:      5,
	}
	if err := store.CreateDuty(ctx, duty); err != nil {
		t.Fatalf("CreateDuty failed: %v", err)
	}
	if duty.LastSettlement == 0 {
		t.Error("Expected LastSettlement to default to creation time")
	}

	t.Run("GetDuty round-trips unset payer", func(t *testing.T) {
		got, err := store.GetDuty(ctx, duty.ID)
		if err != nil {
			t.Fatalf("GetDuty failed: %v", err)
		}
		if got.PayerAccountID != "" {
			t.Errorf("Expected unset payer, got %q", got.PayerAccountID)
		}
		if got.Period != time.Hour {
			t.Errorf("Period round-trip: got %v", got.Period)
		}
	})

	t.Run("SetDutyPayer assigns payer", func(t *testing.T) {
		if err := store.SetDutyPayer(ctx, duty.ID, payer.ID); err != nil {
			t.Fatalf("SetDutyPayer failed: %v", err)
		}
		got, _ := store.GetDuty(ctx, duty.ID)
		if got.PayerAccountID != payer.ID {
			t.Errorf("Expected payer %s, got %q", payer.ID, got.PayerAccountID)
		}
	})

	t.Run("ListActiveDuties excludes blocked and disabled", func(t *testing.T) {
		duties, err := store.ListActiveDuties(ctx)
		if err != nil {
			t.Fatalf("ListActiveDuties failed: %v", err)
		}
		if len(duties) != 1 {
			t.Fatalf("Expected 1 active duty, got %d", len(duties))
		}

		if err := store.BlockDuty(ctx, duty.ID); err != nil {
			t.Fatalf("BlockDuty failed: %v", err)
		}
		duties, _ = store.ListActiveDuties(ctx)
		if len(duties) != 0 {
			t.Errorf("Blocked duty should not be active, got %d", len(duties))
		}
	})
}
