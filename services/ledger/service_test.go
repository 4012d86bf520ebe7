package ledger

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"studiomanager_go/models"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open test database: %v", err)
	}

	if err := db.AutoMigrate(&models.CustomerSession{}, &models.SessionTransaction{}); err != nil {
		t.Fatalf("migrate test database: %v", err)
	}
	return db
}

func uintPtr(v uint) *uint { return &v }

func TestAddSessionsCreatesBlock(t *testing.T) {
	svc := NewService(newTestDB(t))

	result, err := svc.AddSessions(1, 1, 10, 99, "starter package")
	if err != nil {
		t.Fatalf("AddSessions: %v", err)
	}
	if result.RemainingSessions != 10 {
		t.Errorf("remaining = %d, want 10", result.RemainingSessions)
	}

	block, err := svc.Store().GetBlock(nil, result.SessionID, false)
	if err != nil {
		t.Fatalf("GetBlock: %v", err)
	}
	if block.TotalSessions != 10 || block.RemainingSessions != 10 {
		t.Errorf("block = %d/%d, want 10/10", block.RemainingSessions, block.TotalSessions)
	}
	if !block.IsActive {
		t.Error("new block should be active")
	}

	records, err := svc.Store().ListTransactions(block.ID, 0)
	if err != nil {
		t.Fatalf("ListTransactions: %v", err)
	}
	if len(records) != 1 {
		t.Fatalf("transactions = %d, want 1", len(records))
	}
	if records[0].TransactionType != models.TxPurchase || records[0].Amount != 10 {
		t.Errorf("transaction = %s/%d, want purchase/10", records[0].TransactionType, records[0].Amount)
	}
}

func TestAddSessionsRejectsNonPositiveCount(t *testing.T) {
	svc := NewService(newTestDB(t))

	for _, count := range []int{0, -5} {
		if _, err := svc.AddSessions(1, 1, count, 99, ""); err == nil {
			t.Errorf("AddSessions(%d) should fail", count)
		} else {
			var ve *ValidationError
			if !errors.As(err, &ve) {
				t.Errorf("AddSessions(%d) error = %v, want ValidationError", count, err)
			}
		}
	}
}

// Worked example: buy 10, complete 3 appointments, top up 5. The block ends
// at 15 total with 12 remaining and the audit rows sum to the remainder.
func TestPurchaseDeductTopupFlow(t *testing.T) {
	svc := NewService(newTestDB(t))

	purchase, err := svc.AddSessions(1, 1, 10, 99, "")
	if err != nil {
		t.Fatalf("AddSessions: %v", err)
	}

	for i := uint(1); i <= 3; i++ {
		if _, err := svc.DeductSession(1, 1, uintPtr(i), 99, ""); err != nil {
			t.Fatalf("DeductSession(%d): %v", i, err)
		}
	}

	topup, err := svc.AddSessions(1, 1, 5, 99, "")
	if err != nil {
		t.Fatalf("AddSessions topup: %v", err)
	}
	if topup.SessionID != purchase.SessionID {
		t.Errorf("topup created a new block %d, want extension of %d", topup.SessionID, purchase.SessionID)
	}
	if topup.RemainingSessions != 12 {
		t.Errorf("remaining = %d, want 12", topup.RemainingSessions)
	}

	block, err := svc.Store().GetBlock(nil, purchase.SessionID, false)
	if err != nil {
		t.Fatalf("GetBlock: %v", err)
	}
	if block.TotalSessions != 15 || block.RemainingSessions != 12 {
		t.Errorf("block = %d/%d, want 12/15", block.RemainingSessions, block.TotalSessions)
	}

	records, err := svc.Store().ListTransactions(block.ID, 0)
	if err != nil {
		t.Fatalf("ListTransactions: %v", err)
	}
	sum := 0
	for _, r := range records {
		sum += r.Amount
	}
	if sum != block.RemainingSessions {
		t.Errorf("transaction sum = %d, want %d", sum, block.RemainingSessions)
	}
}

func TestDeductSessionWithoutBalance(t *testing.T) {
	svc := NewService(newTestDB(t))

	if _, err := svc.DeductSession(1, 1, nil, 99, ""); !errors.Is(err, ErrNoActiveSessions) {
		t.Errorf("error = %v, want ErrNoActiveSessions", err)
	}

	// Drain a one-session block, then the next deduction must fail too.
	if _, err := svc.AddSessions(1, 1, 1, 99, ""); err != nil {
		t.Fatalf("AddSessions: %v", err)
	}
	if _, err := svc.DeductSession(1, 1, nil, 99, ""); err != nil {
		t.Fatalf("DeductSession: %v", err)
	}
	if _, err := svc.DeductSession(1, 1, nil, 99, ""); !errors.Is(err, ErrNoActiveSessions) {
		t.Errorf("error after drain = %v, want ErrNoActiveSessions", err)
	}
}

func TestDeductSessionDuplicateGuard(t *testing.T) {
	svc := NewService(newTestDB(t))

	if _, err := svc.AddSessions(1, 1, 10, 99, ""); err != nil {
		t.Fatalf("AddSessions: %v", err)
	}

	if _, err := svc.DeductSession(1, 1, uintPtr(42), 99, ""); err != nil {
		t.Fatalf("first DeductSession: %v", err)
	}
	if _, err := svc.DeductSession(1, 1, uintPtr(42), 99, ""); !errors.Is(err, ErrDuplicateDeduction) {
		t.Errorf("error = %v, want ErrDuplicateDeduction", err)
	}

	balance, err := svc.RemainingBalance(1, 1)
	if err != nil {
		t.Fatalf("RemainingBalance: %v", err)
	}
	if balance != 9 {
		t.Errorf("balance = %d, want 9 (single deduction)", balance)
	}
}

func TestDeductSessionConsumesOldestBlockFirst(t *testing.T) {
	db := newTestDB(t)
	svc := NewService(db)
	store := svc.Store()

	older := &models.CustomerSession{
		CustomerID: 1, StudioID: 1,
		TotalSessions: 2, RemainingSessions: 1,
		PurchaseDate: time.Now().AddDate(0, -1, 0),
		BlockOrder:   1,
	}
	newer := &models.CustomerSession{
		CustomerID: 1, StudioID: 1,
		TotalSessions: 10, RemainingSessions: 10,
		PurchaseDate: time.Now(),
		BlockOrder:   2,
	}
	if err := store.CreateBlock(nil, older); err != nil {
		t.Fatalf("CreateBlock older: %v", err)
	}
	if err := store.CreateBlock(nil, newer); err != nil {
		t.Fatalf("CreateBlock newer: %v", err)
	}

	first, err := svc.DeductSession(1, 1, nil, 99, "")
	if err != nil {
		t.Fatalf("DeductSession: %v", err)
	}
	if first.SessionID != older.ID {
		t.Errorf("deducted from block %d, want oldest block %d", first.SessionID, older.ID)
	}

	// Oldest block is now empty, so consumption moves on to the next one.
	second, err := svc.DeductSession(1, 1, nil, 99, "")
	if err != nil {
		t.Fatalf("second DeductSession: %v", err)
	}
	if second.SessionID != newer.ID {
		t.Errorf("deducted from block %d, want newer block %d", second.SessionID, newer.ID)
	}
}

func TestRefundSessionTargetsDeductionBlock(t *testing.T) {
	db := newTestDB(t)
	svc := NewService(db)
	store := svc.Store()

	older := &models.CustomerSession{
		CustomerID: 1, StudioID: 1,
		TotalSessions: 5, RemainingSessions: 5,
		PurchaseDate: time.Now().AddDate(0, -1, 0),
		BlockOrder:   1,
	}
	newer := &models.CustomerSession{
		CustomerID: 1, StudioID: 1,
		TotalSessions: 10, RemainingSessions: 10,
		PurchaseDate: time.Now(),
		BlockOrder:   2,
	}
	if err := store.CreateBlock(nil, older); err != nil {
		t.Fatalf("CreateBlock older: %v", err)
	}
	if err := store.CreateBlock(nil, newer); err != nil {
		t.Fatalf("CreateBlock newer: %v", err)
	}

	if _, err := svc.DeductSession(1, 1, uintPtr(7), 99, ""); err != nil {
		t.Fatalf("DeductSession: %v", err)
	}

	refund, err := svc.RefundSession(1, 1, uintPtr(7), 99, "")
	if err != nil {
		t.Fatalf("RefundSession: %v", err)
	}
	if refund.SessionID != older.ID {
		t.Errorf("refunded to block %d, want deduction block %d", refund.SessionID, older.ID)
	}
	if refund.RemainingSessions != 5 {
		t.Errorf("remaining = %d, want 5", refund.RemainingSessions)
	}
}

func TestRefundSessionCannotExceedTotal(t *testing.T) {
	svc := NewService(newTestDB(t))

	if _, err := svc.AddSessions(1, 1, 5, 99, ""); err != nil {
		t.Fatalf("AddSessions: %v", err)
	}

	// The block is untouched; a refund would push remaining above total.
	if _, err := svc.RefundSession(1, 1, nil, 99, ""); !errors.Is(err, ErrInsufficientBalance) {
		t.Errorf("error = %v, want ErrInsufficientBalance", err)
	}
}

func TestRemainingBalanceSpansBlocks(t *testing.T) {
	db := newTestDB(t)
	svc := NewService(db)
	store := svc.Store()

	blocks := []*models.CustomerSession{
		{CustomerID: 1, StudioID: 1, TotalSessions: 5, RemainingSessions: 2, BlockOrder: 1},
		{CustomerID: 1, StudioID: 1, TotalSessions: 10, RemainingSessions: 10, BlockOrder: 2},
		{CustomerID: 2, StudioID: 1, TotalSessions: 8, RemainingSessions: 8, BlockOrder: 1},
	}
	for i, b := range blocks {
		if err := store.CreateBlock(nil, b); err != nil {
			t.Fatalf("CreateBlock %d: %v", i, err)
		}
	}

	balance, err := svc.RemainingBalance(1, 1)
	if err != nil {
		t.Fatalf("RemainingBalance: %v", err)
	}
	if balance != 12 {
		t.Errorf("balance = %d, want 12", balance)
	}
}

func TestDeactivateBlockFreezesCredits(t *testing.T) {
	svc := NewService(newTestDB(t))

	result, err := svc.AddSessions(1, 1, 10, 99, "")
	if err != nil {
		t.Fatalf("AddSessions: %v", err)
	}

	if err := svc.DeactivateBlock(result.SessionID, 99, "billing dispute"); err != nil {
		t.Fatalf("DeactivateBlock: %v", err)
	}

	if _, err := svc.DeductSession(1, 1, nil, 99, ""); !errors.Is(err, ErrNoActiveSessions) {
		t.Errorf("deduction from deactivated block: error = %v, want ErrNoActiveSessions", err)
	}

	block, err := svc.Store().GetBlock(nil, result.SessionID, false)
	if err != nil {
		t.Fatalf("GetBlock: %v", err)
	}
	if block.IsActive {
		t.Error("block should be inactive")
	}
	if block.RemainingSessions != 10 {
		t.Errorf("remaining = %d, want credits frozen at 10", block.RemainingSessions)
	}

	// Deactivating again is a no-op and must not add another audit row.
	if err := svc.DeactivateBlock(result.SessionID, 99, "again"); err != nil {
		t.Fatalf("second DeactivateBlock: %v", err)
	}
	records, err := svc.Store().ListTransactions(result.SessionID, 0)
	if err != nil {
		t.Fatalf("ListTransactions: %v", err)
	}
	deactivations := 0
	for _, r := range records {
		if r.TransactionType == models.TxDeactivation {
			deactivations++
		}
	}
	if deactivations != 1 {
		t.Errorf("deactivation rows = %d, want 1", deactivations)
	}
}

func TestEditBlockNotesRecordsAudit(t *testing.T) {
	svc := NewService(newTestDB(t))

	result, err := svc.AddSessions(1, 1, 10, 99, "original")
	if err != nil {
		t.Fatalf("AddSessions: %v", err)
	}

	if err := svc.EditBlockNotes(result.SessionID, 99, "corrected invoice ref"); err != nil {
		t.Fatalf("EditBlockNotes: %v", err)
	}

	block, err := svc.Store().GetBlock(nil, result.SessionID, false)
	if err != nil {
		t.Fatalf("GetBlock: %v", err)
	}
	if block.Notes != "corrected invoice ref" {
		t.Errorf("notes = %q, want updated value", block.Notes)
	}

	records, err := svc.Store().ListTransactions(result.SessionID, 0)
	if err != nil {
		t.Fatalf("ListTransactions: %v", err)
	}
	found := false
	for _, r := range records {
		if r.TransactionType == models.TxEdit && r.Amount == 0 {
			found = true
		}
	}
	if !found {
		t.Error("expected a zero-amount edit transaction")
	}
}

func TestDeactivateMissingBlock(t *testing.T) {
	svc := NewService(newTestDB(t))

	if err := svc.DeactivateBlock(12345, 99, ""); !errors.Is(err, ErrBlockNotFound) {
		t.Errorf("error = %v, want ErrBlockNotFound", err)
	}
}
