package ledger

import (
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"studiomanager_go/models"
)

// Store is the persistence layer for session blocks and their audit trail.
// Every mutation of a block must be paired with exactly one transaction
// row inside the same database transaction; the service layer owns that
// pairing, the store provides the guarded primitives.
type Store struct {
	db *gorm.DB
}

// NewStore creates a Store bound to the given connection pool.
func NewStore(db *gorm.DB) *Store {
	return &Store{db: db}
}

// DB exposes the underlying handle so the service can open transactions.
func (s *Store) DB() *gorm.DB {
	return s.db
}

// GetActiveBlock returns the consumable block for a customer at a studio:
// the oldest active block with remaining balance. Blocks are consumed in
// purchase order (FIFO) so customers use up what they paid for first.
// Returns nil when the customer has no consumable block.
func (s *Store) GetActiveBlock(tx *gorm.DB, customerID, studioID uint, lock bool) (*models.CustomerSession, error) {
	if tx == nil {
		tx = s.db
	}

	query := tx.Where("customer_id = ? AND studio_id = ? AND is_active = ? AND remaining_sessions > 0",
		customerID, studioID, true).
		Order("block_order ASC, created_at ASC, id ASC")
	if lock {
		query = query.Clauses(clause.Locking{Strength: "UPDATE"})
	}

	var block models.CustomerSession
	if err := query.First(&block).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &block, nil
}

// GetNewestActiveBlock returns the most recently created active block
// regardless of remaining balance. Top-ups extend this block.
func (s *Store) GetNewestActiveBlock(tx *gorm.DB, customerID, studioID uint, lock bool) (*models.CustomerSession, error) {
	if tx == nil {
		tx = s.db
	}

	query := tx.Where("customer_id = ? AND studio_id = ? AND is_active = ?", customerID, studioID, true).
		Order("block_order DESC, created_at DESC, id DESC")
	if lock {
		query = query.Clauses(clause.Locking{Strength: "UPDATE"})
	}

	var block models.CustomerSession
	if err := query.First(&block).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &block, nil
}

// GetBlock fetches a block by id, optionally locking the row.
func (s *Store) GetBlock(tx *gorm.DB, blockID uint, lock bool) (*models.CustomerSession, error) {
	if tx == nil {
		tx = s.db
	}

	query := tx.Where("id = ?", blockID)
	if lock {
		query = query.Clauses(clause.Locking{Strength: "UPDATE"})
	}

	var block models.CustomerSession
	if err := query.First(&block).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrBlockNotFound
		}
		return nil, err
	}
	return &block, nil
}

// CreateBlock validates and inserts a new session block.
func (s *Store) CreateBlock(tx *gorm.DB, block *models.CustomerSession) error {
	if tx == nil {
		tx = s.db
	}

	if block.TotalSessions <= 0 {
		return newValidationError("total_sessions", "must be greater than zero")
	}
	if block.RemainingSessions < 0 || block.RemainingSessions > block.TotalSessions {
		return newValidationError("remaining_sessions", "must be between 0 and total_sessions")
	}
	if block.PurchaseDate.IsZero() {
		block.PurchaseDate = time.Now()
	}
	if block.BlockOrder == 0 {
		order, err := s.nextBlockOrder(tx, block.CustomerID, block.StudioID)
		if err != nil {
			return err
		}
		block.BlockOrder = order
	}
	block.IsActive = true

	return tx.Create(block).Error
}

// nextBlockOrder returns max(block_order)+1 across all of the customer's
// blocks at the studio, inactive ones included, so order never reuses.
func (s *Store) nextBlockOrder(tx *gorm.DB, customerID, studioID uint) (int, error) {
	var maxOrder int
	err := tx.Model(&models.CustomerSession{}).
		Where("customer_id = ? AND studio_id = ?", customerID, studioID).
		Select("COALESCE(MAX(block_order), 0)").
		Scan(&maxOrder).Error
	if err != nil {
		return 0, err
	}
	return maxOrder + 1, nil
}

// AdjustBlock applies deltaRemaining to remaining_sessions and deltaTotal
// to total_sessions in one guarded UPDATE. The guard keeps
// 0 <= remaining <= total after the change; a violated guard affects zero
// rows and yields ErrInsufficientBalance.
func (s *Store) AdjustBlock(tx *gorm.DB, blockID uint, deltaRemaining, deltaTotal int) error {
	if tx == nil {
		tx = s.db
	}

	result := tx.Model(&models.CustomerSession{}).
		Where("id = ? AND remaining_sessions + ? >= 0 AND remaining_sessions + ? <= total_sessions + ?",
			blockID, deltaRemaining, deltaRemaining, deltaTotal).
		Updates(map[string]interface{}{
			"remaining_sessions": gorm.Expr("remaining_sessions + ?", deltaRemaining),
			"total_sessions":     gorm.Expr("total_sessions + ?", deltaTotal),
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		// Distinguish a violated guard from a missing row.
		var count int64
		if err := tx.Model(&models.CustomerSession{}).Where("id = ?", blockID).Count(&count).Error; err != nil {
			return err
		}
		if count == 0 {
			return ErrBlockNotFound
		}
		return ErrInsufficientBalance
	}
	return nil
}

// RecordTransaction appends an immutable audit row for a block mutation.
func (s *Store) RecordTransaction(tx *gorm.DB, record *models.SessionTransaction) error {
	if tx == nil {
		tx = s.db
	}
	return tx.Create(record).Error
}

// HasDeductionForAppointment reports whether a deduction was already
// recorded against the given appointment.
func (s *Store) HasDeductionForAppointment(tx *gorm.DB, appointmentID uint) (bool, error) {
	if tx == nil {
		tx = s.db
	}

	var count int64
	err := tx.Model(&models.SessionTransaction{}).
		Where("transaction_type = ? AND appointment_id = ?", models.TxDeduction, appointmentID).
		Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// LastDeductionForAppointment returns the most recent deduction row for an
// appointment, or nil when the appointment never consumed a session.
func (s *Store) LastDeductionForAppointment(tx *gorm.DB, appointmentID uint) (*models.SessionTransaction, error) {
	if tx == nil {
		tx = s.db
	}

	var record models.SessionTransaction
	err := tx.Where("transaction_type = ? AND appointment_id = ?", models.TxDeduction, appointmentID).
		Order("created_at DESC, id DESC").
		First(&record).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &record, nil
}

// ListBlocks returns all blocks for a customer at a studio in consumption
// order, newest last.
func (s *Store) ListBlocks(customerID, studioID uint, activeOnly bool) ([]models.CustomerSession, error) {
	query := s.db.Where("customer_id = ? AND studio_id = ?", customerID, studioID)
	if activeOnly {
		query = query.Where("is_active = ?", true)
	}

	var blocks []models.CustomerSession
	if err := query.Order("block_order ASC, created_at ASC, id ASC").Find(&blocks).Error; err != nil {
		return nil, err
	}
	return blocks, nil
}

// ListTransactions returns the audit trail for a block, newest first.
func (s *Store) ListTransactions(blockID uint, limit int) ([]models.SessionTransaction, error) {
	query := s.db.Where("customer_session_id = ?", blockID).Order("created_at DESC, id DESC")
	if limit > 0 {
		query = query.Limit(limit)
	}

	var records []models.SessionTransaction
	if err := query.Find(&records).Error; err != nil {
		return nil, err
	}
	return records, nil
}
