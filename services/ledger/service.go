package ledger

import (
	"time"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"studiomanager_go/models"
)

// Service exposes the business operations of the session-credit ledger.
// All mutating operations run the block adjustment and its audit row in
// one database transaction: either both land or neither does.
type Service struct {
	store *Store
}

// NewService creates a ledger service on top of the given connection pool.
func NewService(db *gorm.DB) *Service {
	return &Service{store: NewStore(db)}
}

// Store returns the underlying store (read paths for controllers).
func (s *Service) Store() *Store {
	return s.store
}

// Result describes the outcome of a ledger mutation.
type Result struct {
	SessionID         uint `json:"session_id"`
	TransactionID     uint `json:"transaction_id"`
	RemainingSessions int  `json:"remaining_sessions"`
}

// DeductSession consumes one credit from the customer's oldest consumable
// block, normally on appointment completion. A second call for the same
// appointment is rejected with ErrDuplicateDeduction so retried completion
// requests cannot double-deduct.
func (s *Service) DeductSession(customerID, studioID uint, appointmentID *uint, actorID uint, notes string) (*Result, error) {
	var result Result

	err := s.store.DB().Transaction(func(tx *gorm.DB) error {
		if appointmentID != nil {
			already, err := s.store.HasDeductionForAppointment(tx, *appointmentID)
			if err != nil {
				return err
			}
			if already {
				return ErrDuplicateDeduction
			}
		}

		block, err := s.store.GetActiveBlock(tx, customerID, studioID, true)
		if err != nil {
			return err
		}
		if block == nil || block.RemainingSessions <= 0 {
			return ErrNoActiveSessions
		}

		if err := s.store.AdjustBlock(tx, block.ID, -1, 0); err != nil {
			return err
		}

		record := models.SessionTransaction{
			CustomerSessionID: block.ID,
			TransactionType:   models.TxDeduction,
			Amount:            -1,
			AppointmentID:     appointmentID,
			CreatedByUserID:   actorID,
			Notes:             notes,
		}
		if err := s.store.RecordTransaction(tx, &record); err != nil {
			return err
		}

		result = Result{
			SessionID:         block.ID,
			TransactionID:     record.ID,
			RemainingSessions: block.RemainingSessions - 1,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	logrus.WithFields(logrus.Fields{
		"customer_id": customerID,
		"studio_id":   studioID,
		"session_id":  result.SessionID,
		"remaining":   result.RemainingSessions,
	}).Info("Session deducted")

	return &result, nil
}

// AddSessions credits a customer with count sessions. When no active block
// exists a new one is created (purchase); otherwise the newest active
// block is extended, bumping both total and remaining (topup). The service
// accepts any positive count; package-size policy is the caller's concern.
func (s *Service) AddSessions(customerID, studioID uint, count int, actorID uint, notes string) (*Result, error) {
	if count <= 0 {
		return nil, newValidationError("count", "must be a positive number of sessions")
	}

	var result Result

	err := s.store.DB().Transaction(func(tx *gorm.DB) error {
		block, err := s.store.GetNewestActiveBlock(tx, customerID, studioID, true)
		if err != nil {
			return err
		}

		txType := models.TxTopup
		if block == nil {
			block = &models.CustomerSession{
				CustomerID:        customerID,
				StudioID:          studioID,
				TotalSessions:     count,
				RemainingSessions: count,
				PurchaseDate:      time.Now(),
				BlockType:         "package",
				Notes:             notes,
			}
			if err := s.store.CreateBlock(tx, block); err != nil {
				return err
			}
			txType = models.TxPurchase
		} else {
			if err := s.store.AdjustBlock(tx, block.ID, count, count); err != nil {
				return err
			}
			block.TotalSessions += count
			block.RemainingSessions += count
		}

		record := models.SessionTransaction{
			CustomerSessionID: block.ID,
			TransactionType:   txType,
			Amount:            count,
			CreatedByUserID:   actorID,
			Notes:             notes,
		}
		if err := s.store.RecordTransaction(tx, &record); err != nil {
			return err
		}

		result = Result{
			SessionID:         block.ID,
			TransactionID:     record.ID,
			RemainingSessions: block.RemainingSessions,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	logrus.WithFields(logrus.Fields{
		"customer_id": customerID,
		"studio_id":   studioID,
		"session_id":  result.SessionID,
		"count":       count,
		"remaining":   result.RemainingSessions,
	}).Info("Sessions added")

	return &result, nil
}

// RefundSession restores one credit, normally when a confirmed appointment
// is cancelled. The credit goes back to the block the appointment's
// deduction came from when that block is still active, otherwise to the
// newest active block. The refund cannot push remaining above total.
func (s *Service) RefundSession(customerID, studioID uint, appointmentID *uint, actorID uint, notes string) (*Result, error) {
	var result Result

	err := s.store.DB().Transaction(func(tx *gorm.DB) error {
		var block *models.CustomerSession

		if appointmentID != nil {
			deduction, err := s.store.LastDeductionForAppointment(tx, *appointmentID)
			if err != nil {
				return err
			}
			if deduction != nil {
				candidate, err := s.store.GetBlock(tx, deduction.CustomerSessionID, true)
				if err != nil && err != ErrBlockNotFound {
					return err
				}
				if candidate != nil && candidate.IsActive {
					block = candidate
				}
			}
		}

		if block == nil {
			var err error
			block, err = s.store.GetNewestActiveBlock(tx, customerID, studioID, true)
			if err != nil {
				return err
			}
		}
		if block == nil {
			return ErrNoActiveSessions
		}

		if err := s.store.AdjustBlock(tx, block.ID, 1, 0); err != nil {
			return err
		}

		record := models.SessionTransaction{
			CustomerSessionID: block.ID,
			TransactionType:   models.TxRefund,
			Amount:            1,
			AppointmentID:     appointmentID,
			CreatedByUserID:   actorID,
			Notes:             notes,
		}
		if err := s.store.RecordTransaction(tx, &record); err != nil {
			return err
		}

		result = Result{
			SessionID:         block.ID,
			TransactionID:     record.ID,
			RemainingSessions: block.RemainingSessions + 1,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	logrus.WithFields(logrus.Fields{
		"customer_id": customerID,
		"studio_id":   studioID,
		"session_id":  result.SessionID,
		"remaining":   result.RemainingSessions,
	}).Info("Session refunded")

	return &result, nil
}

// GetActiveSession returns the customer's current consumable block, or nil.
func (s *Service) GetActiveSession(customerID, studioID uint) (*models.CustomerSession, error) {
	return s.store.GetActiveBlock(nil, customerID, studioID, false)
}

// RemainingBalance sums remaining credits across all of the customer's
// active blocks at the studio.
func (s *Service) RemainingBalance(customerID, studioID uint) (int, error) {
	blocks, err := s.store.ListBlocks(customerID, studioID, true)
	if err != nil {
		return 0, err
	}
	total := 0
	for _, b := range blocks {
		total += b.RemainingSessions
	}
	return total, nil
}

// DeactivateBlock soft-deactivates a block so it can no longer be consumed
// or topped up. Remaining credits are frozen, not erased; the audit row
// documents who pulled the block and why.
func (s *Service) DeactivateBlock(blockID, actorID uint, reason string) error {
	return s.store.DB().Transaction(func(tx *gorm.DB) error {
		block, err := s.store.GetBlock(tx, blockID, true)
		if err != nil {
			return err
		}
		if !block.IsActive {
			return nil
		}

		if err := tx.Model(&models.CustomerSession{}).Where("id = ?", block.ID).
			Update("is_active", false).Error; err != nil {
			return err
		}

		record := models.SessionTransaction{
			CustomerSessionID: block.ID,
			TransactionType:   models.TxDeactivation,
			Amount:            0,
			CreatedByUserID:   actorID,
			Notes:             reason,
		}
		return s.store.RecordTransaction(tx, &record)
	})
}

// EditBlockNotes updates a block's notes and records the change.
func (s *Service) EditBlockNotes(blockID, actorID uint, notes string) error {
	return s.store.DB().Transaction(func(tx *gorm.DB) error {
		block, err := s.store.GetBlock(tx, blockID, true)
		if err != nil {
			return err
		}

		if err := tx.Model(&models.CustomerSession{}).Where("id = ?", block.ID).
			Update("notes", notes).Error; err != nil {
			return err
		}

		record := models.SessionTransaction{
			CustomerSessionID: block.ID,
			TransactionType:   models.TxEdit,
			Amount:            0,
			CreatedByUserID:   actorID,
			Notes:             notes,
		}
		return s.store.RecordTransaction(tx, &record)
	})
}
