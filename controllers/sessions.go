package controllers

import (
	"studiomanager_go/database"
	"studiomanager_go/middleware"
	"studiomanager_go/models"
	"studiomanager_go/services/ledger"
	"studiomanager_go/utils"

	"github.com/gofiber/fiber/v2"
)

// SessionController exposes the session-credit ledger: balances, block
// history, top-ups and the immutable transaction trail.
type SessionController struct {
	ledger *ledger.Service
}

func NewSessionController() *SessionController {
	return &SessionController{ledger: ledger.NewService(database.DB)}
}

// resolveCustomer returns the customer the request targets. Customers
// are pinned to themselves; staff pass ?customer_id or :customer_id.
func resolveCustomer(c *fiber.Ctx, user *models.User) (*models.User, error) {
	if user.Role == "customer" {
		return user, nil
	}

	customerID, err := c.ParamsInt("customer_id")
	if err != nil || customerID <= 0 {
		customerID = c.QueryInt("customer_id")
	}
	if customerID <= 0 {
		return nil, fiber.NewError(fiber.StatusBadRequest, "customer_id is required")
	}

	var customer models.User
	if err := database.DB.First(&customer, customerID).Error; err != nil {
		return nil, fiber.NewError(fiber.StatusNotFound, "Customer not found")
	}
	if user.Role == "studio_owner" && customer.StudioID != user.StudioID {
		return nil, fiber.NewError(fiber.StatusForbidden, "Customer belongs to another studio")
	}
	return &customer, nil
}

// GetBalance returns the customer's total remaining sessions plus the
// currently consumed block.
func (sc *SessionController) GetBalance(c *fiber.Ctx) error {
	user, err := middleware.GetCurrentUser(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "User not found"})
	}

	customer, err := resolveCustomer(c, user)
	if err != nil {
		return err
	}

	balance, err := sc.ledger.RemainingBalance(customer.ID, customer.StudioID)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to compute balance"})
	}

	response := fiber.Map{
		"customer_id":        customer.ID,
		"studio_id":          customer.StudioID,
		"remaining_sessions": balance,
	}
	if active, err := sc.ledger.GetActiveSession(customer.ID, customer.StudioID); err == nil && active != nil {
		response["active_block"] = utils.ToSessionBlockDTO(*active)
	}

	return c.JSON(response)
}

// GetBlocks lists the customer's session blocks, newest first.
func (sc *SessionController) GetBlocks(c *fiber.Ctx) error {
	user, err := middleware.GetCurrentUser(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "User not found"})
	}

	customer, err := resolveCustomer(c, user)
	if err != nil {
		return err
	}

	activeOnly := c.QueryBool("active_only", false)
	blocks, err := sc.ledger.Store().ListBlocks(customer.ID, customer.StudioID, activeOnly)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to fetch session blocks"})
	}

	return c.JSON(fiber.Map{
		"blocks": utils.ToSessionBlockDTOs(blocks),
		"total":  len(blocks),
	})
}

// GetTransactions lists the audit trail of one block.
func (sc *SessionController) GetTransactions(c *fiber.Ctx) error {
	user, err := middleware.GetCurrentUser(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "User not found"})
	}

	blockID, err := c.ParamsInt("id")
	if err != nil || blockID <= 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid block ID"})
	}

	block, err := sc.ledger.Store().GetBlock(database.DB, uint(blockID), false)
	if err != nil {
		return respondServiceError(c, err)
	}
	if user.Role == "customer" && block.CustomerID != user.ID {
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": "Insufficient permissions"})
	}
	if user.Role == "studio_owner" && block.StudioID != user.StudioID {
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": "Insufficient permissions"})
	}

	limit := c.QueryInt("limit", 100)
	transactions, err := sc.ledger.Store().ListTransactions(uint(blockID), limit)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to fetch transactions"})
	}

	return c.JSON(fiber.Map{
		"block":        utils.ToSessionBlockDTO(*block),
		"transactions": transactions,
		"total":        len(transactions),
	})
}

// AddSessions books a package purchase or top-up onto the customer's
// ledger (staff only). The count must match one of the studio's
// configured package sizes unless force is set.
func (sc *SessionController) AddSessions(c *fiber.Ctx) error {
	user, err := middleware.GetCurrentUser(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "User not found"})
	}

	var req struct {
		CustomerID uint   `json:"customer_id"`
		Count      int    `json:"count"`
		Notes      string `json:"notes"`
		Force      bool   `json:"force"`
	}
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
	}

	var customer models.User
	if err := database.DB.First(&customer, req.CustomerID).Error; err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Customer not found"})
	}
	if user.Role == "studio_owner" && customer.StudioID != user.StudioID {
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": "Customer belongs to another studio"})
	}

	var studio models.Studio
	if err := database.DB.First(&studio, customer.StudioID).Error; err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Studio not found"})
	}
	if !req.Force {
		sizes := utils.ParsePackageSizes(studio.TopupPackageSizes)
		valid := false
		for _, size := range sizes {
			if req.Count == size {
				valid = true
				break
			}
		}
		if !valid {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error":         "Count does not match a configured package size",
				"package_sizes": sizes,
			})
		}
	}

	result, err := sc.ledger.AddSessions(customer.ID, customer.StudioID, req.Count, user.ID, req.Notes)
	if err != nil {
		return respondServiceError(c, err)
	}

	middleware.LogActivity(c, "CREATE", "sessions", result.SessionID, fiber.Map{
		"customer_id": customer.ID,
		"count":       req.Count,
	})

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"message":            "Sessions added successfully",
		"session_id":         result.SessionID,
		"transaction_id":     result.TransactionID,
		"remaining_sessions": result.RemainingSessions,
	})
}

// DeactivateBlock retires a block without deleting it (staff only).
func (sc *SessionController) DeactivateBlock(c *fiber.Ctx) error {
	user, err := middleware.GetCurrentUser(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "User not found"})
	}

	blockID, err := c.ParamsInt("id")
	if err != nil || blockID <= 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid block ID"})
	}

	block, err := sc.ledger.Store().GetBlock(database.DB, uint(blockID), false)
	if err != nil {
		return respondServiceError(c, err)
	}
	if user.Role == "studio_owner" && block.StudioID != user.StudioID {
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": "Insufficient permissions"})
	}

	var req struct {
		Reason string `json:"reason"`
	}
	_ = c.BodyParser(&req)

	if err := sc.ledger.DeactivateBlock(uint(blockID), user.ID, req.Reason); err != nil {
		return respondServiceError(c, err)
	}

	middleware.LogActivity(c, "UPDATE", "sessions", uint(blockID), fiber.Map{"action": "deactivate"})

	return c.JSON(fiber.Map{"message": "Block deactivated"})
}

// UpdateBlockNotes edits the free-text notes of a block (staff only).
// The edit is recorded as a transaction so the trail stays complete.
func (sc *SessionController) UpdateBlockNotes(c *fiber.Ctx) error {
	user, err := middleware.GetCurrentUser(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "User not found"})
	}

	blockID, err := c.ParamsInt("id")
	if err != nil || blockID <= 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid block ID"})
	}

	block, err := sc.ledger.Store().GetBlock(database.DB, uint(blockID), false)
	if err != nil {
		return respondServiceError(c, err)
	}
	if user.Role == "studio_owner" && block.StudioID != user.StudioID {
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": "Insufficient permissions"})
	}

	var req struct {
		Notes string `json:"notes"`
	}
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
	}

	if err := sc.ledger.EditBlockNotes(uint(blockID), user.ID, req.Notes); err != nil {
		return respondServiceError(c, err)
	}

	middleware.LogActivity(c, "UPDATE", "sessions", uint(blockID), fiber.Map{"action": "edit_notes"})

	return c.JSON(fiber.Map{"message": "Block notes updated"})
}
