package controllers

import (
	"studiomanager_go/database"
	"studiomanager_go/middleware"
	"studiomanager_go/models"
	"studiomanager_go/services/ledger"
	"studiomanager_go/utils"

	"github.com/gofiber/fiber/v2"
)

// CustomerController manages the customer directory of a studio.
type CustomerController struct{}

// GetCustomers lists customers with optional search. Studio owners are
// pinned to their own studio.
func (cc *CustomerController) GetCustomers(c *fiber.Ctx) error {
	user, err := middleware.GetCurrentUser(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "User not found"})
	}

	query := database.DB.Model(&models.User{}).Where("role = ?", "customer")
	if user.Role == "studio_owner" {
		query = query.Where("studio_id = ?", user.StudioID)
	} else if studioID := c.QueryInt("studio_id"); studioID > 0 {
		query = query.Where("studio_id = ?", studioID)
	}

	if status := c.Query("status"); status != "" {
		if !utils.IsValidUserStatus(status) {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid status"})
		}
		query = query.Where("status = ?", status)
	}

	if search := utils.SanitizeString(c.Query("search")); search != "" {
		like := "%" + search + "%"
		query = query.Where(
			"first_name LIKE ? OR last_name LIKE ? OR username LIKE ? OR email LIKE ? OR phone LIKE ?",
			like, like, like, like, like,
		)
	}

	page := c.QueryInt("page", 1)
	perPage := c.QueryInt("per_page", 50)
	if page < 1 {
		page = 1
	}
	if perPage < 1 || perPage > 200 {
		perPage = 50
	}

	var total int64
	query.Count(&total)

	var customers []models.User
	if err := query.Order("last_name ASC, first_name ASC").
		Offset((page - 1) * perPage).Limit(perPage).
		Find(&customers).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to fetch customers"})
	}

	return c.JSON(fiber.Map{
		"customers": customers,
		"total":     total,
		"page":      page,
		"per_page":  perPage,
	})
}

// GetCustomer returns one customer together with their session balance.
func (cc *CustomerController) GetCustomer(c *fiber.Ctx) error {
	user, err := middleware.GetCurrentUser(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "User not found"})
	}

	id, err := c.ParamsInt("id")
	if err != nil || id <= 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid customer ID"})
	}

	var customer models.User
	if err := database.DB.Where("role = ?", "customer").First(&customer, id).Error; err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Customer not found"})
	}
	if user.Role == "studio_owner" && customer.StudioID != user.StudioID {
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": "Customer belongs to another studio"})
	}

	balance, _ := ledger.NewService(database.DB).RemainingBalance(customer.ID, customer.StudioID)

	return c.JSON(fiber.Map{
		"customer":           customer,
		"remaining_sessions": balance,
	})
}

// UpdateCustomer edits contact data and notes.
func (cc *CustomerController) UpdateCustomer(c *fiber.Ctx) error {
	user, err := middleware.GetCurrentUser(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "User not found"})
	}

	id, err := c.ParamsInt("id")
	if err != nil || id <= 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid customer ID"})
	}

	var customer models.User
	if err := database.DB.Where("role = ?", "customer").First(&customer, id).Error; err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Customer not found"})
	}
	if user.Role == "studio_owner" && customer.StudioID != user.StudioID {
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": "Customer belongs to another studio"})
	}

	var req struct {
		Email     *string `json:"email"`
		Phone     *string `json:"phone"`
		FirstName *string `json:"first_name"`
		LastName  *string `json:"last_name"`
		Notes     *string `json:"notes"`
		Status    *string `json:"status"`
	}
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
	}

	updates := map[string]interface{}{}
	if req.Email != nil {
		updates["email"] = *req.Email
	}
	if req.Phone != nil {
		updates["phone"] = *req.Phone
	}
	if req.FirstName != nil {
		updates["first_name"] = *req.FirstName
	}
	if req.LastName != nil {
		updates["last_name"] = *req.LastName
	}
	if req.Notes != nil {
		updates["notes"] = *req.Notes
	}
	if req.Status != nil {
		if !utils.IsValidUserStatus(*req.Status) {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid status"})
		}
		updates["status"] = *req.Status
	}
	if len(updates) == 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "No fields to update"})
	}

	if err := database.DB.Model(&customer).Updates(updates).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to update customer"})
	}

	middleware.LogActivity(c, "UPDATE", "customers", customer.ID, updates)

	return c.JSON(fiber.Map{
		"message":  "Customer updated successfully",
		"customer": customer,
	})
}

// DeactivateCustomer soft-disables an account; their history stays.
func (cc *CustomerController) DeactivateCustomer(c *fiber.Ctx) error {
	user, err := middleware.GetCurrentUser(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "User not found"})
	}

	id, err := c.ParamsInt("id")
	if err != nil || id <= 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid customer ID"})
	}

	var customer models.User
	if err := database.DB.Where("role = ?", "customer").First(&customer, id).Error; err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Customer not found"})
	}
	if user.Role == "studio_owner" && customer.StudioID != user.StudioID {
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": "Customer belongs to another studio"})
	}

	if err := database.DB.Model(&customer).Update("status", "inactive").Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to deactivate customer"})
	}

	middleware.LogActivity(c, "UPDATE", "customers", customer.ID, fiber.Map{"action": "deactivate"})

	return c.JSON(fiber.Map{"message": "Customer deactivated"})
}
