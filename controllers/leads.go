package controllers

import (
	"strings"
	"studiomanager_go/database"
	"studiomanager_go/middleware"
	"studiomanager_go/models"
	"studiomanager_go/utils"
	"time"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"
)

// splitName divides a free-form name into first and last part.
func splitName(name string) [2]string {
	parts := strings.Fields(name)
	if len(parts) == 0 {
		return [2]string{"", ""}
	}
	if len(parts) == 1 {
		return [2]string{parts[0], ""}
	}
	return [2]string{parts[0], strings.Join(parts[1:], " ")}
}

// LeadController is the small CRM behind the booking funnel: walk-ins,
// phone enquiries and web form submissions before they become customers.
type LeadController struct{}

// GetLeads lists leads with optional status/source filters.
func (lc *LeadController) GetLeads(c *fiber.Ctx) error {
	user, err := middleware.GetCurrentUser(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "User not found"})
	}

	query := database.DB.Model(&models.Lead{}).Preload("AssignedTo")
	if user.Role == "studio_owner" {
		query = query.Where("studio_id = ?", user.StudioID)
	} else if studioID := c.QueryInt("studio_id"); studioID > 0 {
		query = query.Where("studio_id = ?", studioID)
	}

	if status := c.Query("status"); status != "" {
		if !utils.IsValidLeadStatus(status) {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid lead status"})
		}
		query = query.Where("status = ?", status)
	}
	if source := c.Query("source"); source != "" {
		query = query.Where("source = ?", source)
	}

	var leads []models.Lead
	if err := query.Order("created_at DESC").Find(&leads).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to fetch leads"})
	}

	return c.JSON(fiber.Map{
		"leads": leads,
		"total": len(leads),
	})
}

// CreateLead records a new enquiry.
func (lc *LeadController) CreateLead(c *fiber.Ctx) error {
	user, err := middleware.GetCurrentUser(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "User not found"})
	}

	var req struct {
		StudioID uint   `json:"studio_id"`
		Name     string `json:"name"`
		Phone    string `json:"phone"`
		Email    string `json:"email"`
		Source   string `json:"source"`
		Notes    string `json:"notes"`
	}
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
	}
	if user.Role == "studio_owner" {
		req.StudioID = user.StudioID
	}
	if req.StudioID == 0 || req.Name == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Studio and name are required"})
	}
	if req.Source == "" {
		req.Source = "manual"
	}

	lead := models.Lead{
		StudioID: req.StudioID,
		Name:     utils.SanitizeString(req.Name),
		Phone:    req.Phone,
		Email:    req.Email,
		Source:   req.Source,
		Status:   "new",
		Notes:    req.Notes,
	}
	if err := database.DB.Create(&lead).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to create lead"})
	}

	middleware.LogActivity(c, "CREATE", "leads", lead.ID, fiber.Map{"source": lead.Source})

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"message": "Lead created successfully",
		"lead":    lead,
	})
}

// UpdateLead moves a lead through the funnel or reassigns it.
func (lc *LeadController) UpdateLead(c *fiber.Ctx) error {
	user, err := middleware.GetCurrentUser(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "User not found"})
	}

	id, err := c.ParamsInt("id")
	if err != nil || id <= 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid lead ID"})
	}

	var lead models.Lead
	if err := database.DB.First(&lead, id).Error; err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Lead not found"})
	}
	if user.Role == "studio_owner" && lead.StudioID != user.StudioID {
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": "Lead belongs to another studio"})
	}

	var req struct {
		Status           *string `json:"status"`
		Notes            *string `json:"notes"`
		AssignedToUserID *uint   `json:"assigned_to_user_id"`
		Contacted        bool    `json:"contacted"`
	}
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
	}

	updates := map[string]interface{}{}
	if req.Status != nil {
		if !utils.IsValidLeadStatus(*req.Status) {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid lead status"})
		}
		updates["status"] = *req.Status
	}
	if req.Notes != nil {
		updates["notes"] = *req.Notes
	}
	if req.AssignedToUserID != nil {
		updates["assigned_to_user_id"] = *req.AssignedToUserID
	}
	if req.Contacted {
		updates["last_contact_at"] = time.Now()
	}
	if len(updates) == 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "No fields to update"})
	}

	if err := database.DB.Model(&lead).Updates(updates).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to update lead"})
	}

	middleware.LogActivity(c, "UPDATE", "leads", lead.ID, updates)

	return c.JSON(fiber.Map{
		"message": "Lead updated successfully",
		"lead":    lead,
	})
}

// ConvertLead turns a lead into a customer account with a generated
// password the studio hands over out of band.
func (lc *LeadController) ConvertLead(c *fiber.Ctx) error {
	user, err := middleware.GetCurrentUser(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "User not found"})
	}

	id, err := c.ParamsInt("id")
	if err != nil || id <= 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid lead ID"})
	}

	var lead models.Lead
	if err := database.DB.First(&lead, id).Error; err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Lead not found"})
	}
	if user.Role == "studio_owner" && lead.StudioID != user.StudioID {
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": "Lead belongs to another studio"})
	}
	if lead.Status == "converted" {
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{"error": "Lead already converted"})
	}

	var req struct {
		Username string `json:"username"`
	}
	_ = c.BodyParser(&req)
	if req.Username == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Username is required"})
	}

	var existing models.User
	if err := database.DB.Where("username = ?", req.Username).First(&existing).Error; err == nil {
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{"error": "Username already exists"})
	}

	password, err := utils.GenerateRandomString(12)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to generate password"})
	}
	hashed, err := utils.HashPassword(password)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to hash password"})
	}

	names := splitName(lead.Name)
	customer := models.User{
		Username:  req.Username,
		Password:  hashed,
		Email:     lead.Email,
		Phone:     lead.Phone,
		FirstName: names[0],
		LastName:  names[1],
		Role:      "customer",
		StudioID:  lead.StudioID,
		Status:    "active",
	}

	err = database.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&customer).Error; err != nil {
			return err
		}
		return tx.Model(&lead).Update("status", "converted").Error
	})
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to convert lead"})
	}

	middleware.LogActivity(c, "CREATE", "customers", customer.ID, fiber.Map{"from_lead": lead.ID})

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"message":  "Lead converted successfully",
		"customer": customer,
		"password": password,
	})
}
