package controllers

import (
	"encoding/json"
	"studiomanager_go/database"
	"studiomanager_go/middleware"
	"studiomanager_go/models"
	"studiomanager_go/utils"

	"github.com/gofiber/fiber/v2"
)

// StudioController manages studio tenants and their booking settings.
type StudioController struct{}

// GetStudios lists studios (managers see all, owners their own).
func (sc *StudioController) GetStudios(c *fiber.Ctx) error {
	user, err := middleware.GetCurrentUser(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "User not found"})
	}

	query := database.DB.Model(&models.Studio{})
	if user.Role != "manager" {
		query = query.Where("id = ?", user.StudioID)
	}
	if c.QueryBool("active_only", false) {
		query = query.Where("active = ?", true)
	}

	var studios []models.Studio
	if err := query.Order("name ASC").Find(&studios).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to fetch studios"})
	}

	return c.JSON(fiber.Map{
		"studios": studios,
		"total":   len(studios),
	})
}

// GetStudio returns one studio with its appointment types.
func (sc *StudioController) GetStudio(c *fiber.Ctx) error {
	id, err := c.ParamsInt("id")
	if err != nil || id <= 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid studio ID"})
	}

	var studio models.Studio
	if err := database.DB.Preload("AppointmentTypes").First(&studio, id).Error; err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Studio not found"})
	}

	// Resolved top-up sizes, including the platform default when the
	// studio never configured its own. AddSessions enforces the same set.
	return c.JSON(fiber.Map{
		"studio":              studio,
		"topup_package_sizes": utils.ParsePackageSizes(studio.TopupPackageSizes),
	})
}

// CreateStudio registers a new tenant (managers only).
func (sc *StudioController) CreateStudio(c *fiber.Ctx) error {
	var req struct {
		Name     string `json:"name"`
		Code     string `json:"code"`
		Address  string `json:"address"`
		Phone    string `json:"phone"`
		Email    string `json:"email"`
		Timezone string `json:"timezone"`
	}
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
	}
	if req.Name == "" || req.Code == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Name and code are required"})
	}

	var existing models.Studio
	if err := database.DB.Where("code = ?", req.Code).First(&existing).Error; err == nil {
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{"error": "Studio code already exists"})
	}

	studio := models.Studio{
		Name:    req.Name,
		Code:    req.Code,
		Address: req.Address,
		Phone:   req.Phone,
		Email:   req.Email,
		Active:  true,
	}
	if req.Timezone != "" {
		studio.Timezone = req.Timezone
	}

	if err := database.DB.Create(&studio).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to create studio"})
	}

	middleware.LogActivity(c, "CREATE", "studios", studio.ID, fiber.Map{"code": studio.Code})

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"message": "Studio created successfully",
		"studio":  studio,
	})
}

// UpdateSettings edits the studio's booking policy: cancellation notice,
// top-up package sizes, timezone and contact data.
func (sc *StudioController) UpdateSettings(c *fiber.Ctx) error {
	user, err := middleware.GetCurrentUser(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "User not found"})
	}

	id, err := c.ParamsInt("id")
	if err != nil || id <= 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid studio ID"})
	}
	if user.Role == "studio_owner" && user.StudioID != uint(id) {
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": "Insufficient permissions"})
	}

	var studio models.Studio
	if err := database.DB.First(&studio, id).Error; err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Studio not found"})
	}

	var req struct {
		Name                     *string `json:"name"`
		Address                  *string `json:"address"`
		Phone                    *string `json:"phone"`
		Email                    *string `json:"email"`
		Timezone                 *string `json:"timezone"`
		CancellationAdvanceHours *int    `json:"cancellation_advance_hours"`
		TopupPackageSizes        []int   `json:"topup_package_sizes"`
		Active                   *bool   `json:"active"`
	}
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
	}

	updates := map[string]interface{}{}
	if req.Name != nil {
		updates["name"] = *req.Name
	}
	if req.Address != nil {
		updates["address"] = *req.Address
	}
	if req.Phone != nil {
		updates["phone"] = *req.Phone
	}
	if req.Email != nil {
		updates["email"] = *req.Email
	}
	if req.Timezone != nil {
		updates["timezone"] = *req.Timezone
	}
	if req.CancellationAdvanceHours != nil {
		if *req.CancellationAdvanceHours < 0 {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "cancellation_advance_hours must not be negative"})
		}
		updates["cancellation_advance_hours"] = *req.CancellationAdvanceHours
	}
	if req.TopupPackageSizes != nil {
		for _, size := range req.TopupPackageSizes {
			if size <= 0 {
				return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Package sizes must be positive"})
			}
		}
		encoded, err := json.Marshal(req.TopupPackageSizes)
		if err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid package sizes"})
		}
		updates["topup_package_sizes"] = models.JSON(encoded)
	}
	if req.Active != nil {
		if user.Role != "manager" {
			return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": "Only managers can toggle studio activation"})
		}
		updates["active"] = *req.Active
	}
	if len(updates) == 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "No fields to update"})
	}

	if err := database.DB.Model(&studio).Updates(updates).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to update studio"})
	}

	database.DB.First(&studio, studio.ID)

	middleware.LogActivity(c, "UPDATE", "studios", studio.ID, fiber.Map{"action": "settings"})

	return c.JSON(fiber.Map{
		"message": "Studio settings updated",
		"studio":  studio,
	})
}

// GetAppointmentTypes lists the bookable service types of a studio.
func (sc *StudioController) GetAppointmentTypes(c *fiber.Ctx) error {
	id, err := c.ParamsInt("id")
	if err != nil || id <= 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid studio ID"})
	}

	var types []models.AppointmentType
	if err := database.DB.Where("studio_id = ? AND active = ?", id, true).
		Order("name ASC").Find(&types).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to fetch appointment types"})
	}

	return c.JSON(fiber.Map{"appointment_types": types})
}

// CreateAppointmentType adds a bookable service type (staff only).
func (sc *StudioController) CreateAppointmentType(c *fiber.Ctx) error {
	user, err := middleware.GetCurrentUser(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "User not found"})
	}

	id, err := c.ParamsInt("id")
	if err != nil || id <= 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid studio ID"})
	}
	if user.Role == "studio_owner" && user.StudioID != uint(id) {
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": "Insufficient permissions"})
	}

	var req struct {
		Name            string `json:"name"`
		DurationMinutes int    `json:"duration_minutes"`
		Color           string `json:"color"`
	}
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
	}
	if req.Name == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Name is required"})
	}
	if req.DurationMinutes <= 0 {
		req.DurationMinutes = 60
	}

	appointmentType := models.AppointmentType{
		StudioID:        uint(id),
		Name:            req.Name,
		DurationMinutes: req.DurationMinutes,
		Color:           req.Color,
		Active:          true,
	}
	if err := database.DB.Create(&appointmentType).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to create appointment type"})
	}

	middleware.LogActivity(c, "CREATE", "appointment_types", appointmentType.ID, fiber.Map{"name": appointmentType.Name})

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"message":          "Appointment type created",
		"appointment_type": appointmentType,
	})
}

// UpdateAppointmentType edits or deactivates a service type (staff only).
func (sc *StudioController) UpdateAppointmentType(c *fiber.Ctx) error {
	user, err := middleware.GetCurrentUser(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "User not found"})
	}

	typeID, err := c.ParamsInt("type_id")
	if err != nil || typeID <= 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid appointment type ID"})
	}

	var appointmentType models.AppointmentType
	if err := database.DB.First(&appointmentType, typeID).Error; err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Appointment type not found"})
	}
	if user.Role == "studio_owner" && appointmentType.StudioID != user.StudioID {
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": "Insufficient permissions"})
	}

	var req struct {
		Name            *string `json:"name"`
		DurationMinutes *int    `json:"duration_minutes"`
		Color           *string `json:"color"`
		Active          *bool   `json:"active"`
	}
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
	}

	updates := map[string]interface{}{}
	if req.Name != nil {
		updates["name"] = *req.Name
	}
	if req.DurationMinutes != nil && *req.DurationMinutes > 0 {
		updates["duration_minutes"] = *req.DurationMinutes
	}
	if req.Color != nil {
		updates["color"] = *req.Color
	}
	if req.Active != nil {
		updates["active"] = *req.Active
	}
	if len(updates) == 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "No fields to update"})
	}

	if err := database.DB.Model(&appointmentType).Updates(updates).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to update appointment type"})
	}

	middleware.LogActivity(c, "UPDATE", "appointment_types", appointmentType.ID, nil)

	return c.JSON(fiber.Map{
		"message":          "Appointment type updated",
		"appointment_type": appointmentType,
	})
}
