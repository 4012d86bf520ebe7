package controllers

import (
	"studiomanager_go/database"
	"studiomanager_go/middleware"
	"studiomanager_go/models"
	"studiomanager_go/services"
	"studiomanager_go/services/ledger"
	"studiomanager_go/utils"

	"github.com/gofiber/fiber/v2"
)

type AppointmentController struct {
	service *services.AppointmentService
}

func NewAppointmentController() *AppointmentController {
	return &AppointmentController{
		service: services.NewAppointmentService(database.DB, ledger.NewService(database.DB)),
	}
}

// GetAppointments lists appointments with optional filters. Customers
// only ever see their own; studio owners are pinned to their studio.
func (ac *AppointmentController) GetAppointments(c *fiber.Ctx) error {
	user, err := middleware.GetCurrentUser(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "User not found"})
	}

	query := database.DB.Model(&models.Appointment{}).
		Preload("Customer").Preload("AppointmentType")

	switch user.Role {
	case "customer":
		query = query.Where("customer_id = ?", user.ID)
	case "studio_owner":
		query = query.Where("studio_id = ?", user.StudioID)
	default:
		if studioID := c.QueryInt("studio_id"); studioID > 0 {
			query = query.Where("studio_id = ?", studioID)
		}
	}

	if customerID := c.QueryInt("customer_id"); customerID > 0 && user.Role != "customer" {
		query = query.Where("customer_id = ?", customerID)
	}

	if status := c.Query("status"); status != "" {
		normalized, ok := models.NormalizeStatus(status)
		if !ok {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Unknown status value"})
		}
		query = query.Where("status = ?", normalized)
	}

	if from := c.Query("from"); from != "" {
		date, err := utils.ParseDate(from)
		if err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid from date"})
		}
		query = query.Where("appointment_date >= ?", date)
	}
	if to := c.Query("to"); to != "" {
		date, err := utils.ParseDate(to)
		if err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid to date"})
		}
		query = query.Where("appointment_date <= ?", date)
	}

	var appointments []models.Appointment
	if err := query.Order("appointment_date ASC, start_time ASC").Find(&appointments).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to fetch appointments"})
	}

	return c.JSON(fiber.Map{
		"appointments": utils.ToAppointmentDTOs(appointments),
		"total":        len(appointments),
	})
}

// GetCalendarDay returns one studio day for the booking calendar.
func (ac *AppointmentController) GetCalendarDay(c *fiber.Ctx) error {
	user, err := middleware.GetCurrentUser(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "User not found"})
	}

	date, err := utils.ParseDate(c.Query("date"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid or missing date"})
	}

	studioID := user.StudioID
	if user.Role == "manager" {
		if qs := c.QueryInt("studio_id"); qs > 0 {
			studioID = uint(qs)
		}
	}

	var appointments []models.Appointment
	err = database.DB.Where("studio_id = ? AND appointment_date = ?", studioID, date).
		Where("status NOT IN ?", []string{models.StatusCancelled}).
		Preload("Customer").Preload("AppointmentType").
		Order("start_time ASC").
		Find(&appointments).Error
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to fetch appointments"})
	}

	return c.JSON(fiber.Map{
		"date":         date.Format(utils.DateLayout),
		"studio_id":    studioID,
		"appointments": utils.ToAppointmentDTOs(appointments),
	})
}

// GetAppointment returns one appointment by id.
func (ac *AppointmentController) GetAppointment(c *fiber.Ctx) error {
	user, err := middleware.GetCurrentUser(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "User not found"})
	}

	id, err := c.ParamsInt("id")
	if err != nil || id <= 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid appointment ID"})
	}

	appointment, err := ac.service.GetAppointment(uint(id))
	if err != nil {
		return respondServiceError(c, err)
	}
	if !canAccessAppointment(user, appointment) {
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": "Insufficient permissions"})
	}

	database.DB.Preload("Customer").Preload("AppointmentType").First(appointment, appointment.ID)

	return c.JSON(fiber.Map{"appointment": utils.ToAppointmentDTO(*appointment)})
}

// CreateAppointment books a new appointment. Customers can only book for
// themselves at their own studio.
func (ac *AppointmentController) CreateAppointment(c *fiber.Ctx) error {
	user, err := middleware.GetCurrentUser(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "User not found"})
	}

	var input services.AppointmentInput
	if err := c.BodyParser(&input); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
	}

	if user.Role == "customer" {
		input.CustomerID = user.ID
		input.StudioID = user.StudioID
	} else if user.Role == "studio_owner" {
		input.StudioID = user.StudioID
	}

	appointment, err := ac.service.CreateAppointment(&input, user)
	if err != nil {
		return respondServiceError(c, err)
	}

	middleware.LogActivity(c, "CREATE", "appointments", appointment.ID, fiber.Map{
		"customer_id": appointment.CustomerID,
		"date":        appointment.AppointmentDate.Format(utils.DateLayout),
		"status":      appointment.Status,
	})

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"message":     "Appointment created successfully",
		"appointment": utils.ToAppointmentDTO(*appointment),
	})
}

// UpdateAppointment reschedules or annotates an appointment.
func (ac *AppointmentController) UpdateAppointment(c *fiber.Ctx) error {
	user, err := middleware.GetCurrentUser(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "User not found"})
	}

	id, err := c.ParamsInt("id")
	if err != nil || id <= 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid appointment ID"})
	}

	existing, err := ac.service.GetAppointment(uint(id))
	if err != nil {
		return respondServiceError(c, err)
	}
	if !canAccessAppointment(user, existing) {
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": "Insufficient permissions"})
	}

	var input services.AppointmentInput
	if err := c.BodyParser(&input); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
	}

	appointment, err := ac.service.UpdateAppointment(uint(id), &input, user)
	if err != nil {
		return respondServiceError(c, err)
	}

	middleware.LogActivity(c, "UPDATE", "appointments", appointment.ID, nil)

	return c.JSON(fiber.Map{
		"message":     "Appointment updated successfully",
		"appointment": utils.ToAppointmentDTO(*appointment),
	})
}

// ConfirmAppointment confirms a pending appointment (staff only).
func (ac *AppointmentController) ConfirmAppointment(c *fiber.Ctx) error {
	id, err := c.ParamsInt("id")
	if err != nil || id <= 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid appointment ID"})
	}

	appointment, err := ac.service.ConfirmAppointment(uint(id))
	if err != nil {
		return respondServiceError(c, err)
	}

	middleware.LogActivity(c, "UPDATE", "appointments", appointment.ID, fiber.Map{"status": appointment.Status})

	return c.JSON(fiber.Map{
		"message":     "Appointment confirmed",
		"appointment": utils.ToAppointmentDTO(*appointment),
	})
}

// CancelAppointment cancels a pending or confirmed appointment. The
// advance-notice window applies to customers only.
func (ac *AppointmentController) CancelAppointment(c *fiber.Ctx) error {
	user, err := middleware.GetCurrentUser(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "User not found"})
	}

	id, err := c.ParamsInt("id")
	if err != nil || id <= 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid appointment ID"})
	}

	existing, err := ac.service.GetAppointment(uint(id))
	if err != nil {
		return respondServiceError(c, err)
	}
	if !canAccessAppointment(user, existing) {
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": "Insufficient permissions"})
	}

	var req struct {
		Reason string `json:"reason"`
	}
	_ = c.BodyParser(&req)

	result, err := ac.service.CancelAppointment(uint(id), user, req.Reason)
	if err != nil {
		return respondServiceError(c, err)
	}

	middleware.LogActivity(c, "UPDATE", "appointments", result.Appointment.ID, fiber.Map{
		"status":           result.Appointment.Status,
		"session_restored": result.SessionRestored,
	})

	return c.JSON(fiber.Map{
		"message":          "Appointment cancelled",
		"appointment":      utils.ToAppointmentDTO(*result.Appointment),
		"session_restored": result.SessionRestored,
	})
}

// CompleteAppointment marks a confirmed appointment completed and deducts
// one session credit (staff only).
func (ac *AppointmentController) CompleteAppointment(c *fiber.Ctx) error {
	user, err := middleware.GetCurrentUser(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "User not found"})
	}

	id, err := c.ParamsInt("id")
	if err != nil || id <= 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid appointment ID"})
	}

	result, err := ac.service.CompleteAppointment(uint(id), user.ID)
	if err != nil {
		return respondServiceError(c, err)
	}

	middleware.LogActivity(c, "UPDATE", "appointments", result.Appointment.ID, fiber.Map{
		"status":           result.Appointment.Status,
		"session_deducted": result.SessionDeducted,
	})

	return c.JSON(fiber.Map{
		"message":            "Appointment completed",
		"appointment":        utils.ToAppointmentDTO(*result.Appointment),
		"session_deducted":   result.SessionDeducted,
		"remaining_sessions": result.RemainingSessions,
	})
}

// MarkNoShow flags a confirmed appointment the customer missed (staff only).
func (ac *AppointmentController) MarkNoShow(c *fiber.Ctx) error {
	id, err := c.ParamsInt("id")
	if err != nil || id <= 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid appointment ID"})
	}

	appointment, err := ac.service.MarkNoShow(uint(id))
	if err != nil {
		return respondServiceError(c, err)
	}

	middleware.LogActivity(c, "UPDATE", "appointments", appointment.ID, fiber.Map{"status": appointment.Status})

	return c.JSON(fiber.Map{
		"message":     "Appointment marked as no-show",
		"appointment": utils.ToAppointmentDTO(*appointment),
	})
}

// CheckConflicts previews whether a slot would collide before booking.
func (ac *AppointmentController) CheckConflicts(c *fiber.Ctx) error {
	user, err := middleware.GetCurrentUser(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "User not found"})
	}

	var req struct {
		StudioID        uint   `json:"studio_id"`
		AppointmentDate string `json:"appointment_date"`
		StartTime       string `json:"start_time"`
		EndTime         string `json:"end_time"`
		ExcludeID       *uint  `json:"exclude_id"`
	}
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
	}
	if user.Role != "manager" {
		req.StudioID = user.StudioID
	}

	date, err := utils.ParseDate(req.AppointmentDate)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid appointment date"})
	}
	startMin, err := utils.ParseClock(req.StartTime)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid start time"})
	}
	endMin, err := utils.ParseClock(req.EndTime)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid end time"})
	}

	conflict, err := ac.service.CheckConflicts(req.StudioID, date, startMin, endMin, req.ExcludeID)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Conflict check failed"})
	}

	return c.JSON(fiber.Map{"conflict": conflict})
}

// RunSweep triggers the past-appointment sweep on demand (managers only;
// the cron job covers normal operation).
func (ac *AppointmentController) RunSweep(c *fiber.Ctx) error {
	result, err := ac.service.SweepPastConfirmed()
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Sweep failed"})
	}

	middleware.LogActivity(c, "UPDATE", "appointments", 0, fiber.Map{
		"action":            "sweep",
		"completed":         result.Completed,
		"deductions_failed": result.DeductionsFailed,
	})

	return c.JSON(fiber.Map{
		"message": "Sweep finished",
		"result":  result,
	})
}

// canAccessAppointment enforces the visibility rules shared by the
// detail and mutation endpoints.
func canAccessAppointment(user *models.User, appointment *models.Appointment) bool {
	switch user.Role {
	case "manager":
		return true
	case "studio_owner":
		return appointment.StudioID == user.StudioID
	default:
		return appointment.CustomerID == user.ID
	}
}
