package handlers

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"

	"studiomanager_go/config"
	"studiomanager_go/models"
	"studiomanager_go/services"
	"studiomanager_go/services/ledger"

	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// BookingWebhookHandler accepts booking requests from external
// collaborators (website forms, the phone bridge). Every request is
// authenticated with an HMAC signature over the raw body and turns
// into a lead; requests carrying a known customer also get a pending
// appointment.
type BookingWebhookHandler struct {
	DB           *gorm.DB
	appointments *services.AppointmentService
	secret       string
}

// bookingRequest is the wire format external partners send.
type bookingRequest struct {
	StudioCode      string `json:"studio_code"`
	Name            string `json:"name"`
	Phone           string `json:"phone"`
	Email           string `json:"email"`
	Source          string `json:"source"` // web, phone
	CustomerID      uint   `json:"customer_id,omitempty"`
	AppointmentDate string `json:"appointment_date,omitempty"`
	StartTime       string `json:"start_time,omitempty"`
	EndTime         string `json:"end_time,omitempty"`
	Notes           string `json:"notes,omitempty"`
}

func NewBookingWebhookHandler(db *gorm.DB) *BookingWebhookHandler {
	secret := config.AppConfig.WebhookSecret
	if secret == "" {
		logrus.Warn("WEBHOOK_SECRET not set: booking webhook disabled")
	}

	return &BookingWebhookHandler{
		DB:           db,
		appointments: services.NewAppointmentService(db, ledger.NewService(db)),
		secret:       secret,
	}
}

// Handle processes one signed booking request.
func (h *BookingWebhookHandler) Handle(c *fiber.Ctx) error {
	if h.secret == "" {
		return c.SendStatus(fiber.StatusServiceUnavailable)
	}

	signature := c.Get("X-Booking-Signature")
	if signature == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Missing signature header"})
	}
	if !validateSignature(h.secret, c.Body(), signature) {
		logrus.Warn("Booking webhook rejected: signature mismatch")
		return c.SendStatus(fiber.StatusUnauthorized)
	}

	var req bookingRequest
	if err := json.Unmarshal(c.Body(), &req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid JSON body"})
	}
	if req.StudioCode == "" || req.Name == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "studio_code and name are required"})
	}

	var studio models.Studio
	if err := h.DB.Where("code = ? AND active = ?", req.StudioCode, true).First(&studio).Error; err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Unknown studio"})
	}

	source := req.Source
	if source != "phone" {
		source = "web"
	}

	lead := models.Lead{
		StudioID: studio.ID,
		Name:     req.Name,
		Phone:    req.Phone,
		Email:    req.Email,
		Source:   source,
		Status:   "new",
		Notes:    req.Notes,
	}
	if err := h.DB.Create(&lead).Error; err != nil {
		logrus.WithError(err).Error("Booking webhook failed to create lead")
		return c.SendStatus(fiber.StatusInternalServerError)
	}

	response := fiber.Map{
		"message": "Booking request received",
		"lead_id": lead.ID,
	}

	// Known customers with a full slot get a pending appointment too.
	if req.CustomerID != 0 && req.AppointmentDate != "" && req.StartTime != "" && req.EndTime != "" {
		var customer models.User
		err := h.DB.Where("id = ? AND studio_id = ? AND role = ?", req.CustomerID, studio.ID, "customer").
			First(&customer).Error
		if err == nil {
			input := services.AppointmentInput{
				StudioID:        studio.ID,
				CustomerID:      customer.ID,
				AppointmentDate: req.AppointmentDate,
				StartTime:       req.StartTime,
				EndTime:         req.EndTime,
				Notes:           req.Notes,
			}
			appointment, err := h.appointments.CreateAppointment(&input, &customer)
			if err != nil {
				logrus.WithError(err).WithField("lead_id", lead.ID).
					Warn("Booking webhook could not create appointment; lead kept")
				response["appointment_error"] = err.Error()
			} else {
				h.DB.Model(&lead).Update("status", "trial_booked")
				response["appointment_id"] = appointment.ID
				response["appointment_status"] = appointment.Status
			}
		}
	}

	logrus.WithFields(logrus.Fields{
		"lead_id":   lead.ID,
		"studio_id": studio.ID,
		"source":    source,
	}).Info("Booking webhook processed")

	return c.Status(fiber.StatusCreated).JSON(response)
}

func computeSignature(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

func validateSignature(secret string, body []byte, signature string) bool {
	expected := computeSignature(secret, body)
	return hmac.Equal([]byte(expected), []byte(signature))
}
