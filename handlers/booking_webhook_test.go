package handlers

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"studiomanager_go/config"
	"studiomanager_go/models"

	"github.com/gofiber/fiber/v2"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

const testWebhookSecret = "webhook-test-secret"

func newWebhookDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	err = db.AutoMigrate(
		&models.Studio{},
		&models.User{},
		&models.Lead{},
		&models.Appointment{},
		&models.CustomerSession{},
		&models.SessionTransaction{},
	)
	if err != nil {
		t.Fatalf("migrate test db: %v", err)
	}
	return db
}

func newWebhookApp(t *testing.T, db *gorm.DB, secret string) *fiber.App {
	t.Helper()

	prev := config.AppConfig
	config.AppConfig = &config.Config{WebhookSecret: secret}
	t.Cleanup(func() { config.AppConfig = prev })

	h := NewBookingWebhookHandler(db)
	app := fiber.New()
	app.Post("/webhooks/booking", h.Handle)
	return app
}

func seedWebhookStudio(t *testing.T, db *gorm.DB) *models.Studio {
	t.Helper()

	studio := models.Studio{
		Name:                     "EMS Studio Mitte",
		Code:                     "MITTE",
		Timezone:                 "UTC",
		CancellationAdvanceHours: 24,
		Active:                   true,
	}
	if err := db.Create(&studio).Error; err != nil {
		t.Fatalf("seed studio: %v", err)
	}
	return &studio
}

func postWebhook(t *testing.T, app *fiber.App, body []byte, signature string) (*http.Response, map[string]interface{}) {
	t.Helper()

	req := httptest.NewRequest(http.MethodPost, "/webhooks/booking", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if signature != "" {
		req.Header.Set("X-Booking-Signature", signature)
	}
	resp, err := app.Test(req, -1)
	if err != nil {
		t.Fatalf("webhook request: %v", err)
	}
	var payload map[string]interface{}
	json.NewDecoder(resp.Body).Decode(&payload)
	return resp, payload
}

func TestBookingWebhookSignature(t *testing.T) {
	db := newWebhookDB(t)
	app := newWebhookApp(t, db, testWebhookSecret)
	seedWebhookStudio(t, db)

	body := []byte(`{"studio_code":"MITTE","name":"Anna Schmidt","phone":"+4915112345678"}`)

	resp, _ := postWebhook(t, app, body, "")
	if resp.StatusCode != fiber.StatusBadRequest {
		t.Fatalf("missing signature: status = %d, want 400", resp.StatusCode)
	}

	resp, _ = postWebhook(t, app, body, computeSignature("wrong-secret", body))
	if resp.StatusCode != fiber.StatusUnauthorized {
		t.Fatalf("bad signature: status = %d, want 401", resp.StatusCode)
	}

	// Tampered body must not verify against a signature over the original.
	tampered := []byte(`{"studio_code":"MITTE","name":"Mallory","phone":"+4915112345678"}`)
	resp, _ = postWebhook(t, app, tampered, computeSignature(testWebhookSecret, body))
	if resp.StatusCode != fiber.StatusUnauthorized {
		t.Fatalf("tampered body: status = %d, want 401", resp.StatusCode)
	}

	var count int64
	db.Model(&models.Lead{}).Count(&count)
	if count != 0 {
		t.Fatalf("rejected requests created %d leads, want 0", count)
	}
}

func TestBookingWebhookCreatesLead(t *testing.T) {
	db := newWebhookDB(t)
	app := newWebhookApp(t, db, testWebhookSecret)
	studio := seedWebhookStudio(t, db)

	body := []byte(`{"studio_code":"MITTE","name":"Anna Schmidt","phone":"+4915112345678","email":"anna@example.com","source":"instagram"}`)
	resp, payload := postWebhook(t, app, body, computeSignature(testWebhookSecret, body))
	if resp.StatusCode != fiber.StatusCreated {
		t.Fatalf("status = %d, want 201", resp.StatusCode)
	}
	if payload["lead_id"] == nil {
		t.Fatal("response missing lead_id")
	}

	var lead models.Lead
	if err := db.First(&lead, uint(payload["lead_id"].(float64))).Error; err != nil {
		t.Fatalf("load lead: %v", err)
	}
	if lead.StudioID != studio.ID {
		t.Errorf("lead studio = %d, want %d", lead.StudioID, studio.ID)
	}
	if lead.Status != "new" {
		t.Errorf("lead status = %q, want new", lead.Status)
	}
	// Unknown sources collapse to web; only phone survives as-is.
	if lead.Source != "web" {
		t.Errorf("lead source = %q, want web", lead.Source)
	}
}

func TestBookingWebhookUnknownStudio(t *testing.T) {
	db := newWebhookDB(t)
	app := newWebhookApp(t, db, testWebhookSecret)
	seedWebhookStudio(t, db)

	body := []byte(`{"studio_code":"NOWHERE","name":"Anna Schmidt"}`)
	resp, _ := postWebhook(t, app, body, computeSignature(testWebhookSecret, body))
	if resp.StatusCode != fiber.StatusNotFound {
		t.Fatalf("status = %d, want 404", resp.StatusCode)
	}

	body = []byte(`{"studio_code":"MITTE","phone":"+4915112345678"}`)
	resp, _ = postWebhook(t, app, body, computeSignature(testWebhookSecret, body))
	if resp.StatusCode != fiber.StatusBadRequest {
		t.Fatalf("missing name: status = %d, want 400", resp.StatusCode)
	}
}

func TestBookingWebhookBooksKnownCustomer(t *testing.T) {
	db := newWebhookDB(t)
	app := newWebhookApp(t, db, testWebhookSecret)
	studio := seedWebhookStudio(t, db)

	customer := models.User{
		Username:  "anna.schmidt",
		Password:  "x",
		Email:     "anna@example.com",
		FirstName: "Anna",
		LastName:  "Schmidt",
		Role:      "customer",
		StudioID:  studio.ID,
		Status:    "active",
	}
	if err := db.Create(&customer).Error; err != nil {
		t.Fatalf("seed customer: %v", err)
	}

	date := time.Now().UTC().AddDate(0, 0, 3).Format("2006-01-02")
	body := []byte(fmt.Sprintf(
		`{"studio_code":"MITTE","name":"Anna Schmidt","source":"web","customer_id":%d,"appointment_date":"%s","start_time":"10:00","end_time":"11:00"}`,
		customer.ID, date,
	))
	resp, payload := postWebhook(t, app, body, computeSignature(testWebhookSecret, body))
	if resp.StatusCode != fiber.StatusCreated {
		t.Fatalf("status = %d, want 201 (body: %v)", resp.StatusCode, payload)
	}
	if payload["appointment_id"] == nil {
		t.Fatalf("response missing appointment_id: %v", payload)
	}

	var appointment models.Appointment
	if err := db.First(&appointment, uint(payload["appointment_id"].(float64))).Error; err != nil {
		t.Fatalf("load appointment: %v", err)
	}
	// Self-service bookings always start pending, never confirmed.
	if appointment.Status != models.StatusPending {
		t.Errorf("appointment status = %q, want pending", appointment.Status)
	}
	if appointment.CustomerID != customer.ID {
		t.Errorf("appointment customer = %d, want %d", appointment.CustomerID, customer.ID)
	}

	var lead models.Lead
	if err := db.First(&lead, uint(payload["lead_id"].(float64))).Error; err != nil {
		t.Fatalf("load lead: %v", err)
	}
	if lead.Status != "trial_booked" {
		t.Errorf("lead status = %q, want trial_booked", lead.Status)
	}
}

func TestBookingWebhookKeepsLeadOnBookingFailure(t *testing.T) {
	db := newWebhookDB(t)
	app := newWebhookApp(t, db, testWebhookSecret)
	studio := seedWebhookStudio(t, db)

	customer := models.User{
		Username: "late.customer",
		Password: "x",
		Role:     "customer",
		StudioID: studio.ID,
		Status:   "active",
	}
	if err := db.Create(&customer).Error; err != nil {
		t.Fatalf("seed customer: %v", err)
	}

	// Yesterday's slot cannot be booked, but the lead must survive.
	date := time.Now().UTC().AddDate(0, 0, -1).Format("2006-01-02")
	body := []byte(fmt.Sprintf(
		`{"studio_code":"MITTE","name":"Late Customer","customer_id":%d,"appointment_date":"%s","start_time":"10:00","end_time":"11:00"}`,
		customer.ID, date,
	))
	resp, payload := postWebhook(t, app, body, computeSignature(testWebhookSecret, body))
	if resp.StatusCode != fiber.StatusCreated {
		t.Fatalf("status = %d, want 201", resp.StatusCode)
	}
	if payload["appointment_error"] == nil {
		t.Fatalf("response missing appointment_error: %v", payload)
	}
	if payload["appointment_id"] != nil {
		t.Fatalf("unexpected appointment_id in response: %v", payload)
	}

	var lead models.Lead
	if err := db.First(&lead, uint(payload["lead_id"].(float64))).Error; err != nil {
		t.Fatalf("load lead: %v", err)
	}
	if lead.Status != "new" {
		t.Errorf("lead status = %q, want new", lead.Status)
	}
}

func TestBookingWebhookDisabledWithoutSecret(t *testing.T) {
	db := newWebhookDB(t)
	app := newWebhookApp(t, db, "")

	body := []byte(`{"studio_code":"MITTE","name":"Anna Schmidt"}`)
	resp, _ := postWebhook(t, app, body, "")
	if resp.StatusCode != fiber.StatusServiceUnavailable {
		t.Fatalf("status = %d, want 503", resp.StatusCode)
	}
}
