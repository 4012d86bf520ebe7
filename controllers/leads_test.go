package controllers

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"studiomanager_go/database"
	"studiomanager_go/models"
	"studiomanager_go/utils"
)

// newControllerDB swaps the package-level handle for an in-memory
// database so controllers can run without MySQL.
func newControllerDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open test database: %v", err)
	}

	err = db.AutoMigrate(
		&models.Studio{},
		&models.User{},
		&models.AppointmentType{},
		&models.Lead{},
		&models.Appointment{},
		&models.CustomerSession{},
		&models.SessionTransaction{},
		&models.ActivityLog{},
	)
	if err != nil {
		t.Fatalf("migrate test database: %v", err)
	}

	prev := database.DB
	database.DB = db
	t.Cleanup(func() { database.DB = prev })
	return db
}

// testApp builds a Fiber app with the given user already authenticated.
func testApp(user *models.User, register func(*fiber.App)) *fiber.App {
	app := fiber.New()
	app.Use(func(c *fiber.Ctx) error {
		c.Locals("user", user)
		return c.Next()
	})
	register(app)
	return app
}

func postJSON(t *testing.T, app *fiber.App, path string, payload any) (*fiber.Map, int) {
	t.Helper()

	body, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("marshal payload: %v", err)
	}
	req := httptest.NewRequest("POST", path, bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")

	resp, err := app.Test(req, -1)
	if err != nil {
		t.Fatalf("request %s: %v", path, err)
	}
	defer resp.Body.Close()

	var parsed fiber.Map
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return &parsed, resp.StatusCode
}

func TestConvertLead(t *testing.T) {
	db := newControllerDB(t)

	studio := models.Studio{Name: "Studio", Code: "S1", Active: true}
	if err := db.Create(&studio).Error; err != nil {
		t.Fatalf("create studio: %v", err)
	}
	owner := models.User{Username: "owner", Password: "x", Email: "o@test", Role: "studio_owner", StudioID: studio.ID, Status: "active"}
	if err := db.Create(&owner).Error; err != nil {
		t.Fatalf("create owner: %v", err)
	}
	lead := models.Lead{StudioID: studio.ID, Name: "Lena Fischer", Phone: "+49 151 1111111", Email: "lena@test", Source: "web", Status: "contacted"}
	if err := db.Create(&lead).Error; err != nil {
		t.Fatalf("create lead: %v", err)
	}

	lc := &LeadController{}
	app := testApp(&owner, func(a *fiber.App) {
		a.Post("/api/leads/:id/convert", lc.ConvertLead)
	})

	resp, status := postJSON(t, app, fmt.Sprintf("/api/leads/%d/convert", lead.ID), fiber.Map{"username": "lena.f"})
	if status != fiber.StatusCreated {
		t.Fatalf("status = %d, want 201 (%v)", status, resp)
	}

	password, _ := (*resp)["password"].(string)
	if len(password) != 12 {
		t.Errorf("generated password length = %d, want 12", len(password))
	}

	var customer models.User
	if err := db.Where("username = ?", "lena.f").First(&customer).Error; err != nil {
		t.Fatalf("converted customer not found: %v", err)
	}
	if customer.Role != "customer" || customer.StudioID != studio.ID {
		t.Errorf("customer = %s/%d, want customer/%d", customer.Role, customer.StudioID, studio.ID)
	}
	if customer.FirstName != "Lena" || customer.LastName != "Fischer" {
		t.Errorf("name = %q %q, want split from lead", customer.FirstName, customer.LastName)
	}
	if err := utils.CheckPassword(password, customer.Password); err != nil {
		t.Errorf("returned password does not match the stored hash: %v", err)
	}

	var reloaded models.Lead
	if err := db.First(&reloaded, lead.ID).Error; err != nil {
		t.Fatalf("reload lead: %v", err)
	}
	if reloaded.Status != "converted" {
		t.Errorf("lead status = %s, want converted", reloaded.Status)
	}

	// Converting again must be rejected.
	_, status = postJSON(t, app, fmt.Sprintf("/api/leads/%d/convert", lead.ID), fiber.Map{"username": "lena.f2"})
	if status != fiber.StatusConflict {
		t.Errorf("second convert status = %d, want 409", status)
	}
}

func TestConvertLeadValidation(t *testing.T) {
	db := newControllerDB(t)

	studio := models.Studio{Name: "Studio", Code: "S1", Active: true}
	if err := db.Create(&studio).Error; err != nil {
		t.Fatalf("create studio: %v", err)
	}
	other := models.Studio{Name: "Other", Code: "S2", Active: true}
	if err := db.Create(&other).Error; err != nil {
		t.Fatalf("create other studio: %v", err)
	}
	owner := models.User{Username: "owner", Password: "x", Email: "o@test", Role: "studio_owner", StudioID: studio.ID, Status: "active"}
	if err := db.Create(&owner).Error; err != nil {
		t.Fatalf("create owner: %v", err)
	}
	lead := models.Lead{StudioID: studio.ID, Name: "Jonas", Source: "manual", Status: "new"}
	if err := db.Create(&lead).Error; err != nil {
		t.Fatalf("create lead: %v", err)
	}
	foreign := models.Lead{StudioID: other.ID, Name: "Anna", Source: "manual", Status: "new"}
	if err := db.Create(&foreign).Error; err != nil {
		t.Fatalf("create foreign lead: %v", err)
	}

	lc := &LeadController{}
	app := testApp(&owner, func(a *fiber.App) {
		a.Post("/api/leads/:id/convert", lc.ConvertLead)
	})

	// Username is required.
	_, status := postJSON(t, app, fmt.Sprintf("/api/leads/%d/convert", lead.ID), fiber.Map{})
	if status != fiber.StatusBadRequest {
		t.Errorf("missing username status = %d, want 400", status)
	}

	// Existing usernames are rejected.
	_, status = postJSON(t, app, fmt.Sprintf("/api/leads/%d/convert", lead.ID), fiber.Map{"username": "owner"})
	if status != fiber.StatusConflict {
		t.Errorf("taken username status = %d, want 409", status)
	}

	// Owners cannot convert another studio's lead.
	_, status = postJSON(t, app, fmt.Sprintf("/api/leads/%d/convert", foreign.ID), fiber.Map{"username": "anna.x"})
	if status != fiber.StatusForbidden {
		t.Errorf("foreign lead status = %d, want 403", status)
	}
}
