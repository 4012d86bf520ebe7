package seeders

import (
	"encoding/json"
	"log"
	"time"

	"studiomanager_go/database"
	"studiomanager_go/models"
	"studiomanager_go/utils"
)

// SeedAll runs all seeders
func SeedAll() {
	log.Println("Starting database seeding...")

	SeedStudios()
	SeedUsers()
	SeedAppointmentTypes()

	log.Println("Database seeding completed successfully!")
}

// SeedStudios seeds the studios table
func SeedStudios() {
	var count int64
	database.DB.Model(&models.Studio{}).Count(&count)
	if count > 0 {
		log.Println("Studios already seeded, skipping...")
		return
	}

	packageSizes, _ := json.Marshal([]int{10, 20})

	studios := []models.Studio{
		{
			BaseModel:                models.BaseModel{ID: 1},
			Name:                     "Studio Mitte",
			Code:                     "MITTE",
			Address:                  "Friedrichstraße 100, 10117 Berlin",
			Phone:                    "+49 30 1234560",
			Email:                    "mitte@example.com",
			Timezone:                 "Europe/Berlin",
			CancellationAdvanceHours: 24,
			TopupPackageSizes:        packageSizes,
			Active:                   true,
		},
		{
			BaseModel:                models.BaseModel{ID: 2},
			Name:                     "Studio Westend",
			Code:                     "WESTEND",
			Address:                  "Kaiserstraße 12, 60311 Frankfurt",
			Phone:                    "+49 69 7654321",
			Email:                    "westend@example.com",
			Timezone:                 "Europe/Berlin",
			CancellationAdvanceHours: 48,
			TopupPackageSizes:        packageSizes,
			Active:                   true,
		},
	}

	for _, studio := range studios {
		if err := database.DB.Create(&studio).Error; err != nil {
			log.Printf("Error seeding studio %s: %v", studio.Code, err)
		}
	}

	log.Println("Studios seeded successfully")
}

// SeedUsers seeds a manager, one owner per studio and a demo customer
func SeedUsers() {
	var count int64
	database.DB.Model(&models.User{}).Count(&count)
	if count > 0 {
		log.Println("Users already seeded, skipping...")
		return
	}

	hashedPassword, _ := utils.HashPassword("password123")

	users := []models.User{
		{
			BaseModel: models.BaseModel{ID: 1},
			Username:  "manager",
			Password:  hashedPassword,
			Email:     "manager@example.com",
			FirstName: "Platform",
			LastName:  "Manager",
			Role:      "manager",
			StudioID:  1,
			Status:    "active",
		},
		{
			BaseModel: models.BaseModel{ID: 2},
			Username:  "owner.mitte",
			Password:  hashedPassword,
			Email:     "owner.mitte@example.com",
			FirstName: "Anna",
			LastName:  "Schmidt",
			Role:      "studio_owner",
			StudioID:  1,
			Status:    "active",
		},
		{
			BaseModel: models.BaseModel{ID: 3},
			Username:  "owner.westend",
			Password:  hashedPassword,
			Email:     "owner.westend@example.com",
			FirstName: "Jonas",
			LastName:  "Weber",
			Role:      "studio_owner",
			StudioID:  2,
			Status:    "active",
		},
		{
			BaseModel: models.BaseModel{ID: 4},
			Username:  "demo.customer",
			Password:  hashedPassword,
			Email:     "demo.customer@example.com",
			Phone:     "+49 151 2345678",
			FirstName: "Lena",
			LastName:  "Fischer",
			Role:      "customer",
			StudioID:  1,
			Status:    "active",
		},
	}

	for _, user := range users {
		if err := database.DB.Create(&user).Error; err != nil {
			log.Printf("Error seeding user %s: %v", user.Username, err)
		}
	}

	// Give the demo customer a starter package so the booking flow works
	// out of the box.
	session := models.CustomerSession{
		CustomerID:        4,
		StudioID:          1,
		TotalSessions:     10,
		RemainingSessions: 10,
		PurchaseDate:      time.Now(),
		BlockOrder:        1,
		BlockType:         "package",
		IsActive:          true,
		Notes:             "Starter package (seeded)",
	}
	if err := database.DB.Create(&session).Error; err != nil {
		log.Printf("Error seeding demo session block: %v", err)
	} else {
		tx := models.SessionTransaction{
			CustomerSessionID: session.ID,
			TransactionType:   models.TxPurchase,
			Amount:            10,
			CreatedByUserID:   2,
			Notes:             "Starter package (seeded)",
		}
		if err := database.DB.Create(&tx).Error; err != nil {
			log.Printf("Error seeding demo session transaction: %v", err)
		}
	}

	log.Println("Users seeded successfully")
}

// SeedAppointmentTypes seeds the bookable service types
func SeedAppointmentTypes() {
	var count int64
	database.DB.Model(&models.AppointmentType{}).Count(&count)
	if count > 0 {
		log.Println("Appointment types already seeded, skipping...")
		return
	}

	types := []models.AppointmentType{
		{StudioID: 1, Name: "EMS Training", DurationMinutes: 20, Color: "#e74c3c", Active: true},
		{StudioID: 1, Name: "Personal Training", DurationMinutes: 60, Color: "#3498db", Active: true},
		{StudioID: 1, Name: "Trial Session", DurationMinutes: 30, Color: "#2ecc71", Active: true},
		{StudioID: 2, Name: "EMS Training", DurationMinutes: 20, Color: "#e74c3c", Active: true},
		{StudioID: 2, Name: "Massage", DurationMinutes: 45, Color: "#9b59b6", Active: true},
	}

	for _, appointmentType := range types {
		if err := database.DB.Create(&appointmentType).Error; err != nil {
			log.Printf("Error seeding appointment type %s: %v", appointmentType.Name, err)
		}
	}

	log.Println("Appointment types seeded successfully")
}
