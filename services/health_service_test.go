package services

import (
	"testing"
	"time"

	"studiomanager_go/config"
	"studiomanager_go/database"
	"studiomanager_go/models"
	"studiomanager_go/utils"
)

func newHealthFixture(t *testing.T) {
	t.Helper()

	db := newTestDB(t)
	if err := db.AutoMigrate(&models.Lead{}); err != nil {
		t.Fatalf("migrate leads: %v", err)
	}

	prevDB := database.DB
	database.DB = db
	prevCfg := config.AppConfig
	config.AppConfig = &config.Config{AppEnv: "test"}
	t.Cleanup(func() {
		database.DB = prevDB
		config.AppConfig = prevCfg
	})
}

func seedPastConfirmed(t *testing.T, studioID, customerID uint, count int) {
	t.Helper()

	yesterday := utils.StartOfDay(time.Now().AddDate(0, 0, -1))
	for i := 0; i < count; i++ {
		appointment := models.Appointment{
			StudioID:        studioID,
			CustomerID:      customerID,
			AppointmentDate: yesterday,
			StartTime:       "09:00",
			EndTime:         "10:00",
			Status:          models.StatusConfirmed,
		}
		if err := database.DB.Create(&appointment).Error; err != nil {
			t.Fatalf("seed appointment: %v", err)
		}
	}
}

func TestHealthReportCriticalWithoutDatabase(t *testing.T) {
	prevDB := database.DB
	database.DB = nil
	t.Cleanup(func() { database.DB = prevDB })

	svc := NewHealthService("", "")
	report := svc.GetHealthReport()

	if report.Status != overallStatusCritical {
		t.Errorf("status = %q, want critical", report.Status)
	}
	if report.Workload != nil {
		t.Error("workload should be omitted when the database is down")
	}
	if code := svc.HTTPStatusForOverall(report.Status); code != 503 {
		t.Errorf("http status = %d, want 503", code)
	}
}

func TestHealthReportWorkload(t *testing.T) {
	newHealthFixture(t)

	studios := []models.Studio{
		{Name: "Mitte", Code: "MITTE", Timezone: "UTC", CancellationAdvanceHours: 24, Active: true},
		{Name: "Closed", Code: "CLOSED", Timezone: "UTC", CancellationAdvanceHours: 24, Active: false},
	}
	for i := range studios {
		if err := database.DB.Create(&studios[i]).Error; err != nil {
			t.Fatalf("seed studio: %v", err)
		}
	}
	customer := models.User{
		Username: "health.customer", Password: "x", Role: "customer",
		StudioID: studios[0].ID, Status: "active",
	}
	if err := database.DB.Create(&customer).Error; err != nil {
		t.Fatalf("seed customer: %v", err)
	}

	leads := []models.Lead{
		{StudioID: studios[0].ID, Name: "Open Lead", Source: "web", Status: "new"},
		{StudioID: studios[0].ID, Name: "Done Lead", Source: "web", Status: "converted"},
	}
	for i := range leads {
		if err := database.DB.Create(&leads[i]).Error; err != nil {
			t.Fatalf("seed lead: %v", err)
		}
	}

	today := models.Appointment{
		StudioID:        studios[0].ID,
		CustomerID:      customer.ID,
		AppointmentDate: utils.StartOfDay(time.Now()),
		StartTime:       "09:00",
		EndTime:         "10:00",
		Status:          models.StatusPending,
	}
	if err := database.DB.Create(&today).Error; err != nil {
		t.Fatalf("seed appointment: %v", err)
	}
	seedPastConfirmed(t, studios[0].ID, customer.ID, 2)

	svc := NewHealthService("", "")
	report := svc.GetHealthReport()

	if report.Status != overallStatusOK {
		t.Fatalf("status = %q, want ok", report.Status)
	}
	if report.Environment != "test" {
		t.Errorf("environment = %q, want test", report.Environment)
	}
	if report.Workload == nil {
		t.Fatal("workload missing from report")
	}
	if report.Workload.ActiveStudios != 1 {
		t.Errorf("active studios = %d, want 1", report.Workload.ActiveStudios)
	}
	if report.Workload.OpenLeads != 1 {
		t.Errorf("open leads = %d, want 1", report.Workload.OpenLeads)
	}
	if report.Workload.AppointmentsToday != 1 {
		t.Errorf("appointments today = %d, want 1", report.Workload.AppointmentsToday)
	}
	if report.Workload.SweepBacklog != 2 {
		t.Errorf("sweep backlog = %d, want 2", report.Workload.SweepBacklog)
	}

	// Redis is off in tests; the dependency reports disabled, not down.
	var redisStatus string
	for _, dep := range report.Dependencies {
		if dep.Name == "redis" {
			redisStatus = dep.Status
		}
	}
	if redisStatus != dependencyStatusDisabled {
		t.Errorf("redis status = %q, want disabled", redisStatus)
	}
}

func TestHealthReportDegradedOnSweepBacklog(t *testing.T) {
	newHealthFixture(t)

	studio := models.Studio{Name: "Mitte", Code: "MITTE", Timezone: "UTC", CancellationAdvanceHours: 24, Active: true}
	if err := database.DB.Create(&studio).Error; err != nil {
		t.Fatalf("seed studio: %v", err)
	}
	customer := models.User{
		Username: "backlog.customer", Password: "x", Role: "customer",
		StudioID: studio.ID, Status: "active",
	}
	if err := database.DB.Create(&customer).Error; err != nil {
		t.Fatalf("seed customer: %v", err)
	}
	seedPastConfirmed(t, studio.ID, customer.ID, sweepBacklogWarn+1)

	svc := NewHealthService("", "")
	report := svc.GetHealthReport()

	if report.Status != overallStatusDegraded {
		t.Errorf("status = %q, want degraded", report.Status)
	}
	// Degraded still serves traffic.
	if code := svc.HTTPStatusForOverall(report.Status); code != 200 {
		t.Errorf("http status = %d, want 200", code)
	}
}

func TestCombineStatus(t *testing.T) {
	cases := []struct {
		current, candidate, want string
	}{
		{overallStatusOK, overallStatusOK, overallStatusOK},
		{overallStatusOK, overallStatusDegraded, overallStatusDegraded},
		{overallStatusDegraded, overallStatusOK, overallStatusDegraded},
		{overallStatusDegraded, overallStatusCritical, overallStatusCritical},
		{overallStatusCritical, overallStatusDegraded, overallStatusCritical},
		{"bogus", overallStatusDegraded, overallStatusDegraded},
	}
	for _, tc := range cases {
		if got := combineStatus(tc.current, tc.candidate); got != tc.want {
			t.Errorf("combineStatus(%q, %q) = %q, want %q", tc.current, tc.candidate, got, tc.want)
		}
	}
}

func TestHumanizeDuration(t *testing.T) {
	cases := []struct {
		in   time.Duration
		want string
	}{
		{0, "0s"},
		{45 * time.Second, "45s"},
		{90 * time.Minute, "1h 30m"},
		{25*time.Hour + 5*time.Second, "1d 1h 5s"},
	}
	for _, tc := range cases {
		if got := humanizeDuration(tc.in); got != tc.want {
			t.Errorf("humanizeDuration(%v) = %q, want %q", tc.in, got, tc.want)
		}
	}
}
