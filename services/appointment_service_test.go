package services

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"studiomanager_go/models"
	"studiomanager_go/services/ledger"
	"studiomanager_go/utils"
)

func newTestDB(t *testing.T) *gorm.DB {
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
		&models.Appointment{},
		&models.CustomerSession{},
		&models.SessionTransaction{},
	)
	if err != nil {
		t.Fatalf("migrate test database: %v", err)
	}
	return db
}

type fixture struct {
	db       *gorm.DB
	svc      *AppointmentService
	ledger   *ledger.Service
	studio   models.Studio
	owner    models.User
	customer models.User
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	db := newTestDB(t)
	ledgerSvc := ledger.NewService(db)

	f := &fixture{
		db:     db,
		svc:    NewAppointmentService(db, ledgerSvc),
		ledger: ledgerSvc,
		studio: models.Studio{
			Name: "Test Studio", Code: "TEST",
			Timezone:                 "UTC",
			CancellationAdvanceHours: 24,
			Active:                   true,
		},
	}
	if err := db.Create(&f.studio).Error; err != nil {
		t.Fatalf("create studio: %v", err)
	}

	f.owner = models.User{Username: "owner", Password: "x", Email: "owner@test", Role: "studio_owner", StudioID: f.studio.ID, Status: "active"}
	f.customer = models.User{Username: "customer", Password: "x", Email: "customer@test", Role: "customer", StudioID: f.studio.ID, Status: "active"}
	if err := db.Create(&f.owner).Error; err != nil {
		t.Fatalf("create owner: %v", err)
	}
	if err := db.Create(&f.customer).Error; err != nil {
		t.Fatalf("create customer: %v", err)
	}
	return f
}

func (f *fixture) input(daysAhead int, start, end string) *AppointmentInput {
	return &AppointmentInput{
		StudioID:        f.studio.ID,
		CustomerID:      f.customer.ID,
		AppointmentDate: time.Now().AddDate(0, 0, daysAhead).Format(utils.DateLayout),
		StartTime:       start,
		EndTime:         end,
	}
}

func TestCreateAppointmentStatusByRole(t *testing.T) {
	f := newFixture(t)

	staffBooked, err := f.svc.CreateAppointment(f.input(1, "10:00", "11:00"), &f.owner)
	if err != nil {
		t.Fatalf("CreateAppointment by staff: %v", err)
	}
	if staffBooked.Status != models.StatusConfirmed {
		t.Errorf("staff booking status = %s, want confirmed", staffBooked.Status)
	}

	customerBooked, err := f.svc.CreateAppointment(f.input(1, "11:00", "12:00"), &f.customer)
	if err != nil {
		t.Fatalf("CreateAppointment by customer: %v", err)
	}
	if customerBooked.Status != models.StatusPending {
		t.Errorf("customer booking status = %s, want pending", customerBooked.Status)
	}

	// Customers cannot self-confirm, even when they ask to.
	in := f.input(1, "12:00", "13:00")
	in.Status = "bestätigt"
	selfConfirm, err := f.svc.CreateAppointment(in, &f.customer)
	if err != nil {
		t.Fatalf("CreateAppointment with requested status: %v", err)
	}
	if selfConfirm.Status != models.StatusPending {
		t.Errorf("customer-requested confirmed status = %s, want pending", selfConfirm.Status)
	}
}

func TestCreateAppointmentValidation(t *testing.T) {
	f := newFixture(t)

	cases := []struct {
		name  string
		mod   func(*AppointmentInput)
		field string
	}{
		{"missing studio", func(in *AppointmentInput) { in.StudioID = 0 }, "studio_id"},
		{"missing customer", func(in *AppointmentInput) { in.CustomerID = 0 }, "customer_id"},
		{"bad date", func(in *AppointmentInput) { in.AppointmentDate = "31.12.2026" }, "appointment_date"},
		{"bad start", func(in *AppointmentInput) { in.StartTime = "nope" }, "start_time"},
		{"end before start", func(in *AppointmentInput) { in.StartTime = "12:00"; in.EndTime = "11:00" }, "start_time"},
		{"unknown status", func(in *AppointmentInput) { in.Status = "vielleicht" }, "status"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			in := f.input(1, "10:00", "11:00")
			tc.mod(in)
			_, err := f.svc.CreateAppointment(in, &f.owner)
			var ve *ValidationError
			if !errors.As(err, &ve) {
				t.Fatalf("error = %v, want ValidationError", err)
			}
			if ve.Field != tc.field {
				t.Errorf("field = %s, want %s", ve.Field, tc.field)
			}
		})
	}
}

func TestCreateAppointmentRejectsPastDate(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.CreateAppointment(f.input(-1, "10:00", "11:00"), &f.owner)
	var ve *ValidationError
	if !errors.As(err, &ve) {
		t.Fatalf("error = %v, want ValidationError", err)
	}
}

func TestCreateAppointmentConflicts(t *testing.T) {
	f := newFixture(t)

	if _, err := f.svc.CreateAppointment(f.input(1, "10:00", "11:00"), &f.owner); err != nil {
		t.Fatalf("seed appointment: %v", err)
	}

	cases := []struct {
		name     string
		start    string
		end      string
		conflict bool
	}{
		{"identical slot", "10:00", "11:00", true},
		{"overlaps start", "09:30", "10:30", true},
		{"overlaps end", "10:30", "11:30", true},
		{"contained", "10:15", "10:45", true},
		{"contains", "09:00", "12:00", true},
		{"adjacent before", "09:00", "10:00", false},
		{"adjacent after", "11:00", "12:00", false},
		{"disjoint", "14:00", "15:00", false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			appt, err := f.svc.CreateAppointment(f.input(1, tc.start, tc.end), &f.owner)
			if tc.conflict {
				if !errors.Is(err, ErrConflict) {
					t.Errorf("error = %v, want ErrConflict", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("CreateAppointment: %v", err)
			}
			// Free the slot again so later cases see only the seed appointment.
			if _, err := f.svc.CancelAppointment(appt.ID, &f.owner, "test cleanup"); err != nil {
				t.Fatalf("cleanup cancel: %v", err)
			}
		})
	}
}

func TestCancelledAppointmentsDoNotBlockSlot(t *testing.T) {
	f := newFixture(t)

	first, err := f.svc.CreateAppointment(f.input(1, "10:00", "11:00"), &f.owner)
	if err != nil {
		t.Fatalf("CreateAppointment: %v", err)
	}
	if _, err := f.svc.CancelAppointment(first.ID, &f.owner, "moved"); err != nil {
		t.Fatalf("CancelAppointment: %v", err)
	}

	if _, err := f.svc.CreateAppointment(f.input(1, "10:00", "11:00"), &f.owner); err != nil {
		t.Errorf("slot of a cancelled appointment should be bookable, got %v", err)
	}
}

func TestUpdateAppointmentRechecksConflicts(t *testing.T) {
	f := newFixture(t)

	if _, err := f.svc.CreateAppointment(f.input(1, "10:00", "11:00"), &f.owner); err != nil {
		t.Fatalf("seed appointment: %v", err)
	}
	second, err := f.svc.CreateAppointment(f.input(1, "14:00", "15:00"), &f.owner)
	if err != nil {
		t.Fatalf("second appointment: %v", err)
	}

	// Moving onto the occupied slot fails.
	if _, err := f.svc.UpdateAppointment(second.ID, f.input(1, "10:30", "11:30"), &f.owner); !errors.Is(err, ErrConflict) {
		t.Errorf("error = %v, want ErrConflict", err)
	}

	// Saving without changing the slot must not conflict with itself.
	updated, err := f.svc.UpdateAppointment(second.ID, &AppointmentInput{Notes: "bring towel"}, &f.owner)
	if err != nil {
		t.Fatalf("UpdateAppointment same slot: %v", err)
	}
	if updated.Notes != "bring towel" {
		t.Errorf("notes = %q, want updated", updated.Notes)
	}

	// Moving to a free slot works.
	if _, err := f.svc.UpdateAppointment(second.ID, f.input(1, "16:00", "17:00"), &f.owner); err != nil {
		t.Errorf("UpdateAppointment to free slot: %v", err)
	}
}

func TestConfirmAppointment(t *testing.T) {
	f := newFixture(t)

	appt, err := f.svc.CreateAppointment(f.input(1, "10:00", "11:00"), &f.customer)
	if err != nil {
		t.Fatalf("CreateAppointment: %v", err)
	}

	confirmed, err := f.svc.ConfirmAppointment(appt.ID)
	if err != nil {
		t.Fatalf("ConfirmAppointment: %v", err)
	}
	if confirmed.Status != models.StatusConfirmed {
		t.Errorf("status = %s, want confirmed", confirmed.Status)
	}

	// Confirming twice is not a valid transition.
	if _, err := f.svc.ConfirmAppointment(appt.ID); !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("error = %v, want ErrInvalidTransition", err)
	}
}

func TestCompleteAppointmentDeductsSession(t *testing.T) {
	f := newFixture(t)

	if _, err := f.ledger.AddSessions(f.customer.ID, f.studio.ID, 10, f.owner.ID, ""); err != nil {
		t.Fatalf("AddSessions: %v", err)
	}

	appt, err := f.svc.CreateAppointment(f.input(1, "10:00", "11:00"), &f.owner)
	if err != nil {
		t.Fatalf("CreateAppointment: %v", err)
	}

	result, err := f.svc.CompleteAppointment(appt.ID, f.owner.ID)
	if err != nil {
		t.Fatalf("CompleteAppointment: %v", err)
	}
	if !result.SessionDeducted {
		t.Error("expected a session deduction")
	}
	if result.RemainingSessions != 9 {
		t.Errorf("remaining = %d, want 9", result.RemainingSessions)
	}

	// A completed appointment is terminal.
	if _, err := f.svc.CompleteAppointment(appt.ID, f.owner.ID); !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("error = %v, want ErrInvalidTransition", err)
	}
}

func TestCompleteAppointmentWithoutCredits(t *testing.T) {
	f := newFixture(t)

	appt, err := f.svc.CreateAppointment(f.input(1, "10:00", "11:00"), &f.owner)
	if err != nil {
		t.Fatalf("CreateAppointment: %v", err)
	}

	// No session block exists; completion stands, the miss is flagged.
	result, err := f.svc.CompleteAppointment(appt.ID, f.owner.ID)
	if err != nil {
		t.Fatalf("CompleteAppointment: %v", err)
	}
	if result.SessionDeducted {
		t.Error("deduction reported without any credits")
	}
	if result.Appointment.Status != models.StatusCompleted {
		t.Errorf("status = %s, want completed", result.Appointment.Status)
	}
}

func TestCancelConfirmedRestoresCredit(t *testing.T) {
	f := newFixture(t)

	if _, err := f.ledger.AddSessions(f.customer.ID, f.studio.ID, 10, f.owner.ID, ""); err != nil {
		t.Fatalf("AddSessions: %v", err)
	}
	// Spend one credit so the refund has headroom below the block total.
	if _, err := f.ledger.DeductSession(f.customer.ID, f.studio.ID, nil, f.owner.ID, ""); err != nil {
		t.Fatalf("DeductSession: %v", err)
	}

	appt, err := f.svc.CreateAppointment(f.input(1, "10:00", "11:00"), &f.owner)
	if err != nil {
		t.Fatalf("CreateAppointment: %v", err)
	}

	result, err := f.svc.CancelAppointment(appt.ID, &f.owner, "illness")
	if err != nil {
		t.Fatalf("CancelAppointment: %v", err)
	}
	if !result.SessionRestored {
		t.Error("expected the session credit to be restored")
	}
	if result.Appointment.CancelReason != "illness" {
		t.Errorf("cancel reason = %q, want recorded", result.Appointment.CancelReason)
	}

	balance, err := f.ledger.RemainingBalance(f.customer.ID, f.studio.ID)
	if err != nil {
		t.Fatalf("RemainingBalance: %v", err)
	}
	if balance != 10 {
		t.Errorf("balance = %d, want 10 after refund", balance)
	}
}

func TestCancelPendingDoesNotRefund(t *testing.T) {
	f := newFixture(t)

	appt, err := f.svc.CreateAppointment(f.input(5, "10:00", "11:00"), &f.customer)
	if err != nil {
		t.Fatalf("CreateAppointment: %v", err)
	}

	result, err := f.svc.CancelAppointment(appt.ID, &f.customer, "")
	if err != nil {
		t.Fatalf("CancelAppointment: %v", err)
	}
	if result.SessionRestored {
		t.Error("pending cancellation must not refund a credit")
	}
}

func TestCustomerCancellationNotice(t *testing.T) {
	f := newFixture(t)

	// An appointment two hours from now is inside the 24h notice window.
	soon := time.Now().UTC().Add(2 * time.Hour)
	appt := models.Appointment{
		StudioID:        f.studio.ID,
		CustomerID:      f.customer.ID,
		AppointmentDate: utils.StartOfDay(soon),
		StartTime:       soon.Format(utils.ClockLayout),
		EndTime:         utils.FormatClock((soon.Hour()*60 + soon.Minute() + 30) % (24 * 60)),
		Status:          models.StatusPending,
		CreatedByUserID: f.customer.ID,
	}
	if err := f.db.Create(&appt).Error; err != nil {
		t.Fatalf("seed appointment: %v", err)
	}

	_, err := f.svc.CancelAppointment(appt.ID, &f.customer, "")
	var notice *CancellationNoticeError
	if !errors.As(err, &notice) {
		t.Fatalf("error = %v, want CancellationNoticeError", err)
	}
	if notice.RequiredHours != 24 {
		t.Errorf("required hours = %d, want 24", notice.RequiredHours)
	}
	if notice.ShortfallHours <= 0 {
		t.Errorf("shortfall = %.1f, want positive", notice.ShortfallHours)
	}

	// Staff may cancel inside the window.
	if _, err := f.svc.CancelAppointment(appt.ID, &f.owner, "staff override"); err != nil {
		t.Errorf("staff cancel inside window: %v", err)
	}

	// With enough notice the customer may cancel themselves.
	far, err := f.svc.CreateAppointment(f.input(10, "10:00", "11:00"), &f.customer)
	if err != nil {
		t.Fatalf("CreateAppointment far: %v", err)
	}
	if _, err := f.svc.CancelAppointment(far.ID, &f.customer, "vacation"); err != nil {
		t.Errorf("customer cancel with notice: %v", err)
	}
}

func TestMarkNoShowKeepsCredit(t *testing.T) {
	f := newFixture(t)

	if _, err := f.ledger.AddSessions(f.customer.ID, f.studio.ID, 10, f.owner.ID, ""); err != nil {
		t.Fatalf("AddSessions: %v", err)
	}

	appt, err := f.svc.CreateAppointment(f.input(1, "10:00", "11:00"), &f.owner)
	if err != nil {
		t.Fatalf("CreateAppointment: %v", err)
	}

	marked, err := f.svc.MarkNoShow(appt.ID)
	if err != nil {
		t.Fatalf("MarkNoShow: %v", err)
	}
	if marked.Status != models.StatusNoShow {
		t.Errorf("status = %s, want no_show", marked.Status)
	}

	balance, err := f.ledger.RemainingBalance(f.customer.ID, f.studio.ID)
	if err != nil {
		t.Fatalf("RemainingBalance: %v", err)
	}
	if balance != 10 {
		t.Errorf("balance = %d, want 10 (no deduction on no-show)", balance)
	}

	// Pending appointments cannot be marked no-show.
	pending, err := f.svc.CreateAppointment(f.input(1, "12:00", "13:00"), &f.customer)
	if err != nil {
		t.Fatalf("CreateAppointment pending: %v", err)
	}
	if _, err := f.svc.MarkNoShow(pending.ID); !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("error = %v, want ErrInvalidTransition", err)
	}
}

func TestSweepPastConfirmed(t *testing.T) {
	f := newFixture(t)

	if _, err := f.ledger.AddSessions(f.customer.ID, f.studio.ID, 10, f.owner.ID, ""); err != nil {
		t.Fatalf("AddSessions: %v", err)
	}

	yesterday := utils.StartOfDay(time.Now().AddDate(0, 0, -1))
	tomorrow := utils.StartOfDay(time.Now().AddDate(0, 0, 1))

	appointments := []models.Appointment{
		{StudioID: f.studio.ID, CustomerID: f.customer.ID, AppointmentDate: yesterday, StartTime: "10:00", EndTime: "11:00", Status: models.StatusConfirmed, CreatedByUserID: f.owner.ID},
		{StudioID: f.studio.ID, CustomerID: f.customer.ID, AppointmentDate: yesterday, StartTime: "12:00", EndTime: "13:00", Status: models.StatusPending, CreatedByUserID: f.owner.ID},
		{StudioID: f.studio.ID, CustomerID: f.customer.ID, AppointmentDate: tomorrow, StartTime: "10:00", EndTime: "11:00", Status: models.StatusConfirmed, CreatedByUserID: f.owner.ID},
	}
	for i := range appointments {
		if err := f.db.Create(&appointments[i]).Error; err != nil {
			t.Fatalf("seed appointment %d: %v", i, err)
		}
	}

	result, err := f.svc.SweepPastConfirmed()
	if err != nil {
		t.Fatalf("SweepPastConfirmed: %v", err)
	}
	if result.Completed != 1 {
		t.Errorf("completed = %d, want 1", result.Completed)
	}
	if result.DeductionsFailed != 0 {
		t.Errorf("deductions failed = %d, want 0", result.DeductionsFailed)
	}

	balance, err := f.ledger.RemainingBalance(f.customer.ID, f.studio.ID)
	if err != nil {
		t.Fatalf("RemainingBalance: %v", err)
	}
	if balance != 9 {
		t.Errorf("balance = %d, want 9", balance)
	}

	// Past pending and future confirmed rows are untouched.
	var pending, future models.Appointment
	if err := f.db.First(&pending, appointments[1].ID).Error; err != nil {
		t.Fatalf("reload pending: %v", err)
	}
	if pending.Status != models.StatusPending {
		t.Errorf("past pending status = %s, want pending", pending.Status)
	}
	if err := f.db.First(&future, appointments[2].ID).Error; err != nil {
		t.Fatalf("reload future: %v", err)
	}
	if future.Status != models.StatusConfirmed {
		t.Errorf("future confirmed status = %s, want confirmed", future.Status)
	}

	// The sweep is idempotent.
	again, err := f.svc.SweepPastConfirmed()
	if err != nil {
		t.Fatalf("second SweepPastConfirmed: %v", err)
	}
	if again.Completed != 0 {
		t.Errorf("second sweep completed = %d, want 0", again.Completed)
	}
}

func TestSweepFlagsFailedDeductions(t *testing.T) {
	f := newFixture(t)

	yesterday := utils.StartOfDay(time.Now().AddDate(0, 0, -1))
	appt := models.Appointment{
		StudioID: f.studio.ID, CustomerID: f.customer.ID,
		AppointmentDate: yesterday, StartTime: "10:00", EndTime: "11:00",
		Status: models.StatusConfirmed, CreatedByUserID: f.owner.ID,
	}
	if err := f.db.Create(&appt).Error; err != nil {
		t.Fatalf("seed appointment: %v", err)
	}

	result, err := f.svc.SweepPastConfirmed()
	if err != nil {
		t.Fatalf("SweepPastConfirmed: %v", err)
	}
	if result.Completed != 1 {
		t.Errorf("completed = %d, want 1", result.Completed)
	}
	if result.DeductionsFailed != 1 {
		t.Errorf("deductions failed = %d, want 1 (customer has no credits)", result.DeductionsFailed)
	}
}

func TestGetAppointmentNotFound(t *testing.T) {
	f := newFixture(t)

	if _, err := f.svc.GetAppointment(9876); !errors.Is(err, ErrNotFound) {
		t.Errorf("error = %v, want ErrNotFound", err)
	}
}
