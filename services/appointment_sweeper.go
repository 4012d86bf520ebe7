package services

import (
	"fmt"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"studiomanager_go/config"
	"studiomanager_go/models"
	"studiomanager_go/services/ledger"
	"studiomanager_go/services/notifications"
	"studiomanager_go/utils"
	"time"
)

// AppointmentSweeper periodically completes past confirmed appointments
// (deducting one session each) and sends the daily appointment reminders.
// The sweep runs on a fixed interval so stale confirmed appointments are
// settled even when nobody opens the calendar.
type AppointmentSweeper struct {
	db           *gorm.DB
	appointments *AppointmentService
	notif        *notifications.Service
	cron         *cron.Cron
}

// NewAppointmentSweeper builds a sweeper with its own service instances.
func NewAppointmentSweeper(db *gorm.DB) *AppointmentSweeper {
	return &AppointmentSweeper{
		db:           db,
		appointments: NewAppointmentService(db, ledger.NewService(db)),
		notif:        notifications.NewService(),
		cron:         cron.New(),
	}
}

// SetNotificationService overrides the notification sink (used by main
// after the WebSocket hub is wired).
func (s *AppointmentSweeper) SetNotificationService(n *notifications.Service) {
	s.notif = n
}

// Start registers the cron jobs and launches the scheduler.
func (s *AppointmentSweeper) Start() {
	interval := config.AppConfig.SweepInterval

	if _, err := s.cron.AddFunc(fmt.Sprintf("@every %s", interval), s.runSweep); err != nil {
		logrus.WithError(err).Error("Failed to schedule appointment sweep")
	}

	// Morning reminder pass for today's confirmed appointments.
	if _, err := s.cron.AddFunc("0 8 * * *", s.SendDailyReminders); err != nil {
		logrus.WithError(err).Error("Failed to schedule daily reminders")
	}

	s.cron.Start()
	logrus.WithField("interval", interval.String()).Info("Appointment sweeper started")
}

// Stop halts the scheduler; running jobs finish first.
func (s *AppointmentSweeper) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
	logrus.Info("Appointment sweeper stopped")
}

// runSweep executes one sweep and alerts studio managers when credits
// could not be deducted (customers out of balance).
func (s *AppointmentSweeper) runSweep() {
	result, err := s.appointments.SweepPastConfirmed()
	if err != nil {
		logrus.WithError(err).Error("Appointment sweep failed")
		return
	}

	if result.DeductionsFailed > 0 {
		s.notifyStaff(
			"Session deduction failures",
			fmt.Sprintf("%d past appointment(s) were completed without a session deduction. Check the customers' session balances.", result.DeductionsFailed),
			"warning",
		)
	}
}

// SendDailyReminders notifies customers of their confirmed appointments
// for today, plus a balance warning when their credits ran out.
func (s *AppointmentSweeper) SendDailyReminders() {
	today := utils.StartOfDay(time.Now())

	var due []models.Appointment
	err := s.db.Where("appointment_date = ? AND status = ?", today, models.StatusConfirmed).
		Find(&due).Error
	if err != nil {
		logrus.WithError(err).Error("Failed to fetch today's appointments for reminders")
		return
	}

	ledgerSvc := ledger.NewService(s.db)
	for _, appointment := range due {
		msg := fmt.Sprintf("You have an appointment today at %s.", appointment.StartTime)
		if err := s.notif.EnqueueOrCreate([]uint{appointment.CustomerID},
			notifications.Queued("Appointment reminder", msg, "info")); err != nil {
			logrus.WithError(err).WithField("appointment_id", appointment.ID).
				Warn("Failed to enqueue appointment reminder")
			continue
		}

		balance, err := ledgerSvc.RemainingBalance(appointment.CustomerID, appointment.StudioID)
		if err != nil || balance > 0 {
			continue
		}
		_ = s.notif.EnqueueOrCreate([]uint{appointment.CustomerID},
			notifications.Queued("Session balance empty",
				"You have no prepaid sessions left. Top up your package to keep booking.", "warning"))
	}

	if len(due) > 0 {
		logrus.WithField("count", len(due)).Info("Daily appointment reminders sent")
	}
}

// notifyStaff fans a notification out to all studio owners and managers.
func (s *AppointmentSweeper) notifyStaff(title, message, typ string) {
	var staff []models.User
	if err := s.db.Where("role IN ?", []string{"studio_owner", "manager"}).Find(&staff).Error; err != nil {
		logrus.WithError(err).Error("Failed to fetch staff for notification")
		return
	}

	ids := make([]uint, 0, len(staff))
	for _, u := range staff {
		ids = append(ids, u.ID)
	}
	if len(ids) == 0 {
		return
	}
	if err := s.notif.EnqueueOrCreate(ids, notifications.Queued(title, message, typ)); err != nil {
		logrus.WithError(err).Warn("Failed to enqueue staff notification")
	}
}
