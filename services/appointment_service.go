package services

import (
	"errors"
	"time"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"studiomanager_go/models"
	"studiomanager_go/services/ledger"
	"studiomanager_go/utils"
)

// AppointmentService owns the appointment lifecycle: creation with
// conflict detection, the status state machine, and the ledger side
// effects of completion and cancellation.
type AppointmentService struct {
	db     *gorm.DB
	ledger *ledger.Service
}

// NewAppointmentService wires the lifecycle onto a connection pool and a
// ledger service.
func NewAppointmentService(db *gorm.DB, ledgerService *ledger.Service) *AppointmentService {
	return &AppointmentService{db: db, ledger: ledgerService}
}

// AppointmentInput carries the client-supplied fields for create/update.
// Times arrive as strings the way the booking frontend sends them.
type AppointmentInput struct {
	StudioID          uint   `json:"studio_id"`
	CustomerID        uint   `json:"customer_id"`
	AppointmentTypeID *uint  `json:"appointment_type_id"`
	AppointmentDate   string `json:"appointment_date"` // "YYYY-MM-DD"
	StartTime         string `json:"start_time"`       // "HH:MM"
	EndTime           string `json:"end_time"`         // "HH:MM"
	Status            string `json:"status"`           // optional; English or German
	Notes             string `json:"notes"`
}

// CancelResult reports a cancellation and whether a session credit was
// restored to the customer's block.
type CancelResult struct {
	Appointment     *models.Appointment `json:"appointment"`
	SessionRestored bool                `json:"session_restored"`
}

// CompleteResult reports a completion and the ledger outcome. Completion
// succeeds even when the deduction fails; SessionDeducted tells the
// caller whether a credit was actually consumed.
type CompleteResult struct {
	Appointment       *models.Appointment `json:"appointment"`
	SessionDeducted   bool                `json:"session_deducted"`
	RemainingSessions int                 `json:"remaining_sessions"`
}

type parsedSlot struct {
	date     time.Time
	startMin int
	endMin   int
}

// validateSlot parses and validates the date/time triple of an input.
// rejectPast applies only to newly created appointments.
func validateSlot(input *AppointmentInput, rejectPast bool) (*parsedSlot, error) {
	date, err := utils.ParseDate(input.AppointmentDate)
	if err != nil {
		return nil, newValidationError("appointment_date", "must be a valid YYYY-MM-DD date")
	}

	startMin, err := utils.ParseClock(input.StartTime)
	if err != nil {
		return nil, newValidationError("start_time", "must be a valid HH:MM time")
	}

	endMin, err := utils.ParseClock(input.EndTime)
	if err != nil {
		return nil, newValidationError("end_time", "must be a valid HH:MM time")
	}

	if startMin >= endMin {
		return nil, newValidationError("start_time", "must be before end_time")
	}

	if rejectPast {
		today := utils.StartOfDay(time.Now())
		if date.Before(today) {
			return nil, newValidationError("appointment_date", "must not be in the past")
		}
	}

	return &parsedSlot{date: date, startMin: startMin, endMin: endMin}, nil
}

// CheckConflicts reports whether any non-cancelled, non-no-show
// appointment at the studio on that date overlaps the half-open interval
// [startMin, endMin). Adjacent slots (end == next start) do not conflict.
func (s *AppointmentService) CheckConflicts(studioID uint, date time.Time, startMin, endMin int, excludeID *uint) (bool, error) {
	query := s.db.Model(&models.Appointment{}).
		Where("studio_id = ? AND appointment_date = ?", studioID, utils.StartOfDay(date)).
		Where("status NOT IN ?", []string{models.StatusCancelled, models.StatusNoShow})
	if excludeID != nil {
		query = query.Where("id <> ?", *excludeID)
	}

	var existing []models.Appointment
	if err := query.Find(&existing).Error; err != nil {
		return false, err
	}

	for _, appt := range existing {
		existingStart, err := utils.ParseClock(appt.StartTime)
		if err != nil {
			continue
		}
		existingEnd, err := utils.ParseClock(appt.EndTime)
		if err != nil {
			continue
		}
		if utils.IntervalsOverlap(startMin, endMin, existingStart, existingEnd) {
			return true, nil
		}
	}
	return false, nil
}

// CreateAppointment validates the input, runs the conflict check and
// inserts the appointment. Appointments created by studio staff are
// auto-confirmed; customer bookings start pending.
func (s *AppointmentService) CreateAppointment(input *AppointmentInput, actor *models.User) (*models.Appointment, error) {
	if input.StudioID == 0 {
		return nil, newValidationError("studio_id", "is required")
	}
	if input.CustomerID == 0 {
		return nil, newValidationError("customer_id", "is required")
	}

	slot, err := validateSlot(input, true)
	if err != nil {
		return nil, err
	}

	status := models.StatusPending
	if utils.IsStaffRole(actor.Role) {
		status = models.StatusConfirmed
	}
	if input.Status != "" {
		requested, ok := models.NormalizeStatus(input.Status)
		if !ok {
			return nil, newValidationError("status", "unknown status value")
		}
		if requested != models.StatusPending && requested != models.StatusConfirmed {
			return nil, newValidationError("status", "new appointments must be pending or confirmed")
		}
		// Customers cannot self-confirm.
		if requested == models.StatusConfirmed && !utils.IsStaffRole(actor.Role) {
			requested = models.StatusPending
		}
		status = requested
	}

	conflict, err := s.CheckConflicts(input.StudioID, slot.date, slot.startMin, slot.endMin, nil)
	if err != nil {
		return nil, err
	}
	if conflict {
		return nil, ErrConflict
	}

	appointment := models.Appointment{
		StudioID:          input.StudioID,
		CustomerID:        input.CustomerID,
		AppointmentTypeID: input.AppointmentTypeID,
		AppointmentDate:   slot.date,
		StartTime:         utils.FormatClock(slot.startMin),
		EndTime:           utils.FormatClock(slot.endMin),
		Status:            status,
		Notes:             input.Notes,
		CreatedByUserID:   actor.ID,
	}
	if err := s.db.Create(&appointment).Error; err != nil {
		return nil, err
	}

	logrus.WithFields(logrus.Fields{
		"appointment_id": appointment.ID,
		"studio_id":      appointment.StudioID,
		"customer_id":    appointment.CustomerID,
		"status":         appointment.Status,
	}).Info("Appointment created")

	return &appointment, nil
}

// UpdateAppointment applies new slot/notes data. The conflict check is
// repeated only when date or times actually changed, excluding the
// appointment itself.
func (s *AppointmentService) UpdateAppointment(id uint, input *AppointmentInput, actor *models.User) (*models.Appointment, error) {
	appointment, err := s.GetAppointment(id)
	if err != nil {
		return nil, err
	}

	if input.AppointmentDate == "" {
		input.AppointmentDate = appointment.AppointmentDate.Format(utils.DateLayout)
	}
	if input.StartTime == "" {
		input.StartTime = appointment.StartTime
	}
	if input.EndTime == "" {
		input.EndTime = appointment.EndTime
	}

	slot, err := validateSlot(input, false)
	if err != nil {
		return nil, err
	}

	newStart := utils.FormatClock(slot.startMin)
	newEnd := utils.FormatClock(slot.endMin)
	slotChanged := !slot.date.Equal(utils.StartOfDay(appointment.AppointmentDate)) ||
		newStart != appointment.StartTime || newEnd != appointment.EndTime

	if slotChanged {
		conflict, err := s.CheckConflicts(appointment.StudioID, slot.date, slot.startMin, slot.endMin, &appointment.ID)
		if err != nil {
			return nil, err
		}
		if conflict {
			return nil, ErrConflict
		}
	}

	appointment.AppointmentDate = slot.date
	appointment.StartTime = newStart
	appointment.EndTime = newEnd
	if input.AppointmentTypeID != nil {
		appointment.AppointmentTypeID = input.AppointmentTypeID
	}
	if input.Notes != "" {
		appointment.Notes = input.Notes
	}

	if err := s.db.Save(appointment).Error; err != nil {
		return nil, err
	}
	return appointment, nil
}

// ConfirmAppointment moves a pending appointment to confirmed.
func (s *AppointmentService) ConfirmAppointment(id uint) (*models.Appointment, error) {
	appointment, err := s.GetAppointment(id)
	if err != nil {
		return nil, err
	}
	if !models.CanTransition(appointment.Status, models.StatusConfirmed) {
		return nil, ErrInvalidTransition
	}

	appointment.Status = models.StatusConfirmed
	if err := s.db.Save(appointment).Error; err != nil {
		return nil, err
	}
	return appointment, nil
}

// CancelAppointment cancels a pending or confirmed appointment. Customers
// must respect the studio's advance-notice window; staff may cancel at any
// time. Cancelling a confirmed appointment restores one session credit,
// best effort: a failed refund never blocks the cancellation.
func (s *AppointmentService) CancelAppointment(id uint, actor *models.User, reason string) (*CancelResult, error) {
	appointment, err := s.GetAppointment(id)
	if err != nil {
		return nil, err
	}
	if !models.CanTransition(appointment.Status, models.StatusCancelled) {
		return nil, ErrInvalidTransition
	}

	if actor.Role == "customer" {
		if err := s.checkCancellationNotice(appointment); err != nil {
			return nil, err
		}
	}

	wasConfirmed := appointment.Status == models.StatusConfirmed
	appointment.Status = models.StatusCancelled
	appointment.CancelReason = reason
	if err := s.db.Save(appointment).Error; err != nil {
		return nil, err
	}

	result := &CancelResult{Appointment: appointment}
	if wasConfirmed {
		apptID := appointment.ID
		if _, err := s.ledger.RefundSession(appointment.CustomerID, appointment.StudioID, &apptID, actor.ID, "cancellation refund"); err != nil {
			logrus.WithError(err).WithField("appointment_id", appointment.ID).
				Warn("Cancellation refund failed; appointment cancelled without credit restore")
		} else {
			result.SessionRestored = true
		}
	}

	return result, nil
}

// checkCancellationNotice enforces now + advance <= appointment start.
func (s *AppointmentService) checkCancellationNotice(appointment *models.Appointment) error {
	var studio models.Studio
	if err := s.db.First(&studio, appointment.StudioID).Error; err != nil {
		return err
	}

	loc, err := time.LoadLocation(studio.Timezone)
	if err != nil {
		loc = time.Local
	}

	startMin, err := utils.ParseClock(appointment.StartTime)
	if err != nil {
		return err
	}

	startsAt := utils.CombineDateAndClock(appointment.AppointmentDate, startMin, loc)
	deadline := time.Now().Add(time.Duration(studio.CancellationAdvanceHours) * time.Hour)
	if deadline.After(startsAt) {
		shortfall := deadline.Sub(startsAt).Hours()
		return &CancellationNoticeError{
			RequiredHours:  studio.CancellationAdvanceHours,
			ShortfallHours: shortfall,
		}
	}
	return nil
}

// CompleteAppointment transitions a confirmed appointment to completed and
// deducts one session credit. Per studio policy the completion stands even
// when the customer has no credits left; the result flags the miss so
// staff can follow up.
func (s *AppointmentService) CompleteAppointment(id uint, actorID uint) (*CompleteResult, error) {
	appointment, err := s.GetAppointment(id)
	if err != nil {
		return nil, err
	}
	if !models.CanTransition(appointment.Status, models.StatusCompleted) {
		return nil, ErrInvalidTransition
	}

	appointment.Status = models.StatusCompleted
	if err := s.db.Save(appointment).Error; err != nil {
		return nil, err
	}

	result := &CompleteResult{Appointment: appointment}
	apptID := appointment.ID
	ledgerResult, err := s.ledger.DeductSession(appointment.CustomerID, appointment.StudioID, &apptID, actorID, "appointment completed")
	if err != nil {
		logrus.WithError(err).WithFields(logrus.Fields{
			"appointment_id": appointment.ID,
			"customer_id":    appointment.CustomerID,
		}).Warn("Appointment completed without session deduction")
		return result, nil
	}

	result.SessionDeducted = true
	result.RemainingSessions = ledgerResult.RemainingSessions
	return result, nil
}

// MarkNoShow transitions a confirmed appointment to no_show. No-shows
// keep their deduction out of the ledger: the credit was not consumed.
func (s *AppointmentService) MarkNoShow(id uint) (*models.Appointment, error) {
	appointment, err := s.GetAppointment(id)
	if err != nil {
		return nil, err
	}
	if !models.CanTransition(appointment.Status, models.StatusNoShow) {
		return nil, ErrInvalidTransition
	}

	appointment.Status = models.StatusNoShow
	if err := s.db.Save(appointment).Error; err != nil {
		return nil, err
	}
	return appointment, nil
}

// SweepResult summarizes one sweep run.
type SweepResult struct {
	Completed        int `json:"completed"`
	DeductionsFailed int `json:"deductions_failed"`
	Errors           int `json:"errors"`
}

// SweepPastConfirmed finds confirmed appointments whose date has passed,
// completes each and deducts one session. Failures on individual
// appointments are logged and skipped; the batch is deliberately not
// atomic so one broken row cannot wedge the whole sweep.
func (s *AppointmentService) SweepPastConfirmed() (*SweepResult, error) {
	today := utils.StartOfDay(time.Now())

	var due []models.Appointment
	err := s.db.Where("appointment_date < ? AND status = ?", today, models.StatusConfirmed).
		Find(&due).Error
	if err != nil {
		return nil, err
	}

	result := &SweepResult{}
	for _, appointment := range due {
		completion, err := s.CompleteAppointment(appointment.ID, appointment.CreatedByUserID)
		if err != nil {
			if errors.Is(err, ErrInvalidTransition) {
				// Raced with a manual status change; nothing to do.
				continue
			}
			logrus.WithError(err).WithField("appointment_id", appointment.ID).
				Error("Sweep failed to complete appointment")
			result.Errors++
			continue
		}
		result.Completed++
		if !completion.SessionDeducted {
			result.DeductionsFailed++
		}
	}

	if result.Completed > 0 || result.Errors > 0 {
		logrus.WithFields(logrus.Fields{
			"completed":         result.Completed,
			"deductions_failed": result.DeductionsFailed,
			"errors":            result.Errors,
		}).Info("Past-appointment sweep finished")
	}

	return result, nil
}

// GetAppointment loads one appointment by id.
func (s *AppointmentService) GetAppointment(id uint) (*models.Appointment, error) {
	var appointment models.Appointment
	if err := s.db.First(&appointment, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &appointment, nil
}
