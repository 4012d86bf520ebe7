package controllers

import (
	"fmt"
	"studiomanager_go/database"
	"studiomanager_go/middleware"
	"studiomanager_go/models"
	"studiomanager_go/utils"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"
	"github.com/xuri/excelize/v2"
)

// ReportController builds the xlsx exports studio owners download for
// their bookkeeping: appointment histories and the session ledger.
type ReportController struct{}

func sendWorkbook(c *fiber.Ctx, f *excelize.File, name string) error {
	buf, err := f.WriteToBuffer()
	if err != nil {
		logrus.WithError(err).Error("Failed to build report workbook")
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to build report"})
	}
	c.Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	c.Set("Content-Disposition", fmt.Sprintf("attachment; filename=%s_%s.xlsx", name, time.Now().Format("20060102")))
	return c.Send(buf.Bytes())
}

func writeHeaderRow(f *excelize.File, sheet string, headers []string) {
	for i, header := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		f.SetCellValue(sheet, cell, header)
	}
}

func writeRow(f *excelize.File, sheet string, row int, values []interface{}) {
	for col, value := range values {
		cell, _ := excelize.CoordinatesToCellName(col+1, row)
		f.SetCellValue(sheet, cell, value)
	}
}

// reportStudioID pins owners to their studio; managers pick via query.
func reportStudioID(c *fiber.Ctx, user *models.User) uint {
	if user.Role == "manager" {
		if id := c.QueryInt("studio_id"); id > 0 {
			return uint(id)
		}
	}
	return user.StudioID
}

// ExportAppointments writes the appointment history of a studio as xlsx.
func (rc *ReportController) ExportAppointments(c *fiber.Ctx) error {
	user, err := middleware.GetCurrentUser(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "User not found"})
	}
	studioID := reportStudioID(c, user)

	query := database.DB.Where("studio_id = ?", studioID).
		Preload("Customer").Preload("AppointmentType")

	if from := c.Query("from"); from != "" {
		if date, err := utils.ParseDate(from); err == nil {
			query = query.Where("appointment_date >= ?", date)
		}
	}
	if to := c.Query("to"); to != "" {
		if date, err := utils.ParseDate(to); err == nil {
			query = query.Where("appointment_date <= ?", date)
		}
	}

	var appointments []models.Appointment
	if err := query.Order("appointment_date ASC, start_time ASC").Find(&appointments).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to fetch appointments"})
	}

	f := excelize.NewFile()
	defer f.Close()
	sheet := "Appointments"
	f.SetSheetName("Sheet1", sheet)
	writeHeaderRow(f, sheet, []string{"ID", "Date", "Start", "End", "Customer", "Type", "Status", "Cancel Reason", "Notes"})

	for i, appt := range appointments {
		customer := appt.Customer.Username
		if appt.Customer.LastName != "" {
			customer = appt.Customer.FirstName + " " + appt.Customer.LastName
		}
		typeName := ""
		if appt.AppointmentType != nil {
			typeName = appt.AppointmentType.Name
		}
		writeRow(f, sheet, i+2, []interface{}{
			appt.ID,
			appt.AppointmentDate.Format(utils.DateLayout),
			appt.StartTime,
			appt.EndTime,
			customer,
			typeName,
			appt.Status,
			appt.CancelReason,
			appt.Notes,
		})
	}

	middleware.LogActivity(c, "CREATE", "reports", 0, fiber.Map{"report": "appointments", "rows": len(appointments)})

	return sendWorkbook(c, f, "appointments")
}

// ExportSessionLedger writes every session block of a studio with its
// transaction sum, so the books can be reconciled offline. The Check
// column flags blocks whose transactions no longer add up.
func (rc *ReportController) ExportSessionLedger(c *fiber.Ctx) error {
	user, err := middleware.GetCurrentUser(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "User not found"})
	}
	studioID := reportStudioID(c, user)

	var blocks []models.CustomerSession
	if err := database.DB.Where("studio_id = ?", studioID).
		Preload("Customer").
		Order("customer_id ASC, block_order ASC").
		Find(&blocks).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to fetch session blocks"})
	}

	f := excelize.NewFile()
	defer f.Close()
	sheet := "Session Ledger"
	f.SetSheetName("Sheet1", sheet)
	writeHeaderRow(f, sheet, []string{"Block ID", "Customer", "Type", "Order", "Purchased", "Total", "Remaining", "Tx Sum", "Check", "Active"})

	for i, block := range blocks {
		var txSum int64
		database.DB.Model(&models.SessionTransaction{}).
			Where("customer_session_id = ?", block.ID).
			Select("COALESCE(SUM(amount), 0)").
			Scan(&txSum)

		check := "ok"
		if int(txSum) != block.RemainingSessions {
			check = "MISMATCH"
		}

		customer := block.Customer.Username
		if block.Customer.LastName != "" {
			customer = block.Customer.FirstName + " " + block.Customer.LastName
		}

		writeRow(f, sheet, i+2, []interface{}{
			block.ID,
			customer,
			block.BlockType,
			block.BlockOrder,
			block.PurchaseDate.Format(utils.DateLayout),
			block.TotalSessions,
			block.RemainingSessions,
			txSum,
			check,
			block.IsActive,
		})
	}

	middleware.LogActivity(c, "CREATE", "reports", 0, fiber.Map{"report": "session_ledger", "rows": len(blocks)})

	return sendWorkbook(c, f, "session_ledger")
}

// GetDashboardStats returns the studio dashboard numbers as JSON.
func (rc *ReportController) GetDashboardStats(c *fiber.Ctx) error {
	user, err := middleware.GetCurrentUser(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "User not found"})
	}
	studioID := reportStudioID(c, user)

	today := utils.StartOfDay(time.Now())
	monthStart := time.Date(today.Year(), today.Month(), 1, 0, 0, 0, 0, today.Location())

	var stats struct {
		AppointmentsToday     int64 `json:"appointments_today"`
		PendingConfirmations  int64 `json:"pending_confirmations"`
		CompletedThisMonth    int64 `json:"completed_this_month"`
		CancelledThisMonth    int64 `json:"cancelled_this_month"`
		ActiveCustomers       int64 `json:"active_customers"`
		OpenLeads             int64 `json:"open_leads"`
		SessionsSoldThisMonth int64 `json:"sessions_sold_this_month"`
	}

	database.DB.Model(&models.Appointment{}).
		Where("studio_id = ? AND appointment_date = ?", studioID, today).
		Where("status NOT IN ?", []string{models.StatusCancelled}).
		Count(&stats.AppointmentsToday)

	database.DB.Model(&models.Appointment{}).
		Where("studio_id = ? AND status = ?", studioID, models.StatusPending).
		Count(&stats.PendingConfirmations)

	database.DB.Model(&models.Appointment{}).
		Where("studio_id = ? AND status = ? AND appointment_date >= ?", studioID, models.StatusCompleted, monthStart).
		Count(&stats.CompletedThisMonth)

	database.DB.Model(&models.Appointment{}).
		Where("studio_id = ? AND status = ? AND appointment_date >= ?", studioID, models.StatusCancelled, monthStart).
		Count(&stats.CancelledThisMonth)

	database.DB.Model(&models.User{}).
		Where("studio_id = ? AND role = ? AND status = ?", studioID, "customer", "active").
		Count(&stats.ActiveCustomers)

	database.DB.Model(&models.Lead{}).
		Where("studio_id = ? AND status IN ?", studioID, []string{"new", "contacted", "trial_booked"}).
		Count(&stats.OpenLeads)

	database.DB.Model(&models.SessionTransaction{}).
		Joins("JOIN customer_sessions ON customer_sessions.id = session_transactions.customer_session_id").
		Where("customer_sessions.studio_id = ?", studioID).
		Where("session_transactions.transaction_type IN ?", []string{models.TxPurchase, models.TxTopup}).
		Where("session_transactions.created_at >= ?", monthStart).
		Select("COALESCE(SUM(session_transactions.amount), 0)").
		Scan(&stats.SessionsSoldThisMonth)

	return c.JSON(fiber.Map{"stats": stats})
}
