package utils

import (
	"strings"
	"time"

	"studiomanager_go/models"
)

// Compact representations used across APIs
type UserShort struct {
	ID        uint   `json:"id"`
	FirstName string `json:"first_name,omitempty"`
	LastName  string `json:"last_name,omitempty"`
	Role      string `json:"role,omitempty"`
}

type StudioShort struct {
	ID   uint   `json:"id"`
	Name string `json:"name,omitempty"`
	Code string `json:"code,omitempty"`
}

type NotificationDTO struct {
	ID        uint        `json:"id"`
	CreatedAt time.Time   `json:"created_at"`
	UpdatedAt time.Time   `json:"updated_at"`
	UserID    uint        `json:"user_id"`
	Title     string      `json:"title"`
	Message   string      `json:"message"`
	Type      string      `json:"type"`
	Read      bool        `json:"read"`
	ReadAt    *time.Time  `json:"read_at,omitempty"`
	Channels  models.JSON `json:"channels,omitempty"`
	Data      models.JSON `json:"data,omitempty"`
	User      UserShort   `json:"user"`
	Studio    StudioShort `json:"studio"`
}

// ToUserShort maps a user to its compact form, falling back to the
// username or email local-part when no name was captured.
func ToUserShort(u models.User) UserShort {
	us := UserShort{ID: u.ID, FirstName: u.FirstName, LastName: u.LastName, Role: u.Role}
	if us.FirstName == "" {
		name := u.Username
		if name == "" && u.Email != "" {
			name = strings.Split(u.Email, "@")[0]
		}
		parts := strings.Fields(name)
		if len(parts) > 0 {
			us.FirstName = parts[0]
		}
		if len(parts) > 1 {
			us.LastName = strings.Join(parts[1:], " ")
		}
	}
	return us
}

// ToNotificationDTO maps a models.Notification to the compact DTO.
// Assumes the caller preloaded User (and User.Studio when possible).
func ToNotificationDTO(n models.Notification) NotificationDTO {
	var ss StudioShort
	if n.User.Studio.ID != 0 {
		ss = StudioShort{ID: n.User.Studio.ID, Name: n.User.Studio.Name, Code: n.User.Studio.Code}
	}

	return NotificationDTO{
		ID:        n.ID,
		CreatedAt: n.CreatedAt,
		UpdatedAt: n.UpdatedAt,
		UserID:    n.UserID,
		Title:     n.Title,
		Message:   n.Message,
		Type:      n.Type,
		Read:      n.Read,
		ReadAt:    n.ReadAt,
		Channels:  n.Channels,
		Data:      n.Data,
		User:      ToUserShort(n.User),
		Studio:    ss,
	}
}

// AppointmentDTO is the calendar/list representation of an appointment:
// dates as "YYYY-MM-DD", statuses localized through the alias table.
type AppointmentDTO struct {
	ID                uint      `json:"id"`
	StudioID          uint      `json:"studio_id"`
	CustomerID        uint      `json:"customer_id"`
	AppointmentTypeID *uint     `json:"appointment_type_id,omitempty"`
	AppointmentDate   string    `json:"appointment_date"`
	StartTime         string    `json:"start_time"`
	EndTime           string    `json:"end_time"`
	Status            string    `json:"status"`
	Notes             string    `json:"notes,omitempty"`
	CancelReason      string    `json:"cancel_reason,omitempty"`
	CreatedByUserID   uint      `json:"created_by_user_id"`
	CreatedAt         time.Time `json:"created_at"`
	UpdatedAt         time.Time `json:"updated_at"`
	Customer          UserShort `json:"customer"`
	TypeName          string    `json:"type_name,omitempty"`
}

func ToAppointmentDTO(a models.Appointment) AppointmentDTO {
	dto := AppointmentDTO{
		ID:                a.ID,
		StudioID:          a.StudioID,
		CustomerID:        a.CustomerID,
		AppointmentTypeID: a.AppointmentTypeID,
		AppointmentDate:   a.AppointmentDate.Format(DateLayout),
		StartTime:         a.StartTime,
		EndTime:           a.EndTime,
		Status:            a.Status,
		Notes:             a.Notes,
		CancelReason:      a.CancelReason,
		CreatedByUserID:   a.CreatedByUserID,
		CreatedAt:         a.CreatedAt,
		UpdatedAt:         a.UpdatedAt,
		Customer:          ToUserShort(a.Customer),
	}
	if a.AppointmentType != nil {
		dto.TypeName = a.AppointmentType.Name
	}
	return dto
}

func ToAppointmentDTOs(list []models.Appointment) []AppointmentDTO {
	out := make([]AppointmentDTO, 0, len(list))
	for _, a := range list {
		out = append(out, ToAppointmentDTO(a))
	}
	return out
}

// SessionBlockDTO exposes a credit block with its purchase metadata.
type SessionBlockDTO struct {
	ID                uint      `json:"id"`
	CustomerID        uint      `json:"customer_id"`
	StudioID          uint      `json:"studio_id"`
	TotalSessions     int       `json:"total_sessions"`
	RemainingSessions int       `json:"remaining_sessions"`
	BlockType         string    `json:"block_type"`
	BlockOrder        int       `json:"block_order"`
	PurchaseDate      string    `json:"purchase_date"`
	IsActive          bool      `json:"is_active"`
	Notes             string    `json:"notes,omitempty"`
	CreatedAt         time.Time `json:"created_at"`
}

func ToSessionBlockDTO(s models.CustomerSession) SessionBlockDTO {
	return SessionBlockDTO{
		ID:                s.ID,
		CustomerID:        s.CustomerID,
		StudioID:          s.StudioID,
		TotalSessions:     s.TotalSessions,
		RemainingSessions: s.RemainingSessions,
		BlockType:         s.BlockType,
		BlockOrder:        s.BlockOrder,
		PurchaseDate:      s.PurchaseDate.Format(DateLayout),
		IsActive:          s.IsActive,
		Notes:             s.Notes,
		CreatedAt:         s.CreatedAt,
	}
}

func ToSessionBlockDTOs(list []models.CustomerSession) []SessionBlockDTO {
	out := make([]SessionBlockDTO, 0, len(list))
	for _, s := range list {
		out = append(out, ToSessionBlockDTO(s))
	}
	return out
}
