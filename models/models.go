package models

import (
	"database/sql/driver"
	"time"

	"gorm.io/gorm"
)

// Base model with common fields
type BaseModel struct {
	ID        uint           `json:"id" gorm:"primaryKey"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `json:"deleted_at,omitempty" gorm:"index"`
}

// JSON field type for GORM
type JSON []byte

func (j JSON) Value() (driver.Value, error) {
	if j.IsNull() {
		return nil, nil
	}
	return string(j), nil
}

func (j *JSON) Scan(value interface{}) error {
	if value == nil {
		*j = nil
		return nil
	}
	switch s := value.(type) {
	case []byte:
		*j = append((*j)[0:0], s...)
	case string:
		*j = append((*j)[0:0], s...)
	}
	return nil
}

func (j JSON) MarshalJSON() ([]byte, error) {
	if j == nil {
		return []byte("null"), nil
	}
	return j, nil
}

func (j *JSON) UnmarshalJSON(data []byte) error {
	if j == nil {
		return nil
	}
	*j = append((*j)[0:0], data...)
	return nil
}

func (j JSON) IsNull() bool {
	return len(j) == 0 || string(j) == "null"
}

// Studio model. Each tenant of the platform is one studio.
type Studio struct {
	BaseModel
	Name     string `json:"name" gorm:"size:255;not null"`
	Code     string `json:"code" gorm:"size:50;not null;uniqueIndex"`
	Address  string `json:"address" gorm:"size:500"`
	Phone    string `json:"phone" gorm:"size:20"`
	Email    string `json:"email" gorm:"size:255"`
	Timezone string `json:"timezone" gorm:"size:64;default:'Europe/Berlin'"`
	// Minimum lead time (hours) a customer must give to cancel an appointment.
	CancellationAdvanceHours int  `json:"cancellation_advance_hours" gorm:"not null;default:24"`
	TopupPackageSizes        JSON `json:"topup_package_sizes" gorm:"type:json"` // e.g. [10,20]
	Active                   bool `json:"active" gorm:"default:true"`

	// Relationships
	Users            []User            `json:"users,omitempty" gorm:"foreignKey:StudioID"`
	AppointmentTypes []AppointmentType `json:"appointment_types,omitempty" gorm:"foreignKey:StudioID"`
}

// User model. Customers, studio owners and managers all live here.
type User struct {
	BaseModel
	Username  string `json:"username" gorm:"size:100;not null;uniqueIndex"`
	Password  string `json:"-" gorm:"size:255;not null"`
	Email     string `json:"email" gorm:"size:255;uniqueIndex"`
	Phone     string `json:"phone" gorm:"size:20"`
	FirstName string `json:"first_name" gorm:"size:100"`
	LastName  string `json:"last_name" gorm:"size:100"`
	Role      string `json:"role" gorm:"size:50;not null;default:'customer'"` // manager, studio_owner, customer
	StudioID  uint   `json:"studio_id" gorm:"not null;index"`
	Status    string `json:"status" gorm:"size:50;not null;default:'active'"` // active, inactive, suspended
	Avatar    string `json:"avatar" gorm:"size:500"`
	Notes     string `json:"notes" gorm:"type:text"`

	// Relationships
	Studio Studio `json:"studio,omitempty" gorm:"foreignKey:StudioID"`
}

// AppointmentType model (e.g. EMS training, massage, trial session)
type AppointmentType struct {
	BaseModel
	StudioID        uint   `json:"studio_id" gorm:"not null;index"`
	Name            string `json:"name" gorm:"size:100;not null"`
	DurationMinutes int    `json:"duration_minutes" gorm:"not null;default:60"`
	Color           string `json:"color" gorm:"size:20"`
	Active          bool   `json:"active" gorm:"default:true"`

	// Relationships
	Studio Studio `json:"studio,omitempty" gorm:"foreignKey:StudioID"`
}

// Appointment model. Date and times are kept separately the way the
// booking UI sends them: a calendar date plus "HH:MM" wall-clock strings.
type Appointment struct {
	BaseModel
	StudioID          uint      `json:"studio_id" gorm:"not null;index:idx_appointments_studio_date"`
	CustomerID        uint      `json:"customer_id" gorm:"not null;index"`
	AppointmentTypeID *uint     `json:"appointment_type_id" gorm:"default:null"`
	AppointmentDate   time.Time `json:"appointment_date" gorm:"type:date;not null;index:idx_appointments_studio_date"`
	StartTime         string    `json:"start_time" gorm:"size:5;not null"` // "HH:MM"
	EndTime           string    `json:"end_time" gorm:"size:5;not null"`   // "HH:MM"
	Status            string    `json:"status" gorm:"size:50;not null;default:'pending'"`
	Notes             string    `json:"notes" gorm:"type:text"`
	CancelReason      string    `json:"cancel_reason" gorm:"size:500"`
	CreatedByUserID   uint      `json:"created_by_user_id"`

	// Relationships
	Studio          Studio           `json:"studio,omitempty" gorm:"foreignKey:StudioID"`
	Customer        User             `json:"customer,omitempty" gorm:"foreignKey:CustomerID"`
	AppointmentType *AppointmentType `json:"appointment_type,omitempty" gorm:"foreignKey:AppointmentTypeID"`
}

// CustomerSession model: a purchased block of prepaid session credits for
// one customer at one studio. Blocks are soft-deactivated, never deleted.
// Invariant: 0 <= remaining_sessions <= total_sessions.
type CustomerSession struct {
	BaseModel
	CustomerID        uint      `json:"customer_id" gorm:"not null;index:idx_customer_sessions_owner"`
	StudioID          uint      `json:"studio_id" gorm:"not null;index:idx_customer_sessions_owner"`
	TotalSessions     int       `json:"total_sessions" gorm:"not null"`
	RemainingSessions int       `json:"remaining_sessions" gorm:"not null"`
	PurchaseDate      time.Time `json:"purchase_date" gorm:"not null"`
	// Consumption order among a customer's blocks. Deduction always takes
	// the oldest active block with remaining balance first.
	BlockOrder int    `json:"block_order" gorm:"not null;default:1"`
	BlockType  string `json:"block_type" gorm:"size:50;not null;default:'package'"`
	Notes      string `json:"notes" gorm:"type:text"`
	IsActive   bool   `json:"is_active" gorm:"not null;default:true"`

	// Relationships
	Customer User   `json:"customer,omitempty" gorm:"foreignKey:CustomerID"`
	Studio   Studio `json:"studio,omitempty" gorm:"foreignKey:StudioID"`
}

// Session transaction types
const (
	TxPurchase     = "purchase"
	TxDeduction    = "deduction"
	TxTopup        = "topup"
	TxRefund       = "refund"
	TxEdit         = "edit"
	TxDeactivation = "deactivation"
)

// SessionTransaction model: immutable audit record. Every mutation of a
// block's remaining_sessions writes exactly one row here, in the same
// database transaction.
type SessionTransaction struct {
	ID                uint      `json:"id" gorm:"primaryKey"`
	CustomerSessionID uint      `json:"customer_session_id" gorm:"not null;index"`
	TransactionType   string    `json:"transaction_type" gorm:"size:50;not null"`
	Amount            int       `json:"amount" gorm:"not null"` // positive for credits, negative for deduction
	AppointmentID     *uint     `json:"appointment_id" gorm:"default:null;index"`
	CreatedByUserID   uint      `json:"created_by_user_id"`
	Notes             string    `json:"notes" gorm:"type:text"`
	CreatedAt         time.Time `json:"created_at"`

	// Relationships
	CustomerSession CustomerSession `json:"customer_session,omitempty" gorm:"foreignKey:CustomerSessionID"`
	Appointment     *Appointment    `json:"appointment,omitempty" gorm:"foreignKey:AppointmentID"`
}

// Lead model for the studio CRM. External collaborators (web forms, the
// voice bridge) create leads through the same API contract as staff.
type Lead struct {
	BaseModel
	StudioID         uint       `json:"studio_id" gorm:"not null;index"`
	Name             string     `json:"name" gorm:"size:200;not null"`
	Phone            string     `json:"phone" gorm:"size:20"`
	Email            string     `json:"email" gorm:"size:255"`
	Source           string     `json:"source" gorm:"size:50;not null;default:'manual'"`
	Status           string     `json:"status" gorm:"size:50;not null;default:'new'"`
	Notes            string     `json:"notes" gorm:"type:text"`
	AssignedToUserID *uint      `json:"assigned_to_user_id" gorm:"default:null"`
	LastContactAt    *time.Time `json:"last_contact_at"`

	// Relationships
	Studio     Studio `json:"studio,omitempty" gorm:"foreignKey:StudioID"`
	AssignedTo *User  `json:"assigned_to,omitempty" gorm:"foreignKey:AssignedToUserID"`
}

// Log model for activity tracking
type ActivityLog struct {
	BaseModel
	UserID     uint   `json:"user_id"`
	Action     string `json:"action" gorm:"size:100;not null"`
	Resource   string `json:"resource" gorm:"size:100;not null"`
	ResourceID uint   `json:"resource_id"`
	Details    JSON   `json:"details" gorm:"type:json"`
	IPAddress  string `json:"ip_address" gorm:"size:45"`
	UserAgent  string `json:"user_agent" gorm:"size:500"`

	// Relationships
	User User `json:"user,omitempty" gorm:"foreignKey:UserID"`
}

// Notification model
type Notification struct {
	BaseModel
	UserID   uint       `json:"user_id" gorm:"not null"`
	Title    string     `json:"title" gorm:"size:255;not null"`
	Message  string     `json:"message" gorm:"type:text;not null"`
	Type     string     `json:"type" gorm:"size:50;not null"` // info, warning, error, success
	Read     bool       `json:"read" gorm:"default:false"`
	ReadAt   *time.Time `json:"read_at"`
	Channels JSON       `json:"channels,omitempty" gorm:"type:json"`
	Data     JSON       `json:"data,omitempty" gorm:"type:json"`

	// Relationships
	User User `json:"user,omitempty" gorm:"foreignKey:UserID"`
}

// LogArchive model for tracking archived logs
type LogArchive struct {
	BaseModel
	FileName    string    `json:"file_name" gorm:"size:255;not null"`
	S3Key       string    `json:"s3_key" gorm:"size:500;not null"`
	StartDate   time.Time `json:"start_date" gorm:"not null"`
	EndDate     time.Time `json:"end_date" gorm:"not null"`
	RecordCount int       `json:"record_count" gorm:"not null"`
	FileSize    int64     `json:"file_size" gorm:"not null"`
	Status      string    `json:"status" gorm:"size:50;not null;default:'pending'"` // pending, completed, failed
	Error       string    `json:"error" gorm:"type:text"`
}
