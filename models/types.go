package models

import (
	"encoding/json"
	"time"
)

// Role constants
const (
	RolePicker     = "picker"
	RoleOperative  = "operative"
	RoleSupervisor = "supervisor"
	RoleAdmin      = "admin"
)

// Usage event categories
const (
	EventStateSave         = "STATE_SAVE"
	EventLogin             = "LOGIN"
	EventShiftStart        = "SHIFT_START"
	EventShiftEnd          = "SHIFT_END"
	EventOrderClosed       = "ORDER_CLOSED"
	EventShiftConflict     = "SHIFT_CONFLICT"
	EventShiftBlockedClear = "SHIFT_BLOCKED_CLEAR"
)

// Order event types
const (
	OrderEventClosed      = "order_closed"
	OrderEventClosedEarly = "order_closed_early"
)

// Warehouse bay states
const (
	BayEmpty = "empty"
	BayFull  = "full"
)

// Shift patch error codes, returned in ErrorResponse.Code
const (
	CodeVersionConflict = "version_conflict"
	CodeBlockedClear    = "blocked_clear"
	CodeShiftEnded      = "shift_ended"
)

// Request types

type RegisterRequest struct {
	Username    string `json:"username"`
	Password    string `json:"password"`
	DisplayName string `json:"display_name"`
	Role        string `json:"role"`
}

type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type LoginPinRequest struct {
	PinCode  string `json:"pin_code"`
	DeviceID string `json:"device_id"`
}

type RoleAccessRequest struct {
	Role    string `json:"role"`
	PinCode string `json:"pin_code"`
}

type StartShiftRequest struct {
	OperatorName string `json:"operator_name"`
	Site         string `json:"site"`
	ShiftType    string `json:"shift_type"`
	DeviceID     string `json:"device_id"`
}

type EndShiftRequest struct {
	ShiftID    string          `json:"shift_id"`
	TotalUnits *int            `json:"total_units"`
	AvgRate    *float64        `json:"avg_rate"`
	Summary    json.RawMessage `json:"summary"`
}

type ShiftStatePatch struct {
	ActiveOrderSnapshot json.RawMessage `json:"active_order_snapshot"`
}

// RecordOrderRequest wraps the client's archived order. The order is kept
// raw so the summary can be derived leniently from whatever the client sent.
type RecordOrderRequest struct {
	ShiftID  string          `json:"shift_id"`
	DeviceID string          `json:"device_id"`
	Order    json.RawMessage `json:"order"`
}

type CreateMessageRequest struct {
	RecipientID string `json:"recipient_id"`
	Body        string `json:"body"`
}

type BayRange struct {
	Aisle  string `json:"aisle"`
	MinBay int    `json:"min_bay"`
	MaxBay int    `json:"max_bay"`
}

type BayUpdate struct {
	Aisle string `json:"aisle"`
	Bay   int    `json:"bay"`
	State string `json:"state"`
}

type BulkLocationsRequest struct {
	Ranges    []BayRange  `json:"ranges"`
	Locations []BayUpdate `json:"locations"`
}

// Response types

type AuthResponse struct {
	Success     bool   `json:"success"`
	Token       string `json:"token,omitempty"`
	UserID      string `json:"user_id"`
	Username    string `json:"username"`
	DisplayName string `json:"display_name"`
	Role        string `json:"role"`
}

type RoleAccessResponse struct {
	OK          bool   `json:"ok"`
	Role        string `json:"role"`
	DisplayName string `json:"display_name"`
	UserID      string `json:"user_id"`
}

type ShiftState struct {
	StateVersion        int             `json:"state_version"`
	ActiveOrderSnapshot json.RawMessage `json:"active_order_snapshot"`
}

type OperatorHistory struct {
	OperatorID string        `json:"operator_id"`
	Orders     int           `json:"orders"`
	TotalUnits int           `json:"total_units"`
	AvgRateUh  *float64      `json:"avg_rate_uh"`
	Records    []OrderRecord `json:"records"`
}

type BulkLocationsResponse struct {
	Seeded   int `json:"seeded"`
	Upserted int `json:"upserted"`
}

type AisleSummary struct {
	Aisle  string            `json:"aisle"`
	MinBay int               `json:"min_bay"`
	MaxBay int               `json:"max_bay"`
	Total  int               `json:"total"`
	Full   int               `json:"full"`
	Empty  int               `json:"empty"`
	Bays   map[string]string `json:"bays"`
}

type LocationSummary struct {
	Aisles []AisleSummary `json:"aisles"`
	Total  int            `json:"total"`
	Full   int            `json:"full"`
	Empty  int            `json:"empty"`
}

type UsageDay struct {
	Date  string `json:"date"`
	Count int    `json:"count"`
}

type DeviceView struct {
	LogicalKey   string    `json:"logical_key"`
	Source       string    `json:"source"` // "user" or "device"
	DeviceID     string    `json:"device_id"`
	OperatorID   string    `json:"operator_id"`
	OperatorName string    `json:"operator_name"`
	SavedAt      string    `json:"saved_at"`
	LastSeen     string    `json:"last_seen"`
	LiveRateUh   *float64  `json:"live_rate_uh"`
	CurrentOrder string    `json:"current_order"`
	ClosedOrders int       `json:"closed_orders"`
	UnitsDone    int       `json:"units_done"`
	StartTime    string    `json:"start_time"`
	OnBreak      bool      `json:"on_break"`
	LastActivity string    `json:"last_activity"`
	RowUpdatedAt time.Time `json:"row_updated_at"`
}

type DevicesResponse struct {
	Devices []DeviceView `json:"devices"`
	Count   int          `json:"count"`
}

type UsageLogResponse struct {
	Events []UsageEvent `json:"events"`
}

type UsageSummaryResponse struct {
	Category string     `json:"category"`
	Days     []UsageDay `json:"days"`
}

type MessagesResponse struct {
	Messages []AdminMessage `json:"messages"`
	Unread   int            `json:"unread"`
}

// Domain types

type User struct {
	ID           string    `json:"id" db:"id"`
	Username     string    `json:"username" db:"username"`
	PasswordHash string    `json:"-" db:"password_hash"` // Never expose in JSON
	DisplayName  string    `json:"display_name" db:"display_name"`
	Role         string    `json:"role" db:"role"`
	CreatedAt    time.Time `json:"created_at" db:"created_at"`
}

type Device struct {
	ID         string    `json:"id" db:"id"`
	LastUserID string    `json:"last_user_id" db:"last_user_id"`
	CreatedAt  time.Time `json:"created_at" db:"created_at"`
	LastSeenAt time.Time `json:"last_seen_at" db:"last_seen_at"`
	LastSeen   string    `json:"last_seen" db:"-"`
}

type ShiftSession struct {
	ID                  string          `json:"id"`
	OperatorID          string          `json:"operator_id"`
	OperatorName        string          `json:"operator_name"`
	Site                string          `json:"site"`
	ShiftType           string          `json:"shift_type"`
	DeviceID            string          `json:"device_id"`
	StartedAt           time.Time       `json:"started_at"`
	EndedAt             *time.Time      `json:"ended_at"`
	TotalUnits          *int            `json:"total_units"`
	AvgRate             *float64        `json:"avg_rate"`
	Summary             json.RawMessage `json:"summary"`
	StateVersion        int             `json:"state_version"`
	ActiveOrderSnapshot json.RawMessage `json:"active_order_snapshot"`
	UpdatedAt           *time.Time      `json:"updated_at"`
}

type OrderRecord struct {
	ID           string    `json:"id" db:"id"`
	OperatorID   string    `json:"operator_id" db:"operator_id"`
	OperatorName string    `json:"operator_name" db:"operator_name"`
	DeviceID     string    `json:"device_id" db:"device_id"`
	ShiftID      *string   `json:"shift_id" db:"shift_id"`
	OrderName    string    `json:"order_name" db:"order_name"`
	Units        int       `json:"units" db:"units"`
	Pallets      int       `json:"pallets" db:"pallets"`
	Locations    int       `json:"locations" db:"locations"`
	StartHHMM    string    `json:"start" db:"start_hhmm"`
	CloseHHMM    string    `json:"close" db:"close_hhmm"`
	DurationMin  *int      `json:"duration_min" db:"duration_min"`
	OrderRateUh  *float64  `json:"order_rate_uh" db:"order_rate_uh"`
	ExclMin      int       `json:"excl_min" db:"excl_min"`
	Remaining    *int      `json:"remaining" db:"remaining"`
	ClosedEarly  bool      `json:"closed_early" db:"closed_early"`
	EarlyReason  string    `json:"early_reason" db:"early_reason"`
	CreatedAt    time.Time `json:"created_at" db:"created_at"`
}

type UsageEvent struct {
	ID        string          `json:"id"`
	CreatedAt time.Time       `json:"created_at"`
	Age       string          `json:"age"`
	Category  string          `json:"category"`
	Detail    json.RawMessage `json:"detail"`
}

type AdminMessage struct {
	ID          string     `json:"id" db:"id"`
	SenderID    string     `json:"sender_id" db:"sender_id"`
	RecipientID *string    `json:"recipient_id" db:"recipient_id"`
	Body        string     `json:"body" db:"body"`
	CreatedAt   time.Time  `json:"created_at" db:"created_at"`
	ReadAt      *time.Time `json:"read_at" db:"read_at"`
}

type WarehouseLocation struct {
	Aisle     string    `json:"aisle" db:"aisle"`
	Bay       int       `json:"bay" db:"bay"`
	State     string    `json:"state" db:"state"`
	UpdatedBy string    `json:"updated_by" db:"updated_by"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// Error response

type ErrorResponse struct {
	Error       string      `json:"error"`
	Message     string      `json:"message,omitempty"`
	Code        string      `json:"code,omitempty"`
	RequestID   string      `json:"request_id,omitempty"`
	ServerState *ShiftState `json:"server_state,omitempty"`
}
