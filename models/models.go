package models

import "time"

type AdminUser struct {
	ID           int       `json:"id"`
	Username     string    `json:"username"`
	PasswordHash string    `json:"-"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

type Floor struct {
	ID        int    `json:"id"`
	Name      string `json:"name"`
	SortOrder int    `json:"sort_order"`
	Rooms     []Room `json:"rooms,omitempty"`
}

// Calculation modes for water and electric charges.
const (
	CalcUnit  = "unit"
	CalcFixed = "fixed"
)

type Room struct {
	ID                  int     `json:"id"`
	FloorID             int     `json:"floor_id"`
	FloorName           string  `json:"floor_name,omitempty"`
	RoomNumber          string  `json:"room_number"`
	RoomPrice           float64 `json:"room_price"`
	WaterCalcType       string  `json:"water_calculation_type"`
	WaterFixedAmount    float64 `json:"water_fixed_amount"`
	ElectricCalcType    string  `json:"electric_calculation_type"`
	ElectricFixedAmount float64 `json:"electric_fixed_amount"`
	// Derived from the active tenant, never stored.
	IsOccupied  bool      `json:"is_occupied"`
	TenantID    *int      `json:"tenant_id,omitempty"`
	TenantName  string    `json:"tenant_name,omitempty"`
	TenantPhone string    `json:"tenant_phone,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

type Tenant struct {
	ID            int       `json:"id"`
	RoomID        *int      `json:"room_id"`
	RoomNumber    string    `json:"room_number,omitempty"`
	FloorName     string    `json:"floor_name,omitempty"`
	Name          string    `json:"name"`
	Phone         string    `json:"phone"`
	IDNumber      string    `json:"id_number"`
	Address       string    `json:"address"`
	MoveInDate    *string   `json:"move_in_date"`
	MoveOutDate   *string   `json:"move_out_date"`
	IsActive      bool      `json:"is_active"`
	IDCardImage   string    `json:"id_card_image"`
	ContractImage string    `json:"contract_image"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// MeterReading holds one room's water and electric registers for a billing
// period. A current value of 0 means "not yet recorded", matching the meter
// sheets the data is entered from.
type MeterReading struct {
	ID               int     `json:"id"`
	RoomID           int     `json:"room_id"`
	RoomNumber       string  `json:"room_number,omitempty"`
	FloorID          int     `json:"floor_id,omitempty"`
	FloorName        string  `json:"floor_name,omitempty"`
	ReadingMonth     int     `json:"reading_month"`
	ReadingYear      int     `json:"reading_year"`
	WaterPrevious    float64 `json:"water_previous"`
	WaterCurrent     float64 `json:"water_current"`
	ElectricPrevious float64 `json:"electric_previous"`
	ElectricCurrent  float64 `json:"electric_current"`
	ReadingDate      string  `json:"reading_date"`

	// Usage is nil while the current register is unrecorded. Negative usage
	// (meter swap or entry error) is passed through for the UI to flag.
	WaterUsage    *float64 `json:"water_usage"`
	ElectricUsage *float64 `json:"electric_usage"`
}

// UsageOf applies the "current > 0 means recorded" rule shared by the
// reading ledger and the billing generator.
func UsageOf(current, previous float64) *float64 {
	if current == 0 {
		return nil
	}
	u := current - previous
	return &u
}

// ComputeUsage fills both usage fields from the stored registers.
func (m *MeterReading) ComputeUsage() {
	m.WaterUsage = UsageOf(m.WaterCurrent, m.WaterPrevious)
	m.ElectricUsage = UsageOf(m.ElectricCurrent, m.ElectricPrevious)
}

// RoomPeriod is one row of the meter entry screen: the room, its reading for
// the requested period if one exists, and the continuity-resolved previous
// registers to seed a new entry with.
type RoomPeriod struct {
	RoomID              int      `json:"room_id"`
	RoomNumber          string   `json:"room_number"`
	RoomPrice           float64  `json:"room_price"`
	IsOccupied          bool     `json:"is_occupied"`
	WaterCalcType       string   `json:"water_calculation_type"`
	WaterFixedAmount    float64  `json:"water_fixed_amount"`
	ElectricCalcType    string   `json:"electric_calculation_type"`
	ElectricFixedAmount float64  `json:"electric_fixed_amount"`
	FloorID             int      `json:"floor_id"`
	FloorName           string   `json:"floor_name"`
	ReadingID           *int     `json:"reading_id"`
	WaterPrevious       *float64 `json:"water_previous"`
	WaterCurrent        *float64 `json:"water_current"`
	ElectricPrevious    *float64 `json:"electric_previous"`
	ElectricCurrent     *float64 `json:"electric_current"`
	PrevWater           float64  `json:"prev_water"`
	PrevElectric        float64  `json:"prev_electric"`
}

type Bill struct {
	ID               int       `json:"id"`
	RoomID           int       `json:"room_id"`
	TenantID         *int      `json:"tenant_id"`
	RoomNumber       string    `json:"room_number,omitempty"`
	FloorName        string    `json:"floor_name,omitempty"`
	TenantName       string    `json:"tenant_name,omitempty"`
	TenantPhone      string    `json:"tenant_phone,omitempty"`
	BillMonth        int       `json:"bill_month"`
	BillYear         int       `json:"bill_year"`
	RoomPrice        float64   `json:"room_price"`
	WaterPrevious    *float64  `json:"water_previous,omitempty"`
	WaterCurrent     *float64  `json:"water_current,omitempty"`
	WaterUnits       float64   `json:"water_units"`
	WaterRate        *float64  `json:"water_rate"`
	WaterAmount      float64   `json:"water_amount"`
	WaterType        string    `json:"water_type,omitempty"`
	ElectricPrevious *float64  `json:"electric_previous,omitempty"`
	ElectricCurrent  *float64  `json:"electric_current,omitempty"`
	ElectricUnits    float64   `json:"electric_units"`
	ElectricRate     *float64  `json:"electric_rate"`
	ElectricAmount   float64   `json:"electric_amount"`
	ElectricType     string    `json:"electric_type,omitempty"`
	TrashFee         float64   `json:"trash_fee"`
	OtherAmount      float64   `json:"other_amount"`
	OtherDescription string    `json:"other_description"`
	TotalAmount      float64   `json:"total_amount"`
	IsPaid           bool      `json:"is_paid"`
	PaidDate         *string   `json:"paid_date"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`
}

// MeterSource is a smart meter wired to a room, collected over MQTT or
// Modbus TCP instead of entered from a manual sheet.
type MeterSource struct {
	ID               int        `json:"id"`
	RoomID           int        `json:"room_id"`
	RoomNumber       string     `json:"room_number,omitempty"`
	Utility          string     `json:"utility"`
	SourceType       string     `json:"source_type"`
	ConnectionConfig string     `json:"connection_config"`
	IsActive         bool       `json:"is_active"`
	LastValue        float64    `json:"last_value"`
	LastSeen         *time.Time `json:"last_seen"`
	CreatedAt        time.Time  `json:"created_at"`
	UpdatedAt        time.Time  `json:"updated_at"`
}

type AdminLog struct {
	ID        int       `json:"id"`
	Action    string    `json:"action"`
	Details   string    `json:"details"`
	UserID    *int      `json:"user_id"`
	IPAddress string    `json:"ip_address"`
	CreatedAt time.Time `json:"created_at"`
}

type DashboardStats struct {
	TotalFloors    int     `json:"total_floors"`
	TotalRooms     int     `json:"total_rooms"`
	OccupiedRooms  int     `json:"occupied_rooms"`
	ActiveTenants  int     `json:"active_tenants"`
	UnpaidBills    int     `json:"unpaid_bills"`
	MonthBilled    float64 `json:"month_billed"`
	MonthCollected float64 `json:"month_collected"`
	ActiveSources  int     `json:"active_sources"`
	TotalSources   int     `json:"total_sources"`
}
