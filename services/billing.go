package services

import (
	"database/sql"
	"errors"
	"fmt"
	"log"
	"math"
	"strconv"
	"time"

	"github.com/ps2841/horpak-billing/models"
)

// Fallback rates used when a settings key is missing or unparsable.
const (
	DefaultWaterRate    = 18
	DefaultElectricRate = 8
	DefaultTrashFee     = 30
)

// Submitted totals may carry float formatting noise from the client; anything
// beyond half a satang is a real mismatch.
const totalTolerance = 0.005

// ErrTotalMismatch marks a submitted bill whose total does not equal the sum
// of its line items.
var ErrTotalMismatch = errors.New("total does not match line items")

type Rates struct {
	Water    float64
	Electric float64
	Trash    float64
}

type BillingService struct {
	db *sql.DB
}

func NewBillingService(db *sql.DB) *BillingService {
	return &BillingService{db: db}
}

// ParseRate parses a settings value, falling back when the key was never set
// or holds garbage. Zero and negative rates are treated as garbage too.
func ParseRate(value string, fallback float64) float64 {
	rate, err := strconv.ParseFloat(value, 64)
	if err != nil || rate <= 0 {
		return fallback
	}
	return rate
}

// LoadRates reads the current water/electric unit rates and trash fee from
// the settings store.
func (bs *BillingService) LoadRates() Rates {
	rates := Rates{
		Water:    DefaultWaterRate,
		Electric: DefaultElectricRate,
		Trash:    DefaultTrashFee,
	}

	rows, err := bs.db.Query("SELECT setting_key, setting_value FROM settings")
	if err != nil {
		log.Printf("ERROR: Failed to load settings, using defaults: %v", err)
		return rates
	}
	defer rows.Close()

	for rows.Next() {
		var key, value string
		if err := rows.Scan(&key, &value); err != nil {
			continue
		}
		switch key {
		case "water_rate":
			rates.Water = ParseRate(value, DefaultWaterRate)
		case "electric_rate":
			rates.Electric = ParseRate(value, DefaultElectricRate)
		case "trash_fee":
			rates.Trash = ParseRate(value, DefaultTrashFee)
		}
	}

	return rates
}

// UtilityCharge prices one utility: fixed mode charges the flat amount no
// matter what the meter says, unit mode charges units * rate. An unknown
// mode is a room configuration error, never silently defaulted.
func UtilityCharge(calcType string, fixedAmount, units, rate float64) (float64, error) {
	switch calcType {
	case models.CalcFixed:
		return fixedAmount, nil
	case models.CalcUnit:
		return units * rate, nil
	default:
		return 0, fmt.Errorf("unknown calculation type %q", calcType)
	}
}

// RoomPricing is the slice of a room the calculator needs.
type RoomPricing struct {
	RoomPrice           float64
	WaterCalcType       string
	WaterFixedAmount    float64
	ElectricCalcType    string
	ElectricFixedAmount float64
}

// ComputeBill fills the financial fields of a bill from the room's pricing,
// the current rates and the period's usage. Pure: the result is a snapshot,
// and later rate or price changes never touch an already generated bill.
// A missing room price contributes 0 rather than failing.
func ComputeBill(bill *models.Bill, pricing RoomPricing, rates Rates, waterUnits, electricUnits float64) error {
	waterAmount, err := UtilityCharge(pricing.WaterCalcType, pricing.WaterFixedAmount, waterUnits, rates.Water)
	if err != nil {
		return fmt.Errorf("water: %v", err)
	}
	electricAmount, err := UtilityCharge(pricing.ElectricCalcType, pricing.ElectricFixedAmount, electricUnits, rates.Electric)
	if err != nil {
		return fmt.Errorf("electric: %v", err)
	}

	bill.RoomPrice = pricing.RoomPrice
	bill.WaterType = pricing.WaterCalcType
	bill.WaterUnits = waterUnits
	bill.WaterAmount = waterAmount
	bill.ElectricType = pricing.ElectricCalcType
	bill.ElectricUnits = electricUnits
	bill.ElectricAmount = electricAmount

	bill.WaterRate = nil
	if pricing.WaterCalcType == models.CalcUnit {
		rate := rates.Water
		bill.WaterRate = &rate
	}
	bill.ElectricRate = nil
	if pricing.ElectricCalcType == models.CalcUnit {
		rate := rates.Electric
		bill.ElectricRate = &rate
	}

	bill.TotalAmount = pricing.RoomPrice + waterAmount + electricAmount + bill.TrashFee + bill.OtherAmount
	return nil
}

// VerifyTotal checks that a submitted total equals the sum of its line items.
// The store never trusts the client's arithmetic.
func VerifyTotal(bill *models.Bill) error {
	expected := bill.RoomPrice + bill.WaterAmount + bill.ElectricAmount + bill.TrashFee + bill.OtherAmount
	if math.Abs(expected-bill.TotalAmount) > totalTolerance {
		return fmt.Errorf("%w: got %.2f, line items sum to %.2f", ErrTotalMismatch, bill.TotalAmount, expected)
	}
	return nil
}

// GenerateBills computes one bill per room that either has a meter reading
// for the period or is currently occupied, so an occupied room with no
// reading still shows up (with zero usage) instead of silently dropping out.
// Nothing is persisted here; the office reviews and saves per bill.
func (bs *BillingService) GenerateBills(month, year int) ([]models.Bill, error) {
	rates := bs.LoadRates()
	log.Printf("Generating bills for %d/%d (water %.2f, electric %.2f, trash %.2f)",
		month, year, rates.Water, rates.Electric, rates.Trash)

	rows, err := bs.db.Query(`
		SELECT
			r.id, r.room_number, r.room_price,
			r.water_calculation_type, r.water_fixed_amount,
			r.electric_calculation_type, r.electric_fixed_amount,
			f.name,
			m.water_previous, m.water_current,
			m.electric_previous, m.electric_current,
			t.id, t.name, t.phone
		FROM rooms r
		JOIN floors f ON r.floor_id = f.id
		LEFT JOIN meter_readings m ON r.id = m.room_id
			AND m.reading_month = ? AND m.reading_year = ?
		LEFT JOIN tenants t ON t.room_id = r.id AND t.is_active = 1
		WHERE m.id IS NOT NULL OR t.id IS NOT NULL
		ORDER BY f.sort_order ASC, r.room_number ASC
	`, month, year)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	bills := []models.Bill{}
	for rows.Next() {
		var bill models.Bill
		var pricing RoomPricing
		var waterPrev, waterCurr, electricPrev, electricCurr sql.NullFloat64
		var tenantID sql.NullInt64
		var tenantName, tenantPhone sql.NullString

		err := rows.Scan(
			&bill.RoomID, &bill.RoomNumber, &pricing.RoomPrice,
			&pricing.WaterCalcType, &pricing.WaterFixedAmount,
			&pricing.ElectricCalcType, &pricing.ElectricFixedAmount,
			&bill.FloorName,
			&waterPrev, &waterCurr,
			&electricPrev, &electricCurr,
			&tenantID, &tenantName, &tenantPhone,
		)
		if err != nil {
			log.Printf("ERROR: Failed to scan room row: %v", err)
			continue
		}

		bill.BillMonth = month
		bill.BillYear = year
		bill.TrashFee = rates.Trash
		if tenantID.Valid {
			id := int(tenantID.Int64)
			bill.TenantID = &id
			bill.TenantName = tenantName.String
			bill.TenantPhone = tenantPhone.String
		}

		waterUnits := 0.0
		electricUnits := 0.0
		if waterCurr.Valid {
			prev := waterPrev.Float64
			curr := waterCurr.Float64
			bill.WaterPrevious = &prev
			bill.WaterCurrent = &curr
			if u := models.UsageOf(curr, prev); u != nil {
				waterUnits = *u
			}
		}
		if electricCurr.Valid {
			prev := electricPrev.Float64
			curr := electricCurr.Float64
			bill.ElectricPrevious = &prev
			bill.ElectricCurrent = &curr
			if u := models.UsageOf(curr, prev); u != nil {
				electricUnits = *u
			}
		}

		if err := ComputeBill(&bill, pricing, rates, waterUnits, electricUnits); err != nil {
			log.Printf("ERROR: Room %s misconfigured, skipping: %v", bill.RoomNumber, err)
			continue
		}

		bills = append(bills, bill)
	}

	log.Printf("Generated %d bills for %d/%d", len(bills), month, year)
	return bills, rows.Err()
}

// ListBills returns the saved bills of a period with room, floor and tenant
// names for display and printing.
func (bs *BillingService) ListBills(month, year int) ([]models.Bill, error) {
	rows, err := bs.db.Query(`
		SELECT b.id, b.room_id, b.tenant_id, b.bill_month, b.bill_year,
		       b.room_price, b.water_units, b.water_rate, b.water_amount,
		       b.electric_units, b.electric_rate, b.electric_amount,
		       b.trash_fee, b.other_amount, COALESCE(b.other_description, ''),
		       b.total_amount, b.is_paid, b.paid_date,
		       r.room_number, f.name, COALESCE(t.name, '')
		FROM bills b
		JOIN rooms r ON b.room_id = r.id
		JOIN floors f ON r.floor_id = f.id
		LEFT JOIN tenants t ON b.tenant_id = t.id
		WHERE b.bill_month = ? AND b.bill_year = ?
		ORDER BY f.sort_order ASC, r.room_number ASC
	`, month, year)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	bills := []models.Bill{}
	for rows.Next() {
		var b models.Bill
		var tenantID sql.NullInt64
		var waterRate, electricRate sql.NullFloat64
		var isPaid int
		var paidDate sql.NullString

		err := rows.Scan(
			&b.ID, &b.RoomID, &tenantID, &b.BillMonth, &b.BillYear,
			&b.RoomPrice, &b.WaterUnits, &waterRate, &b.WaterAmount,
			&b.ElectricUnits, &electricRate, &b.ElectricAmount,
			&b.TrashFee, &b.OtherAmount, &b.OtherDescription,
			&b.TotalAmount, &isPaid, &paidDate,
			&b.RoomNumber, &b.FloorName, &b.TenantName,
		)
		if err != nil {
			log.Printf("ERROR: Failed to scan bill: %v", err)
			continue
		}

		if tenantID.Valid {
			id := int(tenantID.Int64)
			b.TenantID = &id
		}
		if waterRate.Valid {
			b.WaterRate = &waterRate.Float64
		}
		if electricRate.Valid {
			b.ElectricRate = &electricRate.Float64
		}
		b.IsPaid = isPaid == 1
		if paidDate.Valid {
			b.PaidDate = &paidDate.String
		}

		bills = append(bills, b)
	}

	return bills, rows.Err()
}

// GetBill loads one saved bill by id.
func (bs *BillingService) GetBill(id int) (*models.Bill, error) {
	var b models.Bill
	var tenantID sql.NullInt64
	var waterRate, electricRate sql.NullFloat64
	var isPaid int
	var paidDate sql.NullString
	var tenantName, tenantPhone sql.NullString

	err := bs.db.QueryRow(`
		SELECT b.id, b.room_id, b.tenant_id, b.bill_month, b.bill_year,
		       b.room_price, b.water_units, b.water_rate, b.water_amount,
		       b.electric_units, b.electric_rate, b.electric_amount,
		       b.trash_fee, b.other_amount, COALESCE(b.other_description, ''),
		       b.total_amount, b.is_paid, b.paid_date,
		       r.room_number, f.name, t.name, t.phone
		FROM bills b
		JOIN rooms r ON b.room_id = r.id
		JOIN floors f ON r.floor_id = f.id
		LEFT JOIN tenants t ON b.tenant_id = t.id
		WHERE b.id = ?
	`, id).Scan(
		&b.ID, &b.RoomID, &tenantID, &b.BillMonth, &b.BillYear,
		&b.RoomPrice, &b.WaterUnits, &waterRate, &b.WaterAmount,
		&b.ElectricUnits, &electricRate, &b.ElectricAmount,
		&b.TrashFee, &b.OtherAmount, &b.OtherDescription,
		&b.TotalAmount, &isPaid, &paidDate,
		&b.RoomNumber, &b.FloorName, &tenantName, &tenantPhone,
	)
	if err != nil {
		return nil, err
	}

	if tenantID.Valid {
		tid := int(tenantID.Int64)
		b.TenantID = &tid
	}
	if waterRate.Valid {
		b.WaterRate = &waterRate.Float64
	}
	if electricRate.Valid {
		b.ElectricRate = &electricRate.Float64
	}
	b.IsPaid = isPaid == 1
	if paidDate.Valid {
		b.PaidDate = &paidDate.String
	}
	b.TenantName = tenantName.String
	b.TenantPhone = tenantPhone.String

	return &b, nil
}

// SaveBill upserts a bill keyed by (room, month, year), replacing the
// financial fields wholesale. The submitted total must equal the line item
// sum; the office edits line items, not arithmetic.
func (bs *BillingService) SaveBill(bill *models.Bill) (int, bool, error) {
	if err := VerifyTotal(bill); err != nil {
		return 0, false, err
	}

	var existingID int
	err := bs.db.QueryRow(`
		SELECT id FROM bills WHERE room_id = ? AND bill_month = ? AND bill_year = ?
	`, bill.RoomID, bill.BillMonth, bill.BillYear).Scan(&existingID)

	if err == sql.ErrNoRows {
		res, err := bs.db.Exec(`
			INSERT INTO bills
			(room_id, tenant_id, bill_month, bill_year, room_price,
			 water_units, water_rate, water_amount,
			 electric_units, electric_rate, electric_amount,
			 trash_fee, other_amount, other_description, total_amount)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		`, bill.RoomID, bill.TenantID, bill.BillMonth, bill.BillYear, bill.RoomPrice,
			bill.WaterUnits, bill.WaterRate, bill.WaterAmount,
			bill.ElectricUnits, bill.ElectricRate, bill.ElectricAmount,
			bill.TrashFee, bill.OtherAmount, bill.OtherDescription, bill.TotalAmount)
		if err != nil {
			return 0, false, err
		}
		id, _ := res.LastInsertId()
		return int(id), true, nil
	}
	if err != nil {
		return 0, false, err
	}

	_, err = bs.db.Exec(`
		UPDATE bills SET
			tenant_id = ?, room_price = ?,
			water_units = ?, water_rate = ?, water_amount = ?,
			electric_units = ?, electric_rate = ?, electric_amount = ?,
			trash_fee = ?, other_amount = ?, other_description = ?,
			total_amount = ?, updated_at = CURRENT_TIMESTAMP
		WHERE id = ?
	`, bill.TenantID, bill.RoomPrice,
		bill.WaterUnits, bill.WaterRate, bill.WaterAmount,
		bill.ElectricUnits, bill.ElectricRate, bill.ElectricAmount,
		bill.TrashFee, bill.OtherAmount, bill.OtherDescription,
		bill.TotalAmount, existingID)
	if err != nil {
		return 0, false, err
	}
	return existingID, false, nil
}

// MarkPaid stamps a bill paid today.
func (bs *BillingService) MarkPaid(id int) error {
	res, err := bs.db.Exec(`
		UPDATE bills SET is_paid = 1, paid_date = ?, updated_at = CURRENT_TIMESTAMP
		WHERE id = ?
	`, time.Now().Format("2006-01-02"), id)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}
