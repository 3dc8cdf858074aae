package services

import (
	"database/sql"
	"fmt"
	"log"
	"time"

	"github.com/ps2841/horpak-billing/models"
)

type MeterService struct {
	db *sql.DB
}

func NewMeterService(db *sql.DB) *MeterService {
	return &MeterService{db: db}
}

// ValidPeriod rejects nonsense months before they become ledger keys.
func ValidPeriod(month, year int) bool {
	return month >= 1 && month <= 12 && year >= 2000 && year <= 2200
}

// ResolvePrevious finds the most recent reading strictly before the target
// period where at least one register was actually recorded, and returns its
// current values to seed the new period's previous values. Rooms skip months
// sometimes, so "previous" is the closest prior period with data, not
// month-1. No history means a fresh meter: 0/0.
func (ms *MeterService) ResolvePrevious(roomID, month, year int) (waterPrev, electricPrev float64, err error) {
	err = ms.db.QueryRow(`
		SELECT water_current, electric_current
		FROM meter_readings
		WHERE room_id = ?
		  AND (reading_year < ? OR (reading_year = ? AND reading_month < ?))
		  AND (water_current > 0 OR electric_current > 0)
		ORDER BY reading_year DESC, reading_month DESC
		LIMIT 1
	`, roomID, year, year, month).Scan(&waterPrev, &electricPrev)

	if err == sql.ErrNoRows {
		return 0, 0, nil
	}
	if err != nil {
		return 0, 0, err
	}
	return waterPrev, electricPrev, nil
}

// RecordReading upserts the four registers for (room, month, year) and
// stamps the reading date. Recording the same values twice leaves exactly
// one row.
func (ms *MeterService) RecordReading(roomID, month, year int, waterPrev, waterCurr, electricPrev, electricCurr float64) (*models.MeterReading, bool, error) {
	if !ValidPeriod(month, year) {
		return nil, false, fmt.Errorf("invalid period %d/%d", month, year)
	}

	today := time.Now().Format("2006-01-02")

	var existingID int
	err := ms.db.QueryRow(`
		SELECT id FROM meter_readings
		WHERE room_id = ? AND reading_month = ? AND reading_year = ?
	`, roomID, month, year).Scan(&existingID)

	created := false
	switch {
	case err == sql.ErrNoRows:
		res, err := ms.db.Exec(`
			INSERT INTO meter_readings
			(room_id, reading_month, reading_year,
			 water_previous, water_current, electric_previous, electric_current, reading_date)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		`, roomID, month, year, waterPrev, waterCurr, electricPrev, electricCurr, today)
		if err != nil {
			return nil, false, err
		}
		id, _ := res.LastInsertId()
		existingID = int(id)
		created = true
	case err != nil:
		return nil, false, err
	default:
		_, err := ms.db.Exec(`
			UPDATE meter_readings SET
				water_previous = ?, water_current = ?,
				electric_previous = ?, electric_current = ?,
				reading_date = ?
			WHERE id = ?
		`, waterPrev, waterCurr, electricPrev, electricCurr, today, existingID)
		if err != nil {
			return nil, false, err
		}
	}

	reading := &models.MeterReading{
		ID:               existingID,
		RoomID:           roomID,
		ReadingMonth:     month,
		ReadingYear:      year,
		WaterPrevious:    waterPrev,
		WaterCurrent:     waterCurr,
		ElectricPrevious: electricPrev,
		ElectricCurrent:  electricCurr,
		ReadingDate:      today,
	}
	reading.ComputeUsage()
	return reading, created, nil
}

// BulkOutcome reports one row of a bulk save. Rooms are independent, so one
// bad row never aborts the rest.
type BulkOutcome struct {
	RoomID  int    `json:"room_id"`
	ID      int    `json:"id,omitempty"`
	Created bool   `json:"created,omitempty"`
	Updated bool   `json:"updated,omitempty"`
	Error   string `json:"error,omitempty"`
}

type BulkReadingEntry struct {
	RoomID           int     `json:"room_id"`
	ReadingMonth     int     `json:"reading_month"`
	ReadingYear      int     `json:"reading_year"`
	WaterPrevious    float64 `json:"water_previous"`
	WaterCurrent     float64 `json:"water_current"`
	ElectricPrevious float64 `json:"electric_previous"`
	ElectricCurrent  float64 `json:"electric_current"`
}

// BulkRecord applies RecordReading per row and collects per-room outcomes.
func (ms *MeterService) BulkRecord(entries []BulkReadingEntry) []BulkOutcome {
	outcomes := make([]BulkOutcome, 0, len(entries))

	for _, e := range entries {
		reading, created, err := ms.RecordReading(
			e.RoomID, e.ReadingMonth, e.ReadingYear,
			e.WaterPrevious, e.WaterCurrent, e.ElectricPrevious, e.ElectricCurrent)
		if err != nil {
			log.Printf("ERROR: Bulk save failed for room %d: %v", e.RoomID, err)
			outcomes = append(outcomes, BulkOutcome{RoomID: e.RoomID, Error: err.Error()})
			continue
		}
		outcomes = append(outcomes, BulkOutcome{
			RoomID:  e.RoomID,
			ID:      reading.ID,
			Created: created,
			Updated: !created,
		})
	}

	return outcomes
}

// ListByPeriod returns the period's readings with room and floor names,
// usage already derived (nil while unrecorded, negative passed through).
func (ms *MeterService) ListByPeriod(month, year int) ([]models.MeterReading, error) {
	rows, err := ms.db.Query(`
		SELECT m.id, m.room_id, m.reading_month, m.reading_year,
		       m.water_previous, m.water_current,
		       m.electric_previous, m.electric_current,
		       COALESCE(m.reading_date, ''),
		       r.room_number, f.id, f.name
		FROM meter_readings m
		JOIN rooms r ON m.room_id = r.id
		JOIN floors f ON r.floor_id = f.id
		WHERE m.reading_month = ? AND m.reading_year = ?
		ORDER BY f.sort_order ASC, r.room_number ASC
	`, month, year)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	readings := []models.MeterReading{}
	for rows.Next() {
		var m models.MeterReading
		err := rows.Scan(
			&m.ID, &m.RoomID, &m.ReadingMonth, &m.ReadingYear,
			&m.WaterPrevious, &m.WaterCurrent,
			&m.ElectricPrevious, &m.ElectricCurrent,
			&m.ReadingDate,
			&m.RoomNumber, &m.FloorID, &m.FloorName,
		)
		if err != nil {
			log.Printf("ERROR: Failed to scan reading: %v", err)
			continue
		}
		m.ComputeUsage()
		readings = append(readings, m)
	}

	return readings, rows.Err()
}

// RoomsForPeriod returns every room with its reading for the period (if
// any) plus continuity-resolved previous registers, which the entry screen
// uses to seed rooms that have no row yet.
func (ms *MeterService) RoomsForPeriod(month, year int) ([]models.RoomPeriod, error) {
	rows, err := ms.db.Query(`
		SELECT
			r.id, r.room_number, r.room_price,
			r.water_calculation_type, r.water_fixed_amount,
			r.electric_calculation_type, r.electric_fixed_amount,
			f.id, f.name,
			curr.id, curr.water_previous, curr.water_current,
			curr.electric_previous, curr.electric_current,
			COALESCE(prev.water_current, 0), COALESCE(prev.electric_current, 0),
			CASE WHEN t.id IS NULL THEN 0 ELSE 1 END
		FROM rooms r
		JOIN floors f ON r.floor_id = f.id
		LEFT JOIN meter_readings curr ON r.id = curr.room_id
			AND curr.reading_month = ? AND curr.reading_year = ?
		LEFT JOIN meter_readings prev ON prev.id = (
			SELECT id FROM meter_readings pm
			WHERE pm.room_id = r.id
			  AND (pm.reading_year < ? OR (pm.reading_year = ? AND pm.reading_month < ?))
			  AND (pm.water_current > 0 OR pm.electric_current > 0)
			ORDER BY pm.reading_year DESC, pm.reading_month DESC
			LIMIT 1
		)
		LEFT JOIN tenants t ON t.room_id = r.id AND t.is_active = 1
		ORDER BY f.sort_order ASC, r.room_number ASC
	`, month, year, year, year, month)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	result := []models.RoomPeriod{}
	for rows.Next() {
		var rp models.RoomPeriod
		var readingID sql.NullInt64
		var waterPrev, waterCurr, electricPrev, electricCurr sql.NullFloat64
		var occupied int

		err := rows.Scan(
			&rp.RoomID, &rp.RoomNumber, &rp.RoomPrice,
			&rp.WaterCalcType, &rp.WaterFixedAmount,
			&rp.ElectricCalcType, &rp.ElectricFixedAmount,
			&rp.FloorID, &rp.FloorName,
			&readingID, &waterPrev, &waterCurr,
			&electricPrev, &electricCurr,
			&rp.PrevWater, &rp.PrevElectric,
			&occupied,
		)
		if err != nil {
			log.Printf("ERROR: Failed to scan room period: %v", err)
			continue
		}

		rp.IsOccupied = occupied == 1
		if readingID.Valid {
			id := int(readingID.Int64)
			rp.ReadingID = &id
			rp.WaterPrevious = &waterPrev.Float64
			rp.WaterCurrent = &waterCurr.Float64
			rp.ElectricPrevious = &electricPrev.Float64
			rp.ElectricCurrent = &electricCurr.Float64
		}

		result = append(result, rp)
	}

	return result, rows.Err()
}
