package services

import (
	"database/sql"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/ps2841/horpak-billing/models"
)

// CollectorManager owns the smart-meter collectors and the live feed. Manual
// sheet entry stays the primary path; collectors just keep the current
// period's registers up to date for rooms that have a wired meter.
type CollectorManager struct {
	db     *sql.DB
	meters *MeterService
	feed   *LiveFeed
	mqtt   *MQTTCollector
	modbus *ModbusCollector

	mu        sync.Mutex
	startedAt time.Time
}

func NewCollectorManager(db *sql.DB, feed *LiveFeed) *CollectorManager {
	cm := &CollectorManager{
		db:     db,
		meters: NewMeterService(db),
		feed:   feed,
	}
	cm.mqtt = NewMQTTCollector(db, cm)
	cm.modbus = NewModbusCollector(db, cm)
	return cm
}

func (cm *CollectorManager) Start() {
	cm.mu.Lock()
	cm.startedAt = time.Now()
	cm.mu.Unlock()

	log.Println("===================================")
	log.Println("Meter Collector Starting")
	log.Println("===================================")

	cm.logSourceStatus()
	cm.mqtt.Start()
	cm.modbus.Start()
}

// Reload reconnects both collectors after a meter source was added, changed
// or removed.
func (cm *CollectorManager) Reload() {
	log.Println("Reloading meter sources...")
	cm.mqtt.Reload()
	cm.modbus.Reload()
}

func (cm *CollectorManager) logSourceStatus() {
	var active, total int
	cm.db.QueryRow("SELECT COUNT(*) FROM meter_sources WHERE is_active = 1").Scan(&active)
	cm.db.QueryRow("SELECT COUNT(*) FROM meter_sources").Scan(&total)
	log.Printf("Meter sources: %d/%d active", active, total)
}

func (cm *CollectorManager) GetDebugInfo() map[string]interface{} {
	var active, total int
	cm.db.QueryRow("SELECT COUNT(*) FROM meter_sources WHERE is_active = 1").Scan(&active)
	cm.db.QueryRow("SELECT COUNT(*) FROM meter_sources").Scan(&total)

	cm.mu.Lock()
	startedAt := cm.startedAt
	cm.mu.Unlock()

	return map[string]interface{}{
		"active_sources": active,
		"total_sources":  total,
		"started_at":     startedAt,
		"mqtt":           cm.mqtt.DebugInfo(),
		"modbus":         cm.modbus.DebugInfo(),
	}
}

// loadSources returns the active sources of one collector type.
func (cm *CollectorManager) loadSources(sourceType string) ([]models.MeterSource, error) {
	rows, err := cm.db.Query(`
		SELECT id, room_id, utility, source_type, connection_config
		FROM meter_sources
		WHERE is_active = 1 AND source_type = ?
	`, sourceType)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	sources := []models.MeterSource{}
	for rows.Next() {
		var s models.MeterSource
		if err := rows.Scan(&s.ID, &s.RoomID, &s.Utility, &s.SourceType, &s.ConnectionConfig); err != nil {
			continue
		}
		sources = append(sources, s)
	}
	return sources, rows.Err()
}

// HandleReading records one collector observation: it stamps the source row,
// writes the value as the current register of the room's open period, and
// pushes it to the live feed. The previous register is continuity-resolved
// when the period has no row yet.
func (cm *CollectorManager) HandleReading(source models.MeterSource, value float64) {
	if value < 0 {
		log.Printf("WARNING: Source %d reported negative register %.2f, ignoring", source.ID, value)
		return
	}

	now := time.Now()
	_, err := cm.db.Exec(`
		UPDATE meter_sources SET last_value = ?, last_seen = ?, updated_at = CURRENT_TIMESTAMP
		WHERE id = ?
	`, value, now, source.ID)
	if err != nil {
		log.Printf("ERROR: Failed to stamp source %d: %v", source.ID, err)
	}

	if err := cm.applyReading(source.RoomID, source.Utility, value, now); err != nil {
		log.Printf("ERROR: Failed to apply reading for room %d: %v", source.RoomID, err)
		return
	}

	cm.feed.Broadcast(LiveReading{
		RoomID:     source.RoomID,
		Utility:    source.Utility,
		SourceType: source.SourceType,
		Value:      value,
		Timestamp:  now,
	})
}

func (cm *CollectorManager) applyReading(roomID int, utility string, value float64, now time.Time) error {
	month := int(now.Month())
	year := now.Year()

	var column string
	switch utility {
	case "water":
		column = "water_current"
	case "electric":
		column = "electric_current"
	default:
		return fmt.Errorf("unknown utility %q", utility)
	}

	var readingID int
	err := cm.db.QueryRow(`
		SELECT id FROM meter_readings
		WHERE room_id = ? AND reading_month = ? AND reading_year = ?
	`, roomID, month, year).Scan(&readingID)

	if err == sql.ErrNoRows {
		waterPrev, electricPrev, err := cm.meters.ResolvePrevious(roomID, month, year)
		if err != nil {
			return err
		}
		waterCurr, electricCurr := 0.0, 0.0
		if utility == "water" {
			waterCurr = value
		} else {
			electricCurr = value
		}
		_, _, err = cm.meters.RecordReading(roomID, month, year, waterPrev, waterCurr, electricPrev, electricCurr)
		return err
	}
	if err != nil {
		return err
	}

	_, err = cm.db.Exec(
		"UPDATE meter_readings SET "+column+" = ?, reading_date = ? WHERE id = ?",
		value, now.Format("2006-01-02"), readingID)
	return err
}
