package handlers

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"github.com/ps2841/horpak-billing/models"
	"github.com/ps2841/horpak-billing/services"
)

type MeterHandler struct {
	db        *sql.DB
	meters    *services.MeterService
	collector *services.CollectorManager
	feed      *services.LiveFeed
}

func NewMeterHandler(db *sql.DB, meters *services.MeterService, collector *services.CollectorManager, feed *services.LiveFeed) *MeterHandler {
	return &MeterHandler{db: db, meters: meters, collector: collector, feed: feed}
}

func periodVars(r *http.Request) (month, year int, ok bool) {
	vars := mux.Vars(r)
	month, err1 := strconv.Atoi(vars["month"])
	year, err2 := strconv.Atoi(vars["year"])
	if err1 != nil || err2 != nil || !services.ValidPeriod(month, year) {
		return 0, 0, false
	}
	return month, year, true
}

// ListByPeriod returns the stored readings of one period.
func (h *MeterHandler) ListByPeriod(w http.ResponseWriter, r *http.Request) {
	month, year, ok := periodVars(r)
	if !ok {
		writeError(w, http.StatusBadRequest, msg.InvalidPeriod)
		return
	}

	readings, err := h.meters.ListByPeriod(month, year)
	if err != nil {
		log.Printf("ERROR: Failed to list readings %d/%d: %v", month, year, err)
		writeError(w, http.StatusInternalServerError, msg.LoadFailed)
		return
	}

	writeJSON(w, http.StatusOK, readings)
}

// RoomsForPeriod returns every room for the meter entry screen, with the
// period's reading if present and continuity-resolved previous registers.
func (h *MeterHandler) RoomsForPeriod(w http.ResponseWriter, r *http.Request) {
	month, year, ok := periodVars(r)
	if !ok {
		writeError(w, http.StatusBadRequest, msg.InvalidPeriod)
		return
	}

	rooms, err := h.meters.RoomsForPeriod(month, year)
	if err != nil {
		log.Printf("ERROR: Failed to load rooms for %d/%d: %v", month, year, err)
		writeError(w, http.StatusInternalServerError, msg.LoadFailed)
		return
	}

	writeJSON(w, http.StatusOK, rooms)
}

// Save upserts a single reading.
func (h *MeterHandler) Save(w http.ResponseWriter, r *http.Request) {
	var entry services.BulkReadingEntry
	if err := json.NewDecoder(r.Body).Decode(&entry); err != nil {
		writeError(w, http.StatusBadRequest, msg.InvalidRequest)
		return
	}
	if !services.ValidPeriod(entry.ReadingMonth, entry.ReadingYear) {
		writeError(w, http.StatusBadRequest, msg.InvalidPeriod)
		return
	}

	reading, created, err := h.meters.RecordReading(
		entry.RoomID, entry.ReadingMonth, entry.ReadingYear,
		entry.WaterPrevious, entry.WaterCurrent,
		entry.ElectricPrevious, entry.ElectricCurrent)
	if err != nil {
		log.Printf("ERROR: Failed to save reading for room %d: %v", entry.RoomID, err)
		writeError(w, http.StatusInternalServerError, msg.SaveFailed)
		return
	}

	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	writeJSON(w, status, map[string]interface{}{
		"id":      reading.ID,
		"created": created,
		"updated": !created,
		"reading": reading,
	})
}

// BulkSave applies a batch of per-room upserts, reporting each row's
// outcome. One room's failure never blocks the others.
func (h *MeterHandler) BulkSave(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Readings []services.BulkReadingEntry `json:"readings"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, msg.InvalidRequest)
		return
	}

	outcomes := h.meters.BulkRecord(req.Readings)

	failed := 0
	for _, o := range outcomes {
		if o.Error != "" {
			failed++
		}
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success": failed == 0,
		"failed":  failed,
		"results": outcomes,
	})
}

// LiveFeed upgrades to a websocket that streams collector readings.
func (h *MeterHandler) LiveFeed(w http.ResponseWriter, r *http.Request) {
	h.feed.HandleWS(w, r)
}

// --- smart meter sources ---

func (h *MeterHandler) ListSources(w http.ResponseWriter, r *http.Request) {
	rows, err := h.db.Query(`
		SELECT s.id, s.room_id, r.room_number, s.utility, s.source_type,
		       s.connection_config, s.is_active, s.last_value, s.last_seen,
		       s.created_at, s.updated_at
		FROM meter_sources s
		JOIN rooms r ON s.room_id = r.id
		ORDER BY r.room_number ASC, s.utility ASC
	`)
	if err != nil {
		log.Printf("ERROR: Failed to list meter sources: %v", err)
		writeError(w, http.StatusInternalServerError, msg.LoadFailed)
		return
	}
	defer rows.Close()

	sources := []models.MeterSource{}
	for rows.Next() {
		var s models.MeterSource
		var isActive int
		var lastSeen sql.NullTime
		err := rows.Scan(
			&s.ID, &s.RoomID, &s.RoomNumber, &s.Utility, &s.SourceType,
			&s.ConnectionConfig, &isActive, &s.LastValue, &lastSeen,
			&s.CreatedAt, &s.UpdatedAt,
		)
		if err != nil {
			log.Printf("ERROR: Failed to scan meter source: %v", err)
			continue
		}
		s.IsActive = isActive == 1
		if lastSeen.Valid {
			s.LastSeen = &lastSeen.Time
		}
		sources = append(sources, s)
	}

	writeJSON(w, http.StatusOK, sources)
}

func validSource(s *models.MeterSource) bool {
	if s.Utility != "water" && s.Utility != "electric" {
		return false
	}
	if s.SourceType != "mqtt" && s.SourceType != "modbus" {
		return false
	}
	return json.Valid([]byte(s.ConnectionConfig))
}

func (h *MeterHandler) CreateSource(w http.ResponseWriter, r *http.Request) {
	var s models.MeterSource
	if err := json.NewDecoder(r.Body).Decode(&s); err != nil || !validSource(&s) {
		writeError(w, http.StatusBadRequest, msg.InvalidRequest)
		return
	}

	res, err := h.db.Exec(`
		INSERT INTO meter_sources (room_id, utility, source_type, connection_config, is_active)
		VALUES (?, ?, ?, ?, 1)
	`, s.RoomID, s.Utility, s.SourceType, s.ConnectionConfig)
	if err != nil {
		log.Printf("ERROR: Failed to create meter source: %v", err)
		writeError(w, http.StatusInternalServerError, msg.SaveFailed)
		return
	}

	id, _ := res.LastInsertId()
	s.ID = int(id)
	s.IsActive = true

	h.collector.Reload()
	writeJSON(w, http.StatusCreated, s)
}

func (h *MeterHandler) UpdateSource(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.Atoi(mux.Vars(r)["id"])
	if err != nil {
		writeError(w, http.StatusBadRequest, msg.InvalidRequest)
		return
	}

	var s models.MeterSource
	if err := json.NewDecoder(r.Body).Decode(&s); err != nil || !validSource(&s) {
		writeError(w, http.StatusBadRequest, msg.InvalidRequest)
		return
	}

	isActive := 0
	if s.IsActive {
		isActive = 1
	}
	res, err := h.db.Exec(`
		UPDATE meter_sources SET
			room_id = ?, utility = ?, source_type = ?, connection_config = ?,
			is_active = ?, updated_at = CURRENT_TIMESTAMP
		WHERE id = ?
	`, s.RoomID, s.Utility, s.SourceType, s.ConnectionConfig, isActive, id)
	if err != nil {
		log.Printf("ERROR: Failed to update meter source %d: %v", id, err)
		writeError(w, http.StatusInternalServerError, msg.SaveFailed)
		return
	}
	if affected, _ := res.RowsAffected(); affected == 0 {
		writeError(w, http.StatusNotFound, msg.SourceNotFound)
		return
	}

	s.ID = id
	h.collector.Reload()
	writeJSON(w, http.StatusOK, s)
}

func (h *MeterHandler) DeleteSource(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.Atoi(mux.Vars(r)["id"])
	if err != nil {
		writeError(w, http.StatusBadRequest, msg.InvalidRequest)
		return
	}

	res, err := h.db.Exec("DELETE FROM meter_sources WHERE id = ?", id)
	if err != nil {
		log.Printf("ERROR: Failed to delete meter source %d: %v", id, err)
		writeError(w, http.StatusInternalServerError, msg.DeleteFailed)
		return
	}
	if affected, _ := res.RowsAffected(); affected == 0 {
		writeError(w, http.StatusNotFound, msg.SourceNotFound)
		return
	}

	logAction(h.db, "delete_meter_source", fmt.Sprintf("source_id=%d", id), nil, r)
	h.collector.Reload()
	writeJSON(w, http.StatusOK, map[string]string{"message": "deleted"})
}
