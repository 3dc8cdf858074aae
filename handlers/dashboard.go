package handlers

import (
	"database/sql"
	"log"
	"net/http"
	"time"

	"github.com/ps2841/horpak-billing/models"
)

type DashboardHandler struct {
	db *sql.DB
}

func NewDashboardHandler(db *sql.DB) *DashboardHandler {
	return &DashboardHandler{db: db}
}

// Stats summarizes the building for the office landing screen. Occupancy is
// counted from active tenants, the same rule every other screen uses.
func (h *DashboardHandler) Stats(w http.ResponseWriter, r *http.Request) {
	var stats models.DashboardStats
	now := time.Now()
	month, year := int(now.Month()), now.Year()

	queries := []struct {
		dest  interface{}
		query string
		args  []interface{}
	}{
		{&stats.TotalFloors, "SELECT COUNT(*) FROM floors", nil},
		{&stats.TotalRooms, "SELECT COUNT(*) FROM rooms", nil},
		{&stats.OccupiedRooms, "SELECT COUNT(DISTINCT room_id) FROM tenants WHERE is_active = 1 AND room_id IS NOT NULL", nil},
		{&stats.ActiveTenants, "SELECT COUNT(*) FROM tenants WHERE is_active = 1", nil},
		{&stats.UnpaidBills, "SELECT COUNT(*) FROM bills WHERE is_paid = 0", nil},
		{&stats.MonthBilled, "SELECT COALESCE(SUM(total_amount), 0) FROM bills WHERE bill_month = ? AND bill_year = ?", []interface{}{month, year}},
		{&stats.MonthCollected, "SELECT COALESCE(SUM(total_amount), 0) FROM bills WHERE bill_month = ? AND bill_year = ? AND is_paid = 1", []interface{}{month, year}},
		{&stats.ActiveSources, "SELECT COUNT(*) FROM meter_sources WHERE is_active = 1", nil},
		{&stats.TotalSources, "SELECT COUNT(*) FROM meter_sources", nil},
	}

	for _, q := range queries {
		if err := h.db.QueryRow(q.query, q.args...).Scan(q.dest); err != nil {
			log.Printf("ERROR: Dashboard query failed: %v", err)
			writeError(w, http.StatusInternalServerError, msg.LoadFailed)
			return
		}
	}

	writeJSON(w, http.StatusOK, stats)
}

// Logs returns the most recent admin actions.
func (h *DashboardHandler) Logs(w http.ResponseWriter, r *http.Request) {
	rows, err := h.db.Query(`
		SELECT id, action, COALESCE(details, ''), user_id, COALESCE(ip_address, ''), created_at
		FROM admin_logs ORDER BY created_at DESC LIMIT 100
	`)
	if err != nil {
		log.Printf("ERROR: Failed to list admin logs: %v", err)
		writeError(w, http.StatusInternalServerError, msg.LoadFailed)
		return
	}
	defer rows.Close()

	logs := []models.AdminLog{}
	for rows.Next() {
		var entry models.AdminLog
		var userID sql.NullInt64
		err := rows.Scan(&entry.ID, &entry.Action, &entry.Details, &userID, &entry.IPAddress, &entry.CreatedAt)
		if err != nil {
			log.Printf("ERROR: Failed to scan admin log: %v", err)
			continue
		}
		if userID.Valid {
			id := int(userID.Int64)
			entry.UserID = &id
		}
		logs = append(logs, entry)
	}

	writeJSON(w, http.StatusOK, logs)
}
