package handlers

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"strconv"
	"strings"

	"github.com/gorilla/mux"

	"github.com/ps2841/horpak-billing/models"
)

type RoomHandler struct {
	db *sql.DB
}

func NewRoomHandler(db *sql.DB) *RoomHandler {
	return &RoomHandler{db: db}
}

const roomSelect = `
	SELECT r.id, r.floor_id, f.name, r.room_number, r.room_price,
	       r.water_calculation_type, r.water_fixed_amount,
	       r.electric_calculation_type, r.electric_fixed_amount,
	       t.id, COALESCE(t.name, ''), COALESCE(t.phone, ''),
	       r.created_at, r.updated_at
	FROM rooms r
	JOIN floors f ON r.floor_id = f.id
	LEFT JOIN tenants t ON t.room_id = r.id AND t.is_active = 1
`

func scanRoom(scanner interface {
	Scan(dest ...interface{}) error
}) (models.Room, error) {
	var room models.Room
	var tenantID sql.NullInt64

	err := scanner.Scan(
		&room.ID, &room.FloorID, &room.FloorName, &room.RoomNumber, &room.RoomPrice,
		&room.WaterCalcType, &room.WaterFixedAmount,
		&room.ElectricCalcType, &room.ElectricFixedAmount,
		&tenantID, &room.TenantName, &room.TenantPhone,
		&room.CreatedAt, &room.UpdatedAt,
	)
	if err != nil {
		return room, err
	}

	// Occupancy is derived from the active tenant, never stored on the room
	if tenantID.Valid {
		id := int(tenantID.Int64)
		room.TenantID = &id
		room.IsOccupied = true
	}
	return room, nil
}

func validCalcType(t string) bool {
	return t == models.CalcUnit || t == models.CalcFixed
}

func (h *RoomHandler) List(w http.ResponseWriter, r *http.Request) {
	rows, err := h.db.Query(roomSelect + " ORDER BY f.sort_order ASC, r.room_number ASC")
	if err != nil {
		log.Printf("ERROR: Failed to list rooms: %v", err)
		writeError(w, http.StatusInternalServerError, msg.LoadFailed)
		return
	}
	defer rows.Close()

	rooms := []models.Room{}
	for rows.Next() {
		room, err := scanRoom(rows)
		if err != nil {
			log.Printf("ERROR: Failed to scan room: %v", err)
			continue
		}
		rooms = append(rooms, room)
	}

	writeJSON(w, http.StatusOK, rooms)
}

func (h *RoomHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.Atoi(mux.Vars(r)["id"])
	if err != nil {
		writeError(w, http.StatusBadRequest, msg.InvalidRequest)
		return
	}

	room, err := scanRoom(h.db.QueryRow(roomSelect+" WHERE r.id = ?", id))
	if err == sql.ErrNoRows {
		writeError(w, http.StatusNotFound, msg.RoomNotFound)
		return
	}
	if err != nil {
		log.Printf("ERROR: Failed to get room %d: %v", id, err)
		writeError(w, http.StatusInternalServerError, msg.LoadFailed)
		return
	}

	writeJSON(w, http.StatusOK, room)
}

func (h *RoomHandler) Create(w http.ResponseWriter, r *http.Request) {
	var room models.Room
	if err := json.NewDecoder(r.Body).Decode(&room); err != nil {
		writeError(w, http.StatusBadRequest, msg.InvalidRequest)
		return
	}

	if room.WaterCalcType == "" {
		room.WaterCalcType = models.CalcUnit
	}
	if room.ElectricCalcType == "" {
		room.ElectricCalcType = models.CalcUnit
	}
	if !validCalcType(room.WaterCalcType) || !validCalcType(room.ElectricCalcType) {
		writeError(w, http.StatusBadRequest, msg.InvalidCalcType)
		return
	}

	res, err := h.db.Exec(`
		INSERT INTO rooms
		(floor_id, room_number, room_price,
		 water_calculation_type, water_fixed_amount,
		 electric_calculation_type, electric_fixed_amount)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, room.FloorID, room.RoomNumber, room.RoomPrice,
		room.WaterCalcType, room.WaterFixedAmount,
		room.ElectricCalcType, room.ElectricFixedAmount)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed") {
			writeError(w, http.StatusBadRequest, msg.DuplicateRoomNumber)
			return
		}
		log.Printf("ERROR: Failed to create room: %v", err)
		writeError(w, http.StatusInternalServerError, msg.SaveFailed)
		return
	}

	id, _ := res.LastInsertId()
	room.ID = int(id)
	writeJSON(w, http.StatusCreated, room)
}

func (h *RoomHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.Atoi(mux.Vars(r)["id"])
	if err != nil {
		writeError(w, http.StatusBadRequest, msg.InvalidRequest)
		return
	}

	var room models.Room
	if err := json.NewDecoder(r.Body).Decode(&room); err != nil {
		writeError(w, http.StatusBadRequest, msg.InvalidRequest)
		return
	}

	if !validCalcType(room.WaterCalcType) || !validCalcType(room.ElectricCalcType) {
		writeError(w, http.StatusBadRequest, msg.InvalidCalcType)
		return
	}

	res, err := h.db.Exec(`
		UPDATE rooms SET
			floor_id = ?, room_number = ?, room_price = ?,
			water_calculation_type = ?, water_fixed_amount = ?,
			electric_calculation_type = ?, electric_fixed_amount = ?,
			updated_at = CURRENT_TIMESTAMP
		WHERE id = ?
	`, room.FloorID, room.RoomNumber, room.RoomPrice,
		room.WaterCalcType, room.WaterFixedAmount,
		room.ElectricCalcType, room.ElectricFixedAmount, id)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed") {
			writeError(w, http.StatusBadRequest, msg.DuplicateRoomNumber)
			return
		}
		log.Printf("ERROR: Failed to update room %d: %v", id, err)
		writeError(w, http.StatusInternalServerError, msg.SaveFailed)
		return
	}
	if affected, _ := res.RowsAffected(); affected == 0 {
		writeError(w, http.StatusNotFound, msg.RoomNotFound)
		return
	}

	room.ID = id
	writeJSON(w, http.StatusOK, room)
}

// Delete removes a room together with its meter readings and sources.
// Tenants keep their history but lose the room reference. Bills are
// financial records, so a room with bills is blocked instead of cascading.
func (h *RoomHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.Atoi(mux.Vars(r)["id"])
	if err != nil {
		writeError(w, http.StatusBadRequest, msg.InvalidRequest)
		return
	}

	var billCount int
	if err := h.db.QueryRow("SELECT COUNT(*) FROM bills WHERE room_id = ?", id).Scan(&billCount); err != nil {
		log.Printf("ERROR: Failed to count bills for room %d: %v", id, err)
		writeError(w, http.StatusInternalServerError, msg.DeleteFailed)
		return
	}
	if billCount > 0 {
		writeError(w, http.StatusConflict, msg.RoomHasBills)
		return
	}

	// Referencing rows must go first: the schema enforces foreign keys, so
	// deleting the room while tenants, readings or sources still point at it
	// would fail.
	tx, err := h.db.Begin()
	if err != nil {
		log.Printf("ERROR: Failed to start delete of room %d: %v", id, err)
		writeError(w, http.StatusInternalServerError, msg.DeleteFailed)
		return
	}
	defer tx.Rollback()

	if _, err := tx.Exec("UPDATE tenants SET room_id = NULL, updated_at = CURRENT_TIMESTAMP WHERE room_id = ?", id); err != nil {
		log.Printf("ERROR: Failed to detach tenants from room %d: %v", id, err)
		writeError(w, http.StatusInternalServerError, msg.DeleteFailed)
		return
	}
	if _, err := tx.Exec("DELETE FROM meter_readings WHERE room_id = ?", id); err != nil {
		log.Printf("ERROR: Failed to delete readings for room %d: %v", id, err)
		writeError(w, http.StatusInternalServerError, msg.DeleteFailed)
		return
	}
	if _, err := tx.Exec("DELETE FROM meter_sources WHERE room_id = ?", id); err != nil {
		log.Printf("ERROR: Failed to delete meter sources for room %d: %v", id, err)
		writeError(w, http.StatusInternalServerError, msg.DeleteFailed)
		return
	}

	res, err := tx.Exec("DELETE FROM rooms WHERE id = ?", id)
	if err != nil {
		log.Printf("ERROR: Failed to delete room %d: %v", id, err)
		writeError(w, http.StatusInternalServerError, msg.DeleteFailed)
		return
	}
	if affected, _ := res.RowsAffected(); affected == 0 {
		writeError(w, http.StatusNotFound, msg.RoomNotFound)
		return
	}

	if err := tx.Commit(); err != nil {
		log.Printf("ERROR: Failed to commit delete of room %d: %v", id, err)
		writeError(w, http.StatusInternalServerError, msg.DeleteFailed)
		return
	}

	logAction(h.db, "delete_room", fmt.Sprintf("room_id=%d", id), nil, r)
	writeJSON(w, http.StatusOK, map[string]string{"message": "deleted"})
}
