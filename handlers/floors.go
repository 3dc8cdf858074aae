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
)

type FloorHandler struct {
	db *sql.DB
}

func NewFloorHandler(db *sql.DB) *FloorHandler {
	return &FloorHandler{db: db}
}

func (h *FloorHandler) List(w http.ResponseWriter, r *http.Request) {
	rows, err := h.db.Query("SELECT id, name, sort_order FROM floors ORDER BY sort_order ASC")
	if err != nil {
		log.Printf("ERROR: Failed to list floors: %v", err)
		writeError(w, http.StatusInternalServerError, msg.LoadFailed)
		return
	}
	defer rows.Close()

	floors := []models.Floor{}
	for rows.Next() {
		var f models.Floor
		if err := rows.Scan(&f.ID, &f.Name, &f.SortOrder); err != nil {
			log.Printf("ERROR: Failed to scan floor: %v", err)
			continue
		}
		floors = append(floors, f)
	}

	writeJSON(w, http.StatusOK, floors)
}

// GetWithRooms returns one floor and its rooms, for the floor plan screen.
func (h *FloorHandler) GetWithRooms(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.Atoi(mux.Vars(r)["id"])
	if err != nil {
		writeError(w, http.StatusBadRequest, msg.InvalidRequest)
		return
	}

	var f models.Floor
	err = h.db.QueryRow("SELECT id, name, sort_order FROM floors WHERE id = ?", id).
		Scan(&f.ID, &f.Name, &f.SortOrder)
	if err == sql.ErrNoRows {
		writeError(w, http.StatusNotFound, msg.FloorNotFound)
		return
	}
	if err != nil {
		log.Printf("ERROR: Failed to get floor %d: %v", id, err)
		writeError(w, http.StatusInternalServerError, msg.LoadFailed)
		return
	}

	rows, err := h.db.Query(`
		SELECT r.id, r.floor_id, r.room_number, r.room_price,
		       r.water_calculation_type, r.water_fixed_amount,
		       r.electric_calculation_type, r.electric_fixed_amount,
		       CASE WHEN t.id IS NULL THEN 0 ELSE 1 END,
		       r.created_at, r.updated_at
		FROM rooms r
		LEFT JOIN tenants t ON t.room_id = r.id AND t.is_active = 1
		WHERE r.floor_id = ?
		ORDER BY r.room_number ASC
	`, id)
	if err != nil {
		log.Printf("ERROR: Failed to list rooms for floor %d: %v", id, err)
		writeError(w, http.StatusInternalServerError, msg.LoadFailed)
		return
	}
	defer rows.Close()

	f.Rooms = []models.Room{}
	for rows.Next() {
		var room models.Room
		var occupied int
		err := rows.Scan(
			&room.ID, &room.FloorID, &room.RoomNumber, &room.RoomPrice,
			&room.WaterCalcType, &room.WaterFixedAmount,
			&room.ElectricCalcType, &room.ElectricFixedAmount,
			&occupied, &room.CreatedAt, &room.UpdatedAt,
		)
		if err != nil {
			log.Printf("ERROR: Failed to scan room: %v", err)
			continue
		}
		room.IsOccupied = occupied == 1
		f.Rooms = append(f.Rooms, room)
	}

	writeJSON(w, http.StatusOK, f)
}

func (h *FloorHandler) Create(w http.ResponseWriter, r *http.Request) {
	var f models.Floor
	if err := json.NewDecoder(r.Body).Decode(&f); err != nil {
		writeError(w, http.StatusBadRequest, msg.InvalidRequest)
		return
	}

	res, err := h.db.Exec("INSERT INTO floors (name, sort_order) VALUES (?, ?)", f.Name, f.SortOrder)
	if err != nil {
		log.Printf("ERROR: Failed to create floor: %v", err)
		writeError(w, http.StatusInternalServerError, msg.SaveFailed)
		return
	}

	id, _ := res.LastInsertId()
	f.ID = int(id)
	writeJSON(w, http.StatusCreated, f)
}

func (h *FloorHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.Atoi(mux.Vars(r)["id"])
	if err != nil {
		writeError(w, http.StatusBadRequest, msg.InvalidRequest)
		return
	}

	var f models.Floor
	if err := json.NewDecoder(r.Body).Decode(&f); err != nil {
		writeError(w, http.StatusBadRequest, msg.InvalidRequest)
		return
	}

	res, err := h.db.Exec("UPDATE floors SET name = ?, sort_order = ? WHERE id = ?", f.Name, f.SortOrder, id)
	if err != nil {
		log.Printf("ERROR: Failed to update floor %d: %v", id, err)
		writeError(w, http.StatusInternalServerError, msg.SaveFailed)
		return
	}
	if affected, _ := res.RowsAffected(); affected == 0 {
		writeError(w, http.StatusNotFound, msg.FloorNotFound)
		return
	}

	f.ID = id
	writeJSON(w, http.StatusOK, f)
}

// Delete removes an empty floor; a floor that still has rooms is blocked
// rather than cascading into rooms, readings and bills.
func (h *FloorHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.Atoi(mux.Vars(r)["id"])
	if err != nil {
		writeError(w, http.StatusBadRequest, msg.InvalidRequest)
		return
	}

	var roomCount int
	if err := h.db.QueryRow("SELECT COUNT(*) FROM rooms WHERE floor_id = ?", id).Scan(&roomCount); err != nil {
		log.Printf("ERROR: Failed to count rooms for floor %d: %v", id, err)
		writeError(w, http.StatusInternalServerError, msg.DeleteFailed)
		return
	}
	if roomCount > 0 {
		writeError(w, http.StatusConflict, msg.FloorHasRooms)
		return
	}

	res, err := h.db.Exec("DELETE FROM floors WHERE id = ?", id)
	if err != nil {
		log.Printf("ERROR: Failed to delete floor %d: %v", id, err)
		writeError(w, http.StatusInternalServerError, msg.DeleteFailed)
		return
	}
	if affected, _ := res.RowsAffected(); affected == 0 {
		writeError(w, http.StatusNotFound, msg.FloorNotFound)
		return
	}

	logAction(h.db, "delete_floor", fmt.Sprintf("floor_id=%d", id), nil, r)
	writeJSON(w, http.StatusOK, map[string]string{"message": "deleted"})
}
