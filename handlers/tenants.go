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

// TenantHandler owns the tenant lifecycle. It is the only code path that
// affects room occupancy: a room is occupied exactly when an active tenant
// references it, so assigning, moving or deactivating a tenant is all it
// takes.
type TenantHandler struct {
	db *sql.DB
}

func NewTenantHandler(db *sql.DB) *TenantHandler {
	return &TenantHandler{db: db}
}

const tenantSelect = `
	SELECT t.id, t.room_id, COALESCE(r.room_number, ''), COALESCE(f.name, ''),
	       t.name, COALESCE(t.phone, ''), COALESCE(t.id_number, ''), COALESCE(t.address, ''),
	       t.move_in_date, t.move_out_date, t.is_active,
	       COALESCE(t.id_card_image, ''), COALESCE(t.contract_image, ''),
	       t.created_at, t.updated_at
	FROM tenants t
	LEFT JOIN rooms r ON t.room_id = r.id
	LEFT JOIN floors f ON r.floor_id = f.id
`

func scanTenant(scanner interface {
	Scan(dest ...interface{}) error
}) (models.Tenant, error) {
	var t models.Tenant
	var roomID sql.NullInt64
	var moveIn, moveOut sql.NullString
	var isActive int

	err := scanner.Scan(
		&t.ID, &roomID, &t.RoomNumber, &t.FloorName,
		&t.Name, &t.Phone, &t.IDNumber, &t.Address,
		&moveIn, &moveOut, &isActive,
		&t.IDCardImage, &t.ContractImage,
		&t.CreatedAt, &t.UpdatedAt,
	)
	if err != nil {
		return t, err
	}

	if roomID.Valid {
		id := int(roomID.Int64)
		t.RoomID = &id
	}
	if moveIn.Valid {
		t.MoveInDate = &moveIn.String
	}
	if moveOut.Valid {
		t.MoveOutDate = &moveOut.String
	}
	t.IsActive = isActive == 1
	return t, nil
}

// checkRoomFree reports whether the room already has a different active
// tenant, and also detects historical data that grew two active tenants for
// one room so it gets surfaced instead of silently accepted.
func (h *TenantHandler) checkRoomFree(roomID, excludeTenantID int) (bool, error) {
	var count int
	err := h.db.QueryRow(`
		SELECT COUNT(*) FROM tenants
		WHERE room_id = ? AND is_active = 1 AND id != ?
	`, roomID, excludeTenantID).Scan(&count)
	if err != nil {
		return false, err
	}
	if count > 1 {
		log.Printf("WARNING: Room %d has %d active tenants; data needs repair", roomID, count)
	}
	return count == 0, nil
}

func (h *TenantHandler) List(w http.ResponseWriter, r *http.Request) {
	rows, err := h.db.Query(tenantSelect + " ORDER BY t.is_active DESC, t.name ASC")
	if err != nil {
		log.Printf("ERROR: Failed to list tenants: %v", err)
		writeError(w, http.StatusInternalServerError, msg.LoadFailed)
		return
	}
	defer rows.Close()

	tenants := []models.Tenant{}
	for rows.Next() {
		t, err := scanTenant(rows)
		if err != nil {
			log.Printf("ERROR: Failed to scan tenant: %v", err)
			continue
		}
		tenants = append(tenants, t)
	}

	writeJSON(w, http.StatusOK, tenants)
}

func (h *TenantHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.Atoi(mux.Vars(r)["id"])
	if err != nil {
		writeError(w, http.StatusBadRequest, msg.InvalidRequest)
		return
	}

	t, err := scanTenant(h.db.QueryRow(tenantSelect+" WHERE t.id = ?", id))
	if err == sql.ErrNoRows {
		writeError(w, http.StatusNotFound, msg.TenantNotFound)
		return
	}
	if err != nil {
		log.Printf("ERROR: Failed to get tenant %d: %v", id, err)
		writeError(w, http.StatusInternalServerError, msg.LoadFailed)
		return
	}

	writeJSON(w, http.StatusOK, t)
}

func (h *TenantHandler) Create(w http.ResponseWriter, r *http.Request) {
	var t models.Tenant
	if err := json.NewDecoder(r.Body).Decode(&t); err != nil {
		writeError(w, http.StatusBadRequest, msg.InvalidRequest)
		return
	}

	if t.RoomID != nil {
		free, err := h.checkRoomFree(*t.RoomID, 0)
		if err != nil {
			log.Printf("ERROR: Failed to check room %d: %v", *t.RoomID, err)
			writeError(w, http.StatusInternalServerError, msg.SaveFailed)
			return
		}
		if !free {
			writeError(w, http.StatusConflict, msg.RoomHasActiveTenant)
			return
		}
	}

	res, err := h.db.Exec(`
		INSERT INTO tenants
		(room_id, name, phone, id_number, address, move_in_date,
		 id_card_image, contract_image)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, t.RoomID, t.Name, t.Phone, t.IDNumber, t.Address, t.MoveInDate,
		t.IDCardImage, t.ContractImage)
	if err != nil {
		log.Printf("ERROR: Failed to create tenant: %v", err)
		writeError(w, http.StatusInternalServerError, msg.SaveFailed)
		return
	}

	id, _ := res.LastInsertId()
	t.ID = int(id)
	t.IsActive = true

	logAction(h.db, "create_tenant", fmt.Sprintf("tenant_id=%d", t.ID), nil, r)
	writeJSON(w, http.StatusCreated, t)
}

func (h *TenantHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.Atoi(mux.Vars(r)["id"])
	if err != nil {
		writeError(w, http.StatusBadRequest, msg.InvalidRequest)
		return
	}

	var t models.Tenant
	if err := json.NewDecoder(r.Body).Decode(&t); err != nil {
		writeError(w, http.StatusBadRequest, msg.InvalidRequest)
		return
	}

	var exists int
	if err := h.db.QueryRow("SELECT COUNT(*) FROM tenants WHERE id = ?", id).Scan(&exists); err != nil || exists == 0 {
		writeError(w, http.StatusNotFound, msg.TenantNotFound)
		return
	}

	if t.RoomID != nil && t.IsActive {
		free, err := h.checkRoomFree(*t.RoomID, id)
		if err != nil {
			log.Printf("ERROR: Failed to check room %d: %v", *t.RoomID, err)
			writeError(w, http.StatusInternalServerError, msg.SaveFailed)
			return
		}
		if !free {
			writeError(w, http.StatusConflict, msg.RoomHasActiveTenant)
			return
		}
	}

	isActive := 0
	if t.IsActive {
		isActive = 1
	}
	_, err = h.db.Exec(`
		UPDATE tenants SET
			room_id = ?, name = ?, phone = ?, id_number = ?, address = ?,
			move_in_date = ?, move_out_date = ?, is_active = ?,
			id_card_image = ?, contract_image = ?,
			updated_at = CURRENT_TIMESTAMP
		WHERE id = ?
	`, t.RoomID, t.Name, t.Phone, t.IDNumber, t.Address,
		t.MoveInDate, t.MoveOutDate, isActive,
		t.IDCardImage, t.ContractImage, id)
	if err != nil {
		log.Printf("ERROR: Failed to update tenant %d: %v", id, err)
		writeError(w, http.StatusInternalServerError, msg.SaveFailed)
		return
	}

	t.ID = id
	writeJSON(w, http.StatusOK, t)
}

func (h *TenantHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.Atoi(mux.Vars(r)["id"])
	if err != nil {
		writeError(w, http.StatusBadRequest, msg.InvalidRequest)
		return
	}

	res, err := h.db.Exec("DELETE FROM tenants WHERE id = ?", id)
	if err != nil {
		log.Printf("ERROR: Failed to delete tenant %d: %v", id, err)
		writeError(w, http.StatusInternalServerError, msg.DeleteFailed)
		return
	}
	if affected, _ := res.RowsAffected(); affected == 0 {
		writeError(w, http.StatusNotFound, msg.TenantNotFound)
		return
	}

	logAction(h.db, "delete_tenant", fmt.Sprintf("tenant_id=%d", id), nil, r)
	writeJSON(w, http.StatusOK, map[string]string{"message": "deleted"})
}
