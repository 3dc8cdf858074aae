package handlers

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"log"
	"net/http"

	"github.com/gorilla/mux"
)

type SettingsHandler struct {
	db *sql.DB
}

func NewSettingsHandler(db *sql.DB) *SettingsHandler {
	return &SettingsHandler{db: db}
}

// List returns all settings as a flat key/value map.
func (h *SettingsHandler) List(w http.ResponseWriter, r *http.Request) {
	rows, err := h.db.Query("SELECT setting_key, setting_value FROM settings ORDER BY setting_key")
	if err != nil {
		log.Printf("ERROR: Failed to list settings: %v", err)
		writeError(w, http.StatusInternalServerError, msg.LoadFailed)
		return
	}
	defer rows.Close()

	settings := map[string]string{}
	for rows.Next() {
		var key, value string
		if err := rows.Scan(&key, &value); err != nil {
			log.Printf("ERROR: Failed to scan setting: %v", err)
			continue
		}
		settings[key] = value
	}

	writeJSON(w, http.StatusOK, settings)
}

func (h *SettingsHandler) upsert(key, value string) error {
	_, err := h.db.Exec(`
		INSERT INTO settings (setting_key, setting_value) VALUES (?, ?)
		ON CONFLICT(setting_key) DO UPDATE SET
			setting_value = excluded.setting_value,
			updated_at = CURRENT_TIMESTAMP
	`, key, value)
	return err
}

// Update sets one setting. Values are stored as submitted; rate parsing and
// fallbacks happen at billing time so a bad value never breaks the store.
func (h *SettingsHandler) Update(w http.ResponseWriter, r *http.Request) {
	key := mux.Vars(r)["key"]

	var req struct {
		Value string `json:"value"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, msg.InvalidRequest)
		return
	}

	if err := h.upsert(key, req.Value); err != nil {
		log.Printf("ERROR: Failed to save setting %s: %v", key, err)
		writeError(w, http.StatusInternalServerError, msg.SaveFailed)
		return
	}

	logAction(h.db, "update_setting", fmt.Sprintf("%s=%s", key, req.Value), nil, r)
	writeJSON(w, http.StatusOK, map[string]string{key: req.Value})
}

// BulkUpdate saves the whole settings form in one call.
func (h *SettingsHandler) BulkUpdate(w http.ResponseWriter, r *http.Request) {
	var settings map[string]string
	if err := json.NewDecoder(r.Body).Decode(&settings); err != nil {
		writeError(w, http.StatusBadRequest, msg.InvalidRequest)
		return
	}

	for key, value := range settings {
		if err := h.upsert(key, value); err != nil {
			log.Printf("ERROR: Failed to save setting %s: %v", key, err)
			writeError(w, http.StatusInternalServerError, msg.SaveFailed)
			return
		}
	}

	logAction(h.db, "update_settings", fmt.Sprintf("%d keys", len(settings)), nil, r)
	writeJSON(w, http.StatusOK, settings)
}
