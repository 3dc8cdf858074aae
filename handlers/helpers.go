package handlers

import (
	"database/sql"
	"encoding/json"
	"log"
	"net/http"

	"github.com/ps2841/horpak-billing/services"
)

// msg is the user-facing message catalog. The office UI is Thai; internal
// detail stays in the logs.
var msg = services.GetMessages("th")

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

// logAction records an admin action for the audit trail. Failures are logged
// and swallowed; auditing never fails the request.
func logAction(db *sql.DB, action, details string, userID *int, r *http.Request) {
	_, err := db.Exec(`
		INSERT INTO admin_logs (action, details, user_id, ip_address)
		VALUES (?, ?, ?, ?)
	`, action, details, userID, r.RemoteAddr)
	if err != nil {
		log.Printf("ERROR: Failed to write admin log: %v", err)
	}
}
