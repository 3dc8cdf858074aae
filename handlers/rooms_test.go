package handlers

import (
	"database/sql"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ps2841/horpak-billing/database"
)

// setupTestDB opens an in-memory SQLite database with the real schema, so
// foreign key enforcement behaves exactly as in production.
func setupTestDB(t *testing.T) *sql.DB {
	db, err := database.InitDB(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	require.NoError(t, database.RunMigrations(db))
	return db
}

func seedRoomWithHistory(t *testing.T, db *sql.DB) {
	for _, stmt := range []string{
		"INSERT INTO floors (name, sort_order) VALUES ('Floor 1', 1)",
		"INSERT INTO rooms (floor_id, room_number, room_price) VALUES (1, '101', 3000)",
		"INSERT INTO tenants (room_id, name) VALUES (1, 'Somchai')",
		"INSERT INTO meter_readings (room_id, reading_month, reading_year, water_current) VALUES (1, 4, 2025, 115)",
		`INSERT INTO meter_sources (room_id, utility, source_type, connection_config) VALUES (1, 'water', 'mqtt', '{}')`,
	} {
		_, err := db.Exec(stmt)
		require.NoError(t, err)
	}
}

func deleteRoom(h *RoomHandler, id string) *httptest.ResponseRecorder {
	req := httptest.NewRequest("DELETE", "/api/rooms/"+id, nil)
	req = mux.SetURLVars(req, map[string]string{"id": id})
	rec := httptest.NewRecorder()
	h.Delete(rec, req)
	return rec
}

func TestRoomDeleteWithHistory(t *testing.T) {
	db := setupTestDB(t)
	seedRoomWithHistory(t, db)
	h := NewRoomHandler(db)

	rec := deleteRoom(h, "1")
	assert.Equal(t, http.StatusOK, rec.Code)

	var roomCount int
	require.NoError(t, db.QueryRow("SELECT COUNT(*) FROM rooms").Scan(&roomCount))
	assert.Equal(t, 0, roomCount)

	// Tenant history survives with the room reference cleared
	var roomID sql.NullInt64
	var tenantName string
	require.NoError(t, db.QueryRow("SELECT room_id, name FROM tenants WHERE id = 1").Scan(&roomID, &tenantName))
	assert.False(t, roomID.Valid)
	assert.Equal(t, "Somchai", tenantName)

	var readingCount, sourceCount int
	require.NoError(t, db.QueryRow("SELECT COUNT(*) FROM meter_readings").Scan(&readingCount))
	require.NoError(t, db.QueryRow("SELECT COUNT(*) FROM meter_sources").Scan(&sourceCount))
	assert.Equal(t, 0, readingCount)
	assert.Equal(t, 0, sourceCount)
}

func TestRoomDeleteBlockedByBills(t *testing.T) {
	db := setupTestDB(t)
	seedRoomWithHistory(t, db)
	_, err := db.Exec("INSERT INTO bills (room_id, bill_month, bill_year, total_amount) VALUES (1, 4, 2025, 4500)")
	require.NoError(t, err)
	h := NewRoomHandler(db)

	rec := deleteRoom(h, "1")
	assert.Equal(t, http.StatusConflict, rec.Code)

	// Nothing was touched: room, tenant link and history all intact
	var roomCount, readingCount int
	var roomID sql.NullInt64
	require.NoError(t, db.QueryRow("SELECT COUNT(*) FROM rooms").Scan(&roomCount))
	require.NoError(t, db.QueryRow("SELECT COUNT(*) FROM meter_readings").Scan(&readingCount))
	require.NoError(t, db.QueryRow("SELECT room_id FROM tenants WHERE id = 1").Scan(&roomID))
	assert.Equal(t, 1, roomCount)
	assert.Equal(t, 1, readingCount)
	assert.True(t, roomID.Valid)
}

func TestRoomDeleteNotFound(t *testing.T) {
	db := setupTestDB(t)
	h := NewRoomHandler(db)

	rec := deleteRoom(h, "99")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
