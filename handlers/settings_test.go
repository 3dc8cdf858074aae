package handlers

import (
	"database/sql"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupMockDB(t *testing.T) (*sql.DB, sqlmock.Sqlmock) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db, mock
}

func TestSettingsList(t *testing.T) {
	db, mock := setupMockDB(t)
	h := NewSettingsHandler(db)

	mock.ExpectQuery("SELECT setting_key, setting_value FROM settings").
		WillReturnRows(sqlmock.NewRows([]string{"setting_key", "setting_value"}).
			AddRow("water_rate", "18").
			AddRow("electric_rate", "8").
			AddRow("trash_fee", "30"))

	req := httptest.NewRequest("GET", "/api/settings", nil)
	rec := httptest.NewRecorder()
	h.List(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)

	var settings map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &settings))
	assert.Equal(t, "18", settings["water_rate"])
	assert.Equal(t, "30", settings["trash_fee"])
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSettingsUpdate(t *testing.T) {
	db, mock := setupMockDB(t)
	h := NewSettingsHandler(db)

	mock.ExpectExec("INSERT INTO settings").
		WithArgs("water_rate", "20").
		WillReturnResult(sqlmock.NewResult(1, 1))
	// admin log write
	mock.ExpectExec("INSERT INTO admin_logs").
		WillReturnResult(sqlmock.NewResult(1, 1))

	req := httptest.NewRequest("PUT", "/api/settings/water_rate", strings.NewReader(`{"value":"20"}`))
	req = mux.SetURLVars(req, map[string]string{"key": "water_rate"})
	rec := httptest.NewRecorder()
	h.Update(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSettingsUpdateRejectsBadBody(t *testing.T) {
	db, mock := setupMockDB(t)
	h := NewSettingsHandler(db)

	req := httptest.NewRequest("PUT", "/api/settings/water_rate", strings.NewReader("not json"))
	req = mux.SetURLVars(req, map[string]string{"key": "water_rate"})
	rec := httptest.NewRecorder()
	h.Update(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.NoError(t, mock.ExpectationsWereMet())
}
