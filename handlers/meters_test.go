package handlers

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/ps2841/horpak-billing/services"
)

func TestMeterSaveRejectsInvalidPeriod(t *testing.T) {
	db, mock := setupMockDB(t)
	h := NewMeterHandler(db, services.NewMeterService(db), nil, nil)

	body := `{"room_id":1,"reading_month":13,"reading_year":2025,"water_current":115}`
	req := httptest.NewRequest("POST", "/api/meters", strings.NewReader(body))
	rec := httptest.NewRecorder()
	h.Save(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.NoError(t, mock.ExpectationsWereMet(), "validation errors never reach the database")
}

func TestMeterSaveStorageFailureIsServerError(t *testing.T) {
	db, mock := setupMockDB(t)
	h := NewMeterHandler(db, services.NewMeterService(db), nil, nil)

	mock.ExpectQuery("SELECT id FROM meter_readings").
		WillReturnError(errors.New("disk I/O error"))

	body := `{"room_id":1,"reading_month":4,"reading_year":2025,"water_current":115}`
	req := httptest.NewRequest("POST", "/api/meters", strings.NewReader(body))
	rec := httptest.NewRecorder()
	h.Save(rec, req)

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.NoError(t, mock.ExpectationsWereMet())
}
