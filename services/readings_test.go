package services

import (
	"database/sql"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ps2841/horpak-billing/models"
)

func TestValidPeriod(t *testing.T) {
	assert.True(t, ValidPeriod(1, 2025))
	assert.True(t, ValidPeriod(12, 2025))
	assert.False(t, ValidPeriod(0, 2025))
	assert.False(t, ValidPeriod(13, 2025))
	assert.False(t, ValidPeriod(6, 1999))
	assert.False(t, ValidPeriod(6, 2300))
}

func TestUsageOf(t *testing.T) {
	assert.Nil(t, models.UsageOf(0, 100), "a zero current register means not yet recorded")

	u := models.UsageOf(115, 100)
	require.NotNil(t, u)
	assert.Equal(t, 15.0, *u)

	// Rollovers and typos surface as negative usage for the office to see,
	// never silently clamped
	u = models.UsageOf(5, 10)
	require.NotNil(t, u)
	assert.Equal(t, -5.0, *u)
}

func TestResolvePreviousSkipsGaps(t *testing.T) {
	db, mock := setupMockDB(t)
	ms := NewMeterService(db)

	// History holds January and March; April's previous is March's current,
	// not the missing month before it.
	mock.ExpectQuery("FROM meter_readings").
		WithArgs(1, 2025, 2025, 4).
		WillReturnRows(sqlmock.NewRows([]string{"water_current", "electric_current"}).
			AddRow(80.0, 1200.0))

	waterPrev, electricPrev, err := ms.ResolvePrevious(1, 4, 2025)
	require.NoError(t, err)
	assert.Equal(t, 80.0, waterPrev)
	assert.Equal(t, 1200.0, electricPrev)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestResolvePreviousFreshMeter(t *testing.T) {
	db, mock := setupMockDB(t)
	ms := NewMeterService(db)

	mock.ExpectQuery("FROM meter_readings").
		WithArgs(9, 2025, 2025, 1).
		WillReturnError(sql.ErrNoRows)

	waterPrev, electricPrev, err := ms.ResolvePrevious(9, 1, 2025)
	require.NoError(t, err)
	assert.Equal(t, 0.0, waterPrev, "no history starts from zero")
	assert.Equal(t, 0.0, electricPrev)
}

func TestRecordReadingInsert(t *testing.T) {
	db, mock := setupMockDB(t)
	ms := NewMeterService(db)

	mock.ExpectQuery("SELECT id FROM meter_readings").
		WithArgs(1, 4, 2025).
		WillReturnError(sql.ErrNoRows)
	mock.ExpectExec("INSERT INTO meter_readings").
		WillReturnResult(sqlmock.NewResult(11, 1))

	reading, created, err := ms.RecordReading(1, 4, 2025, 100, 115, 2000, 2150)
	require.NoError(t, err)
	assert.True(t, created)
	assert.Equal(t, 11, reading.ID)
	require.NotNil(t, reading.WaterUsage)
	assert.Equal(t, 15.0, *reading.WaterUsage)
	require.NotNil(t, reading.ElectricUsage)
	assert.Equal(t, 150.0, *reading.ElectricUsage)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRecordReadingUpdateExisting(t *testing.T) {
	db, mock := setupMockDB(t)
	ms := NewMeterService(db)

	mock.ExpectQuery("SELECT id FROM meter_readings").
		WithArgs(1, 4, 2025).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(11))
	mock.ExpectExec("UPDATE meter_readings SET").
		WillReturnResult(sqlmock.NewResult(0, 1))

	reading, created, err := ms.RecordReading(1, 4, 2025, 100, 118, 2000, 2160)
	require.NoError(t, err)
	assert.False(t, created, "re-recording the period corrects the one row")
	assert.Equal(t, 11, reading.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRecordReadingRejectsBadPeriod(t *testing.T) {
	db, mock := setupMockDB(t)
	ms := NewMeterService(db)

	_, _, err := ms.RecordReading(1, 13, 2025, 0, 0, 0, 0)
	assert.Error(t, err)
	assert.NoError(t, mock.ExpectationsWereMet(), "invalid period never reaches the database")
}

func TestBulkRecordContinuesPastFailures(t *testing.T) {
	db, mock := setupMockDB(t)
	ms := NewMeterService(db)

	// Row 1 saves, row 2 hits a database error, row 3 still saves
	mock.ExpectQuery("SELECT id FROM meter_readings").
		WithArgs(1, 4, 2025).WillReturnError(sql.ErrNoRows)
	mock.ExpectExec("INSERT INTO meter_readings").
		WillReturnResult(sqlmock.NewResult(21, 1))

	mock.ExpectQuery("SELECT id FROM meter_readings").
		WithArgs(2, 4, 2025).WillReturnError(errors.New("disk I/O error"))

	mock.ExpectQuery("SELECT id FROM meter_readings").
		WithArgs(3, 4, 2025).WillReturnError(sql.ErrNoRows)
	mock.ExpectExec("INSERT INTO meter_readings").
		WillReturnResult(sqlmock.NewResult(22, 1))

	outcomes := ms.BulkRecord([]BulkReadingEntry{
		{RoomID: 1, ReadingMonth: 4, ReadingYear: 2025, WaterCurrent: 115},
		{RoomID: 2, ReadingMonth: 4, ReadingYear: 2025, WaterCurrent: 90},
		{RoomID: 3, ReadingMonth: 4, ReadingYear: 2025, WaterCurrent: 70},
	})

	require.Len(t, outcomes, 3)
	assert.True(t, outcomes[0].Created)
	assert.Empty(t, outcomes[0].Error)
	assert.NotEmpty(t, outcomes[1].Error)
	assert.True(t, outcomes[2].Created, "rooms after the failed one still save")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestListByPeriodDerivesUsage(t *testing.T) {
	db, mock := setupMockDB(t)
	ms := NewMeterService(db)

	cols := []string{
		"id", "room_id", "reading_month", "reading_year",
		"water_previous", "water_current", "electric_previous", "electric_current",
		"reading_date", "room_number", "f_id", "f_name",
	}
	rows := sqlmock.NewRows(cols).
		AddRow(1, 1, 4, 2025, 100.0, 115.0, 2000.0, 2150.0, "2025-04-28", "101", 1, "Floor 1").
		AddRow(2, 2, 4, 2025, 50.0, 0.0, 900.0, 950.0, "2025-04-28", "102", 1, "Floor 1")
	mock.ExpectQuery("FROM meter_readings m").WithArgs(4, 2025).WillReturnRows(rows)

	readings, err := ms.ListByPeriod(4, 2025)
	require.NoError(t, err)
	require.Len(t, readings, 2)

	require.NotNil(t, readings[0].WaterUsage)
	assert.Equal(t, 15.0, *readings[0].WaterUsage)

	assert.Nil(t, readings[1].WaterUsage, "water not recorded yet")
	require.NotNil(t, readings[1].ElectricUsage)
	assert.Equal(t, 50.0, *readings[1].ElectricUsage)
}

func TestRoomsForPeriod(t *testing.T) {
	db, mock := setupMockDB(t)
	ms := NewMeterService(db)

	cols := []string{
		"id", "room_number", "room_price",
		"water_calculation_type", "water_fixed_amount",
		"electric_calculation_type", "electric_fixed_amount",
		"f_id", "f_name",
		"curr_id", "water_previous", "water_current",
		"electric_previous", "electric_current",
		"prev_water", "prev_electric",
		"occupied",
	}
	rows := sqlmock.NewRows(cols).
		// room with a reading this period
		AddRow(1, "101", 3000.0, "unit", 0.0, "unit", 0.0, 1, "Floor 1",
			11, 100.0, 115.0, 2000.0, 2150.0, 100.0, 2000.0, 1).
		// room with no reading yet, seeded from the prior period
		AddRow(2, "102", 2800.0, "unit", 0.0, "unit", 0.0, 1, "Floor 1",
			nil, nil, nil, nil, nil, 80.0, 1200.0, 0)
	mock.ExpectQuery("FROM rooms r").WithArgs(4, 2025, 2025, 2025, 4).WillReturnRows(rows)

	result, err := ms.RoomsForPeriod(4, 2025)
	require.NoError(t, err)
	require.Len(t, result, 2)

	require.NotNil(t, result[0].ReadingID)
	assert.Equal(t, 11, *result[0].ReadingID)
	assert.True(t, result[0].IsOccupied)

	assert.Nil(t, result[1].ReadingID)
	assert.Equal(t, 80.0, result[1].PrevWater)
	assert.Equal(t, 1200.0, result[1].PrevElectric)
	assert.False(t, result[1].IsOccupied)
}
