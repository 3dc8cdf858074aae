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

func setupMockDB(t *testing.T) (*sql.DB, sqlmock.Sqlmock) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db, mock
}

func TestParseRate(t *testing.T) {
	assert.Equal(t, 25.5, ParseRate("25.5", 18))
	assert.Equal(t, 18.0, ParseRate("", 18))
	assert.Equal(t, 18.0, ParseRate("abc", 18))
	assert.Equal(t, 18.0, ParseRate("0", 18))
	assert.Equal(t, 18.0, ParseRate("-5", 18))
}

func TestUtilityCharge(t *testing.T) {
	amount, err := UtilityCharge(models.CalcFixed, 250, 99, 18)
	require.NoError(t, err)
	assert.Equal(t, 250.0, amount, "fixed mode ignores units and rate")

	amount, err = UtilityCharge(models.CalcUnit, 250, 15, 18)
	require.NoError(t, err)
	assert.Equal(t, 270.0, amount, "unit mode ignores the fixed amount")

	_, err = UtilityCharge("flat", 250, 15, 18)
	assert.Error(t, err, "unknown mode is a configuration error")
}

func TestComputeBillUnitMode(t *testing.T) {
	bill := models.Bill{TrashFee: 30}
	pricing := RoomPricing{
		RoomPrice:        3000,
		WaterCalcType:    models.CalcUnit,
		ElectricCalcType: models.CalcUnit,
	}
	rates := Rates{Water: 18, Electric: 8, Trash: 30}

	err := ComputeBill(&bill, pricing, rates, 15, 150)
	require.NoError(t, err)

	assert.Equal(t, 270.0, bill.WaterAmount)
	assert.Equal(t, 1200.0, bill.ElectricAmount)
	assert.Equal(t, 4500.0, bill.TotalAmount)
	require.NotNil(t, bill.WaterRate)
	assert.Equal(t, 18.0, *bill.WaterRate)
	require.NotNil(t, bill.ElectricRate)
	assert.Equal(t, 8.0, *bill.ElectricRate)
}

func TestComputeBillFixedMode(t *testing.T) {
	pricing := RoomPricing{
		RoomPrice:           2500,
		WaterCalcType:       models.CalcFixed,
		WaterFixedAmount:    100,
		ElectricCalcType:    models.CalcFixed,
		ElectricFixedAmount: 500,
	}
	rates := Rates{Water: 18, Electric: 8, Trash: 30}

	// Fixed amounts hold no matter how much the meters moved
	for _, usage := range []float64{0, 7, 9999} {
		bill := models.Bill{TrashFee: 30}
		err := ComputeBill(&bill, pricing, rates, usage, usage)
		require.NoError(t, err)
		assert.Equal(t, 100.0, bill.WaterAmount)
		assert.Equal(t, 500.0, bill.ElectricAmount)
		assert.Equal(t, 3130.0, bill.TotalAmount)
		assert.Nil(t, bill.WaterRate, "fixed mode snapshots no rate")
		assert.Nil(t, bill.ElectricRate)
	}
}

func TestComputeBillMixedModesWithOther(t *testing.T) {
	bill := models.Bill{TrashFee: 30, OtherAmount: 150}
	pricing := RoomPricing{
		RoomPrice:           3200,
		WaterCalcType:       models.CalcFixed,
		WaterFixedAmount:    120,
		ElectricCalcType:    models.CalcUnit,
		ElectricFixedAmount: 999,
	}
	rates := Rates{Water: 18, Electric: 8, Trash: 30}

	err := ComputeBill(&bill, pricing, rates, 5, 80)
	require.NoError(t, err)
	assert.Equal(t, 120.0, bill.WaterAmount)
	assert.Equal(t, 640.0, bill.ElectricAmount)
	assert.Equal(t, 3200.0+120+640+30+150, bill.TotalAmount)
	assert.Nil(t, bill.WaterRate)
	require.NotNil(t, bill.ElectricRate)
}

func TestComputeBillUnknownCalcType(t *testing.T) {
	bill := models.Bill{}
	pricing := RoomPricing{WaterCalcType: "metered", ElectricCalcType: models.CalcUnit}

	err := ComputeBill(&bill, pricing, Rates{}, 1, 1)
	assert.Error(t, err)
}

func TestComputeBillZeroRoomPrice(t *testing.T) {
	bill := models.Bill{TrashFee: 30}
	pricing := RoomPricing{
		WaterCalcType:    models.CalcUnit,
		ElectricCalcType: models.CalcUnit,
	}

	err := ComputeBill(&bill, pricing, Rates{Water: 18, Electric: 8}, 0, 0)
	require.NoError(t, err)
	assert.Equal(t, 30.0, bill.TotalAmount, "missing room price contributes zero")
}

func TestVerifyTotal(t *testing.T) {
	bill := models.Bill{
		RoomPrice:      3000,
		WaterAmount:    270,
		ElectricAmount: 1200,
		TrashFee:       30,
		TotalAmount:    4500,
	}
	assert.NoError(t, VerifyTotal(&bill))

	bill.TotalAmount = 4500.004
	assert.NoError(t, VerifyTotal(&bill), "sub-satang float noise passes")

	bill.TotalAmount = 4499
	err := VerifyTotal(&bill)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrTotalMismatch))
}

func TestLoadRatesFallsBackOnMissingKeys(t *testing.T) {
	db, mock := setupMockDB(t)
	bs := NewBillingService(db)

	rows := sqlmock.NewRows([]string{"setting_key", "setting_value"}).
		AddRow("water_rate", "22").
		AddRow("electric_rate", "not-a-number")
	mock.ExpectQuery("SELECT setting_key, setting_value FROM settings").WillReturnRows(rows)

	rates := bs.LoadRates()
	assert.Equal(t, 22.0, rates.Water)
	assert.Equal(t, float64(DefaultElectricRate), rates.Electric)
	assert.Equal(t, float64(DefaultTrashFee), rates.Trash)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGenerateBills(t *testing.T) {
	db, mock := setupMockDB(t)
	bs := NewBillingService(db)

	settings := sqlmock.NewRows([]string{"setting_key", "setting_value"}).
		AddRow("water_rate", "18").
		AddRow("electric_rate", "8").
		AddRow("trash_fee", "30")
	mock.ExpectQuery("SELECT setting_key, setting_value FROM settings").WillReturnRows(settings)

	cols := []string{
		"id", "room_number", "room_price",
		"water_calculation_type", "water_fixed_amount",
		"electric_calculation_type", "electric_fixed_amount",
		"name",
		"water_previous", "water_current",
		"electric_previous", "electric_current",
		"t_id", "t_name", "t_phone",
	}
	rooms := sqlmock.NewRows(cols).
		// occupied room with a reading: 3000 + 15*18 + 150*8 + 30
		AddRow(1, "101", 3000.0, "unit", 0.0, "unit", 0.0, "Floor 1",
			100.0, 115.0, 2000.0, 2150.0, 7, "Somchai", "0812345678").
		// occupied room without a reading: rent and trash only
		AddRow(2, "102", 2800.0, "unit", 0.0, "unit", 0.0, "Floor 1",
			nil, nil, nil, nil, 8, "Malee", "").
		// vacant room with a reading, fixed water
		AddRow(3, "201", 3500.0, "fixed", 100.0, "unit", 0.0, "Floor 2",
			50.0, 52.0, 900.0, 950.0, nil, nil, nil)
	mock.ExpectQuery("FROM rooms r").WithArgs(4, 2025).WillReturnRows(rooms)

	bills, err := bs.GenerateBills(4, 2025)
	require.NoError(t, err)
	require.Len(t, bills, 3)

	assert.Equal(t, 4500.0, bills[0].TotalAmount)
	require.NotNil(t, bills[0].TenantID)
	assert.Equal(t, "Somchai", bills[0].TenantName)

	assert.Equal(t, 2830.0, bills[1].TotalAmount, "no reading means zero usage, not a dropped room")
	assert.Nil(t, bills[1].WaterCurrent)

	assert.Equal(t, 3500.0+100+400+30, bills[2].TotalAmount)
	assert.Nil(t, bills[2].TenantID)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGenerateBillsSkipsMisconfiguredRoom(t *testing.T) {
	db, mock := setupMockDB(t)
	bs := NewBillingService(db)

	mock.ExpectQuery("SELECT setting_key, setting_value FROM settings").
		WillReturnRows(sqlmock.NewRows([]string{"setting_key", "setting_value"}))

	cols := []string{
		"id", "room_number", "room_price",
		"water_calculation_type", "water_fixed_amount",
		"electric_calculation_type", "electric_fixed_amount",
		"name",
		"water_previous", "water_current",
		"electric_previous", "electric_current",
		"t_id", "t_name", "t_phone",
	}
	rooms := sqlmock.NewRows(cols).
		AddRow(1, "101", 3000.0, "banana", 0.0, "unit", 0.0, "Floor 1",
			nil, nil, nil, nil, 7, "Somchai", "").
		AddRow(2, "102", 2800.0, "unit", 0.0, "unit", 0.0, "Floor 1",
			nil, nil, nil, nil, 8, "Malee", "")
	mock.ExpectQuery("FROM rooms r").WithArgs(1, 2025).WillReturnRows(rooms)

	bills, err := bs.GenerateBills(1, 2025)
	require.NoError(t, err)
	require.Len(t, bills, 1, "the bad room is skipped, the good one survives")
	assert.Equal(t, "102", bills[0].RoomNumber)
}

func TestSaveBillRejectsMismatchedTotal(t *testing.T) {
	db, mock := setupMockDB(t)
	bs := NewBillingService(db)

	bill := models.Bill{
		RoomID: 1, BillMonth: 4, BillYear: 2025,
		RoomPrice: 3000, WaterAmount: 270, ElectricAmount: 1200, TrashFee: 30,
		TotalAmount: 9999,
	}

	_, _, err := bs.SaveBill(&bill)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrTotalMismatch))
	assert.NoError(t, mock.ExpectationsWereMet(), "nothing touches the database")
}

func TestSaveBillInsertThenUpdate(t *testing.T) {
	db, mock := setupMockDB(t)
	bs := NewBillingService(db)

	bill := models.Bill{
		RoomID: 1, BillMonth: 4, BillYear: 2025,
		RoomPrice: 3000, WaterAmount: 270, ElectricAmount: 1200, TrashFee: 30,
		TotalAmount: 4500,
	}

	mock.ExpectQuery("SELECT id FROM bills").
		WithArgs(1, 4, 2025).
		WillReturnError(sql.ErrNoRows)
	mock.ExpectExec("INSERT INTO bills").
		WillReturnResult(sqlmock.NewResult(42, 1))

	id, created, err := bs.SaveBill(&bill)
	require.NoError(t, err)
	assert.True(t, created)
	assert.Equal(t, 42, id)

	mock.ExpectQuery("SELECT id FROM bills").
		WithArgs(1, 4, 2025).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(42))
	mock.ExpectExec("UPDATE bills SET").
		WillReturnResult(sqlmock.NewResult(0, 1))

	id, created, err = bs.SaveBill(&bill)
	require.NoError(t, err)
	assert.False(t, created, "same room and period updates in place")
	assert.Equal(t, 42, id)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMarkPaid(t *testing.T) {
	db, mock := setupMockDB(t)
	bs := NewBillingService(db)

	mock.ExpectExec("UPDATE bills SET is_paid = 1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	assert.NoError(t, bs.MarkPaid(5))

	mock.ExpectExec("UPDATE bills SET is_paid = 1").
		WillReturnResult(sqlmock.NewResult(0, 0))
	assert.Equal(t, sql.ErrNoRows, bs.MarkPaid(999))

	assert.NoError(t, mock.ExpectationsWereMet())
}
