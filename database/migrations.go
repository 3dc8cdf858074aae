package database

import (
	"database/sql"
	"fmt"
	"log"

	"golang.org/x/crypto/bcrypt"
)

func RunMigrations(db *sql.DB) error {
	migrations := []string{
		`CREATE TABLE IF NOT EXISTS admin_users (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			username TEXT UNIQUE NOT NULL,
			password_hash TEXT NOT NULL,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
			updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)`,

		`CREATE TABLE IF NOT EXISTS floors (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			name TEXT NOT NULL,
			sort_order INTEGER DEFAULT 0
		)`,

		`CREATE TABLE IF NOT EXISTS rooms (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			floor_id INTEGER NOT NULL,
			room_number TEXT UNIQUE NOT NULL,
			room_price REAL DEFAULT 0,
			water_calculation_type TEXT DEFAULT 'unit',
			water_fixed_amount REAL DEFAULT 0,
			electric_calculation_type TEXT DEFAULT 'unit',
			electric_fixed_amount REAL DEFAULT 0,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
			updated_at DATETIME DEFAULT CURRENT_TIMESTAMP,
			FOREIGN KEY (floor_id) REFERENCES floors(id)
		)`,

		`CREATE TABLE IF NOT EXISTS tenants (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			room_id INTEGER,
			name TEXT NOT NULL,
			phone TEXT,
			id_number TEXT,
			address TEXT,
			move_in_date DATE,
			move_out_date DATE,
			is_active INTEGER DEFAULT 1,
			id_card_image TEXT,
			contract_image TEXT,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
			updated_at DATETIME DEFAULT CURRENT_TIMESTAMP,
			FOREIGN KEY (room_id) REFERENCES rooms(id)
		)`,

		`CREATE TABLE IF NOT EXISTS meter_readings (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			room_id INTEGER NOT NULL,
			reading_month INTEGER NOT NULL,
			reading_year INTEGER NOT NULL,
			water_previous REAL DEFAULT 0,
			water_current REAL DEFAULT 0,
			electric_previous REAL DEFAULT 0,
			electric_current REAL DEFAULT 0,
			reading_date DATE,
			UNIQUE(room_id, reading_month, reading_year),
			FOREIGN KEY (room_id) REFERENCES rooms(id)
		)`,

		`CREATE TABLE IF NOT EXISTS bills (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			room_id INTEGER NOT NULL,
			tenant_id INTEGER,
			bill_month INTEGER NOT NULL,
			bill_year INTEGER NOT NULL,
			room_price REAL DEFAULT 0,
			water_units REAL DEFAULT 0,
			water_rate REAL,
			water_amount REAL DEFAULT 0,
			electric_units REAL DEFAULT 0,
			electric_rate REAL,
			electric_amount REAL DEFAULT 0,
			trash_fee REAL DEFAULT 0,
			other_amount REAL DEFAULT 0,
			other_description TEXT,
			total_amount REAL DEFAULT 0,
			is_paid INTEGER DEFAULT 0,
			paid_date DATE,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
			updated_at DATETIME DEFAULT CURRENT_TIMESTAMP,
			UNIQUE(room_id, bill_month, bill_year),
			FOREIGN KEY (room_id) REFERENCES rooms(id),
			FOREIGN KEY (tenant_id) REFERENCES tenants(id)
		)`,

		`CREATE TABLE IF NOT EXISTS settings (
			setting_key TEXT PRIMARY KEY,
			setting_value TEXT NOT NULL,
			updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)`,

		`CREATE TABLE IF NOT EXISTS meter_sources (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			room_id INTEGER NOT NULL,
			utility TEXT NOT NULL,
			source_type TEXT NOT NULL,
			connection_config TEXT NOT NULL,
			is_active INTEGER DEFAULT 1,
			last_value REAL DEFAULT 0,
			last_seen DATETIME,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
			updated_at DATETIME DEFAULT CURRENT_TIMESTAMP,
			FOREIGN KEY (room_id) REFERENCES rooms(id)
		)`,

		`CREATE TABLE IF NOT EXISTS admin_logs (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			action TEXT NOT NULL,
			details TEXT,
			user_id INTEGER,
			ip_address TEXT,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)`,

		`CREATE INDEX IF NOT EXISTS idx_readings_room_period
			ON meter_readings(room_id, reading_year, reading_month)`,

		`CREATE INDEX IF NOT EXISTS idx_bills_period
			ON bills(bill_year, bill_month)`,

		`CREATE INDEX IF NOT EXISTS idx_tenants_room_active
			ON tenants(room_id, is_active)`,
	}

	for i, migration := range migrations {
		if _, err := db.Exec(migration); err != nil {
			return fmt.Errorf("migration %d failed: %v", i+1, err)
		}
	}

	if err := createDefaultAdmin(db); err != nil {
		return err
	}

	if err := seedDefaultSettings(db); err != nil {
		return err
	}

	log.Println("Migrations completed")
	return nil
}

func createDefaultAdmin(db *sql.DB) error {
	var count int
	err := db.QueryRow("SELECT COUNT(*) FROM admin_users").Scan(&count)
	if err != nil {
		return err
	}

	if count == 0 {
		hashedPassword, err := bcrypt.GenerateFromPassword([]byte("admin123"), bcrypt.DefaultCost)
		if err != nil {
			return err
		}

		_, err = db.Exec(`
			INSERT INTO admin_users (username, password_hash)
			VALUES (?, ?)
		`, "admin", string(hashedPassword))

		if err != nil {
			return err
		}

		log.Println("Default admin user created (admin / admin123)")
		log.Println("IMPORTANT: Change the default password immediately!")
	}

	return nil
}

// seedDefaultSettings inserts the billing rates the calculator falls back to
// when a key is missing: water 18, electric 8 per unit, trash fee 30.
func seedDefaultSettings(db *sql.DB) error {
	defaults := map[string]string{
		"water_rate":    "18",
		"electric_rate": "8",
		"trash_fee":     "30",
	}

	for key, value := range defaults {
		_, err := db.Exec(`
			INSERT INTO settings (setting_key, setting_value)
			VALUES (?, ?)
			ON CONFLICT(setting_key) DO NOTHING
		`, key, value)
		if err != nil {
			return err
		}
	}

	return nil
}
