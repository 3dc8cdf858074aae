package config

import (
	"os"
)

type Config struct {
	DatabasePath  string
	ServerAddress string
	JWTSecret     string
	InvoiceDir    string
	InvoiceFont   string
	PromptPayID   string
}

func Load() *Config {
	return &Config{
		DatabasePath:  getEnv("DATABASE_PATH", "./horpak-billing.db"),
		ServerAddress: getEnv("SERVER_ADDRESS", ":8080"),
		JWTSecret:     getEnv("JWT_SECRET", "horpak-billing-secret-change-in-production"),
		InvoiceDir:    getEnv("INVOICE_DIR", "./invoices"),
		InvoiceFont:   getEnv("INVOICE_FONT", ""),
		PromptPayID:   getEnv("PROMPTPAY_ID", ""),
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
