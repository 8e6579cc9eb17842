package client

import (
	"log"
	"strings"
	"time"

	"marketplace-escrow/internal/model"

	"github.com/shopspring/decimal"
	"gorm.io/driver/mysql"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

// InitDBClient opens the record store. MySQL DSNs are used as-is;
// anything else is treated as a sqlite path for local development.
func InitDBClient(databaseURL string) *gorm.DB {
	var dialector gorm.Dialector
	if strings.Contains(databaseURL, "@tcp(") {
		dialector = mysql.Open(databaseURL)
	} else {
		dialector = sqlite.Open(databaseURL)
	}

	db, err := gorm.Open(dialector, &gorm.Config{})
	if err != nil {
		log.Fatal("failed to connect to database:", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		log.Fatal(err)
	}

	// Connection pool (important for webhooks)
	sqlDB.SetMaxIdleConns(10)
	sqlDB.SetMaxOpenConns(50)
	sqlDB.SetConnMaxLifetime(time.Hour)

	if err := Migrate(db, "KES"); err != nil {
		log.Fatal(err)
	}

	return db
}

// Migrate creates the schema and seeds the singleton platform ledger row.
func Migrate(db *gorm.DB, currency string) error {
	if err := db.AutoMigrate(
		&model.User{},
		&model.Item{},
		&model.Payment{},
		&model.Earning{},
		&model.Dispute{},
		&model.FeeRule{},
		&model.PlatformLedger{},
		&model.Withdrawal{},
		&model.AdminFeeWithdrawal{},
		&model.WebhookEvent{},
	); err != nil {
		return err
	}

	ledger := model.PlatformLedger{
		ID:       1,
		FeePool:  decimal.Zero,
		Currency: currency,
	}
	return db.Where(model.PlatformLedger{ID: 1}).FirstOrCreate(&ledger).Error
}
