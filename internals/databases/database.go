package database

import (
	"context"
	"fmt"
	"os"
	"time"

	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"academia_backend/internals/configs"
	billingModel "academia_backend/internals/features/finance/billings/model"
	paymentModel "academia_backend/internals/features/finance/payments/model"
)

var DB *gorm.DB

func ConnectDB(log *zap.Logger) error {
	log.Info("🔌 connecting to PostgreSQL")

	// statement_timeout keeps runaway batch queries from pinning the pool
	sslmode := getenv("DB_SSLMODE", "require")
	dsn := fmt.Sprintf(
		"postgres://%s:%s@%s:%s/%s?sslmode=%s&application_name=academia&options=-c statement_timeout=5000",
		os.Getenv("DB_USER"),
		os.Getenv("DB_PASSWORD"),
		os.Getenv("DB_HOST"),
		os.Getenv("DB_PORT"),
		os.Getenv("DB_NAME"),
		sslmode,
	)

	db, err := gorm.Open(postgres.New(postgres.Config{
		DSN:                  dsn,
		PreferSimpleProtocol: true, // PgBouncer transaction pooling
	}), &gorm.Config{
		Logger:         configs.NewGormLogger(log),
		TranslateError: true,
	})
	if err != nil {
		return fmt.Errorf("connect db: %w", err)
	}
	DB = db
	log.Info("✅ DB connected")
	return nil
}

// DSN is the libpq connection string used by the LISTEN connection.
func DSN() string {
	return fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		os.Getenv("DB_HOST"),
		os.Getenv("DB_PORT"),
		os.Getenv("DB_USER"),
		os.Getenv("DB_PASSWORD"),
		os.Getenv("DB_NAME"),
		getenv("DB_SSLMODE", "require"),
	)
}

func TunePool(log *zap.Logger) {
	sqlDB, err := DB.DB()
	if err != nil {
		log.Warn("pool tune", zap.Error(err))
		return
	}
	sqlDB.SetMaxOpenConns(20)
	sqlDB.SetMaxIdleConns(10)
	sqlDB.SetConnMaxIdleTime(60 * time.Second)
	sqlDB.SetConnMaxLifetime(10 * time.Minute)
}

// Migrate creates or updates every table the billing engine owns.
func Migrate(db *gorm.DB) error {
	models := append(billingModel.AllModels(), paymentModel.AllModels()...)
	if err := db.AutoMigrate(models...); err != nil {
		return fmt.Errorf("auto migrate: %w", err)
	}
	return nil
}

func WarmUpQueries(log *zap.Logger) {
	go func() {
		time.Sleep(500 * time.Millisecond)
		ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		if err := Ping(ctx); err != nil {
			log.Warn("warm-up ping", zap.Error(err))
		}
	}()
}

func Ping(ctx context.Context) error {
	sqlDB, err := DB.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

func getenv(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}
