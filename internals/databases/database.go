package database

import (
	"context"
	"fmt"
	"log"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"srms_backend/internals/configs"
	recordModel "srms_backend/internals/features/certificates/records/model"
	studentModel "srms_backend/internals/features/students/students/model"
	authModel "srms_backend/internals/features/users/auth/model"
)

var DB *gorm.DB

// Models lists every table owned by the service, in migration order.
func Models() []interface{} {
	return []interface{}{
		&studentModel.StudentModel{},
		&recordModel.StudentRecordModel{},
		&recordModel.StudentRecordDocumentModel{},
		&recordModel.OrphanedDocumentModel{},
		&authModel.AdminModel{},
		&authModel.TokenBlacklist{},
	}
}

func ConnectDB(env *configs.Env) (*gorm.DB, error) {
	log.Println("🔌 Connecting to PostgreSQL...")

	db, err := gorm.Open(postgres.New(postgres.Config{
		DSN:                  env.DSN(),
		PreferSimpleProtocol: true, // 👍 works behind PgBouncer (transaction pooling)
	}), &gorm.Config{
		Logger:         configs.NewGormLogger(env.DBLogLevel),
		TranslateError: true,
	})
	if err != nil {
		return nil, fmt.Errorf("connect db: %w", err)
	}
	DB = db
	log.Println("✅ DB connected.")
	return db, nil
}

func AutoMigrate(db *gorm.DB) error {
	if err := db.AutoMigrate(Models()...); err != nil {
		return fmt.Errorf("auto migrate: %w", err)
	}
	log.Println("✅ Schema migrated.")
	return nil
}

func TunePool(db *gorm.DB) {
	sqlDB, err := db.DB()
	if err != nil {
		log.Printf("pool tune err: %v", err)
		return
	}
	sqlDB.SetMaxOpenConns(20)
	sqlDB.SetMaxIdleConns(10)
	sqlDB.SetConnMaxIdleTime(60 * time.Second)
	sqlDB.SetConnMaxLifetime(10 * time.Minute)
}

func WarmUpQueries(db *gorm.DB) {
	// light ping so the pool is populated before the first request
	go func() {
		time.Sleep(500 * time.Millisecond)
		ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		if err := Ping(ctx, db); err != nil {
			log.Printf("warm-up ping err: %v", err)
		}
	}()
}

func Ping(ctx context.Context, db *gorm.DB) error {
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

func Close(db *gorm.DB) {
	if db == nil {
		return
	}
	if sqlDB, err := db.DB(); err == nil {
		_ = sqlDB.Close()
	}
}
