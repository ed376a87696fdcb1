package database

import (
	"fmt"
	"log"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// DB is the global database instance
var DB *gorm.DB

// Connect establishes a connection to the PostgreSQL database
func Connect(dsn string, logLevel logger.LogLevel) error {
	var err error

	DB, err = gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger:         logger.Default.LogMode(logLevel),
		TranslateError: true,
	})
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}

	log.Println("Database connection established")
	return nil
}

// GetDB returns the global database instance
func GetDB() *gorm.DB {
	return DB
}

// SetDB replaces the global database instance (used by tests)
func SetDB(db *gorm.DB) {
	DB = db
}

// AutoMigrate runs database migrations
func AutoMigrate() error {
	return Migrate(DB)
}

// Migrate runs migrations against the given database
func Migrate(db *gorm.DB) error {
	log.Println("Running database migrations...")

	err := db.AutoMigrate(
		&Incident{},
		&IncidentDocument{},
		&FirstPassAnalysis{},
		&HumanReview{},
		&SecondPassAnalysis{},
		&RCAReport{},
		&AuditLog{},
	)
	if err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	log.Println("Database migrations completed successfully")
	return nil
}

// GetIncidentByUUID returns an incident by UUID
func GetIncidentByUUID(db *gorm.DB, uuid string) (*Incident, error) {
	var incident Incident
	if err := db.Where("uuid = ?", uuid).First(&incident).Error; err != nil {
		return nil, err
	}
	return &incident, nil
}

// GetDocumentByUUID returns a document by UUID
func GetDocumentByUUID(db *gorm.DB, uuid string) (*IncidentDocument, error) {
	var doc IncidentDocument
	if err := db.Where("uuid = ?", uuid).First(&doc).Error; err != nil {
		return nil, err
	}
	return &doc, nil
}

// GetFirstPassByUUID returns a first-pass analysis by UUID
func GetFirstPassByUUID(db *gorm.DB, uuid string) (*FirstPassAnalysis, error) {
	var analysis FirstPassAnalysis
	if err := db.Where("uuid = ?", uuid).First(&analysis).Error; err != nil {
		return nil, err
	}
	return &analysis, nil
}

// GetReviewByUUID returns a human review by UUID
func GetReviewByUUID(db *gorm.DB, uuid string) (*HumanReview, error) {
	var review HumanReview
	if err := db.Where("uuid = ?", uuid).First(&review).Error; err != nil {
		return nil, err
	}
	return &review, nil
}

// GetSecondPassByUUID returns a second-pass analysis by UUID
func GetSecondPassByUUID(db *gorm.DB, uuid string) (*SecondPassAnalysis, error) {
	var analysis SecondPassAnalysis
	if err := db.Where("uuid = ?", uuid).First(&analysis).Error; err != nil {
		return nil, err
	}
	return &analysis, nil
}

// GetReportByIncidentID returns the report for an incident, if any
func GetReportByIncidentID(db *gorm.DB, incidentID uint) (*RCAReport, error) {
	var report RCAReport
	if err := db.Where("incident_id = ?", incidentID).First(&report).Error; err != nil {
		return nil, err
	}
	return &report, nil
}
