package database

import (
	"database/sql"
	_ "embed"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

//go:embed schema.sql
var schemaSQL string

// DB wraps the SQLite database
type DB struct {
	*sql.DB
}

// Calculation is one saved calculation. Monetary amounts are stored at the
// frequency that was requested, alongside the annualized income they were
// derived from.
type Calculation struct {
	ID              int64     `json:"id"`
	Province        string    `json:"province"`
	AnnualIncome    float64   `json:"annualIncome"`
	Frequency       string    `json:"frequency"`
	FederalTax      float64   `json:"federalTax"`
	ProvincialTax   float64   `json:"provincialTax"`
	CPPContribution float64   `json:"cppContribution"`
	EIContribution  float64   `json:"eiContribution"`
	NetIncome       float64   `json:"netIncome"`
	CreatedAt       time.Time `json:"createdAt"`
}

// Open opens or creates the database
func Open(dbPath string) (*DB, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Enable foreign keys
	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	// Initialize schema
	if _, err := db.Exec(schemaSQL); err != nil {
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}

	return &DB{db}, nil
}

// SaveCalculation inserts a calculation record and fills in its ID and
// creation time
func (db *DB) SaveCalculation(c *Calculation) error {
	now := time.Now()
	result, err := db.Exec(`
		INSERT INTO calculations (province, annual_income, frequency,
			federal_tax, provincial_tax, cpp_contribution, ei_contribution,
			net_income, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, c.Province, c.AnnualIncome, c.Frequency,
		c.FederalTax, c.ProvincialTax, c.CPPContribution, c.EIContribution,
		c.NetIncome, now)
	if err != nil {
		return fmt.Errorf("failed to save calculation: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return err
	}
	c.ID = id
	c.CreatedAt = now
	return nil
}

// GetRecentCalculations returns the most recent calculations, newest first
func (db *DB) GetRecentCalculations(limit int) ([]Calculation, error) {
	rows, err := db.Query(`
		SELECT id, province, annual_income, frequency,
		       federal_tax, provincial_tax, cpp_contribution, ei_contribution,
		       net_income, created_at
		FROM calculations
		ORDER BY created_at DESC, id DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var history []Calculation
	for rows.Next() {
		var c Calculation
		err := rows.Scan(&c.ID, &c.Province, &c.AnnualIncome, &c.Frequency,
			&c.FederalTax, &c.ProvincialTax, &c.CPPContribution, &c.EIContribution,
			&c.NetIncome, &c.CreatedAt)
		if err != nil {
			return nil, err
		}
		history = append(history, c)
	}
	return history, rows.Err()
}
