// ABOUTME: Pipeline deal database operations
// ABOUTME: Handles deal CRUD, pipeline aggregates, and atomic source-owned reconciliation
package db

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/opspulse/opspulse/models"
)

func CreateDeal(db *sql.DB, deal *models.PipelineDeal) error {
	if deal.ID == uuid.Nil {
		deal.ID = uuid.New()
	}
	now := time.Now()
	deal.CreatedAt = now
	deal.UpdatedAt = now

	if deal.Currency == "" {
		deal.Currency = "USD"
	}
	if deal.Stage == "" {
		deal.Stage = models.StageLead
	}

	products, err := marshalProducts(deal.CrossSellProducts)
	if err != nil {
		return err
	}

	_, err = db.Exec(`
		INSERT INTO pipeline_deals (id, company_name, contact_name, stage, value, currency, owner, source, notes, cross_sell_products, expected_close, external_id, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, deal.ID.String(), deal.CompanyName, deal.ContactName, deal.Stage, deal.Value, deal.Currency, deal.Owner, deal.Source, deal.Notes, products, deal.ExpectedClose, deal.ExternalID, deal.CreatedAt, deal.UpdatedAt)

	return err
}

func FindDeals(db *sql.DB, source, stage string, limit int) ([]models.PipelineDeal, error) {
	if limit <= 0 {
		limit = 100
	}

	rows, err := db.Query(`
		SELECT id, company_name, contact_name, stage, value, currency, owner, source, notes, cross_sell_products, expected_close, external_id, created_at, updated_at
		FROM pipeline_deals
		WHERE (? = '' OR source = ?) AND (? = '' OR stage = ?)
		ORDER BY updated_at DESC
		LIMIT ?
	`, source, source, stage, stage, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var deals []models.PipelineDeal
	for rows.Next() {
		deal, err := scanDeal(rows)
		if err != nil {
			return nil, err
		}
		deals = append(deals, *deal)
	}

	return deals, rows.Err()
}

// ReplaceSourceDeals wipes every deal owned by the given source and
// inserts the fresh set in a single transaction. Deals from any other
// source are untouched, and a failure anywhere leaves the previous set
// intact.
func ReplaceSourceDeals(db *sql.DB, source string, deals []models.PipelineDeal) error {
	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`DELETE FROM pipeline_deals WHERE source = ?`, source); err != nil {
		return fmt.Errorf("failed to clear deals for source %s: %w", source, err)
	}

	now := time.Now()
	for i := range deals {
		deal := &deals[i]
		if deal.ID == uuid.Nil {
			deal.ID = uuid.New()
		}
		deal.Source = source
		deal.CreatedAt = now
		deal.UpdatedAt = now
		if deal.Currency == "" {
			deal.Currency = "USD"
		}
		if deal.Stage == "" {
			deal.Stage = models.StageLead
		}

		products, err := marshalProducts(deal.CrossSellProducts)
		if err != nil {
			return err
		}

		_, err = tx.Exec(`
			INSERT INTO pipeline_deals (id, company_name, contact_name, stage, value, currency, owner, source, notes, cross_sell_products, expected_close, external_id, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		`, deal.ID.String(), deal.CompanyName, deal.ContactName, deal.Stage, deal.Value, deal.Currency, deal.Owner, deal.Source, deal.Notes, products, deal.ExpectedClose, deal.ExternalID, deal.CreatedAt, deal.UpdatedAt)
		if err != nil {
			return fmt.Errorf("failed to insert deal %s: %w", deal.CompanyName, err)
		}
	}

	return tx.Commit()
}

// DealAggregates holds the pipeline aggregates used for KPI derivation.
type DealAggregates struct {
	ActiveCount int
	ActiveValue int64 // in cents
}

func AggregateDeals(db *sql.DB) (*DealAggregates, error) {
	agg := &DealAggregates{}
	err := db.QueryRow(`
		SELECT COUNT(*), COALESCE(SUM(value), 0)
		FROM pipeline_deals
		WHERE stage NOT IN ('closed_won', 'closed_lost')
	`).Scan(&agg.ActiveCount, &agg.ActiveValue)
	if err != nil {
		return nil, err
	}
	return agg, nil
}

func scanDeal(rows *sql.Rows) (*models.PipelineDeal, error) {
	var d models.PipelineDeal
	var contactName, owner, notes, products, externalID sql.NullString
	var expectedClose sql.NullTime

	if err := rows.Scan(&d.ID, &d.CompanyName, &contactName, &d.Stage, &d.Value, &d.Currency, &owner, &d.Source, &notes, &products, &expectedClose, &externalID, &d.CreatedAt, &d.UpdatedAt); err != nil {
		return nil, err
	}

	d.ContactName = contactName.String
	d.Owner = owner.String
	d.Notes = notes.String
	d.ExternalID = externalID.String
	if expectedClose.Valid {
		d.ExpectedClose = &expectedClose.Time
	}
	if products.Valid && products.String != "" {
		if err := json.Unmarshal([]byte(products.String), &d.CrossSellProducts); err != nil {
			return nil, fmt.Errorf("failed to decode cross-sell products: %w", err)
		}
	}

	return &d, nil
}

func marshalProducts(products []string) (string, error) {
	if len(products) == 0 {
		return "", nil
	}
	data, err := json.Marshal(products)
	if err != nil {
		return "", fmt.Errorf("failed to encode cross-sell products: %w", err)
	}
	return string(data), nil
}
