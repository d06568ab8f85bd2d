// ABOUTME: CRM reconciliation into local pipeline deals
// ABOUTME: Replaces the external-crm-owned deal set atomically so the mirror matches remote state
package crm

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/opspulse/opspulse/db"
	"github.com/opspulse/opspulse/metrics"
	"github.com/opspulse/opspulse/models"
)

// Sync pulls the remote company set and reconciles it into local
// pipeline deals, returning the number of deals now mirrored. Auth
// failures, timeouts, and malformed responses abort the whole sync: the
// sync_state row for crm records the error and the previous deal set
// stays untouched.
func (c *Client) Sync(ctx context.Context) (int, error) {
	if !c.cfg.IsConfigured() {
		err := fmt.Errorf("crm is not configured")
		db.RecordSyncError(c.db, models.SourceNameCRM, err)
		return 0, err
	}

	log.Println("Syncing CRM pipeline...")

	companies, err := c.FetchCompanies(ctx)
	if err != nil {
		db.RecordSyncError(c.db, models.SourceNameCRM, err)
		return 0, fmt.Errorf("crm sync failed: %w", err)
	}

	deals := BuildDeals(companies)

	if err := db.ReplaceSourceDeals(c.db, models.SourceCRM, deals); err != nil {
		db.RecordSyncError(c.db, models.SourceNameCRM, err)
		return 0, fmt.Errorf("crm reconciliation failed: %w", err)
	}

	details := fmt.Sprintf("%d companies, %d deals", len(companies), len(deals))
	if err := db.RecordSyncOK(c.db, models.SourceNameCRM, details); err != nil {
		return len(deals), err
	}

	metrics.DealsReconciled.Set(float64(len(deals)))
	log.Printf("  ✓ Reconciled %d deals from %d companies", len(deals), len(companies))
	return len(deals), nil
}

// BuildDeals converts remote companies to the local deal set: one deal
// per opportunity, or one placeholder lead per company with none. Pure,
// so reconciliation shape is testable without a server.
func BuildDeals(companies []RemoteCompany) []models.PipelineDeal {
	var deals []models.PipelineDeal

	for _, company := range companies {
		contactName := ""
		if len(company.Contacts) > 0 {
			contactName = company.Contacts[0].Name
		}

		if len(company.Opportunities) == 0 {
			deals = append(deals, models.PipelineDeal{
				CompanyName: company.Name,
				ContactName: contactName,
				Stage:       models.StageLead,
				Currency:    "USD",
				Source:      models.SourceCRM,
				ExternalID:  company.ID,
			})
			continue
		}

		for _, opp := range company.Opportunities {
			deal := models.PipelineDeal{
				CompanyName:       company.Name,
				ContactName:       contactName,
				Stage:             MapStage(opp.Stage),
				Value:             opp.Amount,
				Currency:          opp.Currency,
				Owner:             opp.Owner,
				Source:            models.SourceCRM,
				Notes:             opp.Name,
				CrossSellProducts: opp.Products,
				ExternalID:        opp.ID,
			}
			if deal.Currency == "" {
				deal.Currency = "USD"
			}
			if close := parseCloseDate(opp.CloseDate); close != nil {
				deal.ExpectedClose = close
			}
			deals = append(deals, deal)
		}
	}

	return deals
}

func parseCloseDate(s string) *time.Time {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		return nil
	}
	return &t
}
