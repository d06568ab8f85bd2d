// ABOUTME: Tests for remote stage mapping
// ABOUTME: Verifies the mapping is total with a lead fallback
package crm

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/opspulse/opspulse/models"
)

func TestMapStage(t *testing.T) {
	tests := []struct {
		remote string
		want   string
	}{
		{"Prospecting", models.StageLead},
		{"discovery", models.StageLead},
		{"Qualification", models.StageQualified},
		{"qualified", models.StageQualified},
		{"Needs Analysis", models.StageOpportunity},
		{"Value Proposition", models.StageOpportunity},
		{"Proposal/Price Quote", models.StageProposal},
		{"Negotiation", models.StageProposal},
		{"Closed Won", models.StageClosedWon},
		{"won", models.StageClosedWon},
		{"Closed Lost", models.StageClosedLost},
		{"  closed won  ", models.StageClosedWon},

		// Anything unknown lands in lead instead of failing the sync
		{"Blue Sky Phase", models.StageLead},
		{"", models.StageLead},
	}

	for _, tt := range tests {
		t.Run(tt.remote, func(t *testing.T) {
			assert.Equal(t, tt.want, MapStage(tt.remote))
		})
	}
}

func TestBuildDeals(t *testing.T) {
	companies := []RemoteCompany{
		{
			ID:   "co-1",
			Name: "Acme",
			Contacts: []RemoteContact{
				{Name: "Jordan Reyes", Email: "jordan@acme.test"},
				{Name: "Second Contact"},
			},
			Opportunities: []RemoteOpportunity{
				{
					ID: "opp-1", Name: "Expansion", Stage: "Negotiation",
					Amount: 50000_00, Currency: "EUR", Owner: "pat",
					CloseDate: "2026-10-15", Products: []string{"support"},
				},
				{ID: "opp-2", Name: "Renewal", Stage: "Closed Won", Amount: 20000_00},
			},
		},
		{ID: "co-2", Name: "Globex"},
	}

	deals := BuildDeals(companies)
	assert.Len(t, deals, 3)

	first := deals[0]
	assert.Equal(t, "Acme", first.CompanyName)
	assert.Equal(t, "Jordan Reyes", first.ContactName, "first contact becomes the deal contact")
	assert.Equal(t, models.StageProposal, first.Stage)
	assert.Equal(t, int64(50000_00), first.Value)
	assert.Equal(t, "EUR", first.Currency)
	assert.Equal(t, "pat", first.Owner)
	assert.Equal(t, models.SourceCRM, first.Source)
	assert.Equal(t, "Expansion", first.Notes)
	assert.Equal(t, "opp-1", first.ExternalID)
	assert.Equal(t, []string{"support"}, first.CrossSellProducts)
	if assert.NotNil(t, first.ExpectedClose) {
		assert.Equal(t, "2026-10-15", first.ExpectedClose.Format("2006-01-02"))
	}

	second := deals[1]
	assert.Equal(t, models.StageClosedWon, second.Stage)
	assert.Equal(t, "USD", second.Currency, "missing currency defaults to USD")
	assert.Nil(t, second.ExpectedClose)

	// A company with no opportunities still shows up once, as a lead
	placeholder := deals[2]
	assert.Equal(t, "Globex", placeholder.CompanyName)
	assert.Equal(t, models.StageLead, placeholder.Stage)
	assert.Equal(t, "co-2", placeholder.ExternalID)
	assert.Equal(t, int64(0), placeholder.Value)
}

func TestParseCloseDate(t *testing.T) {
	assert.Nil(t, parseCloseDate(""))
	assert.Nil(t, parseCloseDate("not a date"))
	if close := parseCloseDate("2026-12-01"); assert.NotNil(t, close) {
		assert.Equal(t, 2026, close.Year())
	}
}
