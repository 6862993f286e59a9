package pricing

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/stockroom-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/stockroom-backend/pkg/errors"
)

func requireInvalidTierData(t *testing.T, err error) {
	t.Helper()
	require.Error(t, err)
	assert.Equal(t, pkgerrors.CodeValidation, pkgerrors.As(err).Code())
	assert.Equal(t, pkgerrors.ReasonInvalidTierData, pkgerrors.ReasonOf(err))
}

func TestValidateBreaks(t *testing.T) {
	valid := func() []models.PriceBreak { return eighthsBlueprint().PriceBreaks }
	require.NoError(t, ValidateBreaks(valid()))

	cases := map[string]func([]models.PriceBreak) []models.PriceBreak{
		"empty list":        func([]models.PriceBreak) []models.PriceBreak { return nil },
		"empty break id":    func(b []models.PriceBreak) []models.PriceBreak { b[0].BreakID = ""; return b },
		"padded break id":   func(b []models.PriceBreak) []models.PriceBreak { b[0].BreakID = " eighth"; return b },
		"duplicate id":      func(b []models.PriceBreak) []models.PriceBreak { b[1].BreakID = "eighth"; return b },
		"zero quantity":     func(b []models.PriceBreak) []models.PriceBreak { b[0].Quantity = decimal.Zero; return b },
		"negative quantity": func(b []models.PriceBreak) []models.PriceBreak { b[0].Quantity = dec("-1"); return b },
		"missing label":     func(b []models.PriceBreak) []models.PriceBreak { b[0].Label = "  "; return b },
		"negative default":  func(b []models.PriceBreak) []models.PriceBreak { b[0].DefaultPrice = decPtr("-0.01"); return b },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			requireInvalidTierData(t, ValidateBreaks(mutate(valid())))
		})
	}
}

func TestValidateVendorValues(t *testing.T) {
	bp := eighthsBlueprint()

	require.NoError(t, ValidateVendorValues(bp, map[string]models.VendorPriceValue{
		"eighth": {Enabled: true, Price: decPtr("35")},
		"half":   {Enabled: false},
	}))
	requireInvalidTierData(t, ValidateVendorValues(bp, map[string]models.VendorPriceValue{
		"ounce": {Enabled: true, Price: decPtr("200")},
	}))
	requireInvalidTierData(t, ValidateVendorValues(bp, map[string]models.VendorPriceValue{
		"eighth": {Enabled: true},
	}))
	requireInvalidTierData(t, ValidateVendorValues(bp, map[string]models.VendorPriceValue{
		"eighth": {Enabled: true, Price: decPtr("-1")},
	}))
}

func TestValidateOverrides(t *testing.T) {
	bp := eighthsBlueprint()

	require.NoError(t, ValidateOverrides(bp, nil))
	require.NoError(t, ValidateOverrides(bp, map[string]decimal.Decimal{"half": dec("100")}))
	requireInvalidTierData(t, ValidateOverrides(bp, map[string]decimal.Decimal{"ounce": dec("1")}))
	requireInvalidTierData(t, ValidateOverrides(bp, map[string]decimal.Decimal{"eighth": dec("-5")}))
}
