package mapping

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rshade/ghgfocus/internal/ghg"
)

func TestParseRules(t *testing.T) {
	doc := `
rules:
  - integration_id: sap-1
    source_field_type: gl_account
    source_field_value: "500100"
    target_scope: 1
    target_category: stationary_combustion
    unit_conversion:
      source_unit: gal
      default_unit: l
      conversion_factor: 3.78541
  - integration_id: sap-1
    source_field_type: vendor
    source_field_value: Green Power Co
    target_scope: 2
    target_category: purchased_electricity
    calculation_method: market_based
`
	rules, err := ParseRules(strings.NewReader(doc))
	require.NoError(t, err)
	require.Len(t, rules, 2)

	assert.Equal(t, ghg.Scope1, rules[0].TargetScope)
	require.NotNil(t, rules[0].UnitConversion)
	assert.True(t, decimal.RequireFromString("3.78541").Equal(rules[0].UnitConversion.Factor))
	assert.Equal(t, FieldVendor, rules[1].SourceFieldType)
	assert.Equal(t, ghg.MethodMarketBased, rules[1].CalculationMethod)
}

func TestParseRules_Empty(t *testing.T) {
	rules, err := ParseRules(strings.NewReader(""))
	require.NoError(t, err)
	assert.Empty(t, rules)
}

func TestParseRules_UnknownField(t *testing.T) {
	_, err := ParseRules(strings.NewReader("rules:\n  - integration: sap-1\n"))
	require.Error(t, err)
}

func TestLoadRulesFile(t *testing.T) {
	_, err := LoadRulesFile(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)

	path := filepath.Join(t.TempDir(), "rules.yaml")
	require.NoError(t, os.WriteFile(path, []byte("rules:\n  - integration_id: sap-1\n    source_field_type: cost_center\n    source_field_value: CC-10\n    target_scope: 3\n    target_category: business_travel\n"), 0o600))
	rules, err := LoadRulesFile(path)
	require.NoError(t, err)
	require.Len(t, rules, 1)
	assert.Equal(t, FieldCostCenter, rules[0].SourceFieldType)
}
