package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/rshade/ghgfocus/internal/ghg"
	"github.com/rshade/ghgfocus/internal/greenops"
)

// RenderInventorySummary renders the terminal summary printed by
// "inventory show": scope totals, populated Scope 3 categories, the
// year-over-year comparison when present and data quality figures.
func RenderInventorySummary(inv *ghg.AggregatedInventory) string {
	if inv == nil {
		return lipgloss.NewStyle().Foreground(ColorMuted).Italic(true).Render("No inventory")
	}

	sections := []string{
		RenderInventoryHeader(inv.Organization, inv.Period),
		renderScopeTotals(inv),
		renderCategories(inv),
	}
	if inv.YearOverYear != nil {
		sections = append(sections, renderYearOverYear(inv.YearOverYear))
	}
	sections = append(sections, renderQuality(inv))
	return lipgloss.JoinVertical(lipgloss.Left, sections...)
}

// RenderInventoryHeader renders the bordered title with organization and period.
func RenderInventoryHeader(org ghg.OrganizationInfo, period ghg.Period) string {
	titleStyle := lipgloss.NewStyle().
		Bold(true).
		Foreground(ColorHeader).
		Border(lipgloss.NormalBorder()).
		BorderForeground(ColorBorder).
		Padding(0, 1)

	name := org.Name
	if name == "" {
		name = "Unnamed organization"
	}
	labelStyle := lipgloss.NewStyle().Foreground(ColorLabel)
	valueStyle := lipgloss.NewStyle().Foreground(ColorValue).Bold(true)

	var sb strings.Builder
	sb.WriteString(titleStyle.Render("GHG Inventory: " + name))
	sb.WriteString("\n")
	sb.WriteString(labelStyle.Render("Period: "))
	sb.WriteString(valueStyle.Render(period.String()))
	sb.WriteString("\n")
	return sb.String()
}

func renderScopeTotals(inv *ghg.AggregatedInventory) string {
	var sb strings.Builder
	sb.WriteString(sectionHeader("Emissions by scope"))

	totals := inv.Totals()
	rows := []struct {
		label string
		value string
	}{
		{"Scope 1", greenops.FormatTonnes(totals.Scope1)},
		{"Scope 2 (location-based)", greenops.FormatTonnes(totals.Scope2Location)},
		{"Scope 2 (market-based)", greenops.FormatTonnes(totals.Scope2Market)},
		{"Scope 2 reported (" + scope2MethodLabel(inv.Scope2Method) + ")", greenops.FormatTonnes(totals.Scope2Preferred)},
		{"Scope 3", greenops.FormatTonnes(totals.Scope3)},
	}
	for _, row := range rows {
		sb.WriteString(valueRow(row.label, row.value, false))
	}
	sb.WriteString(separator())
	sb.WriteString(valueRow("Total", greenops.FormatTonnes(totals.Total), true))
	return sb.String()
}

func renderCategories(inv *ghg.AggregatedInventory) string {
	var sb strings.Builder
	sb.WriteString(sectionHeader(fmt.Sprintf("Scope 3 categories (%d of %d with data)",
		inv.CategoriesWithData(), ghg.Scope3CategoryCount)))

	nameStyle := lipgloss.NewStyle().Foreground(ColorLabel).Width(categoryWidth)
	valueStyle := lipgloss.NewStyle().Foreground(ColorValue).Width(valueWidth).Align(lipgloss.Right)

	populated := 0
	for _, ct := range inv.Scope3ByCategory {
		if !ct.HasData() {
			continue
		}
		populated++
		name := fmt.Sprintf("%2d. %s", ct.Category.Number(), ct.Category.Name())
		sb.WriteString(nameStyle.Render(name))
		sb.WriteString(valueStyle.Render(greenops.FormatTonnes(ct.Total)))
		sb.WriteString("\n")
	}
	if populated == 0 {
		muted := lipgloss.NewStyle().Foreground(ColorMuted).Italic(true)
		sb.WriteString(muted.Render("No Scope 3 activity recorded"))
		sb.WriteString("\n")
	}
	return sb.String()
}

func renderYearOverYear(yoy *ghg.YearOverYear) string {
	var sb strings.Builder
	sb.WriteString(sectionHeader("Change against " + yoy.PreviousPeriod.String()))
	sb.WriteString(changeRow("Scope 1", yoy.Scope1Change))
	sb.WriteString(changeRow("Scope 2", yoy.Scope2Change))
	sb.WriteString(changeRow("Scope 3", yoy.Scope3Change))
	sb.WriteString(separator())
	sb.WriteString(changeRow("Total", yoy.TotalChange))
	return sb.String()
}

func renderQuality(inv *ghg.AggregatedInventory) string {
	var sb strings.Builder
	sb.WriteString(sectionHeader("Data quality"))
	sb.WriteString(valueRow("Records", greenops.FormatNumber(int64(inv.RecordCount)), false))
	sb.WriteString(valueRow("Quality score", fmt.Sprintf("%.2f", inv.DataQualityScore), false))
	sb.WriteString(valueRow("Scope 3 completeness", fmt.Sprintf("%.1f%%", inv.Completeness*100), false))
	if inv.PendingCount > 0 {
		warn := lipgloss.NewStyle().Foreground(ColorWarning)
		sb.WriteString(warn.Render(fmt.Sprintf("%s %d records await an emission factor and are not counted",
			IconPending, inv.PendingCount)))
		sb.WriteString("\n")
	}
	return sb.String()
}

// RenderChange renders a percent change with a direction arrow. Rising
// emissions use the warning color and falling emissions the OK color.
func RenderChange(c ghg.PercentChange) string {
	if c.Undefined {
		return lipgloss.NewStyle().Foreground(ColorMuted).Italic(true).Render(c.String())
	}

	rounded := c.Value.Round(2)
	var icon string
	var color lipgloss.Color
	switch {
	case rounded.IsPositive():
		icon = IconArrowUp
		color = ColorWarning
	case rounded.IsNegative():
		icon = IconArrowDown
		color = ColorOK
	default:
		icon = IconArrowRight
		color = ColorMuted
	}
	return lipgloss.NewStyle().Foreground(color).Bold(true).Render(c.String() + " " + icon)
}

func changeRow(label string, c ghg.PercentChange) string {
	labelStyle := lipgloss.NewStyle().Foreground(ColorLabel).Width(labelWidth)
	return labelStyle.Render(label) + RenderChange(c) + "\n"
}

func valueRow(label, value string, bold bool) string {
	labelStyle := lipgloss.NewStyle().Foreground(ColorLabel).Width(labelWidth)
	valueStyle := lipgloss.NewStyle().Foreground(ColorValue).Width(valueWidth).Align(lipgloss.Right)
	if bold {
		labelStyle = labelStyle.Bold(true).Foreground(ColorHighlight)
		valueStyle = valueStyle.Bold(true).Foreground(ColorHighlight)
	}
	return labelStyle.Render(label) + valueStyle.Render(value) + "\n"
}

func sectionHeader(title string) string {
	headerStyle := lipgloss.NewStyle().Foreground(ColorHeader).Bold(true)
	return "\n" + headerStyle.Render(title) + "\n"
}

func separator() string {
	return lipgloss.NewStyle().Foreground(ColorMuted).Render(strings.Repeat("─", separatorLen)) + "\n"
}

func scope2MethodLabel(m ghg.CalculationMethod) string {
	if m == ghg.MethodMarketBased {
		return "market-based"
	}
	return "location-based"
}
