// Package report renders portfolio and vault summaries as PDF documents.
package report

import (
	"bytes"
	"fmt"
	"time"

	"github.com/go-pdf/fpdf"

	"github.com/autodefi-ai/autodefi/internal/agent"
	"github.com/autodefi-ai/autodefi/internal/store"
)

const (
	fontFamily = "Helvetica"
	lineHeight = 6.0
)

func newDoc(title string) *fpdf.Fpdf {
	pdf := fpdf.New("P", "mm", "A4", "")
	pdf.SetTitle(title, false)
	pdf.AddPage()

	pdf.SetFont(fontFamily, "B", 18)
	pdf.Cell(0, 10, title)
	pdf.Ln(12)

	pdf.SetFont(fontFamily, "", 9)
	pdf.SetTextColor(120, 120, 120)
	pdf.Cell(0, 5, "Generated "+time.Now().UTC().Format("2006-01-02 15:04 UTC")+" by AutoDeFi.AI")
	pdf.SetTextColor(0, 0, 0)
	pdf.Ln(10)
	return pdf
}

func sectionHeader(pdf *fpdf.Fpdf, text string) {
	pdf.SetFont(fontFamily, "B", 12)
	pdf.Cell(0, 8, text)
	pdf.Ln(9)
	pdf.SetFont(fontFamily, "", 10)
}

func render(pdf *fpdf.Fpdf) ([]byte, error) {
	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("render pdf: %w", err)
	}
	return buf.Bytes(), nil
}

// Portfolio renders an audit report for one analysis run.
func Portfolio(a *agent.Analysis) ([]byte, error) {
	pdf := newDoc("Portfolio Audit Report")

	sectionHeader(pdf, "Overview")
	pdf.Cell(0, lineHeight, "Wallet: "+a.Wallet)
	pdf.Ln(lineHeight)
	pdf.Cell(0, lineHeight, fmt.Sprintf("Total value: $%.2f", a.PortfolioValue))
	pdf.Ln(lineHeight)
	pdf.Cell(0, lineHeight, fmt.Sprintf("Weighted APY: %.2f%% (market average %.2f%%)",
		a.Metrics.WeightedAPY, a.Metrics.MarketAvgAPY))
	pdf.Ln(10)

	sectionHeader(pdf, "Holdings")
	holdingsTable(pdf, a.Holdings)
	pdf.Ln(4)

	if rec := a.Recommendation; rec != nil {
		sectionHeader(pdf, "AI Recommendation")
		pdf.Cell(0, lineHeight, fmt.Sprintf("Action: %s (confidence %.0f%%)", rec.Action, rec.Confidence*100))
		pdf.Ln(lineHeight)
		pdf.Cell(0, lineHeight, fmt.Sprintf("Projected APY: %.2f%% -> %.2f%%", rec.APYBefore, rec.APYAfter))
		pdf.Ln(lineHeight)
		for _, d := range rec.Directions {
			pdf.Cell(0, lineHeight, "  - "+directionLine(d))
			pdf.Ln(lineHeight)
		}
		pdf.Ln(2)
		pdf.MultiCell(0, 5, rec.Explanation, "", "L", false)
	}

	return render(pdf)
}

func directionLine(d agent.Direction) string {
	switch d.Action {
	case "move":
		return fmt.Sprintf("Move %.1f%% from %s to %s", d.Percent, d.FromProtocol, d.ToProtocol)
	case "add":
		return fmt.Sprintf("Add %.1f%% to %s", d.Percent, d.ToProtocol)
	case "reduce":
		return fmt.Sprintf("Reduce %s by %.1f%%", d.FromProtocol, d.Percent)
	default:
		return fmt.Sprintf("%s %.1f%%", d.Action, d.Percent)
	}
}

func holdingsTable(pdf *fpdf.Fpdf, holdings []store.Holding) {
	if len(holdings) == 0 {
		pdf.Cell(0, lineHeight, "No holdings.")
		pdf.Ln(lineHeight)
		return
	}

	widths := []float64{45, 25, 30, 35, 25}
	headers := []string{"Protocol", "Token", "Amount", "Value (USD)", "APY"}

	pdf.SetFont(fontFamily, "B", 10)
	for i, h := range headers {
		pdf.CellFormat(widths[i], 7, h, "1", 0, "L", false, 0, "")
	}
	pdf.Ln(-1)

	pdf.SetFont(fontFamily, "", 10)
	for _, h := range holdings {
		pdf.CellFormat(widths[0], 7, h.ProtocolName, "1", 0, "L", false, 0, "")
		pdf.CellFormat(widths[1], 7, h.TokenSymbol, "1", 0, "L", false, 0, "")
		pdf.CellFormat(widths[2], 7, fmt.Sprintf("%.4f", h.Amount), "1", 0, "R", false, 0, "")
		pdf.CellFormat(widths[3], 7, fmt.Sprintf("$%.2f", h.ValueUSD), "1", 0, "R", false, 0, "")
		pdf.CellFormat(widths[4], 7, fmt.Sprintf("%.2f%%", h.APY), "1", 0, "R", false, 0, "")
		pdf.Ln(-1)
	}
}

// Vault renders a report for one vault and its recent activity.
func Vault(v *store.Vault, logs []store.VaultLog) ([]byte, error) {
	pdf := newDoc("Vault Report: " + v.Name)

	sectionHeader(pdf, "Profile")
	pdf.Cell(0, lineHeight, fmt.Sprintf("Risk level: %s", v.RiskLevel))
	pdf.Ln(lineHeight)
	pdf.Cell(0, lineHeight, fmt.Sprintf("Expected APY: %.2f%%", v.ExpectedAPY))
	pdf.Ln(lineHeight)
	if v.Description != "" {
		pdf.MultiCell(0, 5, v.Description, "", "L", false)
	}
	pdf.Ln(4)

	sectionHeader(pdf, "Allocations")
	for _, a := range v.Allocations {
		pdf.Cell(0, lineHeight, fmt.Sprintf("  - %s: %.1f%%", a.ProtocolName, a.Percent))
		pdf.Ln(lineHeight)
	}
	pdf.Ln(4)

	if v.AIDescription != "" {
		sectionHeader(pdf, "AI Reasoning")
		pdf.MultiCell(0, 5, v.AIDescription, "", "L", false)
		pdf.Ln(4)
	}

	if len(logs) > 0 {
		sectionHeader(pdf, "Recent Activity")
		for _, l := range logs {
			line := fmt.Sprintf("[%s] %s", l.EventType, l.Summary)
			if l.CreatedAt != "" {
				line = l.CreatedAt + " " + line
			}
			pdf.MultiCell(0, 5, line, "", "L", false)
		}
	}

	return render(pdf)
}

// Sample renders a tiny document used by the report health endpoint.
func Sample() ([]byte, error) {
	pdf := newDoc("AutoDeFi.AI Report Service")
	pdf.SetFont(fontFamily, "", 10)
	pdf.Cell(0, lineHeight, "PDF generation is working.")
	return render(pdf)
}
