package journal

import (
	"fmt"
	"strings"
	"time"
)

// FormatTradeOrg renders a TradeRecord as an Org-mode block suitable for pasting into a journal.
// Structured facts go in the PROPERTIES drawer; the narrative headings are left for the trader.
func FormatTradeOrg(t TradeRecord) string {
	heading := fmt.Sprintf("** Trade: %s %s (%s)", t.Ticker, t.Direction, shortID(t.TradeID))
	open := t.OpenTime.UTC().Format(time.RFC3339)
	close := t.CloseTime.UTC().Format(time.RFC3339)

	var b strings.Builder
	b.WriteString(heading)
	b.WriteString("\n")
	b.WriteString(":PROPERTIES:\n")
	b.WriteString(fmt.Sprintf(":TRADE_ID: %s\n", t.TradeID))
	b.WriteString(fmt.Sprintf(":ID: %s\n", t.TradeID))
	b.WriteString(fmt.Sprintf(":TICKER: %s\n", t.Ticker))
	b.WriteString(fmt.Sprintf(":DIRECTION: %s\n", t.Direction))
	b.WriteString(fmt.Sprintf(":QUANTITY: %g\n", t.Quantity))
	b.WriteString(fmt.Sprintf(":ENTRY_PRICE: %.4f\n", t.EntryPrice))
	b.WriteString(fmt.Sprintf(":EXIT_PRICE: %.4f\n", t.ExitPrice))
	b.WriteString(fmt.Sprintf(":OPEN_TIME: %s\n", open))
	b.WriteString(fmt.Sprintf(":CLOSE_TIME: %s\n", close))
	b.WriteString(fmt.Sprintf(":DAYS_HELD: %d\n", t.DurationDays))
	b.WriteString(fmt.Sprintf(":REALIZED_PL: %.2f\n", t.RealizedPL))
	b.WriteString(fmt.Sprintf(":PNL_PERCENT: %.2f\n", t.PnLPercent))
	b.WriteString(fmt.Sprintf(":R_MULTIPLE: %.2f\n", t.RMultiple))
	if t.Reason != "" {
		b.WriteString(fmt.Sprintf(":REASON: %s\n", t.Reason))
	}
	b.WriteString(":END:\n")
	b.WriteString("\n")
	b.WriteString("*** Thesis\n- \n\n")
	b.WriteString("*** Execution\n- \n\n")
	b.WriteString("*** Review\n- \n")

	return b.String()
}

// FormatTradesOrg renders multiple trades separated by blank lines.
func FormatTradesOrg(trades []TradeRecord) string {
	var b strings.Builder
	for i, t := range trades {
		if i > 0 {
			b.WriteString("\n\n")
		}
		b.WriteString(FormatTradeOrg(t))
	}
	return b.String()
}

// FormatDayOrg renders a day heading with its equity line and trades.
func FormatDayOrg(day time.Time, eq *EquitySnapshot, trades []TradeRecord) string {
	var b strings.Builder
	b.WriteString(fmt.Sprintf("* %s\n", day.Format("2006-01-02 Mon")))
	if eq != nil {
		b.WriteString(fmt.Sprintf("Equity %.2f, cash %.2f, %d open positions\n", eq.Equity, eq.Cash, eq.Positions))
	}
	var pl float64
	for _, t := range trades {
		pl += t.RealizedPL
	}
	b.WriteString(fmt.Sprintf("Closed %d trades, realized %.2f\n", len(trades), pl))
	if len(trades) > 0 {
		b.WriteString("\n")
		b.WriteString(FormatTradesOrg(trades))
	}
	return b.String()
}

func shortID(full string) string {
	if len(full) <= 8 {
		return full
	}
	return full[:8]
}
