package notify

import (
	"fmt"
	"strings"
	"time"

	"github.com/elys-network/clmm-monitor/internal/types"
	"github.com/shopspring/decimal"
)

// usd renders a dollar amount with fixed decimals. decimal avoids float
// formatting artefacts such as "-0.00".
func usd(v float64, places int32) string {
	return "$" + decimal.NewFromFloat(v).StringFixed(places)
}

func shortWallet(wallet string) string {
	if len(wallet) <= 20 {
		return wallet
	}
	return wallet[:20] + "..."
}

func formatMinutes(d time.Duration) string {
	return decimal.NewFromFloat(d.Minutes()).String()
}

// StartupMessage announces that monitoring began.
func StartupMessage(wallet string, interval time.Duration, autoRebalance bool) (title, body string) {
	mode := "alerts only"
	if autoRebalance {
		mode = "auto-rebalance enabled"
	}
	body = fmt.Sprintf(
		"✅ Monitor is now running (%s)\n📊 Checking positions every %s minutes\n🔍 Wallet: `%s`\n\nI'll notify you when rebalancing is recommended!",
		mode, formatMinutes(interval), shortWallet(wallet))
	return "🤖 CLMM Monitor Started", body
}

// CheckSummaryMessage reports the aggregates of one cycle.
func CheckSummaryMessage(summary types.CycleSummary) (title, body string) {
	emoji := "✅"
	if summary.OutOfRange > 0 {
		emoji = "⚠️"
	}
	title = fmt.Sprintf("%s Position Check - %s", emoji, summary.StartedAt.Format("Jan 2, 03:04 PM"))

	var b strings.Builder
	b.WriteString("📊 *Summary*\n")
	fmt.Fprintf(&b, "• Total Positions: %d\n", summary.TotalPositions)
	fmt.Fprintf(&b, "• In Range: %d\n", summary.InRange())
	fmt.Fprintf(&b, "• Out of Range: %d\n", summary.OutOfRange)
	b.WriteString("\n💰 *Portfolio*\n")
	fmt.Fprintf(&b, "• Total Value: %s\n", usd(summary.TotalValueUSD, 2))
	fmt.Fprintf(&b, "• Pending Fees: %s", usd(summary.TotalPendingFeesUSD, 2))
	if summary.Executed > 0 || summary.Failed > 0 {
		fmt.Fprintf(&b, "\n\n🔄 Rebalanced: %d, Failed: %d", summary.Executed, summary.Failed)
	}
	if summary.CompoundEligible {
		b.WriteString("\n\n🌱 Pending fees are above the compound threshold")
	}
	return title, b.String()
}

// RebalanceAlertMessage describes the decision taken for one out-of-range position.
func RebalanceAlertMessage(position types.PositionSnapshot, decision types.RebalanceDecision) (title, body string) {
	emoji, action, mark := "⏸️", "NOT RECOMMENDED", "❌"
	if decision.ShouldRebalance {
		emoji, action, mark = "🔄", "RECOMMENDED", "✅"
	}
	title = fmt.Sprintf("%s Rebalance %s", emoji, action)

	var b strings.Builder
	fmt.Fprintf(&b, "📍 *Position: %s*\n", position.PoolName)
	b.WriteString("• Status: 🔴 Out of Range\n")
	fmt.Fprintf(&b, "• Value: %s\n\n", usd(position.TotalValueUSD, 2))
	b.WriteString("📊 *Price Info*\n")
	fmt.Fprintf(&b, "• Current: %s\n", usd(position.CurrentPrice, 4))
	fmt.Fprintf(&b, "• Range: %s - %s\n", usd(position.PriceMin, 4), usd(position.PriceMax, 4))
	fmt.Fprintf(&b, "• Pending Fees: %s\n\n", usd(position.PendingFeesUSD, 2))
	fmt.Fprintf(&b, "%s *Decision: %s*\n\n", mark, decision.Reason)
	b.WriteString("💡 *Proposed New Range*\n")
	fmt.Fprintf(&b, "• Min: %s\n", usd(decision.NewPriceMin, 4))
	fmt.Fprintf(&b, "• Max: %s\n", usd(decision.NewPriceMax, 4))
	fmt.Fprintf(&b, "• Est. Gas: %s", usd(decision.EstimatedGasCost, 4))
	if decision.ShouldRebalance {
		b.WriteString("\n\n⚡ *Action Required!*\nConsider rebalancing this position manually.")
	}
	return title, b.String()
}

// RebalanceExecutedMessage confirms an automatic rebalance.
func RebalanceExecutedMessage(position types.PositionSnapshot, result types.ExecutionResult) (title, body string) {
	mode := ""
	if result.Simulated {
		mode = " (simulated)"
	}
	body = fmt.Sprintf("📍 *Position: %s*\n• Closed: `%s`\n• Opened: `%s`\n• New Range: %s - %s",
		position.PoolName, result.PositionID, result.NewPositionID,
		usd(result.NewPriceMin, 4), usd(result.NewPriceMax, 4))
	return "✅ Rebalance Executed" + mode, body
}

// ErrorMessage reports a cycle-level failure.
func ErrorMessage(err error) (title, body string) {
	return "❌ Monitor Error", fmt.Sprintf("```\n%v\n```\n\nThe bot is still running but encountered an issue.", err)
}

// TestMessage verifies channel configuration.
func TestMessage() (title, body string) {
	return "🧪 Test Message", "Notifications are working correctly! ✅"
}
