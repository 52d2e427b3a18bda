package notify

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/elys-network/clmm-monitor/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingSender struct {
	name   string
	err    error
	titles []string
	bodies []string
}

func (r *recordingSender) Send(_ context.Context, title, message string) error {
	r.titles = append(r.titles, title)
	r.bodies = append(r.bodies, message)
	return r.err
}

func (r *recordingSender) Name() string { return r.name }

func TestDispatcherFansOutAndJoinsErrors(t *testing.T) {
	ok := &recordingSender{name: "ok"}
	broken := &recordingSender{name: "broken", err: errors.New("boom")}
	d := NewDispatcher(broken, ok)

	err := d.SendError(context.Background(), errors.New("fetch failed"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "broken: boom")

	require.Len(t, ok.titles, 1)
	assert.Equal(t, "❌ Monitor Error", ok.titles[0])
	assert.Contains(t, ok.bodies[0], "fetch failed")
}

func TestDispatcherWithoutSenders(t *testing.T) {
	d := NewDispatcher()
	assert.False(t, d.Enabled())
	assert.NoError(t, d.SendStartup(context.Background(), "wallet", 5*time.Minute, false))
	assert.Error(t, d.SendTest(context.Background()))
}

func TestStartupMessage(t *testing.T) {
	title, body := StartupMessage("9WzDXwBbmkg8ZTbNMqUxvQRAyrZzDsGYdLVL9zYtAWWM", 90*time.Second, true)
	assert.Equal(t, "🤖 CLMM Monitor Started", title)
	assert.Contains(t, body, "every 1.5 minutes")
	assert.Contains(t, body, "`9WzDXwBbmkg8ZTbNMqUx...`")
	assert.Contains(t, body, "auto-rebalance enabled")
}

func TestCheckSummaryMessage(t *testing.T) {
	summary := types.CycleSummary{
		StartedAt:           time.Date(2024, 3, 1, 14, 5, 0, 0, time.UTC),
		TotalPositions:      2,
		OutOfRange:          1,
		TotalValueUSD:       2950,
		TotalPendingFeesUSD: 18.25,
		CompoundEligible:    true,
	}

	title, body := CheckSummaryMessage(summary)
	assert.Equal(t, "⚠️ Position Check - Mar 1, 02:05 PM", title)
	assert.Contains(t, body, "• Total Positions: 2")
	assert.Contains(t, body, "• In Range: 1")
	assert.Contains(t, body, "• Out of Range: 1")
	assert.Contains(t, body, "• Total Value: $2950.00")
	assert.Contains(t, body, "• Pending Fees: $18.25")
	assert.Contains(t, body, "compound threshold")
}

func TestRebalanceAlertMessage(t *testing.T) {
	position := types.PositionSnapshot{
		PoolName:       "SOL/USDC",
		CurrentPrice:   120,
		PriceMin:       95,
		PriceMax:       105,
		TotalValueUSD:  2000,
		PendingFeesUSD: 20,
	}
	decision := types.RebalanceDecision{
		ShouldRebalance:  true,
		Reason:           "Position out of range by 15.00%, rebalancing recommended",
		NewPriceMin:      108,
		NewPriceMax:      132,
		EstimatedGasCost: 0.003,
	}

	title, body := RebalanceAlertMessage(position, decision)
	assert.Equal(t, "🔄 Rebalance RECOMMENDED", title)
	assert.Contains(t, body, "• Current: $120.0000")
	assert.Contains(t, body, "• Range: $95.0000 - $105.0000")
	assert.Contains(t, body, "✅ *Decision: Position out of range by 15.00%, rebalancing recommended*")
	assert.Contains(t, body, "• Min: $108.0000")
	assert.Contains(t, body, "• Est. Gas: $0.0030")
	assert.Contains(t, body, "Action Required!")

	decision.ShouldRebalance = false
	decision.Reason = "Position value ($50.00) below minimum ($100.00)"
	title, body = RebalanceAlertMessage(position, decision)
	assert.Equal(t, "⏸️ Rebalance NOT RECOMMENDED", title)
	assert.NotContains(t, body, "Action Required!")
}

func TestTelegramSender(t *testing.T) {
	var got telegramRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/botTOKEN/sendMessage", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_, _ = w.Write([]byte(`{"ok":true}`))
	}))
	defer server.Close()

	sender := NewTelegramSender("TOKEN", "42")
	sender.apiBase = server.URL

	require.NoError(t, sender.Send(context.Background(), "Title", "Body"))
	assert.Equal(t, "42", got.ChatID)
	assert.Equal(t, "*Title*\n\nBody", got.Text)
	assert.Equal(t, "Markdown", got.ParseMode)
}

func TestTelegramSenderAPIError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"ok":false,"description":"Bad Request: chat not found"}`))
	}))
	defer server.Close()

	sender := NewTelegramSender("TOKEN", "42")
	sender.apiBase = server.URL

	err := sender.Send(context.Background(), "Title", "Body")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "chat not found")
}

func TestDiscordSender(t *testing.T) {
	var got map[string]string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusNoContent)
	}))
	defer server.Close()

	require.NoError(t, NewDiscordSender(server.URL).Send(context.Background(), "Title", "Body"))
	assert.Equal(t, "**Title**\nBody", got["content"])

	failing := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer failing.Close()
	assert.Error(t, NewDiscordSender(failing.URL).Send(context.Background(), "Title", "Body"))
}
