package executor

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"reflextrader/internal/brokerage"
	"reflextrader/internal/logger"
	"reflextrader/internal/models"
	"reflextrader/internal/pkg/symbol"
)

// 中文说明：
// 执行闸门：对最终决策的订单做归一化、市场状态检查、卖空保护、
// 交互确认，最后提交。所有闸门条件都以 status 字段表达，不抛错。

// TradeExecutor validates, filters and submits the orders of a FinalDecision.
type TradeExecutor struct {
	Broker              brokerage.Client
	BrokerName          string
	Live                bool
	HasCredentials      bool
	RequireConfirmation bool

	// Confirm/Out default to stdin/stdout; injectable for tests.
	Confirm io.Reader
	Out     io.Writer
}

type normalizedOrder struct {
	Symbol      string
	Side        string
	Qty         decimal.Decimal
	Type        string
	TimeInForce string
}

type blockedOrder struct {
	Order  normalizedOrder
	Reason string
}

func (e *TradeExecutor) brokerName() string {
	if e.BrokerName != "" {
		return e.BrokerName
	}
	return "alpaca"
}

func (e *TradeExecutor) out() io.Writer {
	if e.Out != nil {
		return e.Out
	}
	return os.Stdout
}

// Execute runs the full guardrail sequence. It never returns an error: every
// outcome is an ExecutionReport with a defined status.
func (e *TradeExecutor) Execute(ctx context.Context, decision models.FinalDecision) models.ExecutionReport {
	broker := e.brokerName()
	orders := normalizeOrders(decision.Orders)

	if len(orders) == 0 {
		return models.ExecutionReport{
			Status:  models.ExecStatusSkipped,
			Broker:  broker,
			Details: []map[string]any{},
			Message: "No valid order to execute.",
		}
	}

	if !e.Live {
		return models.ExecutionReport{
			Status:  models.ExecStatusDryRun,
			Broker:  broker,
			Details: orderDetails(orders),
			Message: "Dry-run mode: orders simulated only.",
		}
	}

	if !e.HasCredentials || e.Broker == nil {
		return models.ExecutionReport{
			Status:  models.ExecStatusError,
			Broker:  broker,
			Details: []map[string]any{},
			Message: "Missing brokerage credentials for live execution.",
		}
	}

	if report, closed := e.checkMarketOpen(ctx, broker); closed {
		return report
	}

	hasSell := false
	for _, order := range orders {
		if order.Side == "sell" {
			hasSell = true
			break
		}
	}

	var account *brokerage.Account
	var positions []brokerage.Position
	snapshotAvailable := false
	if e.RequireConfirmation || hasSell {
		acct, accErr := e.Broker.GetAccount(ctx)
		pos, posErr := e.Broker.GetAllPositions(ctx)
		if accErr == nil && posErr == nil {
			account = &acct
			positions = pos
			snapshotAvailable = true
		} else {
			logger.Warnf("executor: portfolio snapshot unavailable (account=%v, positions=%v)", accErr, posErr)
		}
	}

	allowed, blocked := e.applyShortSaleProtection(orders, account, positions, snapshotAvailable)

	if len(allowed) == 0 {
		return models.ExecutionReport{
			Status:  models.ExecStatusSkipped,
			Broker:  broker,
			Details: blockedDetails(blocked),
			Message: fmt.Sprintf(
				"All orders blocked by short-sale protection (%d blocked: %s).",
				len(blocked), strings.Join(blockedSymbols(blocked), ", "),
			),
		}
	}

	if e.RequireConfirmation {
		if !e.confirmOrders(allowed, blocked, account, positions, snapshotAvailable) {
			return models.ExecutionReport{
				Status:  models.ExecStatusSkipped,
				Broker:  broker,
				Details: orderDetails(allowed),
				Message: "Orders not confirmed by operator.",
			}
		}
	}

	return e.submit(ctx, broker, allowed, blocked)
}

// normalizeOrders drops invalid side/symbol/qty and uppercases symbols.
func normalizeOrders(orders []models.Order) []normalizedOrder {
	var out []normalizedOrder
	for _, order := range orders {
		side := strings.ToLower(strings.TrimSpace(order.Side))
		if side != "buy" && side != "sell" {
			continue
		}
		sym := symbol.Normalize(order.Symbol)
		if sym == "" || order.Qty <= 0 {
			continue
		}
		orderType := strings.ToLower(strings.TrimSpace(order.Type))
		if orderType == "" {
			orderType = "market"
		}
		tif := strings.ToLower(strings.TrimSpace(order.TimeInForce))
		if tif == "" {
			tif = "day"
		}
		out = append(out, normalizedOrder{
			Symbol:      sym,
			Side:        side,
			Qty:         decimal.NewFromFloat(order.Qty),
			Type:        orderType,
			TimeInForce: tif,
		})
	}
	return out
}

// checkMarketOpen consults the venue clock. An unavailable clock is treated
// as open (fail-open, best effort).
func (e *TradeExecutor) checkMarketOpen(ctx context.Context, broker string) (models.ExecutionReport, bool) {
	clock, err := e.Broker.GetClock(ctx)
	if err != nil {
		logger.Warnf("executor: market clock unavailable, assuming open: %v", err)
		return models.ExecutionReport{}, false
	}
	if clock.IsOpen {
		return models.ExecutionReport{}, false
	}
	return models.ExecutionReport{
		Status:  models.ExecStatusSkipped,
		Broker:  broker,
		Details: []map[string]any{},
		Message: MarketClosedMessage(clock),
	}, true
}

// MarketClosedMessage builds the human-readable remaining-time message for a
// closed market clock. A clock without a next-open timestamp gets a plain
// closed message instead of a bogus countdown.
func MarketClosedMessage(clock brokerage.Clock) string {
	if clock.NextOpen.IsZero() {
		return "Market is closed, reopening time unavailable."
	}
	now := clock.Timestamp
	if now.IsZero() {
		now = time.Now().UTC()
	}
	remaining := clock.NextOpen.Sub(now)
	return fmt.Sprintf(
		"Market is closed, it reopens in %s (next open: %s).",
		FormatDuration(remaining),
		clock.NextOpen.UTC().Format("2006-01-02 15:04:05 MST"),
	)
}

// FormatDuration renders a duration as "Nd Nh Nm Ns"; every component is
// always present.
func FormatDuration(d time.Duration) string {
	seconds := int64(d.Seconds())
	if seconds < 0 {
		seconds = 0
	}
	days := seconds / 86400
	hours := (seconds % 86400) / 3600
	minutes := (seconds % 3600) / 60
	secs := seconds % 60
	return fmt.Sprintf("%dd %dh %dm %ds", days, hours, minutes, secs)
}

// applyShortSaleProtection filters sell orders against held long quantity.
// Asymmetry is deliberate: with portfolio data, a sell is split into an
// allowed closing portion and a blocked remainder; without portfolio data,
// every sell is blocked outright (fail-safe, not partial).
func (e *TradeExecutor) applyShortSaleProtection(orders []normalizedOrder, account *brokerage.Account, positions []brokerage.Position, snapshotAvailable bool) ([]normalizedOrder, []blockedOrder) {
	var allowed []normalizedOrder
	var blocked []blockedOrder

	heldLong := make(map[string]decimal.Decimal)
	for _, pos := range positions {
		if pos.Side != brokerage.PositionSideLong {
			continue
		}
		sym := strings.ToUpper(pos.Symbol)
		heldLong[sym] = heldLong[sym].Add(pos.Qty)
	}

	shortingAllowed := snapshotAvailable && account != nil && account.ShortingEnabled

	for _, order := range orders {
		if order.Side != "sell" || shortingAllowed {
			allowed = append(allowed, order)
			continue
		}

		if !snapshotAvailable {
			blocked = append(blocked, blockedOrder{
				Order:  order,
				Reason: "Short-sale protection: portfolio snapshot unavailable, all sell orders blocked.",
			})
			continue
		}

		held := heldLong[order.Symbol]
		switch {
		case held.GreaterThanOrEqual(order.Qty):
			allowed = append(allowed, order)
		case held.IsPositive():
			closing := order
			closing.Qty = held
			allowed = append(allowed, closing)
			remainder := order
			remainder.Qty = order.Qty.Sub(held)
			blocked = append(blocked, blockedOrder{
				Order: remainder,
				Reason: fmt.Sprintf(
					"Short-sale protection: only %s held long, remainder %s blocked.",
					held.String(), remainder.Qty.String(),
				),
			})
			// 保留的部分之后不再计入持仓（同 symbol 的后续卖单不能重复用）
			heldLong[order.Symbol] = decimal.Zero
		default:
			blocked = append(blocked, blockedOrder{
				Order:  order,
				Reason: fmt.Sprintf("Short-sale protection: no long position held for %s, order blocked.", order.Symbol),
			})
		}
	}
	return allowed, blocked
}

// confirmOrders prints orders plus portfolio context and requires a literal
// "yes". EOF or anything else declines.
func (e *TradeExecutor) confirmOrders(allowed []normalizedOrder, blocked []blockedOrder, account *brokerage.Account, positions []brokerage.Position, snapshotAvailable bool) bool {
	w := e.out()
	fmt.Fprintln(w, "Orders ready for submission:")
	for _, order := range allowed {
		fmt.Fprintf(w, "  - %s %s qty=%s (%s/%s)\n", strings.ToUpper(order.Side), order.Symbol, order.Qty.String(), order.Type, order.TimeInForce)
	}
	for _, b := range blocked {
		fmt.Fprintf(w, "  x %s %s qty=%s BLOCKED: %s\n", strings.ToUpper(b.Order.Side), b.Order.Symbol, b.Order.Qty.String(), b.Reason)
	}
	if snapshotAvailable && account != nil {
		fmt.Fprintf(w, "Account: equity=%s cash=%s buying_power=%s shorting_enabled=%v\n",
			account.Equity.String(), account.Cash.String(), account.BuyingPower.String(), account.ShortingEnabled)
		for _, pos := range positions {
			fmt.Fprintf(w, "  position: %s %s qty=%s\n", pos.Side, pos.Symbol, pos.Qty.String())
		}
	} else {
		fmt.Fprintln(w, "Portfolio snapshot unavailable.")
	}
	fmt.Fprint(w, "Type 'yes' to submit: ")

	reader := e.Confirm
	if reader == nil {
		reader = os.Stdin
	}
	scanner := bufio.NewScanner(reader)
	if !scanner.Scan() {
		return false
	}
	return strings.TrimSpace(scanner.Text()) == "yes"
}

// submit sends the surviving orders as-is. A submission failure reports
// status error; orders are never re-submitted.
func (e *TradeExecutor) submit(ctx context.Context, broker string, allowed []normalizedOrder, blocked []blockedOrder) models.ExecutionReport {
	var submitted []map[string]any
	for _, order := range allowed {
		placed, err := e.Broker.SubmitOrder(ctx, brokerage.OrderRequest{
			Symbol:      order.Symbol,
			Side:        order.Side,
			Qty:         order.Qty,
			Type:        order.Type,
			TimeInForce: order.TimeInForce,
		})
		if err != nil {
			message := fmt.Sprintf("Order submission failed for %s: %v", order.Symbol, err)
			if len(blocked) > 0 {
				message += fmt.Sprintf(" (%d orders were pre-blocked by short-sale protection)", len(blocked))
			}
			return models.ExecutionReport{
				Status:  models.ExecStatusError,
				Broker:  broker,
				Details: submitted,
				Message: message,
			}
		}
		submitted = append(submitted, map[string]any{
			"symbol":   order.Symbol,
			"side":     order.Side,
			"qty":      order.Qty.String(),
			"order_id": placed.ID,
		})
	}

	message := fmt.Sprintf("%d orders submitted.", len(submitted))
	if len(blocked) > 0 {
		message = fmt.Sprintf("%d orders submitted, %d blocked by short-sale protection.", len(submitted), len(blocked))
	}
	details := submitted
	if details == nil {
		details = []map[string]any{}
	}
	return models.ExecutionReport{
		Status:  models.ExecStatusSubmitted,
		Broker:  broker,
		Details: details,
		Message: message,
	}
}

func orderDetails(orders []normalizedOrder) []map[string]any {
	out := make([]map[string]any, 0, len(orders))
	for _, order := range orders {
		out = append(out, map[string]any{
			"symbol":        order.Symbol,
			"side":          order.Side,
			"qty":           order.Qty.String(),
			"type":          order.Type,
			"time_in_force": order.TimeInForce,
		})
	}
	return out
}

func blockedDetails(blocked []blockedOrder) []map[string]any {
	out := make([]map[string]any, 0, len(blocked))
	for _, b := range blocked {
		out = append(out, map[string]any{
			"symbol": b.Order.Symbol,
			"side":   b.Order.Side,
			"qty":    b.Order.Qty.String(),
			"reason": b.Reason,
		})
	}
	return out
}

func blockedSymbols(blocked []blockedOrder) []string {
	seen := make(map[string]bool)
	var out []string
	for _, b := range blocked {
		if seen[b.Order.Symbol] {
			continue
		}
		seen[b.Order.Symbol] = true
		out = append(out, b.Order.Symbol)
	}
	return out
}
