package fetch

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"StockScreener/internal/model"
)

// TencentProvider fetches qfq kline history from the Tencent ifzq API.
// The API only serves daily bars, so weekly and monthly series are
// aggregated client-side.
type TencentProvider struct {
	baseURL string
	client  *http.Client
}

// NewTencentProvider creates the provider from its endpoint descriptor.
func NewTencentProvider(ep Endpoint) *TencentProvider {
	base := ep.BaseURL
	if base == "" {
		base = "https://web.ifzq.gtimg.cn"
	}
	return &TencentProvider{baseURL: strings.TrimRight(base, "/"), client: newHTTPClient(ep)}
}

func (p *TencentProvider) Name() string { return "tencent" }

// txSymbol maps a bare A-share code to Tencent's exchange-prefixed form.
func txSymbol(symbol string) string {
	if strings.HasPrefix(symbol, "6") {
		return "sh" + symbol
	}
	return "sz" + symbol
}

// txResponse is the fqkline payload: data is keyed by the prefixed symbol,
// and the kline rows live under "qfqday" (or "day" when no adjustment
// applies). Each row is [date, open, close, high, low, volume, ...] with
// numbers encoded as strings.
type txResponse struct {
	Code int                        `json:"code"`
	Data map[string]json.RawMessage `json:"data"`
}

type txKlines struct {
	QfqDay [][]json.RawMessage `json:"qfqday"`
	Day    [][]json.RawMessage `json:"day"`
}

func (p *TencentProvider) Fetch(ctx context.Context, symbol string, params Params) (*model.PriceSeries, error) {
	start, end := "", ""
	if !params.Start.IsZero() {
		start = params.Start.Format("2006-01-02")
	}
	if !params.End.IsZero() {
		end = params.End.Format("2006-01-02")
	}
	sym := txSymbol(symbol)
	u := fmt.Sprintf("%s/appstock/app/fqkline/get?param=%s,day,%s,%s,640,qfq", p.baseURL, sym, start, end)

	body, err := doGet(ctx, p.client, p.Name(), u)
	if err != nil {
		return nil, err
	}

	var resp txResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, model.NewError(model.ErrNetwork, p.Name(), fmt.Errorf("decode body: %w", err))
	}
	raw, ok := resp.Data[sym]
	if !ok {
		return nil, model.NewError(model.ErrNoData, p.Name(), fmt.Errorf("no data for %s", symbol))
	}
	var klines txKlines
	if err := json.Unmarshal(raw, &klines); err != nil {
		return nil, model.NewError(model.ErrParse, p.Name(), fmt.Errorf("decode klines: %w", err))
	}
	rows := klines.QfqDay
	if len(rows) == 0 {
		rows = klines.Day
	}
	if len(rows) == 0 {
		return nil, model.NewError(model.ErrNoData, p.Name(), fmt.Errorf("empty kline table for %s", symbol))
	}

	daily := &model.PriceSeries{Symbol: symbol, Period: model.PeriodDaily, FetchedAt: time.Now()}
	for _, row := range rows {
		if len(row) < 6 {
			return nil, model.NewError(model.ErrParse, p.Name(), fmt.Errorf("kline row: want 6+ columns, got %d", len(row)))
		}
		var dateStr string
		if err := json.Unmarshal(row[0], &dateStr); err != nil {
			return nil, model.NewError(model.ErrParse, p.Name(), fmt.Errorf("kline date: %w", err))
		}
		date, err := time.Parse("2006-01-02", dateStr)
		if err != nil {
			return nil, model.NewError(model.ErrParse, p.Name(), fmt.Errorf("kline date %q: %w", dateStr, err))
		}
		daily.Bars = append(daily.Bars, model.PriceBar{
			Date:   date,
			Open:   parseRawCell(row[1]),
			Close:  parseRawCell(row[2]),
			High:   parseRawCell(row[3]),
			Low:    parseRawCell(row[4]),
			Volume: parseRawCell(row[5]),
		})
	}
	daily.Normalize()

	switch params.Period {
	case model.PeriodDaily:
		return daily, nil
	case model.PeriodWeekly:
		return aggregate(daily, model.PeriodWeekly), nil
	case model.PeriodMonthly:
		return aggregate(daily, model.PeriodMonthly), nil
	}
	return nil, model.NewError(model.ErrInvalidParameter, p.Name(), fmt.Errorf("unknown period %q", params.Period))
}

// parseRawCell coerces one JSON cell that may be a quoted string or a bare
// number. Unparseable cells become NaN.
func parseRawCell(raw json.RawMessage) float64 {
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return parseCell(s)
	}
	var v float64
	if err := json.Unmarshal(raw, &v); err == nil {
		return v
	}
	return parseCell(string(raw))
}

// aggregate folds daily bars into weekly (ISO week) or monthly buckets:
// first open, max high, min low, last close, summed volume. The bucket
// keeps the date of its last trading day.
func aggregate(daily *model.PriceSeries, period model.Period) *model.PriceSeries {
	out := &model.PriceSeries{Symbol: daily.Symbol, Period: period, FetchedAt: daily.FetchedAt}
	if len(daily.Bars) == 0 {
		return out
	}

	key := func(t time.Time) int {
		if period == model.PeriodMonthly {
			return t.Year()*100 + int(t.Month())
		}
		y, w := t.ISOWeek()
		return y*100 + w
	}

	var bucket model.PriceBar
	current := -1
	for _, d := range daily.Bars {
		k := key(d.Date)
		if k != current {
			if current != -1 {
				out.Bars = append(out.Bars, bucket)
			}
			bucket = d
			current = k
			continue
		}
		if d.High > bucket.High {
			bucket.High = d.High
		}
		if d.Low < bucket.Low {
			bucket.Low = d.Low
		}
		bucket.Close = d.Close
		bucket.Volume += d.Volume
		bucket.Date = d.Date
	}
	out.Bars = append(out.Bars, bucket)
	return out
}
