package fetch

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	"StockScreener/internal/model"
)

// EastMoneyProvider fetches qfq kline history from the EastMoney push2his
// API. Weekly and monthly bars are served directly, so no client-side
// aggregation is needed.
type EastMoneyProvider struct {
	baseURL string
	client  *http.Client
}

// NewEastMoneyProvider creates the provider from its endpoint descriptor.
func NewEastMoneyProvider(ep Endpoint) *EastMoneyProvider {
	base := ep.BaseURL
	if base == "" {
		base = "https://push2his.eastmoney.com"
	}
	return &EastMoneyProvider{baseURL: strings.TrimRight(base, "/"), client: newHTTPClient(ep)}
}

func (p *EastMoneyProvider) Name() string { return "eastmoney" }

// emResponse is the kline API payload. Each kline entry is a CSV row:
// date,open,close,high,low,volume[,...].
type emResponse struct {
	Data *struct {
		Code   string   `json:"code"`
		Klines []string `json:"klines"`
	} `json:"data"`
}

var emPeriodCodes = map[model.Period]string{
	model.PeriodDaily:   "101",
	model.PeriodWeekly:  "102",
	model.PeriodMonthly: "103",
}

// secID maps a bare A-share code to EastMoney's market-prefixed id:
// Shanghai codes (6xx) get market 1, Shenzhen (0xx/3xx) market 0.
func secID(symbol string) string {
	if strings.HasPrefix(symbol, "6") {
		return "1." + symbol
	}
	return "0." + symbol
}

func (p *EastMoneyProvider) Fetch(ctx context.Context, symbol string, params Params) (*model.PriceSeries, error) {
	beg, end := "0", "20500101"
	if !params.Start.IsZero() {
		beg = params.Start.Format("20060102")
	}
	if !params.End.IsZero() {
		end = params.End.Format("20060102")
	}
	u := fmt.Sprintf("%s/api/qt/stock/kline/get?secid=%s&klt=%s&fqt=1&beg=%s&end=%s"+
		"&fields1=f1,f2,f3,f4,f5,f6&fields2=f51,f52,f53,f54,f55,f56",
		p.baseURL, secID(symbol), emPeriodCodes[params.Period], beg, end)

	body, err := doGet(ctx, p.client, p.Name(), u)
	if err != nil {
		return nil, err
	}

	var resp emResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		// A truncated or non-JSON body is a transport-level symptom, not a
		// structural incompatibility.
		return nil, model.NewError(model.ErrNetwork, p.Name(), fmt.Errorf("decode body: %w", err))
	}
	if resp.Data == nil || len(resp.Data.Klines) == 0 {
		return nil, model.NewError(model.ErrNoData, p.Name(), fmt.Errorf("no klines for %s", symbol))
	}

	series := &model.PriceSeries{Symbol: symbol, Period: params.Period, FetchedAt: time.Now()}
	for _, row := range resp.Data.Klines {
		fields := strings.Split(row, ",")
		if len(fields) < 6 {
			return nil, model.NewError(model.ErrParse, p.Name(), fmt.Errorf("kline row %q: want 6+ fields", row))
		}
		date, err := time.Parse("2006-01-02", fields[0])
		if err != nil {
			return nil, model.NewError(model.ErrParse, p.Name(), fmt.Errorf("kline date %q: %w", fields[0], err))
		}
		series.Bars = append(series.Bars, model.PriceBar{
			Date:   date,
			Open:   parseCell(fields[1]),
			Close:  parseCell(fields[2]),
			High:   parseCell(fields[3]),
			Low:    parseCell(fields[4]),
			Volume: parseCell(fields[5]),
		})
	}
	series.Normalize()
	return series, nil
}

// parseCell coerces one numeric cell. Unparseable cells become NaN, the
// explicit missing marker, never a fabricated zero.
func parseCell(s string) float64 {
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return math.NaN()
	}
	return v
}

// doGet performs the request and classifies transport and status failures.
func doGet(ctx context.Context, client *http.Client, provider, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, model.NewError(model.ErrInvalidParameter, provider, err)
	}
	req.Header.Set("User-Agent", "Mozilla/5.0")

	resp, err := client.Do(req)
	if err != nil {
		return nil, model.NewError(model.ErrNetwork, provider, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		io.Copy(io.Discard, resp.Body)
		return nil, classifyStatus(provider, resp)
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, model.NewError(model.ErrNetwork, provider, fmt.Errorf("read body: %w", err))
	}
	return body, nil
}
