package fetch

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"StockScreener/internal/model"
)

func TestEastMoney_ParsesKlines(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("secid"); got != "1.600000" {
			t.Errorf("secid = %q, want 1.600000", got)
		}
		if got := r.URL.Query().Get("klt"); got != "102" {
			t.Errorf("klt = %q, want 102 for weekly", got)
		}
		w.Write([]byte(`{"data":{"code":"600000","klines":[
			"2024-01-05,10.0,10.5,10.8,9.9,120000",
			"2024-01-12,10.5,10.2,10.6,10.1,98000"
		]}}`))
	}))
	defer srv.Close()

	p := NewEastMoneyProvider(Endpoint{BaseURL: srv.URL})
	series, err := p.Fetch(context.Background(), "600000", Params{Period: model.PeriodWeekly})
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if series.Len() != 2 {
		t.Fatalf("bars = %d, want 2", series.Len())
	}
	first := series.Bars[0]
	if first.Date.Format("2006-01-02") != "2024-01-05" {
		t.Errorf("first date = %s", first.Date)
	}
	if first.Open != 10.0 || first.Close != 10.5 || first.High != 10.8 || first.Low != 9.9 {
		t.Errorf("first bar OHLC mismatch: %+v", first)
	}
}

func TestEastMoney_ShenzhenSecID(t *testing.T) {
	if got := secID("000001"); got != "0.000001" {
		t.Errorf("secID = %q, want 0.000001", got)
	}
	if got := secID("688001"); got != "1.688001" {
		t.Errorf("secID = %q, want 1.688001", got)
	}
}

func TestEastMoney_EmptyKlinesIsNoData(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"data":null}`))
	}))
	defer srv.Close()

	p := NewEastMoneyProvider(Endpoint{BaseURL: srv.URL})
	_, err := p.Fetch(context.Background(), "600000", Params{Period: model.PeriodWeekly})
	if kind := model.KindOf(err); kind != model.ErrNoData {
		t.Fatalf("error kind = %q, want %q", kind, model.ErrNoData)
	}
}

func TestEastMoney_MalformedRowIsParseError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"data":{"code":"600000","klines":["2024-01-05,10.0"]}}`))
	}))
	defer srv.Close()

	p := NewEastMoneyProvider(Endpoint{BaseURL: srv.URL})
	_, err := p.Fetch(context.Background(), "600000", Params{Period: model.PeriodWeekly})
	if kind := model.KindOf(err); kind != model.ErrParse {
		t.Fatalf("error kind = %q, want %q", kind, model.ErrParse)
	}
}

func TestStatusClassification(t *testing.T) {
	var status int
	var retryAfter string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if retryAfter != "" {
			w.Header().Set("Retry-After", retryAfter)
		}
		w.WriteHeader(status)
	}))
	defer srv.Close()
	p := NewEastMoneyProvider(Endpoint{BaseURL: srv.URL})

	status, retryAfter = 429, "7"
	_, err := p.Fetch(context.Background(), "600000", Params{Period: model.PeriodDaily})
	var ce *model.ClassifiedError
	if !errors.As(err, &ce) {
		t.Fatalf("err = %T, want classified", err)
	}
	if ce.Kind != model.ErrRateLimit {
		t.Errorf("kind = %q, want %q", ce.Kind, model.ErrRateLimit)
	}
	if ce.RetryAfter != 7*time.Second {
		t.Errorf("RetryAfter = %v, want 7s", ce.RetryAfter)
	}

	status, retryAfter = 502, ""
	_, err = p.Fetch(context.Background(), "600000", Params{Period: model.PeriodDaily})
	if !errors.As(err, &ce) {
		t.Fatalf("err = %T, want classified", err)
	}
	if ce.Kind != model.ErrAPI || ce.Status != 502 {
		t.Errorf("got %s/%d, want api_error/502", ce.Kind, ce.Status)
	}
}

func TestTencent_ParsesAndAggregatesWeekly(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Two ISO weeks of daily bars, numbers as strings like the real API.
		w.Write([]byte(`{"code":0,"data":{"sh600000":{"qfqday":[
			["2024-01-08","10.0","10.2","10.4","9.9","1000"],
			["2024-01-09","10.2","10.6","10.7","10.1","1100"],
			["2024-01-10","10.6","10.3","10.8","10.2","900"],
			["2024-01-15","10.3","10.9","11.0","10.3","1200"],
			["2024-01-16","10.9","11.1","11.3","10.8","1300"]
		]}}}`))
	}))
	defer srv.Close()

	p := NewTencentProvider(Endpoint{BaseURL: srv.URL})
	series, err := p.Fetch(context.Background(), "600000", Params{Period: model.PeriodWeekly})
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if series.Len() != 2 {
		t.Fatalf("weekly bars = %d, want 2", series.Len())
	}

	w1 := series.Bars[0]
	if w1.Open != 10.0 {
		t.Errorf("week 1 open = %v, want the first day's open", w1.Open)
	}
	if w1.Close != 10.3 {
		t.Errorf("week 1 close = %v, want the last day's close", w1.Close)
	}
	if w1.High != 10.8 {
		t.Errorf("week 1 high = %v, want the weekly max", w1.High)
	}
	if w1.Low != 9.9 {
		t.Errorf("week 1 low = %v, want the weekly min", w1.Low)
	}
	if w1.Volume != 3000 {
		t.Errorf("week 1 volume = %v, want the weekly sum", w1.Volume)
	}
	if w1.Date.Format("2006-01-02") != "2024-01-10" {
		t.Errorf("week 1 date = %s, want the last trading day", w1.Date.Format("2006-01-02"))
	}
}

func TestTencent_MissingSymbolIsNoData(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"code":0,"data":{}}`))
	}))
	defer srv.Close()

	p := NewTencentProvider(Endpoint{BaseURL: srv.URL})
	_, err := p.Fetch(context.Background(), "000001", Params{Period: model.PeriodDaily})
	if kind := model.KindOf(err); kind != model.ErrNoData {
		t.Fatalf("error kind = %q, want %q", kind, model.ErrNoData)
	}
}

func TestTencent_SymbolPrefix(t *testing.T) {
	if got := txSymbol("600000"); got != "sh600000" {
		t.Errorf("txSymbol = %q, want sh600000", got)
	}
	if got := txSymbol("300750"); got != "sz300750" {
		t.Errorf("txSymbol = %q, want sz300750", got)
	}
}

func TestAggregate_MonthlyBuckets(t *testing.T) {
	daily := &model.PriceSeries{Symbol: "600000", Period: model.PeriodDaily}
	for _, d := range []struct {
		date  string
		close float64
	}{
		{"2024-01-30", 10},
		{"2024-01-31", 11},
		{"2024-02-01", 12},
	} {
		dt, _ := time.Parse("2006-01-02", d.date)
		daily.Bars = append(daily.Bars, model.PriceBar{Date: dt, Open: d.close, High: d.close, Low: d.close, Close: d.close, Volume: 1})
	}

	monthly := aggregate(daily, model.PeriodMonthly)
	if len(monthly.Bars) != 2 {
		t.Fatalf("monthly bars = %d, want 2", len(monthly.Bars))
	}
	if monthly.Bars[0].Close != 11 || monthly.Bars[1].Close != 12 {
		t.Errorf("monthly closes = %v, %v", monthly.Bars[0].Close, monthly.Bars[1].Close)
	}
}
