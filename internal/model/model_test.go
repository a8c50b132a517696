package model

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func dec(s string) *decimal.Decimal {
	d := decimal.RequireFromString(s)
	return &d
}

func TestWorthRangeContains(t *testing.T) {
	tests := []struct {
		name  string
		rng   WorthRange
		worth string
		want  bool
	}{
		{name: "no bounds", rng: WorthRange{}, worth: "0", want: true},
		{name: "below min", rng: WorthRange{Min: dec("100")}, worth: "50", want: false},
		{name: "equal min", rng: WorthRange{Min: dec("100")}, worth: "100", want: true},
		{name: "above max", rng: WorthRange{Max: dec("100")}, worth: "100.01", want: false},
		{name: "equal max", rng: WorthRange{Max: dec("100")}, worth: "100", want: true},
		{name: "inside both", rng: WorthRange{Min: dec("10"), Max: dec("20")}, worth: "15.5", want: true},
		{name: "outside both", rng: WorthRange{Min: dec("10"), Max: dec("20")}, worth: "25", want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.rng.Contains(decimal.RequireFromString(tt.worth)))
		})
	}
}

func TestWorthRangeFilterKeepsOrderAndNeverNil(t *testing.T) {
	orders := []OrderDetail{
		{OrderID: "a", OrderWorth: decimal.NewFromInt(150)},
		{OrderID: "b", OrderWorth: decimal.NewFromInt(50)},
		{OrderID: "c", OrderWorth: decimal.NewFromInt(300)},
	}

	got := WorthRange{Min: dec("100")}.Filter(orders)
	require.Len(t, got, 2)
	assert.Equal(t, ID("a"), got[0].OrderID)
	assert.Equal(t, ID("c"), got[1].OrderID)

	empty := WorthRange{Min: dec("1000")}.Filter(orders)
	assert.NotNil(t, empty)
	assert.Empty(t, empty)
}

func TestDegradedOrderFailsPositiveMin(t *testing.T) {
	o := DegradedOrder("X1", errors.New("boom"))

	assert.True(t, o.Degraded())
	assert.True(t, o.OrderWorth.IsZero())
	assert.False(t, WorthRange{Min: dec("0.01")}.Contains(o.OrderWorth))
	assert.True(t, WorthRange{}.Contains(o.OrderWorth))
}

func TestParseWorthRange(t *testing.T) {
	rng, err := ParseWorthRange("", "")
	require.NoError(t, err)
	assert.True(t, rng.IsZero())

	rng, err = ParseWorthRange("10.5", "99")
	require.NoError(t, err)
	assert.True(t, rng.Min.Equal(decimal.RequireFromString("10.5")))
	assert.True(t, rng.Max.Equal(decimal.NewFromInt(99)))

	_, err = ParseWorthRange("ten", "")
	assert.Error(t, err)
}

func TestIDUnmarshalAcceptsStringAndNumber(t *testing.T) {
	var v struct {
		A ID `json:"a"`
		B ID `json:"b"`
		C ID `json:"c"`
	}
	require.NoError(t, json.Unmarshal([]byte(`{"a":"ord-1","b":12345,"c":null}`), &v))

	assert.Equal(t, ID("ord-1"), v.A)
	assert.Equal(t, ID("12345"), v.B)
	assert.Equal(t, ID(""), v.C)

	assert.Error(t, json.Unmarshal([]byte(`{"a":{}}`), &v))
}

func TestOrderDetailMarshalsWorthAsNumber(t *testing.T) {
	o := OrderDetail{
		OrderID:    "A1",
		Products:   []Product{{ProductID: "P1", Quantity: 2}},
		OrderWorth: decimal.RequireFromString("75.5"),
	}

	b, err := json.Marshal(o)
	require.NoError(t, err)
	assert.JSONEq(t, `{"orderID":"A1","products":[{"productID":"P1","quantity":2}],"orderWorth":75.5}`, string(b))
}

func TestDailyWindow(t *testing.T) {
	loc := time.FixedZone("UTC+2", 2*60*60)
	now := time.Date(2024, time.March, 1, 0, 30, 15, 0, loc)

	w := DailyWindow(now)

	assert.Equal(t, time.Date(2024, time.March, 1, 0, 0, 0, 0, loc), w.To)
	assert.Equal(t, time.Date(2024, time.February, 29, 0, 0, 0, 0, loc), w.From)
	assert.Equal(t, w.From, Yesterday(now))
	assert.Equal(t, w.To, Today(now))
}

func TestParseWindow(t *testing.T) {
	now := time.Date(2024, time.March, 15, 10, 0, 0, 0, time.UTC)

	w, err := ParseWindow("", "", now)
	require.NoError(t, err)
	assert.Equal(t, DailyWindow(now), w)

	w, err = ParseWindow("2024-01-01", "", now)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, time.January, 1, 0, 0, 0, 0, time.UTC), w.From)
	assert.Equal(t, Today(now), w.To)

	w, err = ParseWindow("2024-03-15", "2024-03-15", now)
	require.NoError(t, err)
	assert.Equal(t, w.From, w.To)

	for _, tc := range [][2]string{{"15.03.2024", ""}, {"", "2024-13-01"}, {"2024-03-20", "2024-03-10"}} {
		_, err := ParseWindow(tc[0], tc[1], now)
		assert.ErrorIs(t, err, ErrInvalidWindow, "from=%q to=%q", tc[0], tc[1])
	}
}

func TestSyncRunLifecycle(t *testing.T) {
	start := time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)
	run := NewSyncRun(TriggerManual, DailyWindow(start), start)

	assert.Equal(t, SyncRunning, run.Status)
	assert.Zero(t, run.Duration())

	run.Succeed(3, 1, start.Add(2*time.Second))
	assert.Equal(t, SyncSucceeded, run.Status)
	assert.Equal(t, 3, run.Orders)
	assert.Equal(t, 1, run.Degraded)
	assert.Equal(t, 2*time.Second, run.Duration())

	failed := NewSyncRun(TriggerSchedule, DailyWindow(start), start)
	failed.Fail(errors.New("no orders"), start.Add(time.Second))
	assert.Equal(t, SyncFailed, failed.Status)
	assert.Equal(t, "no orders", failed.Error)
}

func TestTotalWorthAndCountDegraded(t *testing.T) {
	orders := []OrderDetail{
		{OrderID: "a", OrderWorth: decimal.RequireFromString("10.25")},
		{OrderID: "b", OrderWorth: decimal.RequireFromString("4.75")},
		DegradedOrder("c", errors.New("timeout")),
	}

	assert.Equal(t, "15", TotalWorth(orders).String())
	assert.Equal(t, 1, CountDegraded(orders))
}
