package smartapi

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"

	"github.com/shahid-2020/candlesheet/internal/clock"
	"github.com/shahid-2020/candlesheet/internal/provider"
	"github.com/shahid-2020/candlesheet/types"
)

func TestCandleSource_Candles(t *testing.T) {
	body := `{"status":true,"message":"SUCCESS","errorcode":"","data":[
		["2025-01-02T10:15:00+05:30",100,105,98,102,5000],
		[1735793100000,102,106,101,104.5,4200],
		["2025-01-02T12:15:00+05:30",104.5,107,104,106]
	]}`
	srv, calls := newTestServer(t, func(string) (int, string) { return http.StatusOK, body })
	source := newTestClient(t, srv.URL).Source(&provider.Session{JWTToken: "jwt-abc"})

	from := clock.Date(2025, time.January, 2, 10, 15)
	candles, err := source.Candles(context.Background(), "2885", types.IntervalOneHour, from, from.Add(time.Hour))
	require.NoError(t, err)
	require.Len(t, candles, 3)

	assert.Equal(t, from.UnixMilli(), candles[0].Timestamp)
	assert.Equal(t, types.RawCandle{Timestamp: from.UnixMilli(), Open: 100, High: 105, Low: 98, Close: 102, Volume: 5000}, candles[0])
	assert.Equal(t, int64(1735793100000), candles[1].Timestamp)
	assert.Equal(t, 104.5, candles[1].Close)
	assert.Equal(t, int64(0), candles[2].Volume)

	require.Len(t, *calls, 1)
	call := (*calls)[0]
	assert.Equal(t, candlesPath, call.path)
	assert.Equal(t, "Bearer jwt-abc", call.header.Get("Authorization"))
	assert.Equal(t, "key-123", call.header.Get("X-PrivateKey"))
	assert.Equal(t, map[string]string{
		"exchange":    "NSE",
		"symboltoken": "2885",
		"interval":    "ONE_HOUR",
		"fromdate":    "2025-01-02 10:15",
		"todate":      "2025-01-02 11:15",
	}, call.payload)
}

func TestCandleSource_NullDataIsEmpty(t *testing.T) {
	srv, _ := newTestServer(t, func(string) (int, string) {
		return http.StatusOK, `{"status":true,"message":"SUCCESS","data":null}`
	})
	source := newTestClient(t, srv.URL).Source(&provider.Session{JWTToken: "jwt"})

	candles, err := source.Candles(context.Background(), "25", types.IntervalOneHour, fixedNow, fixedNow)
	require.NoError(t, err)
	assert.Empty(t, candles)
}

func TestCandleSource_Errors(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
	}{
		{"StatusFalse", http.StatusOK, `{"status":false,"message":"Invalid Token","errorcode":"AG8001"}`},
		{"Forbidden", http.StatusForbidden, `{"message":"forbidden"}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv, _ := newTestServer(t, func(string) (int, string) { return tt.status, tt.body })
			source := newTestClient(t, srv.URL).Source(&provider.Session{JWTToken: "jwt"})

			_, err := source.Candles(context.Background(), "25", types.IntervalOneHour, fixedNow, fixedNow)
			assert.Error(t, err)
		})
	}
}

func TestCandleSource_SkipsMalformedTuples(t *testing.T) {
	body := `{"status":true,"data":[["2025-01-02T10:15:00+05:30",1,2,0.5,1.5,10],["bad"],[true,1,2,3,4,5],"x"]}`
	srv, _ := newTestServer(t, func(string) (int, string) { return http.StatusOK, body })
	source := newTestClient(t, srv.URL).Source(&provider.Session{JWTToken: "jwt"})

	candles, err := source.Candles(context.Background(), "25", types.IntervalOneHour, fixedNow, fixedNow)
	require.NoError(t, err)
	assert.Len(t, candles, 1)
}

func TestCandleSource_Name(t *testing.T) {
	assert.Equal(t, "smartapi", (&CandleSource{}).Name())
}

func TestParseTuple(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		want    types.RawCandle
		wantErr bool
	}{
		{
			name: "ISOWithOffset",
			raw:  `["2025-01-02T09:15:00+05:30",1,2,0.5,1.5,7]`,
			want: types.RawCandle{Timestamp: clock.Date(2025, time.January, 2, 9, 15).UnixMilli(), Open: 1, High: 2, Low: 0.5, Close: 1.5, Volume: 7},
		},
		{
			name: "EpochSecondsKept",
			raw:  `[1735789500,1,2,0.5,1.5,7]`,
			want: types.RawCandle{Timestamp: 1735789500, Open: 1, High: 2, Low: 0.5, Close: 1.5, Volume: 7},
		},
		{
			name: "MissingVolume",
			raw:  `[1735789500000,1,2,0.5,1.5]`,
			want: types.RawCandle{Timestamp: 1735789500000, Open: 1, High: 2, Low: 0.5, Close: 1.5},
		},
		{name: "TooShort", raw: `[1735789500000,1,2]`, wantErr: true},
		{name: "BadTime", raw: `["yesterday",1,2,0.5,1.5]`, wantErr: true},
		{name: "NotArray", raw: `{"t":1}`, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseTuple(gjson.Parse(tt.raw))
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
