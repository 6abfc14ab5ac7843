package types

// NIFTY50 returns the default basket in reporting order. A fresh slice is
// returned on every call.
func NIFTY50() []Instrument {
	return []Instrument{
		{Symbol: "ADANIENT-EQ", Token: "25"},
		{Symbol: "ADANIPORTS-EQ", Token: "15083"},
		{Symbol: "APOLLOHOSP-EQ", Token: "157"},
		{Symbol: "ASIANPAINT-EQ", Token: "236"},
		{Symbol: "AXISBANK-EQ", Token: "5900"},
		{Symbol: "BAJAJ-AUTO-EQ", Token: "16669"},
		{Symbol: "BAJFINANCE-EQ", Token: "317"},
		{Symbol: "BAJAJFINSV-EQ", Token: "16675"},
		{Symbol: "BPCL-EQ", Token: "526"},
		{Symbol: "BHARTIARTL-EQ", Token: "10604"},
		{Symbol: "BRITANNIA-EQ", Token: "547"},
		{Symbol: "CIPLA-EQ", Token: "694"},
		{Symbol: "COALINDIA-EQ", Token: "20374"},
		{Symbol: "DIVISLAB-EQ", Token: "10940"},
		{Symbol: "DRREDDY-EQ", Token: "881"},
		{Symbol: "EICHERMOT-EQ", Token: "910"},
		{Symbol: "GRASIM-EQ", Token: "1232"},
		{Symbol: "HCLTECH-EQ", Token: "7229"},
		{Symbol: "HDFCBANK-EQ", Token: "1333"},
		{Symbol: "HDFCLIFE-EQ", Token: "467"},
		{Symbol: "HEROMOTOCO-EQ", Token: "1348"},
		{Symbol: "HINDALCO-EQ", Token: "1363"},
		{Symbol: "HINDUNILVR-EQ", Token: "1394"},
		{Symbol: "ICICIBANK-EQ", Token: "4963"},
		{Symbol: "ITC-EQ", Token: "1660"},
		{Symbol: "INDUSINDBK-EQ", Token: "5258"},
		{Symbol: "INFY-EQ", Token: "1594"},
		{Symbol: "JSWSTEEL-EQ", Token: "11723"},
		{Symbol: "KOTAKBANK-EQ", Token: "1922"},
		{Symbol: "LTIM-EQ", Token: "17818"},
		{Symbol: "LT-EQ", Token: "11483"},
		{Symbol: "M&M-EQ", Token: "2031"},
		{Symbol: "MARUTI-EQ", Token: "10999"},
		{Symbol: "NTPC-EQ", Token: "11630"},
		{Symbol: "NESTLEIND-EQ", Token: "17963"},
		{Symbol: "ONGC-EQ", Token: "2475"},
		{Symbol: "POWERGRID-EQ", Token: "14977"},
		{Symbol: "RELIANCE-EQ", Token: "2885"},
		{Symbol: "SBILIFE-EQ", Token: "21808"},
		{Symbol: "SHRIRAMFIN-EQ", Token: "4306"},
		{Symbol: "SBIN-EQ", Token: "3045"},
		{Symbol: "SUNPHARMA-EQ", Token: "3351"},
		{Symbol: "TCS-EQ", Token: "11536"},
		{Symbol: "TATACONSUM-EQ", Token: "3432"},
		{Symbol: "TATAMOTORS-EQ", Token: "3456"},
		{Symbol: "TATASTEEL-EQ", Token: "3499"},
		{Symbol: "TECHM-EQ", Token: "13538"},
		{Symbol: "TITAN-EQ", Token: "3506"},
		{Symbol: "ULTRACEMCO-EQ", Token: "11532"},
		{Symbol: "WIPRO-EQ", Token: "3787"},
	}
}
