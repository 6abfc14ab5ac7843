// Package sheets writes records into a Google Sheets spreadsheet, one tab per
// instrument.
package sheets

import (
	"context"
	"fmt"
	"hash/fnv"
	"math"
	"net/http"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"google.golang.org/api/option"
	gsheets "google.golang.org/api/sheets/v4"
	htransport "google.golang.org/api/transport/http"

	"github.com/shahid-2020/candlesheet/internal/httpclient"
	"github.com/shahid-2020/candlesheet/internal/ratelimit"
	"github.com/shahid-2020/candlesheet/internal/sink"
	"github.com/shahid-2020/candlesheet/types"
)

const (
	valueInputOption = "USER_ENTERED"
	insertDataOption = "INSERT_ROWS"
	timestampLayout  = "2006-01-02 15:04"
	defaultTabTitle  = "Sheet1"
	headerRange      = "!A1:J1"

	columnCount          = 10
	columnWidth          = 100
	timestampColumnWidth = 140
)

// Header is the first row of every instrument tab.
var Header = []any{"Timestamp", "Symbol", "Token", "Open", "High", "Low", "Close", "LTP", "Volume", "Avg Price"}

// DefaultLimits keeps a run under the per-user Sheets quota of 60 requests
// per minute.
var DefaultLimits = []ratelimit.Limit{{Count: 60, Per: time.Minute}}

// DefaultRetry retries only statuses where the request was not applied.
var DefaultRetry = httpclient.RetryConfig{
	MaxRetries:    4,
	BaseDelay:     2 * time.Second,
	MaxDelay:      30 * time.Second,
	RetryOnStatus: []int{http.StatusTooManyRequests, http.StatusServiceUnavailable},
}

type Config struct {
	SpreadsheetID string
	RateLimits    []ratelimit.Limit
	Retry         *httpclient.RetryConfig
	Logger        logrus.FieldLogger
}

// tab is what the sink knows about one sheet without asking again.
type tab struct {
	id          int64
	initialised bool
	formatted   bool
}

type Sink struct {
	svc           *gsheets.Service
	spreadsheetID string
	log           logrus.FieldLogger

	mu     sync.Mutex
	listed bool
	tabs   map[string]*tab
}

var _ sink.Sink = (*Sink)(nil)

// New opens the spreadsheet API. Credentials and endpoint come from opts,
// typically option.WithCredentialsFile. Every call goes through a limiter
// sized by cfg.RateLimits.
func New(ctx context.Context, cfg Config, opts ...option.ClientOption) (*Sink, error) {
	if cfg.SpreadsheetID == "" {
		return nil, fmt.Errorf("sheets: spreadsheet id is required")
	}
	if cfg.Logger == nil {
		cfg.Logger = logrus.StandardLogger()
	}
	if len(cfg.RateLimits) == 0 {
		cfg.RateLimits = DefaultLimits
	}
	retry := DefaultRetry
	if cfg.Retry != nil {
		retry = *cfg.Retry
	}
	log := cfg.Logger.WithField("spreadsheet_id", cfg.SpreadsheetID)

	limited := httpclient.NewClient(httpclient.ClientConfig{
		HttpClient:  &http.Client{Timeout: time.Minute},
		RateLimits:  cfg.RateLimits,
		RetryConfig: retry,
		Logger:      log,
	})
	opts = append([]option.ClientOption{option.WithScopes(gsheets.SpreadsheetsScope)}, opts...)
	authed, err := htransport.NewTransport(ctx, limited, opts...)
	if err != nil {
		return nil, fmt.Errorf("sheets: create transport: %w", err)
	}
	svc, err := gsheets.NewService(ctx, append(opts, option.WithHTTPClient(&http.Client{Transport: authed}))...)
	if err != nil {
		return nil, fmt.Errorf("sheets: create service: %w", err)
	}
	return &Sink{
		svc:           svc,
		spreadsheetID: cfg.SpreadsheetID,
		log:           log,
		tabs:          map[string]*tab{},
	}, nil
}

// EnsureDestination lists the spreadsheet once per Sink and creates missing
// tabs already formatted.
func (s *Sink) EnsureDestination(ctx context.Context, key string) (sink.Destination, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.listed {
		if err := s.refreshTabs(ctx); err != nil {
			return sink.Destination{}, err
		}
	}
	if t, ok := s.tabs[key]; ok {
		return sink.Destination{Key: key, ID: t.id}, nil
	}

	id, err := s.addTab(ctx, key)
	if err != nil {
		// Someone else may have added it since the list was read.
		if s.refreshTabs(ctx) == nil {
			if t, ok := s.tabs[key]; ok {
				return sink.Destination{Key: key, ID: t.id}, nil
			}
		}
		return sink.Destination{}, err
	}

	s.tabs[key] = &tab{id: id, formatted: true}
	s.log.WithFields(logrus.Fields{"tab": key, "sheet_id": id}).Info("created tab")
	return sink.Destination{Key: key, ID: id}, nil
}

// refreshTabs lists every tab and reads all header rows in one batch.
func (s *Sink) refreshTabs(ctx context.Context) error {
	ss, err := s.svc.Spreadsheets.Get(s.spreadsheetID).
		Fields("sheets.properties(sheetId,title,index)").
		Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("sheets: list tabs: %w", err)
	}

	tabs := make(map[string]*tab, len(ss.Sheets))
	titles := make([]string, 0, len(ss.Sheets))
	ranges := make([]string, 0, len(ss.Sheets))
	for _, sh := range ss.Sheets {
		if sh.Properties == nil {
			continue
		}
		tabs[sh.Properties.Title] = &tab{id: sh.Properties.SheetId}
		titles = append(titles, sh.Properties.Title)
		ranges = append(ranges, quoteTitle(sh.Properties.Title)+headerRange)
	}

	if len(ranges) > 0 {
		heads, err := s.svc.Spreadsheets.Values.BatchGet(s.spreadsheetID).
			Ranges(ranges...).
			Context(ctx).Do()
		if err != nil {
			return fmt.Errorf("sheets: read headers: %w", err)
		}
		for i, vr := range heads.ValueRanges {
			if i < len(titles) && len(vr.Values) > 0 {
				t := tabs[titles[i]]
				t.initialised = true
				t.formatted = true
			}
		}
	}

	s.tabs = tabs
	s.listed = true
	return nil
}

// addTab creates the tab with its header formatting in a single request.
func (s *Sink) addTab(ctx context.Context, title string) (int64, error) {
	taken := make(map[int64]bool, len(s.tabs))
	for _, t := range s.tabs {
		taken[t.id] = true
	}
	id := sheetIDFor(title, taken)

	requests := append([]*gsheets.Request{{
		AddSheet: &gsheets.AddSheetRequest{
			Properties: &gsheets.SheetProperties{
				SheetId:         id,
				Title:           title,
				GridProperties:  &gsheets.GridProperties{FrozenRowCount: 1},
				ForceSendFields: []string{"SheetId"},
			},
		},
	}}, headerFormatRequests(id)...)

	resp, err := s.svc.Spreadsheets.BatchUpdate(s.spreadsheetID, &gsheets.BatchUpdateSpreadsheetRequest{
		Requests: requests,
	}).Context(ctx).Do()
	if err != nil {
		return 0, fmt.Errorf("sheets: add tab %q: %w", title, err)
	}
	if len(resp.Replies) > 0 && resp.Replies[0].AddSheet != nil && resp.Replies[0].AddSheet.Properties != nil {
		id = resp.Replies[0].AddSheet.Properties.SheetId
	}
	return id, nil
}

// AppendOrInit writes the header and the row to an empty tab and appends to
// one that already has a header. Tabs this Sink has not listed have their
// header read first.
func (s *Sink) AppendOrInit(ctx context.Context, dest sink.Destination, rec types.OHLCVRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	title := quoteTitle(dest.Key)

	t, ok := s.tabs[dest.Key]
	if !ok {
		head, err := s.svc.Spreadsheets.Values.Get(s.spreadsheetID, title+headerRange).Context(ctx).Do()
		if err != nil {
			return fmt.Errorf("sheets: read header of %q: %w", dest.Key, err)
		}
		t = &tab{id: dest.ID, initialised: len(head.Values) > 0, formatted: len(head.Values) > 0}
		s.tabs[dest.Key] = t
	}

	if t.initialised {
		_, err := s.svc.Spreadsheets.Values.Append(s.spreadsheetID, title+"!A1", &gsheets.ValueRange{
			Values: [][]any{Row(rec)},
		}).ValueInputOption(valueInputOption).InsertDataOption(insertDataOption).Context(ctx).Do()
		if err != nil {
			return fmt.Errorf("sheets: append to %q: %w", dest.Key, err)
		}
		return nil
	}

	_, err := s.svc.Spreadsheets.Values.Update(s.spreadsheetID, title+"!A1:J2", &gsheets.ValueRange{
		Values: [][]any{Header, Row(rec)},
	}).ValueInputOption(valueInputOption).Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("sheets: initialise %q: %w", dest.Key, err)
	}
	t.initialised = true

	if !t.formatted {
		if err := s.formatHeader(ctx, t.id); err != nil {
			// Rows are already written at this point.
			s.log.WithField("tab", dest.Key).WithError(err).Warn("header formatting failed")
		} else {
			t.formatted = true
		}
	}
	return nil
}

func (s *Sink) formatHeader(ctx context.Context, sheetID int64) error {
	requests := append([]*gsheets.Request{{
		UpdateSheetProperties: &gsheets.UpdateSheetPropertiesRequest{
			Properties: &gsheets.SheetProperties{
				SheetId:         sheetID,
				GridProperties:  &gsheets.GridProperties{FrozenRowCount: 1},
				ForceSendFields: []string{"SheetId"},
			},
			Fields: "gridProperties.frozenRowCount",
		},
	}}, headerFormatRequests(sheetID)...)

	_, err := s.svc.Spreadsheets.BatchUpdate(s.spreadsheetID, &gsheets.BatchUpdateSpreadsheetRequest{
		Requests: requests,
	}).Context(ctx).Do()
	return err
}

// headerFormatRequests makes the header bold and sizes the columns.
func headerFormatRequests(sheetID int64) []*gsheets.Request {
	return []*gsheets.Request{
		{
			RepeatCell: &gsheets.RepeatCellRequest{
				Range: gridRange(sheetID, 0, 1),
				Cell: &gsheets.CellData{
					UserEnteredFormat: &gsheets.CellFormat{
						TextFormat: &gsheets.TextFormat{Bold: true},
					},
				},
				Fields: "userEnteredFormat.textFormat.bold",
			},
		},
		columnWidthRequest(sheetID, 0, 1, timestampColumnWidth),
		columnWidthRequest(sheetID, 1, columnCount, columnWidth),
	}
}

// Reset deletes every tab but the first and returns that one to a blank
// "Sheet1". The tab cache is dropped.
func (s *Sink) Reset(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	ss, err := s.svc.Spreadsheets.Get(s.spreadsheetID).
		Fields("sheets.properties(sheetId,title,index)").
		Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("sheets: list tabs: %w", err)
	}

	props := make([]*gsheets.SheetProperties, 0, len(ss.Sheets))
	for _, sh := range ss.Sheets {
		if sh.Properties != nil {
			props = append(props, sh.Properties)
		}
	}
	if len(props) == 0 {
		return fmt.Errorf("sheets: spreadsheet has no tabs")
	}
	sort.SliceStable(props, func(i, j int) bool { return props[i].Index < props[j].Index })
	first := props[0].SheetId

	var requests []*gsheets.Request
	for _, p := range props[1:] {
		requests = append(requests, &gsheets.Request{
			DeleteSheet: &gsheets.DeleteSheetRequest{SheetId: p.SheetId, ForceSendFields: []string{"SheetId"}},
		})
	}
	requests = append(requests,
		&gsheets.Request{
			UnmergeCells: &gsheets.UnmergeCellsRequest{
				Range: &gsheets.GridRange{SheetId: first, ForceSendFields: []string{"SheetId"}},
			},
		},
		&gsheets.Request{
			RepeatCell: &gsheets.RepeatCellRequest{
				Range:  &gsheets.GridRange{SheetId: first, ForceSendFields: []string{"SheetId"}},
				Cell:   &gsheets.CellData{},
				Fields: "userEnteredFormat",
			},
		},
		&gsheets.Request{
			UpdateSheetProperties: &gsheets.UpdateSheetPropertiesRequest{
				Properties: &gsheets.SheetProperties{
					SheetId:         first,
					Title:           defaultTabTitle,
					ForceSendFields: []string{"SheetId"},
				},
				Fields: "title",
			},
		},
	)

	if _, err := s.svc.Spreadsheets.BatchUpdate(s.spreadsheetID, &gsheets.BatchUpdateSpreadsheetRequest{
		Requests: requests,
	}).Context(ctx).Do(); err != nil {
		return fmt.Errorf("sheets: reset tabs: %w", err)
	}

	if _, err := s.svc.Spreadsheets.Values.Clear(s.spreadsheetID, defaultTabTitle, &gsheets.ClearValuesRequest{}).
		Context(ctx).Do(); err != nil {
		return fmt.Errorf("sheets: clear %s: %w", defaultTabTitle, err)
	}

	s.tabs = map[string]*tab{}
	s.listed = false
	s.log.WithField("deleted", len(props)-1).Info("spreadsheet reset")
	return nil
}

// Row renders a record in Header order.
func Row(rec types.OHLCVRecord) []any {
	return []any{
		rec.Timestamp.Format(timestampLayout),
		rec.Symbol,
		rec.InstrumentToken,
		rec.Open,
		rec.High,
		rec.Low,
		rec.Close,
		rec.LastPrice,
		rec.Volume,
		rec.AveragePrice,
	}
}

// sheetIDFor derives a stable sheet id from the title, stepping past ids
// already in use.
func sheetIDFor(title string, taken map[int64]bool) int64 {
	h := fnv.New32a()
	_, _ = h.Write([]byte(title))
	id := int64(h.Sum32() & math.MaxInt32)
	for taken[id] {
		id = (id + 1) & math.MaxInt32
	}
	return id
}

// quoteTitle makes a tab title safe for A1 notation.
func quoteTitle(title string) string {
	return "'" + strings.ReplaceAll(title, "'", "''") + "'"
}

func gridRange(sheetID, startRow, endRow int64) *gsheets.GridRange {
	return &gsheets.GridRange{
		SheetId:         sheetID,
		StartRowIndex:   startRow,
		EndRowIndex:     endRow,
		ForceSendFields: []string{"SheetId", "StartRowIndex"},
	}
}

func columnWidthRequest(sheetID, start, end, pixels int64) *gsheets.Request {
	return &gsheets.Request{
		UpdateDimensionProperties: &gsheets.UpdateDimensionPropertiesRequest{
			Range: &gsheets.DimensionRange{
				SheetId:         sheetID,
				Dimension:       "COLUMNS",
				StartIndex:      start,
				EndIndex:        end,
				ForceSendFields: []string{"SheetId", "StartIndex"},
			},
			Properties: &gsheets.DimensionProperties{PixelSize: pixels},
			Fields:     "pixelSize",
		},
	}
}
