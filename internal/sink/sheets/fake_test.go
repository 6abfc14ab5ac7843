package sheets

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	logtest "github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/option"
	gsheets "google.golang.org/api/sheets/v4"

	"github.com/shahid-2020/candlesheet/internal/httpclient"
	"github.com/shahid-2020/candlesheet/internal/ratelimit"
)

const testSpreadsheetID = "sheet-123"

type fakeTab struct {
	id    int64
	title string
	index int64
	rows  [][]any
}

// fakeSpreadsheet serves the subset of the Sheets v4 REST surface the sink
// uses, backed by memory.
type fakeSpreadsheet struct {
	mu       sync.Mutex
	tabs     []*fakeTab
	nextID   int64
	requests []*gsheets.Request
	calls    map[string]int
	failPath string
}

func newFakeSpreadsheet(titles ...string) *fakeSpreadsheet {
	f := &fakeSpreadsheet{calls: map[string]int{}, nextID: 100}
	for i, title := range titles {
		f.tabs = append(f.tabs, &fakeTab{id: int64(i), title: title, index: int64(i)})
	}
	return f
}

func (f *fakeSpreadsheet) tab(title string) *fakeTab {
	for _, t := range f.tabs {
		if t.title == title {
			return t
		}
	}
	return nil
}

func (f *fakeSpreadsheet) titles() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, 0, len(f.tabs))
	for _, t := range f.tabs {
		out = append(out, t.title)
	}
	return out
}

func (f *fakeSpreadsheet) rows(title string) [][]any {
	f.mu.Lock()
	defer f.mu.Unlock()
	if t := f.tab(title); t != nil {
		return t.rows
	}
	return nil
}

// rangeTitle extracts the tab title from an A1 range such as 'A-EQ'!A1:J1.
func rangeTitle(rng string) string {
	title, _, _ := strings.Cut(rng, "!")
	if strings.HasPrefix(title, "'") && strings.HasSuffix(title, "'") && len(title) >= 2 {
		title = strings.ReplaceAll(title[1:len(title)-1], "''", "'")
	}
	return title
}

func (f *fakeSpreadsheet) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	path := strings.TrimPrefix(r.URL.Path, "/v4/spreadsheets/"+testSpreadsheetID)
	var op string
	switch {
	case path == "" && r.Method == http.MethodGet:
		op = "get"
	case path == ":batchUpdate":
		op = "batchUpdate"
	case path == "/values:batchGet":
		op = "batchGet"
	case strings.HasPrefix(path, "/values/") && strings.HasSuffix(path, ":append"):
		op = "append"
	case strings.HasPrefix(path, "/values/") && strings.HasSuffix(path, ":clear"):
		op = "clear"
	case strings.HasPrefix(path, "/values/") && r.Method == http.MethodGet:
		op = "valuesGet"
	case strings.HasPrefix(path, "/values/") && r.Method == http.MethodPut:
		op = "update"
	default:
		http.Error(w, "unexpected "+r.Method+" "+r.URL.Path, http.StatusNotFound)
		return
	}
	f.calls[op]++
	if op == f.failPath {
		http.Error(w, `{"error":{"code":500,"message":"backend error"}}`, http.StatusInternalServerError)
		return
	}

	rng := strings.TrimPrefix(path, "/values/")
	rng = strings.TrimSuffix(strings.TrimSuffix(rng, ":append"), ":clear")

	var resp any
	switch op {
	case "get":
		ss := &gsheets.Spreadsheet{SpreadsheetId: testSpreadsheetID}
		for _, t := range f.tabs {
			ss.Sheets = append(ss.Sheets, &gsheets.Sheet{Properties: &gsheets.SheetProperties{
				SheetId: t.id, Title: t.title, Index: t.index,
			}})
		}
		resp = ss

	case "batchUpdate":
		var req gsheets.BatchUpdateSpreadsheetRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		out := &gsheets.BatchUpdateSpreadsheetResponse{SpreadsheetId: testSpreadsheetID}
		for _, rq := range req.Requests {
			f.requests = append(f.requests, rq)
			reply := &gsheets.Response{}
			switch {
			case rq.AddSheet != nil:
				if f.tab(rq.AddSheet.Properties.Title) != nil {
					http.Error(w, `{"error":{"code":400,"message":"sheet already exists"}}`, http.StatusBadRequest)
					return
				}
				id := rq.AddSheet.Properties.SheetId
				if id == 0 {
					id = f.nextID
					f.nextID++
				}
				t := &fakeTab{id: id, title: rq.AddSheet.Properties.Title, index: int64(len(f.tabs))}
				f.tabs = append(f.tabs, t)
				reply.AddSheet = &gsheets.AddSheetResponse{Properties: &gsheets.SheetProperties{SheetId: t.id, Title: t.title}}
			case rq.DeleteSheet != nil:
				for i, t := range f.tabs {
					if t.id == rq.DeleteSheet.SheetId {
						f.tabs = append(f.tabs[:i], f.tabs[i+1:]...)
						break
					}
				}
			case rq.UpdateSheetProperties != nil && strings.Contains(rq.UpdateSheetProperties.Fields, "title"):
				for _, t := range f.tabs {
					if t.id == rq.UpdateSheetProperties.Properties.SheetId {
						t.title = rq.UpdateSheetProperties.Properties.Title
					}
				}
			}
			out.Replies = append(out.Replies, reply)
		}
		sort.SliceStable(f.tabs, func(i, j int) bool { return f.tabs[i].index < f.tabs[j].index })
		resp = out

	case "batchGet":
		out := &gsheets.BatchGetValuesResponse{SpreadsheetId: testSpreadsheetID}
		for _, rng := range r.URL.Query()["ranges"] {
			vr := &gsheets.ValueRange{Range: rng}
			if t := f.tab(rangeTitle(rng)); t != nil && len(t.rows) > 0 {
				vr.Values = t.rows[:1]
			}
			out.ValueRanges = append(out.ValueRanges, vr)
		}
		resp = out

	case "valuesGet":
		vr := &gsheets.ValueRange{Range: rng}
		if t := f.tab(rangeTitle(rng)); t != nil && len(t.rows) > 0 {
			vr.Values = t.rows[:1]
		}
		resp = vr

	case "update", "append":
		var vr gsheets.ValueRange
		if err := json.NewDecoder(r.Body).Decode(&vr); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		t := f.tab(rangeTitle(rng))
		if t == nil {
			http.Error(w, "unknown tab "+rng, http.StatusBadRequest)
			return
		}
		if q := r.URL.Query().Get("valueInputOption"); q != valueInputOption {
			http.Error(w, "bad valueInputOption "+q, http.StatusBadRequest)
			return
		}
		if op == "append" && r.URL.Query().Get("insertDataOption") != insertDataOption {
			http.Error(w, "bad insertDataOption", http.StatusBadRequest)
			return
		}
		if op == "update" {
			t.rows = vr.Values
			resp = &gsheets.UpdateValuesResponse{UpdatedRows: int64(len(vr.Values))}
		} else {
			t.rows = append(t.rows, vr.Values...)
			resp = &gsheets.AppendValuesResponse{}
		}

	case "clear":
		if t := f.tab(rangeTitle(rng)); t != nil {
			t.rows = nil
		}
		resp = &gsheets.ClearValuesResponse{ClearedRange: rng}
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(resp)
}

func (f *fakeSpreadsheet) total() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, c := range f.calls {
		n += c
	}
	return n
}

func (f *fakeSpreadsheet) resetCalls() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = map[string]int{}
	f.requests = nil
}

func newTestSink(t *testing.T, fake *fakeSpreadsheet) *Sink {
	t.Helper()
	return newLimitedTestSink(t, fake, []ratelimit.Limit{{Count: 10_000, Per: time.Second}})
}

func newLimitedTestSink(t *testing.T, fake *fakeSpreadsheet, limits []ratelimit.Limit) *Sink {
	t.Helper()
	srv := httptest.NewServer(fake)
	t.Cleanup(srv.Close)

	logger, _ := logtest.NewNullLogger()
	s, err := New(context.Background(), Config{
		SpreadsheetID: testSpreadsheetID,
		RateLimits:    limits,
		Retry:         &httpclient.RetryConfig{},
		Logger:        logger,
	},
		option.WithEndpoint(srv.URL+"/"),
		option.WithoutAuthentication(),
	)
	require.NoError(t, err)
	return s
}
