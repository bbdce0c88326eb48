package output

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path"
	"strings"
	"testing"
	"time"

	"github.com/jakopako/goapply/internal/types"
)

func testRecords() []types.ListingRecord {
	at := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	return []types.ListingRecord{
		{RunID: "run-1", Seq: 1, ListingID: "42", Page: 1, Title: "Go <Developer>", Company: "Gopher Inc", Outcome: types.Applied(), RecordedAt: at},
		{RunID: "run-1", Seq: 2, ListingID: "43", Page: 1, Outcome: types.Skipped(types.ReasonApplyEntryUnavailable), RecordedAt: at},
		{RunID: "run-1", Seq: 3, ListingID: "44", Page: 2, Outcome: types.Failed(types.ReasonCouldNotClose), RecordedAt: at},
		{RunID: "run-1", Seq: 4, ListingID: "45", Page: 2, Outcome: types.Skipped(types.ReasonApplyEntryUnavailable), RecordedAt: at},
	}
}

func testSummary() types.RunSummary {
	return types.RunSummary{RunID: "run-1", Applied: 1, Skipped: 3, Log: testRecords()}
}

func feed(w Writer, records []types.ListingRecord) {
	c := make(chan types.ListingRecord)
	done := make(chan struct{})
	go func() {
		w.Write(c)
		close(done)
	}()
	for _, r := range records {
		c <- r
	}
	close(c)
	<-done
}

func TestStdoutWriter(t *testing.T) {
	buf := &bytes.Buffer{}
	w := NewStdoutWriter(&WriterConfig{})
	w.out = buf

	feed(w, testRecords())

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 4 {
		t.Fatalf("expected 4 lines, got %d: %s", len(lines), buf.String())
	}
	if !strings.Contains(lines[0], `"title":"Go <Developer>"`) {
		t.Errorf("expected unescaped title, got %s", lines[0])
	}
	var rec types.ListingRecord
	if err := json.Unmarshal([]byte(lines[2]), &rec); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.ListingID != "44" || rec.Outcome.Kind != types.OutcomeFailed || rec.Outcome.Reason != types.ReasonCouldNotClose {
		t.Errorf("unexpected record %+v", rec)
	}
}

func TestFileWriter(t *testing.T) {
	dir := path.Join(t.TempDir(), "audit")
	w, err := NewFileWriter(&WriterConfig{FileDir: dir})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	feed(w, testRecords())
	w.WriteSummary(testSummary())

	content, err := os.ReadFile(path.Join(dir, recordsFilename))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var records []types.ListingRecord
	if err := json.Unmarshal(content, &records); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(records) != 4 || records[3].Seq != 4 {
		t.Errorf("unexpected records %+v", records)
	}

	content, err = os.ReadFile(path.Join(dir, summaryFilename))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var summary types.RunSummary
	if err := json.Unmarshal(content, &summary); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if summary.Applied != 1 || summary.Skipped != 3 {
		t.Errorf("unexpected summary %+v", summary)
	}
}

func TestNewWriter(t *testing.T) {
	tests := []struct {
		wc      WriterConfig
		wantErr bool
	}{
		{WriterConfig{Type: STDOUT_WRITER_TYPE}, false},
		{WriterConfig{}, false},
		{WriterConfig{Type: FILE_WRITER_TYPE}, true},
		{WriterConfig{Type: API_WRITER_TYPE}, true},
		{WriterConfig{Type: SQLITE_WRITER_TYPE, DSN: path.Join(t.TempDir(), "goapply.db")}, false},
		{WriterConfig{Type: POSTGRES_WRITER_TYPE}, true},
		{WriterConfig{Type: "carrier-pigeon"}, true},
	}
	for _, tt := range tests {
		w, err := NewWriter(&tt.wc)
		if (err != nil) != tt.wantErr {
			t.Errorf("NewWriter(%q): expected error %v, got %v", tt.wc.Type, tt.wantErr, err)
		}
		if s, ok := w.(*SQLiteWriter); ok {
			s.WriteSummary(types.RunSummary{RunID: "empty"})
		}
	}
}

func TestPrintReport(t *testing.T) {
	buf := &bytes.Buffer{}
	if err := PrintReport(buf, testSummary()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	out := buf.String()
	if !strings.HasPrefix(out, "run run-1: applied to 1 jobs, skipped 3 jobs (1 failed)\n") {
		t.Errorf("unexpected report header: %s", out)
	}
	table := out[strings.Index(out, "\n")+1:]
	applied := strings.Index(table, "applied")
	entry := strings.Index(table, types.ReasonApplyEntryUnavailable)
	closeFail := strings.Index(table, types.ReasonCouldNotClose)
	if applied < 0 || entry < 0 || closeFail < 0 || !(applied < entry && entry < closeFail) {
		t.Errorf("expected applied, skipped and failed rows in order:\n%s", out)
	}
	if strings.Count(out, types.ReasonApplyEntryUnavailable) != 1 {
		t.Errorf("expected one row per reason:\n%s", out)
	}
}

func TestAPIWriter(t *testing.T) {
	batches := [][]types.ListingRecord{}
	var summary types.RunSummary
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if user, pass, ok := r.BasicAuth(); !ok || user != "bot" || pass != "secret" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		switch r.URL.Path {
		case "/records":
			var batch []types.ListingRecord
			if err := json.NewDecoder(r.Body).Decode(&batch); err != nil {
				w.WriteHeader(http.StatusBadRequest)
				return
			}
			batches = append(batches, batch)
			w.WriteHeader(http.StatusCreated)
		case "/summary":
			if err := json.NewDecoder(r.Body).Decode(&summary); err != nil {
				w.WriteHeader(http.StatusBadRequest)
				return
			}
			w.WriteHeader(http.StatusOK)
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer ts.Close()

	w, err := NewAPIWriter(&WriterConfig{
		Uri:        ts.URL + "/records",
		UriSummary: ts.URL + "/summary",
		User:       "bot",
		Password:   "secret",
		BatchSize:  3,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	feed(w, testRecords())
	w.WriteSummary(testSummary())

	if len(batches) != 2 || len(batches[0]) != 3 || len(batches[1]) != 1 {
		t.Errorf("expected batches of 3 and 1, got %v", batches)
	}
	if summary.RunID != "run-1" || summary.Applied != 1 || summary.Skipped != 3 {
		t.Errorf("unexpected summary %+v", summary)
	}
	if len(summary.Log) != 0 {
		t.Errorf("the summary should not repeat the records, got %d", len(summary.Log))
	}
}
