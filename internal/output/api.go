package output

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/jakopako/goapply/internal/types"
)

// APIWriter posts the audit log in batches to an http endpoint.
type APIWriter struct {
	*WriterConfig
	client *http.Client
	logger *slog.Logger
}

// NewAPIWriter returns a new APIWriter
func NewAPIWriter(wc *WriterConfig) (*APIWriter, error) {
	if wc.Uri == "" {
		return nil, errors.New("uri needs to be specified for the APIWriter")
	}
	if wc.BatchSize == 0 {
		wc.BatchSize = 100 // default
	}
	return &APIWriter{
		WriterConfig: wc,
		client: &http.Client{
			Timeout: time.Second * 60,
		},
		logger: slog.With(slog.String("writer", string(API_WRITER_TYPE))),
	}, nil
}

func (w *APIWriter) Write(recordChan <-chan types.ListingRecord) {
	nrRecordsWritten := 0
	batch := []types.ListingRecord{}
	for record := range recordChan {
		batch = append(batch, record)
		if len(batch) == w.BatchSize {
			nrRecordsWritten += w.writeBatch(batch)
			batch = []types.ListingRecord{}
		}
	}
	if len(batch) > 0 {
		nrRecordsWritten += w.writeBatch(batch)
	}
	w.logger.Info(fmt.Sprintf("wrote %d records to the api", nrRecordsWritten))
}

func (w *APIWriter) writeBatch(batch []types.ListingRecord) int {
	if err := w.post(w.Uri, batch, http.StatusCreated); err != nil {
		w.logger.Error(fmt.Sprintf("error while posting batch: %v", err))
		return 0
	}
	return len(batch)
}

func (w *APIWriter) WriteSummary(summary types.RunSummary) {
	if w.UriSummary == "" {
		return
	}
	// the records were already sent, the summary only carries the counters
	summary.Log = nil
	if err := w.post(w.UriSummary, summary, http.StatusOK); err != nil {
		w.logger.Error(fmt.Sprintf("error while posting run summary: %v", err))
		return
	}
	w.logger.Info(fmt.Sprintf("successfully posted summary of run %s", summary.RunID))
}

func (w *APIWriter) post(uri string, payload any, expectedStatus int) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	req, err := http.NewRequest(http.MethodPost, uri, bytes.NewBuffer(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if w.User != "" {
		req.SetBasicAuth(w.User, w.Password)
	}
	resp, err := w.client.Do(req)
	if err != nil {
		w.logger.Debug(fmt.Sprintf("post request body %s", body))
		return fmt.Errorf("error while sending post request: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != expectedStatus {
		respBody, err := io.ReadAll(resp.Body)
		if err != nil {
			return fmt.Errorf("error while reading post request response: %v", err)
		}
		return fmt.Errorf("unexpected status code %d, response: %s", resp.StatusCode, respBody)
	}
	return nil
}
