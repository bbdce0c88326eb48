package output

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path"

	"github.com/jakopako/goapply/internal/types"
)

const (
	recordsFilename = "listings.json"
	summaryFilename = "summary.json"
)

// FileWriter represents a writer that writes to a file
type FileWriter struct {
	*WriterConfig
	logger *slog.Logger
}

// NewFileWriter returns a new FileWriter
func NewFileWriter(wc *WriterConfig) (*FileWriter, error) {
	if wc.FileDir == "" {
		return nil, errors.New("filedir needs to be specified for the FileWriter")
	}

	if err := os.MkdirAll(wc.FileDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create directory %s: %w", wc.FileDir, err)
	}

	return &FileWriter{
		WriterConfig: wc,
		logger:       slog.With(slog.String("writer", string(FILE_WRITER_TYPE))),
	}, nil
}

func (w *FileWriter) Write(recordChan <-chan types.ListingRecord) {
	filepath := path.Join(w.FileDir, recordsFilename)
	allRecords := []types.ListingRecord{}
	for record := range recordChan {
		allRecords = append(allRecords, record)
	}

	// we don't want json.Marshal to escape html characters in job titles
	buffer := &bytes.Buffer{}
	encoder := json.NewEncoder(buffer)
	encoder.SetEscapeHTML(false)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(allRecords); err != nil {
		w.logger.Error(fmt.Sprintf("error while encoding records: %v", err))
		return
	}
	if err := os.WriteFile(filepath, buffer.Bytes(), 0644); err != nil {
		w.logger.Error(fmt.Sprintf("error while writing records json to file: %v", err))
	} else {
		w.logger.Info(fmt.Sprintf("wrote %d records to file %s", len(allRecords), filepath))
	}
}

func (w *FileWriter) WriteSummary(summary types.RunSummary) {
	filepath := path.Join(w.FileDir, summaryFilename)
	summaryJson, err := json.MarshalIndent(summary, "", "  ")
	if err != nil {
		w.logger.Error(fmt.Sprintf("error while marshalling summary json: %v", err))
		return
	}

	if err = os.WriteFile(filepath, summaryJson, 0644); err != nil {
		w.logger.Error(fmt.Sprintf("error while writing summary json to file: %v", err))
	} else {
		w.logger.Info(fmt.Sprintf("wrote summary to file %s", filepath))
	}
}
