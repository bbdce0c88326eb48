package output

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/jakopako/goapply/internal/types"
)

// StdoutWriter represents a writer that writes to stdout
type StdoutWriter struct {
	out    io.Writer
	logger *slog.Logger
}

// NewStdoutWriter returns a new StdoutWriter
func NewStdoutWriter(wc *WriterConfig) *StdoutWriter {
	return &StdoutWriter{
		out:    os.Stdout,
		logger: slog.With(slog.String("writer", string(STDOUT_WRITER_TYPE))),
	}
}

func (w *StdoutWriter) Write(recordChan <-chan types.ListingRecord) {
	for record := range recordChan {
		// json.Marshal would escape html characters in job titles
		buffer := &bytes.Buffer{}
		encoder := json.NewEncoder(buffer)
		encoder.SetEscapeHTML(false)
		if err := encoder.Encode(record); err != nil {
			w.logger.Error(fmt.Sprintf("error while writing record %v: %v", record, err))
			continue
		}
		fmt.Fprint(w.out, buffer.String())
	}
}

// WriteSummary does nothing, the report already goes to stdout.
func (w *StdoutWriter) WriteSummary(summary types.RunSummary) {}
