// Package export renders the result set as JSON and CSV and writes the files
// to a blob store.
package export

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"go.uber.org/zap"

	"github.com/JakeFAU/catalog-crawler/internal/crawler"
)

// Content types of the export files.
const (
	ContentTypeJSON = "application/json"
	ContentTypeCSV  = "text/csv"
)

type column struct {
	label string
	field crawler.Field
}

// csvColumns is the fixed CSV layout. The specification-table extras are
// carried in JSON only.
var csvColumns = []column{
	{"Product ID", crawler.FieldProductID},
	{"Product URL", crawler.FieldProductURL},
	{"Image URL", crawler.FieldImageURL},
	{"Name", crawler.FieldName},
	{"Brand", crawler.FieldBrand},
	{"Style", crawler.FieldStyle},
	{"ABV", crawler.FieldABV},
	{"Description", crawler.FieldDescription},
	{"Rating", crawler.FieldRating},
	{"Review", crawler.FieldReview},
	{"Bundle", crawler.FieldBundle},
	{"Stock", crawler.FieldStock},
	{"Non-Member Price", crawler.FieldNonMemberPrice},
	{"Promo Price", crawler.FieldPromoPrice},
	{"Discount Price", crawler.FieldDiscountPrice},
	{"Member Price", crawler.FieldMemberPrice},
}

// WriteJSON writes records as an indented JSON array.
func WriteJSON(w io.Writer, records []crawler.ProductRecord) error {
	if records == nil {
		records = []crawler.ProductRecord{}
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	if err := enc.Encode(records); err != nil {
		return fmt.Errorf("encode records: %w", err)
	}
	return nil
}

// WriteCSV writes a header line followed by one line per record. Every value
// is double-quoted with embedded quotes doubled; lines are joined by "\n"
// with no trailing newline.
func WriteCSV(w io.Writer, records []crawler.ProductRecord) error {
	lines := make([]string, 0, len(records)+1)
	labels := make([]string, len(csvColumns))
	for i, c := range csvColumns {
		labels[i] = c.label
	}
	lines = append(lines, strings.Join(labels, ","))

	values := make([]string, len(csvColumns))
	for _, rec := range records {
		for i, c := range csvColumns {
			values[i] = quote(rec.Get(c.field))
		}
		lines = append(lines, strings.Join(values, ","))
	}
	if _, err := io.WriteString(w, strings.Join(lines, "\n")); err != nil {
		return fmt.Errorf("write csv: %w", err)
	}
	return nil
}

func quote(v string) string {
	return `"` + strings.ReplaceAll(v, `"`, `""`) + `"`
}

// Result locates the files of one export.
type Result struct {
	RunID   string `json:"run_id"`
	Records int    `json:"records"`
	JSONURI string `json:"json_uri"`
	CSVURI  string `json:"csv_uri"`
}

// Exporter writes both export files to a blob store.
type Exporter struct {
	blobs  crawler.BlobStore
	clock  crawler.Clock
	logger *zap.Logger
}

// NewExporter builds an exporter over blobs.
func NewExporter(blobs crawler.BlobStore, clock crawler.Clock, logger *zap.Logger) *Exporter {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Exporter{blobs: blobs, clock: clock, logger: logger.Named("export")}
}

// Export writes <run>/records.json and <run>/records.csv.
func (e *Exporter) Export(ctx context.Context, runID string, records []crawler.ProductRecord) (Result, error) {
	if runID == "" {
		runID = "run-" + e.clock.Now().Format("20060102T150405Z")
	}
	res := Result{RunID: runID, Records: len(records)}

	var buf bytes.Buffer
	if err := WriteJSON(&buf, records); err != nil {
		return Result{}, err
	}
	uri, err := e.blobs.PutObject(ctx, runID+"/records.json", ContentTypeJSON, &buf)
	if err != nil {
		return Result{}, fmt.Errorf("put json export: %w", err)
	}
	res.JSONURI = uri

	buf.Reset()
	if err := WriteCSV(&buf, records); err != nil {
		return Result{}, err
	}
	uri, err = e.blobs.PutObject(ctx, runID+"/records.csv", ContentTypeCSV, &buf)
	if err != nil {
		return Result{}, fmt.Errorf("put csv export: %w", err)
	}
	res.CSVURI = uri

	e.logger.Info("exported records",
		zap.String("run_id", runID),
		zap.Int("records", len(records)),
		zap.String("json_uri", res.JSONURI),
		zap.String("csv_uri", res.CSVURI),
	)
	return res, nil
}
