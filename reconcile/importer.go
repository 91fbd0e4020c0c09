package reconcile

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/A-tamer/hospital-management-system/model"
	"github.com/A-tamer/hospital-management-system/util"
	"github.com/rs/zerolog"
)

// CodeStrategy decides where the import's running code counter starts.
type CodeStrategy string

const (
	// CodeStrategyBatch numbers imported records from 0001 within the batch
	// without looking at the store. Codes may collide with existing records;
	// the store rejects those rows.
	CodeStrategyBatch CodeStrategy = "batch"
	// CodeStrategyLive seeds the counter from the highest serial already
	// stored in the current month, continuing the live sequence.
	CodeStrategyLive CodeStrategy = "live"
)

// ParseCodeStrategy validates a configured strategy name. Empty means batch.
func ParseCodeStrategy(s string) (CodeStrategy, error) {
	switch CodeStrategy(strings.ToLower(strings.TrimSpace(s))) {
	case "", CodeStrategyBatch:
		return CodeStrategyBatch, nil
	case CodeStrategyLive:
		return CodeStrategyLive, nil
	}
	return "", fmt.Errorf("unknown import code strategy %q", s)
}

// ImportStore is what the importer needs from persistence.
type ImportStore interface {
	PatientSaver
	PatientLister
}

// ImportResult reports the outcome of one batch. Every row is either counted
// in SuccessCount or has exactly one entry in Errors.
type ImportResult struct {
	SuccessCount int      `json:"successCount"`
	Errors       []string `json:"errors"`
}

// Importer normalizes and persists batches of raw rows, isolating failures
// per row.
type Importer struct {
	store    ImportStore
	strategy CodeStrategy
	now      func() time.Time
	log      zerolog.Logger
}

// ImporterOption configures an Importer.
type ImporterOption func(*Importer)

// WithCodeStrategy selects how codes are numbered for rows without one.
func WithCodeStrategy(s CodeStrategy) ImporterOption {
	return func(im *Importer) {
		im.strategy = s
	}
}

// WithImportClock overrides the importer's time source.
func WithImportClock(now func() time.Time) ImporterOption {
	return func(im *Importer) {
		im.now = now
	}
}

// WithImportLogger sets the logger used for per-row failures.
func WithImportLogger(l zerolog.Logger) ImporterOption {
	return func(im *Importer) {
		im.log = l
	}
}

// NewImporter creates an Importer over store.
func NewImporter(store ImportStore, opts ...ImporterOption) *Importer {
	im := &Importer{
		store:    store,
		strategy: CodeStrategyBatch,
		now:      time.Now,
		log:      util.Logger(),
	}
	for _, opt := range opts {
		opt(im)
	}
	return im
}

// ImportBatch imports rows in order. It never stops early: a row that fails
// to normalize or to save is reported in Errors and the next row is tried.
func (im *Importer) ImportBatch(ctx context.Context, rows []RawRecord, shape Shape) ImportResult {
	normalizer := NewNormalizer(WithClock(im.now), WithCodeSequence(NewBatchSequence(im.seed(ctx))))

	records := make([]model.Patient, len(rows))
	failures := make([]error, len(rows))
	labels := make([]string, len(rows))

	// Normalization stays sequential so the code counter advances in row order.
	for i, row := range rows {
		p, err := normalizer.Normalize(row, shape)
		if err != nil {
			failures[i] = err
			labels[i] = rowLabel(row, shape, i)
			continue
		}
		records[i] = p
		labels[i] = recordLabel(p, i)
	}

	im.persist(ctx, records, failures)

	result := ImportResult{Errors: []string{}}
	for i, err := range failures {
		if err == nil {
			result.SuccessCount++
			continue
		}
		msg := fmt.Sprintf("Failed to import %s: %s", labels[i], err.Error())
		im.log.Warn().Str("shape", shape.String()).Int("row", i+1).Err(err).Msg("patient import row failed")
		result.Errors = append(result.Errors, msg)
	}
	im.log.Info().
		Str("shape", shape.String()).
		Int("rows", len(rows)).
		Int("imported", result.SuccessCount).
		Int("failed", len(result.Errors)).
		Msg("patient import finished")
	return result
}

// persist saves the normalized records in row order, writing save failures
// into failures at the row's index. When two rows carry the same code the
// earlier row keeps it.
func (im *Importer) persist(ctx context.Context, records []model.Patient, failures []error) {
	for i := range records {
		if failures[i] != nil {
			continue
		}
		if err := ctx.Err(); err != nil {
			failures[i] = err
			continue
		}
		p := records[i]
		if _, err := im.store.Save(ctx, &p); err != nil {
			failures[i] = storeErr("save", err)
			continue
		}
		records[i] = p
	}
}

// seed picks the first serial of the batch counter.
func (im *Importer) seed(ctx context.Context) int {
	if im.strategy != CodeStrategyLive {
		return 1
	}
	existing, err := im.store.ListAll(ctx)
	if err != nil {
		im.log.Error().Err(err).Msg("listing patients for live code seed failed, numbering from 1")
		return 1
	}
	return MaxSerial(codesOf(existing), im.now()) + 1
}

// rowLabel identifies a raw row in error messages: its code, else its name,
// else its 1-based position.
func rowLabel(row RawRecord, shape Shape, index int) string {
	src := source{raw: row, shape: shape}
	if v, ok := src.lookup(fieldCode); ok {
		if code := text(v); code != "" {
			return code
		}
	}
	if src.spreadsheet() {
		if h, ok := src.findHeader(nameMatchers); ok {
			if name := text(row[h]); name != "" {
				return name
			}
		}
	} else {
		for _, f := range []string{fieldFullNameArabic, fieldFullName, fieldName} {
			if v, ok := src.lookup(f); ok {
				if name := text(v); name != "" {
					return name
				}
			}
		}
	}
	return fmt.Sprintf("row %d", index+1)
}

func recordLabel(p model.Patient, index int) string {
	if p.Code != "" {
		return p.Code
	}
	if p.FullNameArabic != "" {
		return p.FullNameArabic
	}
	return fmt.Sprintf("row %d", index+1)
}
