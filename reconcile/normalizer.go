package reconcile

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/A-tamer/hospital-management-system/model"
)

// CodeSequence hands out patient codes for records that arrive without one.
type CodeSequence interface {
	Next(asOf time.Time) string
}

// BatchSequence numbers codes sequentially within one import, starting from
// a seed. It does not consult the store, so its codes can collide with
// existing records; the store's uniqueness check rejects those rows.
type BatchSequence struct {
	mu   sync.Mutex
	next int
}

// NewBatchSequence returns a sequence whose first serial is start (at least 1).
func NewBatchSequence(start int) *BatchSequence {
	if start < 1 {
		start = 1
	}
	return &BatchSequence{next: start}
}

// Next returns the code for the current serial in asOf's bucket and advances.
func (s *BatchSequence) Next(asOf time.Time) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	code := FormatCode(asOf.Year(), asOf.Month(), s.next)
	s.next++
	return code
}

// Normalizer maps raw records of any supported shape onto model.Patient.
type Normalizer struct {
	now   func() time.Time
	codes CodeSequence
}

// NormalizerOption configures a Normalizer.
type NormalizerOption func(*Normalizer)

// WithClock overrides the time source used for defaults and timestamps.
func WithClock(now func() time.Time) NormalizerOption {
	return func(n *Normalizer) {
		n.now = now
	}
}

// WithCodeSequence assigns codes to records that do not carry one.
func WithCodeSequence(seq CodeSequence) NormalizerOption {
	return func(n *Normalizer) {
		n.codes = seq
	}
}

// NewNormalizer creates a Normalizer. Without a code sequence, records that
// lack a code keep an empty one and the caller must allocate it.
func NewNormalizer(opts ...NormalizerOption) *Normalizer {
	n := &Normalizer{now: time.Now}
	for _, opt := range opts {
		opt(n)
	}
	return n
}

// Normalize builds a complete patient record from raw. Only a missing name
// fails; every other gap is filled with a default. raw is never modified.
func (n *Normalizer) Normalize(raw RawRecord, shape Shape) (model.Patient, error) {
	src := source{raw: raw, shape: shape}
	env := ruleEnv{now: n.now(), codes: n.codes}

	var out model.Patient
	for _, r := range normalizationRules {
		if err := r.apply(src, env, &out); err != nil {
			return model.Patient{}, err
		}
	}
	return out, nil
}

// ToRaw converts a stored record back to the JSON export shape.
func ToRaw(p model.Patient) (RawRecord, error) {
	b, err := json.Marshal(p)
	if err != nil {
		return nil, err
	}
	var raw RawRecord
	if err := json.Unmarshal(b, &raw); err != nil {
		return nil, err
	}
	return raw, nil
}
