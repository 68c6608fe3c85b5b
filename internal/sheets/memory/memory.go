package memory

import (
	"context"
	"sync"

	"tesouraria/internal/core"
	ports "tesouraria/internal/sheets"
)

// Export is one recorded ExportBalances call.
type Export struct {
	OwnerID string
	Year    int
	Rows    []core.PeriodTotals
}

// Recorder is an in-memory BalanceExporter used when no spreadsheet is
// configured and in tests.
type Recorder struct {
	mu      sync.Mutex
	exports []Export
	err     error
}

var _ ports.BalanceExporter = (*Recorder)(nil)

func New() *Recorder {
	return &Recorder{}
}

// FailWith makes every following export return err. A nil err clears it.
func (r *Recorder) FailWith(err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.err = err
}

func (r *Recorder) ExportBalances(_ context.Context, ownerID string, year int, rows []core.PeriodTotals) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return r.err
	}
	r.exports = append(r.exports, Export{
		OwnerID: ownerID,
		Year:    year,
		Rows:    append([]core.PeriodTotals(nil), rows...),
	})
	return nil
}

// Exports returns every recorded call in order.
func (r *Recorder) Exports() []Export {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Export(nil), r.exports...)
}

// Last returns the latest export for the owner.
func (r *Recorder) Last(ownerID string) (Export, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := len(r.exports) - 1; i >= 0; i-- {
		if r.exports[i].OwnerID == ownerID {
			return r.exports[i], true
		}
	}
	return Export{}, false
}
