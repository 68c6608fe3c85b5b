package sheets

import (
	"context"

	"tesouraria/internal/core"
)

// Ports for outbound adapters.
type (
	// BalanceExporter mirrors an owner's monthly chain to an external sheet.
	BalanceExporter interface {
		// ExportBalances writes one row per month, replacing rows already
		// exported for the same owner and month.
		ExportBalances(ctx context.Context, ownerID string, year int, rows []core.PeriodTotals) error
	}
)
