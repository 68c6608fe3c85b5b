package google

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"sync"

	"tesouraria/internal/core"
	"tesouraria/internal/log"
	ports "tesouraria/internal/sheets"

	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"
)

// DefaultBalancesSheet is the sheet base name used when none is configured.
const DefaultBalancesSheet = "Saldos"

var header = []any{"Owner", "Month", "Opening", "Income", "Expense", "Closing"}

type Client struct {
	values        valuesAPI
	spreadsheetID string
	// base name without year (e.g. "Saldos"); the fiscal year is prefixed per export
	balancesBase string

	// mu spans the read of used rows and the write planned from it, so
	// concurrent exports never append to the same rows.
	mu sync.Mutex
}

// valuesAPI is the part of the Sheets values API the exporter uses.
type valuesAPI interface {
	Get(ctx context.Context, spreadsheetID, rng string) ([][]any, error)
	BatchUpdate(ctx context.Context, spreadsheetID string, req *gsheet.BatchUpdateValuesRequest) error
}

type serviceValues struct {
	svc *gsheet.Service
}

func (v serviceValues) Get(ctx context.Context, spreadsheetID, rng string) ([][]any, error) {
	resp, err := v.svc.Spreadsheets.Values.Get(spreadsheetID, rng).Context(ctx).Do()
	if err != nil {
		return nil, err
	}
	return resp.Values, nil
}

func (v serviceValues) BatchUpdate(ctx context.Context, spreadsheetID string, req *gsheet.BatchUpdateValuesRequest) error {
	_, err := v.svc.Spreadsheets.Values.BatchUpdate(spreadsheetID, req).Context(ctx).Do()
	return err
}

// Ensure interface conformance
var _ ports.BalanceExporter = (*Client)(nil)

// New creates a Sheets client with service account credentials taken from
// GOOGLE_SERVICE_ACCOUNT_JSON, GOOGLE_SERVICE_ACCOUNT_FILE or
// GOOGLE_APPLICATION_CREDENTIALS.
func New(ctx context.Context, spreadsheetID, balancesSheet string) (*Client, error) {
	spreadsheetID = strings.TrimSpace(spreadsheetID)
	if spreadsheetID == "" {
		return nil, errors.New("missing spreadsheet id")
	}
	balancesSheet = strings.TrimSpace(balancesSheet)
	if balancesSheet == "" {
		balancesSheet = DefaultBalancesSheet
	}

	svc, err := newSheetsService(ctx)
	if err != nil {
		return nil, fmt.Errorf("sheets service: %w", err)
	}

	return newClient(serviceValues{svc: svc}, spreadsheetID, balancesSheet), nil
}

func newClient(values valuesAPI, spreadsheetID, balancesSheet string) *Client {
	return &Client{
		values:        values,
		spreadsheetID: spreadsheetID,
		balancesBase:  balancesSheet,
	}
}

// newSheetsService initializes a Sheets Service using Service Account credentials.
func newSheetsService(ctx context.Context) (*gsheet.Service, error) {
	serviceAccountJSON := strings.TrimSpace(os.Getenv("GOOGLE_SERVICE_ACCOUNT_JSON"))
	serviceAccountFile := strings.TrimSpace(os.Getenv("GOOGLE_SERVICE_ACCOUNT_FILE"))

	// Also check the standard Google Cloud environment variable
	if serviceAccountJSON == "" && serviceAccountFile == "" {
		serviceAccountFile = strings.TrimSpace(os.Getenv("GOOGLE_APPLICATION_CREDENTIALS"))
	}

	var credentialsJSON []byte
	var err error

	switch {
	case serviceAccountJSON != "":
		slog.InfoContext(ctx, "Using inline JSON credentials")
		credentialsJSON = []byte(serviceAccountJSON)
	case serviceAccountFile != "":
		slog.InfoContext(ctx, "Reading credentials from file", "path", serviceAccountFile)
		credentialsJSON, err = os.ReadFile(serviceAccountFile)
		if err != nil {
			return nil, fmt.Errorf("read service account file: %w", err)
		}
	default:
		return nil, errors.New("missing service account credentials (set GOOGLE_SERVICE_ACCOUNT_JSON, GOOGLE_SERVICE_ACCOUNT_FILE, or GOOGLE_APPLICATION_CREDENTIALS)")
	}

	service, err := gsheet.NewService(ctx,
		goption.WithCredentialsJSON(credentialsJSON),
		goption.WithScopes(gsheet.SpreadsheetsScope))
	if err != nil {
		return nil, fmt.Errorf("create sheets service: %w", err)
	}

	slog.InfoContext(ctx, "Google Sheets service created successfully")
	return service, nil
}

// ExportBalances implements sheets.BalanceExporter. Existing rows are
// matched on the owner and month columns and overwritten in place, new
// months are appended after the last used row.
func (c *Client) ExportBalances(ctx context.Context, ownerID string, year int, rows []core.PeriodTotals) error {
	if c.values == nil {
		return errors.New("sheets service not initialized")
	}
	if len(rows) == 0 {
		return nil
	}
	sheet := yearPrefixedName(c.balancesBase, year)

	c.mu.Lock()
	defer c.mu.Unlock()

	existing, err := c.values.Get(ctx, c.spreadsheetID, fmt.Sprintf("%s!A:B", sheet))
	if err != nil {
		return fmt.Errorf("read existing rows of %s: %w", sheet, err)
	}

	req := &gsheet.BatchUpdateValuesRequest{
		ValueInputOption: "USER_ENTERED",
		Data:             planRows(sheet, existing, ownerID, rows),
	}
	if err := c.values.BatchUpdate(ctx, c.spreadsheetID, req); err != nil {
		return fmt.Errorf("write balances to %s: %w", sheet, err)
	}

	slog.InfoContext(ctx, "Balances exported to Google Sheets",
		log.FieldOwnerID, ownerID,
		log.FieldSheet, sheet,
		log.FieldRows, len(rows))
	return nil
}

// planRows maps every period to the range it is written to. existing holds
// the A:B values currently in the sheet, header included.
func planRows(sheet string, existing [][]any, ownerID string, rows []core.PeriodTotals) []*gsheet.ValueRange {
	var data []*gsheet.ValueRange
	if len(existing) == 0 {
		data = append(data, &gsheet.ValueRange{
			Range:  fmt.Sprintf("%s!A1:F1", sheet),
			Values: [][]any{header},
		})
		existing = [][]any{header[:2]}
	}

	index := make(map[int]int) // month -> 1-based sheet row
	for i, r := range existing {
		cells := toStrings(r)
		if len(cells) < 2 || cells[0] != ownerID {
			continue
		}
		if m, err := strconv.Atoi(cells[1]); err == nil {
			index[m] = i + 1
		}
	}

	next := len(existing) + 1
	for _, t := range rows {
		row, ok := index[t.Month]
		if !ok {
			row = next
			next++
		}
		data = append(data, &gsheet.ValueRange{
			Range: fmt.Sprintf("%s!A%d:F%d", sheet, row, row),
			Values: [][]any{{
				ownerID,
				t.Month,
				t.Opening.InexactFloat64(),
				t.Income.InexactFloat64(),
				t.Expense.InexactFloat64(),
				t.Closing.InexactFloat64(),
			}},
		})
	}
	return data
}

func toStrings(in []interface{}) []string {
	out := make([]string, len(in))
	for i, v := range in {
		out[i] = strings.TrimSpace(fmt.Sprint(v))
	}
	return out
}

// yearPrefixedName returns "<year> <base>" unless base already starts with a 4-digit year.
func yearPrefixedName(base string, year int) string {
	base = strings.TrimSpace(base)
	if base == "" {
		return base
	}
	if len(base) >= 5 {
		if y, err := strconv.Atoi(base[0:4]); err == nil && base[4] == ' ' && y > 1900 && y < 3000 {
			return base
		}
	}
	return fmt.Sprintf("%d %s", year, base)
}
