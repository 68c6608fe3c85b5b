package http

import (
	"strings"

	"tesouraria/internal/core"
)

// Amounts leave the API as fixed two-decimal strings.

type entryRequest struct {
	Date        string      `json:"date"`
	Category    string      `json:"category"`
	Description string      `json:"description"`
	Amount      AmountField `json:"amount"`
	ReceiptRef  string      `json:"receipt_ref"`
}

// toEntry validates the wire fields that need parsing. The remaining rules
// are enforced by core.Entry.Validate in the service.
func (req entryRequest) toEntry(ownerID, entryID string) (core.Entry, error) {
	date, err := core.ParseDate(req.Date)
	if err != nil {
		return core.Entry{}, &core.ValidationError{Field: "date", Err: err}
	}
	category, err := core.ParseCategory(req.Category)
	if err != nil {
		return core.Entry{}, &core.ValidationError{Field: "category", Err: err}
	}
	amount, err := req.Amount.Decimal("amount")
	if err != nil {
		return core.Entry{}, err
	}
	return core.Entry{
		OwnerID:     ownerID,
		ID:          entryID,
		Date:        date,
		Category:    category,
		Description: sanitizeInput(req.Description),
		Amount:      amount,
		ReceiptRef:  strings.TrimSpace(req.ReceiptRef),
	}, nil
}

type entryResponse struct {
	ID            string `json:"id"`
	OwnerID       string `json:"owner_id"`
	Date          string `json:"date"`
	Category      string `json:"category"`
	CategoryLabel string `json:"category_label"`
	Description   string `json:"description"`
	Amount        string `json:"amount"`
	ReceiptRef    string `json:"receipt_ref,omitempty"`
}

func newEntryResponse(e core.Entry) entryResponse {
	return entryResponse{
		ID:            e.ID,
		OwnerID:       e.OwnerID,
		Date:          e.Date.String(),
		Category:      string(e.Category),
		CategoryLabel: e.Category.Label(),
		Description:   e.Description,
		Amount:        e.Amount.StringFixed(2),
		ReceiptRef:    e.ReceiptRef,
	}
}

func newEntryResponses(entries []core.Entry) []entryResponse {
	out := make([]entryResponse, 0, len(entries))
	for _, e := range entries {
		out = append(out, newEntryResponse(e))
	}
	return out
}

type configurationDTO struct {
	OwnerID            string      `json:"owner_id"`
	FiscalYear         int         `json:"fiscal_year"`
	OpeningBalance     AmountField `json:"opening_balance"`
	Organization       string      `json:"organization"`
	Federation         string      `json:"federation"`
	ActiveMembers      int         `json:"active_members"`
	CooperatingMembers int         `json:"cooperating_members"`
	Treasurer          string      `json:"treasurer"`
	Email              string      `json:"email,omitempty"`
	AdminID            string      `json:"admin_id,omitempty"`
}

func (d configurationDTO) toConfiguration(ownerID string) (core.Configuration, error) {
	opening, err := d.OpeningBalance.Decimal("opening_balance")
	if err != nil {
		return core.Configuration{}, err
	}
	return core.Configuration{
		OwnerID:            ownerID,
		FiscalYear:         d.FiscalYear,
		OpeningBalance:     opening,
		Organization:       sanitizeInput(d.Organization),
		Federation:         sanitizeInput(d.Federation),
		ActiveMembers:      d.ActiveMembers,
		CooperatingMembers: d.CooperatingMembers,
		Treasurer:          sanitizeInput(d.Treasurer),
		Email:              sanitizeInput(d.Email),
		AdminID:            sanitizeInput(d.AdminID),
	}, nil
}

func newConfigurationDTO(c core.Configuration) configurationDTO {
	return configurationDTO{
		OwnerID:            c.OwnerID,
		FiscalYear:         c.FiscalYear,
		OpeningBalance:     AmountField(c.OpeningBalance.StringFixed(2)),
		Organization:       c.Organization,
		Federation:         c.Federation,
		ActiveMembers:      c.ActiveMembers,
		CooperatingMembers: c.CooperatingMembers,
		Treasurer:          c.Treasurer,
		Email:              c.Email,
		AdminID:            c.AdminID,
	}
}

type provisionRequest struct {
	AdminID    string `json:"admin_id"`
	FiscalYear int    `json:"fiscal_year"`
}

type provisionResponse struct {
	Created       bool             `json:"created"`
	Configuration configurationDTO `json:"configuration"`
}

type totalsDTO struct {
	Year    int    `json:"year"`
	Month   int    `json:"month"`
	Opening string `json:"opening"`
	Income  string `json:"income"`
	Expense string `json:"expense"`
	Closing string `json:"closing"`
}

func newTotalsDTO(t core.PeriodTotals) totalsDTO {
	return totalsDTO{
		Year:    t.Year,
		Month:   t.Month,
		Opening: t.Opening.StringFixed(2),
		Income:  t.Income.StringFixed(2),
		Expense: t.Expense.StringFixed(2),
		Closing: t.Closing.StringFixed(2),
	}
}

type balanceDTO struct {
	Year    int    `json:"year"`
	Month   int    `json:"month"`
	Closing string `json:"closing"`
}

type recalculateResponse struct {
	Balances []balanceDTO `json:"balances"`
}

func newRecalculateResponse(balances []core.MonthlyBalance) recalculateResponse {
	out := recalculateResponse{Balances: make([]balanceDTO, 0, len(balances))}
	for _, b := range balances {
		out.Balances = append(out.Balances, balanceDTO{Year: b.Year, Month: b.Month, Closing: b.Closing.StringFixed(2)})
	}
	return out
}

type openingResponse struct {
	Year    int    `json:"year"`
	Month   int    `json:"month"`
	Opening string `json:"opening"`
}

type categoryTotalDTO struct {
	Category string `json:"category"`
	Label    string `json:"label"`
	Amount   string `json:"amount"`
}

type monthRowDTO struct {
	totalsDTO
	Entries []entryResponse `json:"entries"`
}

type reportDTO struct {
	OwnerID       string             `json:"owner_id"`
	FiscalYear    int                `json:"fiscal_year"`
	Configuration configurationDTO   `json:"configuration"`
	ByCategory    []categoryTotalDTO `json:"by_category"`
	Opening       string             `json:"opening"`
	TotalIncome   string             `json:"total_income"`
	TotalExpense  string             `json:"total_expense"`
	Closing       string             `json:"closing"`
	ClosingLabel  string             `json:"closing_label"` // e.g. "R$ 1.234,56"
	Months        []monthRowDTO      `json:"months"`
}

func newReportDTO(r core.YearReport) reportDTO {
	out := reportDTO{
		OwnerID:       r.OwnerID,
		FiscalYear:    r.FiscalYear,
		Configuration: newConfigurationDTO(r.Configuration),
		Opening:       r.Opening.StringFixed(2),
		TotalIncome:   r.TotalIncome.StringFixed(2),
		TotalExpense:  r.TotalExpense.StringFixed(2),
		Closing:       r.Closing.StringFixed(2),
		ClosingLabel:  core.FormatBRL(r.Closing),
		ByCategory:    make([]categoryTotalDTO, 0, len(r.ByCategory)),
		Months:        make([]monthRowDTO, 0, len(r.Months)),
	}
	for _, c := range r.ByCategory {
		out.ByCategory = append(out.ByCategory, categoryTotalDTO{
			Category: string(c.Category),
			Label:    c.Label,
			Amount:   c.Amount.StringFixed(2),
		})
	}
	for _, m := range r.Months {
		out.Months = append(out.Months, monthRowDTO{
			totalsDTO: newTotalsDTO(m.PeriodTotals),
			Entries:   newEntryResponses(m.Entries),
		})
	}
	return out
}
