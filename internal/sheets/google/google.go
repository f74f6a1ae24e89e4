package google

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	ports "cospese/internal/sheets"

	oauthgoogle "golang.org/x/oauth2/google"
	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"
)

var _ ports.LedgerWriter = (*Client)(nil)

// Options configure the ledger client.
type Options struct {
	SpreadsheetID string
	// SheetName is the base sheet name; the balanced year is prefixed,
	// e.g. "2024 Ledger".
	SheetName       string
	CredentialsJSON string
	CredentialsFile string
}

// valuesAPI is the subset of the Sheets values service the client uses.
type valuesAPI interface {
	Get(ctx context.Context, rng string) ([][]any, error)
	Update(ctx context.Context, rng string, values [][]any) error
}

type Client struct {
	values        valuesAPI
	spreadsheetID string
	sheetBase     string
}

// New creates a ledger client authenticated with service account
// credentials.
func New(ctx context.Context, opts Options) (*Client, error) {
	if strings.TrimSpace(opts.SpreadsheetID) == "" {
		return nil, errors.New("missing spreadsheet id")
	}
	svc, err := newSheetsService(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("sheets service: %w", err)
	}
	return newClient(&serviceValues{svc: svc, spreadsheetID: opts.SpreadsheetID}, opts), nil
}

func newClient(values valuesAPI, opts Options) *Client {
	base := strings.TrimSpace(opts.SheetName)
	if base == "" {
		base = "Ledger"
	}
	return &Client{values: values, spreadsheetID: opts.SpreadsheetID, sheetBase: base}
}

// newSheetsService initializes a Sheets service from inline JSON, a file, or
// GOOGLE_APPLICATION_CREDENTIALS.
func newSheetsService(ctx context.Context, opts Options) (*gsheet.Service, error) {
	credentialsFile := strings.TrimSpace(opts.CredentialsFile)
	if opts.CredentialsJSON == "" && credentialsFile == "" {
		credentialsFile = strings.TrimSpace(os.Getenv("GOOGLE_APPLICATION_CREDENTIALS"))
	}

	var credentialsJSON []byte
	switch {
	case opts.CredentialsJSON != "":
		credentialsJSON = []byte(opts.CredentialsJSON)
	case credentialsFile != "":
		b, err := os.ReadFile(credentialsFile)
		if err != nil {
			return nil, fmt.Errorf("read service account file: %w", err)
		}
		credentialsJSON = b
	default:
		return nil, errors.New("missing service account credentials (set GOOGLE_SERVICE_ACCOUNT_JSON, GOOGLE_SERVICE_ACCOUNT_FILE, or GOOGLE_APPLICATION_CREDENTIALS)")
	}

	creds, err := oauthgoogle.CredentialsFromJSON(ctx, credentialsJSON, gsheet.SpreadsheetsScope)
	if err != nil {
		return nil, fmt.Errorf("parse service account credentials: %w", err)
	}
	service, err := gsheet.NewService(ctx, goption.WithCredentials(creds))
	if err != nil {
		return nil, fmt.Errorf("create sheets service: %w", err)
	}
	slog.InfoContext(ctx, "Google Sheets service created", "spreadsheet_id", opts.SpreadsheetID)
	return service, nil
}

type serviceValues struct {
	svc           *gsheet.Service
	spreadsheetID string
}

func (s *serviceValues) Get(ctx context.Context, rng string) ([][]any, error) {
	resp, err := s.svc.Spreadsheets.Values.Get(s.spreadsheetID, rng).Context(ctx).Do()
	if err != nil {
		return nil, err
	}
	return resp.Values, nil
}

func (s *serviceValues) Update(ctx context.Context, rng string, values [][]any) error {
	vr := &gsheet.ValueRange{Values: values}
	_, err := s.svc.Spreadsheets.Values.Update(s.spreadsheetID, rng, vr).
		ValueInputOption("USER_ENTERED").Context(ctx).Do()
	return err
}

var ledgerHeader = []any{
	"ID", "Date", "Period", "Description", "Place", "Sum",
	"Divorcee %", "Divorcee share", "Owner", "Approver", "Approved at",
}

// AppendEntry writes the entry on the first free row of the sheet for its
// balanced year. Column A holds the expense id; an id already present is
// not written again.
func (c *Client) AppendEntry(ctx context.Context, entry ports.LedgerEntry) (string, error) {
	e := entry.Expense
	if !e.IsApproved {
		return "", fmt.Errorf("expense %d is not approved", e.ID)
	}
	if c.values == nil {
		return "", errors.New("sheets service not initialized")
	}

	sheet := yearPrefixedName(c.sheetBase, e.YearBalanced)
	existing, err := c.values.Get(ctx, fmt.Sprintf("%s!A:A", sheet))
	if err != nil {
		return "", fmt.Errorf("read ids from %s: %w", sheet, err)
	}

	if row := findID(existing, e.ID); row > 0 {
		slog.InfoContext(ctx, "Expense already in ledger", "expense_id", e.ID, "row", row)
		return rowRef(sheet, row), nil
	}

	nextRow := len(existing) + 1
	if len(existing) == 0 {
		if err := c.values.Update(ctx, fmt.Sprintf("%s!A1:K1", sheet), [][]any{ledgerHeader}); err != nil {
			return "", fmt.Errorf("write header in %s: %w", sheet, err)
		}
		nextRow = 2
	}

	rng := fmt.Sprintf("%s!A%d:K%d", sheet, nextRow, nextRow)
	if err := c.values.Update(ctx, rng, [][]any{ledgerRow(entry)}); err != nil {
		return "", fmt.Errorf("update %s: %w", rng, err)
	}
	return rowRef(sheet, nextRow), nil
}

func ledgerRow(entry ports.LedgerEntry) []any {
	e := entry.Expense
	approvedAt := ""
	if !e.ApprovedAt.IsZero() {
		approvedAt = e.ApprovedAt.UTC().Format(time.DateTime)
	}
	return []any{
		e.ID,
		e.DatePurchased.String(),
		fmt.Sprintf("%04d-%02d", e.YearBalanced, e.MonthBalanced),
		e.Desc,
		e.PlaceOfPurchase,
		e.Sum.String(),
		e.DivorceeParticipate,
		e.DivorceeShare().String(),
		entry.OwnerName,
		entry.ApproverName,
		approvedAt,
	}
}

// findID returns the 1-based row holding id in column A, or 0.
func findID(values [][]any, id int64) int {
	want := strconv.FormatInt(id, 10)
	for i, row := range values {
		if len(row) == 0 {
			continue
		}
		if strings.TrimSpace(fmt.Sprint(row[0])) == want {
			return i + 1
		}
	}
	return 0
}

func rowRef(sheet string, row int) string {
	return fmt.Sprintf("%s!A%d:K%d", sheet, row, row)
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
