package google

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"slices"
	"strings"

	"gastos/internal/core"
	"gastos/internal/ledger"

	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"
)

// Client stores the ledger in a Google Sheets spreadsheet, one tab per month.
type Client struct {
	svc           *gsheet.Service
	spreadsheetID string
}

// Ensure interface conformance
var (
	_ ledger.Ledger          = (*Client)(nil)
	_ ledger.PartitionLister = (*Client)(nil)
	_ ledger.Viewer          = (*Client)(nil)
)

// Config selects the spreadsheet and the service account used to reach it.
// ServiceAccountJSON wins over ServiceAccountFile; with neither set the
// standard GOOGLE_APPLICATION_CREDENTIALS file is used.
type Config struct {
	SpreadsheetID      string
	ServiceAccountJSON string
	ServiceAccountFile string
}

// New creates a Sheets client using service account credentials.
func New(ctx context.Context, cfg Config, opts ...goption.ClientOption) (*Client, error) {
	spreadsheetID := strings.TrimSpace(cfg.SpreadsheetID)
	if spreadsheetID == "" {
		return nil, errors.New("missing GOOGLE_SPREADSHEET_ID")
	}
	svc, err := newSheetsService(ctx, cfg, opts...)
	if err != nil {
		return nil, fmt.Errorf("sheets service: %w", err)
	}
	return &Client{svc: svc, spreadsheetID: spreadsheetID}, nil
}

// NewWithService wraps an already configured Sheets service.
func NewWithService(svc *gsheet.Service, spreadsheetID string) *Client {
	return &Client{svc: svc, spreadsheetID: spreadsheetID}
}

// newSheetsService initializes a Sheets Service using Service Account credentials.
// Extra options (endpoint, HTTP client) replace credential lookup when they
// already carry authentication.
func newSheetsService(ctx context.Context, cfg Config, opts ...goption.ClientOption) (*gsheet.Service, error) {
	if len(opts) > 0 {
		return gsheet.NewService(ctx, opts...)
	}

	serviceAccountJSON := strings.TrimSpace(cfg.ServiceAccountJSON)
	serviceAccountFile := strings.TrimSpace(cfg.ServiceAccountFile)
	if serviceAccountJSON == "" && serviceAccountFile == "" {
		serviceAccountFile = strings.TrimSpace(os.Getenv("GOOGLE_APPLICATION_CREDENTIALS"))
	}

	var credentialsJSON []byte
	switch {
	case serviceAccountJSON != "":
		slog.InfoContext(ctx, "Using inline JSON credentials")
		credentialsJSON = []byte(serviceAccountJSON)
	case serviceAccountFile != "":
		slog.InfoContext(ctx, "Reading credentials from file", "path", serviceAccountFile)
		b, err := os.ReadFile(serviceAccountFile)
		if err != nil {
			return nil, fmt.Errorf("read service account file: %w", err)
		}
		credentialsJSON = b
	default:
		return nil, errors.New("missing service account credentials (set GOOGLE_SERVICE_ACCOUNT_JSON, GOOGLE_SERVICE_ACCOUNT_FILE, or GOOGLE_APPLICATION_CREDENTIALS)")
	}

	service, err := gsheet.NewService(ctx,
		goption.WithCredentialsJSON(credentialsJSON),
		goption.WithScopes(gsheet.SpreadsheetsScope))
	if err != nil {
		return nil, fmt.Errorf("create sheets service: %w", err)
	}
	return service, nil
}

// Load reads the month tab. A missing tab is added with the header row.
func (c *Client) Load(ctx context.Context, month core.Month) (core.Table, error) {
	if c.svc == nil {
		return nil, &core.StorageError{Op: core.OpLoad, Month: month, Err: errors.New("sheets service not initialized")}
	}
	title := month.String()
	created, err := c.ensureTab(ctx, title)
	if err != nil {
		return nil, &core.StorageError{Op: core.OpLoad, Month: month, Err: err}
	}
	var rows [][]string
	if !created {
		rng := a1(title, "A:F")
		resp, err := c.svc.Spreadsheets.Values.Get(c.spreadsheetID, rng).
			ValueRenderOption("UNFORMATTED_VALUE").Context(ctx).Do()
		if err != nil {
			return nil, &core.StorageError{Op: core.OpLoad, Month: month, Err: fmt.Errorf("read %s: %w", rng, err)}
		}
		rows = toRows(resp.Values)
	}
	if len(rows) == 0 {
		if err := c.write(ctx, title, nil); err != nil {
			return nil, &core.StorageError{Op: core.OpLoad, Month: month, Err: err}
		}
		return core.Table{}, nil
	}
	t, err := ledger.DecodeTable(rows)
	if err != nil {
		return nil, &core.StorageError{Op: core.OpLoad, Month: month, Err: err}
	}
	return t, nil
}

// View reads the month tab without adding it or writing the header.
func (c *Client) View(ctx context.Context, month core.Month) (core.Table, error) {
	if c.svc == nil {
		return nil, &core.StorageError{Op: core.OpLoad, Month: month, Err: errors.New("sheets service not initialized")}
	}
	title := month.String()
	titles, err := c.tabTitles(ctx)
	if err != nil {
		return nil, &core.StorageError{Op: core.OpLoad, Month: month, Err: err}
	}
	if !slices.Contains(titles, title) {
		return core.Table{}, nil
	}
	rng := a1(title, "A:F")
	resp, err := c.svc.Spreadsheets.Values.Get(c.spreadsheetID, rng).
		ValueRenderOption("UNFORMATTED_VALUE").Context(ctx).Do()
	if err != nil {
		return nil, &core.StorageError{Op: core.OpLoad, Month: month, Err: fmt.Errorf("read %s: %w", rng, err)}
	}
	rows := toRows(resp.Values)
	if len(rows) == 0 {
		return core.Table{}, nil
	}
	t, err := ledger.DecodeTable(rows)
	if err != nil {
		return nil, &core.StorageError{Op: core.OpLoad, Month: month, Err: err}
	}
	return t, nil
}

// Save clears the month tab and writes the header and every row of t.
func (c *Client) Save(ctx context.Context, month core.Month, t core.Table) error {
	if c.svc == nil {
		return &core.StorageError{Op: core.OpSave, Month: month, Err: errors.New("sheets service not initialized")}
	}
	title := month.String()
	if _, err := c.ensureTab(ctx, title); err != nil {
		return &core.StorageError{Op: core.OpSave, Month: month, Err: err}
	}
	if err := c.write(ctx, title, t); err != nil {
		return &core.StorageError{Op: core.OpSave, Month: month, Err: err}
	}
	return nil
}

// Partitions lists the tabs named after a month.
func (c *Client) Partitions(ctx context.Context) ([]core.Month, error) {
	if c.svc == nil {
		return nil, &core.StorageError{Op: core.OpList, Err: errors.New("sheets service not initialized")}
	}
	titles, err := c.tabTitles(ctx)
	if err != nil {
		return nil, &core.StorageError{Op: core.OpList, Err: err}
	}
	return ledger.ParsePartitionNames(titles), nil
}

func (c *Client) write(ctx context.Context, title string, t core.Table) error {
	rng := a1(title, "A:F")
	if _, err := c.svc.Spreadsheets.Values.Clear(c.spreadsheetID, rng, &gsheet.ClearValuesRequest{}).
		Context(ctx).Do(); err != nil {
		return fmt.Errorf("clear %s: %w", rng, err)
	}
	start := a1(title, "A1")
	vr := &gsheet.ValueRange{Values: ledger.Rows(t)}
	if _, err := c.svc.Spreadsheets.Values.Update(c.spreadsheetID, start, vr).
		ValueInputOption("RAW").Context(ctx).Do(); err != nil {
		return fmt.Errorf("update %s: %w", start, err)
	}
	return nil
}

// ensureTab adds the tab when missing and reports whether it did.
func (c *Client) ensureTab(ctx context.Context, title string) (bool, error) {
	titles, err := c.tabTitles(ctx)
	if err != nil {
		return false, err
	}
	for _, t := range titles {
		if t == title {
			return false, nil
		}
	}
	req := &gsheet.BatchUpdateSpreadsheetRequest{
		Requests: []*gsheet.Request{{
			AddSheet: &gsheet.AddSheetRequest{Properties: &gsheet.SheetProperties{Title: title}},
		}},
	}
	if _, err := c.svc.Spreadsheets.BatchUpdate(c.spreadsheetID, req).Context(ctx).Do(); err != nil {
		return false, fmt.Errorf("add sheet %s: %w", title, err)
	}
	slog.InfoContext(ctx, "Added month tab", "spreadsheet_id", c.spreadsheetID, "sheet", title)
	return true, nil
}

func (c *Client) tabTitles(ctx context.Context) ([]string, error) {
	resp, err := c.svc.Spreadsheets.Get(c.spreadsheetID).Fields("sheets.properties.title").Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("get spreadsheet: %w", err)
	}
	titles := make([]string, 0, len(resp.Sheets))
	for _, s := range resp.Sheets {
		if s.Properties != nil {
			titles = append(titles, s.Properties.Title)
		}
	}
	return titles, nil
}

// a1 builds a quoted A1 range; tab names like 2025-01 need the quotes.
func a1(title, rng string) string {
	return fmt.Sprintf("'%s'!%s", strings.ReplaceAll(title, "'", "''"), rng)
}

func toRows(values [][]interface{}) [][]string {
	out := make([][]string, len(values))
	for i, row := range values {
		out[i] = toStrings(row)
	}
	return out
}

func toStrings(in []interface{}) []string {
	out := make([]string, len(in))
	for i, v := range in {
		out[i] = strings.TrimSpace(fmt.Sprint(v))
	}
	return out
}
