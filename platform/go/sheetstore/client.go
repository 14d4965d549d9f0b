package sheetstore

import (
	"context"
	"fmt"
	"sync"

	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"
)

// ClientConfig carries what is needed to reach one spreadsheet.
type ClientConfig struct {
	// SpreadsheetID identifies the document acting as system of record.
	SpreadsheetID string
	// CredentialsFile points at a service-account JSON key. Empty means
	// application default credentials.
	CredentialsFile string
}

// Client implements Store over the Google Sheets v4 API.
type Client struct {
	svc           *sheets.Service
	spreadsheetID string

	mu       sync.Mutex
	sheetIDs map[string]int64
}

// NewClient builds the Sheets service and verifies the spreadsheet is
// reachable, so misconfiguration fails at startup rather than on the first
// request.
func NewClient(ctx context.Context, cfg ClientConfig) (*Client, error) {
	if cfg.SpreadsheetID == "" {
		return nil, fmt.Errorf("spreadsheet id is required")
	}

	opts := []option.ClientOption{option.WithScopes(sheets.SpreadsheetsScope)}
	if cfg.CredentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(cfg.CredentialsFile))
	}

	svc, err := sheets.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("init sheets service: %w", err)
	}

	client := &Client{svc: svc, spreadsheetID: cfg.SpreadsheetID, sheetIDs: make(map[string]int64)}
	if _, err := svc.Spreadsheets.Get(cfg.SpreadsheetID).Fields("spreadsheetId").Context(ctx).Do(); err != nil {
		return nil, fmt.Errorf("%w: spreadsheet %s: %v", ErrUnavailable, cfg.SpreadsheetID, err)
	}
	return client, nil
}

func (c *Client) ReadAll(ctx context.Context, table string) (Table, error) {
	resp, err := c.svc.Spreadsheets.Values.Get(c.spreadsheetID, table).Context(ctx).Do()
	if err != nil {
		return Table{}, fmt.Errorf("%w: read %s: %v", ErrUnavailable, table, err)
	}
	if len(resp.Values) == 0 {
		return Table{}, fmt.Errorf("%w: table %s has no header row", ErrUnavailable, table)
	}

	header := toStrings(resp.Values[0])
	rows := make([][]string, 0, len(resp.Values)-1)
	for _, raw := range resp.Values[1:] {
		row := toStrings(raw)
		for len(row) < len(header) {
			row = append(row, "")
		}
		rows = append(rows, row)
	}

	return Table{Name: table, Header: header, Rows: rows}, nil
}

func (c *Client) Append(ctx context.Context, table string, rows [][]string) error {
	values := make([][]interface{}, 0, len(rows))
	for _, row := range rows {
		values = append(values, toCells(row))
	}

	_, err := c.svc.Spreadsheets.Values.
		Append(c.spreadsheetID, table+"!A:Z", &sheets.ValueRange{Values: values}).
		ValueInputOption("RAW").
		InsertDataOption("INSERT_ROWS").
		Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("%w: append %s: %v", ErrUnavailable, table, err)
	}
	return nil
}

func (c *Client) Update(ctx context.Context, table string, pos int, row []string) error {
	if pos < 2 {
		return fmt.Errorf("update %s: position %d addresses the header", table, pos)
	}

	rangeName := fmt.Sprintf("%s!A%d:%s%d", table, pos, columnLetter(len(row)), pos)
	_, err := c.svc.Spreadsheets.Values.
		Update(c.spreadsheetID, rangeName, &sheets.ValueRange{Values: [][]interface{}{toCells(row)}}).
		ValueInputOption("RAW").
		Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("%w: update %s row %d: %v", ErrUnavailable, table, pos, err)
	}
	return nil
}

// Delete removes one physical row. Rows below it shift up, invalidating any
// position captured before this call.
func (c *Client) Delete(ctx context.Context, table string, pos int) error {
	if pos < 2 {
		return fmt.Errorf("delete %s: position %d addresses the header", table, pos)
	}

	sheetID, err := c.sheetID(ctx, table)
	if err != nil {
		return err
	}

	req := &sheets.BatchUpdateSpreadsheetRequest{
		Requests: []*sheets.Request{{
			DeleteDimension: &sheets.DeleteDimensionRequest{
				Range: &sheets.DimensionRange{
					SheetId:    sheetID,
					Dimension:  "ROWS",
					StartIndex: int64(pos - 1),
					EndIndex:   int64(pos),
				},
			},
		}},
	}
	if _, err := c.svc.Spreadsheets.BatchUpdate(c.spreadsheetID, req).Context(ctx).Do(); err != nil {
		return fmt.Errorf("%w: delete %s row %d: %v", ErrUnavailable, table, pos, err)
	}
	return nil
}

// sheetID resolves a sheet title to its numeric id, memoized for the client
// lifetime. Sheets are provisioned externally and never renamed in practice.
func (c *Client) sheetID(ctx context.Context, table string) (int64, error) {
	c.mu.Lock()
	if id, ok := c.sheetIDs[table]; ok {
		c.mu.Unlock()
		return id, nil
	}
	c.mu.Unlock()

	doc, err := c.svc.Spreadsheets.Get(c.spreadsheetID).Fields("sheets.properties").Context(ctx).Do()
	if err != nil {
		return 0, fmt.Errorf("%w: resolve sheet %s: %v", ErrUnavailable, table, err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	for _, sheet := range doc.Sheets {
		if sheet.Properties != nil {
			c.sheetIDs[sheet.Properties.Title] = sheet.Properties.SheetId
		}
	}
	id, ok := c.sheetIDs[table]
	if !ok {
		return 0, fmt.Errorf("%w: sheet %s not found", ErrUnavailable, table)
	}
	return id, nil
}

// columnLetter converts a 1-based column count to its A1 notation letter,
// supporting widths beyond Z (AA, AB, ...).
func columnLetter(n int) string {
	if n < 1 {
		n = 1
	}
	letters := ""
	for n > 0 {
		n--
		letters = string(rune('A'+n%26)) + letters
		n /= 26
	}
	return letters
}

func toStrings(cells []interface{}) []string {
	out := make([]string, 0, len(cells))
	for _, cell := range cells {
		out = append(out, fmt.Sprint(cell))
	}
	return out
}

func toCells(row []string) []interface{} {
	out := make([]interface{}, 0, len(row))
	for _, v := range row {
		out = append(out, v)
	}
	return out
}
