package tabsink

import (
	"context"
	"errors"
	"fmt"

	"github.com/illmade-knight/go-chatexport/pkg/chatrecord"
	"github.com/rs/zerolog"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"
)

// ====================================================================================
// Google Sheets destination. The Sheets service is hidden behind a small
// interface so the sink can be unit tested without a real spreadsheet.
// ====================================================================================

// SpreadsheetAPI abstracts the slice of the Sheets values API the sink uses.
type SpreadsheetAPI interface {
	GetRange(ctx context.Context, spreadsheetID, readRange string) ([][]interface{}, error)
	UpdateRange(ctx context.Context, spreadsheetID, writeRange string, values [][]interface{}) error
	AppendRows(ctx context.Context, spreadsheetID, tableRange string, values [][]interface{}) error
	ClearRange(ctx context.Context, spreadsheetID, clearRange string) error
}

// NewSheetsService builds the concrete Sheets client. It uses Application
// Default Credentials unless a credentials file is provided.
func NewSheetsService(ctx context.Context, credentialsFile string, logger zerolog.Logger) (*sheets.Service, error) {
	var opts []option.ClientOption
	if credentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(credentialsFile))
		logger.Info().Str("credentials_file", credentialsFile).Msg("Using specified credentials file for Sheets client.")
	} else {
		logger.Info().Msg("Using Application Default Credentials (ADC) for Sheets client.")
	}
	svc, err := sheets.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("sheets.NewService: %w", err)
	}
	return svc, nil
}

// sheetsServiceAdapter wraps *sheets.Service to satisfy SpreadsheetAPI.
// Values are written with the RAW input option so cell text is stored
// exactly as sent, never reinterpreted as formulas or locale-parsed dates.
type sheetsServiceAdapter struct {
	svc *sheets.Service
}

// NewSpreadsheetAPIAdapter makes the concrete *sheets.Service conform to
// the SpreadsheetAPI interface.
func NewSpreadsheetAPIAdapter(svc *sheets.Service) SpreadsheetAPI {
	if svc == nil {
		return nil
	}
	return &sheetsServiceAdapter{svc: svc}
}

func (a *sheetsServiceAdapter) GetRange(ctx context.Context, spreadsheetID, readRange string) ([][]interface{}, error) {
	resp, err := a.svc.Spreadsheets.Values.Get(spreadsheetID, readRange).Context(ctx).Do()
	if err != nil {
		return nil, err
	}
	return resp.Values, nil
}

func (a *sheetsServiceAdapter) UpdateRange(ctx context.Context, spreadsheetID, writeRange string, values [][]interface{}) error {
	_, err := a.svc.Spreadsheets.Values.Update(spreadsheetID, writeRange, &sheets.ValueRange{Values: values}).
		ValueInputOption("RAW").Context(ctx).Do()
	return err
}

func (a *sheetsServiceAdapter) AppendRows(ctx context.Context, spreadsheetID, tableRange string, values [][]interface{}) error {
	_, err := a.svc.Spreadsheets.Values.Append(spreadsheetID, tableRange, &sheets.ValueRange{Values: values}).
		ValueInputOption("RAW").InsertDataOption("INSERT_ROWS").Context(ctx).Do()
	return err
}

func (a *sheetsServiceAdapter) ClearRange(ctx context.Context, spreadsheetID, clearRange string) error {
	_, err := a.svc.Spreadsheets.Values.Clear(spreadsheetID, clearRange, &sheets.ClearValuesRequest{}).Context(ctx).Do()
	return err
}

// SheetsSinkConfig holds configuration for the Sheets destination.
type SheetsSinkConfig struct {
	SpreadsheetID string
	// SheetName is the tab rows are written to, e.g. "Messages".
	SheetName string
}

// SheetsSink writes records to one tab of a Google Sheets spreadsheet. The
// sheet's first row is the schema header; append mode probes it and only
// writes the header when the sheet is still empty.
type SheetsSink struct {
	api    SpreadsheetAPI
	cfg    SheetsSinkConfig
	logger zerolog.Logger
}

// NewSheetsSink creates a sink over an injected SpreadsheetAPI.
func NewSheetsSink(cfg SheetsSinkConfig, api SpreadsheetAPI, logger zerolog.Logger) (*SheetsSink, error) {
	if api == nil {
		return nil, errors.New("spreadsheet api cannot be nil")
	}
	if cfg.SpreadsheetID == "" || cfg.SheetName == "" {
		return nil, errors.New("spreadsheet id and sheet name are required")
	}
	return &SheetsSink{
		api: api,
		cfg: cfg,
		logger: logger.With().
			Str("component", "SheetsSink").
			Str("spreadsheet_id", cfg.SpreadsheetID).
			Str("sheet", cfg.SheetName).
			Logger(),
	}, nil
}

// Write implements the RecordSink contract against the spreadsheet tab.
func (s *SheetsSink) Write(ctx context.Context, records []chatrecord.Record, appendMode bool) error {
	rows := make([][]interface{}, 0, len(records))
	for _, rec := range records {
		row := Row(rec)
		cells := make([]interface{}, len(row))
		for i, v := range row {
			cells[i] = v
		}
		rows = append(rows, cells)
	}

	if !appendMode {
		if err := s.api.ClearRange(ctx, s.cfg.SpreadsheetID, s.cfg.SheetName); err != nil {
			return fmt.Errorf("clear sheet %s: %w", s.cfg.SheetName, s.describeErr(err))
		}
		values := append([][]interface{}{headerCells()}, rows...)
		if err := s.api.UpdateRange(ctx, s.cfg.SpreadsheetID, s.cfg.SheetName+"!A1", values); err != nil {
			return fmt.Errorf("write sheet %s: %w", s.cfg.SheetName, s.describeErr(err))
		}
		s.logger.Debug().Int("rows", len(rows)).Msg("Rewrote sheet with header and records.")
		return nil
	}

	headerRow, err := s.api.GetRange(ctx, s.cfg.SpreadsheetID, s.cfg.SheetName+"!A1:G1")
	if err != nil {
		return fmt.Errorf("probe sheet header: %w", s.describeErr(err))
	}
	if len(headerRow) == 0 {
		// Empty sheet: append falls back to create so the header lands first.
		if err := s.api.UpdateRange(ctx, s.cfg.SpreadsheetID, s.cfg.SheetName+"!A1", [][]interface{}{headerCells()}); err != nil {
			return fmt.Errorf("write sheet header: %w", s.describeErr(err))
		}
	}
	if len(rows) == 0 {
		return nil
	}
	if err := s.api.AppendRows(ctx, s.cfg.SpreadsheetID, s.cfg.SheetName, rows); err != nil {
		return fmt.Errorf("append to sheet %s: %w", s.cfg.SheetName, s.describeErr(err))
	}
	s.logger.Debug().Int("rows", len(rows)).Msg("Appended records to sheet.")
	return nil
}

// Destination returns the spreadsheet and tab rows are written to.
func (s *SheetsSink) Destination() string {
	return s.cfg.SpreadsheetID + "!" + s.cfg.SheetName
}

// describeErr unwraps Google API errors into something actionable; a 404
// here almost always means the spreadsheet id is wrong or unshared.
func (s *SheetsSink) describeErr(err error) error {
	var gErr *googleapi.Error
	if errors.As(err, &gErr) && gErr.Code == 404 {
		return fmt.Errorf("spreadsheet %s not found or not shared with the service account: %w", s.cfg.SpreadsheetID, err)
	}
	return err
}

func headerCells() []interface{} {
	cells := make([]interface{}, len(Header))
	for i, h := range Header {
		cells[i] = h
	}
	return cells
}
