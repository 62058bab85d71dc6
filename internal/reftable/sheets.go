package reftable

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/Veraticus/product-normalizer/internal/common"
	"github.com/Veraticus/product-normalizer/internal/model"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"
)

// SheetsConfig holds the configuration for a Google Sheets backed table.
type SheetsConfig struct {
	ClientID           string
	ClientSecret       string
	RefreshToken       string
	ServiceAccountPath string
	SpreadsheetID      string
	SheetName          string
	VariantColumn      string
	BaseColumn         string
	RetryAttempts      int
	RetryDelay         time.Duration
}

// DefaultSheetsConfig returns a SheetsConfig with sensible defaults.
func DefaultSheetsConfig() SheetsConfig {
	return SheetsConfig{
		SheetName:     "Sheet1",
		VariantColumn: DefaultVariantColumn,
		BaseColumn:    DefaultBaseColumn,
		RetryAttempts: 3,
		RetryDelay:    time.Second,
	}
}

// Validate checks if the configuration is valid.
func (c *SheetsConfig) Validate() error {
	hasOAuth := c.ClientID != "" && c.ClientSecret != "" && c.RefreshToken != ""
	hasServiceAccount := c.ServiceAccountPath != ""

	if !hasOAuth && !hasServiceAccount {
		return fmt.Errorf("%w: no Google Sheets authentication method configured", common.ErrMissingConfig)
	}
	if hasOAuth && hasServiceAccount {
		return fmt.Errorf("%w: use either OAuth2 or a service account, not both", common.ErrInvalidConfig)
	}
	if c.SpreadsheetID == "" {
		return fmt.Errorf("%w: spreadsheet id is required", common.ErrMissingConfig)
	}
	if c.SheetName == "" {
		return fmt.Errorf("%w: sheet name is required", common.ErrInvalidConfig)
	}
	return nil
}

// valuesAPI is the slice of the Sheets values API the store needs.
type valuesAPI interface {
	Get(ctx context.Context, spreadsheetID, rng string) ([][]any, error)
	Clear(ctx context.Context, spreadsheetID, rng string) error
	Update(ctx context.Context, spreadsheetID, rng string, values [][]any) error
}

type googleValues struct {
	svc *sheets.Service
}

func (g googleValues) Get(ctx context.Context, id, rng string) ([][]any, error) {
	resp, err := g.svc.Spreadsheets.Values.Get(id, rng).Context(ctx).Do()
	if err != nil {
		return nil, err
	}
	return resp.Values, nil
}

func (g googleValues) Clear(ctx context.Context, id, rng string) error {
	_, err := g.svc.Spreadsheets.Values.Clear(id, rng, &sheets.ClearValuesRequest{}).Context(ctx).Do()
	return err
}

func (g googleValues) Update(ctx context.Context, id, rng string, values [][]any) error {
	_, err := g.svc.Spreadsheets.Values.Update(id, rng, &sheets.ValueRange{Values: values}).
		ValueInputOption("RAW").
		Context(ctx).
		Do()
	return err
}

// SheetsStore keeps the reference table in a Google Sheets tab.
type SheetsStore struct {
	api    valuesAPI
	config SheetsConfig
}

// NewSheetsStore authenticates against Google Sheets and returns a store.
func NewSheetsStore(ctx context.Context, config SheetsConfig) (*SheetsStore, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	svc, err := createSheetsService(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("failed to create sheets service: %w", err)
	}

	return &SheetsStore{config: config, api: googleValues{svc: svc}}, nil
}

func createSheetsService(ctx context.Context, config SheetsConfig) (*sheets.Service, error) {
	var tokenSource oauth2.TokenSource

	if config.ServiceAccountPath != "" {
		jsonKey, err := os.ReadFile(config.ServiceAccountPath)
		if err != nil {
			return nil, fmt.Errorf("unable to read service account key file: %w", err)
		}

		jwtConfig, err := google.JWTConfigFromJSON(jsonKey, sheets.SpreadsheetsScope)
		if err != nil {
			return nil, fmt.Errorf("unable to parse service account key: %w", err)
		}

		tokenSource = jwtConfig.TokenSource(ctx)
	} else {
		client := &oauth2.Config{
			ClientID:     config.ClientID,
			ClientSecret: config.ClientSecret,
			Endpoint:     google.Endpoint,
			Scopes:       []string{sheets.SpreadsheetsScope},
		}
		tokenSource = client.TokenSource(ctx, &oauth2.Token{
			RefreshToken: config.RefreshToken,
			TokenType:    "Bearer",
		})
	}

	httpClient := oauth2.NewClient(ctx, tokenSource)
	return sheets.NewService(ctx, option.WithHTTPClient(httpClient))
}

// Location implements Store.
func (s *SheetsStore) Location() string {
	return fmt.Sprintf("sheets://%s/%s", s.config.SpreadsheetID, s.config.SheetName)
}

func (s *SheetsStore) fullRange() string {
	return fmt.Sprintf("'%s'!A:Z", s.config.SheetName)
}

func (s *SheetsStore) retryOptions() common.RetryOptions {
	return common.RetryOptions{
		MaxAttempts:  s.config.RetryAttempts,
		InitialDelay: s.config.RetryDelay,
		MaxDelay:     30 * time.Second,
		Multiplier:   2.0,
	}
}

// Load implements Store.
func (s *SheetsStore) Load(ctx context.Context) ([]model.ReferenceEntry, error) {
	var values [][]any
	err := common.WithRetry(ctx, func() error {
		var getErr error
		values, getErr = s.api.Get(ctx, s.config.SpreadsheetID, s.fullRange())
		return getErr
	}, s.retryOptions())
	if err != nil {
		return nil, common.MissingResource(s.Location(), err)
	}

	return parseSheetValues(values, s.config.VariantColumn, s.config.BaseColumn, s.Location())
}

// Save implements Store.
func (s *SheetsStore) Save(ctx context.Context, entries []model.ReferenceEntry) error {
	values := sheetValues(entries, s.config.VariantColumn, s.config.BaseColumn)

	err := common.WithRetry(ctx, func() error {
		if err := s.api.Clear(ctx, s.config.SpreadsheetID, s.fullRange()); err != nil {
			return err
		}
		return s.api.Update(ctx, s.config.SpreadsheetID, fmt.Sprintf("'%s'!A1", s.config.SheetName), values)
	}, s.retryOptions())
	if err != nil {
		return fmt.Errorf("%w: %v", common.ErrPersistence, err)
	}
	return nil
}

func parseSheetValues(values [][]any, variantColumn, baseColumn, location string) ([]model.ReferenceEntry, error) {
	if len(values) == 0 {
		return nil, common.MissingResource(location, errors.New("sheet is empty"))
	}

	header := make([]string, len(values[0]))
	for i, v := range values[0] {
		header[i] = fmt.Sprint(v)
	}
	variantIdx := columnIndex(header, orDefault(variantColumn, DefaultVariantColumn))
	baseIdx := columnIndex(header, orDefault(baseColumn, DefaultBaseColumn))
	if variantIdx < 0 || baseIdx < 0 {
		return nil, common.MissingResource(location, fmt.Errorf("required columns missing, found %v", header))
	}

	entries := make([]model.ReferenceEntry, 0, len(values)-1)
	for _, row := range values[1:] {
		e := model.ReferenceEntry{
			Variant: anyCell(row, variantIdx),
			Base:    anyCell(row, baseIdx),
		}.Clean()
		if e.Variant == "" || e.Base == "" {
			continue
		}
		entries = append(entries, e)
	}
	return entries, nil
}

func sheetValues(entries []model.ReferenceEntry, variantColumn, baseColumn string) [][]any {
	values := make([][]any, 0, len(entries)+1)
	values = append(values, []any{orDefault(variantColumn, DefaultVariantColumn), orDefault(baseColumn, DefaultBaseColumn)})
	for _, e := range entries {
		values = append(values, []any{e.Variant, e.Base})
	}
	return values
}

func anyCell(row []any, idx int) string {
	if idx < len(row) && row[idx] != nil {
		return fmt.Sprint(row[idx])
	}
	return ""
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}
