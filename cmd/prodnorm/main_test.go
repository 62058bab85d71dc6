package main

import (
	"bytes"
	"context"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"

	"github.com/Veraticus/product-normalizer/internal/cluster"
	"github.com/Veraticus/product-normalizer/internal/common"
	"github.com/Veraticus/product-normalizer/internal/model"
	"github.com/Veraticus/product-normalizer/internal/reftable"
	"github.com/Veraticus/product-normalizer/internal/storage"
)

func referenceFixture(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "tabla_normalizacion.xlsx")
	require.NoError(t, reftable.NewXLSXStore(path).Save(context.Background(), []model.ReferenceEntry{
		{Variant: "Coca Cola 600ml", Base: "Coca-Cola 600 ml"},
		{Variant: "Yerba Playadito 1kg", Base: "Yerba Mate Playadito 1 kg"},
	}))
	return path
}

func invoiceFixture(t *testing.T) string {
	t.Helper()
	f := excelize.NewFile()
	defer func() { _ = f.Close() }()

	rows := [][]any{
		{"Info", "Descripcion", "Cantidad", "Precio_Unitario", "Subtotal"},
		{"FC - 0001-00000001 - 2024-03-01 - DISTRIBUIDORA SA - OC1", "Coca Cola 600ml", "10", "500", ""},
		{"FC - 0001-00000001 - 2024-03-01 - DISTRIBUIDORA SA - OC1", "COCA COLA 600 ML", "5", "", "2500"},
		{"FC - 0001-00000002 - 2024-03-02 - MAYORISTA SRL - OC2", "Yerba Playadito 1kg", "3", "3000", "9000"},
		{"FC - 0001-00000002 - 2024-03-02 - MAYORISTA SRL - OC2", "Fernet Branca 750", "", "", "12000"},
	}
	for i, row := range rows {
		cellName, err := excelize.CoordinatesToCellName(1, i+1)
		require.NoError(t, err)
		r := row
		require.NoError(t, f.SetSheetRow("Sheet1", cellName, &r))
	}

	path := filepath.Join(t.TempDir(), "facturas.xlsx")
	require.NoError(t, f.SaveAs(path))
	return path
}

func useReference(t *testing.T, path string) {
	t.Helper()
	viper.Set("reference.path", path)
	viper.Set("reference.backend", "xlsx")
	t.Cleanup(func() {
		viper.Set("reference.path", "")
		viper.Set("reference.backend", "xlsx")
	})
}

func run(t *testing.T, cmd *cobra.Command, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetIn(strings.NewReader(""))
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestNormalizeCommand(t *testing.T) {
	useReference(t, referenceFixture(t))
	input := invoiceFixture(t)
	output := filepath.Join(t.TempDir(), "out.xlsx")

	out, err := run(t, normalizeCmd(), input, "-o", output)
	require.NoError(t, err)
	assert.Contains(t, out, "Normalization Complete")
	assert.Contains(t, out, "1 rows could not be rescued")
	assert.FileExists(t, output)

	f, err := excelize.OpenFile(output)
	require.NoError(t, err)
	defer func() { _ = f.Close() }()
	rows, err := f.GetRows("Datos_Normalizados")
	require.NoError(t, err)
	require.Len(t, rows, 4)
	assert.Equal(t, "Coca-Cola 600 ml", rows[1][6])
}

func TestNormalizeCommand_MissingReferenceDegrades(t *testing.T) {
	useReference(t, filepath.Join(t.TempDir(), "nope.xlsx"))
	input := invoiceFixture(t)

	out, err := run(t, normalizeCmd(), input, "-o", filepath.Join(t.TempDir(), "out.xlsx"))
	require.NoError(t, err)
	assert.Contains(t, out, "pass through unmatched")
}

func TestClusterCommand(t *testing.T) {
	useReference(t, referenceFixture(t))
	input := invoiceFixture(t)
	output := filepath.Join(t.TempDir(), "familias.xlsx")

	out, err := run(t, clusterCmd(), input, "-o", output, "--quiet", "--thresholds", "90,60")
	require.NoError(t, err)
	assert.Contains(t, out, "Clustering Complete")
	assert.Contains(t, out, "Level 2 (> 60%)")
	assert.FileExists(t, output)
}

func TestClusterInvoices_RowCountPicksMaster(t *testing.T) {
	var items []model.LineItem
	for i := 0; i < 5; i++ {
		items = append(items, model.LineItem{Description: "Coca-Cola 600 ml", Quantity: decimal.NewFromInt(1)})
	}
	// One bulk order outweighs the frequent spelling by volume, not by count.
	items = append([]model.LineItem{{Description: "Coca Cola 600ml", Quantity: decimal.NewFromInt(48)}}, items...)
	items = append(items, model.LineItem{DescriptionMissing: true})

	clusterer, err := cluster.New(model.DefaultThresholds, nil)
	require.NoError(t, err)
	result := clusterInvoices(clusterer, items)

	for _, desc := range []string{"Coca-Cola 600 ml", "Coca Cola 600ml"} {
		master, ok := result.MasterOf(1, desc)
		require.True(t, ok, desc)
		assert.Equal(t, "Coca-Cola 600 ml", master)
	}
	assert.Len(t, result.Assignments, 2)
}

func TestClusterCommand_BadThresholds(t *testing.T) {
	_, err := run(t, clusterCmd(), invoiceFixture(t), "--thresholds", "60,90")
	var userErr *common.UserError
	require.ErrorAs(t, err, &userErr)
}

func TestMatchCommand(t *testing.T) {
	useReference(t, referenceFixture(t))

	out, err := run(t, matchCmd(), "coca cola 600ml", "")
	require.NoError(t, err)
	assert.Contains(t, out, "Coca-Cola 600 ml (exact)")
	assert.Contains(t, out, "(empty description)")
}

func TestLearnCommand(t *testing.T) {
	ref := referenceFixture(t)
	useReference(t, ref)
	input := invoiceFixture(t)

	out, err := run(t, learnCmd(), input, "--learn-threshold", "70")
	require.NoError(t, err)
	assert.Contains(t, out, "Learned 1 new reference entries")

	entries, err := reftable.NewXLSXStore(ref).Load(context.Background())
	require.NoError(t, err)
	assert.Contains(t, entries, model.ReferenceEntry{Variant: "COCA COLA 600 ML", Base: "Coca-Cola 600 ml"})

	out, err = run(t, learnCmd(), input, "--learn-threshold", "70")
	require.NoError(t, err)
	assert.Contains(t, out, "Nothing new to learn")
}

func TestReferenceCommands_XLSX(t *testing.T) {
	ref := referenceFixture(t)
	useReference(t, ref)

	out, err := run(t, referenceCmd(), "add", "COCA 600", "Coca-Cola 600 ml")
	require.NoError(t, err)
	assert.Contains(t, out, "Added COCA 600")

	_, err = run(t, referenceCmd(), "add", "coca 600", "Other")
	var userErr *common.UserError
	require.ErrorAs(t, err, &userErr)
	assert.ErrorIs(t, err, common.ErrDuplicateEntry)

	out, err = run(t, referenceCmd(), "list", "--filter", "coca")
	require.NoError(t, err)
	assert.Contains(t, out, "COCA 600")
	assert.Contains(t, out, "2 of 3 entries")

	_, err = run(t, referenceCmd(), "delete", "coca 600", "--yes")
	require.NoError(t, err)
	_, err = run(t, referenceCmd(), "delete", "coca 600", "--yes")
	require.ErrorIs(t, err, common.ErrNotFound)

	exported := filepath.Join(t.TempDir(), "export.xlsx")
	_, err = run(t, referenceCmd(), "export", exported)
	require.NoError(t, err)
	entries, err := reftable.NewXLSXStore(exported).Load(context.Background())
	require.NoError(t, err)
	assert.Len(t, entries, 2)
}

func TestReferenceImport_SQLite(t *testing.T) {
	dbPath := useDatabase(t)

	out, err := run(t, referenceCmd(), "import", referenceFixture(t), "--yes")
	require.NoError(t, err)
	assert.Contains(t, out, "Imported 2 entries")

	_, err = run(t, referenceCmd(), "add", "COCA 600", "Coca-Cola 600 ml")
	require.NoError(t, err)

	store, err := storage.NewSQLiteStorage(dbPath)
	require.NoError(t, err)
	defer func() { _ = store.Close() }()

	listed, err := store.ListEntries(context.Background())
	require.NoError(t, err)
	require.Len(t, listed, 3)
	assert.Equal(t, model.SourceImport, listed[0].Source)
	assert.Equal(t, model.SourceManual, listed[2].Source)
}

func TestReferenceImport_DeclinedConfirmation(t *testing.T) {
	ref := referenceFixture(t)
	useReference(t, ref)

	other := filepath.Join(t.TempDir(), "other.xlsx")
	require.NoError(t, reftable.NewXLSXStore(other).Save(context.Background(), []model.ReferenceEntry{
		{Variant: "x", Base: "y"},
	}))

	_, err := run(t, referenceCmd(), "import", other)
	require.NoError(t, err)

	entries, err := reftable.NewXLSXStore(ref).Load(context.Background())
	require.NoError(t, err)
	assert.Len(t, entries, 2, "empty answer keeps the table")
}

func TestParseThresholds(t *testing.T) {
	tests := []struct {
		in      string
		want    model.ThresholdSet
		wantErr bool
	}{
		{in: "85,75,65,55", want: model.ThresholdSet{85, 75, 65, 55}},
		{in: " 90 , 70 ", want: model.ThresholdSet{90, 70}},
		{in: "70,80", wantErr: true},
		{in: "abc", wantErr: true},
		{in: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := parseThresholds(tt.in)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestDefaultOutput(t *testing.T) {
	assert.Equal(t, "data/facturas_normalizado.xlsx", defaultOutput("data/facturas.xlsx", "normalizado"))
	assert.Equal(t, "facturas_familias.xlsx", defaultOutput("facturas", "familias"))
}

func TestFormatFileSize(t *testing.T) {
	assert.Equal(t, "512 B", formatFileSize(512))
	assert.Equal(t, "1.5 KB", formatFileSize(1536))
	assert.Equal(t, "2.0 MB", formatFileSize(2*1024*1024))
}

func TestFormatRelativeTime(t *testing.T) {
	now := time.Now()
	assert.Equal(t, "just now", formatRelativeTime(now))
	assert.Equal(t, "1 minute ago", formatRelativeTime(now.Add(-90*time.Second)))
	assert.Equal(t, "3 hours ago", formatRelativeTime(now.Add(-3*time.Hour-time.Minute)))
	assert.Equal(t, "yesterday", formatRelativeTime(now.Add(-25*time.Hour)))
}

func useDatabase(t *testing.T) string {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "reference.db")
	viper.Set("reference.backend", "sqlite")
	viper.Set("database.path", dbPath)
	t.Cleanup(func() {
		viper.Set("reference.backend", "xlsx")
		viper.Set("database.path", "~/.local/share/prodnorm/reference.db")
	})
	return dbPath
}

func TestMigrateCommand(t *testing.T) {
	useDatabase(t)

	out, err := run(t, migrateCmd(), "--status")
	require.NoError(t, err)
	assert.Contains(t, out, "Current version: 0")

	_, err = run(t, migrateCmd())
	require.NoError(t, err)

	out, err = run(t, migrateCmd(), "--status")
	require.NoError(t, err)
	assert.Contains(t, out, "Current version: 3")
}

func TestCheckpointCommands(t *testing.T) {
	useDatabase(t)
	_, err := run(t, referenceCmd(), "import", referenceFixture(t), "--yes")
	require.NoError(t, err)

	out, err := run(t, referenceCmd(), "checkpoint", "create", "--tag", "manual-1")
	require.NoError(t, err)
	assert.Contains(t, out, "Created checkpoint manual-1")
	assert.Contains(t, out, "2 entries")

	out, err = run(t, referenceCmd(), "checkpoint", "list")
	require.NoError(t, err)
	assert.Contains(t, out, "manual-1")
	assert.Contains(t, out, "manual")

	_, err = run(t, referenceCmd(), "checkpoint", "delete", "manual-1", "--force")
	require.NoError(t, err)

	out, err = run(t, referenceCmd(), "checkpoint", "list")
	require.NoError(t, err)
	assert.NotContains(t, out, "manual-1")
}
