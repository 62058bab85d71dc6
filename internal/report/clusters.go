package report

import (
	"fmt"
	"strings"

	"github.com/Veraticus/product-normalizer/internal/cluster"
	"github.com/Veraticus/product-normalizer/internal/lineitem"
	"github.com/Veraticus/product-normalizer/internal/model"
)

// Sheets of the clustering workbook.
const (
	SheetProcessed = "Procesados"
	SheetFamilies  = "Familias"
	SheetPareto    = "Pareto"
)

// FamilyColumn names the column holding the master of the 1-based level.
func FamilyColumn(level int) string {
	return fmt.Sprintf("Familia_N%d", level)
}

// WriteClusters writes every row with its Familia_N1..N columns, the family
// membership of each level, the Pareto table, a summary and the rows that
// could not be rescued.
func WriteClusters(path string, items []model.ClusteredItem, result *cluster.Result, freqs []lineitem.Frequency, unsalvageable []model.LineItem) error {
	w, err := newWorkbook()
	if err != nil {
		return err
	}

	headers := append([]string{}, lineItemHeaders...)
	for i := range result.Levels {
		headers = append(headers, FamilyColumn(i+1))
	}
	rows := make([][]any, len(items))
	for i, item := range items {
		row := lineItemRow(item.LineItem)
		for l := range result.Levels {
			var master string
			if l < len(item.Families) {
				master = item.Families[l]
			}
			row = append(row, master)
		}
		rows[i] = row
	}
	if err := w.table(SheetProcessed, headers, rows); err != nil {
		w.close()
		return err
	}

	var famRows [][]any
	for i, level := range result.Levels {
		for _, master := range level.Masters {
			members := level.Members(master)
			famRows = append(famRows, []any{
				i + 1,
				level.Threshold,
				master,
				len(members),
				strings.Join(members, " | "),
			})
		}
	}
	if err := w.table(SheetFamilies,
		[]string{"Nivel", "Umbral", "Maestro", "Miembros", "Descripciones"},
		famRows); err != nil {
		w.close()
		return err
	}

	pareto := make([][]any, len(freqs))
	for i, f := range freqs {
		pareto[i] = []any{
			f.Description,
			f.Count,
			amount(f.Quantity),
			amount(f.WeightedVolume),
			round2(f.Percentile),
			string(f.Category),
		}
	}
	if err := w.table(SheetPareto,
		[]string{"Descripcion", "Ocurrencias", "Cantidad_Total", "Volumen_Ponderado", "Percentil", "Categoria"},
		pareto); err != nil {
		w.close()
		return err
	}

	summary := [][]any{
		{"Filas procesadas", len(items)},
		{"Descripciones unicas", len(result.Assignments)},
		{"Filas insalvables", len(unsalvageable)},
	}
	for i, n := range result.FamilyCounts() {
		summary = append(summary, []any{
			fmt.Sprintf("Familias nivel %d (umbral %d)", i+1, result.Levels[i].Threshold), n,
		})
	}
	if err := w.table(SheetSummary, []string{"Metrica", "Valor"}, summary); err != nil {
		w.close()
		return err
	}

	if err := w.unsalvageable(unsalvageable); err != nil {
		w.close()
		return err
	}
	return w.save(path)
}
