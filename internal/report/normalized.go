package report

import (
	"github.com/Veraticus/product-normalizer/internal/model"
	"github.com/Veraticus/product-normalizer/internal/normalize"
)

// Sheets of the normalization workbook.
const (
	SheetNormalized = "Datos_Normalizados"
	SheetQuality    = "Reporte_Calidad"
)

// WriteNormalized writes the labelled rows, the quality report grouped by
// (original, normalized, method), the run summary and the rows that could
// not be rescued.
func WriteNormalized(path string, items []model.NormalizedItem, stats normalize.Stats, unsalvageable []model.LineItem) error {
	w, err := newWorkbook()
	if err != nil {
		return err
	}

	headers := append(append([]string{}, lineItemHeaders...),
		"Descripcion_Normalizada", "Metodo", "Variante_Coincidente", "Similitud")
	rows := make([][]any, len(items))
	for i, item := range items {
		rows[i] = append(lineItemRow(item.LineItem),
			item.Result.Label,
			string(item.Result.Method),
			item.Result.MatchedVariant,
			round2(item.Result.Score),
		)
	}
	if err := w.table(SheetNormalized, headers, rows); err != nil {
		w.close()
		return err
	}

	quality := normalize.QualityReport(items)
	qrows := make([][]any, len(quality))
	for i, q := range quality {
		qrows[i] = []any{
			q.Original,
			q.Normalized,
			string(q.Method),
			round2(q.Score),
			q.Rows,
			amount(q.Volume),
			round2(q.Percentage),
		}
	}
	if err := w.table(SheetQuality,
		[]string{"Original", "Normalizado", "Metodo", "Similitud", "Filas", "Volumen", "Porcentaje"},
		qrows); err != nil {
		w.close()
		return err
	}

	summary := [][]any{
		{"Filas procesadas", stats.Total},
		{"Descripciones originales unicas", stats.UniqueOriginal},
		{"Descripciones normalizadas unicas", stats.UniqueNormalized},
		{"Similitud promedio", round2(stats.MeanScore)},
		{"Filas insalvables", len(unsalvageable)},
	}
	for _, m := range model.AllMethods {
		summary = append(summary, []any{"Metodo " + string(m), stats.Counts[m], round2(stats.Percentage(m))})
	}
	if err := w.table(SheetSummary, []string{"Metrica", "Valor", "Porcentaje"}, summary); err != nil {
		w.close()
		return err
	}

	if err := w.unsalvageable(unsalvageable); err != nil {
		w.close()
		return err
	}
	return w.save(path)
}
