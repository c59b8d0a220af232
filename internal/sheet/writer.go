package sheet

import (
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"

	"github.com/eugenenazirov/box-simulator/internal/packer"
)

// Report worksheet names.
const (
	BoxesSheet      = "Resumo Caixas"
	ComparisonSheet = "Comparativo"
	SummarySheet    = "Eficiencia"
)

const allArmsLabel = "Todos"

var boxesHeader = []any{
	"ID_Caixa", "ID_Loja", "Braço", "ID_Produto", "Descrição_produto",
	"Qtd_separada(UN)", "Volume_produto(L)", "Peso_produto(KG)",
	"Volume_caixa_total(L)", "Peso_caixa_total(KG)", "Excedente",
}

var comparisonHeader = []any{"ID_Loja", "Braço", "Caixas_Sistema", "Caixas_App", "Diferença"}

// WriteReport renders report as an xlsx workbook onto w.
func WriteReport(w io.Writer, report packer.Report) error {
	f := excelize.NewFile()
	defer func() {
		_ = f.Close()
	}()

	if err := f.SetSheetName(f.GetSheetName(0), BoxesSheet); err != nil {
		return fmt.Errorf("rename sheet: %w", err)
	}

	rows := make([][]any, 0, len(report.Selection.Lines)+1)
	rows = append(rows, boxesHeader)
	for _, line := range report.Selection.Lines {
		rows = append(rows, []any{
			line.BoxID, line.StoreID, armLabel(line.ArmID), line.ProductID, line.Description,
			line.Quantity, line.Volume, line.Weight, line.BoxVolume, line.BoxWeight,
			yesNo(line.Oversized),
		})
	}
	if err := writeRows(f, BoxesSheet, rows); err != nil {
		return err
	}

	if report.Comparison != nil {
		if _, err := f.NewSheet(ComparisonSheet); err != nil {
			return fmt.Errorf("create sheet %q: %w", ComparisonSheet, err)
		}
		rows = [][]any{comparisonHeader}
		for _, row := range report.Comparison {
			rows = append(rows, []any{
				row.StoreID, armLabel(row.ArmID), row.HistoricalBoxes, row.GeneratedBoxes, row.Difference,
			})
		}
		if err := writeRows(f, ComparisonSheet, rows); err != nil {
			return err
		}
	}

	if _, err := f.NewSheet(SummarySheet); err != nil {
		return fmt.Errorf("create sheet %q: %w", SummarySheet, err)
	}
	sel := report.Selection
	summary := [][]any{
		{"Metodo", string(sel.Policy)},
		{"Caixas", sel.BoxCount},
		{"Caixas_FFD", sel.FirstFitBoxes},
		{"Caixas_BFD", sel.BestFitBoxes},
		{"Caixas_Excedentes", sel.OversizedBoxes},
		{"Volume_maximo(L)", report.Options.Limits.VolumeMax},
		{"Peso_maximo(KG)", report.Options.Limits.WeightMax},
		{"Eficiencia_volume(%)", report.Efficiency.VolumePercent},
		{"Eficiencia_peso(%)", report.Efficiency.WeightPercent},
	}
	if err := writeRows(f, SummarySheet, summary); err != nil {
		return err
	}

	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	return nil
}

func writeRows(f *excelize.File, sheet string, rows [][]any) error {
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			return fmt.Errorf("write %s row %d: %w", sheet, i+1, err)
		}
	}
	return nil
}

func armLabel(arm string) string {
	if arm == "" {
		return allArmsLabel
	}
	return arm
}

func yesNo(v bool) string {
	if v {
		return "SIM"
	}
	return "NAO"
}
