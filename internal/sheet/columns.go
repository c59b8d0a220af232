package sheet

import (
	"strings"

	"github.com/eugenenazirov/box-simulator/internal/packer"
)

type column int

const (
	colStore column = iota
	colArm
	colProduct
	colDescription
	colQuantity
	colWeight
	colVolume
	colWeightUnit
	colUnitOfMeasure
	colUnitsRequested
	colHistoricalBox
)

// headerAliases lists the accepted headers per column. The first entry is the
// header used by the operational export the tool was built around.
var headerAliases = map[column][]string{
	colStore:          {"ID_Loja", "store_id", "store"},
	colArm:            {"Braço", "Braco", "arm_id", "arm", "zone"},
	colProduct:        {"ID_Produto", "product_id", "product"},
	colDescription:    {"Descrição_produto", "Descricao_produto", "description", "product_description"},
	colQuantity:       {"Qtd.prev.orig.UMA", "quantity", "qty"},
	colWeight:         {"Peso de carga", "total_weight", "weight"},
	colVolume:         {"Volume de carga", "total_volume", "volume"},
	colWeightUnit:     {"Unidade de peso KG", "weight_unit"},
	colUnitOfMeasure:  {"Unidade med.altern.", "unit_of_measure", "uom"},
	colUnitsRequested: {"Qtd solicitada (UN)", "units_requested"},
	colHistoricalBox:  {"ID_Caixa", "box_id", "historical_box_id"},
}

var requiredColumns = []column{colStore, colProduct, colDescription, colQuantity, colWeight, colVolume}

func normalizeHeader(h string) string {
	return strings.ToLower(strings.TrimSpace(strings.TrimPrefix(h, "\ufeff")))
}

// resolveColumns maps each known column to its index in header.
func resolveColumns(header []string) map[column]int {
	index := make(map[string]int, len(header))
	for i, h := range header {
		key := normalizeHeader(h)
		if _, dup := index[key]; !dup {
			index[key] = i
		}
	}

	cols := make(map[column]int, len(headerAliases))
	for col, aliases := range headerAliases {
		for _, alias := range aliases {
			if i, ok := index[normalizeHeader(alias)]; ok {
				cols[col] = i
				break
			}
		}
	}
	return cols
}

// Table is a parsed order-line sheet.
type Table struct {
	Lines []packer.OrderLine
	// HasArm reports whether an arm column was present.
	HasArm bool
	// HasHistory reports whether a historical box column was present.
	HasHistory bool
}

// FromRows builds a Table from a header row followed by data rows. Fully blank
// rows are skipped.
func FromRows(rows [][]string) (Table, error) {
	return fromRows(rows, false)
}

// fromRows builds a Table. With decimalComma set, numeric cells are read as
// "1.234,5" instead of "1234.5".
func fromRows(rows [][]string, decimalComma bool) (Table, error) {
	if len(rows) == 0 {
		return Table{}, ErrEmptyTable
	}

	cols := resolveColumns(rows[0])
	var missing []string
	for _, col := range requiredColumns {
		if _, ok := cols[col]; !ok {
			missing = append(missing, headerAliases[col][0])
		}
	}
	if len(missing) > 0 {
		return Table{}, &MissingColumnsError{Columns: missing}
	}

	_, hasArm := cols[colArm]
	_, hasHistory := cols[colHistoricalBox]
	table := Table{HasArm: hasArm, HasHistory: hasHistory}

	for _, row := range rows[1:] {
		if blank(row) {
			continue
		}
		get := func(col column) string {
			i, ok := cols[col]
			if !ok || i >= len(row) {
				return ""
			}
			return strings.TrimSpace(row[i])
		}
		num := func(col column) packer.Number {
			v := get(col)
			if decimalComma {
				v = decimalPoint(v)
			}
			return packer.Number(v)
		}
		table.Lines = append(table.Lines, packer.OrderLine{
			StoreID:         get(colStore),
			Arm:             packer.WithArm(get(colArm)),
			ProductID:       get(colProduct),
			Description:     get(colDescription),
			Quantity:        num(colQuantity),
			TotalWeight:     num(colWeight),
			TotalVolume:     num(colVolume),
			WeightUnit:      get(colWeightUnit),
			UnitOfMeasure:   get(colUnitOfMeasure),
			UnitsRequested:  num(colUnitsRequested),
			HistoricalBoxID: get(colHistoricalBox),
		})
	}
	return table, nil
}

// decimalPoint rewrites a decimal-comma number to the dot form. Values
// without a comma are returned unchanged.
func decimalPoint(v string) string {
	if !strings.Contains(v, ",") {
		return v
	}
	v = strings.ReplaceAll(v, ".", "")
	return strings.Replace(v, ",", ".", 1)
}

func blank(row []string) bool {
	for _, cell := range row {
		if strings.TrimSpace(cell) != "" {
			return false
		}
	}
	return true
}
