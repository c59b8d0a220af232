package sheet

import (
	"errors"
	"strings"
)

var (
	// ErrEmptyTable is returned when the input has no header row.
	ErrEmptyTable = errors.New("input table is empty")
	// ErrMissingColumns is matched by MissingColumnsError.
	ErrMissingColumns = errors.New("required columns are missing")
	// ErrUnsupportedFormat is returned for files that are neither xlsx nor csv.
	ErrUnsupportedFormat = errors.New("unsupported file format, expected .xlsx or .csv")
	// ErrUnsupportedEncoding is returned for unknown CSV encodings.
	ErrUnsupportedEncoding = errors.New("unsupported CSV encoding")
	// ErrSheetNotFound is returned when the workbook lacks the requested sheet.
	ErrSheetNotFound = errors.New("sheet not found in workbook")
)

// MissingColumnsError names the required headers absent from the input.
type MissingColumnsError struct {
	Columns []string
}

func (e *MissingColumnsError) Error() string {
	return ErrMissingColumns.Error() + ": " + strings.Join(e.Columns, ", ")
}

func (e *MissingColumnsError) Is(target error) bool {
	return target == ErrMissingColumns
}
