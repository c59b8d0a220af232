package sheet

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/xuri/excelize/v2"
	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/transform"
)

// DefaultSheet is the worksheet order lines are read from.
const DefaultSheet = "Base"

// ReadOptions controls how an input file is decoded.
type ReadOptions struct {
	// Sheet names the xlsx worksheet. Empty means DefaultSheet.
	Sheet string
	// Encoding of CSV input: utf-8, windows-1252 or iso-8859-1. Empty means utf-8.
	Encoding string
	// Comma is the CSV separator. Zero sniffs ';' or ',' from the header line.
	Comma rune
}

// Read decodes r according to the extension of filename.
func Read(r io.Reader, filename string, opts ReadOptions) (Table, error) {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".xlsx", ".xlsm":
		return ReadXLSX(r, opts.Sheet)
	case ".csv", ".txt":
		return ReadCSV(r, opts)
	default:
		return Table{}, fmt.Errorf("%w: %q", ErrUnsupportedFormat, filename)
	}
}

// ReadXLSX reads order lines from the named worksheet of an xlsx workbook.
func ReadXLSX(r io.Reader, sheet string) (Table, error) {
	if sheet == "" {
		sheet = DefaultSheet
	}

	f, err := excelize.OpenReader(r)
	if err != nil {
		return Table{}, fmt.Errorf("open workbook: %w", err)
	}
	defer func() {
		_ = f.Close()
	}()

	if idx, err := f.GetSheetIndex(sheet); err != nil || idx < 0 {
		return Table{}, fmt.Errorf("%w: %q", ErrSheetNotFound, sheet)
	}

	rows, err := f.GetRows(sheet, excelize.Options{RawCellValue: true})
	if err != nil {
		return Table{}, fmt.Errorf("read sheet %q: %w", sheet, err)
	}
	return FromRows(rows)
}

// ReadCSV reads order lines from delimited text.
func ReadCSV(r io.Reader, opts ReadOptions) (Table, error) {
	enc, err := lookupEncoding(opts.Encoding)
	if err != nil {
		return Table{}, err
	}
	if enc != nil {
		r = transform.NewReader(r, enc.NewDecoder())
	}

	data, err := io.ReadAll(r)
	if err != nil {
		return Table{}, fmt.Errorf("read csv: %w", err)
	}
	data = bytes.TrimPrefix(data, []byte("\xef\xbb\xbf"))

	reader := csv.NewReader(bytes.NewReader(data))
	reader.LazyQuotes = true
	reader.FieldsPerRecord = -1
	reader.Comma = opts.Comma
	if reader.Comma == 0 {
		reader.Comma = sniffComma(data)
	}

	rows, err := reader.ReadAll()
	if err != nil {
		return Table{}, fmt.Errorf("parse csv: %w", err)
	}
	// Semicolon-separated exports write numbers with a decimal comma.
	return fromRows(rows, reader.Comma == ';')
}

// SupportedEncoding reports whether name is a CSV encoding ReadCSV accepts.
func SupportedEncoding(name string) bool {
	_, err := lookupEncoding(name)
	return err == nil
}

func lookupEncoding(name string) (encoding.Encoding, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "utf-8", "utf8":
		return nil, nil
	case "windows-1252", "cp1252":
		return charmap.Windows1252, nil
	case "iso-8859-1", "latin1", "latin-1":
		return charmap.ISO8859_1, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedEncoding, name)
	}
}

func sniffComma(data []byte) rune {
	header := data
	if i := bytes.IndexByte(data, '\n'); i >= 0 {
		header = data[:i]
	}
	if bytes.Count(header, []byte(";")) > bytes.Count(header, []byte(",")) {
		return ';'
	}
	return ','
}
