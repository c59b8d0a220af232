package simulation

import (
	"strings"

	"github.com/eugenenazirov/box-simulator/internal/packer"
	"github.com/eugenenazirov/box-simulator/internal/sheet"
)

// FromTable builds a Request for the lines of a parsed sheet.
func FromTable(table sheet.Table, source string) Request {
	return Request{
		Lines:      table.Lines,
		HasHistory: table.HasHistory,
		Source:     source,
	}
}

// HasHistory reports whether any line carries a historical box id.
func HasHistory(lines []packer.OrderLine) bool {
	for _, line := range lines {
		if strings.TrimSpace(line.HistoricalBoxID) != "" {
			return true
		}
	}
	return false
}
