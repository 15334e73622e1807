// Package export renders resolved timelines for downstream consumption:
// long-format CSV, XLSX workbooks with an optional baseline diff sheet, and
// aligned terminal tables.
package export

import (
	"encoding/csv"
	"io"
	"strconv"

	"github.com/rotisserie/eris"

	"github.com/taxfoundry/policy-cli/internal/model"
)

// csvColumns defines the ordered long-format CSV output columns.
var csvColumns = []string{"parameter", "year", "value"}

// WriteCSV writes tl as long-format rows, one (parameter, year, value) triple
// per line. Parameters keep timeline order, years ascend, and bracket values
// render in their JSON array form.
func WriteCSV(out io.Writer, tl *model.Timeline) error {
	w := csv.NewWriter(out)

	if err := w.Write(csvColumns); err != nil {
		return eris.Wrap(err, "export: write csv header")
	}

	window := tl.Window()
	for _, name := range tl.Params() {
		series, err := tl.Series(name)
		if err != nil {
			return eris.Wrapf(err, "export: parameter %s", name)
		}
		for i, v := range series {
			row := []string{name, strconv.Itoa(window.First + i), v.String()}
			if err := w.Write(row); err != nil {
				return eris.Wrapf(err, "export: write csv row for %s", name)
			}
		}
	}

	w.Flush()
	if err := w.Error(); err != nil {
		return eris.Wrap(err, "export: flush csv")
	}
	return nil
}
