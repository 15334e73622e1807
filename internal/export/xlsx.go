package export

import (
	"io"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"

	"github.com/taxfoundry/policy-cli/internal/decimal"
	"github.com/taxfoundry/policy-cli/internal/model"
)

const (
	timelineSheetName = "Timeline"
	diffSheetName     = "Diff vs Baseline"
)

// WriteXLSX writes tl as a workbook with a wide sheet: one row per parameter,
// one column per year. When base is non-nil a second sheet holds the deltas
// against it, listing only the parameters whose series changed.
func WriteXLSX(out io.Writer, tl, base *model.Timeline) error {
	f := xlsx.NewFile()

	sheet, err := f.AddSheet(timelineSheetName)
	if err != nil {
		return eris.Wrap(err, "export: add timeline sheet")
	}
	if err := fillTimelineSheet(sheet, tl); err != nil {
		return err
	}

	if base != nil {
		ds, err := f.AddSheet(diffSheetName)
		if err != nil {
			return eris.Wrap(err, "export: add diff sheet")
		}
		if err := fillDiffSheet(ds, tl, base); err != nil {
			return err
		}
	}

	if err := f.Write(out); err != nil {
		return eris.Wrap(err, "export: write workbook")
	}
	return nil
}

func writeHeaderRow(sheet *xlsx.Sheet, window model.YearRange) {
	header := sheet.AddRow()
	header.AddCell().SetString("Parameter")
	for y := window.First; y <= window.Last; y++ {
		header.AddCell().SetInt(y)
	}
}

func writeValueCell(row *xlsx.Row, v model.Value) {
	cell := row.AddCell()
	if v.IsBracket() {
		cell.SetString(v.String())
		return
	}
	cell.SetFloat(v.Scalar())
}

func fillTimelineSheet(sheet *xlsx.Sheet, tl *model.Timeline) error {
	writeHeaderRow(sheet, tl.Window())

	for _, name := range tl.Params() {
		series, err := tl.Series(name)
		if err != nil {
			return eris.Wrapf(err, "export: parameter %s", name)
		}
		row := sheet.AddRow()
		row.AddCell().SetString(name)
		for _, v := range series {
			writeValueCell(row, v)
		}
	}
	return nil
}

// fillDiffSheet writes tl minus base in the same grid shape, skipping
// parameters whose series match the baseline everywhere.
func fillDiffSheet(sheet *xlsx.Sheet, tl, base *model.Timeline) error {
	writeHeaderRow(sheet, tl.Window())

	for _, name := range tl.Params() {
		series, err := tl.Series(name)
		if err != nil {
			return eris.Wrapf(err, "export: parameter %s", name)
		}
		baseSeries, err := base.Series(name)
		if err != nil {
			return eris.Wrapf(err, "export: baseline parameter %s", name)
		}
		if seriesEqual(series, baseSeries) {
			continue
		}
		row := sheet.AddRow()
		row.AddCell().SetString(name)
		for i, v := range series {
			writeValueCell(row, diffValue(v, baseSeries[i]))
		}
	}
	return nil
}

func seriesEqual(a, b []model.Value) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if !a[i].Equal(b[i]) {
			return false
		}
	}
	return true
}

// diffValue subtracts element-wise for brackets and directly for scalars,
// in decimal so the deltas come out clean.
func diffValue(v, base model.Value) model.Value {
	if !v.IsBracket() {
		return model.Scalar(decimal.Sub(v.Scalar(), base.Scalar()))
	}
	elems := v.Bracket()
	baseElems := base.Bracket()
	deltas := make([]float64, len(elems))
	for i, e := range elems {
		deltas[i] = decimal.Sub(e, baseElems[i])
	}
	return model.Bracket(deltas)
}
