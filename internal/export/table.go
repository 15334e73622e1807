package export

import (
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/rotisserie/eris"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/taxfoundry/policy-cli/internal/model"
)

// sentinelFloor marks the magnitude beyond which a value is treated as an
// unbounded sentinel (9e99) rather than a dollar amount.
const sentinelFloor = 1e15

// WriteTable writes tl to out as an aligned parameter-by-year table. A
// non-nil schema turns on unit-aware formatting: dollar amounts get grouped
// digits, rates keep their full precision. With a nil schema every value
// renders in its compact form.
func WriteTable(out io.Writer, tl *model.Timeline, s *model.Schema) error {
	window := tl.Window()
	p := message.NewPrinter(language.English)

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)

	headers := make([]string, 0, window.Len()+1)
	headers = append(headers, "PARAMETER")
	for y := window.First; y <= window.Last; y++ {
		headers = append(headers, strconv.Itoa(y))
	}
	_, _ = fmt.Fprintln(w, strings.Join(headers, "\t"))

	dashes := make([]string, len(headers))
	for i, h := range headers {
		dashes[i] = strings.Repeat("-", len(h))
	}
	_, _ = fmt.Fprintln(w, strings.Join(dashes, "\t"))

	for _, name := range tl.Params() {
		series, err := tl.Series(name)
		if err != nil {
			return eris.Wrapf(err, "export: parameter %s", name)
		}

		var unit model.Unit
		if s != nil {
			if spec, err := s.Lookup(name); err == nil {
				unit = spec.Unit
			}
		}

		cells := make([]string, 0, len(series)+1)
		cells = append(cells, name)
		for _, v := range series {
			cells = append(cells, formatValue(p, v, unit))
		}
		_, _ = fmt.Fprintln(w, strings.Join(cells, "\t"))
	}

	if err := w.Flush(); err != nil {
		return eris.Wrap(err, "export: flush table")
	}
	return nil
}

func formatValue(p *message.Printer, v model.Value, unit model.Unit) string {
	if !v.IsBracket() {
		return formatScalar(p, v.Scalar(), unit)
	}
	elems := v.Bracket()
	parts := make([]string, len(elems))
	for i, e := range elems {
		parts[i] = formatScalar(p, e, unit)
	}
	return "[" + strings.Join(parts, ", ") + "]"
}

// formatScalar renders one number. Only dollar amounts are grouped; counts,
// years, and rates keep the compact form, as do unbounded sentinels.
func formatScalar(p *message.Printer, f float64, unit model.Unit) string {
	if unit != model.UnitUSD || math.Abs(f) >= sentinelFloor {
		return strconv.FormatFloat(f, 'g', -1, 64)
	}
	if f == math.Trunc(f) {
		return p.Sprintf("%d", int64(f))
	}
	return p.Sprintf("%.2f", f)
}
