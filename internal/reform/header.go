package reform

import (
	"bufio"
	"bytes"
	"regexp"
	"strconv"
	"strings"

	"github.com/taxfoundry/policy-cli/internal/model"
)

var (
	headerKeyRe = regexp.MustCompile(`^//\s*([A-Za-z_]+):\s*(.*)$`)
	bulletRe    = regexp.MustCompile(`^//\s*-\s*(.*)$`)
	mapEntryRe  = regexp.MustCompile(`^(\d+)\s*:\s*(\S+)$`)
)

// parseHeader reads the leading comment block of a reform file into
// provenance metadata. The block ends at the first non-comment, non-blank
// line. Recognized keys follow the conventional reform file header:
//
//	// Title: ...
//	// Reform_File_Author: ...
//	// Reform_Reference: ...
//	// Reform_Baseline: ...
//	// Reform_Description:
//	// - Raise the payroll tax cap (1)
//	// Reform_Parameter_Map:
//	// - 1: SS_Earnings_c
//
// Unrecognized keys and free-form comment lines are ignored.
func parseHeader(data []byte) model.Provenance {
	var prov model.Provenance
	section := ""

	sc := bufio.NewScanner(bytes.NewReader(data))
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		if !strings.HasPrefix(line, "//") {
			break
		}

		if m := headerKeyRe.FindStringSubmatch(line); m != nil {
			key, val := m[1], strings.TrimSpace(m[2])
			switch key {
			case "Title":
				prov.Title = val
				section = ""
			case "Reform_File_Author":
				prov.Author = val
				section = ""
			case "Reform_Reference":
				if val != "" {
					prov.References = append(prov.References, val)
				}
				section = ""
			case "Reform_Baseline":
				prov.Baseline = val
				section = ""
			case "Reform_Description":
				section = "description"
			case "Reform_Parameter_Map":
				section = "map"
			default:
				section = ""
			}
			continue
		}

		if m := bulletRe.FindStringSubmatch(line); m != nil {
			text := strings.TrimSpace(m[1])
			switch section {
			case "description":
				prov.Description = append(prov.Description, text)
			case "map":
				if mm := mapEntryRe.FindStringSubmatch(text); mm != nil {
					n, err := strconv.Atoi(mm[1])
					if err == nil {
						if prov.ParameterMap == nil {
							prov.ParameterMap = make(map[int]string)
						}
						prov.ParameterMap[n] = mm[2]
					}
				}
			}
		}
	}
	return prov
}
