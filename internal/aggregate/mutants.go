package aggregate

import (
	"encoding/csv"
	"fmt"
	"io"
	"regexp"
	"strconv"
	"strings"

	"github.com/mutbatch/mutbatch/internal/pit"
)

// MutantRow is one mutant tagged with the project it came from.
type MutantRow struct {
	UserName string
	Mutant   pit.Mutant
}

// ConcatMutants combines every project's mutants into one table
func ConcatMutants(projects []Project) ([]MutantRow, error) {
	var rows []MutantRow
	for _, p := range projects {
		mutants, err := pit.ParseMutationsCSV(p.MutationsCSV)
		if err != nil {
			return nil, fmt.Errorf("failed to parse %s: %w", p.UserName, err)
		}
		for _, m := range mutants {
			rows = append(rows, MutantRow{UserName: p.UserName, Mutant: m})
		}
	}
	return rows, nil
}

// WriteMutants writes the combined mutant table as CSV. The status column
// is headed killed, matching the layout the downstream notebooks read.
func WriteMutants(w io.Writer, rows []MutantRow) error {
	cw := csv.NewWriter(w)

	header := []string{"userName", "fileName", "className", "mutator", "method", "lineNumber", "killed", "killingTest"}
	if err := cw.Write(header); err != nil {
		return err
	}
	for _, row := range rows {
		m := row.Mutant
		record := []string{
			row.UserName,
			m.FileName,
			m.ClassName,
			m.Mutator,
			m.Method,
			strconv.Itoa(m.LineNumber),
			m.Status,
			m.KillingTest,
		}
		if err := cw.Write(record); err != nil {
			return err
		}
	}

	cw.Flush()
	return cw.Error()
}

// subtypedPrefixes are operator families that come in numbered variants,
// e.g. AOR1Mutator and CRCR5Mutator, or in the RemoveConditional case as
// named variants like RemoveConditionalMutator_EQUAL_IF.
var subtypedPrefixes = []string{"AOR", "AOD", "ROR", "UOI", "OBBN", "CRCR", "RemoveConditional"}

var mutatorSubtype = regexp.MustCompile(`^(\w+?)\d`)

// CleanMutatorName collapses an engine mutator name to its operator family:
// the class path is dropped, numbered subtypes fold into their prefix and
// the Mutator suffix goes.
func CleanMutatorName(name string) string {
	if i := strings.LastIndex(name, "."); i >= 0 {
		name = name[i+1:]
	}

	for _, prefix := range subtypedPrefixes {
		if !strings.HasPrefix(name, prefix) {
			continue
		}
		if m := mutatorSubtype.FindStringSubmatch(name); m != nil {
			name = m[1]
		} else {
			name = "RemoveConditional"
		}
		break
	}

	if i := strings.Index(name, "Mutator"); i >= 0 {
		name = name[:i]
	}
	return name
}
