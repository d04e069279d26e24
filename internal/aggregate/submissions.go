package aggregate

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"
)

// Submission is one row of a grading export, joined against mutation
// results to normalize measures by project size.
type Submission struct {
	UserName          string
	Score             float64
	Statements        int
	StatementsTest    int
	StatementsNontest int
	MethodsTest       int
	MethodsNontest    int
}

// Submissions maps userName to that student's submission metadata.
type Submissions map[string]Submission

// Loc returns the non-test statement count for a project, or 0 when the
// project has no metadata.
func (s Submissions) Loc(userName string) int {
	if s == nil {
		return 0
	}
	return s[userName].StatementsNontest
}

// ReadSubmissions loads a grading export CSV keyed by userName. Columns are
// located by header name, so extra columns and any ordering are fine.
func ReadSubmissions(path string) (Submissions, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open metadata file: %w", err)
	}
	defer f.Close()

	reader := csv.NewReader(f)
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("failed to read metadata header: %w", err)
	}

	cols := make(map[string]int, len(header))
	for i, name := range header {
		cols[name] = i
	}
	if _, ok := cols["userName"]; !ok {
		return nil, fmt.Errorf("metadata file has no userName column")
	}

	field := func(record []string, name string) string {
		i, ok := cols[name]
		if !ok || i >= len(record) {
			return ""
		}
		return record[i]
	}

	subs := make(Submissions)
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read metadata row: %w", err)
		}

		userName := field(record, "userName")
		if userName == "" {
			continue
		}

		score, _ := strconv.ParseFloat(field(record, "score"), 64)
		subs[userName] = Submission{
			UserName:          userName,
			Score:             score,
			Statements:        atoiOrZero(field(record, "statements")),
			StatementsTest:    atoiOrZero(field(record, "statements.test")),
			StatementsNontest: atoiOrZero(field(record, "statements.nontest")),
			MethodsTest:       atoiOrZero(field(record, "methods.test")),
			MethodsNontest:    atoiOrZero(field(record, "methods.nontest")),
		}
	}

	return subs, nil
}

func atoiOrZero(s string) int {
	n, err := strconv.Atoi(s)
	if err != nil {
		// some exports write counts as floats
		f, ferr := strconv.ParseFloat(s, 64)
		if ferr != nil {
			return 0
		}
		return int(f)
	}
	return n
}
