// Package export renders scored companies for download.
package export

import (
	"strings"

	"github.com/jszwec/csvutil"
	"github.com/rotisserie/eris"

	"github.com/sells-group/market-intel/internal/model"
)

// Row is one CSV line.
type Row struct {
	Company       string `csv:"Company"`
	Website       string `csv:"Website"`
	BusinessModel string `csv:"Business Model"`
	KeyFeatures   string `csv:"Key Features"`
	Vision        int    `csv:"Vision Score"`
	Execution     int    `csv:"Execution Score"`
	Quadrant      string `csv:"Quadrant"`
}

// Rows flattens scores into CSV rows, preserving order.
func Rows(scores []model.ScoredCompany) []Row {
	rows := make([]Row, len(scores))
	for i, s := range scores {
		bm := string(s.Raw.BusinessModel)
		if bm == "" {
			bm = string(model.BusinessModelUnknown)
		}
		rows[i] = Row{
			Company:       s.Company,
			Website:       s.URL,
			BusinessModel: bm,
			KeyFeatures:   strings.Join(s.Raw.KeyFeatures, "; "),
			Vision:        s.Vision,
			Execution:     s.Execution,
			Quadrant:      string(s.Quadrant),
		}
	}
	return rows
}

// CSV encodes scores with a header line. An empty slice yields only the
// header.
func CSV(scores []model.ScoredCompany) ([]byte, error) {
	rows := Rows(scores)
	if len(rows) == 0 {
		header, err := csvutil.Header(Row{}, "csv")
		if err != nil {
			return nil, eris.Wrap(err, "export: csv header")
		}
		return []byte(strings.Join(header, ",") + "\n"), nil
	}
	b, err := csvutil.Marshal(rows)
	if err != nil {
		return nil, eris.Wrap(err, "export: marshal csv")
	}
	return b, nil
}
