// Package report renders network summaries and score statistics.
package report

import (
	"fmt"
	"io"

	"github.com/go-gota/gota/dataframe"

	"github.com/sugarme/unetseg/unet"
)

// StageRow is one line of a network summary.
type StageRow struct {
	Stage  string
	Kind   string
	In     int
	Out    int
	Shape  string
	Params int
}

// Summary traces a [batch C h w] input through cfg and returns one row per stage.
func Summary(cfg unet.Config, batch, h, w int64) (dataframe.DataFrame, error) {
	trace, err := cfg.Trace([]int64{batch, cfg.InChannels, h, w})
	if err != nil {
		return dataframe.DataFrame{}, err
	}

	rows := make([]StageRow, 0, len(trace))
	for _, s := range trace {
		rows = append(rows, StageRow{
			Stage:  s.Name,
			Kind:   s.Kind.String(),
			In:     int(s.CIn),
			Out:    int(s.COut),
			Shape:  fmt.Sprint(s.Shape),
			Params: int(s.Params()),
		})
	}

	df := dataframe.LoadStructs(rows)
	if df.Err != nil {
		return dataframe.DataFrame{}, df.Err
	}

	return df, nil
}

// WriteSummaryCSV writes the Summary of cfg as CSV.
func WriteSummaryCSV(w io.Writer, cfg unet.Config, batch, h, wd int64) error {
	df, err := Summary(cfg, batch, h, wd)
	if err != nil {
		return err
	}

	return df.WriteCSV(w)
}

// TotalParams sums the Params column of a Summary.
func TotalParams(df dataframe.DataFrame) int {
	col := df.Col("Params")
	if col.Err != nil {
		return 0
	}

	var total int
	for _, v := range col.Float() {
		total += int(v)
	}

	return total
}
