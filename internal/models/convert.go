package models

import (
	"time"

	"github.com/soltixdb/tagwatch/internal/analytics"
	"github.com/soltixdb/tagwatch/internal/utils"
)

// NewRowViews converts every row of t. Non-finite cells become null.
func NewRowViews(t *analytics.Table) []RowView {
	names := t.ColumnNames()
	columns := make([][]float64, len(names))
	for i, name := range names {
		columns[i] = t.MustColumn(name)
	}

	rows := make([]RowView, t.Len())
	for i, ts := range t.Times {
		row := RowView{
			Timestamp: ts.Format(time.RFC3339Nano),
			Values:    make(map[string]*float64, len(names)),
		}
		if i < len(t.Status) {
			row.Status = t.Status[i].String()
		}
		for j, name := range names {
			row.Values[name] = utils.FiniteOrNil(columns[j][i])
		}
		rows[i] = row
	}
	return rows
}

// NewPointView converts one timestamped value
func NewPointView(ts time.Time, v float64) PointView {
	return PointView{Timestamp: ts.Format(time.RFC3339Nano), Value: utils.FiniteOrNil(v)}
}
