package model

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/stat"

	"github.com/aristath/ecovest/internal/domain"
	"github.com/aristath/ecovest/internal/modules/impact/features"
)

// Scaler standardises each feature to zero mean and unit variance using
// parameters fitted on the training corpus.
type Scaler struct {
	Mean  []float64 `msgpack:"mean"`
	Scale []float64 `msgpack:"scale"`
}

// FitScaler computes per-column mean and standard deviation. Constant columns
// get a scale of 1 so they transform to zero instead of NaN.
func FitScaler(rows [][]float64) (*Scaler, error) {
	if len(rows) == 0 {
		return nil, fmt.Errorf("cannot fit scaler on empty data")
	}
	width := len(rows[0])

	s := &Scaler{
		Mean:  make([]float64, width),
		Scale: make([]float64, width),
	}
	col := make([]float64, len(rows))
	for j := 0; j < width; j++ {
		for i, row := range rows {
			if len(row) != width {
				return nil, fmt.Errorf("row %d has %d features, expected %d", i, len(row), width)
			}
			col[i] = row[j]
		}
		mean, std := stat.MeanStdDev(col, nil)
		if math.IsNaN(std) || std < 1e-12 {
			std = 1
		}
		s.Mean[j] = mean
		s.Scale[j] = std
	}
	return s, nil
}

// Width is the number of features the scaler was fitted on.
func (s *Scaler) Width() int {
	return len(s.Mean)
}

// Transform standardises x. A width mismatch is a SchemaMismatchError.
func (s *Scaler) Transform(x []float64) ([]float64, error) {
	if len(x) != s.Width() {
		return nil, &domain.SchemaMismatchError{Schema: features.SchemaVersion, Expected: s.Width(), Got: len(x)}
	}
	out := make([]float64, len(x))
	for j, v := range x {
		out[j] = (v - s.Mean[j]) / s.Scale[j]
	}
	return out, nil
}
