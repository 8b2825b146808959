package fasttree

import (
	"sort"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/sentiment/core/parallel"
)

// featureBins maps the values of one feature to histogram bins.
// Bin k holds values <= upper[k]; thresholds[k] separates bin k from k+1.
type featureBins struct {
	upper      []float64
	thresholds []float64
}

func (b *featureBins) numBins() int { return len(b.upper) }

func (b *featureBins) bin(v float64) int {
	k := sort.SearchFloat64s(b.upper, v)
	if k >= len(b.upper) {
		k = len(b.upper) - 1
	}
	return k
}

// newFeatureBins builds at most maxBin bins from the distinct values.
// With few distinct values every value gets its own bin; otherwise bins hold
// roughly equal numbers of distinct values.
func newFeatureBins(values []float64, maxBin int) featureBins {
	sorted := make([]float64, len(values))
	copy(sorted, values)
	sort.Float64s(sorted)

	unique := sorted[:0:0]
	for i, v := range sorted {
		if i == 0 || v != sorted[i-1] {
			unique = append(unique, v)
		}
	}

	var fb featureBins
	if len(unique) <= maxBin {
		fb.upper = unique
	} else {
		step := float64(len(unique)) / float64(maxBin)
		for k := 1; k < maxBin; k++ {
			fb.upper = append(fb.upper, unique[int(float64(k)*step)-1])
		}
		fb.upper = append(fb.upper, unique[len(unique)-1])
	}

	fb.thresholds = make([]float64, len(fb.upper)-1)
	for k := range fb.thresholds {
		next := fb.upper[k+1]
		if len(unique) > maxBin {
			// smallest distinct value above upper[k]
			j := sort.SearchFloat64s(unique, fb.upper[k])
			next = unique[j+1]
		}
		fb.thresholds[k] = (fb.upper[k] + next) / 2
	}
	return fb
}

// binnedData holds the bin index of every (feature, row) pair, feature-major.
type binnedData struct {
	rows, cols int
	features   []featureBins
	bins       []int32
}

func (d *binnedData) binAt(feature, row int) int {
	return int(d.bins[feature*d.rows+row])
}

func newBinnedData(X mat.Matrix, maxBin int) *binnedData {
	rows, cols := X.Dims()
	d := &binnedData{
		rows:     rows,
		cols:     cols,
		features: make([]featureBins, cols),
		bins:     make([]int32, rows*cols),
	}
	parallel.ParallelizeWithThreshold(cols, 32, func(start, end int) {
		values := make([]float64, rows)
		for j := start; j < end; j++ {
			mat.Col(values, j, X)
			d.features[j] = newFeatureBins(values, maxBin)
			for i, v := range values {
				d.bins[j*rows+i] = int32(d.features[j].bin(v))
			}
		}
	})
	return d
}
