package report

import (
	"os"
	"path/filepath"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/plotutil"
	"gonum.org/v1/plot/vg"

	"github.com/YuminosukeSato/sentiment/metrics"
	"github.com/YuminosukeSato/sentiment/pkg/errors"
)

// plotSize は出力画像の一辺の長さ
const plotSize = 5 * vg.Inch

// Curve is one labelled ROC curve.
type Curve struct {
	Name string
	FPR  []float64
	TPR  []float64
}

// NewCurve computes the ROC curve of scores against 0/1 labels.
func NewCurve(name string, labels, scores []float64) (Curve, error) {
	if len(labels) == 0 {
		return Curve{}, errors.NewModelError("NewCurve", "empty data", errors.ErrEmptyData)
	}
	if len(scores) != len(labels) {
		return Curve{}, errors.NewDimensionError("NewCurve", len(labels), len(scores), 0)
	}
	fpr, tpr, _, err := metrics.ROCCurve(
		mat.NewVecDense(len(labels), append([]float64(nil), labels...)),
		mat.NewVecDense(len(scores), append([]float64(nil), scores...)),
	)
	if err != nil {
		return Curve{}, err
	}
	return Curve{Name: name, FPR: fpr, TPR: tpr}, nil
}

// PlotROC renders the curves plus the chance diagonal. The image format
// follows the extension of path (.png, .svg, .pdf, ...).
func PlotROC(path string, curves ...Curve) error {
	if len(curves) == 0 {
		return errors.NewValueError("PlotROC", "no curves to plot")
	}

	p := plot.New()
	p.Title.Text = "ROC curve"
	p.X.Label.Text = "False positive rate"
	p.Y.Label.Text = "True positive rate"
	p.X.Min, p.X.Max = 0, 1
	p.Y.Min, p.Y.Max = 0, 1
	p.Add(plotter.NewGrid())

	chance, err := plotter.NewLine(plotter.XYs{{X: 0, Y: 0}, {X: 1, Y: 1}})
	if err != nil {
		return errors.Wrap(err, "failed to build diagonal")
	}
	chance.Dashes = plotutil.Dashes(1)
	p.Add(chance)

	for i, c := range curves {
		if len(c.FPR) != len(c.TPR) {
			return errors.NewDimensionError("PlotROC", len(c.FPR), len(c.TPR), 0)
		}
		pts := make(plotter.XYs, len(c.FPR))
		for j := range c.FPR {
			pts[j].X = c.FPR[j]
			pts[j].Y = c.TPR[j]
		}
		line, err := plotter.NewLine(pts)
		if err != nil {
			return errors.Wrapf(err, "failed to build curve %s", c.Name)
		}
		line.Color = plotutil.Color(i)
		line.Width = vg.Points(2)
		p.Add(line)
		p.Legend.Add(c.Name, line)
	}
	p.Legend.Top = false
	p.Legend.Left = false

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return errors.Wrapf(err, "failed to create directory for %s", path)
	}
	if err := p.Save(plotSize, plotSize, path); err != nil {
		return errors.Wrapf(err, "failed to save ROC plot %s", path)
	}
	return nil
}
