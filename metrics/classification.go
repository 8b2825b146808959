package metrics

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/integrate"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"

	"github.com/YuminosukeSato/sentiment/pkg/errors"
)

// logLossEpsilon は確率をクリップする幅
const logLossEpsilon = 1e-15

// checkPair は2つのベクトルが空でなく同じ長さであることを確認する
func checkPair(op string, yTrue, yPred *mat.VecDense) (int, error) {
	if yTrue == nil || yPred == nil {
		return 0, errors.NewValueError(op, "empty vector")
	}
	n := yTrue.Len()
	if n == 0 {
		return 0, errors.NewValueError(op, "empty vector")
	}
	if yPred.Len() != n {
		return 0, errors.NewDimensionError(op, n, yPred.Len(), 0)
	}
	return n, nil
}

// checkBinaryLabels はラベルが0か1であることを確認し、陽性の数を返す
func checkBinaryLabels(op string, yTrue *mat.VecDense) (int, error) {
	positives := 0
	for i := 0; i < yTrue.Len(); i++ {
		switch yTrue.AtVec(i) {
		case 1:
			positives++
		case 0:
		default:
			return 0, errors.NewValueError(op, "labels must be 0 or 1")
		}
	}
	return positives, nil
}

// firstColumn は行列の先頭列をVecDenseとして取り出す
func firstColumn(op string, m mat.Matrix) (*mat.VecDense, error) {
	if m == nil {
		return nil, errors.NewValueError(op, "nil matrix")
	}
	if d, ok := m.(*mat.Dense); ok && d.IsEmpty() {
		return nil, errors.NewValueError(op, "empty matrix")
	}
	r, c := m.Dims()
	if r == 0 || c == 0 {
		return nil, errors.NewValueError(op, "empty matrix")
	}
	return mat.NewVecDense(r, mat.Col(nil, 0, m)), nil
}

// Accuracy は正解率を計算する（多クラスのラベルにも使える）
func Accuracy(yTrue, yPred *mat.VecDense) (float64, error) {
	n, err := checkPair("Accuracy", yTrue, yPred)
	if err != nil {
		return 0, err
	}
	correct := 0
	for i := 0; i < n; i++ {
		if yTrue.AtVec(i) == yPred.AtVec(i) {
			correct++
		}
	}
	return float64(correct) / float64(n), nil
}

// ClassificationError は誤分類率（1 - Accuracy）を計算する
func ClassificationError(yTrue, yPred *mat.VecDense) (float64, error) {
	acc, err := Accuracy(yTrue, yPred)
	if err != nil {
		return 0, err
	}
	return 1 - acc, nil
}

// ROCCurve はROC曲線の点を返す
//
// fprとtprは閾値を下げる順に並び、fprは昇順になる。thresholds[0]は+Inf。
// 同点のスコアは1点にまとめられる。
func ROCCurve(yTrue, yScore *mat.VecDense) (fpr, tpr, thresholds []float64, err error) {
	n, err := checkPair("ROCCurve", yTrue, yScore)
	if err != nil {
		return nil, nil, nil, err
	}
	if _, err := checkBinaryLabels("ROCCurve", yTrue); err != nil {
		return nil, nil, nil, err
	}

	y := make([]float64, n)
	classes := make([]bool, n)
	for i := 0; i < n; i++ {
		y[i] = yScore.AtVec(i)
		classes[i] = yTrue.AtVec(i) == 1
	}
	stat.SortWeightedLabeled(y, classes, nil)

	tpr, fpr, thresholds = stat.ROC(nil, y, classes, nil)
	return fpr, tpr, thresholds, nil
}

// AUC はROC曲線下面積を計算する
//
// ラベルが1クラスしかない場合は定義できないため、UndefinedMetricWarningを
// 発生させて0.5を返す。
func AUC(yTrue, yScore *mat.VecDense) (float64, error) {
	n, err := checkPair("AUC", yTrue, yScore)
	if err != nil {
		return 0, err
	}
	positives, err := checkBinaryLabels("AUC", yTrue)
	if err != nil {
		return 0, err
	}
	if positives == 0 || positives == n {
		errors.Warn(errors.NewUndefinedMetricWarning("AUC", "only one class present in y_true", 0.5))
		return 0.5, nil
	}

	fpr, tpr, _, err := ROCCurve(yTrue, yScore)
	if err != nil {
		return 0, err
	}
	return integrate.Trapezoidal(fpr, tpr), nil
}

// AUCMatrix は行列の先頭列を使ってAUCを計算する
func AUCMatrix(yTrue, yScore mat.Matrix) (float64, error) {
	t, err := firstColumn("AUCMatrix", yTrue)
	if err != nil {
		return 0, err
	}
	s, err := firstColumn("AUCMatrix", yScore)
	if err != nil {
		return 0, err
	}
	return AUC(t, s)
}

// BinaryLogLoss は二値交差エントロピー（自然対数）を計算する
// 確率は[eps, 1-eps]にクリップされる。
func BinaryLogLoss(yTrue, yProb *mat.VecDense) (float64, error) {
	n, err := checkPair("BinaryLogLoss", yTrue, yProb)
	if err != nil {
		return 0, err
	}
	if _, err := checkBinaryLabels("BinaryLogLoss", yTrue); err != nil {
		return 0, err
	}

	var sum float64
	for i := 0; i < n; i++ {
		p := errors.ClipValue(yProb.AtVec(i), logLossEpsilon, 1-logLossEpsilon)
		if yTrue.AtVec(i) == 1 {
			sum -= math.Log(p)
		} else {
			sum -= math.Log(1 - p)
		}
	}
	return sum / float64(n), nil
}

// AveragePrecision はスコア降順に並べたときの、各陽性位置での適合率の平均
// （PR曲線下面積の推定値）を計算する。陽性が無い場合は0。
func AveragePrecision(yTrue, yScore *mat.VecDense) (float64, error) {
	n, err := checkPair("AveragePrecision", yTrue, yScore)
	if err != nil {
		return 0, err
	}
	positives, err := checkBinaryLabels("AveragePrecision", yTrue)
	if err != nil {
		return 0, err
	}
	if positives == 0 {
		return 0, nil
	}

	order := make([]int, n)
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		return yScore.AtVec(order[a]) > yScore.AtVec(order[b])
	})

	hits := 0
	var sum float64
	for rank, idx := range order {
		if yTrue.AtVec(idx) == 1 {
			hits++
			sum += float64(hits) / float64(rank+1)
		}
	}
	return sum / float64(positives), nil
}
