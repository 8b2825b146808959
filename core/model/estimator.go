package model

import "gonum.org/v1/gonum/mat"

// Fitter は学習可能なモデルのインターフェース
type Fitter interface {
	// Fit はモデルを訓練データで学習させる
	Fit(X, y mat.Matrix) error
}

// Predictor は予測可能なモデルのインターフェース
type Predictor interface {
	// Predict は入力データに対する予測を行う
	Predict(X mat.Matrix) (mat.Matrix, error)
}

// BinaryClassifier は二値分類器のインターフェース
type BinaryClassifier interface {
	Fitter
	Predictor

	// DecisionFunction は生のスコア（マージン）を返す
	DecisionFunction(X mat.Matrix) (mat.Matrix, error)

	// PredictProba は n×2 の確率行列（負例, 正例）を返す
	PredictProba(X mat.Matrix) (mat.Matrix, error)
}

// TextTransformer はテキスト列を数値ベクトルに変換するインターフェース
type TextTransformer interface {
	// Fit は語彙などの変換パラメータを学習する
	Fit(texts []string) error

	// Transform はテキストを特徴量行列に変換する
	Transform(texts []string) (*mat.Dense, error)

	// FitTransform はFitとTransformを同時に実行する
	FitTransform(texts []string) (*mat.Dense, error)

	// NumFeatures は出力ベクトルの次元数を返す
	NumFeatures() int
}
