package matching

import (
	"math"
	"sort"
)

const (
	// minTrainingExamples gates the trained ensemble; below it the fixed
	// linear weights score every pair.
	minTrainingExamples = 10

	featureCount = 12

	// ridgeLambda is the L2 regularization strength.
	ridgeLambda = 1.0

	// knnNeighbors is the neighborhood size of the k-NN regressor.
	knnNeighbors = 3

	// boostRounds and boostLearningRate shape the gradient-boosted stumps.
	boostRounds       = 50
	boostLearningRate = 0.1
)

// ensembleBlend weights the three regressors' predictions.
var ensembleBlend = [3]float64{0.4, 0.4, 0.2}

type (
	// Example is one operator-scored (features, score) training pair.
	Example struct {
		Features FeatureVector
		Score    float64
	}

	// regressor predicts a match score from a feature vector.
	regressor interface {
		predict(features []float64) float64
	}

	// Ensemble blends a ridge regression, a k-NN regressor, and
	// gradient-boosted stumps trained on operator feedback. Prediction
	// spread drives the reported confidence.
	Ensemble struct {
		models [3]regressor
	}
)

// TrainEnsemble fits the three regressors on the feedback examples. It
// returns nil when fewer than minTrainingExamples examples exist.
func TrainEnsemble(examples []Example) *Ensemble {
	if len(examples) < minTrainingExamples {
		return nil
	}

	features := make([][]float64, len(examples))
	targets := make([]float64, len(examples))

	for i, ex := range examples {
		features[i] = ex.Features.Slice()
		targets[i] = clamp(ex.Score, 0, 1)
	}

	return &Ensemble{
		models: [3]regressor{
			trainRidge(features, targets),
			&knnRegressor{features: features, targets: targets, k: knnNeighbors},
			trainBoostedStumps(features, targets),
		},
	}
}

// Predict blends the regressors' predictions into a score and derives the
// confidence from their spread: unanimous models score high confidence,
// disagreeing ones drop toward the 0.5 floor.
func (e *Ensemble) Predict(v FeatureVector) (score, confidence float64) {
	features := v.Slice()

	var predictions [3]float64
	for i, model := range e.models {
		predictions[i] = clamp(model.predict(features), 0, 1)
	}

	for i, p := range predictions {
		score += ensembleBlend[i] * p
	}

	mean := (predictions[0] + predictions[1] + predictions[2]) / 3

	var variance float64
	for _, p := range predictions {
		variance += (p - mean) * (p - mean)
	}

	variance /= 3

	confidence = clamp(1-2*math.Sqrt(variance), 0.5, 1.0)

	return score, confidence
}

func clamp(v, lo, hi float64) float64 {
	return math.Min(hi, math.Max(lo, v))
}

// ridgeRegressor is a closed-form L2-regularized linear model.
type ridgeRegressor struct {
	weights   []float64
	intercept float64
}

// trainRidge solves (XᵀX + λI)w = Xᵀy on mean-centered data, recovering the
// intercept afterward.
func trainRidge(features [][]float64, targets []float64) *ridgeRegressor {
	n := len(features)

	means := make([]float64, featureCount)

	for _, row := range features {
		for j, v := range row {
			means[j] += v
		}
	}

	for j := range means {
		means[j] /= float64(n)
	}

	targetMean := 0.0
	for _, t := range targets {
		targetMean += t
	}

	targetMean /= float64(n)

	// Normal equations on centered data.
	gram := make([][]float64, featureCount)
	rhs := make([]float64, featureCount)

	for j := range gram {
		gram[j] = make([]float64, featureCount)
		gram[j][j] = ridgeLambda
	}

	for i, row := range features {
		for j := range row {
			cj := row[j] - means[j]
			rhs[j] += cj * (targets[i] - targetMean)

			for k := j; k < featureCount; k++ {
				gram[j][k] += cj * (row[k] - means[k])
			}
		}
	}

	for j := 0; j < featureCount; j++ {
		for k := 0; k < j; k++ {
			gram[j][k] = gram[k][j]
		}
	}

	weights := solveLinearSystem(gram, rhs)

	intercept := targetMean
	for j, w := range weights {
		intercept -= w * means[j]
	}

	return &ridgeRegressor{weights: weights, intercept: intercept}
}

func (r *ridgeRegressor) predict(features []float64) float64 {
	score := r.intercept
	for j, w := range r.weights {
		score += w * features[j]
	}

	return score
}

// solveLinearSystem solves Ax = b by Gaussian elimination with partial
// pivoting. A is destroyed. The ridge diagonal keeps the system
// well-conditioned, so a vanishing pivot only happens on degenerate input;
// that row's weight becomes zero.
func solveLinearSystem(a [][]float64, b []float64) []float64 {
	n := len(b)

	for col := 0; col < n; col++ {
		pivot := col
		for row := col + 1; row < n; row++ {
			if math.Abs(a[row][col]) > math.Abs(a[pivot][col]) {
				pivot = row
			}
		}

		a[col], a[pivot] = a[pivot], a[col]
		b[col], b[pivot] = b[pivot], b[col]

		if math.Abs(a[col][col]) < 1e-12 {
			continue
		}

		for row := col + 1; row < n; row++ {
			factor := a[row][col] / a[col][col]
			for k := col; k < n; k++ {
				a[row][k] -= factor * a[col][k]
			}

			b[row] -= factor * b[col]
		}
	}

	x := make([]float64, n)

	for col := n - 1; col >= 0; col-- {
		if math.Abs(a[col][col]) < 1e-12 {
			continue
		}

		sum := b[col]
		for k := col + 1; k < n; k++ {
			sum -= a[col][k] * x[k]
		}

		x[col] = sum / a[col][col]
	}

	return x
}

// knnRegressor averages the scores of the k nearest training examples by
// Euclidean distance in feature space.
type knnRegressor struct {
	features [][]float64
	targets  []float64
	k        int
}

func (r *knnRegressor) predict(features []float64) float64 {
	type neighbor struct {
		distance float64
		target   float64
	}

	neighbors := make([]neighbor, len(r.features))

	for i, row := range r.features {
		var d float64
		for j, v := range row {
			diff := v - features[j]
			d += diff * diff
		}

		neighbors[i] = neighbor{distance: d, target: r.targets[i]}
	}

	sort.Slice(neighbors, func(i, j int) bool {
		return neighbors[i].distance < neighbors[j].distance
	})

	k := r.k
	if k > len(neighbors) {
		k = len(neighbors)
	}

	var sum float64
	for i := 0; i < k; i++ {
		sum += neighbors[i].target
	}

	return sum / float64(k)
}

// stump is one decision stump: feature index, split threshold, and the two
// leaf values.
type stump struct {
	feature   int
	threshold float64
	left      float64
	right     float64
}

// boostedStumps is a gradient-boosted ensemble of depth-1 trees fit to
// squared-error residuals.
type boostedStumps struct {
	base   float64
	stumps []stump
}

func trainBoostedStumps(features [][]float64, targets []float64) *boostedStumps {
	n := len(targets)

	base := 0.0
	for _, t := range targets {
		base += t
	}

	base /= float64(n)

	model := &boostedStumps{base: base}

	residuals := make([]float64, n)
	for i, t := range targets {
		residuals[i] = t - base
	}

	for round := 0; round < boostRounds; round++ {
		best, ok := fitStump(features, residuals)
		if !ok {
			break
		}

		best.left *= boostLearningRate
		best.right *= boostLearningRate
		model.stumps = append(model.stumps, best)

		for i, row := range features {
			if row[best.feature] <= best.threshold {
				residuals[i] -= best.left
			} else {
				residuals[i] -= best.right
			}
		}
	}

	return model
}

// fitStump finds the (feature, threshold) split minimizing the squared error
// of the residuals, trying midpoints between consecutive distinct values.
func fitStump(features [][]float64, residuals []float64) (stump, bool) {
	n := len(residuals)

	bestError := math.Inf(1)

	var best stump

	for j := 0; j < featureCount; j++ {
		values := make([]float64, n)
		for i, row := range features {
			values[i] = row[j]
		}

		candidates := thresholdCandidates(values)

		for _, threshold := range candidates {
			var sumL, sumR float64

			var nL, nR int

			for i, v := range values {
				if v <= threshold {
					sumL += residuals[i]
					nL++
				} else {
					sumR += residuals[i]
					nR++
				}
			}

			if nL == 0 || nR == 0 {
				continue
			}

			meanL := sumL / float64(nL)
			meanR := sumR / float64(nR)

			var sse float64

			for i, v := range values {
				var d float64
				if v <= threshold {
					d = residuals[i] - meanL
				} else {
					d = residuals[i] - meanR
				}

				sse += d * d
			}

			if sse < bestError {
				bestError = sse
				best = stump{feature: j, threshold: threshold, left: meanL, right: meanR}
			}
		}
	}

	return best, !math.IsInf(bestError, 1)
}

// thresholdCandidates returns the midpoints between consecutive distinct
// sorted values.
func thresholdCandidates(values []float64) []float64 {
	sorted := append([]float64(nil), values...)
	sort.Float64s(sorted)

	var candidates []float64

	for i := 1; i < len(sorted); i++ {
		if sorted[i] != sorted[i-1] {
			candidates = append(candidates, (sorted[i]+sorted[i-1])/2)
		}
	}

	return candidates
}

func (m *boostedStumps) predict(features []float64) float64 {
	score := m.base

	for _, s := range m.stumps {
		if features[s.feature] <= s.threshold {
			score += s.left
		} else {
			score += s.right
		}
	}

	return score
}
