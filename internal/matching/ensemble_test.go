package matching

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// trainingSet builds n examples whose score tracks the text feature, half
// strong matches and half weak ones.
func trainingSet(n int) []Example {
	examples := make([]Example, 0, n)

	for i := 0; i < n; i++ {
		if i%2 == 0 {
			examples = append(examples, Example{
				Features: FeatureVector{
					Text: 0.9, Semantic: 0.8, Vendor: 1.0, Weight: 1.0,
					TokenOverlap: 0.8, EditDistance: 0.9,
				},
				Score: 0.9,
			})
		} else {
			examples = append(examples, Example{
				Features: FeatureVector{
					Text: 0.2, Semantic: 0.1, Vendor: 1.0, Weight: 0.5,
					TokenOverlap: 0.1, EditDistance: 0.2,
				},
				Score: 0.1,
			})
		}
	}

	return examples
}

func TestTrainEnsemble_BelowGate(t *testing.T) {
	assert.Nil(t, TrainEnsemble(trainingSet(minTrainingExamples-1)))
	assert.Nil(t, TrainEnsemble(nil))
}

func TestTrainEnsemble_SeparatesStrongFromWeak(t *testing.T) {
	ensemble := TrainEnsemble(trainingSet(20))
	require.NotNil(t, ensemble)

	strong, _ := ensemble.Predict(FeatureVector{
		Text: 0.85, Semantic: 0.75, Vendor: 1.0, Weight: 1.0,
		TokenOverlap: 0.7, EditDistance: 0.85,
	})
	weak, _ := ensemble.Predict(FeatureVector{
		Text: 0.25, Semantic: 0.15, Vendor: 1.0, Weight: 0.5,
		TokenOverlap: 0.15, EditDistance: 0.25,
	})

	assert.Greater(t, strong, 0.6)
	assert.Less(t, weak, 0.4)
	assert.Greater(t, strong, weak)
}

func TestPredict_ScoreAndConfidenceBounds(t *testing.T) {
	ensemble := TrainEnsemble(trainingSet(12))
	require.NotNil(t, ensemble)

	vectors := []FeatureVector{
		{},
		{Text: 1, Semantic: 1, Vendor: 1, Weight: 1, TokenOverlap: 1, EditDistance: 1},
		{Text: 0.5, Vendor: 0.5},
	}

	for _, v := range vectors {
		score, confidence := ensemble.Predict(v)

		assert.GreaterOrEqual(t, score, 0.0)
		assert.LessOrEqual(t, score, 1.0)
		assert.GreaterOrEqual(t, confidence, 0.5)
		assert.LessOrEqual(t, confidence, 1.0)
	}
}

func TestPredict_AgreementRaisesConfidence(t *testing.T) {
	ensemble := TrainEnsemble(trainingSet(20))
	require.NotNil(t, ensemble)

	// A vector sitting exactly on a training cluster gets unanimous
	// predictions and therefore high confidence.
	_, confidence := ensemble.Predict(trainingSet(2)[0].Features)
	assert.Greater(t, confidence, 0.8)
}

func TestSolveLinearSystem(t *testing.T) {
	a := [][]float64{
		{2, 1},
		{1, 3},
	}
	b := []float64{3, 5}

	x := solveLinearSystem(a, b)
	require.Len(t, x, 2)

	// 2x + y = 3, x + 3y = 5 → x = 0.8, y = 1.4
	assert.InDelta(t, 0.8, x[0], 1e-9)
	assert.InDelta(t, 1.4, x[1], 1e-9)
}
