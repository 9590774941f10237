package intent

import (
	"encoding/json"
	"fmt"
	"math"
	"math/rand"
	"os"
	"sort"
	"strings"
)

// DefaultMarginThreshold is the minimum decision margin a model prediction
// must reach; anything below is reported as Unknown.
const DefaultMarginThreshold = 0.5

// trainerDefaults for the SGD hinge-loss fit.
const (
	defaultEpochs       = 30
	defaultLearningRate = 0.1
	defaultRegularizer  = 1e-4
	defaultSeed         = 1
)

// ModelClassifier is a one-vs-rest linear classifier over TF-IDF features
// of word unigrams and bigrams. It must be trained (or loaded) before
// Classify produces model verdicts.
type ModelClassifier struct {
	threshold float64

	vocab   map[string]int
	idf     []float64
	classes []Intent
	// weights[c] is the dense weight vector of class c over the vocabulary.
	weights [][]float64
	bias    []float64

	trained bool
}

// ModelOption configures a ModelClassifier.
type ModelOption func(*ModelClassifier)

// WithMarginThreshold overrides the Unknown cutoff.
func WithMarginThreshold(t float64) ModelOption {
	return func(m *ModelClassifier) {
		if t > 0 {
			m.threshold = t
		}
	}
}

// NewModelClassifier creates an untrained model classifier.
func NewModelClassifier(opts ...ModelOption) *ModelClassifier {
	m := &ModelClassifier{threshold: DefaultMarginThreshold}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Trained reports whether the model has been fitted or loaded.
func (m *ModelClassifier) Trained() bool { return m.trained }

// tokens splits prepared text into word unigrams plus adjacent bigrams.
func tokens(text string) []string {
	words := strings.Fields(strings.ToLower(text))
	out := make([]string, 0, len(words)*2)
	out = append(out, words...)
	for i := 0; i+1 < len(words); i++ {
		out = append(out, words[i]+" "+words[i+1])
	}
	return out
}

// Train fits the model on labeled examples. Examples labeled Unknown are
// dropped; training on an empty usable set returns ErrNoTrainingData.
func (m *ModelClassifier) Train(examples []Example) error {
	usable := make([]Example, 0, len(examples))
	for _, ex := range examples {
		if ex.Label == Unknown || strings.TrimSpace(ex.Text) == "" {
			continue
		}
		usable = append(usable, ex)
	}
	if len(usable) == 0 {
		return ErrNoTrainingData
	}

	m.buildVocabulary(usable)

	classIndex := make(map[Intent]int)
	m.classes = m.classes[:0]
	for _, ex := range usable {
		if _, ok := classIndex[ex.Label]; !ok {
			classIndex[ex.Label] = len(m.classes)
			m.classes = append(m.classes, ex.Label)
		}
	}

	vectors := make([]map[int]float64, len(usable))
	labels := make([]int, len(usable))
	for i, ex := range usable {
		vectors[i] = m.vectorize(ex.Text)
		labels[i] = classIndex[ex.Label]
	}

	m.weights = make([][]float64, len(m.classes))
	m.bias = make([]float64, len(m.classes))
	for c := range m.weights {
		m.weights[c] = make([]float64, len(m.vocab))
	}

	// One-vs-rest SGD with hinge loss. The seed is fixed so repeated
	// training runs on the same corpus produce the same model.
	rng := rand.New(rand.NewSource(defaultSeed))
	order := make([]int, len(usable))
	for i := range order {
		order[i] = i
	}

	for epoch := 0; epoch < defaultEpochs; epoch++ {
		rng.Shuffle(len(order), func(i, j int) { order[i], order[j] = order[j], order[i] })
		lr := defaultLearningRate / (1 + float64(epoch)*0.1)

		for _, idx := range order {
			x := vectors[idx]
			for c := range m.classes {
				y := -1.0
				if labels[idx] == c {
					y = 1.0
				}
				margin := y * (dot(m.weights[c], x) + m.bias[c])

				decay := 1 - lr*defaultRegularizer
				for f := range m.weights[c] {
					m.weights[c][f] *= decay
				}
				if margin < 1 {
					for f, v := range x {
						m.weights[c][f] += lr * y * v
					}
					m.bias[c] += lr * y
				}
			}
		}
	}

	m.trained = true
	return nil
}

// TrainFromTexts auto-labels texts with the keyword rules and trains on
// the result. Texts the rules cannot label are skipped.
func (m *ModelClassifier) TrainFromTexts(texts []string) error {
	return m.Train(AutoLabel(texts))
}

// Classify scores the text against every class and returns the best
// intent, or Unknown when the best margin falls below the threshold.
// An untrained model always answers Unknown.
func (m *ModelClassifier) Classify(text string) Classification {
	if !m.trained {
		return Classification{Intent: Unknown, Source: "model"}
	}

	x := m.vectorize(text)
	best := -1
	bestMargin := math.Inf(-1)
	for c := range m.classes {
		margin := dot(m.weights[c], x) + m.bias[c]
		if margin > bestMargin {
			bestMargin = margin
			best = c
		}
	}

	if best < 0 || bestMargin < m.threshold {
		return Classification{Intent: Unknown, Confidence: bestMargin, Source: "model"}
	}
	return Classification{Intent: m.classes[best], Confidence: bestMargin, Source: "model"}
}

// ClassMetrics is the per-class slice of an evaluation report.
type ClassMetrics struct {
	Precision float64 `json:"precision"`
	Recall    float64 `json:"recall"`
	F1        float64 `json:"f1"`
	Support   int     `json:"support"`
}

// Report summarizes model quality on a labeled set.
type Report struct {
	Accuracy float64                 `json:"accuracy"`
	Classes  map[Intent]ClassMetrics `json:"classes"`
}

// Evaluate scores the model on labeled examples. Predictions rejected as
// Unknown count as errors against the true class.
func (m *ModelClassifier) Evaluate(examples []Example) (Report, error) {
	if !m.trained {
		return Report{}, ErrNotTrained
	}
	if len(examples) == 0 {
		return Report{}, ErrNoTrainingData
	}

	correct := 0
	truePos := make(map[Intent]int)
	predicted := make(map[Intent]int)
	actual := make(map[Intent]int)

	for _, ex := range examples {
		got := m.Classify(ex.Text).Intent
		actual[ex.Label]++
		predicted[got]++
		if got == ex.Label {
			correct++
			truePos[got]++
		}
	}

	report := Report{
		Accuracy: float64(correct) / float64(len(examples)),
		Classes:  make(map[Intent]ClassMetrics),
	}
	for label, support := range actual {
		var mtr ClassMetrics
		mtr.Support = support
		if predicted[label] > 0 {
			mtr.Precision = float64(truePos[label]) / float64(predicted[label])
		}
		mtr.Recall = float64(truePos[label]) / float64(support)
		if mtr.Precision+mtr.Recall > 0 {
			mtr.F1 = 2 * mtr.Precision * mtr.Recall / (mtr.Precision + mtr.Recall)
		}
		report.Classes[label] = mtr
	}
	return report, nil
}

// modelFile is the JSON persistence schema.
type modelFile struct {
	Threshold float64        `json:"threshold"`
	Vocab     map[string]int `json:"vocab"`
	IDF       []float64      `json:"idf"`
	Classes   []Intent       `json:"classes"`
	Weights   [][]float64    `json:"weights"`
	Bias      []float64      `json:"bias"`
}

// Save writes the trained model to path as JSON. Saving an untrained
// model is an error.
func (m *ModelClassifier) Save(path string) error {
	if !m.trained {
		return ErrNotTrained
	}
	data, err := json.Marshal(modelFile{
		Threshold: m.threshold,
		Vocab:     m.vocab,
		IDF:       m.idf,
		Classes:   m.classes,
		Weights:   m.weights,
		Bias:      m.bias,
	})
	if err != nil {
		return fmt.Errorf("encoding intent model: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("writing intent model: %w", err)
	}
	return nil
}

// Load replaces the model state with the artifact at path.
func (m *ModelClassifier) Load(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading intent model: %w", err)
	}
	var file modelFile
	if err := json.Unmarshal(data, &file); err != nil {
		return fmt.Errorf("decoding intent model: %w", err)
	}
	if len(file.Classes) == 0 || len(file.Weights) != len(file.Classes) || len(file.Bias) != len(file.Classes) {
		return fmt.Errorf("decoding intent model: inconsistent artifact %q", path)
	}

	m.vocab = file.Vocab
	m.idf = file.IDF
	m.classes = file.Classes
	m.weights = file.Weights
	m.bias = file.Bias
	if file.Threshold > 0 {
		m.threshold = file.Threshold
	}
	m.trained = true
	return nil
}

// buildVocabulary assigns stable feature ids and inverse document
// frequencies over the training set. Ids are assigned in sorted token
// order so training is deterministic.
func (m *ModelClassifier) buildVocabulary(examples []Example) {
	docFreq := make(map[string]int)
	for _, ex := range examples {
		seen := make(map[string]bool)
		for _, tok := range tokens(ex.Text) {
			if !seen[tok] {
				seen[tok] = true
				docFreq[tok]++
			}
		}
	}

	terms := make([]string, 0, len(docFreq))
	for term := range docFreq {
		terms = append(terms, term)
	}
	sort.Strings(terms)

	m.vocab = make(map[string]int, len(terms))
	m.idf = make([]float64, len(terms))
	n := float64(len(examples))
	for i, term := range terms {
		m.vocab[term] = i
		m.idf[i] = math.Log((1+n)/(1+float64(docFreq[term]))) + 1
	}
}

// vectorize computes the L2-normalized TF-IDF vector of text as a sparse
// feature map. Tokens outside the vocabulary are ignored.
func (m *ModelClassifier) vectorize(text string) map[int]float64 {
	counts := make(map[int]float64)
	for _, tok := range tokens(text) {
		if id, ok := m.vocab[tok]; ok {
			counts[id]++
		}
	}
	var norm float64
	for id, tf := range counts {
		v := tf * m.idf[id]
		counts[id] = v
		norm += v * v
	}
	if norm > 0 {
		norm = math.Sqrt(norm)
		for id := range counts {
			counts[id] /= norm
		}
	}
	return counts
}

func dot(w []float64, x map[int]float64) float64 {
	var sum float64
	for id, v := range x {
		sum += w[id] * v
	}
	return sum
}
