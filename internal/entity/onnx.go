package entity

import (
	"fmt"
	"strings"
	"sync"

	"github.com/sugarme/tokenizer"
	"github.com/sugarme/tokenizer/pretrained"
	ort "github.com/yalue/onnxruntime_go"
)

// ONNXConfig locates the exported token-classification model and its
// tokenizer. Labels must list the model's output classes in id order,
// as BIO tags ("O", "B-PERSON", ...).
type ONNXConfig struct {
	ModelPath     string
	TokenizerPath string
	// LibraryPath points at the onnxruntime shared library; empty keeps
	// the runtime default.
	LibraryPath string
	Labels      []string
	// MaxTokens caps the encoded sequence length. Defaults to 128.
	MaxTokens int
}

var ortInit sync.Once

// ONNXTagger runs a pretrained transformer token-classification model.
// It is load-only: training happens offline, the exported artifact is
// inference-only here.
type ONNXTagger struct {
	session *ort.DynamicAdvancedSession
	tok     *tokenizer.Tokenizer
	labels  []string
	maxLen  int
}

// NewONNXTagger loads the tokenizer and opens an inference session for
// the model. The caller owns the tagger and must Close it.
func NewONNXTagger(cfg ONNXConfig) (*ONNXTagger, error) {
	if len(cfg.Labels) == 0 {
		return nil, fmt.Errorf("entity: onnx tagger needs a label list")
	}

	var initErr error
	ortInit.Do(func() {
		if cfg.LibraryPath != "" {
			ort.SetSharedLibraryPath(cfg.LibraryPath)
		}
		initErr = ort.InitializeEnvironment()
	})
	if initErr != nil {
		return nil, fmt.Errorf("initializing onnxruntime: %w", initErr)
	}

	tok, err := pretrained.FromFile(cfg.TokenizerPath)
	if err != nil {
		return nil, fmt.Errorf("loading tokenizer %q: %w", cfg.TokenizerPath, err)
	}

	session, err := ort.NewDynamicAdvancedSession(cfg.ModelPath,
		[]string{"input_ids", "attention_mask"},
		[]string{"logits"},
		nil)
	if err != nil {
		return nil, fmt.Errorf("opening onnx session %q: %w", cfg.ModelPath, err)
	}

	maxLen := cfg.MaxTokens
	if maxLen <= 0 {
		maxLen = 128
	}
	return &ONNXTagger{session: session, tok: tok, labels: cfg.Labels, maxLen: maxLen}, nil
}

// Close releases the inference session.
func (t *ONNXTagger) Close() error {
	if t.session == nil {
		return nil
	}
	err := t.session.Destroy()
	t.session = nil
	return err
}

// Tag encodes text, runs the model, and decodes the argmax tag sequence
// into labeled spans. Subword pieces are merged back into whole words
// and take the tag of their first piece.
func (t *ONNXTagger) Tag(text string) ([]Span, error) {
	if t.session == nil {
		return nil, fmt.Errorf("entity: onnx tagger is closed")
	}

	enc, err := t.tok.EncodeSingle(text, true)
	if err != nil {
		return nil, fmt.Errorf("encoding text: %w", err)
	}
	ids := enc.Ids
	if len(ids) == 0 {
		return nil, nil
	}
	if len(ids) > t.maxLen {
		ids = ids[:t.maxLen]
	}
	seqLen := len(ids)

	inputIDs := make([]int64, seqLen)
	mask := make([]int64, seqLen)
	for i, id := range ids {
		inputIDs[i] = int64(id)
		mask[i] = 1
	}

	shape := ort.NewShape(1, int64(seqLen))
	idsTensor, err := ort.NewTensor(shape, inputIDs)
	if err != nil {
		return nil, fmt.Errorf("building input tensor: %w", err)
	}
	defer idsTensor.Destroy()

	maskTensor, err := ort.NewTensor(shape, mask)
	if err != nil {
		return nil, fmt.Errorf("building mask tensor: %w", err)
	}
	defer maskTensor.Destroy()

	logits, err := ort.NewEmptyTensor[float32](ort.NewShape(1, int64(seqLen), int64(len(t.labels))))
	if err != nil {
		return nil, fmt.Errorf("allocating output tensor: %w", err)
	}
	defer logits.Destroy()

	if err := t.session.Run(
		[]ort.Value{idsTensor, maskTensor},
		[]ort.Value{logits},
	); err != nil {
		return nil, fmt.Errorf("running onnx model: %w", err)
	}

	return t.decode(enc.Tokens[:seqLen], logits.GetData()), nil
}

// decode merges subword pieces into words, tags each word with the
// argmax label of its first piece, and groups BIO runs into spans.
func (t *ONNXTagger) decode(pieces []string, logits []float32) []Span {
	n := len(t.labels)
	var words []string
	var tags []string

	for i, piece := range pieces {
		if piece == "[CLS]" || piece == "[SEP]" || piece == "[PAD]" || piece == "<s>" || piece == "</s>" || piece == "<pad>" {
			continue
		}
		if strings.HasPrefix(piece, "##") && len(words) > 0 {
			words[len(words)-1] += strings.TrimPrefix(piece, "##")
			continue
		}
		best := 0
		bestScore := logits[i*n]
		for c := 1; c < n; c++ {
			if s := logits[i*n+c]; s > bestScore {
				best, bestScore = c, s
			}
		}
		words = append(words, piece)
		tags = append(tags, t.labels[best])
	}

	return spansFromBIO(words, tags)
}
