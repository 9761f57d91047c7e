//go:build cgo
// +build cgo

package embedding

import (
	"context"
	"fmt"
	"sync"

	"github.com/hyperjump/tutor/pkg/utils"
	ort "github.com/yalue/onnxruntime_go"
)

var (
	onnxInputNames  = []string{"input_ids", "attention_mask", "token_type_ids"}
	onnxOutputNames = []string{"output"}
)

// onnxTensors are the bound input and output buffers of one session. Run reads the inputs
// in place, so Embed copies each request's tokens into them under the embedder lock.
type onnxTensors struct {
	inputs [3]*ort.Tensor[int64]
	output *ort.Tensor[float32]
}

func newONNXTensors(maxTokens, dimensions int) (*onnxTensors, error) {
	t := &onnxTensors{}
	shape := ort.NewShape(1, int64(maxTokens))
	for i, name := range onnxInputNames {
		in, err := ort.NewEmptyTensor[int64](shape)
		if err != nil {
			t.destroy()
			return nil, fmt.Errorf("failed to create %s tensor: %w", name, err)
		}
		t.inputs[i] = in
	}
	out, err := ort.NewEmptyTensor[float32](ort.NewShape(1, int64(dimensions)))
	if err != nil {
		t.destroy()
		return nil, fmt.Errorf("failed to create output tensor: %w", err)
	}
	t.output = out
	return t, nil
}

func (t *onnxTensors) bind() (inputs, outputs []ort.ArbitraryTensor) {
	for _, in := range t.inputs {
		inputs = append(inputs, in)
	}
	return inputs, []ort.ArbitraryTensor{t.output}
}

func (t *onnxTensors) load(ids, mask, types []int64) {
	copy(t.inputs[0].GetData(), ids)
	copy(t.inputs[1].GetData(), mask)
	copy(t.inputs[2].GetData(), types)
}

func (t *onnxTensors) destroy() {
	for i, in := range t.inputs {
		if in != nil {
			_ = in.Destroy()
			t.inputs[i] = nil
		}
	}
	if t.output != nil {
		_ = t.output.Destroy()
		t.output = nil
	}
}

// ONNXEmbedder runs a sentence-transformer exported to ONNX whose pooled output is named
// "output". It needs CGO and the onnxruntime shared library. Inference is serialized.
type ONNXEmbedder struct {
	mu         sync.Mutex
	session    *ort.AdvancedSession
	tensors    *onnxTensors
	tokenizer  Tokenizer
	modelID    string
	dimensions int
	maxTokens  int
}

// NewONNXEmbedder loads the model at modelPath. modelID is stamped on snapshots built with it.
func NewONNXEmbedder(modelID, modelPath string, dimensions, maxTokens int) (*ONNXEmbedder, error) {
	if dimensions <= 0 {
		return nil, fmt.Errorf("onnx embedder needs positive dimensions, got %d", dimensions)
	}
	if maxTokens <= 0 {
		maxTokens = defaultMaxTokens
	}
	if !ort.IsInitialized() {
		if err := ort.InitializeEnvironment(); err != nil {
			return nil, fmt.Errorf("failed to initialize ONNX runtime: %w", err)
		}
	}

	tensors, err := newONNXTensors(maxTokens, dimensions)
	if err != nil {
		return nil, err
	}
	inputs, outputs := tensors.bind()
	session, err := ort.NewAdvancedSession(modelPath, onnxInputNames, onnxOutputNames, inputs, outputs, nil)
	if err != nil {
		tensors.destroy()
		return nil, fmt.Errorf("failed to create ONNX session for %s: %w", modelPath, err)
	}

	return &ONNXEmbedder{
		session:    session,
		tensors:    tensors,
		tokenizer:  &SimpleTokenizer{},
		modelID:    modelID,
		dimensions: dimensions,
		maxTokens:  maxTokens,
	}, nil
}

// Embed runs one inference and returns the L2-normalized output.
func (e *ONNXEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.session == nil {
		return nil, fmt.Errorf("onnx embedder %s is closed", e.modelID)
	}

	e.tensors.load(e.tokenizer.Tokenize(text, e.maxTokens))
	if err := e.session.Run(); err != nil {
		return nil, fmt.Errorf("inference failed: %w", err)
	}

	vec := make([]float32, e.dimensions)
	copy(vec, e.tensors.output.GetData())
	utils.NormalizeL2(vec)
	return vec, nil
}

func (e *ONNXEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	return embedEach(ctx, texts, e.Embed)
}

func (e *ONNXEmbedder) Dimensions() int { return e.dimensions }

func (e *ONNXEmbedder) ModelID() string { return e.modelID }

// Close releases the session and its tensors. Later Embed calls fail.
func (e *ONNXEmbedder) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	var err error
	if e.session != nil {
		err = e.session.Destroy()
		e.session = nil
	}
	if e.tensors != nil {
		e.tensors.destroy()
	}
	return err
}
