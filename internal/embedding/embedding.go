// Copyright 2025
// SPDX-License-Identifier: Apache-2.0

// Package embedding is the embedding service (spec §4.4): loads the two
// ONNX encoder sessions and turns an image file or text string into a
// unit-norm D-dim vector. Grounded on the ONNX Runtime session setup in
// other_examples' Tejas242-sift embedder (session options, tensor
// construction, output extraction, L2-normalize), adapted from a single
// text encoder to the dual image/text encoder pair spec §4.4 requires, and
// from a wrapped HF tokenizer to photolens's own internal/tokenizer.
package embedding

import (
	"fmt"
	"log"
	"runtime"
	"sync"

	ort "github.com/yalue/onnxruntime_go"

	"photolens/internal/tokenizer"
	"photolens/internal/vecmath"
)

// Service loads and serves the two encoder sessions. The zero value is not
// ready; call LoadModels before use.
type Service struct {
	mu sync.RWMutex

	visualSession *ort.DynamicAdvancedSession
	textSession   *ort.DynamicAdvancedSession
	tok           *tokenizer.State
	ready         bool

	// visualRunMu and textRunMu serialize Run calls against each session.
	// The ONNX Runtime sessions are configured single-threaded (spec §4.4:
	// "concurrent calls into one session are not permitted"), and mu's
	// RLock alone doesn't provide that — two RLock holders (e.g. two
	// concurrent searches, or a search racing the ingestion pipeline's own
	// embed call) may both hold it at once. These mutexes are independent
	// of mu, which exists only to exclude a LoadModels reload.
	visualRunMu sync.Mutex
	textRunMu   sync.Mutex
}

// New returns an unloaded embedding service.
func New() *Service {
	return &Service{}
}

// IsReady reports whether both sessions and the tokenizer are loaded.
func (s *Service) IsReady() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.ready
}

// LoadModels loads (or atomically reloads) the visual and text encoder
// sessions and the tokenizer. It does not run inference concurrently with
// a reload: the write lock held here excludes any in-flight embed call
// from observing a half-replaced session (spec §4.4).
func (s *Service) LoadModels(visualPath, textPath, tokenizerPath string) error {
	tok := tokenizer.New()
	if err := tok.Load(tokenizerPath); err != nil {
		return fmt.Errorf("embedding: load tokenizer: %w", err)
	}

	if err := ort.InitializeEnvironment(); err != nil {
		return fmt.Errorf("embedding: initialize onnxruntime: %w", err)
	}

	numThreads := runtime.NumCPU()
	if numThreads > 4 {
		numThreads = 4
	}

	visualSession, err := newImageSession(visualPath, numThreads)
	if err != nil {
		return fmt.Errorf("embedding: load visual encoder: %w", err)
	}
	textSession, err := newTextSession(textPath, numThreads)
	if err != nil {
		visualSession.Destroy()
		return fmt.Errorf("embedding: load text encoder: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	oldVisual, oldText := s.visualSession, s.textSession
	s.visualSession = visualSession
	s.textSession = textSession
	s.tok = tok
	s.ready = true
	if oldVisual != nil {
		oldVisual.Destroy()
	}
	if oldText != nil {
		oldText.Destroy()
	}
	return nil
}

func newImageSession(path string, numThreads int) (*ort.DynamicAdvancedSession, error) {
	opts, err := ort.NewSessionOptions()
	if err != nil {
		return nil, err
	}
	defer opts.Destroy()
	if err := opts.SetIntraOpNumThreads(numThreads); err != nil {
		return nil, err
	}
	if err := opts.SetInterOpNumThreads(1); err != nil {
		return nil, err
	}
	return ort.NewDynamicAdvancedSession(path, []string{"pixel_values"}, []string{"image_embeds"}, opts)
}

func newTextSession(path string, numThreads int) (*ort.DynamicAdvancedSession, error) {
	opts, err := ort.NewSessionOptions()
	if err != nil {
		return nil, err
	}
	defer opts.Destroy()
	if err := opts.SetIntraOpNumThreads(numThreads); err != nil {
		return nil, err
	}
	if err := opts.SetInterOpNumThreads(1); err != nil {
		return nil, err
	}
	return ort.NewDynamicAdvancedSession(path, []string{"input_ids"}, []string{"text_embeds"}, opts)
}

// EmbedImage embeds the image at path. Errors are logged and yield a nil
// slice rather than propagating, per spec §4.4: "errors during inference
// return none and are logged but never crash the process."
func (s *Service) EmbedImage(path string) []float32 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.ready {
		return nil
	}

	pixels, err := preprocessImage(path)
	if err != nil {
		log.Printf("embedding: preprocess %s: %v", path, err)
		return nil
	}

	shape := ort.NewShape(1, 3, int64(inputSide), int64(inputSide))
	input, err := ort.NewTensor(shape, pixels)
	if err != nil {
		log.Printf("embedding: build pixel tensor for %s: %v", path, err)
		return nil
	}
	defer input.Destroy()

	outputs := []ort.Value{nil}
	s.visualRunMu.Lock()
	err = s.visualSession.Run([]ort.Value{input}, outputs)
	s.visualRunMu.Unlock()
	if err != nil {
		log.Printf("embedding: image inference for %s: %v", path, err)
		return nil
	}
	defer func() {
		if outputs[0] != nil {
			outputs[0].Destroy()
		}
	}()

	out, ok := outputs[0].(*ort.Tensor[float32])
	if !ok {
		log.Printf("embedding: unexpected image output type for %s", path)
		return nil
	}
	vec := append([]float32(nil), out.GetData()...)
	return vecmath.Normalize(vec)
}

// EmbedText embeds s. Returns nil for empty input, per spec §4.4.
func (s *Service) EmbedText(text string) []float32 {
	if text == "" {
		return nil
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.ready {
		return nil
	}

	ids, _ := s.tok.Tokenize(text)
	shape := ort.NewShape(1, int64(len(ids)))
	input, err := ort.NewTensor(shape, ids)
	if err != nil {
		log.Printf("embedding: build token tensor: %v", err)
		return nil
	}
	defer input.Destroy()

	outputs := []ort.Value{nil}
	s.textRunMu.Lock()
	err = s.textSession.Run([]ort.Value{input}, outputs)
	s.textRunMu.Unlock()
	if err != nil {
		log.Printf("embedding: text inference: %v", err)
		return nil
	}
	defer func() {
		if outputs[0] != nil {
			outputs[0].Destroy()
		}
	}()

	out, ok := outputs[0].(*ort.Tensor[float32])
	if !ok {
		log.Printf("embedding: unexpected text output type")
		return nil
	}
	vec := append([]float32(nil), out.GetData()...)
	return vecmath.Normalize(vec)
}
