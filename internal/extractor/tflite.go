package extractor

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/tphakala/go-tflite"
	"github.com/tphakala/go-tflite/delegates/xnnpack"

	"github.com/classroll/rollcall/internal/cpuspec"
	"github.com/classroll/rollcall/internal/errors"
	"github.com/classroll/rollcall/internal/logger"
)

// ModelOptions configures a TFLite interpreter.
type ModelOptions struct {
	Threads    int // 0 picks from the CPU model
	UseXNNPACK bool
}

// TFLiteModel runs a single-input, single-output float32 model.
// Run is safe for concurrent use; invocations are serialized.
type TFLiteModel struct {
	path        string
	interpreter *tflite.Interpreter
	mu          sync.Mutex
}

// LoadTFLiteModel reads the model at path and allocates its interpreter.
func LoadTFLiteModel(path string, opts ModelOptions) (*TFLiteModel, error) {
	start := time.Now()
	log := GetLogger()

	modelData, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.New(err).
			Component("extractor").
			Category(errors.CategoryModelLoad).
			Context("model", filepath.Base(path)).
			Timing("model-load", time.Since(start)).
			Build()
	}

	model := tflite.NewModel(modelData)
	if model == nil {
		return nil, errors.Newf("cannot load TensorFlow Lite model").
			Component("extractor").
			Category(errors.CategoryModelInit).
			Context("model", filepath.Base(path)).
			Context("model_size_kb", len(modelData)/1024).
			Build()
	}

	threads := cpuspec.ThreadCount(opts.Threads)
	options := tflite.NewInterpreterOptions()

	if opts.UseXNNPACK {
		delegate := xnnpack.New(xnnpack.DelegateOptions{NumThreads: int32(max(1, threads-1))}) //nolint:gosec // G115: bounded by CPU count
		if delegate == nil {
			log.Warn("failed to create XNNPACK delegate, falling back to default CPU")
			options.SetNumThread(threads)
		} else {
			options.AddDelegate(delegate)
			options.SetNumThread(1)
		}
	} else {
		options.SetNumThread(threads)
	}

	options.SetErrorReporter(func(msg string, _ any) {
		GetLogger().Error("TFLite error", logger.String("message", msg))
	}, nil)

	interpreter := tflite.NewInterpreter(model, options)
	if interpreter == nil {
		return nil, errors.Newf("cannot create interpreter").
			Component("extractor").
			Category(errors.CategoryModelInit).
			Context("model", filepath.Base(path)).
			Build()
	}
	if status := interpreter.AllocateTensors(); status != tflite.OK {
		interpreter.Delete()
		return nil, errors.Newf("tensor allocation failed: %v", status).
			Component("extractor").
			Category(errors.CategoryModelInit).
			Context("model", filepath.Base(path)).
			Build()
	}

	log.Info("model initialized",
		logger.String("model", filepath.Base(path)),
		logger.Int("threads", threads),
		logger.Bool("xnnpack", opts.UseXNNPACK),
		logger.Duration("elapsed", time.Since(start)))

	return &TFLiteModel{path: path, interpreter: interpreter}, nil
}

// InputLen returns the number of float32 values the model expects.
func (m *TFLiteModel) InputLen() int {
	return tensorLen(m.interpreter.GetInputTensor(0))
}

// Run copies input into the input tensor, invokes the model and returns a
// copy of the output tensor.
func (m *TFLiteModel) Run(input []float32) ([]float32, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	in := m.interpreter.GetInputTensor(0)
	if in == nil {
		return nil, m.invokeError(fmt.Errorf("cannot get input tensor"))
	}
	if want := tensorLen(in); want != len(input) {
		return nil, errors.Newf("input has %d values, model expects %d", len(input), want).
			Component("extractor").
			Category(errors.CategoryValidation).
			Context("model", filepath.Base(m.path)).
			Build()
	}
	copy(in.Float32s(), input)

	if status := m.interpreter.Invoke(); status != tflite.OK {
		return nil, m.invokeError(fmt.Errorf("tensor invoke failed: %v", status))
	}

	out := m.interpreter.GetOutputTensor(0)
	if out == nil {
		return nil, m.invokeError(fmt.Errorf("cannot get output tensor"))
	}
	result := make([]float32, tensorLen(out))
	copy(result, out.Float32s())
	return result, nil
}

// Close releases the interpreter.
func (m *TFLiteModel) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.interpreter != nil {
		m.interpreter.Delete()
		m.interpreter = nil
	}
	return nil
}

func (m *TFLiteModel) invokeError(err error) error {
	return errors.New(err).
		Component("extractor").
		Category(errors.CategoryModelInit).
		Context("model", filepath.Base(m.path)).
		Build()
}

func tensorLen(t *tflite.Tensor) int {
	n := 1
	for i := range t.NumDims() {
		n *= t.Dim(i)
	}
	return n
}
