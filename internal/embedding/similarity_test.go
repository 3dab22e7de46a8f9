package embedding

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSimilarity(t *testing.T) {
	tests := []struct {
		name string
		a, b []float32
		want float64
	}{
		{"identical", []float32{0.3, 0.4, 0.5}, []float32{0.3, 0.4, 0.5}, 1},
		{"scaled", []float32{1, 2, 3}, []float32{2, 4, 6}, 1},
		{"orthogonal", []float32{1, 0}, []float32{0, 1}, 0},
		{"opposite clamps to zero", []float32{1, 1}, []float32{-1, -1}, 0},
		{"zero vector", []float32{0, 0, 0}, []float32{1, 2, 3}, 0},
		{"both zero", []float32{0, 0}, []float32{0, 0}, 0},
		{"length mismatch", []float32{1, 2}, []float32{1, 2, 3}, 0},
		{"empty", nil, nil, 0},
		{"45 degrees", []float32{1, 0}, []float32{1, 1}, 0.7071067811865475},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, Similarity(tt.a, tt.b), 1e-6)
		})
	}
}

func TestSimilaritySelfIsOne(t *testing.T) {
	for _, v := range [][]float32{{1}, {-3, 7}, {1e-3, 2e-3, 5}, {100, -100, 0.5, 0.25}} {
		assert.InDelta(t, 1.0, Similarity(v, v), 1e-6)
	}
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		target error
	}{
		{"rate limit text", errors.New("rate limit exceeded"), ErrRateLimited},
		{"429 text", errors.New("API returned unexpected status code: 429"), ErrRateLimited},
		{"quota", errors.New("Quota exceeded for embed_content"), ErrRateLimited},
		{"typed 429", &StatusError{Code: 429}, ErrRateLimited},
		{"deadline", fmt.Errorf("embed: %w", errDeadline{}), ErrTimeout},
		{"timeout text", errors.New("i/o timeout"), ErrTimeout},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.ErrorIs(t, classify(tt.err), tt.target)
		})
	}

	t.Run("status code text", func(t *testing.T) {
		var se *StatusError
		assert.ErrorAs(t, classify(errors.New("API returned unexpected status code: 503")), &se)
		assert.Equal(t, 503, se.Code)
	})

	t.Run("unknown passes through", func(t *testing.T) {
		err := errors.New("connection refused")
		assert.Equal(t, err, classify(err))
	})

	t.Run("nil", func(t *testing.T) {
		assert.NoError(t, classify(nil))
	})
}

// errDeadline stands in for a net error that reports Timeout.
type errDeadline struct{}

func (errDeadline) Error() string   { return "deadline" }
func (errDeadline) Timeout() bool   { return true }
func (errDeadline) Temporary() bool { return false }
