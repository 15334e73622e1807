package model

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValueScalar(t *testing.T) {
	t.Parallel()

	v := Scalar(137700)
	assert.False(t, v.IsBracket())
	assert.Equal(t, 1, v.Len())
	assert.Equal(t, 137700.0, v.Scalar())
	assert.Nil(t, v.Bracket())
	assert.Equal(t, "137700", v.String())
}

func TestValueBracket(t *testing.T) {
	t.Parallel()

	src := []float64{200000, 250000, 125000}
	v := Bracket(src)
	src[0] = 0 // must not affect v

	assert.True(t, v.IsBracket())
	assert.Equal(t, 3, v.Len())
	assert.Equal(t, 200000.0, v.Scalar())
	assert.Equal(t, []float64{200000, 250000, 125000}, v.Bracket())
	assert.Equal(t, "[200000, 250000, 125000]", v.String())

	out := v.Bracket()
	out[1] = 0
	assert.Equal(t, []float64{200000, 250000, 125000}, v.Bracket())
}

func TestValueMap(t *testing.T) {
	t.Parallel()

	double := func(f float64) float64 { return f * 2 }
	assert.Equal(t, Scalar(2), Scalar(1).Map(double))
	assert.Equal(t, Bracket([]float64{2, 4}), Bracket([]float64{1, 2}).Map(double))
}

func TestValueEqual(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		a, b Value
		want bool
	}{
		{"equal scalars", Scalar(1), Scalar(1), true},
		{"unequal scalars", Scalar(1), Scalar(2), false},
		{"scalar vs bracket", Scalar(1), Bracket([]float64{1}), false},
		{"equal brackets", Bracket([]float64{1, 2}), Bracket([]float64{1, 2}), true},
		{"unequal brackets", Bracket([]float64{1, 2}), Bracket([]float64{1, 3}), false},
		{"different lengths", Bracket([]float64{1}), Bracket([]float64{1, 2}), false},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, tt.a.Equal(tt.b))
		})
	}
}

func TestValueJSON(t *testing.T) {
	t.Parallel()

	t.Run("scalar round trip", func(t *testing.T) {
		t.Parallel()
		b, err := json.Marshal(Scalar(0.038))
		require.NoError(t, err)
		assert.Equal(t, "0.038", string(b))

		var v Value
		require.NoError(t, json.Unmarshal(b, &v))
		assert.Equal(t, Scalar(0.038), v)
	})

	t.Run("bracket round trip", func(t *testing.T) {
		t.Parallel()
		b, err := json.Marshal(Bracket([]float64{200000, 250000}))
		require.NoError(t, err)
		assert.Equal(t, "[200000,250000]", string(b))

		var v Value
		require.NoError(t, json.Unmarshal(b, &v))
		assert.True(t, v.Equal(Bracket([]float64{200000, 250000})))
	})

	t.Run("rejects non-numeric", func(t *testing.T) {
		t.Parallel()
		var v Value
		assert.Error(t, json.Unmarshal([]byte(`"abc"`), &v))
		assert.Error(t, json.Unmarshal([]byte(`["abc"]`), &v))
	})
}
