package model

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestErrorMessages(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		err  error
		want string
	}{
		{
			"unknown parameter",
			&UnknownParameterError{Name: "SS_Earnings_x"},
			`unknown parameter "SS_Earnings_x"`,
		},
		{
			"malformed year key",
			&InvalidYearError{Param: "NIIT_rt", Raw: "20x1"},
			`parameter NIIT_rt: year key "20x1" is not a valid year`,
		},
		{
			"year out of range",
			&InvalidYearError{Param: "NIIT_rt", Year: 2050, Range: YearRange{First: 2013, Last: 2035}},
			"parameter NIIT_rt: year 2050 outside valid range 2013-2035",
		},
		{
			"type mismatch",
			&TypeMismatchError{Param: "NIIT_thd", Year: 2021, Want: "array of 5 numbers", Got: "scalar number"},
			"parameter NIIT_thd year 2021: want array of 5 numbers, got scalar number",
		},
		{
			"scalar above maximum",
			&OutOfBoundsError{Param: "NIIT_rt", Year: 2021, Index: -1, Value: 1.5, Max: f64(1)},
			"parameter NIIT_rt year 2021: value 1.5 above maximum 1",
		},
		{
			"bracket element below minimum",
			&OutOfBoundsError{Param: "NIIT_thd", Year: 2021, Index: 2, Value: -1, Min: f64(0)},
			"parameter NIIT_thd year 2021 element 2: value -1 below minimum 0",
		},
		{
			"outside allowed set",
			&OutOfBoundsError{Param: "CTC_include17", Year: 2021, Index: -1, Value: 2, Allowed: []float64{0, 1}},
			"parameter CTC_include17 year 2021: value 2 not in allowed set [0, 1]",
		},
		{
			"duplicate override",
			&DuplicateOverrideError{Param: "NIIT_rt", Year: 2021},
			"parameter NIIT_rt: duplicate override for year 2021",
		},
		{
			"indexing data missing",
			&IndexingDataMissingError{Series: "AWAGE", Year: 2040},
			"growth factor series AWAGE has no value for year 2040",
		},
		{
			"not indexable",
			&NotIndexableError{Param: "FICA_ss_trt"},
			"parameter FICA_ss_trt is not indexable",
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, tt.err.Error())
		})
	}
}

func TestErrorsSurviveWrapping(t *testing.T) {
	t.Parallel()

	wrapped := fmt.Errorf("parse reform: %w", &OutOfBoundsError{Param: "NIIT_rt", Year: 2021, Index: -1, Value: 1.5, Max: f64(1)})

	var oob *OutOfBoundsError
	require.True(t, errors.As(wrapped, &oob))
	assert.Equal(t, "NIIT_rt", oob.Param)

	var tm *TypeMismatchError
	assert.False(t, errors.As(wrapped, &tm))
}
