package exporter

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFormatFloat(t *testing.T) {
	tenth, fifth := 0.1, 0.2
	tests := []struct {
		name     string
		input    float64
		expected string
	}{
		{name: "zero value", input: 0, expected: "0"},
		{name: "integer", input: 123, expected: "123"},
		{name: "negative decimal", input: -789.123, expected: "-789.123"},
		{name: "shortest representation", input: tenth + fifth, expected: "0.30000000000000004"},
		{name: "missing", input: math.NaN(), expected: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, FormatFloat(tt.input))
		})
	}
}

func TestFormatFixed(t *testing.T) {
	assert.Equal(t, "2.50", FormatFixed(2.5, 2))
	assert.Equal(t, "2", FormatFixed(2.5, 0))
	assert.Equal(t, "4", FormatFixed(3.5, 0))
	assert.Equal(t, "", FormatFixed(math.Inf(1), 2))
}

func TestFormatNumber(t *testing.T) {
	tests := []struct {
		name     string
		value    float64
		scale    float64
		places   int32
		expected string
	}{
		{name: "millions", value: 1_234_567, scale: Millions, places: 2, expected: "1.23"},
		{name: "thousands separator", value: 1_234_567_890, scale: Millions, places: 2, expected: "1,234.57"},
		{name: "units", value: 999_999.5, scale: Units, places: 0, expected: "1,000,000"},
		{name: "negative", value: -12_345_678_900, scale: Billions, places: 1, expected: "-12.3"},
		{name: "exact thousand", value: 100_000, scale: Units, places: 0, expected: "100,000"},
		{name: "missing", value: math.NaN(), scale: Millions, places: 2, expected: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, FormatNumber(tt.value, tt.scale, tt.places))
		})
	}
}

func TestFormatInt(t *testing.T) {
	assert.Equal(t, "2021", FormatInt(2021))
}
