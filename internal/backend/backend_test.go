package backend

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOutputUnmarshal(t *testing.T) {
	tests := []struct {
		name  string
		raw   string
		first string
	}{
		{"array", `{"output":["urlA","urlB"]}`, "urlA"},
		{"string", `{"output":"urlA"}`, "urlA"},
		{"null", `{"output":null}`, ""},
		{"missing", `{}`, ""},
		{"leading empty", `{"output":["", "urlB"]}`, "urlB"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var pred Prediction
			require.NoError(t, json.Unmarshal([]byte(tt.raw), &pred))
			assert.Equal(t, tt.first, pred.Output.First())
		})
	}
}

func TestOutputUnmarshalRejectsObjects(t *testing.T) {
	var pred Prediction
	err := json.Unmarshal([]byte(`{"output":{"url":"x"}}`), &pred)
	assert.Error(t, err)
}

func TestStatusIsTerminal(t *testing.T) {
	assert.False(t, StatusStarting.IsTerminal())
	assert.False(t, StatusProcessing.IsTerminal())
	assert.True(t, StatusSucceeded.IsTerminal())
	assert.True(t, StatusFailed.IsTerminal())
	assert.True(t, StatusCanceled.IsTerminal())
	assert.True(t, StatusTimedOut.IsTerminal())
}

func TestAPIError(t *testing.T) {
	err := error(&APIError{StatusCode: 422, Detail: "invalid version"})
	assert.True(t, IsAPIError(err))
	assert.Equal(t, "backend returned status 422: invalid version", err.Error())
	assert.False(t, IsAPIError(assert.AnError))
}
