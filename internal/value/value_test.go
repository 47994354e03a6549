package value_test

import (
	"encoding/json"
	"testing"

	"github.com/jmerrifield20/SecretTriage/internal/value"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCompare(t *testing.T) {
	tests := []struct {
		name   string
		a, b   value.Value
		want   int
		wantOK bool
	}{
		{"numbers less", value.Number(2.5), value.Number(3), -1, true},
		{"numbers equal", value.Int(3), value.Number(3.0), 0, true},
		{"bool true equals one", value.Bool(true), value.Int(1), 0, true},
		{"bool false below number", value.Bool(false), value.Number(0.5), -1, true},
		{"strings", value.String("b"), value.String("a"), 1, true},
		{"string vs number", value.String("3"), value.Number(3), 0, false},
		{"null vs null", value.Null(), value.Null(), 0, false},
		{"number vs null", value.Number(1), value.Null(), 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := value.Compare(tt.a, tt.b)
			assert.Equal(t, tt.wantOK, ok)
			if tt.wantOK {
				assert.Equal(t, tt.want, got)
			}
		})
	}
}

func TestJSONScalars(t *testing.T) {
	var set map[string]value.Value
	require.NoError(t, json.Unmarshal([]byte(`{"a":null,"b":true,"c":3.25,"d":"x"}`), &set))

	assert.True(t, set["a"].IsNull())
	b, ok := set["b"].AsBool()
	assert.True(t, ok && b)
	n, ok := set["c"].AsNumber()
	assert.True(t, ok)
	assert.Equal(t, 3.25, n)
	s, ok := set["d"].AsString()
	assert.True(t, ok)
	assert.Equal(t, "x", s)

	out, err := json.Marshal(set)
	require.NoError(t, err)
	assert.JSONEq(t, `{"a":null,"b":true,"c":3.25,"d":"x"}`, string(out))
}

func TestUnmarshalRejectsComposites(t *testing.T) {
	var v value.Value
	assert.Error(t, json.Unmarshal([]byte(`[1,2]`), &v))
	assert.Error(t, json.Unmarshal([]byte(`{"a":1}`), &v))
}

func TestTruthy(t *testing.T) {
	assert.False(t, value.Null().Truthy())
	assert.False(t, value.Number(0).Truthy())
	assert.False(t, value.String("").Truthy())
	assert.True(t, value.String("x").Truthy())
	assert.True(t, value.Bool(true).Truthy())
}
