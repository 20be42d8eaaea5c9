package models

import (
	"encoding/json"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValueUnmarshal(t *testing.T) {
	cases := []struct {
		name     string
		input    string
		wantKind ValueKind
		wantNum  float64
		wantErr  bool
	}{
		{name: "null", input: `null`, wantKind: Absent},
		{name: "number", input: `10`, wantKind: Number, wantNum: 10},
		{name: "fractional number", input: `1.5`, wantKind: Number, wantNum: 1.5},
		{name: "numeric string", input: `"42"`, wantKind: NumericString, wantNum: 42},
		{name: "empty string", input: `""`, wantKind: Absent},
		{name: "non numeric string", input: `"abc"`, wantErr: true},
		{name: "boolean", input: `true`, wantErr: true},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			var v Value
			err := json.Unmarshal([]byte(tc.input), &v)
			if tc.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.wantKind, v.Kind())
			f, _ := v.Float()
			assert.Equal(t, tc.wantNum, f)
		})
	}
}

func TestProposalResultUnmarshalMixed(t *testing.T) {
	var r ProposalResult
	require.NoError(t, json.Unmarshal([]byte(`{"yes":"10","no":null,"abstain":3}`), &r))

	assert.Equal(t, NumericString, r["yes"].Kind())
	assert.Equal(t, Absent, r["no"].Kind())
	assert.Equal(t, Number, r["abstain"].Kind())
}

func TestValueMarshalNaN(t *testing.T) {
	out, err := json.Marshal(ProposalResult{"yes": NumberValue(math.NaN())})
	require.NoError(t, err)
	assert.JSONEq(t, `{"yes":null}`, string(out))
}

func TestProposalResultClone(t *testing.T) {
	r := ProposalResult{"yes": NumberValue(1)}
	c := r.Clone()
	c["yes"] = NumberValue(2)

	f, _ := r["yes"].Float()
	assert.Equal(t, float64(1), f)
	assert.Nil(t, ProposalResult(nil).Clone())
}
