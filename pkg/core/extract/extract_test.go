package extract

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

func TestExtract_WholeReplyIsObject(t *testing.T) {
	got, err := Extract(`{"confidence": 82, "feedback": "slow down"}`)
	require.NoError(t, err)
	assert.Equal(t, json.Number("82"), got["confidence"])
	assert.Equal(t, "slow down", got["feedback"])
}

func TestExtract_FencedBlockWithProse(t *testing.T) {
	reply := "Sure! Here is the analysis:\n```json\n{\"clarity\": 70, \"expression\": \"smiling\"}\n```\nLet me know if you need more."

	got, err := Extract(reply)
	require.NoError(t, err)
	assert.Equal(t, json.Number("70"), got["clarity"])
	assert.Equal(t, "smiling", got["expression"])
}

func TestExtract_FencedBlockWithNestedObject(t *testing.T) {
	reply := "```json\n{\"scores\": {\"confidence\": 1}, \"feedback\": \"ok\"}\n```"

	got, err := Extract(reply)
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"confidence": json.Number("1")}, got["scores"])
}

func TestExtract_FencedBlockPreferredOverEarlierBraces(t *testing.T) {
	reply := "Format {like this}.\n```json\n{\"advice\": \"eat slowly\"}\n```"

	got, err := Extract(reply)
	require.NoError(t, err)
	assert.Equal(t, "eat slowly", got["advice"])
}

func TestExtract_BareObjectInProse(t *testing.T) {
	got, err := Extract(`The result is {"engagement": 55} as requested.`)
	require.NoError(t, err)
	assert.Equal(t, json.Number("55"), got["engagement"])
}

func TestExtract_NestedObjectInProse(t *testing.T) {
	got, err := Extract(`Result: {"a": {"b": {"c": 3}}, "d": [1, 2]} end`)
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"b": map[string]any{"c": json.Number("3")}}, got["a"])
	assert.Equal(t, []any{json.Number("1"), json.Number("2")}, got["d"])
}

func TestExtract_BracesInsideStrings(t *testing.T) {
	got, err := Extract(`note: {"feedback": "use } and { carefully", "x": "\"}"}`)
	require.NoError(t, err)
	assert.Equal(t, "use } and { carefully", got["feedback"])
	assert.Equal(t, `"}`, got["x"])
}

func TestExtract_NoBraces(t *testing.T) {
	_, err := Extract("I cannot analyze this image.")
	require.Error(t, err)

	var f *Failure
	require.ErrorAs(t, err, &f)
	assert.Equal(t, MsgCouldNotExtract, f.Message)
	assert.True(t, IsFailure(err))
}

func TestExtract_CandidateNotJSON(t *testing.T) {
	_, err := Extract("Scores: {confidence: high, clarity: low}")
	require.Error(t, err)
	assert.Equal(t, MsgDecodeFailed, err.Error())
}

func TestExtract_OnlyFirstCandidateTried(t *testing.T) {
	_, err := Extract(`first {not json} then {"ok": true}`)
	require.Error(t, err)
	assert.Equal(t, MsgDecodeFailed, err.Error())
}

func TestExtract_UnbalancedFallsBackToShortestSpan(t *testing.T) {
	_, err := Extract(`{"a": {"b": 1}`)
	require.Error(t, err)
	assert.Equal(t, MsgDecodeFailed, err.Error())
}

func TestExtract_NonObjectJSON(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{name: "null", in: "null", want: MsgCouldNotExtract},
		{name: "number", in: "42", want: MsgCouldNotExtract},
		{name: "empty", in: "", want: MsgCouldNotExtract},
		{name: "fenced without object", in: "```json\n[1,2]\n```", want: MsgCouldNotExtract},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Extract(tt.in)
			require.Error(t, err)
			assert.Equal(t, tt.want, err.Error())
		})
	}

	got, err := Extract(`[{"a": 1}]`)
	require.NoError(t, err)
	assert.Equal(t, json.Number("1"), got["a"])
}

func TestExtract_TrailingGarbageAfterWholeObject(t *testing.T) {
	got, err := Extract(`{"a": 1} trailing words`)
	require.NoError(t, err)
	assert.Equal(t, json.Number("1"), got["a"])
}

func genObject(t *rapid.T) map[string]any {
	keys := rapid.SliceOfDistinct(rapid.StringMatching(`[a-z_]{1,12}`), func(s string) string { return s }).Draw(t, "keys")
	obj := make(map[string]any, len(keys))
	for _, k := range keys {
		if rapid.Bool().Draw(t, "numeric_"+k) {
			obj[k] = rapid.IntRange(0, 100).Draw(t, "score_"+k)
		} else {
			obj[k] = rapid.StringMatching(`[A-Za-z0-9 ,.!']{0,40}`).Draw(t, "note_"+k)
		}
	}
	return obj
}

func TestExtract_RoundTripProperty(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		obj := genObject(t)
		raw, err := json.Marshal(obj)
		if err != nil {
			t.Fatalf("marshal: %v", err)
		}

		got, err := Extract(string(raw))
		if err != nil {
			t.Fatalf("Extract(%s) error = %v", raw, err)
		}
		back, err := json.Marshal(got)
		if err != nil {
			t.Fatalf("marshal result: %v", err)
		}
		if string(back) != string(raw) {
			t.Fatalf("round trip = %s, want %s", back, raw)
		}
	})
}

func TestExtract_FencedRoundTripProperty(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		obj := genObject(t)
		raw, err := json.Marshal(obj)
		if err != nil {
			t.Fatalf("marshal: %v", err)
		}
		prose := rapid.StringMatching(`[A-Za-z ,.]{0,30}`).Draw(t, "prose")

		got, err := Extract(prose + "\n```json\n" + string(raw) + "\n```\n" + prose)
		if err != nil {
			t.Fatalf("Extract error = %v", err)
		}
		back, _ := json.Marshal(got)
		if string(back) != string(raw) {
			t.Fatalf("round trip = %s, want %s", back, raw)
		}
	})
}
