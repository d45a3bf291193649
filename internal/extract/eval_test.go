package extract

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func decode(t *testing.T, raw string) any {
	t.Helper()
	var v any
	require.NoError(t, json.Unmarshal([]byte(raw), &v))
	return v
}

func TestEvalPaths(t *testing.T) {
	resp := decode(t, `{
		"a": {"b": 5},
		"documentos": [{"id": "DOC-1"}, {"id": "DOC-2"}],
		"datos": {"NOMBRE": "MARIA PEREZ"}
	}`)

	assert.Equal(t, float64(5), Eval(`result["a"]["b"]`, resp))
	assert.Equal(t, "DOC-1", Eval(`result['documentos'][0]['id']`, resp))
	assert.Equal(t, "DOC-2", Eval(`result["documentos"][-1]["id"]`, resp))
	assert.Equal(t, "MARIA PEREZ", Eval(`result.datos.NOMBRE`, resp))
	assert.Equal(t, resp, Eval(`result`, resp))
	assert.Equal(t, decode(t, `{"b": 5}`), Eval(`  result["a"]  `, resp))
}

func TestEvalFailuresYieldNil(t *testing.T) {
	resp := decode(t, `{"a": {"b": 5}, "lista": [1, 2]}`)

	cases := map[string]string{
		"missing key":        `result["zzz"]["b"]`,
		"index into map":     `result[0]`,
		"key into list":      `result["lista"]["x"]`,
		"index out of range": `result["lista"][9]`,
		"negative overflow":  `result["lista"][-3]`,
		"wrong base name":    `resultado["a"]`,
		"call rejected":      `result.get("a")`,
		"arithmetic":         `result["a"]["b"] + 1`,
		"unterminated":       `result["a`,
		"empty":              ``,
		"junk":               `__import__("os")`,
		"escape in literal":  `result["a\"b"]`,
	}
	for name, expr := range cases {
		assert.Nil(t, Eval(expr, resp), name)
	}
}

func TestEvalNilResponse(t *testing.T) {
	assert.Nil(t, Eval(`result["a"]`, nil))
}
