package llm

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/factura-ai/invoice-extractor/internal/common"
)

func TestRecoverJSONDirect(t *testing.T) {
	raw, err := RecoverJSON(`{"numeroFactura": "A-001", "total": 116}`)
	require.NoError(t, err)

	var m map[string]any
	require.NoError(t, json.Unmarshal(raw, &m))
	assert.Equal(t, "A-001", m["numeroFactura"])
}

func TestRecoverJSONFencedBlock(t *testing.T) {
	text := "Here is the extracted data:\n```json\n{\"numeroFactura\": \"B-17\"}\n```\nLet me know if you need anything else."
	raw, err := RecoverJSON(text)
	require.NoError(t, err)

	var m map[string]any
	require.NoError(t, json.Unmarshal(raw, &m))
	assert.Equal(t, "B-17", m["numeroFactura"])
}

func TestRecoverJSONFencedBlockNoLanguageTag(t *testing.T) {
	raw, err := RecoverJSON("```\n{\"total\": 42}\n```")
	require.NoError(t, err)

	var m map[string]any
	require.NoError(t, json.Unmarshal(raw, &m))
	assert.Equal(t, float64(42), m["total"])
}

func TestRecoverJSONEmbeddedInProse(t *testing.T) {
	text := `The invoice was issued by Acme. {"proveedor": {"nombre": "Acme"}, "total": 100.5} That is everything I could read.`
	raw, err := RecoverJSON(text)
	require.NoError(t, err)

	var m map[string]any
	require.NoError(t, json.Unmarshal(raw, &m))
	assert.Equal(t, 100.5, m["total"])
}

func TestRecoverJSONTrailingCommas(t *testing.T) {
	raw, err := RecoverJSON(`{"items": [{"total": 1},], "total": 1,}`)
	require.NoError(t, err)

	var m map[string]any
	require.NoError(t, json.Unmarshal(raw, &m))
	assert.Equal(t, float64(1), m["total"])
}

func TestRecoverJSONPicksLongestCandidate(t *testing.T) {
	text := `{"a": 1} and then the full payload {"numeroFactura": "C-9", "subtotal": 100, "iva": 16, "total": 116}`
	raw, err := RecoverJSON(text)
	require.NoError(t, err)

	var m map[string]any
	require.NoError(t, json.Unmarshal(raw, &m))
	assert.Equal(t, "C-9", m["numeroFactura"])
}

func TestRecoverJSONLongestCandidateAfterProse(t *testing.T) {
	text := `First attempt: {"numeroFactura": "D-1", "total": 50, "moneda": "MXN"}` +
		` but on closer inspection the right reading is {"total": 1}.`
	raw, err := RecoverJSON(text)
	require.NoError(t, err)

	var m map[string]any
	require.NoError(t, json.Unmarshal(raw, &m))
	assert.Equal(t, "D-1", m["numeroFactura"])
}

func TestRecoverJSONBracesInsideStrings(t *testing.T) {
	text := `Note {this aside} then {"observaciones": "pagar {antes} del dia \"15\"", "total": 9}`
	raw, err := RecoverJSON(text)
	require.NoError(t, err)

	var m map[string]any
	require.NoError(t, json.Unmarshal(raw, &m))
	assert.Equal(t, `pagar {antes} del dia "15"`, m["observaciones"])
}

func TestRecoverJSONFallsPastLongestUnparseableSpan(t *testing.T) {
	text := `{"broken": oops, "filler": "aaaaaaaaaaaaaaaaaaaaaaaa"} meanwhile {"numeroFactura": "E-2"}`
	raw, err := RecoverJSON(text)
	require.NoError(t, err)

	var m map[string]any
	require.NoError(t, json.Unmarshal(raw, &m))
	assert.Equal(t, "E-2", m["numeroFactura"])
}

func TestRecoverJSONUnparseable(t *testing.T) {
	for _, text := range []string{
		"",
		"I could not read the document.",
		"{not json at all",
		"[1, 2, 3]",
	} {
		_, err := RecoverJSON(text)
		require.Error(t, err, "input %q", text)
		assert.True(t, errors.Is(err, common.ErrResponseUnparseable), "input %q", text)
	}
}

func TestRecoverJSONPreservesRawTextInCause(t *testing.T) {
	_, err := RecoverJSON("nothing to see here")
	require.Error(t, err)

	var rawErr *RawResponseError
	require.True(t, errors.As(err, &rawErr))
	assert.Contains(t, rawErr.Text, "nothing to see here")
}
