package structured

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtract_Direct(t *testing.T) {
	res, err := Extract(`  {"name": "site", "pages": [1, 2]}  `)
	require.NoError(t, err)
	assert.Equal(t, TierDirect, res.Tier)
	assert.False(t, res.Degraded)
	assert.Equal(t, "site", res.Object()["name"])
}

func TestExtract_TopLevelArray(t *testing.T) {
	res, err := Extract(`[{"name":"a"},{"name":"b"}]`)
	require.NoError(t, err)
	assert.Equal(t, TierDirect, res.Tier)
	assert.Len(t, res.Value, 2)
	assert.Nil(t, res.Object())
}

func TestExtract_FencedWithProse(t *testing.T) {
	text := "Here is the plan:\n```json\n{\"project_name\": \"demo\"}\n```\nLet me know if you need changes."
	res, err := Extract(text)
	require.NoError(t, err)
	assert.Equal(t, TierUnwrapped, res.Tier)
	assert.Equal(t, "demo", res.Object()["project_name"])
}

func TestExtract_FenceOnly(t *testing.T) {
	res, err := Extract("```json\n[\"a\", \"b\"]\n```")
	require.NoError(t, err)
	assert.Equal(t, []any{"a", "b"}, res.Value)
}

func TestExtract_ArrayOfObjectsUnwrapsWhole(t *testing.T) {
	res, err := Extract("files:\n[{\"name\": \"index.html\"}, {\"name\": \"styles.css\"}]")
	require.NoError(t, err)
	assert.Equal(t, TierUnwrapped, res.Tier)
	assert.Len(t, res.Value, 2)
}

func TestExtract_ProseBracketBeforeObject(t *testing.T) {
	for _, text := range []string{
		"Based on requirement [1], here you go:\n{\"description\": \"a shop\", \"features\": \"cart\"}",
		"Per [v1] of the brief:\n{\"description\": \"a shop\", \"features\": [\"cart\"]}",
	} {
		res, err := Extract(text)
		require.NoError(t, err, text)
		require.NotNil(t, res.Object(), text)
		assert.Equal(t, "a shop", res.Object()["description"])
	}
}

func TestExtract_ProseBracketBeforeBrokenObject(t *testing.T) {
	res, err := Extract("See [1]:\n{description: \"a shop\",}")
	require.NoError(t, err)
	assert.Equal(t, TierRewritten, res.Tier)
	assert.Equal(t, "a shop", res.Object()["description"])
}

func TestExtract_SingleArrayOfOneObject(t *testing.T) {
	res, err := Extract("files: [{\"name\": \"index.html\"}]")
	require.NoError(t, err)
	assert.Equal(t, []any{map[string]any{"name": "index.html"}}, res.Value)
}

func TestExtract_SingleLineFence(t *testing.T) {
	res, err := Extract("```json {\"description\": \"a shop\"} ```")
	require.NoError(t, err)
	assert.Equal(t, "a shop", res.Object()["description"])

	res, err = Extract("```{\"description\": \"a shop\"}```")
	require.NoError(t, err)
	assert.Equal(t, "a shop", res.Object()["description"])
}

func TestExtract_RawNewlinesInsideStrings(t *testing.T) {
	text := "{\"body\": \"line one\nline two\n\tindented\"}"
	res, err := Extract(text)
	require.NoError(t, err)
	assert.Equal(t, TierRewritten, res.Tier)
	assert.Equal(t, "line one\nline two\n\tindented", res.Object()["body"])
}

func TestExtract_PreservesNewlinesLosslessly(t *testing.T) {
	values := []string{
		"a\nb",
		"\n\nleading and trailing\n",
		"tabs\tand\r\nCRLF",
		"quotes \" and braces { } [ ]",
		"",
	}
	for _, want := range values {
		data, err := json.Marshal(map[string]string{"v": want})
		require.NoError(t, err)

		// Well-formed input must parse directly.
		res, err := Extract(string(data))
		require.NoError(t, err)
		assert.Equal(t, want, res.Object()["v"])

		// Raw control characters as a model would emit them.
		raw := strings.NewReplacer(`\n`, "\n", `\t`, "\t", `\r`, "\r").Replace(string(data))
		res, err = Extract(raw)
		require.NoError(t, err, "raw input %q", raw)
		assert.Equal(t, want, res.Object()["v"])
	}
}

func TestExtract_TrailingCommasAndBareKeys(t *testing.T) {
	text := "{name: \"x\", items: [1, 2,], nested: {ok: true,},}"
	res, err := Extract(text)
	require.NoError(t, err)
	assert.Equal(t, TierRewritten, res.Tier)
	obj := res.Object()
	assert.Equal(t, "x", obj["name"])
	assert.Equal(t, []any{1.0, 2.0}, obj["items"])
	assert.Equal(t, map[string]any{"ok": true}, obj["nested"])
}

func TestExtract_CommaInsideStringKept(t *testing.T) {
	res, err := Extract("{\"a\": \"x,}\",\n}")
	require.NoError(t, err)
	assert.Equal(t, "x,}", res.Object()["a"])
}

func TestExtract_InvalidEscapeRepaired(t *testing.T) {
	res, err := Extract("{\"path\": \"C:\\dir\\q\"}")
	require.NoError(t, err)
	assert.Equal(t, `C:\dir\q`, res.Object()["path"])
}

func TestExtract_PartialFields(t *testing.T) {
	text := `{"features": ["search", "cart"], "description": "shop" "oops`
	res, err := Extract(text, WithKeys("features", "description", "missing"))
	require.NoError(t, err)
	assert.Equal(t, TierPartial, res.Tier)
	assert.True(t, res.Degraded)
	obj := res.Object()
	assert.Equal(t, []any{"search", "cart"}, obj["features"])
	assert.Equal(t, "shop", obj["description"])
	assert.NotContains(t, obj, "missing")
}

func TestExtract_PartialTruncatedArray(t *testing.T) {
	text := `{"files": [{"name": "a.html"}, {"name": "b.html"}, {"name": "c.ht`
	res, err := Extract(text, WithKeys("files"))
	require.NoError(t, err)
	assert.Equal(t, TierPartial, res.Tier)
	files, ok := res.Object()["files"].([]any)
	require.True(t, ok)
	assert.Len(t, files, 2)
}

func TestExtract_PartialNeedsKeys(t *testing.T) {
	_, err := Extract(`{"features": ["a"`)
	assert.True(t, errors.Is(err, ErrMalformedOutput))
}

func TestExtract_Malformed(t *testing.T) {
	for _, text := range []string{"", "   ", "I cannot produce that right now.", "42", `"just a string"`} {
		_, err := Extract(text, WithKeys("features"))
		assert.ErrorIs(t, err, ErrMalformedOutput, "input %q", text)
	}
}

func TestExtractOr_Default(t *testing.T) {
	def := map[string]any{"description": "fallback"}
	res := ExtractOr("no json here", def)
	assert.Equal(t, TierDefault, res.Tier)
	assert.True(t, res.Degraded)
	assert.Equal(t, "fallback", res.Object()["description"])

	res = ExtractOr(`{"description": "real"}`, def)
	assert.Equal(t, TierDirect, res.Tier)
	assert.False(t, res.Degraded)
}

func TestDecode(t *testing.T) {
	type shape struct {
		Name  string   `json:"name"`
		Items []string `json:"items"`
	}
	res, err := Extract(`{name: "n", items: ["a",],}`)
	require.NoError(t, err)
	var out shape
	require.NoError(t, Decode(res.Value, &out))
	assert.Equal(t, shape{Name: "n", Items: []string{"a"}}, out)
}

func TestTierString(t *testing.T) {
	assert.Equal(t, "partial", TierPartial.String())
	assert.Equal(t, "unknown", Tier(99).String())
}
