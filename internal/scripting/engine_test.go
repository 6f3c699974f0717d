package scripting

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const harborScript = `
local topics = {
    rumors = "They say the fog off the breakwater hides more than gulls.",
    tides = "High tide at dusk. Mind the quay steps.",
}

function greet(player)
    return "Welcome to the Black Anchor, " .. player .. "."
end

function talk(player, keyword)
    return topics[keyword]
end

function keywords()
    return { "rumors", "tides" }
end
`

func writeScript(t *testing.T, dir, npcID, body string) {
	t.Helper()
	npcDir := filepath.Join(dir, "npc")
	require.NoError(t, os.MkdirAll(npcDir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(npcDir, npcID+".lua"), []byte(body), 0o644))
}

func TestTalkAndGreet(t *testing.T) {
	dir := t.TempDir()
	writeScript(t, dir, "harbormaster", harborScript)

	e, err := NewEngine(dir, zap.NewNop())
	require.NoError(t, err)
	defer e.Close()

	assert.True(t, e.HasDialogue("harbormaster"))
	assert.False(t, e.HasDialogue("gull"))

	assert.Equal(t, "Welcome to the Black Anchor, Ada.", e.Greeting("harbormaster", "Ada"))
	assert.Equal(t, "High tide at dusk. Mind the quay steps.", e.Talk("harbormaster", "Ada", "tides"))
	assert.Equal(t, "High tide at dusk. Mind the quay steps.", e.Talk("harbormaster", "Ada", "TIDES"))
	assert.Empty(t, e.Talk("harbormaster", "Ada", "dragons"))
	assert.Empty(t, e.Talk("gull", "Ada", "tides"))

	assert.Equal(t, []string{"rumors", "tides"}, e.Keywords("harbormaster"))
}

func TestMissingScriptDirIsFine(t *testing.T) {
	e, err := NewEngine(filepath.Join(t.TempDir(), "nope"), zap.NewNop())
	require.NoError(t, err)
	defer e.Close()
	assert.False(t, e.HasDialogue("anyone"))
}

func TestBrokenScriptFailsLoad(t *testing.T) {
	dir := t.TempDir()
	writeScript(t, dir, "mumbler", "this is not lua(")

	_, err := NewEngine(dir, zap.NewNop())
	assert.Error(t, err)
}

func TestRuntimeErrorDegradesToSilence(t *testing.T) {
	dir := t.TempDir()
	writeScript(t, dir, "crank", `function talk(p, k) error("no") end`)

	e, err := NewEngine(dir, zap.NewNop())
	require.NoError(t, err)
	defer e.Close()

	assert.Empty(t, e.Talk("crank", "Ada", "anything"))
}
