// Package scripting runs NPC dialogue scripts on embedded Lua VMs.
// Each NPC script gets its own state so script-local globals cannot
// collide across NPCs. Single-goroutine access only (game loop).
package scripting

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	lua "github.com/yuin/gopher-lua"
	"go.uber.org/zap"
)

// Engine loads and runs per-NPC dialogue scripts from scripts/npc/.
type Engine struct {
	log    *zap.Logger
	states map[string]*lua.LState
}

// NewEngine loads every .lua file under scriptsDir/npc. The file stem is
// the NPC template id. A missing directory is not an error; the engine
// just has no dialogue.
func NewEngine(scriptsDir string, log *zap.Logger) (*Engine, error) {
	e := &Engine{log: log, states: make(map[string]*lua.LState)}

	dir := filepath.Join(scriptsDir, "npc")
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return e, nil
		}
		return nil, fmt.Errorf("read script dir: %w", err)
	}

	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != ".lua" {
			continue
		}
		npcID := strings.TrimSuffix(entry.Name(), ".lua")
		path := filepath.Join(dir, entry.Name())
		if err := e.loadScript(npcID, path); err != nil {
			e.Close()
			return nil, err
		}
		log.Debug("loaded npc script", zap.String("npc", npcID), zap.String("file", path))
	}
	return e, nil
}

func (e *Engine) loadScript(npcID, path string) error {
	vm := lua.NewState(lua.Options{SkipOpenLibs: false})
	vm.SetGlobal("API_VERSION", lua.LNumber(1))
	vm.SetGlobal("NPC_ID", lua.LString(npcID))
	if err := vm.DoFile(path); err != nil {
		vm.Close()
		return fmt.Errorf("load %s: %w", path, err)
	}
	e.states[npcID] = vm
	return nil
}

// HasDialogue reports whether an NPC template has a script.
func (e *Engine) HasDialogue(npcID string) bool {
	_, ok := e.states[npcID]
	return ok
}

// Talk runs the script's talk(player, keyword) function and returns the
// NPC's reply. An empty reply means the script had nothing to say about
// that keyword; the caller falls back to a stock line. Script errors are
// logged and degrade to an empty reply rather than breaking the command.
func (e *Engine) Talk(npcID, playerName, keyword string) string {
	vm, ok := e.states[npcID]
	if !ok {
		return ""
	}
	fn := vm.GetGlobal("talk")
	if fn == lua.LNil {
		return ""
	}

	if err := vm.CallByParam(lua.P{
		Fn:      fn,
		NRet:    1,
		Protect: true,
	}, lua.LString(playerName), lua.LString(strings.ToLower(keyword))); err != nil {
		e.log.Error("lua talk error", zap.String("npc", npcID), zap.Error(err))
		return ""
	}

	result := vm.Get(-1)
	vm.Pop(1)
	if result == lua.LNil {
		return ""
	}
	return lua.LVAsString(result)
}

// Greeting runs the script's optional greet(player) function, used when a
// player enters the NPC's room.
func (e *Engine) Greeting(npcID, playerName string) string {
	vm, ok := e.states[npcID]
	if !ok {
		return ""
	}
	fn := vm.GetGlobal("greet")
	if fn == lua.LNil {
		return ""
	}

	if err := vm.CallByParam(lua.P{
		Fn:      fn,
		NRet:    1,
		Protect: true,
	}, lua.LString(playerName)); err != nil {
		e.log.Error("lua greet error", zap.String("npc", npcID), zap.Error(err))
		return ""
	}

	result := vm.Get(-1)
	vm.Pop(1)
	if result == lua.LNil {
		return ""
	}
	return lua.LVAsString(result)
}

// Keywords runs the script's optional keywords() function so "talk <npc>"
// with no topic can hint at what the NPC responds to.
func (e *Engine) Keywords(npcID string) []string {
	vm, ok := e.states[npcID]
	if !ok {
		return nil
	}
	fn := vm.GetGlobal("keywords")
	if fn == lua.LNil {
		return nil
	}

	if err := vm.CallByParam(lua.P{
		Fn:      fn,
		NRet:    1,
		Protect: true,
	}); err != nil {
		e.log.Error("lua keywords error", zap.String("npc", npcID), zap.Error(err))
		return nil
	}

	result := vm.Get(-1)
	vm.Pop(1)
	tbl, ok := result.(*lua.LTable)
	if !ok {
		return nil
	}

	var out []string
	tbl.ForEach(func(_, v lua.LValue) {
		if s := lua.LVAsString(v); s != "" {
			out = append(out, s)
		}
	})
	return out
}

// Close shuts down every script VM.
func (e *Engine) Close() {
	for _, vm := range e.states {
		vm.Close()
	}
	e.states = make(map[string]*lua.LState)
}
