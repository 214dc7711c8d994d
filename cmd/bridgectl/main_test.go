package main

import (
	"context"
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/wippyai/hostbridge/internal/config"
)

func newTestEnvConfig() config.Config {
	cfg := config.Default()
	cfg.Heap.CollectEvery = 1
	cfg.Guest.Demo = true
	return cfg
}

func TestCall(t *testing.T) {
	ctx := context.Background()
	env, err := newEnv(ctx, newTestEnvConfig())
	if err != nil {
		t.Fatal(err)
	}
	defer env.Close(ctx)

	for _, checkLeaks := range []bool{false, true} {
		got, err := call(ctx, env, "test_func_1", []string{"[|1l; 2l; 3l|]", "1"}, checkLeaks)
		if err != nil {
			t.Fatalf("checkLeaks=%v: %v", checkLeaks, err)
		}
		if got != "2l" {
			t.Errorf("checkLeaks=%v: result = %s", checkLeaks, got)
		}
	}

	if _, err := call(ctx, env, "no_such_native", nil, false); err == nil {
		t.Error("unknown native accepted")
	}
}

func TestNewEnv_MissingModule(t *testing.T) {
	cfg := newTestEnvConfig()
	cfg.Guest.Modules = []config.ModuleConfig{{Name: "m", Path: t.TempDir() + "/missing.wasm", WIT: "m.wit"}}
	if _, err := newEnv(context.Background(), cfg); err == nil || !strings.Contains(err.Error(), "load guest m") {
		t.Errorf("err = %v", err)
	}
}

func TestInteractiveModel(t *testing.T) {
	ctx := context.Background()
	env, err := newEnv(ctx, newTestEnvConfig())
	if err != nil {
		t.Fatal(err)
	}
	defer env.Close(ctx)

	m := newInteractiveModel(ctx, env, true)
	if len(m.funcs) != env.Registry.Len() {
		t.Fatalf("funcs = %d, registry = %d", len(m.funcs), env.Registry.Len())
	}

	for i, sig := range m.funcs {
		if sig.Name == "apply_range" {
			m.selected = i
		}
	}
	m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	if m.state != stateInputArgs || len(m.inputs) != 3 {
		t.Fatalf("state = %d, inputs = %d", m.state, len(m.inputs))
	}
	m.inputs[0].SetValue("@sum")
	m.inputs[1].SetValue("2")
	m.inputs[2].SetValue("5")

	msg := m.callFunction()
	m.Update(msg)
	if m.state != stateShowResult || m.err != nil {
		t.Fatalf("state = %d, err = %v", m.state, m.err)
	}
	if m.result != "9" {
		t.Errorf("result = %s", m.result)
	}
	if !strings.Contains(m.View(), "Result of apply_range") {
		t.Error("view does not show the result")
	}

	m.Update(tea.KeyMsg{Type: tea.KeyEsc})
	if m.state != stateSelectFunc || m.inputs != nil {
		t.Errorf("esc did not return to selection")
	}
}
