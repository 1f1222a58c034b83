// Package registry implements the process-global stable type-name
// registries for modifiers and analyzers (§9: "a registry maps stable
// type-name strings to constructors for persistence"). internal/project does
// not use it: project files carry no effect/analyzer entries.
//
// Grounded on the teacher's internal/myaudio species-registry pattern (a
// process-wide map guarded by a mutex, populated by explicit init-time
// registration rather than reflection-based discovery), matching §9's
// "global mutable state ... process-wide subsystems with explicit init".
package registry

import (
	"sync"

	"github.com/LuoYun-Team/soundflow-engine/internal/analyzer"
	"github.com/LuoYun-Team/soundflow-engine/internal/engineerr"
	"github.com/LuoYun-Team/soundflow-engine/internal/modifier"
)

// ModifierConstructor builds a modifier.Modifier from its persisted,
// typed parameters.
type ModifierConstructor func(params map[string]any) (modifier.Modifier, error)

// AnalyzerConstructor builds an analyzer.Analyzer from its persisted,
// typed parameters.
type AnalyzerConstructor func(params map[string]any) (analyzer.Analyzer, error)

var (
	mu                  sync.RWMutex
	modifierConstructors = map[string]ModifierConstructor{}
	analyzerConstructors = map[string]AnalyzerConstructor{}
)

// RegisterModifier associates a stable type name with a constructor.
// Intended to be called from package init() functions, never from the
// audio thread.
func RegisterModifier(typeName string, ctor ModifierConstructor) {
	mu.Lock()
	defer mu.Unlock()
	modifierConstructors[typeName] = ctor
}

// RegisterAnalyzer associates a stable type name with a constructor.
func RegisterAnalyzer(typeName string, ctor AnalyzerConstructor) {
	mu.Lock()
	defer mu.Unlock()
	analyzerConstructors[typeName] = ctor
}

// BuildModifier resolves typeName to its constructor and builds a modifier
// from params (as decoded from a project file, §6).
func BuildModifier(typeName string, params map[string]any) (modifier.Modifier, error) {
	mu.RLock()
	ctor, ok := modifierConstructors[typeName]
	mu.RUnlock()
	if !ok {
		return nil, engineerr.Newf("no modifier registered for type %q", typeName).
			Component("registry").Kind(engineerr.KindNotFound).Context("type_name", typeName).Build()
	}
	return ctor(params)
}

// BuildAnalyzer resolves typeName to its constructor and builds an
// analyzer from params.
func BuildAnalyzer(typeName string, params map[string]any) (analyzer.Analyzer, error) {
	mu.RLock()
	ctor, ok := analyzerConstructors[typeName]
	mu.RUnlock()
	if !ok {
		return nil, engineerr.Newf("no analyzer registered for type %q", typeName).
			Component("registry").Kind(engineerr.KindNotFound).Context("type_name", typeName).Build()
	}
	return ctor(params)
}

// KnownModifierTypes returns the currently registered modifier type names.
func KnownModifierTypes() []string {
	mu.RLock()
	defer mu.RUnlock()
	out := make([]string, 0, len(modifierConstructors))
	for k := range modifierConstructors {
		out = append(out, k)
	}
	return out
}

// KnownAnalyzerTypes returns the currently registered analyzer type names.
func KnownAnalyzerTypes() []string {
	mu.RLock()
	defer mu.RUnlock()
	out := make([]string, 0, len(analyzerConstructors))
	for k := range analyzerConstructors {
		out = append(out, k)
	}
	return out
}
