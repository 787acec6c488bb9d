package scenario

import (
	"embed"
	"errors"
	"fmt"
	"path"
	"sort"
	"strings"

	"github.com/nvandessel/macrosim/internal/model"
)

// builtins contains the sample scenarios shipped with the binary.
//
//go:embed builtin/*.yaml
var builtins embed.FS

// ErrUnknownScenario indicates a built-in scenario name that does not exist.
var ErrUnknownScenario = errors.New("unknown scenario")

// Names lists the built-in scenarios in sorted order.
func Names() []string {
	entries, err := builtins.ReadDir("builtin")
	if err != nil {
		return nil
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, strings.TrimSuffix(e.Name(), ".yaml"))
	}
	sort.Strings(names)
	return names
}

// Source returns the YAML text of a built-in scenario.
func Source(name string) ([]byte, error) {
	data, err := builtins.ReadFile(path.Join("builtin", name+".yaml"))
	if err != nil {
		return nil, fmt.Errorf("%w: %q (available: %s)", ErrUnknownScenario, name, strings.Join(Names(), ", "))
	}
	return data, nil
}

// Builtin decodes a built-in scenario into a fresh model list.
func Builtin(name string) (model.ModelList, error) {
	data, err := Source(name)
	if err != nil {
		return nil, err
	}
	list, err := Decode(data)
	if err != nil {
		return nil, fmt.Errorf("scenario %s: %w", name, err)
	}
	return list, nil
}
