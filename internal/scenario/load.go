package scenario

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/nvandessel/macrosim/internal/model"
)

// ErrEmptyDocument indicates a specification without any model.
var ErrEmptyDocument = errors.New("specification holds no model")

// Decode parses a YAML or JSON specification holding either a single model
// or a list of models. Every model tree is validated.
func Decode(data []byte) (model.ModelList, error) {
	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse specification: %w", err)
	}
	if doc.Kind == 0 || len(doc.Content) == 0 {
		return nil, ErrEmptyDocument
	}

	root := doc.Content[0]
	var specs []*ModelSpec
	switch root.Kind {
	case yaml.SequenceNode:
		if err := root.Decode(&specs); err != nil {
			return nil, fmt.Errorf("failed to decode model list: %w", err)
		}
	case yaml.MappingNode:
		var s ModelSpec
		if err := root.Decode(&s); err != nil {
			return nil, fmt.Errorf("failed to decode model: %w", err)
		}
		specs = []*ModelSpec{&s}
	default:
		return nil, fmt.Errorf("specification must be a mapping or a list, got %s", kindName(root.Kind))
	}
	if len(specs) == 0 {
		return nil, ErrEmptyDocument
	}
	return toModelList(specs)
}

// Load reads and decodes a specification file.
func Load(path string) (model.ModelList, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	list, err := Decode(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return list, nil
}

// Encode writes list as a YAML specification: a single mapping for one
// model, a sequence otherwise.
func Encode(list model.ModelList) ([]byte, error) {
	specs, err := toSpecs(list)
	if err != nil {
		return nil, err
	}
	if len(specs) == 1 {
		return yaml.Marshal(specs[0])
	}
	return yaml.Marshal(specs)
}

func toModelList(specs []*ModelSpec) (model.ModelList, error) {
	list := make(model.ModelList, 0, len(specs))
	for i, s := range specs {
		if s == nil {
			return nil, fmt.Errorf("model %d: %w", i, ErrEmptyDocument)
		}
		m, err := s.ToModel()
		if err != nil {
			return nil, fmt.Errorf("model %d: %w", i, err)
		}
		if err := model.Validate(m.Group); err != nil {
			return nil, fmt.Errorf("model %d: %w", i, err)
		}
		list = append(list, m)
	}
	return list, nil
}

func toSpecs(list model.ModelList) ([]*ModelSpec, error) {
	specs := make([]*ModelSpec, 0, len(list))
	for i, m := range list {
		s, err := FromModel(m)
		if err != nil {
			return nil, fmt.Errorf("model %d: %w", i, err)
		}
		specs = append(specs, s)
	}
	return specs, nil
}

func kindName(k yaml.Kind) string {
	switch k {
	case yaml.ScalarNode:
		return "a scalar"
	case yaml.AliasNode:
		return "an alias"
	case yaml.DocumentNode:
		return "a document"
	}
	return "an unknown node"
}
