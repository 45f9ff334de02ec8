package daoopt

import (
	"fmt"
	"strconv"

	"gopkg.in/yaml.v3"
)

// UnmarshalYAML accepts either an ordered mapping ("FI: 3.5") or a
// sequence of {name, value} entries. Mapping order is preserved.
func (o *Options) UnmarshalYAML(node *yaml.Node) error {
	switch node.Kind {
	case yaml.MappingNode:
		out := make(Options, 0, len(node.Content)/2)
		for i := 0; i+1 < len(node.Content); i += 2 {
			var value float64
			if err := node.Content[i+1].Decode(&value); err != nil {
				return fmt.Errorf("option %s: %w", node.Content[i].Value, err)
			}
			out = append(out, Option{Name: node.Content[i].Value, Value: value})
		}
		*o = out
		return nil
	case yaml.SequenceNode:
		var list []Option
		if err := node.Decode(&list); err != nil {
			return err
		}
		*o = list
		return nil
	case yaml.ScalarNode:
		if node.Tag == "!!null" {
			*o = nil
			return nil
		}
	}
	return fmt.Errorf("line %d: options must be a mapping or a list", node.Line)
}

// MarshalYAML writes options as an ordered mapping.
func (o Options) MarshalYAML() (any, error) {
	node := &yaml.Node{Kind: yaml.MappingNode}
	for _, opt := range o {
		node.Content = append(node.Content,
			&yaml.Node{Kind: yaml.ScalarNode, Value: opt.Name},
			&yaml.Node{Kind: yaml.ScalarNode, Value: strconv.FormatFloat(opt.Value, 'g', -1, 64)},
		)
	}
	return node, nil
}
