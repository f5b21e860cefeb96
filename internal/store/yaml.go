package store

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// arrayTag marks a mapping node that holds an int32 array.
const arrayTag = "!int32"

// Encode writes g as a YAML document.
func Encode(w io.Writer, g *Group) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	doc := &yaml.Node{Kind: yaml.DocumentNode, Content: []*yaml.Node{g.node()}}
	if err := enc.Encode(doc); err != nil {
		return fmt.Errorf("encode store: %w", err)
	}
	return enc.Close()
}

// Decode reads a YAML document written by Encode.
func Decode(r io.Reader) (*Group, error) {
	var doc yaml.Node
	if err := yaml.NewDecoder(r).Decode(&doc); err != nil {
		if errors.Is(err, io.EOF) {
			return NewGroup(), nil
		}
		return nil, fmt.Errorf("decode store: %w", err)
	}
	root := &doc
	if root.Kind == yaml.DocumentNode {
		if len(root.Content) == 0 {
			return NewGroup(), nil
		}
		root = root.Content[0]
	}
	return groupFromNode(root, "")
}

// WriteFile encodes g into the named file.
func WriteFile(path string, g *Group) (err error) {
	f, err := os.Create(path) //nolint:gosec // G304: output path is chosen by the caller
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("close %s: %w", path, cerr)
		}
	}()
	return Encode(f, g)
}

// ReadFile decodes the named file.
func ReadFile(path string) (*Group, error) {
	f, err := os.Open(path) //nolint:gosec // G304: model path is chosen by the caller
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer func() { _ = f.Close() }()
	return Decode(f)
}

func (g *Group) node() *yaml.Node {
	n := &yaml.Node{Kind: yaml.MappingNode}
	for _, key := range g.order {
		k := &yaml.Node{Kind: yaml.ScalarNode, Value: key}
		var v *yaml.Node
		if sub, ok := g.groups[key]; ok {
			v = sub.node()
		} else {
			v = valueNode(g.values[key])
		}
		n.Content = append(n.Content, k, v)
	}
	return n
}

func valueNode(v any) *yaml.Node {
	switch t := v.(type) {
	case int:
		return &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!int", Value: strconv.Itoa(t)}
	case float64:
		return &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!float", Value: strconv.FormatFloat(t, 'g', -1, 64)}
	case bool:
		return &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!bool", Value: strconv.FormatBool(t)}
	case string:
		return &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: t}
	case Array:
		shape := &yaml.Node{Kind: yaml.SequenceNode, Style: yaml.FlowStyle}
		for _, d := range t.Shape {
			shape.Content = append(shape.Content, &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!int", Value: strconv.Itoa(d)})
		}
		data := &yaml.Node{Kind: yaml.SequenceNode, Style: yaml.FlowStyle}
		for _, d := range t.Data {
			data.Content = append(data.Content, &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!int", Value: strconv.FormatInt(int64(d), 10)})
		}
		return &yaml.Node{Kind: yaml.MappingNode, Tag: arrayTag, Content: []*yaml.Node{
			{Kind: yaml.ScalarNode, Value: "shape"}, shape,
			{Kind: yaml.ScalarNode, Value: "data"}, data,
		}}
	}
	panic(fmt.Sprintf("store: unsupported value type %T", v))
}

func groupFromNode(n *yaml.Node, path string) (*Group, error) {
	if n.Kind != yaml.MappingNode {
		return nil, fmt.Errorf("%w: %q is not a group (line %d)", ErrType, path, n.Line)
	}
	g := NewGroup()
	for i := 0; i+1 < len(n.Content); i += 2 {
		key := n.Content[i].Value
		val := n.Content[i+1]
		full := key
		if path != "" {
			full = path + "/" + key
		}
		if key == "" || strings.Contains(key, "/") {
			return nil, fmt.Errorf("%w: invalid key %q (line %d)", ErrType, full, n.Content[i].Line)
		}
		switch {
		case val.Kind == yaml.MappingNode && val.Tag == arrayTag:
			a, err := arrayFromNode(val, full)
			if err != nil {
				return nil, err
			}
			g.set(key, a)
		case val.Kind == yaml.MappingNode:
			sub, err := groupFromNode(val, full)
			if err != nil {
				return nil, err
			}
			g.setGroup(key, sub)
		case val.Kind == yaml.ScalarNode:
			v, err := scalarFromNode(val, full)
			if err != nil {
				return nil, err
			}
			g.set(key, v)
		default:
			return nil, fmt.Errorf("%w: unsupported node for %q (line %d)", ErrType, full, val.Line)
		}
	}
	return g, nil
}

func scalarFromNode(n *yaml.Node, path string) (any, error) {
	switch n.ShortTag() {
	case "!!int":
		v, err := strconv.Atoi(n.Value)
		if err != nil {
			return nil, fmt.Errorf("%w: %q: %v", ErrType, path, err)
		}
		return v, nil
	case "!!float":
		v, err := strconv.ParseFloat(n.Value, 64)
		if err != nil {
			return nil, fmt.Errorf("%w: %q: %v", ErrType, path, err)
		}
		return v, nil
	case "!!bool":
		v, err := strconv.ParseBool(n.Value)
		if err != nil {
			return nil, fmt.Errorf("%w: %q: %v", ErrType, path, err)
		}
		return v, nil
	case "!!str":
		return n.Value, nil
	}
	return nil, fmt.Errorf("%w: %q has unsupported tag %s", ErrType, path, n.ShortTag())
}

func arrayFromNode(n *yaml.Node, path string) (Array, error) {
	var raw struct {
		Shape []int   `yaml:"shape"`
		Data  []int32 `yaml:"data"`
	}
	// Decode ignores the custom tag on the mapping itself.
	plain := *n
	plain.Tag = ""
	if err := plain.Decode(&raw); err != nil {
		return Array{}, fmt.Errorf("%w: array %q: %v", ErrType, path, err)
	}
	if raw.Data == nil {
		raw.Data = []int32{}
	}
	a := Array{Shape: raw.Shape, Data: raw.Data}
	if err := a.Validate(); err != nil {
		return Array{}, fmt.Errorf("%w: array %q: %v", ErrType, path, err)
	}
	return a, nil
}
