package savefile

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
)

// NodeKind tags the variant held by a Node.
type NodeKind int

const (
	Scalar NodeKind = iota
	Object
	Array
)

// Node is one value of a decoded document. Objects keep their fields in
// document order.
type Node struct {
	Kind   NodeKind
	Fields []Field
	Items  []*Node
	// Value holds a scalar: string, json.Number, bool or nil.
	Value any
}

// Field is a single key/value pair of an object node.
type Field struct {
	Key   string
	Value *Node
}

// Get returns the value stored under key in an object node.
func (n *Node) Get(key string) (*Node, bool) {
	if n == nil || n.Kind != Object {
		return nil, false
	}
	for _, f := range n.Fields {
		if f.Key == key {
			return f.Value, true
		}
	}
	return nil, false
}

// String returns the scalar string value of the node.
func (n *Node) String() (string, bool) {
	if n == nil || n.Kind != Scalar {
		return "", false
	}
	s, ok := n.Value.(string)
	return s, ok
}

func decodeTree(data []byte) (*Node, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	root, err := decodeValue(dec)
	if err != nil {
		return nil, err
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return nil, errors.New("trailing data after top-level value")
	}
	return root, nil
}

func decodeValue(dec *json.Decoder) (*Node, error) {
	tok, err := dec.Token()
	if err != nil {
		return nil, err
	}
	switch v := tok.(type) {
	case json.Delim:
		switch v {
		case '{':
			return decodeObject(dec)
		case '[':
			return decodeArray(dec)
		default:
			return nil, fmt.Errorf("unexpected delimiter %q", v)
		}
	default:
		return &Node{Kind: Scalar, Value: v}, nil
	}
}

// decodeObject keeps the first position of a repeated key but the last value,
// matching how most JSON readers treat duplicates.
func decodeObject(dec *json.Decoder) (*Node, error) {
	node := &Node{Kind: Object}
	index := map[string]int{}
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return nil, err
		}
		key, ok := tok.(string)
		if !ok {
			return nil, fmt.Errorf("object key is %T, not string", tok)
		}
		value, err := decodeValue(dec)
		if err != nil {
			return nil, err
		}
		if i, dup := index[key]; dup {
			node.Fields[i].Value = value
			continue
		}
		index[key] = len(node.Fields)
		node.Fields = append(node.Fields, Field{Key: key, Value: value})
	}
	if _, err := dec.Token(); err != nil {
		return nil, err
	}
	return node, nil
}

func decodeArray(dec *json.Decoder) (*Node, error) {
	node := &Node{Kind: Array}
	for dec.More() {
		item, err := decodeValue(dec)
		if err != nil {
			return nil, err
		}
		node.Items = append(node.Items, item)
	}
	if _, err := dec.Token(); err != nil {
		return nil, err
	}
	return node, nil
}
