package condition

import (
	"errors"
	"fmt"
)

// ErrMalformedNode is returned when a tree cannot be decoded.
var ErrMalformedNode = errors.New("malformed condition node")

// UnknownOperatorError is returned when a node's tag has no registered operator.
type UnknownOperatorError struct {
	Tag string
}

func (e *UnknownOperatorError) Error() string {
	return fmt.Sprintf("unknown condition operator %q", e.Tag)
}

// NodeTypeError is returned when an operator receives a node variant it does
// not handle. It means the registry maps a tag to the wrong operator.
type NodeTypeError struct {
	Tag  string
	Node Node
}

func (e *NodeTypeError) Error() string {
	return fmt.Sprintf("operator %q cannot evaluate node of type %T", e.Tag, e.Node)
}
