package discount

import (
	"errors"
	"fmt"
)

// ErrMalformedNode is returned when a tree cannot be decoded.
var ErrMalformedNode = errors.New("malformed discount node")

// UnknownOperatorError is returned when a node's tag has no registered operator.
type UnknownOperatorError struct {
	Tag string
}

func (e *UnknownOperatorError) Error() string {
	return fmt.Sprintf("unknown discount operator %q", e.Tag)
}

// NodeTypeError is returned when an operator receives a node variant it does
// not handle.
type NodeTypeError struct {
	Tag  string
	Node Node
}

func (e *NodeTypeError) Error() string {
	return fmt.Sprintf("discount operator %q cannot apply node of type %T", e.Tag, e.Node)
}
