// Package exprutils parses the string tokens definitions use to reference scene
// objects: driver expressions such as "@{self.inputLayer.upr}" and component
// tokens such as "arm:L" or "arm:L:upr".
package exprutils

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
)

var (
	ErrInvalidExpression = errors.New("invalid expression")
	ErrInvalidToken      = errors.New("invalid component token")
)

// Self refers to the component that owns the expression.
const Self = "self"

var exprPattern = regexp.MustCompile(`^@\{([^{}]+)\}$`)

// Expression is a parsed "@{component.layer.node[.attr]}" reference.
type Expression struct {
	// Component is Self or a "name:side" token.
	Component string
	Layer     string
	Node      string
	Attr      string
}

// IsSelf reports whether the expression points at its owning component.
func (e Expression) IsSelf() bool { return e.Component == Self }

// Name and Side split the component token. Both are empty for self references.
func (e Expression) Name() string {
	if e.IsSelf() {
		return ""
	}
	name, _, _ := strings.Cut(e.Component, ":")
	return name
}

func (e Expression) Side() string {
	if e.IsSelf() {
		return ""
	}
	_, side, _ := strings.Cut(e.Component, ":")
	return side
}

func (e Expression) String() string {
	parts := []string{e.Component, e.Layer, e.Node}
	if e.Attr != "" {
		parts = append(parts, e.Attr)
	}
	return "@{" + strings.Join(parts, ".") + "}"
}

// IsExpression reports whether s looks like a driver expression.
func IsExpression(s string) bool {
	return exprPattern.MatchString(strings.TrimSpace(s))
}

// Parse decodes a driver expression.
func Parse(s string) (Expression, error) {
	m := exprPattern.FindStringSubmatch(strings.TrimSpace(s))
	if m == nil {
		return Expression{}, fmt.Errorf("%w: %q", ErrInvalidExpression, s)
	}
	parts := strings.Split(m[1], ".")
	if len(parts) < 3 || len(parts) > 4 {
		return Expression{}, fmt.Errorf("%w: %q needs component.layer.node[.attr]", ErrInvalidExpression, s)
	}
	for _, p := range parts {
		if p == "" {
			return Expression{}, fmt.Errorf("%w: %q has an empty segment", ErrInvalidExpression, s)
		}
	}
	e := Expression{Component: parts[0], Layer: parts[1], Node: parts[2]}
	if len(parts) == 4 {
		e.Attr = parts[3]
	}
	if !e.IsSelf() {
		if _, _, err := SplitComponentToken(e.Component); err != nil {
			return Expression{}, fmt.Errorf("%w: %q", ErrInvalidExpression, s)
		}
	}
	return e, nil
}

// Rebind rewrites the component part of an expression. References to from become
// to; self references are left alone.
func Rebind(s, from, to string) string {
	e, err := Parse(s)
	if err != nil || e.IsSelf() || e.Component != from {
		return s
	}
	e.Component = to
	return e.String()
}

// ComponentToken formats "name:side".
func ComponentToken(name, side string) string {
	return name + ":" + side
}

// SplitComponentToken splits "name:side".
func SplitComponentToken(token string) (name, side string, err error) {
	name, side, ok := strings.Cut(token, ":")
	if !ok || name == "" || side == "" || strings.Contains(side, ":") {
		return "", "", fmt.Errorf("%w: %q", ErrInvalidToken, token)
	}
	return name, side, nil
}

// NodeToken formats "name:side:id".
func NodeToken(name, side, id string) string {
	return name + ":" + side + ":" + id
}

// SplitNodeToken splits "name:side:id".
func SplitNodeToken(token string) (name, side, id string, err error) {
	parts := strings.Split(token, ":")
	if len(parts) != 3 || parts[0] == "" || parts[1] == "" || parts[2] == "" {
		return "", "", "", fmt.Errorf("%w: %q", ErrInvalidToken, token)
	}
	return parts[0], parts[1], parts[2], nil
}
