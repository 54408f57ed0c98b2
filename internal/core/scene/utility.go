package scene

// NewMultMatrix creates a multMatrix utility. Its matrixSum output is the product of
// matrixIn[0..n] in index order.
func NewMultMatrix(g Graph, name string) (NodeID, error) {
	id, err := g.CreateNode(TypeUtility, name, "")
	if err != nil {
		return "", err
	}
	if err := g.AddAttribute(id, AttributeSpec{Name: AttrNameUtilityType, Type: AttrString, Value: UtilityMultMatrix, Locked: true}); err != nil {
		return "", err
	}
	return id, nil
}

// NewPickMatrix creates a pickMatrix utility that passes through the selected
// channels of inputMatrix.
func NewPickMatrix(g Graph, name string, translate, rotate, scale bool) (NodeID, error) {
	id, err := g.CreateNode(TypeUtility, name, "")
	if err != nil {
		return "", err
	}
	specs := []AttributeSpec{
		{Name: AttrNameUtilityType, Type: AttrString, Value: UtilityPickMatrix, Locked: true},
		{Name: AttrNameInputMatrix, Type: AttrMatrix},
		{Name: AttrNameUseTranslate, Type: AttrBool, Value: translate},
		{Name: AttrNameUseRotate, Type: AttrBool, Value: rotate},
		{Name: AttrNameUseScale, Type: AttrBool, Value: scale},
	}
	for _, s := range specs {
		if err := g.AddAttribute(id, s); err != nil {
			return "", err
		}
	}
	return id, nil
}

// NewInverseMatrix creates an inverseMatrix utility whose outputMatrix is the
// inverse of inputMatrix.
func NewInverseMatrix(g Graph, name string) (NodeID, error) {
	id, err := g.CreateNode(TypeUtility, name, "")
	if err != nil {
		return "", err
	}
	if err := g.AddAttribute(id, AttributeSpec{Name: AttrNameUtilityType, Type: AttrString, Value: UtilityInverseMatrix, Locked: true}); err != nil {
		return "", err
	}
	if err := g.AddAttribute(id, AttributeSpec{Name: AttrNameInputMatrix, Type: AttrMatrix}); err != nil {
		return "", err
	}
	return id, nil
}

// Descendants returns every dag node below id, depth first.
func Descendants(g Graph, id NodeID) []NodeID {
	var out []NodeID
	for _, c := range g.Children(id) {
		out = append(out, c)
		out = append(out, Descendants(g, c)...)
	}
	return out
}

// IsDescendantOf reports whether id lives below ancestor.
func IsDescendantOf(g Graph, id, ancestor NodeID) bool {
	for cur := g.Parent(id); cur != ""; cur = g.Parent(cur) {
		if cur == ancestor {
			return true
		}
	}
	return false
}

// MustString reads a string attribute, returning "" when absent.
func MustString(g Graph, id NodeID, attr string) string {
	v, err := g.Get(id, attr)
	if err != nil {
		return ""
	}
	switch s := v.(type) {
	case string:
		return s
	case NodeID:
		return string(s)
	}
	return ""
}

// MustBool reads a bool attribute, returning false when absent.
func MustBool(g Graph, id NodeID, attr string) bool {
	v, err := g.Get(id, attr)
	if err != nil {
		return false
	}
	b, _ := v.(bool)
	return b
}

// EnsureAttribute adds spec when missing and otherwise sets its value.
func EnsureAttribute(g Graph, id NodeID, spec AttributeSpec) error {
	if g.HasAttribute(id, spec.Name) {
		if spec.Value == nil {
			return nil
		}
		return g.Set(id, spec.Name, spec.Value)
	}
	return g.AddAttribute(id, spec)
}
