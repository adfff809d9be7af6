package value

// Visitor folds a Value into a T. Visit dispatches on the concrete node type;
// implementations recurse by calling Visit on children.
type Visitor[T any] interface {
	VisitObject(Object) T
	VisitArray(Array) T
	VisitScalar(Scalar) T
}

// Visit applies vis to v. A nil Value is treated as Null.
func Visit[T any](v Value, vis Visitor[T]) T {
	switch x := v.(type) {
	case Object:
		return vis.VisitObject(x)
	case Array:
		return vis.VisitArray(x)
	case Scalar:
		return vis.VisitScalar(x)
	default:
		return vis.VisitScalar(Null)
	}
}

// KeyCollector gathers the values stored under Key anywhere in a document.
//
// When an object holds Key and its value is an object, that object's entries
// are merged into the result; any other value is stored under Key itself.
// Every nested container contributes its own non-empty result under the key
// that led to it, and array elements merge their results into the parent.
type KeyCollector struct {
	Key string
}

// VisitObject implements Visitor.
func (c KeyCollector) VisitObject(o Object) Object {
	out := Object{}
	for _, k := range o.Keys() {
		child := o[k]
		if k == c.Key {
			if nested, ok := child.(Object); ok {
				for nk, nv := range nested {
					out[nk] = nv
				}
			} else {
				out[k] = child
			}
		}
		switch child.(type) {
		case Object, Array:
			if found := Visit[Object](child, c); len(found) > 0 {
				out[k] = found
			}
		}
	}
	return out
}

// VisitArray implements Visitor.
func (c KeyCollector) VisitArray(a Array) Object {
	out := Object{}
	for _, item := range a {
		for k, v := range Visit[Object](item, c) {
			out[k] = v
		}
	}
	return out
}

// VisitScalar implements Visitor.
func (KeyCollector) VisitScalar(Scalar) Object {
	return Object{}
}

// ScalarCollector returns every string scalar stored under Key at any depth,
// in document order with object keys sorted.
type ScalarCollector struct {
	Key string
}

// VisitObject implements Visitor.
func (c ScalarCollector) VisitObject(o Object) []string {
	var out []string
	for _, k := range o.Keys() {
		child := o[k]
		if k == c.Key {
			if s, ok := child.(Scalar); ok {
				if str, ok := s.V.(string); ok {
					out = append(out, str)
				}
			}
		}
		out = append(out, Visit[[]string](child, c)...)
	}
	return out
}

// VisitArray implements Visitor.
func (c ScalarCollector) VisitArray(a Array) []string {
	var out []string
	for _, item := range a {
		out = append(out, Visit[[]string](item, c)...)
	}
	return out
}

// VisitScalar implements Visitor.
func (ScalarCollector) VisitScalar(Scalar) []string {
	return nil
}
