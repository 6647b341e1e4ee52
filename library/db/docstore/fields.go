package docstore

import (
	"reflect"
	"strings"
	"sync"
	"time"

	"github.com/Laisky/errors/v2"
)

const fieldTag = "firestore"

var (
	timeType       = reflect.TypeOf(time.Time{})
	fieldIndexes   = map[reflect.Type]map[string]int{}
	fieldIndexesMu sync.RWMutex
)

// fieldIndex returns the struct field index declared with tag name `name`.
func fieldIndex(t reflect.Type, name string) (int, bool) {
	fieldIndexesMu.RLock()
	idx, ok := fieldIndexes[t]
	fieldIndexesMu.RUnlock()
	if !ok {
		idx = make(map[string]int, t.NumField())
		for i := 0; i < t.NumField(); i++ {
			f := t.Field(i)
			if !f.IsExported() {
				continue
			}

			tagName := strings.Split(f.Tag.Get(fieldTag), ",")[0]
			switch tagName {
			case "-":
				continue
			case "":
				tagName = f.Name
			}

			idx[tagName] = i
		}

		fieldIndexesMu.Lock()
		fieldIndexes[t] = idx
		fieldIndexesMu.Unlock()
	}

	i, ok := idx[name]
	return i, ok
}

// lookupField walks a dotted path. It returns an invalid value when the
// path does not exist or crosses a nil pointer.
func lookupField(v reflect.Value, path string) reflect.Value {
	for _, part := range strings.Split(path, ".") {
		for v.Kind() == reflect.Pointer || v.Kind() == reflect.Interface {
			if v.IsNil() {
				return reflect.Value{}
			}
			v = v.Elem()
		}

		if v.Kind() != reflect.Struct {
			return reflect.Value{}
		}

		i, ok := fieldIndex(v.Type(), part)
		if !ok {
			return reflect.Value{}
		}

		v = v.Field(i)
	}

	return v
}

// settableField is lookupField that allocates nil intermediate pointers.
func settableField(v reflect.Value, path string) (reflect.Value, error) {
	parts := strings.Split(path, ".")
	for n, part := range parts {
		for v.Kind() == reflect.Pointer {
			if v.IsNil() {
				v.Set(reflect.New(v.Type().Elem()))
			}
			v = v.Elem()
		}

		if v.Kind() != reflect.Struct {
			return reflect.Value{}, errors.Errorf("path `%s` is not a struct at `%s`", path, strings.Join(parts[:n], "."))
		}

		i, ok := fieldIndex(v.Type(), part)
		if !ok {
			return reflect.Value{}, errors.Errorf("unknown field `%s` in `%s`", part, v.Type())
		}

		v = v.Field(i)
	}

	if !v.CanSet() {
		return reflect.Value{}, errors.Errorf("field `%s` can not be set", path)
	}

	return v, nil
}

// normalize converts v into one of: nil, int64, float64, string, bool,
// time.Time, []any, or the raw interface value.
func normalize(v reflect.Value) any {
	if !v.IsValid() {
		return nil
	}

	for v.Kind() == reflect.Pointer || v.Kind() == reflect.Interface {
		if v.IsNil() {
			return nil
		}
		v = v.Elem()
	}

	if v.Type() == timeType {
		return v.Interface().(time.Time)
	}

	switch v.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return v.Int()
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return int64(v.Uint())
	case reflect.Float32, reflect.Float64:
		return v.Float()
	case reflect.String:
		return v.String()
	case reflect.Bool:
		return v.Bool()
	case reflect.Slice, reflect.Array:
		items := make([]any, 0, v.Len())
		for i := 0; i < v.Len(); i++ {
			items = append(items, normalize(v.Index(i)))
		}
		return items
	default:
		return v.Interface()
	}
}

func normalizeAny(value any) any {
	return normalize(reflect.ValueOf(value))
}

// compare orders two normalized values. nil sorts before everything.
// ok is false when the values are not comparable.
func compare(a, b any) (result int, ok bool) {
	switch {
	case a == nil && b == nil:
		return 0, true
	case a == nil:
		return -1, true
	case b == nil:
		return 1, true
	}

	switch av := a.(type) {
	case int64:
		switch bv := b.(type) {
		case int64:
			return cmpOrdered(av, bv), true
		case float64:
			return cmpOrdered(float64(av), bv), true
		}
	case float64:
		switch bv := b.(type) {
		case int64:
			return cmpOrdered(av, float64(bv)), true
		case float64:
			return cmpOrdered(av, bv), true
		}
	case string:
		if bv, isStr := b.(string); isStr {
			return strings.Compare(av, bv), true
		}
	case bool:
		if bv, isBool := b.(bool); isBool {
			switch {
			case av == bv:
				return 0, true
			case !av:
				return -1, true
			default:
				return 1, true
			}
		}
	case time.Time:
		if bv, isTime := b.(time.Time); isTime {
			return av.Compare(bv), true
		}
	}

	return 0, false
}

func cmpOrdered[T int64 | float64](a, b T) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

func equal(a, b any) bool {
	if r, ok := compare(a, b); ok {
		return r == 0
	}

	return reflect.DeepEqual(a, b)
}

// matchFilter evaluates f against doc (a struct value).
func matchFilter(doc reflect.Value, f Filter) (bool, error) {
	field := normalize(lookupField(doc, f.Path))
	want := normalizeAny(f.Value)

	switch f.Op {
	case OpEq:
		return equal(field, want), nil
	case OpNe:
		return !equal(field, want), nil
	case OpLt, OpLte, OpGt, OpGte:
		r, ok := compare(field, want)
		if !ok || field == nil {
			return false, nil
		}

		switch f.Op {
		case OpLt:
			return r < 0, nil
		case OpLte:
			return r <= 0, nil
		case OpGt:
			return r > 0, nil
		default:
			return r >= 0, nil
		}
	case OpArrayContains:
		items, ok := field.([]any)
		if !ok {
			return false, nil
		}

		for _, item := range items {
			if equal(item, want) {
				return true, nil
			}
		}

		return false, nil
	case OpIn:
		candidates, ok := want.([]any)
		if !ok {
			return false, errors.Errorf("operator `in` needs a slice value for `%s`", f.Path)
		}

		for _, c := range candidates {
			if equal(field, c) {
				return true, nil
			}
		}

		return false, nil
	default:
		return false, errors.Errorf("unsupported operator `%s`", f.Op)
	}
}

// assignValue sets field to value, converting where Go allows it.
func assignValue(field reflect.Value, value any) error {
	if value == nil {
		field.Set(reflect.Zero(field.Type()))
		return nil
	}

	rv := reflect.ValueOf(value)
	switch {
	case rv.Type().AssignableTo(field.Type()):
		field.Set(rv)
	case field.Kind() == reflect.Pointer && rv.Type().AssignableTo(field.Type().Elem()):
		ptr := reflect.New(field.Type().Elem())
		ptr.Elem().Set(rv)
		field.Set(ptr)
	case field.Kind() == reflect.Pointer && rv.Type().ConvertibleTo(field.Type().Elem()):
		ptr := reflect.New(field.Type().Elem())
		ptr.Elem().Set(rv.Convert(field.Type().Elem()))
		field.Set(ptr)
	case rv.Type().ConvertibleTo(field.Type()) && rv.Kind() != reflect.Slice:
		field.Set(rv.Convert(field.Type()))
	case field.Kind() == reflect.Slice && rv.Kind() == reflect.Slice:
		s := reflect.MakeSlice(field.Type(), 0, rv.Len())
		for i := 0; i < rv.Len(); i++ {
			item := reflect.New(field.Type().Elem()).Elem()
			if err := assignValue(item, rv.Index(i).Interface()); err != nil {
				return err
			}
			s = reflect.Append(s, item)
		}
		field.Set(s)
	default:
		return errors.Errorf("can not assign %T to %s", value, field.Type())
	}

	return nil
}

// applyUpdate mutates doc (an addressable struct value) in place.
func applyUpdate(doc reflect.Value, u Update) error {
	field, err := settableField(doc, u.Path)
	if err != nil {
		return err
	}

	switch u.Kind {
	case UpdateSet:
		return errors.Wrapf(assignValue(field, u.Value), "set `%s`", u.Path)
	case UpdateIncrement:
		n, ok := normalizeAny(u.Value).(int64)
		if !ok {
			return errors.Errorf("increment `%s` needs an integer", u.Path)
		}

		switch field.Kind() {
		case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
			field.SetInt(field.Int() + n)
		case reflect.Float32, reflect.Float64:
			field.SetFloat(field.Float() + float64(n))
		default:
			return errors.Errorf("field `%s` is not numeric", u.Path)
		}
	case UpdateArrayUnion, UpdateArrayRemove:
		if field.Kind() != reflect.Slice {
			return errors.Errorf("field `%s` is not an array", u.Path)
		}

		if u.Kind == UpdateArrayUnion {
			for _, v := range u.Values {
				if containsValue(field, v) {
					continue
				}

				item := reflect.New(field.Type().Elem()).Elem()
				if err := assignValue(item, v); err != nil {
					return errors.Wrapf(err, "union `%s`", u.Path)
				}
				field.Set(reflect.Append(field, item))
			}

			return nil
		}

		kept := reflect.MakeSlice(field.Type(), 0, field.Len())
		for i := 0; i < field.Len(); i++ {
			item := field.Index(i)
			drop := false
			for _, v := range u.Values {
				if equal(normalize(item), normalizeAny(v)) {
					drop = true
					break
				}
			}

			if !drop {
				kept = reflect.Append(kept, item)
			}
		}
		field.Set(kept)
	default:
		return errors.Errorf("unknown update kind %d", u.Kind)
	}

	return nil
}

func containsValue(slice reflect.Value, v any) bool {
	want := normalizeAny(v)
	for i := 0; i < slice.Len(); i++ {
		if equal(normalize(slice.Index(i)), want) {
			return true
		}
	}

	return false
}
