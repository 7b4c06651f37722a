package fakedb

import (
	"fmt"
	"reflect"
	"strconv"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// toM round-trips v through bson so filters, updates and documents share one value
// representation (bson.M documents, primitive.A arrays, primitive.DateTime times).
func toM(v interface{}) (bson.M, error) {
	if v == nil {
		return bson.M{}, nil
	}
	b, err := bson.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("fakedb: marshal %T: %w", v, err)
	}
	m := bson.M{}
	if err := bson.Unmarshal(b, &m); err != nil {
		return nil, err
	}
	return m, nil
}

func toD(v interface{}) (bson.D, error) {
	if d, ok := v.(bson.D); ok {
		return d, nil
	}
	b, err := bson.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("fakedb: marshal %T: %w", v, err)
	}
	d := bson.D{}
	if err := bson.Unmarshal(b, &d); err != nil {
		return nil, err
	}
	return d, nil
}

func clone(doc bson.M) bson.M {
	c, err := toM(doc)
	if err != nil {
		panic(err)
	}
	return c
}

func asDoc(v interface{}) (bson.M, bool) {
	switch d := v.(type) {
	case bson.M:
		return d, true
	case map[string]interface{}:
		return bson.M(d), true
	case bson.D:
		m := bson.M{}
		for _, e := range d {
			m[e.Key] = e.Value
		}
		return m, true
	}
	return nil, false
}

func asArray(v interface{}) (primitive.A, bool) {
	switch a := v.(type) {
	case primitive.A:
		return a, true
	case []interface{}:
		return primitive.A(a), true
	}
	return nil, false
}

// operators returns v as an operator document ({"$ne": ...}) when every key is an operator
func operators(v interface{}) (bson.M, bool) {
	m, ok := asDoc(v)
	if !ok || len(m) == 0 {
		return nil, false
	}
	for k := range m {
		if !strings.HasPrefix(k, "$") {
			return nil, false
		}
	}
	return m, true
}

func matches(doc bson.M, filter bson.M) bool {
	for key, cond := range filter {
		switch key {
		case "$or":
			clauses, _ := asArray(cond)
			matched := false
			for _, c := range clauses {
				if sub, ok := asDoc(c); ok && matches(doc, sub) {
					matched = true
					break
				}
			}
			if !matched {
				return false
			}
		case "$and":
			clauses, _ := asArray(cond)
			for _, c := range clauses {
				if sub, ok := asDoc(c); !ok || !matches(doc, sub) {
					return false
				}
			}
		default:
			if !matchField(doc, key, cond) {
				return false
			}
		}
	}
	return true
}

func matchField(doc bson.M, path string, cond interface{}) bool {
	val, exists := lookup(doc, path)
	ops, isOps := operators(cond)
	if !isOps {
		return equalOrContains(val, exists, cond)
	}
	for op, arg := range ops {
		switch op {
		case "$eq":
			if !equalOrContains(val, exists, arg) {
				return false
			}
		case "$ne":
			if equalOrContains(val, exists, arg) {
				return false
			}
		case "$in", "$nin":
			list, _ := asArray(arg)
			found := false
			for _, want := range list {
				if equalOrContains(val, exists, want) {
					found = true
					break
				}
			}
			if found != (op == "$in") {
				return false
			}
		case "$exists":
			if truthy(arg) != exists {
				return false
			}
		case "$gt", "$gte", "$lt", "$lte":
			if !exists {
				return false
			}
			cmp, ok := compareValues(val, arg)
			if !ok {
				return false
			}
			switch op {
			case "$gt":
				if cmp <= 0 {
					return false
				}
			case "$gte":
				if cmp < 0 {
					return false
				}
			case "$lt":
				if cmp >= 0 {
					return false
				}
			case "$lte":
				if cmp > 0 {
					return false
				}
			}
		default:
			panic(fmt.Sprintf("fakedb: unsupported query operator %s", op))
		}
	}
	return true
}

// lookup resolves a dotted path. Numeric segments index into arrays.
func lookup(doc bson.M, path string) (interface{}, bool) {
	var cur interface{} = doc
	for _, part := range strings.Split(path, ".") {
		if m, ok := asDoc(cur); ok {
			v, ok := m[part]
			if !ok {
				return nil, false
			}
			cur = v
			continue
		}
		if arr, ok := asArray(cur); ok {
			idx, err := strconv.Atoi(part)
			if err != nil || idx < 0 || idx >= len(arr) {
				return nil, false
			}
			cur = arr[idx]
			continue
		}
		return nil, false
	}
	return cur, true
}

func equalOrContains(val interface{}, exists bool, want interface{}) bool {
	if !exists {
		return want == nil
	}
	if arr, ok := asArray(val); ok {
		if _, wantArr := asArray(want); wantArr {
			return equalValues(val, want)
		}
		for _, item := range arr {
			if equalValues(item, want) {
				return true
			}
		}
		return false
	}
	return equalValues(val, want)
}

func equalValues(a, b interface{}) bool {
	if af, ok := toFloat(a); ok {
		bf, ok := toFloat(b)
		return ok && af == bf
	}
	if at, ok := toTime(a); ok {
		bt, ok := toTime(b)
		return ok && at.Equal(bt)
	}
	return reflect.DeepEqual(a, b)
}

func compareValues(a, b interface{}) (int, bool) {
	if af, ok := toFloat(a); ok {
		bf, ok := toFloat(b)
		if !ok {
			return 0, false
		}
		switch {
		case af < bf:
			return -1, true
		case af > bf:
			return 1, true
		}
		return 0, true
	}
	if at, ok := toTime(a); ok {
		bt, ok := toTime(b)
		if !ok {
			return 0, false
		}
		switch {
		case at.Before(bt):
			return -1, true
		case at.After(bt):
			return 1, true
		}
		return 0, true
	}
	as, aok := a.(string)
	bs, bok := b.(string)
	if aok && bok {
		return strings.Compare(as, bs), true
	}
	ab, aok := a.(bool)
	bb, bok := b.(bool)
	if aok && bok {
		switch {
		case ab == bb:
			return 0, true
		case bb:
			return -1, true
		}
		return 1, true
	}
	return 0, false
}

func toFloat(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case float64:
		return n, true
	case float32:
		return float64(n), true
	}
	return 0, false
}

func toTime(v interface{}) (time.Time, bool) {
	switch t := v.(type) {
	case primitive.DateTime:
		return t.Time(), true
	case time.Time:
		return t, true
	}
	return time.Time{}, false
}

func truthy(v interface{}) bool {
	if b, ok := v.(bool); ok {
		return b
	}
	if f, ok := toFloat(v); ok {
		return f != 0
	}
	return v != nil
}

// seedFromFilter builds the base document of an upsert from the equality clauses of filter
func seedFromFilter(filter bson.M) bson.M {
	doc := bson.M{}
	for k, v := range filter {
		if strings.HasPrefix(k, "$") || strings.Contains(k, ".") {
			continue
		}
		if _, isOps := operators(v); isOps {
			continue
		}
		doc[k] = v
	}
	return doc
}

func applyUpdate(doc bson.M, update bson.M, inserting bool) error {
	for op, args := range update {
		fields, ok := asDoc(args)
		if !ok {
			return fmt.Errorf("fakedb: %s expects a document", op)
		}
		for path, v := range fields {
			var err error
			switch op {
			case "$set":
				err = setPath(doc, path, v)
			case "$setOnInsert":
				if inserting {
					err = setPath(doc, path, v)
				}
			case "$unset":
				unsetPath(doc, path)
			case "$inc":
				err = inc(doc, path, v)
			case "$addToSet":
				err = addToSet(doc, path, v)
			case "$pull":
				err = pull(doc, path, v)
			default:
				return fmt.Errorf("fakedb: unsupported update operator %s", op)
			}
			if err != nil {
				return err
			}
		}
	}
	return nil
}

func setPath(doc bson.M, path string, v interface{}) error {
	parts := strings.Split(path, ".")
	cur := doc
	for _, part := range parts[:len(parts)-1] {
		next, ok := asDoc(cur[part])
		if !ok {
			if cur[part] != nil {
				return fmt.Errorf("fakedb: cannot create field %q in non-document", part)
			}
			next = bson.M{}
		}
		cur[part] = next
		cur = next
	}
	cur[parts[len(parts)-1]] = v
	return nil
}

func unsetPath(doc bson.M, path string) {
	parts := strings.Split(path, ".")
	cur := doc
	for _, part := range parts[:len(parts)-1] {
		next, ok := asDoc(cur[part])
		if !ok {
			return
		}
		cur = next
	}
	delete(cur, parts[len(parts)-1])
}

func inc(doc bson.M, path string, by interface{}) error {
	cur, exists := lookup(doc, path)
	if !exists || cur == nil {
		return setPath(doc, path, by)
	}
	a, ok := toFloat(cur)
	b, ok2 := toFloat(by)
	if !ok || !ok2 {
		return fmt.Errorf("fakedb: cannot apply $inc to non-numeric field %q", path)
	}
	switch cur.(type) {
	case float64, float32:
		return setPath(doc, path, a+b)
	case int32:
		if _, small := by.(int32); small {
			return setPath(doc, path, int32(a+b))
		}
	}
	return setPath(doc, path, int64(a+b))
}

func arrayAt(doc bson.M, path, op string) (primitive.A, error) {
	cur, exists := lookup(doc, path)
	if !exists {
		return primitive.A{}, nil
	}
	arr, ok := asArray(cur)
	if !ok {
		return nil, fmt.Errorf("fakedb: cannot apply %s to non-array field %q", op, path)
	}
	return arr, nil
}

func addToSet(doc bson.M, path string, v interface{}) error {
	arr, err := arrayAt(doc, path, "$addToSet")
	if err != nil {
		return err
	}
	items := primitive.A{v}
	if ops, ok := operators(v); ok {
		items, _ = asArray(ops["$each"])
	}
	out := append(primitive.A{}, arr...)
	for _, item := range items {
		present := false
		for _, existing := range out {
			if equalValues(existing, item) {
				present = true
				break
			}
		}
		if !present {
			out = append(out, item)
		}
	}
	return setPath(doc, path, out)
}

func pull(doc bson.M, path string, v interface{}) error {
	cur, exists := lookup(doc, path)
	if !exists || cur == nil {
		return nil
	}
	arr, ok := asArray(cur)
	if !ok {
		return fmt.Errorf("fakedb: cannot apply $pull to non-array field %q", path)
	}
	remove := primitive.A{v}
	if ops, ok := operators(v); ok {
		remove, _ = asArray(ops["$in"])
	}
	out := primitive.A{}
	for _, item := range arr {
		drop := false
		for _, r := range remove {
			if equalValues(item, r) {
				drop = true
				break
			}
		}
		if !drop {
			out = append(out, item)
		}
	}
	return setPath(doc, path, out)
}
