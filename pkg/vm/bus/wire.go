// Copyright The NRI Plugins Authors. All Rights Reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package bus

import (
	"fmt"
	"reflect"
	"sort"
	"strconv"
	"sync"

	"google.golang.org/protobuf/encoding/protowire"
)

// Messages are structs whose fields carry a `pb:"<field number>"` tag and
// are encoded in the protobuf wire format. Booleans and integers are
// varints, strings and byte slices are length-delimited, structs are
// embedded messages, slices are repeated fields with scalars packed, and
// maps are repeated key/value entries. Fields of a type implementing Enum
// are encoded as enums. A nil pointer field is absent, others are absent
// when zero.

// Enum is implemented by field types carried as protobuf enums.
type Enum interface {
	EnumNumber() int32
}

// EnumSetter is implemented by pointers to Enum types.
type EnumSetter interface {
	SetEnumNumber(n int32)
}

var (
	enumType       = reflect.TypeOf((*Enum)(nil)).Elem()
	enumSetterType = reflect.TypeOf((*EnumSetter)(nil)).Elem()
	bytesType      = reflect.TypeOf([]byte(nil))

	fieldCache sync.Map
)

type field struct {
	index int
	num   protowire.Number
	name  string
}

func fieldsOf(t reflect.Type) ([]field, error) {
	if f, ok := fieldCache.Load(t); ok {
		return f.([]field), nil
	}

	var fields []field
	for i := 0; i < t.NumField(); i++ {
		sf := t.Field(i)
		tag, ok := sf.Tag.Lookup("pb")
		if !ok {
			continue
		}
		n, err := strconv.Atoi(tag)
		if err != nil || !protowire.Number(n).IsValid() {
			return nil, fmt.Errorf("%s.%s: invalid field number %q", t, sf.Name, tag)
		}
		fields = append(fields, field{index: i, num: protowire.Number(n), name: sf.Name})
	}

	fieldCache.Store(t, fields)
	return fields, nil
}

func isEnum(t reflect.Type) bool {
	return t.Implements(enumType) && reflect.PointerTo(t).Implements(enumSetterType)
}

func isVarint(t reflect.Type) bool {
	if isEnum(t) {
		return true
	}
	switch t.Kind() {
	case reflect.Bool,
		reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return true
	}
	return false
}

// Marshal encodes a message.
func Marshal(v interface{}) ([]byte, error) {
	rv := reflect.Indirect(reflect.ValueOf(v))
	if rv.Kind() != reflect.Struct {
		return nil, fmt.Errorf("can't encode %T as a message", v)
	}
	return appendMessage(nil, rv)
}

func appendMessage(b []byte, v reflect.Value) ([]byte, error) {
	fields, err := fieldsOf(v.Type())
	if err != nil {
		return nil, err
	}
	for _, f := range fields {
		if b, err = appendField(b, f.num, v.Field(f.index)); err != nil {
			return nil, fmt.Errorf("%s: %w", f.name, err)
		}
	}
	return b, nil
}

func appendField(b []byte, num protowire.Number, v reflect.Value) ([]byte, error) {
	switch {
	case isEnum(v.Type()):
		if varintOf(v) == 0 {
			return b, nil
		}
	case v.Kind() == reflect.Pointer:
		if v.IsNil() {
			return b, nil
		}
		return appendValue(b, num, v.Elem())
	case v.Kind() == reflect.Map:
		return appendMap(b, num, v)
	case v.Kind() == reflect.Slice && v.Type() != bytesType:
		return appendRepeated(b, num, v)
	case v.IsZero():
		return b, nil
	}
	return appendValue(b, num, v)
}

func varintOf(v reflect.Value) uint64 {
	if isEnum(v.Type()) {
		return uint64(int64(v.Interface().(Enum).EnumNumber()))
	}
	switch v.Kind() {
	case reflect.Bool:
		return protowire.EncodeBool(v.Bool())
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return uint64(v.Int())
	}
	return v.Uint()
}

func appendValue(b []byte, num protowire.Number, v reflect.Value) ([]byte, error) {
	if isVarint(v.Type()) {
		b = protowire.AppendTag(b, num, protowire.VarintType)
		return protowire.AppendVarint(b, varintOf(v)), nil
	}

	switch {
	case v.Kind() == reflect.String:
		b = protowire.AppendTag(b, num, protowire.BytesType)
		return protowire.AppendString(b, v.String()), nil
	case v.Type() == bytesType:
		b = protowire.AppendTag(b, num, protowire.BytesType)
		return protowire.AppendBytes(b, v.Bytes()), nil
	case v.Kind() == reflect.Struct:
		m, err := appendMessage(nil, v)
		if err != nil {
			return nil, err
		}
		b = protowire.AppendTag(b, num, protowire.BytesType)
		return protowire.AppendBytes(b, m), nil
	}

	return nil, fmt.Errorf("unsupported type %s", v.Type())
}

func appendRepeated(b []byte, num protowire.Number, v reflect.Value) ([]byte, error) {
	if v.Len() == 0 {
		return b, nil
	}

	if isVarint(v.Type().Elem()) {
		var packed []byte
		for i := 0; i < v.Len(); i++ {
			packed = protowire.AppendVarint(packed, varintOf(v.Index(i)))
		}
		b = protowire.AppendTag(b, num, protowire.BytesType)
		return protowire.AppendBytes(b, packed), nil
	}

	var err error
	for i := 0; i < v.Len(); i++ {
		if b, err = appendValue(b, num, v.Index(i)); err != nil {
			return nil, err
		}
	}
	return b, nil
}

func appendMap(b []byte, num protowire.Number, v reflect.Value) ([]byte, error) {
	keys := v.MapKeys()
	sort.Slice(keys, func(i, j int) bool {
		return fmt.Sprint(keys[i].Interface()) < fmt.Sprint(keys[j].Interface())
	})

	for _, k := range keys {
		entry, err := appendValue(nil, 1, k)
		if err != nil {
			return nil, err
		}
		if entry, err = appendValue(entry, 2, v.MapIndex(k)); err != nil {
			return nil, err
		}
		b = protowire.AppendTag(b, num, protowire.BytesType)
		b = protowire.AppendBytes(b, entry)
	}
	return b, nil
}

// Unmarshal decodes a message into the struct v points to. Fields absent
// from data get their zero value, or the enum value numbered 0.
func Unmarshal(data []byte, v interface{}) error {
	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Pointer || rv.IsNil() || rv.Elem().Kind() != reflect.Struct {
		return fmt.Errorf("can't decode a message into %T", v)
	}
	rv = rv.Elem()
	rv.Set(reflect.Zero(rv.Type()))
	setDefaults(rv)
	return consumeMessage(data, rv)
}

func setDefaults(v reflect.Value) {
	switch {
	case isEnum(v.Type()):
		v.Addr().Interface().(EnumSetter).SetEnumNumber(0)
	case v.Kind() == reflect.Struct:
		fields, err := fieldsOf(v.Type())
		if err != nil {
			return
		}
		for _, f := range fields {
			setDefaults(v.Field(f.index))
		}
	}
}

func consumeMessage(b []byte, v reflect.Value) error {
	fields, err := fieldsOf(v.Type())
	if err != nil {
		return err
	}

	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return protowire.ParseError(n)
		}
		b = b[n:]

		var f *field
		for i := range fields {
			if fields[i].num == num {
				f = &fields[i]
				break
			}
		}

		if f == nil {
			n = protowire.ConsumeFieldValue(num, typ, b)
			if n < 0 {
				return protowire.ParseError(n)
			}
		} else if n, err = consumeField(b, typ, v.Field(f.index)); err != nil {
			return fmt.Errorf("%s: %w", f.name, err)
		}
		b = b[n:]
	}

	return nil
}

func consumeField(b []byte, typ protowire.Type, v reflect.Value) (int, error) {
	switch {
	case v.Kind() == reflect.Pointer:
		if v.IsNil() {
			v.Set(reflect.New(v.Type().Elem()))
			setDefaults(v.Elem())
		}
		return consumeValue(b, typ, v.Elem())
	case v.Kind() == reflect.Map:
		return consumeMapEntry(b, typ, v)
	case v.Kind() == reflect.Slice && v.Type() != bytesType:
		return consumeRepeated(b, typ, v)
	}
	return consumeValue(b, typ, v)
}

func setVarint(v reflect.Value, x uint64) {
	switch {
	case isEnum(v.Type()):
		v.Addr().Interface().(EnumSetter).SetEnumNumber(int32(x))
	case v.Kind() == reflect.Bool:
		v.SetBool(protowire.DecodeBool(x))
	case v.CanInt():
		v.SetInt(int64(x))
	default:
		v.SetUint(x)
	}
}

func wireTypeError(typ protowire.Type) error {
	return fmt.Errorf("unexpected wire type %d", typ)
}

func consumeValue(b []byte, typ protowire.Type, v reflect.Value) (int, error) {
	if isVarint(v.Type()) {
		if typ != protowire.VarintType {
			return 0, wireTypeError(typ)
		}
		x, n := protowire.ConsumeVarint(b)
		if n < 0 {
			return 0, protowire.ParseError(n)
		}
		setVarint(v, x)
		return n, nil
	}

	if typ != protowire.BytesType {
		return 0, wireTypeError(typ)
	}
	data, n := protowire.ConsumeBytes(b)
	if n < 0 {
		return 0, protowire.ParseError(n)
	}

	switch {
	case v.Kind() == reflect.String:
		v.SetString(string(data))
	case v.Type() == bytesType:
		v.SetBytes(append([]byte(nil), data...))
	case v.Kind() == reflect.Struct:
		if err := consumeMessage(data, v); err != nil {
			return 0, err
		}
	default:
		return 0, fmt.Errorf("unsupported type %s", v.Type())
	}
	return n, nil
}

func consumeRepeated(b []byte, typ protowire.Type, v reflect.Value) (int, error) {
	et := v.Type().Elem()

	if typ == protowire.BytesType && isVarint(et) {
		data, n := protowire.ConsumeBytes(b)
		if n < 0 {
			return 0, protowire.ParseError(n)
		}
		for len(data) > 0 {
			x, m := protowire.ConsumeVarint(data)
			if m < 0 {
				return 0, protowire.ParseError(m)
			}
			e := reflect.New(et).Elem()
			setVarint(e, x)
			v.Set(reflect.Append(v, e))
			data = data[m:]
		}
		return n, nil
	}

	e := reflect.New(et).Elem()
	setDefaults(e)
	n, err := consumeValue(b, typ, e)
	if err != nil {
		return 0, err
	}
	v.Set(reflect.Append(v, e))
	return n, nil
}

func consumeMapEntry(b []byte, typ protowire.Type, v reflect.Value) (int, error) {
	if typ != protowire.BytesType {
		return 0, wireTypeError(typ)
	}
	data, n := protowire.ConsumeBytes(b)
	if n < 0 {
		return 0, protowire.ParseError(n)
	}

	if v.IsNil() {
		v.Set(reflect.MakeMap(v.Type()))
	}
	key := reflect.New(v.Type().Key()).Elem()
	val := reflect.New(v.Type().Elem()).Elem()
	setDefaults(key)
	setDefaults(val)

	for len(data) > 0 {
		num, wt, m := protowire.ConsumeTag(data)
		if m < 0 {
			return 0, protowire.ParseError(m)
		}
		data = data[m:]

		var err error
		switch num {
		case 1:
			m, err = consumeValue(data, wt, key)
		case 2:
			m, err = consumeValue(data, wt, val)
		default:
			if m = protowire.ConsumeFieldValue(num, wt, data); m < 0 {
				err = protowire.ParseError(m)
			}
		}
		if err != nil {
			return 0, err
		}
		data = data[m:]
	}

	v.SetMapIndex(key, val)
	return n, nil
}
