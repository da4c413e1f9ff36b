// Package tlv maps Go structures to BER-TLV (Basic Encoding Rules -
// Tag-Length-Value) records using struct tags.
//
// A field tagged `tlv:"81"` is stored as primitive tag 81 inside the
// record's constructed tag. Supported field kinds are byte slices (stored
// verbatim, omitted when nil), strings (raw bytes) and fixed-width integers
// (big-endian, two's complement for signed kinds).
package tlv

import (
	"encoding/binary"
	"fmt"
	"reflect"
	"strings"

	"github.com/moov-io/bertlv"
)

// Marshal encodes the tagged fields of a struct into a constructed TLV.
func Marshal(tag string, v interface{}) (bertlv.TLV, error) {
	val := reflect.ValueOf(v)
	if val.Kind() == reflect.Ptr {
		if val.IsNil() {
			return bertlv.TLV{}, fmt.Errorf("cannot marshal nil pointer")
		}
		val = val.Elem()
	}
	if val.Kind() != reflect.Struct {
		return bertlv.TLV{}, fmt.Errorf("cannot marshal %s: struct expected", val.Kind())
	}

	typ := val.Type()
	var children []bertlv.TLV

	for i := 0; i < val.NumField(); i++ {
		fieldTag := fieldTag(typ.Field(i))
		if fieldTag == "" {
			continue
		}

		value, skip, err := encodeField(val.Field(i))
		if err != nil {
			return bertlv.TLV{}, fmt.Errorf("field %s: %w", typ.Field(i).Name, err)
		}
		if skip {
			continue
		}
		children = append(children, bertlv.NewTag(fieldTag, value))
	}

	return bertlv.NewComposite(tag, children...), nil
}

// Unmarshal parses raw BER-TLV data and maps it into a target Go struct.
func Unmarshal(data []byte, target interface{}) error {
	packets, err := bertlv.Decode(data)
	if err != nil {
		return fmt.Errorf("bertlv decode failed: %w", err)
	}
	return UnmarshalFromPackets(packets, target)
}

// UnmarshalFromPackets maps pre-decoded packets to a target struct. Packets
// without a matching field are ignored; when a tag repeats, the last
// occurrence wins.
func UnmarshalFromPackets(packets []bertlv.TLV, target interface{}) error {
	v := reflect.ValueOf(target)
	if v.Kind() != reflect.Ptr || v.IsNil() {
		return fmt.Errorf("target must be a non-nil pointer")
	}
	v = v.Elem()
	if v.Kind() != reflect.Struct {
		return fmt.Errorf("target must point to a struct")
	}
	t := v.Type()

	for i := 0; i < v.NumField(); i++ {
		tagHex := fieldTag(t.Field(i))
		if tagHex == "" {
			continue
		}

		for _, packet := range packets {
			if strings.ToUpper(packet.Tag) != tagHex {
				continue
			}
			if err := decodeField(packet.Value, v.Field(i)); err != nil {
				return fmt.Errorf("tag %s: %w", tagHex, err)
			}
		}
	}
	return nil
}

// Split decodes data and returns its top-level records carrying tag.
// Records with any other tag are an error.
func Split(data []byte, tag string) ([]bertlv.TLV, error) {
	packets, err := bertlv.Decode(data)
	if err != nil {
		return nil, fmt.Errorf("bertlv decode failed: %w", err)
	}

	want := strings.ToUpper(tag)
	for _, p := range packets {
		if strings.ToUpper(p.Tag) != want {
			return nil, fmt.Errorf("unexpected tag %s (want %s)", p.Tag, want)
		}
	}
	return packets, nil
}

func fieldTag(f reflect.StructField) string {
	tag := f.Tag.Get("tlv")
	if tag == "" || !f.IsExported() {
		return ""
	}
	return strings.ToUpper(strings.Split(tag, ",")[0])
}

func encodeField(field reflect.Value) ([]byte, bool, error) {
	switch {
	case isByteSlice(field):
		if field.IsNil() {
			return nil, true, nil
		}
		return append([]byte(nil), field.Bytes()...), false, nil
	case field.Kind() == reflect.String:
		return []byte(field.String()), false, nil
	}

	width, ok := intWidth(field.Kind())
	if !ok {
		return nil, false, fmt.Errorf("unsupported kind %s", field.Kind())
	}

	var u uint64
	if isSigned(field.Kind()) {
		u = uint64(field.Int())
	} else {
		u = field.Uint()
	}
	buf := make([]byte, 8)
	binary.BigEndian.PutUint64(buf, u)
	return buf[8-width:], false, nil
}

func decodeField(value []byte, field reflect.Value) error {
	switch {
	case isByteSlice(field):
		field.SetBytes(append([]byte{}, value...))
		return nil
	case field.Kind() == reflect.String:
		field.SetString(string(value))
		return nil
	}

	width, ok := intWidth(field.Kind())
	if !ok {
		return fmt.Errorf("unsupported kind %s", field.Kind())
	}
	if len(value) != width {
		return fmt.Errorf("integer length %d, want %d", len(value), width)
	}

	buf := make([]byte, 8)
	copy(buf[8-width:], value)
	u := binary.BigEndian.Uint64(buf)

	if isSigned(field.Kind()) {
		shift := uint(64 - 8*width)
		field.SetInt(int64(u<<shift) >> shift)
	} else {
		field.SetUint(u)
	}
	return nil
}

func intWidth(k reflect.Kind) (int, bool) {
	switch k {
	case reflect.Uint8, reflect.Int8:
		return 1, true
	case reflect.Uint16, reflect.Int16:
		return 2, true
	case reflect.Uint32, reflect.Int32:
		return 4, true
	case reflect.Uint64, reflect.Int64:
		return 8, true
	}
	return 0, false
}

func isSigned(k reflect.Kind) bool {
	switch k {
	case reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return true
	}
	return false
}

func isByteSlice(v reflect.Value) bool {
	return v.Kind() == reflect.Slice && v.Type().Elem().Kind() == reflect.Uint8
}
