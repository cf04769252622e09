package mcu

import (
	"fmt"
	"sort"
	"strings"

	"avrpwm/protocol"
)

// ParamType is the wire type of one command parameter.
type ParamType uint8

const (
	ParamUint   ParamType = iota // %u %hu %c
	ParamInt                     // %i %hi
	ParamString                  // %s
	ParamBytes                   // %.*s
)

// Param is one "name=%x" entry of a message format.
type Param struct {
	Name string
	Type ParamType
}

// MessageFormat is a parsed dictionary signature.
type MessageFormat struct {
	ID     uint16
	Name   string
	Params []Param
}

// ParseFormat splits a signature such as "set_compare timer=%c value=%hu".
func ParseFormat(id uint16, signature string) (*MessageFormat, error) {
	fields := strings.Fields(signature)
	if len(fields) == 0 {
		return nil, fmt.Errorf("empty signature")
	}
	mf := &MessageFormat{ID: id, Name: fields[0]}
	for _, f := range fields[1:] {
		name, spec, ok := strings.Cut(f, "=")
		if !ok {
			return nil, fmt.Errorf("%s: malformed parameter %q", mf.Name, f)
		}
		p := Param{Name: name}
		switch spec {
		case "%u", "%hu", "%c":
			p.Type = ParamUint
		case "%i", "%hi":
			p.Type = ParamInt
		case "%s":
			p.Type = ParamString
		case "%.*s", "%*s":
			p.Type = ParamBytes
		default:
			return nil, fmt.Errorf("%s: unsupported type %q", mf.Name, spec)
		}
		mf.Params = append(mf.Params, p)
	}
	return mf, nil
}

// Encode writes the id and args.
func (mf *MessageFormat) Encode(out protocol.OutputBuffer, args []any) error {
	protocol.EncodeVLQUint(out, uint32(mf.ID))
	return mf.EncodeArgs(out, args)
}

// EncodeArgs writes args without the id. Numeric parameters take uint32 or
// int32 values; string and byte parameters take string or []byte.
func (mf *MessageFormat) EncodeArgs(out protocol.OutputBuffer, args []any) error {
	if len(args) != len(mf.Params) {
		return fmt.Errorf("%s: got %d arguments, want %d", mf.Name, len(args), len(mf.Params))
	}
	for i, p := range mf.Params {
		switch v := args[i].(type) {
		case uint32:
			protocol.EncodeVLQUint(out, v)
		case int32:
			protocol.EncodeVLQInt(out, v)
		case string:
			protocol.EncodeVLQString(out, v)
		case []byte:
			protocol.EncodeVLQBytes(out, v)
		default:
			return fmt.Errorf("%s: parameter %s has unsupported type %T", mf.Name, p.Name, v)
		}
	}
	return nil
}

// Decode reads the parameters following the id.
func (mf *MessageFormat) Decode(data []byte) (*Message, error) {
	msg := &Message{Name: mf.Name, Format: mf, Values: make(map[string]any, len(mf.Params))}
	for _, p := range mf.Params {
		var (
			v   any
			err error
		)
		switch p.Type {
		case ParamUint:
			v, err = protocol.DecodeVLQUint(&data)
		case ParamInt:
			v, err = protocol.DecodeVLQInt(&data)
		case ParamString:
			v, err = protocol.DecodeVLQString(&data)
		case ParamBytes:
			v, err = protocol.DecodeVLQBytes(&data)
		}
		if err != nil {
			return nil, fmt.Errorf("%s.%s: %w", mf.Name, p.Name, err)
		}
		msg.Values[p.Name] = v
	}
	return msg, nil
}

// Message is a decoded response.
type Message struct {
	Name   string
	Format *MessageFormat
	Values map[string]any
}

// Uint returns a numeric parameter.
func (m *Message) Uint(name string) uint32 {
	switch v := m.Values[name].(type) {
	case uint32:
		return v
	case int32:
		return uint32(v)
	}
	return 0
}

// Str returns a string or byte parameter.
func (m *Message) Str(name string) string {
	switch v := m.Values[name].(type) {
	case string:
		return v
	case []byte:
		return string(v)
	}
	return ""
}

// enumFor names the dictionary enumeration a parameter uses. state is
// ambiguous and resolved by the message name.
func enumFor(msg, param string) string {
	switch param {
	case "timer", "clock", "channel", "line", "edge", "direction":
		return param
	case "mode":
		return "timer_mode"
	case "output":
		return "output_mode"
	case "state":
		switch msg {
		case "timer_state":
			return "timer_state"
		case "irq_state":
			return "line_state"
		}
	}
	return ""
}

// names inverts an enumeration for display.
func names(enum map[string]int) map[uint32]string {
	out := make(map[uint32]string, len(enum))
	for k, v := range enum {
		out[uint32(v)] = k
	}
	return out
}

// sortedNames lists an enumeration in wire order.
func sortedNames(enum map[string]int) []string {
	out := make([]string, 0, len(enum))
	for k := range enum {
		out = append(out, k)
	}
	sort.Slice(out, func(i, j int) bool { return enum[out[i]] < enum[out[j]] })
	return out
}
