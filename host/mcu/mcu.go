// Package mcu is the host side of the timer firmware link: it downloads the
// data dictionary and sends typed commands by name.
package mcu

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"
	"time"

	"avrpwm/host/serial"
	"avrpwm/protocol"
)

// DefaultTimeout bounds one request/response exchange.
const DefaultTimeout = time.Second

var (
	ErrNotConnected  = errors.New("not connected to MCU")
	ErrNoDictionary  = errors.New("dictionary not loaded")
	ErrUnknownName   = errors.New("unknown command")
	ErrUnknownValue  = errors.New("unknown enumeration value")
	ErrCommandFailed = errors.New("command failed")
)

// CommandError is a command_error response from the firmware.
type CommandError struct {
	Command string
	Code    string
}

func (e *CommandError) Error() string {
	return e.Command + ": " + e.Code
}

func (e *CommandError) Is(target error) bool { return target == ErrCommandFailed }

// MCU represents a connection to the timer firmware
type MCU struct {
	transport *protocol.HostTransport
	port      serial.Port

	dictionary     *Dictionary
	dictionaryData []byte
	formats        map[string]*MessageFormat // commands and responses by name
	byID           map[uint16]*MessageFormat // responses by id

	// Log receives progress and unsolicited responses; defaults to discard.
	Log io.Writer

	connected bool
}

// Dictionary represents the parsed MCU dictionary
type Dictionary struct {
	Version       string                    `json:"version"`
	BuildVersions string                    `json:"build_versions"`
	Config        map[string]string         `json:"config"`
	Commands      map[string]int            `json:"commands"`
	Responses     map[string]int            `json:"responses"`
	Enumerations  map[string]map[string]int `json:"enumerations,omitempty"`
}

// NewMCU creates a new MCU instance (not yet connected)
func NewMCU() *MCU {
	return &MCU{Log: io.Discard}
}

// Connect connects to an MCU via serial port
func (m *MCU) Connect(device string) error {
	return m.ConnectWithConfig(serial.DefaultConfig(device))
}

// ConnectWithConfig connects to an MCU with a custom serial config
func (m *MCU) ConnectWithConfig(cfg *serial.Config) error {
	port, err := serial.Open(cfg)
	if err != nil {
		return fmt.Errorf("failed to open serial port: %w", err)
	}
	if err := port.Flush(); err != nil {
		port.Close()
		return fmt.Errorf("failed to flush serial port: %w", err)
	}
	m.ConnectPort(port)

	// the board resets when the port opens
	time.Sleep(100 * time.Millisecond)
	return nil
}

// ConnectPort uses an already open port, such as a simulator pipe.
func (m *MCU) ConnectPort(port serial.Port) {
	m.port = port
	m.transport = protocol.NewHostTransport(port)
	m.connected = true
}

// Close closes the connection to the MCU
func (m *MCU) Close() error {
	m.connected = false
	if m.transport != nil {
		return m.transport.Close()
	}
	return nil
}

// IsConnected returns whether the MCU is connected
func (m *MCU) IsConnected() bool {
	return m.connected
}

// RetrieveDictionary downloads the dictionary in identify chunks and
// parses it.
func (m *MCU) RetrieveDictionary() error {
	if !m.connected {
		return ErrNotConnected
	}

	var dictBuffer bytes.Buffer
	offset := uint32(0)
	const chunkSize = 40
	const maxIterations = 1000

	for i := 0; i < maxIterations; i++ {
		chunk, err := m.sendIdentify(offset, chunkSize)
		if err != nil {
			return fmt.Errorf("failed to retrieve dictionary chunk at offset %d: %w", offset, err)
		}
		if len(chunk) == 0 {
			break
		}
		dictBuffer.Write(chunk)
		offset += uint32(len(chunk))
		if len(chunk) < chunkSize {
			break
		}
	}

	m.dictionaryData = dictBuffer.Bytes()
	fmt.Fprintf(m.Log, "Dictionary retrieved: %d bytes\n", len(m.dictionaryData))

	if err := m.parseDictionary(); err != nil {
		return fmt.Errorf("failed to parse dictionary: %w", err)
	}
	return nil
}

// sendIdentify sends identify (id 1) and waits for identify_response (id 0)
func (m *MCU) sendIdentify(offset uint32, count uint8) ([]byte, error) {
	err := m.transport.SendCommand(1, func(output protocol.OutputBuffer) {
		protocol.EncodeVLQUint(output, offset)
		protocol.EncodeVLQUint(output, uint32(count))
	})
	if err != nil {
		return nil, fmt.Errorf("failed to send identify command: %w", err)
	}

	for {
		resp, err := m.transport.ReceiveResponse(DefaultTimeout)
		if err != nil {
			return nil, fmt.Errorf("failed to receive identify response: %w", err)
		}
		payload := resp.Payload
		cmdID, err := protocol.DecodeVLQUint(&payload)
		if err != nil {
			return nil, fmt.Errorf("failed to decode response command ID: %w", err)
		}
		if cmdID != 0 {
			continue // left over from before the dictionary was known
		}
		respOffset, err := protocol.DecodeVLQUint(&payload)
		if err != nil {
			return nil, fmt.Errorf("failed to decode response offset: %w", err)
		}
		if respOffset != offset {
			return nil, fmt.Errorf("offset mismatch: expected %d, got %d", offset, respOffset)
		}
		data, err := protocol.DecodeVLQBytes(&payload)
		if err != nil {
			return nil, fmt.Errorf("failed to decode response data: %w", err)
		}
		return data, nil
	}
}

// parseDictionary parses the JSON and every message signature in it
func (m *MCU) parseDictionary() error {
	dict := &Dictionary{}
	if err := json.Unmarshal(m.dictionaryData, dict); err != nil {
		return fmt.Errorf("failed to unmarshal JSON: %w", err)
	}

	formats := make(map[string]*MessageFormat)
	byID := make(map[uint16]*MessageFormat)
	for _, group := range []map[string]int{dict.Commands, dict.Responses} {
		for sig, id := range group {
			mf, err := ParseFormat(uint16(id), sig)
			if err != nil {
				return err
			}
			formats[mf.Name] = mf
		}
	}
	for sig, id := range dict.Responses {
		name, _, _ := strings.Cut(sig, " ")
		byID[uint16(id)] = formats[name]
	}

	m.dictionary = dict
	m.formats = formats
	m.byID = byID
	return nil
}

// GetDictionary returns the parsed dictionary
func (m *MCU) GetDictionary() *Dictionary {
	return m.dictionary
}

// GetDictionaryRaw returns the raw dictionary data
func (m *MCU) GetDictionaryRaw() []byte {
	return m.dictionaryData
}

// Format returns the parsed signature of a command or response.
func (m *MCU) Format(name string) (*MessageFormat, bool) {
	mf, ok := m.formats[name]
	return mf, ok
}

// Send sends a command by name without waiting for a response.
func (m *MCU) Send(name string, args ...any) error {
	if !m.connected {
		return ErrNotConnected
	}
	if m.dictionary == nil {
		return ErrNoDictionary
	}
	mf, ok := m.formats[name]
	if !ok || m.byID[mf.ID] == mf {
		return fmt.Errorf("%w: %s", ErrUnknownName, name)
	}
	// encode once up front so argument errors are reported before sending
	if err := mf.EncodeArgs(protocol.NewScratchOutput(), args); err != nil {
		return err
	}
	return m.transport.SendCommand(mf.ID, func(out protocol.OutputBuffer) {
		_ = mf.EncodeArgs(out, args)
	})
}

// Query sends a command and waits for the named response. A command_error
// reply is returned as a *CommandError; other responses are logged and
// skipped.
func (m *MCU) Query(name, response string, args ...any) (*Message, error) {
	if err := m.Send(name, args...); err != nil {
		return nil, err
	}
	return m.Await(name, response, DefaultTimeout)
}

// Await waits for the named response to command name.
func (m *MCU) Await(name, response string, timeout time.Duration) (*Message, error) {
	deadline := time.Now().Add(timeout)
	for {
		left := time.Until(deadline)
		if left <= 0 {
			return nil, fmt.Errorf("%s: %w waiting for %s", name, protocol.ErrTimeout, response)
		}
		f, err := m.transport.ReceiveResponse(left)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", name, err)
		}
		msg, err := m.Decode(f.Payload)
		if err != nil {
			return nil, err
		}
		switch msg.Name {
		case "command_error":
			return nil, &CommandError{Command: m.commandName(uint16(msg.Uint("cmd"))), Code: msg.Str("code")}
		case response:
			return msg, nil
		}
		fmt.Fprintf(m.Log, "unsolicited: %s\n", m.Describe(msg))
	}
}

// Exec sends a command that normally has no reply, then waits briefly for
// a command_error.
func (m *MCU) Exec(name string, args ...any) error {
	if err := m.Send(name, args...); err != nil {
		return err
	}
	_, err := m.Await(name, "command_error", 50*time.Millisecond)
	if errors.Is(err, protocol.ErrTimeout) {
		return nil
	}
	return err
}

// Drain returns every response already queued.
func (m *MCU) Drain() []*Message {
	var out []*Message
	for {
		f, err := m.transport.ReceiveResponse(10 * time.Millisecond)
		if err != nil {
			return out
		}
		if msg, err := m.Decode(f.Payload); err == nil {
			out = append(out, msg)
		}
	}
}

func (m *MCU) commandName(id uint16) string {
	for sig, cid := range m.dictionary.Commands {
		if uint16(cid) == id {
			name, _, _ := strings.Cut(sig, " ")
			return name
		}
	}
	return "cmd" + strconv.Itoa(int(id))
}

// Decode decodes a response payload.
func (m *MCU) Decode(payload []byte) (*Message, error) {
	if m.byID == nil {
		return nil, ErrNoDictionary
	}
	id, err := protocol.DecodeVLQUint(&payload)
	if err != nil {
		return nil, fmt.Errorf("failed to decode command ID: %w", err)
	}
	mf, ok := m.byID[uint16(id)]
	if !ok {
		return nil, fmt.Errorf("unknown response id %d", id)
	}
	return mf.Decode(payload)
}

// EnumValue resolves an enumeration name (e.g. "fast_pwm") for a parameter.
// Plain numbers are accepted too.
func (m *MCU) EnumValue(command, param, value string) (uint32, error) {
	if n, err := strconv.ParseUint(value, 0, 32); err == nil {
		return uint32(n), nil
	}
	enum := enumFor(command, param)
	if enum == "" || m.dictionary == nil {
		return 0, fmt.Errorf("%s: %w %q", param, ErrUnknownValue, value)
	}
	if v, ok := m.dictionary.Enumerations[enum][value]; ok {
		return uint32(v), nil
	}
	return 0, fmt.Errorf("%s: %w %q (one of %s)", param, ErrUnknownValue, value,
		strings.Join(sortedNames(m.dictionary.Enumerations[enum]), ", "))
}

// ParseArgs turns "name=value" or positional words into arguments for
// command. Enumerated parameters accept their names.
func (m *MCU) ParseArgs(command string, words []string) ([]any, error) {
	mf, ok := m.formats[command]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownName, command)
	}
	if len(words) != len(mf.Params) {
		return nil, fmt.Errorf("%s takes %d arguments: %s", command, len(mf.Params), m.Usage(command))
	}
	args := make([]any, len(mf.Params))
	for i, p := range mf.Params {
		w := words[i]
		if k, v, ok := strings.Cut(w, "="); ok {
			if k != p.Name {
				return nil, fmt.Errorf("argument %d is %s, not %s", i+1, p.Name, k)
			}
			w = v
		}
		switch p.Type {
		case ParamUint:
			v, err := m.EnumValue(command, p.Name, w)
			if err != nil {
				return nil, err
			}
			args[i] = v
		case ParamInt:
			v, err := strconv.ParseInt(w, 0, 32)
			if err != nil {
				return nil, fmt.Errorf("%s: %w", p.Name, err)
			}
			args[i] = int32(v)
		case ParamString:
			args[i] = w
		case ParamBytes:
			args[i] = []byte(w)
		}
	}
	return args, nil
}

// Usage renders a command signature.
func (m *MCU) Usage(command string) string {
	mf, ok := m.formats[command]
	if !ok {
		return command
	}
	parts := []string{command}
	for _, p := range mf.Params {
		parts = append(parts, p.Name+"=")
	}
	return strings.Join(parts, " ")
}

// Describe renders a message with enumeration names resolved.
func (m *MCU) Describe(msg *Message) string {
	var b strings.Builder
	b.WriteString(msg.Name)
	for _, p := range msg.Format.Params {
		b.WriteByte(' ')
		b.WriteString(p.Name)
		b.WriteByte('=')
		val := msg.Values[p.Name]
		if enum := enumFor(msg.Name, p.Name); enum != "" && m.dictionary != nil {
			if n, ok := names(m.dictionary.Enumerations[enum])[msg.Uint(p.Name)]; ok {
				b.WriteString(n)
				continue
			}
		}
		switch v := val.(type) {
		case []byte:
			b.WriteString(strconv.Quote(string(v)))
		case string:
			b.WriteString(v)
		default:
			fmt.Fprint(&b, v)
		}
	}
	return b.String()
}

// PrintDictionary prints a summary of the dictionary
func (m *MCU) PrintDictionary(w io.Writer) {
	if m.dictionary == nil {
		fmt.Fprintln(w, "No dictionary loaded")
		return
	}

	fmt.Fprintln(w, "=== MCU Dictionary ===")
	fmt.Fprintf(w, "Version: %s\n", m.dictionary.Version)
	fmt.Fprintf(w, "Build: %s\n", m.dictionary.BuildVersions)

	fmt.Fprintln(w, "\nConfig:")
	for _, k := range sortedKeys(m.dictionary.Config) {
		fmt.Fprintf(w, "  %s = %s\n", k, m.dictionary.Config[k])
	}

	fmt.Fprintf(w, "\nCommands (%d):\n", len(m.dictionary.Commands))
	for _, sig := range sortedKeys(m.dictionary.Commands) {
		fmt.Fprintf(w, "  [%d] %s\n", m.dictionary.Commands[sig], sig)
	}

	fmt.Fprintf(w, "\nResponses (%d):\n", len(m.dictionary.Responses))
	for _, sig := range sortedKeys(m.dictionary.Responses) {
		fmt.Fprintf(w, "  [%d] %s\n", m.dictionary.Responses[sig], sig)
	}

	if len(m.dictionary.Enumerations) > 0 {
		fmt.Fprintf(w, "\nEnumerations (%d):\n", len(m.dictionary.Enumerations))
		for _, name := range sortedKeys(m.dictionary.Enumerations) {
			fmt.Fprintf(w, "  %s: %s\n", name, strings.Join(sortedNames(m.dictionary.Enumerations[name]), " "))
		}
	}
}

func sortedKeys[V any](m map[string]V) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
