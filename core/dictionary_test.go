package core

import (
	"encoding/json"
	"strings"
	"testing"
)

func TestDictionary(t *testing.T) {
	reg := NewCommandRegistry()
	dict := NewDictionary(reg, "test-1")

	dict.AddConstant("TEST_CONST", uint32(42))
	dict.AddConstant("TEST_STR", "hello")
	dict.AddEnumeration("test_pins", []string{"PA0", "", "PB0"})

	reg.RegisterResponse("test_resp", "v=%u")
	reg.Register("test_cmd", "arg=%u", func(data *[]byte) error { return nil })
	reg.Register("ping", "", func(data *[]byte) error { return nil })

	var parsed struct {
		Version      string                    `json:"version"`
		Config       map[string]string         `json:"config"`
		Commands     map[string]int            `json:"commands"`
		Responses    map[string]int            `json:"responses"`
		Enumerations map[string]map[string]int `json:"enumerations"`
	}
	if err := json.Unmarshal(dict.Generate(), &parsed); err != nil {
		t.Fatalf("dictionary is not valid JSON: %v\n%s", err, dict.Generate())
	}

	if parsed.Version != "test-1" {
		t.Errorf("version = %q", parsed.Version)
	}
	if parsed.Config["TEST_CONST"] != "42" || parsed.Config["TEST_STR"] != "hello" {
		t.Errorf("config = %v", parsed.Config)
	}
	if parsed.Commands["test_cmd arg=%u"] != 1 || parsed.Commands["ping"] != 2 {
		t.Errorf("commands = %v", parsed.Commands)
	}
	if parsed.Responses["test_resp v=%u"] != 0 {
		t.Errorf("responses = %v", parsed.Responses)
	}
	pins := parsed.Enumerations["test_pins"]
	if len(pins) != 2 || pins["PA0"] != 0 || pins["PB0"] != 2 {
		t.Errorf("enumeration = %v, want the gap skipped", pins)
	}
}

func TestDictionaryRebuildsAfterChange(t *testing.T) {
	dict := NewDictionary(NewCommandRegistry(), "v")
	first := string(dict.Generate())
	dict.AddConstant("LATE", "1")
	if second := string(dict.Generate()); second == first || !strings.Contains(second, `"LATE":"1"`) {
		t.Errorf("dictionary not rebuilt: %s", second)
	}
}

func TestDictionaryChunks(t *testing.T) {
	s := NewSystem(NewMemoryRegisters())
	data := s.Dict.Generate()

	var rebuilt []byte
	for offset := uint32(0); ; {
		chunk := s.Dict.GetChunk(offset, 40)
		if len(chunk) == 0 {
			break
		}
		if len(chunk) > 40 {
			t.Fatalf("chunk of %d bytes", len(chunk))
		}
		rebuilt = append(rebuilt, chunk...)
		offset += uint32(len(chunk))
	}
	if string(rebuilt) != string(data) {
		t.Error("chunks do not reassemble the dictionary")
	}
	if c := s.Dict.GetChunk(uint32(len(data))+10, 40); len(c) != 0 {
		t.Errorf("chunk past the end = %q", c)
	}
}
