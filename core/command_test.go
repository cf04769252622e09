package core

import (
	"errors"
	"testing"

	"avrpwm/protocol"
)

func TestCommandRegistry(t *testing.T) {
	registry := NewCommandRegistry()

	// Register a command
	var called bool
	handler := func(data *[]byte) error {
		called = true
		return nil
	}

	id := registry.Register("test_command", "arg=%u", handler)

	if id != 0 {
		t.Errorf("Expected first command to have ID 0, got %d", id)
	}

	// Verify command can be retrieved
	cmd, ok := registry.GetCommand(id)
	if !ok {
		t.Fatal("Failed to retrieve registered command")
	}

	if cmd.Name != "test_command" {
		t.Errorf("Expected command name 'test_command', got '%s'", cmd.Name)
	}
	if cmd.Signature() != "test_command arg=%u" {
		t.Errorf("Signature = %q", cmd.Signature())
	}

	var data []byte
	if err := registry.Dispatch(id, &data); err != nil {
		t.Errorf("Dispatch failed: %v", err)
	}

	if !called {
		t.Error("Command handler was not called")
	}

	err := registry.Dispatch(999, &data)
	if !errors.Is(err, ErrUnknownCommand) {
		t.Errorf("Expected ErrUnknownCommand, got %v", err)
	}
}

func TestCommandRegistryMultiple(t *testing.T) {
	registry := NewCommandRegistry()

	id1 := registry.Register("command1", "arg1=%u", func(data *[]byte) error { return nil })
	id2 := registry.RegisterResponse("response1", "v=%u")
	id3 := registry.Register("command3", "arg3=%u", func(data *[]byte) error { return nil })

	if id1 != 0 || id2 != 1 || id3 != 2 {
		t.Errorf("Command IDs not sequential: %d, %d, %d", id1, id2, id3)
	}
	if again := registry.Register("command1", "", nil); again != id1 {
		t.Errorf("re-registering returned %d, want %d", again, id1)
	}
	if registry.Count() != 3 {
		t.Errorf("Count = %d, want 3", registry.Count())
	}

	commands, responses := registry.Split()
	if len(commands) != 2 || len(responses) != 1 || responses[0].Name != "response1" {
		t.Errorf("Split = %d commands, %d responses", len(commands), len(responses))
	}

	// responses cannot be dispatched
	var data []byte
	if err := registry.Dispatch(id2, &data); !errors.Is(err, ErrUnknownCommand) {
		t.Errorf("dispatching a response: %v", err)
	}
}

func TestCommandWithArguments(t *testing.T) {
	registry := NewCommandRegistry()

	var receivedValue uint32

	handler := func(data *[]byte) error {
		val, err := protocol.DecodeVLQUint(data)
		if err != nil {
			return err
		}
		receivedValue = val
		return nil
	}

	id := registry.Register("test_args", "value=%u", handler)

	output := protocol.NewScratchOutput()
	protocol.EncodeVLQUint(output, 12345)
	data := output.Result()

	if err := registry.Dispatch(id, &data); err != nil {
		t.Errorf("Dispatch failed: %v", err)
	}

	if receivedValue != 12345 {
		t.Errorf("Expected value 12345, got %d", receivedValue)
	}
	if len(data) != 0 {
		t.Errorf("%d argument bytes left", len(data))
	}
}

func TestDecodeByteSaturates(t *testing.T) {
	output := protocol.NewScratchOutput()
	protocol.EncodeVLQUint(output, 2)
	protocol.EncodeVLQUint(output, 300)
	data := output.Result()

	var a, b uint8
	if err := decodeBytes(&data, &a, &b); err != nil {
		t.Fatal(err)
	}
	if a != 2 || b != 0xFF {
		t.Errorf("decoded %d, %d; want 2, 255", a, b)
	}
	if err := decodeBytes(&data, &a); err == nil {
		t.Error("decoding past the end succeeded")
	}
}
