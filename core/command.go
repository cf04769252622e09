package core

import (
	"errors"
	"sync"
)

// CommandHandler decodes its own arguments from data.
type CommandHandler func(data *[]byte) error

// Command is one entry of the data dictionary. Responses (firmware to
// host) are registered with a nil Handler.
type Command struct {
	ID      uint16
	Name    string
	Format  string // argument format, e.g. "timer=%c compare=%u"
	Handler CommandHandler
}

// Signature is the dictionary key: name followed by the format.
func (c *Command) Signature() string {
	if c.Format == "" {
		return c.Name
	}
	return c.Name + " " + c.Format
}

// ErrUnknownCommand is returned by Dispatch for ids nobody registered.
var ErrUnknownCommand = errors.New("unknown command")

// CommandRegistry assigns ids in registration order.
type CommandRegistry struct {
	mu       sync.RWMutex
	commands []*Command
	nameToID map[string]uint16
}

// NewCommandRegistry creates a new command registry
func NewCommandRegistry() *CommandRegistry {
	return &CommandRegistry{nameToID: make(map[string]uint16)}
}

// Register adds a command and returns its id. Registering a name twice
// returns the existing id.
func (r *CommandRegistry) Register(name, format string, handler CommandHandler) uint16 {
	r.mu.Lock()
	defer r.mu.Unlock()

	if id, exists := r.nameToID[name]; exists {
		return id
	}
	id := uint16(len(r.commands))
	r.commands = append(r.commands, &Command{ID: id, Name: name, Format: format, Handler: handler})
	r.nameToID[name] = id
	return id
}

// RegisterResponse registers a firmware-to-host message.
func (r *CommandRegistry) RegisterResponse(name, format string) uint16 {
	return r.Register(name, format, nil)
}

// GetCommand retrieves a command by ID
func (r *CommandRegistry) GetCommand(id uint16) (*Command, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if int(id) >= len(r.commands) {
		return nil, false
	}
	return r.commands[id], true
}

// GetCommandByName retrieves a command by name
func (r *CommandRegistry) GetCommandByName(name string) (*Command, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	id, ok := r.nameToID[name]
	if !ok {
		return nil, false
	}
	return r.commands[id], true
}

// Count returns the number of registered commands and responses
func (r *CommandRegistry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.commands)
}

// Dispatch calls the handler registered for cmdID.
func (r *CommandRegistry) Dispatch(cmdID uint16, data *[]byte) error {
	cmd, ok := r.GetCommand(cmdID)
	if !ok || cmd.Handler == nil {
		return errors.Join(ErrUnknownCommand, errors.New("id "+itoa(int(cmdID))))
	}
	return cmd.Handler(data)
}

// Split returns commands and responses in id order.
func (r *CommandRegistry) Split() (commands, responses []*Command) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, c := range r.commands {
		if c.Handler != nil {
			commands = append(commands, c)
		} else {
			responses = append(responses, c)
		}
	}
	return commands, responses
}
