package core

import (
	"sort"
	"sync"
)

// Constant represents a firmware constant exposed to the host
type Constant struct {
	Name  string
	Value interface{} // string or integer
}

// Enumeration maps wire values to names. The index is the value.
type Enumeration struct {
	Name   string
	Values []string
}

// Dictionary is the JSON data dictionary the host downloads with
// identify. It is built once after registration and served in chunks.
type Dictionary struct {
	mu           sync.RWMutex
	constants    map[string]*Constant
	enumerations map[string]*Enumeration
	commandReg   *CommandRegistry
	version      string
	buildInfo    string
	cached       []byte
}

// NewDictionary creates a dictionary describing cmdReg.
func NewDictionary(cmdReg *CommandRegistry, version string) *Dictionary {
	return &Dictionary{
		constants:    make(map[string]*Constant),
		enumerations: make(map[string]*Enumeration),
		commandReg:   cmdReg,
		version:      version,
		buildInfo:    "go",
	}
}

// AddConstant adds a constant to the dictionary
func (d *Dictionary) AddConstant(name string, value interface{}) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.constants[name] = &Constant{Name: name, Value: value}
	d.cached = nil
}

// AddEnumeration adds an enumeration. values is copied.
func (d *Dictionary) AddEnumeration(name string, values []string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.enumerations[name] = &Enumeration{Name: name, Values: append([]string(nil), values...)}
	d.cached = nil
}

// SetBuildInfo sets the build_versions string
func (d *Dictionary) SetBuildInfo(info string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.buildInfo = info
	d.cached = nil
}

// Build renders and caches the dictionary. Call after every command is
// registered.
func (d *Dictionary) Build() {
	commands, responses := d.commandReg.Split()

	d.mu.Lock()
	defer d.mu.Unlock()
	d.cached = d.render(commands, responses)
	DebugPrintln("[DICT] built, " + itoa(len(d.cached)) + " bytes")
}

// Generate returns the dictionary, building it on first use.
func (d *Dictionary) Generate() []byte {
	d.mu.RLock()
	cached := d.cached
	d.mu.RUnlock()
	if cached == nil {
		d.Build()
		d.mu.RLock()
		cached = d.cached
		d.mu.RUnlock()
	}
	return cached
}

func appendQuoted(b []byte, s string) []byte {
	b = append(b, '"')
	b = append(b, s...)
	return append(b, '"')
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// render builds the JSON by hand; names and formats never need escaping.
func (d *Dictionary) render(commands, responses []*Command) []byte {
	b := make([]byte, 0, 2048)
	b = append(b, `{"version":`...)
	b = appendQuoted(b, d.version)
	b = append(b, `,"build_versions":`...)
	b = appendQuoted(b, d.buildInfo)

	b = append(b, `,"config":{`...)
	for i, name := range sortedKeys(d.constants) {
		if i > 0 {
			b = append(b, ',')
		}
		b = appendQuoted(b, name)
		b = append(b, ':')
		b = appendQuoted(b, valueToString(d.constants[name].Value))
	}

	for _, section := range []struct {
		key  string
		list []*Command
	}{{"commands", commands}, {"responses", responses}} {
		b = append(b, `},"`...)
		b = append(b, section.key...)
		b = append(b, `":{`...)
		for i, c := range section.list {
			if i > 0 {
				b = append(b, ',')
			}
			b = appendQuoted(b, c.Signature())
			b = append(b, ':')
			b = append(b, itoa(int(c.ID))...)
		}
	}
	b = append(b, '}')

	if len(d.enumerations) > 0 {
		b = append(b, `,"enumerations":{`...)
		for i, name := range sortedKeys(d.enumerations) {
			if i > 0 {
				b = append(b, ',')
			}
			b = appendQuoted(b, name)
			b = append(b, `:{`...)
			first := true
			for v, s := range d.enumerations[name].Values {
				if s == "" {
					continue
				}
				if !first {
					b = append(b, ',')
				}
				b = appendQuoted(b, s)
				b = append(b, ':')
				b = append(b, itoa(v)...)
				first = false
			}
			b = append(b, '}')
		}
		b = append(b, '}')
	}
	return append(b, '}')
}

// GetChunk returns a copy of up to count bytes starting at offset. An
// empty chunk marks the end.
func (d *Dictionary) GetChunk(offset uint32, count uint8) []byte {
	data := d.Generate()
	if offset >= uint32(len(data)) {
		return []byte{}
	}
	end := min(offset+uint32(count), uint32(len(data)))
	return append([]byte(nil), data[offset:end]...)
}
