package sim

import (
	"strconv"
	"sync"
)

// Display is a character display kept in memory. It implements
// core.Display with the cursor behaviour of an HD44780: text written past
// the last column is dropped.
type Display struct {
	mu       sync.Mutex
	rows     [][]byte
	row, col uint8
}

// NewDisplay returns a blank rows x cols display.
func NewDisplay(rows, cols int) *Display {
	d := &Display{rows: make([][]byte, rows)}
	for i := range d.rows {
		d.rows[i] = make([]byte, cols)
	}
	d.Clear()
	return d
}

func (d *Display) Clear() {
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, r := range d.rows {
		for i := range r {
			r[i] = ' '
		}
	}
	d.row, d.col = 0, 0
}

func (d *Display) MoveCursor(row, col uint8) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.row, d.col = row, col
}

func (d *Display) PrintString(s string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if int(d.row) >= len(d.rows) {
		return
	}
	line := d.rows[d.row]
	for i := 0; i < len(s); i++ {
		if int(d.col) < len(line) {
			line[d.col] = s[i]
		}
		d.col++
	}
}

func (d *Display) PrintUint(v uint32) {
	d.PrintString(strconv.FormatUint(uint64(v), 10))
}

// Lines returns the current contents, one string per row.
func (d *Display) Lines() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]string, len(d.rows))
	for i, r := range d.rows {
		out[i] = string(r)
	}
	return out
}
