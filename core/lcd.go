package core

import (
	"tinygo.org/x/drivers"
	"tinygo.org/x/drivers/hd44780i2c"
)

// LCDAddress is the usual PCF8574 backpack address.
const LCDAddress = 0x27

// LCD is a Display on an HD44780 character module behind a PCF8574 I2C
// backpack.
type LCD struct {
	dev hd44780i2c.Device
}

// NewLCD initialises the module in 4-bit mode and clears it.
func NewLCD(bus drivers.I2C, addr uint8, cols, rows uint8) (*LCD, error) {
	l := &LCD{dev: hd44780i2c.New(bus, addr)}
	if err := l.dev.Configure(hd44780i2c.Config{Width: cols, Height: rows}); err != nil {
		return nil, err
	}
	l.dev.ClearDisplay()
	return l, nil
}

func (l *LCD) Clear() { l.dev.ClearDisplay() }

func (l *LCD) MoveCursor(row, col uint8) { l.dev.SetCursor(col, row) }

func (l *LCD) PrintString(s string) { l.dev.Print([]byte(s)) }

func (l *LCD) PrintUint(v uint32) { l.dev.Print([]byte(utoa(v))) }
