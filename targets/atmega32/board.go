//go:build avr

package main

// Reference board: ATmega32 on the internal 8 MHz oscillator, L293D motor
// bridge on PB0/PB1 with its enable on OC0, push button on INT1,
// potentiometer on ADC0 and a 16x2 LCD behind a PCF8574 backpack.
const (
	cpuFrequency = 8000000
	linkBaud     = 38400
	twiClock     = 100000
	lcdCols      = 16
	lcdRows      = 2
	boardName    = "atmega32-l293d"
)

// appPeriodLoops is the number of idle main-loop passes between two runs
// of the speed-control application.
const appPeriodLoops = 2000
