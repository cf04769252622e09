package protocol

import (
	"bytes"
	"errors"
	"testing"
)

func TestVLQEncoding(t *testing.T) {
	testCases := []struct {
		v    int32
		want []byte
	}{
		{0, []byte{0x00}},
		{1, []byte{0x01}},
		{95, []byte{0x5F}},
		{96, []byte{0x80, 0x60}},
		{-1, []byte{0x7F}},
		{-32, []byte{0x60}},
		{-33, []byte{0xFF, 0x5F}},
		{300, []byte{0x82, 0x2C}},
		{1000000, []byte{0xBD, 0x84, 0x40}},
	}

	for _, tc := range testCases {
		got := EncodeVLQ(tc.v)
		if !bytes.Equal(got, tc.want) {
			t.Errorf("EncodeVLQ(%d) = % X, want % X", tc.v, got, tc.want)
		}
		v, n, err := DecodeVLQ(got)
		if err != nil || v != tc.v || n != len(tc.want) {
			t.Errorf("DecodeVLQ(% X) = %d, %d, %v", got, v, n, err)
		}
	}
}

func TestVLQRoundTripRange(t *testing.T) {
	for _, v := range []int32{-1 << 31, -1000000, -65535, -128, 127, 65535, 1<<31 - 1} {
		data := EncodeVLQ(v)
		got, err := DecodeVLQInt(&data)
		if err != nil {
			t.Fatalf("decode %d: %v", v, err)
		}
		if got != v || len(data) != 0 {
			t.Errorf("round trip %d: got %d, %d bytes left", v, got, len(data))
		}
	}
	data := EncodeVLQ(-1)
	if u, _ := DecodeVLQUint(&data); u != 0xFFFFFFFF {
		t.Errorf("uint view of -1 = %#x", u)
	}
}

func TestVLQBytesAndString(t *testing.T) {
	out := NewScratchOutput()
	EncodeVLQBytes(out, []byte{1, 2, 3})
	EncodeVLQString(out, "timer0")

	data := append([]byte(nil), out.Result()...)
	b, err := DecodeVLQBytes(&data)
	if err != nil || !bytes.Equal(b, []byte{1, 2, 3}) {
		t.Fatalf("DecodeVLQBytes = %v, %v", b, err)
	}
	s, err := DecodeVLQString(&data)
	if err != nil || s != "timer0" {
		t.Fatalf("DecodeVLQString = %q, %v", s, err)
	}
	if len(data) != 0 {
		t.Errorf("%d bytes left over", len(data))
	}
}

func TestVLQBufferTooSmall(t *testing.T) {
	empty := []byte{}
	if _, err := DecodeVLQInt(&empty); !errors.Is(err, ErrBufferTooSmall) {
		t.Errorf("empty input: got %v", err)
	}

	truncated := []byte{0x82} // continuation with nothing after it
	if _, err := DecodeVLQInt(&truncated); !errors.Is(err, ErrBufferTooSmall) {
		t.Errorf("truncated input: got %v", err)
	}
	if len(truncated) != 1 {
		t.Errorf("failed decode consumed input")
	}

	short := []byte{5, 'a', 'b'}
	if _, err := DecodeVLQBytes(&short); !errors.Is(err, ErrBufferTooSmall) {
		t.Errorf("short byte string: got %v", err)
	}
}

func TestVLQOverlong(t *testing.T) {
	data := []byte{0x81, 0x81, 0x81, 0x81, 0x81, 0x01}
	if _, err := DecodeVLQInt(&data); !errors.Is(err, ErrInvalidVLQ) {
		t.Errorf("six byte quantity: got %v, want ErrInvalidVLQ", err)
	}
}
