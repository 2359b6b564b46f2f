package main

// adalightHeaderSize is the length of the magic word, LED count and checksum.
const adalightHeaderSize = 6

// AdalightHeader builds the frame header expected by LEDstream-compatible
// firmware for n LEDs. The count is sent as n-1.
func AdalightHeader(n int) [adalightHeaderSize]byte {
	count := uint16(n - 1)
	hi := byte(count >> 8)
	lo := byte(count)
	return [adalightHeaderSize]byte{'A', 'd', 'a', hi, lo, hi ^ lo ^ 0x55}
}

// BuildAdalightMessage writes header followed by the colors into dst,
// reusing its storage, and returns the message.
func BuildAdalightMessage(dst []byte, header [adalightHeaderSize]byte, colors []RGB) []byte {
	dst = append(dst[:0], header[:]...)
	return RGBsToBytes(dst, colors)
}
