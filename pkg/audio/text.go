// ABOUTME: Text-safe byte encoding helpers
// ABOUTME: Standard padded base64 round trip for embedding PCM in JSON
package audio

import "encoding/base64"

// BytesToText encodes arbitrary bytes as standard padded base64
func BytesToText(b []byte) string {
	return base64.StdEncoding.EncodeToString(b)
}

// TextToBytes reverses BytesToText
func TextToBytes(s string) ([]byte, error) {
	return base64.StdEncoding.DecodeString(s)
}
