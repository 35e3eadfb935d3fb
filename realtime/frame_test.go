// realtime/frame_test.go
package realtime

import (
	"testing"
)

func TestDecodeFrame(t *testing.T) {
	f, err := DecodeFrame([]byte(`{"event":"message","channel":"room","payload":{"text":"hi"},"origin":"c1"}`))
	if err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if f.Event != "message" || f.Channel != "room" || f.Origin != "c1" {
		t.Errorf("frame mismatch: %+v", f)
	}
}

func TestDecodeFrameInvalid(t *testing.T) {
	if _, err := DecodeFrame([]byte("not json")); err == nil {
		t.Error("expected error for invalid frame")
	}
}

func TestBroadcastFrameOmitsChannel(t *testing.T) {
	f, err := NewEventFrame("", "announce", map[string]string{"text": "hello"})
	if err != nil {
		t.Fatalf("build failed: %v", err)
	}
	data, err := f.Encode()
	if err != nil {
		t.Fatalf("encode failed: %v", err)
	}
	decoded, err := DecodeFrame(data)
	if err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if decoded.Channel != "" {
		t.Errorf("broadcast frame should have no channel, got %q", decoded.Channel)
	}
}
