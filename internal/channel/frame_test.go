package channel

import (
	"bytes"
	"encoding/binary"
	"strings"
	"testing"
)

func TestWriteMessageFraming(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteMessage(&buf, JSON(), map[string]string{"id": "t1"}); err != nil {
		t.Fatalf("WriteMessage: %v", err)
	}

	raw := buf.Bytes()
	if len(raw) < 4 {
		t.Fatalf("frame too short: %d bytes", len(raw))
	}
	length := binary.BigEndian.Uint32(raw[:4])
	if int(length) != len(raw)-4 {
		t.Errorf("length prefix = %d, payload = %d", length, len(raw)-4)
	}
	if string(raw[4:]) != `{"id":"t1"}` {
		t.Errorf("payload = %q", raw[4:])
	}
}

func TestReadMessageRejectsOversize(t *testing.T) {
	var buf bytes.Buffer
	_ = binary.Write(&buf, binary.BigEndian, uint32(MaxMessageSize+1))

	var v map[string]any
	err := ReadMessage(&buf, JSON(), &v)
	if err == nil || !strings.Contains(err.Error(), "exceeds maximum") {
		t.Fatalf("ReadMessage error = %v, want size error", err)
	}
}

func TestReadMessageTruncated(t *testing.T) {
	var buf bytes.Buffer
	_ = binary.Write(&buf, binary.BigEndian, uint32(10))
	buf.WriteString("abc")

	var v map[string]any
	if err := ReadMessage(&buf, JSON(), &v); err == nil {
		t.Fatal("expected error for truncated payload")
	}
}

func TestCBORFrameRoundTrip(t *testing.T) {
	c, err := CBOR()
	if err != nil {
		t.Fatalf("CBOR: %v", err)
	}

	in := Reply{
		ID:     "t1",
		Result: map[string]any{"n": -3, "s": "x", "l": []any{1, 2.5}},
		Hash:   "h",
		Reply:  true,
	}
	var buf bytes.Buffer
	if err := WriteMessage(&buf, c, &in); err != nil {
		t.Fatalf("WriteMessage: %v", err)
	}

	var out Reply
	if err := ReadMessage(&buf, c, &out); err != nil {
		t.Fatalf("ReadMessage: %v", err)
	}
	m, ok := out.Result.(map[string]any)
	if !ok {
		t.Fatalf("Result type = %T, want map[string]any", out.Result)
	}
	if m["n"] != int64(-3) || m["s"] != "x" {
		t.Errorf("Result = %#v", m)
	}
	l, ok := m["l"].([]any)
	if !ok || len(l) != 2 || l[0] != int64(1) || l[1] != 2.5 {
		t.Errorf("Result[l] = %#v", m["l"])
	}
}
