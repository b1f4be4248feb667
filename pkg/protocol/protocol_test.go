package protocol

import (
	"bytes"
	"testing"
)

func buildFrame(h Header, extras, key, value []byte) []byte {
	h.ExtrasLen = uint8(len(extras))
	h.KeyLen = uint16(len(key))
	h.BodyLen = uint32(len(extras) + len(key) + len(value))
	buf := make([]byte, HeaderLen+int(h.BodyLen))
	encodeHeader(buf, h)
	n := HeaderLen
	n += copy(buf[n:], extras)
	n += copy(buf[n:], key)
	copy(buf[n:], value)
	return buf
}

func TestDecodeRoundTrip(t *testing.T) {
	h := Header{Magic: ReqMagic, Opcode: OpSet, Opaque: 0xAABBCCDD, Cas: 7}
	extras := []byte{0x00, 0x00, 0xDE, 0xAD, 0, 0, 0, 0}
	key := []byte("foo")
	value := []byte("bar")
	frame := buildFrame(h, extras, key, value)

	req, err := Decode(frame)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if req.Header.Opaque != 0xAABBCCDD || req.Header.Cas != 7 {
		t.Fatalf("header fields not preserved: %+v", req.Header)
	}
	if !bytes.Equal(req.Extras, extras) || !bytes.Equal(req.Key, key) || !bytes.Equal(req.Value, value) {
		t.Fatalf("body not preserved: %+v", req)
	}

	rebuilt := RawFrame(req)
	if !bytes.Equal(rebuilt, frame) {
		t.Fatalf("RawFrame(Decode(frame)) != frame:\n got  %x\n want %x", rebuilt, frame)
	}
}

func TestDecodeRejectsBadMagic(t *testing.T) {
	h := Header{Magic: 0x55, Opcode: OpGet}
	frame := buildFrame(h, nil, []byte("k"), nil)
	if _, err := Decode(frame); err == nil {
		t.Fatal("expected error for invalid magic")
	}
}

func TestDecodeRejectsTruncatedBody(t *testing.T) {
	h := Header{Magic: ReqMagic, Opcode: OpGet}
	frame := buildFrame(h, nil, []byte("k"), nil)
	if _, err := Decode(frame[:len(frame)-1]); err == nil {
		t.Fatal("expected error for truncated body")
	}
}

func TestEncodeSetThenGetScenario(t *testing.T) {
	// SET "foo" flags 0x0000DEAD exp 0 value "bar" cas 0 -> status OK cas 1;
	// GET "foo" -> status OK, extras flags, value bar.
	setResp := BinaryResponse{Opcode: OpSet, Status: StatusOK, Opaque: 1, Cas: 1}
	wire := Encode(setResp)
	if wire[0] != ResMagic {
		t.Fatalf("expected response magic, got %#x", wire[0])
	}
	status := Status(wire[6])<<8 | Status(wire[7])
	if status != StatusOK {
		t.Fatalf("expected status OK, got %#x", status)
	}

	getExtras := make([]byte, 4)
	getExtras[2] = 0xDE
	getExtras[3] = 0xAD
	getResp := BinaryResponse{Opcode: OpGet, Status: StatusOK, Extras: getExtras, Value: []byte("bar")}
	wire = Encode(getResp)
	decoded, err := decodeResponseForTest(wire)
	if err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if !bytes.Equal(decoded.extras, getExtras) || !bytes.Equal(decoded.value, []byte("bar")) {
		t.Fatalf("unexpected response body: %+v", decoded)
	}
}

type decodedResponse struct {
	status Status
	extras []byte
	key    []byte
	value  []byte
}

// decodeResponseForTest parses an encoded response frame using the same
// header layout Decode uses for requests (the wire format is symmetric
// except for the magic byte and the vbucket/status field meaning).
func decodeResponseForTest(frame []byte) (decodedResponse, error) {
	h, err := decodeHeader(append([]byte{ReqMagic}, frame[1:]...))
	if err != nil {
		return decodedResponse{}, err
	}
	body := frame[HeaderLen:]
	extras := body[:h.ExtrasLen]
	key := body[h.ExtrasLen : uint32(h.ExtrasLen)+uint32(h.KeyLen)]
	value := body[uint32(h.ExtrasLen)+uint32(h.KeyLen):]
	return decodedResponse{status: Status(h.VBucketOrStatus), extras: extras, key: key, value: value}, nil
}

func TestQuietOpcodeClassification(t *testing.T) {
	quiet := []Opcode{OpGetQ, OpGetKQ, OpSetQ, OpAddQ, OpReplaceQ, OpDeleteQ, OpIncrementQ, OpDecrementQ, OpQuitQ, OpFlushQ, OpAppendQ, OpPrependQ, OpGATQ}
	for _, op := range quiet {
		if !op.IsQuiet() {
			t.Errorf("opcode %#x expected quiet", op)
		}
	}
	loud := []Opcode{OpGet, OpSet, OpAdd, OpNoop, OpVersion, OpTouch, OpGAT}
	for _, op := range loud {
		if op.IsQuiet() {
			t.Errorf("opcode %#x expected non-quiet", op)
		}
	}
}
