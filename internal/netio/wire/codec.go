package wire

import (
	"github.com/pierrec/lz4/v4"
)

// compressionThreshold is the payload size at or above which Encode opts to LZ4
// the payload before framing it. Below this size the framing overhead of
// LZ4 (and the CPU cost) is not worth it — most session-control messages
// never cross it.
const compressionThreshold = 256

// Encode marshals p and wraps it in an envelope, transparently LZ4-
// compressing the payload when it is large enough for that to pay off. The
// high bit of the version byte (see compressedFlag) tells Decode whether to
// inflate before handing bytes to the payload's Unmarshal.
func Encode(p Payload) []byte {
	payloadBuf := NewBuffer()
	p.MarshalPayload(payloadBuf)
	raw := payloadBuf.Bytes()

	compressed := false
	out := raw
	if len(raw) >= compressionThreshold {
		compacted := make([]byte, lz4.CompressBlockBound(len(raw)))
		var c lz4.Compressor
		n, err := c.CompressBlock(raw, compacted)
		// CompressBlock returns n == 0 when the input is incompressible;
		// fall back to the raw payload rather than sending zero bytes.
		if err == nil && n > 0 && n < len(raw) {
			out = compacted[:n]
			compressed = true
		}
	}

	envBuf := NewBuffer()
	if compressed {
		// The decompressed length isn't otherwise recoverable from an LZ4
		// block, so it rides along as a 4-byte prefix inside the payload.
		sized := NewBuffer()
		sized.WriteU32(uint32(len(raw)))
		sized.WriteBytes(out)
		out = sized.Bytes()
	}
	WriteEnvelope(envBuf, p.Type(), out, compressed)
	return envBuf.Bytes()
}

// DecodeEnvelope parses the envelope at the front of data, inflates the
// payload if the compressed flag is set, and constructs (but does not yet
// unmarshal) the registered Payload for the envelope's type. Decode and the
// validator's SafeDeserialize wrapper both build on this so the raw,
// final-form payload bytes are available to check against the envelope's
// declared length before unmarshaling.
func DecodeEnvelope(data []byte, factory *Factory) (EnvelopeHeader, []byte, Payload, error) {
	buf := NewBufferFromBytes(data)
	hdr, err := ParseEnvelope(buf)
	if err != nil {
		return hdr, nil, nil, err
	}

	payloadBytes, err := buf.ReadBytes(int(hdr.PayloadLength))
	if err != nil {
		return hdr, nil, nil, err
	}

	if hdr.Compressed {
		sizeBuf := NewBufferFromBytes(payloadBytes)
		decompressedLen, err := sizeBuf.ReadU32()
		if err != nil {
			return hdr, nil, nil, err
		}
		rest, err := sizeBuf.ReadBytes(sizeBuf.Remaining())
		if err != nil {
			return hdr, nil, nil, err
		}
		decompressed := make([]byte, decompressedLen)
		n, err := lz4.UncompressBlock(rest, decompressed)
		if err != nil {
			return hdr, nil, nil, err
		}
		payloadBytes = decompressed[:n]
	}

	p := factory.Create(hdr.Type)
	if p == nil {
		return hdr, nil, nil, ErrEnvelopeInvalid
	}
	return hdr, payloadBytes, p, nil
}

// Decode parses the envelope at the front of data, inflates the payload if
// the compressed flag is set, and unmarshals it via factory. It returns the
// envelope header (for validation/metrics) and the payload, or an error if
// the envelope or payload could not be parsed.
func Decode(data []byte, factory *Factory) (EnvelopeHeader, Payload, error) {
	hdr, payloadBytes, p, err := DecodeEnvelope(data, factory)
	if err != nil {
		return hdr, nil, err
	}
	if err := p.UnmarshalPayload(NewBufferFromBytes(payloadBytes)); err != nil {
		return hdr, nil, err
	}
	return hdr, p, nil
}
