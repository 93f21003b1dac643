package encoder

import "bytes"

// Chunk is one unit of encoder output: a single Annex-B NAL unit including
// its start code, tagged as keyframe when it is an IDR slice. Chunks are
// owned by the pipeline until they are concatenated for muxing.
type Chunk struct {
	Data     []byte
	Keyframe bool
}

var startCode3 = []byte{0, 0, 1}

// annexBParser incrementally splits an H.264 Annex-B byte stream into NAL
// units. Bytes are fed as they arrive from the encoder; a NAL is emitted
// once the next start code bounds it.
type annexBParser struct {
	buf    bytes.Buffer
	chunks []Chunk
}

func (p *annexBParser) Write(data []byte) (int, error) {
	p.buf.Write(data)
	p.drain(false)
	return len(data), nil
}

// Finish flushes the trailing NAL after the stream ends.
func (p *annexBParser) Finish() {
	p.drain(true)
}

func (p *annexBParser) Chunks() []Chunk {
	return p.chunks
}

func (p *annexBParser) drain(eof bool) {
	b := p.buf.Bytes()

	start := indexStartCode(b, 0)
	if start < 0 {
		return
	}
	// A 4-byte start code owns its leading zero byte, including one retained
	// in the buffer by a previous pass.
	if start > 0 && b[start-1] == 0 {
		start--
	}

	for {
		next := indexStartCode(b, start+3)
		if next < 0 {
			if eof && start < len(b) {
				p.emit(b[start:])
				start = len(b)
			}
			break
		}
		// A 4-byte start code owns its leading zero byte.
		end := next
		if end > 0 && b[end-1] == 0 {
			end--
		}
		p.emit(b[start:end])
		start = end
	}

	remaining := b[start:]
	var keep bytes.Buffer
	keep.Write(remaining)
	p.buf = keep
}

func (p *annexBParser) emit(nal []byte) {
	data := make([]byte, len(nal))
	copy(data, nal)
	p.chunks = append(p.chunks, Chunk{
		Data:     data,
		Keyframe: nalType(nal) == 5, // IDR slice
	})
}

// indexStartCode finds the next 00 00 01 sequence at or after from.
func indexStartCode(b []byte, from int) int {
	if from > len(b) {
		return -1
	}
	idx := bytes.Index(b[from:], startCode3)
	if idx < 0 {
		return -1
	}
	return from + idx
}

// nalType extracts the nal_unit_type from a start-code-prefixed NAL.
func nalType(nal []byte) int {
	i := bytes.Index(nal, startCode3)
	if i < 0 || i+3 >= len(nal) {
		return -1
	}
	return int(nal[i+3] & 0x1F)
}

// ConcatChunks rebuilds the raw elementary stream from buffered chunks in
// arrival order.
func ConcatChunks(chunks []Chunk) []byte {
	var size int
	for _, c := range chunks {
		size += len(c.Data)
	}
	out := make([]byte, 0, size)
	for _, c := range chunks {
		out = append(out, c.Data...)
	}
	return out
}
