package audio

// Framer cuts a PCM byte stream into fixed-size blocks. It is not safe for
// concurrent use.
type Framer struct {
	size int
	buf  []byte
}

func NewFramer(blockSize int) *Framer {
	return &Framer{size: blockSize, buf: make([]byte, 0, blockSize*2)}
}

// Push appends pcm and returns every complete block now available. Returned
// blocks do not alias the framer's buffer.
func (f *Framer) Push(pcm []byte) [][]byte {
	f.buf = append(f.buf, pcm...)
	var blocks [][]byte
	for len(f.buf) >= f.size {
		block := make([]byte, f.size)
		copy(block, f.buf[:f.size])
		blocks = append(blocks, block)
		f.buf = f.buf[f.size:]
	}
	return blocks
}

// Flush returns the trailing partial block, or nil when nothing is buffered.
func (f *Framer) Flush() []byte {
	if len(f.buf) == 0 {
		return nil
	}
	rest := make([]byte, len(f.buf))
	copy(rest, f.buf)
	f.buf = f.buf[:0]
	return rest
}
