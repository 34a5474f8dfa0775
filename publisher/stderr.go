package publisher

import "sync"

const excerptLen = 500

// tailBuffer keeps the last max bytes written to it. The encoder's
// stderr goes here so crash logs can show what it was complaining about
// without holding its whole output.
type tailBuffer struct {
	lock sync.Mutex
	max  int
	buf  []byte
}

func newTailBuffer(max int) *tailBuffer {
	return &tailBuffer{max: max}
}

func (b *tailBuffer) Write(p []byte) (int, error) {
	b.lock.Lock()
	b.buf = append(b.buf, p...)
	if over := len(b.buf) - b.max; over > 0 {
		b.buf = append(b.buf[:0], b.buf[over:]...)
	}
	b.lock.Unlock()
	return len(p), nil
}

func (b *tailBuffer) Reset() {
	b.lock.Lock()
	b.buf = b.buf[:0]
	b.lock.Unlock()
}

// Excerpt returns the most recent captured output, capped for logging.
func (b *tailBuffer) Excerpt() string {
	b.lock.Lock()
	defer b.lock.Unlock()
	s := string(b.buf)
	if len(s) > excerptLen {
		s = "..." + s[len(s)-excerptLen:]
	}
	return s
}
