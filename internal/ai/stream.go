package ai

// TextStream delivers generated text incrementally. The producer goroutine
// pushes chunks and closes the channel; Err is valid once Chunks is drained.
type TextStream struct {
	ch  chan string
	err error
}

func newTextStream() *TextStream {
	return &TextStream{ch: make(chan string)}
}

// NewStaticTextStream returns an already-buffered stream that replays the
// given chunks and then closes.
func NewStaticTextStream(chunks ...string) *TextStream {
	s := &TextStream{ch: make(chan string, len(chunks))}
	for _, c := range chunks {
		s.ch <- c
	}
	close(s.ch)
	return s
}

// Chunks returns the channel of text fragments in generation order.
func (s *TextStream) Chunks() <-chan string {
	return s.ch
}

// Err reports why the stream ended. Nil after normal completion.
func (s *TextStream) Err() error {
	return s.err
}

func (s *TextStream) finish(err error) {
	s.err = err
	close(s.ch)
}
