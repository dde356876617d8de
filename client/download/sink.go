package download

// Discard is the body sink for header-only requests. Some servers still
// send a body (a redirect page, or a body on HEAD); it is consumed and
// dropped rather than buffered.
var Discard discard

type discard struct{}

// OnBodyChunk reports the whole chunk as consumed.
func (discard) OnBodyChunk(p []byte) int { return len(p) }

func (d discard) Write(p []byte) (int, error) { return d.OnBodyChunk(p), nil }
