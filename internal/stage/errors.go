package stage

import "errors"

// ErrNoMorePackets is returned by Producer.Produce to signal a clean,
// permanent end of stream (e.g. a recorded-file source reaching EOF); the
// executor stops the stage's thread without treating it as a fatal error.
var ErrNoMorePackets = errors.New("stage: no more packets")
