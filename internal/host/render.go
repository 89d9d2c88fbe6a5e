package host

import (
	"context"
	"errors"
)

// Render drives ProcessReplacing with blocks of samplesPerCall until the
// attached source and its tail are exhausted or ctx is done. It returns the
// number of blocks processed. Suppressed module failures do not stop it.
func (r *Runtime) Render(ctx context.Context, samplesPerCall int) (int, error) {
	r.mu.Lock()
	hasSource := r.source != nil
	r.mu.Unlock()
	if !hasSource {
		return 0, errors.New("render needs an attached source")
	}

	blocks := 0
	for {
		if err := ctx.Err(); err != nil {
			return blocks, err
		}
		res := r.ProcessReplacing(samplesPerCall)
		if res.EndOfStream {
			return blocks, res.Err
		}
		if res.Err != nil {
			var perr *ProcessingError
			if !errors.As(res.Err, &perr) {
				return blocks, res.Err
			}
		}
		if res.Samples == 0 {
			return blocks, errors.New("render made no progress")
		}
		blocks++
	}
}
