package mirror

import "fmt"

// withPlacementRetries runs attempt up to maxPlacementAttempts times. attempt
// should perform one "reserve 2P -> split -> map twice" pass and return
// (nil, err, true) when it lost the placement race so the caller can try
// again, (nil, err, false) for any other failure, or (buf, nil, false) with
// a live *Buffer on success. Every partial mapping made during a failed attempt
// must already be unmapped by attempt itself before it returns. The returned
// Buffer's PlacementRetries records how many prior attempts were lost.
func withPlacementRetries(attempt func() (*Buffer, error, bool)) (*Buffer, error) {
	var lastErr error
	for i := 0; i < maxPlacementAttempts; i++ {
		buf, err, retryable := attempt()
		if err == nil {
			buf.placementRetries = i
			return buf, nil
		}
		if !retryable {
			return nil, err
		}
		lastErr = err
	}
	return nil, fmt.Errorf("mirror: lost placement race %d times: %w (%v)", maxPlacementAttempts, ErrAddressSpaceExhausted, lastErr)
}
