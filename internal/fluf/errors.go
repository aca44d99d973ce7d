package fluf

import "errors"

// ErrFormat is returned for any malformed input: truncated header, invalid
// version, token length > 8, options out of order, option too long, unknown
// critical option, malformed path, malformed numeric attribute (spec.md §4.1
// Failure modes).
var ErrFormat = errors.New("fluf: malformed message")

// ErrIncomplete signals a block-wise gap: an inbound block arrived out of
// the strict sequence the codec requires (spec.md §4.1 Block-wise transfer).
var ErrIncomplete = errors.New("fluf: request entity incomplete")
