package canonicalize

import "errors"

// ErrNonCanonical is returned whenever a value cannot be represented in
// NRF-1.1 at all — NaN/±Inf, lone surrogates, or a key collision produced
// by NFC normalization. It is never returned for merely "unusual but
// valid" input.
var ErrNonCanonical = errors.New("value has no canonical representation")

// ErrDuplicateKey is wrapped into ErrNonCanonical when two object keys
// become equal after NFC normalization.
var ErrDuplicateKey = errors.New("duplicate object key after NFC normalization")
