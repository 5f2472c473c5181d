package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"iter"
)

// DecodeNDJSON yields one value per line of newline-delimited JSON. The
// sequence stops after the first error, which is yielded with a zero value.
func DecodeNDJSON[T any](r io.Reader) iter.Seq2[T, error] {
	return func(yield func(T, error) bool) {
		dec := json.NewDecoder(r)
		for {
			var v T
			err := dec.Decode(&v)
			if errors.Is(err, io.EOF) {
				return
			}
			if err != nil {
				yield(v, fmt.Errorf("failed to decode stream item: %w", err))
				return
			}
			if !yield(v, nil) {
				return
			}
		}
	}
}
