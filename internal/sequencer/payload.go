package sequencer

import (
	"errors"
	"io"

	jsoniter "github.com/json-iterator/go"
)

// validPayload reports whether body holds exactly one JSON value, optionally
// surrounded by whitespace.
func validPayload(body []byte) bool {
	// The trailing space terminates a bare top-level number, so running out of
	// input during Skip always means a truncated value.
	buf := make([]byte, len(body)+1)
	copy(buf, body)
	buf[len(body)] = ' '

	cfg := jsoniter.ConfigCompatibleWithStandardLibrary
	iter := cfg.BorrowIterator(buf)
	defer cfg.ReturnIterator(iter)

	iter.Skip()
	if iter.Error != nil {
		return false
	}
	// Only whitespace may follow; the iterator reports io.EOF once the
	// input is exhausted.
	if iter.WhatIsNext() != jsoniter.InvalidValue {
		return false
	}
	return errors.Is(iter.Error, io.EOF)
}
