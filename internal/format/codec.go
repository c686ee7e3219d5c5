// Package format defines the on-disk record format of the key-value log
// and the streaming codec that reads and writes it. A log file is a
// concatenation of externally tagged JSON values with no separators, so
// the byte offset after any record is a valid position to decode the
// next one from.
package format

import (
	"encoding/json"
	"fmt"
	"io"
)

// SetCommand installs or overwrites the mapping for a key.
type SetCommand struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

// GetCommand requests the value of a key. It is a request-only variant
// and is never written to the log.
type GetCommand struct {
	Key string `json:"key"`
}

// RmCommand removes the mapping for a key.
type RmCommand struct {
	Key string `json:"key"`
}

// Command is one tagged record. Exactly one variant field is non-nil;
// the JSON form carries the variant name as the single top-level key,
// e.g. {"Set":{"key":"a","value":"1"}} or {"Rm":{"key":"a"}}.
type Command struct {
	Set *SetCommand `json:"Set,omitempty"`
	Get *GetCommand `json:"Get,omitempty"`
	Rm  *RmCommand  `json:"Rm,omitempty"`
}

// NewSet builds a Set record.
func NewSet(key, value string) Command {
	return Command{Set: &SetCommand{Key: key, Value: value}}
}

// NewRm builds an Rm record.
func NewRm(key string) Command {
	return Command{Rm: &RmCommand{Key: key}}
}

// Encoder writes records to a byte sink one at a time, with no framing
// between them.
type Encoder struct {
	w io.Writer
}

// NewEncoder returns an Encoder writing to w.
func NewEncoder(w io.Writer) *Encoder {
	return &Encoder{w: w}
}

// Encode serializes a single record to the sink. Unlike json.Encoder it
// appends no trailing newline, keeping record lengths equal to the
// serialized byte count.
func (e *Encoder) Encode(cmd Command) error {
	data, err := json.Marshal(cmd)
	if err != nil {
		return fmt.Errorf("failed to encode record: %w", err)
	}
	if _, err := e.w.Write(data); err != nil {
		return fmt.Errorf("failed to write record: %w", err)
	}
	return nil
}

// Decoder reads successive records from a byte source. After each
// successful Decode, InputOffset reports the offset at which the next
// record begins, which callers use as the record boundary in the log.
type Decoder struct {
	dec *json.Decoder
}

// NewDecoder returns a Decoder reading from r.
func NewDecoder(r io.Reader) *Decoder {
	return &Decoder{dec: json.NewDecoder(r)}
}

// Decode reads the next record from the source. It returns io.EOF once
// the source is exhausted at a record boundary.
func (d *Decoder) Decode(cmd *Command) error {
	return d.dec.Decode(cmd)
}

// InputOffset returns the source byte offset just past the most
// recently decoded record.
func (d *Decoder) InputOffset() int64 {
	return d.dec.InputOffset()
}

// DecodeOne decodes exactly one record from r. It is used to read a
// record back out of the log given its byte range.
func DecodeOne(r io.Reader) (Command, error) {
	var cmd Command
	if err := json.NewDecoder(r).Decode(&cmd); err != nil {
		return Command{}, fmt.Errorf("failed to decode record: %w", err)
	}
	return cmd, nil
}
