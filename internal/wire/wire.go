// Package wire implements the binary protocol spoken between the
// kvs client and server. Every message is a little-endian uint32
// variant tag followed by the variant's fields; strings are a
// little-endian uint64 byte length followed by UTF-8 bytes. The wire
// form is intentionally distinct from the on-disk record format.
package wire

import (
	"encoding/binary"
	"fmt"
	"io"
)

// CommandKind tags a request message.
type CommandKind uint32

const (
	CmdSet CommandKind = iota
	CmdGet
	CmdRm
	CmdOpen
)

// ResponseKind tags a response message.
type ResponseKind uint32

const (
	RespGetOk ResponseKind = iota
	RespSetOk
	RespRmOk
	RespError
)

// maxStringLen bounds decoded string lengths so a garbage frame cannot
// drive an arbitrarily large allocation.
const maxStringLen = 1 << 26

// Command is one request. Key is set for Set/Get/Rm, Value only for
// Set, Path only for Open.
type Command struct {
	Kind  CommandKind
	Key   string
	Value string
	Path  string
}

// Response is one reply. Value carries the GetOk payload, Msg the
// Error payload.
type Response struct {
	Kind  ResponseKind
	Value string
	Msg   string
}

// WriteCommand encodes one command to w.
func WriteCommand(w io.Writer, cmd Command) error {
	if err := binary.Write(w, binary.LittleEndian, uint32(cmd.Kind)); err != nil {
		return fmt.Errorf("failed to encode command tag: %w", err)
	}
	switch cmd.Kind {
	case CmdSet:
		if err := writeString(w, cmd.Key); err != nil {
			return err
		}
		return writeString(w, cmd.Value)
	case CmdGet, CmdRm:
		return writeString(w, cmd.Key)
	case CmdOpen:
		return writeString(w, cmd.Path)
	default:
		return fmt.Errorf("unknown command tag %d", cmd.Kind)
	}
}

// ReadCommand decodes one command from r.
func ReadCommand(r io.Reader) (Command, error) {
	var tag uint32
	if err := binary.Read(r, binary.LittleEndian, &tag); err != nil {
		return Command{}, fmt.Errorf("failed to decode command tag: %w", err)
	}

	cmd := Command{Kind: CommandKind(tag)}
	var err error
	switch cmd.Kind {
	case CmdSet:
		if cmd.Key, err = readString(r); err != nil {
			return Command{}, err
		}
		cmd.Value, err = readString(r)
	case CmdGet, CmdRm:
		cmd.Key, err = readString(r)
	case CmdOpen:
		cmd.Path, err = readString(r)
	default:
		return Command{}, fmt.Errorf("unknown command tag %d", tag)
	}
	if err != nil {
		return Command{}, err
	}
	return cmd, nil
}

// WriteResponse encodes one response to w.
func WriteResponse(w io.Writer, resp Response) error {
	if err := binary.Write(w, binary.LittleEndian, uint32(resp.Kind)); err != nil {
		return fmt.Errorf("failed to encode response tag: %w", err)
	}
	switch resp.Kind {
	case RespGetOk:
		return writeString(w, resp.Value)
	case RespSetOk, RespRmOk:
		return nil
	case RespError:
		return writeString(w, resp.Msg)
	default:
		return fmt.Errorf("unknown response tag %d", resp.Kind)
	}
}

// ReadResponse decodes one response from r.
func ReadResponse(r io.Reader) (Response, error) {
	var tag uint32
	if err := binary.Read(r, binary.LittleEndian, &tag); err != nil {
		return Response{}, fmt.Errorf("failed to decode response tag: %w", err)
	}

	resp := Response{Kind: ResponseKind(tag)}
	var err error
	switch resp.Kind {
	case RespGetOk:
		resp.Value, err = readString(r)
	case RespSetOk, RespRmOk:
	case RespError:
		resp.Msg, err = readString(r)
	default:
		return Response{}, fmt.Errorf("unknown response tag %d", tag)
	}
	if err != nil {
		return Response{}, err
	}
	return resp, nil
}

func writeString(w io.Writer, s string) error {
	if err := binary.Write(w, binary.LittleEndian, uint64(len(s))); err != nil {
		return fmt.Errorf("failed to encode string length: %w", err)
	}
	if _, err := io.WriteString(w, s); err != nil {
		return fmt.Errorf("failed to encode string bytes: %w", err)
	}
	return nil
}

func readString(r io.Reader) (string, error) {
	var n uint64
	if err := binary.Read(r, binary.LittleEndian, &n); err != nil {
		return "", fmt.Errorf("failed to decode string length: %w", err)
	}
	if n > maxStringLen {
		return "", fmt.Errorf("string length %d exceeds limit %d", n, maxStringLen)
	}
	buf := make([]byte, n)
	if _, err := io.ReadFull(r, buf); err != nil {
		return "", fmt.Errorf("failed to decode string bytes: %w", err)
	}
	return string(buf), nil
}
