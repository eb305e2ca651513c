// Package framing implements the terminator-delimited text framing used on the
// wire: every logical message is ASCII text followed by the literal Terminator,
// with no length prefix, checksum or version.
package framing

import (
	"bytes"
	"unicode/utf8"

	"github.com/valyala/bytebufferpool"
)

// Terminator marks the end of a logical message in the byte stream.
const Terminator = "<EOF>"

// replacementByte is written in place of characters outside the ASCII range.
const replacementByte = '?'

// Frame appends the Terminator to msg.
//
// Parameters:
//   - msg: The logical message; it should not contain Terminator
//
// Returns:
//   - msg followed by Terminator
func Frame(msg string) string {
	return msg + Terminator
}

// FrameWith appends terminator to msg, or Terminator when terminator is empty.
func FrameWith(msg, terminator string) string {
	if terminator == "" {
		terminator = Terminator
	}

	return msg + terminator
}

// EncodeASCII converts s to its single-byte wire form. Each rune becomes
// exactly one byte; runes outside the ASCII range are replaced by '?'.
//
// Parameters:
//   - s: The text to encode
//
// Returns:
//   - The encoded bytes; len equals the rune count of s
func EncodeASCII(s string) []byte {
	out := make([]byte, 0, utf8.RuneCountInString(s))
	for _, r := range s {
		if r >= utf8.RuneSelf {
			out = append(out, replacementByte)
			continue
		}

		out = append(out, byte(r))
	}

	return out
}

// DecodeASCII appends the text form of src to dst. Bytes above 0x7F are
// replaced by '?'.
//
// Parameters:
//   - dst: The slice to append to (may be nil)
//   - src: Raw bytes read from the wire
//
// Returns:
//   - dst extended with one byte per byte of src
func DecodeASCII(dst []byte, src []byte) []byte {
	for _, b := range src {
		if b >= utf8.RuneSelf {
			b = replacementByte
		}

		dst = append(dst, b)
	}

	return dst
}

// Assembler reassembles one terminated message from arbitrarily sized chunks.
// The accumulated text lives in a pooled buffer; call Release when the
// assembler is no longer needed. An Assembler is not safe for concurrent use.
type Assembler struct {
	terminator []byte
	text       *bytebufferpool.ByteBuffer
}

// NewAssembler returns an empty Assembler looking for terminator. An empty
// terminator falls back to Terminator.
func NewAssembler(terminator string) *Assembler {
	if terminator == "" {
		terminator = Terminator
	}

	return &Assembler{
		terminator: []byte(terminator),
		text:       bytebufferpool.Get(),
	}
}

// Feed appends chunk to the accumulated text and checks for a complete
// message.
//
// The message is complete only when splitting the accumulated text on the
// terminator yields exactly two segments, i.e. it contains the terminator
// exactly once. The first segment is returned and the accumulated text is
// reset; anything after the terminator is dropped. When the text holds two or
// more terminators Feed never reports completion, no matter how much more is
// fed.
//
// Parameters:
//   - chunk: Bytes just read from the wire
//
// Returns:
//   - The message before the terminator when complete, "" otherwise
//   - true if a message was completed by this chunk
func (a *Assembler) Feed(chunk []byte) (string, bool) {
	a.text.B = DecodeASCII(a.text.B, chunk)

	if bytes.Count(a.text.B, a.terminator) != 1 {
		return "", false
	}

	idx := bytes.Index(a.text.B, a.terminator)
	msg := string(a.text.B[:idx])
	a.text.Reset()

	return msg, true
}

// Len returns the number of accumulated bytes not yet framed.
func (a *Assembler) Len() int {
	return a.text.Len()
}

// Reset discards the accumulated text.
func (a *Assembler) Reset() {
	a.text.Reset()
}

// Release returns the accumulated buffer to the pool. The Assembler must not
// be used afterwards.
func (a *Assembler) Release() {
	if a.text != nil {
		bytebufferpool.Put(a.text)
		a.text = nil
	}
}
