package export

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/ianaindex"
	"golang.org/x/text/unicode/norm"
)

// Verification and encoding errors.
var (
	ErrUnsupportedEncoding = errors.New("unsupported fallback encoding")
	ErrMissingBOM          = errors.New("byte-order mark missing after write")
	ErrInvalidUTF8         = errors.New("written file is not valid UTF-8")
	ErrBadStructure        = errors.New("written file is not a two-row CSV")
	ErrLostCharacters      = errors.New("reference characters did not survive the write")
)

// verify checks that data, as read back from disk, still holds the two rows
// that were written. Only reference characters present in the intended rows
// are required in the read-back text.
func verify(data []byte, header, content string, refs []string) error {
	if !bytes.HasPrefix(data, []byte(BOM)) {
		return ErrMissingBOM
	}
	body := data[len(BOM):]
	if !utf8.Valid(body) {
		return ErrInvalidUTF8
	}

	r := csv.NewReader(bytes.NewReader(body))
	rows, err := r.ReadAll()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrBadStructure, err)
	}
	if len(rows) != 2 {
		return fmt.Errorf("%w: got %d rows", ErrBadStructure, len(rows))
	}

	intended := norm.NFC.String(header + "\n" + content)
	got := norm.NFC.String(string(body))
	var lost []string
	for _, ref := range refs {
		ref = norm.NFC.String(ref)
		if ref == "" || !strings.Contains(intended, ref) {
			continue
		}
		if !strings.Contains(got, ref) {
			lost = append(lost, ref)
		}
	}
	if len(lost) > 0 {
		return fmt.Errorf("%w: %s", ErrLostCharacters, strings.Join(lost, ", "))
	}
	return nil
}

// lookupEncoding resolves an IANA encoding name.
func lookupEncoding(name string) (encoding.Encoding, error) {
	if strings.EqualFold(name, DefaultFallbackEncoding) {
		return charmap.Windows1252, nil
	}
	enc, err := ianaindex.IANA.Encoding(name)
	if err != nil {
		return nil, fmt.Errorf("%w: %q: %v", ErrUnsupportedEncoding, name, err)
	}
	if enc == nil {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedEncoding, name)
	}
	return enc, nil
}

// encodeFallback encodes text in the named encoding, replacing runes the
// encoding cannot represent. It returns the canonical encoding name.
func encodeFallback(text, name string) (string, []byte, error) {
	enc, err := lookupEncoding(name)
	if err != nil {
		return "", nil, err
	}
	out, err := encoding.ReplaceUnsupported(enc.NewEncoder()).String(norm.NFC.String(text))
	if err != nil {
		return "", nil, fmt.Errorf("encode as %s: %w", name, err)
	}
	if canonical, nameErr := ianaindex.IANA.Name(enc); nameErr == nil && canonical != "" {
		name = canonical
	}
	return name, []byte(out), nil
}
