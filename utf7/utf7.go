/*
Package utf7 converts between UTF-8 strings and the modified UTF-7 form
that IMAP requires for mailbox and folder names (RFC 2060 / RFC 3501
section 5.1.3). The encoding differs from regular UTF-7 as defined in
RFC 2152: the shift character is '&', the base64 alphabet uses ',' in
place of '/' and padding is never emitted.

Both directions are pure functions and round-trip consistent for ASCII
as well as for non-ASCII folder names.
*/
package utf7

import (
	"fmt"
	"strings"

	"encoding/base64"
	"unicode/utf16"
	"unicode/utf8"
)

// Variables

// Modified base64 as demanded by RFC 3501: the regular
// alphabet with ',' substituted for '/' and no padding.
var modB64 = base64.NewEncoding("ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789+,").WithPadding(base64.NoPadding)

// Functions

// Encode converts a UTF-8 string into modified UTF-7. An
// empty input yields an empty output. Input that is not
// valid UTF-8 yields an empty string and an error.
func Encode(name string) (string, error) {

	if !utf8.ValidString(name) {
		return "", fmt.Errorf("utf7: input is not valid UTF-8")
	}

	var b strings.Builder

	runes := []rune(name)
	for i := 0; i < len(runes); i++ {

		r := runes[i]

		if r == '&' {
			b.WriteString("&-")
			continue
		}

		if isDirect(r) {
			b.WriteRune(r)
			continue
		}

		// Collect the whole run of non-direct characters
		// and emit it as one base64 encoded UTF-16BE blob.
		j := i
		for j < len(runes) && !isDirect(runes[j]) && runes[j] != '&' {
			j++
		}

		b.WriteByte('&')
		b.WriteString(modB64.EncodeToString(utf16Bytes(runes[i:j])))
		b.WriteByte('-')

		i = j - 1
	}

	return b.String(), nil
}

// Decode converts a modified UTF-7 string back into
// UTF-8. An empty input yields an empty output, malformed
// input yields an empty string and an error.
func Decode(name string) (string, error) {

	var b strings.Builder

	for i := 0; i < len(name); i++ {

		c := name[i]

		if c != '&' {
			b.WriteByte(c)
			continue
		}

		end := strings.IndexByte(name[i+1:], '-')
		if end < 0 {
			return "", fmt.Errorf("utf7: unterminated shift sequence")
		}

		if end == 0 {
			b.WriteByte('&')
			i++
			continue
		}

		raw, err := modB64.DecodeString(name[i+1 : i+1+end])
		if err != nil {
			return "", fmt.Errorf("utf7: invalid base64 in shift sequence: %v", err)
		}

		if len(raw)%2 != 0 {
			return "", fmt.Errorf("utf7: shift sequence is not UTF-16")
		}

		units := make([]uint16, 0, len(raw)/2)
		for k := 0; k < len(raw); k += 2 {
			units = append(units, uint16(raw[k])<<8|uint16(raw[k+1]))
		}

		for _, r := range utf16.Decode(units) {
			b.WriteRune(r)
		}

		i += end + 1
	}

	return b.String(), nil
}

// isDirect reports whether a rune is emitted verbatim,
// which is the printable ASCII range minus the shift
// character handled by the caller.
func isDirect(r rune) bool {
	return r >= 0x20 && r <= 0x7e
}

// utf16Bytes renders a run of runes as big-endian
// UTF-16 bytes.
func utf16Bytes(runes []rune) []byte {

	units := utf16.Encode(runes)

	out := make([]byte, 0, len(units)*2)
	for _, u := range units {
		out = append(out, byte(u>>8), byte(u))
	}

	return out
}
