package utf7

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

// Structs

var codecTests = []struct {
	dec string
	enc string
}{
	{dec: "", enc: ""},
	{dec: "INBOX", enc: "INBOX"},
	{dec: "&", enc: "&-"},
	{dec: "&&", enc: "&-&-"},
	{dec: "Entwürfe", enc: "Entw&APw-rfe"},
	{dec: "Müll", enc: "M&APw-ll"},
	{dec: "Hüssenbergnetz", enc: "H&APw-ssenbergnetz"},
	{dec: "Köln/Bonn", enc: "K&APY-ln/Bonn"},
	{dec: "€-Rechnungen", enc: "&IKw--Rechnungen"},
	{dec: "日本語", enc: "&ZeVnLIqe-"},
	{dec: "~peter/mail/台北/日本語", enc: "~peter/mail/&U,BTFw-/&ZeVnLIqe-"},
}

// Functions

// TestEncode checks the conversion from UTF-8 folder
// names into modified UTF-7.
func TestEncode(t *testing.T) {

	for _, tt := range codecTests {

		enc, err := Encode(tt.dec)
		if err != nil {
			t.Fatalf("[utf7.TestEncode] Encoding '%s' failed with: %s\n", tt.dec, err.Error())
		}

		if enc != tt.enc {
			t.Fatalf("[utf7.TestEncode] Expected '%s' but received '%s'\n", tt.enc, enc)
		}
	}
}

// TestDecode checks the conversion from modified UTF-7
// back into UTF-8.
func TestDecode(t *testing.T) {

	for _, tt := range codecTests {

		dec, err := Decode(tt.enc)
		if err != nil {
			t.Fatalf("[utf7.TestDecode] Decoding '%s' failed with: %s\n", tt.enc, err.Error())
		}

		if dec != tt.dec {
			t.Fatalf("[utf7.TestDecode] Expected '%s' but received '%s'\n", tt.dec, dec)
		}
	}
}

// TestRoundTrip checks that encoding followed by decoding
// reproduces representative folder names exactly.
func TestRoundTrip(t *testing.T) {

	names := []string{
		"INBOX",
		"Drafts",
		"Hüssenbergnetz",
		"Entwürfe",
		"Gelöschte Objekte",
		"€€€",
		"日本語",
		"mixed ASCII & 中文 & punctuation!?",
	}

	for _, name := range names {

		enc, err := Encode(name)
		assert.Nil(t, err, "Encoding should succeed for representative folder names")

		dec, err := Decode(enc)
		assert.Nil(t, err, "Decoding should succeed for encoder output")
		assert.Equal(t, name, dec, "Round trip should reproduce the original name")
	}
}

// TestDecodeMalformed checks that malformed input is
// rejected with an empty result.
func TestDecodeMalformed(t *testing.T) {

	for _, malformed := range []string{"&", "&Entw", "&===-"} {

		dec, err := Decode(malformed)
		if err == nil {
			t.Fatalf("[utf7.TestDecodeMalformed] Expected fail while decoding '%s' but received 'nil' error.\n", malformed)
		}

		assert.Equal(t, "", dec, "Malformed input should decode to an empty string")
	}
}
