package imap

import (
	"fmt"

	"github.com/huessenbergnetz/skaffari-imap/utf7"
)

// Functions

// encodeFolderName converts a UTF-8 folder name into the
// modified UTF-7 form IMAP requires for mailbox names. An
// empty result for a non-empty input means the conversion
// failed.
func encodeFolderName(name string) (string, error) {

	if name == "" {
		return "", nil
	}

	encoded, err := utf7.Encode(name)
	if err != nil {
		return "", err
	}

	if encoded == "" {
		return "", fmt.Errorf("conversion of '%s' yielded an empty result", name)
	}

	return encoded, nil
}
