package httptransport

import (
	"net/mail"
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	dErrors "sponsorlink/pkg/domain-errors"
)

// Input shape is enforced here, before anything reaches a service or store.
// Malformed input never becomes a store query.

const (
	maxEmailLen = 254
	maxCodeLen  = 16
	maxTitleLen = 200
	maxBodyLen  = 5000
	maxNameLen  = 100
)

// sponsorCodePattern matches codes like BAN-2025-104: a short letter prefix,
// a four-digit year, and a serial.
var sponsorCodePattern = regexp.MustCompile(`^[A-Z]{2,5}-[0-9]{4}-[0-9]{1,4}$`)

// normalizeEmail trims and lower-cases, then checks against the standard
// address grammar.
func normalizeEmail(raw string) (string, error) {
	email := strings.ToLower(strings.TrimSpace(raw))
	if email == "" || len(email) > maxEmailLen {
		return "", dErrors.New(dErrors.CodeBadRequest, "a valid email address is required")
	}
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return "", dErrors.New(dErrors.CodeBadRequest, "a valid email address is required")
	}
	return email, nil
}

// normalizeSponsorCode trims, upper-cases, and checks the code format.
func normalizeSponsorCode(raw string) (string, error) {
	code := strings.ToUpper(strings.TrimSpace(raw))
	if code == "" || len(code) > maxCodeLen || !sponsorCodePattern.MatchString(code) {
		return "", dErrors.New(dErrors.CodeBadRequest, "a valid sponsor code is required")
	}
	return code, nil
}

// sanitizeText trims, strips control characters, and bounds length. The
// bound is in bytes but never splits a multi-byte rune.
func sanitizeText(raw string, maxLen int) string {
	cleaned := strings.Map(func(r rune) rune {
		if unicode.IsControl(r) && r != '\n' && r != '\t' {
			return -1
		}
		return r
	}, strings.TrimSpace(raw))
	if len(cleaned) > maxLen {
		cut := maxLen
		for cut > 0 && !utf8.RuneStart(cleaned[cut]) {
			cut--
		}
		cleaned = cleaned[:cut]
	}
	return cleaned
}

// requireText is sanitizeText for mandatory fields.
func requireText(raw, field string, maxLen int) (string, error) {
	cleaned := sanitizeText(raw, maxLen)
	if cleaned == "" {
		return "", dErrors.New(dErrors.CodeBadRequest, field+" is required")
	}
	return cleaned, nil
}
