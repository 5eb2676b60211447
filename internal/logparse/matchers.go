package logparse

import "github.com/google/uuid"

// IsPositiveInteger reports whether s is a non-empty run of ASCII digits.
func IsPositiveInteger(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		if !isDigit(s[i]) {
			return false
		}
	}
	return true
}

// IsUUID accepts only the canonical 36 character hyphenated form.
func IsUUID(s string) bool {
	if len(s) != 36 {
		return false
	}
	_, err := uuid.Parse(s)
	return err == nil
}

// IsSFID approximates a Salesforce record id: 15 or 18 ASCII alphanumerics
// that are neither all lowercase nor all uppercase letters. Plain words of
// the right length are common in paths, the case check keeps them out.
func IsSFID(s string) bool {
	if len(s) != 15 && len(s) != 18 {
		return false
	}
	allLower, allUpper := true, true
	for i := 0; i < len(s); i++ {
		c := s[i]
		if !isAlnum(c) {
			return false
		}
		allLower = allLower && isLower(c)
		allUpper = allUpper && isUpper(c)
	}
	return !allLower && !allUpper
}

// IsProjectReference matches two uppercase letters, a two digit year and a
// four character base32 counter, e.g. "WO220VLD".
func IsProjectReference(s string) bool {
	if len(s) != 8 {
		return false
	}
	for i := 0; i < 8; i++ {
		c := s[i]
		switch {
		case i < 2:
			if !isUpper(c) {
				return false
			}
		case i < 4:
			if !isDigit(c) {
				return false
			}
		default:
			if !isUpper(c) && !isDigit(c) {
				return false
			}
		}
	}
	return true
}

// IsOfferNumber matches "<customer digits>-<offer digits>".
func IsOfferNumber(s string) bool {
	sc := &scanner{s: s}
	return offerNumber(sc) && sc.done()
}

// IsOfferExtensionNumber matches an offer number followed by "-" and
// uppercase letters, e.g. "0608656-04-AB".
func IsOfferExtensionNumber(s string) bool {
	sc := &scanner{s: s}
	if !offerNumber(sc) || !sc.literal("-") {
		return false
	}
	letters := sc.until(func(r rune) bool { return r < 'A' || r > 'Z' })
	return letters != "" && sc.done()
}

func offerNumber(sc *scanner) bool {
	return sc.digits() != "" && sc.literal("-") && sc.digits() != ""
}
