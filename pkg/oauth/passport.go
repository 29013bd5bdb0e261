package oauth

import (
	"strconv"
	"strings"
)

// PassportSignature carries the signature value and its algorithm tag.
type PassportSignature struct {
	Algorithm string
	Value     string
}

// Passport is the token passport embedded in SOAP envelope headers.
type Passport struct {
	Account     string
	ConsumerKey string
	Token       string
	Nonce       string
	Timestamp   int64
	Signature   PassportSignature
}

// Passport creates a freshly signed token passport. The signed base string is
// ACCOUNT&consumerKey&token&nonce&timestamp. Every call draws a new nonce and
// timestamp.
func (s *Signer) Passport() Passport {
	p := Passport{
		Account:     s.Realm(),
		ConsumerKey: s.creds.ConsumerKey,
		Token:       s.creds.TokenID,
		Nonce:       s.nonce(),
		Timestamp:   s.now().Unix(),
	}

	base := strings.Join([]string{
		p.Account,
		p.ConsumerKey,
		p.Token,
		p.Nonce,
		strconv.FormatInt(p.Timestamp, 10),
	}, "&")

	p.Signature = PassportSignature{
		Algorithm: SignatureMethod,
		Value:     s.signature(base),
	}
	return p
}

// PercentEncode encodes s per RFC 5849 section 3.6: every byte outside
// A-Z a-z 0-9 - . _ ~ becomes %XX with uppercase hex digits. Multi-byte UTF-8
// sequences are encoded byte by byte.
func PercentEncode(s string) string {
	var n int
	for i := 0; i < len(s); i++ {
		if !unreserved(s[i]) {
			n++
		}
	}
	if n == 0 {
		return s
	}

	const hex = "0123456789ABCDEF"
	buf := make([]byte, 0, len(s)+2*n)
	for i := 0; i < len(s); i++ {
		c := s[i]
		if unreserved(c) {
			buf = append(buf, c)
			continue
		}
		buf = append(buf, '%', hex[c>>4], hex[c&0x0F])
	}
	return string(buf)
}

func unreserved(c byte) bool {
	switch {
	case 'A' <= c && c <= 'Z', 'a' <= c && c <= 'z', '0' <= c && c <= '9':
		return true
	case c == '-', c == '.', c == '_', c == '~':
		return true
	}
	return false
}
