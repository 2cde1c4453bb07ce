// Package extract pulls anti-forgery tokens, activation links and API
// credentials out of HTML pages and email bodies. Every function reports
// absence with a false second return value and never fails otherwise.
package extract

import (
	"regexp"
	"strings"

	"golang.org/x/net/html/atom"
)

// ActivationMarker is the path segment every activation link contains.
const ActivationMarker = "/activate/"

// CredentialInputID is the id of the input holding the API key on the
// account page.
const CredentialInputID = "api_key"

var (
	activationURLPattern = regexp.MustCompile(`https?://\S*/activate/[A-Za-z0-9]+`)
	credentialPattern    = regexp.MustCompile(`\b[0-9A-Fa-f]{32}\b`)
)

// Token returns the non-empty value of the first input named fieldName.
func Token(raw, fieldName string) (string, bool) {
	return FirstOf(NewDocument(raw), InputValue("name", fieldName))
}

// ActivationLink returns the activation URL in an email body. Anchors are
// preferred over URLs found in the rendered text.
func ActivationLink(raw string) (string, bool) {
	return FirstOf(NewDocument(raw),
		AnchorHrefContaining(ActivationMarker),
		TextMatch(activationURLPattern),
	)
}

// Credential returns the API key on an account page. The api_key input is
// preferred over any 32-hex-character run elsewhere in the page.
func Credential(raw string) (string, bool) {
	return FirstOf(NewDocument(raw),
		InputValue("id", CredentialInputID),
		RawMatch(credentialPattern),
	)
}

// InputValue finds the first input whose attr equals want and returns its
// value attribute when non-empty.
func InputValue(attr, want string) Strategy {
	return func(doc *Document) (string, bool) {
		for _, n := range doc.Elements(atom.Input) {
			if got, ok := Attr(n, attr); !ok || got != want {
				continue
			}
			value, ok := Attr(n, "value")
			if !ok || value == "" {
				return "", false
			}
			return value, true
		}
		return "", false
	}
}

// AnchorHrefContaining returns the trimmed href of the first anchor whose
// href contains marker.
func AnchorHrefContaining(marker string) Strategy {
	return func(doc *Document) (string, bool) {
		for _, n := range doc.Elements(atom.A) {
			href, ok := Attr(n, "href")
			if !ok {
				continue
			}
			href = strings.TrimSpace(href)
			if strings.Contains(href, marker) {
				return href, true
			}
		}
		return "", false
	}
}

// TextMatch returns the first match of re in the rendered text.
func TextMatch(re *regexp.Regexp) Strategy {
	return func(doc *Document) (string, bool) {
		if m := re.FindString(doc.Text()); m != "" {
			return m, true
		}
		return "", false
	}
}

// RawMatch returns the first match of re in the unparsed blob.
func RawMatch(re *regexp.Regexp) Strategy {
	return func(doc *Document) (string, bool) {
		if m := re.FindString(doc.Raw()); m != "" {
			return m, true
		}
		return "", false
	}
}
