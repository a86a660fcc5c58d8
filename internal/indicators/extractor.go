package indicators

import (
	"net/mail"
	"net/netip"
	"net/url"
	"regexp"
	"sort"
	"strings"

	"golang.org/x/net/idna"
	"golang.org/x/net/publicsuffix"
)

// The patterns are heuristics. They accept trailing punctuation in URLs and
// only match full eight-hextet IPv6 addresses; compressed "::" forms are not
// recognized.
var (
	urlPattern  = regexp.MustCompile(`https?://(?:[a-zA-Z]|[0-9]|[$-_@.&+]|[!*\(\),]|(?:%[0-9a-fA-F][0-9a-fA-F]))+`)
	ipv4Pattern = regexp.MustCompile(`\b(?:(?:25[0-5]|2[0-4][0-9]|[01]?[0-9][0-9]?)\.){3}(?:25[0-5]|2[0-4][0-9]|[01]?[0-9][0-9]?)\b`)
	ipv6Pattern = regexp.MustCompile(`(?:[0-9a-fA-F]{1,4}:){7}[0-9a-fA-F]{1,4}`)
)

// trailingPunctuation is stripped from the end of extracted URLs
const trailingPunctuation = `.,;:!?)]}'">`

// Extractor finds URLs, IP addresses and domains in text
type Extractor struct{}

// NewExtractor creates a new indicator extractor
func NewExtractor() *Extractor {
	return &Extractor{}
}

// ExtractURLs returns every URL match in document order, duplicates included
func (e *Extractor) ExtractURLs(text string) []string {
	return urlPattern.FindAllString(text, -1)
}

// NormalizeURL trims trailing punctuation and lower-cases the scheme and host
func (e *Extractor) NormalizeURL(raw string) string {
	u := strings.TrimRight(strings.TrimSpace(raw), trailingPunctuation)

	sep := strings.Index(u, "://")
	if sep < 0 {
		return u
	}
	scheme := strings.ToLower(u[:sep])
	rest := u[sep+3:]

	hostEnd := strings.IndexAny(rest, "/?#")
	if hostEnd < 0 {
		hostEnd = len(rest)
	}
	return scheme + "://" + strings.ToLower(rest[:hostEnd]) + rest[hostEnd:]
}

// ExtractIPs returns the distinct IPv4 and full-form IPv6 addresses in text,
// in order of first occurrence. IPv6 addresses are rendered canonically.
func (e *Extractor) ExtractIPs(text string) []string {
	type match struct {
		pos   int
		value string
	}

	var matches []match
	for _, loc := range ipv4Pattern.FindAllStringIndex(text, -1) {
		matches = append(matches, match{pos: loc[0], value: text[loc[0]:loc[1]]})
	}
	for _, loc := range ipv6Pattern.FindAllStringIndex(text, -1) {
		matches = append(matches, match{pos: loc[0], value: canonicalIPv6(text[loc[0]:loc[1]])})
	}
	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].pos < matches[j].pos
	})

	seen := make(map[string]bool, len(matches))
	ips := make([]string, 0, len(matches))
	for _, m := range matches {
		if seen[m.value] {
			continue
		}
		seen[m.value] = true
		ips = append(ips, m.value)
	}
	return ips
}

// ExtractDomain returns the registrable domain of a URL, or the part after
// the first "@" of an email address. It returns "" when neither applies or
// when a URL host is an IP literal.
func (e *Extractor) ExtractDomain(urlOrEmail string) string {
	s := strings.TrimSpace(urlOrEmail)
	if s == "" {
		return ""
	}

	if hasScheme(s) {
		return registrableDomain(hostOf(s))
	}

	if at := strings.Index(s, "@"); at >= 0 {
		addr := mailboxAddress(s)
		at = strings.Index(addr, "@")
		if at < 0 {
			return ""
		}
		domain := addr[at+1:]
		if end := strings.IndexAny(domain, "> \t\r\n;,\"'"); end >= 0 {
			domain = domain[:end]
		}
		return strings.ToLower(strings.TrimSuffix(domain, "."))
	}

	return ""
}

// mailboxAddress reduces a mailbox such as `"Name" <user@host>` to its
// address so a display name cannot supply the domain. Input that does not
// parse is cut to its last <...> part, or returned unchanged.
func mailboxAddress(s string) string {
	if addr, err := mail.ParseAddress(s); err == nil {
		return addr.Address
	}
	if open := strings.LastIndex(s, "<"); open >= 0 {
		if end := strings.Index(s[open:], ">"); end > 1 {
			return strings.TrimSpace(s[open+1 : open+end])
		}
	}
	return s
}

func hasScheme(s string) bool {
	sep := strings.Index(s, "://")
	if sep <= 0 {
		return false
	}
	for i, r := range s[:sep] {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z':
		case i > 0 && (r >= '0' && r <= '9' || r == '+' || r == '-' || r == '.'):
		default:
			return false
		}
	}
	return true
}

// hostOf returns the host of a URL without userinfo or port
func hostOf(s string) string {
	if u, err := url.Parse(s); err == nil {
		return u.Hostname()
	}

	rest := s[strings.Index(s, "://")+3:]
	if end := strings.IndexAny(rest, "/?#"); end >= 0 {
		rest = rest[:end]
	}
	if at := strings.LastIndex(rest, "@"); at >= 0 {
		rest = rest[at+1:]
	}
	if strings.HasPrefix(rest, "[") {
		if end := strings.Index(rest, "]"); end >= 0 {
			return rest[1:end]
		}
		return ""
	}
	if colon := strings.LastIndex(rest, ":"); colon >= 0 {
		rest = rest[:colon]
	}
	return rest
}

func registrableDomain(host string) string {
	host = strings.TrimSuffix(strings.ToLower(host), ".")
	if host == "" {
		return ""
	}
	if _, err := netip.ParseAddr(host); err == nil {
		return ""
	}

	ascii, err := idna.Lookup.ToASCII(host)
	if err != nil {
		// underscores and other STD3 violations still occur in the wild
		ascii = host
	}
	domain, err := publicsuffix.EffectiveTLDPlusOne(ascii)
	if err != nil {
		return ""
	}
	return domain
}

func canonicalIPv6(s string) string {
	addr, err := netip.ParseAddr(s)
	if err != nil {
		return strings.ToLower(s)
	}
	return addr.String()
}
