package matcher

import (
	"net/url"
	"strings"

	"github.com/PuerkitoBio/purell"
)

// Domain of the platform itself. Links into the platform (relative community or user links)
// resolve to this.
const PlatformDomain = "reddit.com"

// A rule with this host matches every host.
const SentinelHost = "*"

type DomainRule struct {
	Host     string
	Wildcard bool
}

func trimWWW(host string) string {
	return strings.TrimPrefix(host, "www.")
}

// Parses moderator-entered domain entries. Entries are lower-cased and trimmed, a leading
// "www." is dropped, and "*.example.com" becomes a wildcard rule for example.com.
func ParseDomainRules(entries []string) []DomainRule {
	var rules []DomainRule
	for _, e := range entries {
		for _, d := range strings.Split(e, ",") {
			d = trimWWW(strings.ToLower(strings.TrimSpace(d)))
			if d == "" {
				continue
			}
			if strings.HasPrefix(d, "*.") {
				rules = append(rules, DomainRule{Host: strings.TrimPrefix(d, "*."), Wildcard: true})
			} else {
				rules = append(rules, DomainRule{Host: d})
			}
		}
	}
	return rules
}

func ParseDomainList(csv string) []DomainRule {
	return ParseDomainRules([]string{csv})
}

// Wildcard rules only match on a dot boundary: "*.bbc.co.uk" matches "news.bbc.co.uk" but not
// "notthebbc.co.uk".
func IsDomainInList(host string, rules []DomainRule) bool {
	for _, r := range rules {
		if r.Host == SentinelHost {
			return true
		}
		if host == r.Host {
			return true
		}
		if r.Wildcard && strings.HasSuffix(host, "."+r.Host) {
			return true
		}
	}
	return false
}

var platformPathPrefixes = []string{"/r/", "/u/", "/user/"}

// Extracts the (www-less) hostname from a link. Relative links to communities or users
// resolve to the platform domain; anything unparsable yields an empty string.
func DomainFromURL(raw string) string {
	raw = strings.TrimSpace(raw)
	for _, prefix := range platformPathPrefixes {
		if strings.HasPrefix(raw, prefix) {
			return PlatformDomain
		}
	}
	if raw == "" {
		return ""
	}
	norm, err := purell.NormalizeURLString(raw, purell.FlagsSafe|purell.FlagRemoveWWW)
	if err != nil {
		return ""
	}
	u, err := url.Parse(norm)
	if err != nil {
		return ""
	}
	return trimWWW(strings.ToLower(u.Hostname()))
}
