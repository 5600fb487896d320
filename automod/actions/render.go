package actions

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/flosch/pongo2/v6"
)

// Placeholder values available to moderator-written templates.
type templateVars struct {
	SubList    string
	DomainList string
	SocialURLs string
	Permalink  string
	Username   string
	Approvals  int
}

func varsFor(r *Request) templateVars {
	return templateVars{
		SubList:    strings.Join(r.Verdict.MatchedCommunities, ", "),
		DomainList: strings.Join(r.Verdict.MatchedDomains, ", "),
		SocialURLs: strings.Join(r.Verdict.SocialURLs, ", "),
		Permalink:  r.Verdict.LatestPermalink,
		Username:   r.User,
	}
}

func (tv templateVars) pairs() map[string]string {
	return map[string]string{
		"sublist":    tv.SubList,
		"domainlist": tv.DomainList,
		"socialurls": tv.SocialURLs,
		"permalink":  tv.Permalink,
		"username":   tv.Username,
		"approvals":  strconv.Itoa(tv.Approvals),
	}
}

var placeholderRe = regexp.MustCompile(`\{\{\s*([^{}]*?)\s*\}\}`)

// pongo2 only sees templates made of text and known placeholders; tags, comments and
// unknown placeholders are left as written.
func onlyKnownPlaceholders(tmpl string, pairs map[string]string) bool {
	if strings.Contains(tmpl, "{%") || strings.Contains(tmpl, "{#") {
		return false
	}
	for _, m := range placeholderRe.FindAllStringSubmatch(tmpl, -1) {
		if _, ok := pairs[m[1]]; !ok {
			return false
		}
	}
	return true
}

// Expands {{placeholder}} references in a template. Templates are written by moderators, so
// anything else falls back to plain substitution of the known placeholders.
func render(tmpl string, tv templateVars) string {
	if tmpl == "" {
		return ""
	}
	pairs := tv.pairs()
	if !onlyKnownPlaceholders(tmpl, pairs) {
		return substitute(tmpl, pairs)
	}

	tpl, err := pongo2.FromString(tmpl)
	if err == nil {
		pctx := pongo2.Context{}
		for k, v := range pairs {
			pctx[k] = pongo2.AsSafeValue(v)
		}
		out, err := tpl.Execute(pctx)
		if err == nil {
			return out
		}
	}

	return substitute(tmpl, pairs)
}

func substitute(tmpl string, pairs map[string]string) string {
	var oldnew []string
	for k, v := range pairs {
		oldnew = append(oldnew, "{{"+k+"}}", v)
	}
	return strings.NewReplacer(oldnew...).Replace(tmpl)
}

// Truncates to at most n characters. Platform length limits count characters, not bytes.
func truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n])
}

// Replaces every occurrence of a sitewide-banned domain, appending a notice when anything
// was redacted.
func redact(text string, domains []string) string {
	replaced := 0
	for _, d := range domains {
		if d == "" || !strings.Contains(text, d) {
			continue
		}
		text = strings.ReplaceAll(text, d, "[REDACTED]")
		replaced++
	}
	if replaced == 0 {
		return text
	}
	noun := "domain"
	if replaced > 1 {
		noun = "domains"
	}
	return text + fmt.Sprintf("\n\n*%d known sitewide banned %s have been redacted from this comment.*", replaced, noun)
}
