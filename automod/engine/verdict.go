package engine

// The outcome of evaluating one user. A verdict is never modified after it is returned.
type Verdict struct {
	MatchedCommunities []string `json:"matchedCommunities"`
	// includes domains matched through profile social links
	MatchedDomains  []string `json:"matchedDomains"`
	SocialURLs      []string `json:"socialUrls,omitempty"`
	LatestPermalink string   `json:"latestPermalink,omitempty"`
	// the user is over threshold and not exempt; the match lists are only filled in when true
	Enforceable bool `json:"enforceable"`
	// the re-ban policy allows enforcing against this user again (always true for users
	// never enforced against before)
	Bannable bool `json:"bannable"`
	// advisory only: the user may be blocking the app account
	PossiblyBlocking bool `json:"possiblyBlocking"`
}

func (v *Verdict) HasMatches() bool {
	return len(v.MatchedCommunities) > 0 || len(v.MatchedDomains) > 0
}

func cleanVerdict() *Verdict {
	return &Verdict{
		MatchedCommunities: []string{},
		MatchedDomains:     []string{},
	}
}

type EvalOptions struct {
	// skip the verdict cache read (the fresh verdict is still written back)
	BypassCache bool
	// inspect only: no second check is queued and the verdict is not written to the cache
	ReadOnly bool
}
