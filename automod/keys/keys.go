// Store key names and retention periods shared by every automod component.
//
// All keys are derived from a single prefix, so several deployments can share one redis
// database, and tests can inject their own namespace.
package keys

import (
	"strings"
	"time"
)

const (
	// positive verdicts are kept briefly so that appeals and approvals are picked up quickly
	VerdictTTLShort = time.Hour
	// clean verdicts are kept longer, to reduce history fetches for regular participants
	VerdictTTLLong = 12 * time.Hour

	AlreadyCheckedTTL = 6 * time.Hour
	ItemReportedTTL   = 7 * 24 * time.Hour
	BlockReportedTTL  = 7 * 24 * time.Hour
	SecondCheckedTTL  = 28 * 24 * time.Hour
	AppModOfTTL       = 7 * 24 * time.Hour

	DebounceGuardTTL = 30 * time.Second
	LivenessGuardTTL = time.Minute
)

type Keys struct {
	Prefix string
}

func New(prefix string) *Keys {
	return &Keys{Prefix: strings.TrimSuffix(prefix, ":")}
}

func (k *Keys) key(parts ...string) string {
	return k.Prefix + ":" + strings.Join(parts, ":")
}

// Usernames are case-insensitive on the platform.
func NormUser(user string) string {
	return strings.ToLower(user)
}

func (k *Keys) PrevBanned(user string) string { return k.key("prevbanned", NormUser(user)) }
func (k *Keys) Approvals() string { return k.key("approvals") }
func (k *Keys) Replies(user string) string { return k.key("replies", NormUser(user)) }
func (k *Keys) NoteAdded(user string) string { return k.key("note", NormUser(user)) }
func (k *Keys) BlockNoteAdded(user string) string { return k.key("blocknote", NormUser(user)) }
func (k *Keys) BlockReported(user string) string { return k.key("blockreported", NormUser(user)) }
func (k *Keys) Exempt(user string) string { return k.key("exempt", NormUser(user)) }
func (k *Keys) SecondChecked(user string) string { return k.key("secondchecked", NormUser(user)) }

func (k *Keys) AlreadyChecked(target string) string { return k.key("checked", target) }
func (k *Keys) ItemReported(target string) string { return k.key("reported", target) }

func (k *Keys) AppModOf(community string) string {
	return k.key("appmodof", strings.ToLower(community))
}

func (k *Keys) DebounceQueue() string { return k.key("queue", "debounce") }
func (k *Keys) DebounceRecentlyRan() string { return k.key("guard", "debounce") }
func (k *Keys) SecondCheckQueue() string { return k.key("queue", "secondcheck") }
func (k *Keys) LivenessQueue() string { return k.key("queue", "liveness") }
func (k *Keys) LivenessRecentlyRan() string { return k.key("guard", "liveness") }
func (k *Keys) LivenessInterval() string { return k.key("liveness", "interval") }
func (k *Keys) LivenessPopulated() string { return k.key("liveness", "populated") }
func (k *Keys) ConfigWarned() string { return k.key("configwarned") }

// Every store key holding state about a single user. Used when purging deleted accounts; the
// cached verdict lives in the cache store and is purged there.
func (k *Keys) UserKeys(user string) []string {
	return []string{
		k.PrevBanned(user),
		k.Replies(user),
		k.NoteAdded(user),
		k.BlockNoteAdded(user),
		k.BlockReported(user),
		k.Exempt(user),
		k.SecondChecked(user),
	}
}
