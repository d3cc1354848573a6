package rendercache

// Self-heal reasons passed to Hooks.SelfHeal.
const (
	ReasonCorrupt     = "corrupt"
	ReasonExpired     = "expired"
	ReasonInvalidated = "invalidated"
	ReasonValueDecode = "value_decode"
)

// Hooks are callbacks for high-signal store events.
// They run inline on the read and write paths, so implementations must be cheap and
// must not block. Wrap slow sinks with hooks/async.
type Hooks interface {
	// SelfHeal is called after the store deleted an entry it refused to serve.
	// reason is one of the Reason* constants.
	SelfHeal(storageKey, reason string)

	// ProviderSetRejected is called when the provider returned ok=false on Set
	// (admission policy or memory pressure).
	ProviderSetRejected(storageKey string)

	// TagSnapshotError is called when tag versions could not be read.
	// count is the number of tags involved.
	TagSnapshotError(count int, err error)

	// TagBumpError is called for every tag whose counter could not be bumped.
	TagBumpError(tag string, err error)

	// StaleWriteSkipped is called when SetWithVersions dropped a write because a tag
	// was invalidated after the versions were observed.
	StaleWriteSkipped(storageKey string)
}

type NopHooks struct{}

func (NopHooks) SelfHeal(string, string)     {}
func (NopHooks) ProviderSetRejected(string)  {}
func (NopHooks) TagSnapshotError(int, error) {}
func (NopHooks) TagBumpError(string, error)  {}
func (NopHooks) StaleWriteSkipped(string)    {}
