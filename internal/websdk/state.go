package websdk

// State tracks the card-field lifecycle of a checkout session.
//
// Uninitialized -> SDKLoading -> SDKReady -> FieldAttached ->
// (Tokenizing -> Tokenized | TokenizationFailed) -> FieldAttached, repeatable.
// Initialization transitions run once per client; tokenization may be
// retried indefinitely from FieldAttached.
type State int

const (
	Uninitialized State = iota
	SDKLoading
	SDKReady
	FieldAttached
	Tokenizing
	Tokenized
	TokenizationFailed
)

func (s State) String() string {
	switch s {
	case Uninitialized:
		return "uninitialized"
	case SDKLoading:
		return "sdk_loading"
	case SDKReady:
		return "sdk_ready"
	case FieldAttached:
		return "field_attached"
	case Tokenizing:
		return "tokenizing"
	case Tokenized:
		return "tokenized"
	case TokenizationFailed:
		return "tokenization_failed"
	default:
		return "unknown"
	}
}
