package syncer

import "fmt"

type Kind int

const (
	NothingToSync Kind = iota
	Synced
	PartialFailure
	NetworkFailure
	ServerRejected
)

func (k Kind) String() string {
	switch k {
	case NothingToSync:
		return "nothing_to_sync"
	case Synced:
		return "synced"
	case PartialFailure:
		return "partial_failure"
	case NetworkFailure:
		return "network_failure"
	case ServerRejected:
		return "server_rejected"
	default:
		return "unknown"
	}
}

// Outcome is the result of one sync attempt. Only Synced changes the local
// queue; every other kind leaves it exactly as it was.
type Outcome struct {
	Kind       Kind
	Accepted   int    // Synced
	Reason     string // PartialFailure, NetworkFailure, ServerRejected (response body)
	StatusCode int    // ServerRejected
}

// Message renders the outcome as the status line shown after a sign-in.
func (o Outcome) Message() string {
	switch o.Kind {
	case NothingToSync:
		return "Nothing to sync"
	case Synced:
		if o.Accepted == 1 {
			return "1 sign-in synced with server"
		}
		return fmt.Sprintf("%d sign-ins synced with server", o.Accepted)
	case PartialFailure:
		return "Sync incomplete: " + o.Reason
	case NetworkFailure:
		return "Failed to sync data with server, will retry on next sign-in"
	case ServerRejected:
		if o.Reason == "" {
			return fmt.Sprintf("Server rejected sync (HTTP %d)", o.StatusCode)
		}
		return fmt.Sprintf("Server rejected sync (HTTP %d): %s", o.StatusCode, o.Reason)
	default:
		return o.Kind.String()
	}
}
