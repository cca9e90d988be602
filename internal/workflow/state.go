package workflow

import (
	"fmt"
	"math/rand/v2"
	"strconv"
	"strings"
	"time"
)

type State int

const (
	StateIdle State = iota
	StateUploading
	StateInitializing
	StateReady
	StateQuerying
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateUploading:
		return "uploading"
	case StateInitializing:
		return "initializing"
	case StateReady:
		return "ready"
	case StateQuerying:
		return "querying"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Variant selects the backend contract used for queries.
type Variant int

const (
	// VariantCombined sends message, files, urls and session id in one GET.
	VariantCombined Variant = iota
	// VariantSessionQuery uploads and initializes a session, then asks with
	// one GET per query.
	VariantSessionQuery
	// VariantRegisterQuery is VariantSessionQuery with a POST /query ahead
	// of every GET.
	VariantRegisterQuery
)

func (v Variant) String() string {
	switch v {
	case VariantCombined:
		return "combined"
	case VariantSessionQuery:
		return "session-query"
	case VariantRegisterQuery:
		return "register-query"
	default:
		return "unknown"
	}
}

func ParseVariant(s string) (Variant, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "combined":
		return VariantCombined, nil
	case "session-query", "":
		return VariantSessionQuery, nil
	case "register-query":
		return VariantRegisterQuery, nil
	default:
		return 0, fmt.Errorf("unknown workflow variant %q", s)
	}
}

// RandomSessionID returns an integer id in [1, 2000].
func RandomSessionID() string {
	return strconv.Itoa(rand.IntN(2000) + 1)
}

// TimestampSessionID derives an id from the wall clock in milliseconds.
func TimestampSessionID(at time.Time) string {
	return "session_" + strconv.FormatInt(at.UnixMilli(), 10)
}
