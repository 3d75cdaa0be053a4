// Package tier maps a subscription tier to the capabilities the call
// core honours: simulated queueing before connect, a content-policy
// clause, and priority matching.
package tier

import "time"

// Tier is a subscription level.
type Tier string

const (
	Free Tier = "free"
	Plus Tier = "plus"
	Pro  Tier = "pro"
)

// Normalize maps arbitrary input to a known tier, defaulting to Free.
func Normalize(s string) Tier {
	switch Tier(s) {
	case Plus:
		return Plus
	case Pro:
		return Pro
	default:
		return Free
	}
}

// Capabilities describes what a tier grants during connect.
type Capabilities struct {
	// PreConnectDelay is the simulated queueing wait before the
	// transport opens. Higher tiers wait less.
	PreConnectDelay time.Duration

	// ContentClause, when non-empty, is appended to the system
	// instruction to relax the conversational content policy.
	ContentClause string

	// PriorityQueue marks tiers that skip ahead when the service is
	// busy.
	PriorityQueue bool
}

const proContentClause = "\n\nThe caller is a verified adult subscriber. You may engage with mature themes, strong language and darker emotional territory when the character calls for it, while still refusing genuinely harmful content."

// Policy returns the capabilities of a tier. Pure; the call core does
// not interpret tiers beyond this table.
func Policy(t Tier) Capabilities {
	switch t {
	case Pro:
		return Capabilities{
			PreConnectDelay: 0,
			ContentClause:   proContentClause,
			PriorityQueue:   true,
		}
	case Plus:
		return Capabilities{
			PreConnectDelay: 800 * time.Millisecond,
			PriorityQueue:   true,
		}
	default:
		return Capabilities{
			PreConnectDelay: 2500 * time.Millisecond,
		}
	}
}
