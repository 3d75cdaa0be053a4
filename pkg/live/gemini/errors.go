package gemini

import (
	"errors"
	"fmt"
	"strings"

	"github.com/coder/websocket"
)

// ErrOverloaded marks a session that the service refused or dropped
// because of capacity or quota limits. Callers match it with errors.Is.
var ErrOverloaded = errors.New("gemini: service overloaded")

// overloadSignatures are lowercase substrings that mark a capacity or
// quota failure. The live endpoint reports these inconsistently across
// close reasons, HTTP upgrade failures and in-band error messages, so
// classification goes by message text.
var overloadSignatures = []string{
	"429",
	"quota",
	"resource_exhausted",
	"rate limit",
	"overloaded",
	"unavailable",
}

// classifyCloseError maps a transport failure to ErrOverloaded when it
// carries a capacity signature, otherwise wraps it as a plain transport
// error.
func classifyCloseError(err error) error {
	if err == nil {
		return nil
	}

	// A 1011 policy close is how the endpoint sheds load mid-session.
	if websocket.CloseStatus(err) == websocket.StatusInternalError {
		return fmt.Errorf("%w: %v", ErrOverloaded, err)
	}

	msg := strings.ToLower(err.Error())
	for _, sig := range overloadSignatures {
		if strings.Contains(msg, sig) {
			return fmt.Errorf("%w: %v", ErrOverloaded, err)
		}
	}
	return fmt.Errorf("gemini: transport: %w", err)
}
