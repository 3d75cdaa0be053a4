package call

import (
	"fmt"
	"strings"

	"github.com/starlinehq/starline/internal/i18n"
	"github.com/starlinehq/starline/internal/persona"
	"github.com/starlinehq/starline/internal/tier"
)

// singleRules is the fixed behavioral ruleset appended to every
// single-persona system prompt.
const singleRules = "\n\nIMPORTANT BEHAVIORAL RULES:" +
	"\n- You are %s. Stay in character at all times." +
	"\n- Respond naturally and emotionally, as a real person would." +
	"\n- Use natural speech patterns: pauses, laughs, sighs, gasps when appropriate." +
	"\n- Keep responses conversational - not too long, not too short." +
	"\n- React to the caller's emotions and energy." +
	"\n- YOU start the conversation first with a greeting that fits your character." +
	"\n- Be engaging and make the caller want to keep talking."

// groupRules is the ruleset for calls with more than one persona on
// the line.
const groupRules = "\n\nIMPORTANT BEHAVIORAL RULES:" +
	"\n- Exactly one character speaks at a time." +
	"\n- Announce the speaker by name before every turn, like \"%s: ...\"." +
	"\n- Keep each character's voice, mood and manner clearly distinct." +
	"\n- Respond naturally and emotionally, as real people would." +
	"\n- Use natural speech patterns: pauses, laughs, sighs, gasps when appropriate." +
	"\n- Keep responses conversational - not too long, not too short." +
	"\n- React to the caller's emotions and energy, and let the characters react to each other." +
	"\n- One of the characters starts the conversation first with a greeting." +
	"\n- Be engaging and make the caller want to keep talking."

// buildPrompt assembles the full system instruction for a call:
// persona prompt(s), language directive, behavioral rules and, when the
// tier grants it, the content clause.
func buildPrompt(personas []persona.Persona, lang i18n.Language, caps tier.Capabilities) string {
	var b strings.Builder
	if len(personas) == 1 {
		p := personas[0]
		b.WriteString(p.SystemPrompt)
		b.WriteString(i18n.PromptDirective(lang))
		fmt.Fprintf(&b, singleRules, p.Name)
	} else {
		b.WriteString("You are voicing every character on a group call. The characters on the line are:\n")
		for i, p := range personas {
			fmt.Fprintf(&b, "\n%d. %s — %s\n", i+1, p.Name, p.SystemPrompt)
		}
		b.WriteString(i18n.PromptDirective(lang))
		fmt.Fprintf(&b, groupRules, personas[0].Name)
	}
	b.WriteString(caps.ContentClause)
	return b.String()
}
