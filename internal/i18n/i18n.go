// Package i18n supplies the language-dependent strings the call core
// needs: the prompt language directive, the opening greet trigger, and
// localized user-facing error messages.
package i18n

// Language selects the conversation and UI language.
type Language string

const (
	English Language = "en"
	Korean  Language = "ko"
)

// Normalize maps arbitrary input to a supported language, defaulting
// to English.
func Normalize(s string) Language {
	switch Language(s) {
	case Korean:
		return Korean
	default:
		return English
	}
}

// Key identifies one localized user-facing error message.
type Key int

const (
	KeyMissingCredential Key = iota
	KeyMicPermissionDenied
	KeyMicUnavailable
	KeyTransportFailed
	KeyHighTraffic
)

var messages = map[Language]map[Key]string{
	English: {
		KeyMissingCredential:   "Please enter your Gemini API key.",
		KeyMicPermissionDenied: "Microphone access was denied. Allow microphone access and try again.",
		KeyMicUnavailable:      "No microphone is available. Check your audio input device.",
		KeyTransportFailed:     "Connection error. Check your API key and try again.",
		KeyHighTraffic:         "Lines are busy due to high traffic. Please try again in a moment.",
	},
	Korean: {
		KeyMissingCredential:   "API 키를 입력해주세요.",
		KeyMicPermissionDenied: "마이크 권한이 거부되었습니다. 마이크 접근을 허용하고 다시 시도하세요.",
		KeyMicUnavailable:      "사용할 수 있는 마이크가 없습니다. 오디오 입력 장치를 확인해주세요.",
		KeyTransportFailed:     "연결 오류. API 키를 확인하고 다시 시도하세요.",
		KeyHighTraffic:         "현재 접속량이 많아 연결이 어렵습니다. 잠시 후 다시 시도해주세요.",
	},
}

// Message returns the localized text for key, falling back to English
// for unsupported languages.
func Message(lang Language, key Key) string {
	if m, ok := messages[lang]; ok {
		if s, ok := m[key]; ok {
			return s
		}
	}
	return messages[English][key]
}

// PromptDirective returns the language instruction appended to every
// system prompt so the model answers in the caller's language.
func PromptDirective(lang Language) string {
	switch lang {
	case Korean:
		return "\n\n중요: 반드시 한국어로만 대답하세요. 모든 대화, 반응, 감정 표현, 대화는 자연스러운 한국어로 해야 합니다. 존댓말과 반말을 캐릭터에 맞게 적절히 사용하세요."
	default:
		return "\n\nIMPORTANT: You MUST respond entirely in English. All your dialogue, reactions, emotional expressions, and conversations must be in natural English."
	}
}

// GreetTrigger returns the synthetic opening turn that prompts the
// model to speak first once the call is connected.
func GreetTrigger(lang Language) string {
	switch lang {
	case Korean:
		return "[통화가 연결되었습니다. 캐릭터에 맞게 한국어로 인사하세요.]"
	default:
		return "[Call connected. Greet the caller in character.]"
	}
}
