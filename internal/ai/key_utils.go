package ai

import "strings"

// normalizeAPIKey cleans up an API key copied into an env file: surrounding
// quotes, a "Bearer " prefix, escaped or literal newlines, and any byte that
// is not visible ASCII.
func normalizeAPIKey(raw string) string {
	key := strings.Trim(strings.TrimSpace(raw), `"'`)
	key = strings.TrimSpace(key)

	const bearer = "bearer "
	if len(key) >= len(bearer) && strings.EqualFold(key[:len(bearer)], bearer) {
		key = key[len(bearer):]
	}

	key = strings.NewReplacer(`\r`, "", `\n`, "", `\t`, "").Replace(key)

	var b strings.Builder
	b.Grow(len(key))
	for i := 0; i < len(key); i++ {
		if c := key[i]; c >= 33 && c <= 126 {
			b.WriteByte(c)
		}
	}
	return b.String()
}
