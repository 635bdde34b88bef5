package telegram

import "strings"

// markdownV2Escaper escapes every MarkdownV2 metacharacter by prefixing a
// backslash. The backslash itself is part of the set and listed first.
var markdownV2Escaper = strings.NewReplacer(
	`\`, `\\`,
	`_`, `\_`,
	`*`, `\*`,
	`[`, `\[`,
	`]`, `\]`,
	`(`, `\(`,
	`)`, `\)`,
	`~`, `\~`,
	"`", "\\`",
	`>`, `\>`,
	`#`, `\#`,
	`+`, `\+`,
	`-`, `\-`,
	`=`, `\=`,
	`|`, `\|`,
	`{`, `\{`,
	`}`, `\}`,
	`.`, `\.`,
	`!`, `\!`,
)

// EscapeMarkdownV2 escapes the closed set of Telegram MarkdownV2
// metacharacters: _ * [ ] ( ) ~ ` > # + - = | { } . ! and backslash.
// No other transformation is applied.
func EscapeMarkdownV2(text string) string {
	return markdownV2Escaper.Replace(text)
}
