package changes

import "strings"

// The characters MarkdownV2 treats as markup.
const markdownSpecials = "_*[]()~`>#+-=|{}.!"

var htmlReplacer = strings.NewReplacer(
	"&", "&amp;",
	"<", "&lt;",
	">", "&gt;",
)

// EscapeMarkdown backslash-prefixes every MarkdownV2 special character in
// the input.
func EscapeMarkdown(input string) string {
	var escaped strings.Builder
	escaped.Grow(len(input))
	for _, r := range input {
		if strings.ContainsRune(markdownSpecials, r) {
			escaped.WriteByte('\\')
		}
		escaped.WriteRune(r)
	}
	return escaped.String()
}

// EscapeHTML entity-escapes the three characters Telegram's HTML parse mode
// reserves.
func EscapeHTML(input string) string {
	return htmlReplacer.Replace(input)
}
