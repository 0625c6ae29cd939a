package utils

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

var (
	addressPattern   = regexp.MustCompile(`[\w.+-]+@[\w-]+(?:\.[\w-]+)+`)
	replyPrefix      = regexp.MustCompile(`(?i)^\s*((re|fw|fwd|aw|sv)\s*(\[\d+\])?\s*:\s*)+`)
	quoteHeader      = regexp.MustCompile(`(?m)^On .+wrote:\s*$`)
	htmlTag          = regexp.MustCompile(`(?s)<[^>]*>`)
	whitespaceRun    = regexp.MustCompile(`[ \t]+`)
	blankLineRun     = regexp.MustCompile(`\n{3,}`)
	autoReplySubject = regexp.MustCompile(`(?i)(out of (the )?office|auto(matic)?[- ]?reply|autoreply|away from (the )?office|on vacation|delivery status notification|undeliverable|mail delivery (failed|subsystem)|returned mail)`)
)

// ExtractAddress returns the lowercased email address inside a header value
// such as `"Jane Doe" <jane@example.com>`, or "" if none is present.
func ExtractAddress(header string) string {
	return strings.ToLower(addressPattern.FindString(header))
}

// NormalizeSubject strips reply/forward prefixes.
func NormalizeSubject(subject string) string {
	return strings.TrimSpace(replyPrefix.ReplaceAllString(subject, ""))
}

// IsReplySubject reports whether the subject carries a reply prefix.
func IsReplySubject(subject string) bool {
	return replyPrefix.MatchString(subject)
}

// LooksAutomated reports whether the subject belongs to an auto-responder or a bounce.
func LooksAutomated(subject string) bool {
	return autoReplySubject.MatchString(subject)
}

// StripHTML turns an HTML body into rough plain text.
func StripHTML(html string) string {
	text := strings.NewReplacer("<br>", "\n", "<br/>", "\n", "<br />", "\n", "</p>", "\n", "&nbsp;", " ", "&amp;", "&").Replace(html)
	text = htmlTag.ReplaceAllString(text, "")
	text = whitespaceRun.ReplaceAllString(text, " ")
	return strings.TrimSpace(blankLineRun.ReplaceAllString(text, "\n\n"))
}

// StripQuotedReply keeps only the newly written part of a reply body.
func StripQuotedReply(body string) string {
	if loc := quoteHeader.FindStringIndex(body); loc != nil {
		body = body[:loc[0]]
	}
	var kept []string
	for _, line := range strings.Split(body, "\n") {
		if strings.HasPrefix(strings.TrimSpace(line), ">") {
			continue
		}
		kept = append(kept, line)
	}
	return strings.TrimSpace(strings.Join(kept, "\n"))
}

// Truncate shortens s to at most max runes.
func Truncate(s string, max int) string {
	if max <= 0 || utf8.RuneCountInString(s) <= max {
		return s
	}
	r := []rune(s)
	return string(r[:max])
}
