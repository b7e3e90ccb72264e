package agent

import (
	"regexp"

	"github.com/daybridge/daybridge/intent"
)

// proposalRe gates action classification: a reply only becomes an
// action when the assistant explicitly offers to do something.
var proposalRe = regexp.MustCompile(`(?i)\b(i can|i'll|i will|i recommend|i suggest|shall i|would you like me to|let me)\b`)

// Checked in order; the first match wins.
var actionVerbRes = []struct {
	re         *regexp.Regexp
	actionType intent.ActionType
}{
	{regexp.MustCompile(`(?i)\b(move|reschedule|shift|push back|push)\b`), intent.ActionMove},
	{regexp.MustCompile(`(?i)\b(cancel|remove|delete|drop)\b`), intent.ActionCancel},
	{regexp.MustCompile(`(?i)\b(add|schedule|block|book|create)\b`), intent.ActionAdd},
}

// classifyReply maps a completion reply to an action type. Advisory
// replies with no proposal phrasing, and proposals with no recognized
// verb, stay plain messages.
func classifyReply(reply string) (intent.ActionType, bool) {
	if !proposalRe.MatchString(reply) {
		return "", false
	}
	for _, verb := range actionVerbRes {
		if verb.re.MatchString(reply) {
			return verb.actionType, true
		}
	}
	return "", false
}
