package answer

import (
	"regexp"
	"strings"
)

// Intent classifies a query as conversational small talk or a question that
// needs document grounding.
type Intent int

const (
	IntentDocumentGrounded Intent = iota
	IntentConversational
)

func (i Intent) String() string {
	if i == IntentConversational {
		return "conversational"
	}
	return "document_grounded"
}

var conversationalPatterns = []struct {
	re       *regexp.Regexp
	response string
}{
	{
		re:       regexp.MustCompile(`^(hi|hey|hello|good (morning|afternoon|evening))\b`),
		response: "Hello! I can answer questions about the documents you have uploaded. What would you like to know?",
	},
	{
		re:       regexp.MustCompile(`^how are you\b`),
		response: "I'm a document assistant, so I'm always ready to help. Do you have a question about your documents?",
	},
	{
		re:       regexp.MustCompile(`^(who are you|what are you|what can you do|introduce yourself)\b`),
		response: "I'm an assistant that answers questions grounded in your uploaded documents. Upload a PDF and ask me about its contents.",
	},
	{
		re:       regexp.MustCompile(`^(thanks|thank you|thx)\b`),
		response: "You're welcome! Ask anytime if you have more questions about your documents.",
	},
	{
		re:       regexp.MustCompile(`^(bye|goodbye|see you|good night)\b`),
		response: "Goodbye! Come back whenever you have questions about your documents.",
	},
}

var punctuation = regexp.MustCompile(`[^\p{L}\p{N}\s]`)

func normalizeQuery(query string) string {
	q := strings.ToLower(strings.TrimSpace(query))
	q = punctuation.ReplaceAllString(q, "")
	return strings.Join(strings.Fields(q), " ")
}

// Classify decides the intent with cheap local pattern matching; it never
// calls the generation service.
func Classify(query string) Intent {
	if conversationalResponse(query) != "" {
		return IntentConversational
	}
	return IntentDocumentGrounded
}

// conversationalResponse returns the fixed policy response for a
// conversational query, or "" if none matches.
func conversationalResponse(query string) string {
	q := normalizeQuery(query)
	for _, p := range conversationalPatterns {
		if p.re.MatchString(q) {
			return p.response
		}
	}
	return ""
}
