package tutorialranker

import (
	"regexp"
	"strings"
)

// DefaultTopic is used when a request names nothing searchable.
const DefaultTopic = "programming"

var (
	requestPrefix = regexp.MustCompile(`^(create|generate|make|build)\s+(a\s+)?(roadmap\s+)?for\s+`)
	requestSuffix = regexp.MustCompile(`\s+(roadmap|plan|guide|tutorial)$`)
)

// topicAliases is checked in order; the first key contained in the request wins,
// so longer phrases come before their prefixes.
var topicAliases = []struct {
	key   string
	topic string
}{
	{"web development", "web development"},
	{"web dev", "web development"},
	{"frontend development", "frontend development"},
	{"backend development", "backend development"},
	{"full stack development", "full stack development"},
	{"machine learning", "machine learning"},
	{"data science", "data science"},
	{"artificial intelligence", "artificial intelligence"},
	{"mobile development", "mobile app development"},
	{"android development", "android development"},
	{"ios development", "ios development"},
	{"react", "react development"},
	{"nodejs", "node.js development"},
	{"python", "python programming"},
	{"javascript", "javascript programming"},
	{"devops", "devops engineering"},
}

// ExtractMainTopic turns a free-form request such as "create a roadmap for web dev"
// into a search topic ("web development").
func ExtractMainTopic(request string) string {
	cleaned := strings.ToLower(strings.TrimSpace(request))
	cleaned = requestPrefix.ReplaceAllString(cleaned, "")
	cleaned = strings.TrimSpace(requestSuffix.ReplaceAllString(cleaned, ""))

	for _, alias := range topicAliases {
		if strings.Contains(cleaned, alias.key) {
			return alias.topic
		}
	}

	if cleaned == "" {
		return DefaultTopic
	}
	return cleaned
}
