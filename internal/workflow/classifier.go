package workflow

import (
	"sort"
	"strings"

	"github.com/spec-kit/helpdesk-engine/internal/domain"
)

// Label is a scored category produced by a Classifier.
type Label struct {
	Name  string  `json:"name"`
	Score float64 `json:"score"`
}

// Classifier scores ticket text into labeled categories.
type Classifier interface {
	Classify(t *domain.Ticket) []Label
}

// Label names understood by the recommendation heuristics.
const (
	LabelNegativeSentiment = "sentiment:negative"
	LabelOutage            = "signal:outage"
	LabelAccountAccess     = "signal:account_access"
	categoryPrefix         = "category:"
)

// KeywordClassifier is a deterministic keyword scorer.
type KeywordClassifier struct {
	keywords map[string][]string
}

// NewKeywordClassifier returns a classifier with the default vocabulary.
func NewKeywordClassifier() *KeywordClassifier {
	return &KeywordClassifier{keywords: map[string][]string{
		categoryPrefix + "network":  {"network", "vpn", "wifi", "wi-fi", "internet", "dns", "firewall"},
		categoryPrefix + "hardware": {"printer", "laptop", "monitor", "keyboard", "mouse", "docking"},
		categoryPrefix + "email":    {"email", "outlook", "mailbox", "smtp"},
		categoryPrefix + "software": {"install", "license", "crash", "update", "application"},
		LabelAccountAccess:          {"password", "reset", "locked", "login", "mfa", "2fa"},
		LabelOutage:                 {"outage", "down", "not working", "unreachable", "cannot connect"},
		LabelNegativeSentiment:      {"urgent", "asap", "unacceptable", "frustrated", "angry", "again", "still"},
	}}
}

// Classify returns labels sorted by name; score is the share of the
// label's keywords found in the title and description.
func (k *KeywordClassifier) Classify(t *domain.Ticket) []Label {
	if t == nil {
		return nil
	}
	text := strings.ToLower(t.Title + " " + t.Description)
	var labels []Label
	for name, words := range k.keywords {
		hits := 0
		for _, w := range words {
			if strings.Contains(text, w) {
				hits++
			}
		}
		if hits > 0 {
			labels = append(labels, Label{Name: name, Score: float64(hits) / float64(len(words))})
		}
	}
	sort.Slice(labels, func(i, j int) bool { return labels[i].Name < labels[j].Name })
	return labels
}
