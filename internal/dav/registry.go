package dav

import (
	"path"
	"strings"
	"sync"
)

// ContentTypeRegistry chooses the type of content created by a PUT to a
// missing resource. An empty result means no type applies.
type ContentTypeRegistry interface {
	FindTypeName(name, contentType string, body []byte) string
}

// Rule maps file extensions or MIME types to a content type. MimeTypes
// may use a "major/*" wildcard.
type Rule struct {
	Name       string
	Extensions []string
	MimeTypes  []string
	TypeID     string
}

func (r Rule) matches(name, mimeType string) bool {
	if ext := strings.TrimPrefix(strings.ToLower(path.Ext(name)), "."); ext != "" {
		for _, e := range r.Extensions {
			if strings.EqualFold(e, ext) {
				return true
			}
		}
	}
	if mimeType == "" {
		return false
	}
	major, _, _ := strings.Cut(mimeType, "/")
	for _, m := range r.MimeTypes {
		if strings.EqualFold(m, mimeType) || strings.EqualFold(m, major+"/*") {
			return true
		}
	}
	return false
}

// RuleRegistry is an ordered ContentTypeRegistry; the first matching
// rule wins
type RuleRegistry struct {
	mu    sync.RWMutex
	rules []Rule
}

// NewRuleRegistry creates a registry from rules
func NewRuleRegistry(rules ...Rule) *RuleRegistry {
	return &RuleRegistry{rules: append([]Rule(nil), rules...)}
}

// Add appends a rule
func (r *RuleRegistry) Add(rule Rule) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rules = append(r.rules, rule)
}

// Rules returns the rules in evaluation order
func (r *RuleRegistry) Rules() []Rule {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]Rule(nil), r.rules...)
}

// FindTypeName returns the type of the first rule matching name or
// contentType
func (r *RuleRegistry) FindTypeName(name, contentType string, _ []byte) string {
	mimeType, _, _ := strings.Cut(contentType, ";")
	mimeType = strings.TrimSpace(mimeType)

	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, rule := range r.rules {
		if rule.matches(name, mimeType) {
			return rule.TypeID
		}
	}
	return ""
}
