// Package newsroom turns ranked candidates into publishable articles:
// category classification, a short summary, and long-form content. Text
// generation goes through the provider rotation; every step has a
// deterministic fallback so a run never fails for lack of a provider.
package newsroom

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"time"

	"NewsPipeline/internal/config"
	"NewsPipeline/internal/domain"
)

// Categories is the closed set of article categories, in match-priority
// order. Research is the catch-all and must stay last.
var Categories = []string{
	"Diagnostics",
	"Medical Imaging",
	"Surgery",
	"Drug Discovery",
	"Genomics",
	"Patient Care",
	"Clinical Trials",
	"Telemedicine",
	"Research",
}

// categoryRules pairs each category with its keyword pattern. Evaluated
// in order; first match wins.
var categoryRules = []struct {
	category string
	pattern  *regexp.Regexp
}{
	{"Diagnostics", regexp.MustCompile(`diagnos|detect|screen|identif`)},
	{"Medical Imaging", regexp.MustCompile(`imag|scan|x-ray|mri|ct|radiolog`)},
	{"Surgery", regexp.MustCompile(`surg|operat|robot`)},
	{"Drug Discovery", regexp.MustCompile(`drug|pharmac|compound|molecul|discover`)},
	{"Genomics", regexp.MustCompile(`genom|dna|gene|sequenc`)},
	{"Patient Care", regexp.MustCompile(`patient|care|treatment|therap`)},
	{"Clinical Trials", regexp.MustCompile(`trial|clinic|study`)},
	{"Telemedicine", regexp.MustCompile(`telemed|remote|virtual|digital health`)},
}

// Generator produces text for a prompt, rejecting output shorter than
// minLen. Satisfied by llm.Rotation.
type Generator interface {
	Available() bool
	Generate(ctx context.Context, prompt string, minLen int) (string, error)
}

// classifyMinLen accepts any non-empty answer: category labels are short
// by design and are validated against the closed set instead.
const classifyMinLen = 1

// Service classifies and summarizes candidates.
type Service struct {
	gen    Generator
	cfg    config.NewsroomConfig
	logger *slog.Logger
}

// New builds the service; gen may be nil when no provider is configured.
func New(gen Generator, cfg config.NewsroomConfig, logger *slog.Logger) *Service {
	return &Service{gen: gen, cfg: cfg, logger: logger}
}

// Classify assigns a category from the closed set. A provider answer is
// accepted only when it names a known category; everything else drops to
// the keyword rules.
func (s *Service) Classify(ctx context.Context, item domain.Candidate) string {
	prompt := fmt.Sprintf(
		"Classify this %s news headline into exactly one of these categories: %s.\n\nHeadline: %q\n\nAnswer with the category name only.",
		s.cfg.Topic, strings.Join(Categories, ", "), item.Title,
	)
	if answer := s.generate(ctx, prompt, classifyMinLen); answer != "" {
		if category, ok := matchCategory(answer); ok {
			return category
		}
		s.debug("provider category not in set", "answer", answer)
	}
	return ClassifyByKeywords(item.Title)
}

// ClassifyByKeywords applies the keyword rules in priority order and
// falls through to Research.
func ClassifyByKeywords(title string) string {
	text := strings.ToLower(title)
	for _, rule := range categoryRules {
		if rule.pattern.MatchString(text) {
			return rule.category
		}
	}
	return "Research"
}

// Summarize produces the short summary and the long-form content for an
// item. Provider failures fall back to deterministic templates, so both
// return values are always non-empty.
func (s *Service) Summarize(ctx context.Context, item domain.Candidate, category, bodyExcerpt string) (summary, content string) {
	summary = s.generate(ctx, s.summaryPrompt(item, category, bodyExcerpt), s.cfg.MinGeneratedLen)
	if summary == "" {
		summary = FallbackSummary(item.Source, category)
	}

	content = s.generate(ctx, s.contentPrompt(item, category, bodyExcerpt), s.cfg.MinGeneratedLen)
	if content == "" {
		content = FallbackContent(item.Source, category)
	}
	return summary, content
}

func (s *Service) summaryPrompt(item domain.Candidate, category, bodyExcerpt string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Based on this title, write a compelling 2-3 sentence %s news summary. Be specific and concrete, avoid generic phrases.\n\n", s.cfg.Topic)
	fmt.Fprintf(&b, "Title: %q\nCategory: %s\n", item.Title, category)
	if bodyExcerpt != "" && bodyExcerpt != item.Title {
		fmt.Fprintf(&b, "\nArticle excerpt:\n%s\n", bodyExcerpt)
	}
	b.WriteString("\nWrite ONLY the summary:")
	return b.String()
}

func (s *Service) contentPrompt(item domain.Candidate, category, bodyExcerpt string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Expand this %s news story into 3 detailed paragraphs:\n\n", s.cfg.Topic)
	fmt.Fprintf(&b, "Title: %q\nCategory: %s\n", item.Title, category)
	if bodyExcerpt != "" && bodyExcerpt != item.Title {
		fmt.Fprintf(&b, "\nArticle excerpt:\n%s\n", bodyExcerpt)
	}
	b.WriteString("\nWrite 3 paragraphs:")
	return b.String()
}

func (s *Service) generate(ctx context.Context, prompt string, minLen int) string {
	if s.gen == nil || !s.gen.Available() {
		return ""
	}
	if s.cfg.TimeoutSeconds > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, time.Duration(s.cfg.TimeoutSeconds)*time.Second)
		defer cancel()
	}
	out, err := s.gen.Generate(ctx, prompt, minLen)
	if err != nil {
		s.debug("generation failed", "error", err)
		return ""
	}
	return out
}

// FallbackSummary is the deterministic summary used when no provider
// produced acceptable output.
func FallbackSummary(source, category string) string {
	if source == "" {
		source = "Medical News Network"
	}
	return fmt.Sprintf(
		"%s reports on this significant development in AI-assisted %s, marking progress in the field of medical technology and healthcare innovation.",
		source, strings.ToLower(category),
	)
}

// FallbackContent is the deterministic three-paragraph body used when no
// provider produced acceptable output.
func FallbackContent(source, category string) string {
	if source == "" {
		source = "Medical News Network"
	}
	lower := strings.ToLower(category)
	return fmt.Sprintf(
		"This development represents a significant advancement in %s technology. %s has reported on the implications of this breakthrough for the medical and healthcare industry.\n\n"+
			"The innovation showcases the growing role of artificial intelligence in transforming healthcare delivery and medical research. Experts believe this could lead to improved patient outcomes and more efficient healthcare systems.\n\n"+
			"As the technology continues to evolve, it is expected to have far-reaching impacts on how medical professionals diagnose, treat, and care for patients across various specialties.",
		lower, source,
	)
}

func matchCategory(answer string) (string, bool) {
	cleaned := strings.TrimSpace(strings.Trim(strings.TrimSpace(answer), `."'`))
	for _, category := range Categories {
		if strings.EqualFold(cleaned, category) {
			return category, true
		}
	}
	return "", false
}

func (s *Service) debug(msg string, args ...any) {
	if s.logger != nil {
		s.logger.Debug(msg, args...)
	}
}
