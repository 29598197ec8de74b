package ingestion

import (
	"context"
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/fixpal/backend/internal/knowledge"
	"github.com/fixpal/backend/internal/metrics"
	"github.com/fixpal/backend/internal/normalize"
	"github.com/fixpal/backend/internal/storage/models"
	"github.com/fixpal/backend/pkg/logger"
	"github.com/fixpal/backend/pkg/utils"
)

// maxKeywords caps the symptom vocabulary extracted per manual.
const maxKeywords = 8

var (
	minutesPattern    = regexp.MustCompile(`(\d+)\s*(?:minutes|min)\b`)
	priceRangePattern = regexp.MustCompile(`\$(\d+(?:\.\d+)?)\s*[-–]\s*\$?(\d+(?:\.\d+)?)`)
	whitespacePattern = regexp.MustCompile(`\s+`)
)

// EntryStore persists extracted entries and manual provenance.
type EntryStore interface {
	InsertEntry(ctx context.Context, e *knowledge.Entry) error
	InsertManual(ctx context.Context, m models.Manual) error
}

// CacheInvalidator drops cached diagnosis results after the corpus changes.
type CacheInvalidator interface {
	InvalidateResults(ctx context.Context) error
}

// Processor turns HTML repair manuals into knowledge entries and publishes
// them: persist, reload the index snapshot, invalidate the result cache.
type Processor struct {
	store      EntryStore
	index      *knowledge.Index
	normalizer *normalize.Normalizer
	cache      CacheInvalidator
}

func NewProcessor(store EntryStore, index *knowledge.Index, cache CacheInvalidator) *Processor {
	return &Processor{
		store:      store,
		index:      index,
		normalizer: normalize.New(),
		cache:      cache,
	}
}

// IngestManual parses one HTML manual, derives a knowledge entry, and
// publishes it to the corpus.
func (p *Processor) IngestManual(ctx context.Context, sourceURL, htmlContent string) (*knowledge.Entry, error) {
	logger.Info("Ingesting manual", zap.String("source_url", sourceURL))

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(htmlContent))
	if err != nil {
		return nil, fmt.Errorf("failed to parse HTML: %w", err)
	}

	doc.Find("script, style, nav, footer, header, aside").Each(func(i int, s *goquery.Selection) {
		s.Remove()
	})

	title := extractTitle(doc)
	steps := extractSteps(doc)
	if len(steps) == 0 {
		return nil, fmt.Errorf("no repair steps found in manual")
	}

	bodyText := cleanText(doc.Find("body").Text())
	category := p.detectCategory(title, bodyText)
	keywords := p.extractKeywords(title, steps)
	if len(keywords) == 0 {
		return nil, fmt.Errorf("no symptom keywords extracted from manual")
	}

	warning, level := extractSafety(doc)

	entry := &knowledge.Entry{
		ID:               utils.HashString(sourceURL),
		Category:         category,
		Keywords:         keywords,
		Severity:         knowledge.SeverityMedium,
		SafetyLevel:      level,
		SafetyWarning:    warning,
		EstimatedMinutes: extractMinutes(bodyText),
		Steps:            steps,
		Tools:            extractListSection(doc, "tool"),
		Parts:            extractParts(doc),
		UpdatedAt:        time.Now(),
	}

	if err := p.Publish(ctx, entry); err != nil {
		return nil, err
	}

	manual := models.Manual{
		ID:         uuid.New().String(),
		SourceURL:  sourceURL,
		Title:      title,
		Category:   string(category),
		EntryID:    entry.ID,
		IngestedAt: time.Now(),
	}
	if err := p.store.InsertManual(ctx, manual); err != nil {
		logger.Warn("Failed to record manual provenance", zap.Error(err))
	}

	metrics.ManualsIngested.Inc()
	logger.Info("Manual ingested",
		zap.String("entry_id", entry.ID),
		zap.String("category", string(category)),
		zap.Int("steps", len(steps)),
	)

	return entry, nil
}

// Publish validates and persists an entry, then swaps in a fresh index
// snapshot and drops stale cached results.
func (p *Processor) Publish(ctx context.Context, entry *knowledge.Entry) error {
	if err := entry.Validate(); err != nil {
		return err
	}

	if err := p.store.InsertEntry(ctx, entry); err != nil {
		return fmt.Errorf("failed to persist entry: %w", err)
	}

	if err := p.index.Reload(ctx); err != nil {
		return fmt.Errorf("failed to reload index: %w", err)
	}
	metrics.CorpusSize.Set(float64(p.index.Size()))

	if p.cache != nil {
		if err := p.cache.InvalidateResults(ctx); err != nil {
			logger.Warn("Failed to invalidate result cache", zap.Error(err))
		}
	}

	return nil
}

func (p *Processor) detectCategory(title, bodyText string) knowledge.Category {
	terms := p.normalizer.Tokens(title + " " + bodyText)
	if cats := normalize.DetectCategories(terms); len(cats) > 0 {
		return cats[0]
	}
	return knowledge.CategoryAppliance
}

// extractKeywords derives weighted symptom keywords from the manual's title
// and steps. Title terms count three times: the title names the symptom.
func (p *Processor) extractKeywords(title string, steps []string) []knowledge.Keyword {
	counts := make(map[string]float64)
	order := make(map[string]int)
	next := 0

	record := func(term string, weight float64) {
		if _, seen := counts[term]; !seen {
			order[term] = next
			next++
		}
		counts[term] += weight
	}

	for _, t := range p.normalizer.Tokens(title) {
		record(t, 3)
	}
	for _, step := range steps {
		for _, t := range p.normalizer.Tokens(step) {
			record(t, 1)
		}
	}

	terms := make([]string, 0, len(counts))
	for t := range counts {
		terms = append(terms, t)
	}
	sort.Slice(terms, func(i, j int) bool {
		if counts[terms[i]] != counts[terms[j]] {
			return counts[terms[i]] > counts[terms[j]]
		}
		return order[terms[i]] < order[terms[j]]
	})
	if len(terms) > maxKeywords {
		terms = terms[:maxKeywords]
	}

	var total float64
	for _, t := range terms {
		total += counts[t]
	}
	if total == 0 {
		return nil
	}

	keywords := make([]knowledge.Keyword, 0, len(terms))
	for _, t := range terms {
		keywords = append(keywords, knowledge.Keyword{
			Term:   t,
			Weight: counts[t] / total,
		})
	}
	return keywords
}

func extractTitle(doc *goquery.Document) string {
	title := strings.TrimSpace(doc.Find("title").First().Text())
	if title == "" {
		title = strings.TrimSpace(doc.Find("h1").First().Text())
	}
	if title == "" {
		title = "Untitled manual"
	}
	return title
}

// extractSteps reads the manual's ordered repair procedure. Stored order is
// kept verbatim; manuals are assumed already safety-sequenced.
func extractSteps(doc *goquery.Document) []string {
	var steps []string
	doc.Find("ol").First().Find("li").Each(func(i int, s *goquery.Selection) {
		if text := cleanText(s.Text()); text != "" {
			steps = append(steps, text)
		}
	})
	return steps
}

// extractListSection finds a ul following a heading whose text contains the
// given word (e.g. "tool") and returns its items.
func extractListSection(doc *goquery.Document, headingWord string) []string {
	var items []string
	doc.Find("h2, h3, h4").EachWithBreak(func(i int, s *goquery.Selection) bool {
		if !strings.Contains(strings.ToLower(s.Text()), headingWord) {
			return true
		}
		s.NextAllFiltered("ul").First().Find("li").Each(func(j int, li *goquery.Selection) {
			if text := cleanText(li.Text()); text != "" {
				items = append(items, text)
			}
		})
		return false
	})
	return items
}

// extractParts reads the parts list, parsing "$low-$high" price ranges when
// present.
func extractParts(doc *goquery.Document) []knowledge.Part {
	var parts []knowledge.Part
	for _, item := range extractListSection(doc, "part") {
		part := knowledge.Part{Name: item}
		if m := priceRangePattern.FindStringSubmatch(item); m != nil {
			part.Name = cleanText(priceRangePattern.ReplaceAllString(item, ""))
			part.PriceLow, _ = strconv.ParseFloat(m[1], 64)
			part.PriceHigh, _ = strconv.ParseFloat(m[2], 64)
		}
		if part.Name != "" {
			parts = append(parts, part)
		}
	}
	return parts
}

func extractSafety(doc *goquery.Document) (string, knowledge.SafetyLevel) {
	var warning string
	doc.Find("p, div").EachWithBreak(func(i int, s *goquery.Selection) bool {
		text := cleanText(s.Text())
		lower := strings.ToLower(text)
		if strings.HasPrefix(lower, "warning") || strings.HasPrefix(lower, "caution") || strings.HasPrefix(lower, "danger") {
			warning = text
			return false
		}
		return true
	})

	if warning == "" {
		return "", knowledge.SafetyNone
	}
	if strings.HasPrefix(strings.ToLower(warning), "danger") {
		return warning, knowledge.SafetyDanger
	}
	return warning, knowledge.SafetyCaution
}

func extractMinutes(text string) int {
	if m := minutesPattern.FindStringSubmatch(strings.ToLower(text)); m != nil {
		if minutes, err := strconv.Atoi(m[1]); err == nil && minutes > 0 {
			return minutes
		}
	}
	return 60
}

func cleanText(s string) string {
	return strings.TrimSpace(whitespacePattern.ReplaceAllString(s, " "))
}
