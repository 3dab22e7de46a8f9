package retrieval

import (
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/rich7420/community-ai-agent-sub001/internal/models"
	"github.com/tmc/langchaingo/llms"
)

// BudgetUnit is what a Budget limit counts.
type BudgetUnit string

const (
	UnitChars  BudgetUnit = "chars"
	UnitTokens BudgetUnit = "tokens"
)

const blockSeparator = "\n"

// Budget caps the size of the assembled context.
type Budget struct {
	Limit int
	Unit  BudgetUnit
	// TokenModel selects the tokenizer when Unit is UnitTokens. The first
	// measurement may fetch the encoding over the network without a timeout.
	TokenModel string
	// Counter overrides the size function.
	Counter func(string) int
}

func (b Budget) measure(s string) int {
	if b.Counter != nil {
		return b.Counter(s)
	}
	if b.Unit == UnitTokens {
		return llms.CountTokens(b.TokenModel, s)
	}
	return utf8.RuneCountInString(s)
}

// Fit keeps the longest ranked prefix of records whose formatted context
// stays within the limit. Records are never cut mid-content, and a record
// that does not fit ends the prefix even if a later, shorter one would fit.
// A non-positive limit keeps everything.
func (b Budget) Fit(records []models.ScoredRecord) ([]models.ScoredRecord, string) {
	var ctx strings.Builder
	kept := 0
	for i := range records {
		block := FormatBlock(i+1, &records[i])
		candidate := block
		if kept > 0 {
			candidate = ctx.String() + blockSeparator + block
		}
		if b.Limit > 0 && b.measure(candidate) > b.Limit {
			break
		}
		if kept > 0 {
			ctx.WriteString(blockSeparator)
		}
		ctx.WriteString(block)
		kept++
	}
	return records[:kept], ctx.String()
}

// FormatBlock renders one context entry with its source attribution.
func FormatBlock(n int, r *models.ScoredRecord) string {
	var b strings.Builder
	fmt.Fprintf(&b, "[%d] Source: %s\n", n, r.SourceLine())
	fmt.Fprintf(&b, "Similarity Score: %.3f\n", r.Score)
	if !r.Timestamp.IsZero() {
		fmt.Fprintf(&b, "Time: %s\n", r.Timestamp.UTC().Format(time.RFC3339))
	}
	fmt.Fprintf(&b, "Content: %s\n", r.Content)
	return b.String()
}
