package cli

import (
	"time"

	"github.com/rich7420/community-ai-agent-sub001/internal/models"
	"github.com/spf13/pflag"
)

// filterFlags are the record filter flags shared by ask and search.
type filterFlags struct {
	platforms []string
	since     string
	until     string
	records   []string
}

func (f *filterFlags) register(fs *pflag.FlagSet) {
	fs.StringSliceVarP(&f.platforms, "platform", "p", nil, "only use records from these platforms (slack, github, calendar)")
	fs.StringVar(&f.since, "since", "", "only use records at or after this time (2025-05-01, RFC 3339, 7d or 36h)")
	fs.StringVar(&f.until, "until", "", "only use records at or before this time")
	fs.StringSliceVar(&f.records, "records", nil, "answer from these record files in memory instead of SurrealDB")
}

func (f *filterFlags) filter(now time.Time) (models.Filter, error) {
	return models.ParseFilter(f.platforms, f.since, f.until, now)
}
