package types

import "fmt"

// ArticleReport collects the outcome of processing one article. Recoverable
// issues (unmatched links, unmatched image positions, placeholder
// descriptions) end up in Warnings; a fatal per-article error ends up in Err.
type ArticleReport struct {
	ArticleID string
	Backend   string
	Summary   string
	Images    int
	Chunks    int
	Warnings  []string
	Err       error
}

func (r *ArticleReport) Warnf(format string, args ...interface{}) {
	r.Warnings = append(r.Warnings, fmt.Sprintf(format, args...))
}

// BatchReport aggregates per-article reports for one batch run.
type BatchReport struct {
	Reports []ArticleReport
}

func (b *BatchReport) Succeeded() int {
	n := 0
	for _, r := range b.Reports {
		if r.Err == nil {
			n++
		}
	}
	return n
}

func (b *BatchReport) Failed() int {
	return len(b.Reports) - b.Succeeded()
}
