// Package templates holds the operator pages as templ components.
//
//go:generate templ generate
package templates

import (
	"strconv"
	"time"

	"github.com/a-h/templ"

	"github.com/JonMunkholm/awardshelf/internal/catalog"
	"github.com/JonMunkholm/awardshelf/internal/core"
)

// DashboardParams feeds the status page.
type DashboardParams struct {
	Categories []catalog.Category
	Recent     []*core.ImportResult
	Limiter    core.ImportLimiterStatus
	Defaults   core.ImportOptions
}

// ImportParams feeds the import detail page. Result is nil while the
// import is still running.
type ImportParams struct {
	Progress core.ImportProgress
	Result   *core.ImportResult
}

var (
	txModes           = []string{string(core.TxModeBatch), string(core.TxModeRow)}
	ambiguityPolicies = []string{string(core.PolicyCreateNew), string(core.PolicyRejectRow), string(core.PolicyPickFirst)}
)

func resultStatus(r *core.ImportResult) string {
	switch {
	case r.Error != "":
		return "failed"
	case r.Options.DryRun:
		return "dry run"
	default:
		return "complete"
	}
}

func importURL(id string) templ.SafeURL {
	return templ.URL("/import/" + id)
}

func placementsURL(categoryID int64) templ.SafeURL {
	return templ.URL("/api/categories/" + strconv.FormatInt(categoryID, 10) + "/placements")
}

func startedAt(t time.Time) string {
	return t.Format("2006-01-02 15:04:05")
}

func took(d time.Duration) string {
	return d.Round(time.Millisecond).String()
}
