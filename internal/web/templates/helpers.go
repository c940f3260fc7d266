// Package templates renders the browse server's HTML pages as templ
// components. Edit the .templ sources and run templ generate.
package templates

import (
	"fmt"
	"net/url"
	"strconv"
	"time"

	"github.com/a-h/templ"

	"github.com/JonMunkholm/sdemirror/internal/store"
)

// FormatCell renders a stored value; NULL renders empty.
func FormatCell(v any) string {
	switch v := v.(type) {
	case nil:
		return ""
	case string:
		return v
	case int64:
		return strconv.FormatInt(v, 10)
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	default:
		return fmt.Sprint(v)
	}
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format("2006-01-02 15:04:05 UTC")
}

func tableURL(table string) templ.SafeURL {
	return templ.SafeURL("/tables/" + url.PathEscape(table))
}

func pageURL(table string, page int) templ.SafeURL {
	return templ.SafeURL("/tables/" + url.PathEscape(table) + "?page=" + strconv.Itoa(page))
}

func statusClass(s store.RunStatus) string {
	return "status-" + string(s)
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return ""
}
