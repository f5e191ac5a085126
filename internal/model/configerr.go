package model

import (
	"fmt"
	"log/slog"
	"regexp"
	"slices"
	"strconv"
	"strings"

	cue "cuelang.org/go/cue"
	cueerrors "cuelang.org/go/cue/errors"
)

// ConfigError is a single failed local check of the configuration
type ConfigError struct {
	Param   string // application.name
	Code    string // required | length | format | conflict | bound | missing | invalid
	Value   string
	Message string // Human text
}

func (e ConfigError) Error() string {
	return fmt.Sprintf("ERROR: '%s' is not a valid value for the '%s' parameter - %s", e.Value, e.Param, e.Message)
}

func (e ConfigError) Attr(name string) slog.Attr {
	return slog.GroupAttrs(
		name,
		slog.String("code", e.Code),
		slog.String("param", e.Param),
		slog.String("value", e.Value),
		slog.String("message", e.Message),
	)
}

var (
	reMaxRunes = regexp.MustCompile(`strings\.MaxRunes\((\d+)\)`)
	reRequired = regexp.MustCompile(`(?i)incomplete value|out of bound !=""`)
	reFormat   = regexp.MustCompile(`(?i)out of bound =~`)
	reConflict = regexp.MustCompile(`(?i)conflicting values|empty disjunction|incompatible|not allowed|out of range`)
	reBound    = regexp.MustCompile(`(?i)out of bound`)
)

// enums are reported with all the accepted values
var enums = map[string][]string{
	"application.criticality":     Criticalities,
	"scan.type":                   ScanTypes,
	"scan.delete_incomplete_scan": DeleteIncompleteScan,
	"agent.sbom_type":             SBOMTypes,
}

// messages by param, or by param:code where one param has more rules
var messages = map[string]string{
	"credentials.id":                  "the API key ID is required",
	"credentials.secret":              "the API key secret is required",
	"application.name:required":       "either the application name or the application GUID is required",
	"application.custom_fields":       "must be in the format 'name:value'",
	"application.teams":               "at least one team is required",
	"collection.description":          "a collection description requires a collection name",
	"collection.custom_fields":        "collection custom fields require a collection name",
	"collection.custom_fields:format": "must be in the format 'name:value'",
	"scan.source":                     "the source to scan is required",
	"scan.ignore_artifacts":           "ignored artifacts are supported for folder scans only",
	"scan.sandbox_name":               "pipeline scans do not support sandboxes",
	"scan.version":                    "pipeline scans do not support scan versions",
	"scan.version:required":           "a scan version is required for platform scans",
	"scan.timeout":                    "the timeout must not be negative",
	"agent.workspace":                 "composition analysis is supported for pipeline scans only",
	"agent.sbom_type":                 "an SBOM requires an agent workspace",
	"agent.link_project":              "linking a project requires an agent workspace",
	"tools.cli":                       "the location is required",
	"tools.wrapper":                   "the location is required",
	"publish.s3.bucket":               "both the endpoint and the bucket must be set",
}

// humanize turns the schema violations into one error per param and
// message. The values are looked up in data.
func humanize(err error, data cue.Value) []ConfigError {
	if err == nil {
		return nil
	}

	type key struct{ param, message string }
	seen := make(map[key]struct{})

	var out []ConfigError
	for _, e := range cueerrors.Errors(err) {
		format, args := e.Msg()
		raw := fmt.Sprintf(format, args...)
		path := normalizePath(e.Path())
		param := paramOf(path)
		value := valueToString(lookup(data, path))
		code, msg := classify(raw, param, value)

		k := key{param, msg}
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, ConfigError{
			Param:   param,
			Code:    code,
			Value:   value,
			Message: msg,
		})
	}
	return dropEnclosing(out)
}

func classify(raw, param, value string) (code, msg string) {
	switch {
	case reMaxRunes.MatchString(raw):
		size := reMaxRunes.FindStringSubmatch(raw)[1]
		return "length", fmt.Sprintf("maximum length is %s characters", size)
	case reRequired.MatchString(raw):
		code = "required"
	case reFormat.MatchString(raw):
		code = "format"
	case reConflict.MatchString(raw):
		code = "conflict"
	case reBound.MatchString(raw):
		code = "bound"
	default:
		code = "invalid"
	}

	if allowed, ok := enums[param]; ok && !slices.Contains(allowed, value) {
		return code, "must be one of " + strings.Join(allowed, ", ")
	}
	if msg, ok := messages[param+":"+code]; ok {
		return code, msg
	}
	if msg, ok := messages[param]; ok {
		return code, msg
	}
	return code, raw
}

// dropEnclosing removes the errors of a struct which has errors of its
// fields reported too, they repeat the same violation
func dropEnclosing(errs []ConfigError) []ConfigError {
	params := make([]string, len(errs))
	for i, e := range errs {
		params[i] = e.Param
	}
	return slices.DeleteFunc(errs, func(e ConfigError) bool {
		return slices.ContainsFunc(params, func(p string) bool {
			return p != e.Param && (e.Param == "" || strings.HasPrefix(p, e.Param+"."))
		})
	})
}

func normalizePath(p []string) []string {
	// Remove leading definition (#Config)
	if len(p) > 0 && strings.HasPrefix(p[0], "#") {
		p = p[1:]
	}
	return p
}

// paramOf returns the configuration key of a path, list indexes dropped
func paramOf(path []string) string {
	var keys []string
	for _, s := range path {
		if _, err := strconv.Atoi(s); err == nil {
			continue
		}
		keys = append(keys, s)
	}
	return strings.Join(keys, ".")
}

func lookup(root cue.Value, path []string) cue.Value {
	sels := make([]cue.Selector, len(path))
	for i, s := range path {
		if n, err := strconv.Atoi(s); err == nil {
			sels[i] = cue.Index(n)
			continue
		}
		sels[i] = cue.Str(s)
	}
	return root.LookupPath(cue.MakePath(sels...))
}

func valueToString(v cue.Value) string {
	if !v.Exists() {
		return ""
	}
	switch v.Kind() {
	case cue.StringKind:
		s, _ := v.String()
		return s
	case cue.IntKind:
		i, err := v.Int64()
		if err != nil {
			return ""
		}
		return strconv.FormatInt(i, 10)
	case cue.BoolKind:
		b, _ := v.Bool()
		return strconv.FormatBool(b)
	case cue.ListKind:
		var items []string
		it, err := v.List()
		if err != nil {
			return ""
		}
		for it.Next() {
			items = append(items, valueToString(it.Value()))
		}
		return strings.Join(items, ",")
	default:
		// Fallback: JSON form
		b, err := v.MarshalJSON()
		if err != nil {
			return ""
		}
		return string(b)
	}
}
