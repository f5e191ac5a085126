package model

import (
	"cmp"
	"fmt"
	"net/url"
	"os"
	"slices"
	"strings"

	"cuelang.org/go/cue"
)

// CustomField is a name:value pair attached to an application or a collection.
type CustomField struct {
	Name  string
	Value string
}

func ParseCustomField(s string) (CustomField, error) {
	parts := strings.Split(s, ":")
	if len(parts) != 2 {
		return CustomField{}, fmt.Errorf("custom field %q must be in the format 'name:value'", s)
	}
	return CustomField{Name: strings.TrimSpace(parts[0]), Value: strings.TrimSpace(parts[1])}, nil
}

// Validate runs all local checks which do not require the platform API.
// The values are checked against the embedded CUE schema, the files the
// configuration points to are checked on the filesystem. An empty result
// means the configuration can be used for a scan. Errors are sorted
// by the param.
func (c Config) Validate() []ConfigError {
	errs := c.validateSchema()
	errs = append(errs, c.validateFiles()...)
	if c.APIURL != "" {
		if u, err := url.Parse(c.APIURL); err != nil || u.Scheme == "" || u.Host == "" {
			errs = append(errs, ConfigError{Param: "api_url", Code: "format", Value: c.APIURL, Message: "must be an absolute URL"})
		}
	}
	slices.SortStableFunc(errs, func(a, b ConfigError) int {
		return cmp.Compare(a.Param, b.Param)
	})
	return errs
}

func (c Config) validateSchema() []ConfigError {
	// the schema tells an empty list from a missing one
	c.Application.CustomFields = orEmpty(c.Application.CustomFields)
	c.Application.Teams = orEmpty(c.Application.Teams)
	c.Collection.CustomFields = orEmpty(c.Collection.CustomFields)
	c.Scan.IgnoreArtifacts = orEmpty(c.Scan.IgnoreArtifacts)

	data := cueCtx.Encode(c)
	if err := data.Err(); err != nil {
		return []ConfigError{{Code: "invalid", Message: err.Error()}}
	}

	unified := schema.Unify(data)
	err := unified.Validate(
		cue.All(),          // all constraints
		cue.Concrete(true), // no incomplete values
	)
	return humanize(err, data)
}

// validateFiles checks the paths the schema requires to be set
func (c Config) validateFiles() []ConfigError {
	var errs []ConfigError
	if c.Scan.Source != "" {
		if _, err := os.Stat(c.Scan.Source); err != nil {
			errs = append(errs, ConfigError{Param: "scan.source", Code: "missing", Value: c.Scan.Source, Message: "the source does not exist"})
		}
	}
	if err := file("tools.cli", c.Tools.CLI); err != nil {
		errs = append(errs, *err)
	}
	if !c.Scan.Pipeline {
		if err := file("tools.wrapper", c.Tools.Wrapper); err != nil {
			errs = append(errs, *err)
		}
	}
	return errs
}

func file(param, path string) *ConfigError {
	if path == "" {
		return nil
	}
	info, err := os.Stat(path)
	if err != nil || info.IsDir() {
		return &ConfigError{Param: param, Code: "missing", Value: path, Message: "the file does not exist"}
	}
	return nil
}

func orEmpty(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

// Messages turns errors into the lines printed to the user.
func Messages(errs []ConfigError) []string {
	ret := make([]string, len(errs))
	for i, e := range errs {
		ret[i] = e.Error()
	}
	return ret
}
