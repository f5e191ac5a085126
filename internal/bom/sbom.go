// Package bom stores the software bills of materials produced by the
// composition analysis.
package bom

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"runtime/debug"
	"strings"
	"time"

	"github.com/CZERTAINLY/verascan/internal/model"

	cdx "github.com/CycloneDX/cyclonedx-go"
	"github.com/google/uuid"
)

var version string

func init() {
	info, ok := debug.ReadBuildInfo()
	if !ok {
		version = "unknown"
	} else {
		version = info.Main.Version
	}
}

// FileName returns the name of the document for the format
func FileName(format string) string {
	switch strings.ToUpper(format) {
	case model.SBOMCycloneDX:
		return "sbom.cdx.json"
	case model.SBOMSPDX:
		return "sbom.spdx.json"
	default:
		return "sbom.json"
	}
}

// Save writes the document downloaded from the platform to path.
// CycloneDX documents are normalized, SPDX ones are only indented.
func Save(raw []byte, format, path string) error {
	var out []byte
	switch strings.ToUpper(format) {
	case model.SBOMCycloneDX:
		bom, err := Normalize(raw)
		if err != nil {
			return err
		}
		var buf bytes.Buffer
		if err := cdx.NewBOMEncoder(&buf, cdx.BOMFileFormatJSON).SetPretty(true).Encode(bom); err != nil {
			return fmt.Errorf("encoding CycloneDX: %w", err)
		}
		out = buf.Bytes()
	case model.SBOMSPDX:
		var buf bytes.Buffer
		if err := json.Indent(&buf, raw, "", "  "); err != nil {
			return fmt.Errorf("decoding SPDX: %w", err)
		}
		buf.WriteByte('\n')
		out = buf.Bytes()
	default:
		return fmt.Errorf("unsupported SBOM format %q", format)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(path, out, 0o644)
}

// Normalize decodes a CycloneDX JSON document and fills in what the
// schema requires or the consumers rely on: serial number, timestamp,
// non null lists and the tool which stored the document.
func Normalize(raw []byte) (*cdx.BOM, error) {
	bom := new(cdx.BOM)
	if err := cdx.NewBOMDecoder(bytes.NewReader(raw), cdx.BOMFileFormatJSON).Decode(bom); err != nil {
		return nil, fmt.Errorf("decoding CycloneDX: %w", err)
	}
	if bom.BOMFormat == "" {
		bom.BOMFormat = "CycloneDX"
	}
	if bom.SerialNumber == "" {
		bom.SerialNumber = "urn:uuid:" + uuid.New().String()
	}
	if bom.Version == 0 {
		bom.Version = 1
	}
	// those MUST be initialized as cyclone-dx JSON schema do not allow items to be null
	if bom.Components == nil {
		bom.Components = &[]cdx.Component{}
	}
	if bom.Dependencies == nil {
		bom.Dependencies = &[]cdx.Dependency{}
	}

	if bom.Metadata == nil {
		bom.Metadata = &cdx.Metadata{}
	}
	if bom.Metadata.Timestamp == "" {
		bom.Metadata.Timestamp = time.Now().UTC().Format(time.RFC3339)
	}
	tool := cdx.Component{
		Type:    cdx.ComponentTypeApplication,
		Name:    "verascan",
		Version: version,
		Manufacturer: &cdx.OrganizationalEntity{
			Name: "CZERTAINLY",
			URL: &[]string{
				"https://www.czertainly.com",
			},
		},
	}
	switch {
	case bom.Metadata.Tools == nil:
		bom.Metadata.Tools = &cdx.ToolsChoice{Components: &[]cdx.Component{tool}}
	case bom.Metadata.Tools.Tools != nil:
		// legacy tool list can't be mixed with components
	case bom.Metadata.Tools.Components == nil:
		bom.Metadata.Tools.Components = &[]cdx.Component{tool}
	default:
		*bom.Metadata.Tools.Components = append(*bom.Metadata.Tools.Components, tool)
	}
	return bom, nil
}
