package bom_test

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/CZERTAINLY/verascan/internal/bom"
	"github.com/CZERTAINLY/verascan/internal/model"

	cdx "github.com/CycloneDX/cyclonedx-go"
	"github.com/stretchr/testify/require"
)

const minimal = `{"bomFormat":"CycloneDX","specVersion":"1.5","version":1,
"components":[{"type":"library","name":"log4j-core","version":"2.14.1","purl":"pkg:maven/org.apache.logging.log4j/log4j-core@2.14.1"}]}`

func TestNormalize(t *testing.T) {
	t.Parallel()
	b, err := bom.Normalize([]byte(minimal))
	require.NoError(t, err)

	require.True(t, strings.HasPrefix(b.SerialNumber, "urn:uuid:"))
	require.Len(t, *b.Components, 1)
	require.Equal(t, "log4j-core", (*b.Components)[0].Name)
	require.NotNil(t, b.Dependencies)
	require.NotEmpty(t, b.Metadata.Timestamp)
	require.Equal(t, "verascan", (*b.Metadata.Tools.Components)[0].Name)

	b, err = bom.Normalize([]byte(`{"bomFormat":"CycloneDX","specVersion":"1.5","serialNumber":"urn:uuid:3e671687-395b-41f5-a30f-a58921a69b79"}`))
	require.NoError(t, err)
	require.Equal(t, "urn:uuid:3e671687-395b-41f5-a30f-a58921a69b79", b.SerialNumber)
	require.Empty(t, *b.Components)

	_, err = bom.Normalize([]byte("not json"))
	require.Error(t, err)
}

func TestSave(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()

	cdxPath := filepath.Join(dir, "out", bom.FileName(model.SBOMCycloneDX))
	require.NoError(t, bom.Save([]byte(minimal), "cyclonedx", cdxPath))
	f, err := os.Open(cdxPath)
	require.NoError(t, err)
	t.Cleanup(func() { _ = f.Close() })
	var decoded cdx.BOM
	require.NoError(t, cdx.NewBOMDecoder(f, cdx.BOMFileFormatJSON).Decode(&decoded))
	require.Len(t, *decoded.Components, 1)

	spdxPath := filepath.Join(dir, bom.FileName(model.SBOMSPDX))
	require.NoError(t, bom.Save([]byte(`{"spdxVersion":"SPDX-2.3","packages":[]}`), model.SBOMSPDX, spdxPath))
	raw, err := os.ReadFile(spdxPath)
	require.NoError(t, err)
	require.True(t, json.Valid(raw))
	require.Contains(t, string(raw), "\n  \"spdxVersion\": \"SPDX-2.3\"")

	require.Error(t, bom.Save([]byte("{}"), "SWID", filepath.Join(dir, "x")))
	require.Error(t, bom.Save([]byte("{"), model.SBOMSPDX, filepath.Join(dir, "y")))
}
