package main

import (
	"fmt"
	"strings"

	"github.com/CZERTAINLY/verascan/internal/model"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// flagDef maps a command line flag to a configuration key
type flagDef struct {
	key   string
	name  string
	short string
	value any // zero value or the default, decides the flag type
	usage string
}

var flagDefs = []flagDef{
	{"credentials.id", "veracode-api-key-id", "", "", "Veracode API key ID, a non-human API account is recommended"},
	{"credentials.secret", "veracode-api-key-secret", "", "", "Veracode API key secret"},

	{"application.name", "application", "a", "", "name of the application, created when it does not exist"},
	{"application.guid", "application-guid", "", "", "GUID of an existing application, used when no name is given"},
	{"application.description", "description", "", "", "description of the application"},
	{"application.criticality", "business-criticality", "", "", "business criticality of the application: " + strings.Join(model.Criticalities, ", ")},
	{"application.custom_fields", "application-custom-field", "", []string{}, "custom field of the application as name:value, repeatable"},
	{"application.git_repo_url", "git-repo-url", "", "", "URL of the scanned git repository"},
	{"application.key_alias", "key-alias", "", "", "customer managed key alias of a new application"},
	{"application.teams", "team", "t", []string{}, "team of the application, created when it does not exist, repeatable"},
	{"application.business_unit", "business-unit", "", "", "business unit of the application and the collection"},
	{"application.business_owner", "business-owner", "", "", "name of the business owner"},
	{"application.business_owner_email", "business-owner-email", "", "", "e-mail of the business owner"},

	{"collection.name", "collection", "c", "", "collection of the application, created when it does not exist"},
	{"collection.description", "collection-description", "", "", "description of the collection"},
	{"collection.custom_fields", "collection-custom-field", "", []string{}, "custom field of the collection as name:value, repeatable"},

	{"scan.type", "scan-type", "", model.ScanTypeFolder, "type of the source: folder is packaged first, artifact is scanned as is"},
	{"scan.source", "source", "s", "", "source to scan"},
	{"scan.pipeline", "pipeline-scan", "", false, "run pipeline scans instead of a policy or sandbox scan"},
	{"scan.sandbox_name", "sandbox-name", "", "", "sandbox of the platform scan, empty runs a policy scan"},
	{"scan.version", "scan-version", "", "", "unique name of the platform scan"},
	{"scan.timeout", "scan-timeout", "", 0, "minutes to wait for platform scans, 0 does not wait"},
	{"scan.delete_incomplete_scan", "delete-incomplete-scan", "", "", "value of -deleteincompletescan of the platform scan"},
	{"scan.ignore_artifacts", "ignore-artifact", "", []string{}, "packaged artifact not to scan, repeatable"},
	{"scan.include", "include", "", "", "pattern of modules included in pipeline scans"},
	{"scan.fail_build", "fail-build", "f", false, "exit with the failure magnitude when a scan fails"},
	{"scan.override_failure", "override-failure", "o", false, "always exit with 0"},

	{"agent.workspace", "workspace-name", "", "", "workspace of the agent based composition analysis, empty disables it"},
	{"agent.link_project", "link-project", "", false, "link the scanned project to the application"},
	{"agent.sbom_type", "sbom-type", "", "", "download the SBOM of the scanned project: " + strings.Join(model.SBOMTypes, ", ")},
	{"agent.binary", "agent-binary", "", model.DefaultAgent, "composition analysis agent executable"},

	{"tools.cli", "veracode-cli-location", "", "", "location of the Veracode CLI"},
	{"tools.wrapper", "veracode-wrapper-location", "", "", "location of the API wrapper jar"},
	{"tools.java", "java", "", model.DefaultJava, "java executable running the API wrapper"},

	{"proxy.http", "http-proxy", "", "", "proxy of plain HTTP connections"},
	{"proxy.https", "https-proxy", "", "", "proxy of HTTPS connections"},

	{"publish.dir", "publish-dir", "", "", "directory the output files are copied to"},
	{"workdir", "workdir", "", "", "working directory of the scanners, default is the current directory"},
	{"api_url", "api-url", "", "", "override of the REST API endpoint"},
}

// envOnly are keys without a flag
var envOnly = []string{
	"publish.s3.endpoint",
	"publish.s3.bucket",
	"publish.s3.region",
	"publish.s3.access_key",
	"publish.s3.secret_key",
	"publish.s3.prefix",
	"publish.s3.use_ssl",
}

// registerFlags adds a flag of every configuration key to fs
func registerFlags(fs *pflag.FlagSet) {
	for _, d := range flagDefs {
		switch value := d.value.(type) {
		case string:
			fs.StringP(d.name, d.short, value, d.usage)
		case bool:
			fs.BoolP(d.name, d.short, value, d.usage)
		case int:
			fs.IntP(d.name, d.short, value, d.usage)
		case []string:
			fs.StringArrayP(d.name, d.short, value, d.usage)
		default:
			panic(fmt.Sprintf("flag %s: unsupported type %T", d.name, d.value))
		}
	}
}

// newViper merges flags, environment and the configuration file.
// Flags win over VERASCAN_* variables, which win over the file.
func newViper(fs *pflag.FlagSet, configFile string) (*viper.Viper, error) {
	v := viper.New()
	model.SetDefaults(v)

	for _, d := range flagDefs {
		if err := v.BindPFlag(d.key, fs.Lookup(d.name)); err != nil {
			return nil, fmt.Errorf("binding flag %s: %w", d.name, err)
		}
	}
	if err := v.BindPFlag("verbose", fs.Lookup("verbose")); err != nil {
		return nil, fmt.Errorf("binding flag verbose: %w", err)
	}

	v.SetEnvPrefix("VERASCAN")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()
	for _, key := range envOnly {
		if err := v.BindEnv(key); err != nil {
			return nil, err
		}
	}
	if err := v.BindEnv("credentials.id", "VERASCAN_CREDENTIALS_ID", "VERACODE_API_KEY_ID"); err != nil {
		return nil, err
	}
	if err := v.BindEnv("credentials.secret", "VERASCAN_CREDENTIALS_SECRET", "VERACODE_API_KEY_SECRET"); err != nil {
		return nil, err
	}

	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("reading config file %s: %w", configFile, err)
		}
	}
	return v, nil
}
