package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))

	return path
}

func chdir(t *testing.T, dir string) {
	t.Helper()

	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))

	t.Cleanup(func() { _ = os.Chdir(wd) })
}

func TestLoadConfig_File(t *testing.T) {
	path := writeConfig(t, `{
		"user_credentials": {"username/email": "ana@example.com", "password": "secret"},
		"search_parameters": {"datasetId": "3RIMG_L1B_STD", "startTime": "2024-01-01", "endTime": "2024-01-31", "count": 10, "boundingBox": "", "gId": "", "startIndex": "51"},
		"download_settings": {"download_path": "data", "organize_by_date": true, "skip_user_input": true, "generate_error_logs": false}
	}`)

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, "ana@example.com", cfg.Username)
	assert.Equal(t, "secret", cfg.Password)

	q := cfg.Query()
	assert.Equal(t, "3RIMG_L1B_STD", q.DatasetID)
	assert.Equal(t, "10", q.Count)
	assert.Equal(t, 51, q.StartIndex)
	assert.Empty(t, q.BoundingBox)

	assert.Equal(t, "data", cfg.Layout().Root)
	assert.True(t, cfg.Layout().ByDate)
	assert.True(t, cfg.Download.SkipUserInput)
	assert.Empty(t, cfg.ErrorLogDir())
}

func TestLoadConfig_Defaults(t *testing.T) {
	path := writeConfig(t, `{
		"user_credentials": {"username/email": "u", "password": "p"},
		"search_parameters": {"datasetId": "SAT"}
	}`)

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, 1, cfg.Search.StartIndex)
	assert.Equal(t, "./MOSDAC Data Download", cfg.Download.Path)
	assert.Equal(t, "./error_logs", cfg.Download.ErrorLogsDir)
	assert.Equal(t, 5*time.Second, cfg.Download.StallTimeout)
	assert.Equal(t, 5*time.Second, cfg.API.LogoutTimeout)
	assert.Equal(t, "https://mosdac.gov.in/download_api", cfg.Endpoints().BaseURL)
	assert.Equal(t, "https://mosdac.gov.in/apios/datasets.json", cfg.Endpoints().SearchURL)
	assert.Empty(t, cfg.Web.BindAddress)
	assert.Empty(t, cfg.Search.Count)
}

func TestLoadConfig_EnvOverridesFile(t *testing.T) {
	path := writeConfig(t, `{
		"user_credentials": {"username/email": "file-user", "password": "file-pass"},
		"search_parameters": {"datasetId": "FILE", "startIndex": 5},
		"download_settings": {"organize_by_date": true}
	}`)

	t.Setenv("MOSDAC_USERNAME", "env-user")
	t.Setenv("MOSDAC_SEARCH_START_INDEX", "201")
	t.Setenv("MOSDAC_DOWNLOAD_ORGANIZE_BY_DATE", "false")

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, "env-user", cfg.Username)
	assert.Equal(t, "file-pass", cfg.Password)
	assert.Equal(t, "FILE", cfg.Search.DatasetID)
	assert.Equal(t, 201, cfg.Search.StartIndex)
	assert.False(t, cfg.Download.OrganizeByDate)
}

func TestLoadConfig_EnvOnly(t *testing.T) {
	chdir(t, t.TempDir())
	t.Setenv("MOSDAC_USERNAME", "u")
	t.Setenv("MOSDAC_PASSWORD", "p")
	t.Setenv("MOSDAC_SEARCH_DATASET_ID", "SAT")
	t.Setenv("MOSDAC_WEB_BIND_ADDRESS", "127.0.0.1:9091")

	cfg, err := LoadConfig("")
	require.NoError(t, err)

	assert.Equal(t, "SAT", cfg.Search.DatasetID)
	assert.Equal(t, "127.0.0.1:9091", cfg.Web.BindAddress)
}

func TestLoadConfig_MissingRequired(t *testing.T) {
	chdir(t, t.TempDir())

	_, err := LoadConfig("")

	var cerr *ConfigError
	require.ErrorAs(t, err, &cerr)

	fields := make([]string, 0, len(cerr.Fields))
	for _, f := range cerr.Fields {
		fields = append(fields, f.Field)
	}

	assert.Equal(t, []string{"username", "password", "datasetId"}, fields)
}

func TestLoad_SkipsRequiredChecks(t *testing.T) {
	chdir(t, t.TempDir())
	t.Setenv("MOSDAC_DB_PATH", "ledger.db")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "ledger.db", cfg.DBPath)

	var cerr *ConfigError
	require.ErrorAs(t, cfg.ValidateSearch(), &cerr)
	assert.Equal(t, "datasetId", cerr.Fields[0].Field)
}

func TestLoadConfig_ExplicitFileMissing(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "nope.json"))
	require.Error(t, err)
}

func TestLoadConfig_MissingSections(t *testing.T) {
	_, err := LoadConfig(writeConfig(t, `{"download_settings": {}}`))

	var cerr *ConfigError
	require.ErrorAs(t, err, &cerr)
	assert.Equal(t, "user_credentials", cerr.Fields[0].Field)
	assert.Equal(t, "search_parameters", cerr.Fields[1].Field)
}

func TestLoadConfig_InvalidBooleans(t *testing.T) {
	path := writeConfig(t, `{
		"user_credentials": {"username/email": "u", "password": "p"},
		"search_parameters": {"datasetId": "SAT"},
		"download_settings": {"organize_by_date": "yes", "skip_user_input": 1, "generate_error_logs": true}
	}`)

	_, err := LoadConfig(path)

	var cerr *ConfigError
	require.ErrorAs(t, err, &cerr)
	require.Len(t, cerr.Fields, 2)
	assert.Equal(t, "organize_by_date", cerr.Fields[0].Field)
	assert.Equal(t, `"yes"`, cerr.Fields[0].Value)
	assert.Equal(t, "skip_user_input", cerr.Fields[1].Field)
	assert.Contains(t, err.Error(), "must be either true or false")
}

func TestLoadConfig_WindowsPath(t *testing.T) {
	path := writeConfig(t, `{
		"user_credentials": {"username/email": "u", "password": "p"},
		"search_parameters": {"datasetId": "SAT"},
		"download_settings": {"download_path": "C:\Users\ana\MOSDAC\", "generate_error_logs": true, "error_logs_dir": "D:\logs"}
	}`)

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, "C:/Users/ana/MOSDAC/", cfg.Download.Path)
	assert.Equal(t, `D:\logs`, cfg.ErrorLogDir())
}

func TestRepairBackslashes(t *testing.T) {
	cases := map[string]string{
		`"C:\Data"`:    `"C:\\Data"`,
		`"C:\\Data"`:   `"C:\\Data"`,
		`"dir\"`:       `"dir\\"`,
		`"a\/b"`:       `"a\/b"`,
		`"tab\there"`:  `"tab\there"`,
		`"x\y\z"`:      `"x\\y\\z"`,
		`"no escapes"`: `"no escapes"`,
		`"end\ " }`:    `"end\\ " }`,
	}

	for in, want := range cases {
		assert.Equal(t, want, string(RepairBackslashes([]byte(in))), in)
	}
}

func TestSlogLevel(t *testing.T) {
	cfg := &Config{LogLevel: "debug", ErrorLogLevel: "bogus"}

	assert.Equal(t, "DEBUG", cfg.SlogLevel().String())
	assert.Equal(t, "ERROR", cfg.ErrorSlogLevel().String())
}
