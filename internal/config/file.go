package config

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"
)

// fileConfig mirrors config.json.
type fileConfig struct {
	Credentials *struct {
		Username string `json:"username/email"`
		Password string `json:"password"`
	} `json:"user_credentials"`

	Search *struct {
		DatasetID   string     `json:"datasetId"`
		StartTime   string     `json:"startTime"`
		EndTime     string     `json:"endTime"`
		Count       flexString `json:"count"`
		BoundingBox string     `json:"boundingBox"`
		GID         string     `json:"gId"`
		StartIndex  flexString `json:"startIndex"`
	} `json:"search_parameters"`

	Download *struct {
		Path              string          `json:"download_path"`
		OrganizeByDate    json.RawMessage `json:"organize_by_date"`
		SkipUserInput     json.RawMessage `json:"skip_user_input"`
		GenerateErrorLogs json.RawMessage `json:"generate_error_logs"`
		ErrorLogsDir      string          `json:"error_logs_dir"`
	} `json:"download_settings"`
}

// flexString accepts a JSON string or number.
type flexString string

func (f *flexString) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)

	if bytes.Equal(b, []byte("null")) {
		*f = ""

		return nil
	}

	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}

		*f = flexString(strings.TrimSpace(s))

		return nil
	}

	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return fmt.Errorf("expected a string or a number, got %s", b)
	}

	*f = flexString(n.String())

	return nil
}

func (c *Config) applyFile(raw []byte) error {
	var f fileConfig
	if err := json.Unmarshal(raw, &f); err != nil {
		if err := json.Unmarshal(RepairBackslashes(raw), &f); err != nil {
			return &ConfigError{Fields: []FieldError{{Field: DefaultFile, Reason: "invalid JSON: " + err.Error()}}}
		}
	}

	cerr := &ConfigError{}

	if f.Credentials == nil {
		cerr.add("user_credentials", "", "missing required section")
	} else {
		setString(&c.Username, f.Credentials.Username, "USERNAME")
		setString(&c.Password, f.Credentials.Password, "PASSWORD")
	}

	if f.Search == nil {
		cerr.add("search_parameters", "", "missing required section")
	} else {
		s := f.Search
		setString(&c.Search.DatasetID, s.DatasetID, "SEARCH_DATASET_ID")
		setString(&c.Search.StartTime, s.StartTime, "SEARCH_START_TIME")
		setString(&c.Search.EndTime, s.EndTime, "SEARCH_END_TIME")
		setString(&c.Search.Count, string(s.Count), "SEARCH_COUNT")
		setString(&c.Search.BoundingBox, s.BoundingBox, "SEARCH_BOUNDING_BOX")
		setString(&c.Search.GID, s.GID, "SEARCH_GID")

		if s.StartIndex != "" && !fromEnv("SEARCH_START_INDEX") {
			n, err := strconv.Atoi(string(s.StartIndex))
			if err != nil {
				cerr.add("startIndex", string(s.StartIndex), "must be a whole number")
			} else if n != 0 {
				c.Search.StartIndex = n
			}
		}
	}

	if d := f.Download; d != nil {
		if d.Path != "" {
			setString(&c.Download.Path, strings.ReplaceAll(d.Path, `\`, "/"), "DOWNLOAD_PATH")
		}

		setBool(cerr, &c.Download.OrganizeByDate, "organize_by_date", d.OrganizeByDate, "DOWNLOAD_ORGANIZE_BY_DATE")
		setBool(cerr, &c.Download.SkipUserInput, "skip_user_input", d.SkipUserInput, "DOWNLOAD_SKIP_USER_INPUT")
		setBool(cerr, &c.Download.GenerateErrorLogs, "generate_error_logs", d.GenerateErrorLogs, "DOWNLOAD_GENERATE_ERROR_LOGS")
		setString(&c.Download.ErrorLogsDir, d.ErrorLogsDir, "DOWNLOAD_ERROR_LOGS_DIR")
	}

	return cerr.orNil()
}

func fromEnv(key string) bool {
	_, ok := os.LookupEnv(Prefix + "_" + key)

	return ok
}

func setString(dst *string, v, key string) {
	if v == "" || fromEnv(key) {
		return
	}

	*dst = v
}

// setBool only accepts JSON true or false. An absent setting keeps the
// current value.
func setBool(cerr *ConfigError, dst *bool, field string, raw json.RawMessage, key string) {
	if len(raw) == 0 {
		return
	}

	switch string(bytes.TrimSpace(raw)) {
	case "true":
		if !fromEnv(key) {
			*dst = true
		}
	case "false":
		if !fromEnv(key) {
			*dst = false
		}
	default:
		cerr.add(field, string(raw), "must be either true or false")
	}
}

// RepairBackslashes doubles lone backslashes so Windows paths such as
// "C:\Data\MOSDAC\" can be parsed. Backslashes that already form a valid JSON
// escape are kept, except before a closing quote.
func RepairBackslashes(raw []byte) []byte {
	out := make([]byte, 0, len(raw)+8)

	for i := 0; i < len(raw); i++ {
		if raw[i] != '\\' {
			out = append(out, raw[i])

			continue
		}

		if i+1 < len(raw) && raw[i+1] == '\\' {
			out = append(out, '\\', '\\')
			i++

			continue
		}

		if beforeQuote(raw[i+1:]) || i+1 >= len(raw) || !strings.ContainsRune(`/bfnrtu`, rune(raw[i+1])) {
			out = append(out, '\\', '\\')

			continue
		}

		out = append(out, '\\')
	}

	return out
}

// beforeQuote reports whether rest starts with optional spaces and a quote.
func beforeQuote(rest []byte) bool {
	trimmed := bytes.TrimLeft(rest, " \t\r\n")

	return len(trimmed) > 0 && trimmed[0] == '"'
}
