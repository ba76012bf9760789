package config

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/caarlos0/env/v6"
	toml "github.com/pelletier/go-toml/v2"
)

const (
	SettingsFormatTOML SettingsFormat = "toml"
	SettingsFormatJSON SettingsFormat = "json"

	// ProjectFile is looked up in the working directory before the user
	// config directory.
	ProjectFile = "devwebgen.toml"
	envDir      = "DEVWEBGEN_CONFIG_DIR"
)

type Features struct {
	Transactions     bool `json:"transactions"      toml:"transactions"      env:"DEVWEBGEN_TRANSACTIONS"`
	Correlation      bool `json:"correlation"       toml:"correlation"       env:"DEVWEBGEN_CORRELATION"`
	Parameterization bool `json:"parameterization"  toml:"parameterization"  env:"DEVWEBGEN_PARAMETERIZATION"`
	Authentication   bool `json:"authentication"    toml:"authentication"    env:"DEVWEBGEN_AUTHENTICATION"`
	CustomScripts    bool `json:"custom_scripts"    toml:"custom_scripts"    env:"DEVWEBGEN_CUSTOM_SCRIPTS"`
	Classification   bool `json:"classification"    toml:"classification"    env:"DEVWEBGEN_CLASSIFICATION"`
	Comments         bool `json:"comments"          toml:"comments"          env:"DEVWEBGEN_COMMENTS"`
}

type Generation struct {
	ThinkTime     int    `json:"think_time"      toml:"think_time"      env:"DEVWEBGEN_THINK_TIME"`
	LogLevel      string `json:"log_level"       toml:"log_level"       env:"DEVWEBGEN_LOG_LEVEL"`
	PayloadMinLen int    `json:"payload_min_len" toml:"payload_min_len" env:"DEVWEBGEN_PAYLOAD_MIN_LEN"`
	SDKPath       string `json:"sdk_path"        toml:"sdk_path"        env:"DEVWEBGEN_SDK_PATH"`
}

type Scenario struct {
	Vusers    int `json:"vusers"     toml:"vusers"     env:"DEVWEBGEN_VUSERS"`
	RampUp    int `json:"ramp_up"    toml:"ramp_up"    env:"DEVWEBGEN_RAMP_UP"`
	Duration  int `json:"duration"   toml:"duration"   env:"DEVWEBGEN_DURATION"`
	PacingMin int `json:"pacing_min" toml:"pacing_min" env:"DEVWEBGEN_PACING_MIN"`
	PacingMax int `json:"pacing_max" toml:"pacing_max" env:"DEVWEBGEN_PACING_MAX"`
}

type Telemetry struct {
	Endpoint    string `json:"endpoint"     toml:"endpoint"     env:"DEVWEBGEN_OTEL_ENDPOINT"`
	Insecure    bool   `json:"insecure"     toml:"insecure"     env:"DEVWEBGEN_OTEL_INSECURE"`
	ServiceName string `json:"service_name" toml:"service_name" env:"DEVWEBGEN_OTEL_SERVICE"`
	DialTimeout string `json:"dial_timeout" toml:"dial_timeout" env:"DEVWEBGEN_OTEL_DIAL_TIMEOUT"`
	Headers     string `json:"headers"      toml:"headers"      env:"DEVWEBGEN_OTEL_HEADERS"`
}

type Settings struct {
	Features   Features   `json:"features"   toml:"features"`
	Generation Generation `json:"generation" toml:"generation"`
	Scenario   Scenario   `json:"scenario"   toml:"scenario"`
	Telemetry  Telemetry  `json:"telemetry"  toml:"telemetry"`
}

type SettingsFormat string
type SettingsHandle struct {
	Path   string
	Format SettingsFormat
}

// Dir is the user level settings directory, overridable through
// DEVWEBGEN_CONFIG_DIR.
func Dir() string {
	if dir := strings.TrimSpace(os.Getenv(envDir)); dir != "" {
		return dir
	}
	base, err := os.UserConfigDir()
	if err != nil {
		return ".devwebgen"
	}
	return filepath.Join(base, "devwebgen")
}

// LoadSettings reads the first settings file that exists: the explicit path,
// then devwebgen.toml in the working directory, then settings.toml and
// settings.json in Dir. Values missing from the file keep their defaults and
// DEVWEBGEN_* variables override both.
func LoadSettings(explicit string) (Settings, SettingsHandle, error) {
	var candidates []SettingsHandle
	if explicit = strings.TrimSpace(explicit); explicit != "" {
		candidates = append(candidates, SettingsHandle{Path: explicit, Format: formatOf(explicit)})
	} else {
		dir := Dir()
		candidates = []SettingsHandle{
			{Path: ProjectFile, Format: SettingsFormatTOML},
			{Path: filepath.Join(dir, "settings.toml"), Format: SettingsFormatTOML},
			{Path: filepath.Join(dir, "settings.json"), Format: SettingsFormatJSON},
		}
	}

	var accumulated error
	for _, candidate := range candidates {
		data, err := os.ReadFile(candidate.Path)
		if errors.Is(err, fs.ErrNotExist) && explicit == "" {
			continue
		}
		if err != nil {
			accumulated = errors.Join(
				accumulated,
				fmt.Errorf("read settings %q: %w", candidate.Path, err),
			)
			continue
		}

		settings, err := decodeSettings(data, candidate.Format)
		if err != nil {
			return Settings{}, SettingsHandle{}, fmt.Errorf(
				"parse settings %q: %w",
				candidate.Path,
				err,
			)
		}
		settings, err = applyEnv(settings)
		if err != nil {
			return Settings{}, SettingsHandle{}, err
		}
		return NormaliseSettings(settings), candidate, nil
	}

	if accumulated != nil {
		return Settings{}, SettingsHandle{}, accumulated
	}

	settings, err := applyEnv(DefaultSettings())
	if err != nil {
		return Settings{}, SettingsHandle{}, err
	}
	return NormaliseSettings(settings), SettingsHandle{
		Path:   candidates[1].Path,
		Format: SettingsFormatTOML,
	}, nil
}

func formatOf(path string) SettingsFormat {
	if strings.EqualFold(filepath.Ext(path), ".json") {
		return SettingsFormatJSON
	}
	return SettingsFormatTOML
}

func applyEnv(settings Settings) (Settings, error) {
	if err := env.Parse(&settings); err != nil {
		return Settings{}, fmt.Errorf("environment settings: %w", err)
	}
	return settings, nil
}

// decodeSettings fills a copy of the defaults so absent keys keep them.
func decodeSettings(data []byte, format SettingsFormat) (Settings, error) {
	settings := DefaultSettings()
	switch format {
	case SettingsFormatTOML:
		if err := toml.Unmarshal(data, &settings); err != nil {
			return Settings{}, err
		}
	case SettingsFormatJSON:
		decoder := json.NewDecoder(bytes.NewReader(data))
		decoder.DisallowUnknownFields()
		if err := decoder.Decode(&settings); err != nil {
			return Settings{}, err
		}
	default:
		return Settings{}, fmt.Errorf("unsupported settings format %q", format)
	}
	return settings, nil
}

func SaveSettings(settings Settings, handle SettingsHandle) error {
	settings = NormaliseSettings(settings)
	path := handle.Path
	format := handle.Format
	if path == "" {
		path = filepath.Join(Dir(), "settings.toml")
	}
	if format == "" {
		format = SettingsFormatTOML
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("ensure settings directory: %w", err)
	}

	var (
		data []byte
		err  error
	)

	switch format {
	case SettingsFormatTOML:
		data, err = toml.Marshal(settings)
	case SettingsFormatJSON:
		buffer := &bytes.Buffer{}
		encoder := json.NewEncoder(buffer)
		encoder.SetIndent("", "  ")
		if err = encoder.Encode(settings); err == nil {
			data = buffer.Bytes()
		}
	default:
		return fmt.Errorf("unsupported settings format %q", format)
	}
	if err != nil {
		return fmt.Errorf("encode settings: %w", err)
	}

	if err := writeFileAtomic(path, data, 0o644); err != nil {
		return fmt.Errorf("write settings %q: %w", path, err)
	}
	return nil
}

// temp file plus rename so a reader never sees a partial settings file.
func writeFileAtomic(path string, data []byte, perm fs.FileMode) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, ".devwebgen-settings-*.tmp")
	if err != nil {
		return err
	}

	tmpPath := tmp.Name()
	defer func() {
		_ = os.Remove(tmpPath)
	}()

	if _, err := tmp.Write(data); err != nil {
		closeErr := tmp.Close()
		if closeErr != nil {
			return errors.Join(err, closeErr)
		}
		return err
	}

	if err := tmp.Chmod(perm); err != nil {
		closeErr := tmp.Close()
		if closeErr != nil {
			return errors.Join(err, closeErr)
		}
		return err
	}

	if err := tmp.Close(); err != nil {
		return err
	}

	return os.Rename(tmpPath, path)
}
