package config

import "strings"

const (
	ThinkTimeDefault     = 1
	ThinkTimeMax         = 300
	PayloadMinLenDefault = 1000
	PayloadMinLenMin     = 64
	VusersDefault        = 1
	RampUpDefault        = 2
	DurationDefault      = 20
	PacingMinDefault     = 3
	PacingMaxDefault     = 6
	ServiceNameDefault   = "devwebgen"
)

var logLevels = []string{"error", "warning", "info", "debug", "trace"}

func DefaultSettings() Settings {
	return Settings{
		Features: Features{
			Transactions:     true,
			Correlation:      true,
			Parameterization: true,
			Authentication:   true,
			CustomScripts:    true,
			Classification:   true,
			Comments:         true,
		},
		Generation: Generation{
			ThinkTime:     ThinkTimeDefault,
			LogLevel:      "info",
			PayloadMinLen: PayloadMinLenDefault,
		},
		Scenario: Scenario{
			Vusers:    VusersDefault,
			RampUp:    RampUpDefault,
			Duration:  DurationDefault,
			PacingMin: PacingMinDefault,
			PacingMax: PacingMaxDefault,
		},
		Telemetry: Telemetry{ServiceName: ServiceNameDefault},
	}
}

// NormaliseSettings clamps numeric values into range and replaces unknown
// enumerations with their defaults. A think time of zero is kept since it
// turns pauses off.
func NormaliseSettings(in Settings) Settings {
	out := in
	out.Generation.ThinkTime = clampInt(in.Generation.ThinkTime, 0, ThinkTimeMax)
	if in.Generation.PayloadMinLen <= 0 {
		out.Generation.PayloadMinLen = PayloadMinLenDefault
	} else if in.Generation.PayloadMinLen < PayloadMinLenMin {
		out.Generation.PayloadMinLen = PayloadMinLenMin
	}
	out.Generation.LogLevel = normaliseLogLevel(in.Generation.LogLevel, "info")

	out.Scenario.Vusers = positive(in.Scenario.Vusers, VusersDefault)
	out.Scenario.RampUp = clampInt(in.Scenario.RampUp, 0, 1<<20)
	out.Scenario.Duration = positive(in.Scenario.Duration, DurationDefault)
	out.Scenario.PacingMin = positive(in.Scenario.PacingMin, PacingMinDefault)
	out.Scenario.PacingMax = positive(in.Scenario.PacingMax, PacingMaxDefault)
	if out.Scenario.PacingMax < out.Scenario.PacingMin {
		out.Scenario.PacingMax = out.Scenario.PacingMin
	}

	if strings.TrimSpace(in.Telemetry.ServiceName) == "" {
		out.Telemetry.ServiceName = ServiceNameDefault
	}
	return out
}

func normaliseLogLevel(in, def string) string {
	lower := strings.ToLower(strings.TrimSpace(in))
	if lower == "warn" {
		return "warning"
	}
	for _, l := range logLevels {
		if l == lower {
			return l
		}
	}
	return def
}

func positive(value, fallback int) int {
	if value <= 0 {
		return fallback
	}
	return value
}

func clampInt(value, min, max int) int {
	if value < min {
		return min
	}
	if value > max {
		return max
	}
	return value
}
