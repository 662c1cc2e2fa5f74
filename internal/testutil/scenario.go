package testutil

import "github.com/roach88/bor/internal/ir"

// Reference chain: 7 -> add(offset 4) -> 11 -> square -> 121, version v1.0.
const (
	ScenarioVersion = "v1.0"
	ScenarioMaster  = "dde71a3e4391be92ebb1ffe972388a262633328612435fee83ece2dedae24c5b"

	// ScenarioHRich does not depend on the environment fingerprint.
	ScenarioHRich = "61bf99f50fa698e218ba8b13108a9aa1f209764172c0f6202c5b0b27caf9fc09"
)

// ScenarioInitial returns the reference initial state.
func ScenarioInitial() ir.IRValue { return ir.IRInt(7) }

// ScenarioConfig returns a fresh copy of the reference configuration.
func ScenarioConfig() ir.IRObject { return ir.IRObject{"offset": ir.IRInt(4)} }

// ScenarioStages returns the reference stage names.
func ScenarioStages() []string { return []string{"add", "square"} }

// ScenarioEnv returns a fixed environment fingerprint for golden output.
func ScenarioEnv() ir.IRValue {
	return ir.IRObject{
		"os":      ir.IRString("test"),
		"runtime": ir.IRString("go"),
	}
}
