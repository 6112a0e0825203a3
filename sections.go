package msx

import "strings"

// section identifies one bracketed section of a chemistry input file,
// matching original_source/src/msxdict.h's section keyword order.
type section int

const (
	secTitle section = iota
	secSpecies
	secCoefficients
	secTerms
	secPipes
	secTanks
	secSources
	secQuality
	secParameters
	secPatterns
	secOptions
	secReport
	secNone = -1
)

var sectionWords = map[string]section{
	"TITLE":        secTitle,
	"SPECIES":      secSpecies,
	"COEFFICIENTS": secCoefficients,
	"TERMS":        secTerms,
	"PIPES":        secPipes,
	"TANKS":        secTanks,
	"SOURCES":      secSources,
	"QUALITY":      secQuality,
	"PARAMETERS":   secParameters,
	"PATTERNS":     secPatterns,
	"OPTIONS":      secOptions,
	"REPORT":       secReport,
}

func lookupSection(token string) (section, bool) {
	s, ok := sectionWords[strings.ToUpper(strings.Trim(token, "[]"))]
	return s, ok
}

var massUnitsWords = map[string]MassUnits{"MG": MG, "UG": UG, "MOLE": Mole, "MMOL": MMol}

var mixingWords = map[string]MixingModel{
	"MIXED": MixComplete,
	"2COMP": MixTwoComp,
	"FIFO":  MixFIFO,
	"LIFO":  MixLIFO,
}

var sourceWords = map[string]SourceKind{
	"CONC":     SourceConcen,
	"MASS":     SourceMassBooster,
	"FLOW":     SourceFlowPacedBooster,
	"SETPOINT": SourceSetpointBooster,
}

var exprKindWords = map[string]ExprKind{
	"RATE":    ExprRate,
	"FORMULA": ExprFormula,
	"EQUIL":   ExprEquil,
}

// AreaUnits is the OPTIONS AREA_UNITS setting. It is stored in Options;
// no area in the network is converted by it.
type AreaUnits int

const (
	AreaFT2 AreaUnits = iota
	AreaM2
	AreaCM2
)

var areaUnitsWords = map[string]AreaUnits{"FT2": AreaFT2, "M2": AreaM2, "CM2": AreaCM2}

// TimeUnits is the OPTIONS RATE_UNITS setting: the time base kinetic
// coefficients are expressed in.
type TimeUnits int

const (
	TimeSec TimeUnits = iota
	TimeMin
	TimeHr
	TimeDay
)

var timeUnitsWords = map[string]TimeUnits{"SEC": TimeSec, "MIN": TimeMin, "HR": TimeHr, "DAY": TimeDay}

// secondsPerUnit converts one unit of TimeUnits into seconds. Nothing
// calls it: rate expressions are integrated over the quality time step in
// seconds whatever RATE_UNITS says.
func secondsPerUnit(u TimeUnits) float64 {
	switch u {
	case TimeMin:
		return 60
	case TimeHr:
		return 3600
	case TimeDay:
		return 86400
	default:
		return 1
	}
}

var solverWords = map[string]string{"EUL": "EUL", "RK5": "RK5", "ROS2": "ROS2"}

var couplingWords = map[string]string{"NONE": "NONE", "FULL": "FULL"}
