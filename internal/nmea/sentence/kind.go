package sentence

import "strings"

//Kind identifies a telemetry sentence by its header.
type Kind int

const (
	Unknown Kind = iota
	Structured
	Mode
	RPM
	PPM
	ComputedXY
	ComputedRate
	GPSFix
	Identity
)

const (
	headerADC = "$GPADC"
	headerMOD = "$GPMOD"
	headerRPM = "$GPRPM"
	headerPPM = "$GPPPM"
	headerAXY = "$GPAXY"
	headerRAT = "$GPRAT"
	headerGGA = "$GPGGA"
	headerID  = "$Id"
)

//precedence is the order headers are tested in. The first three are the
//ones the ground station has always recognised; keep them first.
var precedence = []struct {
	header string
	kind   Kind
}{
	{headerADC, Structured},
	{headerRPM, RPM},
	{headerID, Identity},
	{headerMOD, Mode},
	{headerPPM, PPM},
	{headerAXY, ComputedXY},
	{headerRAT, ComputedRate},
	{headerGGA, GPSFix},
}

//Classify returns the Kind of a line from its literal prefix.
func Classify(line string) Kind {
	for _, p := range precedence {
		if strings.HasPrefix(line, p.header) {
			return p.kind
		}
	}
	return Unknown
}

//Header is the literal prefix of the kind, or "" for Unknown.
func (k Kind) Header() string {
	for _, p := range precedence {
		if p.kind == k {
			return p.header
		}
	}
	return ""
}

func (k Kind) String() string {
	switch k {
	case Structured:
		return "GPADC"
	case Mode:
		return "GPMOD"
	case RPM:
		return "GPRPM"
	case PPM:
		return "GPPPM"
	case ComputedXY:
		return "GPAXY"
	case ComputedRate:
		return "GPRAT"
	case GPSFix:
		return "GPGGA"
	case Identity:
		return "ID"
	default:
		return "UNKNOWN"
	}
}
