package sentence

import (
	"fmt"
	"strconv"
	"strings"
)

//Channels is the number of hex fields in a $GPADC sentence.
const Channels = 8

//Invalid marks a channel whose field could not be decoded. The protocol
//has no way to tell it apart from a transmitted -1.
const Invalid = -1

//Sentence is one parsed line. The concrete type is one of *ADC, *Fix or
//Raw.
type Sentence interface {
	Kind() Kind
	Raw() string
}

//ADC is a decoded $GPADC sentence: raw converter readings of the IMU.
type ADC struct {
	Line     string
	Channels [Channels]int
}

func (a *ADC) Kind() Kind  { return Structured }
func (a *ADC) Raw() string { return a.Line }

//Valid reports whether every channel decoded.
func (a *ADC) Valid() bool {
	for _, v := range a.Channels {
		if v == Invalid {
			return false
		}
	}
	return true
}

func (a *ADC) String() string {
	var b strings.Builder
	b.WriteString("<GPADC>")
	for i, v := range a.Channels {
		fmt.Fprintf(&b, " p%d=%d", i+1, v)
	}
	return b.String()
}

//Line is a sentence passed through undecoded.
type Line struct {
	Type Kind
	Text string
}

func (l Line) Kind() Kind  { return l.Type }
func (l Line) Raw() string { return l.Text }

//Parse classifies the line and decodes it when its kind has a decoder.
func Parse(line string) Sentence {
	kind := Classify(line)
	switch kind {
	case Structured:
		if adc, ok := parseADC(line); ok {
			return adc
		}
		return Line{Type: Unknown, Text: line}
	case GPSFix:
		if fix := parseFix(line); fix != nil {
			return fix
		}
	}
	return Line{Type: kind, Text: line}
}

func parseADC(line string) (*ADC, bool) {
	fields := strings.Split(line, ",")
	if fields[0] != headerADC || len(fields) < Channels+1 {
		return nil, false
	}
	adc := &ADC{Line: line}
	for i := 0; i < Channels; i++ {
		adc.Channels[i] = parseHex(fields[i+1])
	}
	return adc, true
}

func parseHex(field string) int {
	v, err := strconv.ParseInt(field, 16, 32)
	if err != nil {
		return Invalid
	}
	return int(v)
}
