package sentence

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		line string
		want Kind
	}{
		{"$GPADC,01,02,03,04,05,06,07,08", Structured},
		{"$GPADC,$GPRPM,$Id", Structured},
		{"$GPRPM,0BB8", RPM},
		{"$Id:imu.c,v1.2", Identity},
		{"$GPMOD,1", Mode},
		{"$GPPPM,01,02", PPM},
		{"$GPAXY,1,2", ComputedXY},
		{"$GPRAT,1,2", ComputedRate},
		{"$GPGGA,144135,0609.894786,N", GPSFix},
		{"GPADC,01", Unknown},
		{"", Unknown},
	}
	for _, tt := range tests {
		t.Run(tt.line, func(t *testing.T) {
			assert.Equal(t, tt.want, Classify(tt.line))
		})
	}
}

func TestKindHeader(t *testing.T) {
	assert.Equal(t, "$GPADC", Structured.Header())
	assert.Equal(t, "$Id", Identity.Header())
	assert.Equal(t, "", Unknown.Header())
	assert.Equal(t, "GPRPM", RPM.String())
}

func TestParse_ADC(t *testing.T) {
	s := Parse("$GPADC,1A,2B,3C,4D,5E,6F,70,81")
	adc, ok := s.(*ADC)
	require.True(t, ok, "got %T", s)
	assert.Equal(t, [Channels]int{0x1A, 0x2B, 0x3C, 0x4D, 0x5E, 0x6F, 0x70, 0x81}, adc.Channels)
	assert.True(t, adc.Valid())
	assert.Equal(t, Structured, adc.Kind())
}

func TestParse_ADCFieldFault(t *testing.T) {
	s := Parse("$GPADC,1A,ZZ,03,04,05,06,07,08")
	adc, ok := s.(*ADC)
	require.True(t, ok, "got %T", s)
	assert.Equal(t, [Channels]int{0x1A, Invalid, 3, 4, 5, 6, 7, 8}, adc.Channels)
	assert.False(t, adc.Valid())
}

func TestParse_ADCEveryFieldIndependent(t *testing.T) {
	s := Parse("$GPADC,,G1,0x10,+0F,-2,ffff,7FFFFFFF,80000000")
	adc, ok := s.(*ADC)
	require.True(t, ok)
	assert.Equal(t, [Channels]int{Invalid, Invalid, Invalid, 15, -2, 0xffff, 0x7FFFFFFF, Invalid}, adc.Channels)
}

func TestParse_ADCTrailingFieldsIgnored(t *testing.T) {
	s := Parse("$GPADC,1,2,3,4,5,6,7,8,*00")
	adc, ok := s.(*ADC)
	require.True(t, ok)
	assert.Equal(t, [Channels]int{1, 2, 3, 4, 5, 6, 7, 8}, adc.Channels)
}

func TestParse_ADCWrongShape(t *testing.T) {
	tests := []string{
		"$GPADC,01,02,03",
		"$GPADC",
		"$GPADCX,1,2,3,4,5,6,7,8",
	}
	for _, line := range tests {
		t.Run(line, func(t *testing.T) {
			s := Parse(line)
			l, ok := s.(Line)
			require.True(t, ok, "got %T", s)
			assert.Equal(t, Unknown, l.Kind())
			assert.Equal(t, line, l.Raw())
		})
	}
}

func TestParse_PassThrough(t *testing.T) {
	tests := []struct {
		line string
		kind Kind
	}{
		{"$GPRPM,0BB8", RPM},
		{"$Id:imu.c", Identity},
		{"$GPPPM,1,2,3", PPM},
		{"hello", Unknown},
	}
	for _, tt := range tests {
		s := Parse(tt.line)
		l, ok := s.(Line)
		require.True(t, ok, "got %T", s)
		assert.Equal(t, tt.kind, l.Kind())
		assert.Equal(t, tt.line, l.Raw())
	}
}
