package sentence

import (
	"time"

	"github.com/dumacp/gpsnmea"
)

//Fix is a decoded $GPGGA sentence from the onboard GPS.
type Fix struct {
	Line      string
	Lat       float64
	Lng       float64
	Altitude  float64
	HDop      float64
	Sats      int
	TimeStamp time.Time
}

func (f *Fix) Kind() Kind  { return GPSFix }
func (f *Fix) Raw() string { return f.Line }

func parseFix(line string) (fix *Fix) {
	// a malformed fix must not take the reader down
	defer func() {
		if r := recover(); r != nil {
			fix = nil
		}
	}()
	vg := gpsnmea.ParseGGA(line)
	if vg == nil {
		return nil
	}
	t0, _ := time.Parse("150405", vg.TimeStamp)
	return &Fix{
		Line:      line,
		Lat:       gpsnmea.LatLongToDecimalDegree(vg.Lat, vg.LatCord),
		Lng:       gpsnmea.LatLongToDecimalDegree(vg.Long, vg.LongCord),
		Altitude:  float64(vg.Altitude),
		HDop:      float64(vg.HDop),
		Sats:      int(vg.NumberSat),
		TimeStamp: t0,
	}
}
