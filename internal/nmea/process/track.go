package process

import (
	"github.com/dumacp/go-downlink/internal/nmea/sentence"
	"github.com/golang/geo/s2"
)

const earthRadiusKm = 6371.01

//track accumulates the distance between consecutive GPS fixes.
type track struct {
	last     *sentence.Fix
	distance float64
}

//add returns the leg in km from the previous fix. Fixes at 0,0 carry no
//position and are skipped.
func (t *track) add(fix *sentence.Fix) float64 {
	if fix.Lat == 0 && fix.Lng == 0 {
		return 0
	}
	defer func() { t.last = fix }()
	if t.last == nil {
		return 0
	}
	p1 := s2.LatLngFromDegrees(t.last.Lat, t.last.Lng)
	p2 := s2.LatLngFromDegrees(fix.Lat, fix.Lng)
	leg := p1.Distance(p2).Radians() * earthRadiusKm
	t.distance += leg
	return leg
}

//sample returns the distance since the previous sample and resets it.
func (t *track) sample() float64 {
	d := t.distance
	t.distance = 0
	return d
}
