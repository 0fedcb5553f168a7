package simulator

import "math"

const speedOfLight = 299_792_458.0 // m/s

// WGS84 ellipsoid.
const (
	wgs84A  = 6378137.0
	wgs84F  = 1.0 / 298.257223563
	wgs84E2 = 2*wgs84F - wgs84F*wgs84F
)

// Position is a geodetic point: degrees and metres above the ellipsoid.
type Position struct {
	Latitude  float64 `yaml:"latitude"`
	Longitude float64 `yaml:"longitude"`
	Altitude  float64 `yaml:"altitude"`
}

func (p Position) ecef() (x, y, z float64) {
	lat := p.Latitude * math.Pi / 180
	lon := p.Longitude * math.Pi / 180
	n := wgs84A / math.Sqrt(1-wgs84E2*math.Sin(lat)*math.Sin(lat))
	x = (n + p.Altitude) * math.Cos(lat) * math.Cos(lon)
	y = (n + p.Altitude) * math.Cos(lat) * math.Sin(lon)
	z = (n*(1-wgs84E2) + p.Altitude) * math.Sin(lat)
	return x, y, z
}

// Distance is the straight-line distance in metres.
func Distance(a, b Position) float64 {
	x1, y1, z1 := a.ecef()
	x2, y2, z2 := b.ecef()
	dx, dy, dz := x2-x1, y2-y1, z2-z1
	return math.Sqrt(dx*dx + dy*dy + dz*dz)
}

// PropagationDelay is the free-space travel time in seconds.
func PropagationDelay(a, b Position) float64 {
	return Distance(a, b) / speedOfLight
}
