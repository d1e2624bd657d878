package risk

import "math"

const earthRadiusKm = 6371.0

// DistanceKm is the great-circle distance between two lat/lon points.
func DistanceKm(lat1, lon1, lat2, lon2 float64) float64 {
	dLat := rad(lat2 - lat1)
	dLon := rad(lon2 - lon1)
	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(rad(lat1))*math.Cos(rad(lat2))*math.Sin(dLon/2)*math.Sin(dLon/2)
	return earthRadiusKm * 2 * math.Asin(math.Min(1, math.Sqrt(a)))
}

func rad(deg float64) float64 { return deg * math.Pi / 180 }
