package geo

import (
	"math"

	"github.com/shenikar/sos_dispatch_system/internal/models"
)

// EarthRadiusKm - радиус сферической Земли
const EarthRadiusKm = 6371.0

// DistanceKm возвращает расстояние по большому кругу (формула гаверсинусов)
func DistanceKm(a, b models.Point) float64 {
	lat1 := toRadians(a.Lat)
	lat2 := toRadians(b.Lat)
	dLat := toRadians(b.Lat - a.Lat)
	dLng := toRadians(b.Lng - a.Lng)

	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1)*math.Cos(lat2)*math.Sin(dLng/2)*math.Sin(dLng/2)
	return 2 * EarthRadiusKm * math.Asin(math.Min(1, math.Sqrt(h)))
}

// Valid проверяет диапазоны широты и долготы
func Valid(p models.Point) bool {
	return p.Lat >= -90 && p.Lat <= 90 && p.Lng >= -180 && p.Lng <= 180 &&
		!math.IsNaN(p.Lat) && !math.IsNaN(p.Lng)
}

// Offset сдвигает точку на northKm к северу и eastKm к востоку.
// Приближение для малых расстояний, используется в тестах и сидировании.
func Offset(p models.Point, northKm, eastKm float64) models.Point {
	dLat := northKm / EarthRadiusKm
	dLng := eastKm / (EarthRadiusKm * math.Cos(toRadians(p.Lat)))
	return models.Point{
		Lat: p.Lat + toDegrees(dLat),
		Lng: p.Lng + toDegrees(dLng),
	}
}

func toRadians(deg float64) float64 { return deg * math.Pi / 180 }

func toDegrees(rad float64) float64 { return rad * 180 / math.Pi }
