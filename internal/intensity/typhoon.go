package intensity

import (
	"fmt"
	"math"

	"github.com/open-climate/physrisk/internal/domain"
)

// Wind-band lower bounds in knots and the exposure weight per band.
// Band 0 (below gale force, or site outside the wind field) contributes
// nothing to the annual score.
var (
	windBandBoundsKt = []float64{34, 64, 96}
	windBandWeights  = []float64{0, 1, 3, 6}
)

// kmPerDegreeLat is a fixed meridian degree length; longitude degrees
// shrink with the cosine of latitude.
const kmPerDegreeLat = 111.32

// TyphoonExtractor derives one value per year: the accumulated cyclone
// exposure score. Two distinct binning levels: each track point is
// classified into an ordinal wind band via an ellipse containment test
// (PointBin), then each year's band weights are summed into one annual
// score (AnnualScores). Both levels are exported so methodology changes
// to either can be tested in isolation.
type TyphoonExtractor struct{}

func NewTyphoonExtractor() *TyphoonExtractor { return &TyphoonExtractor{} }

func (e *TyphoonExtractor) RiskType() domain.RiskType { return domain.RiskTyphoon }

// RequiredVariables is empty: the strategy consumes the track-point
// bundle, not gridded series.
func (e *TyphoonExtractor) RequiredVariables() []domain.Variable { return nil }

func (e *TyphoonExtractor) Extract(in *Inputs) (*domain.IntensitySeries, error) {
	tracks, err := tracksInPeriod(in)
	if err != nil {
		return nil, err
	}

	scores := AnnualScores(in.Site.Latitude, in.Site.Longitude, tracks)

	// Every year of the period scores, storm-free years at zero. The
	// warehouse pre-joins all events near the site, so an absent year is
	// a calm season, not a gap; dropping it would inflate the empirical
	// exceedance frequency.
	years := make([]int, 0, in.Period.End-in.Period.Start+1)
	for y := in.Period.Start; y <= in.Period.End; y++ {
		years = append(years, y)
	}

	return yearlySeries(e.RiskType(), domain.NormalizationNone, years, func(y int) float64 {
		return scores[y]
	}), nil
}

func tracksInPeriod(in *Inputs) ([]domain.TrackPoint, error) {
	if len(in.Tracks) == 0 {
		return nil, fmt.Errorf("%w: typhoon requires cyclone track points", domain.ErrInsufficientData)
	}
	out := make([]domain.TrackPoint, 0, len(in.Tracks))
	for _, tp := range in.Tracks {
		if in.Period.Contains(tp.Year) {
			out = append(out, tp)
		}
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("%w: no track points in %s", domain.ErrInvalidTimeRange, in.Period)
	}
	return out, nil
}

// PointBin classifies one track point's instantaneous impact on the site
// into an ordinal wind band. Band 0 means no impact: the site lies
// outside the storm's wind-field ellipse, or the storm is below gale
// force.
func PointBin(siteLat, siteLon float64, tp domain.TrackPoint) int {
	if !insideEllipse(siteLat, siteLon, tp) {
		return 0
	}
	band := 0
	for _, bound := range windBandBoundsKt {
		if tp.MaxWindKt >= bound {
			band++
		}
	}
	return band
}

// AnnualScores sums the band weight of every track point into a
// per-year exposure score. Years with points but zero total weight are
// kept: an observed storm season that never touched the site is a valid
// zero, distinct from a year with no data.
func AnnualScores(siteLat, siteLon float64, tracks []domain.TrackPoint) map[int]float64 {
	scores := make(map[int]float64)
	for _, tp := range tracks {
		scores[tp.Year] += windBandWeights[PointBin(siteLat, siteLon, tp)]
	}
	return scores
}

// insideEllipse tests whether the site falls inside the track point's
// wind-field ellipse. Distances use an equirectangular approximation,
// adequate at storm-radius scales; the ellipse is rotated to the
// point's bearing.
func insideEllipse(siteLat, siteLon float64, tp domain.TrackPoint) bool {
	if tp.RadiusMajorKm <= 0 || tp.RadiusMinorKm <= 0 {
		return false
	}

	dxKm := (siteLon - tp.Longitude) * kmPerDegreeLat * math.Cos(tp.Latitude*math.Pi/180)
	dyKm := (siteLat - tp.Latitude) * kmPerDegreeLat

	// Rotate into the ellipse frame: major axis along the bearing.
	theta := tp.BearingDeg * math.Pi / 180
	along := dxKm*math.Sin(theta) + dyKm*math.Cos(theta)
	across := dxKm*math.Cos(theta) - dyKm*math.Sin(theta)

	u := along / tp.RadiusMajorKm
	v := across / tp.RadiusMinorKm
	return u*u+v*v <= 1
}
