package intensity

import (
	"errors"
	"testing"

	"github.com/open-climate/physrisk/internal/domain"
)

// A storm centered on the site with generous radii: any wind speed maps
// straight to its band.
func stormAtSite(year int, windKt float64) domain.TrackPoint {
	return domain.TrackPoint{
		StormID:       "TC-TEST",
		Year:          year,
		Latitude:      35.0,
		Longitude:     139.0,
		MaxWindKt:     windKt,
		RadiusMajorKm: 200,
		RadiusMinorKm: 150,
	}
}

func TestPointBinWindBands(t *testing.T) {
	cases := []struct {
		windKt float64
		want   int
	}{
		{20, 0},  // below gale force
		{34, 1},  // gale
		{63, 1},
		{64, 2},  // hurricane force
		{95, 2},
		{96, 3},  // major
		{140, 3},
	}
	for _, tc := range cases {
		got := PointBin(35.0, 139.0, stormAtSite(2030, tc.windKt))
		if got != tc.want {
			t.Errorf("PointBin(wind=%v) = %d, want %d", tc.windKt, got, tc.want)
		}
	}
}

func TestPointBinOutsideEllipse(t *testing.T) {
	tp := stormAtSite(2030, 120)
	tp.Latitude = 20.0 // ~1600km away, far outside a 200km radius
	if got := PointBin(35.0, 139.0, tp); got != 0 {
		t.Errorf("site outside wind field should bin to 0, got %d", got)
	}
}

func TestPointBinEllipseOrientation(t *testing.T) {
	// Narrow ellipse pointing north: 100km along the major axis is
	// inside, 100km across the minor axis is not.
	tp := domain.TrackPoint{
		Year: 2030, Latitude: 35.0, Longitude: 139.0,
		MaxWindKt: 80, RadiusMajorKm: 150, RadiusMinorKm: 50, BearingDeg: 0,
	}

	northLat := 35.0 + 100.0/kmPerDegreeLat
	if PointBin(northLat, 139.0, tp) == 0 {
		t.Error("point 100km along the major axis should be inside")
	}

	eastLon := 139.0 + 100.0/(kmPerDegreeLat*0.819) // cos(35 deg)
	if PointBin(35.0, eastLon, tp) != 0 {
		t.Error("point 100km across the minor axis should be outside")
	}
}

func TestAnnualScoresAccumulate(t *testing.T) {
	tracks := []domain.TrackPoint{
		stormAtSite(2030, 40),  // band 1, weight 1
		stormAtSite(2030, 70),  // band 2, weight 3
		stormAtSite(2030, 100), // band 3, weight 6
		stormAtSite(2031, 20),  // band 0, weight 0
	}

	scores := AnnualScores(35.0, 139.0, tracks)
	if scores[2030] != 10 {
		t.Errorf("2030 score = %v, want 10", scores[2030])
	}
	if scores[2031] != 0 {
		t.Errorf("2031 score = %v, want 0 (observed but calm)", scores[2031])
	}
}

func TestTyphoonExtract(t *testing.T) {
	in := testInputs(domain.YearRange{Start: 2030, End: 2031})
	in.Tracks = []domain.TrackPoint{
		stormAtSite(2030, 70),
		stormAtSite(2031, 40),
		stormAtSite(2050, 120), // outside period, excluded
	}

	series, err := NewTyphoonExtractor().Extract(in)
	if err != nil {
		t.Fatalf("Extract failed: %v", err)
	}
	if len(series.Points) != 2 {
		t.Fatalf("expected 2 yearly scores, got %d", len(series.Points))
	}
	if series.Points[0].Value != 3 || series.Points[1].Value != 1 {
		t.Errorf("unexpected scores: %+v", series.Points)
	}
}

func TestTyphoonStormFreeYearsScoreZero(t *testing.T) {
	// One storm in a ten-year window. The other nine years are calm
	// seasons, not gaps: they must appear with score 0 so the event
	// keeps its 1-in-10 empirical frequency.
	in := testInputs(domain.YearRange{Start: 2030, End: 2039})
	in.Tracks = []domain.TrackPoint{stormAtSite(2034, 100)}

	series, err := NewTyphoonExtractor().Extract(in)
	if err != nil {
		t.Fatalf("Extract failed: %v", err)
	}
	if len(series.Points) != 10 {
		t.Fatalf("expected 10 yearly scores, got %d", len(series.Points))
	}
	for i, p := range series.Points {
		if p.Year != 2030+i {
			t.Errorf("point %d year = %d, want %d", i, p.Year, 2030+i)
		}
		want := 0.0
		if p.Year == 2034 {
			want = 6
		}
		if p.Value != want {
			t.Errorf("year %d score = %v, want %v", p.Year, p.Value, want)
		}
	}
}

func TestTyphoonNoTracks(t *testing.T) {
	in := testInputs(domain.YearRange{Start: 2030, End: 2031})
	if _, err := NewTyphoonExtractor().Extract(in); !errors.Is(err, domain.ErrInsufficientData) {
		t.Errorf("expected ErrInsufficientData, got %v", err)
	}
}

func TestTyphoonNoPeriodOverlap(t *testing.T) {
	in := testInputs(domain.YearRange{Start: 2030, End: 2031})
	in.Tracks = []domain.TrackPoint{stormAtSite(2080, 70)}
	if _, err := NewTyphoonExtractor().Extract(in); !errors.Is(err, domain.ErrInvalidTimeRange) {
		t.Errorf("expected ErrInvalidTimeRange, got %v", err)
	}
}
