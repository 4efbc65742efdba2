// Package seed generates sample flight inventory and loads it through the
// flight service.
package seed

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"math/rand/v2"
	"time"

	"github.com/Domenick1991/ftms/internal/domain"
	"github.com/Domenick1991/ftms/internal/repository"
	"github.com/Domenick1991/ftms/internal/service/flights"
)

type Airport struct {
	City string
	Name string
	Code string
}

var Airports = []Airport{
	{"Beijing", "Beijing Capital International Airport", "PEK"},
	{"Beijing", "Beijing Daxing International Airport", "PKX"},
	{"Shanghai", "Shanghai Pudong International Airport", "PVG"},
	{"Shanghai", "Shanghai Hongqiao International Airport", "SHA"},
	{"Guangzhou", "Guangzhou Baiyun International Airport", "CAN"},
	{"Shenzhen", "Shenzhen Bao'an International Airport", "SZX"},
	{"Chengdu", "Chengdu Tianfu International Airport", "TFU"},
	{"Chengdu", "Chengdu Shuangliu International Airport", "CTU"},
	{"Chongqing", "Chongqing Jiangbei International Airport", "CKG"},
	{"Hangzhou", "Hangzhou Xiaoshan International Airport", "HGH"},
	{"Nanjing", "Nanjing Lukou International Airport", "NKG"},
	{"Wuhan", "Wuhan Tianhe International Airport", "WUH"},
	{"Xi'an", "Xi'an Xianyang International Airport", "XIY"},
	{"Kunming", "Kunming Changshui International Airport", "KMG"},
	{"Changsha", "Changsha Huanghua International Airport", "CSX"},
	{"Qingdao", "Qingdao Jiaodong International Airport", "TAO"},
	{"Xiamen", "Xiamen Gaoqi International Airport", "XMN"},
	{"Harbin", "Harbin Taiping International Airport", "HRB"},
	{"Haikou", "Haikou Meilan International Airport", "HAK"},
	{"Sanya", "Sanya Phoenix International Airport", "SYX"},
	{"Urumqi", "Urumqi Diwopu International Airport", "URC"},
	{"Lhasa", "Lhasa Gonggar International Airport", "LXA"},
}

var Airlines = []string{"CA", "MU", "CZ", "HU", "ZH", "MF", "3U", "FM", "SC", "GS", "KN", "9C", "HO", "8L", "G5"}

var (
	hotCities  = map[string]bool{"Beijing": true, "Shanghai": true, "Guangzhou": true, "Shenzhen": true, "Chengdu": true, "Hangzhou": true, "Chongqing": true, "Xi'an": true}
	farCities  = map[string]bool{"Urumqi": true, "Lhasa": true, "Harbin": true, "Sanya": true, "Haikou": true}
	tierCities = map[string]bool{"Beijing": true, "Shanghai": true, "Guangzhou": true}
)

type Options struct {
	Count int
	// Days is the window after Start in which flights depart.
	Days  int
	Start time.Time
	Rand  *rand.Rand
}

// Generate builds Count flights between distinct cities. Seat counts are
// whole rows of the seat map, 20 to 30 rows.
func Generate(opts Options) []domain.Flight {
	rng := opts.Rand
	if rng == nil {
		rng = rand.New(rand.NewPCG(uint64(time.Now().UnixNano()), 0))
	}
	days := max(opts.Days, 1)
	start := opts.Start
	y, m, d := start.Date()
	start = time.Date(y, m, d, 0, 0, 0, 0, start.Location())

	out := make([]domain.Flight, 0, opts.Count)
	for len(out) < opts.Count {
		dep := Airports[rng.IntN(len(Airports))]
		arr := Airports[rng.IntN(len(Airports))]
		if dep.City == arr.City {
			continue
		}

		departAt := start.AddDate(0, 0, rng.IntN(days)).
			Add(time.Duration(6+rng.IntN(16)) * time.Hour).
			Add(time.Duration(5*rng.IntN(12)) * time.Minute)
		minutes := duration(rng, dep.City, arr.City)
		rows := 20 + rng.IntN(domain.SeatRows-20+1)

		out = append(out, domain.Flight{
			FlightID:         fmt.Sprintf("%s%d", Airlines[rng.IntN(len(Airlines))], 1000+len(out)),
			Departure:        dep.City,
			Destination:      arr.City,
			DepartureAirport: dep.Name,
			ArrivalAirport:   arr.Name,
			DepartTime:       departAt,
			ArriveTime:       departAt.Add(time.Duration(minutes) * time.Minute),
			Price:            price(rng, minutes, hotCities[dep.City] && hotCities[arr.City]),
			RestSeats:        rows * len(domain.SeatColumns),
		})
	}
	return out
}

func duration(rng *rand.Rand, from, to string) int {
	switch {
	case farCities[from] || farCities[to]:
		return 180 + rng.IntN(121)
	case tierCities[from] && tierCities[to]:
		return 120 + rng.IntN(61)
	default:
		return 90 + rng.IntN(91)
	}
}

func price(rng *rand.Rand, minutes int, hot bool) float64 {
	base := float64(minutes) * 3
	if hot {
		base *= 1.2 + rng.Float64()*0.6
	} else {
		base *= 0.8 + rng.Float64()*0.4
	}
	return math.Max(math.Round(base+float64(rng.IntN(301)-100)), 1)
}

type Result struct {
	Added   int
	Skipped int
}

// Load adds every flight through svc on one handle. Flights whose id
// already exists are skipped.
func Load(ctx context.Context, opener repository.Opener, svc flights.FlightUseCase, list []domain.Flight, logger *slog.Logger) (Result, error) {
	h, err := opener.Open(ctx)
	if err != nil {
		return Result{}, fmt.Errorf("open store handle: %w", err)
	}
	defer h.Close()

	var res Result
	for i, f := range list {
		err := svc.Add(ctx, h, f)
		switch {
		case errors.Is(err, flights.ErrFlightExists):
			res.Skipped++
		case err != nil:
			return res, fmt.Errorf("add flight %s: %w", f.FlightID, err)
		default:
			res.Added++
		}
		if (i+1)%1000 == 0 {
			logger.Info("seeding flights", "done", i+1, "total", len(list))
		}
	}
	return res, nil
}
