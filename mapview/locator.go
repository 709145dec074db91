package mapview

import (
	"math/rand"
	"sync"
	"time"

	"github.com/pih12/Pravah/models"
)

// FallbackLocator hands out a jittered position around a fixed center for
// reports that arrive without a location.
type FallbackLocator struct {
	Center LatLng
	// Spread is the full width of the jitter window in degrees.
	Spread float64

	mu  sync.Mutex
	rnd *rand.Rand
}

func NewFallbackLocator(center LatLng, spread float64, seed int64) *FallbackLocator {
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	return &FallbackLocator{Center: center, Spread: spread, rnd: rand.New(rand.NewSource(seed))}
}

func (l *FallbackLocator) Locate() models.GPS {
	l.mu.Lock()
	dLat := (l.rnd.Float64() - 0.5) * l.Spread
	dLng := (l.rnd.Float64() - 0.5) * l.Spread
	l.mu.Unlock()
	return models.GPS{Lat: l.Center.Lat + dLat, Lng: l.Center.Lng + dLng}
}
