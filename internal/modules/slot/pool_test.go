package slot

import (
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"parkmatch/internal/config"
	"parkmatch/internal/types"
)

func quietLogger() logrus.FieldLogger {
	l := logrus.New()
	l.SetLevel(logrus.PanicLevel)
	return l
}

func newTestPool(t *testing.T, doc Document) *Pool {
	t.Helper()
	p, err := NewPool(config.Defaults().Pool, quietLogger())
	require.NoError(t, err)
	p.Load(doc)
	return p
}

func makeSlot(id string, lat, lng float64, status Status) Slot {
	return Slot{
		ID:         types.ID(id),
		Latitude:   lat,
		Longitude:  lng,
		City:       "Trichy",
		Area:       "Cantonment",
		Type:       TypeCommercial,
		Status:     status,
		PricePerHr: 40,
	}
}

func TestLoad_AdmitsOnlyAvailable(t *testing.T) {
	p, err := NewPool(config.Defaults().Pool, quietLogger())
	require.NoError(t, err)

	report := p.Load(Document{
		"Trichy": {
			makeSlot("T-1", 10.80, 78.70, StatusAvailable),
			makeSlot("T-2", 10.80, 78.70, StatusOccupied),
			makeSlot("T-3", 10.80, 78.70, StatusReserved),
			makeSlot("T-1", 10.81, 78.71, StatusAvailable),
		},
		"Delhi": {
			makeSlot("D-1", 28.63, 77.22, StatusAvailable),
			makeSlot("", 28.63, 77.22, StatusAvailable),
			makeSlot("D-bad", 128.63, 77.22, StatusAvailable),
		},
	})

	assert.Equal(t, LoadReport{Regions: 2, Admitted: 2, Skipped: 5}, report)
	assert.Equal(t, Stats{Available: 2, Total: 2}, p.Stats())

	s, err := p.Get("T-1")
	require.NoError(t, err)
	assert.NotEmpty(t, s.H3Index)
	assert.Equal(t, 10.80, s.Latitude, "first occurrence wins")

	_, err = p.Get("T-2")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestDecodeDocument(t *testing.T) {
	raw := `{"Mumbai":[{"id":"M-1","latitude":19.06,"longitude":72.83,"city":"Mumbai","area":"Bandra",
		"type":"street","status":"available","pricePerHour":45.5,"isEVCharging":true,"isHandicap":false}]}`
	doc, err := DecodeDocument(strings.NewReader(raw))
	require.NoError(t, err)
	require.Len(t, doc["Mumbai"], 1)
	assert.Equal(t, TypeStreet, doc["Mumbai"][0].Type)
	assert.True(t, doc["Mumbai"][0].IsEVCharging)
	assert.Equal(t, 45.5, doc["Mumbai"][0].PricePerHr)

	_, err = DecodeDocument(strings.NewReader("[1,2"))
	assert.Error(t, err)
}

func TestSetStatus_Transitions(t *testing.T) {
	p := newTestPool(t, Document{"Trichy": {makeSlot("A", 10.8, 78.7, StatusAvailable), makeSlot("B", 10.8, 78.7, StatusAvailable)}})

	require.NoError(t, p.SetStatus("A", StatusOccupied))
	require.NoError(t, p.SetStatus("A", StatusOccupied), "marking occupied twice is a no-op")
	assert.ErrorIs(t, p.SetStatus("A", StatusReserved), ErrInvalidTransition)
	require.NoError(t, p.SetStatus("A", StatusAvailable))

	require.NoError(t, p.SetStatus("B", StatusReserved))
	assert.ErrorIs(t, p.SetStatus("B", StatusAvailable), ErrInvalidTransition)
	assert.ErrorIs(t, p.SetStatus("B", StatusOccupied), ErrInvalidTransition)

	assert.ErrorIs(t, p.SetStatus("missing", StatusOccupied), ErrNotFound)
	assert.ErrorIs(t, p.SetStatus("A", Status("broken")), ErrInvalidStatus)

	assert.Equal(t, Stats{Available: 1, Reserved: 1, Total: 2}, p.Stats())
}

func TestCompareAndSetStatus(t *testing.T) {
	p := newTestPool(t, Document{"Trichy": {makeSlot("A", 10.8, 78.7, StatusAvailable)}})

	require.NoError(t, p.CompareAndSetStatus("A", StatusAvailable, StatusOccupied))
	err := p.CompareAndSetStatus("A", StatusAvailable, StatusOccupied)
	assert.ErrorIs(t, err, ErrStatusMismatch)

	s, _ := p.Get("A")
	assert.Equal(t, StatusOccupied, s.Status)
}

func TestRead_RejectsWrites(t *testing.T) {
	p := newTestPool(t, Document{"Trichy": {makeSlot("A", 10.8, 78.7, StatusAvailable)}})
	var err error
	p.Read(func(tx *Tx) {
		err = tx.SetStatus("A", StatusOccupied)
	})
	assert.ErrorIs(t, err, ErrReadOnly)
}

// Observers run after the write lock is released, so calling back into the
// pool from an observer must not deadlock.
func TestObserver_CalledOutsideLock(t *testing.T) {
	p := newTestPool(t, Document{"Trichy": {makeSlot("A", 10.8, 78.7, StatusAvailable)}})

	var got []StatusChange
	p.AddObserver(ObserverFunc(func(c StatusChange) {
		s, err := p.Get(c.Slot.ID)
		assert.NoError(t, err)
		assert.Equal(t, c.To, s.Status)
		got = append(got, c)
	}))

	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = p.SetStatus("A", StatusOccupied)
		_ = p.SetStatus("A", StatusOccupied)
		_ = p.SetStatus("A", StatusAvailable)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		require.FailNow(t, "observer deadlocked against the pool lock")
	}

	require.Len(t, got, 2, "no-op flips are not reported")
	assert.Equal(t, StatusAvailable, got[0].From)
	assert.Equal(t, StatusOccupied, got[0].To)
	assert.Equal(t, StatusAvailable, got[1].To)
}

func TestNearby_ReturnsCopies(t *testing.T) {
	p := newTestPool(t, Document{"Trichy": {makeSlot("A", 10.8, 78.7, StatusAvailable)}})
	got := p.Nearby(types.Point{Lat: 10.8, Lng: 78.7}, 0.5)
	require.Len(t, got, 1)
	got[0].Status = StatusReserved

	s, _ := p.Get("A")
	assert.Equal(t, StatusAvailable, s.Status)
}

func TestNearby_FiltersByDistanceNearestFirst(t *testing.T) {
	p := newTestPool(t, Document{"Trichy": {
		makeSlot("FAR", 10.83, 78.7, StatusAvailable),
		makeSlot("B", 10.801, 78.7, StatusAvailable),
		makeSlot("A", 10.801, 78.7, StatusAvailable),
		makeSlot("HERE", 10.8, 78.7, StatusAvailable),
	}})
	require.NoError(t, p.SetStatus("B", StatusOccupied))

	got := p.Nearby(types.Point{Lat: 10.8, Lng: 78.7}, 1)
	ids := make([]types.ID, len(got))
	for i, s := range got {
		ids[i] = s.ID
	}
	assert.Equal(t, []types.ID{"HERE", "A", "B"}, ids, "FAR is ~3.3 km out; occupied slots are listed too")
	assert.Equal(t, StatusOccupied, got[2].Status)
}

func TestStats_OccupancyRate(t *testing.T) {
	assert.Equal(t, 0.0, Stats{}.OccupancyRate())
	assert.InDelta(t, 0.25, Stats{Available: 3, Occupied: 1, Total: 4}.OccupancyRate(), 1e-9)
}

func TestPool_ConcurrentReadersAndWriters(t *testing.T) {
	doc := Document{}
	for i := 0; i < 50; i++ {
		doc["Chennai"] = append(doc["Chennai"], makeSlot(fmt.Sprintf("C-%02d", i), 13.04+float64(i)*0.0005, 80.24, StatusAvailable))
	}
	p := newTestPool(t, doc)

	var wg sync.WaitGroup
	for w := 0; w < 8; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < 200; i++ {
				id := types.ID(fmt.Sprintf("C-%02d", (w*7+i)%50))
				if i%2 == 0 {
					_ = p.SetStatus(id, StatusOccupied)
				} else {
					_ = p.SetStatus(id, StatusAvailable)
				}
				_ = p.Nearby(types.Point{Lat: 13.05, Lng: 80.24}, 1)
				_ = p.Stats()
			}
		}(w)
	}
	wg.Wait()

	st := p.Stats()
	assert.Equal(t, 50, st.Total)
	assert.Equal(t, 50, st.Available+st.Occupied)
}
