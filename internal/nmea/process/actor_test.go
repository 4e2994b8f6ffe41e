package process

import (
	"os"
	"sync"
	"testing"
	"time"

	"github.com/AsynkronIT/protoactor-go/actor"
	"github.com/dumacp/go-downlink/internal/nmea/device"
	"github.com/dumacp/go-downlink/internal/nmea/sentence"
	"github.com/dumacp/go-logs/pkg/logs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMain(m *testing.M) {
	logs.LogInfo = logs.New(os.Stderr, "", 0)
	logs.LogBuild = logs.New(os.Stderr, "", 0)
	logs.LogWarn = logs.New(os.Stderr, "", 0)
	logs.LogError = logs.New(os.Stderr, "", 0)
	os.Exit(m.Run())
}

type displayRecorder struct {
	mux     sync.Mutex
	records []sentence.Sentence
	rates   map[string]string
}

func (d *displayRecorder) Record(s sentence.Sentence) {
	d.mux.Lock()
	defer d.mux.Unlock()
	d.records = append(d.records, s)
}

func (d *displayRecorder) Rate(path, value string) {
	d.mux.Lock()
	defer d.mux.Unlock()
	if d.rates == nil {
		d.rates = make(map[string]string)
	}
	d.rates[path] = value
}

func (d *displayRecorder) rate(path string) (string, bool) {
	d.mux.Lock()
	defer d.mux.Unlock()
	v, ok := d.rates[path]
	return v, ok
}

func (d *displayRecorder) count() int {
	d.mux.Lock()
	defer d.mux.Unlock()
	return len(d.records)
}

func TestNewActor(t *testing.T) {
	tests := []struct {
		name    string
		lines   []string
		wantBad string
	}{
		{
			name:    "all valid",
			lines:   []string{"$GPADC,1,2,3,4,5,6,7,8", "$GPRPM,1200", "$Id,7"},
			wantBad: "0.00",
		},
		{
			name:    "invalid fields and unknown lines",
			lines:   []string{"$GPADC,1A,ZZ,0,0,0,0,0,0", "garbage", "$GPADC,1,2", "$GPMOD,2"},
			wantBad: "3.00",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			disp := &displayRecorder{}
			got := NewActor(disp, WithBadFrameWindow(time.Minute))

			sys := actor.NewActorSystem()
			pid := sys.Root.Spawn(actor.PropsFromFunc(got.Receive))
			defer sys.Root.Stop(pid)

			for _, l := range tt.lines {
				sys.Root.Send(pid, &device.MsgLine{Line: l})
			}
			sys.Root.Send(pid, &MsgTick{})

			require.Eventually(t, func() bool {
				_, ok := disp.rate(PathBadFrames)
				return ok
			}, time.Second, 10*time.Millisecond)
			assert.Equal(t, len(tt.lines), disp.count())
			v, _ := disp.rate(PathBadFrames)
			assert.Equal(t, tt.wantBad, v)
			v, _ = disp.rate(PathTrack)
			assert.Equal(t, "0.000", v)
		})
	}
}

func TestCheck(t *testing.T) {
	assert.NoError(t, check(sentence.Parse("$GPADC,1,2,3,4,5,6,7,8")))
	assert.NoError(t, check(sentence.Parse("$GPRAT,12")))
	assert.Error(t, check(sentence.Parse("$GPADC,1,2,3,4,5,6,7,XX")))
	assert.Error(t, check(sentence.Parse("hello")))
}

func TestTrack(t *testing.T) {
	var tr track
	assert.Equal(t, 0.0, tr.add(&sentence.Fix{Lat: 6.1649, Lng: -75.6016}))
	assert.Equal(t, 0.0, tr.add(&sentence.Fix{}))

	// one degree of latitude is about 111 km
	leg := tr.add(&sentence.Fix{Lat: 7.1649, Lng: -75.6016})
	assert.InDelta(t, 111.19, leg, 0.1)
	assert.InDelta(t, 111.19, tr.sample(), 0.1)
	assert.Equal(t, 0.0, tr.sample())
}
