package bridge

import (
	"time"

	"github.com/noorbagus/asdp-boat-sub002/gesture"
	"github.com/noorbagus/asdp-boat-sub002/wire"
)

// maxRecentStrokes bounds the stroke history kept for the dashboard chart.
const maxRecentStrokes = 50

// StrokeRecord is one stroke in the session history.
type StrokeRecord struct {
	Side  string  `json:"side"`
	Angle float64 `json:"angle"`
	TS    int64   `json:"ts"` // unix millis
	Count int     `json:"count"`
}

// Session is the full bridge state broadcast to dashboard clients.
type Session struct {
	Active        bool           `json:"active"`
	Paused        bool           `json:"paused"` // paddle link lost mid-session
	ElapsedSec    float64        `json:"elapsed_sec"`
	Link          string         `json:"link"`
	GestureState  string         `json:"gesture_state"`
	CurrentAngle  float64        `json:"current_angle"`
	LeftStrokes   int            `json:"left_strokes"`
	RightStrokes  int            `json:"right_strokes"`
	StrokesPerMin float64        `json:"spm"`
	ParseErrors   int            `json:"parse_errors"`
	RecentStrokes []StrokeRecord `json:"recent_strokes"`
}

// record folds a stroke into the session stats. Called with the pump lock
// held.
func (s *Session) record(ev gesture.StrokeEvent, startedAt time.Time) {
	if ev.Side == wire.SideLeft {
		s.LeftStrokes++
	} else {
		s.RightStrokes++
	}

	total := s.LeftStrokes + s.RightStrokes
	if elapsed := ev.At.Sub(startedAt).Minutes(); elapsed > 0 {
		s.StrokesPerMin = float64(total) / elapsed
	}

	s.RecentStrokes = append(s.RecentStrokes, StrokeRecord{
		Side:  ev.Side.String(),
		Angle: ev.Angle,
		TS:    ev.At.UnixMilli(),
		Count: total,
	})
	if len(s.RecentStrokes) > maxRecentStrokes {
		s.RecentStrokes = s.RecentStrokes[1:]
	}
}

// clone copies the session for safe external use.
func (s *Session) clone() *Session {
	out := *s
	out.RecentStrokes = make([]StrokeRecord, len(s.RecentStrokes))
	copy(out.RecentStrokes, s.RecentStrokes)
	return &out
}
