package orchestrator

import (
	"fmt"
	"time"

	"github.com/vmihailenco/msgpack/v5"

	"github.com/GriffinCanCode/speakerline/internal/orchestrator/buffer"
	"github.com/GriffinCanCode/speakerline/internal/orchestrator/transcript"
)

// SnapshotVersion is bumped on incompatible layout changes.
const SnapshotVersion = 1

// Snapshot is the durable session state: pending audio, the segment log,
// resolved speaker names and accounted audio.
type Snapshot struct {
	Version   int                     `msgpack:"version"`
	SessionID string                  `msgpack:"session_id"`
	TakenAt   time.Time               `msgpack:"taken_at"`
	Buffers   map[string]buffer.State `msgpack:"buffers"`
	Segments  []transcript.Segment    `msgpack:"segments"`
	Names     map[string]string       `msgpack:"names"`
	Seconds   float64                 `msgpack:"seconds"`
	Chunks    int                     `msgpack:"chunks"`
}

// Marshal encodes the snapshot with msgpack.
func (s Snapshot) Marshal() ([]byte, error) {
	data, err := msgpack.Marshal(&s)
	if err != nil {
		return nil, fmt.Errorf("encode snapshot: %w", err)
	}
	return data, nil
}

// UnmarshalSnapshot decodes data produced by Marshal.
func UnmarshalSnapshot(data []byte) (Snapshot, error) {
	var s Snapshot
	if err := msgpack.Unmarshal(data, &s); err != nil {
		return Snapshot{}, fmt.Errorf("decode snapshot: %w", err)
	}
	if s.Version != SnapshotVersion {
		return Snapshot{}, fmt.Errorf("unsupported snapshot version %d", s.Version)
	}
	return s, nil
}
