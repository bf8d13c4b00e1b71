package trace

import (
	"context"
	"errors"
	"time"

	"github.com/derbi/xiaoxia/pkg/stream"
)

// Target receives replayed callbacks. *stream.Engine implements it.
type Target interface {
	Feed(id stream.ID, raw []byte) bool
	ProducerDone(id stream.ID) bool
	Fail(id stream.ID, err error) bool
}

var _ Target = (*stream.Engine)(nil)

// Replay feeds events to session id at their recorded offsets divided by
// speed. A speed of zero or less replays without delay.
//
// Replay stops after a done or error event, or when the target rejects a
// fragment. If events end without either, the producer is marked done.
// It returns ctx.Err() if ctx is done first.
func Replay(ctx context.Context, events []Event, t Target, id stream.ID, speed float64) error {
	start := time.Now()
	timer := time.NewTimer(time.Hour)
	timer.Stop()
	defer timer.Stop()

	for _, ev := range events {
		if speed > 0 {
			wait := time.Duration(float64(ev.At)/speed) - time.Since(start)
			if wait > 0 {
				timer.Reset(wait)
				select {
				case <-ctx.Done():
					return ctx.Err()
				case <-timer.C:
				}
			}
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		switch ev.Kind {
		case KindData:
			if !t.Feed(id, []byte(ev.Data)) {
				return nil
			}
		case KindDone:
			t.ProducerDone(id)
			return nil
		case KindError:
			t.Fail(id, errors.New(ev.Data))
			return nil
		}
	}
	t.ProducerDone(id)
	return nil
}
