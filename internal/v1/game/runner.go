// Package game drives the per-room quiz loop: one runner per active room,
// fed by an inbound answer channel registered in the Games index.
package game

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
	"k8s.io/utils/clock"

	"github.com/PartyQuizDev/party-quiz/backend/go/internal/v1/logging"
	"github.com/PartyQuizDev/party-quiz/backend/go/internal/v1/messenger"
	"github.com/PartyQuizDev/party-quiz/backend/go/internal/v1/metrics"
	"github.com/PartyQuizDev/party-quiz/backend/go/internal/v1/protocol"
	"github.com/PartyQuizDev/party-quiz/backend/go/internal/v1/registry"
	"github.com/PartyQuizDev/party-quiz/backend/go/internal/v1/types"
)

// submissionBuffer sizes the answer channel. Writers never block on it; a
// full buffer drops the submission on the dispatch side.
const submissionBuffer = 32

// PointsPerCorrect is the flat score increment for a correct answer.
const PointsPerCorrect = 100

// Timing parameterizes the driver's pacing so tests can compress it.
type Timing struct {
	// QuestionDelay is the pause between the question text and the answer
	// options.
	QuestionDelay time.Duration
	// TickInterval is the gap after every countdown emission, the last one
	// included.
	TickInterval time.Duration
	// ScoreDelay is the pause after the scores before the next question.
	ScoreDelay time.Duration
}

// DefaultTiming matches the live pacing.
func DefaultTiming() Timing {
	return Timing{
		QuestionDelay: 2 * time.Second,
		TickInterval:  time.Second,
		ScoreDelay:    2 * time.Second,
	}
}

// Runner plays one pack for one room. The roster is captured at start;
// members who drop mid-game simply stop receiving frames, and a reconnect
// resumes them under the same user id.
type Runner struct {
	roomID types.RoomIdType
	pack   types.Pack
	store  *registry.Store
	msgr   *messenger.Messenger
	clock  clock.Clock
	timing Timing

	mu      sync.Mutex
	answers map[types.UserIdType]int
	scores  map[types.UserIdType]int
	roster  []types.User

	done chan struct{}
}

// NewRunner returns a Runner for roomID playing pack. A nil clk falls back
// to the real clock.
func NewRunner(store *registry.Store, msgr *messenger.Messenger, roomID types.RoomIdType, pack types.Pack, timing Timing, clk clock.Clock) *Runner {
	if clk == nil {
		clk = clock.RealClock{}
	}
	return &Runner{
		roomID:  roomID,
		pack:    pack,
		store:   store,
		msgr:    msgr,
		clock:   clk,
		timing:  timing,
		answers: make(map[types.UserIdType]int),
		scores:  make(map[types.UserIdType]int),
		done:    make(chan struct{}),
	}
}

// Start registers the room's answer channel in the Games index and launches
// the loop goroutine. Registration completes before Start returns, so a
// writeAnswer racing the spawn still finds the channel.
func (r *Runner) Start(ctx context.Context) {
	ch := make(chan types.Submission, submissionBuffer)
	r.store.Games.Insert(r.roomID, ch)

	r.roster = r.store.UsersInRoom(r.roomID)
	r.mu.Lock()
	for _, u := range r.roster {
		r.answers[u.ID] = -1
		r.scores[u.ID] = 0
	}
	r.mu.Unlock()

	metrics.IncGame()
	go r.run(ctx, ch)
}

// Done is closed when the runner has finished and removed its Games entry.
func (r *Runner) Done() <-chan struct{} {
	return r.done
}

func (r *Runner) run(ctx context.Context, ch chan types.Submission) {
	defer close(r.done)
	defer metrics.DecGame()
	defer r.store.Games.Remove(r.roomID)

	logging.Info(ctx, "game started",
		zap.String("room_id", string(r.roomID)),
		zap.String("pack", r.pack.Name),
		zap.Int("questions", len(r.pack.Questions)),
		zap.Int("players", len(r.roster)))

	stop := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		r.ingest(ctx, ch, stop)
	}()

	r.drive(ctx)

	close(stop)
	wg.Wait()

	logging.Info(ctx, "game finished", zap.String("room_id", string(r.roomID)))
}

// ingest records submissions as they arrive. The last write for a user wins
// until the driver snapshots the map.
func (r *Runner) ingest(ctx context.Context, ch <-chan types.Submission, stop <-chan struct{}) {
	for {
		select {
		case sub := <-ch:
			r.mu.Lock()
			r.answers[sub.UserID] = sub.Answer
			r.mu.Unlock()
			logging.Debug(ctx, "answer recorded",
				zap.String("room_id", string(r.roomID)),
				zap.String("user_id", string(sub.UserID)),
				zap.Int("answer", sub.Answer))
		case <-stop:
			return
		}
	}
}

// drive steps the pack question by question.
func (r *Runner) drive(ctx context.Context) {
	for _, q := range r.pack.Questions {
		r.msgr.BroadcastRoomAll(ctx, protocol.QuestionResponse(q.Text), r.roster)
		if !r.sleep(ctx, r.timing.QuestionDelay) {
			return
		}

		r.msgr.BroadcastRoomAll(ctx, protocol.AnswersResponse(q.Answers, q.DurationSec), r.roster)
		for t := q.DurationSec; t >= 0; t-- {
			r.msgr.BroadcastRoomAll(ctx, protocol.TimerResponse(t), r.roster)
			if !r.sleep(ctx, r.timing.TickInterval) {
				return
			}
		}

		snapshot := r.snapshotAnswers()
		r.msgr.BroadcastRoomAll(ctx, protocol.CorrectAnswerResponse(snapshot, q.CorrectAnswer), r.roster)

		r.applyScores(snapshot, q.CorrectAnswer)
		r.msgr.BroadcastRoomAll(ctx, protocol.ScoresResponse(r.snapshotScores()), r.roster)

		r.resetAnswers()
		if !r.sleep(ctx, r.timing.ScoreDelay) {
			return
		}
	}
}

// snapshotAnswers copies the submission map. Everything recorded before this
// moment counts for the current question; later writes roll into the next.
func (r *Runner) snapshotAnswers() map[types.UserIdType]int {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make(map[types.UserIdType]int, len(r.answers))
	for id, v := range r.answers {
		out[id] = v
	}
	return out
}

func (r *Runner) snapshotScores() map[types.UserIdType]int {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make(map[types.UserIdType]int, len(r.scores))
	for id, v := range r.scores {
		out[id] = v
	}
	return out
}

func (r *Runner) applyScores(snapshot map[types.UserIdType]int, correct int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for id, submitted := range snapshot {
		if submitted == correct {
			r.scores[id] += PointsPerCorrect
		}
	}
}

func (r *Runner) resetAnswers() {
	r.mu.Lock()
	defer r.mu.Unlock()
	for id := range r.answers {
		r.answers[id] = -1
	}
}

// sleep waits d on the injected clock. It returns false when ctx ends first,
// which only happens at process shutdown.
func (r *Runner) sleep(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	t := r.clock.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C():
		return true
	case <-ctx.Done():
		return false
	}
}
