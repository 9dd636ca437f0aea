package types

import (
	"errors"
	"fmt"
	"math/rand"
	"sync"
)

// --- Core Domain Types ---

// ConnectionIdType represents a unique identifier for a client connection.
// It starts as a fresh UUID per socket and is rebound to the user id on a
// successful reconnect.
type ConnectionIdType string

// UserIdType represents the stable identifier of a lobby user. It equals the
// connection id that created the user.
type UserIdType string

// RoomIdType represents a unique identifier for a lobby room.
type RoomIdType string

// DefaultMaxPlayers is the room capacity.
const DefaultMaxPlayers = 6

// User is a lobby participant, both the registry record and the wire object.
type User struct {
	ID         UserIdType `json:"id"`
	Name       string     `json:"name"`
	AvatarPath string     `json:"avatarPath"`
	RoomID     RoomIdType `json:"roomId"`
	IsHost     bool       `json:"isHost"`
	UserColor  string     `json:"userColor"`
}

// Room is a lobby container. It does not hold a user list; membership is
// derived by filtering users on RoomID.
type Room struct {
	ID             RoomIdType `json:"id"`
	MaxPlayers     int        `json:"max_players"`
	HostID         UserIdType `json:"host_id"`
	CurrentPlayers int        `json:"current_players"`
}

// Submission is one user's answer on its way into a running game.
type Submission struct {
	UserID UserIdType `json:"user_id"`
	Answer int        `json:"answer"`
}

// --- Quiz Pack Types ---

// Answer is one selectable option of a question.
type Answer struct {
	Number int    `json:"number"`
	Text   string `json:"text"`
}

// Question is a single timed round of a pack.
type Question struct {
	Text          string   `json:"text"`
	Answers       []Answer `json:"answers"`
	CorrectAnswer int      `json:"correct_answer"`
	DurationSec   int      `json:"duration_sec"`
}

// Pack is a finite ordered quiz.
type Pack struct {
	Name      string     `json:"name"`
	Questions []Question `json:"questions"`
}

// Validate ensures a decoded pack is playable.
func (p Pack) Validate() error {
	if len(p.Questions) == 0 {
		return errors.New("pack has no questions")
	}
	for i, q := range p.Questions {
		if len(q.Answers) == 0 {
			return fmt.Errorf("question %d has no answers", i)
		}
		if q.DurationSec < 0 {
			return fmt.Errorf("question %d has negative duration", i)
		}
		found := false
		for _, a := range q.Answers {
			if a.Number == q.CorrectAnswer {
				found = true
				break
			}
		}
		if !found {
			return fmt.Errorf("question %d correct_answer %d matches no answer", i, q.CorrectAnswer)
		}
	}
	return nil
}

// --- User Colors ---

// Palette hex values. Blue and Cyan intentionally share a value; the client
// palette never distinguished them.
const (
	ColorBlack  = "#000000"
	ColorYellow = "#FFFF00"
	ColorBlue   = "#00FFFF"
	ColorRed    = "#FF0000"
	ColorGreen  = "#00FF00"
	ColorPurple = "#A020F0"
	ColorBrown  = "#964B00"
	ColorOrange = "#FFA500"
	ColorCyan   = "#00FFFF"
)

var colorPalette = [...]string{
	ColorBlack,
	ColorYellow,
	ColorBlue,
	ColorRed,
	ColorGreen,
	ColorPurple,
	ColorBrown,
	ColorOrange,
	ColorCyan,
}

// PaletteSize is the number of sampleable color slots.
const PaletteSize = len(colorPalette)

// ColorAt returns the palette entry for slot i. Out-of-range samples fall
// back to red.
func ColorAt(i int) string {
	if i < 0 || i >= len(colorPalette) {
		return ColorRed
	}
	return colorPalette[i]
}

// RandomColor samples a palette slot from r.
func RandomColor(r Rand) string {
	return ColorAt(r.Intn(len(colorPalette)))
}

// --- Shared Interfaces ---

// Rand is the randomness source used for color sampling and host failover.
// *rand.Rand satisfies it through LockedRand; tests inject a fixed sequence.
type Rand interface {
	Intn(n int) int
}

// LockedRand serializes access to a rand.Rand so concurrent dispatch
// goroutines can share one source.
type LockedRand struct {
	mu  sync.Mutex
	src *rand.Rand
}

// NewLockedRand returns a LockedRand seeded with seed.
func NewLockedRand(seed int64) *LockedRand {
	return &LockedRand{src: rand.New(rand.NewSource(seed))}
}

// Intn implements Rand.
func (l *LockedRand) Intn(n int) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.src.Intn(n)
}

// FrameSender is the outbound half of a connection as registered in the
// Connections index. The transport owns the implementation; everything else
// enqueues serialized frames through it and never blocks.
type FrameSender interface {
	SendRaw(data []byte)
}

// Session is the dispatcher's view of one live connection: a handle on a
// mutable connection id, rebindable on reconnect.
type Session interface {
	ID() ConnectionIdType
	Rebind(id ConnectionIdType)
}
