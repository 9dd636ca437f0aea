// Package protocol defines the JSON wire contract: inbound command envelopes
// and outbound response envelopes with their payload shapes.
package protocol

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/PartyQuizDev/party-quiz/backend/go/internal/v1/types"
)

// CommandKind is the wire name of an inbound command variant.
type CommandKind string

const (
	CmdCreateRoom       CommandKind = "createRoom"
	CmdJoinRoom         CommandKind = "joinRoom"
	CmdHeartbeat        CommandKind = "heartbeat"
	CmdReconnectRoom    CommandKind = "reconnectRoom"
	CmdStartGame        CommandKind = "startGame"
	CmdGetUserList      CommandKind = "getUserList"
	CmdBroadcastMessage CommandKind = "broadcastMessage"
	CmdWriteAnswer      CommandKind = "writeAnswer"
	CmdChangeUsername   CommandKind = "changeUsername"
	CmdChangeAvatar     CommandKind = "changeAvatar"
	CmdUnknown          CommandKind = ""
)

// EmptyCommand is the payload of variants that carry no fields.
type EmptyCommand struct{}

// CreateRoomCommand opens a fresh room with the sender as host.
type CreateRoomCommand struct {
	Name       string `json:"name"`
	AvatarPath string `json:"avatarPath"`
}

// JoinRoomCommand enters an existing room.
type JoinRoomCommand struct {
	Name       string           `json:"name"`
	AvatarPath string           `json:"avatarPath"`
	RoomID     types.RoomIdType `json:"roomId"`
}

// StartGameCommand starts the quiz found at PackPath for the sender's room.
type StartGameCommand struct {
	PackPath string `json:"packPath"`
}

// BroadcastMessageCommand sends a chat line to the whole room.
type BroadcastMessageCommand struct {
	Text string `json:"text"`
}

// WriteAnswerCommand submits an answer for the current question.
type WriteAnswerCommand struct {
	Answer int `json:"answer"`
}

// ChangeUsernameCommand renames the sender.
type ChangeUsernameCommand struct {
	NewName string `json:"newName"`
}

// ChangeAvatarCommand swaps the sender's avatar.
type ChangeAvatarCommand struct {
	NewAvatarPath string `json:"newAvatarPath"`
}

// Command is one decoded client frame. Exactly one variant pointer is
// non-nil after a successful decode; Token rides at the top level beside
// authenticated variants and is ignored for unauthenticated ones.
type Command struct {
	CreateRoom       *CreateRoomCommand       `json:"createRoom,omitempty"`
	JoinRoom         *JoinRoomCommand         `json:"joinRoom,omitempty"`
	Heartbeat        *EmptyCommand            `json:"heartbeat,omitempty"`
	ReconnectRoom    *EmptyCommand            `json:"reconnectRoom,omitempty"`
	StartGame        *StartGameCommand        `json:"startGame,omitempty"`
	GetUserList      *EmptyCommand            `json:"getUserList,omitempty"`
	BroadcastMessage *BroadcastMessageCommand `json:"broadcastMessage,omitempty"`
	WriteAnswer      *WriteAnswerCommand      `json:"writeAnswer,omitempty"`
	ChangeUsername   *ChangeUsernameCommand   `json:"changeUsername,omitempty"`
	ChangeAvatar     *ChangeAvatarCommand     `json:"changeAvatar,omitempty"`
	Token            string                   `json:"token,omitempty"`
}

// DecodeCommand parses one inbound text frame. A frame with zero or with
// several variant keys is a parse error; the caller reports it to the sender
// and keeps the connection open.
func DecodeCommand(frame []byte) (*Command, error) {
	var cmd Command
	if err := json.Unmarshal(frame, &cmd); err != nil {
		return nil, fmt.Errorf("malformed command envelope: %w", err)
	}
	switch n := cmd.variantCount(); {
	case n == 0:
		return nil, errors.New("no recognized command variant")
	case n > 1:
		return nil, errors.New("more than one command variant in a single frame")
	}
	return &cmd, nil
}

func (c *Command) variantCount() int {
	n := 0
	for _, set := range []bool{
		c.CreateRoom != nil,
		c.JoinRoom != nil,
		c.Heartbeat != nil,
		c.ReconnectRoom != nil,
		c.StartGame != nil,
		c.GetUserList != nil,
		c.BroadcastMessage != nil,
		c.WriteAnswer != nil,
		c.ChangeUsername != nil,
		c.ChangeAvatar != nil,
	} {
		if set {
			n++
		}
	}
	return n
}

// Kind returns the wire name of the set variant.
func (c *Command) Kind() CommandKind {
	switch {
	case c.CreateRoom != nil:
		return CmdCreateRoom
	case c.JoinRoom != nil:
		return CmdJoinRoom
	case c.Heartbeat != nil:
		return CmdHeartbeat
	case c.ReconnectRoom != nil:
		return CmdReconnectRoom
	case c.StartGame != nil:
		return CmdStartGame
	case c.GetUserList != nil:
		return CmdGetUserList
	case c.BroadcastMessage != nil:
		return CmdBroadcastMessage
	case c.WriteAnswer != nil:
		return CmdWriteAnswer
	case c.ChangeUsername != nil:
		return CmdChangeUsername
	case c.ChangeAvatar != nil:
		return CmdChangeAvatar
	}
	return CmdUnknown
}

// RequiresAuth reports whether the set variant must carry a verifiable token.
func (c *Command) RequiresAuth() bool {
	switch c.Kind() {
	case CmdCreateRoom, CmdJoinRoom, CmdHeartbeat:
		return false
	default:
		return true
	}
}
