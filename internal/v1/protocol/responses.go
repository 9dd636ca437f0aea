package protocol

import (
	"github.com/PartyQuizDev/party-quiz/backend/go/internal/v1/types"
)

// Response variant names as they appear on the wire.
const (
	RespCreateRoom     = "createRoomResponse"
	RespJoinRoom       = "joinRoomResponse"
	RespUpdateUserList = "updateUserList"
	RespNewMessage     = "newMessage"
	RespStartGame      = "startGame"
	RespQuestion       = "questionResponse"
	RespAnswers        = "answersResponse"
	RespTimer          = "timerResponse"
	RespCorrectAnswer  = "correctAnswerResponse"
	RespScores         = "scoresResponse"
	RespError          = "errorResponse"
)

// Error codes surfaced in errorResponse.
const (
	// CodeGeneral covers parse, precondition, and IO failures.
	CodeGeneral = 0
	// CodeAuth covers token failures and removed users; clients treat it as
	// "reacquire session".
	CodeAuth = 2
)

// Response is the server-to-client envelope: a variant tag plus its payload.
type Response struct {
	Response string `json:"response"`
	Data     any    `json:"data"`
}

// RoomAccessPayload answers createRoom and joinRoom: the caller's bearer
// token plus the room roster.
type RoomAccessPayload struct {
	Token    string       `json:"token"`
	UserList []types.User `json:"userList"`
}

// UserListPayload carries a room roster.
type UserListPayload struct {
	UserList []types.User `json:"userList"`
}

// NewMessagePayload carries one chat line.
type NewMessagePayload struct {
	Author types.UserIdType `json:"author"`
	Text   string           `json:"text"`
}

// QuestionPayload carries the text of the question being asked.
type QuestionPayload struct {
	Question string `json:"question"`
}

// AnswersPayload carries the selectable options and the countdown start.
type AnswersPayload struct {
	Answers []types.Answer `json:"answers"`
	Timer   int            `json:"timer"`
}

// TimerPayload carries one countdown tick.
type TimerPayload struct {
	Timer int `json:"timer"`
}

// CorrectAnswerPayload carries the submission snapshot and the right answer.
type CorrectAnswerPayload struct {
	Answers       map[types.UserIdType]int `json:"answers"`
	CorrectAnswer int                      `json:"correct_answer"`
}

// ScoresPayload carries the running totals.
type ScoresPayload struct {
	Scores map[types.UserIdType]int `json:"scores"`
}

// ErrorPayload carries a failure back to the sender.
type ErrorPayload struct {
	ErrorText string `json:"errorText"`
	ErrorCode int    `json:"errorCode"`
}

// CreateRoomResponse acknowledges room creation to the host.
func CreateRoomResponse(token string, users []types.User) Response {
	return Response{Response: RespCreateRoom, Data: RoomAccessPayload{Token: token, UserList: users}}
}

// JoinRoomResponse acknowledges a join to the new member.
func JoinRoomResponse(token string, users []types.User) Response {
	return Response{Response: RespJoinRoom, Data: RoomAccessPayload{Token: token, UserList: users}}
}

// UpdateUserListResponse pushes a fresh roster.
func UpdateUserListResponse(users []types.User) Response {
	return Response{Response: RespUpdateUserList, Data: UserListPayload{UserList: users}}
}

// NewMessageResponse fans out one chat line.
func NewMessageResponse(author types.UserIdType, text string) Response {
	return Response{Response: RespNewMessage, Data: NewMessagePayload{Author: author, Text: text}}
}

// StartGameResponse announces that the quiz is starting.
func StartGameResponse() Response {
	return Response{Response: RespStartGame, Data: struct{}{}}
}

// QuestionResponse opens a round.
func QuestionResponse(question string) Response {
	return Response{Response: RespQuestion, Data: QuestionPayload{Question: question}}
}

// AnswersResponse reveals the options and starts the countdown.
func AnswersResponse(answers []types.Answer, timer int) Response {
	return Response{Response: RespAnswers, Data: AnswersPayload{Answers: answers, Timer: timer}}
}

// TimerResponse emits one countdown tick.
func TimerResponse(timer int) Response {
	return Response{Response: RespTimer, Data: TimerPayload{Timer: timer}}
}

// CorrectAnswerResponse closes a round with the submission snapshot.
func CorrectAnswerResponse(answers map[types.UserIdType]int, correct int) Response {
	return Response{Response: RespCorrectAnswer, Data: CorrectAnswerPayload{Answers: answers, CorrectAnswer: correct}}
}

// ScoresResponse publishes the running totals.
func ScoresResponse(scores map[types.UserIdType]int) Response {
	return Response{Response: RespScores, Data: ScoresPayload{Scores: scores}}
}

// ErrorResponse reports a failure to the sender. It never closes the
// connection.
func ErrorResponse(text string, code int) Response {
	return Response{Response: RespError, Data: ErrorPayload{ErrorText: text, ErrorCode: code}}
}
