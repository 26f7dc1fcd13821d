package game

import "errors"

var ErrLobbyNotFound = errors.New("lobby not found")
var ErrPlayerNotFound = errors.New("player not found")
var ErrForbidden = errors.New("only the host can do that")
var ErrAlreadyStarted = errors.New("game already started")
var ErrNotEnoughPlayers = errors.New("not enough players to start")
var ErrInvalidName = errors.New("invalid display name")
var ErrInvalidInput = errors.New("invalid input")
var ErrInvalidOperation = errors.New("operation not valid for this trait")
var ErrAlreadyVoted = errors.New("vote already cast")
var ErrVotingNotActive = errors.New("no active voting session")
var ErrVotingInProgress = errors.New("voting already in progress")
var ErrSelfTarget = errors.New("cannot target yourself")
var ErrPlayerKicked = errors.New("player was kicked from this lobby")
var ErrUnsupportedCommand = errors.New("unsupported command")
