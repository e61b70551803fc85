package types

import "errors"

var (
	ErrInvalidName   = errors.New("stream name must be 3-30 characters, alphanumeric + underscore only")
	ErrInvalidText   = errors.New("text must be 1-500 characters after sanitization")
	ErrInvalidType   = errors.New("invalid line type")
	ErrInvalidToken  = errors.New("token does not match stream")
	ErrUnknownStream = errors.New("stream has not been claimed")
	ErrRateLimited   = errors.New("rate limit exceeded")
	ErrBanned        = errors.New("stream name is banned")
	ErrStreamFull    = errors.New("stream is at viewer capacity")
	ErrStreamOffline = errors.New("stream is not live")
	ErrChatCooldown  = errors.New("chat cooldown active")
)
