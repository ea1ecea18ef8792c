package models

import "errors"

var (
	ErrRedisConnection = errors.New("redis connection error")
	ErrRedisGet        = errors.New("redis get error")
	ErrRedisSet        = errors.New("redis set error")
	ErrRedisDelete     = errors.New("redis delete error")
)

var (
	ErrSessionNotFound    = errors.New("visit session not found")
	ErrSessionResolved    = errors.New("visit session already resolved")
	ErrCounsellorNotFound = errors.New("counsellor not found")
	ErrCounsellorRejected = errors.New("counsellor already rejected this visit")
)

var (
	ErrMissingLocationData  = errors.New("photo carries no gps metadata")
	ErrAttendanceUnverified = errors.New("attendance location could not be verified")
)

var (
	ErrInvalidCoordinates  = errors.New("coordinates out of decimal-degree range")
	ErrInvalidVisitRequest = errors.New("invalid visit session request")
	ErrInvalidDecision     = errors.New("decision must be accept or reject")
)

var (
	ErrNotifyFailed = errors.New("failed to dispatch assignment offer")
)

var (
	ErrDatabaseConnection = errors.New("database connection error")
	ErrDatabaseQuery      = errors.New("database query error")
	ErrDatabaseInsert     = errors.New("database insert error")
	ErrDatabaseUpdate     = errors.New("database update error")
)
