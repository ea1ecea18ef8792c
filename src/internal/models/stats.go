package models

type Stats struct {
	Sessions    SessionStats    `json:"sessions"`
	Attendances AttendanceStats `json:"attendances"`
	Counsellors CounsellorStats `json:"counsellors"`
}

type SessionStats struct {
	Total     int64 `json:"total"`
	Pending   int64 `json:"pending"`
	Assigned  int64 `json:"assigned"`
	Completed int64 `json:"completed"`
	Rejected  int64 `json:"rejected"`
}

type AttendanceStats struct {
	Total      int64 `json:"total"`
	Verified   int64 `json:"verified"`
	Unverified int64 `json:"unverified"`
}

type CounsellorStats struct {
	Total      int64 `json:"total"`
	Approved   int64 `json:"approved"`
	Geolocated int64 `json:"geolocated"`
}
