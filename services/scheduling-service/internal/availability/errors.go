package availability

import "errors"

var (
	ErrInvalidInterval     = errors.New("end must be after start")
	ErrInvalidMeetingType  = errors.New("invalid meeting type")
	ErrMeetingTypeInactive = errors.New("meeting type is not active")
	ErrPastBooking         = errors.New("start is in the past")
	ErrInsufficientNotice  = errors.New("start violates minimum notice")
	ErrTooFarInAdvance     = errors.New("start is too far in advance")
	ErrDurationMismatch    = errors.New("duration does not match meeting type")
	ErrSlotUnavailable     = errors.New("slot is no longer available")
)
