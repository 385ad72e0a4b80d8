package apperrors

var (
	ErrMissingRequestedAt  = Validation("requested date and time are required")
	ErrEmptyMessage        = Validation("message needs text or an image")
	ErrSendInProgress      = Validation("a message is already being sent")
	ErrChannelClosed       = Validation("conversation is closed")
	ErrChannelNotReady     = Validation("conversation is still loading")
	ErrBookingNotPending   = Validation("only pending bookings can change status")
	ErrUnknownAction       = Validation("unknown booking action")
	ErrInvalidRating       = Validation("rating must be between 1 and 5")
	ErrSelfReview          = Validation("artists cannot review themselves")
	ErrSelfFollow          = Validation("cannot follow yourself")
	ErrSelfConversation    = Validation("cannot start a conversation with yourself")
	ErrDuplicateReview     = Conflict("you have already reviewed this artist")
	ErrNotParticipant      = Authorization("not a participant of this conversation")
	ErrBookingUnauthorized = Authorization("booking not found or action not allowed for this identity")
	ErrUserNotFound        = NotFound("user not found")
	ErrConversationMissing = NotFound("conversation not found")
	ErrBookingNotFound     = NotFound("booking not found")
	ErrInvalidPhone        = Validation("invalid phone number format")
	ErrInvalidCredentials  = Unauthenticated("invalid credentials")
)
